package sinks

import (
	"errors"
	"fmt"
	"time"

	"github.com/tarungka/ministream/internal/codec"
	"github.com/tarungka/ministream/internal/kv"
)

// Entry is one key/value pair of a MapStore.
type Entry struct {
	Key   int64
	Value time.Time
}

type entryValue struct {
	UnixNano int64 `codec:"t"`
}

// MapStore is a named sequence -> timestamp map on top of a kv namespace.
// A later Put for a key replaces the earlier value.
type MapStore struct {
	name  string
	store kv.Store
}

// NewMapStore wraps a kv namespace.
func NewMapStore(name string, store kv.Store) *MapStore {
	return &MapStore{name: name, store: store}
}

func (m *MapStore) Name() string { return m.name }

// Put inserts or overwrites the value for key.
func (m *MapStore) Put(key int64, value time.Time) error {
	buf, err := codec.EncodeMsgPack(entryValue{UnixNano: value.UnixNano()})
	if err != nil {
		return fmt.Errorf("encoding value for key %d: %w", key, err)
	}
	return m.store.Set(codec.EncodeInt64Key(key), buf.Bytes())
}

// Get returns the value for key and whether it exists.
func (m *MapStore) Get(key int64) (time.Time, bool, error) {
	raw, err := m.store.Get(codec.EncodeInt64Key(key))
	if errors.Is(err, kv.ErrKeyNotFound) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	value, err := decodeValue(raw)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("decoding value for key %d: %w", key, err)
	}
	return value, true, nil
}

// Remove deletes key. Removing a missing key is not an error.
func (m *MapStore) Remove(key int64) error {
	return m.store.Delete(codec.EncodeInt64Key(key))
}

func (m *MapStore) Len() (int, error) {
	return m.store.Len()
}

// Entries returns every entry in ascending key order.
func (m *MapStore) Entries() ([]Entry, error) {
	var entries []Entry
	err := m.store.ForEach(func(k, v []byte) error {
		key, err := codec.DecodeInt64Key(k)
		if err != nil {
			return err
		}
		value, err := decodeValue(v)
		if err != nil {
			return fmt.Errorf("decoding value for key %d: %w", key, err)
		}
		entries = append(entries, Entry{Key: key, Value: value})
		return nil
	})
	return entries, err
}

// Keys returns every key in ascending order.
func (m *MapStore) Keys() ([]int64, error) {
	entries, err := m.Entries()
	if err != nil {
		return nil, err
	}
	keys := make([]int64, len(entries))
	for i, e := range entries {
		keys[i] = e.Key
	}
	return keys, nil
}

// Values returns every value, ordered by key.
func (m *MapStore) Values() ([]time.Time, error) {
	entries, err := m.Entries()
	if err != nil {
		return nil, err
	}
	values := make([]time.Time, len(entries))
	for i, e := range entries {
		values[i] = e.Value
	}
	return values, nil
}

// Clear removes every entry.
func (m *MapStore) Clear() error {
	return m.store.Clear()
}

func decodeValue(raw []byte) (time.Time, error) {
	var v entryValue
	if err := codec.DecodeMsgPack(raw, &v); err != nil {
		return time.Time{}, err
	}
	return time.Unix(0, v.UnixNano).UTC(), nil
}
