package stream

import (
	"context"
	"time"
)

// Sink is the terminal stage of a pipeline.
type Sink interface {
	// ID returns the unique identifier of the sink.
	ID() string
	// Write persists or emits one item.
	Write(ctx context.Context, item Item) error
	// Close closes the sink.
	Close() error
}

// KeyValueFunc extracts the key and value a MapSink writes for an item. It
// must be pure.
type KeyValueFunc func(item Item) (int64, time.Time)

// SequenceTimestamp maps an item to its sequence and generation timestamp.
func SequenceTimestamp(item Item) (int64, time.Time) {
	return item.Sequence(), item.Timestamp()
}

// MapWriter is the store a MapSink writes into. Put inserts or overwrites.
type MapWriter interface {
	Put(key int64, value time.Time) error
}

// MapSink writes every item it receives into a key/value map.
type MapSink struct {
	id    string
	store MapWriter
	kv    KeyValueFunc
}

// NewMapSink creates a new MapSink.
func NewMapSink(id string, store MapWriter, kv KeyValueFunc) *MapSink {
	return &MapSink{
		id:    id,
		store: store,
		kv:    kv,
	}
}

// ID returns the unique identifier of the sink.
func (s *MapSink) ID() string {
	return s.id
}

// Write inserts or overwrites the entry for the item's key. Writing the same
// key and value again has no observable effect.
func (s *MapSink) Write(ctx context.Context, item Item) error {
	key, value := s.kv(item)
	return s.store.Put(key, value)
}

// Close closes the sink. The map outlives the sink.
func (s *MapSink) Close() error {
	return nil
}
