package kv

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/tarungka/ministream/internal/logger"
	bolt "go.etcd.io/bbolt"
)

const boltFileName = "ministream.db"

// Bolt keeps each namespace in its own bucket of a single bbolt file.
type Bolt struct {
	open   atomic.Bool
	path   string
	logger zerolog.Logger

	db *bolt.DB
}

// OpenBolt opens (or creates) the bbolt file inside dir.
func OpenBolt(dir string) (*Bolt, error) {
	if dir == "" {
		dir = "data"
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	path := filepath.Join(dir, boltFileName)

	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, err
	}
	b := &Bolt{
		path:   path,
		logger: logger.GetLogger("bolt"),
		db:     db,
	}
	b.open.Store(true)
	b.logger.Debug().Msgf("opened a file-based database at %s", path)
	return b, nil
}

func (b *Bolt) Namespace(name string) (Store, error) {
	if name == "" {
		return nil, ErrInvalidNamespace
	}
	if !b.open.Load() {
		return nil, ErrStoreClosed
	}
	bucket := []byte(name)
	err := b.db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucket)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("creating bucket %s: %w", name, err)
	}
	return &boltStore{parent: b, bucket: bucket}, nil
}

func (b *Bolt) Type() string { return TypeBolt }

func (b *Bolt) Close() error {
	if !b.open.CompareAndSwap(true, false) {
		return nil
	}
	b.logger.Debug().Msg("closing database")
	return b.db.Close()
}

type boltStore struct {
	parent *Bolt
	bucket []byte
}

func (s *boltStore) Get(key []byte) ([]byte, error) {
	if !s.parent.open.Load() {
		return nil, ErrStoreClosed
	}
	var val []byte
	err := s.parent.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(s.bucket).Get(key)
		if v == nil {
			return ErrKeyNotFound
		}
		// v is only valid for the life of the transaction
		val = bytes.Clone(v)
		return nil
	})
	return val, err
}

func (s *boltStore) Set(key, val []byte) error {
	if !s.parent.open.Load() {
		return ErrStoreClosed
	}
	s.parent.logger.Trace().Msgf("setting value of key %v to %v", key, val)
	return s.parent.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(s.bucket).Put(key, val)
	})
}

func (s *boltStore) Delete(key []byte) error {
	if !s.parent.open.Load() {
		return ErrStoreClosed
	}
	return s.parent.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(s.bucket).Delete(key)
	})
}

func (s *boltStore) Len() (int, error) {
	if !s.parent.open.Load() {
		return 0, ErrStoreClosed
	}
	n := 0
	err := s.parent.db.View(func(tx *bolt.Tx) error {
		n = tx.Bucket(s.bucket).Stats().KeyN
		return nil
	})
	return n, err
}

func (s *boltStore) ForEach(fn func(key, val []byte) error) error {
	if !s.parent.open.Load() {
		return ErrStoreClosed
	}
	return s.parent.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(s.bucket).ForEach(func(k, v []byte) error {
			return fn(bytes.Clone(k), bytes.Clone(v))
		})
	})
}

func (s *boltStore) Clear() error {
	if !s.parent.open.Load() {
		return ErrStoreClosed
	}
	return s.parent.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket(s.bucket); err != nil {
			return err
		}
		_, err := tx.CreateBucket(s.bucket)
		return err
	})
}
