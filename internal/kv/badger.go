package kv

import (
	"encoding/binary"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/dgraph-io/badger/v4"
	"github.com/rs/zerolog"
	"github.com/tarungka/ministream/internal/logger"
)

// Badger keeps every namespace in one badger database, each under its own
// key prefix. The prefix is the uvarint length of the name followed by the
// name, so no namespace prefix is a prefix of another (e.g. "map/a" and
// "map/a/b").
type Badger struct {
	open   atomic.Bool
	dbPath string
	logger zerolog.Logger

	db *badger.DB

	mu         sync.Mutex
	namespaces map[string]*badgerStore
}

// OpenBadger opens a file-based database at path, or an in-memory one when
// inMemory is set. An empty path without inMemory opens /tmp/badger.
func OpenBadger(path string, inMemory bool) (*Badger, error) {
	newLogger := logger.GetLogger("badger")

	var opts badger.Options
	if inMemory {
		path = ""
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if path == "" {
			path = "/tmp/badger"
		}
		opts = badger.DefaultOptions(path)
	}
	opts = opts.WithLogger(&badgerLogger{logger: newLogger})

	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	b := &Badger{
		dbPath:     path,
		logger:     newLogger,
		db:         db,
		namespaces: make(map[string]*badgerStore),
	}
	b.open.Store(true)

	if inMemory {
		newLogger.Debug().Msg("opened a in-memory database")
	} else {
		newLogger.Debug().Msgf("opened a file-based database at %s", path)
	}
	return b, nil
}

func (b *Badger) Namespace(name string) (Store, error) {
	if name == "" {
		return nil, ErrInvalidNamespace
	}
	if !b.open.Load() {
		return nil, ErrStoreClosed
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	if s, ok := b.namespaces[name]; ok {
		return s, nil
	}
	s := &badgerStore{
		parent: b,
		prefix: namespacePrefix(name),
	}
	b.namespaces[name] = s
	return s, nil
}

func (b *Badger) Type() string { return TypeBadger }

func (b *Badger) Close() error {
	if !b.open.CompareAndSwap(true, false) {
		return nil
	}
	b.logger.Debug().Msg("closing database")
	return b.db.Close()
}

func namespacePrefix(name string) []byte {
	prefix := binary.AppendUvarint(make([]byte, 0, binary.MaxVarintLen64+len(name)), uint64(len(name)))
	return append(prefix, name...)
}

type badgerStore struct {
	parent *Badger
	prefix []byte
}

func (s *badgerStore) key(k []byte) []byte {
	out := make([]byte, 0, len(s.prefix)+len(k))
	out = append(out, s.prefix...)
	return append(out, k...)
}

func (s *badgerStore) Get(key []byte) ([]byte, error) {
	if !s.parent.open.Load() {
		return nil, ErrStoreClosed
	}
	var val []byte
	err := s.parent.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(s.key(key))
		if err != nil {
			return err
		}
		val, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrKeyNotFound
	}
	if err != nil {
		s.parent.logger.Err(err).Msgf("err getting value of key %v", key)
		return nil, err
	}
	return val, nil
}

func (s *badgerStore) Set(key, val []byte) error {
	if !s.parent.open.Load() {
		return ErrStoreClosed
	}
	s.parent.logger.Trace().Msgf("setting value of key %v to %v", key, val)
	err := s.parent.db.Update(func(txn *badger.Txn) error {
		return txn.Set(s.key(key), val)
	})
	if err != nil {
		s.parent.logger.Err(err).Msgf("err setting value of key %v to %v", key, val)
		return err
	}
	return nil
}

func (s *badgerStore) Delete(key []byte) error {
	if !s.parent.open.Load() {
		return ErrStoreClosed
	}
	return s.parent.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(s.key(key))
	})
}

func (s *badgerStore) Len() (int, error) {
	if !s.parent.open.Load() {
		return 0, ErrStoreClosed
	}
	n := 0
	err := s.parent.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = s.prefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(s.prefix); it.ValidForPrefix(s.prefix); it.Next() {
			n++
		}
		return nil
	})
	return n, err
}

func (s *badgerStore) ForEach(fn func(key, val []byte) error) error {
	if !s.parent.open.Load() {
		return ErrStoreClosed
	}
	return s.parent.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = s.prefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(s.prefix); it.ValidForPrefix(s.prefix); it.Next() {
			item := it.Item()
			k := item.KeyCopy(nil)[len(s.prefix):]
			v, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			if err := fn(k, v); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *badgerStore) Clear() error {
	if !s.parent.open.Load() {
		return ErrStoreClosed
	}
	return s.parent.db.DropPrefix(s.prefix)
}

// badgerLogger routes badger's internal logging into zerolog. Badger is
// chatty at info level, so info is demoted to debug.
type badgerLogger struct {
	logger zerolog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error().Msgf(format, args...)
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn().Msgf(format, args...)
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debug().Msgf(format, args...)
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Trace().Msgf(format, args...)
}
