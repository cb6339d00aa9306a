package kv

import (
	"bytes"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/tarungka/ministream/internal/partitioner"
)

// Memory is a process-local backend. Each namespace is a lock-striped map,
// so concurrent writers only contend when their keys hash to the same shard.
type Memory struct {
	partitions int
	closed     atomic.Bool

	mu         sync.Mutex
	namespaces map[string]*memoryStore
}

func NewMemory(partitions int) *Memory {
	return &Memory{
		partitions: partitions,
		namespaces: make(map[string]*memoryStore),
	}
}

func (m *Memory) Namespace(name string) (Store, error) {
	if name == "" {
		return nil, ErrInvalidNamespace
	}
	if m.closed.Load() {
		return nil, ErrStoreClosed
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.namespaces[name]; ok {
		return s, nil
	}
	s := newMemoryStore(&m.closed, m.partitions)
	m.namespaces[name] = s
	return s, nil
}

func (m *Memory) Type() string { return TypeMemory }

func (m *Memory) Close() error {
	m.closed.Store(true)
	return nil
}

type shard struct {
	mu   sync.RWMutex
	data map[string][]byte
}

type memoryStore struct {
	closed *atomic.Bool
	part   *partitioner.Partitioner[[]byte]
	shards []*shard
}

func newMemoryStore(closed *atomic.Bool, partitions int) *memoryStore {
	part := partitioner.NewPartitioner(partitioner.HashFnv, partitioner.WithPartitions[[]byte](partitions))
	shards := make([]*shard, part.Partitions())
	for i := range shards {
		shards[i] = &shard{data: make(map[string][]byte)}
	}
	return &memoryStore{closed: closed, part: part, shards: shards}
}

func (s *memoryStore) shardFor(key []byte) *shard {
	return s.shards[s.part.Partition(key)]
}

func (s *memoryStore) Get(key []byte) ([]byte, error) {
	if s.closed.Load() {
		return nil, ErrStoreClosed
	}
	sh := s.shardFor(key)
	sh.mu.RLock()
	defer sh.mu.RUnlock()

	val, ok := sh.data[string(key)]
	if !ok {
		return nil, ErrKeyNotFound
	}
	return bytes.Clone(val), nil
}

func (s *memoryStore) Set(key, val []byte) error {
	if s.closed.Load() {
		return ErrStoreClosed
	}
	sh := s.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	sh.data[string(key)] = bytes.Clone(val)
	return nil
}

func (s *memoryStore) Delete(key []byte) error {
	if s.closed.Load() {
		return ErrStoreClosed
	}
	sh := s.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	delete(sh.data, string(key))
	return nil
}

func (s *memoryStore) Len() (int, error) {
	if s.closed.Load() {
		return 0, ErrStoreClosed
	}
	n := 0
	for _, sh := range s.shards {
		sh.mu.RLock()
		n += len(sh.data)
		sh.mu.RUnlock()
	}
	return n, nil
}

type pair struct {
	key, val []byte
}

func (s *memoryStore) ForEach(fn func(key, val []byte) error) error {
	if s.closed.Load() {
		return ErrStoreClosed
	}
	// Copy out under the shard locks so fn may call back into the store.
	var pairs []pair
	for _, sh := range s.shards {
		sh.mu.RLock()
		for k, v := range sh.data {
			pairs = append(pairs, pair{key: []byte(k), val: bytes.Clone(v)})
		}
		sh.mu.RUnlock()
	}
	sort.Slice(pairs, func(i, j int) bool {
		return bytes.Compare(pairs[i].key, pairs[j].key) < 0
	})
	for _, p := range pairs {
		if err := fn(p.key, p.val); err != nil {
			return err
		}
	}
	return nil
}

func (s *memoryStore) Clear() error {
	if s.closed.Load() {
		return ErrStoreClosed
	}
	for _, sh := range s.shards {
		sh.mu.Lock()
		sh.data = make(map[string][]byte)
		sh.mu.Unlock()
	}
	return nil
}
