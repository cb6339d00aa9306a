// Package kv provides the namespaced key/value storage that sink maps and
// checkpoint state are written to. A Backend owns the underlying database and
// hands out one Store per namespace.
package kv

import (
	"fmt"
	"strings"
)

const (
	TypeMemory = "memory"
	TypeBadger = "badger"
	TypeBolt   = "bolt"
)

type Config struct {
	// Type is one of "memory", "badger" or "bolt".
	Type string `koanf:"type" json:"type"`
	// Dir is the data directory for the badger and bolt backends.
	Dir string `koanf:"dir" json:"dir"`
	// InMemory runs badger without touching disk.
	InMemory bool `koanf:"in_memory" json:"in_memory"`
	// Partitions is the number of lock stripes of the memory backend.
	Partitions int `koanf:"partitions" json:"partitions"`
}

// Store is a single namespace of a Backend. Keys are compared bytewise and
// ForEach visits them in ascending order. Slices passed to ForEach are copies
// owned by the callee, and fn must not write to the same backend.
type Store interface {
	Get(key []byte) ([]byte, error)

	Set(key, val []byte) error

	Delete(key []byte) error

	Len() (int, error)

	ForEach(fn func(key, val []byte) error) error

	// Clear removes every key of the namespace.
	Clear() error
}

type Backend interface {
	// Namespace returns the store for name, creating it if needed.
	Namespace(name string) (Store, error)

	Type() string

	Close() error
}

// Open returns the backend selected by config.Type.
func Open(config Config) (Backend, error) {
	switch strings.ToLower(config.Type) {
	case TypeMemory, "":
		return NewMemory(config.Partitions), nil
	case TypeBadger:
		return OpenBadger(config.Dir, config.InMemory)
	case TypeBolt:
		return OpenBolt(config.Dir)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedBackend, config.Type)
	}
}
