package kv

import "errors"

var (
	// ErrStoreClosed is returned when the backend of a store has been closed.
	ErrStoreClosed = errors.New("store closed")

	// ErrKeyNotFound is returned by Get when the key does not exist.
	ErrKeyNotFound = errors.New("key not found")

	// ErrUnsupportedBackend is returned by Open for an unknown backend type.
	ErrUnsupportedBackend = errors.New("unsupported storage backend")

	// ErrInvalidNamespace is returned when a namespace name is empty.
	ErrInvalidNamespace = errors.New("invalid namespace")
)
