package state

import (
	"fmt"
	"maps"
	"sync"

	"github.com/tarungka/ministream/stream"
)

type stateKey struct {
	operatorID   string
	checkpointID int64
}

// InMemoryStateBackend is an in-memory implementation of the StateBackend interface.
type InMemoryStateBackend struct {
	mu    sync.RWMutex
	state map[stateKey]stream.State
}

// NewInMemoryStateBackend creates a new InMemoryStateBackend.
func NewInMemoryStateBackend() *InMemoryStateBackend {
	return &InMemoryStateBackend{
		state: make(map[stateKey]stream.State),
	}
}

// Save saves a copy of the state of an operator.
func (b *InMemoryStateBackend) Save(operatorID string, checkpointID int64, state stream.State) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.state[stateKey{operatorID, checkpointID}] = maps.Clone(state)
	return nil
}

// Load loads a copy of the state of an operator.
func (b *InMemoryStateBackend) Load(operatorID string, checkpointID int64) (stream.State, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	state, ok := b.state[stateKey{operatorID, checkpointID}]
	if !ok {
		return nil, fmt.Errorf("%w: operator %s, checkpoint %d", ErrStateNotFound, operatorID, checkpointID)
	}
	if state == nil {
		return stream.State{}, nil
	}
	return maps.Clone(state), nil
}

func (b *InMemoryStateBackend) Delete(operatorID string, checkpointID int64) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.state, stateKey{operatorID, checkpointID})
	return nil
}
