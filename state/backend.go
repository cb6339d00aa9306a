package state

import (
	"errors"

	"github.com/tarungka/ministream/stream"
)

// ErrStateNotFound is returned by Load when nothing was saved for the
// operator and checkpoint.
var ErrStateNotFound = errors.New("state not found")

// StateBackend is an interface for storing and retrieving operator state.
type StateBackend interface {
	// Save saves the state of an operator.
	Save(operatorID string, checkpointID int64, state stream.State) error
	// Load loads the state of an operator.
	Load(operatorID string, checkpointID int64) (stream.State, error)
	// Delete drops the state of an operator for one checkpoint. Deleting a
	// missing state is not an error.
	Delete(operatorID string, checkpointID int64) error
}
