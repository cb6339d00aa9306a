package stream

// State represents the checkpointable state of a stage.
type State map[string]int64

// Snapshotter is implemented by every stage whose state survives a
// checkpoint.
type Snapshotter interface {
	// ID returns the unique identifier of the stage.
	ID() string
	// Snapshot returns a copy of the current state.
	Snapshot() State
	// Restore replaces the current state.
	Restore(state State) error
}

// Operator is the base interface for all intermediate stream stages.
type Operator interface {
	Snapshotter
	// Process handles one item. When ok is false the item was dropped and
	// the chain ends for it.
	Process(item Item) (out Item, ok bool)
}
