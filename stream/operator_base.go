package stream

import "sync"

// BaseOperator is a base struct for all stream operators. It holds the
// operator id and a counter state that is safe to snapshot while the
// scheduler runs.
type BaseOperator struct {
	// The unique identifier of the operator.
	id string

	mu sync.Mutex
	// The state of the operator.
	state State
}

// NewBaseOperator creates a new BaseOperator.
func NewBaseOperator(id string) *BaseOperator {
	return &BaseOperator{
		id:    id,
		state: make(State),
	}
}

// ID returns the unique identifier of the operator.
func (o *BaseOperator) ID() string {
	return o.id
}

// Process passes the item through unchanged.
func (o *BaseOperator) Process(item Item) (Item, bool) {
	return item, true
}

// Snapshot snapshots the state of the operator.
func (o *BaseOperator) Snapshot() State {
	o.mu.Lock()
	defer o.mu.Unlock()

	out := make(State, len(o.state))
	for k, v := range o.state {
		out[k] = v
	}
	return out
}

// Restore restores the state of the operator.
func (o *BaseOperator) Restore(state State) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.state = make(State, len(state))
	for k, v := range state {
		o.state[k] = v
	}
	return nil
}

// Counter returns the value of a state counter.
func (o *BaseOperator) Counter(name string) int64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state[name]
}

func (o *BaseOperator) incr(name string) {
	o.mu.Lock()
	o.state[name]++
	o.mu.Unlock()
}
