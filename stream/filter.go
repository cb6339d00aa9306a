package stream

const (
	CounterPassed  = "passed"
	CounterDropped = "dropped"
	CounterMapped  = "mapped"
)

// Predicate decides whether an item continues down the chain.
type Predicate func(item Item) bool

// FilterOperator passes through the items its predicate accepts and drops
// the rest.
type FilterOperator struct {
	*BaseOperator
	predicate Predicate
}

// NewFilterOperator creates a new FilterOperator.
func NewFilterOperator(id string, predicate Predicate) *FilterOperator {
	return &FilterOperator{
		BaseOperator: NewBaseOperator(id),
		predicate:    predicate,
	}
}

// Process processes an item.
func (o *FilterOperator) Process(item Item) (Item, bool) {
	if !o.predicate(item) {
		o.incr(CounterDropped)
		return item, false
	}
	o.incr(CounterPassed)
	return item, true
}
