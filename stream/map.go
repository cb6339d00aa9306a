package stream

// MapFunction is a function that maps an item to another item.
type MapFunction func(item Item) Item

// MapOperator is an operator that applies a function to each item in the stream.
type MapOperator struct {
	*BaseOperator
	mapFn MapFunction
}

// NewMapOperator creates a new MapOperator.
func NewMapOperator(id string, mapFn MapFunction) *MapOperator {
	return &MapOperator{
		BaseOperator: NewBaseOperator(id),
		mapFn:        mapFn,
	}
}

// Process processes an item.
func (o *MapOperator) Process(item Item) (Item, bool) {
	o.incr(CounterMapped)
	return o.mapFn(item), true
}
