package stream

import "time"

// Item is a single record flowing through a pipeline. It is immutable once
// created.
type Item struct {
	sequence  int64
	timestamp time.Time
}

// NewItem creates an Item with the given sequence and generation timestamp.
func NewItem(sequence int64, timestamp time.Time) Item {
	return Item{sequence: sequence, timestamp: timestamp}
}

// Sequence returns the monotonically increasing sequence number of the item.
func (i Item) Sequence() int64 { return i.sequence }

// Timestamp returns the wall-clock instant the item was generated at.
func (i Item) Timestamp() time.Time { return i.timestamp }
