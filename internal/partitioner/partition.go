package partitioner

import (
	"github.com/rs/zerolog"
	"github.com/tarungka/ministream/internal/logger"
)

const defaultPartitions = 16

type Partitioner[T any] struct {
	// Number of partitions
	partitions int
	// Hashing function
	hashFn func(T) (uint64, error)

	logger zerolog.Logger
}

type PartitionerOption[T any] func(*Partitioner[T])

// Partition returns the partition index for data, always in [0, Partitions()).
// A hashing error routes the value to partition 0 so callers never lose it.
func (p *Partitioner[T]) Partition(data T) int {
	hashedValue, err := p.hashFn(data)
	if err != nil {
		p.logger.Err(err).Msg("Error when hashing the value")
		return 0
	}
	return int(hashedValue % uint64(p.partitions))
}

// Partitions returns the configured partition count.
func (p *Partitioner[T]) Partitions() int {
	return p.partitions
}

func WithPartitions[T any](n int) PartitionerOption[T] {
	return func(p *Partitioner[T]) {
		if n > 0 {
			p.partitions = n
		}
	}
}

// NewPartitioner creates a partitioner using hashFn. Without options it
// splits into defaultPartitions partitions.
func NewPartitioner[T any](hashFn func(T) (uint64, error), opts ...PartitionerOption[T]) *Partitioner[T] {
	p := &Partitioner[T]{
		partitions: defaultPartitions,
		hashFn:     hashFn,
		logger:     logger.GetLogger("partitioner"),
	}

	// Apply any optional configurations
	for _, opt := range opts {
		opt(p)
	}

	return p
}
