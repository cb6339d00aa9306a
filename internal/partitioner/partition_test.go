package partitioner

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPartitioner_Range(t *testing.T) {
	p := NewPartitioner(HashFnv, WithPartitions[[]byte](7))
	assert.Equal(t, 7, p.Partitions())

	for i := 0; i < 1000; i++ {
		idx := p.Partition([]byte(fmt.Sprintf("key-%d", i)))
		assert.GreaterOrEqual(t, idx, 0)
		assert.Less(t, idx, 7)
	}
}

func TestPartitioner_Stable(t *testing.T) {
	p := NewPartitioner(HashFnv)
	assert.Equal(t, defaultPartitions, p.Partitions())

	key := []byte("sequence-17")
	assert.Equal(t, p.Partition(key), p.Partition(key))
}

func TestPartitioner_InvalidOptionKeepsDefault(t *testing.T) {
	p := NewPartitioner(HashFnv, WithPartitions[[]byte](0))
	assert.Equal(t, defaultPartitions, p.Partitions())
}

func TestPartitioner_HashErrorFallsBackToZero(t *testing.T) {
	failing := func(string) (uint64, error) { return 0, errors.New("boom") }
	p := NewPartitioner(failing, WithPartitions[string](4))
	assert.Equal(t, 0, p.Partition("anything"))
}
