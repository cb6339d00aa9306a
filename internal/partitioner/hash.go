package partitioner

import (
	"hash/fnv"
)

// HashFnv hashes data with 64-bit FNV-1a.
func HashFnv(data []byte) (uint64, error) {
	h := fnv.New64a()
	if _, err := h.Write(data); err != nil {
		return 0, err
	}
	return h.Sum64(), nil
}
