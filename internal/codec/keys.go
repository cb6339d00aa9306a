package codec

import (
	"encoding/binary"
	"errors"
)

// ErrInvalidKey is returned when a key does not have the encoded int64 width.
var ErrInvalidKey = errors.New("invalid int64 key")

// EncodeInt64Key encodes v as 8 big-endian bytes with the sign bit flipped,
// so the byte order of encoded keys matches the numeric order of v.
func EncodeInt64Key(v int64) []byte {
	buf := make([]byte, 8) // 8*8 = 64
	binary.BigEndian.PutUint64(buf, uint64(v)^(1<<63))
	return buf
}

// DecodeInt64Key reverses EncodeInt64Key.
func DecodeInt64Key(b []byte) (int64, error) {
	if len(b) != 8 {
		return 0, ErrInvalidKey
	}
	return int64(binary.BigEndian.Uint64(b) ^ (1 << 63)), nil
}
