package codec

import (
	"fmt"
	"strings"
	"sync"

	"github.com/klauspost/compress/snappy"
	"github.com/klauspost/compress/zstd"
)

// CompressionType defines the type of compression applied to encoded state.
type CompressionType int

const (
	// CompressionNone indicates no compression.
	CompressionNone CompressionType = iota
	// CompressionSnappy indicates Snappy compression.
	CompressionSnappy
	// CompressionZSTD indicates Zstandard compression.
	CompressionZSTD
)

func (c CompressionType) String() string {
	switch c {
	case CompressionSnappy:
		return "snappy"
	case CompressionZSTD:
		return "zstd"
	default:
		return "none"
	}
}

// ParseCompressionType converts a string representation of compression type
// into the CompressionType enum.
func ParseCompressionType(t string) (CompressionType, error) {
	switch strings.ToLower(t) {
	case "none", "": // Default to none
		return CompressionNone, nil
	case "snappy":
		return CompressionSnappy, nil
	case "zstd":
		return CompressionZSTD, nil
	default:
		return CompressionNone, fmt.Errorf("unsupported compression type: %s", t)
	}
}

// The zstd encoder and decoder are safe for concurrent EncodeAll/DecodeAll
// calls, so one of each is shared by the process.
var (
	zstdEncoder = sync.OnceValues(func() (*zstd.Encoder, error) { return zstd.NewWriter(nil) })
	zstdDecoder = sync.OnceValues(func() (*zstd.Decoder, error) { return zstd.NewReader(nil) })
)

// Compress applies compression c to data.
func Compress(c CompressionType, data []byte) ([]byte, error) {
	switch c {
	case CompressionSnappy:
		return snappy.Encode(nil, data), nil
	case CompressionZSTD:
		encoder, err := zstdEncoder()
		if err != nil {
			return nil, err
		}
		return encoder.EncodeAll(data, nil), nil
	default:
		return data, nil
	}
}

// Decompress reverses Compress for the same compression type.
func Decompress(c CompressionType, data []byte) ([]byte, error) {
	switch c {
	case CompressionSnappy:
		return snappy.Decode(nil, data)
	case CompressionZSTD:
		decoder, err := zstdDecoder()
		if err != nil {
			return nil, err
		}
		return decoder.DecodeAll(data, nil)
	default:
		return data, nil
	}
}
