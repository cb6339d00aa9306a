package codec

import (
	"bytes"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInt64Key_OrderPreserved(t *testing.T) {
	values := []int64{math.MinInt64, -42, -1, 0, 1, 2, 17, 1 << 40, math.MaxInt64}
	for i := 1; i < len(values); i++ {
		prev := EncodeInt64Key(values[i-1])
		cur := EncodeInt64Key(values[i])
		assert.Equal(t, -1, bytes.Compare(prev, cur), "%d should sort before %d", values[i-1], values[i])
	}

	for _, v := range values {
		got, err := DecodeInt64Key(EncodeInt64Key(v))
		require.NoError(t, err)
		assert.Equal(t, v, got)
	}
}

func TestDecodeInt64Key_InvalidWidth(t *testing.T) {
	_, err := DecodeInt64Key([]byte{0x01, 0x02})
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestParseCompressionType(t *testing.T) {
	tests := []struct {
		in      string
		want    CompressionType
		wantErr bool
	}{
		{in: "", want: CompressionNone},
		{in: "none", want: CompressionNone},
		{in: "Snappy", want: CompressionSnappy},
		{in: "zstd", want: CompressionZSTD},
		{in: "lz4", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseCompressionType(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCompress_ShrinksRepetitiveState(t *testing.T) {
	data := bytes.Repeat([]byte("passed=17;dropped=83;"), 200)
	for _, c := range []CompressionType{CompressionSnappy, CompressionZSTD} {
		t.Run(c.String(), func(t *testing.T) {
			compressed, err := Compress(c, data)
			require.NoError(t, err)
			assert.Less(t, len(compressed), len(data))

			restored, err := Decompress(c, compressed)
			require.NoError(t, err)
			assert.Equal(t, data, restored)
		})
	}
}

func TestMsgPack_Struct(t *testing.T) {
	type state struct {
		Next   int64
		Passed int64
	}
	buf, err := EncodeMsgPack(state{Next: 11, Passed: 4})
	require.NoError(t, err)

	var out state
	require.NoError(t, DecodeMsgPack(buf.Bytes(), &out))
	assert.Equal(t, state{Next: 11, Passed: 4}, out)
}
