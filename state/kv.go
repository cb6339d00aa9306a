package state

import (
	"errors"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"
	"github.com/tarungka/ministream/internal/codec"
	"github.com/tarungka/ministream/internal/kv"
	"github.com/tarungka/ministream/internal/logger"
	"github.com/tarungka/ministream/stream"
)

// KVStateBackend stores operator state in a kv namespace. Each state is
// msgpack encoded and then compressed.
type KVStateBackend struct {
	store       kv.Store
	compression codec.CompressionType
	logger      zerolog.Logger
}

func NewKVStateBackend(store kv.Store, compression codec.CompressionType) *KVStateBackend {
	return &KVStateBackend{
		store:       store,
		compression: compression,
		logger:      logger.GetLogger("state"),
	}
}

// stateKey is the operator id, a zero byte, then the ordered checkpoint id.
func (b *KVStateBackend) stateKey(operatorID string, checkpointID int64) []byte {
	key := make([]byte, 0, len(operatorID)+9)
	key = append(key, operatorID...)
	key = append(key, 0)
	return append(key, codec.EncodeInt64Key(checkpointID)...)
}

func (b *KVStateBackend) Save(operatorID string, checkpointID int64, state stream.State) error {
	if state == nil {
		state = stream.State{}
	}
	buf, err := codec.EncodeMsgPack(map[string]int64(state))
	if err != nil {
		return fmt.Errorf("encoding state of %s: %w", operatorID, err)
	}
	data, err := codec.Compress(b.compression, buf.Bytes())
	if err != nil {
		return fmt.Errorf("compressing state of %s: %w", operatorID, err)
	}
	if err := b.store.Set(b.stateKey(operatorID, checkpointID), data); err != nil {
		return err
	}

	b.logger.Debug().
		Str("operator", operatorID).
		Int64("checkpoint", checkpointID).
		Str("compression", b.compression.String()).
		Str("size", humanize.Bytes(uint64(len(data)))).
		Msg("saved operator state")
	return nil
}

func (b *KVStateBackend) Load(operatorID string, checkpointID int64) (stream.State, error) {
	data, err := b.store.Get(b.stateKey(operatorID, checkpointID))
	if errors.Is(err, kv.ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: operator %s, checkpoint %d", ErrStateNotFound, operatorID, checkpointID)
	}
	if err != nil {
		return nil, err
	}
	raw, err := codec.Decompress(b.compression, data)
	if err != nil {
		return nil, fmt.Errorf("decompressing state of %s: %w", operatorID, err)
	}
	var state map[string]int64
	if err := codec.DecodeMsgPack(raw, &state); err != nil {
		return nil, fmt.Errorf("decoding state of %s: %w", operatorID, err)
	}
	if state == nil {
		state = map[string]int64{}
	}
	return stream.State(state), nil
}

func (b *KVStateBackend) Delete(operatorID string, checkpointID int64) error {
	return b.store.Delete(b.stateKey(operatorID, checkpointID))
}
