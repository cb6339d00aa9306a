package sinks

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/tarungka/ministream/internal/logger"
	"github.com/tarungka/ministream/stream"
)

// FileSink appends one JSON line per item to a file.
type FileSink struct {
	id     string
	kv     stream.KeyValueFunc
	logger zerolog.Logger

	// File details
	filePath string
	mu       sync.Mutex
	file     *os.File
	encoder  *json.Encoder
}

type fileRecord struct {
	Key   int64     `json:"key"`
	Value time.Time `json:"value"`
}

// NewFileSink opens filePath for appending, creating parent directories as
// needed.
func NewFileSink(id, filePath string, kv stream.KeyValueFunc) (*FileSink, error) {
	if filePath == "" {
		return nil, fmt.Errorf("missing file_path")
	}
	f := &FileSink{
		id:       id,
		kv:       kv,
		filePath: filePath,
		logger:   logger.GetLogger("file-sink").With().Str("file_path", filePath).Logger(),
	}
	if err := f.connect(); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *FileSink) connect() error {
	f.logger.Trace().Msg("Preparing to open file for writing")

	// Ensure parent directory exists
	dir := filepath.Dir(f.filePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		f.logger.Err(err).Str("directory", dir).Msg("Failed to create parent directories")
		return fmt.Errorf("failed to create parent directories: %w", err)
	}

	// Warn if the file already exists
	if _, err := os.Stat(f.filePath); err == nil {
		f.logger.Warn().Msg("File already exists; appending to it")
	}

	file, err := os.OpenFile(f.filePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		f.logger.Err(err).Msg("Failed to open file")
		return fmt.Errorf("failed to open file: %w", err)
	}

	f.file = file
	f.encoder = json.NewEncoder(file)
	return nil
}

func (f *FileSink) ID() string { return f.id }

// Write appends the item as a single JSON line.
func (f *FileSink) Write(ctx context.Context, item stream.Item) error {
	key, value := f.kv(item)

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.file == nil {
		return os.ErrClosed
	}
	if err := f.encoder.Encode(fileRecord{Key: key, Value: value}); err != nil {
		f.logger.Err(err).Msg("Failed to write to file")
		return err
	}
	return nil
}

func (f *FileSink) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.file == nil {
		return nil
	}
	f.logger.Info().Msg("Closing file sink")
	err := f.file.Close()
	f.file = nil
	if err != nil {
		f.logger.Err(err).Msg("Failed to close file")
		return err
	}
	return nil
}
