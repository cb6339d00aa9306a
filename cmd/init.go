package main

import (
	"fmt"
	"os"

	"github.com/tarungka/ministream/internal/config"
	"github.com/tarungka/ministream/internal/logger"
)

// initLogging configures the shared logger before any component asks for
// one. The returned func closes the log file, if any.
func initLogging(cfg config.LogConfig) (func(), error) {
	logger.SetDevelopment(cfg.Development)
	if err := logger.SetLevel(cfg.Level); err != nil {
		return nil, err
	}
	if cfg.File == "" {
		return func() {}, nil
	}

	// logs will be written to both the file and stderr
	logFile, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	logger.SetLogFile(logFile)
	return func() { logFile.Close() }, nil
}
