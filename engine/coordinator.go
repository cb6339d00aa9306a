package engine

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"
	"github.com/tarungka/ministream/internal/logger"
)

// CheckpointCoordinator is responsible for triggering periodic checkpoints.
type CheckpointCoordinator struct {
	interval time.Duration
	clock    clock.Clock
	trigger  func(ctx context.Context) error
	logger   zerolog.Logger
}

// NewCheckpointCoordinator creates a new CheckpointCoordinator.
func NewCheckpointCoordinator(interval time.Duration, clk clock.Clock, trigger func(ctx context.Context) error) *CheckpointCoordinator {
	return &CheckpointCoordinator{
		interval: interval,
		clock:    clk,
		trigger:  trigger,
		logger:   logger.GetLogger("checkpoint-coordinator"),
	}
}

// Start calls trigger once per interval until ctx is done. A failed
// checkpoint is logged and the next tick tries again.
func (c *CheckpointCoordinator) Start(ctx context.Context) {
	if c.interval <= 0 {
		return
	}
	ticker := c.clock.Ticker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := c.trigger(ctx); err != nil && ctx.Err() == nil {
				c.logger.Warn().Err(err).Msg("periodic checkpoint failed")
			}
		case <-ctx.Done():
			return
		}
	}
}
