package engine

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"
	"github.com/tarungka/ministream/internal/logger"
	"github.com/tarungka/ministream/stream"
)

const positionKey = "next"

// errStopped is returned by Run when a barrier asked the loop to stop.
var errStopped = errors.New("scheduler stopped by barrier")

// ErrSchedulerNotRunning is returned by Barrier when no Run loop accepts it.
var ErrSchedulerNotRunning = errors.New("scheduler not running")

// positioner is implemented by sources that report the sequence they will
// emit next.
type positioner interface {
	Next() int64
}

type barrier struct {
	fn   func() error
	stop bool
	done chan error
}

// Scheduler drives a pipeline with a single cooperative loop: it pulls one
// item from the source, pushes it through every operator and into the sink,
// and only then pulls the next. Barriers run between two items.
//
// The scheduler is also a stream.Snapshotter: its state is the sequence the
// source must continue from after a restore.
type Scheduler struct {
	pipeline *stream.Pipeline
	stats    *Stats
	logger   zerolog.Logger

	barriers chan barrier

	mu       sync.Mutex
	next     int64
	hasNext  bool
	running  bool
	loopDone chan struct{}
}

func NewScheduler(p *stream.Pipeline, stats *Stats) *Scheduler {
	if stats == nil {
		stats = &Stats{}
	}
	return &Scheduler{
		pipeline: p,
		stats:    stats,
		logger:   logger.GetLogger("scheduler"),
		barriers: make(chan barrier),
	}
}

// Run processes items until ctx is cancelled, the source is exhausted or the
// sink fails. Exhaustion returns nil; cancellation returns ctx.Err().
func (s *Scheduler) Run(ctx context.Context) error {
	if err := s.begin(); err != nil {
		return err
	}
	return s.loop(ctx)
}

// begin marks the scheduler as running so barriers are accepted before the
// loop goroutine is scheduled. It must be followed by loop.
func (s *Scheduler) begin() error {
	if err := s.pipeline.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return errors.New("scheduler already running")
	}
	s.running = true
	s.loopDone = make(chan struct{})

	// A checkpoint taken before the first item resumes at the source start.
	if !s.hasNext {
		if p, ok := s.pipeline.Source().(positioner); ok {
			s.next, s.hasNext = p.Next(), true
		}
	}
	return nil
}

func (s *Scheduler) loop(ctx context.Context) error {
	s.mu.Lock()
	loopDone := s.loopDone
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		close(loopDone)
		s.mu.Unlock()
	}()

	src := s.pipeline.Source()
	items, err := src.Open(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := src.Close(); err != nil {
			s.logger.Warn().Err(err).Str("source", src.ID()).Msg("failed to close source")
		}
	}()

	s.logger.Info().Str("pipeline", s.pipeline.Show()).Msg("scheduler started")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case b := <-s.barriers:
			err := b.fn()
			b.done <- err
			if b.stop && err == nil {
				return errStopped
			}

		case item, ok := <-items:
			if !ok {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				s.logger.Info().Msg("source exhausted")
				return nil
			}
			if err := s.process(ctx, item); err != nil {
				return err
			}
		}
	}
}

func (s *Scheduler) process(ctx context.Context, item stream.Item) error {
	s.stats.recordRead()
	written, err := s.pipeline.Process(ctx, item)
	if err != nil {
		return err
	}
	if written {
		s.stats.recordWritten(item.Timestamp())
	} else {
		s.stats.recordFiltered()
	}

	s.mu.Lock()
	s.next = item.Sequence() + 1
	s.hasNext = true
	s.mu.Unlock()

	s.logger.Trace().
		Int64("sequence", item.Sequence()).
		Bool("written", written).
		Msg("item processed")
	return nil
}

// Barrier runs fn on the loop between two items. With stop set and fn
// succeeding, the loop returns after fn.
func (s *Scheduler) Barrier(ctx context.Context, fn func() error, stop bool) error {
	s.mu.Lock()
	running, loopDone := s.running, s.loopDone
	s.mu.Unlock()
	if !running {
		return ErrSchedulerNotRunning
	}

	b := barrier{fn: fn, stop: stop, done: make(chan error, 1)}
	select {
	case s.barriers <- b:
	case <-loopDone:
		return ErrSchedulerNotRunning
	case <-ctx.Done():
		return ctx.Err()
	}
	return <-b.done
}

// Position returns the sequence the source continues from, and false when
// no item has been processed or restored yet.
func (s *Scheduler) Position() (int64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.next, s.hasNext
}

func (s *Scheduler) ID() string { return "source-position" }

func (s *Scheduler) Snapshot() stream.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.hasNext {
		return stream.State{}
	}
	return stream.State{positionKey: s.next}
}

// Restore repositions the source at the saved sequence.
func (s *Scheduler) Restore(state stream.State) error {
	next, ok := state[positionKey]
	if !ok {
		return nil
	}
	seeker, ok := s.pipeline.Source().(stream.Seeker)
	if !ok {
		return errors.New("source does not support seeking")
	}
	seeker.SeekTo(next)

	s.mu.Lock()
	s.next, s.hasNext = next, true
	s.mu.Unlock()
	return nil
}
