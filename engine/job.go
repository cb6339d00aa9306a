package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/tarungka/ministream/checkpoint"
	"github.com/tarungka/ministream/internal/logger"
	"github.com/tarungka/ministream/stream"
	"golang.org/x/sync/errgroup"
)

var (
	ErrJobNotFound       = errors.New("job not found")
	ErrJobExists         = errors.New("job already exists")
	ErrJobCancelled      = errors.New("job cancelled")
	ErrInvalidTransition = errors.New("invalid job state transition")
)

type Status int

const (
	StatusNotRunning Status = iota
	StatusStarting
	StatusRunning
	StatusSuspended
	StatusCompleting
	StatusFailed
	StatusCompleted
)

func (s Status) String() string {
	switch s {
	case StatusNotRunning:
		return "NOT_RUNNING"
	case StatusStarting:
		return "STARTING"
	case StatusRunning:
		return "RUNNING"
	case StatusSuspended:
		return "SUSPENDED"
	case StatusCompleting:
		return "COMPLETING"
	case StatusFailed:
		return "FAILED"
	case StatusCompleted:
		return "COMPLETED"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// Terminal reports whether the job can no longer change state.
func (s Status) Terminal() bool {
	return s == StatusFailed || s == StatusCompleted
}

type JobOption func(*jobOptions)

type jobOptions struct {
	initialSnapshot    string
	checkpointInterval time.Duration
	intervalSet        bool
}

// WithInitialSnapshot starts the job from the named exported snapshot.
func WithInitialSnapshot(name string) JobOption {
	return func(o *jobOptions) { o.initialSnapshot = name }
}

// WithCheckpointInterval overrides the periodic checkpoint interval of the
// context. Zero disables periodic checkpoints.
func WithCheckpointInterval(d time.Duration) JobOption {
	return func(o *jobOptions) {
		o.checkpointInterval = d
		o.intervalSet = true
	}
}

// Job is one submitted pipeline and its lifecycle.
type Job struct {
	id          uuid.UUID
	name        string
	submittedAt time.Time
	pipeline    *stream.Pipeline
	scheduler   *Scheduler
	manager     *checkpoint.Manager
	clock       clock.Clock
	stats       *Stats
	opts        jobOptions
	logger      zerolog.Logger

	mu           sync.Mutex
	status       Status
	err          error
	cancel       context.CancelCauseFunc
	done         chan struct{}
	checkpointID int64
}

func newJob(name string, p *stream.Pipeline, manager *checkpoint.Manager, clk clock.Clock, opts jobOptions) (*Job, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generating job id: %w", err)
	}
	stats := &Stats{}
	done := make(chan struct{})
	close(done)
	return &Job{
		id:          id,
		name:        name,
		submittedAt: clk.Now().UTC(),
		pipeline:    p,
		scheduler:   NewScheduler(p, stats),
		manager:     manager,
		clock:       clk,
		stats:       stats,
		opts:        opts,
		logger:      logger.GetLogger("job").With().Str("job", name).Str("job_id", id.String()).Logger(),
		status:      StatusNotRunning,
		done:        done,
	}, nil
}

func (j *Job) ID() uuid.UUID { return j.id }

func (j *Job) Name() string { return j.name }

func (j *Job) SubmittedAt() time.Time { return j.submittedAt }

func (j *Job) Pipeline() *stream.Pipeline { return j.pipeline }

func (j *Job) Stats() JobStats { return j.stats.Snapshot() }

func (j *Job) Status() Status {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.status
}

// Err returns the error the job failed with, nil unless it is FAILED.
func (j *Job) Err() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.err
}

func (j *Job) snapshotters() []stream.Snapshotter {
	return append(j.pipeline.Snapshotters(), j.scheduler)
}

// start restores from cp, if any, and launches a run with ctx as parent.
func (j *Job) start(ctx context.Context, cp *checkpoint.Checkpoint) error {
	j.mu.Lock()
	switch j.status {
	case StatusNotRunning, StatusSuspended:
	default:
		status := j.status
		j.mu.Unlock()
		return fmt.Errorf("%w: cannot start job in state %s", ErrInvalidTransition, status)
	}
	j.status = StatusStarting
	j.mu.Unlock()

	if cp != nil {
		if err := j.manager.Restore(cp, j.snapshotters()); err != nil {
			j.fail(err)
			return err
		}
		j.mu.Lock()
		if cp.Job == j.name && cp.ID > j.checkpointID {
			j.checkpointID = cp.ID
		}
		j.mu.Unlock()
	}

	if err := j.scheduler.begin(); err != nil {
		j.fail(err)
		return err
	}

	runCtx, cancel := context.WithCancelCause(ctx)
	done := make(chan struct{})

	j.mu.Lock()
	j.cancel = cancel
	j.done = done
	j.status = StatusRunning
	j.mu.Unlock()

	j.logger.Info().Str("pipeline", j.pipeline.Show()).Msg("job running")
	go j.run(runCtx, cancel, done)
	return nil
}

func (j *Job) run(ctx context.Context, cancel context.CancelCauseFunc, done chan struct{}) {
	defer close(done)

	interval := j.opts.checkpointInterval
	g, gctx := errgroup.WithContext(ctx)
	coordCtx, stopCoordinator := context.WithCancel(gctx)
	defer stopCoordinator()

	g.Go(func() error {
		defer stopCoordinator()
		return j.scheduler.loop(gctx)
	})
	if interval > 0 {
		coordinator := NewCheckpointCoordinator(interval, j.clock, j.Checkpoint)
		g.Go(func() error {
			coordinator.Start(coordCtx)
			return nil
		})
	}

	err := g.Wait()
	cause := context.Cause(ctx)
	cancel(nil)
	j.finish(err, cause)
}

// finish maps the result of a run onto the job status.
func (j *Job) finish(err, cause error) {
	switch {
	case errors.Is(err, errStopped):
		j.setStatus(StatusSuspended, nil)
		j.logger.Info().Msg("job suspended")

	case errors.Is(cause, ErrJobCancelled):
		j.closeSink()
		j.setStatus(StatusFailed, ErrJobCancelled)
		j.logger.Info().Msg("job cancelled")

	case err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		// Exhaustion or shutdown.
		j.setStatus(StatusCompleting, nil)
		j.closeSink()
		j.setStatus(StatusCompleted, nil)
		j.logger.Info().Interface("stats", j.stats.Snapshot()).Msg("job completed")

	default:
		j.closeSink()
		j.setStatus(StatusFailed, err)
		j.logger.Error().Err(err).Msg("job failed")
	}
}

func (j *Job) fail(err error) {
	j.closeSink()
	j.setStatus(StatusFailed, err)
	j.logger.Error().Err(err).Msg("job failed")
}

func (j *Job) closeSink() {
	if err := j.pipeline.Sink().Close(); err != nil {
		j.logger.Warn().Err(err).Msg("failed to close sink")
	}
}

func (j *Job) setStatus(s Status, err error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.status = s
	j.err = err
}

func (j *Job) nextCheckpointID() int64 {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.checkpointID++
	return j.checkpointID
}

// takeCheckpoint must run on the scheduler loop or while no run is active.
func (j *Job) takeCheckpoint() (*checkpoint.Checkpoint, error) {
	cp, err := j.manager.Create(j.name, j.nextCheckpointID(), j.snapshotters())
	if err != nil {
		return nil, err
	}
	j.stats.recordCheckpoint()
	return cp, nil
}

// Checkpoint takes a checkpoint between two items of the running job.
func (j *Job) Checkpoint(ctx context.Context) error {
	_, err := j.checkpointOnLoop(ctx, false)
	return err
}

func (j *Job) checkpointOnLoop(ctx context.Context, stop bool) (*checkpoint.Checkpoint, error) {
	var cp *checkpoint.Checkpoint
	err := j.scheduler.Barrier(ctx, func() error {
		var err error
		cp, err = j.takeCheckpoint()
		return err
	}, stop)
	if errors.Is(err, ErrSchedulerNotRunning) {
		return nil, fmt.Errorf("%w: job %s is %s", ErrInvalidTransition, j.name, j.Status())
	}
	return cp, err
}

// Suspend takes a checkpoint and stops the job. Resume continues from it.
func (j *Job) Suspend(ctx context.Context) error {
	if s := j.Status(); s != StatusRunning {
		return fmt.Errorf("%w: cannot suspend job in state %s", ErrInvalidTransition, s)
	}
	if _, err := j.checkpointOnLoop(ctx, true); err != nil {
		return err
	}
	return j.Wait(ctx)
}

// Resume restarts a suspended job from its latest checkpoint.
func (j *Job) Resume(ctx context.Context) error {
	if s := j.Status(); s != StatusSuspended {
		return fmt.Errorf("%w: cannot resume job in state %s", ErrInvalidTransition, s)
	}
	cp, err := j.manager.Latest(j.name)
	if err != nil && !errors.Is(err, checkpoint.ErrSnapshotNotFound) {
		return err
	}
	return j.start(ctx, cp)
}

// Cancel stops the job and marks it FAILED with ErrJobCancelled.
func (j *Job) Cancel() error {
	j.mu.Lock()
	status := j.status
	cancel := j.cancel
	done := j.done
	j.mu.Unlock()

	switch status {
	case StatusRunning:
		cancel(ErrJobCancelled)
		<-done
		return nil
	case StatusNotRunning, StatusSuspended:
		j.closeSink()
		j.setStatus(StatusFailed, ErrJobCancelled)
		j.logger.Info().Msg("job cancelled")
		return nil
	default:
		return fmt.Errorf("%w: cannot cancel job in state %s", ErrInvalidTransition, status)
	}
}

// stop ends the job as a shutdown, which completes it. A job that is not
// running, such as a suspended one, is completed and its sink closed.
func (j *Job) stop(cause error) {
	j.mu.Lock()
	cancel, done := j.cancel, j.done
	j.mu.Unlock()
	if cancel != nil {
		cancel(cause)
	}
	<-done

	switch j.Status() {
	case StatusNotRunning, StatusSuspended:
		j.closeSink()
		j.setStatus(StatusCompleted, nil)
		j.logger.Info().Msg("job completed on shutdown")
	}
}

// ExportSnapshot stores a checkpoint of the job under name. A running job
// takes a new checkpoint; a suspended job exports its latest one.
func (j *Job) ExportSnapshot(ctx context.Context, name string) (*checkpoint.Checkpoint, error) {
	var (
		cp  *checkpoint.Checkpoint
		err error
	)
	switch s := j.Status(); s {
	case StatusRunning:
		cp, err = j.checkpointOnLoop(ctx, false)
	case StatusSuspended:
		cp, err = j.manager.Latest(j.name)
	default:
		return nil, fmt.Errorf("%w: cannot export snapshot of job in state %s", ErrInvalidTransition, s)
	}
	if err != nil {
		return nil, err
	}
	if err := j.manager.Export(name, cp); err != nil {
		return nil, err
	}
	return cp, nil
}

// Wait blocks until the current run ends, then returns the job error.
func (j *Job) Wait(ctx context.Context) error {
	j.mu.Lock()
	done := j.done
	j.mu.Unlock()

	select {
	case <-done:
		return j.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}
