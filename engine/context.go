// Package engine runs pipelines. A PipelineContext owns the storage of the
// sink maps and checkpoints and every job submitted to it; a Job drives its
// pipeline with a Scheduler.
package engine

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"
	"github.com/tarungka/ministream/checkpoint"
	"github.com/tarungka/ministream/internal/codec"
	"github.com/tarungka/ministream/internal/kv"
	"github.com/tarungka/ministream/internal/logger"
	"github.com/tarungka/ministream/sinks"
	"github.com/tarungka/ministream/state"
	"github.com/tarungka/ministream/stream"
)

var ErrContextClosed = errors.New("pipeline context closed")

const (
	mapNamespacePrefix = "map/"
	stateNamespace     = "__state"
)

type CheckpointConfig struct {
	// Interval between periodic checkpoints. Zero disables them.
	Interval time.Duration `koanf:"interval" json:"interval"`
	// Compression of saved state: "none", "snappy" or "zstd".
	Compression string `koanf:"compression" json:"compression"`
}

type Config struct {
	Storage    kv.Config        `koanf:"storage" json:"storage"`
	Checkpoint CheckpointConfig `koanf:"checkpoint" json:"checkpoint"`
}

type Option func(*PipelineContext)

// WithClock sets the clock used for checkpoint timestamps and periodic
// checkpoints.
func WithClock(clk clock.Clock) Option {
	return func(p *PipelineContext) { p.clock = clk }
}

// WithStateBackend replaces the kv-backed checkpoint state backend.
func WithStateBackend(b state.StateBackend) Option {
	return func(p *PipelineContext) { p.stateBackend = b }
}

// PipelineContext holds the sink maps, the checkpoint manager and the jobs of
// one process. It replaces any process-wide instance: callers create one and
// pass it where it is needed.
type PipelineContext struct {
	config       Config
	clock        clock.Clock
	backend      kv.Backend
	stateBackend state.StateBackend
	checkpoints  *checkpoint.Manager
	logger       zerolog.Logger

	mu     sync.Mutex
	closed bool
	maps   map[string]*sinks.MapStore
	jobs   map[string]*Job
}

// NewPipelineContext opens the storage backend selected by cfg.
func NewPipelineContext(cfg Config, opts ...Option) (*PipelineContext, error) {
	p := &PipelineContext{
		config: cfg,
		clock:  clock.New(),
		logger: logger.GetLogger("pipeline-context"),
		maps:   make(map[string]*sinks.MapStore),
		jobs:   make(map[string]*Job),
	}
	for _, opt := range opts {
		opt(p)
	}

	compression, err := codec.ParseCompressionType(cfg.Checkpoint.Compression)
	if err != nil {
		return nil, err
	}

	backend, err := kv.Open(cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("opening %s storage: %w", cfg.Storage.Type, err)
	}
	p.backend = backend

	if p.stateBackend == nil {
		ns, err := backend.Namespace(stateNamespace)
		if err != nil {
			backend.Close()
			return nil, err
		}
		p.stateBackend = state.NewKVStateBackend(ns, compression)
	}
	p.checkpoints = checkpoint.NewManager(p.stateBackend, p.clock)

	p.logger.Info().
		Str("storage", backend.Type()).
		Str("compression", compression.String()).
		Dur("checkpoint_interval", cfg.Checkpoint.Interval).
		Msg("pipeline context ready")
	return p, nil
}

// Checkpoints returns the checkpoint manager shared by every job.
func (p *PipelineContext) Checkpoints() *checkpoint.Manager {
	return p.checkpoints
}

// Map returns the sink map called name, creating it on first use.
func (p *PipelineContext) Map(name string) (*sinks.MapStore, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, ErrContextClosed
	}
	if m, ok := p.maps[name]; ok {
		return m, nil
	}
	ns, err := p.backend.Namespace(mapNamespacePrefix + name)
	if err != nil {
		return nil, fmt.Errorf("opening map %s: %w", name, err)
	}
	m := sinks.NewMapStore(name, ns)
	p.maps[name] = m
	return m, nil
}

// Submit registers pipeline as a job called name and starts it. The job
// runs until ctx is done, the source is exhausted or the job is stopped.
func (p *PipelineContext) Submit(ctx context.Context, name string, pipeline *stream.Pipeline, opts ...JobOption) (*Job, error) {
	if err := pipeline.Validate(); err != nil {
		return nil, err
	}

	o := jobOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	if !o.intervalSet {
		o.checkpointInterval = p.config.Checkpoint.Interval
	}

	var initial *checkpoint.Checkpoint
	if o.initialSnapshot != "" {
		cp, err := p.checkpoints.Named(o.initialSnapshot)
		if err != nil {
			return nil, err
		}
		initial = cp
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrContextClosed
	}
	if _, ok := p.jobs[name]; ok {
		p.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrJobExists, name)
	}
	job, err := newJob(name, pipeline, p.checkpoints, p.clock, o)
	if err != nil {
		p.mu.Unlock()
		return nil, err
	}
	p.jobs[name] = job
	p.mu.Unlock()

	if err := job.start(ctx, initial); err != nil {
		return job, err
	}
	return job, nil
}

// Job finds a job by name or by id.
func (p *PipelineContext) Job(nameOrID string) (*Job, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if j, ok := p.jobs[nameOrID]; ok {
		return j, nil
	}
	for _, j := range p.jobs {
		if j.ID().String() == nameOrID {
			return j, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrJobNotFound, nameOrID)
}

// Jobs returns every job in submission order.
func (p *PipelineContext) Jobs() []*Job {
	p.mu.Lock()
	jobs := make([]*Job, 0, len(p.jobs))
	for _, j := range p.jobs {
		jobs = append(jobs, j)
	}
	p.mu.Unlock()

	// v7 ids sort by creation time.
	slices.SortFunc(jobs, func(a, b *Job) int {
		ai, bi := a.ID(), b.ID()
		return slices.Compare(ai[:], bi[:])
	})
	return jobs
}

// Close stops every job, waits for them and closes the storage. Running and
// suspended jobs end COMPLETED with their sinks closed.
// The sink maps are unusable afterwards.
func (p *PipelineContext) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	jobs := make([]*Job, 0, len(p.jobs))
	for _, j := range p.jobs {
		jobs = append(jobs, j)
	}
	p.mu.Unlock()

	for _, j := range jobs {
		j.stop(ErrContextClosed)
	}
	p.logger.Info().Int("jobs", len(jobs)).Msg("pipeline context closed")
	return p.backend.Close()
}
