// Package checkpoint records consistent snapshots of a job's stages and
// restores them. Operator state lives in a state.StateBackend; the manager
// keeps the index of the latest checkpoint per job and of named snapshots.
package checkpoint

import (
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"
	"github.com/tarungka/ministream/internal/logger"
	"github.com/tarungka/ministream/state"
	"github.com/tarungka/ministream/stream"
)

var ErrSnapshotNotFound = errors.New("snapshot not found")

// Checkpoint represents a checkpoint.
type Checkpoint struct {
	ID        int64
	Job       string
	Timestamp time.Time
	// Operators lists the stage ids whose state was saved.
	Operators []string
}

// Manager is responsible for creating and restoring checkpoints.
type Manager struct {
	backend state.StateBackend
	clock   clock.Clock
	logger  zerolog.Logger

	mu     sync.Mutex
	latest map[string]*Checkpoint
	named  map[string]*Checkpoint
}

// NewManager creates a new Manager. A nil clock means the wall clock.
func NewManager(backend state.StateBackend, clk clock.Clock) *Manager {
	if clk == nil {
		clk = clock.New()
	}
	return &Manager{
		backend: backend,
		clock:   clk,
		logger:  logger.GetLogger("checkpoint"),
		latest:  make(map[string]*Checkpoint),
		named:   make(map[string]*Checkpoint),
	}
}

func operatorKey(job, id string) string {
	return job + "/" + id
}

// Create saves the state of every snapshotter under checkpoint id and makes
// it the latest checkpoint of job. The previous latest checkpoint is dropped
// unless a named snapshot still refers to it.
func (m *Manager) Create(job string, id int64, snapshotters []stream.Snapshotter) (*Checkpoint, error) {
	cp := &Checkpoint{
		ID:        id,
		Job:       job,
		Timestamp: m.clock.Now().UTC(),
		Operators: make([]string, 0, len(snapshotters)),
	}

	for _, s := range snapshotters {
		if err := m.backend.Save(operatorKey(job, s.ID()), id, s.Snapshot()); err != nil {
			return nil, fmt.Errorf("saving state of %s for checkpoint %d: %w", s.ID(), id, err)
		}
		cp.Operators = append(cp.Operators, s.ID())
	}

	m.mu.Lock()
	prev := m.latest[job]
	m.latest[job] = cp
	m.mu.Unlock()

	if prev != nil && prev.ID != id {
		m.release(prev)
	}

	m.logger.Debug().
		Str("job", job).
		Int64("checkpoint", id).
		Int("operators", len(cp.Operators)).
		Msg("checkpoint created")
	return cp, nil
}

// Restore loads the state saved in cp into the snapshotters. Every
// snapshotter must have been part of cp.
func (m *Manager) Restore(cp *Checkpoint, snapshotters []stream.Snapshotter) error {
	for _, s := range snapshotters {
		st, err := m.backend.Load(operatorKey(cp.Job, s.ID()), cp.ID)
		if err != nil {
			return fmt.Errorf("loading state of %s from checkpoint %d: %w", s.ID(), cp.ID, err)
		}
		if err := s.Restore(st); err != nil {
			return fmt.Errorf("restoring %s: %w", s.ID(), err)
		}
	}
	m.logger.Info().
		Str("job", cp.Job).
		Int64("checkpoint", cp.ID).
		Msg("checkpoint restored")
	return nil
}

// Latest returns the most recent checkpoint of job.
func (m *Manager) Latest(job string) (*Checkpoint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp, ok := m.latest[job]
	if !ok {
		return nil, fmt.Errorf("%w: no checkpoint for job %s", ErrSnapshotNotFound, job)
	}
	return cp, nil
}

// Export stores cp under name, replacing any snapshot with that name.
func (m *Manager) Export(name string, cp *Checkpoint) error {
	if name == "" {
		return fmt.Errorf("snapshot name must not be empty")
	}
	m.mu.Lock()
	prev := m.named[name]
	m.named[name] = cp
	m.mu.Unlock()

	if prev != nil && prev != cp {
		m.release(prev)
	}
	m.logger.Info().
		Str("snapshot", name).
		Str("job", cp.Job).
		Int64("checkpoint", cp.ID).
		Msg("snapshot exported")
	return nil
}

// Named returns the snapshot exported under name.
func (m *Manager) Named(name string) (*Checkpoint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp, ok := m.named[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSnapshotNotFound, name)
	}
	return cp, nil
}

// Snapshots returns the names of every exported snapshot, sorted.
func (m *Manager) Snapshots() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.named))
	for name := range m.named {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// DeleteSnapshot removes the snapshot exported under name.
func (m *Manager) DeleteSnapshot(name string) error {
	m.mu.Lock()
	cp, ok := m.named[name]
	delete(m.named, name)
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrSnapshotNotFound, name)
	}
	m.release(cp)
	return nil
}

// release deletes the state of cp once neither the latest index nor a named
// snapshot refers to it.
func (m *Manager) release(cp *Checkpoint) {
	m.mu.Lock()
	inUse := m.latest[cp.Job] == cp
	for _, n := range m.named {
		if n == cp {
			inUse = true
			break
		}
	}
	m.mu.Unlock()
	if inUse {
		return
	}

	for _, id := range cp.Operators {
		if err := m.backend.Delete(operatorKey(cp.Job, id), cp.ID); err != nil {
			m.logger.Warn().Err(err).
				Str("job", cp.Job).
				Str("operator", id).
				Int64("checkpoint", cp.ID).
				Msg("failed to delete checkpoint state")
		}
	}
}
