package engine

import (
	"context"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tarungka/ministream/checkpoint"
	"github.com/tarungka/ministream/stream"
)

func passAll(stream.Item) bool { return true }

func TestStatus_String(t *testing.T) {
	tests := map[Status]string{
		StatusNotRunning: "NOT_RUNNING",
		StatusStarting:   "STARTING",
		StatusRunning:    "RUNNING",
		StatusSuspended:  "SUSPENDED",
		StatusCompleting: "COMPLETING",
		StatusFailed:     "FAILED",
		StatusCompleted:  "COMPLETED",
	}
	for status, want := range tests {
		assert.Equal(t, want, status.String())
	}
	assert.True(t, StatusFailed.Terminal())
	assert.False(t, StatusSuspended.Terminal())
}

func TestJob_SuspendResumeContinuesSequence(t *testing.T) {
	ctx := context.Background()
	pc := newTestContext(t)
	m, err := pc.Map("seq")
	require.NoError(t, err)

	src := stream.NewGeneratorSource("gen", stream.GeneratorConfig{Interval: time.Millisecond})
	job, err := pc.Submit(ctx, "seq", stream.NewPipeline(src, stream.NewMapSink("sink", m, stream.SequenceTimestamp)))
	require.NoError(t, err)

	require.Eventually(t, func() bool { return job.Stats().Written >= 5 }, 5*time.Second, time.Millisecond)
	require.NoError(t, job.Suspend(ctx))
	assert.Equal(t, StatusSuspended, job.Status())
	assert.ErrorIs(t, job.Suspend(ctx), ErrInvalidTransition)

	n, err := m.Len()
	require.NoError(t, err)
	next, ok := job.scheduler.Position()
	require.True(t, ok)
	assert.Equal(t, int64(n), next)

	require.NoError(t, job.Resume(ctx))
	assert.ErrorIs(t, job.Resume(ctx), ErrInvalidTransition)
	require.Eventually(t, func() bool { return job.Stats().Written >= uint64(n)+5 }, 5*time.Second, time.Millisecond)

	require.NoError(t, job.Cancel())
	assert.Equal(t, StatusFailed, job.Status())
	assert.ErrorIs(t, job.Err(), ErrJobCancelled)
	assert.ErrorIs(t, job.Cancel(), ErrInvalidTransition)

	// No sequence was skipped across the suspension.
	keys, err := m.Keys()
	require.NoError(t, err)
	require.Greater(t, len(keys), n)
	for i, k := range keys {
		assert.Equal(t, int64(i), k)
	}
}

func TestJob_CancelSuspended(t *testing.T) {
	ctx := context.Background()
	pc := newTestContext(t)
	src := stream.NewGeneratorSource("gen", stream.GeneratorConfig{Interval: time.Millisecond})
	job, err := pc.Submit(ctx, "job", stream.NewPipeline(src, &recordingSink{}))
	require.NoError(t, err)

	require.NoError(t, job.Suspend(ctx))
	require.NoError(t, job.Cancel())
	assert.Equal(t, StatusFailed, job.Status())
	assert.ErrorIs(t, job.Wait(ctx), ErrJobCancelled)
}

func TestJob_ExportSnapshotAndStartFromIt(t *testing.T) {
	ctx := context.Background()
	pc := newTestContext(t)

	src := stream.NewGeneratorSource("gen", stream.GeneratorConfig{Interval: time.Millisecond})
	first, err := pc.Submit(ctx, "first", stream.NewPipeline(src, &recordingSink{}).Filter("all", passAll))
	require.NoError(t, err)
	require.Eventually(t, func() bool { return first.Stats().Written >= 3 }, 5*time.Second, time.Millisecond)

	cp, err := first.ExportSnapshot(ctx, "snap")
	require.NoError(t, err)
	assert.Equal(t, "first", cp.Job)
	require.NoError(t, first.Cancel())

	st, err := pc.stateBackend.Load("first/source-position", cp.ID)
	require.NoError(t, err)
	next := st["next"]
	require.GreaterOrEqual(t, next, int64(3))

	sink := &recordingSink{}
	filter := stream.NewFilterOperator("all", passAll)
	second, err := pc.Submit(ctx, "second",
		stream.NewPipeline(newSliceSource(0, next+3), sink).AddOperator(filter),
		WithInitialSnapshot("snap"))
	require.NoError(t, err)
	require.NoError(t, second.Wait(ctx))

	assert.Equal(t, []int64{next, next + 1, next + 2}, sink.sequences())
	assert.Equal(t, next+3, filter.Counter(stream.CounterPassed))
}

func TestJob_InitialSnapshotMissing(t *testing.T) {
	pc := newTestContext(t)
	_, err := pc.Submit(context.Background(), "job",
		stream.NewPipeline(newSliceSource(0, 1), &recordingSink{}),
		WithInitialSnapshot("nope"))
	assert.ErrorIs(t, err, checkpoint.ErrSnapshotNotFound)
}

func TestJob_ExportSnapshotWhenSuspended(t *testing.T) {
	ctx := context.Background()
	pc := newTestContext(t)
	src := stream.NewGeneratorSource("gen", stream.GeneratorConfig{Interval: time.Millisecond})
	job, err := pc.Submit(ctx, "job", stream.NewPipeline(src, &recordingSink{}))
	require.NoError(t, err)
	require.NoError(t, job.Suspend(ctx))

	cp, err := job.ExportSnapshot(ctx, "suspended")
	require.NoError(t, err)
	latest, err := pc.Checkpoints().Latest("job")
	require.NoError(t, err)
	assert.Same(t, latest, cp)
	assert.Equal(t, []string{"suspended"}, pc.Checkpoints().Snapshots())
}

func TestJob_ExportSnapshotWhenCompleted(t *testing.T) {
	ctx := context.Background()
	pc := newTestContext(t)
	job, err := pc.Submit(ctx, "job", stream.NewPipeline(newSliceSource(0, 3), &recordingSink{}))
	require.NoError(t, err)
	require.NoError(t, job.Wait(ctx))

	_, err = job.ExportSnapshot(ctx, "late")
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.ErrorIs(t, job.Suspend(ctx), ErrInvalidTransition)
}

func TestJob_PeriodicCheckpoints(t *testing.T) {
	ctx := context.Background()
	mock := clock.NewMock()
	pc := newTestContext(t, WithClock(mock))

	src := stream.NewGeneratorSource("gen", stream.GeneratorConfig{Interval: time.Millisecond})
	job, err := pc.Submit(ctx, "periodic", stream.NewPipeline(src, &recordingSink{}), WithCheckpointInterval(time.Second))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		mock.Add(time.Second)
		return job.Stats().Checkpoints > 0
	}, 5*time.Second, time.Millisecond)

	_, err = pc.Checkpoints().Latest("periodic")
	assert.NoError(t, err)
	require.NoError(t, job.Cancel())
}

func TestJob_SuspendBeforeFirstItemKeepsStart(t *testing.T) {
	ctx := context.Background()
	pc := newTestContext(t)
	m, err := pc.Map("early")
	require.NoError(t, err)

	src := stream.NewGeneratorSource("gen", stream.GeneratorConfig{Interval: 100 * time.Microsecond, Start: 5})
	job, err := pc.Submit(ctx, "early", stream.NewPipeline(src, stream.NewMapSink("sink", m, stream.SequenceTimestamp)))
	require.NoError(t, err)

	// The position is known before the loop has taken any item.
	next, ok := job.scheduler.Position()
	require.True(t, ok)
	assert.Equal(t, int64(5), next)

	require.NoError(t, job.Suspend(ctx))
	require.NoError(t, job.Resume(ctx))
	require.Eventually(t, func() bool { return job.Stats().Written >= 3 }, 5*time.Second, time.Millisecond)
	require.NoError(t, job.Cancel())

	keys, err := m.Keys()
	require.NoError(t, err)
	require.NotEmpty(t, keys)
	assert.Equal(t, int64(5), keys[0])
	for i, k := range keys {
		assert.Equal(t, int64(5+i), k)
	}
}

type closingSink struct {
	recordingSink
	closed bool
}

func (s *closingSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func TestPipelineContext_CloseCompletesSuspendedJob(t *testing.T) {
	ctx := context.Background()
	pc, err := NewPipelineContext(Config{})
	require.NoError(t, err)

	sink := &closingSink{}
	src := stream.NewGeneratorSource("gen", stream.GeneratorConfig{Interval: time.Millisecond})
	job, err := pc.Submit(ctx, "parked", stream.NewPipeline(src, sink))
	require.NoError(t, err)
	require.NoError(t, job.Suspend(ctx))

	require.NoError(t, pc.Close())
	assert.Equal(t, StatusCompleted, job.Status())
	assert.NoError(t, job.Err())

	sink.mu.Lock()
	defer sink.mu.Unlock()
	assert.True(t, sink.closed)
}
