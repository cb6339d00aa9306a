package checkpoint

import (
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tarungka/ministream/state"
	"github.com/tarungka/ministream/stream"
)

type counter struct {
	id string
	n  int64
}

func (c *counter) ID() string { return c.id }

func (c *counter) Snapshot() stream.State { return stream.State{"n": c.n} }

func (c *counter) Restore(st stream.State) error {
	c.n = st["n"]
	return nil
}

func newTestManager(t *testing.T) (*Manager, *state.InMemoryStateBackend, *clock.Mock) {
	t.Helper()
	mock := clock.NewMock()
	mock.Set(time.Unix(1000, 0))
	backend := state.NewInMemoryStateBackend()
	return NewManager(backend, mock), backend, mock
}

func TestManager_CreateRestore(t *testing.T) {
	m, _, _ := newTestManager(t)
	a := &counter{id: "a", n: 3}
	b := &counter{id: "b", n: 7}

	cp, err := m.Create("job", 1, []stream.Snapshotter{a, b})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, cp.Operators)
	assert.WithinDuration(t, time.Unix(1000, 0), cp.Timestamp, 0)

	a.n, b.n = 100, 200
	require.NoError(t, m.Restore(cp, []stream.Snapshotter{a, b}))
	assert.Equal(t, int64(3), a.n)
	assert.Equal(t, int64(7), b.n)
}

func TestManager_RestoreUnknownStage(t *testing.T) {
	m, _, _ := newTestManager(t)
	cp, err := m.Create("job", 1, []stream.Snapshotter{&counter{id: "a"}})
	require.NoError(t, err)

	err = m.Restore(cp, []stream.Snapshotter{&counter{id: "other"}})
	assert.ErrorIs(t, err, state.ErrStateNotFound)
}

func TestManager_LatestReleasesPrevious(t *testing.T) {
	m, backend, _ := newTestManager(t)
	a := &counter{id: "a", n: 1}

	_, err := m.Latest("job")
	assert.ErrorIs(t, err, ErrSnapshotNotFound)

	_, err = m.Create("job", 1, []stream.Snapshotter{a})
	require.NoError(t, err)
	a.n = 2
	cp2, err := m.Create("job", 2, []stream.Snapshotter{a})
	require.NoError(t, err)

	latest, err := m.Latest("job")
	require.NoError(t, err)
	assert.Same(t, cp2, latest)

	_, err = backend.Load("job/a", 1)
	assert.ErrorIs(t, err, state.ErrStateNotFound)
}

func TestManager_NamedSnapshotSurvives(t *testing.T) {
	m, backend, _ := newTestManager(t)
	a := &counter{id: "a", n: 5}

	cp1, err := m.Create("job", 1, []stream.Snapshotter{a})
	require.NoError(t, err)
	require.NoError(t, m.Export("before", cp1))

	a.n = 6
	_, err = m.Create("job", 2, []stream.Snapshotter{a})
	require.NoError(t, err)

	named, err := m.Named("before")
	require.NoError(t, err)
	st, err := backend.Load("job/a", named.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(5), st["n"])

	// A new stage set can start from the snapshot.
	fresh := &counter{id: "a"}
	require.NoError(t, m.Restore(named, []stream.Snapshotter{fresh}))
	assert.Equal(t, int64(5), fresh.n)

	assert.Equal(t, []string{"before"}, m.Snapshots())
	require.NoError(t, m.DeleteSnapshot("before"))
	assert.Empty(t, m.Snapshots())
	_, err = backend.Load("job/a", 1)
	assert.ErrorIs(t, err, state.ErrStateNotFound)

	_, err = m.Named("before")
	assert.ErrorIs(t, err, ErrSnapshotNotFound)
	assert.ErrorIs(t, m.DeleteSnapshot("before"), ErrSnapshotNotFound)
}

func TestManager_ExportEmptyName(t *testing.T) {
	m, _, _ := newTestManager(t)
	cp, err := m.Create("job", 1, nil)
	require.NoError(t, err)
	assert.Error(t, m.Export("", cp))
}
