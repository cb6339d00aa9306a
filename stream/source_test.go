package stream

import (
	"context"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recvItem(t *testing.T, ch <-chan Item) Item {
	t.Helper()
	select {
	case item, ok := <-ch:
		require.True(t, ok, "source channel closed early")
		return item
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for item")
	}
	return Item{}
}

// tick advances the mock clock by one interval and waits for the generator
// to produce the item for that tick.
func tick(t *testing.T, mock *clock.Mock, src *GeneratorSource, interval time.Duration) {
	t.Helper()
	want := src.Next() + 1
	mock.Add(interval)
	require.Eventually(t, func() bool { return src.Next() == want }, time.Second, time.Millisecond)
}

func newTestGenerator(t *testing.T, cfg GeneratorConfig) (*GeneratorSource, *clock.Mock, <-chan Item) {
	t.Helper()
	mock := clock.NewMock()
	cfg.Clock = mock
	if cfg.Interval == 0 {
		cfg.Interval = time.Second
	}
	src := NewGeneratorSource("generator", cfg)
	items, err := src.Open(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { src.Close() })
	return src, mock, items
}

func TestGeneratorSource_SequenceAndTimestamps(t *testing.T) {
	src, mock, items := newTestGenerator(t, GeneratorConfig{Start: 1})

	for want := int64(1); want <= 3; want++ {
		tick(t, mock, src, time.Second)
		item := recvItem(t, items)
		assert.Equal(t, want, item.Sequence())
		assert.WithinDuration(t, time.Unix(want, 0), item.Timestamp(), 0)
	}
}

func TestGeneratorSource_Defaults(t *testing.T) {
	src := NewGeneratorSource("generator", GeneratorConfig{})
	assert.Equal(t, DefaultInterval, src.config.Interval)
	assert.Equal(t, DefaultBuffer, src.config.Buffer)
	assert.Equal(t, int64(0), src.Next())
	assert.Equal(t, "generator", src.ID())
}

func TestGeneratorSource_OpenTwice(t *testing.T) {
	src, _, _ := newTestGenerator(t, GeneratorConfig{})
	_, err := src.Open(context.Background())
	assert.ErrorIs(t, err, ErrSourceOpen)

	require.NoError(t, src.Close())
	_, err = src.Open(context.Background())
	assert.NoError(t, err)
}

func TestGeneratorSource_Limit(t *testing.T) {
	src, mock, items := newTestGenerator(t, GeneratorConfig{Start: 5, Limit: 3})

	for i := 0; i < 3; i++ {
		tick(t, mock, src, time.Second)
	}
	mock.Add(time.Second)

	var got []int64
	for item := range items {
		got = append(got, item.Sequence())
	}
	assert.Equal(t, []int64{5, 6, 7}, got)
}

func TestGeneratorSource_SeekTo(t *testing.T) {
	mock := clock.NewMock()
	src := NewGeneratorSource("generator", GeneratorConfig{Interval: time.Second, Clock: mock})
	src.SeekTo(42)

	items, err := src.Open(context.Background())
	require.NoError(t, err)
	defer src.Close()

	tick(t, mock, src, time.Second)
	assert.Equal(t, int64(42), recvItem(t, items).Sequence())
}

func TestGeneratorSource_Overflow(t *testing.T) {
	tests := []struct {
		name        string
		policy      OverflowPolicy
		ticks       int
		wantNext    int64
		wantDropped int64
		wantItems   []int64
	}{
		{
			name:        "drop newest keeps the first items",
			policy:      OverflowDropNewest,
			ticks:       5,
			wantNext:    5,
			wantDropped: 3,
			wantItems:   []int64{0, 1},
		},
		{
			name:        "drop oldest keeps the latest items",
			policy:      OverflowDropOldest,
			ticks:       5,
			wantNext:    5,
			wantDropped: 3,
			wantItems:   []int64{3, 4},
		},
		{
			name:        "block queues and stalls generation",
			policy:      OverflowBlock,
			ticks:       3,
			wantNext:    3,
			wantDropped: 0,
			wantItems:   []int64{0, 1, 2},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src, mock, items := newTestGenerator(t, GeneratorConfig{Buffer: 2, Overflow: tt.policy})

			for i := 0; i < tt.ticks; i++ {
				tick(t, mock, src, time.Second)
			}
			assert.Equal(t, tt.wantNext, src.Next())
			// The drop happens right after the sequence advances.
			require.Eventually(t, func() bool { return src.Dropped() == tt.wantDropped }, time.Second, time.Millisecond)

			for _, want := range tt.wantItems {
				assert.Equal(t, want, recvItem(t, items).Sequence())
			}
		})
	}
}

func TestGeneratorSource_CloseClosesChannel(t *testing.T) {
	src, _, items := newTestGenerator(t, GeneratorConfig{})
	require.NoError(t, src.Close())

	_, ok := <-items
	assert.False(t, ok)
}

func TestParseOverflowPolicy(t *testing.T) {
	for _, p := range []OverflowPolicy{OverflowBlock, OverflowDropNewest, OverflowDropOldest} {
		got, err := ParseOverflowPolicy(p.String())
		require.NoError(t, err)
		assert.Equal(t, p, got)
	}
	_, err := ParseOverflowPolicy("spill")
	assert.Error(t, err)
}
