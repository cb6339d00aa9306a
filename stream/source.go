package stream

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"
	"github.com/tarungka/ministream/internal/logger"
	"golang.org/x/time/rate"
)

var (
	// ErrSourceOpen is returned when Open is called on a source that is
	// already open.
	ErrSourceOpen = errors.New("source already open")
)

const (
	DefaultInterval = time.Second
	DefaultBuffer   = 16
)

// Source is an interface for data sources.
type Source interface {
	// ID returns the unique identifier of the source.
	ID() string
	// Open starts the source. The returned channel is closed when the source
	// is exhausted or ctx is done.
	Open(ctx context.Context) (<-chan Item, error)
	// Close stops the source and waits for it to release its resources.
	Close() error
}

// Seeker is implemented by sources that can be repositioned before Open, so
// a restored checkpoint can continue from the next unprocessed sequence.
type Seeker interface {
	SeekTo(next int64)
}

// OverflowPolicy decides what a source does when its buffer is full.
type OverflowPolicy int

const (
	// OverflowBlock waits for room, so items queue up in the buffer.
	OverflowBlock OverflowPolicy = iota
	// OverflowDropNewest discards the item that did not fit.
	OverflowDropNewest
	// OverflowDropOldest discards the oldest buffered item to make room.
	OverflowDropOldest
)

func (p OverflowPolicy) String() string {
	switch p {
	case OverflowDropNewest:
		return "drop-newest"
	case OverflowDropOldest:
		return "drop-oldest"
	default:
		return "block"
	}
}

// ParseOverflowPolicy converts a config string into an OverflowPolicy.
func ParseOverflowPolicy(s string) (OverflowPolicy, error) {
	switch strings.ToLower(s) {
	case "block", "":
		return OverflowBlock, nil
	case "drop-newest":
		return OverflowDropNewest, nil
	case "drop-oldest":
		return OverflowDropOldest, nil
	default:
		return OverflowBlock, fmt.Errorf("unsupported overflow policy: %s", s)
	}
}

// GeneratorConfig configures a GeneratorSource.
type GeneratorConfig struct {
	// Interval between two generated items. Defaults to DefaultInterval.
	Interval time.Duration
	// Start is the sequence of the first item.
	Start int64
	// Limit ends the stream once sequence Start+Limit would be generated.
	// Zero means the stream never ends.
	Limit int64
	// Buffer is the capacity of the output channel. Defaults to DefaultBuffer.
	Buffer int
	// Overflow is applied when the buffer is full.
	Overflow OverflowPolicy
	// Clock drives the interval and the timestamps. Defaults to the wall clock.
	Clock clock.Clock
}

// GeneratorSource emits one item per interval with increasing sequence
// numbers, stamped with the clock time of generation.
type GeneratorSource struct {
	id     string
	config GeneratorConfig
	clock  clock.Clock
	logger zerolog.Logger

	// Limits how often a drop is logged, drops can happen on every tick.
	dropLog *rate.Limiter

	mu      sync.Mutex
	next    int64
	dropped int64
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewGeneratorSource creates a new GeneratorSource.
func NewGeneratorSource(id string, config GeneratorConfig) *GeneratorSource {
	if config.Interval <= 0 {
		config.Interval = DefaultInterval
	}
	if config.Buffer <= 0 {
		config.Buffer = DefaultBuffer
	}
	if config.Clock == nil {
		config.Clock = clock.New()
	}
	return &GeneratorSource{
		id:      id,
		config:  config,
		clock:   config.Clock,
		logger:  logger.GetLogger("source").With().Str("source_id", id).Logger(),
		dropLog: rate.NewLimiter(rate.Every(10*time.Second), 1),
		next:    config.Start,
	}
}

// ID returns the unique identifier of the source.
func (s *GeneratorSource) ID() string {
	return s.id
}

// SeekTo sets the sequence of the next generated item.
func (s *GeneratorSource) SeekTo(next int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next = next
}

// Next returns the sequence the next generated item will carry.
func (s *GeneratorSource) Next() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.next
}

// Dropped returns the number of items discarded by the overflow policy.
func (s *GeneratorSource) Dropped() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}

// Open starts generating items.
func (s *GeneratorSource) Open(ctx context.Context) (<-chan Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done != nil {
		return nil, ErrSourceOpen
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})

	out := make(chan Item, s.config.Buffer)
	// The ticker is created before Open returns so no tick is missed by a
	// caller that advances a mock clock right away.
	ticker := s.clock.Ticker(s.config.Interval)

	s.logger.Debug().
		Int64("start", s.next).
		Dur("interval", s.config.Interval).
		Str("overflow", s.config.Overflow.String()).
		Msg("Opening generator source")

	go s.run(ctx, ticker, out, s.done)
	return out, nil
}

func (s *GeneratorSource) run(ctx context.Context, ticker *clock.Ticker, out chan Item, done chan struct{}) {
	defer close(done)
	defer close(out)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			item, ok := s.generate()
			if !ok {
				s.logger.Info().Msg("Generator source exhausted")
				return
			}
			if !s.emit(ctx, out, item) {
				return
			}
		}
	}
}

func (s *GeneratorSource) generate() (Item, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.config.Limit > 0 && s.next >= s.config.Start+s.config.Limit {
		return Item{}, false
	}
	item := NewItem(s.next, s.clock.Now().UTC())
	s.next++
	return item, true
}

func (s *GeneratorSource) emit(ctx context.Context, out chan Item, item Item) bool {
	switch s.config.Overflow {
	case OverflowDropNewest:
		select {
		case out <- item:
		default:
			s.drop(item)
		}
		return true

	case OverflowDropOldest:
		for {
			select {
			case out <- item:
				return true
			case <-ctx.Done():
				return false
			default:
			}
			select {
			case old := <-out:
				s.drop(old)
			default:
			}
		}

	default:
		select {
		case out <- item:
			return true
		case <-ctx.Done():
			return false
		}
	}
}

func (s *GeneratorSource) drop(item Item) {
	s.mu.Lock()
	s.dropped++
	dropped := s.dropped
	s.mu.Unlock()

	if s.dropLog.Allow() {
		s.logger.Warn().
			Int64("sequence", item.Sequence()).
			Int64("dropped_total", dropped).
			Msg("Source buffer full, dropping item")
	}
}

// Close stops the generator and waits for its goroutine to exit. The
// source can be opened again afterwards.
func (s *GeneratorSource) Close() error {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	<-done

	s.mu.Lock()
	s.cancel, s.done = nil, nil
	s.mu.Unlock()
	return nil
}
