// Package primes is the example job: a timed generator, a filter keeping
// prime sequence numbers, and a sink writing sequence -> timestamp.
package primes

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/tarungka/ministream/engine"
	"github.com/tarungka/ministream/sinks"
	"github.com/tarungka/ministream/stream"
)

const (
	JobName  = "primes"
	MapName  = "primes"
	SourceID = "generator"
	FilterID = "is-prime"
	SinkID   = "primes-sink"
)

// IsPrime reports whether n is prime by trying every divisor in [2, n).
func IsPrime(n int64) bool {
	if n < 2 {
		return false
	}
	for d := int64(2); d < n; d++ {
		if n%d == 0 {
			return false
		}
	}
	return true
}

// IsPrimeItem keeps items whose sequence is prime.
func IsPrimeItem(item stream.Item) bool {
	return IsPrime(item.Sequence())
}

type SourceConfig struct {
	Interval time.Duration `koanf:"interval" json:"interval"`
	Start    int64         `koanf:"start" json:"start"`
	Limit    int64         `koanf:"limit" json:"limit"`
	Buffer   int           `koanf:"buffer" json:"buffer"`
	Overflow string        `koanf:"overflow" json:"overflow"`
}

type Config struct {
	Name   string           `koanf:"name" json:"name"`
	Source SourceConfig     `koanf:"source" json:"source"`
	Sink   sinks.SinkConfig `koanf:"sink" json:"sink"`
}

// NewSource builds the generator described by cfg.
func NewSource(cfg SourceConfig, clk clock.Clock) (*stream.GeneratorSource, error) {
	overflow, err := stream.ParseOverflowPolicy(cfg.Overflow)
	if err != nil {
		return nil, err
	}
	return stream.NewGeneratorSource(SourceID, stream.GeneratorConfig{
		Interval: cfg.Interval,
		Start:    cfg.Start,
		Limit:    cfg.Limit,
		Buffer:   cfg.Buffer,
		Overflow: overflow,
		Clock:    clk,
	}), nil
}

// NewSink builds the sink described by cfg. The map sink writes into the
// named map of pc.
func NewSink(pc *engine.PipelineContext, cfg sinks.SinkConfig) (stream.Sink, error) {
	switch strings.ToLower(cfg.ConnectionType) {
	case sinks.TypeMap, "":
		name := cfg.Name
		if name == "" {
			name = MapName
		}
		m, err := pc.Map(name)
		if err != nil {
			return nil, err
		}
		return stream.NewMapSink(SinkID, m, stream.SequenceTimestamp), nil
	case sinks.TypeFile:
		f, err := sinks.NewFileSink(SinkID, cfg.FilePath, stream.SequenceTimestamp)
		if err != nil {
			return nil, err
		}
		return f, nil
	default:
		return nil, fmt.Errorf("unsupported sink type: %s", cfg.ConnectionType)
	}
}

// NewPipeline wires source -> is-prime -> sink.
func NewPipeline(source stream.Source, sink stream.Sink) *stream.Pipeline {
	return stream.NewPipeline(source, sink).Filter(FilterID, IsPrimeItem)
}

// Submit builds the job from cfg and starts it on pc.
func Submit(ctx context.Context, pc *engine.PipelineContext, cfg Config, clk clock.Clock, opts ...engine.JobOption) (*engine.Job, error) {
	source, err := NewSource(cfg.Source, clk)
	if err != nil {
		return nil, err
	}
	sink, err := NewSink(pc, cfg.Sink)
	if err != nil {
		return nil, err
	}
	name := cfg.Name
	if name == "" {
		name = JobName
	}
	return pc.Submit(ctx, name, NewPipeline(source, sink), opts...)
}
