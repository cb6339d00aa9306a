package stream

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidPipeline is returned by Validate.
var ErrInvalidPipeline = errors.New("invalid pipeline")

// Pipeline is a stream processing pipeline: one source, zero or more
// operators and one sink.
type Pipeline struct {
	source    Source
	operators []Operator
	sink      Sink
}

// NewPipeline creates a new Pipeline.
func NewPipeline(source Source, sink Sink) *Pipeline {
	return &Pipeline{
		source: source,
		sink:   sink,
	}
}

// AddOperator appends an operator to the chain.
func (p *Pipeline) AddOperator(operator Operator) *Pipeline {
	p.operators = append(p.operators, operator)
	return p
}

// Filter appends a FilterOperator.
func (p *Pipeline) Filter(id string, predicate Predicate) *Pipeline {
	return p.AddOperator(NewFilterOperator(id, predicate))
}

// Map appends a MapOperator.
func (p *Pipeline) Map(id string, fn MapFunction) *Pipeline {
	return p.AddOperator(NewMapOperator(id, fn))
}

func (p *Pipeline) Source() Source { return p.source }

func (p *Pipeline) Sink() Sink { return p.sink }

func (p *Pipeline) Operators() []Operator { return p.operators }

// Validate checks the shape of the pipeline: a source first, a sink last,
// no nil operators and unique stage ids.
func (p *Pipeline) Validate() error {
	if p.source == nil {
		return fmt.Errorf("%w: missing source", ErrInvalidPipeline)
	}
	if p.sink == nil {
		return fmt.Errorf("%w: missing sink", ErrInvalidPipeline)
	}
	seen := map[string]bool{p.source.ID(): true}
	for i, op := range p.operators {
		if op == nil {
			return fmt.Errorf("%w: operator %d is nil", ErrInvalidPipeline, i)
		}
		if seen[op.ID()] {
			return fmt.Errorf("%w: duplicate stage id %q", ErrInvalidPipeline, op.ID())
		}
		seen[op.ID()] = true
	}
	if seen[p.sink.ID()] {
		return fmt.Errorf("%w: duplicate stage id %q", ErrInvalidPipeline, p.sink.ID())
	}
	return nil
}

// Process pushes one item through the operators and into the sink. It
// reports whether the item reached the sink.
func (p *Pipeline) Process(ctx context.Context, item Item) (bool, error) {
	for _, op := range p.operators {
		var ok bool
		if item, ok = op.Process(item); !ok {
			return false, nil
		}
	}
	if err := p.sink.Write(ctx, item); err != nil {
		return false, fmt.Errorf("writing sequence %d to sink %s: %w", item.Sequence(), p.sink.ID(), err)
	}
	return true, nil
}

// Snapshotters returns every stage with checkpointable state.
func (p *Pipeline) Snapshotters() []Snapshotter {
	var out []Snapshotter
	if s, ok := p.source.(Snapshotter); ok {
		out = append(out, s)
	}
	for _, op := range p.operators {
		out = append(out, op)
	}
	if s, ok := p.sink.(Snapshotter); ok {
		out = append(out, s)
	}
	return out
}

// Show renders the chain as "source -> op -> sink".
func (p *Pipeline) Show() string {
	parts := make([]string, 0, len(p.operators)+2)
	if p.source != nil {
		parts = append(parts, p.source.ID())
	}
	for _, op := range p.operators {
		parts = append(parts, op.ID())
	}
	if p.sink != nil {
		parts = append(parts, p.sink.ID())
	}
	return strings.Join(parts, " -> ")
}
