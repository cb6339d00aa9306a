// Command simple_pipeline runs a small pipeline and walks it through the job
// lifecycle: export a snapshot, suspend, resume, cancel.
package main

import (
	"context"
	"fmt"
	"time"

	"github.com/tarungka/ministream/engine"
	"github.com/tarungka/ministream/stream"
)

func main() {
	ctx := context.Background()

	// Create a new pipeline context with in-memory storage.
	pc, err := engine.NewPipelineContext(engine.Config{})
	if err != nil {
		panic(err)
	}
	defer pc.Close()

	squares, err := pc.Map("odd-squares")
	if err != nil {
		panic(err)
	}

	// Create a new pipeline.
	pipeline := stream.NewPipeline(
		stream.NewGeneratorSource("numbers", stream.GeneratorConfig{Interval: 50 * time.Millisecond, Start: 1}),
		stream.NewMapSink("sink", squares, stream.SequenceTimestamp),
	)

	// Keep odd numbers and square them.
	pipeline.
		Filter("odd", func(item stream.Item) bool { return item.Sequence()%2 == 1 }).
		Map("square", func(item stream.Item) stream.Item {
			return stream.NewItem(item.Sequence()*item.Sequence(), item.Timestamp())
		})

	// Start the pipeline with a checkpoint every second.
	job, err := pc.Submit(ctx, "odd-squares", pipeline, engine.WithCheckpointInterval(time.Second))
	if err != nil {
		panic(err)
	}
	fmt.Printf("job %s (%s): %s\n", job.Name(), job.ID(), pipeline.Show())

	// Run the pipeline for 2 seconds.
	time.Sleep(2 * time.Second)

	// Take a snapshot.
	cp, err := job.ExportSnapshot(ctx, "after-2s")
	if err != nil {
		panic(err)
	}
	fmt.Printf("exported snapshot %q of checkpoint %d\n", "after-2s", cp.ID)

	if err := job.Suspend(ctx); err != nil {
		panic(err)
	}
	n, _ := squares.Len()
	fmt.Printf("suspended with %d entries, status %s\n", n, job.Status())

	if err := job.Resume(ctx); err != nil {
		panic(err)
	}
	time.Sleep(time.Second)

	if err := job.Cancel(); err != nil {
		panic(err)
	}

	entries, _ := squares.Entries()
	for _, e := range entries {
		fmt.Printf("%6d -> %s\n", e.Key, e.Value.Format(time.RFC3339Nano))
	}
	fmt.Printf("status %s, stats %+v\n", job.Status(), job.Stats())
}
