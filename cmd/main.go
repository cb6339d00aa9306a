package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"
	flag "github.com/spf13/pflag"
	"github.com/tarungka/ministream/engine"
	"github.com/tarungka/ministream/internal/config"
	"github.com/tarungka/ministream/internal/logger"
	"github.com/tarungka/ministream/jobs/primes"
	"github.com/tarungka/ministream/sinks"
)

var buildString = "unknown"

func main() {
	f := config.NewFlagSet("ministream")
	cfg, err := config.Load(f, os.Args[1:])
	if errors.Is(err, flag.ErrHelp) {
		fmt.Println(f.FlagUsages())
		os.Exit(0)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error loading config: %v\n", err)
		os.Exit(2)
	}

	if v, _ := f.GetBool("version"); v {
		fmt.Println(buildString)
		os.Exit(0)
	}

	closeLog, err := initLogging(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error initializing logging: %v\n", err)
		os.Exit(2)
	}
	defer closeLog()

	log := logger.GetLogger("main")
	log.Info().Str("build", buildString).Msgf("Build Version: %s", buildString)
	log.Info().Msg("Starting the application")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Err(err).Msg("ministream stopped with an error")
		closeLog()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	pc, err := engine.NewPipelineContext(cfg.Engine())
	if err != nil {
		return err
	}
	defer pc.Close()

	job, err := primes.Submit(ctx, pc, cfg.Job, nil)
	if err != nil {
		return err
	}

	err = job.Wait(ctx)
	if ctx.Err() != nil {
		log.Info().Msg("received interrupt signal; stopping the job")
		// The run ends with ctx, wait for it to settle.
		err = job.Wait(context.Background())
	}
	if err != nil {
		return err
	}

	stats := job.Stats()
	event := log.Info().
		Str("job", job.Name()).
		Str("status", job.Status().String()).
		Str("read", humanize.Comma(int64(stats.Read))).
		Str("written", humanize.Comma(int64(stats.Written))).
		Uint64("checkpoints", stats.Checkpoints)
	if cfg.Job.Sink.ConnectionType == "" || cfg.Job.Sink.ConnectionType == sinks.TypeMap {
		if m, err := pc.Map(cfg.Job.Sink.Name); err == nil {
			if n, err := m.Len(); err == nil {
				event = event.Int("map_size", n)
			}
		}
	}
	event.Msg("job finished")
	return nil
}
