package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"horse.fit/tariqi/internal/cli"
	"horse.fit/tariqi/internal/db"
	"horse.fit/tariqi/internal/ingest"
	"horse.fit/tariqi/internal/logging"
	"horse.fit/tariqi/internal/pipeline"
)

// pipelineRunner is the part of pipeline.Service the commands drive.
type pipelineRunner interface {
	Run(ctx context.Context) (pipeline.RunSummary, error)
}

func runProcess(args []string) int {
	fs := flag.NewFlagSet("process", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 5*time.Minute, "Command timeout")
	untilEmpty := fs.Bool("until-empty", false, "Repeat passes until a fetch returns no reports")
	maxCycles := fs.Int("max-cycles", 25, "Maximum passes when --until-empty=true")
	format := fs.String("format", outputFormatTable, "Output format: table or json")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() != 0 {
		fmt.Fprintln(os.Stderr, "process does not accept positional arguments")
		return 2
	}
	if *maxCycles <= 0 {
		fmt.Fprintln(os.Stderr, "--max-cycles must be > 0")
		return 2
	}
	outputFormat, err := parseOutputFormat(*format, outputFormatTable)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid format: %v\n", err)
		return 2
	}

	cfg, logger, err := loadRuntime(envLoader)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		logger.Error().Err(err).Msg("process command failed to connect to database")
		fmt.Fprintf(os.Stderr, "Failed to connect to database: %v\n", err)
		return 1
	}
	defer pool.Close()

	svc, closePublisher, err := buildPipeline(ctx, cfg, pool, logger)
	if err != nil {
		logger.Error().Err(err).Msg("process command failed to build pipeline")
		fmt.Fprintf(os.Stderr, "Failed to build pipeline: %v\n", err)
		return 1
	}
	defer closePublisher()

	cycles := 1
	if *untilEmpty {
		cycles = *maxCycles
	}
	summaries, err := drainPipeline(ctx, svc, cycles)
	if outputFormat == outputFormatJSON {
		if encodeErr := printJSON(summaries); encodeErr != nil {
			fmt.Fprintf(os.Stderr, "Failed to encode JSON: %v\n", encodeErr)
			return 1
		}
	} else {
		for i, summary := range summaries {
			printRunSummary(i+1, summary)
		}
	}
	if err != nil {
		logger.Error().Err(err).Int("cycles", len(summaries)).Msg("process failed")
		fmt.Fprintf(os.Stderr, "Process failed: %v\n", err)
		return 1
	}

	logger.Info().Int("cycles", len(summaries)).Msg("process completed")
	return 0
}

// drainPipeline runs up to maxCycles passes and stops early once a pass fetches nothing.
func drainPipeline(ctx context.Context, runner pipelineRunner, maxCycles int) ([]pipeline.RunSummary, error) {
	summaries := make([]pipeline.RunSummary, 0, 1)
	for cycle := 1; cycle <= maxCycles; cycle++ {
		summary, err := runner.Run(ctx)
		summaries = append(summaries, summary)
		if err != nil {
			return summaries, fmt.Errorf("cycle %d: %w", cycle, err)
		}
		if summary.Fetched == 0 {
			break
		}
	}
	return summaries, nil
}

func printRunSummary(cycle int, summary pipeline.RunSummary) {
	fmt.Printf(
		"cycle=%d run_id=%s fetched=%d relevant=%d groups=%d verified=%d persisted=%d persist_failed=%d published=%d marked_group=%d marked_user=%d degraded=%t\n",
		cycle,
		summary.RunID,
		summary.Fetched,
		summary.Relevant,
		summary.Groups,
		summary.Verified,
		summary.Persisted,
		summary.PersistFailed,
		summary.Published,
		summary.MarkedGroup,
		summary.MarkedUser,
		summary.Degraded,
	)
}

func runSchedule(args []string) int {
	fs := flag.NewFlagSet("schedule", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	interval := fs.Duration("interval", 0, "Time between passes (defaults to PIPELINE_INTERVAL)")
	runTimeout := fs.Duration("run-timeout", 10*time.Minute, "Timeout for one scrape+process pass")
	withScrape := fs.Bool("scrape", true, "Sweep configured groups before each pass when SCRAPER_ENDPOINT is set")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() != 0 {
		fmt.Fprintln(os.Stderr, "schedule does not accept positional arguments")
		return 2
	}
	if *interval < 0 || *runTimeout <= 0 {
		fmt.Fprintln(os.Stderr, "--interval must be >= 0 and --run-timeout must be > 0")
		return 2
	}

	cfg, logger, err := loadRuntime(envLoader)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	every := *interval
	if every == 0 {
		every = cfg.PipelineInterval
	}

	ctx, cancel := signalContext()
	defer cancel()

	dbCtx, dbCancel := context.WithTimeout(ctx, 30*time.Second)
	pool, err := db.NewPool(dbCtx, cfg)
	dbCancel()
	if err != nil {
		logger.Error().Err(err).Msg("schedule failed to connect to database")
		fmt.Fprintf(os.Stderr, "Failed to connect to database: %v\n", err)
		return 1
	}
	defer pool.Close()

	svc, closePublisher, err := buildPipeline(ctx, cfg, pool, logger)
	if err != nil {
		logger.Error().Err(err).Msg("schedule failed to build pipeline")
		fmt.Fprintf(os.Stderr, "Failed to build pipeline: %v\n", err)
		return 1
	}
	defer closePublisher()

	var sweep func(context.Context) error
	if *withScrape && cfg.ScraperEndpoint != "" {
		sweeper, err := buildSweeper(cfg, ingest.NewService(pool, logging.Component(logger, "ingest")), logger)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Invalid scraper configuration: %v\n", err)
			return 2
		}
		sweep = func(ctx context.Context) error {
			_, err := sweeper.Sweep(ctx)
			return err
		}
	}

	pass := func(parent context.Context) error {
		passCtx, passCancel := context.WithTimeout(parent, *runTimeout)
		defer passCancel()
		if sweep != nil {
			if err := sweep(passCtx); err != nil {
				logger.Error().Err(err).Msg("scheduled scrape failed")
			}
		}
		_, err := svc.Run(passCtx)
		return err
	}

	logger.Info().Dur("interval", every).Bool("scrape", sweep != nil).Msg("scheduler started")
	runScheduleLoop(ctx, every, pass, logger)
	logger.Info().Msg("scheduler stopped")
	return 0
}

// runScheduleLoop runs pass immediately and then once per tick until ctx ends.
// A pass always finishes before the next tick is read; ticks missed meanwhile collapse into one.
// No pass starts once ctx is done, even when a tick is already pending.
func runScheduleLoop(ctx context.Context, interval time.Duration, pass func(context.Context) error, logger zerolog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if ctx.Err() != nil {
			return
		}
		if err := pass(ctx); err != nil && ctx.Err() == nil {
			logger.Error().Err(err).Msg("scheduled pass failed")
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
