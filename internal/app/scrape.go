package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"horse.fit/tariqi/internal/cli"
	"horse.fit/tariqi/internal/db"
	"horse.fit/tariqi/internal/ingest"
	"horse.fit/tariqi/internal/logging"
)

func runScrape(args []string) int {
	fs := flag.NewFlagSet("scrape", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 10*time.Minute, "Command timeout")
	groups := fs.String("groups", "", "Comma-separated group ids (overrides SCRAPER_GROUP_IDS)")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() != 0 {
		fmt.Fprintln(os.Stderr, "scrape does not accept positional arguments")
		return 2
	}

	cfg, logger, err := loadRuntime(envLoader)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if strings.TrimSpace(*groups) != "" {
		cfg.ScraperGroupIDs = *groups
	}
	if strings.TrimSpace(cfg.ScraperEndpoint) == "" {
		fmt.Fprintln(os.Stderr, "SCRAPER_ENDPOINT is required for scrape")
		return 2
	}

	ctx, cancel := signalContext()
	defer cancel()
	ctx, timeoutCancel := context.WithTimeout(ctx, *timeout)
	defer timeoutCancel()

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		logger.Error().Err(err).Msg("scrape failed to connect to database")
		fmt.Fprintf(os.Stderr, "Failed to connect to database: %v\n", err)
		return 1
	}
	defer pool.Close()

	sweeper, err := buildSweeper(cfg, ingest.NewService(pool, logging.Component(logger, "ingest")), logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid scraper configuration: %v\n", err)
		return 2
	}

	result, err := sweeper.Sweep(ctx)
	fmt.Printf(
		"groups=%d groups_skipped=%d fetched=%d saved=%d skipped=%d failed=%d\n",
		result.Groups,
		result.GroupsSkipped,
		result.Fetched,
		result.Saved,
		result.Skipped,
		result.Failed,
	)
	if err != nil {
		logger.Error().Err(err).Msg("scrape interrupted")
		fmt.Fprintf(os.Stderr, "Scrape interrupted: %v\n", err)
		return 1
	}

	logger.Info().
		Int("groups", result.Groups).
		Int("saved", result.Saved).
		Int("failed", result.Failed).
		Msg("scrape completed")
	return 0
}
