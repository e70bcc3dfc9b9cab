package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"horse.fit/tariqi/internal/auth"
	"horse.fit/tariqi/internal/cli"
	"horse.fit/tariqi/internal/db"
	"horse.fit/tariqi/internal/httpapi"
	"horse.fit/tariqi/internal/ingest"
	"horse.fit/tariqi/internal/logging"
)

func runServe(args []string) int {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	host := fs.String("host", "0.0.0.0", "Host interface to bind")
	port := fs.Int("port", 8080, "HTTP port")
	readTimeout := fs.Duration("read-timeout", 10*time.Second, "HTTP read timeout")
	writeTimeout := fs.Duration("write-timeout", 30*time.Second, "HTTP write timeout")
	shutdownTimeout := fs.Duration("shutdown-timeout", 10*time.Second, "Graceful shutdown timeout")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	if *port <= 0 || *port > 65535 {
		fmt.Fprintln(os.Stderr, "--port must be between 1 and 65535")
		return 2
	}

	cfg, logger, err := loadRuntime(envLoader)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if cfg.WebhookSecretHash != "" && !auth.ValidHash(cfg.WebhookSecretHash) {
		fmt.Fprintln(os.Stderr, "WEBHOOK_SECRET_HASH is not a bcrypt hash; generate one with `tariqi hash-secret`")
		return 1
	}

	dbCtx, dbCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer dbCancel()

	pool, err := db.NewPool(dbCtx, cfg)
	if err != nil {
		logger.Error().Err(err).Msg("serve failed to connect to database")
		fmt.Fprintf(os.Stderr, "Failed to connect to database: %v\n", err)
		return 1
	}
	defer pool.Close()

	ctx, cancel := signalContext()
	defer cancel()

	srv := httpapi.NewServer(pool, ingest.NewService(pool, logging.Component(logger, "ingest")), logging.Component(logger, "httpapi"), httpapi.Options{
		Host:              *host,
		Port:              *port,
		ReadTimeout:       *readTimeout,
		WriteTimeout:      *writeTimeout,
		ShutdownTimeout:   *shutdownTimeout,
		WebhookSecretHash: cfg.WebhookSecretHash,
	})

	if err := srv.Start(ctx); err != nil {
		logger.Error().Err(err).Str("host", *host).Int("port", *port).Msg("server failed")
		fmt.Fprintf(os.Stderr, "Server failed: %v\n", err)
		return 1
	}

	return 0
}
