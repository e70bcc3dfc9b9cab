package app

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"horse.fit/tariqi/internal/cli"
	"horse.fit/tariqi/internal/db"
	"horse.fit/tariqi/internal/ingest"
	"horse.fit/tariqi/internal/logging"
)

const (
	ingestKindTelegram = "telegram"
	ingestKindGroup    = "group"
)

func runIngest(args []string) int {
	fs := flag.NewFlagSet("ingest", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 20*time.Second, "Command timeout")
	kind := fs.String("kind", ingestKindTelegram, "Payload kind: telegram (bot update) or group (scraped message)")
	payload := fs.String("payload", "", "Payload JSON")
	payloadFile := fs.String("payload-file", "", "Path to payload JSON file, - for stdin (overrides --payload)")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() != 0 {
		fmt.Fprintln(os.Stderr, "ingest does not accept positional arguments")
		return 2
	}

	payloadKind := strings.ToLower(strings.TrimSpace(*kind))
	if payloadKind != ingestKindTelegram && payloadKind != ingestKindGroup {
		fmt.Fprintln(os.Stderr, "--kind must be telegram or group")
		return 2
	}

	payloadJSON, err := loadJSONInput(*payload, *payloadFile, "payload", os.Stdin)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid payload: %v\n", err)
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
		logger.Error().Err(err).Msg("database connection failed")
		fmt.Fprintf(os.Stderr, "Failed to connect to database: %v\n", err)
		return 1
	}
	defer pool.Close()

	svc := ingest.NewService(pool, logging.Component(logger, "ingest"))
	var result ingest.Result
	if payloadKind == ingestKindGroup {
		result, err = svc.IngestGroupMessage(ctx, payloadJSON)
	} else {
		result, err = svc.IngestTelegramUpdate(ctx, payloadJSON)
	}
	if err != nil {
		var validationErr *ingest.ValidationError
		if errors.As(err, &validationErr) {
			fmt.Fprintf(os.Stderr, "Invalid payload: %v\n", err)
			return 2
		}
		fmt.Fprintf(os.Stderr, "Ingest failed: %v\n", err)
		return 1
	}

	fmt.Printf("status=%s", result.Status)
	if result.ReportID != "" {
		fmt.Printf(" report_id=%s", result.ReportID)
	}
	if result.Reason != "" {
		fmt.Printf(" reason=%q", result.Reason)
	}
	fmt.Println()
	return 0
}

func loadJSONInput(inlineValue, filePath, label string, stdin io.Reader) (json.RawMessage, error) {
	if path := strings.TrimSpace(filePath); path != "" {
		var (
			payload []byte
			err     error
		)
		if path == "-" {
			payload, err = io.ReadAll(stdin)
		} else {
			payload, err = os.ReadFile(path)
		}
		if err != nil {
			return nil, fmt.Errorf("read %s file %q: %w", label, path, err)
		}
		trimmed := strings.TrimSpace(string(payload))
		if trimmed == "" {
			return nil, fmt.Errorf("%s file %q is empty", label, path)
		}
		return json.RawMessage(trimmed), nil
	}

	trimmed := strings.TrimSpace(inlineValue)
	if trimmed == "" {
		return nil, fmt.Errorf("%s JSON is empty; pass --%s or --%s-file", label, label, label)
	}
	return json.RawMessage(trimmed), nil
}
