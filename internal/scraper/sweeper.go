package scraper

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"horse.fit/tariqi/internal/db"
	"horse.fit/tariqi/internal/ingest"
)

const (
	DefaultMessageLimit   = 100
	DefaultSaveRetries    = 3
	DefaultSaveRetryDelay = 2 * time.Second
	maxRateLimitWaits     = 3
)

// Saver stores one validated group message.
type Saver interface {
	IngestGroupMessage(ctx context.Context, payload json.RawMessage) (ingest.Result, error)
}

type Options struct {
	GroupIDs       []string
	MessageLimit   int
	SaveRetries    int
	SaveRetryDelay time.Duration
}

type SweepResult struct {
	Groups        int
	GroupsSkipped int
	Fetched       int
	Saved         int
	Skipped       int
	Failed        int
}

type Sweeper struct {
	source GroupSource
	saver  Saver
	opts   Options
	logger zerolog.Logger
	sleep  func(ctx context.Context, d time.Duration) error
}

func NewSweeper(source GroupSource, saver Saver, opts Options, logger zerolog.Logger) *Sweeper {
	if opts.MessageLimit <= 0 {
		opts.MessageLimit = DefaultMessageLimit
	}
	if opts.SaveRetries <= 0 {
		opts.SaveRetries = DefaultSaveRetries
	}
	if opts.SaveRetryDelay < 0 {
		opts.SaveRetryDelay = DefaultSaveRetryDelay
	}
	return &Sweeper{
		source: source,
		saver:  saver,
		opts:   opts,
		logger: logger,
		sleep:  sleepContext,
	}
}

// Sweep reads every configured group once. A group the account cannot read is skipped;
// only context cancellation stops the sweep early.
func (s *Sweeper) Sweep(ctx context.Context) (SweepResult, error) {
	var result SweepResult
	for _, groupID := range s.opts.GroupIDs {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		result.Groups++

		messages, err := s.fetchGroup(ctx, groupID)
		if err != nil {
			if ctx.Err() != nil {
				return result, ctx.Err()
			}
			result.GroupsSkipped++
			var permErr *PermissionError
			if errors.As(err, &permErr) {
				s.logger.Error().Err(err).Str("group_id", groupID).Msg("group skipped: permission denied")
			} else {
				s.logger.Error().Err(err).Str("group_id", groupID).Msg("group skipped: fetch failed")
			}
			continue
		}

		result.Fetched += len(messages)
		saved, skipped, failed := 0, 0, 0
		for _, payload := range messages {
			status, err := s.save(ctx, payload)
			switch {
			case err != nil:
				failed++
				s.logger.Error().Err(err).Str("group_id", groupID).Msg("save group message failed")
			case status == ingest.StatusSaved:
				saved++
			default:
				skipped++
			}
		}
		result.Saved += saved
		result.Skipped += skipped
		result.Failed += failed

		s.logger.Info().
			Str("group_id", groupID).
			Int("fetched", len(messages)).
			Int("saved", saved).
			Int("skipped", skipped).
			Int("failed", failed).
			Msg("group swept")
	}
	return result, nil
}

func (s *Sweeper) fetchGroup(ctx context.Context, groupID string) ([]json.RawMessage, error) {
	for waits := 0; ; waits++ {
		messages, err := s.source.Messages(ctx, groupID, s.opts.MessageLimit)
		var limited *RateLimitError
		if !errors.As(err, &limited) || waits >= maxRateLimitWaits {
			return messages, err
		}
		s.logger.Warn().Str("group_id", groupID).Dur("wait", limited.Wait).Msg("rate limited; waiting")
		if err := s.sleep(ctx, limited.Wait); err != nil {
			return nil, err
		}
	}
}

// save retries only transient storage errors; validation errors and duplicates are final.
func (s *Sweeper) save(ctx context.Context, payload json.RawMessage) (ingest.Status, error) {
	var lastErr error
	for attempt := 1; attempt <= s.opts.SaveRetries; attempt++ {
		result, err := s.saver.IngestGroupMessage(ctx, payload)
		if err == nil {
			return result.Status, nil
		}
		lastErr = err

		var validationErr *ingest.ValidationError
		if errors.As(err, &validationErr) || !db.IsTransient(err) {
			return ingest.StatusFailed, err
		}
		if attempt == s.opts.SaveRetries {
			break
		}
		s.logger.Warn().Err(err).Int("attempt", attempt).Dur("delay", s.opts.SaveRetryDelay).Msg("transient save error; retrying")
		if err := s.sleep(ctx, s.opts.SaveRetryDelay); err != nil {
			return ingest.StatusFailed, err
		}
	}
	return ingest.StatusFailed, lastErr
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
