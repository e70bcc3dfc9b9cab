// Package ingest turns external payloads into unprocessed raw reports.
package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog"

	"horse.fit/tariqi/internal/db"
	"horse.fit/tariqi/internal/langdetect"
	"horse.fit/tariqi/internal/metrics"
	payloadschema "horse.fit/tariqi/schema"
)

type Status string

const (
	StatusSaved   Status = "saved"
	StatusSkipped Status = "skipped"
	StatusFailed  Status = "failed"
)

const (
	ReasonNoMessage = "update carries no message"
	ReasonNoSender  = "message has no sender"
	ReasonDuplicate = "duplicate"
)

type Store interface {
	InsertUserReport(ctx context.Context, report db.NewUserReport) (db.InsertResult, error)
	InsertGroupReport(ctx context.Context, report db.NewGroupReport) (db.InsertResult, error)
}

// ValidationError rejects a payload before it reaches storage.
type ValidationError struct {
	// Malformed is true when the body was not a JSON document.
	Malformed bool
	Err       error
}

func (e *ValidationError) Error() string {
	if e.Malformed {
		return fmt.Sprintf("invalid JSON: %v", e.Err)
	}
	return fmt.Sprintf("validation error: %v", e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

type Result struct {
	Status   Status `json:"status"`
	ReportID string `json:"report_id,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

type Service struct {
	store  Store
	logger zerolog.Logger
}

func NewService(store Store, logger zerolog.Logger) *Service {
	return &Service{
		store:  store,
		logger: logger,
	}
}

// IngestTelegramUpdate stores the message of a bot update as a user report.
// Validation problems return *ValidationError; storage problems are returned as-is.
func (s *Service) IngestTelegramUpdate(ctx context.Context, payload json.RawMessage) (Result, error) {
	if s == nil || s.store == nil {
		return Result{}, fmt.Errorf("ingest service is not initialized")
	}

	update, err := payloadschema.ValidateTelegramUpdate(payload)
	if err != nil {
		s.count(db.OriginUser, "invalid")
		return Result{}, &ValidationError{Malformed: errors.Is(err, payloadschema.ErrMalformedJSON), Err: err}
	}

	if update.Message == nil {
		s.logger.Info().Int64("update_id", update.UpdateID).Msg("update skipped: no message")
		s.count(db.OriginUser, string(StatusSkipped))
		return Result{Status: StatusSkipped, Reason: ReasonNoMessage}, nil
	}
	if update.Message.From == nil {
		s.logger.Info().Int64("update_id", update.UpdateID).Msg("update skipped: no sender")
		s.count(db.OriginUser, string(StatusSkipped))
		return Result{Status: StatusSkipped, Reason: ReasonNoSender}, nil
	}

	canonical, err := canonicalizeJSON(payload)
	if err != nil {
		return Result{}, &ValidationError{Malformed: true, Err: err}
	}

	message := update.Message
	report := db.NewUserReport{
		UserID:     message.From.ID,
		MessageID:  message.MessageID,
		Text:       normalizeNullableText(message.Text),
		RawPayload: canonical,
		Language:   detectLanguage(message.Text),
		Timestamp:  message.SentAt(),
	}

	inserted, err := s.store.InsertUserReport(ctx, report)
	if err != nil {
		s.count(db.OriginUser, string(StatusFailed))
		return Result{}, fmt.Errorf("save user report update_id=%d: %w", update.UpdateID, err)
	}

	result := s.result(db.OriginUser, inserted)
	s.logger.Info().
		Int64("update_id", update.UpdateID).
		Int64("user_id", report.UserID).
		Int64("message_id", report.MessageID).
		Str("status", string(result.Status)).
		Str("report_id", result.ReportID).
		Msg("user report ingested")
	return result, nil
}

// IngestGroupMessage validates and stores one scraped group message.
func (s *Service) IngestGroupMessage(ctx context.Context, payload json.RawMessage) (Result, error) {
	if s == nil || s.store == nil {
		return Result{}, fmt.Errorf("ingest service is not initialized")
	}

	message, err := payloadschema.ValidateGroupMessage(payload)
	if err != nil {
		s.count(db.OriginGroup, "invalid")
		return Result{}, &ValidationError{Malformed: errors.Is(err, payloadschema.ErrMalformedJSON), Err: err}
	}
	canonical, err := canonicalizeJSON(payload)
	if err != nil {
		return Result{}, &ValidationError{Malformed: true, Err: err}
	}

	report := db.NewGroupReport{
		SourceGroupID:    message.GroupID,
		MessageID:        message.MessageID,
		ReplyToMessageID: message.ReplyToMessageID,
		Text:             normalizeNullableText(message.Text),
		RawPayload:       canonical,
		Language:         detectLanguage(message.Text),
		Timestamp:        message.SentAt(),
	}

	inserted, err := s.store.InsertGroupReport(ctx, report)
	if err != nil {
		s.count(db.OriginGroup, string(StatusFailed))
		return Result{}, fmt.Errorf("save group message group_id=%d message_id=%d: %w", message.GroupID, message.MessageID, err)
	}

	result := s.result(db.OriginGroup, inserted)
	s.logger.Debug().
		Int64("group_id", report.SourceGroupID).
		Int64("message_id", report.MessageID).
		Str("status", string(result.Status)).
		Msg("group message ingested")
	return result, nil
}

func (s *Service) result(origin db.Origin, inserted db.InsertResult) Result {
	if !inserted.Inserted {
		s.count(origin, string(StatusSkipped))
		return Result{Status: StatusSkipped, Reason: ReasonDuplicate}
	}
	s.count(origin, string(StatusSaved))
	return Result{Status: StatusSaved, ReportID: inserted.ID}
}

func (s *Service) count(origin db.Origin, status string) {
	metrics.ReportsIngested.WithLabelValues(string(origin), status).Inc()
}

func detectLanguage(text *string) string {
	if text == nil {
		return ""
	}
	return langdetect.DetectISO6391(*text)
}

func normalizeNullableText(text *string) *string {
	if text == nil {
		return nil
	}
	value := strings.ToValidUTF8(*text, "")
	return &value
}

func canonicalizeJSON(raw []byte) ([]byte, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("JSON payload is empty")
	}

	decoder := json.NewDecoder(bytes.NewReader(trimmed))
	decoder.UseNumber()

	var value any
	if err := decoder.Decode(&value); err != nil {
		return nil, fmt.Errorf("decode JSON: %w", err)
	}
	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return nil, fmt.Errorf("JSON contains trailing content")
	}

	canonical, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("marshal canonical JSON: %w", err)
	}
	return canonical, nil
}
