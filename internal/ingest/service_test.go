package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"horse.fit/tariqi/internal/db"
)

type fakeStore struct {
	users  []db.NewUserReport
	groups []db.NewGroupReport
	result db.InsertResult
	err    error
}

func (f *fakeStore) InsertUserReport(_ context.Context, report db.NewUserReport) (db.InsertResult, error) {
	f.users = append(f.users, report)
	return f.result, f.err
}

func (f *fakeStore) InsertGroupReport(_ context.Context, report db.NewGroupReport) (db.InsertResult, error) {
	f.groups = append(f.groups, report)
	return f.result, f.err
}

const validUpdate = `{
	"update_id": 10,
	"message": {
		"message_id": 3,
		"from": {"id": 42, "is_bot": false},
		"chat": {"id": 42, "type": "private"},
		"date": 1767268800,
		"text": "حاجز مغلق عند عطارة"
	}
}`

func TestIngestTelegramUpdateSaves(t *testing.T) {
	t.Parallel()

	store := &fakeStore{result: db.InsertResult{ID: "7f0c", Inserted: true}}
	svc := NewService(store, zerolog.Nop())

	result, err := svc.IngestTelegramUpdate(context.Background(), json.RawMessage(validUpdate))
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if result.Status != StatusSaved || result.ReportID != "7f0c" {
		t.Fatalf("unexpected result: %#v", result)
	}
	if len(store.users) != 1 {
		t.Fatalf("expected one insert, got %d", len(store.users))
	}
	got := store.users[0]
	if got.UserID != 42 || got.MessageID != 3 {
		t.Fatalf("unexpected ids: %#v", got)
	}
	if got.Text == nil || *got.Text != "حاجز مغلق عند عطارة" {
		t.Fatalf("unexpected text: %v", got.Text)
	}
	if !got.Timestamp.Equal(time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected timestamp %s", got.Timestamp)
	}
	if !json.Valid(got.RawPayload) {
		t.Fatalf("raw payload must be stored as JSON")
	}
}

func TestIngestTelegramUpdateDuplicateIsSkipped(t *testing.T) {
	t.Parallel()

	store := &fakeStore{result: db.InsertResult{Inserted: false}}
	result, err := NewService(store, zerolog.Nop()).IngestTelegramUpdate(context.Background(), json.RawMessage(validUpdate))
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if result.Status != StatusSkipped || result.Reason != ReasonDuplicate {
		t.Fatalf("unexpected result: %#v", result)
	}
}

func TestIngestTelegramUpdateSkipsWithoutMessageOrSender(t *testing.T) {
	t.Parallel()

	cases := []struct {
		body   string
		reason string
	}{
		{body: `{"update_id": 1}`, reason: ReasonNoMessage},
		{body: `{"update_id": 2, "message": {"message_id": 1, "chat": {"id": 1, "type": "channel"}, "date": 1}}`, reason: ReasonNoSender},
	}
	for _, tc := range cases {
		store := &fakeStore{}
		result, err := NewService(store, zerolog.Nop()).IngestTelegramUpdate(context.Background(), json.RawMessage(tc.body))
		if err != nil {
			t.Fatalf("ingest %s: %v", tc.body, err)
		}
		if result.Status != StatusSkipped || result.Reason != tc.reason {
			t.Fatalf("unexpected result for %s: %#v", tc.body, result)
		}
		if len(store.users) != 0 {
			t.Fatalf("skipped update must not be stored")
		}
	}
}

func TestIngestTelegramUpdateValidationErrors(t *testing.T) {
	t.Parallel()

	cases := []struct {
		body      string
		malformed bool
	}{
		{body: `not json`, malformed: true},
		{body: `{"update_id": "x"}`, malformed: false},
		{body: `{"message": {}}`, malformed: false},
	}
	for _, tc := range cases {
		_, err := NewService(&fakeStore{}, zerolog.Nop()).IngestTelegramUpdate(context.Background(), json.RawMessage(tc.body))
		var validationErr *ValidationError
		if !errors.As(err, &validationErr) {
			t.Fatalf("expected ValidationError for %s, got %v", tc.body, err)
		}
		if validationErr.Malformed != tc.malformed {
			t.Fatalf("malformed = %v for %s, want %v", validationErr.Malformed, tc.body, tc.malformed)
		}
	}
}

func TestIngestTelegramUpdateStorageError(t *testing.T) {
	t.Parallel()

	boom := errors.New("connection refused")
	_, err := NewService(&fakeStore{err: boom}, zerolog.Nop()).IngestTelegramUpdate(context.Background(), json.RawMessage(validUpdate))
	if !errors.Is(err, boom) {
		t.Fatalf("expected storage error, got %v", err)
	}
	var validationErr *ValidationError
	if errors.As(err, &validationErr) {
		t.Fatalf("storage error must not be a validation error")
	}
}

func TestIngestGroupMessage(t *testing.T) {
	t.Parallel()

	store := &fakeStore{result: db.InsertResult{ID: "a1", Inserted: true}}
	body := `{"group_id": -100, "message_id": 9, "reply_to_message_id": 8, "text": "ازمه على دوار المناره", "date": "2026-03-01T10:00:00Z"}`
	result, err := NewService(store, zerolog.Nop()).IngestGroupMessage(context.Background(), json.RawMessage(body))
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if result.Status != StatusSaved {
		t.Fatalf("unexpected result: %#v", result)
	}
	got := store.groups[0]
	if got.SourceGroupID != -100 || got.MessageID != 9 || got.ReplyToMessageID == nil || *got.ReplyToMessageID != 8 {
		t.Fatalf("unexpected report: %#v", got)
	}
}

func TestValidationErrorMessage(t *testing.T) {
	t.Parallel()

	err := &ValidationError{Malformed: true, Err: errors.New("unexpected EOF")}
	if err.Error() != "invalid JSON: unexpected EOF" {
		t.Fatalf("unexpected message %q", err.Error())
	}
}
