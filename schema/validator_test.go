package payloadschema

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestValidateTelegramUpdate_Valid(t *testing.T) {
	payload := json.RawMessage(`{
		"update_id": 1001,
		"message": {
			"message_id": 55,
			"from": {"id": 777, "is_bot": false, "first_name": "Sami"},
			"chat": {"id": 777, "type": "private"},
			"date": 1767268800,
			"text": "أزمة على حاجز قلنديا",
			"entities": [{"type": "bold"}]
		}
	}`)

	update, err := ValidateTelegramUpdate(payload)
	if err != nil {
		t.Fatalf("expected payload to be valid, got error: %v", err)
	}
	if update.UpdateID != 1001 {
		t.Fatalf("unexpected update_id %d", update.UpdateID)
	}
	if update.Message == nil || update.Message.From == nil || update.Message.From.ID != 777 {
		t.Fatalf("unexpected message: %#v", update.Message)
	}
	if got := update.Message.SentAt(); !got.Equal(time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected sent at %s", got)
	}
}

func TestValidateTelegramUpdate_WithoutMessage(t *testing.T) {
	update, err := ValidateTelegramUpdate(json.RawMessage(`{"update_id": 5, "edited_message": {}}`))
	if err != nil {
		t.Fatalf("expected update without message to be valid, got %v", err)
	}
	if update.Message != nil {
		t.Fatalf("expected nil message")
	}
}

func TestValidateTelegramUpdate_MissingChat(t *testing.T) {
	payload := json.RawMessage(`{"update_id": 5, "message": {"message_id": 1, "date": 1}}`)
	_, err := ValidateTelegramUpdate(payload)
	if err == nil {
		t.Fatalf("expected validation to fail for missing chat")
	}
	if errors.Is(err, ErrMalformedJSON) {
		t.Fatalf("schema violation must not be reported as malformed JSON")
	}
}

func TestValidateTelegramUpdate_WrongType(t *testing.T) {
	if _, err := ValidateTelegramUpdate(json.RawMessage(`{"update_id": "abc"}`)); err == nil {
		t.Fatalf("expected validation to fail for string update_id")
	}
}

func TestValidateTelegramUpdate_MalformedJSON(t *testing.T) {
	for _, body := range []string{``, `{"update_id": 1`, `{"update_id": 1} {}`} {
		_, err := ValidateTelegramUpdate(json.RawMessage(body))
		if !errors.Is(err, ErrMalformedJSON) {
			t.Fatalf("expected malformed JSON error for %q, got %v", body, err)
		}
	}
}

func TestValidateGroupMessage_Valid(t *testing.T) {
	payload := json.RawMessage(`{
		"group_id": -1001234,
		"message_id": 9,
		"reply_to_message_id": null,
		"text": "الطريق مغلق",
		"date": "2026-03-01T10:00:00+02:00"
	}`)

	msg, err := ValidateGroupMessage(payload)
	if err != nil {
		t.Fatalf("expected payload to be valid, got error: %v", err)
	}
	if msg.GroupID != -1001234 || msg.MessageID != 9 {
		t.Fatalf("unexpected ids: %#v", msg)
	}
	if got := msg.SentAt(); !got.Equal(time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected sent at %s", got)
	}
}

func TestValidateGroupMessage_BadDate(t *testing.T) {
	payload := json.RawMessage(`{"group_id": 1, "message_id": 9, "date": "yesterday"}`)
	if _, err := ValidateGroupMessage(payload); err == nil {
		t.Fatalf("expected validation to fail for non RFC3339 date")
	}
}

func TestValidateGroupMessage_NullText(t *testing.T) {
	payload := json.RawMessage(`{"group_id": 1, "message_id": 9, "text": null, "date": "2026-03-01T10:00:00Z"}`)
	msg, err := ValidateGroupMessage(payload)
	if err != nil {
		t.Fatalf("expected null text to be valid, got %v", err)
	}
	if msg.Text != nil {
		t.Fatalf("expected nil text")
	}
}
