package payloadschema

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed telegram_update.schema.json
var telegramUpdateSchemaJSON string

//go:embed group_message.schema.json
var groupMessageSchemaJSON string

// ErrMalformedJSON marks payloads that are not a single JSON document.
var ErrMalformedJSON = errors.New("malformed JSON payload")

type TelegramUser struct {
	ID        int64   `json:"id"`
	IsBot     bool    `json:"is_bot"`
	FirstName *string `json:"first_name,omitempty"`
	Username  *string `json:"username,omitempty"`
}

type TelegramChat struct {
	ID        int64   `json:"id"`
	Type      string  `json:"type"`
	FirstName *string `json:"first_name,omitempty"`
	Username  *string `json:"username,omitempty"`
}

type TelegramMessage struct {
	MessageID int64         `json:"message_id"`
	From      *TelegramUser `json:"from,omitempty"`
	Chat      TelegramChat  `json:"chat"`
	Date      int64         `json:"date"`
	Text      *string       `json:"text,omitempty"`
}

// SentAt converts the unix-seconds date to UTC.
func (m TelegramMessage) SentAt() time.Time {
	return time.Unix(m.Date, 0).UTC()
}

type TelegramUpdate struct {
	UpdateID int64            `json:"update_id"`
	Message  *TelegramMessage `json:"message,omitempty"`
}

// GroupMessage is one message returned by the group relay.
type GroupMessage struct {
	GroupID          int64   `json:"group_id"`
	MessageID        int64   `json:"message_id"`
	ReplyToMessageID *int64  `json:"reply_to_message_id,omitempty"`
	SenderID         *int64  `json:"sender_id,omitempty"`
	Text             *string `json:"text,omitempty"`
	Date             string  `json:"date"`
}

// SentAt parses Date; ValidateGroupMessage guarantees it is RFC3339.
func (m GroupMessage) SentAt() time.Time {
	parsed, err := time.Parse(time.RFC3339, strings.TrimSpace(m.Date))
	if err != nil {
		return time.Time{}
	}
	return parsed.UTC()
}

type compiledSchema struct {
	name   string
	source string

	once   sync.Once
	schema *jsonschema.Schema
	err    error
}

var (
	telegramUpdateSchema = &compiledSchema{name: "telegram_update.schema.json", source: telegramUpdateSchemaJSON}
	groupMessageSchema   = &compiledSchema{name: "group_message.schema.json", source: groupMessageSchemaJSON}
)

// ValidateTelegramUpdate decodes and validates a bot webhook update.
// Errors wrapping ErrMalformedJSON mean the body was not JSON at all.
func ValidateTelegramUpdate(payload json.RawMessage) (*TelegramUpdate, error) {
	var update TelegramUpdate
	if err := validateInto(telegramUpdateSchema, payload, &update); err != nil {
		return nil, err
	}
	if update.Message != nil && update.Message.Text != nil {
		text := strings.ToValidUTF8(*update.Message.Text, "")
		update.Message.Text = &text
	}
	return &update, nil
}

// ValidateGroupMessage decodes and validates one scraped group message.
func ValidateGroupMessage(payload json.RawMessage) (*GroupMessage, error) {
	var message GroupMessage
	if err := validateInto(groupMessageSchema, payload, &message); err != nil {
		return nil, err
	}
	if _, err := time.Parse(time.RFC3339, strings.TrimSpace(message.Date)); err != nil {
		return nil, fmt.Errorf("date must be RFC3339: %w", err)
	}
	if message.GroupID == 0 {
		return nil, fmt.Errorf("group_id must not be zero")
	}
	return &message, nil
}

func validateInto(schema *compiledSchema, payload json.RawMessage, out any) error {
	value, err := decodeStrictJSON(payload)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedJSON, err)
	}

	compiled, err := schema.load()
	if err != nil {
		return fmt.Errorf("load schema: %w", err)
	}
	if err := compiled.Validate(value); err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}

	normalized, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("normalize payload JSON: %w", err)
	}
	if err := json.Unmarshal(normalized, out); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}
	return nil
}

func (s *compiledSchema) load() (*jsonschema.Schema, error) {
	s.once.Do(func() {
		compiler := jsonschema.NewCompiler()
		compiler.Draft = jsonschema.Draft2020
		compiler.AssertFormat = true

		if err := compiler.AddResource(s.name, strings.NewReader(s.source)); err != nil {
			s.err = fmt.Errorf("add schema resource: %w", err)
			return
		}
		schema, err := compiler.Compile(s.name)
		if err != nil {
			s.err = fmt.Errorf("compile schema: %w", err)
			return
		}
		s.schema = schema
	})

	if s.err != nil {
		return nil, s.err
	}
	if s.schema == nil {
		return nil, fmt.Errorf("schema not initialized")
	}
	return s.schema, nil
}

func decodeStrictJSON(raw []byte) (any, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("payload is empty")
	}

	decoder := json.NewDecoder(bytes.NewReader(trimmed))
	decoder.UseNumber()

	var value any
	if err := decoder.Decode(&value); err != nil {
		return nil, err
	}

	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return nil, fmt.Errorf("payload contains trailing content")
	}

	return value, nil
}
