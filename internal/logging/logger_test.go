package logging

import (
	"bytes"
	"encoding/json"
	"testing"
)

func TestNewWithWriterEmitsServiceField(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger, err := NewWithWriter(&buf, "production", "info")
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}
	logger.Info().Msg("hello")

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("decode log line %q: %v", buf.String(), err)
	}
	if line["service"] != "tariqi" {
		t.Fatalf("unexpected service field: %v", line["service"])
	}
	if line["message"] != "hello" {
		t.Fatalf("unexpected message: %v", line["message"])
	}
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	t.Parallel()

	if _, err := New("local", "chatty"); err == nil {
		t.Fatalf("expected invalid level error")
	}
}

func TestNewWithWriterFiltersBelowLevel(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger, err := NewWithWriter(&buf, "production", "warn")
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}
	logger.Info().Msg("dropped")
	if buf.Len() != 0 {
		t.Fatalf("expected info line to be filtered, got %q", buf.String())
	}
}

func TestComponentAddsField(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	base, err := Build(Options{Environment: "production", Level: "debug", Out: &buf})
	if err != nil {
		t.Fatalf("build logger: %v", err)
	}
	logger := Component(base, "scraper")
	logger.Debug().Msg("sweep")

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("decode log line %q: %v", buf.String(), err)
	}
	if line["component"] != "scraper" || line["service"] != "tariqi" {
		t.Fatalf("unexpected fields: %v", line)
	}
}

func TestLocalEnvironmentUsesConsoleOutput(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger, err := Build(Options{Environment: " LOCAL ", Level: "info", Out: &buf})
	if err != nil {
		t.Fatalf("build logger: %v", err)
	}
	logger.Info().Msg("ready")
	if json.Valid(buf.Bytes()) {
		t.Fatalf("expected console output, got JSON %q", buf.String())
	}
}
