package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const serviceName = "tariqi"

// Options selects where and how verbosely the process logs.
type Options struct {
	Environment string
	Level       string
	Out         io.Writer
}

// New builds the process logger on stdout.
func New(environment, level string) (zerolog.Logger, error) {
	return Build(Options{Environment: environment, Level: level})
}

func NewWithWriter(out io.Writer, environment, level string) (zerolog.Logger, error) {
	return Build(Options{Environment: environment, Level: level, Out: out})
}

// Build returns a JSON logger, or a console logger when Environment is "local".
func Build(opts Options) (zerolog.Logger, error) {
	level, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(opts.Level)))
	if err != nil {
		return zerolog.Logger{}, fmt.Errorf("parse LOG_LEVEL=%q: %w", opts.Level, err)
	}

	var sink io.Writer = os.Stdout
	if opts.Out != nil {
		sink = opts.Out
	}
	if isLocal(opts.Environment) {
		sink = zerolog.ConsoleWriter{Out: sink, TimeFormat: time.RFC3339}
	}

	return zerolog.New(sink).Level(level).With().
		Timestamp().
		Str("service", serviceName).
		Logger(), nil
}

// Component tags every line from a subsystem, e.g. "pipeline" or "scraper".
func Component(logger zerolog.Logger, name string) zerolog.Logger {
	return logger.With().Str("component", name).Logger()
}

func isLocal(environment string) bool {
	return strings.EqualFold(strings.TrimSpace(environment), "local")
}
