// Package logging configures the global zerolog logger and hands out
// component-scoped loggers.
package logging

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/trace"
)

// Format is the output format for logs.
type Format string

const (
	// FormatJSON outputs logs in JSON format.
	FormatJSON Format = "json"

	// FormatConsole outputs logs in a human-readable format.
	FormatConsole Format = "console"
)

// Config contains logger configuration.
type Config struct {
	// Logging level: debug, info, warn or error.
	Level string

	// Output format (json or console).
	Format Format

	// Whether to include caller information.
	IncludeCaller bool

	// Output writer (defaults to os.Stdout).
	Output io.Writer

	// Additional global context fields.
	GlobalFields map[string]string
}

// DefaultConfig returns a default configuration.
func DefaultConfig() Config {
	return Config{
		Level:         "info",
		Format:        FormatJSON,
		IncludeCaller: true,
		Output:        os.Stdout,
	}
}

// Setup configures global logging.
func Setup(config Config) error {
	zerolog.TimeFieldFormat = time.RFC3339Nano

	output := config.Output
	if output == nil {
		output = os.Stdout
	}
	if config.Format == FormatConsole {
		output = zerolog.ConsoleWriter{
			Out:        output,
			TimeFormat: time.RFC3339,
		}
	}

	logger := zerolog.New(output).With().Timestamp()
	if config.IncludeCaller {
		logger = logger.Caller()
	}
	for k, v := range config.GlobalFields {
		logger = logger.Str(k, v)
	}
	log.Logger = logger.Logger()

	level, err := parseLevel(config.Level)
	if err != nil {
		return err
	}
	zerolog.SetGlobalLevel(level)

	return nil
}

func parseLevel(level string) (zerolog.Level, error) {
	switch level {
	case "debug":
		return zerolog.DebugLevel, nil
	case "info", "":
		return zerolog.InfoLevel, nil
	case "warn":
		return zerolog.WarnLevel, nil
	case "error":
		return zerolog.ErrorLevel, nil
	default:
		return zerolog.InfoLevel, fmt.Errorf("invalid log level: %s", level)
	}
}

// FromContext returns a logger enriched with trace context if available.
func FromContext(ctx context.Context) zerolog.Logger {
	logger := log.Ctx(ctx).With()

	if span := trace.SpanFromContext(ctx); span.SpanContext().IsValid() {
		logger = logger.
			Str("trace_id", span.SpanContext().TraceID().String()).
			Str("span_id", span.SpanContext().SpanID().String())
	}

	return logger.Logger()
}

// Component returns a logger with a component field.
func Component(name string) zerolog.Logger {
	return log.With().Str("component", name).Logger()
}
