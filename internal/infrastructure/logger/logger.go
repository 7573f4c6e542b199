// Package logger configures the engine's process-wide structured logger.
// Grounded on the teacher's internal/infrastructure/logger/logger.go
// (same Setup(level)/Logger() shape), swapped from log/slog to rs/zerolog
// to match the rest of the corpus's structured-logging dependency.
package logger

import (
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Setup creates a zerolog.Logger writing JSON to stdout at the given level
// ("debug", "info", "warn", "error"; unrecognized values fall back to info).
func Setup(level string) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339

	l, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		l = zerolog.InfoLevel
	}

	log := zerolog.New(os.Stdout).Level(l).With().Timestamp().Logger()
	zerolog.DefaultContextLogger = &log
	return log
}

// Logger returns a default info-level logger.
func Logger() zerolog.Logger {
	return Setup("info")
}
