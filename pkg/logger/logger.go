package logger

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

// New builds the root logger from LOG_LEVEL/LOG_FORMAT: "json" emits one
// object per line to stdout, anything else falls back to a colorized
// console writer for local development.
func New(level, format string) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339Nano

	parsedLevel, err := zerolog.ParseLevel(level)
	if err != nil {
		parsedLevel = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(parsedLevel)

	if format == "json" {
		return zerolog.New(os.Stdout).With().Timestamp().Caller().Logger()
	}

	output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	return zerolog.New(output).With().Timestamp().Caller().Logger()
}

// WithJob returns a logger scoped to a single job.
func WithJob(logger zerolog.Logger, jobID int) zerolog.Logger {
	return logger.With().Int("job_id", jobID).Logger()
}

// WithMessage returns a logger scoped to a single queue message, tagged
// with a correlation ID so a message's full processing trail can be
// grepped out of aggregated logs.
func WithMessage(logger zerolog.Logger, correlationID string) zerolog.Logger {
	return logger.With().Str("correlation_id", correlationID).Logger()
}
