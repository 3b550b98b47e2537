// Package logging provides the per-subsystem structured loggers used
// across the service, and the trace-id binding helper that lets a log
// consumer correlate lines with one utterance.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}

// New builds the base logger for a subsystem ("server", "ws", "audio",
// "asr", ...), writing to w at the given level.
func New(w io.Writer, module string, level zerolog.Level) zerolog.Logger {
	return zerolog.New(w).Level(level).With().
		Timestamp().
		Str("module", module).
		Logger()
}

// LevelFromString maps the GHOSTTYPE_LOG / config.json log_level
// vocabulary onto a zerolog level, defaulting to Warn on anything
// unrecognized (matching the original's default).
func LevelFromString(s string) zerolog.Level {
	switch s {
	case "DEBUG":
		return zerolog.DebugLevel
	case "INFO":
		return zerolog.InfoLevel
	case "WARNING":
		return zerolog.WarnLevel
	case "ERROR":
		return zerolog.ErrorLevel
	default:
		return zerolog.WarnLevel
	}
}

// Sink resolves the GHOSTTYPE_LOG_FILE override to an io.Writer,
// falling back to stderr. The caller owns closing the returned file
// handle when non-nil.
func Sink(logFile string) (io.Writer, *os.File, error) {
	if logFile == "" {
		return os.Stderr, nil, nil
	}
	f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return os.Stderr, nil, err
	}
	return f, f, nil
}

// WithTrace returns a logger bound with the given trace id, the Go
// equivalent of the reference's with_trace helper — every line emitted
// through the returned logger carries trace_id so a supervisor can
// group a session's lines together.
func WithTrace(log zerolog.Logger, traceID string) zerolog.Logger {
	return log.With().Str("trace_id", traceID).Logger()
}
