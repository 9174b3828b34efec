package memrep

import (
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with memrep-specific field helpers. Construction
// parameters and rare structural events (the cuckoo overflow transition) are
// logged; per-operation paths never log.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a Logger with the given handler. A nil handler selects a
// text handler to stderr at Info level.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{Logger: slog.New(handler)}
}

// NoopLogger creates a Logger that discards all output.
func NoopLogger() *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.Level(1000), // unreachable level
	})
	return &Logger{Logger: slog.New(handler)}
}

// WithRep tags log records with the representation name.
func (l *Logger) WithRep(name string) *Logger {
	return &Logger{Logger: l.Logger.With("rep", name)}
}

// WithBuckets tags log records with a bucket count.
func (l *Logger) WithBuckets(n uint64) *Logger {
	return &Logger{Logger: l.Logger.With("buckets", n)}
}
