package recio

import (
	"context"
	"io"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with recio-specific context.
// This provides structured logging with consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewJSONLogger creates a Logger that writes JSON-formatted logs to w
// (stderr when nil). level sets the minimum log level (e.g.,
// slog.LevelDebug, slog.LevelInfo).
func NewJSONLogger(w io.Writer, level slog.Level) *Logger {
	if w == nil {
		w = os.Stderr
	}
	return NewLogger(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
}

// NewTextLogger creates a Logger that writes human-readable text logs to w
// (stderr when nil).
func NewTextLogger(w io.Writer, level slog.Level) *Logger {
	if w == nil {
		w = os.Stderr
	}
	return NewLogger(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
}

// NoopLogger creates a Logger that discards all log output.
// This is the default for every reader and merge node.
func NoopLogger() *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.Level(1000), // Unreachable level
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// WithTag adds the stream tag to the logger.
func (l *Logger) WithTag(tag int) *Logger {
	return &Logger{
		Logger: l.Logger.With("tag", tag),
	}
}

// WithSource adds the source name to the logger.
func (l *Logger) WithSource(name string) *Logger {
	return &Logger{
		Logger: l.Logger.With("source", name),
	}
}

// LogOpen logs the outcome of opening an input.
func (l *Logger) LogOpen(ctx context.Context, name string, compression string, err error) {
	if err != nil {
		l.WarnContext(ctx, "open failed",
			"source", name,
			"compression", compression,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "source opened",
			"source", name,
			"compression", compression,
		)
	}
}

// LogOversized logs a record that did not fit the reader buffer.
func (l *Logger) LogOversized(ctx context.Context, size, bufferSize int) {
	l.DebugContext(ctx, "oversized record",
		"size", size,
		"buffer_size", bufferSize,
	)
}

// LogPartial logs an incomplete trailing record and what was done with it.
func (l *Logger) LogPartial(ctx context.Context, size int, action string) {
	l.WarnContext(ctx, "partial trailing record",
		"size", size,
		"action", action,
	)
}

// LogDecodeError logs malformed compressed input.
func (l *Logger) LogDecodeError(ctx context.Context, err error, fatal bool) {
	if fatal {
		l.ErrorContext(ctx, "decode failed",
			"error", err,
		)
	} else {
		l.WarnContext(ctx, "decode failed, ending stream early",
			"error", err,
		)
	}
}

// LogMerge logs the shape of a merge node when it is first advanced.
func (l *Logger) LogMerge(ctx context.Context, children int, mode string) {
	l.DebugContext(ctx, "merge started",
		"children", children,
		"mode", mode,
	)
}
