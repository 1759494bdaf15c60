// Package logging wraps log/slog with the fields the correlator attaches to
// every run: the run identifier and the dataset being correlated.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
)

type runKey struct{}

type runInfo struct {
	runID     string
	datasetID string
}

// ContextWithRun stores the correlation run and dataset on ctx
func ContextWithRun(ctx context.Context, runID, datasetID string) context.Context {
	return context.WithValue(ctx, runKey{}, runInfo{runID: runID, datasetID: datasetID})
}

// RunFromContext returns the run and dataset stored by ContextWithRun
func RunFromContext(ctx context.Context) (runID, datasetID string) {
	info, _ := ctx.Value(runKey{}).(runInfo)
	return info.runID, info.datasetID
}

// Logger wraps slog.Logger and adds run-aware helpers.
type Logger struct {
	*slog.Logger
}

// New creates a Logger writing to stdout.
// format is "json" (default) or "text".
func New(level slog.Level, format string) *Logger {
	return NewWithWriter(os.Stdout, level, format)
}

// NewWithWriter is New with an explicit destination
func NewWithWriter(w io.Writer, level slog.Level, format string) *Logger {
	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level <= slog.LevelDebug,
	}

	var handler slog.Handler
	switch format {
	case "text":
		handler = slog.NewTextHandler(w, opts)
	default:
		handler = slog.NewJSONHandler(w, opts)
	}

	return &Logger{Logger: slog.New(handler)}
}

// Default returns a Logger around slog.Default().
func Default() *Logger {
	return &Logger{Logger: slog.Default()}
}

// Discard returns a Logger that drops everything. Used by tests.
func Discard() *Logger {
	return &Logger{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

// WithContext returns a logger carrying the run and dataset IDs found on ctx.
func (l *Logger) WithContext(ctx context.Context) *slog.Logger {
	runID, datasetID := RunFromContext(ctx)
	logger := l.Logger
	if runID != "" {
		logger = logger.With(RunID(runID))
	}
	if datasetID != "" {
		logger = logger.With(DatasetID(datasetID))
	}
	return logger
}

// InfoContext logs at Info level with run fields.
func (l *Logger) InfoContext(ctx context.Context, msg string, args ...any) {
	l.WithContext(ctx).InfoContext(ctx, msg, args...)
}

// WarnContext logs at Warn level with run fields.
func (l *Logger) WarnContext(ctx context.Context, msg string, args ...any) {
	l.WithContext(ctx).WarnContext(ctx, msg, args...)
}

// ErrorContext logs at Error level with run fields.
func (l *Logger) ErrorContext(ctx context.Context, msg string, args ...any) {
	l.WithContext(ctx).ErrorContext(ctx, msg, args...)
}

// DebugContext logs at Debug level with run fields.
func (l *Logger) DebugContext(ctx context.Context, msg string, args ...any) {
	l.WithContext(ctx).DebugContext(ctx, msg, args...)
}

// With returns a new logger with the given attributes added.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...)}
}

// WithGroup returns a new logger with the given group name.
func (l *Logger) WithGroup(name string) *Logger {
	return &Logger{Logger: l.Logger.WithGroup(name)}
}

// ParseLevel converts "debug", "info", "warn" or "error" to a slog.Level.
// Anything else maps to Info.
func ParseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// SetDefault installs l as the process-wide slog default.
func SetDefault(l *Logger) {
	slog.SetDefault(l.Logger)
}
