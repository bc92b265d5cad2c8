package logger

import (
	"log/slog"
	"time"
)

// LogQuery records one storage call. The db layer funnels execs and queries
// through here so slow statements show up with their timing.
func LogQuery(operation, query string, duration time.Duration, err error) {
	attrs := []any{
		slog.String("type", "db"),
		slog.String("operation", operation),
		slog.String("query", query),
		slog.Duration("took", duration),
	}

	if err != nil {
		slog.Error("Query failed", append(attrs, slog.Any("error", err))...)
		return
	}
	slog.Debug("Query executed", attrs...)
}

// LogSystem records a lifecycle event: startup, shutdown, subsystem wiring.
func LogSystem(msg string, attrs ...any) {
	slog.Info(msg, append([]any{slog.String("type", "sys")}, attrs...)...)
}

// LogError records a failure with its error attached.
func LogError(msg string, err error, attrs ...any) {
	slog.Error(msg, append([]any{
		slog.String("type", "error"),
		slog.Any("error", err),
	}, attrs...)...)
}
