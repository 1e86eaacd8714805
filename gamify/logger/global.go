package logger

import (
	"log/slog"
	"time"
)

// LogEvent logs one processed domain event
func LogEvent(eventName string, storeID int64, duration time.Duration, err error) {
	attrs := []any{
		slog.String("type", "event"),
		slog.String("event", eventName),
		slog.Int64("store_id", storeID),
		slog.Duration("took", duration),
	}

	if err != nil {
		slog.Error("Event processing failed", append(attrs, slog.Any("error", err))...)
	} else {
		slog.Info("Event processed", attrs...)
	}
}

// LogQuery logs database operations
func LogQuery(query string, duration time.Duration, err error) {
	attrs := []any{
		slog.String("type", "db"),
		slog.Duration("took", duration),
	}

	if err != nil {
		slog.Error("Query failed", append(attrs,
			slog.String("query", query),
			slog.Any("error", err),
		)...)
	} else {
		slog.Debug("Query executed", append(attrs,
			slog.String("query", query),
		)...)
	}
}

// LogSystem logs system events
func LogSystem(msg string, attrs ...any) {
	baseAttrs := []any{slog.String("type", "sys")}
	slog.Info(msg, append(baseAttrs, attrs...)...)
}

// LogError logs error events
func LogError(msg string, err error, attrs ...any) {
	baseAttrs := []any{
		slog.String("type", "error"),
		slog.Any("error", err),
	}
	slog.Error(msg, append(baseAttrs, attrs...)...)
}
