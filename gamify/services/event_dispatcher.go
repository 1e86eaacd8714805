package services

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/storekit/gamify/gamify/database/models"
	"github.com/storekit/gamify/gamify/database/repositories"
)

// EventHandler is what the dispatcher drives; satisfied by ProgressEngine.
type EventHandler interface {
	HandleEvent(ctx context.Context, eventName string, storeID int64, payload map[string]any) (*EventResult, error)
}

// EventDispatcher wraps the engine with an audit log. Every inbound event is
// recorded before processing and stamped with the result afterwards, so a
// crashed consumer can be replayed; replay is safe because the engine is
// idempotent.
type EventDispatcher struct {
	engine     EventHandler
	eventLog   repositories.EventLogRepository
	logEnabled bool
}

func NewEventDispatcher(engine EventHandler, eventLog repositories.EventLogRepository, logEnabled bool) *EventDispatcher {
	return &EventDispatcher{
		engine:     engine,
		eventLog:   eventLog,
		logEnabled: logEnabled,
	}
}

// Dispatch records, processes, and stamps one event. Audit failures never
// block processing.
func (d *EventDispatcher) Dispatch(ctx context.Context, eventName string, storeID int64, payload map[string]any) (*EventResult, error) {
	var entry *models.EventLog
	if d.logEnabled {
		entry = &models.EventLog{
			StoreID:   storeID,
			EventName: eventName,
			Payload:   payload,
			CreatedAt: time.Now(),
		}
		if err := d.eventLog.Create(ctx, entry); err != nil {
			slog.Error("Event log write failed",
				slog.String("event", eventName),
				slog.Int64("store_id", storeID),
				slog.String("error", err.Error()))
			entry = nil
		}
	}

	result, err := d.engine.HandleEvent(ctx, eventName, storeID, payload)
	if err != nil {
		return nil, err
	}

	if entry != nil {
		if err := d.eventLog.MarkProcessed(ctx, entry.ID, resultToMap(result)); err != nil {
			slog.Error("Event log stamp failed",
				slog.Int64("event_log_id", entry.ID),
				slog.String("error", err.Error()))
		}
	}

	return result, nil
}

// ReplayUnprocessed re-runs pending audit entries through the engine, oldest
// first. Returns how many entries were replayed.
func (d *EventDispatcher) ReplayUnprocessed(ctx context.Context, limit int) (int, error) {
	entries, err := d.eventLog.GetUnprocessed(ctx, limit)
	if err != nil {
		return 0, err
	}

	replayed := 0
	for _, entry := range entries {
		result, err := d.engine.HandleEvent(ctx, entry.EventName, entry.StoreID, entry.Payload)
		if err != nil {
			slog.Error("Replay failed",
				slog.Int64("event_log_id", entry.ID),
				slog.String("event", entry.EventName),
				slog.String("error", err.Error()))
			continue
		}
		if err := d.eventLog.MarkProcessed(ctx, entry.ID, resultToMap(result)); err != nil {
			slog.Error("Replay stamp failed",
				slog.Int64("event_log_id", entry.ID),
				slog.String("error", err.Error()))
			continue
		}
		replayed++
	}
	return replayed, nil
}

// resultToMap flattens an EventResult into the jsonb result column shape.
func resultToMap(result *EventResult) map[string]any {
	raw, err := json.Marshal(result)
	if err != nil {
		return map[string]any{}
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return map[string]any{}
	}
	return out
}
