package services

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/storekit/gamify/gamify/database/models"
	"github.com/storekit/gamify/gamify/database/repositories"
)

// CustomHandler evaluates a custom locker or rule condition for a store. The
// full condition payload is passed through.
type CustomHandler func(ctx context.Context, storeID int64, payload map[string]any) (bool, error)

// ConditionEvaluator decides locker and rule conditions against the ledger.
// Evaluation is fail-closed: malformed payloads, unknown condition types, and
// lookup failures all evaluate to false rather than erroring, so a bad
// catalog entry can never abort event processing.
type ConditionEvaluator struct {
	progressRepo repositories.ProgressRepository

	mu       sync.RWMutex
	handlers map[string]CustomHandler

	now func() time.Time
}

func NewConditionEvaluator(progressRepo repositories.ProgressRepository) *ConditionEvaluator {
	return &ConditionEvaluator{
		progressRepo: progressRepo,
		handlers:     make(map[string]CustomHandler),
		now:          time.Now,
	}
}

// RegisterCustomHandler installs the handler dispatched for custom conditions
// whose payload names it in the "handler" field.
func (e *ConditionEvaluator) RegisterCustomHandler(name string, fn CustomHandler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handlers[name] = fn
}

// Evaluate returns whether the condition holds for the store.
func (e *ConditionEvaluator) Evaluate(ctx context.Context, conditionType string, payload map[string]any, storeID int64) bool {
	switch conditionType {
	case models.ConditionMissionCompletion:
		return e.evalMissionCompletion(ctx, payload, storeID)
	case models.ConditionTasksCompletion:
		return e.evalTasksCompletion(ctx, payload, storeID)
	case models.ConditionDate:
		return e.evalDate(payload)
	case models.ConditionDateRange:
		return e.evalDateRange(payload)
	case models.ConditionCustom:
		return e.evalCustom(ctx, payload, storeID)
	default:
		slog.Debug("Unknown condition type", slog.String("type", conditionType))
		return false
	}
}

func (e *ConditionEvaluator) evalMissionCompletion(ctx context.Context, payload map[string]any, storeID int64) bool {
	missionID, ok := payloadInt64(payload, "mission_id")
	if !ok {
		return false
	}

	completed, err := e.progressRepo.IsMissionCompleted(ctx, e.progressRepo.DB(), storeID, missionID)
	if err != nil {
		slog.Error("Mission completion lookup failed",
			slog.Int64("store_id", storeID),
			slog.Int64("mission_id", missionID),
			slog.String("error", err.Error()))
		return false
	}
	return completed
}

func (e *ConditionEvaluator) evalTasksCompletion(ctx context.Context, payload map[string]any, storeID int64) bool {
	taskIDs, ok := payloadInt64Slice(payload, "task_ids")
	if !ok || len(taskIDs) == 0 {
		return false
	}

	required := len(taskIDs)
	if n, ok := payloadInt64(payload, "required_count"); ok {
		required = int(n)
	}
	if required <= 0 {
		return false
	}

	completed, err := e.progressRepo.CountCompletedAmong(ctx, storeID, taskIDs)
	if err != nil {
		slog.Error("Tasks completion lookup failed",
			slog.Int64("store_id", storeID),
			slog.String("error", err.Error()))
		return false
	}
	return completed >= required
}

func (e *ConditionEvaluator) evalDate(payload map[string]any) bool {
	unlockDate, ok := payloadTime(payload, "unlock_date")
	if !ok {
		return false
	}
	return !e.now().Before(unlockDate)
}

func (e *ConditionEvaluator) evalDateRange(payload map[string]any) bool {
	start, ok := payloadTime(payload, "start_date")
	if !ok {
		return false
	}
	end, ok := payloadTime(payload, "end_date")
	if !ok {
		return false
	}

	now := e.now()
	return !now.Before(start) && !now.After(end)
}

func (e *ConditionEvaluator) evalCustom(ctx context.Context, payload map[string]any, storeID int64) bool {
	name, ok := payload["handler"].(string)
	if !ok || name == "" {
		return false
	}

	e.mu.RLock()
	handler, ok := e.handlers[name]
	e.mu.RUnlock()
	if !ok {
		slog.Debug("No handler registered for custom condition", slog.String("handler", name))
		return false
	}

	result, err := handler(ctx, storeID, payload)
	if err != nil {
		slog.Error("Custom condition handler failed",
			slog.String("handler", name),
			slog.Int64("store_id", storeID),
			slog.String("error", err.Error()))
		return false
	}
	return result
}

// payloadInt64 reads an integer payload field, tolerating the float64 and
// string forms JSON decoding produces.
func payloadInt64(payload map[string]any, key string) (int64, bool) {
	v, ok := payload[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case float64:
		return int64(n), true
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	case string:
		i, err := strconv.ParseInt(n, 10, 64)
		return i, err == nil
	default:
		return 0, false
	}
}

func payloadInt64Slice(payload map[string]any, key string) ([]int64, bool) {
	v, ok := payload[key]
	if !ok {
		return nil, false
	}

	switch list := v.(type) {
	case []int64:
		return list, true
	case []any:
		out := make([]int64, 0, len(list))
		for _, item := range list {
			n, ok := payloadInt64(map[string]any{"v": item}, "v")
			if !ok {
				return nil, false
			}
			out = append(out, n)
		}
		return out, true
	default:
		return nil, false
	}
}

// payloadTime reads a timestamp payload field as time.Time, RFC 3339, or a
// plain date.
func payloadTime(payload map[string]any, key string) (time.Time, bool) {
	v, ok := payload[key]
	if !ok {
		return time.Time{}, false
	}

	switch ts := v.(type) {
	case time.Time:
		return ts, true
	case string:
		for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
			if parsed, err := time.Parse(layout, ts); err == nil {
				return parsed, true
			}
		}
		return time.Time{}, false
	default:
		return time.Time{}, false
	}
}
