package models

import (
	"strconv"
	"time"

	"github.com/uptrace/bun"
)

type Task struct {
	bun.BaseModel `bun:"table:gamification_tasks,alias:t"`

	ID                int64          `bun:"id,pk,autoincrement"`
	Key               string         `bun:"key,notnull,unique"`
	Name              string         `bun:"name,notnull"`
	Description       string         `bun:"description"`
	Points            int            `bun:"points,notnull,default:0"`
	Icon              string         `bun:"icon"`
	EventName         string         `bun:"event_name,notnull"`
	PayloadConditions map[string]any `bun:"payload_conditions,type:jsonb"`
	IsActive          bool           `bun:"is_active,notnull,default:true"`
	CreatedAt         time.Time      `bun:"created_at,notnull"`
	UpdatedAt         time.Time      `bun:"updated_at,notnull"`
}

// MatchesPayload reports whether an event payload satisfies the task's
// payload conditions. Every declared key must be present in the payload
// with a loosely equal value; a task with no conditions matches any payload.
func (t *Task) MatchesPayload(payload map[string]any) bool {
	if len(t.PayloadConditions) == 0 {
		return true
	}

	for key, want := range t.PayloadConditions {
		got, ok := payload[key]
		if !ok {
			return false
		}
		if !looselyEqual(got, want) {
			return false
		}
	}

	return true
}

// looselyEqual tolerates the numeric/string type drift that JSON decoding
// introduces: 500, 500.0 and "500" all compare equal.
func looselyEqual(a, b any) bool {
	if a == b {
		return true
	}

	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if aok && bok {
		return af == bf
	}

	as, aok := a.(string)
	bs, bok := b.(string)
	if aok && bok {
		return as == bs
	}

	return false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	default:
		return 0, false
	}
}
