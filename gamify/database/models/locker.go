package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Locker gates a mission's visibility for a store. A mission with no lockers
// is always unlocked; otherwise every locker condition must hold.
type Locker struct {
	bun.BaseModel `bun:"table:gamification_lockers,alias:l"`

	ID               int64          `bun:"id,pk,autoincrement"`
	MissionID        int64          `bun:"mission_id,notnull"`
	ConditionType    string         `bun:"condition_type,notnull"`
	ConditionPayload map[string]any `bun:"condition_payload,type:jsonb"`
	CreatedAt        time.Time      `bun:"created_at,notnull"`
	UpdatedAt        time.Time      `bun:"updated_at,notnull"`
}

// Condition type constants, shared by lockers and rules.
const (
	ConditionMissionCompletion = "mission_completion"
	ConditionTasksCompletion   = "tasks_completion"
	ConditionDate              = "date"
	ConditionDateRange         = "date_range"
	ConditionCustom            = "custom"
)
