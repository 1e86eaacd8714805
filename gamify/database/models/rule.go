package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Rule is the alternate start/finish gating mechanism, evaluated
// independently of lockers.
type Rule struct {
	bun.BaseModel `bun:"table:gamification_rules,alias:r"`

	ID               int64          `bun:"id,pk,autoincrement"`
	MissionID        int64          `bun:"mission_id,notnull"`
	RuleType         string         `bun:"rule_type,notnull"`
	ConditionType    string         `bun:"condition_type,notnull"`
	ConditionPayload map[string]any `bun:"condition_payload,type:jsonb"`
	CreatedAt        time.Time      `bun:"created_at,notnull"`
	UpdatedAt        time.Time      `bun:"updated_at,notnull"`
}

// Rule type constants
const (
	RuleTypeStart  = "start"
	RuleTypeFinish = "finish"
)
