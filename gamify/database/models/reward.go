package models

import (
	"time"

	"github.com/uptrace/bun"
)

type Reward struct {
	bun.BaseModel `bun:"table:gamification_rewards,alias:rw"`

	ID          int64          `bun:"id,pk,autoincrement"`
	MissionID   int64          `bun:"mission_id,notnull"`
	RewardType  string         `bun:"reward_type,notnull"`
	RewardValue string         `bun:"reward_value,notnull"`
	RewardMeta  map[string]any `bun:"reward_meta,type:jsonb"`
	CreatedAt   time.Time      `bun:"created_at,notnull"`
	UpdatedAt   time.Time      `bun:"updated_at,notnull"`
}

// Reward type constants
const (
	RewardTypePoints        = "points"
	RewardTypeBadge         = "badge"
	RewardTypeCoupon        = "coupon"
	RewardTypeFeatureUnlock = "feature_unlock"
)
