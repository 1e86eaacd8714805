package models

import (
	"time"

	"github.com/uptrace/bun"
)

type Badge struct {
	bun.BaseModel `bun:"table:gamification_badges,alias:b"`

	ID          int64     `bun:"id,pk,autoincrement"`
	Key         string    `bun:"key,notnull,unique"`
	Name        string    `bun:"name,notnull"`
	Description string    `bun:"description"`
	Image       string    `bun:"image"`
	IsActive    bool      `bun:"is_active,notnull,default:true"`
	CreatedAt   time.Time `bun:"created_at,notnull"`
	UpdatedAt   time.Time `bun:"updated_at,notnull"`
}

// StoreBadge records a badge earned by a store. The (store_id, badge_id)
// uniqueness makes badge grants idempotent.
type StoreBadge struct {
	bun.BaseModel `bun:"table:gamification_store_badges,alias:sb"`

	ID        int64     `bun:"id,pk,autoincrement"`
	StoreID   int64     `bun:"store_id,notnull,unique:store_badge"`
	BadgeID   int64     `bun:"badge_id,notnull,unique:store_badge"`
	EarnedAt  time.Time `bun:"earned_at,notnull"`
	CreatedAt time.Time `bun:"created_at,notnull"`
	UpdatedAt time.Time `bun:"updated_at,notnull"`

	Badge *Badge `bun:"rel:has-one,join:badge_id=id"`
}
