package models

import (
	"time"

	"github.com/uptrace/bun"
)

// StorePoints is the per-store points ledger backing the points reward kind.
type StorePoints struct {
	bun.BaseModel `bun:"table:gamification_store_points,alias:pt"`

	ID        int64     `bun:"id,pk,autoincrement"`
	StoreID   int64     `bun:"store_id,notnull,unique"`
	Points    int64     `bun:"points,notnull,default:0"`
	Level     int       `bun:"level,notnull,default:1"`
	CreatedAt time.Time `bun:"created_at,notnull"`
	UpdatedAt time.Time `bun:"updated_at,notnull"`
}
