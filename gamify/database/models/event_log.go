package models

import (
	"time"

	"github.com/uptrace/bun"
)

// EventLog records every inbound domain event before processing, for audit
// and replay. Processing results are attached once the engine finishes.
type EventLog struct {
	bun.BaseModel `bun:"table:gamification_event_log,alias:el"`

	ID          int64          `bun:"id,pk,autoincrement"`
	StoreID     int64          `bun:"store_id,notnull"`
	EventName   string         `bun:"event_name,notnull"`
	Payload     map[string]any `bun:"payload,type:jsonb"`
	Processed   bool           `bun:"processed,notnull,default:false"`
	ProcessedAt *time.Time     `bun:"processed_at"`
	Result      map[string]any `bun:"result,type:jsonb"`
	CreatedAt   time.Time      `bun:"created_at,notnull"`
}
