package models

import (
	"math"
	"time"

	"github.com/uptrace/bun"
)

// StoreProgress is the per-(store, mission) aggregate ledger row.
type StoreProgress struct {
	bun.BaseModel `bun:"table:gamification_store_progress,alias:sp"`

	ID                 int64      `bun:"id,pk,autoincrement"`
	StoreID            int64      `bun:"store_id,notnull,unique:store_mission"`
	MissionID          int64      `bun:"mission_id,notnull,unique:store_mission"`
	Status             string     `bun:"status,notnull,default:'not_started'"`
	ProgressPercentage float64    `bun:"progress_percentage,notnull,default:0"`
	CompletedAt        *time.Time `bun:"completed_at"`
	CreatedAt          time.Time  `bun:"created_at,notnull"`
	UpdatedAt          time.Time  `bun:"updated_at,notnull"`
}

// Store progress status constants
const (
	ProgressStatusNotStarted = "not_started"
	ProgressStatusInProgress = "in_progress"
	ProgressStatusCompleted  = "completed"
	ProgressStatusIgnored    = "ignored"
)

func (sp *StoreProgress) IsCompleted() bool {
	return sp.Status == ProgressStatusCompleted
}

func (sp *StoreProgress) IsIgnored() bool {
	return sp.Status == ProgressStatusIgnored
}

// Recompute derives the percentage and status from the completed/total task
// counts. With zero total tasks the percentage is 0 and the status is left
// alone. The completed status and timestamp are set exactly once; a row that
// already completed keeps its original CompletedAt. Returns true when this
// call transitioned the row into completed.
func (sp *StoreProgress) Recompute(completedTasks, totalTasks int, now time.Time) bool {
	if totalTasks == 0 {
		sp.ProgressPercentage = 0
		return false
	}

	sp.ProgressPercentage = RoundPercentage(100 * float64(completedTasks) / float64(totalTasks))

	if sp.ProgressPercentage >= 100 {
		if sp.Status == ProgressStatusCompleted {
			return false
		}
		sp.Status = ProgressStatusCompleted
		sp.CompletedAt = &now
		return true
	}

	if sp.ProgressPercentage > 0 {
		sp.Status = ProgressStatusInProgress
	}
	return false
}

// RoundPercentage rounds to the two-decimal precision the ledger stores.
func RoundPercentage(pct float64) float64 {
	return math.Round(pct*100) / 100
}
