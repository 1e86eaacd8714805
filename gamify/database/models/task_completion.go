package models

import (
	"time"

	"github.com/uptrace/bun"
)

// TaskCompletion is the per-(store, task, mission) ledger row. Rows are
// created lazily on the first relevant event and only ever move
// not_started -> completed or not_started -> ignored.
type TaskCompletion struct {
	bun.BaseModel `bun:"table:gamification_task_completions,alias:tc"`

	ID          int64      `bun:"id,pk,autoincrement"`
	StoreID     int64      `bun:"store_id,notnull,unique:store_task_mission"`
	TaskID      int64      `bun:"task_id,notnull,unique:store_task_mission"`
	MissionID   int64      `bun:"mission_id,notnull,unique:store_task_mission"`
	Status      string     `bun:"status,notnull,default:'not_started'"`
	CompletedAt *time.Time `bun:"completed_at"`
	CreatedAt   time.Time  `bun:"created_at,notnull"`
	UpdatedAt   time.Time  `bun:"updated_at,notnull"`

	Task *Task `bun:"rel:has-one,join:task_id=id"`
}

// Task completion status constants
const (
	TaskStatusNotStarted = "not_started"
	TaskStatusCompleted  = "completed"
	TaskStatusIgnored    = "ignored"
)

func (tc *TaskCompletion) IsCompleted() bool {
	return tc.Status == TaskStatusCompleted
}

func (tc *TaskCompletion) IsIgnored() bool {
	return tc.Status == TaskStatusIgnored
}

// IsTerminal reports whether the row can no longer change through event
// processing.
func (tc *TaskCompletion) IsTerminal() bool {
	return tc.Status == TaskStatusCompleted || tc.Status == TaskStatusIgnored
}
