package models

import (
	"time"

	"github.com/uptrace/bun"
)

type Mission struct {
	bun.BaseModel `bun:"table:gamification_missions,alias:m"`

	ID          int64      `bun:"id,pk,autoincrement"`
	Key         string     `bun:"key,notnull,unique"`
	Name        string     `bun:"name,notnull"`
	Description string     `bun:"description"`
	Image       string     `bun:"image"`
	TotalPoints int        `bun:"total_points,notnull,default:0"`
	IsActive    bool       `bun:"is_active,notnull,default:true"`
	StartDate   *time.Time `bun:"start_date"`
	EndDate     *time.Time `bun:"end_date"`
	SortOrder   int        `bun:"sort_order,notnull,default:0"`
	CreatedAt   time.Time  `bun:"created_at,notnull"`
	UpdatedAt   time.Time  `bun:"updated_at,notnull"`
}

// IsAvailable reports whether the mission is active and inside its
// availability window at the given instant. The window is inclusive at the
// start and exclusive at the end.
func (m *Mission) IsAvailable(now time.Time) bool {
	if !m.IsActive {
		return false
	}
	if m.StartDate != nil && now.Before(*m.StartDate) {
		return false
	}
	if m.EndDate != nil && !now.Before(*m.EndDate) {
		return false
	}
	return true
}

// MissionTask is the ordered mission/task association. Administration owns
// both sides; neither the mission nor the task owns the pivot exclusively.
type MissionTask struct {
	bun.BaseModel `bun:"table:gamification_mission_tasks,alias:mt"`

	ID        int64     `bun:"id,pk,autoincrement"`
	MissionID int64     `bun:"mission_id,notnull,unique:mission_task"`
	TaskID    int64     `bun:"task_id,notnull,unique:mission_task"`
	SortOrder int       `bun:"sort_order,notnull,default:0"`
	CreatedAt time.Time `bun:"created_at,notnull"`
	UpdatedAt time.Time `bun:"updated_at,notnull"`
}
