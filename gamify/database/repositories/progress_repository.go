package repositories

import (
	"context"
	"time"

	"github.com/storekit/gamify/gamify/database/models"
	"github.com/uptrace/bun"
)

// ProgressRepository owns the completion ledger: the per-(store, task,
// mission) task rows and the per-(store, mission) aggregate rows. Methods
// that take a bun.IDB participate in a caller-managed transaction; pass the
// repository's database handle for standalone use.
type ProgressRepository interface {
	Transaction(ctx context.Context, fn func(context.Context, bun.Tx) error) error
	DB() bun.IDB

	GetOrCreateTaskCompletion(ctx context.Context, idb bun.IDB, storeID, taskID, missionID int64) (*models.TaskCompletion, bool, error)
	GetOrCreateStoreProgress(ctx context.Context, idb bun.IDB, storeID, missionID int64) (*models.StoreProgress, bool, error)
	MarkTaskCompleted(ctx context.Context, idb bun.IDB, tc *models.TaskCompletion, completedAt time.Time) error
	UpdateStoreProgress(ctx context.Context, idb bun.IDB, sp *models.StoreProgress) error

	GetTaskCompletion(ctx context.Context, storeID, taskID, missionID int64) (*models.TaskCompletion, error)
	GetStoreProgress(ctx context.Context, storeID, missionID int64) (*models.StoreProgress, error)
	ListTaskCompletions(ctx context.Context, storeID, missionID int64) ([]*models.TaskCompletion, error)
	ListStoreProgress(ctx context.Context, storeID int64) ([]*models.StoreProgress, error)

	CountTasksForMission(ctx context.Context, idb bun.IDB, missionID int64) (int, error)
	CountCompletedTasks(ctx context.Context, idb bun.IDB, storeID, missionID int64) (int, error)
	CountCompletedAmong(ctx context.Context, storeID int64, taskIDs []int64) (int, error)
	CountCompletedMissions(ctx context.Context, storeID int64) (int, error)
	CountCompletedTaskRows(ctx context.Context, storeID int64) (int, error)
	SumCompletedPoints(ctx context.Context, storeID int64) (int, error)

	IgnoreStoreProgress(ctx context.Context, storeID, missionID int64) (*models.StoreProgress, error)
	IsMissionCompleted(ctx context.Context, idb bun.IDB, storeID, missionID int64) (bool, error)
}

type progressRepository struct {
	*BaseRepository
}

func NewProgressRepository(db *bun.DB) ProgressRepository {
	return &progressRepository{BaseRepository: NewBaseRepository(db)}
}

func (r *progressRepository) DB() bun.IDB {
	return r.db
}

// GetOrCreateTaskCompletion returns the ledger row for the triple, creating
// it in not_started when absent. Concurrent creators converge on the same
// row: the insert backs off on conflict and the existing row is read back.
// The second return value reports whether this call created the row.
func (r *progressRepository) GetOrCreateTaskCompletion(ctx context.Context, idb bun.IDB, storeID, taskID, missionID int64) (*models.TaskCompletion, bool, error) {
	now := time.Now()
	tc := &models.TaskCompletion{
		StoreID:   storeID,
		TaskID:    taskID,
		MissionID: missionID,
		Status:    models.TaskStatusNotStarted,
		CreatedAt: now,
		UpdatedAt: now,
	}

	res, err := idb.NewInsert().
		Model(tc).
		On("CONFLICT (store_id, task_id, mission_id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return nil, false, r.HandleError("get_or_create", "task_completion", err)
	}
	if affected, _ := res.RowsAffected(); affected > 0 {
		return tc, true, nil
	}

	existing := new(models.TaskCompletion)
	err = idb.NewSelect().
		Model(existing).
		Where("store_id = ?", storeID).
		Where("task_id = ?", taskID).
		Where("mission_id = ?", missionID).
		Scan(ctx)
	if err != nil {
		return nil, false, r.HandleError("get_or_create", "task_completion", err)
	}
	return existing, false, nil
}

// GetOrCreateStoreProgress is the aggregate-row counterpart of
// GetOrCreateTaskCompletion.
func (r *progressRepository) GetOrCreateStoreProgress(ctx context.Context, idb bun.IDB, storeID, missionID int64) (*models.StoreProgress, bool, error) {
	now := time.Now()
	sp := &models.StoreProgress{
		StoreID:   storeID,
		MissionID: missionID,
		Status:    models.ProgressStatusNotStarted,
		CreatedAt: now,
		UpdatedAt: now,
	}

	res, err := idb.NewInsert().
		Model(sp).
		On("CONFLICT (store_id, mission_id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return nil, false, r.HandleError("get_or_create", "store_progress", err)
	}
	if affected, _ := res.RowsAffected(); affected > 0 {
		return sp, true, nil
	}

	existing := new(models.StoreProgress)
	err = idb.NewSelect().
		Model(existing).
		Where("store_id = ?", storeID).
		Where("mission_id = ?", missionID).
		Scan(ctx)
	if err != nil {
		return nil, false, r.HandleError("get_or_create", "store_progress", err)
	}
	return existing, false, nil
}

// MarkTaskCompleted flips a ledger row to completed. The WHERE clause guards
// against racing writers: only a row still in not_started is updated, so a
// task completes at most once per mission per store.
func (r *progressRepository) MarkTaskCompleted(ctx context.Context, idb bun.IDB, tc *models.TaskCompletion, completedAt time.Time) error {
	res, err := idb.NewUpdate().
		Model((*models.TaskCompletion)(nil)).
		Set("status = ?", models.TaskStatusCompleted).
		Set("completed_at = ?", completedAt).
		Set("updated_at = ?", completedAt).
		Where("id = ?", tc.ID).
		Where("status = ?", models.TaskStatusNotStarted).
		Exec(ctx)
	if err != nil {
		return r.HandleErrorWithID("mark_completed", "task_completion", tc.ID, err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return &ConflictError{Entity: "task_completion", Field: "status", Value: tc.Status}
	}

	tc.Status = models.TaskStatusCompleted
	tc.CompletedAt = &completedAt
	tc.UpdatedAt = completedAt
	return nil
}

func (r *progressRepository) UpdateStoreProgress(ctx context.Context, idb bun.IDB, sp *models.StoreProgress) error {
	sp.UpdatedAt = time.Now()

	_, err := idb.NewUpdate().
		Model(sp).
		WherePK().
		Exec(ctx)
	return r.HandleErrorWithID("update", "store_progress", sp.ID, err)
}

func (r *progressRepository) GetTaskCompletion(ctx context.Context, storeID, taskID, missionID int64) (*models.TaskCompletion, error) {
	tc := new(models.TaskCompletion)
	err := r.db.NewSelect().
		Model(tc).
		Where("store_id = ?", storeID).
		Where("task_id = ?", taskID).
		Where("mission_id = ?", missionID).
		Scan(ctx)
	if err != nil {
		return nil, r.HandleErrorWithID("get", "task_completion", taskID, err)
	}
	return tc, nil
}

func (r *progressRepository) GetStoreProgress(ctx context.Context, storeID, missionID int64) (*models.StoreProgress, error) {
	sp := new(models.StoreProgress)
	err := r.db.NewSelect().
		Model(sp).
		Where("store_id = ?", storeID).
		Where("mission_id = ?", missionID).
		Scan(ctx)
	if err != nil {
		return nil, r.HandleErrorWithID("get", "store_progress", missionID, err)
	}
	return sp, nil
}

func (r *progressRepository) ListTaskCompletions(ctx context.Context, storeID, missionID int64) ([]*models.TaskCompletion, error) {
	var rows []*models.TaskCompletion
	err := r.db.NewSelect().
		Model(&rows).
		Relation("Task").
		Where("tc.store_id = ?", storeID).
		Where("tc.mission_id = ?", missionID).
		Order("tc.id ASC").
		Scan(ctx)
	return rows, r.HandleErrorWithID("list", "task_completion", missionID, err)
}

func (r *progressRepository) ListStoreProgress(ctx context.Context, storeID int64) ([]*models.StoreProgress, error) {
	var rows []*models.StoreProgress
	err := r.db.NewSelect().
		Model(&rows).
		Where("store_id = ?", storeID).
		Order("mission_id ASC").
		Scan(ctx)
	return rows, r.HandleErrorWithID("list", "store_progress", storeID, err)
}

func (r *progressRepository) CountTasksForMission(ctx context.Context, idb bun.IDB, missionID int64) (int, error) {
	count, err := idb.NewSelect().
		Model((*models.MissionTask)(nil)).
		Where("mission_id = ?", missionID).
		Count(ctx)
	return count, r.HandleErrorWithID("count_tasks", "mission", missionID, err)
}

func (r *progressRepository) CountCompletedTasks(ctx context.Context, idb bun.IDB, storeID, missionID int64) (int, error) {
	count, err := idb.NewSelect().
		Model((*models.TaskCompletion)(nil)).
		Where("store_id = ?", storeID).
		Where("mission_id = ?", missionID).
		Where("status = ?", models.TaskStatusCompleted).
		Count(ctx)
	return count, r.HandleErrorWithID("count_completed", "task_completion", missionID, err)
}

// CountCompletedAmong counts completed ledger rows for the given tasks,
// regardless of mission. Used for tasks_completion conditions that reference
// tasks across missions.
func (r *progressRepository) CountCompletedAmong(ctx context.Context, storeID int64, taskIDs []int64) (int, error) {
	if len(taskIDs) == 0 {
		return 0, nil
	}
	count, err := r.db.NewSelect().
		Model((*models.TaskCompletion)(nil)).
		Where("store_id = ?", storeID).
		Where("task_id IN (?)", bun.In(taskIDs)).
		Where("status = ?", models.TaskStatusCompleted).
		Count(ctx)
	return count, r.HandleErrorWithID("count_among", "task_completion", storeID, err)
}

func (r *progressRepository) CountCompletedMissions(ctx context.Context, storeID int64) (int, error) {
	count, err := r.db.NewSelect().
		Model((*models.StoreProgress)(nil)).
		Where("store_id = ?", storeID).
		Where("status = ?", models.ProgressStatusCompleted).
		Count(ctx)
	return count, r.HandleErrorWithID("count_missions", "store_progress", storeID, err)
}

func (r *progressRepository) CountCompletedTaskRows(ctx context.Context, storeID int64) (int, error) {
	count, err := r.db.NewSelect().
		Model((*models.TaskCompletion)(nil)).
		Where("store_id = ?", storeID).
		Where("status = ?", models.TaskStatusCompleted).
		Count(ctx)
	return count, r.HandleErrorWithID("count_rows", "task_completion", storeID, err)
}

// SumCompletedPoints totals the points of every task the store has completed
// across all missions.
func (r *progressRepository) SumCompletedPoints(ctx context.Context, storeID int64) (int, error) {
	var total int
	err := r.db.NewSelect().
		ColumnExpr("COALESCE(SUM(t.points), 0)").
		TableExpr("gamification_task_completions AS tc").
		Join("JOIN gamification_tasks AS t ON t.id = tc.task_id").
		Where("tc.store_id = ?", storeID).
		Where("tc.status = ?", models.TaskStatusCompleted).
		Scan(ctx, &total)
	return total, r.HandleErrorWithID("sum_points", "task_completion", storeID, err)
}

// IgnoreStoreProgress marks a mission ignored for a store, creating the
// aggregate row if needed. Ignored missions are excluded from event
// processing but an already completed mission stays completed.
func (r *progressRepository) IgnoreStoreProgress(ctx context.Context, storeID, missionID int64) (*models.StoreProgress, error) {
	var result *models.StoreProgress
	err := r.Transaction(ctx, func(ctx context.Context, tx bun.Tx) error {
		sp, _, err := r.GetOrCreateStoreProgress(ctx, tx, storeID, missionID)
		if err != nil {
			return err
		}
		if sp.IsCompleted() {
			return &ConflictError{Entity: "store_progress", Field: "status", Value: sp.Status}
		}
		if sp.IsIgnored() {
			result = sp
			return nil
		}

		sp.Status = models.ProgressStatusIgnored
		if err := r.UpdateStoreProgress(ctx, tx, sp); err != nil {
			return err
		}
		result = sp
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (r *progressRepository) IsMissionCompleted(ctx context.Context, idb bun.IDB, storeID, missionID int64) (bool, error) {
	exists, err := idb.NewSelect().
		Model((*models.StoreProgress)(nil)).
		Where("store_id = ?", storeID).
		Where("mission_id = ?", missionID).
		Where("status = ?", models.ProgressStatusCompleted).
		Exists(ctx)
	return exists, r.HandleErrorWithID("is_completed", "store_progress", missionID, err)
}
