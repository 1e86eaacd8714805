package repositories

import (
	"context"
	"time"

	"github.com/storekit/gamify/gamify/database/models"
	"github.com/uptrace/bun"
)

type MissionRepository interface {
	GetByID(ctx context.Context, id int64) (*models.Mission, error)
	GetByKey(ctx context.Context, key string) (*models.Mission, error)
	GetAll(ctx context.Context) ([]*models.Mission, error)
	GetAvailable(ctx context.Context, now time.Time) ([]*models.Mission, error)
	GetTasksForMission(ctx context.Context, missionID int64) ([]*models.Task, error)
	GetLockersForMission(ctx context.Context, missionID int64) ([]*models.Locker, error)
	AttachTask(ctx context.Context, missionID, taskID int64, sortOrder int) error
	DetachTask(ctx context.Context, missionID, taskID int64) error
	Create(ctx context.Context, mission *models.Mission) error
	Update(ctx context.Context, mission *models.Mission) error
	Delete(ctx context.Context, id int64) error
}

type missionRepository struct {
	*BaseRepository
}

func NewMissionRepository(db *bun.DB) MissionRepository {
	return &missionRepository{BaseRepository: NewBaseRepository(db)}
}

func (r *missionRepository) GetByID(ctx context.Context, id int64) (*models.Mission, error) {
	mission := new(models.Mission)
	err := r.db.NewSelect().
		Model(mission).
		Where("id = ?", id).
		Scan(ctx)
	if err != nil {
		return nil, r.HandleErrorWithID("get", "mission", id, err)
	}
	return mission, nil
}

func (r *missionRepository) GetByKey(ctx context.Context, key string) (*models.Mission, error) {
	mission := new(models.Mission)
	err := r.db.NewSelect().
		Model(mission).
		Where("key = ?", key).
		Scan(ctx)
	if err != nil {
		return nil, r.HandleErrorWithID("get", "mission", key, err)
	}
	return mission, nil
}

func (r *missionRepository) GetAll(ctx context.Context) ([]*models.Mission, error) {
	var missions []*models.Mission
	err := r.db.NewSelect().
		Model(&missions).
		Order("sort_order ASC", "id ASC").
		Scan(ctx)
	return missions, r.HandleError("get_all", "mission", err)
}

// GetAvailable returns active missions whose availability window contains the
// given instant. Window bounds are optional; the start is inclusive and the
// end exclusive.
func (r *missionRepository) GetAvailable(ctx context.Context, now time.Time) ([]*models.Mission, error) {
	var missions []*models.Mission
	err := r.db.NewSelect().
		Model(&missions).
		Where("is_active = TRUE").
		Where("start_date IS NULL OR start_date <= ?", now).
		Where("end_date IS NULL OR end_date > ?", now).
		Order("sort_order ASC", "id ASC").
		Scan(ctx)
	return missions, r.HandleError("get_available", "mission", err)
}

// GetTasksForMission returns a mission's tasks ordered by the pivot sort
// order.
func (r *missionRepository) GetTasksForMission(ctx context.Context, missionID int64) ([]*models.Task, error) {
	var tasks []*models.Task
	err := r.db.NewSelect().
		Model(&tasks).
		Join("JOIN gamification_mission_tasks AS mt ON mt.task_id = t.id").
		Where("mt.mission_id = ?", missionID).
		Order("mt.sort_order ASC", "t.id ASC").
		Scan(ctx)
	return tasks, r.HandleErrorWithID("get_tasks", "mission", missionID, err)
}

func (r *missionRepository) GetLockersForMission(ctx context.Context, missionID int64) ([]*models.Locker, error) {
	var lockers []*models.Locker
	err := r.db.NewSelect().
		Model(&lockers).
		Where("mission_id = ?", missionID).
		Order("id ASC").
		Scan(ctx)
	return lockers, r.HandleErrorWithID("get_lockers", "mission", missionID, err)
}

func (r *missionRepository) AttachTask(ctx context.Context, missionID, taskID int64, sortOrder int) error {
	now := time.Now()
	pivot := &models.MissionTask{
		MissionID: missionID,
		TaskID:    taskID,
		SortOrder: sortOrder,
		CreatedAt: now,
		UpdatedAt: now,
	}
	_, err := r.db.NewInsert().
		Model(pivot).
		On("CONFLICT (mission_id, task_id) DO UPDATE").
		Set("sort_order = EXCLUDED.sort_order").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	return r.HandleErrorWithID("attach_task", "mission", missionID, err)
}

func (r *missionRepository) DetachTask(ctx context.Context, missionID, taskID int64) error {
	_, err := r.db.NewDelete().
		Model((*models.MissionTask)(nil)).
		Where("mission_id = ?", missionID).
		Where("task_id = ?", taskID).
		Exec(ctx)
	return r.HandleErrorWithID("detach_task", "mission", missionID, err)
}

func (r *missionRepository) Create(ctx context.Context, mission *models.Mission) error {
	now := time.Now()
	mission.CreatedAt = now
	mission.UpdatedAt = now

	_, err := r.db.NewInsert().Model(mission).Exec(ctx)
	if err != nil {
		if isUniqueViolation(err) {
			return &ConflictError{Entity: "mission", Field: "key", Value: mission.Key}
		}
		return r.HandleError("create", "mission", err)
	}
	return nil
}

func (r *missionRepository) Update(ctx context.Context, mission *models.Mission) error {
	mission.UpdatedAt = time.Now()

	res, err := r.db.NewUpdate().
		Model(mission).
		WherePK().
		Exec(ctx)
	if err != nil {
		return r.HandleErrorWithID("update", "mission", mission.ID, err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return &NotFoundError{Entity: "mission", ID: mission.ID}
	}
	return nil
}

// Delete removes a mission together with its pivot rows, lockers, rules, and
// rewards. Ledger rows are kept for audit.
func (r *missionRepository) Delete(ctx context.Context, id int64) error {
	return r.Transaction(ctx, func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.NewDelete().
			Model((*models.Mission)(nil)).
			Where("id = ?", id).
			Exec(ctx)
		if err != nil {
			return err
		}
		if affected, _ := res.RowsAffected(); affected == 0 {
			return &NotFoundError{Entity: "mission", ID: id}
		}

		for _, model := range []interface{}{
			(*models.MissionTask)(nil),
			(*models.Locker)(nil),
			(*models.Rule)(nil),
			(*models.Reward)(nil),
		} {
			if _, err := tx.NewDelete().Model(model).Where("mission_id = ?", id).Exec(ctx); err != nil {
				return err
			}
		}
		return nil
	})
}
