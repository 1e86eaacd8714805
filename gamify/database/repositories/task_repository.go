package repositories

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"github.com/storekit/gamify/gamify/config"
	"github.com/storekit/gamify/gamify/database/models"
	"github.com/uptrace/bun"
)

type TaskRepository interface {
	GetByID(ctx context.Context, id int64) (*models.Task, error)
	GetByKey(ctx context.Context, key string) (*models.Task, error)
	GetAll(ctx context.Context) ([]*models.Task, error)
	GetActiveByEventName(ctx context.Context, eventName string) ([]*models.Task, error)
	GetMissionsForTask(ctx context.Context, taskID int64) ([]*models.Mission, error)
	Create(ctx context.Context, task *models.Task) error
	Update(ctx context.Context, task *models.Task) error
	Delete(ctx context.Context, id int64) error
}

type cachedTasks struct {
	tasks     []*models.Task
	timestamp time.Time
}

type taskRepository struct {
	*BaseRepository
	eventCache  *lru.Cache
	cacheExpiry time.Duration
}

func NewTaskRepository(db *bun.DB) TaskRepository {
	cache, _ := lru.New(config.TaskCacheSize)
	return &taskRepository{
		BaseRepository: NewBaseRepository(db),
		eventCache:     cache,
		cacheExpiry:    config.CacheExpiration,
	}
}

func (r *taskRepository) GetByID(ctx context.Context, id int64) (*models.Task, error) {
	task := new(models.Task)
	err := r.db.NewSelect().
		Model(task).
		Where("id = ?", id).
		Scan(ctx)
	if err != nil {
		return nil, r.HandleErrorWithID("get", "task", id, err)
	}
	return task, nil
}

func (r *taskRepository) GetByKey(ctx context.Context, key string) (*models.Task, error) {
	task := new(models.Task)
	err := r.db.NewSelect().
		Model(task).
		Where("key = ?", key).
		Scan(ctx)
	if err != nil {
		return nil, r.HandleErrorWithID("get", "task", key, err)
	}
	return task, nil
}

func (r *taskRepository) GetAll(ctx context.Context) ([]*models.Task, error) {
	var tasks []*models.Task
	err := r.db.NewSelect().
		Model(&tasks).
		Order("id ASC").
		Scan(ctx)
	return tasks, r.HandleError("get_all", "task", err)
}

// GetActiveByEventName returns the active tasks subscribed to an event name.
// This sits on the hot path of every incoming event, so results are cached
// briefly; mutations through this repository invalidate the cache.
func (r *taskRepository) GetActiveByEventName(ctx context.Context, eventName string) ([]*models.Task, error) {
	if cached, ok := r.eventCache.Get(eventName); ok {
		entry := cached.(cachedTasks)
		if time.Since(entry.timestamp) < r.cacheExpiry {
			return entry.tasks, nil
		}
		r.eventCache.Remove(eventName)
	}

	var tasks []*models.Task
	err := r.db.NewSelect().
		Model(&tasks).
		Where("event_name = ?", eventName).
		Where("is_active = TRUE").
		Order("id ASC").
		Scan(ctx)
	if err != nil {
		return nil, r.HandleError("get_by_event", "task", err)
	}

	r.eventCache.Add(eventName, cachedTasks{tasks: tasks, timestamp: time.Now()})
	return tasks, nil
}

// GetMissionsForTask returns the missions a task belongs to, in mission sort
// order.
func (r *taskRepository) GetMissionsForTask(ctx context.Context, taskID int64) ([]*models.Mission, error) {
	var missions []*models.Mission
	err := r.db.NewSelect().
		Model(&missions).
		Join("JOIN gamification_mission_tasks AS mt ON mt.mission_id = m.id").
		Where("mt.task_id = ?", taskID).
		Order("m.sort_order ASC", "m.id ASC").
		Scan(ctx)
	return missions, r.HandleErrorWithID("get_missions", "task", taskID, err)
}

func (r *taskRepository) Create(ctx context.Context, task *models.Task) error {
	now := time.Now()
	task.CreatedAt = now
	task.UpdatedAt = now

	_, err := r.db.NewInsert().Model(task).Exec(ctx)
	if err != nil {
		if isUniqueViolation(err) {
			return &ConflictError{Entity: "task", Field: "key", Value: task.Key}
		}
		return r.HandleError("create", "task", err)
	}

	r.eventCache.Purge()
	return nil
}

func (r *taskRepository) Update(ctx context.Context, task *models.Task) error {
	task.UpdatedAt = time.Now()

	res, err := r.db.NewUpdate().
		Model(task).
		WherePK().
		Exec(ctx)
	if err != nil {
		return r.HandleErrorWithID("update", "task", task.ID, err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return &NotFoundError{Entity: "task", ID: task.ID}
	}

	r.eventCache.Purge()
	return nil
}

func (r *taskRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.NewDelete().
		Model((*models.Task)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return r.HandleErrorWithID("delete", "task", id, err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return &NotFoundError{Entity: "task", ID: id}
	}

	r.eventCache.Purge()
	return nil
}

// isUniqueViolation matches unique constraint failures from both Postgres
// (SQLSTATE 23505) and SQLite without importing driver error types.
func isUniqueViolation(err error) bool {
	if err == nil || errors.Is(err, sql.ErrNoRows) {
		return false
	}
	msg := err.Error()
	return containsAny(msg, "23505", "duplicate key", "UNIQUE constraint failed")
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if sub != "" && strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
