package repositories

import (
	"context"
	"encoding/json"
	"time"

	"github.com/storekit/gamify/gamify/database/models"
	"github.com/uptrace/bun"
)

type EventLogRepository interface {
	Create(ctx context.Context, entry *models.EventLog) error
	MarkProcessed(ctx context.Context, id int64, result map[string]any) error
	GetUnprocessed(ctx context.Context, limit int) ([]*models.EventLog, error)
}

type eventLogRepository struct {
	*BaseRepository
}

func NewEventLogRepository(db *bun.DB) EventLogRepository {
	return &eventLogRepository{BaseRepository: NewBaseRepository(db)}
}

func (r *eventLogRepository) Create(ctx context.Context, entry *models.EventLog) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	_, err := r.db.NewInsert().Model(entry).Exec(ctx)
	return r.HandleError("create", "event_log", err)
}

func (r *eventLogRepository) MarkProcessed(ctx context.Context, id int64, result map[string]any) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return r.HandleErrorWithID("mark_processed", "event_log", id, err)
	}

	now := time.Now()
	res, err := r.db.NewUpdate().
		Model((*models.EventLog)(nil)).
		Set("processed = TRUE").
		Set("processed_at = ?", now).
		Set("result = ?", string(resultJSON)).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return r.HandleErrorWithID("mark_processed", "event_log", id, err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return &NotFoundError{Entity: "event_log", ID: id}
	}
	return nil
}

// GetUnprocessed returns pending entries oldest first, for replay after a
// crash or a consumer backlog.
func (r *eventLogRepository) GetUnprocessed(ctx context.Context, limit int) ([]*models.EventLog, error) {
	var entries []*models.EventLog
	q := r.db.NewSelect().
		Model(&entries).
		Where("processed = FALSE").
		Order("id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Scan(ctx)
	return entries, r.HandleError("get_unprocessed", "event_log", err)
}
