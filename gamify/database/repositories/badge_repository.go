package repositories

import (
	"context"
	"time"

	"github.com/storekit/gamify/gamify/database/models"
	"github.com/uptrace/bun"
)

type BadgeRepository interface {
	GetByID(ctx context.Context, id int64) (*models.Badge, error)
	GetByKey(ctx context.Context, key string) (*models.Badge, error)
	Create(ctx context.Context, badge *models.Badge) error
	AwardToStore(ctx context.Context, storeID, badgeID int64) (bool, error)
	IsEarnedByStore(ctx context.Context, storeID, badgeID int64) (bool, error)
	GetStoreBadges(ctx context.Context, storeID int64) ([]*models.StoreBadge, error)
}

type badgeRepository struct {
	*BaseRepository
}

func NewBadgeRepository(db *bun.DB) BadgeRepository {
	return &badgeRepository{BaseRepository: NewBaseRepository(db)}
}

func (r *badgeRepository) GetByID(ctx context.Context, id int64) (*models.Badge, error) {
	badge := new(models.Badge)
	err := r.db.NewSelect().
		Model(badge).
		Where("id = ?", id).
		Scan(ctx)
	if err != nil {
		return nil, r.HandleErrorWithID("get", "badge", id, err)
	}
	return badge, nil
}

func (r *badgeRepository) GetByKey(ctx context.Context, key string) (*models.Badge, error) {
	badge := new(models.Badge)
	err := r.db.NewSelect().
		Model(badge).
		Where("key = ?", key).
		Scan(ctx)
	if err != nil {
		return nil, r.HandleErrorWithID("get", "badge", key, err)
	}
	return badge, nil
}

func (r *badgeRepository) Create(ctx context.Context, badge *models.Badge) error {
	now := time.Now()
	badge.CreatedAt = now
	badge.UpdatedAt = now

	_, err := r.db.NewInsert().Model(badge).Exec(ctx)
	if err != nil {
		if isUniqueViolation(err) {
			return &ConflictError{Entity: "badge", Field: "key", Value: badge.Key}
		}
		return r.HandleError("create", "badge", err)
	}
	return nil
}

// AwardToStore grants a badge to a store. The grant is idempotent; awarding a
// badge the store already holds is a no-op. Returns true when a new badge row
// was written.
func (r *badgeRepository) AwardToStore(ctx context.Context, storeID, badgeID int64) (bool, error) {
	now := time.Now()
	sb := &models.StoreBadge{
		StoreID:   storeID,
		BadgeID:   badgeID,
		EarnedAt:  now,
		CreatedAt: now,
		UpdatedAt: now,
	}
	res, err := r.db.NewInsert().
		Model(sb).
		On("CONFLICT (store_id, badge_id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return false, r.HandleErrorWithID("award", "badge", badgeID, err)
	}

	affected, _ := res.RowsAffected()
	return affected > 0, nil
}

func (r *badgeRepository) IsEarnedByStore(ctx context.Context, storeID, badgeID int64) (bool, error) {
	exists, err := r.db.NewSelect().
		Model((*models.StoreBadge)(nil)).
		Where("store_id = ?", storeID).
		Where("badge_id = ?", badgeID).
		Exists(ctx)
	return exists, r.HandleErrorWithID("is_earned", "badge", badgeID, err)
}

func (r *badgeRepository) GetStoreBadges(ctx context.Context, storeID int64) ([]*models.StoreBadge, error) {
	var badges []*models.StoreBadge
	err := r.db.NewSelect().
		Model(&badges).
		Relation("Badge").
		Where("sb.store_id = ?", storeID).
		Order("sb.earned_at ASC", "sb.id ASC").
		Scan(ctx)
	return badges, r.HandleErrorWithID("get_store_badges", "badge", storeID, err)
}
