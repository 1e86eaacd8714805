package repositories

import (
	"context"
	"time"

	"github.com/storekit/gamify/gamify/database/models"
	"github.com/uptrace/bun"
)

type RewardRepository interface {
	GetByID(ctx context.Context, id int64) (*models.Reward, error)
	GetAllForMission(ctx context.Context, missionID int64) ([]*models.Reward, error)
	GetForCompletedMissions(ctx context.Context, storeID int64) ([]*models.Reward, error)
	Create(ctx context.Context, reward *models.Reward) error
	Update(ctx context.Context, reward *models.Reward) error
	Delete(ctx context.Context, id int64) error
}

type rewardRepository struct {
	*BaseRepository
}

func NewRewardRepository(db *bun.DB) RewardRepository {
	return &rewardRepository{BaseRepository: NewBaseRepository(db)}
}

func (r *rewardRepository) GetByID(ctx context.Context, id int64) (*models.Reward, error) {
	reward := new(models.Reward)
	err := r.db.NewSelect().
		Model(reward).
		Where("id = ?", id).
		Scan(ctx)
	if err != nil {
		return nil, r.HandleErrorWithID("get", "reward", id, err)
	}
	return reward, nil
}

func (r *rewardRepository) GetAllForMission(ctx context.Context, missionID int64) ([]*models.Reward, error) {
	var rewards []*models.Reward
	err := r.db.NewSelect().
		Model(&rewards).
		Where("mission_id = ?", missionID).
		Order("id ASC").
		Scan(ctx)
	return rewards, r.HandleErrorWithID("get_all", "reward", missionID, err)
}

// GetForCompletedMissions returns the rewards attached to every mission the
// store has completed.
func (r *rewardRepository) GetForCompletedMissions(ctx context.Context, storeID int64) ([]*models.Reward, error) {
	var rewards []*models.Reward
	err := r.db.NewSelect().
		Model(&rewards).
		Join("JOIN gamification_store_progress AS sp ON sp.mission_id = rw.mission_id").
		Where("sp.store_id = ?", storeID).
		Where("sp.status = ?", models.ProgressStatusCompleted).
		Order("rw.mission_id ASC", "rw.id ASC").
		Scan(ctx)
	return rewards, r.HandleErrorWithID("get_completed", "reward", storeID, err)
}

func (r *rewardRepository) Create(ctx context.Context, reward *models.Reward) error {
	now := time.Now()
	reward.CreatedAt = now
	reward.UpdatedAt = now

	_, err := r.db.NewInsert().Model(reward).Exec(ctx)
	return r.HandleError("create", "reward", err)
}

func (r *rewardRepository) Update(ctx context.Context, reward *models.Reward) error {
	reward.UpdatedAt = time.Now()

	res, err := r.db.NewUpdate().
		Model(reward).
		WherePK().
		Exec(ctx)
	if err != nil {
		return r.HandleErrorWithID("update", "reward", reward.ID, err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return &NotFoundError{Entity: "reward", ID: reward.ID}
	}
	return nil
}

func (r *rewardRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.NewDelete().
		Model((*models.Reward)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return r.HandleErrorWithID("delete", "reward", id, err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return &NotFoundError{Entity: "reward", ID: id}
	}
	return nil
}
