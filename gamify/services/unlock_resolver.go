package services

import (
	"context"

	"github.com/storekit/gamify/gamify/database/repositories"
)

// UnlockResolver decides mission visibility from lockers. A mission with no
// lockers is always unlocked; otherwise every locker condition must hold.
type UnlockResolver struct {
	missionRepo repositories.MissionRepository
	evaluator   *ConditionEvaluator
}

func NewUnlockResolver(missionRepo repositories.MissionRepository, evaluator *ConditionEvaluator) *UnlockResolver {
	return &UnlockResolver{
		missionRepo: missionRepo,
		evaluator:   evaluator,
	}
}

func (r *UnlockResolver) IsUnlocked(ctx context.Context, missionID, storeID int64) (bool, error) {
	lockers, err := r.missionRepo.GetLockersForMission(ctx, missionID)
	if err != nil {
		return false, err
	}

	for _, locker := range lockers {
		if !r.evaluator.Evaluate(ctx, locker.ConditionType, locker.ConditionPayload, storeID) {
			return false, nil
		}
	}
	return true, nil
}
