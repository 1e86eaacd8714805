package services

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strconv"

	"github.com/storekit/gamify/gamify/database/models"
	"github.com/storekit/gamify/gamify/database/repositories"
	"github.com/storekit/gamify/gamify/points"
)

// RewardConfig tunes reward granting.
type RewardConfig struct {
	// PointsMultiplier scales every points reward. Zero means 1.0.
	PointsMultiplier float64
}

// CouponIssuer issues coupon rewards. External to this module.
type CouponIssuer interface {
	Issue(ctx context.Context, storeID int64, code string, meta map[string]any) error
}

// FeatureUnlocker unlocks feature rewards. External to this module.
type FeatureUnlocker interface {
	Unlock(ctx context.Context, storeID int64, feature string, meta map[string]any) error
}

// GrantedReward is one successfully processed reward.
type GrantedReward struct {
	RewardID    int64  `json:"reward_id"`
	MissionID   int64  `json:"mission_id"`
	RewardType  string `json:"reward_type"`
	RewardValue string `json:"reward_value"`
}

// RewardEngine processes the rewards of a completed mission. Grants are
// idempotent per reward kind but not transactional across rewards: a failed
// reward is logged and skipped while its siblings still land.
type RewardEngine struct {
	rewardRepo   repositories.RewardRepository
	badgeRepo    repositories.BadgeRepository
	progressRepo repositories.ProgressRepository
	ledger       points.Ledger
	coupons      CouponIssuer
	features     FeatureUnlocker
	config       RewardConfig
}

func NewRewardEngine(
	rewardRepo repositories.RewardRepository,
	badgeRepo repositories.BadgeRepository,
	progressRepo repositories.ProgressRepository,
	ledger points.Ledger,
	coupons CouponIssuer,
	features FeatureUnlocker,
	config RewardConfig,
) *RewardEngine {
	if config.PointsMultiplier == 0 {
		config.PointsMultiplier = 1.0
	}
	return &RewardEngine{
		rewardRepo:   rewardRepo,
		badgeRepo:    badgeRepo,
		progressRepo: progressRepo,
		ledger:       ledger,
		coupons:      coupons,
		features:     features,
		config:       config,
	}
}

// GrantRewards processes every reward attached to the mission for the store.
// The mission's StoreProgress must already be completed; otherwise nothing is
// granted. Returns the granted rewards and whether all of them succeeded.
func (e *RewardEngine) GrantRewards(ctx context.Context, mission *models.Mission, storeID int64) ([]GrantedReward, bool) {
	completed, err := e.progressRepo.IsMissionCompleted(ctx, e.progressRepo.DB(), storeID, mission.ID)
	if err != nil {
		slog.Error("Reward precondition check failed",
			slog.Int64("store_id", storeID),
			slog.String("mission", mission.Key),
			slog.String("error", err.Error()))
		return nil, false
	}
	if !completed {
		return nil, false
	}

	rewards, err := e.rewardRepo.GetAllForMission(ctx, mission.ID)
	if err != nil {
		slog.Error("Reward lookup failed",
			slog.String("mission", mission.Key),
			slog.String("error", err.Error()))
		return nil, false
	}

	granted := make([]GrantedReward, 0, len(rewards))
	allOK := true
	for _, reward := range rewards {
		if err := e.grant(ctx, mission, storeID, reward); err != nil {
			allOK = false
			slog.Error("Reward grant failed",
				slog.Int64("store_id", storeID),
				slog.String("mission", mission.Key),
				slog.String("reward_type", reward.RewardType),
				slog.String("error", err.Error()))
			continue
		}
		granted = append(granted, GrantedReward{
			RewardID:    reward.ID,
			MissionID:   mission.ID,
			RewardType:  reward.RewardType,
			RewardValue: reward.RewardValue,
		})
	}
	return granted, allOK
}

func (e *RewardEngine) grant(ctx context.Context, mission *models.Mission, storeID int64, reward *models.Reward) error {
	switch reward.RewardType {
	case models.RewardTypePoints:
		return e.grantPoints(ctx, mission, storeID, reward)
	case models.RewardTypeBadge:
		return e.grantBadge(ctx, storeID, reward)
	case models.RewardTypeCoupon:
		if e.coupons == nil {
			return fmt.Errorf("no coupon issuer configured")
		}
		return e.coupons.Issue(ctx, storeID, reward.RewardValue, reward.RewardMeta)
	case models.RewardTypeFeatureUnlock:
		if e.features == nil {
			return fmt.Errorf("no feature unlocker configured")
		}
		return e.features.Unlock(ctx, storeID, reward.RewardValue, reward.RewardMeta)
	default:
		return fmt.Errorf("unknown reward type %q", reward.RewardType)
	}
}

func (e *RewardEngine) grantPoints(ctx context.Context, mission *models.Mission, storeID int64, reward *models.Reward) error {
	base, err := strconv.ParseInt(reward.RewardValue, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid points value %q: %w", reward.RewardValue, err)
	}

	amount := int64(math.Round(float64(base) * e.config.PointsMultiplier))
	return e.ledger.Credit(ctx, storeID, amount, "mission:"+mission.Key)
}

// grantBadge associates the badge named by the reward value with the store.
// An already earned badge counts as success.
func (e *RewardEngine) grantBadge(ctx context.Context, storeID int64, reward *models.Reward) error {
	badge, err := e.badgeRepo.GetByKey(ctx, reward.RewardValue)
	if err != nil {
		return err
	}

	_, err = e.badgeRepo.AwardToStore(ctx, storeID, badge.ID)
	return err
}
