package services_test

import (
	"context"
	"errors"
	"testing"

	"github.com/storekit/gamify/gamify/database/databasetest"
	"github.com/storekit/gamify/gamify/database/repositories"
	"github.com/storekit/gamify/gamify/points"
	"github.com/storekit/gamify/gamify/services"
	"github.com/uptrace/bun"
)

// testEnv wires the full evaluation stack over an in-memory database.
type testEnv struct {
	db           *bun.DB
	taskRepo     repositories.TaskRepository
	missionRepo  repositories.MissionRepository
	ruleRepo     repositories.RuleRepository
	rewardRepo   repositories.RewardRepository
	badgeRepo    repositories.BadgeRepository
	progressRepo repositories.ProgressRepository
	eventLogRepo repositories.EventLogRepository
	evaluator    *services.ConditionEvaluator
	unlocks      *services.UnlockResolver
	rules        *services.RuleResolver
	ledger       *points.StoreLedger
	rewards      *services.RewardEngine
	engine       *services.ProgressEngine
}

type envOption func(*envConfig)

type envConfig struct {
	seeded   bool
	coupons  services.CouponIssuer
	features services.FeatureUnlocker
	reward   services.RewardConfig
}

func seeded() envOption {
	return func(c *envConfig) { c.seeded = true }
}

func withCoupons(issuer services.CouponIssuer) envOption {
	return func(c *envConfig) { c.coupons = issuer }
}

func withRewardConfig(cfg services.RewardConfig) envOption {
	return func(c *envConfig) { c.reward = cfg }
}

func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()

	cfg := envConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	var db *bun.DB
	if cfg.seeded {
		db = databasetest.NewSeeded(t)
	} else {
		db = databasetest.New(t)
	}

	env := &testEnv{
		db:           db,
		taskRepo:     repositories.NewTaskRepository(db),
		missionRepo:  repositories.NewMissionRepository(db),
		ruleRepo:     repositories.NewRuleRepository(db),
		rewardRepo:   repositories.NewRewardRepository(db),
		badgeRepo:    repositories.NewBadgeRepository(db),
		progressRepo: repositories.NewProgressRepository(db),
		eventLogRepo: repositories.NewEventLogRepository(db),
	}
	env.evaluator = services.NewConditionEvaluator(env.progressRepo)
	env.unlocks = services.NewUnlockResolver(env.missionRepo, env.evaluator)
	env.rules = services.NewRuleResolver(env.ruleRepo, env.progressRepo, env.evaluator)
	env.ledger = points.NewStoreLedger(db, points.NewDefaultConfig())
	env.rewards = services.NewRewardEngine(
		env.rewardRepo, env.badgeRepo, env.progressRepo,
		env.ledger, cfg.coupons, cfg.features, cfg.reward)
	env.engine = services.NewProgressEngine(
		env.taskRepo, env.missionRepo, env.progressRepo, env.unlocks, env.rewards)
	return env
}

// completeMission drives every task of a seeded mission to completion through
// real events.
func (env *testEnv) completeMission(t *testing.T, storeID int64, missionKey string) {
	t.Helper()
	ctx := context.Background()

	mission, err := env.missionRepo.GetByKey(ctx, missionKey)
	if err != nil {
		t.Fatalf("GetByKey(%s) error = %v", missionKey, err)
	}
	tasks, err := env.missionRepo.GetTasksForMission(ctx, mission.ID)
	if err != nil {
		t.Fatalf("GetTasksForMission() error = %v", err)
	}

	for _, task := range tasks {
		payload := map[string]any{}
		for key, value := range task.PayloadConditions {
			payload[key] = value
		}
		if _, err := env.engine.HandleEvent(ctx, task.EventName, storeID, payload); err != nil {
			t.Fatalf("HandleEvent(%s) error = %v", task.EventName, err)
		}
	}
}

// failingIssuer always fails, for partial-failure tests.
type failingIssuer struct{}

func (failingIssuer) Issue(ctx context.Context, storeID int64, code string, meta map[string]any) error {
	return errors.New("coupon backend unavailable")
}

// recordingIssuer records issued coupon codes.
type recordingIssuer struct {
	codes []string
}

func (r *recordingIssuer) Issue(ctx context.Context, storeID int64, code string, meta map[string]any) error {
	r.codes = append(r.codes, code)
	return nil
}
