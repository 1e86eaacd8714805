// Package gamify wires the progress engine together: repositories over the
// shared database handle, the evaluator and resolvers on top of them, and the
// consumer pool that feeds inbound events to the dispatcher.
package gamify

import (
	"time"

	"github.com/storekit/gamify/gamify/database"
	"github.com/storekit/gamify/gamify/database/repositories"
	"github.com/storekit/gamify/gamify/points"
	"github.com/storekit/gamify/gamify/services"
	"github.com/storekit/gamify/gamify/worker"
)

type App struct {
	Config *Config
	DB     *database.DB

	TaskRepo     repositories.TaskRepository
	MissionRepo  repositories.MissionRepository
	RuleRepo     repositories.RuleRepository
	RewardRepo   repositories.RewardRepository
	BadgeRepo    repositories.BadgeRepository
	ProgressRepo repositories.ProgressRepository
	EventLogRepo repositories.EventLogRepository

	Ledger     *points.StoreLedger
	Evaluator  *services.ConditionEvaluator
	Unlocks    *services.UnlockResolver
	Rules      *services.RuleResolver
	Rewards    *services.RewardEngine
	Engine     *services.ProgressEngine
	Missions   *services.MissionService
	Dispatcher *services.EventDispatcher

	Pool *worker.Pool
}

// New builds the full application graph from an open database handle. Coupon
// and feature collaborators are optional; pass nil and the matching reward
// types fail with a logged error instead of granting.
func New(cfg *Config, db *database.DB, coupons services.CouponIssuer, features services.FeatureUnlocker) *App {
	bdb := db.BunDB()

	app := &App{
		Config: cfg,
		DB:     db,

		TaskRepo:     repositories.NewTaskRepository(bdb),
		MissionRepo:  repositories.NewMissionRepository(bdb),
		RuleRepo:     repositories.NewRuleRepository(bdb),
		RewardRepo:   repositories.NewRewardRepository(bdb),
		BadgeRepo:    repositories.NewBadgeRepository(bdb),
		ProgressRepo: repositories.NewProgressRepository(bdb),
		EventLogRepo: repositories.NewEventLogRepository(bdb),
	}

	pointsConfig := points.NewDefaultConfig()
	if cfg.Engine.PointsPerLevel > 0 {
		pointsConfig.PointsPerLevel = cfg.Engine.PointsPerLevel
	}
	pointsConfig.LevelCapEnabled = cfg.Engine.LevelCapEnabled
	if cfg.Engine.LevelCap > 0 {
		pointsConfig.LevelCap = cfg.Engine.LevelCap
	}
	pointsConfig.PointsContinue = cfg.Engine.PointsContinue
	app.Ledger = points.NewStoreLedger(bdb, pointsConfig)

	app.Evaluator = services.NewConditionEvaluator(app.ProgressRepo)
	app.Unlocks = services.NewUnlockResolver(app.MissionRepo, app.Evaluator)
	app.Rules = services.NewRuleResolver(app.RuleRepo, app.ProgressRepo, app.Evaluator)
	app.Rewards = services.NewRewardEngine(
		app.RewardRepo,
		app.BadgeRepo,
		app.ProgressRepo,
		app.Ledger,
		coupons,
		features,
		services.RewardConfig{PointsMultiplier: cfg.Engine.PointsMultiplier},
	)
	app.Engine = services.NewProgressEngine(
		app.TaskRepo,
		app.MissionRepo,
		app.ProgressRepo,
		app.Unlocks,
		app.Rewards,
	)
	app.Missions = services.NewMissionService(
		app.MissionRepo,
		app.ProgressRepo,
		app.RewardRepo,
		app.Unlocks,
		app.Ledger,
	)
	app.Dispatcher = services.NewEventDispatcher(app.Engine, app.EventLogRepo, cfg.Engine.EventLogEnabled)

	app.Pool = worker.NewPool(app.Dispatcher, cfg.Worker.Count, cfg.Worker.QueueSize)

	return app
}

// Shutdown stops the consumer pool, draining queued events, then closes the
// database.
func (a *App) Shutdown(timeout time.Duration) error {
	if err := a.Pool.Shutdown(timeout); err != nil {
		return err
	}
	a.DB.Close()
	return nil
}
