package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/storekit/gamify/gamify/database/models"
	"github.com/storekit/gamify/gamify/database/repositories"
	"github.com/uptrace/bun"
)

// EventResult aggregates everything one event changed.
type EventResult struct {
	CompletedTasks    []CompletedTask    `json:"completed_tasks"`
	ProgressUpdates   []ProgressUpdate   `json:"progress_updates"`
	CompletedMissions []CompletedMission `json:"completed_missions"`
	GrantedRewards    []GrantedReward    `json:"granted_rewards"`
}

type CompletedTask struct {
	TaskID    int64  `json:"task_id"`
	TaskKey   string `json:"task_key"`
	TaskName  string `json:"task_name"`
	MissionID int64  `json:"mission_id"`
	Points    int    `json:"points"`
}

type ProgressUpdate struct {
	MissionID          int64   `json:"mission_id"`
	MissionKey         string  `json:"mission_key"`
	ProgressPercentage float64 `json:"progress_percentage"`
	Status             string  `json:"status"`
}

type CompletedMission struct {
	MissionID   int64  `json:"mission_id"`
	MissionKey  string `json:"mission_key"`
	MissionName string `json:"mission_name"`
	TotalPoints int    `json:"total_points"`
}

// RewardGranter is the completion hook the engine fires once per (store,
// mission) transition.
type RewardGranter interface {
	GrantRewards(ctx context.Context, mission *models.Mission, storeID int64) ([]GrantedReward, bool)
}

// ProgressEngine turns incoming domain events into ledger mutations. For each
// event it matches subscribed tasks, completes their ledger rows, recomputes
// mission progress, and fires reward granting on the completion transition.
//
// For one mission the completion write and the progress recompute run in a
// single transaction, so a concurrent event never observes a completed task
// next to a stale percentage. Reward granting runs after the transaction
// commits; its side effects are not transactional.
type ProgressEngine struct {
	taskRepo     repositories.TaskRepository
	missionRepo  repositories.MissionRepository
	progressRepo repositories.ProgressRepository
	unlocks      *UnlockResolver
	rewards      RewardGranter

	now func() time.Time
}

func NewProgressEngine(
	taskRepo repositories.TaskRepository,
	missionRepo repositories.MissionRepository,
	progressRepo repositories.ProgressRepository,
	unlocks *UnlockResolver,
	rewards RewardGranter,
) *ProgressEngine {
	return &ProgressEngine{
		taskRepo:     taskRepo,
		missionRepo:  missionRepo,
		progressRepo: progressRepo,
		unlocks:      unlocks,
		rewards:      rewards,
		now:          time.Now,
	}
}

// missionOutcome carries what one mission's transaction changed.
type missionOutcome struct {
	completedTask bool
	transitioned  bool
	percentage    float64
	status        string
}

// HandleEvent processes one event for one store and returns the aggregated
// result. Unmatched tasks, locked missions, and terminal ledger rows are
// silently skipped; re-delivering an event is a no-op. The error return is
// reserved for catalog lookup failures, never for per-mission skips.
func (pe *ProgressEngine) HandleEvent(ctx context.Context, eventName string, storeID int64, payload map[string]any) (*EventResult, error) {
	result := &EventResult{
		CompletedTasks:    []CompletedTask{},
		ProgressUpdates:   []ProgressUpdate{},
		CompletedMissions: []CompletedMission{},
		GrantedRewards:    []GrantedReward{},
	}

	tasks, err := pe.taskRepo.GetActiveByEventName(ctx, eventName)
	if err != nil {
		return nil, err
	}

	for _, task := range tasks {
		if !task.MatchesPayload(payload) {
			continue
		}

		missions, err := pe.taskRepo.GetMissionsForTask(ctx, task.ID)
		if err != nil {
			slog.Error("Mission lookup failed",
				slog.String("task", task.Key),
				slog.String("error", err.Error()))
			continue
		}

		for _, mission := range missions {
			pe.processMission(ctx, task, mission, storeID, result)
		}
	}

	return result, nil
}

func (pe *ProgressEngine) processMission(ctx context.Context, task *models.Task, mission *models.Mission, storeID int64, result *EventResult) {
	now := pe.now()
	if !mission.IsAvailable(now) {
		return
	}

	unlocked, err := pe.unlocks.IsUnlocked(ctx, mission.ID, storeID)
	if err != nil {
		slog.Error("Unlock check failed",
			slog.String("mission", mission.Key),
			slog.Int64("store_id", storeID),
			slog.String("error", err.Error()))
		return
	}
	if !unlocked {
		return
	}

	var outcome missionOutcome
	err = pe.progressRepo.Transaction(ctx, func(ctx context.Context, tx bun.Tx) error {
		return pe.completeInTx(ctx, tx, task, mission, storeID, now, &outcome)
	})
	if err != nil {
		slog.Error("Ledger update failed",
			slog.String("task", task.Key),
			slog.String("mission", mission.Key),
			slog.Int64("store_id", storeID),
			slog.String("error", err.Error()))
		return
	}
	if !outcome.completedTask {
		return
	}

	result.CompletedTasks = append(result.CompletedTasks, CompletedTask{
		TaskID:    task.ID,
		TaskKey:   task.Key,
		TaskName:  task.Name,
		MissionID: mission.ID,
		Points:    task.Points,
	})
	result.ProgressUpdates = append(result.ProgressUpdates, ProgressUpdate{
		MissionID:          mission.ID,
		MissionKey:         mission.Key,
		ProgressPercentage: outcome.percentage,
		Status:             outcome.status,
	})

	if !outcome.transitioned {
		return
	}

	result.CompletedMissions = append(result.CompletedMissions, CompletedMission{
		MissionID:   mission.ID,
		MissionKey:  mission.Key,
		MissionName: mission.Name,
		TotalPoints: mission.TotalPoints,
	})

	granted, allOK := pe.rewards.GrantRewards(ctx, mission, storeID)
	if !allOK {
		slog.Warn("Some rewards failed to grant",
			slog.String("mission", mission.Key),
			slog.Int64("store_id", storeID))
	}
	result.GrantedRewards = append(result.GrantedRewards, granted...)
}

// completeInTx applies one task completion and the progress recompute as one
// atomic unit.
func (pe *ProgressEngine) completeInTx(ctx context.Context, tx bun.Tx, task *models.Task, mission *models.Mission, storeID int64, now time.Time, outcome *missionOutcome) error {
	sp, _, err := pe.progressRepo.GetOrCreateStoreProgress(ctx, tx, storeID, mission.ID)
	if err != nil {
		return err
	}
	// An ignored mission is excluded from event-driven mutation entirely.
	if sp.IsIgnored() {
		return nil
	}

	tc, _, err := pe.progressRepo.GetOrCreateTaskCompletion(ctx, tx, storeID, task.ID, mission.ID)
	if err != nil {
		return err
	}
	if tc.IsTerminal() {
		return nil
	}

	if err := pe.progressRepo.MarkTaskCompleted(ctx, tx, tc, now); err != nil {
		// A racing event completed the row first; treat as the terminal
		// no-op above.
		var conflict *repositories.ConflictError
		if errors.As(err, &conflict) {
			return nil
		}
		return err
	}

	total, err := pe.progressRepo.CountTasksForMission(ctx, tx, mission.ID)
	if err != nil {
		return err
	}
	completed, err := pe.progressRepo.CountCompletedTasks(ctx, tx, storeID, mission.ID)
	if err != nil {
		return err
	}

	transitioned := sp.Recompute(completed, total, now)
	if err := pe.progressRepo.UpdateStoreProgress(ctx, tx, sp); err != nil {
		return err
	}

	outcome.completedTask = true
	outcome.transitioned = transitioned
	outcome.percentage = sp.ProgressPercentage
	outcome.status = sp.Status
	return nil
}
