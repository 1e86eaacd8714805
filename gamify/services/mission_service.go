package services

import (
	"context"
	"time"

	"github.com/storekit/gamify/gamify/database/models"
	"github.com/storekit/gamify/gamify/database/repositories"
	"github.com/storekit/gamify/gamify/points"
)

// TaskWithStatus pairs a catalog task with one store's ledger status.
type TaskWithStatus struct {
	Task      *models.Task `json:"task"`
	Status    string       `json:"status"`
	Completed bool         `json:"completed"`
}

// MissionWithTasks is the listing shape for one mission and one store.
type MissionWithTasks struct {
	Mission            *models.Mission  `json:"mission"`
	Unlocked           bool             `json:"unlocked"`
	Status             string           `json:"status"`
	ProgressPercentage float64          `json:"progress_percentage"`
	Tasks              []TaskWithStatus `json:"tasks"`
}

// ProgressSummary is the store-wide rollup.
type ProgressSummary struct {
	TotalMissions          int     `json:"total_missions"`
	CompletedMissions      int     `json:"completed_missions"`
	MissionsCompletionRate float64 `json:"missions_completion_rate"`
	TotalTasks             int     `json:"total_tasks"`
	CompletedTasks         int     `json:"completed_tasks"`
	TasksCompletionRate    float64 `json:"tasks_completion_rate"`
	TotalPoints            int64   `json:"total_points"`
}

// MissionService is the read path consumed by API collaborators, plus the
// explicit ignore action.
type MissionService struct {
	missionRepo  repositories.MissionRepository
	progressRepo repositories.ProgressRepository
	rewardRepo   repositories.RewardRepository
	unlocks      *UnlockResolver
	ledger       points.Ledger

	now func() time.Time
}

func NewMissionService(
	missionRepo repositories.MissionRepository,
	progressRepo repositories.ProgressRepository,
	rewardRepo repositories.RewardRepository,
	unlocks *UnlockResolver,
	ledger points.Ledger,
) *MissionService {
	return &MissionService{
		missionRepo:  missionRepo,
		progressRepo: progressRepo,
		rewardRepo:   rewardRepo,
		unlocks:      unlocks,
		ledger:       ledger,
		now:          time.Now,
	}
}

// GetAvailableMissions returns the missions inside their availability window
// and unlocked for the store, in catalog sort order.
func (s *MissionService) GetAvailableMissions(ctx context.Context, storeID int64) ([]*models.Mission, error) {
	missions, err := s.missionRepo.GetAvailable(ctx, s.now())
	if err != nil {
		return nil, err
	}

	available := make([]*models.Mission, 0, len(missions))
	for _, mission := range missions {
		unlocked, err := s.unlocks.IsUnlocked(ctx, mission.ID, storeID)
		if err != nil {
			return nil, err
		}
		if unlocked {
			available = append(available, mission)
		}
	}
	return available, nil
}

// GetMissionsWithTasks returns every available mission with its tasks and the
// store's completion flags, locked missions included so callers can render
// them disabled.
func (s *MissionService) GetMissionsWithTasks(ctx context.Context, storeID int64) ([]MissionWithTasks, error) {
	missions, err := s.missionRepo.GetAvailable(ctx, s.now())
	if err != nil {
		return nil, err
	}

	progressByMission := make(map[int64]*models.StoreProgress)
	progress, err := s.progressRepo.ListStoreProgress(ctx, storeID)
	if err != nil {
		return nil, err
	}
	for _, sp := range progress {
		progressByMission[sp.MissionID] = sp
	}

	out := make([]MissionWithTasks, 0, len(missions))
	for _, mission := range missions {
		unlocked, err := s.unlocks.IsUnlocked(ctx, mission.ID, storeID)
		if err != nil {
			return nil, err
		}

		tasks, err := s.missionRepo.GetTasksForMission(ctx, mission.ID)
		if err != nil {
			return nil, err
		}

		completions, err := s.progressRepo.ListTaskCompletions(ctx, storeID, mission.ID)
		if err != nil {
			return nil, err
		}
		statusByTask := make(map[int64]string, len(completions))
		for _, tc := range completions {
			statusByTask[tc.TaskID] = tc.Status
		}

		withStatus := make([]TaskWithStatus, 0, len(tasks))
		for _, task := range tasks {
			status, ok := statusByTask[task.ID]
			if !ok {
				status = models.TaskStatusNotStarted
			}
			withStatus = append(withStatus, TaskWithStatus{
				Task:      task,
				Status:    status,
				Completed: status == models.TaskStatusCompleted,
			})
		}

		entry := MissionWithTasks{
			Mission:  mission,
			Unlocked: unlocked,
			Status:   models.ProgressStatusNotStarted,
			Tasks:    withStatus,
		}
		if sp, ok := progressByMission[mission.ID]; ok {
			entry.Status = sp.Status
			entry.ProgressPercentage = sp.ProgressPercentage
		}
		out = append(out, entry)
	}
	return out, nil
}

// GetProgressSummary rolls up the store's standing across the whole catalog.
// Total points come from the points ledger when one is wired, otherwise from
// summing completed task points.
func (s *MissionService) GetProgressSummary(ctx context.Context, storeID int64) (*ProgressSummary, error) {
	missions, err := s.missionRepo.GetAll(ctx)
	if err != nil {
		return nil, err
	}

	totalTasks := 0
	for _, mission := range missions {
		count, err := s.progressRepo.CountTasksForMission(ctx, s.progressRepo.DB(), mission.ID)
		if err != nil {
			return nil, err
		}
		totalTasks += count
	}

	completedMissions, err := s.progressRepo.CountCompletedMissions(ctx, storeID)
	if err != nil {
		return nil, err
	}
	completedTasks, err := s.progressRepo.CountCompletedTaskRows(ctx, storeID)
	if err != nil {
		return nil, err
	}

	var totalPoints int64
	if s.ledger != nil {
		totalPoints, err = s.ledger.GetPoints(ctx, storeID)
	} else {
		var sum int
		sum, err = s.progressRepo.SumCompletedPoints(ctx, storeID)
		totalPoints = int64(sum)
	}
	if err != nil {
		return nil, err
	}

	summary := &ProgressSummary{
		TotalMissions:     len(missions),
		CompletedMissions: completedMissions,
		TotalTasks:        totalTasks,
		CompletedTasks:    completedTasks,
		TotalPoints:       totalPoints,
	}
	if len(missions) > 0 {
		summary.MissionsCompletionRate = models.RoundPercentage(100 * float64(completedMissions) / float64(len(missions)))
	}
	if totalTasks > 0 {
		summary.TasksCompletionRate = models.RoundPercentage(100 * float64(completedTasks) / float64(totalTasks))
	}
	return summary, nil
}

// IgnoreMission marks a mission ignored for the store. The mission must exist
// and must not already be completed.
func (s *MissionService) IgnoreMission(ctx context.Context, missionID, storeID int64) (bool, error) {
	if _, err := s.missionRepo.GetByID(ctx, missionID); err != nil {
		return false, err
	}

	sp, err := s.progressRepo.IgnoreStoreProgress(ctx, storeID, missionID)
	if err != nil {
		return false, err
	}
	return sp.IsIgnored(), nil
}

// GetStoreRewards lists the rewards attached to the store's completed
// missions.
func (s *MissionService) GetStoreRewards(ctx context.Context, storeID int64) ([]*models.Reward, error) {
	return s.rewardRepo.GetForCompletedMissions(ctx, storeID)
}
