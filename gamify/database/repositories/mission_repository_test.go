package repositories_test

import (
	"context"
	"testing"
	"time"

	"github.com/storekit/gamify/gamify/database/databasetest"
	"github.com/storekit/gamify/gamify/database/models"
	"github.com/storekit/gamify/gamify/database/repositories"
)

func TestMissionRepository_GetAvailable(t *testing.T) {
	db := databasetest.NewSeeded(t)
	repo := repositories.NewMissionRepository(db)
	ctx := context.Background()
	now := time.Now()

	missions, err := repo.GetAvailable(ctx, now)
	if err != nil {
		t.Fatalf("GetAvailable() error = %v", err)
	}
	if len(missions) != 5 {
		t.Fatalf("got %d missions, want 5", len(missions))
	}
	if missions[0].Key != "store-setup" || missions[4].Key != "first-sale" {
		t.Errorf("missions not in sort order: first=%s last=%s", missions[0].Key, missions[4].Key)
	}

	// Push one mission's window into the future and it drops out.
	future := now.Add(24 * time.Hour)
	missions[0].StartDate = &future
	if err := repo.Update(ctx, missions[0]); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	missions, err = repo.GetAvailable(ctx, now)
	if err != nil {
		t.Fatalf("GetAvailable() after update error = %v", err)
	}
	if len(missions) != 4 {
		t.Errorf("got %d missions after window change, want 4", len(missions))
	}
	for _, m := range missions {
		if m.Key == "store-setup" {
			t.Error("store-setup should be outside its window")
		}
	}
}

func TestMissionRepository_GetAvailable_WindowBounds(t *testing.T) {
	db := databasetest.New(t)
	repo := repositories.NewMissionRepository(db)
	ctx := context.Background()

	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	mission := &models.Mission{
		Key:       "spring-campaign",
		Name:      "Spring Campaign",
		IsActive:  true,
		StartDate: &start,
		EndDate:   &end,
	}
	if err := repo.Create(ctx, mission); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	tests := []struct {
		name string
		now  time.Time
		want int
	}{
		{"before window", start.Add(-time.Second), 0},
		{"at start", start, 1},
		{"inside window", start.AddDate(0, 0, 15), 1},
		{"at end", end, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			missions, err := repo.GetAvailable(ctx, tt.now)
			if err != nil {
				t.Fatalf("GetAvailable() error = %v", err)
			}
			if len(missions) != tt.want {
				t.Errorf("got %d missions, want %d", len(missions), tt.want)
			}
		})
	}
}

func TestMissionRepository_GetTasksForMission_PivotOrder(t *testing.T) {
	db := databasetest.NewSeeded(t)
	repo := repositories.NewMissionRepository(db)
	ctx := context.Background()

	mission, err := repo.GetByKey(ctx, "store-setup")
	if err != nil {
		t.Fatalf("GetByKey() error = %v", err)
	}

	tasks, err := repo.GetTasksForMission(ctx, mission.ID)
	if err != nil {
		t.Fatalf("GetTasksForMission() error = %v", err)
	}

	wantKeys := []string{"update-store-logo", "update-store-name", "customize-theme"}
	if len(tasks) != len(wantKeys) {
		t.Fatalf("got %d tasks, want %d", len(tasks), len(wantKeys))
	}
	for i, task := range tasks {
		if task.Key != wantKeys[i] {
			t.Errorf("task[%d] = %s, want %s", i, task.Key, wantKeys[i])
		}
	}
}

func TestMissionRepository_AttachDetachTask(t *testing.T) {
	db := databasetest.NewSeeded(t)
	repo := repositories.NewMissionRepository(db)
	taskRepo := repositories.NewTaskRepository(db)
	ctx := context.Background()

	mission, err := repo.GetByKey(ctx, "marketing")
	if err != nil {
		t.Fatalf("GetByKey() error = %v", err)
	}
	task, err := taskRepo.GetByKey(ctx, "first-order")
	if err != nil {
		t.Fatalf("GetByKey() error = %v", err)
	}

	if err := repo.AttachTask(ctx, mission.ID, task.ID, 0); err != nil {
		t.Fatalf("AttachTask() error = %v", err)
	}

	tasks, err := repo.GetTasksForMission(ctx, mission.ID)
	if err != nil {
		t.Fatalf("GetTasksForMission() error = %v", err)
	}
	if len(tasks) != 4 || tasks[0].Key != "first-order" {
		t.Errorf("attached task not first in order, got %d tasks first=%s", len(tasks), tasks[0].Key)
	}

	// Attaching again only moves the sort order.
	if err := repo.AttachTask(ctx, mission.ID, task.ID, 99); err != nil {
		t.Fatalf("AttachTask() repeat error = %v", err)
	}
	tasks, _ = repo.GetTasksForMission(ctx, mission.ID)
	if len(tasks) != 4 || tasks[len(tasks)-1].Key != "first-order" {
		t.Error("re-attach should update sort order, not duplicate the pivot")
	}

	if err := repo.DetachTask(ctx, mission.ID, task.ID); err != nil {
		t.Fatalf("DetachTask() error = %v", err)
	}
	tasks, _ = repo.GetTasksForMission(ctx, mission.ID)
	if len(tasks) != 3 {
		t.Errorf("got %d tasks after detach, want 3", len(tasks))
	}
}

func TestMissionRepository_GetLockersForMission(t *testing.T) {
	db := databasetest.NewSeeded(t)
	repo := repositories.NewMissionRepository(db)
	ctx := context.Background()

	first, err := repo.GetByKey(ctx, "store-setup")
	if err != nil {
		t.Fatalf("GetByKey() error = %v", err)
	}
	lockers, err := repo.GetLockersForMission(ctx, first.ID)
	if err != nil {
		t.Fatalf("GetLockersForMission() error = %v", err)
	}
	if len(lockers) != 0 {
		t.Errorf("store-setup has %d lockers, want 0", len(lockers))
	}

	second, err := repo.GetByKey(ctx, "product-catalog")
	if err != nil {
		t.Fatalf("GetByKey() error = %v", err)
	}
	lockers, err = repo.GetLockersForMission(ctx, second.ID)
	if err != nil {
		t.Fatalf("GetLockersForMission() error = %v", err)
	}
	if len(lockers) != 1 {
		t.Fatalf("product-catalog has %d lockers, want 1", len(lockers))
	}
	if lockers[0].ConditionType != models.ConditionMissionCompletion {
		t.Errorf("locker condition = %s, want mission_completion", lockers[0].ConditionType)
	}
}

func TestMissionRepository_DeleteCascades(t *testing.T) {
	db := databasetest.NewSeeded(t)
	repo := repositories.NewMissionRepository(db)
	ctx := context.Background()

	mission, err := repo.GetByKey(ctx, "product-catalog")
	if err != nil {
		t.Fatalf("GetByKey() error = %v", err)
	}
	if err := repo.Delete(ctx, mission.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	if _, err := repo.GetByID(ctx, mission.ID); !repositories.IsNotFound(err) {
		t.Errorf("GetByID() after delete error = %v, want NotFoundError", err)
	}
	tasks, err := repo.GetTasksForMission(ctx, mission.ID)
	if err != nil {
		t.Fatalf("GetTasksForMission() error = %v", err)
	}
	if len(tasks) != 0 {
		t.Errorf("pivot rows survived delete: %d", len(tasks))
	}
	lockers, _ := repo.GetLockersForMission(ctx, mission.ID)
	if len(lockers) != 0 {
		t.Errorf("lockers survived delete: %d", len(lockers))
	}
}
