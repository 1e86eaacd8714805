package database_test

import (
	"context"
	"testing"

	"github.com/storekit/gamify/gamify/database"
	"github.com/storekit/gamify/gamify/database/databasetest"
	"github.com/storekit/gamify/gamify/database/models"
)

func TestSeedCatalogIdempotent(t *testing.T) {
	db := databasetest.New(t)
	ctx := context.Background()

	if err := database.SeedCatalog(ctx, db); err != nil {
		t.Fatalf("SeedCatalog() error = %v", err)
	}
	if err := database.SeedCatalog(ctx, db); err != nil {
		t.Fatalf("SeedCatalog() second run error = %v", err)
	}

	counts := []struct {
		name  string
		model interface{}
		want  int
	}{
		{"tasks", (*models.Task)(nil), 13},
		{"missions", (*models.Mission)(nil), 5},
		{"badges", (*models.Badge)(nil), 4},
		{"lockers", (*models.Locker)(nil), 4},
		{"pivots", (*models.MissionTask)(nil), 13},
		{"rewards", (*models.Reward)(nil), 8},
		{"rules", (*models.Rule)(nil), 1},
	}

	for _, tt := range counts {
		t.Run(tt.name, func(t *testing.T) {
			got, err := db.NewSelect().Model(tt.model).Count(ctx)
			if err != nil {
				t.Fatalf("count error = %v", err)
			}
			if got != tt.want {
				t.Errorf("got %d %s, want %d", got, tt.name, tt.want)
			}
		})
	}
}

func TestSeedCatalogLockerChain(t *testing.T) {
	db := databasetest.NewSeeded(t)
	ctx := context.Background()

	var missions []*models.Mission
	if err := db.NewSelect().Model(&missions).Order("sort_order ASC").Scan(ctx); err != nil {
		t.Fatalf("select missions error = %v", err)
	}
	if len(missions) != 5 {
		t.Fatalf("got %d missions, want 5", len(missions))
	}

	// Every mission after the first is locked on its predecessor.
	for i := 1; i < len(missions); i++ {
		var lockers []*models.Locker
		err := db.NewSelect().
			Model(&lockers).
			Where("mission_id = ?", missions[i].ID).
			Scan(ctx)
		if err != nil {
			t.Fatalf("select lockers error = %v", err)
		}
		if len(lockers) != 1 {
			t.Fatalf("mission %s has %d lockers, want 1", missions[i].Key, len(lockers))
		}

		locker := lockers[0]
		if locker.ConditionType != models.ConditionMissionCompletion {
			t.Errorf("mission %s locker type = %s", missions[i].Key, locker.ConditionType)
		}
		want := float64(missions[i-1].ID)
		if got, ok := locker.ConditionPayload["mission_id"]; !ok {
			t.Errorf("mission %s locker has no mission_id payload", missions[i].Key)
		} else if gotF, _ := got.(float64); gotF != want {
			// jsonb round-trips numbers as float64
			t.Errorf("mission %s locker points at %v, want %v", missions[i].Key, got, want)
		}
	}
}
