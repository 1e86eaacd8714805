package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/storekit/gamify/gamify/database/models"
)

func TestRuleResolver_CanStart(t *testing.T) {
	env := newTestEnv(t, seeded())
	ctx := context.Background()
	const storeID = int64(42)

	missionID := mustMissionID(t, env, "marketing")

	// No start rules: always startable.
	canStart, err := env.rules.CanStart(ctx, missionID, storeID)
	if err != nil {
		t.Fatalf("CanStart() error = %v", err)
	}
	if !canStart {
		t.Error("mission with no start rules should be startable")
	}

	// A future-dated start rule blocks it.
	err = env.ruleRepo.Create(ctx, &models.Rule{
		MissionID:     missionID,
		RuleType:      models.RuleTypeStart,
		ConditionType: models.ConditionDate,
		ConditionPayload: map[string]any{
			"unlock_date": time.Now().Add(time.Hour).Format(time.RFC3339),
		},
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	canStart, err = env.rules.CanStart(ctx, missionID, storeID)
	if err != nil {
		t.Fatalf("CanStart() error = %v", err)
	}
	if canStart {
		t.Error("future-dated start rule should block the mission")
	}
}

func TestRuleResolver_IsCompletedByRules_Fallback(t *testing.T) {
	env := newTestEnv(t, seeded())
	ctx := context.Background()
	const storeID = int64(42)

	missionID := mustMissionID(t, env, "store-setup")

	// No finish rules: falls back to all tasks completed.
	done, err := env.rules.IsCompletedByRules(ctx, missionID, storeID)
	if err != nil {
		t.Fatalf("IsCompletedByRules() error = %v", err)
	}
	if done {
		t.Error("nothing completed yet")
	}

	env.completeMission(t, storeID, "store-setup")

	done, err = env.rules.IsCompletedByRules(ctx, missionID, storeID)
	if err != nil {
		t.Fatalf("IsCompletedByRules() error = %v", err)
	}
	if !done {
		t.Error("all tasks completed, fallback should report done")
	}
}

func TestRuleResolver_IsCompletedByRules_NoTasks(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	mission := &models.Mission{Key: "empty", Name: "Empty", IsActive: true}
	if err := env.missionRepo.Create(ctx, mission); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	// A mission with zero tasks is never complete by the fallback.
	done, err := env.rules.IsCompletedByRules(ctx, mission.ID, 42)
	if err != nil {
		t.Fatalf("IsCompletedByRules() error = %v", err)
	}
	if done {
		t.Error("taskless mission must not report completed")
	}
}

func TestRuleResolver_FinishRulesOverrideFallback(t *testing.T) {
	env := newTestEnv(t, seeded())
	ctx := context.Background()
	const storeID = int64(42)

	missionID := mustMissionID(t, env, "store-setup")

	// A finish rule that already holds makes the rule authority report
	// completed even though no task is done. The percentage authority still
	// disagrees; the two are independent by design.
	err := env.ruleRepo.Create(ctx, &models.Rule{
		MissionID:     missionID,
		RuleType:      models.RuleTypeFinish,
		ConditionType: models.ConditionDate,
		ConditionPayload: map[string]any{
			"unlock_date": "2020-01-01",
		},
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	done, err := env.rules.IsCompletedByRules(ctx, missionID, storeID)
	if err != nil {
		t.Fatalf("IsCompletedByRules() error = %v", err)
	}
	if !done {
		t.Error("satisfied finish rule should report completed")
	}

	sp, _, err := env.progressRepo.GetOrCreateStoreProgress(ctx, env.progressRepo.DB(), storeID, missionID)
	if err != nil {
		t.Fatalf("GetOrCreateStoreProgress() error = %v", err)
	}
	if sp.IsCompleted() {
		t.Error("rule verdict must not leak into the percentage ledger")
	}
}
