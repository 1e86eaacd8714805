package services

import (
	"context"

	"github.com/storekit/gamify/gamify/database/models"
	"github.com/storekit/gamify/gamify/database/repositories"
)

// RuleResolver gates mission start and completion through start/finish rules.
// Its completion verdict is a second, independent authority next to the
// percentage-based StoreProgress status; read paths that consult rules may
// disagree with the ledger and the two are intentionally never merged.
type RuleResolver struct {
	ruleRepo     repositories.RuleRepository
	progressRepo repositories.ProgressRepository
	evaluator    *ConditionEvaluator
}

func NewRuleResolver(ruleRepo repositories.RuleRepository, progressRepo repositories.ProgressRepository, evaluator *ConditionEvaluator) *RuleResolver {
	return &RuleResolver{
		ruleRepo:     ruleRepo,
		progressRepo: progressRepo,
		evaluator:    evaluator,
	}
}

// CanStart returns true when the mission has no start rules or all of them
// hold.
func (r *RuleResolver) CanStart(ctx context.Context, missionID, storeID int64) (bool, error) {
	rules, err := r.ruleRepo.GetByType(ctx, missionID, models.RuleTypeStart)
	if err != nil {
		return false, err
	}

	for _, rule := range rules {
		if !r.evaluator.Evaluate(ctx, rule.ConditionType, rule.ConditionPayload, storeID) {
			return false, nil
		}
	}
	return true, nil
}

// IsCompletedByRules evaluates finish rules. With no finish rules it falls
// back to all attached tasks being completed; a mission with no tasks is
// never complete by this authority.
func (r *RuleResolver) IsCompletedByRules(ctx context.Context, missionID, storeID int64) (bool, error) {
	rules, err := r.ruleRepo.GetByType(ctx, missionID, models.RuleTypeFinish)
	if err != nil {
		return false, err
	}

	if len(rules) == 0 {
		total, err := r.progressRepo.CountTasksForMission(ctx, r.progressRepo.DB(), missionID)
		if err != nil {
			return false, err
		}
		if total == 0 {
			return false, nil
		}
		completed, err := r.progressRepo.CountCompletedTasks(ctx, r.progressRepo.DB(), storeID, missionID)
		if err != nil {
			return false, err
		}
		return completed >= total, nil
	}

	for _, rule := range rules {
		if !r.evaluator.Evaluate(ctx, rule.ConditionType, rule.ConditionPayload, storeID) {
			return false, nil
		}
	}
	return true, nil
}
