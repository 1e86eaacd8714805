package repositories

import (
	"context"
	"time"

	"github.com/storekit/gamify/gamify/database/models"
	"github.com/uptrace/bun"
)

type RuleRepository interface {
	GetByID(ctx context.Context, id int64) (*models.Rule, error)
	GetAllForMission(ctx context.Context, missionID int64) ([]*models.Rule, error)
	GetByType(ctx context.Context, missionID int64, ruleType string) ([]*models.Rule, error)
	Create(ctx context.Context, rule *models.Rule) error
	Update(ctx context.Context, rule *models.Rule) error
	Delete(ctx context.Context, id int64) error
}

type ruleRepository struct {
	*BaseRepository
}

func NewRuleRepository(db *bun.DB) RuleRepository {
	return &ruleRepository{BaseRepository: NewBaseRepository(db)}
}

func (r *ruleRepository) GetByID(ctx context.Context, id int64) (*models.Rule, error) {
	rule := new(models.Rule)
	err := r.db.NewSelect().
		Model(rule).
		Where("id = ?", id).
		Scan(ctx)
	if err != nil {
		return nil, r.HandleErrorWithID("get", "rule", id, err)
	}
	return rule, nil
}

func (r *ruleRepository) GetAllForMission(ctx context.Context, missionID int64) ([]*models.Rule, error) {
	var rules []*models.Rule
	err := r.db.NewSelect().
		Model(&rules).
		Where("mission_id = ?", missionID).
		Order("id ASC").
		Scan(ctx)
	return rules, r.HandleErrorWithID("get_all", "rule", missionID, err)
}

func (r *ruleRepository) GetByType(ctx context.Context, missionID int64, ruleType string) ([]*models.Rule, error) {
	var rules []*models.Rule
	err := r.db.NewSelect().
		Model(&rules).
		Where("mission_id = ?", missionID).
		Where("rule_type = ?", ruleType).
		Order("id ASC").
		Scan(ctx)
	return rules, r.HandleErrorWithID("get_by_type", "rule", missionID, err)
}

func (r *ruleRepository) Create(ctx context.Context, rule *models.Rule) error {
	now := time.Now()
	rule.CreatedAt = now
	rule.UpdatedAt = now

	_, err := r.db.NewInsert().Model(rule).Exec(ctx)
	return r.HandleError("create", "rule", err)
}

func (r *ruleRepository) Update(ctx context.Context, rule *models.Rule) error {
	rule.UpdatedAt = time.Now()

	res, err := r.db.NewUpdate().
		Model(rule).
		WherePK().
		Exec(ctx)
	if err != nil {
		return r.HandleErrorWithID("update", "rule", rule.ID, err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return &NotFoundError{Entity: "rule", ID: rule.ID}
	}
	return nil
}

func (r *ruleRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.NewDelete().
		Model((*models.Rule)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return r.HandleErrorWithID("delete", "rule", id, err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return &NotFoundError{Entity: "rule", ID: id}
	}
	return nil
}
