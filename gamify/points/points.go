// Package points holds the per-store points ledger the reward engine credits
// into. Levels derive from accumulated points.
package points

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/storekit/gamify/gamify/database/models"
	"github.com/uptrace/bun"
)

// Ledger is the credit side consumed by the reward engine.
type Ledger interface {
	Credit(ctx context.Context, storeID, amount int64, reason string) error
	GetPoints(ctx context.Context, storeID int64) (int64, error)
}

type Config struct {
	// PointsPerLevel sets how many points advance one level.
	PointsPerLevel int64

	// LevelCapEnabled caps the derived level at LevelCap. Points keep
	// accumulating past the cap when PointsContinue is set.
	LevelCapEnabled bool
	LevelCap        int
	PointsContinue  bool
}

func NewDefaultConfig() Config {
	return Config{
		PointsPerLevel: 500,
		LevelCap:       10,
		PointsContinue: true,
	}
}

// StoreLedger is the database-backed Ledger.
type StoreLedger struct {
	db     *bun.DB
	config Config
}

func NewStoreLedger(db *bun.DB, config Config) *StoreLedger {
	if config.PointsPerLevel <= 0 {
		config.PointsPerLevel = NewDefaultConfig().PointsPerLevel
	}
	return &StoreLedger{db: db, config: config}
}

// Credit adds points to a store's balance and rederives its level. The row is
// created on first credit.
func (l *StoreLedger) Credit(ctx context.Context, storeID, amount int64, reason string) error {
	if amount < 0 {
		return errors.New("credit amount must not be negative")
	}

	return l.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		now := time.Now()
		row := &models.StorePoints{
			StoreID:   storeID,
			Points:    amount,
			Level:     1,
			CreatedAt: now,
			UpdatedAt: now,
		}

		res, err := tx.NewInsert().
			Model(row).
			On("CONFLICT (store_id) DO NOTHING").
			Exec(ctx)
		if err != nil {
			return err
		}
		if affected, _ := res.RowsAffected(); affected == 0 {
			if err := tx.NewSelect().
				Model(row).
				Where("store_id = ?", storeID).
				Scan(ctx); err != nil {
				return err
			}
			row.Points += amount
		}

		capped, level := l.apply(row.Points)
		row.Points = capped
		row.Level = level
		row.UpdatedAt = now

		_, err = tx.NewUpdate().
			Model(row).
			Column("points", "level", "updated_at").
			WherePK().
			Exec(ctx)
		if err != nil {
			return err
		}

		slog.Debug("Points credited",
			slog.Int64("store_id", storeID),
			slog.Int64("amount", amount),
			slog.String("reason", reason),
			slog.Int64("balance", row.Points),
			slog.Int("level", row.Level))
		return nil
	})
}

func (l *StoreLedger) GetPoints(ctx context.Context, storeID int64) (int64, error) {
	row := new(models.StorePoints)
	err := l.db.NewSelect().
		Model(row).
		Where("store_id = ?", storeID).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, err
	}
	return row.Points, nil
}

// GetLevel returns the store's current level, 1 for stores with no ledger row.
func (l *StoreLedger) GetLevel(ctx context.Context, storeID int64) (int, error) {
	row := new(models.StorePoints)
	err := l.db.NewSelect().
		Model(row).
		Where("store_id = ?", storeID).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 1, nil
		}
		return 0, err
	}
	return row.Level, nil
}

// apply derives the level from a balance and applies cap semantics. With the
// cap enabled and points_continue off, the balance itself is clamped at the
// cap boundary.
func (l *StoreLedger) apply(balance int64) (int64, int) {
	level := int(balance/l.config.PointsPerLevel) + 1

	if l.config.LevelCapEnabled && l.config.LevelCap > 0 && level > l.config.LevelCap {
		level = l.config.LevelCap
		if !l.config.PointsContinue {
			balance = int64(l.config.LevelCap) * l.config.PointsPerLevel
		}
	}

	return balance, level
}
