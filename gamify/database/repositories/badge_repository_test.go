package repositories_test

import (
	"context"
	"testing"

	"github.com/storekit/gamify/gamify/database/databasetest"
	"github.com/storekit/gamify/gamify/database/repositories"
)

func TestBadgeRepository_AwardToStoreIdempotent(t *testing.T) {
	db := databasetest.NewSeeded(t)
	repo := repositories.NewBadgeRepository(db)
	ctx := context.Background()

	badge, err := repo.GetByKey(ctx, "first-product")
	if err != nil {
		t.Fatalf("GetByKey() error = %v", err)
	}

	awarded, err := repo.AwardToStore(ctx, 1, badge.ID)
	if err != nil {
		t.Fatalf("AwardToStore() error = %v", err)
	}
	if !awarded {
		t.Error("first award should write a row")
	}

	awarded, err = repo.AwardToStore(ctx, 1, badge.ID)
	if err != nil {
		t.Fatalf("AwardToStore() repeat error = %v", err)
	}
	if awarded {
		t.Error("repeated award should be a no-op")
	}

	earned, err := repo.IsEarnedByStore(ctx, 1, badge.ID)
	if err != nil {
		t.Fatalf("IsEarnedByStore() error = %v", err)
	}
	if !earned {
		t.Error("badge should be earned")
	}

	badges, err := repo.GetStoreBadges(ctx, 1)
	if err != nil {
		t.Fatalf("GetStoreBadges() error = %v", err)
	}
	if len(badges) != 1 {
		t.Fatalf("got %d store badges, want 1", len(badges))
	}
	if badges[0].Badge == nil || badges[0].Badge.Key != "first-product" {
		t.Error("store badge should load its badge relation")
	}
}

func TestBadgeRepository_GetStoreBadges_OtherStoreEmpty(t *testing.T) {
	db := databasetest.NewSeeded(t)
	repo := repositories.NewBadgeRepository(db)
	ctx := context.Background()

	badge, err := repo.GetByKey(ctx, "welcome")
	if err != nil {
		t.Fatalf("GetByKey() error = %v", err)
	}
	if _, err := repo.AwardToStore(ctx, 1, badge.ID); err != nil {
		t.Fatalf("AwardToStore() error = %v", err)
	}

	badges, err := repo.GetStoreBadges(ctx, 2)
	if err != nil {
		t.Fatalf("GetStoreBadges() error = %v", err)
	}
	if len(badges) != 0 {
		t.Errorf("store 2 has %d badges, want 0", len(badges))
	}
}
