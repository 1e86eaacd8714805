package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/storekit/gamify/gamify/database/models"
	"github.com/uptrace/bun"
)

// InitializeCatalogData seeds the onboarding catalog: tasks, the five
// onboarding missions with their ordered task lists, the lockers that chain
// each mission to its predecessor, badges, and per-mission rewards. The seed
// is idempotent and safe to run on every startup.
func (db *DB) InitializeCatalogData(ctx context.Context) error {
	return SeedCatalog(ctx, db.bunDB)
}

type taskDef struct {
	Key         string
	Name        string
	Description string
	Points      int
	EventName   string
	Conditions  map[string]any
	Icon        string
}

type missionDef struct {
	Key         string
	Name        string
	Description string
	Image       string
	TotalPoints int
	SortOrder   int
	Tasks       []string // task keys in pivot sort order
	Requires    string   // predecessor mission key, "" for the first mission
	Rewards     []rewardDef
}

type rewardDef struct {
	Type  string
	Value string
	Meta  map[string]any
}

type badgeDef struct {
	Key         string
	Name        string
	Description string
	Image       string
}

var seedTasks = []taskDef{
	// Store setup
	{"update-store-logo", "Add Your Store Logo", "Upload your store logo to build your brand identity.", 50, "store_logo_updated", nil, "image"},
	{"update-store-name", "Set Your Store Name", "Choose a name that represents your brand.", 25, "store_name_updated", nil, "store"},
	{"customize-theme", "Customize Your Theme", "Make your store look unique by customizing the theme.", 75, "theme_customized", nil, "palette"},

	// Product catalog
	{"add-first-product", "Add Your First Product", "Create your first product listing.", 100, "product_created", map[string]any{"is_first_product": true}, "package"},
	{"add-product-images", "Add Product Images", "Upload high-quality images for your products.", 50, "product_images_added", nil, "image"},
	{"create-product-category", "Create Product Category", "Organize your products with categories.", 40, "category_created", nil, "folder"},

	// Payment and shipping
	{"setup-payment-method", "Set Up Payment Method", "Configure how you'll receive payments from customers.", 75, "payment_method_configured", nil, "credit-card"},
	{"setup-shipping", "Configure Shipping Options", "Set up shipping methods for your products.", 60, "shipping_method_configured", nil, "truck"},

	// Marketing
	{"social-media-links", "Add Social Media Links", "Connect your store to your social media accounts.", 35, "social_media_linked", nil, "share"},
	{"create-discount", "Create First Discount", "Create your first promotional discount code.", 45, "discount_created", nil, "tag"},
	{"setup-seo", "Configure SEO Settings", "Optimize your store for search engines.", 65, "seo_configured", nil, "search"},

	// First sale
	{"first-order", "Receive First Order", "Congratulations on your first customer order!", 150, "order_created", map[string]any{"is_first_order": true}, "shopping-cart"},
	{"first-order-shipped", "Ship First Order", "Ship your first customer order.", 50, "order_shipped", map[string]any{"is_first_order": true}, "check-circle"},
}

var seedBadges = []badgeDef{
	{"welcome", "Welcome Aboard", "Joined the merchant onboarding journey.", "badges/welcome.png"},
	{"store-setup", "Store Builder", "Completed the store setup mission.", "badges/store-setup.png"},
	{"first-product", "First Product", "Listed the first product in the catalog.", "badges/first-product.png"},
	{"first-order", "First Sale", "Received and shipped the first customer order.", "badges/first-order.png"},
}

var seedMissions = []missionDef{
	{
		Key: "store-setup", Name: "Store Setup",
		Description: "Get your store set up with basic information and branding.",
		Image:       "missions/store-setup.png",
		TotalPoints: 150, SortOrder: 1,
		Tasks: []string{"update-store-logo", "update-store-name", "customize-theme"},
		Rewards: []rewardDef{
			{models.RewardTypePoints, "150", nil},
			{models.RewardTypeBadge, "store-setup", nil},
		},
	},
	{
		Key: "product-catalog", Name: "Product Catalog",
		Description: "Set up your product catalog to start selling.",
		Image:       "missions/product-catalog.png",
		TotalPoints: 190, SortOrder: 2,
		Tasks:    []string{"add-first-product", "add-product-images", "create-product-category"},
		Requires: "store-setup",
		Rewards: []rewardDef{
			{models.RewardTypePoints, "190", nil},
			{models.RewardTypeBadge, "first-product", nil},
		},
	},
	{
		Key: "payment-shipping", Name: "Payment & Shipping",
		Description: "Configure how you'll receive payments and ship products.",
		Image:       "missions/payment-shipping.png",
		TotalPoints: 135, SortOrder: 3,
		Tasks:    []string{"setup-payment-method", "setup-shipping"},
		Requires: "product-catalog",
		Rewards: []rewardDef{
			{models.RewardTypePoints, "135", nil},
		},
	},
	{
		Key: "marketing", Name: "Marketing",
		Description: "Set up marketing tools to drive traffic to your store.",
		Image:       "missions/marketing.png",
		TotalPoints: 145, SortOrder: 4,
		Tasks:    []string{"social-media-links", "create-discount", "setup-seo"},
		Requires: "payment-shipping",
		Rewards: []rewardDef{
			{models.RewardTypePoints, "145", nil},
		},
	},
	{
		Key: "first-sale", Name: "First Sale",
		Description: "Get your first sale and learn the order fulfillment process.",
		Image:       "missions/first-sale.png",
		TotalPoints: 200, SortOrder: 5,
		Tasks:    []string{"first-order", "first-order-shipped"},
		Requires: "marketing",
		Rewards: []rewardDef{
			{models.RewardTypePoints, "200", nil},
			{models.RewardTypeBadge, "first-order", nil},
		},
	},
}

// SeedCatalog upserts the onboarding catalog through the given bun handle.
// Split out from InitializeCatalogData so tests can seed an in-memory
// database without a connection pool.
func SeedCatalog(ctx context.Context, bdb bun.IDB) error {
	now := time.Now().UTC()

	taskIDs := make(map[string]int64, len(seedTasks))
	for _, t := range seedTasks {
		task := &models.Task{
			Key:               t.Key,
			Name:              t.Name,
			Description:       t.Description,
			Points:            t.Points,
			Icon:              t.Icon,
			EventName:         t.EventName,
			PayloadConditions: t.Conditions,
			IsActive:          true,
			CreatedAt:         now,
			UpdatedAt:         now,
		}
		if _, err := bdb.NewInsert().
			Model(task).
			On("CONFLICT (key) DO UPDATE").
			Set("name = EXCLUDED.name").
			Set("description = EXCLUDED.description").
			Set("points = EXCLUDED.points").
			Set("icon = EXCLUDED.icon").
			Set("event_name = EXCLUDED.event_name").
			Set("payload_conditions = EXCLUDED.payload_conditions").
			Set("updated_at = EXCLUDED.updated_at").
			Returning("id").
			Exec(ctx); err != nil {
			return fmt.Errorf("failed to upsert task %s: %w", t.Key, err)
		}
		taskIDs[t.Key] = task.ID
	}

	for _, b := range seedBadges {
		badge := &models.Badge{
			Key:         b.Key,
			Name:        b.Name,
			Description: b.Description,
			Image:       b.Image,
			IsActive:    true,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if _, err := bdb.NewInsert().
			Model(badge).
			On("CONFLICT (key) DO UPDATE").
			Set("name = EXCLUDED.name").
			Set("description = EXCLUDED.description").
			Set("image = EXCLUDED.image").
			Set("updated_at = EXCLUDED.updated_at").
			Exec(ctx); err != nil {
			return fmt.Errorf("failed to upsert badge %s: %w", b.Key, err)
		}
	}

	missionIDs := make(map[string]int64, len(seedMissions))
	for _, m := range seedMissions {
		mission := &models.Mission{
			Key:         m.Key,
			Name:        m.Name,
			Description: m.Description,
			Image:       m.Image,
			TotalPoints: m.TotalPoints,
			IsActive:    true,
			SortOrder:   m.SortOrder,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if _, err := bdb.NewInsert().
			Model(mission).
			On("CONFLICT (key) DO UPDATE").
			Set("name = EXCLUDED.name").
			Set("description = EXCLUDED.description").
			Set("image = EXCLUDED.image").
			Set("total_points = EXCLUDED.total_points").
			Set("sort_order = EXCLUDED.sort_order").
			Set("updated_at = EXCLUDED.updated_at").
			Returning("id").
			Exec(ctx); err != nil {
			return fmt.Errorf("failed to upsert mission %s: %w", m.Key, err)
		}
		missionIDs[m.Key] = mission.ID
	}

	// Pivot rows, lockers, and rewards need resolved IDs, so they go in a
	// second pass.
	for _, m := range seedMissions {
		missionID := missionIDs[m.Key]

		for i, taskKey := range m.Tasks {
			taskID, ok := taskIDs[taskKey]
			if !ok {
				return fmt.Errorf("mission %s references unknown task %s", m.Key, taskKey)
			}
			pivot := &models.MissionTask{
				MissionID: missionID,
				TaskID:    taskID,
				SortOrder: i + 1,
				CreatedAt: now,
				UpdatedAt: now,
			}
			if _, err := bdb.NewInsert().
				Model(pivot).
				On("CONFLICT (mission_id, task_id) DO UPDATE").
				Set("sort_order = EXCLUDED.sort_order").
				Set("updated_at = EXCLUDED.updated_at").
				Exec(ctx); err != nil {
				return fmt.Errorf("failed to attach task %s to mission %s: %w", taskKey, m.Key, err)
			}
		}

		if m.Requires != "" {
			predecessorID, ok := missionIDs[m.Requires]
			if !ok {
				return fmt.Errorf("mission %s requires unknown mission %s", m.Key, m.Requires)
			}
			if err := ensureLocker(ctx, bdb, missionID, models.ConditionMissionCompletion, map[string]any{
				"mission_id": predecessorID,
			}, now); err != nil {
				return fmt.Errorf("failed to seed locker for mission %s: %w", m.Key, err)
			}
		}

		for _, r := range m.Rewards {
			if err := ensureReward(ctx, bdb, missionID, r, now); err != nil {
				return fmt.Errorf("failed to seed reward for mission %s: %w", m.Key, err)
			}
		}
	}

	// The final mission also carries an explicit finish rule: both order
	// tasks must be completed, independent of the percentage ledger.
	if err := ensureRule(ctx, bdb, missionIDs["first-sale"], models.RuleTypeFinish, models.ConditionTasksCompletion, map[string]any{
		"task_ids":       []any{taskIDs["first-order"], taskIDs["first-order-shipped"]},
		"required_count": 2,
	}, now); err != nil {
		return fmt.Errorf("failed to seed finish rule for mission first-sale: %w", err)
	}

	slog.Info("Onboarding catalog initialized",
		slog.Int("tasks", len(seedTasks)),
		slog.Int("missions", len(seedMissions)),
		slog.Int("badges", len(seedBadges)))
	return nil
}

// ensureLocker inserts a locker only if no locker of the same type exists on
// the mission yet. Lockers have no natural key, so this stands in for an
// upsert.
func ensureLocker(ctx context.Context, bdb bun.IDB, missionID int64, conditionType string, payload map[string]any, now time.Time) error {
	exists, err := bdb.NewSelect().
		Model((*models.Locker)(nil)).
		Where("mission_id = ?", missionID).
		Where("condition_type = ?", conditionType).
		Exists(ctx)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	locker := &models.Locker{
		MissionID:        missionID,
		ConditionType:    conditionType,
		ConditionPayload: payload,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	_, err = bdb.NewInsert().Model(locker).Exec(ctx)
	return err
}

func ensureRule(ctx context.Context, bdb bun.IDB, missionID int64, ruleType, conditionType string, payload map[string]any, now time.Time) error {
	exists, err := bdb.NewSelect().
		Model((*models.Rule)(nil)).
		Where("mission_id = ?", missionID).
		Where("rule_type = ?", ruleType).
		Where("condition_type = ?", conditionType).
		Exists(ctx)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	rule := &models.Rule{
		MissionID:        missionID,
		RuleType:         ruleType,
		ConditionType:    conditionType,
		ConditionPayload: payload,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	_, err = bdb.NewInsert().Model(rule).Exec(ctx)
	return err
}

func ensureReward(ctx context.Context, bdb bun.IDB, missionID int64, r rewardDef, now time.Time) error {
	exists, err := bdb.NewSelect().
		Model((*models.Reward)(nil)).
		Where("mission_id = ?", missionID).
		Where("reward_type = ?", r.Type).
		Where("reward_value = ?", r.Value).
		Exists(ctx)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	reward := &models.Reward{
		MissionID:   missionID,
		RewardType:  r.Type,
		RewardValue: r.Value,
		RewardMeta:  r.Meta,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	_, err = bdb.NewInsert().Model(reward).Exec(ctx)
	return err
}
