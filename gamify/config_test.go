package gamify_test

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/storekit/gamify/gamify"
)

func TestLoadConfig(t *testing.T) {
	raw := `
[log]
level = "DEBUG"
format = "text"
add_source = true

[db]
host = "localhost"
port = 5432
user = "gamify"
password = "gamify"
database = "gamify"
pool_size = 10

[engine]
points_multiplier = 1.5
points_per_level = 500
level_cap_enabled = true
level_cap = 10
points_continue = true
event_log_enabled = true

[worker]
count = 8
queue_size = 2048
`
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := gamify.LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if cfg.Log.Level != slog.LevelDebug {
		t.Errorf("log level = %v, want DEBUG", cfg.Log.Level)
	}
	if cfg.DB.Host != "localhost" || cfg.DB.PoolSize != 10 {
		t.Errorf("db section not decoded: %+v", cfg.DB)
	}
	if cfg.Engine.PointsMultiplier != 1.5 {
		t.Errorf("points_multiplier = %v, want 1.5", cfg.Engine.PointsMultiplier)
	}
	if !cfg.Engine.LevelCapEnabled || cfg.Engine.LevelCap != 10 {
		t.Errorf("level cap not decoded: %+v", cfg.Engine)
	}
	if cfg.Worker.Count != 8 || cfg.Worker.QueueSize != 2048 {
		t.Errorf("worker section not decoded: %+v", cfg.Worker)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := gamify.LoadConfig(filepath.Join(t.TempDir(), "absent.toml")); err == nil {
		t.Fatal("expected an error for a missing config file")
	}
}
