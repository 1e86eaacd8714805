package gamify

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/pelletier/go-toml/v2"
	"github.com/storekit/gamify/gamify/database"
)

func LoadConfig(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config: %w", err)
	}
	defer file.Close()

	var cfg Config
	if err = toml.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type Config struct {
	Log    LogConfig         `toml:"log"`
	DB     database.DBConfig `toml:"db"`
	Engine EngineConfig      `toml:"engine"`
	Worker WorkerConfig      `toml:"worker"`
}

type LogConfig struct {
	Level     slog.Level `toml:"level"`
	Format    string     `toml:"format"`
	AddSource bool       `toml:"add_source"`
}

type EngineConfig struct {
	PointsMultiplier float64 `toml:"points_multiplier"`
	PointsPerLevel   int64   `toml:"points_per_level"`
	LevelCapEnabled  bool    `toml:"level_cap_enabled"`
	LevelCap         int     `toml:"level_cap"`
	PointsContinue   bool    `toml:"points_continue"`
	EventLogEnabled  bool    `toml:"event_log_enabled"`
}

type WorkerConfig struct {
	Count     int `toml:"count"`
	QueueSize int `toml:"queue_size"`
}
