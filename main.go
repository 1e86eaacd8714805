package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/storekit/gamify/gamify"
	"github.com/storekit/gamify/gamify/database"
	"github.com/storekit/gamify/gamify/logger"
)

var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	path := flag.String("config", "config.toml", "path to config")
	shouldSeed := flag.Bool("seed", false, "seed the onboarding catalog on startup")
	shouldReplay := flag.Bool("replay", false, "replay unprocessed event log entries on startup")
	flag.Parse()

	cfg, err := gamify.LoadConfig(*path)
	if err != nil {
		slog.Error("Failed to load configuration", slog.Any("error", err))
		os.Exit(-1)
	}

	customHandler := logger.NewHandler(cfg.Log.Level)
	slog.SetDefault(slog.New(customHandler))

	slog.Info("Starting gamify engine",
		slog.String("version", version),
		slog.String("commit", commit))

	slog.Info("Initializing database connection...")
	dbStartTime := time.Now()

	// Startup covers dial retries, schema setup, and optional seeding
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	db, err := database.New(ctx, cfg.DB)
	if err != nil {
		slog.Error("Database connection failed",
			slog.String("error", err.Error()),
			slog.Duration("attempted_for", time.Since(dbStartTime)))
		os.Exit(-1)
	}

	slog.Info("Database connected successfully",
		slog.String("database", cfg.DB.Database),
		slog.Duration("took", time.Since(dbStartTime)))

	if err := db.InitializeSchema(ctx); err != nil {
		slog.Error("Schema initialization failed", slog.Any("error", err))
		db.Close()
		os.Exit(-1)
	}

	if *shouldSeed {
		if err := db.InitializeCatalogData(ctx); err != nil {
			slog.Error("Catalog seeding failed", slog.Any("error", err))
			db.Close()
			os.Exit(-1)
		}
	}

	app := gamify.New(cfg, db, nil, nil)

	if *shouldReplay {
		replayed, err := app.Dispatcher.ReplayUnprocessed(ctx, 0)
		if err != nil {
			slog.Error("Event log replay failed", slog.Any("error", err))
		} else if replayed > 0 {
			slog.Info("Replayed unprocessed events", slog.Int("count", replayed))
		}
	}

	logger.LogSystem("Gamify engine is now running. Press CTRL-C to exit.")
	s := make(chan os.Signal, 1)
	signal.Notify(s, syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	<-s

	logger.LogSystem("Shutting down...")
	if err := app.Shutdown(30 * time.Second); err != nil {
		logger.LogError("Shutdown did not complete cleanly", err)
		os.Exit(-1)
	}
}
