package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"resboard/internal/board"
	"resboard/internal/config"
	"resboard/internal/realtime"
	"resboard/internal/resrobot"
	"resboard/internal/schedule"
	"resboard/internal/server"
	"resboard/internal/storage"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	// CLI flags
	configPath := flag.String("config", config.Path(), "Path to the YAML config file")
	port := flag.Int("port", 0, "HTTP server port (overrides config)")
	dbPath := flag.String("db", "", "SQLite database path (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config", "path", *configPath, "error", err)
		os.Exit(1)
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}
	if *dbPath != "" {
		cfg.Database.Path = *dbPath
	}

	// Cancelled on SIGINT/SIGTERM for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Optional persistence for warm starts
	var db *storage.DB
	if cfg.Database.Path != "" {
		db, err = storage.Open(cfg.Database.Path, logger)
		if err != nil {
			logger.Error("failed to open database", "error", err)
			os.Exit(1)
		}
		defer db.Close()
	}

	var boardArchive board.Archive
	var delayArchive realtime.Archive
	if db != nil {
		boardArchive = db
		delayArchive = db
	}

	hub := board.NewHub(boardArchive, logger)
	client := resrobot.NewClient(cfg, logger)

	// Delay feed is optional
	var delayStore *realtime.Store
	var delaySource board.DelaySource
	var poller schedule.DelayPoller
	if cfg.Realtime.Enabled() {
		delayStore = realtime.NewStore()
		delaySource = delayStore
		poller = realtime.NewPoller(cfg.Realtime, delayStore, delayArchive, logger)
	} else {
		logger.Info("delay feed not configured, polling disabled")
	}

	merger := board.NewMerger(cfg.Routes, board.OptionsFromConfig(cfg), client, delaySource, hub, logger)

	if db != nil {
		restore(ctx, db, cfg, merger, hub, delayStore, logger)
	}

	sched := schedule.New(merger, poller, cfg.UpdateInterval, cfg.Realtime.Bands, cfg.Location, logger)
	go sched.Run(ctx)

	srv := server.New(cfg.Server.Port, hub, delayStore, logger)
	if err := srv.ListenAndServe(ctx); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
	logger.Info("shutting down")
}

// restore seeds the merger, hub and delay store from the last run.
// Failures are logged and the service starts cold.
func restore(ctx context.Context, db *storage.DB, cfg *config.Config, merger *board.Merger, hub *board.Hub, delays *realtime.Store, logger *slog.Logger) {
	deps, publishedAt, err := db.LoadBoard(ctx, cfg.Location)
	if err != nil {
		logger.Error("failed to load stored board", "error", err)
	} else if len(deps) > 0 {
		merger.Seed(deps)
		hub.Restore(deps, publishedAt)
		logger.Info("restored board", "departures", len(deps), "published_at", publishedAt)
	}

	if delays == nil {
		return
	}
	snap, err := db.LoadDelays(ctx, cfg.Realtime.StopID)
	if err != nil {
		logger.Error("failed to load stored delays", "error", err)
		return
	}
	if len(snap.Samples) > 0 {
		delays.Replace(snap.Samples, snap.FetchedAt)
		logger.Info("restored delay snapshot", "samples", len(snap.Samples), "fetched_at", snap.FetchedAt)
	}
}
