package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/andyscpalmer/atproto-scheduler/internal/atproto"
	"github.com/andyscpalmer/atproto-scheduler/internal/cache"
	"github.com/andyscpalmer/atproto-scheduler/internal/db"
	"github.com/andyscpalmer/atproto-scheduler/internal/scheduler"
	"github.com/andyscpalmer/atproto-scheduler/internal/storage"
	"github.com/andyscpalmer/atproto-scheduler/pkg/config"
	"github.com/andyscpalmer/atproto-scheduler/pkg/logging"
	"github.com/andyscpalmer/atproto-scheduler/pkg/telemetry"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	if err := logging.InitLogger(&cfg.Logging); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logging.GetLogger().Sync()

	logger := logging.GetLogger()
	logger.Info("Starting ATProto Scheduler")

	// Initialize telemetry
	telemetryShutdown, err := telemetry.Init(&cfg.Telemetry)
	if err != nil {
		logger.Fatal("Failed to initialize telemetry", zap.Error(err))
	}
	defer telemetryShutdown()

	// Initialize database
	database, err := db.New(&cfg.Database, cfg.Logging.Level)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer database.Close()

	// Initialize Redis cache (optional)
	redisCache, err := cache.New(&cfg.Redis)
	if err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer redisCache.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize image storage (optional)
	var images atproto.ImageFetcher
	if cfg.Storage.Enabled {
		store, err := storage.NewImageStore(ctx, cfg)
		if err != nil {
			logger.Fatal("Failed to initialize image storage", zap.Error(err))
		}
		images = store
	} else {
		logger.Info("Image storage disabled")
	}

	var sessions atproto.SessionCache
	if store := cache.NewSessionStore(redisCache); store != nil {
		sessions = store
	}

	repo := db.NewRepository(database.DB)
	accounts := db.NewAccountRepository(repo)
	posts := db.NewPostRepository(repo)
	publisher := atproto.NewPublisher(cfg.Scheduler.PDSHost, posts, images, sessions)

	orchestrator := scheduler.NewOrchestrator(accounts, posts, publisher, cfg.Scheduler.TickInterval)

	if err := orchestrator.Run(ctx); err != nil && err != context.Canceled {
		logger.Fatal("Scheduler loop failed", zap.Error(err))
	}

	logger.Info("Scheduler exited")
}
