// scenariod runs the scenario engine server: HTTP event ingestion, the
// queue worker pool, and the scheduled-scenario dispatcher.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/botforge/scenario/pkg/actions"
	"github.com/botforge/scenario/pkg/api"
	"github.com/botforge/scenario/pkg/cache"
	"github.com/botforge/scenario/pkg/config"
	"github.com/botforge/scenario/pkg/database"
	"github.com/botforge/scenario/pkg/engine"
	"github.com/botforge/scenario/pkg/placeholder"
	"github.com/botforge/scenario/pkg/queue"
	"github.com/botforge/scenario/pkg/repository"
	"github.com/botforge/scenario/pkg/scheduler"
	"github.com/botforge/scenario/pkg/version"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	configPath := flag.String("config",
		getEnv("CONFIG_FILE", "./"+config.ConfigFileName),
		"Path to the configuration file")
	envPath := flag.String("env", ".env", "Path to the .env file")
	flag.Parse()

	// Load .env before anything reads the environment.
	if err := godotenv.Load(*envPath); err != nil {
		slog.Warn("Could not load .env file, continuing with existing environment",
			"path", *envPath, "error", err)
	} else {
		slog.Info("Loaded environment", "path", *envPath)
	}

	slog.Info("Starting scenario engine", "version", version.Full())

	ctx := context.Background()

	// 1. Configuration
	cfg, err := config.Initialize(*configPath)
	if err != nil {
		slog.Error("Failed to initialize configuration", "error", err)
		os.Exit(1)
	}
	slog.Info("Configuration loaded", "path", *configPath,
		"workers", cfg.Queue.WorkerCount, "scheduler", cfg.SchedulerEnabled())

	// 2. Database
	dbConfig, err := database.LoadConfigFromEnv()
	if err != nil {
		slog.Error("Failed to load database config", "error", err)
		os.Exit(1)
	}
	dbClient, err := database.NewClient(ctx, dbConfig)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer dbClient.Close()
	slog.Info("Connected to PostgreSQL database", "host", dbConfig.Host, "database", dbConfig.Database)

	repo := repository.NewPostgres(dbClient.Pool())

	// 3. Key-value cache
	var kv cache.Store
	switch cfg.Cache.Backend {
	case "redis":
		redisStore, err := cache.NewRedis(ctx, cfg.Cache.RedisAddr, cfg.Cache.RedisPassword, cfg.Cache.RedisDB)
		if err != nil {
			slog.Error("Failed to connect to redis", "addr", cfg.Cache.RedisAddr, "error", err)
			os.Exit(1)
		}
		defer redisStore.Close()
		kv = redisStore
		slog.Info("Connected to redis cache", "addr", cfg.Cache.RedisAddr)
	default:
		kv = cache.NewMemory()
		slog.Info("Using in-memory cache")
	}

	// 4. Action registry and engine
	registry := actions.NewRegistry()
	eng := engine.New(repo, registry,
		engine.WithSnapshotTTL(cfg.Engine.SnapshotTTL),
		engine.WithProcessor(placeholder.New(
			placeholder.WithMaxNesting(cfg.Engine.MaxNestingDepth))),
	)
	actions.RegisterBuiltins(registry, eng.ExecuteByName)
	slog.Info("Engine initialized", "snapshot_ttl", cfg.Engine.SnapshotTTL)

	// 5. Scheduler (optional)
	var sched *scheduler.Manager
	if cfg.SchedulerEnabled() {
		sched = scheduler.New(repo, kv, eng.ExecuteByName,
			scheduler.WithCacheTTL(cfg.Cache.EntryTTL))
		if err := sched.Load(ctx); err != nil {
			slog.Error("Failed to load scheduled scenarios", "error", err)
			os.Exit(1)
		}
		sched.Start()
		defer sched.Stop()
		slog.Info("Scheduler started")
	}

	// 6. Worker pool (before HTTP, so ingestion never races startup)
	pool := queue.NewWorkerPool(queue.Config{
		WorkerCount: cfg.Queue.WorkerCount,
		BufferSize:  cfg.Queue.BufferSize,
	}, eng)
	pool.Start(ctx)

	// 7. HTTP server
	var reloader api.TenantReloader
	if sched != nil {
		reloader = sched
	}
	server := api.NewServer(cfg, eng, pool, reloader, kv, dbClient)

	serverCtx, stop := signal.NotifyContext(ctx, syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	slog.Info("Scenario engine started", "addr", cfg.HTTP.Host, "port", cfg.HTTP.Port)
	if err := server.Run(serverCtx); err != nil {
		slog.Error("HTTP server error", "error", err)
	}

	// 8. Graceful shutdown: drain in-flight events before the deferred
	// scheduler/cache/database teardown runs.
	done := make(chan struct{})
	go func() {
		pool.Stop()
		close(done)
	}()
	select {
	case <-done:
		slog.Info("Worker pool stopped gracefully")
	case <-time.After(30 * time.Second):
		slog.Warn("Worker pool shutdown timeout exceeded")
	}

	slog.Info("Shutdown complete")
}
