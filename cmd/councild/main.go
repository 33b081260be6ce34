// councild is the multi-model orchestration control plane: it exposes
// the HTTP API, manages queue workers, and drives request processing
// across LLM providers.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/ai-council/councild/pkg/api"
	"github.com/ai-council/councild/pkg/breaker"
	"github.com/ai-council/councild/pkg/cleanup"
	"github.com/ai-council/councild/pkg/config"
	"github.com/ai-council/councild/pkg/cost"
	"github.com/ai-council/councild/pkg/database"
	"github.com/ai-council/councild/pkg/orchestrator"
	"github.com/ai-council/councild/pkg/progress"
	"github.com/ai-council/councild/pkg/provider"
	"github.com/ai-council/councild/pkg/queue"
	"github.com/ai-council/councild/pkg/ratelimit"
	"github.com/ai-council/councild/pkg/registry"
	"github.com/ai-council/councild/pkg/services"
	"github.com/ai-council/councild/pkg/version"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// resolvePodID determines the pod identifier for multi-replica coordination.
// Priority: POD_ID env > HOSTNAME env > "local"
func resolvePodID() string {
	if id := os.Getenv("POD_ID"); id != "" {
		return id
	}
	if hostname := os.Getenv("HOSTNAME"); hostname != "" {
		return hostname
	}
	return "local"
}

func main() {
	configDir := flag.String("config-dir",
		getEnv("CONFIG_DIR", "./deploy/config"),
		"Path to configuration directory")
	flag.Parse()

	// Load .env file from config directory
	envPath := filepath.Join(*configDir, ".env")
	if err := godotenv.Load(envPath); err != nil {
		slog.Warn("Could not load .env file, continuing with existing environment",
			"path", envPath, "error", err)
	} else {
		slog.Info("Loaded environment", "path", envPath)
	}

	podID := resolvePodID()
	slog.Info("Starting councild",
		"version", version.Full(), "pod_id", podID, "config_dir", *configDir)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	// 1. Initialize configuration
	cfg, err := config.Initialize(ctx, *configDir)
	if err != nil {
		slog.Error("Failed to initialize configuration", "error", err)
		os.Exit(1)
	}

	// 2. Initialize database
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
	defer func() {
		if err := dbClient.Close(); err != nil {
			slog.Error("Error closing database client", "error", err)
		}
	}()
	slog.Info("Connected to PostgreSQL database")

	// 3. Connect Redis (rate limiting, estimate cache)
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		slog.Error("Failed to connect to Redis", "addr", cfg.Redis.Addr, "error", err)
		os.Exit(1)
	}
	slog.Info("Connected to Redis", "addr", cfg.Redis.Addr)

	// 4. Load provider registry from credentials and probe health
	reg, err := registry.NewFromEnv(cfg.Registry)
	if err != nil {
		slog.Error("Failed to load provider registry", "error", err)
		os.Exit(1)
	}
	factory := provider.NewFactory()
	monitor := registry.NewMonitor(reg, factory.Probe, cfg.Registry.HealthInterval, nil)
	monitor.ProbeAll(ctx)
	monitor.Start(ctx)
	slog.Info("Provider registry loaded",
		"models", len(reg.All()), "providers", reg.Providers())

	// 5. Circuit breakers, one per provider
	breakers := breaker.NewManager(breaker.Settings{
		OnStateChange: func(name string, from, to breaker.State) {
			slog.Warn("Circuit breaker state change",
				"provider", name, "from", from, "to", to)
		},
	})

	// 6. Progress bus over the Postgres-backed message store
	bus := progress.NewBus(progress.NewPostgresStore(dbClient.DB), cfg.Progress)
	go bus.Run(ctx)

	// 7. Domain services
	limiter := ratelimit.New(redisClient, cfg.Limits)
	estimator := cost.NewEstimator(reg, cfg.Cost,
		cost.NewEstimateCache(redisClient, cfg.Cost.EstimateCacheTTL))
	requestService := services.NewRequestService(dbClient, limiter, estimator, reg)
	outcomeService := services.NewOutcomeService(dbClient)
	slog.Info("Services initialized")

	retention := cleanup.NewService(cfg.Retention, requestService)
	retention.Start(ctx)
	defer retention.Stop()

	// 8. Orchestration pipeline and worker pool
	pipeline := orchestrator.NewPipeline(cfg, reg, breakers, factory, bus)
	workerPool := queue.NewWorkerPool(podID, requestService, outcomeService, pipeline, cfg.Queue)
	if err := workerPool.Start(ctx); err != nil {
		slog.Error("Failed to start worker pool", "error", err)
		os.Exit(1)
	}

	// 9. HTTP server (blocks until shutdown signal)
	server := api.NewServer(cfg, requestService, outcomeService, estimator,
		reg, breakers, bus, workerPool, dbClient, redisClient)

	slog.Info("councild started successfully",
		"pod_id", podID, "workers", cfg.Queue.WorkerCount)

	if err := server.Run(ctx); err != nil {
		slog.Error("HTTP server error", "error", err)
	}

	// 10. Graceful shutdown: wait for active requests to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Queue.GracefulShutdownTimeout)
	defer cancel()

	done := make(chan struct{})
	go func() {
		workerPool.Stop()
		close(done)
	}()
	select {
	case <-done:
		slog.Info("Worker pool stopped gracefully")
	case <-shutdownCtx.Done():
		slog.Warn("Shutdown timeout exceeded, incomplete requests will be orphan-recovered")
	}

	slog.Info("Shutdown complete")
}
