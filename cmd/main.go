package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"sitepilot/docs/swagger"
	"sitepilot/internal/api"
	"sitepilot/internal/config"
	"sitepilot/internal/conversation"
	"sitepilot/internal/db"
	"sitepilot/internal/events"
	"sitepilot/internal/gateways/llm"
	"sitepilot/internal/gateways/platform"
	"sitepilot/internal/handlers"
	"sitepilot/internal/models"
	"sitepilot/internal/orchestrator"
	"sitepilot/internal/ratelimit"
	"sitepilot/internal/realtime"
	"sitepilot/internal/services"
	"sitepilot/internal/store"
	"sitepilot/internal/tasks"
	"sitepilot/internal/utils/logger"
)

func main() {
	logger := logger.New("sitepilot")

	// check if .env file exists
	if _, err := os.Stat(".env"); os.IsNotExist(err) {
		logger.Info("No .env file found, skipping environment variable loading")
	} else {
		logger.Info("Loading environment variables from .env file")
		if err := godotenv.Load(); err != nil {
			log.Fatalf("Failed to load environment variables: %v", err)
		}
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx := context.Background()
	checks := map[string]api.HealthCheck{}

	// Persistence
	var repo store.Repository
	if cfg.Store.Provider == "memory" {
		logger.Warn("Using in-memory store; data is lost on restart")
		repo = store.NewMemoryRepository()
	} else {
		conn, err := db.Connect(cfg)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer func() {
			if err := db.Close(); err != nil {
				logger.Error("Failed to close database connection", err)
			}
		}()
		repo = store.NewGormRepository(conn)
		checks["database"] = func(ctx context.Context) error {
			sqlDB, err := conn.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		}
	}

	seedAdmin(ctx, repo, logger)

	// Brief storage
	summaries, err := services.NewSummaryStorage(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize storage: %v", err)
	}
	models.RegisterFileURLGenerator(summaries)
	handlers.RegisterStorageHandler(summaries)
	uploadDir := ""
	if local, ok := summaries.(*services.LocalStorage); ok {
		uploadDir = local.BasePath()
	}

	// Redis-backed workers and limits
	var taskClient *tasks.TaskClient
	if cfg.Redis.Enabled {
		taskClient = tasks.NewTaskClient(cfg.Redis)
		defer func() {
			if err := taskClient.Close(); err != nil {
				logger.Error("Failed to close task client", err)
			}
		}()
		checks["redis"] = taskClient.Ping
	}

	// Gateways
	platformLimit := ratelimit.RateLimit{Window: time.Minute, MaxRequests: cfg.Platform.RequestsPerMinute}
	var limiter ratelimit.Limiter = ratelimit.NewLocal(platformLimit)
	if taskClient != nil {
		limiter = ratelimit.NewSlidingWindow(taskClient.Redis(), "webflow", platformLimit)
	}
	webflow := platform.New(platform.Config{
		BaseURL:    cfg.Platform.BaseURL,
		Token:      cfg.Platform.Token,
		APIVersion: cfg.Platform.APIVersion,
		MaxRetries: cfg.Platform.MaxRetries,
		BaseDelay:  cfg.Platform.RetryBaseDelay,
		MaxDelay:   cfg.Platform.RetryMaxDelay,
		Timeout:    cfg.Platform.Timeout,
	}, platform.WithLimiter(limiter))

	var secretSource llm.SecretSource
	if cfg.Secrets.Enabled {
		source, err := services.NewSecretsManagerSource(ctx, cfg.Secrets)
		if err != nil {
			logger.Warn("Secrets Manager unavailable, using CLAUDE_API_KEY: %v", err)
		} else {
			secretSource = source
		}
	}
	llmOptions := llm.Options{
		Model:       cfg.LLM.Model,
		MaxTokens:   cfg.LLM.MaxTokens,
		Temperature: cfg.LLM.Temperature,
	}
	claude := llm.NewClient(llm.Config{
		BaseURL:  cfg.LLM.BaseURL,
		Defaults: llmOptions,
		Timeout:  cfg.LLM.Timeout,
	}, llm.NewCredentialCache(secretSource, cfg.LLM.APIKey, cfg.Secrets.TTL))

	// Workflows
	conv := conversation.NewService(repo, webflow, claude, llmOptions)
	orch := orchestrator.New(orchestrator.Deps{
		Store:        repo,
		Platform:     webflow,
		LLM:          claude,
		Conversation: conv,
		Summaries:    summaries,
		Options:      llmOptions,
	})

	// Background edits
	bus := events.Default()
	var results events.ResultPublisher = bus
	if taskClient != nil {
		// Any replica's worker may run the edit; each replica relays results to its own sockets.
		results = events.NewRedisPublisher(taskClient.Redis())
		relay, err := events.StartRelay(ctx, taskClient.Redis(), bus)
		if err != nil {
			log.Fatalf("Failed to subscribe to edit results: %v", err)
		}
		defer func() {
			if err := relay.Close(); err != nil {
				logger.Error("Failed to close edit result relay", err)
			}
		}()
	}
	taskHandler := tasks.NewTaskHandler(orch, repo, results)
	var dispatcher tasks.Dispatcher = tasks.NewInlineDispatcher(taskHandler)
	var taskServer *tasks.Server
	var taskScheduler *tasks.Scheduler
	if taskClient != nil {
		dispatcher = taskClient
		taskServer = tasks.NewServer(cfg.Redis, cfg.Worker, taskHandler, logger.Named("worker"))
		if err := taskServer.Start(); err != nil {
			log.Fatalf("Failed to start task server: %v", err)
		}
		taskScheduler = tasks.NewScheduler(cfg.Redis, cfg.Tasks, logger.Named("scheduler"))
		go func() {
			if err := taskScheduler.Start(); err != nil {
				logger.Error("Task scheduler error", err)
			}
		}()
	} else {
		logger.Warn("Redis disabled; edits run in-process and orphan reconciliation is off")
	}

	hub := realtime.NewHub(dispatcher, cfg.Server.CORSOrigins)
	hub.Subscribe(bus)

	swagger.SwaggerInfo.Title = "Sitepilot API"
	swagger.SwaggerInfo.Description = "Backend for AI-assisted website projects"
	swagger.SwaggerInfo.Version = "1.0"
	swagger.SwaggerInfo.BasePath = "/api/v1"

	deps := api.Deps{
		Config:       cfg,
		Users:        repo,
		Orchestrator: orch,
		Hub:          hub,
		Reconciler:   repo,
		UploadDir:    uploadDir,
		Checks:       checks,
	}
	if gormRepo, ok := repo.(*store.GormRepository); ok {
		deps.DB = gormRepo.DB()
	}
	apiServer := api.NewServer(deps)
	go func() {
		logger.Success("API server starting on %s:%d", cfg.Server.Host, cfg.Server.Port)
		if err := apiServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("API server error", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the servers
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("Failed to shutdown API server", err)
	}
	if taskScheduler != nil {
		taskScheduler.Stop()
	}
	if taskServer != nil {
		taskServer.Shutdown()
	}
	bus.Wait()

	logger.Info("Servers shutdown gracefully")
}

// seedAdmin creates the bootstrap administrator when ADMIN_EMAIL and ADMIN_PASSWORD are set.
func seedAdmin(ctx context.Context, users models.UserStore, logger *logger.Logger) {
	seed, err := models.AdminSeedFromEnv()
	if err != nil {
		logger.Debug("Skipping admin seed: %v", err)
		return
	}
	if _, err := models.EnsureAdmin(ctx, users, seed); err != nil {
		logger.Error("Failed to seed admin user", err)
	}
}
