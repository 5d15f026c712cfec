package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/gitscribe/gitscribe/internal/ai"
	"github.com/gitscribe/gitscribe/internal/api"
	"github.com/gitscribe/gitscribe/internal/cache"
	"github.com/gitscribe/gitscribe/internal/db"
	"github.com/gitscribe/gitscribe/internal/github"
	"github.com/gitscribe/gitscribe/internal/pipeline"
	"github.com/gitscribe/gitscribe/internal/scheduler"
	"github.com/gitscribe/gitscribe/pkg/config"
	"github.com/gitscribe/gitscribe/pkg/logging"
	"github.com/gitscribe/gitscribe/pkg/telemetry"
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
	logger.Info("Starting GitScribe API Server")

	// Initialize telemetry
	telemetryShutdown, err := telemetry.Init(&cfg.Telemetry)
	if err != nil {
		logger.Fatal("Failed to initialize telemetry", zap.Error(err))
	}
	defer telemetryShutdown()

	// Connect to the database and apply the schema
	database, err := db.New(&cfg.Database, cfg.Logging.Level)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer database.Close()

	if err := database.Migrate(); err != nil {
		logger.Fatal("Failed to migrate database schema", zap.Error(err))
	}

	// Redis cache, disabled gracefully when not configured
	redisCache, err := cache.New(&cfg.Redis)
	if err != nil {
		logger.Warn("Redis unavailable, continuing without cache", zap.Error(err))
	}
	defer redisCache.Close()

	// External service clients
	githubClient := github.New(&cfg.GitHub)
	aiClient, err := ai.New(&cfg.AI)
	if err != nil {
		logger.Fatal("Failed to create AI client", zap.Error(err))
	}

	// Stores and the auto-post pipeline
	repo := db.NewRepository(database.DB)
	posts := db.NewPostRepository(repo)
	settings := db.NewSettingsRepository(repo)
	autoPipeline := pipeline.New(githubClient, aiClient, pipeline.NewDBStore(repo))

	// Create Gin router
	if cfg.Logging.Level == "DEBUG" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())

	router := api.NewRouter(posts, settings, githubClient, aiClient, autoPipeline, database, redisCache, cfg.Server.CronSecret)
	router.SetupRoutes(engine)

	// In-process sweep scheduler, optional alongside the HTTP cron path
	if cfg.Scheduler.Enabled {
		sched, err := scheduler.New(autoPipeline, cfg.Scheduler.DailySpec, cfg.Scheduler.WeeklySpec)
		if err != nil {
			logger.Fatal("Failed to create scheduler", zap.Error(err))
		}
		sched.Start()
		defer sched.Stop()
	}

	// Create HTTP server
	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: engine,
	}

	// Start server in goroutine
	go func() {
		logger.Info("Server starting", zap.String("address", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}
