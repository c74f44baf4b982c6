package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/timmy/stickergen/internal/api"
	"github.com/timmy/stickergen/internal/api/middleware"
	"github.com/timmy/stickergen/internal/config"
	"github.com/timmy/stickergen/internal/logger"
	"github.com/timmy/stickergen/internal/repository"
	"github.com/timmy/stickergen/internal/service"
	"github.com/timmy/stickergen/internal/storage"
)

func main() {
	// Initialize logger first (with defaults) so config errors are structured too
	appLogger := logger.New(nil)
	logger.SetDefaultLogger(appLogger)

	// Support CONFIG_PATH environment variable for production deployments
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to load config")
	}

	appLogger = logger.New(&logger.Config{
		Level:       cfg.Log.Level,
		Format:      cfg.Log.Format,
		ServiceName: cfg.Log.ServiceName,
		Environment: cfg.Log.Environment,
		File:        cfg.Log.File,
		FileOnly:    cfg.Log.FileOnly,
		MaxSize:     cfg.Log.MaxSize,
		MaxBackups:  cfg.Log.MaxBackups,
		MaxAge:      cfg.Log.MaxAge,
		Compress:    cfg.Log.Compress,
	})
	logger.SetDefaultLogger(appLogger)
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize database
	db, err := repository.InitDB(&cfg.Database)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize database")
	}
	sqlDB, err := db.DB()
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to access database handle")
	}
	defer sqlDB.Close()

	jobRepo := repository.NewJobRepository(db)
	artifactRepo := repository.NewArtifactRepository(db)
	orderRepo := repository.NewOrderRepository(db)

	// Initialize storage (supports R2, S3, MinIO)
	objectStorage, err := storage.NewStorage(&cfg.Storage)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize storage")
	}
	if err := objectStorage.EnsureBucket(ctx); err != nil {
		appLogger.WithError(err).Fatal("Failed to ensure storage bucket")
	}

	generator := service.NewOpenAIImageGenerator(&service.OpenAIConfig{
		BaseURL: cfg.Generation.BaseURL,
		APIKey:  cfg.Generation.APIKey,
		Model:   cfg.Generation.Model,
		Size:    cfg.Generation.Size,
	})
	worker := service.NewGenerationWorker(jobRepo, generator, objectStorage, service.WorkerConfig{
		Timeout:           cfg.Generation.Timeout,
		ImagesPerJob:      cfg.Generation.ImagesPerJob,
		UploadConcurrency: cfg.Generation.UploadConcurrency,
	})

	tasks := service.NewTaskRunner()
	jobService := service.NewJobService(jobRepo, artifactRepo, orderRepo, worker, tasks, &service.JobServiceConfig{
		StatusRequiresOwner: cfg.Auth.StatusRequiresOwner,
	})
	orderService := service.NewOrderService(jobRepo, orderRepo, cfg.Order.UnitPrice)

	sweeper := service.NewStaleJobSweeper(jobRepo, cfg.Jobs.StaleAfter, cfg.Jobs.SweepInterval)
	sweeperDone := make(chan struct{})
	go func() {
		defer close(sweeperDone)
		sweeper.Run(ctx)
	}()

	var limiter middleware.Limiter
	closeLimiter := func() error { return nil }
	if cfg.RateLimit.Enabled {
		limiter, closeLimiter = newLimiter(ctx, &cfg.RateLimit, appLogger)
	}

	router := api.SetupRouter(&api.Dependencies{
		Jobs:                jobService,
		Orders:              orderService,
		Auth:                middleware.NewAuthenticator(cfg.Auth.JWTSecret, cfg.Auth.Issuer),
		Limiter:             limiter,
		DBPing:              sqlDB.PingContext,
		StatusRequiresOwner: cfg.Auth.StatusRequiresOwner,
		CORS:                cfg.Server.CORS,
		Logger:              appLogger,
		Mode:                cfg.Server.Mode,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		appLogger.WithFields(logger.Fields{
			"port": cfg.Server.Port,
			"mode": cfg.Server.Mode,
		}).Info("Starting API server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.WithError(err).Fatal("Failed to start server")
		}
	}()

	<-ctx.Done()
	appLogger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.WithError(err).Error("Server forced to shutdown")
	}

	// No new jobs can arrive now; let running generations finish or be cancelled
	if err := tasks.Shutdown(cfg.Server.ShutdownTimeout); err != nil {
		appLogger.WithError(err).Warn("Background tasks did not finish in time")
	}
	<-sweeperDone

	if err := closeLimiter(); err != nil {
		appLogger.WithError(err).Warn("Failed to close rate limiter backend")
	}

	appLogger.Info("Server exited")
}

// newLimiter returns the configured limiter and a func releasing its backend.
func newLimiter(ctx context.Context, cfg *config.RateLimitConfig, log *logger.Logger) (middleware.Limiter, func() error) {
	noop := func() error { return nil }
	if cfg.Redis.Addr == "" {
		log.WithField("per_minute", cfg.PerMinute).Info("Using in-memory rate limiter")
		return middleware.NewMemoryLimiter(cfg.PerMinute, time.Minute), noop
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		log.WithError(err).Warn("Redis unreachable, falling back to in-memory rate limiter")
		_ = client.Close()
		return middleware.NewMemoryLimiter(cfg.PerMinute, time.Minute), noop
	}

	log.WithFields(logger.Fields{
		"per_minute": cfg.PerMinute,
		"redis_addr": cfg.Redis.Addr,
	}).Info("Using redis rate limiter")
	return middleware.NewRedisLimiter(client, cfg.PerMinute, time.Minute), client.Close
}
