// Package main runs the recordings API server: video uploads to S3 or
// local disk, metadata in PostgreSQL, list/fetch with range streaming.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/vidvault/backend/config"
	"github.com/vidvault/backend/internal/middleware"
	"github.com/vidvault/backend/internal/recordings"
	"github.com/vidvault/backend/internal/worker"
	"github.com/vidvault/backend/pkg/database"
	"github.com/vidvault/backend/pkg/queue"
	"github.com/vidvault/backend/pkg/redis"
	"github.com/vidvault/backend/pkg/response"
	"github.com/vidvault/backend/pkg/storage"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	var blobs storage.BlobStore
	switch cfg.Storage.Backend {
	case config.BackendS3:
		s3Store, err := storage.NewS3Store(ctx, storage.S3Config{
			Region:               cfg.AWS.Region,
			AccessKeyID:          cfg.AWS.AccessKeyID,
			SecretAccessKey:      cfg.AWS.SecretAccessKey,
			Bucket:               cfg.AWS.RecordingsBucket,
			PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
		}, logger)
		if err != nil {
			logger.Fatal("s3 store", zap.Error(err))
		}
		blobs = s3Store
	case config.BackendLocal:
		localStore, err := storage.NewLocalStore(cfg.Storage.LocalDir, logger)
		if err != nil {
			logger.Fatal("local store", zap.Error(err))
		}
		blobs = localStore
	}

	recordingRepo := recordings.NewRepository(pool)
	recordingHandler := recordings.NewHandler(recordingRepo, blobs, logger)

	// Orphaned-blob cleanup (optional; requires Redis)
	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()
	if cfg.Redis.Addr != "" {
		rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
		if err != nil {
			logger.Fatal("redis", zap.Error(err))
		}
		defer rdb.Close()

		cleanupQueue := queue.NewQueue(rdb.Client, logger)
		recordingHandler.SetCleanupQueue(cleanupQueue)
		go worker.NewCleanupWorker(blobs, cleanupQueue, logger).Run(workerCtx)
		logger.Info("cleanup worker started")
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	router.GET("/", func(c *gin.Context) {
		response.OK(c, gin.H{"status": "ok", "message": "recordings API running"})
	})

	api := router.Group("/api")
	{
		api.POST("/recordings", recordingHandler.Upload)
		api.GET("/recordings", recordingHandler.List)
		api.GET("/recordings/:id", recordingHandler.GetByID)
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port), zap.String("storage", cfg.Storage.Backend))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	workerCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
