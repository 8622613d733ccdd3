package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"gorm.io/gorm"

	_ "gltf-export-service/docs"
	"gltf-export-service/internal/config"
	"gltf-export-service/internal/decoder"
	"gltf-export-service/internal/handlers"
	"gltf-export-service/internal/logger"
	"gltf-export-service/internal/metrics"
	"gltf-export-service/internal/models"
	"gltf-export-service/internal/pipeline"
	"gltf-export-service/internal/repository"
	"gltf-export-service/internal/services"
	"gltf-export-service/internal/storage"
)

const maxUploadBytes = 512 << 20

func main() {
	cfg := InitConfig()
	log := InitLogger(cfg)
	defer log.Sync()

	db := ConnectDatabase(cfg, log)
	MigrateDatabase(db, log)
	store := InitMinIOClient(cfg, log)
	redis := InitRedisClient(cfg, log)
	if redis != nil {
		defer redis.Close()
	}

	m := metrics.NewMetrics(prometheus.DefaultRegisterer)

	cache, err := services.NewCacheStrategy(cfg.Cache, redis, m, log)
	if err != nil {
		log.Fatal("cache initialization failed", zap.Error(err))
	}
	defer cache.Close()

	decoders := decoder.NewDefaultRegistry(&decoder.ExternalDecoder{
		Command: cfg.Decoder.Command,
		Args:    cfg.Decoder.Args,
		Timeout: cfg.Decoder.Timeout,
		Log:     log,
	})
	log.Info("decoders registered", zap.Strings("extensions", decoders.Extensions()))

	exportService := services.NewExportService(
		repository.NewExportRepository(db),
		store,
		cache,
		pipeline.NewConverter(nil, m, log),
		decoders,
		cfg.Export,
		log,
	)

	app := fiber.New(fiber.Config{BodyLimit: maxUploadBytes})

	//Register Prometheus metrics endpoint
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	api := app.Group("/api/export")
	handlers.RegisterRoutes(api,
		handlers.NewExportHandler(exportService, log),
		handlers.NewCacheHandler(cache, log))

	for _, r := range app.GetRoutes() {
		log.Debug("registered route", zap.String("method", r.Method), zap.String("path", r.Path))
	}

	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
		<-sig
		log.Info("shutting down")
		if err := app.ShutdownWithTimeout(30 * time.Second); err != nil {
			log.Error("shutdown failed", zap.Error(err))
		}
	}()

	port := cfg.AppPort
	if port == "" {
		port = "8080"
	}
	log.Info("server listening", zap.String("port", port))
	if err := app.Listen(":" + port); err != nil {
		log.Fatal("server stopped", zap.Error(err))
	}
}

func InitConfig() *config.Config {
	cfg, err := config.LoadConfig()
	if err != nil {
		zap.NewExample().Fatal("config error", zap.Error(err))
	}
	if err := cfg.ValidateService(); err != nil {
		zap.NewExample().Fatal("config error", zap.Error(err))
	}
	return cfg
}

func InitLogger(cfg *config.Config) *zap.Logger {
	lc := logger.DefaultConfig()
	lc.Level = cfg.Logging.Level
	lc.File = cfg.Logging.File
	lc.JSON = cfg.Logging.JSON
	log, err := logger.New(lc)
	if err != nil {
		zap.NewExample().Fatal("logger initialization failed", zap.Error(err))
	}
	return log
}

func ConnectDatabase(cfg *config.Config, log *zap.Logger) *gorm.DB {
	db, err := config.ConnectDatabase(cfg)
	if err != nil {
		log.Fatal("database connection failed", zap.Error(err))
	}
	return db
}

func MigrateDatabase(db *gorm.DB, log *zap.Logger) {
	if err := db.AutoMigrate(&models.Export{}); err != nil {
		log.Fatal("database migration failed", zap.Error(err))
	}
}

func InitMinIOClient(cfg *config.Config, log *zap.Logger) *storage.MinioStore {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	store, err := storage.NewMinioClient(ctx, cfg.Minio, log)
	if err != nil {
		log.Fatal("MinIO client initialization failed", zap.Error(err))
	}
	return store
}

// InitRedisClient returns nil when Redis is not configured or unreachable;
// the cache then runs with its memory and file layers only.
func InitRedisClient(cfg *config.Config, log *zap.Logger) *storage.RedisClient {
	if !cfg.RedisEnabled() {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	client, err := storage.NewRedisClient(ctx, cfg.Redis.Host, cfg.Redis.Port)
	if err != nil {
		log.Warn("redis unavailable, continuing without redis cache layer", zap.Error(err))
		return nil
	}
	return client
}
