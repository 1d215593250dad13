package main

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/swagger"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"gorm.io/gorm"

	"github.com/Vectreal/vectreal-platform-sub000/internal/config"
	"github.com/Vectreal/vectreal-platform-sub000/internal/handlers"
	"github.com/Vectreal/vectreal-platform-sub000/internal/metrics"
	"github.com/Vectreal/vectreal-platform-sub000/internal/models"
	"github.com/Vectreal/vectreal-platform-sub000/internal/ratelimit"
	"github.com/Vectreal/vectreal-platform-sub000/internal/repository"
	"github.com/Vectreal/vectreal-platform-sub000/internal/services"
	"github.com/Vectreal/vectreal-platform-sub000/internal/storage"
)

func main() {
	_ = godotenv.Load()

	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	cfg := InitConfig(logger)
	db := ConnectDatabase(cfg, logger)
	MigrateDatabase(db, logger)

	collector := metrics.NewCollector()
	gateway := InitStorageGateway(cfg, collector, logger)

	sceneRepo := repository.NewSceneRepository(db)
	folderRepo := repository.NewFolderRepository(db)
	versionRepo := repository.NewVersionRepository(db)
	assetRepo := repository.NewAssetRepository(db)
	statsRepo := repository.NewStatsRepository(db)

	detector := services.NewChangeDetector(logger)
	pipeline := services.NewAssetPipeline(assetRepo, gateway, collector, logger)
	sceneService := services.NewSceneService(
		db, sceneRepo, folderRepo, versionRepo, assetRepo, statsRepo,
		pipeline, detector, gateway, collector, logger)
	assetService := services.NewAssetService(assetRepo, folderRepo, gateway, logger)

	downloadLimiter := ratelimit.NewKeyedLimiter(
		rate.Limit(cfg.RateLimitPerSecond), cfg.RateLimitBurst, 10*time.Minute)

	app := fiber.New(fiber.Config{BodyLimit: 256 * 1024 * 1024})

	// Prometheus metrics endpoint
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	sceneHandler := handlers.NewSceneHandler(sceneService, logger)
	assetHandler := handlers.NewAssetHandler(assetService, logger)

	api := app.Group("/api")
	api.Post("/scenes/save", sceneHandler.SaveScene)
	api.Post("/scenes/:id/save/archive", sceneHandler.SaveFromArchive)
	api.Get("/scenes/:id", sceneHandler.GetScene)
	api.Get("/scenes/:id/versions", sceneHandler.ListVersions)
	api.Get("/assets/:id/download", handlers.RateLimit(downloadLimiter), assetHandler.DownloadAsset)
	api.Delete("/assets", assetHandler.BulkDeleteAssets)
	api.Get("/folders/:id/path", assetHandler.FolderPath)

	api.Get("/swagger/*", swagger.HandlerDefault)

	api.Get("/health", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	for _, r := range app.GetRoutes() {
		logger.Info("registered route", zap.String("method", r.Method), zap.String("path", r.Path))
	}

	port := cfg.AppPort
	if port == "" {
		port = "8080"
		logger.Info("defaulting port", zap.String("port", port))
	}
	logger.Info("server listening", zap.String("port", port))
	logger.Fatal("server stopped", zap.Error(app.Listen(":"+port)))
}

func InitConfig(logger *zap.Logger) *config.Config {
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatal("config error", zap.Error(err))
	}
	return cfg
}

func ConnectDatabase(cfg *config.Config, logger *zap.Logger) *gorm.DB {
	db, err := config.ConnectDatabase(cfg)
	if err != nil {
		logger.Fatal("database connection failed", zap.Error(err))
	}
	return db
}

func MigrateDatabase(db *gorm.DB, logger *zap.Logger) {
	err := db.AutoMigrate(
		&models.Folder{},
		&models.Scene{},
		&models.SceneSettingsVersion{},
		&models.SceneAssetLink{},
		&models.Asset{},
		&models.SceneStats{},
	)
	if err != nil {
		logger.Fatal("database migration failed", zap.Error(err))
	}
}

func InitStorageGateway(cfg *config.Config, collector *metrics.Collector, logger *zap.Logger) storage.Gateway {
	if cfg.StorageDriver == config.StorageDriverMemory {
		logger.Warn("using in-memory storage gateway; objects will not survive restarts")
		return storage.NewInstrumentedGateway(storage.NewMemoryGateway(), collector, logger)
	}
	client, err := storage.NewMinioClient(cfg)
	if err != nil {
		logger.Fatal("minio client initialization failed", zap.Error(err))
	}
	return storage.NewInstrumentedGateway(
		storage.NewMinioGateway(client, cfg.MinioBucket), collector, logger)
}
