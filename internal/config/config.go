package config

import (
	"fmt"
	"os"
	"strconv"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Storage driver selection.
const (
	StorageDriverMinio  = "minio"
	StorageDriverMemory = "memory"
)

// Config holds all configuration values from environment.
type Config struct {
	AppPort    string
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	StorageDriver  string
	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioSSL       bool

	// Download rate limiting (token bucket per client).
	RateLimitPerSecond float64
	RateLimitBurst     int
}

// LoadConfig loads configuration from environment variables.
func LoadConfig() (*Config, error) {
	minioSSL := false
	if sslEnv := os.Getenv("MINIO_SSL"); sslEnv != "" {
		val, err := strconv.ParseBool(sslEnv)
		if err != nil {
			return nil, fmt.Errorf("invalid MINIO_SSL value: %v", err)
		}
		minioSSL = val
	}

	driver := os.Getenv("STORAGE_DRIVER")
	if driver == "" {
		driver = StorageDriverMinio
	}

	ratePerSecond := 5.0
	if rateEnv := os.Getenv("DOWNLOAD_RATE_LIMIT"); rateEnv != "" {
		val, err := strconv.ParseFloat(rateEnv, 64)
		if err == nil {
			ratePerSecond = val
		}
	}
	rateBurst := 10
	if burstEnv := os.Getenv("DOWNLOAD_RATE_BURST"); burstEnv != "" {
		val, err := strconv.Atoi(burstEnv)
		if err == nil {
			rateBurst = val
		}
	}

	cfg := &Config{
		AppPort:    os.Getenv("SCENE_ENGINE_PORT"),
		DBHost:     os.Getenv("DB_HOST"),
		DBPort:     os.Getenv("DB_PORT"),
		DBUser:     os.Getenv("DB_USER"),
		DBPassword: os.Getenv("DB_PASSWORD"),
		DBName:     os.Getenv("DB_NAME"),

		StorageDriver:  driver,
		MinioEndpoint:  os.Getenv("MINIO_ENDPOINT"),
		MinioAccessKey: os.Getenv("MINIO_ACCESS_KEY"),
		MinioSecretKey: os.Getenv("MINIO_SECRET_KEY"),
		MinioBucket:    os.Getenv("MINIO_BUCKET"),
		MinioSSL:       minioSSL,

		RateLimitPerSecond: ratePerSecond,
		RateLimitBurst:     rateBurst,
	}
	// Basic validation for required fields
	if cfg.DBHost == "" || cfg.DBUser == "" || cfg.DBName == "" {
		return nil, fmt.Errorf("database configuration is incomplete")
	}
	switch cfg.StorageDriver {
	case StorageDriverMemory:
	case StorageDriverMinio:
		if cfg.MinioEndpoint == "" || cfg.MinioAccessKey == "" || cfg.MinioSecretKey == "" || cfg.MinioBucket == "" {
			return nil, fmt.Errorf("minio configuration is incomplete")
		}
	default:
		return nil, fmt.Errorf("unknown storage driver: %s", cfg.StorageDriver)
	}
	return cfg, nil
}

// ConnectDatabase initializes a GORM database connection to PostgreSQL.
func ConnectDatabase(cfg *Config) (*gorm.DB, error) {
	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPassword, cfg.DBName)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}
	return db, nil
}
