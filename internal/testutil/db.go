// Package testutil provides shared helpers for database-backed tests.
package testutil

import (
	"path/filepath"
	"testing"

	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/Vectreal/vectreal-platform-sub000/internal/models"
)

// DB opens a file-backed sqlite database in the test's temp dir with all
// engine tables migrated. Each test gets its own isolated database.
func DB(t *testing.T) *gorm.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "engine.db")
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := db.AutoMigrate(
		&models.Folder{},
		&models.Scene{},
		&models.SceneSettingsVersion{},
		&models.SceneAssetLink{},
		&models.Asset{},
		&models.SceneStats{},
	); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	return db
}

// Logger returns a no-op logger for tests.
func Logger(t *testing.T) *zap.Logger {
	t.Helper()
	return zap.NewNop()
}
