package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Vectreal/vectreal-platform-sub000/internal/models"
)

// VersionRepository provides methods to interact with the settings version
// history and its asset links.
type VersionRepository struct {
	db *gorm.DB
}

// NewVersionRepository creates a new VersionRepository instance with the provided GORM database connection.
func NewVersionRepository(db *gorm.DB) *VersionRepository {
	return &VersionRepository{db: db}
}

// WithTx returns a copy of the repository bound to the given transaction.
func (r *VersionRepository) WithTx(tx *gorm.DB) *VersionRepository {
	return &VersionRepository{db: tx}
}

// GetLatest returns the scene's current latest version, or nil when the scene
// has no version yet.
func (r *VersionRepository) GetLatest(ctx context.Context, sceneID uuid.UUID) (*models.SceneSettingsVersion, error) {
	var version models.SceneSettingsVersion
	err := r.db.WithContext(ctx).
		Where("scene_id = ? AND is_latest = ?", sceneID, true).
		First(&version).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &version, nil
}

// MaxVersion returns the highest version number recorded for the scene, zero
// when none exists.
func (r *VersionRepository) MaxVersion(ctx context.Context, sceneID uuid.UUID) (int, error) {
	var max int
	err := r.db.WithContext(ctx).
		Model(&models.SceneSettingsVersion{}).
		Where("scene_id = ?", sceneID).
		Select("COALESCE(MAX(version), 0)").
		Scan(&max).Error
	return max, err
}

// ClearLatest flips the scene's current latest version to not-latest.
func (r *VersionRepository) ClearLatest(ctx context.Context, sceneID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.SceneSettingsVersion{}).
		Where("scene_id = ? AND is_latest = ?", sceneID, true).
		Update("is_latest", false).Error
}

// Create inserts a new settings version. The unique (scene_id, version) index
// rejects concurrent duplicates.
func (r *VersionRepository) Create(ctx context.Context, version *models.SceneSettingsVersion) error {
	return r.db.WithContext(ctx).Create(version).Error
}

// CreateLinks inserts the asset link rows for a version.
func (r *VersionRepository) CreateLinks(ctx context.Context, links []models.SceneAssetLink) error {
	if len(links) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&links).Error
}

// GetLinks returns a version's asset links in insertion order.
func (r *VersionRepository) GetLinks(ctx context.Context, versionID uuid.UUID) ([]models.SceneAssetLink, error) {
	var links []models.SceneAssetLink
	err := r.db.WithContext(ctx).
		Where("version_id = ?", versionID).
		Order("created_at").
		Find(&links).Error
	return links, err
}

// ListByScene returns the scene's full version history, oldest first.
func (r *VersionRepository) ListByScene(ctx context.Context, sceneID uuid.UUID) ([]models.SceneSettingsVersion, error) {
	var versions []models.SceneSettingsVersion
	err := r.db.WithContext(ctx).
		Where("scene_id = ?", sceneID).
		Order("version").
		Find(&versions).Error
	return versions, err
}

// CountByScene returns how many versions the scene has.
func (r *VersionRepository) CountByScene(ctx context.Context, sceneID uuid.UUID) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Model(&models.SceneSettingsVersion{}).
		Where("scene_id = ?", sceneID).
		Count(&n).Error
	return n, err
}
