package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Vectreal/vectreal-platform-sub000/internal/models"
)

// AssetRepository provides methods to interact with the Asset model in the database.
type AssetRepository struct {
	db *gorm.DB
}

// NewAssetRepository creates a new AssetRepository instance with the provided GORM database connection.
func NewAssetRepository(db *gorm.DB) *AssetRepository {
	return &AssetRepository{db: db}
}

// WithTx returns a copy of the repository bound to the given transaction.
func (r *AssetRepository) WithTx(tx *gorm.DB) *AssetRepository {
	return &AssetRepository{db: tx}
}

// Create inserts a new Asset row.
func (r *AssetRepository) Create(ctx context.Context, asset *models.Asset) error {
	return r.db.WithContext(ctx).Create(asset).Error
}

// GetByID retrieves an Asset by its ID from the database.
func (r *AssetRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Asset, error) {
	var asset models.Asset
	err := r.db.WithContext(ctx).First(&asset, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &asset, nil
}

// GetByIDs retrieves the Assets for the given ids. Missing ids are simply
// absent from the result.
func (r *AssetRepository) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Asset, error) {
	if len(ids) == 0 {
		return []models.Asset{}, nil
	}
	var assets []models.Asset
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&assets).Error
	return assets, err
}

// FindByFolderAndName returns all assets with the given name in a folder.
// Several rows may share a name when their content hashes differ.
func (r *AssetRepository) FindByFolderAndName(ctx context.Context, folderID uuid.UUID, name string) ([]models.Asset, error) {
	var assets []models.Asset
	err := r.db.WithContext(ctx).
		Where("folder_id = ? AND name = ?", folderID, name).
		Order("created_at").
		Find(&assets).Error
	return assets, err
}

// ListByFolder retrieves all Assets in a folder.
func (r *AssetRepository) ListByFolder(ctx context.Context, folderID uuid.UUID) ([]models.Asset, error) {
	var assets []models.Asset
	err := r.db.WithContext(ctx).Where("folder_id = ?", folderID).Order("created_at").Find(&assets).Error
	return assets, err
}

// Delete removes an Asset row by its ID.
func (r *AssetRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&models.Asset{}, "id = ?", id).Error
}
