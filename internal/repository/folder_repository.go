package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Vectreal/vectreal-platform-sub000/internal/models"
)

// FolderRepository provides methods to interact with the Folder model in the database.
type FolderRepository struct {
	db *gorm.DB
}

// NewFolderRepository creates a new FolderRepository instance with the provided GORM database connection.
func NewFolderRepository(db *gorm.DB) *FolderRepository {
	return &FolderRepository{db: db}
}

// WithTx returns a copy of the repository bound to the given transaction.
func (r *FolderRepository) WithTx(tx *gorm.DB) *FolderRepository {
	return &FolderRepository{db: tx}
}

// CreateIgnoreDuplicates inserts the folder unless its (project, kind, owner)
// scope already exists. Returns whether the row was created.
func (r *FolderRepository) CreateIgnoreDuplicates(ctx context.Context, folder *models.Folder) (bool, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "project_id"}, {Name: "kind"}, {Name: "owner_id"}},
			DoNothing: true,
		}).
		Create(folder)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// FindScoped retrieves the folder for a (project, kind, owner) scope.
func (r *FolderRepository) FindScoped(ctx context.Context, projectID uuid.UUID, kind models.FolderKind, ownerID uuid.UUID) (*models.Folder, error) {
	var folder models.Folder
	err := r.db.WithContext(ctx).
		Where("project_id = ? AND kind = ? AND owner_id = ?", projectID, kind, ownerID).
		First(&folder).Error
	if err != nil {
		return nil, err
	}
	return &folder, nil
}

// GetFolder retrieves a Folder by its ID from the database.
func (r *FolderRepository) GetFolder(ctx context.Context, id uuid.UUID) (*models.Folder, error) {
	var folder models.Folder
	err := r.db.WithContext(ctx).First(&folder, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &folder, nil
}

// UpdateFolder updates an existing Folder in the database.
func (r *FolderRepository) UpdateFolder(ctx context.Context, folder *models.Folder) error {
	return r.db.WithContext(ctx).Save(folder).Error
}
