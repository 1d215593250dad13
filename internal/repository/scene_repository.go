package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Vectreal/vectreal-platform-sub000/internal/models"
)

// SceneRepository provides methods to interact with the Scene model in the database.
type SceneRepository struct {
	db *gorm.DB
}

// NewSceneRepository creates a new SceneRepository instance with the provided GORM database connection.
func NewSceneRepository(db *gorm.DB) *SceneRepository {
	return &SceneRepository{db: db}
}

// WithTx returns a copy of the repository bound to the given transaction.
func (r *SceneRepository) WithTx(tx *gorm.DB) *SceneRepository {
	return &SceneRepository{db: tx}
}

// CreateIgnoreDuplicates inserts the scene if its id is unseen. The returned
// flag distinguishes created from alreadyExists without a read-then-write race.
func (r *SceneRepository) CreateIgnoreDuplicates(ctx context.Context, scene *models.Scene) (bool, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoNothing: true,
		}).
		Create(scene)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// GetScene retrieves a Scene by its ID from the database.
func (r *SceneRepository) GetScene(ctx context.Context, id uuid.UUID) (*models.Scene, error) {
	var scene models.Scene
	err := r.db.WithContext(ctx).First(&scene, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &scene, nil
}

// ListByProject retrieves all Scenes belonging to a project.
func (r *SceneRepository) ListByProject(ctx context.Context, projectID uuid.UUID) ([]models.Scene, error) {
	var scenes []models.Scene
	err := r.db.WithContext(ctx).Where("project_id = ?", projectID).Order("created_at").Find(&scenes).Error
	return scenes, err
}

// UpdateScene updates an existing Scene in the database.
func (r *SceneRepository) UpdateScene(ctx context.Context, scene *models.Scene) error {
	return r.db.WithContext(ctx).Save(scene).Error
}
