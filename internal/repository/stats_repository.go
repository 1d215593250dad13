package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Vectreal/vectreal-platform-sub000/internal/models"
)

// StatsRepository provides methods to interact with the SceneStats snapshot.
type StatsRepository struct {
	db *gorm.DB
}

// NewStatsRepository creates a new StatsRepository instance with the provided GORM database connection.
func NewStatsRepository(db *gorm.DB) *StatsRepository {
	return &StatsRepository{db: db}
}

// WithTx returns a copy of the repository bound to the given transaction.
func (r *StatsRepository) WithTx(tx *gorm.DB) *StatsRepository {
	return &StatsRepository{db: tx}
}

// Upsert writes the scene's stats snapshot, replacing an existing one in
// place on the unique scene_id.
func (r *StatsRepository) Upsert(ctx context.Context, stats *models.SceneStats) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "scene_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"baseline", "optimized", "applied_optimizations",
				"label", "description", "created_by", "updated_at",
			}),
		}).
		Create(stats).Error
}

// GetByScene returns the scene's stats snapshot, or nil when none exists.
func (r *StatsRepository) GetByScene(ctx context.Context, sceneID uuid.UUID) (*models.SceneStats, error) {
	var stats models.SceneStats
	err := r.db.WithContext(ctx).First(&stats, "scene_id = ?", sceneID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &stats, nil
}
