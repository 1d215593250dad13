package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// SceneStats is the single optimization-report snapshot per scene. Unlike
// settings versions it is updated in place: saves that carry a report upsert
// on the unique scene_id.
type SceneStats struct {
	ID                   uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	SceneID              uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex" json:"scene_id"`
	Baseline             datatypes.JSON `json:"baseline"`
	Optimized            datatypes.JSON `json:"optimized"`
	AppliedOptimizations datatypes.JSON `json:"applied_optimizations"`
	Label                string         `json:"label"`
	Description          string         `json:"description"`
	CreatedBy            uuid.UUID      `gorm:"type:uuid;not null" json:"created_by"`
	CreatedAt            time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt            time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
}
