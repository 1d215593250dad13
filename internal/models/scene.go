package models

import (
	"time"

	"github.com/google/uuid"
)

// SceneStatus is the lifecycle state of a scene.
type SceneStatus string

const (
	SceneStatusDraft     SceneStatus = "draft"
	SceneStatusPublished SceneStatus = "published"
	SceneStatusArchived  SceneStatus = "archived"
)

// Scene represents an editable 3D scene. Rows are created lazily on the first
// save for an unseen id, attached to the creator's default scene folder.
type Scene struct {
	ID          uuid.UUID   `gorm:"type:uuid;primaryKey" json:"id"`
	ProjectID   uuid.UUID   `gorm:"type:uuid;not null;index" json:"project_id"`
	FolderID    uuid.UUID   `gorm:"type:uuid;not null" json:"folder_id"`
	Name        string      `gorm:"not null" json:"name"`
	Description string      `json:"description"`
	Status      SceneStatus `gorm:"type:varchar(16);not null" json:"status"`
	CreatedAt   time.Time   `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time   `gorm:"autoUpdateTime" json:"updated_at"`
}
