package models

import (
	"time"

	"github.com/google/uuid"
)

// FolderKind distinguishes the lazily created default folders.
type FolderKind string

const (
	// FolderKindScenes is the per-user default scene folder within a project.
	FolderKindScenes FolderKind = "scenes"
	// FolderKindAssets is the per-project assets folder. Its OwnerID is the
	// nil UUID so the unique scope index yields exactly one per project.
	FolderKindAssets FolderKind = "assets"
)

// Folder groups scenes or assets within a project. The (project, kind, owner)
// scope is unique so concurrent lazy creation degenerates to an
// ignore-duplicates insert plus re-query.
type Folder struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	ProjectID uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_folder_scope,priority:1" json:"project_id"`
	Kind      FolderKind `gorm:"type:varchar(16);not null;uniqueIndex:idx_folder_scope,priority:2" json:"kind"`
	OwnerID   uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_folder_scope,priority:3" json:"owner_id"`
	ParentID  *uuid.UUID `gorm:"type:uuid" json:"parent_id,omitempty"`
	Name      string     `gorm:"not null" json:"name"`
	CreatedAt time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}
