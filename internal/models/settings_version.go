package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// SceneSettings holds the viewer settings blobs. Each field is opaque JSON;
// the engine only ever compares them structurally, never interprets them.
type SceneSettings struct {
	Environment datatypes.JSON `json:"environment"`
	ToneMapping datatypes.JSON `json:"tone_mapping"`
	Controls    datatypes.JSON `json:"controls"`
	Shadows     datatypes.JSON `json:"shadows"`
	Meta        datatypes.JSON `json:"meta"`
}

// SceneSettingsVersion is one append-only entry in a scene's settings history.
// Exactly one row per scene carries IsLatest=true and it holds the maximum
// version number. The unique (scene_id, version) index turns concurrent
// first saves into a constraint violation instead of a duplicate version.
type SceneSettingsVersion struct {
	ID        uuid.UUID        `gorm:"type:uuid;primaryKey" json:"id"`
	SceneID   uuid.UUID        `gorm:"type:uuid;not null;uniqueIndex:idx_scene_version,priority:1" json:"scene_id"`
	Version   int              `gorm:"not null;uniqueIndex:idx_scene_version,priority:2" json:"version"`
	IsLatest  bool             `gorm:"not null;index" json:"is_latest"`
	Settings  SceneSettings    `gorm:"embedded" json:"settings"`
	CreatedBy uuid.UUID        `gorm:"type:uuid;not null" json:"created_by"`
	CreatedAt time.Time        `gorm:"autoCreateTime" json:"created_at"`
	Links     []SceneAssetLink `gorm:"foreignKey:VersionID" json:"links,omitempty"`
}

// SceneAssetLink associates a settings version with one of the assets it
// references. A version's asset set is exactly its link rows.
type SceneAssetLink struct {
	VersionID uuid.UUID `gorm:"type:uuid;primaryKey" json:"version_id"`
	AssetID   uuid.UUID `gorm:"type:uuid;primaryKey" json:"asset_id"`
	UsageType string    `gorm:"type:varchar(32);not null" json:"usage_type"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

const (
	// AssetUsageDocument marks the link to the synthetic GLTF document asset.
	AssetUsageDocument = "document"
	// AssetUsageResource marks links to buffer and texture payloads.
	AssetUsageResource = "resource"
)
