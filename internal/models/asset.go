package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// AssetType categorizes an asset for the asset browser.
type AssetType string

const (
	AssetTypeTexture AssetType = "texture"
	AssetTypeModel   AssetType = "model"
	AssetTypeOther   AssetType = "other"
)

// AssetMetadata is the persisted metadata blob on an asset row. ContentHash
// is the dedup and change-detection key for the stored bytes.
type AssetMetadata struct {
	SceneID          string `json:"sceneId"`
	OriginalFileName string `json:"originalFileName"`
	AssetType        string `json:"assetType"`
	ContentHash      string `json:"contentHash"`
}

// Asset represents stored bytes in the object store plus their metadata row.
// Assets are immutable once created and never overwritten in place; a payload
// with the same name but different bytes gets a fresh id and storage key.
// The (folder_id, name) index is deliberately non-unique for that reason.
type Asset struct {
	ID        uuid.UUID                         `gorm:"type:uuid;primaryKey" json:"id"`
	FolderID  uuid.UUID                         `gorm:"type:uuid;not null;index:idx_asset_folder_name,priority:1" json:"folder_id"`
	Name      string                            `gorm:"not null;index:idx_asset_folder_name,priority:2" json:"name"`
	Type      AssetType                         `gorm:"type:varchar(16);not null" json:"type"`
	FilePath  string                            `gorm:"not null" json:"file_path"`
	FileSize  int64                             `json:"file_size"`
	MimeType  string                            `json:"mime_type"`
	Metadata  datatypes.JSONType[AssetMetadata] `json:"metadata"`
	OwnerID   uuid.UUID                         `gorm:"type:uuid;not null" json:"owner_id"`
	CreatedAt time.Time                         `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time                         `gorm:"autoUpdateTime" json:"updated_at"`
}
