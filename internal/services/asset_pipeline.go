package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/Vectreal/vectreal-platform-sub000/internal/gltf"
	"github.com/Vectreal/vectreal-platform-sub000/internal/metrics"
	"github.com/Vectreal/vectreal-platform-sub000/internal/models"
	"github.com/Vectreal/vectreal-platform-sub000/internal/repository"
	"github.com/Vectreal/vectreal-platform-sub000/internal/storage"
)

// AssetPipeline uploads new asset payloads and reuses existing rows when the
// content hash already matches under the same (folder, file name).
type AssetPipeline struct {
	assets  *repository.AssetRepository
	store   storage.Gateway
	metrics *metrics.Collector
	log     *zap.Logger
}

// NewAssetPipeline creates an AssetPipeline over the given repository and gateway.
func NewAssetPipeline(assets *repository.AssetRepository, store storage.Gateway, collector *metrics.Collector, log *zap.Logger) *AssetPipeline {
	return &AssetPipeline{
		assets:  assets,
		store:   store,
		metrics: collector,
		log:     log.With(zap.String("component", "asset_pipeline")),
	}
}

// Process resolves every descriptor to an asset id, uploading sequentially
// and only when no row with the same name and content hash exists. For new
// assets the storage write happens before the database insert, so a crash can
// only leave an orphaned storage object, never a row pointing at nothing. Any
// upload failure propagates out so the enclosing transaction aborts.
func (p *AssetPipeline) Process(ctx context.Context, tx *gorm.DB, sceneID, folderID, ownerID uuid.UUID, descriptors []gltf.Descriptor) ([]uuid.UUID, error) {
	repo := p.assets.WithTx(tx)
	ids := make([]uuid.UUID, 0, len(descriptors))
	for _, d := range descriptors {
		hash := gltf.HashBytes(d.Data)

		existing, err := repo.FindByFolderAndName(ctx, folderID, d.FileName)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to look up asset %s", d.FileName)
		}
		var reused *models.Asset
		for i := range existing {
			if existing[i].Metadata.Data().ContentHash == hash {
				reused = &existing[i]
				break
			}
		}
		if reused != nil {
			p.metrics.RecordAssetReuse()
			p.log.Debug("asset reused",
				zap.String("file", d.FileName),
				zap.String("asset_id", reused.ID.String()))
			ids = append(ids, reused.ID)
			continue
		}

		// A name collision with a different hash falls through here: fresh id,
		// fresh storage path, never an overwrite.
		assetID := uuid.New()
		key := fmt.Sprintf("scenes/%s/assets/%s/%s", sceneID, assetID, d.FileName)
		if err := p.store.Upload(ctx, key, d.Data, d.MimeType); err != nil {
			return nil, &UploadError{FileName: d.FileName, Err: err}
		}
		asset := &models.Asset{
			ID:       assetID,
			FolderID: folderID,
			Name:     d.FileName,
			Type:     assetTypeFor(d),
			FilePath: key,
			FileSize: int64(len(d.Data)),
			MimeType: d.MimeType,
			Metadata: datatypes.NewJSONType(models.AssetMetadata{
				SceneID:          sceneID.String(),
				OriginalFileName: d.FileName,
				AssetType:        string(d.Kind),
				ContentHash:      hash,
			}),
			OwnerID: ownerID,
		}
		if err := repo.Create(ctx, asset); err != nil {
			return nil, errors.Wrapf(err, "failed to save asset metadata for %s", d.FileName)
		}
		p.metrics.RecordAssetUpload(int64(len(d.Data)))
		ids = append(ids, assetID)
	}
	return ids, nil
}

func assetTypeFor(d gltf.Descriptor) models.AssetType {
	switch {
	case d.MimeType == gltf.MimeDocument:
		return models.AssetTypeModel
	case d.Kind == gltf.KindImage:
		return models.AssetTypeTexture
	default:
		return models.AssetTypeOther
	}
}
