package services

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Vectreal/vectreal-platform-sub000/internal/models"
	"github.com/Vectreal/vectreal-platform-sub000/internal/repository"
	"github.com/Vectreal/vectreal-platform-sub000/internal/storage"
)

// maxFolderDepth bounds the ancestry walk so a corrupted parent graph can
// never loop or blow the stack.
const maxFolderDepth = 32

// AssetDeleteResult reports the outcome of one item of a bulk delete.
type AssetDeleteResult struct {
	ID      uuid.UUID `json:"id"`
	Deleted bool      `json:"deleted"`
	Error   string    `json:"error,omitempty"`
}

// AssetService manages stored assets outside the save path: downloads,
// explicit bulk deletion and folder ancestry.
type AssetService struct {
	assets  *repository.AssetRepository
	folders *repository.FolderRepository
	store   storage.Gateway
	log     *zap.Logger
}

// NewAssetService creates an AssetService.
func NewAssetService(assets *repository.AssetRepository, folders *repository.FolderRepository, store storage.Gateway, log *zap.Logger) *AssetService {
	return &AssetService{
		assets:  assets,
		folders: folders,
		store:   store,
		log:     log.With(zap.String("service", "AssetService")),
	}
}

// Get returns an asset row by id.
func (s *AssetService) Get(ctx context.Context, id uuid.UUID) (*models.Asset, error) {
	asset, err := s.assets.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &NotFoundError{Resource: "asset", ID: id.String()}
		}
		return nil, err
	}
	return asset, nil
}

// Download returns an asset's stored bytes along with its row.
func (s *AssetService) Download(ctx context.Context, id uuid.UUID) (*models.Asset, []byte, error) {
	asset, err := s.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	data, err := s.store.Download(ctx, asset.FilePath)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "failed to download asset %s", id)
	}
	return asset, data, nil
}

// BulkDelete removes assets best-effort per item: the storage object first
// (tolerating missing objects), then the row. One item failing never stops
// the rest.
func (s *AssetService) BulkDelete(ctx context.Context, ids []uuid.UUID) []AssetDeleteResult {
	results := make([]AssetDeleteResult, 0, len(ids))
	for _, id := range ids {
		res := AssetDeleteResult{ID: id}
		asset, err := s.assets.GetByID(ctx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				res.Error = "asset not found"
			} else {
				res.Error = err.Error()
			}
			results = append(results, res)
			continue
		}
		if err := s.store.Delete(ctx, asset.FilePath, true); err != nil {
			s.log.Warn("bulk delete: storage delete failed",
				zap.String("asset_id", id.String()), zap.Error(err))
			res.Error = err.Error()
			results = append(results, res)
			continue
		}
		if err := s.assets.Delete(ctx, id); err != nil {
			s.log.Warn("bulk delete: row delete failed",
				zap.String("asset_id", id.String()), zap.Error(err))
			res.Error = err.Error()
			results = append(results, res)
			continue
		}
		res.Deleted = true
		results = append(results, res)
	}
	return results
}

// FolderPath returns the folder's ancestry from root to the folder itself.
// The walk is iterative with a visited set and a fixed depth bound, so a
// cyclic parent graph is detected instead of recursing forever.
func (s *AssetService) FolderPath(ctx context.Context, folderID uuid.UUID) ([]models.Folder, error) {
	folder, err := s.folders.GetFolder(ctx, folderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &NotFoundError{Resource: "folder", ID: folderID.String()}
		}
		return nil, err
	}

	path := []models.Folder{*folder}
	visited := map[uuid.UUID]struct{}{folder.ID: {}}
	current := folder
	for depth := 0; current.ParentID != nil; depth++ {
		if depth >= maxFolderDepth {
			return nil, errors.Errorf("folder ancestry exceeds depth %d", maxFolderDepth)
		}
		if _, seen := visited[*current.ParentID]; seen {
			return nil, errors.Errorf("folder ancestry cycle at %s", current.ParentID)
		}
		parent, err := s.folders.GetFolder(ctx, *current.ParentID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				break
			}
			return nil, err
		}
		visited[parent.ID] = struct{}{}
		path = append(path, *parent)
		current = parent
	}

	// Reverse so the root comes first.
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path, nil
}
