package services

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/Vectreal/vectreal-platform-sub000/internal/gltf"
	"github.com/Vectreal/vectreal-platform-sub000/internal/models"
)

// SceneAggregate is the best-effort read view of a scene. A failed sub-query
// leaves its field nil; a failed asset download omits that file.
type SceneAggregate struct {
	Scene    *models.Scene                `json:"scene"`
	Settings *models.SceneSettingsVersion `json:"settings"`
	Assets   []models.Asset               `json:"assets"`
	Stats    *models.SceneStats           `json:"stats"`
	Document json.RawMessage              `json:"document,omitempty"`
	Files    map[string][]byte            `json:"files,omitempty"`
}

// GetAggregate assembles scene metadata, the latest settings version with its
// linked assets, the stats snapshot, and the asset bytes. Only a missing
// scene is an error; every other sub-failure degrades to nil or omission.
func (s *SceneService) GetAggregate(ctx context.Context, sceneID uuid.UUID) (*SceneAggregate, error) {
	scene, err := s.scenes.GetScene(ctx, sceneID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &NotFoundError{Resource: "scene", ID: sceneID.String()}
		}
		return nil, errors.Wrap(err, "failed to load scene")
	}

	agg := &SceneAggregate{Scene: scene}
	log := s.log.With(zap.String("scene_id", sceneID.String()))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		latest, err := s.versions.GetLatest(gctx, sceneID)
		if err != nil {
			log.Warn("aggregate read: settings lookup failed", zap.Error(err))
			return nil
		}
		if latest == nil {
			return nil
		}
		assets, err := s.linkedAssets(gctx, s.db, latest.ID)
		if err != nil {
			log.Warn("aggregate read: linked assets lookup failed", zap.Error(err))
			agg.Settings = latest
			return nil
		}
		agg.Settings = latest
		agg.Assets = assets
		return nil
	})
	g.Go(func() error {
		stats, err := s.stats.GetByScene(gctx, sceneID)
		if err != nil {
			log.Warn("aggregate read: stats lookup failed", zap.Error(err))
			return nil
		}
		agg.Stats = stats
		return nil
	})
	_ = g.Wait()

	agg.Document, agg.Files = s.downloadAssets(ctx, log, agg.Assets)
	return agg, nil
}

// downloadAssets fans out one download per linked asset. Each download is
// isolated: a failure is logged and its file omitted while the rest still
// return. The synthetic document asset is located by its reserved mime type
// and reparsed into the GLTF document.
func (s *SceneService) downloadAssets(ctx context.Context, log *zap.Logger, assets []models.Asset) (json.RawMessage, map[string][]byte) {
	if len(assets) == 0 {
		return nil, nil
	}

	var (
		mu       sync.Mutex
		document json.RawMessage
		files    = make(map[string][]byte)
		wg       sync.WaitGroup
	)
	for _, asset := range assets {
		wg.Add(1)
		go func(a models.Asset) {
			defer wg.Done()
			data, err := s.store.Download(ctx, a.FilePath)
			if err != nil {
				log.Warn("aggregate read: asset download failed",
					zap.String("asset_id", a.ID.String()),
					zap.String("file", a.Name),
					zap.Error(err))
				return
			}
			mu.Lock()
			defer mu.Unlock()
			if a.MimeType == gltf.MimeDocument {
				if json.Valid(data) {
					document = data
				} else {
					log.Warn("aggregate read: stored document is not valid JSON",
						zap.String("asset_id", a.ID.String()))
				}
				return
			}
			files[a.Name] = data
		}(asset)
	}
	wg.Wait()

	if len(files) == 0 {
		files = nil
	}
	return document, files
}
