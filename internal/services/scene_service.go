package services

import (
	"context"
	"encoding/json"
	"time"

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

// OptimizationReport accompanies a save when the upstream optimizer produced
// one. Metric payloads are opaque JSON snapshots.
type OptimizationReport struct {
	Baseline             json.RawMessage `json:"baseline"`
	Optimized            json.RawMessage `json:"optimized"`
	AppliedOptimizations json.RawMessage `json:"applied_optimizations"`
	Label                string          `json:"label"`
	Description          string          `json:"description"`
}

// SaveRequest is one logical save of a scene's settings and, optionally, its
// exported assets. At most one of Export and Extended may be set.
type SaveRequest struct {
	SceneID   *uuid.UUID
	ProjectID uuid.UUID
	UserID    uuid.UUID
	Settings  models.SceneSettings
	Export    *gltf.Export
	Extended  *gltf.ExtendedDocument
	Report    *OptimizationReport
}

// SaveResult is the outcome of a save. Unchanged carries the existing latest
// version and means the save performed zero writes.
type SaveResult struct {
	Scene     *models.Scene                `json:"scene"`
	Version   *models.SceneSettingsVersion `json:"version"`
	Unchanged bool                         `json:"unchanged"`
}

const (
	defaultSceneName       = "Untitled Scene"
	defaultSceneFolderName = "My Scenes"
	assetFolderName        = "Assets"
)

// SceneService is the scene settings & asset persistence engine. One save
// maps to one database transaction; reads assemble best-effort aggregates.
type SceneService struct {
	db       *gorm.DB
	scenes   *repository.SceneRepository
	folders  *repository.FolderRepository
	versions *repository.VersionRepository
	assets   *repository.AssetRepository
	stats    *repository.StatsRepository
	pipeline *AssetPipeline
	detector *ChangeDetector
	store    storage.Gateway
	metrics  *metrics.Collector
	log      *zap.Logger
}

// NewSceneService wires the engine over its repositories and collaborators.
func NewSceneService(
	db *gorm.DB,
	scenes *repository.SceneRepository,
	folders *repository.FolderRepository,
	versions *repository.VersionRepository,
	assets *repository.AssetRepository,
	stats *repository.StatsRepository,
	pipeline *AssetPipeline,
	detector *ChangeDetector,
	store storage.Gateway,
	collector *metrics.Collector,
	log *zap.Logger,
) *SceneService {
	return &SceneService{
		db:       db,
		scenes:   scenes,
		folders:  folders,
		versions: versions,
		assets:   assets,
		stats:    stats,
		pipeline: pipeline,
		detector: detector,
		store:    store,
		metrics:  collector,
		log:      log.With(zap.String("service", "SceneService")),
	}
}

// Save persists a scene's settings and assets. It lazily materializes the
// scene row, short-circuits when nothing meaningful changed, dedups asset
// uploads by content hash, and writes the new version atomically: version
// row, latest flip, asset links and stats either all land or none do.
func (s *SceneService) Save(ctx context.Context, req *SaveRequest) (*SaveResult, error) {
	start := time.Now()
	if err := validateSaveRequest(req); err != nil {
		s.metrics.RecordSave("invalid", time.Since(start))
		return nil, err
	}

	sceneID := uuid.New()
	if req.SceneID != nil {
		sceneID = *req.SceneID
	}

	result := &SaveResult{}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		scene, created, err := s.ensureScene(ctx, tx, sceneID, req)
		if err != nil {
			return err
		}

		latest, err := s.versions.WithTx(tx).GetLatest(ctx, sceneID)
		if err != nil {
			return errors.Wrap(err, "failed to load latest version")
		}
		var linked []models.Asset
		if latest != nil {
			linked, err = s.linkedAssets(ctx, tx, latest.ID)
			if err != nil {
				return err
			}
		}

		det := s.detector.Detect(latest, linked, req)
		if !det.Changed() {
			result.Scene = scene
			result.Version = latest
			result.Unchanged = true
			return nil
		}

		assetIDs, err := s.resolveAssetIDs(ctx, tx, scene, latest, det, req)
		if err != nil {
			return err
		}

		version, err := s.storeVersion(ctx, tx, scene, req, assetIDs)
		if err != nil {
			return err
		}

		result.Scene = scene
		result.Version = version
		s.log.Info("scene saved",
			zap.String("scene_id", sceneID.String()),
			zap.Int("version", version.Version),
			zap.Bool("scene_created", created),
			zap.Int("linked_assets", len(assetIDs)))
		return nil
	})
	if err != nil {
		s.metrics.RecordSave("error", time.Since(start))
		return nil, err
	}

	outcome := "created"
	if result.Unchanged {
		outcome = "unchanged"
	}
	s.metrics.RecordSave(outcome, time.Since(start))
	return result, nil
}

func validateSaveRequest(req *SaveRequest) error {
	if req == nil {
		return NewValidationError("save request is required")
	}
	if req.ProjectID == uuid.Nil {
		return NewValidationError("project id is required")
	}
	if req.UserID == uuid.Nil {
		return NewValidationError("user id is required")
	}
	if req.SceneID != nil && *req.SceneID == uuid.Nil {
		return NewValidationError("scene id must not be the nil uuid")
	}
	s := req.Settings
	if len(s.Environment) == 0 && len(s.ToneMapping) == 0 && len(s.Controls) == 0 &&
		len(s.Shadows) == 0 && len(s.Meta) == 0 {
		return NewValidationError("settings are required")
	}
	if req.Export != nil && req.Extended != nil {
		return NewValidationError("export and extended document are mutually exclusive")
	}
	if req.Export != nil {
		if err := req.Export.Validate(); err != nil {
			return NewValidationError("invalid gltf export: %v", err)
		}
	}
	if req.Extended != nil {
		if len(req.Extended.Document) == 0 || !json.Valid(req.Extended.Document) {
			return NewValidationError("extended document must be valid JSON")
		}
	}
	return nil
}

// ensureScene materializes the scene row and its default folder inside the
// save transaction. The outcome is created or alreadyExists, decided by the
// ignore-duplicates insert instead of a read-then-write.
func (s *SceneService) ensureScene(ctx context.Context, tx *gorm.DB, sceneID uuid.UUID, req *SaveRequest) (*models.Scene, bool, error) {
	folder, err := s.ensureFolder(ctx, tx, models.Folder{
		ID:        uuid.New(),
		ProjectID: req.ProjectID,
		Kind:      models.FolderKindScenes,
		OwnerID:   req.UserID,
		Name:      defaultSceneFolderName,
	})
	if err != nil {
		return nil, false, err
	}

	scenes := s.scenes.WithTx(tx)
	scene := &models.Scene{
		ID:        sceneID,
		ProjectID: req.ProjectID,
		FolderID:  folder.ID,
		Name:      defaultSceneName,
		Status:    models.SceneStatusDraft,
	}
	created, err := scenes.CreateIgnoreDuplicates(ctx, scene)
	if err != nil {
		return nil, false, errors.Wrap(err, "failed to create scene")
	}
	if !created {
		scene, err = scenes.GetScene(ctx, sceneID)
		if err != nil {
			return nil, false, errors.Wrap(err, "failed to load scene")
		}
		if scene.ProjectID != req.ProjectID {
			return nil, false, NewValidationError("scene %s belongs to a different project", sceneID)
		}
	}
	return scene, created, nil
}

// ensureFolder lazily, idempotently creates a scoped folder: re-query first,
// then ignore-duplicates insert, then re-query for the concurrent-loser case.
func (s *SceneService) ensureFolder(ctx context.Context, tx *gorm.DB, folder models.Folder) (*models.Folder, error) {
	repo := s.folders.WithTx(tx)
	existing, err := repo.FindScoped(ctx, folder.ProjectID, folder.Kind, folder.OwnerID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.Wrap(err, "failed to look up folder")
	}
	created, err := repo.CreateIgnoreDuplicates(ctx, &folder)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create folder")
	}
	if created {
		return &folder, nil
	}
	existing, err = repo.FindScoped(ctx, folder.ProjectID, folder.Kind, folder.OwnerID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load folder")
	}
	return existing, nil
}

// resolveAssetIDs produces the asset-id list the new version links to.
// Re-extraction and upload happen only when the raw export actually changed;
// a settings-only change reuses the previous version's list verbatim.
func (s *SceneService) resolveAssetIDs(ctx context.Context, tx *gorm.DB, scene *models.Scene, latest *models.SceneSettingsVersion, det Detection, req *SaveRequest) ([]uuid.UUID, error) {
	switch {
	case req.Export != nil && det.AssetsChanged:
		folder, err := s.ensureFolder(ctx, tx, models.Folder{
			ID:        uuid.New(),
			ProjectID: scene.ProjectID,
			Kind:      models.FolderKindAssets,
			OwnerID:   uuid.Nil,
			Name:      assetFolderName,
		})
		if err != nil {
			return nil, err
		}
		descriptors := gltf.ExtractAssets(req.Export)
		return s.pipeline.Process(ctx, tx, scene.ID, folder.ID, req.UserID, descriptors)

	case req.Extended != nil:
		assets, err := s.assets.WithTx(tx).GetByIDs(ctx, req.Extended.AssetIDs)
		if err != nil {
			return nil, errors.Wrap(err, "failed to load referenced assets")
		}
		if len(assets) != len(dedupeIDs(req.Extended.AssetIDs)) {
			return nil, &NotFoundError{Resource: "asset", ID: "referenced by extended document"}
		}
		// The document itself is stored as the synthetic asset so the read
		// path can reconstruct it. An unchanged document dedups to the
		// existing row.
		folder, err := s.ensureFolder(ctx, tx, models.Folder{
			ID:        uuid.New(),
			ProjectID: scene.ProjectID,
			Kind:      models.FolderKindAssets,
			OwnerID:   uuid.Nil,
			Name:      assetFolderName,
		})
		if err != nil {
			return nil, err
		}
		docIDs, err := s.pipeline.Process(ctx, tx, scene.ID, folder.ID, req.UserID,
			[]gltf.Descriptor{gltf.DocumentDescriptor(req.Extended.Document)})
		if err != nil {
			return nil, err
		}
		return append(req.Extended.AssetIDs, docIDs...), nil

	case latest != nil:
		links, err := s.versions.WithTx(tx).GetLinks(ctx, latest.ID)
		if err != nil {
			return nil, errors.Wrap(err, "failed to load asset links")
		}
		ids := make([]uuid.UUID, 0, len(links))
		for _, l := range links {
			ids = append(ids, l.AssetID)
		}
		return ids, nil

	default:
		return nil, nil
	}
}

// storeVersion performs the atomic version write: flip the previous latest,
// insert version previous+1 as latest, insert the link rows, and upsert the
// stats snapshot when a report accompanied the save.
func (s *SceneService) storeVersion(ctx context.Context, tx *gorm.DB, scene *models.Scene, req *SaveRequest, assetIDs []uuid.UUID) (*models.SceneSettingsVersion, error) {
	versions := s.versions.WithTx(tx)

	if err := versions.ClearLatest(ctx, scene.ID); err != nil {
		return nil, errors.Wrap(err, "failed to clear latest version")
	}
	max, err := versions.MaxVersion(ctx, scene.ID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to determine next version")
	}
	version := &models.SceneSettingsVersion{
		ID:        uuid.New(),
		SceneID:   scene.ID,
		Version:   max + 1,
		IsLatest:  true,
		Settings:  req.Settings,
		CreatedBy: req.UserID,
	}
	if err := versions.Create(ctx, version); err != nil {
		return nil, errors.Wrap(err, "failed to insert settings version")
	}

	links, err := s.buildLinks(ctx, tx, version.ID, assetIDs)
	if err != nil {
		return nil, err
	}
	if err := versions.CreateLinks(ctx, links); err != nil {
		return nil, errors.Wrap(err, "failed to insert asset links")
	}

	if req.Report != nil {
		stats := &models.SceneStats{
			ID:                   uuid.New(),
			SceneID:              scene.ID,
			Baseline:             datatypes.JSON(req.Report.Baseline),
			Optimized:            datatypes.JSON(req.Report.Optimized),
			AppliedOptimizations: datatypes.JSON(req.Report.AppliedOptimizations),
			Label:                req.Report.Label,
			Description:          req.Report.Description,
			CreatedBy:            req.UserID,
		}
		if err := s.stats.WithTx(tx).Upsert(ctx, stats); err != nil {
			return nil, errors.Wrap(err, "failed to upsert scene stats")
		}
	}
	return version, nil
}

func (s *SceneService) buildLinks(ctx context.Context, tx *gorm.DB, versionID uuid.UUID, assetIDs []uuid.UUID) ([]models.SceneAssetLink, error) {
	assets, err := s.assets.WithTx(tx).GetByIDs(ctx, assetIDs)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load assets for linking")
	}
	mimes := make(map[uuid.UUID]string, len(assets))
	for _, a := range assets {
		mimes[a.ID] = a.MimeType
	}
	links := make([]models.SceneAssetLink, 0, len(assetIDs))
	for _, id := range assetIDs {
		usage := models.AssetUsageResource
		if mimes[id] == gltf.MimeDocument {
			usage = models.AssetUsageDocument
		}
		links = append(links, models.SceneAssetLink{
			VersionID: versionID,
			AssetID:   id,
			UsageType: usage,
		})
	}
	return links, nil
}

// linkedAssets loads the asset rows linked to a version.
func (s *SceneService) linkedAssets(ctx context.Context, tx *gorm.DB, versionID uuid.UUID) ([]models.Asset, error) {
	links, err := s.versions.WithTx(tx).GetLinks(ctx, versionID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load asset links")
	}
	ids := make([]uuid.UUID, 0, len(links))
	for _, l := range links {
		ids = append(ids, l.AssetID)
	}
	assets, err := s.assets.WithTx(tx).GetByIDs(ctx, ids)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load linked assets")
	}
	return assets, nil
}

// ListVersions returns the scene's full version history, oldest first.
func (s *SceneService) ListVersions(ctx context.Context, sceneID uuid.UUID) ([]models.SceneSettingsVersion, error) {
	if _, err := s.scenes.GetScene(ctx, sceneID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &NotFoundError{Resource: "scene", ID: sceneID.String()}
		}
		return nil, err
	}
	return s.versions.ListByScene(ctx, sceneID)
}

func dedupeIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
