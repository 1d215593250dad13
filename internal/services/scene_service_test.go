package services

import (
	"context"
	"encoding/json"
	"sort"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/Vectreal/vectreal-platform-sub000/internal/gltf"
	"github.com/Vectreal/vectreal-platform-sub000/internal/models"
	"github.com/Vectreal/vectreal-platform-sub000/internal/repository"
	"github.com/Vectreal/vectreal-platform-sub000/internal/storage"
	"github.com/Vectreal/vectreal-platform-sub000/internal/testutil"
)

type testEngine struct {
	db      *gorm.DB
	gateway *storage.MemoryGateway
	scenes  *SceneService
	assets  *AssetService
}

func newTestEngine(t *testing.T) *testEngine {
	t.Helper()
	db := testutil.DB(t)
	gateway := storage.NewMemoryGateway()
	return &testEngine{
		db:      db,
		gateway: gateway,
		scenes:  newSceneService(t, db, gateway),
		assets: NewAssetService(
			repository.NewAssetRepository(db),
			repository.NewFolderRepository(db),
			gateway,
			testutil.Logger(t)),
	}
}

func newSceneService(t *testing.T, db *gorm.DB, gateway storage.Gateway) *SceneService {
	t.Helper()
	log := testutil.Logger(t)
	assetRepo := repository.NewAssetRepository(db)
	return NewSceneService(
		db,
		repository.NewSceneRepository(db),
		repository.NewFolderRepository(db),
		repository.NewVersionRepository(db),
		assetRepo,
		repository.NewStatsRepository(db),
		NewAssetPipeline(assetRepo, gateway, nil, log),
		NewChangeDetector(log),
		gateway,
		nil,
		log,
	)
}

func exportFixture() *gltf.Export {
	return &gltf.Export{
		Document: json.RawMessage(`{"asset":{"version":"2.0"},"scenes":[{}]}`),
		Files: []gltf.ExportFile{
			{Name: "geometry.bin", Data: []byte{1, 2, 3, 4, 5}},
			{Name: "albedo.png", Data: []byte{10, 20, 30}},
		},
	}
}

func linkedIDs(t *testing.T, db *gorm.DB, versionID uuid.UUID) []string {
	t.Helper()
	links, err := repository.NewVersionRepository(db).GetLinks(context.Background(), versionID)
	require.NoError(t, err)
	ids := make([]string, 0, len(links))
	for _, l := range links {
		ids = append(ids, l.AssetID.String())
	}
	sort.Strings(ids)
	return ids
}

func TestSaveLifecycle(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	projectID, userID := uuid.New(), uuid.New()

	// First save: lazily creates the scene, version 1, uploads every
	// payload plus the synthetic document asset.
	first, err := e.scenes.Save(ctx, &SaveRequest{
		ProjectID: projectID,
		UserID:    userID,
		Settings:  settingsFixture("studio"),
		Export:    exportFixture(),
	})
	require.NoError(t, err)
	require.False(t, first.Unchanged)
	require.Equal(t, 1, first.Version.Version)
	require.True(t, first.Version.IsLatest)
	require.Equal(t, models.SceneStatusDraft, first.Scene.Status)
	require.Equal(t, projectID, first.Scene.ProjectID)
	require.Equal(t, 3, e.gateway.UploadCount())
	require.Len(t, linkedIDs(t, e.db, first.Version.ID), 3)

	sceneID := first.Scene.ID

	// Identical second save: strict no-op, zero new versions, zero uploads.
	second, err := e.scenes.Save(ctx, &SaveRequest{
		SceneID:   &sceneID,
		ProjectID: projectID,
		UserID:    userID,
		Settings:  settingsFixture("studio"),
		Export:    exportFixture(),
	})
	require.NoError(t, err)
	require.True(t, second.Unchanged)
	require.Equal(t, first.Version.ID, second.Version.ID)
	require.Equal(t, 3, e.gateway.UploadCount())

	count, err := repository.NewVersionRepository(e.db).CountByScene(ctx, sceneID)
	require.NoError(t, err)
	require.EqualValues(t, 1, count)

	// Settings-only change: version 2 becomes latest, version 1 flips, and
	// the asset links are carried over verbatim with zero re-uploads.
	third, err := e.scenes.Save(ctx, &SaveRequest{
		SceneID:   &sceneID,
		ProjectID: projectID,
		UserID:    userID,
		Settings:  settingsFixture("sunset"),
		Export:    exportFixture(),
	})
	require.NoError(t, err)
	require.False(t, third.Unchanged)
	require.Equal(t, 2, third.Version.Version)
	require.True(t, third.Version.IsLatest)
	require.Equal(t, 3, e.gateway.UploadCount())
	require.Equal(t, linkedIDs(t, e.db, first.Version.ID), linkedIDs(t, e.db, third.Version.ID))

	var v1 models.SceneSettingsVersion
	require.NoError(t, e.db.First(&v1, "id = ?", first.Version.ID).Error)
	require.False(t, v1.IsLatest)

	// Exactly one latest row exists and it holds the maximum version.
	var latestCount int64
	require.NoError(t, e.db.Model(&models.SceneSettingsVersion{}).
		Where("scene_id = ? AND is_latest = ?", sceneID, true).Count(&latestCount).Error)
	require.EqualValues(t, 1, latestCount)
}

func TestSaveDedupByContentHash(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	projectID, userID := uuid.New(), uuid.New()

	first, err := e.scenes.Save(ctx, &SaveRequest{
		ProjectID: projectID,
		UserID:    userID,
		Settings:  settingsFixture("studio"),
		Export:    exportFixture(),
	})
	require.NoError(t, err)
	require.Equal(t, 3, e.gateway.UploadCount())
	sceneID := first.Scene.ID

	// One changed byte in one payload: exactly one new upload, the other
	// payload and the document are reused from their existing rows.
	modified := exportFixture()
	modified.Files[0].Data = []byte{1, 2, 3, 4, 6}
	second, err := e.scenes.Save(ctx, &SaveRequest{
		SceneID:   &sceneID,
		ProjectID: projectID,
		UserID:    userID,
		Settings:  settingsFixture("studio"),
		Export:    modified,
	})
	require.NoError(t, err)
	require.False(t, second.Unchanged)
	require.Equal(t, 2, second.Version.Version)
	require.Equal(t, 4, e.gateway.UploadCount())

	// The changed payload got a fresh row and a fresh storage path; the old
	// object was never overwritten.
	var rows []models.Asset
	require.NoError(t, e.db.Where("name = ?", "geometry.bin").Order("created_at").Find(&rows).Error)
	require.Len(t, rows, 2)
	require.NotEqual(t, rows[0].FilePath, rows[1].FilePath)
	require.True(t, e.gateway.Has(rows[0].FilePath))
	require.True(t, e.gateway.Has(rows[1].FilePath))

	// The unchanged payload rows are shared between both versions.
	v1, v2 := linkedIDs(t, e.db, first.Version.ID), linkedIDs(t, e.db, second.Version.ID)
	shared := 0
	for _, id := range v2 {
		for _, old := range v1 {
			if id == old {
				shared++
			}
		}
	}
	require.Equal(t, 2, shared)
}

// failingGateway fails the nth upload to exercise transaction rollback.
type failingGateway struct {
	*storage.MemoryGateway
	failAt int
	calls  int
}

func (g *failingGateway) Upload(ctx context.Context, key string, data []byte, contentType string) error {
	g.calls++
	if g.calls == g.failAt {
		return context.DeadlineExceeded
	}
	return g.MemoryGateway.Upload(ctx, key, data, contentType)
}

func TestSaveAtomicityOnUploadFailure(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	projectID, userID := uuid.New(), uuid.New()

	first, err := e.scenes.Save(ctx, &SaveRequest{
		ProjectID: projectID,
		UserID:    userID,
		Settings:  settingsFixture("studio"),
		Export:    exportFixture(),
	})
	require.NoError(t, err)
	sceneID := first.Scene.ID

	var assetsBefore, linksBefore int64
	require.NoError(t, e.db.Model(&models.Asset{}).Count(&assetsBefore).Error)
	require.NoError(t, e.db.Model(&models.SceneAssetLink{}).Count(&linksBefore).Error)

	// Both payloads changed; the second upload fails mid-save.
	failing := &failingGateway{MemoryGateway: e.gateway, failAt: 2}
	svc := newSceneService(t, e.db, failing)

	broken := exportFixture()
	broken.Files[0].Data = []byte{99}
	broken.Files[1].Data = []byte{98}
	_, err = svc.Save(ctx, &SaveRequest{
		SceneID:   &sceneID,
		ProjectID: projectID,
		UserID:    userID,
		Settings:  settingsFixture("studio"),
		Export:    broken,
	})
	require.Error(t, err)
	require.True(t, IsUpload(err))

	// No new version, no new links, no new asset rows, no latest flip.
	count, err := repository.NewVersionRepository(e.db).CountByScene(ctx, sceneID)
	require.NoError(t, err)
	require.EqualValues(t, 1, count)

	latest, err := repository.NewVersionRepository(e.db).GetLatest(ctx, sceneID)
	require.NoError(t, err)
	require.Equal(t, first.Version.ID, latest.ID)
	require.Equal(t, 1, latest.Version)

	var assetsAfter, linksAfter int64
	require.NoError(t, e.db.Model(&models.Asset{}).Count(&assetsAfter).Error)
	require.NoError(t, e.db.Model(&models.SceneAssetLink{}).Count(&linksAfter).Error)
	require.Equal(t, assetsBefore, assetsAfter)
	require.Equal(t, linksBefore, linksAfter)
}

func TestSaveValidation(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	_, err := e.scenes.Save(ctx, &SaveRequest{UserID: uuid.New(), Settings: settingsFixture("a")})
	require.True(t, IsValidation(err))

	_, err = e.scenes.Save(ctx, &SaveRequest{ProjectID: uuid.New(), UserID: uuid.New()})
	require.True(t, IsValidation(err))

	_, err = e.scenes.Save(ctx, &SaveRequest{
		ProjectID: uuid.New(),
		UserID:    uuid.New(),
		Settings:  settingsFixture("a"),
		Export:    exportFixture(),
		Extended:  &gltf.ExtendedDocument{},
	})
	require.True(t, IsValidation(err))

	// No writes happened for any of the rejected requests.
	var scenes int64
	require.NoError(t, e.db.Model(&models.Scene{}).Count(&scenes).Error)
	require.Zero(t, scenes)
}

func TestSaveExtendedDocumentKeepsDocumentReadable(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	projectID, userID := uuid.New(), uuid.New()

	export := exportFixture()
	first, err := e.scenes.Save(ctx, &SaveRequest{
		ProjectID: projectID,
		UserID:    userID,
		Settings:  settingsFixture("studio"),
		Export:    export,
	})
	require.NoError(t, err)
	require.Equal(t, 3, e.gateway.UploadCount())
	sceneID := first.Scene.ID

	var payloadRows []models.Asset
	require.NoError(t, e.db.Where("mime_type <> ?", gltf.MimeDocument).Find(&payloadRows).Error)
	require.Len(t, payloadRows, 2)
	payloadIDs := make([]uuid.UUID, 0, len(payloadRows))
	for _, row := range payloadRows {
		payloadIDs = append(payloadIDs, row.ID)
	}

	// Settings-only extended save: same document bytes, same payload set. The
	// document dedups to its existing row, so no new uploads happen and the
	// new version still links a document asset.
	second, err := e.scenes.Save(ctx, &SaveRequest{
		SceneID:   &sceneID,
		ProjectID: projectID,
		UserID:    userID,
		Settings:  settingsFixture("sunset"),
		Extended: &gltf.ExtendedDocument{
			Document: export.Document,
			AssetIDs: payloadIDs,
		},
	})
	require.NoError(t, err)
	require.False(t, second.Unchanged)
	require.Equal(t, 2, second.Version.Version)
	require.Equal(t, 3, e.gateway.UploadCount())
	require.Len(t, linkedIDs(t, e.db, second.Version.ID), 3)

	agg, err := e.scenes.GetAggregate(ctx, sceneID)
	require.NoError(t, err)
	require.JSONEq(t, string(export.Document), string(agg.Document))
	require.Len(t, agg.Files, 2)

	// A changed extended document on the next version gets its own asset row.
	third, err := e.scenes.Save(ctx, &SaveRequest{
		SceneID:   &sceneID,
		ProjectID: projectID,
		UserID:    userID,
		Settings:  settingsFixture("dawn"),
		Extended: &gltf.ExtendedDocument{
			Document: json.RawMessage(`{"asset":{"version":"2.0"},"scenes":[{},{}]}`),
			AssetIDs: payloadIDs,
		},
	})
	require.NoError(t, err)
	require.Equal(t, 3, third.Version.Version)
	require.Equal(t, 4, e.gateway.UploadCount())

	agg, err = e.scenes.GetAggregate(ctx, sceneID)
	require.NoError(t, err)
	require.JSONEq(t, `{"asset":{"version":"2.0"},"scenes":[{},{}]}`, string(agg.Document))
}

func TestSaveExtendedDocumentUnknownAsset(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	_, err := e.scenes.Save(ctx, &SaveRequest{
		ProjectID: uuid.New(),
		UserID:    uuid.New(),
		Settings:  settingsFixture("a"),
		Extended: &gltf.ExtendedDocument{
			Document: json.RawMessage(`{}`),
			AssetIDs: []uuid.UUID{uuid.New()},
		},
	})
	require.True(t, IsNotFound(err))
}

func TestSaveUpsertsStatsInPlace(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	projectID, userID := uuid.New(), uuid.New()

	report := &OptimizationReport{
		Baseline:  json.RawMessage(`{"triangles":100000}`),
		Optimized: json.RawMessage(`{"triangles":25000}`),
		Label:     "first pass",
	}
	first, err := e.scenes.Save(ctx, &SaveRequest{
		ProjectID: projectID,
		UserID:    userID,
		Settings:  settingsFixture("studio"),
		Export:    exportFixture(),
		Report:    report,
	})
	require.NoError(t, err)
	sceneID := first.Scene.ID

	report2 := &OptimizationReport{
		Baseline:  json.RawMessage(`{"triangles":100000}`),
		Optimized: json.RawMessage(`{"triangles":12000}`),
		Label:     "second pass",
	}
	_, err = e.scenes.Save(ctx, &SaveRequest{
		SceneID:   &sceneID,
		ProjectID: projectID,
		UserID:    userID,
		Settings:  settingsFixture("sunset"),
		Export:    exportFixture(),
		Report:    report2,
	})
	require.NoError(t, err)

	var statsCount int64
	require.NoError(t, e.db.Model(&models.SceneStats{}).Count(&statsCount).Error)
	require.EqualValues(t, 1, statsCount)

	stats, err := repository.NewStatsRepository(e.db).GetByScene(ctx, sceneID)
	require.NoError(t, err)
	require.Equal(t, "second pass", stats.Label)
}

func TestGetAggregate(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	projectID, userID := uuid.New(), uuid.New()

	first, err := e.scenes.Save(ctx, &SaveRequest{
		ProjectID: projectID,
		UserID:    userID,
		Settings:  settingsFixture("studio"),
		Export:    exportFixture(),
		Report:    &OptimizationReport{Baseline: json.RawMessage(`{}`)},
	})
	require.NoError(t, err)
	sceneID := first.Scene.ID

	agg, err := e.scenes.GetAggregate(ctx, sceneID)
	require.NoError(t, err)
	require.NotNil(t, agg.Scene)
	require.NotNil(t, agg.Settings)
	require.Equal(t, first.Version.ID, agg.Settings.ID)
	require.NotNil(t, agg.Stats)
	require.JSONEq(t, `{"asset":{"version":"2.0"},"scenes":[{}]}`, string(agg.Document))
	require.Len(t, agg.Files, 2)
	require.Contains(t, agg.Files, "geometry.bin")
	require.Contains(t, agg.Files, "albedo.png")
}

func TestGetAggregateDegradesPerBranch(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	projectID, userID := uuid.New(), uuid.New()

	first, err := e.scenes.Save(ctx, &SaveRequest{
		ProjectID: projectID,
		UserID:    userID,
		Settings:  settingsFixture("studio"),
		Export:    exportFixture(),
		Report:    &OptimizationReport{Baseline: json.RawMessage(`{}`)},
	})
	require.NoError(t, err)
	sceneID := first.Scene.ID

	// Break the stats sub-query: the aggregate still returns settings.
	require.NoError(t, e.db.Migrator().DropTable(&models.SceneStats{}))
	agg, err := e.scenes.GetAggregate(ctx, sceneID)
	require.NoError(t, err)
	require.NotNil(t, agg.Settings)
	require.Nil(t, agg.Stats)

	// Break one asset download: that file is omitted, the rest survive.
	var row models.Asset
	require.NoError(t, e.db.First(&row, "name = ?", "albedo.png").Error)
	require.NoError(t, e.gateway.Delete(ctx, row.FilePath, false))

	agg, err = e.scenes.GetAggregate(ctx, sceneID)
	require.NoError(t, err)
	require.NotNil(t, agg.Document)
	require.Contains(t, agg.Files, "geometry.bin")
	require.NotContains(t, agg.Files, "albedo.png")
}

func TestGetAggregateNotFound(t *testing.T) {
	e := newTestEngine(t)
	_, err := e.scenes.GetAggregate(context.Background(), uuid.New())
	require.True(t, IsNotFound(err))
}

func TestListVersions(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	projectID, userID := uuid.New(), uuid.New()

	first, err := e.scenes.Save(ctx, &SaveRequest{
		ProjectID: projectID,
		UserID:    userID,
		Settings:  settingsFixture("a"),
	})
	require.NoError(t, err)
	sceneID := first.Scene.ID

	for _, env := range []string{"b", "c"} {
		_, err = e.scenes.Save(ctx, &SaveRequest{
			SceneID:   &sceneID,
			ProjectID: projectID,
			UserID:    userID,
			Settings:  settingsFixture(env),
		})
		require.NoError(t, err)
	}

	versions, err := e.scenes.ListVersions(ctx, sceneID)
	require.NoError(t, err)
	require.Len(t, versions, 3)
	for i, v := range versions {
		require.Equal(t, i+1, v.Version)
		require.Equal(t, i == len(versions)-1, v.IsLatest)
	}

	_, err = e.scenes.ListVersions(ctx, uuid.New())
	require.True(t, IsNotFound(err))
}
