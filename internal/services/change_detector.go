package services

import (
	"encoding/json"
	"reflect"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/Vectreal/vectreal-platform-sub000/internal/gltf"
	"github.com/Vectreal/vectreal-platform-sub000/internal/models"
)

// Detection is the outcome of comparing a save request against the scene's
// current latest version.
type Detection struct {
	SettingsChanged bool
	AssetsChanged   bool
}

// Changed reports whether the save needs a new version at all.
func (d Detection) Changed() bool { return d.SettingsChanged || d.AssetsChanged }

// ChangeDetector decides no-op versus new version. It is strictly read-only.
type ChangeDetector struct {
	log *zap.Logger
}

// NewChangeDetector creates a ChangeDetector.
func NewChangeDetector(log *zap.Logger) *ChangeDetector {
	return &ChangeDetector{log: log.With(zap.String("component", "change_detector"))}
}

// Detect compares the request's settings and asset payloads against the
// latest persisted version and its linked assets. A scene without a prior
// version is always changed.
func (cd *ChangeDetector) Detect(latest *models.SceneSettingsVersion, linkedAssets []models.Asset, req *SaveRequest) Detection {
	if latest == nil {
		return Detection{SettingsChanged: true, AssetsChanged: true}
	}
	det := Detection{
		SettingsChanged: settingsChanged(latest.Settings, req.Settings),
	}
	switch {
	case req.Export != nil:
		det.AssetsChanged = rawExportChanged(req.Export, linkedAssets)
	case req.Extended != nil:
		det.AssetsChanged = extendedChanged(req.Extended, linkedAssets)
	}
	cd.log.Debug("change detection",
		zap.Bool("settings_changed", det.SettingsChanged),
		zap.Bool("assets_changed", det.AssetsChanged),
		zap.Int("version", latest.Version))
	return det
}

// settingsChanged compares every persisted settings field structurally.
// ToneMapping is compared like the rest.
func settingsChanged(old, next models.SceneSettings) bool {
	return !jsonEqual(old.Environment, next.Environment) ||
		!jsonEqual(old.ToneMapping, next.ToneMapping) ||
		!jsonEqual(old.Controls, next.Controls) ||
		!jsonEqual(old.Shadows, next.Shadows) ||
		!jsonEqual(old.Meta, next.Meta)
}

// jsonEqual compares two JSON blobs structurally. Empty and null blobs are
// treated as equal; a blob that fails to parse never equals anything.
func jsonEqual(a, b datatypes.JSON) bool {
	av, aok := decodeJSON(a)
	bv, bok := decodeJSON(b)
	if !aok || !bok {
		return false
	}
	return reflect.DeepEqual(av, bv)
}

func decodeJSON(blob datatypes.JSON) (interface{}, bool) {
	if len(blob) == 0 {
		return nil, true
	}
	var v interface{}
	if err := json.Unmarshal(blob, &v); err != nil {
		return nil, false
	}
	return v, true
}

// rawExportChanged hashes the export's payloads (the synthetic document asset
// excluded) and compares count plus per-filename hash against the stored
// content hashes. A stored asset missing its hash forces a re-upload so the
// hash gets backfilled.
func rawExportChanged(exp *gltf.Export, linkedAssets []models.Asset) bool {
	candidates := gltf.PayloadAssets(exp)
	existing := payloadOnly(linkedAssets)
	if len(candidates) != len(existing) {
		return true
	}
	hashes := make(map[string]string, len(existing))
	for _, a := range existing {
		hash := a.Metadata.Data().ContentHash
		if hash == "" {
			return true
		}
		hashes[a.Name] = hash
	}
	for _, c := range candidates {
		stored, ok := hashes[c.FileName]
		if !ok || stored != gltf.HashBytes(c.Data) {
			return true
		}
	}
	return false
}

// extendedChanged compares the embedded asset-id set against the linked
// payload asset ids, order-independent.
func extendedChanged(ext *gltf.ExtendedDocument, linkedAssets []models.Asset) bool {
	existing := payloadOnly(linkedAssets)
	if len(ext.AssetIDs) != len(existing) {
		return true
	}
	ids := make(map[uuid.UUID]struct{}, len(existing))
	for _, a := range existing {
		ids[a.ID] = struct{}{}
	}
	for _, id := range ext.AssetIDs {
		if _, ok := ids[id]; !ok {
			return true
		}
	}
	return false
}

// payloadOnly filters out the synthetic document asset, which is linked to
// every version but never part of the comparable payload set.
func payloadOnly(assets []models.Asset) []models.Asset {
	out := make([]models.Asset, 0, len(assets))
	for _, a := range assets {
		if a.MimeType == gltf.MimeDocument {
			continue
		}
		out = append(out, a)
	}
	return out
}
