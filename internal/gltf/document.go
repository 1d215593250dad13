// Package gltf models GLTF export results as they arrive from the upstream
// optimizer: the serialized document plus its sidecar payloads, and the
// classification of those payloads into typed asset descriptors.
package gltf

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

const (
	// DocumentFileName is the synthetic asset name under which the GLTF JSON
	// document itself is stored, so the full document round-trips as one of
	// a version's linked assets.
	DocumentFileName = "scene.gltf"
	// MimeDocument is the reserved mime type of the synthetic document asset.
	MimeDocument = "model/gltf+json"
	// MimeBuffer is the fallback content type for binary payloads.
	MimeBuffer = "application/octet-stream"
)

// ExportFile is one named payload of a raw GLTF export.
type ExportFile struct {
	Name string `json:"name"`
	Data []byte `json:"data"`
}

// Export is a raw GLTF export result: the JSON document plus its payloads,
// in the order the exporter produced them.
type Export struct {
	Document json.RawMessage `json:"document"`
	Files    []ExportFile    `json:"files"`
}

// Validate checks that the export carries a parseable document and that its
// payload file names are unique. Everything downstream keys payloads by file
// name, so a collision would silently shadow one payload with another.
func (e *Export) Validate() error {
	if len(e.Document) == 0 {
		return fmt.Errorf("gltf export has no document")
	}
	if !json.Valid(e.Document) {
		return fmt.Errorf("gltf document is not valid JSON")
	}
	seen := make(map[string]struct{}, len(e.Files))
	for _, f := range e.Files {
		if f.Name == DocumentFileName {
			return fmt.Errorf("payload file name %q is reserved for the document", f.Name)
		}
		if _, ok := seen[f.Name]; ok {
			return fmt.Errorf("duplicate payload file name %q", f.Name)
		}
		seen[f.Name] = struct{}{}
	}
	return nil
}

// ExtendedDocument is an already-processed GLTF document whose payloads have
// been replaced by references to existing asset ids.
type ExtendedDocument struct {
	Document json.RawMessage `json:"document"`
	AssetIDs []uuid.UUID     `json:"asset_ids"`
}
