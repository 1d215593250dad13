package gltf

import (
	"path/filepath"
	"strings"
)

// Kind is the coarse payload category recorded in asset metadata.
type Kind string

const (
	KindBuffer Kind = "buffer"
	KindImage  Kind = "image"
)

// Descriptor is one classified asset payload extracted from an export.
type Descriptor struct {
	FileName string
	Data     []byte
	MimeType string
	Kind     Kind
}

// Classify maps a payload file name to its content type and kind by
// extension. Unknown extensions default to an octet-stream buffer.
func Classify(fileName string) (string, Kind) {
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".bin":
		return MimeBuffer, KindBuffer
	case ".png":
		return "image/png", KindImage
	case ".jpg", ".jpeg":
		return "image/jpeg", KindImage
	case ".webp":
		return "image/webp", KindImage
	default:
		return MimeBuffer, KindBuffer
	}
}

// PayloadAssets classifies the export's sidecar payloads in order, without
// the synthetic document asset. This is the candidate set change detection
// hashes against stored content hashes.
func PayloadAssets(exp *Export) []Descriptor {
	descriptors := make([]Descriptor, 0, len(exp.Files))
	for _, f := range exp.Files {
		mime, kind := Classify(f.Name)
		descriptors = append(descriptors, Descriptor{
			FileName: f.Name,
			Data:     f.Data,
			MimeType: mime,
			Kind:     kind,
		})
	}
	return descriptors
}

// ExtractAssets returns the full ordered descriptor set for an export: all
// payloads followed by the GLTF document packaged as a synthetic asset under
// its reserved mime type.
func ExtractAssets(exp *Export) []Descriptor {
	return append(PayloadAssets(exp), DocumentDescriptor(exp.Document))
}

// DocumentDescriptor packages a GLTF JSON document as the synthetic asset.
func DocumentDescriptor(doc []byte) Descriptor {
	return Descriptor{
		FileName: DocumentFileName,
		Data:     doc,
		MimeType: MimeDocument,
		Kind:     KindBuffer,
	}
}
