package extraction

import (
	"archive/zip"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeZip(t *testing.T, entries map[string][]byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bundle.zip")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	w := zip.NewWriter(f)
	for name, data := range entries {
		entry, err := w.Create(name)
		require.NoError(t, err)
		_, err = entry.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return path
}

func TestExportFromArchive(t *testing.T) {
	path := writeZip(t, map[string][]byte{
		"scene.gltf":        []byte(`{"asset":{"version":"2.0"}}`),
		"geometry.bin":      {1, 2, 3},
		"textures/wood.png": {4, 5, 6},
	})

	exp, err := ExportFromArchive(context.Background(), path)
	require.NoError(t, err)
	require.JSONEq(t, `{"asset":{"version":"2.0"}}`, string(exp.Document))
	require.Len(t, exp.Files, 2)

	names := map[string]bool{}
	for _, f := range exp.Files {
		names[f.Name] = true
	}
	// Payload names are flattened to their base name.
	require.True(t, names["geometry.bin"])
	require.True(t, names["wood.png"])
}

func TestExportFromArchiveSkipsJunk(t *testing.T) {
	path := writeZip(t, map[string][]byte{
		"scene.gltf":           []byte(`{}`),
		"geometry.bin":         {1},
		"._geometry.bin":       {9, 9},
		".DS_Store":            {9},
		"Thumbs.db":            {9},
		"__MACOSX/._wood.png":  {9},
		"textures/.hidden.png": {9},
	})

	exp, err := ExportFromArchive(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, exp.Files, 1)
	require.Equal(t, "geometry.bin", exp.Files[0].Name)
}

func TestExportFromArchiveRequiresDocument(t *testing.T) {
	path := writeZip(t, map[string][]byte{
		"geometry.bin": {1, 2},
	})

	_, err := ExportFromArchive(context.Background(), path)
	require.Error(t, err)
	require.Contains(t, err.Error(), "no document")
}

func TestExportFromArchiveRejectsMultipleDocuments(t *testing.T) {
	path := writeZip(t, map[string][]byte{
		"a.gltf": []byte(`{}`),
		"b.gltf": []byte(`{}`),
	})

	_, err := ExportFromArchive(context.Background(), path)
	require.Error(t, err)
	require.Contains(t, err.Error(), "multiple gltf documents")
}

func TestExportFromArchiveRejectsFlattenedNameCollision(t *testing.T) {
	// Payload names flatten to their base name, so two entries in different
	// directories must not end up as indistinguishable files.
	path := writeZip(t, map[string][]byte{
		"scene.gltf":   []byte(`{}`),
		"a/tex.png":    {1, 2},
		"b/tex.png":    {3, 4},
		"geometry.bin": {5},
	})

	_, err := ExportFromArchive(context.Background(), path)
	require.Error(t, err)
	require.Contains(t, err.Error(), "duplicate payload file name")
}

func TestExportFromArchiveRejectsInvalidDocument(t *testing.T) {
	path := writeZip(t, map[string][]byte{
		"scene.gltf": []byte(`{not json`),
	})

	_, err := ExportFromArchive(context.Background(), path)
	require.Error(t, err)
}
