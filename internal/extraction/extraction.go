// Package extraction unpacks archived GLTF export bundles into the in-memory
// export shape the persistence engine consumes.
package extraction

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/mholt/archives"

	"github.com/Vectreal/vectreal-platform-sub000/internal/gltf"
)

// ExportFromArchive reads a zipped export bundle and assembles a raw export:
// exactly one .gltf document plus its payload files. System and hidden files
// are skipped.
func ExportFromArchive(ctx context.Context, archivePath string) (*gltf.Export, error) {
	fsys, err := archives.FileSystem(ctx, archivePath, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}

	exp := &gltf.Export{}
	err = fs.WalkDir(fsys, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		name := filepath.Base(path)
		if shouldIgnoreFile(name) {
			return nil
		}

		reader, err := fsys.Open(path)
		if err != nil {
			return err
		}
		defer reader.Close()
		data, err := io.ReadAll(reader)
		if err != nil {
			return err
		}

		if strings.ToLower(filepath.Ext(name)) == ".gltf" {
			if len(exp.Document) != 0 {
				return fmt.Errorf("archive contains multiple gltf documents")
			}
			exp.Document = data
			return nil
		}
		exp.Files = append(exp.Files, gltf.ExportFile{Name: name, Data: data})
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := exp.Validate(); err != nil {
		return nil, err
	}
	return exp, nil
}

// shouldIgnoreFile filters system files, hidden files and archive junk.
func shouldIgnoreFile(filename string) bool {
	if strings.HasPrefix(filename, "._") {
		return true
	}
	if strings.HasPrefix(filename, ".") {
		return true
	}
	if strings.ToLower(filename) == "thumbs.db" {
		return true
	}
	if filename == "" || strings.HasSuffix(filename, "/") {
		return true
	}
	return false
}
