package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/ruteri/ip-registration-workflows/interfaces"
)

// FileBackend keeps documents on the local file system, one directory per
// content type.
type FileBackend struct {
	baseDir     string
	log         *slog.Logger
	locationURI string
}

// NewFileBackend creates baseDir and its namespace directories if missing.
func NewFileBackend(baseDir string, log *slog.Logger) (*FileBackend, error) {
	if log == nil {
		log = slog.Default()
	}
	for _, ct := range []interfaces.ContentType{interfaces.IPMetadataType, interfaces.NFTMetadataType} {
		if err := os.MkdirAll(filepath.Join(baseDir, ct.String()), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create %s directory: %w", ct, err)
		}
	}

	return &FileBackend{
		baseDir:     baseDir,
		log:         log,
		locationURI: "file://" + baseDir,
	}, nil
}

// Fetch returns ErrContentNotFound for unknown documents.
func (b *FileBackend) Fetch(ctx context.Context, id interfaces.ContentID, contentType interfaces.ContentType) ([]byte, error) {
	path := b.path(id, contentType)
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, interfaces.ErrContentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	if interfaces.ComputeID(data) != id {
		return nil, fmt.Errorf("content of %s does not match its id", path)
	}

	b.log.Debug("Fetched metadata from file",
		slog.String("path", path),
		slog.Int("size", len(data)))
	return data, nil
}

// Store writes data under its hash and returns a file URI.
func (b *FileBackend) Store(ctx context.Context, data []byte, contentType interfaces.ContentType) (interfaces.ContentID, string, error) {
	id := interfaces.ComputeID(data)
	path := b.path(id, contentType)

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return id, "", fmt.Errorf("failed to write file: %w", err)
	}

	b.log.Debug("Stored metadata in file",
		slog.String("path", path),
		slog.String("content_id", id.String()))
	return id, "file://" + path, nil
}

func (b *FileBackend) Available(ctx context.Context) bool {
	if _, err := os.Stat(b.baseDir); err != nil {
		b.log.Debug("File backend unavailable", slog.String("err", err.Error()))
		return false
	}
	return true
}

func (b *FileBackend) Name() string {
	return "file-" + filepath.Base(b.baseDir)
}

func (b *FileBackend) LocationURI() string {
	return b.locationURI
}

func (b *FileBackend) path(id interfaces.ContentID, contentType interfaces.ContentType) string {
	return filepath.Join(b.baseDir, contentType.String(), id.String()+".json")
}
