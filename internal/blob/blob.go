// Package blob stores uploaded image bytes and hands back a public URL
// plus basic metadata. The rest of the system treats it as opaque.
package blob

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// Stored describes one persisted image blob.
type Stored struct {
	URL      string
	Width    int
	Height   int
	ByteSize int64
}

// Store persists image bytes and returns their public location.
type Store interface {
	Store(ctx context.Context, deviceID string, data []byte) (*Stored, error)
}

// FileStore writes blobs to a local directory served by the HTTP router.
type FileStore struct {
	dir     string
	baseURL string
}

// NewFileStore creates the upload directory if needed.
func NewFileStore(dir, baseURL string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload dir %s: %w", dir, err)
	}
	return &FileStore{dir: dir, baseURL: baseURL}, nil
}

// Store writes the image to disk under a generated name and decodes its
// dimensions from the byte buffer.
func (fs *FileStore) Store(ctx context.Context, deviceID string, data []byte) (*Stored, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	ext := "jpg"
	if format == "png" {
		ext = "png"
	}
	name := fmt.Sprintf("%s_%d_%s.%s", deviceID, time.Now().UTC().Unix(), uuid.New().String()[:8], ext)

	if err := os.WriteFile(filepath.Join(fs.dir, name), data, 0o644); err != nil {
		return nil, fmt.Errorf("failed to write image file: %w", err)
	}

	return &Stored{
		URL:      fs.baseURL + "/uploads/" + name,
		Width:    cfg.Width,
		Height:   cfg.Height,
		ByteSize: int64(len(data)),
	}, nil
}

// Dir returns the directory served under /uploads.
func (fs *FileStore) Dir() string {
	return fs.dir
}
