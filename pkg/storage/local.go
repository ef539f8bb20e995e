package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// LocalStore persists recording blobs in a directory on local disk. The
// returned location is the file's absolute path.
type LocalStore struct {
	baseDir string
	logger  *zap.Logger
}

var _ BlobStore = (*LocalStore)(nil)

// NewLocalStore creates the base directory if absent and returns the store.
func NewLocalStore(dir string, logger *zap.Logger) (*LocalStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve dir %s: %w", dir, err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create dir %s: %w", abs, err)
	}
	logger.Info("local blob store ready", zap.String("dir", abs))
	return &LocalStore{baseDir: abs, logger: logger}, nil
}

// BaseDir returns the absolute storage directory.
func (l *LocalStore) BaseDir() string { return l.baseDir }

// Save writes body to a file under the base directory and returns its
// absolute path. The file is synced before the path is returned so a
// metadata row never references bytes that are not on disk.
func (l *LocalStore) Save(ctx context.Context, name, contentType string, body io.Reader, size int64) (string, error) {
	fullPath := filepath.Join(l.baseDir, filepath.Base(name))
	f, err := os.Create(fullPath)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", fullPath, err)
	}
	defer f.Close()

	if _, err := io.Copy(f, body); err != nil {
		os.Remove(fullPath)
		return "", fmt.Errorf("write %s: %w", fullPath, err)
	}
	if err := f.Sync(); err != nil {
		os.Remove(fullPath)
		return "", fmt.Errorf("sync %s: %w", fullPath, err)
	}
	return fullPath, nil
}

// Delete removes a previously saved file. Paths outside the base directory
// are refused.
func (l *LocalStore) Delete(ctx context.Context, location string) error {
	abs, err := filepath.Abs(location)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", location, err)
	}
	if !strings.HasPrefix(abs, l.baseDir+string(filepath.Separator)) {
		return fmt.Errorf("location %q outside storage dir", location)
	}
	if err := os.Remove(abs); err != nil {
		return fmt.Errorf("remove %s: %w", abs, err)
	}
	return nil
}
