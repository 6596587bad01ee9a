// Package dataset stores the experimental-data and feature files users upload
// for benchmarking, and sweeps them away once they are stale.
package dataset

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"cmportal/domain/core"
	"cmportal/internal"
	"cmportal/internal/config"
	"cmportal/internal/errors"
)

// ScratchPrefix names the per-request directories created for benchmark runs
const ScratchPrefix = "benchmark_"

// LocalFileStorage keeps uploads under a single local directory
type LocalFileStorage struct {
	basePath string
	maxBytes int64
	maxAge   time.Duration
	logger   *internal.Logger
	now      func() time.Time
}

// NewLocalFileStorage creates a storage rooted at cfg.Dir
func NewLocalFileStorage(cfg config.UploadConfig, logger *internal.Logger) *LocalFileStorage {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &LocalFileStorage{
		basePath: cfg.Dir,
		maxBytes: cfg.MaxSizeMB << 20,
		maxAge:   cfg.CleanupAfter,
		logger:   logger.With("uploads"),
		now:      time.Now,
	}
}

// BasePath returns the upload directory
func (s *LocalFileStorage) BasePath() string {
	return s.basePath
}

// Store saves r under dir (the base path when empty) with a unique name that
// keeps the original extension. Content beyond the size limit is rejected.
func (s *LocalFileStorage) Store(ctx context.Context, dir string, r io.Reader, filename string) (string, error) {
	if dir == "" {
		dir = s.basePath
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create storage directory: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(filename))
	filePath := filepath.Join(dir, core.NewID().String()+ext)

	dest, err := os.Create(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to create destination file: %w", err)
	}
	defer dest.Close()

	src := r
	if s.maxBytes > 0 {
		src = io.LimitReader(r, s.maxBytes+1)
	}
	n, err := io.Copy(dest, src)
	if err != nil {
		os.Remove(filePath)
		return "", fmt.Errorf("failed to copy file contents: %w", err)
	}
	if s.maxBytes > 0 && n > s.maxBytes {
		os.Remove(filePath)
		return "", errors.New(errors.CodePayloadTooLarge, fmt.Sprintf("%s exceeds the %d MB upload limit", filename, s.maxBytes>>20))
	}

	s.logger.Debug("stored %s as %s (%d bytes)", filename, filepath.Base(filePath), n)
	return filePath, nil
}

// ScratchDir creates a fresh benchmark_<id> directory for one request's files.
// IDs are time-ordered, so scratch directories sort by creation.
func (s *LocalFileStorage) ScratchDir(ctx context.Context) (string, error) {
	dir := filepath.Join(s.basePath, ScratchPrefix+core.NewID().String())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create scratch directory: %w", err)
	}
	return dir, nil
}

// GetReader returns a reader for the stored file
func (s *LocalFileStorage) GetReader(ctx context.Context, filePath string) (io.ReadCloser, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	return file, nil
}

// Delete removes a stored file or scratch directory
func (s *LocalFileStorage) Delete(ctx context.Context, path string) error {
	if err := os.RemoveAll(path); err != nil {
		return fmt.Errorf("failed to delete %s: %w", path, err)
	}
	return nil
}

// Exists checks if a file exists in storage
func (s *LocalFileStorage) Exists(ctx context.Context, filePath string) (bool, error) {
	_, err := os.Stat(filePath)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check file existence: %w", err)
	}
	return true, nil
}

// Sweep removes top-level files and scratch directories older than the
// configured age and returns how many entries were removed.
func (s *LocalFileStorage) Sweep(ctx context.Context) (int, error) {
	entries, err := os.ReadDir(s.basePath)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to list uploads: %w", err)
	}

	cutoff := s.now().Add(-s.maxAge)
	removed := 0
	for _, entry := range entries {
		if ctx.Err() != nil {
			return removed, ctx.Err()
		}
		if entry.IsDir() && !strings.HasPrefix(entry.Name(), ScratchPrefix) {
			continue
		}
		info, err := entry.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		path := filepath.Join(s.basePath, entry.Name())
		if err := os.RemoveAll(path); err != nil {
			s.logger.Warn("could not remove %s: %v", path, err)
			continue
		}
		removed++
	}
	if removed > 0 {
		s.logger.Info("swept %d stale uploads", removed)
	}
	return removed, nil
}

// RunSweeper sweeps every interval until ctx is done
func (s *LocalFileStorage) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Sweep(ctx); err != nil && ctx.Err() == nil {
				s.logger.Error("upload sweep failed: %v", err)
			}
		}
	}
}
