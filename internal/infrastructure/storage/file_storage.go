package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/garyjia/f07-workflow/internal/application/port"
)

// ErrOutsideArchive is returned for paths that escape the archive directory
var ErrOutsideArchive = errors.New("path is outside the report archive")

// ReportArchive keeps exported reports under a base directory
type ReportArchive struct {
	baseDir string
	logger  *zap.Logger
}

// NewReportArchive creates an archive rooted at baseDir
func NewReportArchive(baseDir string, logger *zap.Logger) *ReportArchive {
	return &ReportArchive{
		baseDir: filepath.Clean(baseDir),
		logger:  logger,
	}
}

// Save writes content to path, creating parent directories. The write goes
// through a temp file so readers never see a partial report.
func (a *ReportArchive) Save(ctx context.Context, path string, content []byte) error {
	fullPath, err := a.resolve(path)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		a.logger.Error("Failed to create archive directory", zap.String("path", fullPath), zap.Error(err))
		return fmt.Errorf("failed to create directories: %w", err)
	}

	tmp := fullPath + ".tmp"
	if err := os.WriteFile(tmp, content, 0o644); err != nil {
		a.logger.Error("Failed to write report", zap.String("path", fullPath), zap.Error(err))
		return fmt.Errorf("failed to write file: %w", err)
	}
	if err := os.Rename(tmp, fullPath); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to move report into place: %w", err)
	}

	a.logger.Debug("Report archived", zap.String("path", fullPath), zap.Int("size", len(content)))
	return nil
}

// Read returns the content stored at path
func (a *ReportArchive) Read(ctx context.Context, path string) ([]byte, error) {
	fullPath, err := a.resolve(path)
	if err != nil {
		return nil, err
	}
	content, err := os.ReadFile(fullPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return content, nil
}

// Exists reports whether a regular file is stored at path
func (a *ReportArchive) Exists(ctx context.Context, path string) bool {
	fullPath, err := a.resolve(path)
	if err != nil {
		return false
	}
	info, err := os.Stat(fullPath)
	return err == nil && info.Mode().IsRegular()
}

// Delete removes the file at path. Deleting a missing file is not an error.
func (a *ReportArchive) Delete(ctx context.Context, path string) error {
	fullPath, err := a.resolve(path)
	if err != nil {
		return err
	}
	if err := os.Remove(fullPath); err != nil && !os.IsNotExist(err) {
		a.logger.Error("Failed to delete report", zap.String("path", fullPath), zap.Error(err))
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

// GetFullPath joins a relative path onto the archive directory
func (a *ReportArchive) GetFullPath(relativePath string) string {
	return filepath.Join(a.baseDir, filepath.FromSlash(relativePath))
}

func (a *ReportArchive) resolve(path string) (string, error) {
	fullPath := a.GetFullPath(path)
	rel, err := filepath.Rel(a.baseDir, fullPath)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrOutsideArchive, path)
	}
	return fullPath, nil
}

// Verify interface compliance
var _ port.FileStorage = (*ReportArchive)(nil)
