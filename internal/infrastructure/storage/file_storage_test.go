package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestReportArchive_SaveReadDelete(t *testing.T) {
	dir := t.TempDir()
	archive := NewReportArchive(dir, zap.NewNop())
	ctx := context.Background()

	path := "exports/2026/05/requests-20260504-100000.xlsx"
	require.NoError(t, archive.Save(ctx, path, []byte("report")))
	assert.True(t, archive.Exists(ctx, path))
	assert.FileExists(t, filepath.Join(dir, "exports", "2026", "05", "requests-20260504-100000.xlsx"))
	assert.NoFileExists(t, filepath.Join(dir, "exports", "2026", "05", "requests-20260504-100000.xlsx.tmp"))

	content, err := archive.Read(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, []byte("report"), content)

	require.NoError(t, archive.Save(ctx, path, []byte("v2")))
	content, err = archive.Read(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), content)

	require.NoError(t, archive.Delete(ctx, path))
	assert.False(t, archive.Exists(ctx, path))
	assert.NoError(t, archive.Delete(ctx, path))
}

func TestReportArchive_RejectsEscapingPaths(t *testing.T) {
	archive := NewReportArchive(t.TempDir(), zap.NewNop())
	ctx := context.Background()

	for _, path := range []string{"../outside.xlsx", "exports/../../outside.xlsx", "."} {
		err := archive.Save(ctx, path, []byte("x"))
		assert.True(t, errors.Is(err, ErrOutsideArchive), "path %q: %v", path, err)
		assert.False(t, archive.Exists(ctx, path))
	}
}

func TestReportArchive_ExistsIgnoresDirectories(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "exports"), 0o755))
	archive := NewReportArchive(dir, zap.NewNop())

	assert.False(t, archive.Exists(context.Background(), "exports"))
}
