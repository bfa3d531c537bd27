package repository

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/diagnosis/leadflow/internal/domain"
	"github.com/stretchr/testify/require"
)

func TestFileMediumMissingFileIsEmpty(t *testing.T) {
	medium, err := NewFileMedium(filepath.Join(t.TempDir(), "nested", "dir", "leads.json"))
	require.NoError(t, err)

	data, version, err := medium.Load(context.Background())
	require.NoError(t, err)
	require.Nil(t, data)
	require.Zero(t, version)

	_, err = os.Stat(filepath.Dir(medium.Path()))
	require.NoError(t, err, "data directory should be created")
}

func TestFileMediumSaveReplacesAtomically(t *testing.T) {
	dir := t.TempDir()
	medium, err := NewFileMedium(filepath.Join(dir, "leads.json"))
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, medium.Save(ctx, []byte(`[{"id":"a"}]`), 0))
	require.NoError(t, medium.Save(ctx, []byte(`[{"id":"b"}]`), 0))

	data, _, err := medium.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, `[{"id":"b"}]`, string(data))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "temp files must not be left behind")
}

func TestFileMediumWritesIndentedArray(t *testing.T) {
	repo, medium := newFileRepo(t)
	_, err := repo.Create(context.Background(), &domain.CreateLeadRequest{Name: "Ada", Email: "ada@x.com"})
	require.NoError(t, err)

	raw, err := os.ReadFile(medium.Path())
	require.NoError(t, err)
	text := string(raw)
	require.True(t, strings.HasPrefix(text, "[\n  {\n"), text)
	require.Contains(t, text, `"status": "New"`)
	require.Contains(t, text, `"createdAt": "`)
	require.NotContains(t, text, `"phone"`)
}

func TestFileMediumSaveFailsWhenDirIsAFile(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	medium := &FileMedium{path: filepath.Join(blocker, "leads.json")}
	require.Error(t, medium.Save(context.Background(), []byte("[]"), 0))
}
