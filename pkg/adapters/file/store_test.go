package file_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/aretw0/scenesync/pkg/adapters/file"
	"github.com/aretw0/scenesync/pkg/domain"
	"github.com/aretw0/scenesync/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStore_Contract(t *testing.T) {
	ports.RunSnapshotStoreContract(t, file.New(t.TempDir()))
}

func TestFileStore_WritesReadableYAML(t *testing.T) {
	dir := t.TempDir()
	store := file.New(dir)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, &domain.DocumentSnapshot{
		ID:      "scene",
		Version: 4,
		Root: domain.NodeSnapshot{
			ID:     "root",
			Fields: map[string]domain.FieldSnapshot{"visible": {Type: domain.FieldBool, Value: "true"}},
		},
	}))

	raw, err := os.ReadFile(filepath.Join(dir, "scene.yaml"))
	require.NoError(t, err)
	assert.Contains(t, string(raw), "type: bool")
	assert.Contains(t, string(raw), "version: 4")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files are cleaned up")

	loaded, err := store.Load(ctx, "scene")
	require.NoError(t, err)
	assert.Equal(t, "true", loaded.Root.Fields["visible"].Value)
}

func TestFileStore_RejectsPathLikeIDs(t *testing.T) {
	store := file.New(t.TempDir())
	ctx := context.Background()

	for _, id := range []string{"", "..", "a/b", `a\b`} {
		_, err := store.Load(ctx, id)
		assert.ErrorIs(t, err, domain.ErrInvalidAction, id)
	}
}

func TestFileStore_ListMissingDir(t *testing.T) {
	store := file.New(filepath.Join(t.TempDir(), "absent"))
	ids, err := store.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, ids)
}
