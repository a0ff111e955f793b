package ports

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/aretw0/scenesync/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunSnapshotStoreContract runs a suite of tests to verify that a SnapshotStore implementation
// adheres to the defined interface contract.
func RunSnapshotStoreContract(t *testing.T, store SnapshotStore) {
	ctx := context.Background()
	documentID := "contract-doc-" + time.Now().Format("20060102150405")

	newSnapshot := func(id string) *domain.DocumentSnapshot {
		return &domain.DocumentSnapshot{
			ID:      id,
			Version: 3,
			Root: domain.NodeSnapshot{
				ID: "root",
				Fields: map[string]domain.FieldSnapshot{
					"label": {Type: domain.FieldString, Value: "scene"},
				},
				Children: []domain.NodeSnapshot{
					{
						ID: "cube",
						Fields: map[string]domain.FieldSnapshot{
							"position": {Type: domain.FieldVec3, Value: "1,2.5,-3"},
							"visible":  {Type: domain.FieldBool, Value: "true"},
						},
					},
				},
			},
		}
	}

	t.Run("Save and Load", func(t *testing.T) {
		snapshot := newSnapshot(documentID)

		err := store.Save(ctx, snapshot)
		require.NoError(t, err, "Save should not return error")

		loaded, err := store.Load(ctx, documentID)
		require.NoError(t, err, "Load should not return error")
		assert.Equal(t, snapshot.ID, loaded.ID)
		assert.Equal(t, snapshot.Version, loaded.Version)
		assert.Equal(t, snapshot.Root, loaded.Root)
	})

	t.Run("Load is isolated from caller mutation", func(t *testing.T) {
		loaded, err := store.Load(ctx, documentID)
		require.NoError(t, err)
		loaded.Root.Children = nil

		again, err := store.Load(ctx, documentID)
		require.NoError(t, err)
		assert.Len(t, again.Root.Children, 1)
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+documentID)
		assert.ErrorIs(t, err, domain.ErrDocumentNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		err := store.Save(ctx, newSnapshot(documentID))
		require.NoError(t, err)

		err = store.Delete(ctx, documentID)
		require.NoError(t, err, "Delete should not return error")

		_, err = store.Load(ctx, documentID)
		assert.ErrorIs(t, err, domain.ErrDocumentNotFound, "Load after Delete should return ErrDocumentNotFound")
	})

	t.Run("List", func(t *testing.T) {
		id1 := documentID + "-1"
		id2 := documentID + "-2"
		require.NoError(t, store.Save(ctx, newSnapshot(id1)))
		require.NoError(t, store.Save(ctx, newSnapshot(id2)))

		defer func() {
			_ = store.Delete(ctx, id1)
			_ = store.Delete(ctx, id2)
		}()

		ids, err := store.List(ctx)
		require.NoError(t, err)
		sort.Strings(ids)
		assert.Contains(t, ids, id1)
		assert.Contains(t, ids, id2)
	})
}
