package badger_test

import (
	"context"
	"testing"

	"github.com/aretw0/scenesync/pkg/adapters/badger"
	"github.com/aretw0/scenesync/pkg/domain"
	"github.com/aretw0/scenesync/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBadgerStore_Contract(t *testing.T) {
	store, err := badger.Open(badger.Config{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	ports.RunSnapshotStoreContract(t, store)
}

func TestBadgerStore_Persists(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	store, err := badger.Open(badger.Config{Path: dir, SyncWrites: true})
	require.NoError(t, err)
	snapshot := &domain.DocumentSnapshot{ID: "lobby", Version: 7, Root: domain.NodeSnapshot{ID: "root"}}
	require.NoError(t, store.Save(ctx, snapshot))
	require.NoError(t, store.Close())

	reopened, err := badger.Open(badger.Config{Path: dir})
	require.NoError(t, err)
	defer reopened.Close()

	loaded, err := reopened.Load(ctx, "lobby")
	require.NoError(t, err)
	assert.Equal(t, snapshot, loaded)

	ids, err := reopened.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"lobby"}, ids)
}

func TestBadgerStore_RequiresPath(t *testing.T) {
	_, err := badger.Open(badger.Config{})
	assert.Error(t, err)
}
