package authority_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/scenesync/pkg/adapters/memory"
	"github.com/aretw0/scenesync/pkg/authority"
	"github.com/aretw0/scenesync/pkg/document"
	"github.com/aretw0/scenesync/pkg/domain"
	"github.com/aretw0/scenesync/pkg/ports"
	"github.com/aretw0/scenesync/pkg/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scene() *domain.DocumentSnapshot {
	return &domain.DocumentSnapshot{
		ID:      "doc",
		Version: 1,
		Root: domain.NodeSnapshot{
			ID: "root",
			Children: []domain.NodeSnapshot{
				{ID: "nodeX", Fields: map[string]domain.FieldSnapshot{
					"visible": {Type: domain.FieldBool, Value: "true"},
				}},
			},
		},
	}
}

func newAuthority(t *testing.T, opts ...authority.Option) (*authority.Authority, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	a := authority.New(store, opts...)
	require.NoError(t, a.Put(context.Background(), scene()))
	return a, store
}

func TestAuthority_AcceptsAndBumpsVersion(t *testing.T) {
	a, store := newAuthority(t)
	ctx := context.Background()

	resp, err := a.Send(ctx, wire.Batch{
		TransactionID: "t1",
		DocumentID:    "doc",
		Actions: []wire.ActionDTO{
			{Type: wire.TypeCreate, ElementID: "n1", ParentID: "root",
				Fields: map[string]wire.FieldDTO{"label": {SchemaType: "string", Value: "new"}}},
			{Type: wire.TypeUpdate, ElementID: "nodeX", SchemaType: "bool", Key: "visible", Value: "false"},
		},
	})
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, int64(2), resp.Version)

	stored, err := store.Load(ctx, "doc")
	require.NoError(t, err)
	assert.Equal(t, int64(2), stored.Version)
	require.Len(t, stored.Root.Children, 2)
	assert.Equal(t, "false", stored.Root.Children[0].Fields["visible"].Value)
	assert.Equal(t, "n1", stored.Root.Children[1].ID)
}

func TestAuthority_DeclinesWholeBatch(t *testing.T) {
	a, store := newAuthority(t)
	ctx := context.Background()

	resp, err := a.Send(ctx, wire.Batch{
		TransactionID: "t1",
		DocumentID:    "doc",
		Actions: []wire.ActionDTO{
			{Type: wire.TypeUpdate, ElementID: "nodeX", SchemaType: "bool", Key: "visible", Value: "false"},
			{Type: wire.TypeDelete, ElementID: "ghost"},
		},
	})
	require.NoError(t, err)
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Error, "action 1")

	stored, err := store.Load(ctx, "doc")
	require.NoError(t, err)
	assert.Equal(t, scene(), stored)
}

func TestAuthority_DeclinesUnknownDocumentAndMalformedBatch(t *testing.T) {
	a, _ := newAuthority(t)
	ctx := context.Background()

	resp, err := a.Send(ctx, wire.Batch{TransactionID: "t1", DocumentID: "missing"})
	require.NoError(t, err)
	assert.False(t, resp.Success)

	resp, err = a.Send(ctx, wire.Batch{DocumentID: "doc"})
	require.NoError(t, err)
	assert.False(t, resp.Success)

	resp, err = a.Send(ctx, wire.Batch{TransactionID: "t2", DocumentID: "doc", Actions: []wire.ActionDTO{{Type: "teleport"}}})
	require.NoError(t, err)
	assert.False(t, resp.Success)
}

func TestAuthority_ReplayIsIdempotent(t *testing.T) {
	a, store := newAuthority(t, authority.WithReplayWindow(1))
	ctx := context.Background()
	create := func(txnID, nodeID string) wire.Batch {
		return wire.Batch{TransactionID: txnID, DocumentID: "doc", Actions: []wire.ActionDTO{
			{Type: wire.TypeCreate, ElementID: nodeID, ParentID: "root"},
		}}
	}

	first, err := a.Send(ctx, create("t1", "n1"))
	require.NoError(t, err)
	again, err := a.Send(ctx, create("t1", "n1"))
	require.NoError(t, err)
	assert.Equal(t, first, again)

	stored, err := store.Load(ctx, "doc")
	require.NoError(t, err)
	assert.Equal(t, int64(2), stored.Version)

	_, err = a.Send(ctx, create("t2", "n2"))
	require.NoError(t, err)

	// t1 fell out of the window and is applied again, which now fails.
	resp, err := a.Send(ctx, create("t1", "n1"))
	require.NoError(t, err)
	assert.False(t, resp.Success)
}

func TestAuthority_SeedFallback(t *testing.T) {
	seed := memory.NewStore()
	seeded := scene()
	seeded.ID = "seeded"
	require.NoError(t, seed.Save(context.Background(), seeded))

	store := memory.NewStore()
	a := authority.New(store, authority.WithSeed(seed))

	snapshot, err := a.Load(context.Background(), "seeded")
	require.NoError(t, err)
	assert.Equal(t, seeded, snapshot)

	ids, err := a.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"seeded"}, ids)

	_, err = a.Load(context.Background(), "nowhere")
	assert.ErrorIs(t, err, domain.ErrDocumentNotFound)
}

func TestAuthority_PutRejectsInvalidSnapshot(t *testing.T) {
	a := authority.New(memory.NewStore())
	err := a.Put(context.Background(), &domain.DocumentSnapshot{ID: "doc"})
	assert.ErrorIs(t, err, domain.ErrInvalidAction)
}

type stubLocker struct {
	locked   []string
	released int
	err      error
}

func (s *stubLocker) Lock(ctx context.Context, key string, ttl time.Duration) (ports.UnlockFunc, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.locked = append(s.locked, key)
	return func(context.Context) error {
		s.released++
		return nil
	}, nil
}

func TestAuthority_UsesDistributedLock(t *testing.T) {
	locker := &stubLocker{}
	a, _ := newAuthority(t, authority.WithLocker(locker))

	_, err := a.Send(context.Background(), wire.Batch{TransactionID: "t1", DocumentID: "doc"})
	require.NoError(t, err)
	assert.Equal(t, []string{"doc:doc", "doc:doc"}, locker.locked)
	assert.Equal(t, 2, locker.released)

	locker.err = errors.New("redis down")
	_, err = a.Send(context.Background(), wire.Batch{TransactionID: "t2", DocumentID: "doc"})
	assert.ErrorContains(t, err, "redis down")
	assert.Zero(t, a.LockCount(), "failed distributed lock releases the local entry")
}

func TestAuthority_LocksAreReleased(t *testing.T) {
	a, _ := newAuthority(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 200; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			resp, err := a.Send(ctx, wire.Batch{TransactionID: fmt.Sprintf("m%d", i), DocumentID: fmt.Sprintf("missing-%d", i)})
			assert.NoError(t, err)
			assert.False(t, resp.Success)
		}()
		go func() {
			defer wg.Done()
			resp, err := a.Send(ctx, wire.Batch{
				TransactionID: fmt.Sprintf("t%d", i),
				DocumentID:    "doc",
				Actions: []wire.ActionDTO{
					{Type: wire.TypeUpdate, ElementID: "nodeX", SchemaType: "bool", Key: "visible", Value: "false"},
				},
			})
			assert.NoError(t, err)
			assert.True(t, resp.Success)
		}()
	}
	wg.Wait()

	assert.Zero(t, a.LockCount())
	snapshot, err := a.Load(ctx, "doc")
	require.NoError(t, err)
	assert.Equal(t, int64(201), snapshot.Version, "writers of one document stay serialized")

	require.NoError(t, a.Put(ctx, scene()))
	require.NoError(t, a.Delete(ctx, "doc"))
	assert.Zero(t, a.LockCount())
}

func TestAuthority_Hooks(t *testing.T) {
	var events []domain.EventType
	hooks := domain.TransactionHooks{
		OnCommit: func(_ context.Context, e *domain.TransactionEvent) { events = append(events, e.Type) },
		OnFail:   func(_ context.Context, e *domain.TransactionEvent) { events = append(events, e.Type) },
	}
	a, _ := newAuthority(t, authority.WithHooks(hooks))
	ctx := context.Background()

	_, err := a.Send(ctx, wire.Batch{TransactionID: "t1", DocumentID: "doc"})
	require.NoError(t, err)
	_, err = a.Send(ctx, wire.Batch{TransactionID: "t2", DocumentID: "doc", Actions: []wire.ActionDTO{{Type: wire.TypeDelete, ElementID: "ghost"}}})
	require.NoError(t, err)

	assert.Equal(t, []domain.EventType{domain.EventCommitted, domain.EventFailed}, events)
}

// The authority plugs straight into a Manager as its transport and loader.
func TestAuthority_WithManager(t *testing.T) {
	a, store := newAuthority(t)
	m := document.NewManager(a, a)
	defer m.Close()
	ctx := context.Background()

	require.NoError(t, <-m.TrackDocument("doc"))

	ok, err := m.NewTransaction("doc").Update("nodeX", "visible", false).Build()
	require.NoError(t, err)
	out, err := m.Request(ctx, ok)
	require.NoError(t, err)
	require.NoError(t, (<-out).Err)

	bad, err := m.NewTransaction("doc").
		Create("root", domain.NodeSpec{ID: "n1"}).
		Delete("ghost").
		Build()
	require.NoError(t, err)
	out, err = m.Request(ctx, bad)
	require.NoError(t, err)
	assert.ErrorIs(t, (<-out).Err, domain.ErrApplicationDeclined)

	local, err := m.Version("doc")
	require.NoError(t, err)
	stored, err := store.Load(ctx, "doc")
	require.NoError(t, err)
	assert.Equal(t, stored.Version, local)
	assert.Len(t, stored.Root.Children, 1)
}
