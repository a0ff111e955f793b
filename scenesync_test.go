package scenesync_test

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aretw0/scenesync"
	scenehttp "github.com/aretw0/scenesync/pkg/adapters/http"
	"github.com/aretw0/scenesync/pkg/adapters/memory"
	"github.com/aretw0/scenesync/pkg/authority"
	"github.com/aretw0/scenesync/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lobby() *domain.DocumentSnapshot {
	return &domain.DocumentSnapshot{
		ID:      "lobby",
		Version: 1,
		Root: domain.NodeSnapshot{
			ID: "root",
			Children: []domain.NodeSnapshot{
				{ID: "door", Fields: map[string]domain.FieldSnapshot{
					"open": {Type: domain.FieldBool, Value: "false"},
				}},
			},
		},
	}
}

func newAuthority(t *testing.T) *authority.Authority {
	t.Helper()
	a := authority.New(memory.NewStore())
	require.NoError(t, a.Put(context.Background(), lobby()))
	return a
}

func TestClient_InProcess(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	a := newAuthority(t)
	c := scenesync.NewInProcess(a)
	defer c.Close()

	require.NoError(t, c.Track(ctx, "lobby"))

	tx, err := c.NewTransaction("lobby").
		Update("door", "open", true).
		Create("root", domain.NodeSpec{ID: "lamp", Fields: map[string]domain.Field{
			"label": {Type: domain.FieldString, Value: "desk lamp"},
		}}).
		Build()
	require.NoError(t, err)

	resp, err := c.Apply(ctx, tx)
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, int64(2), resp.Version)

	snap, err := c.Snapshot("lobby")
	require.NoError(t, err)
	assert.Equal(t, int64(2), snap.Version)
	require.Len(t, snap.Root.Children, 2)
	assert.Equal(t, "true", snap.Root.Children[0].Fields["open"].Value)
	assert.Equal(t, "lamp", snap.Root.Children[1].ID)

	remote, err := a.Load(ctx, "lobby")
	require.NoError(t, err)
	assert.Equal(t, snap, remote)
}

func TestClient_DeclinedRollsBack(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	a := newAuthority(t)
	c := scenesync.NewInProcess(a)
	defer c.Close()
	require.NoError(t, c.Track(ctx, "lobby"))

	// Another writer removes the door at the authority; the local replica still has it.
	gone := lobby()
	gone.Root.Children = nil
	require.NoError(t, a.Put(ctx, gone))

	tx, err := c.NewTransaction("lobby").
		Update("door", "open", true).
		Build()
	require.NoError(t, err)
	_, err = c.Apply(ctx, tx)
	assert.ErrorIs(t, err, domain.ErrApplicationDeclined)

	snap, err := c.Snapshot("lobby")
	require.NoError(t, err)
	assert.Equal(t, "false", snap.Root.Children[0].Fields["open"].Value)
	assert.Equal(t, int64(1), snap.Version)

	pending, err := c.Pending("lobby")
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestClient_Connect(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	srv := httptest.NewServer(scenehttp.NewHandler(newAuthority(t)))
	defer srv.Close()

	c := scenesync.Connect(srv.URL)
	defer c.Close()

	require.NoError(t, c.Track(ctx, "lobby"))
	assert.True(t, c.IsTracked("lobby"))

	err := c.Track(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrDocumentNotFound)
}

func TestClient_ConnectWebSocket(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	a := newAuthority(t)
	srv := httptest.NewServer(scenehttp.NewHandler(a))
	defer srv.Close()

	c, err := scenesync.ConnectWebSocket(ctx, srv.URL)
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, c.Track(ctx, "lobby"))
	tx, err := c.NewTransaction("lobby").Delete("door").Build()
	require.NoError(t, err)
	resp, err := c.Apply(ctx, tx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), resp.Version)

	snap, err := c.Snapshot("lobby")
	require.NoError(t, err)
	assert.Empty(t, snap.Root.Children)
}

func TestClient_ApplyUntracked(t *testing.T) {
	c := scenesync.NewInProcess(newAuthority(t))
	defer c.Close()

	tx, err := c.NewTransaction("lobby").Update("door", "open", true).Build()
	require.NoError(t, err)
	_, err = c.Apply(context.Background(), tx)
	assert.ErrorIs(t, err, domain.ErrUntrackedDocument)
}

func TestDial_WithToken(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	auth, err := scenehttp.NewAuthenticator([]byte("0123456789abcdef0123456789abcdef"))
	require.NoError(t, err)
	srv := httptest.NewServer(scenehttp.NewHandler(newAuthority(t), scenehttp.WithAuthenticator(auth)))
	defer srv.Close()

	_, err = scenesync.Dial(ctx, scenesync.Remote{BaseURL: srv.URL, WebSocket: true})
	assert.Error(t, err, "handshake without a token is refused")

	token, err := auth.Issue("editor", time.Minute)
	require.NoError(t, err)
	c, err := scenesync.Dial(ctx, scenesync.Remote{BaseURL: srv.URL, Token: token, WebSocket: true})
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, c.Track(ctx, "lobby"))
	tx, err := c.NewTransaction("lobby").Update("door", "open", true).Build()
	require.NoError(t, err)
	resp, err := c.Apply(ctx, tx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), resp.Version)
}
