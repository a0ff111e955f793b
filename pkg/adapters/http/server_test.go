package http_test

import (
	"bufio"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	scenehttp "github.com/aretw0/scenesync/pkg/adapters/http"
	"github.com/aretw0/scenesync/pkg/adapters/memory"
	"github.com/aretw0/scenesync/pkg/authority"
	"github.com/aretw0/scenesync/pkg/document"
	"github.com/aretw0/scenesync/pkg/domain"
	"github.com/aretw0/scenesync/pkg/ports"
	"github.com/aretw0/scenesync/pkg/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scene(id string) *domain.DocumentSnapshot {
	return &domain.DocumentSnapshot{
		ID:      id,
		Version: 1,
		Root: domain.NodeSnapshot{
			ID: "root",
			Children: []domain.NodeSnapshot{
				{ID: "nodeX", Fields: map[string]domain.FieldSnapshot{
					"label": {Type: domain.FieldString, Value: "old"},
				}},
			},
		},
	}
}

func newServer(t *testing.T, opts ...scenehttp.ServerOption) (*httptest.Server, *scenehttp.Client) {
	t.Helper()
	auth := authority.New(memory.NewStore())
	srv := httptest.NewServer(scenehttp.NewHandler(auth, opts...))
	t.Cleanup(srv.Close)

	client := scenehttp.NewClient(srv.URL, scenehttp.WithHTTPClient(srv.Client()))
	require.NoError(t, client.Put(context.Background(), scene("doc")))
	return srv, client
}

func TestClient_LoadAndList(t *testing.T) {
	_, client := newServer(t)
	ctx := context.Background()

	snapshot, err := client.Load(ctx, "doc")
	require.NoError(t, err)
	assert.Equal(t, scene("doc"), snapshot)

	ids, err := client.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"doc"}, ids)

	_, err = client.Load(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrDocumentNotFound)
}

func TestClient_Send(t *testing.T) {
	_, client := newServer(t)
	ctx := context.Background()

	resp, err := client.Send(ctx, wire.Batch{
		TransactionID: "t1",
		DocumentID:    "doc",
		Actions:       []wire.ActionDTO{{Type: wire.TypeUpdate, ElementID: "nodeX", SchemaType: "string", Key: "label", Value: "new"}},
	})
	require.NoError(t, err)
	assert.Equal(t, &wire.Response{Success: true, Version: 2}, resp)

	resp, err = client.Send(ctx, wire.Batch{
		TransactionID: "t2",
		DocumentID:    "doc",
		Actions:       []wire.ActionDTO{{Type: wire.TypeDelete, ElementID: "ghost"}},
	})
	require.NoError(t, err)
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Error, "target not found")
}

func TestServer_RejectsMismatchedDocument(t *testing.T) {
	srv, _ := newServer(t)

	body := strings.NewReader(`{"transactionId":"t1","documentId":"other","actions":[]}`)
	res, err := srv.Client().Post(srv.URL+"/documents/doc/transactions", "application/json", body)
	require.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
}

func TestServer_PutInvalidSnapshot(t *testing.T) {
	_, client := newServer(t)
	err := client.Put(context.Background(), &domain.DocumentSnapshot{ID: "bad"})
	assert.ErrorContains(t, err, "400")
}

func TestServer_HealthInfoMetrics(t *testing.T) {
	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("scenesync_up 1\n"))
	})
	srv, _ := newServer(t, scenehttp.WithVersion("1.2.3"), scenehttp.WithMetricsHandler(metrics))

	for path, want := range map[string]string{
		"/health":  `"ok"`,
		"/info":    `"1.2.3"`,
		"/metrics": "scenesync_up 1",
	} {
		res, err := srv.Client().Get(srv.URL + path)
		require.NoError(t, err)
		body, err := io.ReadAll(res.Body)
		res.Body.Close()
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, res.StatusCode, path)
		assert.Contains(t, string(body), want, path)
	}
}

func TestServer_EventsStreamAcceptedBatches(t *testing.T) {
	srv, client := newServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/documents/doc/events", nil)
	require.NoError(t, err)
	res, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer res.Body.Close()

	lines := make(chan string, 16)
	go func() {
		scanner := bufio.NewScanner(res.Body)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	next := func() string {
		select {
		case l := <-lines:
			return l
		case <-time.After(2 * time.Second):
			t.Fatal("timed out reading event stream")
			return ""
		}
	}
	require.Equal(t, "event: ping", next())
	require.Equal(t, "data: connected", next())

	_, err = client.Send(ctx, wire.Batch{TransactionID: "t1", DocumentID: "doc"})
	require.NoError(t, err)

	next() // blank separator
	assert.Equal(t, "event: batch", next())
	assert.Contains(t, next(), `"transactionId":"t1"`)
}

// A Manager works unchanged over HTTP.
func TestClient_WithManager(t *testing.T) {
	_, client := newServer(t)
	m := document.NewManager(client, client)
	defer m.Close()
	ctx := context.Background()

	require.NoError(t, <-m.TrackDocument("doc"))

	tx, err := m.NewTransaction("doc").Update("nodeX", "label", "remote").Build()
	require.NoError(t, err)
	out, err := m.Request(ctx, tx)
	require.NoError(t, err)
	require.NoError(t, (<-out).Err)

	version, err := m.Version("doc")
	require.NoError(t, err)
	assert.Equal(t, int64(2), version)

	require.NoError(t, m.View("doc", func(tree ports.Tree) error {
		n, _ := tree.FindByID("nodeX")
		f, _ := tree.GetField(n, "label")
		assert.Equal(t, "remote", f.Value)
		return nil
	}))
}
