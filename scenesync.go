package scenesync

import (
	"context"
	"errors"
	"fmt"

	scenehttp "github.com/aretw0/scenesync/pkg/adapters/http"
	"github.com/aretw0/scenesync/pkg/adapters/ws"
	"github.com/aretw0/scenesync/pkg/authority"
	"github.com/aretw0/scenesync/pkg/document"
	"github.com/aretw0/scenesync/pkg/domain"
	"github.com/aretw0/scenesync/pkg/ports"
	"github.com/aretw0/scenesync/pkg/wire"
)

// Client is the high-level entry point: a document manager with blocking helpers.
type Client struct {
	*document.Manager

	closers []func() error
}

// New builds a client over any transport and snapshot loader.
func New(transport ports.Transport, loader ports.DocumentLoader, opts ...document.Option) *Client {
	return &Client{Manager: document.NewManager(transport, loader, opts...)}
}

// Remote describes how to reach an authority over the network.
type Remote struct {
	// BaseURL is the authority's HTTP root, e.g. http://localhost:8080.
	BaseURL string
	// Token is sent as a bearer credential when set.
	Token string
	// WebSocket submits transactions over the multiplexed /ws endpoint
	// instead of one HTTP request per transaction.
	WebSocket bool
}

// Dial builds a client bound to a remote authority. Documents are always
// loaded over HTTP.
func Dial(ctx context.Context, r Remote, opts ...document.Option) (*Client, error) {
	loader := scenehttp.NewClient(r.BaseURL, scenehttp.WithToken(r.Token))
	if !r.WebSocket {
		return New(loader, loader, opts...), nil
	}
	endpoint, err := ws.URL(r.BaseURL)
	if err != nil {
		return nil, err
	}
	transport, err := ws.Dial(ctx, endpoint, scenehttp.BearerHeader(r.Token))
	if err != nil {
		return nil, err
	}
	c := New(transport, loader, opts...)
	c.closers = append(c.closers, transport.Close)
	return c, nil
}

// Connect builds a client that talks to an authority served at baseURL.
func Connect(baseURL string, opts ...document.Option) *Client {
	remote := scenehttp.NewClient(baseURL)
	return New(remote, remote, opts...)
}

// ConnectWebSocket builds a client that submits transactions over the
// authority's WebSocket endpoint and loads documents over HTTP.
func ConnectWebSocket(ctx context.Context, baseURL string, opts ...document.Option) (*Client, error) {
	return Dial(ctx, Remote{BaseURL: baseURL, WebSocket: true}, opts...)
}

// NewInProcess builds a client bound directly to an authority, without a network hop.
func NewInProcess(a *authority.Authority, opts ...document.Option) *Client {
	return New(a, a, opts...)
}

// Close untracks every document and releases the connection, if any.
func (c *Client) Close() {
	c.Manager.Close()
	for _, closeFn := range c.closers {
		_ = closeFn()
	}
}

// Track loads documentID and blocks until it is ready or ctx is done.
func (c *Client) Track(ctx context.Context, documentID string) error {
	select {
	case err := <-c.TrackDocument(documentID):
		if err != nil {
			return fmt.Errorf("track %s: %w", documentID, err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Apply submits t and blocks until the authority answers and the local tree
// reflects the outcome. A declined transaction returns the authority's
// response together with an error wrapping domain.ErrApplicationDeclined.
func (c *Client) Apply(ctx context.Context, t *domain.Transaction) (*wire.Response, error) {
	out, err := c.Request(ctx, t)
	if err != nil {
		return nil, err
	}
	select {
	case o := <-out:
		return o.Response, o.Err
	case <-ctx.Done():
		// The outcome still resolves in the background.
		return nil, ctx.Err()
	}
}

// ErrNoSnapshot is returned by Snapshot when the tree implementation cannot serialize itself.
var ErrNoSnapshot = errors.New("tree does not support snapshots")

type snapshotter interface {
	Snapshot(documentID string, version int64) (*domain.DocumentSnapshot, error)
}

// Snapshot returns the local view of documentID, including precommitted edits.
// The version is the last one confirmed by the authority.
func (c *Client) Snapshot(documentID string) (*domain.DocumentSnapshot, error) {
	version, err := c.Version(documentID)
	if err != nil {
		return nil, err
	}
	var snap *domain.DocumentSnapshot
	err = c.View(documentID, func(tree ports.Tree) error {
		s, ok := tree.(snapshotter)
		if !ok {
			return ErrNoSnapshot
		}
		snap, err = s.Snapshot(documentID, version)
		return err
	})
	return snap, err
}
