package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/aretw0/scenesync/pkg/domain"
	"github.com/aretw0/scenesync/pkg/ports"
	"github.com/aretw0/scenesync/pkg/wire"
)

// Client talks to a Server. It implements ports.Transport and ports.DocumentLoader.
type Client struct {
	baseURL string
	http    *http.Client
	token   string
}

var (
	_ ports.Transport      = (*Client)(nil)
	_ ports.DocumentLoader = (*Client)(nil)
)

// ClientOption configures the Client.
type ClientOption func(*Client)

// WithHTTPClient replaces http.DefaultClient.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(cl *Client) {
		cl.http = c
	}
}

// WithToken sends token as a bearer credential on every request.
func WithToken(token string) ClientOption {
	return func(cl *Client) {
		cl.token = token
	}
}

// NewClient creates a client for the authority at baseURL.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    http.DefaultClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Send posts batch and returns the authority's answer.
// Any non-200 status is a transport failure.
func (c *Client) Send(ctx context.Context, batch wire.Batch) (*wire.Response, error) {
	var resp wire.Response
	if err := c.do(ctx, http.MethodPost, c.documentURL(batch.DocumentID)+"/transactions", batch, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Load fetches a document snapshot.
func (c *Client) Load(ctx context.Context, documentID string) (*domain.DocumentSnapshot, error) {
	var snapshot domain.DocumentSnapshot
	if err := c.do(ctx, http.MethodGet, c.documentURL(documentID), nil, &snapshot); err != nil {
		return nil, err
	}
	return &snapshot, nil
}

// Put creates or replaces a document.
func (c *Client) Put(ctx context.Context, snapshot *domain.DocumentSnapshot) error {
	return c.do(ctx, http.MethodPut, c.documentURL(snapshot.ID), snapshot, nil)
}

// List returns the ids of the authority's documents.
func (c *Client) List(ctx context.Context) ([]string, error) {
	var ids []string
	if err := c.do(ctx, http.MethodGet, c.baseURL+"/documents", nil, &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

func (c *Client) documentURL(documentID string) string {
	return c.baseURL + "/documents/" + url.PathEscape(documentID)
}

func (c *Client) do(ctx context.Context, method, target string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	res, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	switch {
	case res.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s", domain.ErrDocumentNotFound, target)
	case res.StatusCode == http.StatusUnauthorized:
		return fmt.Errorf("%w: %s %s", ErrUnauthorized, method, target)
	case res.StatusCode >= 300:
		msg, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return fmt.Errorf("%s %s: %s: %s", method, target, res.Status, strings.TrimSpace(string(msg)))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
