// Package ws carries transaction batches over a single WebSocket connection.
//
// The client writes one Request per text frame. The server runs each batch as
// soon as it arrives and writes a Reply when it finishes, so replies can come
// back in any order; the client matches them to callers by transaction id.
package ws

import (
	"errors"
	"net/url"
	"strings"

	"github.com/aretw0/scenesync/pkg/wire"
)

// Path is where the HTTP server mounts the WebSocket endpoint.
const Path = "/ws"

// ErrClosed is returned by Send after the connection is gone.
var ErrClosed = errors.New("websocket transport closed")

// Request is a client frame.
type Request struct {
	Batch wire.Batch `json:"batch"`
}

// Reply is a server frame. Exactly one of Response and Error is set.
type Reply struct {
	TransactionID string         `json:"transaction_id"`
	Response      *wire.Response `json:"response,omitempty"`
	Error         string         `json:"error,omitempty"`
}

// URL derives the WebSocket endpoint from an authority's HTTP base URL.
func URL(baseURL string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http", "":
		u.Scheme = "ws"
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + Path
	return u.String(), nil
}
