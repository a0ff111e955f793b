package ws

import (
	"context"
	"log/slog"
	"net/http"
	"sync"

	"github.com/aretw0/scenesync/internal/logging"
	"github.com/aretw0/scenesync/pkg/ports"
	"github.com/gorilla/websocket"
)

// Handler upgrades requests and serves the batch protocol on top of a transport.
type Handler struct {
	transport ports.Transport
	upgrader  websocket.Upgrader
	logger    *slog.Logger
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithLogger sets a structured logger.
func WithLogger(logger *slog.Logger) HandlerOption {
	return func(h *Handler) {
		h.logger = logger
	}
}

// WithCheckOrigin overrides the origin check. Every origin is accepted by default.
func WithCheckOrigin(fn func(r *http.Request) bool) HandlerOption {
	return func(h *Handler) {
		h.upgrader.CheckOrigin = fn
	}
}

// NewHandler serves batches by forwarding them to transport.
func NewHandler(transport ports.Transport, opts ...HandlerOption) *Handler {
	h := &Handler{
		transport: transport,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// ServeHTTP handles one connection until the peer closes it.
// Batches still running when the connection drops are cancelled.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "err", err)
		return
	}
	ctx, cancel := context.WithCancel(context.WithoutCancel(r.Context()))
	h.logger.Debug("websocket client connected", "remote", r.RemoteAddr)

	var (
		writeMu sync.Mutex
		wg      sync.WaitGroup
	)
	write := func(reply Reply) {
		writeMu.Lock()
		defer writeMu.Unlock()
		if err := conn.WriteJSON(reply); err != nil {
			h.logger.Debug("websocket write failed", "txn_id", reply.TransactionID, "err", err)
		}
	}

	for {
		var req Request
		if err := conn.ReadJSON(&req); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Debug("websocket read failed", "err", err)
			}
			break
		}
		if req.Batch.TransactionID == "" {
			write(Reply{Error: "batch without transaction id"})
			continue
		}

		wg.Add(1)
		go func(req Request) {
			defer wg.Done()
			reply := Reply{TransactionID: req.Batch.TransactionID}
			resp, err := h.transport.Send(ctx, req.Batch)
			if err != nil {
				reply.Error = err.Error()
			} else {
				reply.Response = resp
			}
			write(reply)
		}(req)
	}

	cancel()
	wg.Wait()
	_ = conn.Close()
	h.logger.Debug("websocket client disconnected", "remote", r.RemoteAddr)
}
