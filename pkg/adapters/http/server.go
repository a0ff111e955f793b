// Package http exposes an authority over HTTP and provides the matching client
// transport.
//
//	GET    /health
//	GET    /info
//	GET    /documents
//	GET    /documents/{id}
//	PUT    /documents/{id}
//	DELETE /documents/{id}
//	POST   /documents/{id}/transactions
//	GET    /documents/{id}/events        (SSE stream of accepted batches)
//	GET    /ws                           (WebSocket batch transport, see package ws)
//
// With WithAuthenticator, /documents and /ws require a bearer token.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/aretw0/scenesync/internal/logging"
	"github.com/aretw0/scenesync/pkg/adapters/ws"
	"github.com/aretw0/scenesync/pkg/domain"
	"github.com/aretw0/scenesync/pkg/ports"
	"github.com/aretw0/scenesync/pkg/wire"
	"github.com/go-chi/chi/v5"
)

// Authority is the server-side collaborator.
type Authority interface {
	ports.Transport
	ports.DocumentLoader
	Put(ctx context.Context, snapshot *domain.DocumentSnapshot) error
	Delete(ctx context.Context, documentID string) error
	List(ctx context.Context) ([]string, error)
}

// Server routes HTTP requests to an Authority.
type Server struct {
	Authority Authority
	Streams   *StreamManager

	metrics http.Handler
	auth    *Authenticator
	version string
	logger  *slog.Logger
}

// ServerOption configures the Server.
type ServerOption func(*Server)

// WithMetricsHandler mounts h at /metrics.
func WithMetricsHandler(h http.Handler) ServerOption {
	return func(s *Server) {
		s.metrics = h
	}
}

// WithAuthenticator requires a bearer token on /documents and /ws.
func WithAuthenticator(a *Authenticator) ServerOption {
	return func(s *Server) {
		s.auth = a
	}
}

// WithVersion sets the version reported by /info.
func WithVersion(v string) ServerOption {
	return func(s *Server) {
		s.version = v
	}
}

// WithServerLogger sets a structured logger.
func WithServerLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewHandler creates the HTTP handler for an authority.
func NewHandler(authority Authority, opts ...ServerOption) http.Handler {
	s := &Server{
		Authority: authority,
		version:   "dev",
		logger:    logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.Streams = NewStreamManager(s.logger)

	r := chi.NewRouter()
	r.Get("/health", s.GetHealth)
	r.Get("/info", s.GetInfo)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}
	r.Group(func(r chi.Router) {
		if s.auth != nil {
			r.Use(s.auth.Middleware)
		}
		r.Method(http.MethodGet, ws.Path, ws.NewHandler(s, ws.WithLogger(s.logger)))
		r.Route("/documents", func(r chi.Router) {
			r.Get("/", s.ListDocuments)
			r.Route("/{documentID}", func(r chi.Router) {
				r.Get("/", s.GetDocument)
				r.Put("/", s.PutDocument)
				r.Delete("/", s.DeleteDocument)
				r.Post("/transactions", s.SubmitTransaction)
				r.Get("/events", s.SubscribeEvents)
			})
		})
	})
	return enableCORS(r)
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// GetHealth handles GET /health.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetInfo handles GET /info.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"app":     "scenesync-authority",
		"version": s.version,
	})
}

// ListDocuments handles GET /documents.
func (s *Server) ListDocuments(w http.ResponseWriter, r *http.Request) {
	ids, err := s.Authority.List(r.Context())
	if err != nil {
		s.fail(w, "list documents", err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	s.writeJSON(w, http.StatusOK, ids)
}

// GetDocument handles GET /documents/{id}.
func (s *Server) GetDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "documentID")
	snapshot, err := s.Authority.Load(r.Context(), id)
	if err != nil {
		s.fail(w, "load document", err)
		return
	}
	s.writeJSON(w, http.StatusOK, snapshot)
}

// PutDocument handles PUT /documents/{id}.
func (s *Server) PutDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "documentID")
	var snapshot domain.DocumentSnapshot
	if err := json.NewDecoder(r.Body).Decode(&snapshot); err != nil {
		s.badRequest(w, "invalid request body", err)
		return
	}
	if snapshot.ID == "" {
		snapshot.ID = id
	}
	if snapshot.ID != id {
		s.badRequest(w, "document id does not match path", nil)
		return
	}
	if err := s.Authority.Put(r.Context(), &snapshot); err != nil {
		s.fail(w, "put document", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeleteDocument handles DELETE /documents/{id}.
func (s *Server) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	if err := s.Authority.Delete(r.Context(), chi.URLParam(r, "documentID")); err != nil {
		s.fail(w, "delete document", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SubmitTransaction handles POST /documents/{id}/transactions.
// Declined batches are answered with 200 and success false.
func (s *Server) SubmitTransaction(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "documentID")
	var batch wire.Batch
	if err := json.NewDecoder(r.Body).Decode(&batch); err != nil {
		s.badRequest(w, "invalid request body", err)
		return
	}
	if batch.DocumentID == "" {
		batch.DocumentID = id
	}
	if batch.DocumentID != id {
		s.badRequest(w, "document id does not match path", nil)
		return
	}

	resp, err := s.Send(r.Context(), batch)
	if err != nil {
		s.fail(w, "submit transaction", err)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// Send forwards batch to the authority and broadcasts it to event
// subscribers when accepted. Both HTTP and WebSocket submissions go through here.
func (s *Server) Send(ctx context.Context, batch wire.Batch) (*wire.Response, error) {
	resp, err := s.Authority.Send(ctx, batch)
	if err != nil {
		return nil, err
	}
	if resp.Success {
		if payload, err := json.Marshal(batch); err == nil {
			s.Streams.Broadcast(batch.DocumentID, string(payload))
		}
	}
	return resp, nil
}

// SubscribeEvents handles GET /documents/{id}/events (SSE).
// Each event carries an accepted batch.
func (s *Server) SubscribeEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}
	id := chi.URLParam(r, "documentID")

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch, cancel := s.Streams.Subscribe(id)
	defer cancel()
	s.logger.Info("SSE: client subscribed", "document_id", id)

	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			s.logger.Info("SSE: client disconnected", "document_id", id)
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			fmt.Fprintf(w, "event: batch\ndata: %s\n\n", msg)
			flusher.Flush()
		}
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("response encode failed", "err", err)
	}
}

func (s *Server) badRequest(w http.ResponseWriter, msg string, err error) {
	if err != nil {
		s.logger.Warn(msg, "err", err)
		msg = fmt.Sprintf("%s: %v", msg, err)
	}
	http.Error(w, msg, http.StatusBadRequest)
}

func (s *Server) fail(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, domain.ErrDocumentNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, domain.ErrInvalidAction), errors.Is(err, domain.ErrParseError), errors.Is(err, domain.ErrTypeMismatch):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, domain.ErrReadOnly):
		http.Error(w, err.Error(), http.StatusMethodNotAllowed)
	default:
		s.logger.Error(op+" failed", "err", err)
		http.Error(w, fmt.Sprintf("%s: %v", op, err), http.StatusInternalServerError)
	}
}
