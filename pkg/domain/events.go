package domain

import (
	"context"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventRequested  EventType = "requested"
	EventCommitted  EventType = "committed"
	EventRolledBack EventType = "rolled_back"
	EventEvicted    EventType = "evicted"
	EventFailed     EventType = "failed"
)

// TransactionEvent describes a transition in a transaction's lifecycle.
type TransactionEvent struct {
	Timestamp     time.Time `json:"timestamp"`
	Type          EventType `json:"type"`
	DocumentID    string    `json:"document_id"`
	TransactionID string    `json:"txn_id"`
	Actions       int       `json:"actions"`
	Precommitted  bool      `json:"precommitted"`
	Err           error     `json:"-"`
}

// TransactionHooks defines callbacks for engine observability.
// Nil callbacks are skipped.
type TransactionHooks struct {
	OnRequest  func(context.Context, *TransactionEvent)
	OnCommit   func(context.Context, *TransactionEvent)
	OnRollback func(context.Context, *TransactionEvent)
	OnEvict    func(context.Context, *TransactionEvent)
	OnFail     func(context.Context, *TransactionEvent)
}

// Emit dispatches the event to the matching callback.
func (h TransactionHooks) Emit(ctx context.Context, e *TransactionEvent) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	var fn func(context.Context, *TransactionEvent)
	switch e.Type {
	case EventRequested:
		fn = h.OnRequest
	case EventCommitted:
		fn = h.OnCommit
	case EventRolledBack:
		fn = h.OnRollback
	case EventEvicted:
		fn = h.OnEvict
	case EventFailed:
		fn = h.OnFail
	}
	if fn != nil {
		fn(ctx, e)
	}
}

// Merge returns hooks that call h first and then other.
func (h TransactionHooks) Merge(other TransactionHooks) TransactionHooks {
	chain := func(a, b func(context.Context, *TransactionEvent)) func(context.Context, *TransactionEvent) {
		if a == nil {
			return b
		}
		if b == nil {
			return a
		}
		return func(ctx context.Context, e *TransactionEvent) {
			a(ctx, e)
			b(ctx, e)
		}
	}
	return TransactionHooks{
		OnRequest:  chain(h.OnRequest, other.OnRequest),
		OnCommit:   chain(h.OnCommit, other.OnCommit),
		OnRollback: chain(h.OnRollback, other.OnRollback),
		OnEvict:    chain(h.OnEvict, other.OnEvict),
		OnFail:     chain(h.OnFail, other.OnFail),
	}
}
