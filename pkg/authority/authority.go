// Package authority is the authoritative side of the protocol: it owns the
// persisted document snapshots and decides whether each submitted batch is
// accepted.
//
// Batches are applied strictly. Every action runs against a scratch copy of
// the document; the first failing action declines the whole batch and nothing
// is persisted.
package authority

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/scenesync/internal/logging"
	"github.com/aretw0/scenesync/pkg/adapters/memory"
	"github.com/aretw0/scenesync/pkg/domain"
	"github.com/aretw0/scenesync/pkg/ports"
	"github.com/aretw0/scenesync/pkg/txn"
	"github.com/aretw0/scenesync/pkg/wire"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

const (
	// DefaultLockTTL bounds how long a distributed document lock is held.
	DefaultLockTTL = 10 * time.Second
	// DefaultReplayWindow is the number of applied transaction ids remembered per document.
	DefaultReplayWindow = 256
)

// Authority applies batches to stored snapshots.
// It implements ports.Transport and ports.DocumentLoader, so a document.Manager
// can use it in-process.
type Authority struct {
	store        ports.SnapshotStore
	seed         ports.SnapshotSource
	locker       ports.DistributedLocker
	lockTTL      time.Duration
	replayWindow int
	hooks        domain.TransactionHooks
	logger       *slog.Logger

	mu     sync.Mutex // protects locks and recent
	locks  map[string]*lockEntry
	recent map[string]*orderedmap.OrderedMap[string, wire.Response]
}

// Option configures the Authority.
type Option func(*Authority)

// WithLocker coordinates writes across authority replicas.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(a *Authority) {
		a.locker = locker
	}
}

// WithLockTTL sets the distributed lock TTL.
func WithLockTTL(ttl time.Duration) Option {
	return func(a *Authority) {
		if ttl > 0 {
			a.lockTTL = ttl
		}
	}
}

// WithSeed sets a read-only source consulted when a document is not in the store.
// Seeded documents are copied into the store on first load.
func WithSeed(seed ports.SnapshotSource) Option {
	return func(a *Authority) {
		a.seed = seed
	}
}

// WithReplayWindow sets how many applied transaction ids are remembered per document.
func WithReplayWindow(n int) Option {
	return func(a *Authority) {
		if n > 0 {
			a.replayWindow = n
		}
	}
}

// WithHooks registers hooks fired when a batch is accepted (EventCommitted)
// or declined (EventFailed).
func WithHooks(hooks domain.TransactionHooks) Option {
	return func(a *Authority) {
		a.hooks = a.hooks.Merge(hooks)
	}
}

// WithLogger sets a structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Authority) {
		a.logger = logger
	}
}

// New creates an Authority persisting to store.
func New(store ports.SnapshotStore, opts ...Option) *Authority {
	a := &Authority{
		store:        store,
		lockTTL:      DefaultLockTTL,
		replayWindow: DefaultReplayWindow,
		logger:       logging.NewNop(),
		locks:        make(map[string]*lockEntry),
		recent:       make(map[string]*orderedmap.OrderedMap[string, wire.Response]),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Load returns the current snapshot of a document, falling back to the seed source.
func (a *Authority) Load(ctx context.Context, documentID string) (*domain.DocumentSnapshot, error) {
	snapshot, err := a.store.Load(ctx, documentID)
	if err == nil || !errors.Is(err, domain.ErrDocumentNotFound) || a.seed == nil {
		return snapshot, err
	}

	snapshot, err = a.seed.Load(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if err := a.store.Save(ctx, snapshot); err != nil {
		return nil, fmt.Errorf("persist seeded document %s: %w", documentID, err)
	}
	a.logger.InfoContext(ctx, "document seeded", "document_id", documentID, "version", snapshot.Version)
	return snapshot, nil
}

// Put creates or replaces a document.
func (a *Authority) Put(ctx context.Context, snapshot *domain.DocumentSnapshot) error {
	if err := snapshot.Validate(); err != nil {
		return err
	}
	unlock, err := a.lock(ctx, snapshot.ID)
	if err != nil {
		return err
	}
	defer unlock()

	a.forget(snapshot.ID)
	return a.store.Save(ctx, snapshot)
}

// Delete removes a document.
func (a *Authority) Delete(ctx context.Context, documentID string) error {
	unlock, err := a.lock(ctx, documentID)
	if err != nil {
		return err
	}
	defer unlock()

	a.forget(documentID)
	return a.store.Delete(ctx, documentID)
}

// List returns the ids of stored documents.
func (a *Authority) List(ctx context.Context) ([]string, error) {
	return a.store.List(ctx)
}

// Send applies batch to its document. Application failures come back as a
// Response with Success false; errors are reserved for storage and locking
// failures. A transaction id that was already applied is answered with the
// original response without applying it again.
func (a *Authority) Send(ctx context.Context, batch wire.Batch) (*wire.Response, error) {
	if batch.TransactionID == "" || batch.DocumentID == "" {
		return a.decline(ctx, batch, fmt.Errorf("%w: batch without transaction or document id", domain.ErrInvalidAction)), nil
	}

	unlock, err := a.lock(ctx, batch.DocumentID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	if resp, ok := a.replayed(batch); ok {
		a.logger.InfoContext(ctx, "replayed transaction answered from memory",
			"document_id", batch.DocumentID, "txn_id", batch.TransactionID)
		return &resp, nil
	}

	snapshot, err := a.Load(ctx, batch.DocumentID)
	if errors.Is(err, domain.ErrDocumentNotFound) {
		return a.decline(ctx, batch, err), nil
	}
	if err != nil {
		return nil, fmt.Errorf("load document %s: %w", batch.DocumentID, err)
	}

	next, err := a.apply(snapshot, batch)
	if err != nil {
		return a.decline(ctx, batch, err), nil
	}
	if err := a.store.Save(ctx, next); err != nil {
		return nil, fmt.Errorf("save document %s: %w", batch.DocumentID, err)
	}

	resp := wire.Response{Success: true, Version: next.Version}
	a.remember(batch, resp)
	a.logger.DebugContext(ctx, "batch accepted",
		"document_id", batch.DocumentID,
		"txn_id", batch.TransactionID,
		"version", next.Version,
	)
	a.hooks.Emit(ctx, &domain.TransactionEvent{
		Type:          domain.EventCommitted,
		DocumentID:    batch.DocumentID,
		TransactionID: batch.TransactionID,
		Actions:       len(batch.Actions),
	})
	return &resp, nil
}

// apply runs the batch against a scratch tree built from snapshot.
func (a *Authority) apply(snapshot *domain.DocumentSnapshot, batch wire.Batch) (*domain.DocumentSnapshot, error) {
	actions, err := wire.Decode(batch.Actions)
	if err != nil {
		return nil, err
	}
	tree, err := memory.Build(snapshot)
	if err != nil {
		return nil, fmt.Errorf("build tree: %w", err)
	}
	var strategy txn.Strategy
	for i, action := range actions {
		if err := strategy.Apply(tree, action, nil); err != nil {
			return nil, fmt.Errorf("action %d: %w", i, err)
		}
	}
	return tree.Snapshot(snapshot.ID, snapshot.Version+1)
}

func (a *Authority) decline(ctx context.Context, batch wire.Batch, err error) *wire.Response {
	a.logger.InfoContext(ctx, "batch declined",
		"document_id", batch.DocumentID,
		"txn_id", batch.TransactionID,
		"err", err,
	)
	a.hooks.Emit(ctx, &domain.TransactionEvent{
		Type:          domain.EventFailed,
		DocumentID:    batch.DocumentID,
		TransactionID: batch.TransactionID,
		Actions:       len(batch.Actions),
		Err:           err,
	})
	return &wire.Response{Success: false, Error: err.Error()}
}

// lockEntry is a per-document mutex shared by the writers currently using it.
type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// lock serializes writers of one document in this process and, when a
// locker is configured, across replicas. The returned func releases both.
func (a *Authority) lock(ctx context.Context, documentID string) (func(), error) {
	entry := a.acquire(documentID)
	entry.mu.Lock()
	unlock := func() {
		entry.mu.Unlock()
		a.release(documentID)
	}
	if a.locker == nil {
		return unlock, nil
	}

	release, err := a.locker.Lock(ctx, "doc:"+documentID, a.lockTTL)
	if err != nil {
		unlock()
		return nil, fmt.Errorf("lock document %s: %w", documentID, err)
	}
	return func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			a.logger.WarnContext(ctx, "release document lock", "document_id", documentID, "err", err)
		}
		unlock()
	}, nil
}

// acquire gets or creates the lock entry of documentID and takes a reference.
func (a *Authority) acquire(documentID string) *lockEntry {
	a.mu.Lock()
	defer a.mu.Unlock()
	entry, ok := a.locks[documentID]
	if !ok {
		entry = &lockEntry{}
		a.locks[documentID] = entry
	}
	entry.refs++
	return entry
}

// release drops a reference and deletes the entry once nobody holds it.
func (a *Authority) release(documentID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	entry, ok := a.locks[documentID]
	if !ok {
		return
	}
	entry.refs--
	if entry.refs <= 0 {
		delete(a.locks, documentID)
	}
}

func (a *Authority) replayed(batch wire.Batch) (wire.Response, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	ids, ok := a.recent[batch.DocumentID]
	if !ok {
		return wire.Response{}, false
	}
	return ids.Get(batch.TransactionID)
}

func (a *Authority) remember(batch wire.Batch, resp wire.Response) {
	a.mu.Lock()
	defer a.mu.Unlock()
	ids, ok := a.recent[batch.DocumentID]
	if !ok {
		ids = orderedmap.New[string, wire.Response]()
		a.recent[batch.DocumentID] = ids
	}
	ids.Set(batch.TransactionID, resp)
	for ids.Len() > a.replayWindow {
		ids.Delete(ids.Oldest().Key)
	}
}

func (a *Authority) forget(documentID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.recent, documentID)
}
