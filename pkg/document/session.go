package document

import (
	"context"
	"sync"

	"github.com/aretw0/scenesync/pkg/ports"
	"github.com/aretw0/scenesync/pkg/txn"
)

// session owns the tree and transaction store of one tracked document.
type session struct {
	id string

	mu      sync.Mutex // protects the fields below
	tree    ports.Tree
	store   *txn.Store
	version int64
	closed  bool

	// ctx is cancelled when the document is untracked, aborting in-flight sends.
	ctx    context.Context
	cancel context.CancelFunc
}

func newSession(id string, tree ports.Tree, store *txn.Store, version int64) *session {
	ctx, cancel := context.WithCancel(context.Background())
	return &session{
		id:      id,
		tree:    tree,
		store:   store,
		version: version,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// close fails everything in flight: sends are cancelled and pending records rolled back.
func (s *session) close(ctx context.Context) {
	s.cancel()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.store.RollbackAll(ctx)
}

// loadOp is an in-progress document load.
type loadOp struct {
	key    string
	ctx    context.Context
	cancel context.CancelFunc
}
