package txn

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aretw0/scenesync/internal/logging"
	"github.com/aretw0/scenesync/pkg/domain"
	"github.com/aretw0/scenesync/pkg/ports"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// DefaultCapacity bounds the number of unresolved transactions a store remembers.
const DefaultCapacity = 1000

// EvictionPolicy decides what happens to a record pushed out of a full store.
type EvictionPolicy int

const (
	// EvictAbandon drops the oldest record and leaves its changes applied.
	EvictAbandon EvictionPolicy = iota
	// EvictRollback reverts a precommitted record before dropping it.
	EvictRollback
)

type record struct {
	txn          *domain.Transaction
	undo         []*UndoRecord
	precommitted bool
}

// Store decides between precommit and deferred application of transactions
// against one tree, and keeps the undo state of unresolved transactions.
// It is not safe for concurrent use; the owning session serializes access.
type Store struct {
	tree     ports.Tree
	strategy ActionStrategy
	capacity int
	policy   EvictionPolicy
	logger   *slog.Logger
	hooks    domain.TransactionHooks
	records  *orderedmap.OrderedMap[string, *record]
}

// Option configures the Store.
type Option func(*Store)

// WithCapacity bounds the number of pending records. Values below 1 are ignored.
func WithCapacity(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.capacity = n
		}
	}
}

// WithEvictionPolicy selects the eviction behaviour.
func WithEvictionPolicy(p EvictionPolicy) Option {
	return func(s *Store) {
		s.policy = p
	}
}

// WithLogger sets a structured logger for the store.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// WithStrategy replaces the action strategy. A nil strategy is ignored.
func WithStrategy(strategy ActionStrategy) Option {
	return func(s *Store) {
		if strategy != nil {
			s.strategy = strategy
		}
	}
}

// WithHooks registers lifecycle hooks.
func WithHooks(hooks domain.TransactionHooks) Option {
	return func(s *Store) {
		s.hooks = hooks
	}
}

// NewStore creates a store bound to tree.
func NewStore(tree ports.Tree, opts ...Option) *Store {
	s := &Store{
		tree:     tree,
		strategy: Strategy{},
		capacity: DefaultCapacity,
		logger:   logging.NewNop(),
		records:  orderedmap.New[string, *record](),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Tree returns the tree the store mutates.
func (s *Store) Tree() ports.Tree { return s.tree }

// Len returns the number of pending records.
func (s *Store) Len() int { return s.records.Len() }

// Capacity returns the record bound.
func (s *Store) Capacity() int { return s.capacity }

// Pending returns the ids of unresolved transactions, oldest first.
func (s *Store) Pending() []string {
	ids := make([]string, 0, s.records.Len())
	for p := s.records.Oldest(); p != nil; p = p.Next() {
		ids = append(ids, p.Key)
	}
	return ids
}

// IsPrecommitted reports whether id is pending and was applied speculatively.
func (s *Store) IsPrecommitted(id string) (precommitted, found bool) {
	rec, ok := s.records.Get(id)
	if !ok {
		return false, false
	}
	return rec.precommitted, true
}

// Request registers txn. Update-only batches are applied immediately; if any
// update fails, the updates already applied by this call are reverted and the
// error is returned, leaving the tree as it was. Batches with structural edits
// are stored untouched until Commit.
func (s *Store) Request(ctx context.Context, txn *domain.Transaction) error {
	if txn == nil {
		return fmt.Errorf("%w: nil transaction", domain.ErrInvalidAction)
	}
	if _, exists := s.records.Get(txn.ID()); exists {
		return fmt.Errorf("%w: %s", domain.ErrDuplicateTransaction, txn.ID())
	}

	rec := &record{txn: txn, precommitted: txn.Precommittable()}
	for i := 0; i < txn.Len(); i++ {
		if txn.Action(i).Kind() == domain.KindUpdate {
			rec.undo = append(rec.undo, &UndoRecord{})
		}
	}

	if rec.precommitted {
		for i := 0; i < txn.Len(); i++ {
			if err := s.strategy.Apply(s.tree, txn.Action(i), rec.undo[i]); err != nil {
				s.revert(ctx, txn, rec.undo[:i])
				s.logger.WarnContext(ctx, "precommit failed, batch reverted",
					"document_id", txn.DocumentID(),
					"txn_id", txn.ID(),
					"action_index", i,
					"err", err,
				)
				s.emit(ctx, domain.EventFailed, rec, err)
				return fmt.Errorf("action %d: %w", i, err)
			}
		}
	}

	s.records.Set(txn.ID(), rec)
	s.logger.DebugContext(ctx, "transaction requested",
		"document_id", txn.DocumentID(),
		"txn_id", txn.ID(),
		"precommitted", rec.precommitted,
		"pending", s.records.Len(),
	)
	s.emit(ctx, domain.EventRequested, rec, nil)
	s.evict(ctx)
	return nil
}

// Commit resolves id as accepted. Deferred batches are applied now; precommitted
// ones are left as they are. Unknown ids are logged and ignored, which is the
// normal outcome when the record was already evicted.
func (s *Store) Commit(ctx context.Context, id string) error {
	rec, ok := s.records.Delete(id)
	if !ok {
		s.logger.InfoContext(ctx, "commit for unknown transaction", "txn_id", id)
		return fmt.Errorf("%w: %s", domain.ErrTransactionNotFound, id)
	}

	var err error
	if !rec.precommitted {
		err = s.Apply(ctx, rec.txn)
	}
	s.emit(ctx, domain.EventCommitted, rec, err)
	return err
}

// Rollback resolves id as rejected, replaying its undo records newest first.
// Deferred records have nothing to undo. Unknown ids are logged and ignored.
func (s *Store) Rollback(ctx context.Context, id string) error {
	rec, ok := s.records.Delete(id)
	if !ok {
		s.logger.InfoContext(ctx, "rollback for unknown transaction", "txn_id", id)
		return fmt.Errorf("%w: %s", domain.ErrTransactionNotFound, id)
	}

	if rec.precommitted {
		s.revert(ctx, rec.txn, rec.undo)
	}
	s.emit(ctx, domain.EventRolledBack, rec, nil)
	return nil
}

// RollbackAll rolls back every pending record, newest first.
func (s *Store) RollbackAll(ctx context.Context) {
	ids := make([]string, 0, s.records.Len())
	for p := s.records.Newest(); p != nil; p = p.Prev() {
		ids = append(ids, p.Key)
	}
	for _, id := range ids {
		_ = s.Rollback(ctx, id)
	}
}

// Apply executes every action of txn in order with no undo bookkeeping.
// It stops at the first failure, logs it and returns it; earlier actions stay applied.
func (s *Store) Apply(ctx context.Context, txn *domain.Transaction) error {
	for i := 0; i < txn.Len(); i++ {
		if err := s.strategy.Apply(s.tree, txn.Action(i), nil); err != nil {
			s.logger.ErrorContext(ctx, "apply stopped at failing action",
				"document_id", txn.DocumentID(),
				"txn_id", txn.ID(),
				"action_index", i,
				"err", err,
			)
			return fmt.Errorf("action %d: %w", i, err)
		}
	}
	return nil
}

func (s *Store) revert(ctx context.Context, txn *domain.Transaction, undo []*UndoRecord) {
	for i := len(undo) - 1; i >= 0; i-- {
		if err := s.strategy.Revert(s.tree, undo[i]); err != nil {
			s.logger.ErrorContext(ctx, "undo failed, continuing",
				"document_id", txn.DocumentID(),
				"txn_id", txn.ID(),
				"action_index", i,
				"err", err,
			)
		}
	}
}

func (s *Store) evict(ctx context.Context) {
	for s.records.Len() > s.capacity {
		oldest := s.records.Oldest()
		rec := oldest.Value
		s.records.Delete(oldest.Key)

		if s.policy == EvictRollback && rec.precommitted {
			s.revert(ctx, rec.txn, rec.undo)
		}
		s.logger.WarnContext(ctx, "unresolved transaction evicted",
			"document_id", rec.txn.DocumentID(),
			"txn_id", rec.txn.ID(),
			"precommitted", rec.precommitted,
			"rolled_back", s.policy == EvictRollback && rec.precommitted,
		)
		s.emit(ctx, domain.EventEvicted, rec, nil)
	}
}

func (s *Store) emit(ctx context.Context, typ domain.EventType, rec *record, err error) {
	s.hooks.Emit(ctx, &domain.TransactionEvent{
		Type:          typ,
		DocumentID:    rec.txn.DocumentID(),
		TransactionID: rec.txn.ID(),
		Actions:       rec.txn.Len(),
		Precommitted:  rec.precommitted,
		Err:           err,
	})
}
