package document

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/aretw0/scenesync/internal/logging"
	"github.com/aretw0/scenesync/pkg/adapters/memory"
	"github.com/aretw0/scenesync/pkg/domain"
	"github.com/aretw0/scenesync/pkg/idgen"
	"github.com/aretw0/scenesync/pkg/ports"
	"github.com/aretw0/scenesync/pkg/txn"
	"github.com/aretw0/scenesync/pkg/wire"
	"golang.org/x/sync/singleflight"
)

// DefaultSendTimeout bounds a single submission to the authority.
const DefaultSendTimeout = 30 * time.Second

// Outcome is the final result of a submitted transaction.
type Outcome struct {
	TransactionID string
	Response      *wire.Response
	Err           error
}

// Manager orchestrates document sessions and the submission of transactions.
// Safe for concurrent use.
type Manager struct {
	transport   ports.Transport
	loader      ports.DocumentLoader
	newTree     ports.TreeFactory
	ids         ports.IDGenerator
	storeOpts   []txn.Option
	hooks       domain.TransactionHooks
	logger      *slog.Logger
	sendTimeout time.Duration

	mu       sync.Mutex // protects sessions, loads and loadSeq
	sessions map[string]*session
	loads    map[string]*loadOp
	loadSeq  uint64
	group    singleflight.Group
}

// Option configures the Manager.
type Option func(*Manager)

// WithLogger configures a logger for the Manager and its stores.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithHooks registers lifecycle hooks on every store the Manager creates.
func WithHooks(hooks domain.TransactionHooks) Option {
	return func(m *Manager) {
		m.hooks = m.hooks.Merge(hooks)
	}
}

// WithCapacity bounds the pending records of each document.
func WithCapacity(n int) Option {
	return func(m *Manager) {
		m.storeOpts = append(m.storeOpts, txn.WithCapacity(n))
	}
}

// WithEvictionPolicy selects what stores do with records pushed out at capacity.
func WithEvictionPolicy(p txn.EvictionPolicy) Option {
	return func(m *Manager) {
		m.storeOpts = append(m.storeOpts, txn.WithEvictionPolicy(p))
	}
}

// WithIDGenerator injects the transaction id source.
func WithIDGenerator(ids ports.IDGenerator) Option {
	return func(m *Manager) {
		m.ids = ids
	}
}

// WithTreeFactory replaces the in-memory tree with another tree collaborator.
func WithTreeFactory(f ports.TreeFactory) Option {
	return func(m *Manager) {
		m.newTree = f
	}
}

// WithSendTimeout bounds each submission. Zero disables the timeout.
func WithSendTimeout(d time.Duration) Option {
	return func(m *Manager) {
		m.sendTimeout = d
	}
}

// NewManager creates a Manager submitting through transport and loading documents through loader.
func NewManager(transport ports.Transport, loader ports.DocumentLoader, opts ...Option) *Manager {
	m := &Manager{
		transport:   transport,
		loader:      loader,
		newTree:     memory.FromSnapshot,
		ids:         idgen.NewULID(),
		logger:      logging.NewNop(),
		sendTimeout: DefaultSendTimeout,
		sessions:    make(map[string]*session),
		loads:       make(map[string]*loadOp),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// NewTransaction starts a transaction for documentID with a fresh id.
func (m *Manager) NewTransaction(documentID string) *domain.Builder {
	return domain.NewBuilder(m.ids.NewID(), documentID)
}

// TrackDocument starts loading documentID unless it is already tracked or loading.
// The returned channel yields nil once the document is ready, or the load error.
// Concurrent calls for the same id share one load.
func (m *Manager) TrackDocument(documentID string) <-chan error {
	done := make(chan error, 1)

	m.mu.Lock()
	if _, ok := m.sessions[documentID]; ok {
		m.mu.Unlock()
		done <- nil
		close(done)
		return done
	}
	op, loading := m.loads[documentID]
	if !loading {
		m.loadSeq++
		ctx, cancel := context.WithCancel(context.Background())
		op = &loadOp{
			key:    fmt.Sprintf("%s#%d", documentID, m.loadSeq),
			ctx:    ctx,
			cancel: cancel,
		}
		m.loads[documentID] = op
	}
	// Joined under m.mu: load removes op from m.loads under the same lock
	// before returning, so a visible op always has its call in flight.
	res := m.group.DoChan(op.key, func() (any, error) {
		return nil, m.load(op, documentID)
	})
	m.mu.Unlock()

	go func() {
		r := <-res
		done <- r.Err
		close(done)
	}()
	return done
}

// load fetches the snapshot and installs the session, unless the document was
// untracked in the meantime.
func (m *Manager) load(op *loadOp, documentID string) error {
	m.mu.Lock()
	_, tracked := m.sessions[documentID]
	if tracked && m.loads[documentID] == op {
		delete(m.loads, documentID)
	}
	m.mu.Unlock()
	if tracked {
		op.cancel()
		return nil
	}

	m.logger.Debug("loading document", "document_id", documentID)
	snapshot, err := m.loader.Load(op.ctx, documentID)
	if err == nil {
		err = m.install(op, documentID, snapshot)
	}
	aborted := op.ctx.Err() != nil
	op.cancel()
	if err == nil {
		return nil
	}

	m.mu.Lock()
	if m.loads[documentID] == op {
		delete(m.loads, documentID)
	}
	m.mu.Unlock()

	if aborted || errors.Is(err, domain.ErrUntrackedDocument) {
		return fmt.Errorf("%w: %s: load aborted", domain.ErrUntrackedDocument, documentID)
	}
	m.logger.Warn("document load failed", "document_id", documentID, "err", err)
	return fmt.Errorf("load document %s: %w", documentID, err)
}

func (m *Manager) install(op *loadOp, documentID string, snapshot *domain.DocumentSnapshot) error {
	tree, err := m.newTree(snapshot)
	if err != nil {
		return fmt.Errorf("build tree: %w", err)
	}
	opts := append([]txn.Option{
		txn.WithLogger(m.logger.With("document_id", documentID)),
		txn.WithHooks(m.hooks),
	}, m.storeOpts...)
	sess := newSession(documentID, tree, txn.NewStore(tree, opts...), snapshot.Version)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loads[documentID] != op {
		sess.cancel()
		return fmt.Errorf("%w: %s: load aborted", domain.ErrUntrackedDocument, documentID)
	}
	delete(m.loads, documentID)
	m.sessions[documentID] = sess
	m.logger.Info("document tracked", "document_id", documentID, "version", snapshot.Version)
	return nil
}

// UntrackDocument aborts a pending load and releases the document's session.
// Transactions in flight resolve with domain.ErrUntrackedDocument and their
// precommitted changes are rolled back.
func (m *Manager) UntrackDocument(documentID string) {
	m.mu.Lock()
	if op, ok := m.loads[documentID]; ok {
		op.cancel()
		delete(m.loads, documentID)
	}
	sess, ok := m.sessions[documentID]
	delete(m.sessions, documentID)
	m.mu.Unlock()

	if ok {
		sess.close(context.Background())
		m.logger.Info("document untracked", "document_id", documentID)
	}
}

// Close untracks every document.
func (m *Manager) Close() {
	m.mu.Lock()
	ids := make([]string, 0, len(m.sessions)+len(m.loads))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	for id := range m.loads {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	for _, id := range ids {
		m.UntrackDocument(id)
	}
}

// IsTracked reports whether documentID has a live session.
func (m *Manager) IsTracked(documentID string) bool {
	return m.session(documentID) != nil
}

// Documents returns the tracked document ids in lexical order.
func (m *Manager) Documents() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// View runs fn with the document's tree while holding its session lock.
// fn must not retain the tree.
func (m *Manager) View(documentID string, fn func(tree ports.Tree) error) error {
	sess := m.session(documentID)
	if sess == nil {
		return fmt.Errorf("%w: %s", domain.ErrUntrackedDocument, documentID)
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.closed {
		return fmt.Errorf("%w: %s", domain.ErrUntrackedDocument, documentID)
	}
	return fn(sess.tree)
}

// Pending returns the unresolved transaction ids of a document, oldest first.
func (m *Manager) Pending(documentID string) ([]string, error) {
	var ids []string
	err := m.withSession(documentID, func(sess *session) {
		ids = sess.store.Pending()
	})
	return ids, err
}

// Version returns the last authority version observed for a document.
func (m *Manager) Version(documentID string) (int64, error) {
	var v int64
	err := m.withSession(documentID, func(sess *session) {
		v = sess.version
	})
	return v, err
}

// Request precommits txn when possible and submits it to the authority.
// Errors returned directly mean nothing was sent and the tree is unchanged.
// Otherwise the channel yields exactly one Outcome once the authority answers,
// after the store has committed or rolled back.
func (m *Manager) Request(ctx context.Context, t *domain.Transaction) (<-chan Outcome, error) {
	if t == nil {
		return nil, fmt.Errorf("%w: nil transaction", domain.ErrInvalidAction)
	}
	sess := m.session(t.DocumentID())
	if sess == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrUntrackedDocument, t.DocumentID())
	}
	batch, err := wire.NewBatch(t)
	if err != nil {
		return nil, fmt.Errorf("encode transaction %s: %w", t.ID(), err)
	}

	sess.mu.Lock()
	if sess.closed {
		sess.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", domain.ErrUntrackedDocument, t.DocumentID())
	}
	if err := sess.store.Request(ctx, t); err != nil {
		sess.mu.Unlock()
		return nil, err
	}
	sess.mu.Unlock()

	out := make(chan Outcome, 1)
	go m.submit(ctx, sess, t, batch, out)
	return out, nil
}

func (m *Manager) submit(ctx context.Context, sess *session, t *domain.Transaction, batch wire.Batch, out chan<- Outcome) {
	defer close(out)

	var sendCtx context.Context
	var cancel context.CancelFunc
	if m.sendTimeout > 0 {
		sendCtx, cancel = context.WithTimeout(sess.ctx, m.sendTimeout)
	} else {
		sendCtx, cancel = context.WithCancel(sess.ctx)
	}
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	resp, err := m.transport.Send(sendCtx, batch)
	out <- m.resolve(context.WithoutCancel(ctx), sess, t, resp, err)
}

// resolve commits or rolls back t according to the authority's answer.
func (m *Manager) resolve(ctx context.Context, sess *session, t *domain.Transaction, resp *wire.Response, sendErr error) Outcome {
	sess.mu.Lock()
	defer sess.mu.Unlock()

	outcome := Outcome{TransactionID: t.ID(), Response: resp}
	log := m.logger.With("document_id", t.DocumentID(), "txn_id", t.ID())

	if sess.closed || sess.ctx.Err() != nil {
		outcome.Err = fmt.Errorf("%w: %s untracked while transaction was in flight", domain.ErrUntrackedDocument, t.DocumentID())
		return outcome
	}

	switch {
	case sendErr != nil:
		log.WarnContext(ctx, "transport failed, rolling back", "err", sendErr)
		m.rollback(ctx, sess, t)
		outcome.Err = fmt.Errorf("%w: %w", domain.ErrTransportError, sendErr)
	case resp == nil || !resp.Success:
		reason := "no response"
		if resp != nil {
			reason = resp.Error
		}
		log.InfoContext(ctx, "authority declined, rolling back", "reason", reason)
		m.rollback(ctx, sess, t)
		outcome.Err = fmt.Errorf("%w: %s", domain.ErrApplicationDeclined, reason)
	default:
		if resp.Version > sess.version {
			sess.version = resp.Version
		}
		if err := sess.store.Commit(ctx, t.ID()); err != nil && !errors.Is(err, domain.ErrTransactionNotFound) {
			log.ErrorContext(ctx, "confirmed transaction failed to apply locally", "err", err)
			outcome.Err = fmt.Errorf("apply confirmed transaction %s: %w", t.ID(), err)
		}
	}
	return outcome
}

func (m *Manager) rollback(ctx context.Context, sess *session, t *domain.Transaction) {
	if err := sess.store.Rollback(ctx, t.ID()); err != nil {
		m.logger.WarnContext(ctx, "rollback skipped", "document_id", t.DocumentID(), "txn_id", t.ID(), "err", err)
	}
}

func (m *Manager) session(documentID string) *session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions[documentID]
}

func (m *Manager) withSession(documentID string, fn func(*session)) error {
	sess := m.session(documentID)
	if sess == nil {
		return fmt.Errorf("%w: %s", domain.ErrUntrackedDocument, documentID)
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.closed {
		return fmt.Errorf("%w: %s", domain.ErrUntrackedDocument, documentID)
	}
	fn(sess)
	return nil
}
