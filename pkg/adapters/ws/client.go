package ws

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/aretw0/scenesync/pkg/domain"
	"github.com/aretw0/scenesync/pkg/ports"
	"github.com/aretw0/scenesync/pkg/wire"
	"github.com/gorilla/websocket"
)

// Transport implements ports.Transport over one WebSocket connection.
// Concurrent Sends share the connection and resolve independently.
type Transport struct {
	conn    *websocket.Conn
	writeMu sync.Mutex

	mu      sync.Mutex
	pending map[string]chan Reply
	err     error
	done    chan struct{}
}

var _ ports.Transport = (*Transport)(nil)

// Dial connects to a WebSocket endpoint such as the one returned by URL.
func Dial(ctx context.Context, endpoint string, header http.Header) (*Transport, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, endpoint, header)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", endpoint, err)
	}
	t := &Transport{
		conn:    conn,
		pending: make(map[string]chan Reply),
		done:    make(chan struct{}),
	}
	go t.readLoop()
	return t, nil
}

// Send writes the batch and waits for its reply.
// Failing to deliver and a server-side error both surface as errors.
func (t *Transport) Send(ctx context.Context, batch wire.Batch) (*wire.Response, error) {
	ch := make(chan Reply, 1)

	t.mu.Lock()
	if t.err != nil {
		err := t.err
		t.mu.Unlock()
		return nil, err
	}
	if _, dup := t.pending[batch.TransactionID]; dup {
		t.mu.Unlock()
		return nil, fmt.Errorf("%w: %s already in flight", domain.ErrDuplicateTransaction, batch.TransactionID)
	}
	t.pending[batch.TransactionID] = ch
	t.mu.Unlock()

	t.writeMu.Lock()
	err := t.conn.WriteJSON(Request{Batch: batch})
	t.writeMu.Unlock()
	if err != nil {
		t.forget(batch.TransactionID)
		return nil, fmt.Errorf("write batch %s: %w", batch.TransactionID, err)
	}

	select {
	case reply := <-ch:
		return replyResult(reply)
	case <-t.done:
		select {
		case reply := <-ch:
			return replyResult(reply)
		default:
		}
		t.mu.Lock()
		defer t.mu.Unlock()
		return nil, t.err
	case <-ctx.Done():
		t.forget(batch.TransactionID)
		return nil, ctx.Err()
	}
}

func replyResult(reply Reply) (*wire.Response, error) {
	if reply.Error != "" {
		return nil, errors.New(reply.Error)
	}
	if reply.Response == nil {
		return nil, fmt.Errorf("empty reply for %s", reply.TransactionID)
	}
	return reply.Response, nil
}

// Close closes the connection and fails every waiting Send.
func (t *Transport) Close() error {
	t.writeMu.Lock()
	_ = t.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	t.writeMu.Unlock()
	err := t.conn.Close()
	<-t.done
	return err
}

func (t *Transport) forget(txnID string) {
	t.mu.Lock()
	delete(t.pending, txnID)
	t.mu.Unlock()
}

func (t *Transport) readLoop() {
	defer close(t.done)
	for {
		var reply Reply
		if err := t.conn.ReadJSON(&reply); err != nil {
			t.fail(err)
			return
		}
		t.mu.Lock()
		ch, ok := t.pending[reply.TransactionID]
		delete(t.pending, reply.TransactionID)
		t.mu.Unlock()
		if ok {
			ch <- reply
		}
	}
}

// fail records the connection error. Waiters observe it once done is closed.
func (t *Transport) fail(cause error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.err = fmt.Errorf("%w: %v", ErrClosed, cause)
	clear(t.pending)
}
