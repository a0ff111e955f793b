package http

import (
	"log/slog"
	"sync"
)

// StreamManager fans accepted batches out to the SSE subscribers of a document.
type StreamManager struct {
	logger *slog.Logger

	mu          sync.RWMutex
	subscribers map[string]map[chan<- string]struct{} // document id -> set of channels
}

func NewStreamManager(logger *slog.Logger) *StreamManager {
	return &StreamManager{
		logger:      logger,
		subscribers: make(map[string]map[chan<- string]struct{}),
	}
}

// Subscribe registers a buffered channel for documentID. The returned
// function unsubscribes and closes the channel.
func (sm *StreamManager) Subscribe(documentID string) (chan string, func()) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	ch := make(chan string, 10)
	if _, ok := sm.subscribers[documentID]; !ok {
		sm.subscribers[documentID] = make(map[chan<- string]struct{})
	}
	sm.subscribers[documentID][ch] = struct{}{}

	return ch, func() {
		sm.mu.Lock()
		defer sm.mu.Unlock()
		if subs, ok := sm.subscribers[documentID]; ok {
			if _, live := subs[ch]; !live {
				return
			}
			delete(subs, ch)
			close(ch)
			if len(subs) == 0 {
				delete(sm.subscribers, documentID)
			}
		}
	}
}

// Broadcast delivers msg to every subscriber of documentID without blocking.
func (sm *StreamManager) Broadcast(documentID string, msg string) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	for ch := range sm.subscribers[documentID] {
		select {
		case ch <- msg:
		default:
			// Slow client.
			sm.logger.Warn("SSE: client buffer full, dropping message", "document_id", documentID)
		}
	}
}
