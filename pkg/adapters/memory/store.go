package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/aretw0/scenesync/pkg/domain"
)

// Store implements ports.SnapshotStore in memory.
// Safe for concurrent use.
type Store struct {
	data map[string]*domain.DocumentSnapshot
	mu   sync.RWMutex
}

// NewStore creates a new in-memory store.
func NewStore() *Store {
	return &Store{
		data: make(map[string]*domain.DocumentSnapshot),
	}
}

// Save persists a deep copy of the snapshot.
func (s *Store) Save(ctx context.Context, snapshot *domain.DocumentSnapshot) error {
	copied := snapshot.Clone()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[snapshot.ID] = copied
	return nil
}

// Load returns a copy so callers can't mutate store state through the pointer.
func (s *Store) Load(ctx context.Context, documentID string) (*domain.DocumentSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot, ok := s.data[documentID]
	if !ok {
		return nil, domain.ErrDocumentNotFound
	}
	return snapshot.Clone(), nil
}

// Delete removes the document.
func (s *Store) Delete(ctx context.Context, documentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, documentID)
	return nil
}

// List returns stored document ids in lexical order.
func (s *Store) List(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.data))
	for id := range s.data {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}
