// Package idgen provides transaction id generators.
package idgen

import (
	"crypto/rand"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// ULID generates lexically sortable, collision resistant ids.
// Safe for concurrent use.
type ULID struct {
	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
}

// NewULID creates a ULID generator seeded from crypto/rand.
func NewULID() *ULID {
	return &ULID{entropy: ulid.Monotonic(rand.Reader, 0)}
}

// NewID returns a new ULID string.
func (g *ULID) NewID() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), g.entropy).String()
}

// UUID generates random (version 4) UUIDs.
type UUID struct{}

// NewUUID creates a UUID generator.
func NewUUID() UUID { return UUID{} }

// NewID returns a new UUID string.
func (UUID) NewID() string { return uuid.NewString() }

// Sequence generates deterministic ids ("<prefix>-1", "<prefix>-2", ...). Intended for tests.
type Sequence struct {
	Prefix string
	n      atomic.Uint64
}

// NewSequence creates a sequence generator.
func NewSequence(prefix string) *Sequence {
	return &Sequence{Prefix: prefix}
}

// NewID returns the next id in the sequence.
func (s *Sequence) NewID() string {
	return fmt.Sprintf("%s-%d", s.Prefix, s.n.Add(1))
}
