package ports

import (
	"context"

	"github.com/aretw0/scenesync/pkg/domain"
)

// SnapshotSource is a read-only provider of document snapshots (e.g. seed documents).
type SnapshotSource interface {
	// Load retrieves the snapshot for a document.
	// Returns domain.ErrDocumentNotFound if the document does not exist.
	Load(ctx context.Context, documentID string) (*domain.DocumentSnapshot, error)
}

// SnapshotStore persists document snapshots on the authority side.
type SnapshotStore interface {
	SnapshotSource

	// Save persists the snapshot under snapshot.ID.
	Save(ctx context.Context, snapshot *domain.DocumentSnapshot) error

	// Delete removes the document.
	Delete(ctx context.Context, documentID string) error

	// List returns the stored document ids.
	List(ctx context.Context) ([]string, error)
}
