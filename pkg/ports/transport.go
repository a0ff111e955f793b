package ports

import (
	"context"

	"github.com/aretw0/scenesync/pkg/domain"
	"github.com/aretw0/scenesync/pkg/wire"
)

// Transport submits batches to the authority.
type Transport interface {
	// Send delivers the batch and blocks until the authority answers or ctx ends.
	// A non-nil error is a transport failure; an answer with Success false is a decline.
	Send(ctx context.Context, batch wire.Batch) (*wire.Response, error)
}

// DocumentLoader fetches the authoritative snapshot of a document.
type DocumentLoader interface {
	// Load returns domain.ErrDocumentNotFound if the document does not exist.
	Load(ctx context.Context, documentID string) (*domain.DocumentSnapshot, error)
}

// IDGenerator produces unique transaction ids.
type IDGenerator interface {
	NewID() string
}
