package driving

import (
	"context"

	"github.com/custodia-labs/docsync/internal/core/domain"
)

// IngestionService manages collections and single-document ingestion.
type IngestionService interface {
	// CreateCollection creates a collection with a unique name.
	// A duplicate name returns domain.ErrConflict.
	CreateCollection(ctx context.Context, name string) (*domain.Collection, error)

	// ListCollections returns all collections.
	ListCollections(ctx context.Context) ([]domain.Collection, error)

	// ResolveCollection finds a collection by ID or by name.
	ResolveCollection(ctx context.Context, ref string) (*domain.Collection, error)

	// SubmitDocument parses upload, stores the document and drives it
	// through the sync state machine. An upload whose Key matches an
	// existing document in the collection replaces that document's content.
	// The returned document reflects the final state even when err is set.
	SubmitDocument(ctx context.Context, collectionID string, upload domain.RawUpload) (*domain.Document, error)

	// ResyncDocument re-drives a document through the state machine,
	// resuming from the chunks that are already current.
	ResyncDocument(ctx context.Context, documentID string) (*domain.Document, error)

	// GetDocument retrieves a document by ID.
	GetDocument(ctx context.Context, documentID string) (*domain.Document, error)

	// ListDocuments returns all documents of a collection.
	ListDocuments(ctx context.Context, collectionID string) ([]domain.Document, error)

	// GetChunks returns the chunks of a document ordered by index.
	GetChunks(ctx context.Context, documentID string) ([]domain.Chunk, error)

	// UpdateDocument applies a metadata patch.
	UpdateDocument(ctx context.Context, documentID string, patch domain.DocumentPatch) (*domain.Document, error)

	// DeleteDocument removes a document's points, then its rows.
	DeleteDocument(ctx context.Context, documentID string) error

	// DeleteCollection removes a collection's points, then its rows.
	DeleteCollection(ctx context.Context, collectionID string) error
}
