package driven

import (
	"context"

	"github.com/custodia-labs/docsync/internal/core/domain"
)

// CollectionStore persists collections.
type CollectionStore interface {
	// SaveCollection creates or updates a collection.
	// A name already used by another collection returns domain.ErrConflict.
	SaveCollection(ctx context.Context, col *domain.Collection) error

	// GetCollection retrieves a collection by ID.
	GetCollection(ctx context.Context, id string) (*domain.Collection, error)

	// GetCollectionByName retrieves a collection by its unique name.
	GetCollectionByName(ctx context.Context, name string) (*domain.Collection, error)

	// ListCollections returns all collections ordered by name.
	ListCollections(ctx context.Context) ([]domain.Collection, error)

	// DeleteCollection removes a collection with its documents and chunks.
	DeleteCollection(ctx context.Context, id string) error
}

// DocumentStore persists documents and chunks.
// Backed by SQLite for metadata storage.
type DocumentStore interface {
	// SaveDocument stores or updates a document.
	SaveDocument(ctx context.Context, doc *domain.Document) error

	// GetDocument retrieves a document by ID.
	GetDocument(ctx context.Context, id string) (*domain.Document, error)

	// GetDocumentByKey retrieves a document by its logical key within a collection.
	GetDocumentByKey(ctx context.Context, collectionID, key string) (*domain.Document, error)

	// ListDocuments returns documents for a collection.
	ListDocuments(ctx context.Context, collectionID string) ([]domain.Document, error)

	// ListDocumentsByStatus returns documents in the given state across
	// all collections.
	ListDocumentsByStatus(ctx context.Context, status domain.DocumentStatus) ([]domain.Document, error)

	// DeleteDocument removes a document and its chunks.
	DeleteDocument(ctx context.Context, id string) error

	// SaveChunks stores or updates chunks keyed by point ID.
	SaveChunks(ctx context.Context, chunks []domain.Chunk) error

	// GetChunks retrieves all chunks for a document ordered by index.
	GetChunks(ctx context.Context, documentID string) ([]domain.Chunk, error)

	// DeleteChunks removes chunks by point ID.
	DeleteChunks(ctx context.Context, pointIDs []string) error

	// ListChunkStatuses returns the status of every chunk in a collection
	// keyed by point ID.
	ListChunkStatuses(ctx context.Context, collectionID string) (map[string]domain.ChunkStatus, error)
}
