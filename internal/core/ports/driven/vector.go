package driven

import (
	"context"

	"github.com/custodia-labs/docsync/internal/core/domain"
)

// VectorIndexGateway stores chunk embeddings in collection-scoped vector
// collections and answers similarity queries.
//
// Every write and delete is idempotent. Transport failures are returned
// wrapped in domain.ErrIndexUnavailable; the gateway itself never retries.
type VectorIndexGateway interface {
	// EnsureCollection creates the collection if it does not exist.
	EnsureCollection(ctx context.Context, collectionID string) error

	// UpsertCollection writes points keyed by point ID, ensuring the
	// collection first.
	UpsertCollection(ctx context.Context, collectionID string, points []domain.Point) error

	// Search returns the nearest points in descending score order.
	Search(ctx context.Context, collectionID string, req domain.SearchRequest) ([]domain.SearchResult, error)

	// DeletePointsByDoc removes every point of a document.
	DeletePointsByDoc(ctx context.Context, collectionID, documentID string) error

	// DeletePointsByCollection drops the whole collection.
	DeletePointsByCollection(ctx context.Context, collectionID string) error

	// DeletePoints removes points by ID. Unknown IDs are ignored.
	DeletePoints(ctx context.Context, collectionID string, pointIDs []string) error

	// GetAllPointIDsInCollection lists every point ID in the collection.
	// A missing collection yields an empty list.
	GetAllPointIDsInCollection(ctx context.Context, collectionID string) ([]string, error)

	// Close releases resources.
	Close() error
}
