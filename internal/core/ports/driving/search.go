package driving

import (
	"context"

	"github.com/custodia-labs/docsync/internal/core/domain"
)

// SearchService provides similarity search to external actors.
type SearchService interface {
	// Search queries a collection with a precomputed vector.
	Search(ctx context.Context, collectionID string, vector []float32, limit int, filter *domain.SearchFilter) ([]domain.SearchResult, error)

	// SearchText embeds query and searches a collection with it.
	SearchText(ctx context.Context, collectionID, query string, limit int, filter *domain.SearchFilter) ([]domain.SearchResult, error)
}
