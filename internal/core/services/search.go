package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/custodia-labs/docsync/internal/core/domain"
	"github.com/custodia-labs/docsync/internal/core/ports/driven"
	"github.com/custodia-labs/docsync/internal/core/ports/driving"
)

// Ensure SearchService implements the interface.
var _ driving.SearchService = (*SearchService)(nil)

// SearchService answers similarity queries against one collection.
type SearchService struct {
	collections driven.CollectionStore
	index       driven.VectorIndexGateway
	embedder    driven.EmbeddingProvider // optional, required for SearchText
}

// NewSearchService creates a new search service.
func NewSearchService(
	collections driven.CollectionStore,
	index driven.VectorIndexGateway,
	embedder driven.EmbeddingProvider,
) *SearchService {
	return &SearchService{
		collections: collections,
		index:       index,
		embedder:    embedder,
	}
}

// Search queries a collection with a precomputed vector.
func (s *SearchService) Search(
	ctx context.Context,
	collectionID string,
	vector []float32,
	limit int,
	filter *domain.SearchFilter,
) ([]domain.SearchResult, error) {
	if len(vector) == 0 {
		return nil, fmt.Errorf("%w: empty query vector", domain.ErrInvalidInput)
	}
	if _, err := s.collections.GetCollection(ctx, collectionID); err != nil {
		return nil, fmt.Errorf("search collection %s: %w", collectionID, err)
	}

	results, err := s.index.Search(ctx, collectionID, domain.SearchRequest{
		Vector: vector,
		Limit:  limit,
		Filter: filter,
	})
	if err != nil {
		return nil, fmt.Errorf("search collection %s: %w", collectionID, err)
	}
	return results, nil
}

// SearchText embeds query and searches a collection with it.
func (s *SearchService) SearchText(
	ctx context.Context,
	collectionID, query string,
	limit int,
	filter *domain.SearchFilter,
) ([]domain.SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: empty query", domain.ErrInvalidInput)
	}
	if s.embedder == nil {
		return nil, fmt.Errorf("%w: no embedding provider configured", domain.ErrInvalidInput)
	}

	vector, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	return s.Search(ctx, collectionID, vector, limit, filter)
}
