// Package memory provides an in-process vector index with brute-force
// cosine similarity. It backs the "memory" vector backend and service tests.
package memory

import (
	"context"
	"fmt"
	"math"
	"slices"
	"sort"
	"sync"

	"github.com/custodia-labs/docsync/internal/core/domain"
	"github.com/custodia-labs/docsync/internal/core/ports/driven"
)

// Ensure Index implements the interface.
var _ driven.VectorIndexGateway = (*Index)(nil)

// Index is an in-memory VectorIndexGateway.
type Index struct {
	mu          sync.RWMutex
	dimensions  int
	collections map[string]map[string]domain.Point
	closed      bool
}

// New creates an empty index. A positive dimensions value makes upserts
// reject vectors of any other length.
func New(dimensions int) *Index {
	return &Index{
		dimensions:  dimensions,
		collections: make(map[string]map[string]domain.Point),
	}
}

// EnsureCollection creates the collection if it does not exist.
func (x *Index) EnsureCollection(_ context.Context, collectionID string) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.closed {
		return fmt.Errorf("%w: index closed", domain.ErrIndexUnavailable)
	}
	if _, ok := x.collections[collectionID]; !ok {
		x.collections[collectionID] = make(map[string]domain.Point)
	}
	return nil
}

// UpsertCollection writes points keyed by ID.
func (x *Index) UpsertCollection(ctx context.Context, collectionID string, points []domain.Point) error {
	if err := x.EnsureCollection(ctx, collectionID); err != nil {
		return err
	}
	x.mu.Lock()
	defer x.mu.Unlock()
	col := x.collections[collectionID]
	for i := range points {
		p := points[i]
		if x.dimensions > 0 && len(p.Vector) != x.dimensions {
			return fmt.Errorf("%w: point %s has %d dimensions, want %d",
				domain.ErrInvalidInput, p.ID, len(p.Vector), x.dimensions)
		}
		p.Vector = slices.Clone(p.Vector)
		p.Payload.TitleChain = slices.Clone(p.Payload.TitleChain)
		col[p.ID] = p
	}
	return nil
}

// Search returns the nearest points by cosine similarity.
func (x *Index) Search(_ context.Context, collectionID string, req domain.SearchRequest) ([]domain.SearchResult, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	if x.closed {
		return nil, fmt.Errorf("%w: index closed", domain.ErrIndexUnavailable)
	}

	col := x.collections[collectionID]
	results := make([]domain.SearchResult, 0, len(col))
	for id := range col {
		p := col[id]
		if !req.Filter.Matches(p.Payload) {
			continue
		}
		results = append(results, domain.SearchResult{
			PointID:      p.ID,
			Content:      p.Payload.Content,
			Score:        cosine(req.Vector, p.Vector),
			DocumentID:   p.Payload.DocumentID,
			CollectionID: p.Payload.CollectionID,
			ChunkIndex:   p.Payload.ChunkIndex,
			TitleChain:   slices.Clone(p.Payload.TitleChain),
		})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score == results[j].Score {
			return results[i].PointID < results[j].PointID
		}
		return results[i].Score > results[j].Score
	})
	if limit := req.EffectiveLimit(); len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// DeletePointsByDoc removes every point of a document.
func (x *Index) DeletePointsByDoc(_ context.Context, collectionID, documentID string) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	col := x.collections[collectionID]
	for id := range col {
		if col[id].Payload.DocumentID == documentID {
			delete(col, id)
		}
	}
	return nil
}

// DeletePointsByCollection drops the whole collection.
func (x *Index) DeletePointsByCollection(_ context.Context, collectionID string) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	delete(x.collections, collectionID)
	return nil
}

// DeletePoints removes points by ID.
func (x *Index) DeletePoints(_ context.Context, collectionID string, pointIDs []string) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	col := x.collections[collectionID]
	for _, id := range pointIDs {
		delete(col, id)
	}
	return nil
}

// GetAllPointIDsInCollection lists every point ID in the collection, sorted.
func (x *Index) GetAllPointIDsInCollection(_ context.Context, collectionID string) ([]string, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	col := x.collections[collectionID]
	ids := make([]string, 0, len(col))
	for id := range col {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// Point returns a stored point, for inspection in tests and tooling.
func (x *Index) Point(collectionID, pointID string) (domain.Point, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	p, ok := x.collections[collectionID][pointID]
	return p, ok
}

// HasCollection reports whether the collection exists.
func (x *Index) HasCollection(collectionID string) bool {
	x.mu.RLock()
	defer x.mu.RUnlock()
	_, ok := x.collections[collectionID]
	return ok
}

// Close marks the index closed; later reads and writes fail.
func (x *Index) Close() error {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.closed = true
	return nil
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
