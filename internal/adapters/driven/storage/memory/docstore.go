package memory

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"

	"github.com/custodia-labs/docsync/internal/core/domain"
	"github.com/custodia-labs/docsync/internal/core/ports/driven"
)

// Ensure DocumentStore implements the interfaces.
var (
	_ driven.DocumentStore   = (*DocumentStore)(nil)
	_ driven.CollectionStore = (*DocumentStore)(nil)
)

// DocumentStore is an in-memory implementation of driven.CollectionStore and
// driven.DocumentStore. Collections live in the same store so that deleting
// one cascades to its documents and chunks.
type DocumentStore struct {
	mu          sync.RWMutex
	collections map[string]domain.Collection
	documents   map[string]domain.Document
	chunks      map[string]domain.Chunk // keyed by point ID
}

// NewDocumentStore creates a new in-memory document store.
func NewDocumentStore() *DocumentStore {
	return &DocumentStore{
		collections: make(map[string]domain.Collection),
		documents:   make(map[string]domain.Document),
		chunks:      make(map[string]domain.Chunk),
	}
}

// SaveCollection creates or updates a collection.
func (s *DocumentStore) SaveCollection(_ context.Context, col *domain.Collection) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id := range s.collections {
		if id != col.ID && s.collections[id].Name == col.Name {
			return fmt.Errorf("%w: collection name %q already exists", domain.ErrConflict, col.Name)
		}
	}
	s.collections[col.ID] = *col
	return nil
}

// GetCollection retrieves a collection by ID.
func (s *DocumentStore) GetCollection(_ context.Context, id string) (*domain.Collection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	col, ok := s.collections[id]
	if !ok {
		return nil, fmt.Errorf("%w: collection %s", domain.ErrNotFound, id)
	}
	return &col, nil
}

// GetCollectionByName retrieves a collection by its unique name.
func (s *DocumentStore) GetCollectionByName(_ context.Context, name string) (*domain.Collection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for id := range s.collections {
		if s.collections[id].Name == name {
			col := s.collections[id]
			return &col, nil
		}
	}
	return nil, fmt.Errorf("%w: collection %q", domain.ErrNotFound, name)
}

// ListCollections returns all collections ordered by name.
func (s *DocumentStore) ListCollections(_ context.Context) ([]domain.Collection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]domain.Collection, 0, len(s.collections))
	for id := range s.collections {
		result = append(result, s.collections[id])
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

// DeleteCollection removes a collection with its documents and chunks.
func (s *DocumentStore) DeleteCollection(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.collections, id)
	for docID := range s.documents {
		if s.documents[docID].CollectionID == id {
			delete(s.documents, docID)
		}
	}
	for pid := range s.chunks {
		if s.chunks[pid].CollectionID == id {
			delete(s.chunks, pid)
		}
	}
	return nil
}

// SaveDocument stores or updates a document. The collection must exist.
func (s *DocumentStore) SaveDocument(_ context.Context, doc *domain.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.collections[doc.CollectionID]; !ok {
		return fmt.Errorf("%w: collection %s", domain.ErrNotFound, doc.CollectionID)
	}
	s.documents[doc.ID] = *doc
	return nil
}

// GetDocument retrieves a document by ID.
func (s *DocumentStore) GetDocument(_ context.Context, id string) (*domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.documents[id]
	if !ok {
		return nil, fmt.Errorf("%w: document %s", domain.ErrNotFound, id)
	}
	return &doc, nil
}

// GetDocumentByKey retrieves a document by its logical key within a collection.
func (s *DocumentStore) GetDocumentByKey(_ context.Context, collectionID, key string) (*domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for id := range s.documents {
		doc := s.documents[id]
		if doc.CollectionID == collectionID && doc.Key == key {
			return &doc, nil
		}
	}
	return nil, fmt.Errorf("%w: document key %q", domain.ErrNotFound, key)
}

// ListDocuments returns documents for a collection ordered by creation time.
func (s *DocumentStore) ListDocuments(_ context.Context, collectionID string) ([]domain.Document, error) {
	return s.filterDocuments(func(d *domain.Document) bool { return d.CollectionID == collectionID }), nil
}

// ListDocumentsByStatus returns documents in the given state.
func (s *DocumentStore) ListDocumentsByStatus(_ context.Context, status domain.DocumentStatus) ([]domain.Document, error) {
	return s.filterDocuments(func(d *domain.Document) bool { return d.Status == status }), nil
}

func (s *DocumentStore) filterDocuments(keep func(*domain.Document) bool) []domain.Document {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []domain.Document
	for id := range s.documents {
		doc := s.documents[id]
		if keep(&doc) {
			result = append(result, doc)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result
}

// DeleteDocument removes a document and its chunks.
func (s *DocumentStore) DeleteDocument(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.documents, id)
	for pid := range s.chunks {
		if s.chunks[pid].DocumentID == id {
			delete(s.chunks, pid)
		}
	}
	return nil
}

// SaveChunks stores or updates chunks keyed by point ID.
func (s *DocumentStore) SaveChunks(_ context.Context, chunks []domain.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range chunks {
		c := chunks[i]
		c.TitleChain = slices.Clone(c.TitleChain)
		c.Embedding = slices.Clone(c.Embedding)
		s.chunks[c.PointID] = c
	}
	return nil
}

// GetChunks retrieves all chunks for a document ordered by index.
func (s *DocumentStore) GetChunks(_ context.Context, documentID string) ([]domain.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []domain.Chunk
	for pid := range s.chunks {
		if s.chunks[pid].DocumentID == documentID {
			result = append(result, s.chunks[pid])
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Index < result[j].Index })
	return result, nil
}

// DeleteChunks removes chunks by point ID.
func (s *DocumentStore) DeleteChunks(_ context.Context, pointIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, pid := range pointIDs {
		delete(s.chunks, pid)
	}
	return nil
}

// ListChunkStatuses returns the status of every chunk in a collection.
func (s *DocumentStore) ListChunkStatuses(_ context.Context, collectionID string) (map[string]domain.ChunkStatus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make(map[string]domain.ChunkStatus)
	for pid := range s.chunks {
		if s.chunks[pid].CollectionID == collectionID {
			result[pid] = s.chunks[pid].Status
		}
	}
	return result, nil
}
