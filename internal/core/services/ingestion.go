package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/docsync/internal/core/domain"
	"github.com/custodia-labs/docsync/internal/core/ports/driven"
	"github.com/custodia-labs/docsync/internal/core/ports/driving"
	"github.com/custodia-labs/docsync/internal/logger"
)

// Ensure IngestionService implements the interface.
var _ driving.IngestionService = (*IngestionService)(nil)

// IngestionService manages collections and drives single documents
// through parsing and the sync state machine.
type IngestionService struct {
	collections driven.CollectionStore
	documents   driven.DocumentStore
	parser      driven.DocumentParser
	index       driven.VectorIndexGateway
	queue       *SyncJobQueue
	machine     *SyncStateMachine
}

// NewIngestionService creates an ingestion service.
func NewIngestionService(
	collections driven.CollectionStore,
	documents driven.DocumentStore,
	parser driven.DocumentParser,
	index driven.VectorIndexGateway,
	queue *SyncJobQueue,
	machine *SyncStateMachine,
) *IngestionService {
	return &IngestionService{
		collections: collections,
		documents:   documents,
		parser:      parser,
		index:       index,
		queue:       queue,
		machine:     machine,
	}
}

// CreateCollection creates a collection with a unique name.
func (s *IngestionService) CreateCollection(ctx context.Context, name string) (*domain.Collection, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: collection name is required", domain.ErrInvalidInput)
	}

	if _, err := s.collections.GetCollectionByName(ctx, name); err == nil {
		return nil, fmt.Errorf("%w: collection %q already exists", domain.ErrConflict, name)
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("get collection: %w", err)
	}

	now := time.Now().UTC()
	col := &domain.Collection{
		ID:        uuid.NewString(),
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.collections.SaveCollection(ctx, col); err != nil {
		return nil, fmt.Errorf("save collection: %w", err)
	}
	logger.Info("Created collection %s (%s)", col.Name, col.ID)
	return col, nil
}

// ListCollections returns all collections.
func (s *IngestionService) ListCollections(ctx context.Context) ([]domain.Collection, error) {
	return s.collections.ListCollections(ctx)
}

// ResolveCollection finds a collection by ID, falling back to its name.
func (s *IngestionService) ResolveCollection(ctx context.Context, ref string) (*domain.Collection, error) {
	col, err := s.collections.GetCollection(ctx, ref)
	if err == nil {
		return col, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	col, err = s.collections.GetCollectionByName(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("collection %q: %w", ref, err)
	}
	return col, nil
}

// SubmitDocument parses the upload and syncs the resulting document.
//
// A new document whose bytes cannot be parsed is kept in the dead state so
// the failure stays queryable. An upload whose Key names an existing
// document replaces that document's text; the state machine then
// re-embeds only the chunks that changed and removes the ones that vanished.
func (s *IngestionService) SubmitDocument(ctx context.Context, collectionID string, upload domain.RawUpload) (*domain.Document, error) {
	// 1. VALIDATE
	if upload.Name == "" {
		upload.Name = upload.Key
	}
	if upload.Name == "" {
		return nil, fmt.Errorf("%w: document name is required", domain.ErrInvalidInput)
	}
	if _, err := s.collections.GetCollection(ctx, collectionID); err != nil {
		return nil, fmt.Errorf("get collection: %w", err)
	}

	var existing *domain.Document
	if upload.Key != "" {
		doc, err := s.documents.GetDocumentByKey(ctx, collectionID, upload.Key)
		switch {
		case err == nil:
			existing = doc
		case !errors.Is(err, domain.ErrNotFound):
			return nil, fmt.Errorf("get document by key: %w", err)
		}
	}

	// 2. PARSE
	text, parseErr := s.parser.ExtractText(ctx, upload.Content, upload.MIMEType)
	if parseErr != nil && existing != nil {
		return existing, fmt.Errorf("parse %s: %w", upload.Name, parseErr)
	}

	doc := existing
	if doc == nil {
		now := time.Now().UTC()
		doc = &domain.Document{
			ID:           uuid.NewString(),
			CollectionID: collectionID,
			Status:       domain.DocumentNew,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
	}

	if parseErr != nil {
		fillDocument(doc, upload, "")
		doc.SetStatus(domain.DocumentDead, parseErr.Error())
		if err := s.documents.SaveDocument(ctx, doc); err != nil {
			return nil, fmt.Errorf("save document: %w", err)
		}
		return doc, fmt.Errorf("parse %s: %w", upload.Name, parseErr)
	}

	// 3. SYNC
	return s.withJob(ctx, doc.ID, collectionID, func(job *domain.SyncJob) (*domain.Document, error) {
		fillDocument(doc, upload, text)
		if err := s.documents.SaveDocument(ctx, doc); err != nil {
			return doc, fmt.Errorf("save document: %w", err)
		}
		return s.machine.RunJob(ctx, job)
	})
}

func fillDocument(doc *domain.Document, upload domain.RawUpload, text string) {
	doc.Name = upload.Name
	doc.Key = upload.Key
	doc.MIMEType = upload.MIMEType
	doc.SizeBytes = int64(len(upload.Content))
	doc.Content = text
	doc.ContentHash = domain.ContentHash(text)
	doc.UpdatedAt = time.Now().UTC()
}

// ResyncDocument re-drives a document through the state machine.
func (s *IngestionService) ResyncDocument(ctx context.Context, documentID string) (*domain.Document, error) {
	doc, err := s.documents.GetDocument(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("get document: %w", err)
	}
	return s.withJob(ctx, doc.ID, doc.CollectionID, func(job *domain.SyncJob) (*domain.Document, error) {
		return s.machine.RunJob(ctx, job)
	})
}

// withJob acquires the document's sync job, runs fn while holding it and
// releases it with fn's outcome.
func (s *IngestionService) withJob(
	ctx context.Context,
	documentID, collectionID string,
	fn func(job *domain.SyncJob) (*domain.Document, error),
) (*domain.Document, error) {
	job, err := s.queue.Acquire(ctx, documentID, collectionID)
	if err != nil {
		return nil, err
	}
	if err := s.queue.Start(ctx, job); err != nil {
		s.queue.Release(ctx, job, err)
		return nil, fmt.Errorf("start job: %w", err)
	}

	doc, runErr := fn(job)
	s.queue.Release(ctx, job, runErr)
	return doc, runErr
}

// GetDocument retrieves a document by ID.
func (s *IngestionService) GetDocument(ctx context.Context, documentID string) (*domain.Document, error) {
	return s.documents.GetDocument(ctx, documentID)
}

// ListDocuments returns all documents of a collection.
func (s *IngestionService) ListDocuments(ctx context.Context, collectionID string) ([]domain.Document, error) {
	if _, err := s.collections.GetCollection(ctx, collectionID); err != nil {
		return nil, fmt.Errorf("get collection: %w", err)
	}
	return s.documents.ListDocuments(ctx, collectionID)
}

// GetChunks returns the chunks of a document.
func (s *IngestionService) GetChunks(ctx context.Context, documentID string) ([]domain.Chunk, error) {
	if _, err := s.documents.GetDocument(ctx, documentID); err != nil {
		return nil, err
	}
	return s.documents.GetChunks(ctx, documentID)
}

// UpdateDocument applies a metadata patch while no sync runs on the document.
func (s *IngestionService) UpdateDocument(ctx context.Context, documentID string, patch domain.DocumentPatch) (*domain.Document, error) {
	if patch.IsEmpty() {
		return nil, fmt.Errorf("%w: empty patch", domain.ErrInvalidInput)
	}
	if patch.Name != nil && strings.TrimSpace(*patch.Name) == "" {
		return nil, fmt.Errorf("%w: document name cannot be blank", domain.ErrInvalidInput)
	}

	var updated *domain.Document
	err := s.queue.Exclusive(ctx, documentID, func() error {
		doc, err := s.documents.GetDocument(ctx, documentID)
		if err != nil {
			return err
		}
		if patch.Key != nil && *patch.Key != "" && *patch.Key != doc.Key {
			other, err := s.documents.GetDocumentByKey(ctx, doc.CollectionID, *patch.Key)
			if err == nil && other.ID != doc.ID {
				return fmt.Errorf("%w: key %q is used by document %s", domain.ErrConflict, *patch.Key, other.ID)
			}
		}
		patch.Apply(doc)
		if err := s.documents.SaveDocument(ctx, doc); err != nil {
			return fmt.Errorf("save document: %w", err)
		}
		updated = doc
		return nil
	})
	return updated, err
}

// DeleteDocument removes a document's points, then its chunk and document rows.
func (s *IngestionService) DeleteDocument(ctx context.Context, documentID string) error {
	return s.queue.Exclusive(ctx, documentID, func() error {
		doc, err := s.documents.GetDocument(ctx, documentID)
		if err != nil {
			return err
		}
		if err := s.index.DeletePointsByDoc(ctx, doc.CollectionID, doc.ID); err != nil {
			return fmt.Errorf("delete points: %w", err)
		}
		if err := s.documents.DeleteDocument(ctx, doc.ID); err != nil {
			return fmt.Errorf("delete document: %w", err)
		}
		logger.Info("Deleted document %s", doc.ID)
		return nil
	})
}

// DeleteCollection removes a collection's points, then all of its rows.
// It fails with ErrConflict while any of its documents is syncing.
func (s *IngestionService) DeleteCollection(ctx context.Context, collectionID string) error {
	col, err := s.collections.GetCollection(ctx, collectionID)
	if err != nil {
		return err
	}

	docs, err := s.documents.ListDocuments(ctx, col.ID)
	if err != nil {
		return fmt.Errorf("list documents: %w", err)
	}
	for i := range docs {
		if s.queue.IsActive(docs[i].ID) {
			return fmt.Errorf("%w: document %s: %w", domain.ErrConflict, docs[i].ID, domain.ErrSyncInProgress)
		}
	}

	if err := s.index.DeletePointsByCollection(ctx, col.ID); err != nil {
		return fmt.Errorf("delete collection points: %w", err)
	}
	if err := s.collections.DeleteCollection(ctx, col.ID); err != nil {
		return fmt.Errorf("delete collection: %w", err)
	}
	logger.Info("Deleted collection %s with %d documents", col.Name, len(docs))
	return nil
}
