package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/docsync/internal/core/domain"
	"github.com/custodia-labs/docsync/internal/core/ports/driven"
	"github.com/custodia-labs/docsync/internal/core/ports/driving"
	"github.com/custodia-labs/docsync/internal/logger"
)

// Ensure BatchService implements the interface.
var _ driving.BatchService = (*BatchService)(nil)

// BatchService parameterises RunBatch for the four bulk operation kinds
// and keeps their progress pollable.
type BatchService struct {
	ingestion   driving.IngestionService
	collections driven.CollectionStore
	documents   driven.DocumentStore
	index       driven.VectorIndexGateway
	history     driven.BatchHistoryStore
	events      driven.EventPublisher
	progress    *ProgressRegistry
	concurrency int
}

// NewBatchService creates a batch service. history and events may be nil.
func NewBatchService(
	ingestion driving.IngestionService,
	collections driven.CollectionStore,
	documents driven.DocumentStore,
	index driven.VectorIndexGateway,
	history driven.BatchHistoryStore,
	events driven.EventPublisher,
	progress *ProgressRegistry,
	concurrency int,
) *BatchService {
	if progress == nil {
		progress = NewProgressRegistry(domain.DefaultProgressGrace)
	}
	if concurrency <= 0 {
		concurrency = domain.DefaultBatchConcurrency
	}
	return &BatchService{
		ingestion:   ingestion,
		collections: collections,
		documents:   documents,
		index:       index,
		history:     history,
		events:      events,
		progress:    progress,
		concurrency: concurrency,
	}
}

func (s *BatchService) concurrencyFor(opts driving.BatchRunOptions) int {
	if opts.Concurrency > 0 {
		return opts.Concurrency
	}
	return s.concurrency
}

// BatchUpload submits every upload into one collection.
func (s *BatchService) BatchUpload(ctx context.Context, collectionID string, uploads []domain.RawUpload, opts driving.BatchRunOptions) (*domain.BatchOperationResult, error) {
	tracker, token := s.progress.Start(domain.BatchUpload, len(uploads))
	return s.runUpload(ctx, collectionID, uploads, opts, tracker, token)
}

// StartBatchUpload runs BatchUpload in the background.
func (s *BatchService) StartBatchUpload(ctx context.Context, collectionID string, uploads []domain.RawUpload, opts driving.BatchRunOptions) (string, error) {
	if _, err := s.collections.GetCollection(ctx, collectionID); err != nil {
		return "", fmt.Errorf("get collection: %w", err)
	}
	tracker, token := s.progress.Start(domain.BatchUpload, len(uploads))
	bg := context.WithoutCancel(ctx)
	go func() {
		_, _ = s.runUpload(bg, collectionID, uploads, opts, tracker, token)
	}()
	return tracker.ID(), nil
}

func (s *BatchService) runUpload(
	ctx context.Context,
	collectionID string,
	uploads []domain.RawUpload,
	opts driving.BatchRunOptions,
	tracker *ProgressTracker,
	token *CancelToken,
) (*domain.BatchOperationResult, error) {
	op := func(ctx context.Context, upload domain.RawUpload) (*uploadedDocument, error) {
		prior, err := s.priorVersion(ctx, collectionID, upload.Key)
		if err != nil {
			return nil, err
		}
		doc, err := s.ingestion.SubmitDocument(ctx, collectionID, upload)
		if err != nil {
			// A transactional batch leaves nothing behind: a new failing
			// item is removed, a replaced one gets its prior version back.
			if opts.Transactional && doc != nil {
				if revertErr := s.revertUpload(context.WithoutCancel(ctx), &uploadedDocument{docID: doc.ID, prior: prior}); revertErr != nil {
					logger.Warn("batch upload: failed to revert %s: %v", doc.ID, revertErr)
				}
			}
			return nil, err
		}
		return &uploadedDocument{docID: doc.ID, prior: prior}, nil
	}
	undo := func(ctx context.Context, _ domain.RawUpload, up *uploadedDocument) error {
		return s.revertUpload(ctx, up)
	}

	result, err := RunBatch(ctx, uploads, op, BatchOptions[domain.RawUpload, *uploadedDocument]{
		Concurrency:   s.concurrencyFor(opts),
		Transactional: opts.Transactional,
		Undo:          undo,
		Cancel:        token,
		Tracker:       tracker,
		ItemID:        func(u domain.RawUpload) string { return u.Name },
	})
	s.finish(ctx, tracker)
	return result, err
}

// BatchDelete removes documents or collections.
func (s *BatchService) BatchDelete(ctx context.Context, req domain.BatchDeleteRequest, opts driving.BatchRunOptions) (*domain.BatchOperationResult, error) {
	if err := validateDeleteRequest(req); err != nil {
		return nil, err
	}
	tracker, token := s.progress.Start(domain.BatchDelete, len(req.IDs))
	return s.runDelete(ctx, req, opts, tracker, token)
}

// StartBatchDelete runs BatchDelete in the background.
func (s *BatchService) StartBatchDelete(ctx context.Context, req domain.BatchDeleteRequest, opts driving.BatchRunOptions) (string, error) {
	if err := validateDeleteRequest(req); err != nil {
		return "", err
	}
	tracker, token := s.progress.Start(domain.BatchDelete, len(req.IDs))
	bg := context.WithoutCancel(ctx)
	go func() {
		_, _ = s.runDelete(bg, req, opts, tracker, token)
	}()
	return tracker.ID(), nil
}

func validateDeleteRequest(req domain.BatchDeleteRequest) error {
	switch req.Target {
	case domain.DeleteDocuments, domain.DeleteCollections:
		return nil
	default:
		return fmt.Errorf("%w: unknown delete target %q", domain.ErrInvalidInput, req.Target)
	}
}

func (s *BatchService) runDelete(
	ctx context.Context,
	req domain.BatchDeleteRequest,
	opts driving.BatchRunOptions,
	tracker *ProgressTracker,
	token *CancelToken,
) (*domain.BatchOperationResult, error) {
	var (
		result *domain.BatchOperationResult
		err    error
	)
	identity := func(id string) string { return id }

	if req.Target == domain.DeleteCollections {
		result, err = RunBatch(ctx, req.IDs, s.deleteCollection, BatchOptions[string, *collectionSnapshot]{
			Concurrency:   s.concurrencyFor(opts),
			Transactional: opts.Transactional,
			Undo:          s.restoreCollection,
			Cancel:        token,
			Tracker:       tracker,
			ItemID:        identity,
		})
	} else {
		result, err = RunBatch(ctx, req.IDs, s.deleteDocument, BatchOptions[string, *documentSnapshot]{
			Concurrency:   s.concurrencyFor(opts),
			Transactional: opts.Transactional,
			Undo:          s.restoreDocument,
			Cancel:        token,
			Tracker:       tracker,
			ItemID:        identity,
		})
	}
	s.finish(ctx, tracker)
	return result, err
}

// BatchSync re-drives each document through the state machine.
func (s *BatchService) BatchSync(ctx context.Context, documentIDs []string, opts driving.BatchRunOptions) (*domain.BatchOperationResult, error) {
	tracker, token := s.progress.Start(domain.BatchSync, len(documentIDs))
	return s.runSync(ctx, documentIDs, opts, tracker, token)
}

// StartBatchSync runs BatchSync in the background.
func (s *BatchService) StartBatchSync(ctx context.Context, documentIDs []string, opts driving.BatchRunOptions) (string, error) {
	tracker, token := s.progress.Start(domain.BatchSync, len(documentIDs))
	bg := context.WithoutCancel(ctx)
	go func() {
		_, _ = s.runSync(bg, documentIDs, opts, tracker, token)
	}()
	return tracker.ID(), nil
}

func (s *BatchService) runSync(
	ctx context.Context,
	documentIDs []string,
	opts driving.BatchRunOptions,
	tracker *ProgressTracker,
	token *CancelToken,
) (*domain.BatchOperationResult, error) {
	// A sync cannot be undone; a transactional resync only stops early.
	op := func(ctx context.Context, id string) (domain.DocumentStatus, error) {
		doc, err := s.ingestion.ResyncDocument(ctx, id)
		if err != nil {
			return "", err
		}
		return doc.Status, nil
	}

	result, err := RunBatch(ctx, documentIDs, op, BatchOptions[string, domain.DocumentStatus]{
		Concurrency:   s.concurrencyFor(opts),
		Transactional: opts.Transactional,
		Cancel:        token,
		Tracker:       tracker,
		ItemID:        func(id string) string { return id },
	})
	s.finish(ctx, tracker)
	return result, err
}

// BatchUpdate applies a metadata patch per document.
func (s *BatchService) BatchUpdate(ctx context.Context, updates []domain.DocumentUpdate, opts driving.BatchRunOptions) (*domain.BatchOperationResult, error) {
	tracker, token := s.progress.Start(domain.BatchUpdate, len(updates))

	op := func(ctx context.Context, u domain.DocumentUpdate) (domain.DocumentPatch, error) {
		before, err := s.ingestion.GetDocument(ctx, u.DocumentID)
		if err != nil {
			return domain.DocumentPatch{}, err
		}
		if _, err := s.ingestion.UpdateDocument(ctx, u.DocumentID, u.Patch); err != nil {
			return domain.DocumentPatch{}, err
		}
		name, key := before.Name, before.Key
		return domain.DocumentPatch{Name: &name, Key: &key}, nil
	}
	undo := func(ctx context.Context, u domain.DocumentUpdate, previous domain.DocumentPatch) error {
		_, err := s.ingestion.UpdateDocument(ctx, u.DocumentID, previous)
		return err
	}

	result, err := RunBatch(ctx, updates, op, BatchOptions[domain.DocumentUpdate, domain.DocumentPatch]{
		Concurrency:   s.concurrencyFor(opts),
		Transactional: opts.Transactional,
		Undo:          undo,
		Cancel:        token,
		Tracker:       tracker,
		ItemID:        func(u domain.DocumentUpdate) string { return u.DocumentID },
	})
	s.finish(ctx, tracker)
	return result, err
}

// GetBatchProgress returns a snapshot of a running or recently finished batch.
func (s *BatchService) GetBatchProgress(_ context.Context, batchID string) (*domain.ProgressSnapshot, error) {
	snap, err := s.progress.Get(batchID)
	if err != nil {
		return nil, err
	}
	return &snap, nil
}

// CancelBatch stops scheduling the remaining items of a batch.
func (s *BatchService) CancelBatch(_ context.Context, batchID string) error {
	return s.progress.Cancel(batchID)
}

// ListBatchHistory returns summaries of finished batches, newest first.
func (s *BatchService) ListBatchHistory(ctx context.Context, limit int) ([]domain.BatchRecord, error) {
	if s.history == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 20
	}
	return s.history.ListBatches(ctx, limit)
}

// finish records the batch summary and publishes its completion event.
func (s *BatchService) finish(ctx context.Context, tracker *ProgressTracker) {
	snap := tracker.Snapshot()
	ctx = context.WithoutCancel(ctx)

	if s.history != nil {
		rec := &domain.BatchRecord{
			ID:          snap.BatchID,
			Kind:        snap.Kind,
			Total:       snap.Total,
			Successful:  snap.Successful,
			Failed:      snap.Failed,
			Status:      snap.Status,
			Error:       snap.Error,
			StartedAt:   snap.StartedAt,
			CompletedAt: snap.CompletedAt,
		}
		if err := s.history.SaveBatch(ctx, rec); err != nil {
			logger.Warn("batch %s: failed to record history: %v", snap.BatchID, err)
		}
	}

	if s.events != nil {
		event := domain.SyncEvent{
			SchemaVersion: domain.SyncEventSchemaVersion,
			Type:          domain.EventBatchCompleted,
			EventID:       uuid.NewString(),
			EmittedAt:     time.Now().UTC(),
			BatchID:       snap.BatchID,
			Status:        string(snap.Status),
			Error:         snap.Error,
		}
		if err := s.events.Publish(ctx, event); err != nil {
			logger.Warn("batch %s: failed to publish event: %v", snap.BatchID, err)
		}
	}

	logger.Info("Batch %s (%s) %s: %d/%d succeeded",
		snap.BatchID, snap.Kind, snap.Status, snap.Successful, snap.Total)
}

// documentSnapshot is what a document delete removes, kept for compensation.
type documentSnapshot struct {
	doc    domain.Document
	chunks []domain.Chunk
}

// uploadedDocument is what one upload did. prior is set when the upload
// replaced an existing document with the same key.
type uploadedDocument struct {
	docID string
	prior *documentSnapshot
}

// priorVersion snapshots the document an upload with this key would replace.
func (s *BatchService) priorVersion(ctx context.Context, collectionID, key string) (*documentSnapshot, error) {
	if key == "" {
		return nil, nil
	}
	doc, err := s.documents.GetDocumentByKey(ctx, collectionID, key)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get document by key: %w", err)
	}
	snap, err := s.snapshotDocument(ctx, *doc)
	if err != nil {
		return nil, err
	}
	return &snap, nil
}

// revertUpload deletes what the upload left and, for a replaced document,
// writes the prior version back under the same ID.
func (s *BatchService) revertUpload(ctx context.Context, up *uploadedDocument) error {
	if err := s.ingestion.DeleteDocument(ctx, up.docID); err != nil && !errors.Is(err, domain.ErrNotFound) {
		return err
	}
	if up.prior == nil {
		return nil
	}
	return s.restoreDocument(ctx, "", up.prior)
}

// collectionSnapshot is what a collection delete removes.
type collectionSnapshot struct {
	col  domain.Collection
	docs []documentSnapshot
}

func (s *BatchService) snapshotDocument(ctx context.Context, doc domain.Document) (documentSnapshot, error) {
	chunks, err := s.documents.GetChunks(ctx, doc.ID)
	if err != nil {
		return documentSnapshot{}, fmt.Errorf("get chunks: %w", err)
	}
	return documentSnapshot{doc: doc, chunks: chunks}, nil
}

func (s *BatchService) deleteDocument(ctx context.Context, id string) (*documentSnapshot, error) {
	doc, err := s.documents.GetDocument(ctx, id)
	if err != nil {
		return nil, err
	}
	snap, err := s.snapshotDocument(ctx, *doc)
	if err != nil {
		return nil, err
	}
	if err := s.ingestion.DeleteDocument(ctx, id); err != nil {
		return nil, err
	}
	return &snap, nil
}

func (s *BatchService) deleteCollection(ctx context.Context, id string) (*collectionSnapshot, error) {
	col, err := s.collections.GetCollection(ctx, id)
	if err != nil {
		return nil, err
	}
	docs, err := s.documents.ListDocuments(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}

	snap := &collectionSnapshot{col: *col}
	for i := range docs {
		ds, err := s.snapshotDocument(ctx, docs[i])
		if err != nil {
			return nil, err
		}
		snap.docs = append(snap.docs, ds)
	}

	if err := s.ingestion.DeleteCollection(ctx, id); err != nil {
		return nil, err
	}
	return snap, nil
}

// restoreDocument writes the rows back, then the points of synced chunks.
func (s *BatchService) restoreDocument(ctx context.Context, _ string, snap *documentSnapshot) error {
	doc := snap.doc
	if err := s.documents.SaveDocument(ctx, &doc); err != nil {
		return fmt.Errorf("restore document %s: %w", doc.ID, err)
	}
	if len(snap.chunks) > 0 {
		if err := s.documents.SaveChunks(ctx, snap.chunks); err != nil {
			return fmt.Errorf("restore chunks of %s: %w", doc.ID, err)
		}
	}

	var points []domain.Point
	for i := range snap.chunks {
		if snap.chunks[i].Status == domain.ChunkSynced && len(snap.chunks[i].Embedding) > 0 {
			points = append(points, snap.chunks[i].Point())
		}
	}
	if len(points) == 0 {
		return nil
	}
	if err := s.index.UpsertCollection(ctx, doc.CollectionID, points); err != nil {
		return fmt.Errorf("restore points of %s: %w", doc.ID, err)
	}
	return nil
}

func (s *BatchService) restoreCollection(ctx context.Context, _ string, snap *collectionSnapshot) error {
	col := snap.col
	if err := s.collections.SaveCollection(ctx, &col); err != nil {
		return fmt.Errorf("restore collection %s: %w", col.ID, err)
	}
	if err := s.index.EnsureCollection(ctx, col.ID); err != nil {
		return fmt.Errorf("restore collection %s: %w", col.ID, err)
	}

	var errs []error
	for i := range snap.docs {
		if err := s.restoreDocument(ctx, "", &snap.docs[i]); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
