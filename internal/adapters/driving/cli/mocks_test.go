package cli

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/custodia-labs/docsync/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/docsync/internal/core/domain"
	"github.com/custodia-labs/docsync/internal/core/ports/driving"
	"github.com/custodia-labs/docsync/internal/core/services"
)

var testTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// mockIngestionService is an in-memory driving.IngestionService.
type mockIngestionService struct {
	mu          sync.Mutex
	collections []domain.Collection
	documents   []domain.Document
	chunks      []domain.Chunk
	err         error
	submitErr   error

	uploads []domain.RawUpload
	deleted []string
	patches []domain.DocumentPatch
}

func newMockIngestionService() *mockIngestionService {
	return &mockIngestionService{
		collections: []domain.Collection{{ID: "col-1", Name: "docs", CreatedAt: testTime, UpdatedAt: testTime}},
		documents: []domain.Document{{
			ID:           "doc-1",
			CollectionID: "col-1",
			Name:         "guide.md",
			Key:          "guides/guide.md",
			MIMEType:     "text/markdown",
			SizeBytes:    42,
			Content:      "# Guide\n\nInstall it.",
			Status:       domain.DocumentSynced,
			CreatedAt:    testTime,
			UpdatedAt:    testTime,
		}},
		chunks: []domain.Chunk{
			{DocumentID: "doc-1", Index: 0, Status: domain.ChunkSynced},
			{DocumentID: "doc-1", Index: 1, Status: domain.ChunkFailed},
		},
	}
}

func (m *mockIngestionService) CreateCollection(_ context.Context, name string) (*domain.Collection, error) {
	if m.err != nil {
		return nil, m.err
	}
	col := domain.Collection{ID: "col-new", Name: name, CreatedAt: testTime}
	m.mu.Lock()
	m.collections = append(m.collections, col)
	m.mu.Unlock()
	return &col, nil
}

func (m *mockIngestionService) ListCollections(_ context.Context) ([]domain.Collection, error) {
	return m.collections, m.err
}

func (m *mockIngestionService) ResolveCollection(_ context.Context, ref string) (*domain.Collection, error) {
	for i := range m.collections {
		if m.collections[i].ID == ref || m.collections[i].Name == ref {
			return &m.collections[i], nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *mockIngestionService) SubmitDocument(_ context.Context, collectionID string, upload domain.RawUpload) (*domain.Document, error) {
	m.mu.Lock()
	m.uploads = append(m.uploads, upload)
	m.mu.Unlock()
	if m.submitErr != nil && !errors.Is(m.submitErr, domain.ErrParse) {
		return nil, m.submitErr
	}
	doc := &domain.Document{ID: "doc-new", CollectionID: collectionID, Name: upload.Name, Key: upload.Key, Status: domain.DocumentSynced}
	if m.submitErr != nil {
		doc.SetStatus(domain.DocumentDead, "parse error: bad input")
	}
	return doc, m.submitErr
}

func (m *mockIngestionService) ResyncDocument(ctx context.Context, documentID string) (*domain.Document, error) {
	return m.GetDocument(ctx, documentID)
}

func (m *mockIngestionService) GetDocument(_ context.Context, documentID string) (*domain.Document, error) {
	for i := range m.documents {
		if m.documents[i].ID == documentID {
			doc := m.documents[i]
			return &doc, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *mockIngestionService) ListDocuments(_ context.Context, collectionID string) ([]domain.Document, error) {
	if m.err != nil {
		return nil, m.err
	}
	var docs []domain.Document
	for _, d := range m.documents {
		if d.CollectionID == collectionID {
			docs = append(docs, d)
		}
	}
	return docs, nil
}

func (m *mockIngestionService) GetChunks(_ context.Context, documentID string) ([]domain.Chunk, error) {
	var out []domain.Chunk
	for _, c := range m.chunks {
		if c.DocumentID == documentID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *mockIngestionService) UpdateDocument(ctx context.Context, documentID string, patch domain.DocumentPatch) (*domain.Document, error) {
	doc, err := m.GetDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}
	m.patches = append(m.patches, patch)
	patch.Apply(doc)
	return doc, nil
}

func (m *mockIngestionService) DeleteDocument(ctx context.Context, documentID string) error {
	if _, err := m.GetDocument(ctx, documentID); err != nil {
		return err
	}
	m.mu.Lock()
	m.deleted = append(m.deleted, documentID)
	m.mu.Unlock()
	return nil
}

func (m *mockIngestionService) DeleteCollection(_ context.Context, collectionID string) error {
	m.deleted = append(m.deleted, collectionID)
	return m.err
}

// mockSearchService returns canned results and records the last call.
type mockSearchService struct {
	results []domain.SearchResult
	err     error

	gotCollection string
	gotQuery      string
	gotLimit      int
	gotFilter     *domain.SearchFilter
}

func (m *mockSearchService) Search(_ context.Context, _ string, _ []float32, _ int, _ *domain.SearchFilter) ([]domain.SearchResult, error) {
	return m.results, m.err
}

func (m *mockSearchService) SearchText(_ context.Context, collectionID, query string, limit int, filter *domain.SearchFilter) ([]domain.SearchResult, error) {
	m.gotCollection, m.gotQuery, m.gotLimit, m.gotFilter = collectionID, query, limit, filter
	return m.results, m.err
}

// mockBatchService finishes every batch immediately with a canned result.
type mockBatchService struct {
	mu       sync.Mutex
	snapshot *domain.ProgressSnapshot
	history  []domain.BatchRecord
	err      error

	uploads   []domain.RawUpload
	deleteReq domain.BatchDeleteRequest
	syncIDs   []string
	opts      driving.BatchRunOptions
	cancelled []string
}

func completedSnapshot(kind domain.BatchKind, results ...domain.BatchItemResult) *domain.ProgressSnapshot {
	res := domain.NewBatchOperationResult(results)
	status := domain.BatchCompleted
	if res.Failed > 0 {
		status = domain.BatchCompletedWithErrors
	}
	return &domain.ProgressSnapshot{
		BatchID:     "batch-1",
		Kind:        kind,
		Total:       res.Total,
		Processed:   res.Total,
		Successful:  res.Successful,
		Failed:      res.Failed,
		Percentage:  100,
		Status:      status,
		StartedAt:   testTime,
		CompletedAt: testTime.Add(time.Second),
		Result:      res,
	}
}

func (m *mockBatchService) BatchUpload(_ context.Context, _ string, _ []domain.RawUpload, _ driving.BatchRunOptions) (*domain.BatchOperationResult, error) {
	return m.snapshot.Result, m.err
}

func (m *mockBatchService) BatchDelete(_ context.Context, _ domain.BatchDeleteRequest, _ driving.BatchRunOptions) (*domain.BatchOperationResult, error) {
	return m.snapshot.Result, m.err
}

func (m *mockBatchService) BatchSync(_ context.Context, _ []string, _ driving.BatchRunOptions) (*domain.BatchOperationResult, error) {
	return m.snapshot.Result, m.err
}

func (m *mockBatchService) BatchUpdate(_ context.Context, _ []domain.DocumentUpdate, _ driving.BatchRunOptions) (*domain.BatchOperationResult, error) {
	return m.snapshot.Result, m.err
}

func (m *mockBatchService) StartBatchUpload(_ context.Context, _ string, uploads []domain.RawUpload, opts driving.BatchRunOptions) (string, error) {
	m.uploads, m.opts = uploads, opts
	return "batch-1", m.err
}

func (m *mockBatchService) StartBatchDelete(_ context.Context, req domain.BatchDeleteRequest, opts driving.BatchRunOptions) (string, error) {
	m.deleteReq, m.opts = req, opts
	return "batch-1", m.err
}

func (m *mockBatchService) StartBatchSync(_ context.Context, ids []string, opts driving.BatchRunOptions) (string, error) {
	m.syncIDs, m.opts = ids, opts
	return "batch-1", m.err
}

func (m *mockBatchService) GetBatchProgress(_ context.Context, batchID string) (*domain.ProgressSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.snapshot == nil || m.snapshot.BatchID != batchID {
		return nil, domain.ErrNotFound
	}
	snap := *m.snapshot
	return &snap, nil
}

func (m *mockBatchService) CancelBatch(_ context.Context, batchID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cancelled = append(m.cancelled, batchID)
	return nil
}

func (m *mockBatchService) ListBatchHistory(_ context.Context, _ int) ([]domain.BatchRecord, error) {
	return m.history, m.err
}

// mockReconcileService returns canned reports.
type mockReconcileService struct {
	reports []domain.ReconcileReport
	err     error
	got     []string
}

func (m *mockReconcileService) Reconcile(_ context.Context, collectionID string) (domain.ReconcileReport, error) {
	m.got = append(m.got, collectionID)
	for _, r := range m.reports {
		if r.CollectionID == collectionID {
			return r, m.err
		}
	}
	return domain.ReconcileReport{CollectionID: collectionID}, m.err
}

func (m *mockReconcileService) ReconcileAll(_ context.Context) ([]domain.ReconcileReport, error) {
	return m.reports, m.err
}

// testServices exposes the mocks installed by setupTestServices.
type testServices struct {
	ingestion *mockIngestionService
	search    *mockSearchService
	batch     *mockBatchService
	reconcile *mockReconcileService
	settings  *services.SettingsService
}

var currentTestServices *testServices

// setupTestServices installs mocks and returns a function restoring the globals.
func setupTestServices() func() {
	ts := &testServices{
		ingestion: newMockIngestionService(),
		search: &mockSearchService{results: []domain.SearchResult{{
			PointID:    domain.PointID("doc-1", 0),
			DocumentID: "doc-1",
			ChunkIndex: 0,
			Score:      0.87,
			Content:    "Install   it\nwith the installer.",
			TitleChain: []string{"Guide", "Install"},
		}}},
		batch: &mockBatchService{
			snapshot: completedSnapshot(domain.BatchSync, domain.BatchItemResult{ID: "doc-1", Success: true}),
		},
		reconcile: &mockReconcileService{reports: []domain.ReconcileReport{
			{CollectionID: "col-1", IndexPoints: 5, KnownChunks: 4, OrphansDeleted: 1},
		}},
		settings: services.NewSettingsService(memory.NewConfigStore()),
	}
	currentTestServices = ts

	oldInterval := pollInterval
	pollInterval = time.Millisecond

	SetServices(&Services{
		Ingestion: ts.ingestion,
		Batch:     ts.batch,
		Search:    ts.search,
		Settings:  ts.settings,
		Reconcile: ts.reconcile,
	})

	return func() {
		pollInterval = oldInterval
		currentTestServices = nil
		SetServices(nil)
	}
}
