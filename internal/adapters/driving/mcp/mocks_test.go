package mcp

import (
	"context"

	"github.com/custodia-labs/docsync/internal/core/domain"
	"github.com/custodia-labs/docsync/internal/core/ports/driving"
)

// mockSearchService is a mock implementation of driving.SearchService.
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
	m.gotCollection = collectionID
	m.gotQuery = query
	m.gotLimit = limit
	m.gotFilter = filter
	return m.results, m.err
}

// mockIngestionService is a mock implementation of driving.IngestionService.
type mockIngestionService struct {
	collections []domain.Collection
	documents   []domain.Document
	chunks      []domain.Chunk
	submitted   *domain.Document
	err         error
	submitErr   error

	lastUpload domain.RawUpload
}

func (m *mockIngestionService) CreateCollection(_ context.Context, name string) (*domain.Collection, error) {
	return &domain.Collection{ID: "col-new", Name: name}, m.err
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
	m.lastUpload = upload
	if m.submitted != nil {
		m.submitted.CollectionID = collectionID
	}
	return m.submitted, m.submitErr
}

func (m *mockIngestionService) ResyncDocument(ctx context.Context, documentID string) (*domain.Document, error) {
	doc, err := m.GetDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}
	return doc, m.submitErr
}

func (m *mockIngestionService) GetDocument(_ context.Context, documentID string) (*domain.Document, error) {
	for i := range m.documents {
		if m.documents[i].ID == documentID {
			return &m.documents[i], nil
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

func (m *mockIngestionService) GetChunks(_ context.Context, _ string) ([]domain.Chunk, error) {
	return m.chunks, nil
}

func (m *mockIngestionService) UpdateDocument(ctx context.Context, documentID string, _ domain.DocumentPatch) (*domain.Document, error) {
	return m.GetDocument(ctx, documentID)
}

func (m *mockIngestionService) DeleteDocument(_ context.Context, _ string) error {
	return m.err
}

func (m *mockIngestionService) DeleteCollection(_ context.Context, _ string) error {
	return m.err
}

// mockBatchService is a mock implementation of driving.BatchService.
type mockBatchService struct {
	snapshot *domain.ProgressSnapshot
	err      error

	syncIDs  []string
	syncOpts driving.BatchRunOptions
}

func (m *mockBatchService) BatchUpload(_ context.Context, _ string, _ []domain.RawUpload, _ driving.BatchRunOptions) (*domain.BatchOperationResult, error) {
	return nil, m.err
}

func (m *mockBatchService) BatchDelete(_ context.Context, _ domain.BatchDeleteRequest, _ driving.BatchRunOptions) (*domain.BatchOperationResult, error) {
	return nil, m.err
}

func (m *mockBatchService) BatchSync(_ context.Context, _ []string, _ driving.BatchRunOptions) (*domain.BatchOperationResult, error) {
	return nil, m.err
}

func (m *mockBatchService) BatchUpdate(_ context.Context, _ []domain.DocumentUpdate, _ driving.BatchRunOptions) (*domain.BatchOperationResult, error) {
	return nil, m.err
}

func (m *mockBatchService) StartBatchUpload(_ context.Context, _ string, _ []domain.RawUpload, _ driving.BatchRunOptions) (string, error) {
	return "batch-upload", m.err
}

func (m *mockBatchService) StartBatchDelete(_ context.Context, _ domain.BatchDeleteRequest, _ driving.BatchRunOptions) (string, error) {
	return "batch-delete", m.err
}

func (m *mockBatchService) StartBatchSync(_ context.Context, ids []string, opts driving.BatchRunOptions) (string, error) {
	m.syncIDs = ids
	m.syncOpts = opts
	return "batch-sync", m.err
}

func (m *mockBatchService) GetBatchProgress(_ context.Context, _ string) (*domain.ProgressSnapshot, error) {
	return m.snapshot, m.err
}

func (m *mockBatchService) CancelBatch(_ context.Context, _ string) error {
	return m.err
}

func (m *mockBatchService) ListBatchHistory(_ context.Context, _ int) ([]domain.BatchRecord, error) {
	return nil, m.err
}

// newTestServer builds a server over the given mocks, filling nil ports.
func newTestServer(search *mockSearchService, ingestion *mockIngestionService, batch *mockBatchService) *Server {
	if search == nil {
		search = &mockSearchService{}
	}
	if ingestion == nil {
		ingestion = &mockIngestionService{}
	}
	if batch == nil {
		batch = &mockBatchService{}
	}
	server, err := NewServer(&Ports{Search: search, Ingestion: ingestion, Batch: batch})
	if err != nil {
		panic(err)
	}
	return server
}
