package tui

import (
	"context"
	"sync"

	"github.com/custodia-labs/docsync/internal/core/domain"
	"github.com/custodia-labs/docsync/internal/core/ports/driving"
)

// MockBatchService serves a fixed snapshot and records cancel calls.
type MockBatchService struct {
	mu        sync.Mutex
	snapshot  *domain.ProgressSnapshot
	err       error
	cancelErr error
	cancelled []string
}

func (m *MockBatchService) BatchUpload(_ context.Context, _ string, _ []domain.RawUpload, _ driving.BatchRunOptions) (*domain.BatchOperationResult, error) {
	return nil, nil
}

func (m *MockBatchService) BatchDelete(_ context.Context, _ domain.BatchDeleteRequest, _ driving.BatchRunOptions) (*domain.BatchOperationResult, error) {
	return nil, nil
}

func (m *MockBatchService) BatchSync(_ context.Context, _ []string, _ driving.BatchRunOptions) (*domain.BatchOperationResult, error) {
	return nil, nil
}

func (m *MockBatchService) BatchUpdate(_ context.Context, _ []domain.DocumentUpdate, _ driving.BatchRunOptions) (*domain.BatchOperationResult, error) {
	return nil, nil
}

func (m *MockBatchService) StartBatchUpload(_ context.Context, _ string, _ []domain.RawUpload, _ driving.BatchRunOptions) (string, error) {
	return "", nil
}

func (m *MockBatchService) StartBatchDelete(_ context.Context, _ domain.BatchDeleteRequest, _ driving.BatchRunOptions) (string, error) {
	return "", nil
}

func (m *MockBatchService) StartBatchSync(_ context.Context, _ []string, _ driving.BatchRunOptions) (string, error) {
	return "", nil
}

func (m *MockBatchService) GetBatchProgress(_ context.Context, _ string) (*domain.ProgressSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshot, m.err
}

func (m *MockBatchService) CancelBatch(_ context.Context, batchID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cancelled = append(m.cancelled, batchID)
	return m.cancelErr
}

func (m *MockBatchService) ListBatchHistory(_ context.Context, _ int) ([]domain.BatchRecord, error) {
	return nil, nil
}
