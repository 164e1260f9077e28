package driving

import (
	"context"

	"github.com/custodia-labs/docsync/internal/core/domain"
)

// BatchRunOptions tunes a single batch invocation.
type BatchRunOptions struct {
	// Concurrency caps parallel items. Zero uses the configured default.
	Concurrency int

	// Transactional compensates every success when any item fails.
	Transactional bool
}

// BatchService runs bulk operations over many documents or collections.
//
// The synchronous forms block until the batch finishes. The Start forms
// return a batch ID immediately; progress is polled with GetBatchProgress.
// A transactional batch that fails returns *domain.BatchRollbackError and
// no result.
type BatchService interface {
	// BatchUpload submits every upload into one collection.
	BatchUpload(ctx context.Context, collectionID string, uploads []domain.RawUpload, opts BatchRunOptions) (*domain.BatchOperationResult, error)

	// BatchDelete removes documents or collections with cascading point deletion.
	BatchDelete(ctx context.Context, req domain.BatchDeleteRequest, opts BatchRunOptions) (*domain.BatchOperationResult, error)

	// BatchSync re-drives each document through the state machine.
	BatchSync(ctx context.Context, documentIDs []string, opts BatchRunOptions) (*domain.BatchOperationResult, error)

	// BatchUpdate applies a metadata patch per document.
	BatchUpdate(ctx context.Context, updates []domain.DocumentUpdate, opts BatchRunOptions) (*domain.BatchOperationResult, error)

	// StartBatchUpload runs BatchUpload in the background.
	StartBatchUpload(ctx context.Context, collectionID string, uploads []domain.RawUpload, opts BatchRunOptions) (string, error)

	// StartBatchDelete runs BatchDelete in the background.
	StartBatchDelete(ctx context.Context, req domain.BatchDeleteRequest, opts BatchRunOptions) (string, error)

	// StartBatchSync runs BatchSync in the background.
	StartBatchSync(ctx context.Context, documentIDs []string, opts BatchRunOptions) (string, error)

	// GetBatchProgress returns a snapshot of a running or recently
	// finished batch. Unknown or expired batches return domain.ErrNotFound.
	GetBatchProgress(ctx context.Context, batchID string) (*domain.ProgressSnapshot, error)

	// CancelBatch stops scheduling the remaining items of a batch.
	CancelBatch(ctx context.Context, batchID string) error

	// ListBatchHistory returns summaries of finished batches, newest first.
	ListBatchHistory(ctx context.Context, limit int) ([]domain.BatchRecord, error)
}
