package driven

import (
	"context"

	"github.com/custodia-labs/docsync/internal/core/domain"
)

// SyncJobStore persists sync job rows.
type SyncJobStore interface {
	// SaveJob creates or updates a job.
	SaveJob(ctx context.Context, job *domain.SyncJob) error

	// GetJob retrieves a job by ID.
	GetJob(ctx context.Context, id string) (*domain.SyncJob, error)

	// GetActiveJob returns the pending or processing job for a document.
	// Returns domain.ErrNotFound if none is active.
	GetActiveJob(ctx context.Context, documentID string) (*domain.SyncJob, error)

	// ListJobs returns the jobs of a document, newest first.
	ListJobs(ctx context.Context, documentID string) ([]domain.SyncJob, error)

	// FailActiveJobs marks every active job failed with reason.
	// Used at startup to clear jobs orphaned by a crash.
	FailActiveJobs(ctx context.Context, reason string) (int, error)
}

// BatchHistoryStore persists summaries of finished batches.
type BatchHistoryStore interface {
	// SaveBatch records a batch summary.
	SaveBatch(ctx context.Context, rec *domain.BatchRecord) error

	// ListBatches returns the most recent batches, newest first.
	ListBatches(ctx context.Context, limit int) ([]domain.BatchRecord, error)
}
