package domain

import "time"

// SyncJobStatus is the lifecycle state of a sync job.
type SyncJobStatus string

// Sync job states. Pending and Processing are active.
const (
	SyncJobPending    SyncJobStatus = "pending"
	SyncJobProcessing SyncJobStatus = "processing"
	SyncJobCompleted  SyncJobStatus = "completed"
	SyncJobFailed     SyncJobStatus = "failed"
)

// IsActive reports whether the job still holds its document.
func (s SyncJobStatus) IsActive() bool {
	return s == SyncJobPending || s == SyncJobProcessing
}

// SyncJob is one unit of work driving a document through the state machine.
// At most one active job exists per document.
type SyncJob struct {
	// ID is the unique identifier for the job.
	ID string

	// DocumentID is the document being synchronised.
	DocumentID string

	// CollectionID is the owning collection of the document.
	CollectionID string

	// Status is the job lifecycle state.
	Status SyncJobStatus

	// RetryCount is the number of retries consumed.
	RetryCount int

	// Error is the last failure message.
	Error string

	// CreatedAt is when the job was enqueued.
	CreatedAt time.Time

	// StartedAt is when processing began.
	StartedAt time.Time

	// CompletedAt is when the job reached completed or failed.
	CompletedAt time.Time
}
