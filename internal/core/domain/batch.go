package domain

import (
	"errors"
	"fmt"
	"time"
)

// BatchKind names the operation a batch applies to each item.
type BatchKind string

// Batch kinds.
const (
	BatchUpload BatchKind = "upload"
	BatchDelete BatchKind = "delete"
	BatchSync   BatchKind = "sync"
	BatchUpdate BatchKind = "update"
)

// BatchStatus is the lifecycle state of a running batch.
type BatchStatus string

// Batch states. Everything except Processing is final.
const (
	BatchProcessing          BatchStatus = "processing"
	BatchCompleted           BatchStatus = "completed"
	BatchCompletedWithErrors BatchStatus = "completed_with_errors"
	BatchFailed              BatchStatus = "failed"
	BatchCancelled           BatchStatus = "cancelled"
)

// IsFinal reports whether the batch has stopped.
func (s BatchStatus) IsFinal() bool {
	return s != BatchProcessing
}

// BatchItemResult is the outcome of one item.
type BatchItemResult struct {
	ID      string `json:"id"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// BatchOperationResult aggregates the outcome of one batch invocation.
// Successful + Failed == Total and Success == (Failed == 0).
type BatchOperationResult struct {
	Total      int               `json:"total"`
	Successful int               `json:"successful"`
	Failed     int               `json:"failed"`
	Success    bool              `json:"success"`
	Results    []BatchItemResult `json:"results"`
}

// NewBatchOperationResult builds a result from per-item outcomes,
// deriving the counters.
func NewBatchOperationResult(results []BatchItemResult) *BatchOperationResult {
	r := &BatchOperationResult{
		Total:   len(results),
		Results: results,
	}
	for i := range results {
		if results[i].Success {
			r.Successful++
		} else {
			r.Failed++
		}
	}
	r.Success = r.Failed == 0
	return r
}

// BatchDeleteTarget selects what a bulk delete removes.
type BatchDeleteTarget string

// Delete targets.
const (
	DeleteDocuments   BatchDeleteTarget = "documents"
	DeleteCollections BatchDeleteTarget = "collections"
)

// ProgressSnapshot is a point-in-time copy of a batch's progress.
type ProgressSnapshot struct {
	BatchID     string                `json:"batch_id"`
	Kind        BatchKind             `json:"kind"`
	Total       int                   `json:"total"`
	Processed   int                   `json:"processed"`
	Successful  int                   `json:"successful"`
	Failed      int                   `json:"failed"`
	Percentage  float64               `json:"percentage"`
	Status      BatchStatus           `json:"status"`
	Error       string                `json:"error,omitempty"`
	StartedAt   time.Time             `json:"started_at"`
	CompletedAt time.Time             `json:"completed_at,omitempty"`
	Result      *BatchOperationResult `json:"result,omitempty"`
}

// BatchRecord is the persisted summary of a finished batch.
type BatchRecord struct {
	ID          string
	Kind        BatchKind
	Total       int
	Successful  int
	Failed      int
	Status      BatchStatus
	Error       string
	StartedAt   time.Time
	CompletedAt time.Time
}

// BatchRollbackError is returned by a transactional batch that failed and
// compensated every prior success.
type BatchRollbackError struct {
	// ItemID identifies the item whose failure triggered the rollback.
	ItemID string

	// Cause is the failing item's error.
	Cause error

	// RolledBack is the number of successes that were compensated.
	RolledBack int

	// UndoErrors holds compensation failures, if any.
	UndoErrors []error
}

func (e *BatchRollbackError) Error() string {
	msg := fmt.Sprintf("batch rolled back after item %s failed: %v (%d compensated)",
		e.ItemID, e.Cause, e.RolledBack)
	if len(e.UndoErrors) > 0 {
		msg += fmt.Sprintf("; %d compensation errors: %v", len(e.UndoErrors), errors.Join(e.UndoErrors...))
	}
	return msg
}

func (e *BatchRollbackError) Unwrap() error {
	return e.Cause
}

// BatchDeleteRequest names the documents or collections a bulk delete removes.
type BatchDeleteRequest struct {
	Target BatchDeleteTarget
	IDs    []string
}

// DocumentUpdate pairs a document with the patch to apply to it.
type DocumentUpdate struct {
	DocumentID string
	Patch      DocumentPatch
}

// ReconcileReport summarises one orphan sweep over a collection.
type ReconcileReport struct {
	CollectionID string `json:"collection_id"`

	// IndexPoints is the number of points found in the index.
	IndexPoints int `json:"index_points"`

	// KnownChunks is the number of chunk rows in the store.
	KnownChunks int `json:"known_chunks"`

	// OrphansDeleted counts points removed for lacking a chunk row.
	OrphansDeleted int `json:"orphans_deleted"`

	// MissingPoints counts synced chunks whose point is absent.
	MissingPoints int `json:"missing_points"`
}
