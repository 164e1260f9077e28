package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/docsync/internal/core/domain"
	"github.com/custodia-labs/docsync/internal/core/ports/driven"
	"github.com/custodia-labs/docsync/internal/logger"
)

// SyncJobQueue owns the at-most-one-active-job-per-document rule.
// Every claim on a document goes through one mutex-guarded map; a second
// claim is rejected or waits behind the active one according to policy.
type SyncJobQueue struct {
	store  driven.SyncJobStore
	policy domain.QueuePolicy

	mu     sync.Mutex
	active map[string]*jobHandle
}

// jobHandle is the in-flight claim on one document.
type jobHandle struct {
	job  *domain.SyncJob // nil for exclusive holds that are not sync jobs
	done chan struct{}
}

// NewSyncJobQueue creates a queue. store may be nil, in which case jobs
// are tracked in memory only.
func NewSyncJobQueue(store driven.SyncJobStore, policy domain.QueuePolicy) *SyncJobQueue {
	if policy != domain.QueueWait {
		policy = domain.QueueReject
	}
	return &SyncJobQueue{
		store:  store,
		policy: policy,
		active: make(map[string]*jobHandle),
	}
}

// claim registers a handle for documentID, rejecting or waiting when
// another handle is active.
func (q *SyncJobQueue) claim(ctx context.Context, documentID string, job *domain.SyncJob) (*jobHandle, error) {
	for {
		q.mu.Lock()
		current, busy := q.active[documentID]
		if !busy {
			h := &jobHandle{job: job, done: make(chan struct{})}
			q.active[documentID] = h
			q.mu.Unlock()
			return h, nil
		}
		q.mu.Unlock()

		if q.policy == domain.QueueReject {
			return nil, fmt.Errorf("%w: document %s: %w", domain.ErrConflict, documentID, domain.ErrSyncInProgress)
		}

		select {
		case <-current.done:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (q *SyncJobQueue) unclaim(documentID string, h *jobHandle) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.active[documentID] == h {
		delete(q.active, documentID)
	}
	close(h.done)
}

// Acquire creates a pending job for the document. It fails with
// ErrSyncInProgress (wrapped in ErrConflict) under the reject policy, or
// blocks until the active job finishes under the wait policy.
func (q *SyncJobQueue) Acquire(ctx context.Context, documentID, collectionID string) (*domain.SyncJob, error) {
	job := &domain.SyncJob{
		ID:           uuid.NewString(),
		DocumentID:   documentID,
		CollectionID: collectionID,
		Status:       domain.SyncJobPending,
		CreatedAt:    time.Now().UTC(),
	}

	h, err := q.claim(ctx, documentID, job)
	if err != nil {
		return nil, err
	}

	if q.store != nil {
		if err := q.store.SaveJob(ctx, job); err != nil {
			q.unclaim(documentID, h)
			return nil, fmt.Errorf("save job: %w", err)
		}
	}
	return job, nil
}

// Start moves a pending job to processing.
func (q *SyncJobQueue) Start(ctx context.Context, job *domain.SyncJob) error {
	job.Status = domain.SyncJobProcessing
	job.StartedAt = time.Now().UTC()
	return q.save(ctx, job)
}

// Release completes the job with the outcome of the run and wakes any
// waiter queued behind it.
func (q *SyncJobQueue) Release(ctx context.Context, job *domain.SyncJob, runErr error) {
	job.CompletedAt = time.Now().UTC()
	if runErr != nil {
		job.Status = domain.SyncJobFailed
		job.Error = runErr.Error()
	} else {
		job.Status = domain.SyncJobCompleted
		job.Error = ""
	}
	if err := q.save(context.WithoutCancel(ctx), job); err != nil {
		logger.Warn("sync job %s: failed to record completion: %v", job.ID, err)
	}

	q.mu.Lock()
	h := q.active[job.DocumentID]
	q.mu.Unlock()
	if h != nil && h.job == job {
		q.unclaim(job.DocumentID, h)
	}
}

// Exclusive runs fn while holding the document's claim, so no sync can
// start or run concurrently. It follows the same policy as Acquire but
// does not record a job.
func (q *SyncJobQueue) Exclusive(ctx context.Context, documentID string, fn func() error) error {
	h, err := q.claim(ctx, documentID, nil)
	if err != nil {
		return err
	}
	defer q.unclaim(documentID, h)
	return fn()
}

// IsActive reports whether the document currently has a claim.
func (q *SyncJobQueue) IsActive(documentID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	_, ok := q.active[documentID]
	return ok
}

// ActiveCount returns the number of documents with a claim.
func (q *SyncJobQueue) ActiveCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.active)
}

// RecoverOrphans fails jobs left active by a previous process.
func (q *SyncJobQueue) RecoverOrphans(ctx context.Context) (int, error) {
	if q.store == nil {
		return 0, nil
	}
	return q.store.FailActiveJobs(ctx, "interrupted by restart")
}

func (q *SyncJobQueue) save(ctx context.Context, job *domain.SyncJob) error {
	if q.store == nil {
		return nil
	}
	return q.store.SaveJob(ctx, job)
}
