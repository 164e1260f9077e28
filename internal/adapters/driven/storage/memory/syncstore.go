package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/custodia-labs/docsync/internal/core/domain"
	"github.com/custodia-labs/docsync/internal/core/ports/driven"
)

// Ensure the stores implement the interfaces.
var (
	_ driven.SyncJobStore      = (*SyncJobStore)(nil)
	_ driven.BatchHistoryStore = (*BatchHistoryStore)(nil)
)

// SyncJobStore is an in-memory implementation of driven.SyncJobStore.
type SyncJobStore struct {
	mu   sync.RWMutex
	jobs map[string]domain.SyncJob
}

// NewSyncJobStore creates a new in-memory sync job store.
func NewSyncJobStore() *SyncJobStore {
	return &SyncJobStore{
		jobs: make(map[string]domain.SyncJob),
	}
}

// SaveJob creates or updates a job.
func (s *SyncJobStore) SaveJob(_ context.Context, job *domain.SyncJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = *job
	return nil
}

// GetJob retrieves a job by ID.
func (s *SyncJobStore) GetJob(_ context.Context, id string) (*domain.SyncJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, fmt.Errorf("%w: sync job %s", domain.ErrNotFound, id)
	}
	return &job, nil
}

// GetActiveJob returns the pending or processing job for a document.
func (s *SyncJobStore) GetActiveJob(_ context.Context, documentID string) (*domain.SyncJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for id := range s.jobs {
		job := s.jobs[id]
		if job.DocumentID == documentID && job.Status.IsActive() {
			return &job, nil
		}
	}
	return nil, fmt.Errorf("%w: no active job for %s", domain.ErrNotFound, documentID)
}

// ListJobs returns the jobs of a document, newest first.
func (s *SyncJobStore) ListJobs(_ context.Context, documentID string) ([]domain.SyncJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []domain.SyncJob
	for id := range s.jobs {
		if s.jobs[id].DocumentID == documentID {
			result = append(result, s.jobs[id])
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	return result, nil
}

// FailActiveJobs marks every active job failed with reason.
func (s *SyncJobStore) FailActiveJobs(_ context.Context, reason string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	now := time.Now().UTC()
	for id := range s.jobs {
		job := s.jobs[id]
		if !job.Status.IsActive() {
			continue
		}
		job.Status = domain.SyncJobFailed
		job.Error = reason
		job.CompletedAt = now
		s.jobs[id] = job
		n++
	}
	return n, nil
}

// BatchHistoryStore is an in-memory implementation of driven.BatchHistoryStore.
type BatchHistoryStore struct {
	mu      sync.RWMutex
	records []domain.BatchRecord
}

// NewBatchHistoryStore creates a new in-memory batch history store.
func NewBatchHistoryStore() *BatchHistoryStore {
	return &BatchHistoryStore{}
}

// SaveBatch records a batch summary, replacing an earlier record with the same ID.
func (s *BatchHistoryStore) SaveBatch(_ context.Context, rec *domain.BatchRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.records {
		if s.records[i].ID == rec.ID {
			s.records[i] = *rec
			return nil
		}
	}
	s.records = append(s.records, *rec)
	return nil
}

// ListBatches returns the most recent batches, newest first.
func (s *BatchHistoryStore) ListBatches(_ context.Context, limit int) ([]domain.BatchRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]domain.BatchRecord, len(s.records))
	copy(result, s.records)
	sort.SliceStable(result, func(i, j int) bool { return result[i].StartedAt.After(result[j].StartedAt) })
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}
