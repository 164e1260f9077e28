package services

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/docsync/internal/core/domain"
)

// ProgressTracker holds the pollable counters of one batch. The batch
// engine updates it synchronously after every item settles; readers take
// copies through Snapshot.
type ProgressTracker struct {
	mu   sync.Mutex
	snap domain.ProgressSnapshot
	now  func() time.Time
}

// NewProgressTracker creates a tracker in the processing state.
func NewProgressTracker(batchID string, kind domain.BatchKind, total int) *ProgressTracker {
	return newProgressTracker(batchID, kind, total, time.Now)
}

func newProgressTracker(batchID string, kind domain.BatchKind, total int, now func() time.Time) *ProgressTracker {
	return &ProgressTracker{
		now: now,
		snap: domain.ProgressSnapshot{
			BatchID:   batchID,
			Kind:      kind,
			Total:     total,
			Status:    domain.BatchProcessing,
			StartedAt: now().UTC(),
		},
	}
}

// ID returns the batch ID.
func (p *ProgressTracker) ID() string {
	return p.snap.BatchID
}

// Record counts one settled item. Calls after Finish are ignored.
func (p *ProgressTracker) Record(success bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.snap.Status.IsFinal() || p.snap.Processed >= p.snap.Total {
		return
	}
	p.snap.Processed++
	if success {
		p.snap.Successful++
	} else {
		p.snap.Failed++
	}
	p.snap.Percentage = percentage(p.snap.Processed, p.snap.Total)
}

// Finish moves the tracker to a final status. A non-nil result replaces
// the counters with the canonical ones. A cancelled batch keeps Processed
// at the items that actually ran; the unstarted ones only count as failed.
func (p *ProgressTracker) Finish(status domain.BatchStatus, result *domain.BatchOperationResult, errMsg string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.snap.Status.IsFinal() {
		return
	}
	if result != nil {
		switch {
		case status == domain.BatchCancelled:
			p.snap.Successful = result.Successful
			p.snap.Failed = result.Failed
		case result.Total >= p.snap.Processed:
			// Counters never move backwards.
			p.snap.Processed = result.Total
			p.snap.Successful = result.Successful
			p.snap.Failed = result.Failed
		}
		p.snap.Result = result
	}
	p.snap.Percentage = percentage(p.snap.Processed, p.snap.Total)
	p.snap.Status = status
	p.snap.Error = errMsg
	p.snap.CompletedAt = p.now().UTC()
}

// Snapshot returns a copy of the current progress.
func (p *ProgressTracker) Snapshot() domain.ProgressSnapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snap
}

func percentage(processed, total int) float64 {
	if total <= 0 {
		return 100
	}
	return float64(processed) * 100 / float64(total)
}

// ProgressRegistry keeps trackers of running batches pollable by ID and
// drops them a grace period after they finish.
type ProgressRegistry struct {
	mu      sync.Mutex
	entries map[string]*progressEntry
	grace   time.Duration
	now     func() time.Time
}

type progressEntry struct {
	tracker *ProgressTracker
	cancel  *CancelToken
}

// NewProgressRegistry creates a registry with the given grace period.
func NewProgressRegistry(grace time.Duration) *ProgressRegistry {
	if grace <= 0 {
		grace = domain.DefaultProgressGrace
	}
	return &ProgressRegistry{
		entries: make(map[string]*progressEntry),
		grace:   grace,
		now:     time.Now,
	}
}

// Start registers a new tracker and its cancellation token.
func (r *ProgressRegistry) Start(kind domain.BatchKind, total int) (*ProgressTracker, *CancelToken) {
	tracker := newProgressTracker(uuid.NewString(), kind, total, r.now)
	token := NewCancelToken()

	r.mu.Lock()
	defer r.mu.Unlock()
	r.sweepLocked()
	r.entries[tracker.ID()] = &progressEntry{tracker: tracker, cancel: token}
	return tracker, token
}

// Get returns a snapshot of the batch's progress.
func (r *ProgressRegistry) Get(batchID string) (domain.ProgressSnapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sweepLocked()

	e, ok := r.entries[batchID]
	if !ok {
		return domain.ProgressSnapshot{}, fmt.Errorf("batch %s: %w", batchID, domain.ErrNotFound)
	}
	return e.tracker.Snapshot(), nil
}

// Cancel requests cooperative cancellation of a running batch.
func (r *ProgressRegistry) Cancel(batchID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sweepLocked()

	e, ok := r.entries[batchID]
	if !ok {
		return fmt.Errorf("batch %s: %w", batchID, domain.ErrNotFound)
	}
	if e.tracker.Snapshot().Status.IsFinal() {
		return fmt.Errorf("batch %s already finished: %w", batchID, domain.ErrConflict)
	}
	e.cancel.Cancel()
	return nil
}

// Len returns the number of retained trackers.
func (r *ProgressRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sweepLocked()
	return len(r.entries)
}

func (r *ProgressRegistry) sweepLocked() {
	cutoff := r.now().Add(-r.grace)
	for id, e := range r.entries {
		snap := e.tracker.Snapshot()
		if snap.Status.IsFinal() && snap.CompletedAt.Before(cutoff) {
			delete(r.entries, id)
		}
	}
}
