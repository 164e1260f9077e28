package services

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/docsync/internal/core/domain"
)

// Operation processes one batch item.
type Operation[T, R any] func(ctx context.Context, item T) (R, error)

// UndoFunc compensates a successful item when a transactional batch fails.
type UndoFunc[T, R any] func(ctx context.Context, item T, result R) error

// BatchOptions configures RunBatch.
type BatchOptions[T, R any] struct {
	// Concurrency caps items in flight. Defaults to 10.
	Concurrency int

	// Transactional rolls back every success when any item fails.
	Transactional bool

	// Undo compensates one success. Nil means successes need no compensation.
	Undo UndoFunc[T, R]

	// Cancel stops scheduling of items that have not started.
	Cancel *CancelToken

	// Tracker receives an update after every settled item.
	Tracker *ProgressTracker

	// ItemID names each result row. Defaults to the item's position.
	ItemID func(T) string
}

// CancelToken is a cooperative cancellation flag checked between items.
type CancelToken struct {
	cancelled atomic.Bool
}

// NewCancelToken creates an unset token.
func NewCancelToken() *CancelToken {
	return &CancelToken{}
}

// Cancel sets the token. Safe to call more than once.
func (t *CancelToken) Cancel() {
	t.cancelled.Store(true)
}

// Cancelled reports whether Cancel was called. A nil token is never cancelled.
func (t *CancelToken) Cancelled() bool {
	return t != nil && t.cancelled.Load()
}

// cancelledMessage is the per-item error for items that never started.
const cancelledMessage = "cancelled"

// RunBatch applies op to every item under a concurrency cap and aggregates
// the outcomes into one result.
//
// In the default mode each item settles independently and the returned
// error is always nil. In transactional mode the first failure stops
// scheduling; once in-flight items settle, Undo runs for every success in
// reverse completion order and a *domain.BatchRollbackError is returned
// instead of a result.
func RunBatch[T, R any](ctx context.Context, items []T, op Operation[T, R], opts BatchOptions[T, R]) (*domain.BatchOperationResult, error) {
	limit := opts.Concurrency
	if limit <= 0 {
		limit = domain.DefaultBatchConcurrency
	}
	itemID := opts.ItemID
	if itemID == nil {
		itemID = func(T) string { return "" }
	}

	var (
		mu        sync.Mutex
		results   = make([]domain.BatchItemResult, len(items))
		outputs   = make([]R, len(items))
		started   = make([]bool, len(items))
		completed []int // successful indices in completion order
		failedIdx = -1
		failedErr error
		stop      atomic.Bool
	)

	for i := range items {
		results[i].ID = itemID(items[i])
		if results[i].ID == "" {
			results[i].ID = strconv.Itoa(i)
		}
	}

	interrupted := func() bool {
		return stop.Load() || opts.Cancel.Cancelled() || ctx.Err() != nil
	}

	var g errgroup.Group
	g.SetLimit(limit)

	for i := range items {
		// Checked between items: Go blocks until a slot frees.
		if interrupted() {
			break
		}
		started[i] = true
		g.Go(func() error {
			if interrupted() {
				mu.Lock()
				started[i] = false
				mu.Unlock()
				return nil
			}

			out, err := op(ctx, items[i])

			mu.Lock()
			if err != nil {
				results[i].Error = err.Error()
				if opts.Transactional && failedErr == nil {
					failedIdx, failedErr = i, err
					stop.Store(true)
				}
			} else {
				results[i].Success = true
				outputs[i] = out
				completed = append(completed, i)
			}
			mu.Unlock()

			if opts.Tracker != nil {
				opts.Tracker.Record(err == nil)
			}
			return nil
		})
	}
	_ = g.Wait()

	cancelled := false
	for i := range items {
		if !started[i] {
			results[i].Success = false
			results[i].Error = cancelledMessage
			cancelled = true
		}
	}
	if cancelled && failedErr == nil && opts.Transactional {
		failedIdx, failedErr = -1, fmt.Errorf("batch interrupted: %w", domain.ErrCancelled)
	}

	if opts.Transactional && failedErr != nil {
		rbErr := rollback(ctx, items, outputs, completed, opts.Undo)
		rbErr.Cause = failedErr
		if failedIdx >= 0 {
			rbErr.ItemID = results[failedIdx].ID
		}
		if opts.Tracker != nil {
			opts.Tracker.Finish(domain.BatchFailed, nil, rbErr.Error())
		}
		return nil, rbErr
	}

	result := domain.NewBatchOperationResult(results)
	if opts.Tracker != nil {
		opts.Tracker.Finish(batchStatus(result, cancelled), result, "")
	}
	return result, nil
}

// rollback runs undo for each success, newest first. Compensation runs
// even when ctx is already cancelled.
func rollback[T, R any](ctx context.Context, items []T, outputs []R, completed []int, undo UndoFunc[T, R]) *domain.BatchRollbackError {
	rbErr := &domain.BatchRollbackError{RolledBack: len(completed)}
	if undo == nil {
		return rbErr
	}
	undoCtx := context.WithoutCancel(ctx)
	for k := len(completed) - 1; k >= 0; k-- {
		idx := completed[k]
		if err := undo(undoCtx, items[idx], outputs[idx]); err != nil {
			rbErr.UndoErrors = append(rbErr.UndoErrors, fmt.Errorf("undo item %d: %w", idx, err))
		}
	}
	return rbErr
}

func batchStatus(result *domain.BatchOperationResult, cancelled bool) domain.BatchStatus {
	switch {
	case cancelled:
		return domain.BatchCancelled
	case result.Failed == 0:
		return domain.BatchCompleted
	case result.Successful == 0:
		return domain.BatchFailed
	default:
		return domain.BatchCompletedWithErrors
	}
}
