package services

import (
	"context"
	"fmt"

	"github.com/custodia-labs/docsync/internal/core/domain"
	"github.com/custodia-labs/docsync/internal/core/ports/driven"
	"github.com/custodia-labs/docsync/internal/core/ports/driving"
	"github.com/custodia-labs/docsync/internal/logger"
)

var _ driving.ReconcileService = (*Reconciler)(nil)

// reconcileDeleteBatch caps the number of point IDs sent per delete call.
const reconcileDeleteBatch = 256

// Reconciler garbage-collects vector index points that no chunk row refers to.
//
// Chunk rows are always written before their points and points are always
// deleted before their rows, so a point without a row can only be left over
// from an interrupted delete or shrink.
type Reconciler struct {
	collections driven.CollectionStore
	documents   driven.DocumentStore
	index       driven.VectorIndexGateway
}

// NewReconciler creates a reconciler.
func NewReconciler(
	collections driven.CollectionStore,
	documents driven.DocumentStore,
	index driven.VectorIndexGateway,
) *Reconciler {
	return &Reconciler{
		collections: collections,
		documents:   documents,
		index:       index,
	}
}

// Reconcile compares the points of one collection with its chunk rows and
// deletes the orphans.
func (r *Reconciler) Reconcile(ctx context.Context, collectionID string) (domain.ReconcileReport, error) {
	report := domain.ReconcileReport{CollectionID: collectionID}

	if _, err := r.collections.GetCollection(ctx, collectionID); err != nil {
		return report, fmt.Errorf("reconcile collection %s: %w", collectionID, err)
	}

	pointIDs, err := r.index.GetAllPointIDsInCollection(ctx, collectionID)
	if err != nil {
		return report, fmt.Errorf("list points of %s: %w", collectionID, err)
	}
	// Chunk statuses are read after the points so a chunk written in
	// between is never mistaken for an orphan.
	known, err := r.documents.ListChunkStatuses(ctx, collectionID)
	if err != nil {
		return report, fmt.Errorf("list chunks of %s: %w", collectionID, err)
	}
	report.IndexPoints = len(pointIDs)
	report.KnownChunks = len(known)

	inIndex := make(map[string]struct{}, len(pointIDs))
	var orphans []string
	for _, id := range pointIDs {
		inIndex[id] = struct{}{}
		if _, ok := known[id]; !ok {
			orphans = append(orphans, id)
		}
	}
	for id, status := range known {
		if status != domain.ChunkSynced {
			continue
		}
		if _, ok := inIndex[id]; !ok {
			report.MissingPoints++
		}
	}

	for start := 0; start < len(orphans); start += reconcileDeleteBatch {
		end := min(start+reconcileDeleteBatch, len(orphans))
		if err := r.index.DeletePoints(ctx, collectionID, orphans[start:end]); err != nil {
			return report, fmt.Errorf("delete orphan points of %s: %w", collectionID, err)
		}
		report.OrphansDeleted += end - start
	}

	if report.OrphansDeleted > 0 || report.MissingPoints > 0 {
		logger.Info("reconcile %s: %d orphan points deleted, %d synced chunks missing from index",
			collectionID, report.OrphansDeleted, report.MissingPoints)
	}
	return report, nil
}

// ReconcileAll reconciles every collection. A failing collection is logged
// and skipped; the first error is returned after all have been visited.
func (r *Reconciler) ReconcileAll(ctx context.Context) ([]domain.ReconcileReport, error) {
	cols, err := r.collections.ListCollections(ctx)
	if err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}

	reports := make([]domain.ReconcileReport, 0, len(cols))
	var firstErr error
	for i := range cols {
		if ctx.Err() != nil {
			return reports, ctx.Err()
		}
		report, err := r.Reconcile(ctx, cols[i].ID)
		if err != nil {
			logger.Warn("reconcile %s failed: %v", cols[i].Name, err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		reports = append(reports, report)
	}
	return reports, firstErr
}
