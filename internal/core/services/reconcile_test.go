package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/docsync/internal/core/domain"
)

func TestReconciler_DeletesOrphansAndCountsMissing(t *testing.T) {
	h := newHarness(t, domain.QueueReject)
	ctx := context.Background()
	col := h.collection(t, "docs")
	doc := h.submit(t, col.ID, "a.md", "alpha\n\nbeta")

	orphan := domain.Point{
		ID:      domain.PointID("deleted-doc", 0),
		Vector:  []float32{1, 1, 1},
		Payload: domain.PointPayload{DocumentID: "deleted-doc", CollectionID: col.ID},
	}
	require.NoError(t, h.index.Index.UpsertCollection(ctx, col.ID, []domain.Point{orphan}))
	require.NoError(t, h.index.Index.DeletePoints(ctx, col.ID, []string{domain.PointID(doc.ID, 1)}))

	reconciler := NewReconciler(h.store, h.store, h.index)
	report, err := reconciler.Reconcile(ctx, col.ID)

	require.NoError(t, err)
	assert.Equal(t, col.ID, report.CollectionID)
	assert.Equal(t, 2, report.IndexPoints)
	assert.Equal(t, 2, report.KnownChunks)
	assert.Equal(t, 1, report.OrphansDeleted)
	assert.Equal(t, 1, report.MissingPoints)

	assert.Equal(t, []string{domain.PointID(doc.ID, 0)}, h.pointIDs(t, col.ID))
}

func TestReconciler_CleanCollection(t *testing.T) {
	h := newHarness(t, domain.QueueReject)
	col := h.collection(t, "docs")
	h.submit(t, col.ID, "a.md", threeParagraphs)

	report, err := NewReconciler(h.store, h.store, h.index).Reconcile(context.Background(), col.ID)

	require.NoError(t, err)
	assert.Zero(t, report.OrphansDeleted)
	assert.Zero(t, report.MissingPoints)
	assert.Equal(t, 3, report.IndexPoints)
}

func TestReconciler_UnknownCollection(t *testing.T) {
	h := newHarness(t, domain.QueueReject)

	_, err := NewReconciler(h.store, h.store, h.index).Reconcile(context.Background(), "missing")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestReconciler_DeleteFailureIsReported(t *testing.T) {
	h := newHarness(t, domain.QueueReject)
	ctx := context.Background()
	col := h.collection(t, "docs")
	require.NoError(t, h.index.Index.UpsertCollection(ctx, col.ID, []domain.Point{{
		ID:     domain.PointID("gone", 0),
		Vector: []float32{1, 0, 0},
	}}))
	h.index.deletePointErr = domain.ErrIndexUnavailable

	_, err := NewReconciler(h.store, h.store, h.index).Reconcile(ctx, col.ID)
	require.ErrorIs(t, err, domain.ErrIndexUnavailable)
}

func TestReconciler_ReconcileAll(t *testing.T) {
	h := newHarness(t, domain.QueueReject)
	ctx := context.Background()
	a := h.collection(t, "a")
	b := h.collection(t, "b")
	h.submit(t, a.ID, "a.md", "alpha")
	require.NoError(t, h.index.Index.UpsertCollection(ctx, b.ID, []domain.Point{{
		ID:     domain.PointID("gone", 0),
		Vector: []float32{1, 0, 0},
	}}))

	reports, err := NewReconciler(h.store, h.store, h.index).ReconcileAll(ctx)

	require.NoError(t, err)
	require.Len(t, reports, 2)
	deleted := 0
	for _, r := range reports {
		deleted += r.OrphansDeleted
	}
	assert.Equal(t, 1, deleted)
	assert.Empty(t, h.pointIDs(t, b.ID))
}
