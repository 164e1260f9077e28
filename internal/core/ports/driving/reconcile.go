package driving

import (
	"context"

	"github.com/custodia-labs/docsync/internal/core/domain"
)

// ReconcileService removes index points that no stored chunk refers to.
type ReconcileService interface {
	// Reconcile garbage-collects one collection.
	Reconcile(ctx context.Context, collectionID string) (domain.ReconcileReport, error)

	// ReconcileAll garbage-collects every collection.
	ReconcileAll(ctx context.Context) ([]domain.ReconcileReport, error)
}
