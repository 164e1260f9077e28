package driven

import (
	"context"

	"github.com/custodia-labs/docsync/internal/core/domain"
)

// EventPublisher emits sync events to downstream consumers.
// Callers log publish failures; they never fail a sync.
type EventPublisher interface {
	Publish(ctx context.Context, event domain.SyncEvent) error
	Close() error
}
