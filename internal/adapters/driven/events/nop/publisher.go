// Package nop provides an event publisher that drops every event.
package nop

import (
	"context"

	"github.com/custodia-labs/docsync/internal/core/domain"
	"github.com/custodia-labs/docsync/internal/core/ports/driven"
	"github.com/custodia-labs/docsync/internal/logger"
)

// Ensure Publisher implements the interface.
var _ driven.EventPublisher = Publisher{}

// Publisher discards events, logging them at debug level.
type Publisher struct{}

// Publish drops the event.
func (Publisher) Publish(_ context.Context, event domain.SyncEvent) error {
	logger.Debug("event %s (%s) dropped: publishing disabled", event.Type, event.Key())
	return nil
}

// Close is a no-op.
func (Publisher) Close() error { return nil }
