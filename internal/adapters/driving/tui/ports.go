// Package tui renders a live terminal view of a running batch.
// It implements a driving adapter following hexagonal architecture principles.
package tui

import (
	"github.com/custodia-labs/docsync/internal/core/ports/driving"
)

// Ports aggregates the driving ports the progress view needs.
type Ports struct {
	// Batch reports and cancels batches.
	Batch driving.BatchService
}

// Validate ensures all required ports are set.
func (p *Ports) Validate() error {
	if p == nil || p.Batch == nil {
		return ErrMissingBatchService
	}
	return nil
}
