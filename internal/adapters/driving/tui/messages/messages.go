// Package messages defines Bubbletea message types for the progress view.
package messages

import (
	"github.com/custodia-labs/docsync/internal/core/domain"
)

// Tick asks the model to poll again.
type Tick struct{}

// ProgressPolled carries one progress snapshot back to the model.
type ProgressPolled struct {
	Snapshot *domain.ProgressSnapshot
	Err      error
}

// CancelCompleted reports the outcome of a cancel request.
type CancelCompleted struct {
	Err error
}
