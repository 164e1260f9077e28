package tui

import "errors"

// ErrMissingBatchService is returned when the batch service is not provided.
var ErrMissingBatchService = errors.New("tui: batch service is required")

// ErrMissingBatchID is returned when no batch is given to follow.
var ErrMissingBatchID = errors.New("tui: batch id is required")
