package domain

import (
	"context"
	"errors"
)

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict indicates the request collides with existing state,
	// such as a duplicate collection name or an active sync.
	ErrConflict = errors.New("conflict")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrSyncInProgress indicates a sync job is already active for the document.
	ErrSyncInProgress = errors.New("sync in progress")

	// ErrCancelled indicates the operation was cancelled before it ran.
	ErrCancelled = errors.New("cancelled")

	// Pipeline Errors.

	// ErrChunking indicates the text could not be split into chunks.
	ErrChunking = errors.New("chunking failed")

	// ErrParse indicates the raw bytes could not be parsed.
	ErrParse = errors.New("parse failed")

	// ErrUnsupportedFormat indicates no parser handles the MIME type.
	ErrUnsupportedFormat = errors.New("unsupported format")

	// ErrContentTooLarge indicates the input exceeds a provider limit.
	ErrContentTooLarge = errors.New("content too large")

	// ErrEmbeddingTransport indicates the embedding provider could not be reached
	// or answered with a transient failure.
	ErrEmbeddingTransport = errors.New("embedding transport failure")

	// ErrIndexUnavailable indicates the vector index could not be reached.
	ErrIndexUnavailable = errors.New("vector index unavailable")
)

// IsFatal reports whether err can never succeed on retry.
func IsFatal(err error) bool {
	return errors.Is(err, ErrChunking) ||
		errors.Is(err, ErrParse) ||
		errors.Is(err, ErrUnsupportedFormat) ||
		errors.Is(err, ErrContentTooLarge) ||
		errors.Is(err, ErrInvalidInput)
}

// IsRetryable reports whether err is transient. Fatal errors are never
// retryable, even when wrapped together with a transient cause.
func IsRetryable(err error) bool {
	if err == nil || IsFatal(err) {
		return false
	}
	return errors.Is(err, ErrEmbeddingTransport) ||
		errors.Is(err, ErrIndexUnavailable) ||
		errors.Is(err, context.DeadlineExceeded)
}
