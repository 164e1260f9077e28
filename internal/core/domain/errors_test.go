package domain

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestErrors_Existence tests that all error variables exist and are not nil
func TestErrors_Existence(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"ErrNotFound", ErrNotFound},
		{"ErrConflict", ErrConflict},
		{"ErrInvalidInput", ErrInvalidInput},
		{"ErrSyncInProgress", ErrSyncInProgress},
		{"ErrCancelled", ErrCancelled},
		{"ErrChunking", ErrChunking},
		{"ErrParse", ErrParse},
		{"ErrUnsupportedFormat", ErrUnsupportedFormat},
		{"ErrContentTooLarge", ErrContentTooLarge},
		{"ErrEmbeddingTransport", ErrEmbeddingTransport},
		{"ErrIndexUnavailable", ErrIndexUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotNil(t, tt.err)
			assert.NotEmpty(t, tt.err.Error())
		})
	}
}

func TestIsFatal(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"chunking", ErrChunking, true},
		{"parse wrapped", fmt.Errorf("docx: %w", ErrParse), true},
		{"unsupported", ErrUnsupportedFormat, true},
		{"too large", ErrContentTooLarge, true},
		{"invalid input", ErrInvalidInput, true},
		{"embedding transport", ErrEmbeddingTransport, false},
		{"index unavailable", ErrIndexUnavailable, false},
		{"nil", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsFatal(tt.err))
		})
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"embedding transport", fmt.Errorf("embed chunk 3: %w", ErrEmbeddingTransport), true},
		{"index unavailable", ErrIndexUnavailable, true},
		{"deadline", context.DeadlineExceeded, true},
		{"fatal", ErrChunking, false},
		{"fatal joined with transient", errors.Join(ErrParse, ErrEmbeddingTransport), false},
		{"unknown", errors.New("boom"), false},
		{"nil", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}

func TestBatchRollbackError(t *testing.T) {
	cause := fmt.Errorf("upload doc-2: %w", ErrParse)
	err := &BatchRollbackError{
		ItemID:     "doc-2",
		Cause:      cause,
		RolledBack: 3,
	}

	assert.Contains(t, err.Error(), "doc-2")
	assert.Contains(t, err.Error(), "3 compensated")
	assert.True(t, errors.Is(err, ErrParse))

	var rb *BatchRollbackError
	assert.True(t, errors.As(fmt.Errorf("batch: %w", err), &rb))
	assert.Equal(t, 3, rb.RolledBack)

	err.UndoErrors = []error{errors.New("undo failed")}
	assert.Contains(t, err.Error(), "1 compensation errors")
}

func TestNewBatchOperationResult(t *testing.T) {
	res := NewBatchOperationResult([]BatchItemResult{
		{ID: "a", Success: true},
		{ID: "b", Success: false, Error: "boom"},
		{ID: "c", Success: true},
	})

	assert.Equal(t, 3, res.Total)
	assert.Equal(t, 2, res.Successful)
	assert.Equal(t, 1, res.Failed)
	assert.False(t, res.Success)
	assert.Equal(t, res.Total, res.Successful+res.Failed)

	empty := NewBatchOperationResult(nil)
	assert.True(t, empty.Success)
	assert.Equal(t, 0, empty.Total)
}
