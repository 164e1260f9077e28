// Package embedding holds helpers shared by the HTTP embedding adapters.
//
// Provider packages live underneath (ollama, openai, hash) together with
// the ratelimit decorator that wraps any of them.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/custodia-labs/docsync/internal/core/domain"
)

// maxErrorBody bounds how much of an error response is quoted back.
const maxErrorBody = 512

// ErrRateLimited marks a 429 response. It is always joined with
// domain.ErrEmbeddingTransport.
var ErrRateLimited = errors.New("rate limited")

// StatusError maps a non-2xx response to a domain error.
//
//	400, 422 -> ErrInvalidInput
//	413      -> ErrContentTooLarge
//	429, 5xx -> ErrEmbeddingTransport (retryable)
//
// Any other status (401, 403, 404...) is a misconfiguration and is
// returned as ErrInvalidInput so the document does not burn retries.
func StatusError(provider string, status int, body []byte) error {
	msg := strings.TrimSpace(string(body))
	if len(msg) > maxErrorBody {
		msg = msg[:maxErrorBody] + "..."
	}

	var sentinel error
	switch {
	case status == http.StatusRequestEntityTooLarge:
		sentinel = domain.ErrContentTooLarge
	case status == http.StatusTooManyRequests:
		sentinel = fmt.Errorf("%w: %w", ErrRateLimited, domain.ErrEmbeddingTransport)
	case status >= 500:
		sentinel = domain.ErrEmbeddingTransport
	default:
		sentinel = domain.ErrInvalidInput
	}

	if msg == "" {
		return fmt.Errorf("%s: status %d: %w", provider, status, sentinel)
	}
	return fmt.Errorf("%s: status %d: %s: %w", provider, status, msg, sentinel)
}

// TransportError wraps a failed round trip. Cancellation is passed through
// unchanged; deadlines and network failures become ErrEmbeddingTransport.
func TransportError(provider string, err error) error {
	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("%s: %w", provider, err)
	}
	return fmt.Errorf("%s: %w: %w", provider, domain.ErrEmbeddingTransport, err)
}

// ValidateVector checks a returned vector against the configured size.
// A zero-length vector is always an error.
func ValidateVector(provider string, vec []float32, dimensions int) error {
	if len(vec) == 0 {
		return fmt.Errorf("%s: empty embedding returned: %w", provider, domain.ErrEmbeddingTransport)
	}
	if dimensions > 0 && len(vec) != dimensions {
		return fmt.Errorf("%s: got %d dimensions, want %d: %w",
			provider, len(vec), dimensions, domain.ErrInvalidInput)
	}
	return nil
}
