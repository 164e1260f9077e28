// Package ratelimit wraps an embedding provider with a token bucket so
// bulk syncs stay under a provider's request quota.
package ratelimit

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/custodia-labs/docsync/internal/adapters/driven/embedding"
	"github.com/custodia-labs/docsync/internal/core/ports/driven"
)

// Ensure Provider implements the interface.
var _ driven.EmbeddingProvider = (*Provider)(nil)

// DefaultBackoff is how long calls are held after a 429 response.
const DefaultBackoff = 10 * time.Second

// Config holds the token bucket settings.
type Config struct {
	// RequestsPerSecond is the sustained rate. Zero or less disables limiting.
	RequestsPerSecond float64

	// Burst is the bucket size. Defaults to the rate rounded up, minimum 1.
	Burst int

	// Backoff pauses all callers after the inner provider reports a 429.
	// Defaults to DefaultBackoff.
	Backoff time.Duration
}

// Provider decorates an EmbeddingProvider with client-side rate limiting.
type Provider struct {
	inner   driven.EmbeddingProvider
	limiter *rate.Limiter
	backoff time.Duration
	now     func() time.Time

	mu      sync.Mutex
	retryAt time.Time
}

// Wrap returns inner unchanged when cfg.RequestsPerSecond <= 0.
func Wrap(inner driven.EmbeddingProvider, cfg Config) driven.EmbeddingProvider {
	if cfg.RequestsPerSecond <= 0 {
		return inner
	}
	return New(inner, cfg)
}

// New creates a rate limited provider.
func New(inner driven.EmbeddingProvider, cfg Config) *Provider {
	burst := cfg.Burst
	if burst <= 0 {
		burst = int(cfg.RequestsPerSecond + 0.999)
		if burst < 1 {
			burst = 1
		}
	}
	backoff := cfg.Backoff
	if backoff <= 0 {
		backoff = DefaultBackoff
	}

	return &Provider{
		inner:   inner,
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst),
		backoff: backoff,
		now:     time.Now,
	}
}

// Embed waits for a token, then delegates. A 429 from the inner provider
// holds later calls for the backoff period.
func (p *Provider) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := p.wait(ctx); err != nil {
		return nil, err
	}

	vec, err := p.inner.Embed(ctx, text)
	if errors.Is(err, embedding.ErrRateLimited) {
		p.mu.Lock()
		p.retryAt = p.now().Add(p.backoff)
		p.mu.Unlock()
	}
	return vec, err
}

func (p *Provider) wait(ctx context.Context) error {
	p.mu.Lock()
	delay := p.retryAt.Sub(p.now())
	p.mu.Unlock()

	if delay > 0 {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}
	return p.limiter.Wait(ctx)
}

// Dimensions returns the inner provider's vector size.
func (p *Provider) Dimensions() int { return p.inner.Dimensions() }

// ModelName returns the inner provider's model.
func (p *Provider) ModelName() string { return p.inner.ModelName() }

// Ping is not rate limited.
func (p *Provider) Ping(ctx context.Context) error { return p.inner.Ping(ctx) }

// Close closes the inner provider.
func (p *Provider) Close() error { return p.inner.Close() }
