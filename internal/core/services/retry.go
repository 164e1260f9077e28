package services

import (
	"context"
	"time"

	"github.com/custodia-labs/docsync/internal/core/domain"
)

// RetryPolicy configures exponential backoff between sync attempts.
type RetryPolicy struct {
	MaxRetries int           // Retries allowed after the first attempt
	BaseDelay  time.Duration // Delay before the first retry
	MaxDelay   time.Duration // Upper bound for any delay
	Multiplier float64       // Growth factor per retry
}

// DefaultRetryPolicy returns the policy used when settings are absent.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: domain.DefaultMaxRetries,
		BaseDelay:  domain.DefaultBaseDelay,
		MaxDelay:   domain.DefaultMaxDelay,
		Multiplier: 2,
	}
}

// Delay returns the wait before retry number n (1-based):
// BaseDelay * Multiplier^(n-1), capped at MaxDelay.
func (p RetryPolicy) Delay(n int) time.Duration {
	if n < 1 {
		return 0
	}
	mult := p.Multiplier
	if mult < 1 {
		mult = 2
	}
	d := float64(p.BaseDelay)
	for i := 1; i < n; i++ {
		d *= mult
		if p.MaxDelay > 0 && d >= float64(p.MaxDelay) {
			return p.MaxDelay
		}
	}
	if p.MaxDelay > 0 && time.Duration(d) > p.MaxDelay {
		return p.MaxDelay
	}
	return time.Duration(d)
}

// sleepContext waits for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
