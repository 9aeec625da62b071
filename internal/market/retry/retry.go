// Package retry executes fallible operations with exponential backoff and
// jitter. It is stateless between calls; only the error taxonomy's
// retryable classification decides whether an attempt is repeated.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	"marketdata/internal/market"
)

// Policy is the static per-call retry budget.
type Policy struct {
	// MaxRetries is the number of re-attempts after the first try, so an
	// operation runs at most MaxRetries+1 times.
	MaxRetries int
	// BaseDelay is the first backoff interval; attempt n waits
	// min(BaseDelay * 2^n, MaxDelay), adjusted by jitter.
	BaseDelay time.Duration
	MaxDelay  time.Duration
	// JitterFraction spreads each delay uniformly over ±delay*fraction.
	JitterFraction float64
}

// Default mirrors the interactive-fetch budget: three attempts, sub-second
// initial delay, capped at five seconds.
func Default() Policy {
	return Policy{
		MaxRetries:     2,
		BaseDelay:      500 * time.Millisecond,
		MaxDelay:       5 * time.Second,
		JitterFraction: 0.2,
	}
}

// Do runs op until it succeeds, fails with a non-retryable kind, exhausts
// the attempt budget, or ctx is cancelled. The last observed error is
// returned on exhaustion.
func (p Policy) Do(ctx context.Context, op func(ctx context.Context) error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.BaseDelay
	b.Multiplier = 2
	b.RandomizationFactor = p.JitterFraction
	b.MaxInterval = p.MaxDelay
	b.MaxElapsedTime = 0 // the attempt count is the only budget

	var last error
	attempt := func() error {
		err := op(ctx)
		if err == nil {
			return nil
		}
		last = err
		if !market.Retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	err := backoff.Retry(attempt, backoff.WithContext(backoff.WithMaxRetries(b, uint64(p.MaxRetries)), ctx))
	if err == nil {
		return nil
	}
	if last != nil {
		return last
	}
	return market.NewError(market.KindProviderUnavailable, "retries exhausted")
}
