// Package ratelimit enforces one backend's request budget. Each Limiter is
// owned by exactly one BackendID and is never shared across backends.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"marketdata/internal/market"
)

const (
	// windowHorizon is the sliding window over which the per-minute
	// budget is counted.
	windowHorizon = time.Minute
	// maxCooldownWait is the hard ceiling on how long Admit will block on
	// an externally observed throttle before failing fast instead.
	maxCooldownWait = 30 * time.Second
	// defaultCooldown is armed when a throttle signal carries no
	// retry-after hint. One full window keeps the backend quiet until the
	// per-minute horizon has drained.
	defaultCooldown = time.Minute
)

// Limiter gates requests against one backend's RateLimitBudget. All waits
// are context-aware; a cancelled context aborts the wait with ctx.Err().
type Limiter struct {
	budget market.RateLimitBudget

	mu           sync.Mutex
	window       []time.Time // recent admissions, pruned to the trailing 60s
	dailyCount   int
	dayBoundary  time.Time // next local midnight
	blockedUntil time.Time // armed by NotifyThrottled

	// test seams, defaulted in New
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// New builds a limiter for the given static budget.
func New(budget market.RateLimitBudget) *Limiter {
	l := &Limiter{
		budget: budget,
		now:    time.Now,
		sleep:  sleepCtx,
	}
	l.dayBoundary = nextMidnight(l.now())
	return l
}

// Admit blocks until a request may be issued, or fails with a rate-limited
// error. Check order is deliberate: the external cool-down is authoritative
// and checked first, daily exhaustion is a hard stop before any waiting, and
// the two sliding windows impose soft delays.
func (l *Limiter) Admit(ctx context.Context) error {
	l.mu.Lock()

	// 1. Externally observed throttle.
	now := l.now()
	if l.blockedUntil.After(now) {
		wait := l.blockedUntil.Sub(now)
		if wait > maxCooldownWait {
			l.mu.Unlock()
			return market.NewError(market.KindRateLimited,
				fmt.Sprintf("backend throttled for another %s", wait.Round(time.Second)))
		}
		l.mu.Unlock()
		if err := l.sleep(ctx, wait); err != nil {
			return err
		}
		l.mu.Lock()
		l.blockedUntil = time.Time{}
	}

	// 2. Roll the daily counter over at local midnight.
	now = l.now()
	if !now.Before(l.dayBoundary) {
		l.dailyCount = 0
		l.dayBoundary = nextMidnight(now)
	}

	// 3. Daily budget is a hard stop, never a wait.
	if l.budget.PerDay > 0 && l.dailyCount >= l.budget.PerDay {
		l.mu.Unlock()
		return market.NewError(market.KindRateLimited, "daily request budget exhausted")
	}

	// 4. Per-minute sliding window: wait until the oldest admission falls
	// outside the horizon.
	l.prune(now)
	for l.budget.PerMinute > 0 && len(l.window) >= l.budget.PerMinute {
		wait := l.window[0].Add(windowHorizon).Sub(now)
		l.mu.Unlock()
		if wait > 0 {
			if err := l.sleep(ctx, wait); err != nil {
				return err
			}
		}
		l.mu.Lock()
		now = l.now()
		l.prune(now)
	}

	// 5. Per-second spacing: if the trailing second is saturated, back off
	// one inter-request interval.
	if l.budget.PerSecond > 0 {
		recent := 0
		for i := len(l.window) - 1; i >= 0; i-- {
			if now.Sub(l.window[i]) >= time.Second {
				break
			}
			recent++
		}
		if recent >= l.budget.PerSecond {
			interval := time.Second / time.Duration(l.budget.PerSecond)
			l.mu.Unlock()
			if err := l.sleep(ctx, interval); err != nil {
				return err
			}
			l.mu.Lock()
			now = l.now()
		}
	}

	// 6. Record the admission.
	l.window = append(l.window, now)
	l.dailyCount++
	l.mu.Unlock()
	return nil
}

// NotifyThrottled records an externally observed throttle signal (an HTTP
// 429 or equivalent) and arms a cool-down window. A zero retryAfter arms the
// default cool-down.
func (l *Limiter) NotifyThrottled(retryAfter time.Duration) {
	if retryAfter <= 0 {
		retryAfter = defaultCooldown
	}
	l.mu.Lock()
	until := l.now().Add(retryAfter)
	if until.After(l.blockedUntil) {
		l.blockedUntil = until
	}
	l.mu.Unlock()
}

// IsThrottled is a non-blocking probe of the cool-down window.
func (l *Limiter) IsThrottled() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.blockedUntil.After(l.now())
}

// Reset clears all counters and the cool-down window. Test and debug only.
func (l *Limiter) Reset() {
	l.mu.Lock()
	l.window = nil
	l.dailyCount = 0
	l.blockedUntil = time.Time{}
	l.dayBoundary = nextMidnight(l.now())
	l.mu.Unlock()
}

// prune drops window entries older than the horizon. Callers hold l.mu.
func (l *Limiter) prune(now time.Time) {
	cut := 0
	for cut < len(l.window) && now.Sub(l.window[cut]) >= windowHorizon {
		cut++
	}
	if cut > 0 {
		l.window = append(l.window[:0], l.window[cut:]...)
	}
}

func nextMidnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, t.Location())
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
