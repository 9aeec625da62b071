package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"marketdata/internal/market"
)

// fakeClock drives the limiter without real waiting: sleeps advance the
// clock and are recorded.
type fakeClock struct {
	mu    sync.Mutex
	t     time.Time
	slept []time.Duration
}

func (c *fakeClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) sleep(_ context.Context, d time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.slept = append(c.slept, d)
	c.t = c.t.Add(d)
	return nil
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newTestLimiter(budget market.RateLimitBudget) (*Limiter, *fakeClock) {
	clk := &fakeClock{t: time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)}
	l := New(budget)
	l.now = clk.now
	l.sleep = clk.sleep
	l.Reset() // recompute the day boundary from the fake clock
	return l, clk
}

func TestAdmit_UnderBudgetNeverSuspends(t *testing.T) {
	l, clk := newTestLimiter(market.RateLimitBudget{PerSecond: 10, PerMinute: 100})

	for i := 0; i < 9; i++ {
		require.NoError(t, l.Admit(t.Context()))
	}
	require.Empty(t, clk.slept)
}

func TestAdmit_PerMinuteBudgetSuspendsNotFails(t *testing.T) {
	l, clk := newTestLimiter(market.RateLimitBudget{PerSecond: 100, PerMinute: 2})

	require.NoError(t, l.Admit(t.Context()))
	clk.advance(2 * time.Second)
	require.NoError(t, l.Admit(t.Context()))
	clk.advance(2 * time.Second)

	// Third admission must wait until the oldest timestamp leaves the
	// 60-second horizon, not fail.
	require.NoError(t, l.Admit(t.Context()))
	require.Len(t, clk.slept, 1)
	require.Equal(t, 56*time.Second, clk.slept[0])
}

func TestAdmit_PerSecondBudgetSpacesRequests(t *testing.T) {
	l, clk := newTestLimiter(market.RateLimitBudget{PerSecond: 2, PerMinute: 100})

	require.NoError(t, l.Admit(t.Context()))
	require.NoError(t, l.Admit(t.Context()))
	require.Empty(t, clk.slept)

	require.NoError(t, l.Admit(t.Context()))
	require.Equal(t, []time.Duration{500 * time.Millisecond}, clk.slept)
}

func TestAdmit_ShortCooldownSuspendsThenClears(t *testing.T) {
	l, clk := newTestLimiter(market.RateLimitBudget{PerSecond: 10, PerMinute: 100})

	l.NotifyThrottled(10 * time.Second)
	require.True(t, l.IsThrottled())

	require.NoError(t, l.Admit(t.Context()))
	require.Equal(t, []time.Duration{10 * time.Second}, clk.slept)
	require.False(t, l.IsThrottled())
}

func TestAdmit_LongCooldownFailsFast(t *testing.T) {
	l, clk := newTestLimiter(market.RateLimitBudget{PerSecond: 10, PerMinute: 100})

	l.NotifyThrottled(2 * time.Minute)

	err := l.Admit(t.Context())
	require.Error(t, err)
	k, ok := market.KindOf(err)
	require.True(t, ok)
	require.Equal(t, market.KindRateLimited, k)
	require.Empty(t, clk.slept, "a wait past the ceiling must not block the caller")
}

func TestAdmit_DailyBudgetIsAHardStop(t *testing.T) {
	l, clk := newTestLimiter(market.RateLimitBudget{PerSecond: 10, PerMinute: 100, PerDay: 2})

	require.NoError(t, l.Admit(t.Context()))
	require.NoError(t, l.Admit(t.Context()))

	err := l.Admit(t.Context())
	k, _ := market.KindOf(err)
	require.Equal(t, market.KindRateLimited, k)

	// The counter rolls over at local midnight.
	clk.advance(13 * time.Hour)
	require.NoError(t, l.Admit(t.Context()))
}

func TestAdmit_CancelledContextAbortsWait(t *testing.T) {
	l, _ := newTestLimiter(market.RateLimitBudget{PerSecond: 10, PerMinute: 100})
	l.sleep = sleepCtx // real waits for this test

	l.NotifyThrottled(5 * time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := l.Admit(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestReset_ClearsAllState(t *testing.T) {
	l, _ := newTestLimiter(market.RateLimitBudget{PerSecond: 1, PerMinute: 1, PerDay: 1})

	require.NoError(t, l.Admit(t.Context()))
	l.NotifyThrottled(time.Hour)
	require.True(t, l.IsThrottled())

	l.Reset()
	require.False(t, l.IsThrottled())
	require.NoError(t, l.Admit(t.Context()))
}
