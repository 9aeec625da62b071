// Package router is the orchestrator of the data-access layer: it resolves
// an ordered candidate list of backends, consults the response cache,
// acquires rate-limiter admission, executes adapter calls through the retry
// policy and falls back across candidates until one succeeds.
package router

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"marketdata/internal/market"
	"marketdata/internal/market/cache"
	"marketdata/internal/market/registry"
	"marketdata/internal/market/retry"
)

// Response cache lifetimes per request kind. Candle-range fetches are
// deliberately uncached.
const (
	TTLQuotes    = 15 * time.Second
	TTLDailyBars = 5 * time.Minute
	TTLIntraday  = 30 * time.Second
	TTLOverview  = time.Minute
	TTLNews      = 5 * time.Minute
	TTLCalendar  = time.Hour
	TTLSectors   = time.Minute
)

// Settings keys for the persisted data-source selection.
const (
	settingPrimary  = "datasource.primary"
	settingFallback = "datasource.fallback"
	settingMode     = "datasource.mode"

	modeDemo = "demo"
	modeLive = "live"
)

// SettingsStore persists the data-source selection. Last write wins; the
// stored values are read back once at construction.
type SettingsStore interface {
	Get(key string) (string, bool, error)
	Set(key, value string) error
}

// Router routes logical fetches across the registered backends.
type Router struct {
	reg    *registry.Registry
	cache  *cache.Store
	policy retry.Policy
	store  SettingsStore
	log    *zap.Logger

	mu       sync.RWMutex
	primary  market.BackendID
	fallback market.BackendID // empty when unset
	demoMode bool
}

// New builds a router and restores the persisted selection. The default
// selection is live mode with the demo backend as primary, which works
// without any credentials.
func New(reg *registry.Registry, store *cache.Store, policy retry.Policy, settings SettingsStore, log *zap.Logger) *Router {
	if log == nil {
		log = zap.NewNop()
	}
	r := &Router{
		reg:     reg,
		cache:   store,
		policy:  policy,
		store:   settings,
		log:     log,
		primary: market.BackendDemo,
	}
	if v, ok, err := settings.Get(settingPrimary); err == nil && ok && market.BackendID(v).Valid() {
		r.primary = market.BackendID(v)
	}
	if v, ok, err := settings.Get(settingFallback); err == nil && ok && market.BackendID(v).Valid() {
		r.fallback = market.BackendID(v)
	}
	if v, ok, err := settings.Get(settingMode); err == nil && ok {
		r.demoMode = v == modeDemo
	}
	return r
}

// Primary returns the selected primary backend.
func (r *Router) Primary() market.BackendID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.primary
}

// SetPrimary selects the primary backend and persists the choice.
func (r *Router) SetPrimary(id market.BackendID) error {
	if !id.Valid() {
		return market.NewError(market.KindInvalidResponse, "unknown backend id "+string(id))
	}
	r.mu.Lock()
	r.primary = id
	r.mu.Unlock()
	return r.store.Set(settingPrimary, string(id))
}

// Fallback returns the selected fallback backend, if any.
func (r *Router) Fallback() (market.BackendID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.fallback, r.fallback != ""
}

// SetFallback selects the fallback backend; an empty id clears it. The
// choice persists immediately.
func (r *Router) SetFallback(id market.BackendID) error {
	if id != "" && !id.Valid() {
		return market.NewError(market.KindInvalidResponse, "unknown backend id "+string(id))
	}
	r.mu.Lock()
	r.fallback = id
	r.mu.Unlock()
	return r.store.Set(settingFallback, string(id))
}

// DemoMode reports whether fetches are pinned to the demo backend.
func (r *Router) DemoMode() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.demoMode
}

// SetDemoMode toggles demo mode and persists the choice.
func (r *Router) SetDemoMode(on bool) error {
	r.mu.Lock()
	r.demoMode = on
	r.mu.Unlock()
	mode := modeLive
	if on {
		mode = modeDemo
	}
	return r.store.Set(settingMode, mode)
}

// candidates resolves the ordered backend list for the current selection.
// Demo mode pins the list to the demo backend; live mode is primary, then a
// distinct fallback, then demo, so the list always terminates in a backend
// that cannot fail for lack of credentials.
func (r *Router) candidates() []market.BackendID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.demoMode {
		return []market.BackendID{market.BackendDemo}
	}
	out := []market.BackendID{r.primary}
	if r.fallback != "" && r.fallback != r.primary {
		out = append(out, r.fallback)
	}
	if r.primary != market.BackendDemo && r.fallback != market.BackendDemo {
		out = append(out, market.BackendDemo)
	}
	return out
}

// fetch drives one logical request: cache consult, candidate resolution,
// capability filter, limiter admission, retried execution and fallback.
// Every failure kind, retryable or not, advances to the next candidate;
// only candidate exhaustion fails the fetch.
func fetch[T any](ctx context.Context, r *Router, key string, ttl time.Duration, required market.Capability, call func(ctx context.Context, a market.Adapter) (T, error)) (T, error) {
	var zero T

	if key != "" {
		if v, ok := cache.Lookup[T](r.cache, key); ok {
			return v, nil
		}
	}

	var cands []market.Adapter
	for _, id := range r.candidates() {
		a, ok := r.reg.Lookup(id)
		if !ok {
			continue
		}
		if !a.Capabilities().Has(required) {
			continue
		}
		cands = append(cands, a)
	}
	if len(cands) == 0 {
		return zero, market.NewError(market.KindProviderUnavailable, "no configured backend supports this request")
	}

	var lastErr error
	for _, a := range cands {
		id := a.ID()
		lim, ok := r.reg.Limiter(id)
		if !ok {
			continue
		}

		if err := lim.Admit(ctx); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return zero, err
			}
			r.log.Warn("admission rejected",
				zap.String("backend", string(id)),
				zap.Error(err))
			lastErr = err
			continue
		}

		var out T
		err := r.policy.Do(ctx, func(ctx context.Context) error {
			v, err := call(ctx, a)
			if err != nil {
				return err
			}
			out = v
			return nil
		})
		if err == nil {
			if key != "" {
				r.cache.Set(key, out, ttl)
			}
			return out, nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return zero, err
		}

		if k, ok := market.KindOf(err); ok && k == market.KindRateLimited {
			// The backend told us to back off; arm its cool-down so
			// subsequent fetches in this process skip it quickly.
			lim.NotifyThrottled(0)
		}
		r.log.Warn("backend fetch failed, advancing to next candidate",
			zap.String("backend", string(id)),
			zap.Error(err))
		lastErr = err
	}

	if lastErr != nil {
		return zero, lastErr
	}
	return zero, market.NewError(market.KindProviderUnavailable, "all candidates exhausted")
}

// FetchQuotes returns real-time quotes for the symbol set.
func (r *Router) FetchQuotes(ctx context.Context, symbols []string) ([]market.Quote, error) {
	return fetch(ctx, r, quotesKey(symbols), TTLQuotes, market.CapRealtimeQuotes,
		func(ctx context.Context, a market.Adapter) ([]market.Quote, error) {
			return a.FetchQuotes(ctx, symbols)
		})
}

// FetchDailyBars returns daily bars for symbol over [from, to].
func (r *Router) FetchDailyBars(ctx context.Context, symbol string, from, to time.Time) ([]market.Bar, error) {
	return fetch(ctx, r, barsKey(symbol, from, to), TTLDailyBars, market.CapDailyBars,
		func(ctx context.Context, a market.Adapter) ([]market.Bar, error) {
			return a.FetchDailyBars(ctx, symbol, from, to)
		})
}

// FetchIntradayPrices returns the current session's intraday points.
func (r *Router) FetchIntradayPrices(ctx context.Context, symbol string) ([]market.IntradayPoint, error) {
	return fetch(ctx, r, intradayKey(symbol), TTLIntraday, market.CapIntradayBars,
		func(ctx context.Context, a market.Adapter) ([]market.IntradayPoint, error) {
			return a.FetchIntradayPrices(ctx, symbol)
		})
}

// FetchMarketOverview returns a coarse market summary. No capability is
// required; every backend can produce some form of overview.
func (r *Router) FetchMarketOverview(ctx context.Context) (market.MarketOverview, error) {
	return fetch(ctx, r, overviewKey(), TTLOverview, market.CapNone,
		func(ctx context.Context, a market.Adapter) (market.MarketOverview, error) {
			return a.FetchMarketOverview(ctx)
		})
}

// FetchCandles returns candles for an arbitrary range and interval. Candle
// ranges are uncached; callers page through them too variably for a TTL
// cache to help.
func (r *Router) FetchCandles(ctx context.Context, symbol string, rng market.Range, interval market.Interval) ([]market.Candle, error) {
	required := market.CapDailyBars
	if interval.Intraday() {
		required = market.CapIntradayBars
	}
	return fetch(ctx, r, "", 0, required,
		func(ctx context.Context, a market.Adapter) ([]market.Candle, error) {
			return a.FetchCandles(ctx, symbol, rng, interval)
		})
}

// FetchCompanyNews returns company news for symbol within the range.
func (r *Router) FetchCompanyNews(ctx context.Context, symbol string, rng market.Range) ([]market.NewsItem, error) {
	return fetch(ctx, r, newsKey(symbol, rng), TTLNews, market.CapCompanyNews,
		func(ctx context.Context, a market.Adapter) ([]market.NewsItem, error) {
			return a.FetchCompanyNews(ctx, symbol, rng)
		})
}

// FetchCalendar returns scheduled market events within the range.
func (r *Router) FetchCalendar(ctx context.Context, rng market.Range) ([]market.CalendarEvent, error) {
	return fetch(ctx, r, calendarKey(rng), TTLCalendar, market.CapEarningsCalendar,
		func(ctx context.Context, a market.Adapter) ([]market.CalendarEvent, error) {
			return a.FetchCalendar(ctx, rng)
		})
}

// FetchSectorsSnapshot returns the day performance of each market sector.
func (r *Router) FetchSectorsSnapshot(ctx context.Context) ([]market.SectorSnapshot, error) {
	return fetch(ctx, r, sectorsKey(), TTLSectors, market.CapNone,
		func(ctx context.Context, a market.Adapter) ([]market.SectorSnapshot, error) {
			return a.FetchSectorsSnapshot(ctx)
		})
}

// HealthCheckAll probes every registered backend concurrently, independent
// of routing state. It touches neither the cache nor any limiter's throttle
// window, so probing cannot consume user-visible quota.
func (r *Router) HealthCheckAll(ctx context.Context) map[market.BackendID]market.Health {
	results := make(map[market.BackendID]market.Health, len(r.reg.IDs()))
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	for _, a := range r.reg.All() {
		g.Go(func() error {
			h, err := a.HealthCheck(ctx)
			if err != nil {
				h = market.Health{Status: market.HealthError, Message: err.Error()}
			}
			mu.Lock()
			results[a.ID()] = h
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait() // probes report failure through Health, never through error
	return results
}
