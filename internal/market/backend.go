package market

import (
	"context"
	"time"
)

// BackendID identifies one upstream data source. The set is closed; the demo
// identity is synthetic, needs no credentials and always resolves.
type BackendID string

const (
	BackendFinnhub      BackendID = "finnhub"
	BackendAlphaVantage BackendID = "alphavantage"
	BackendDemo         BackendID = "demo"
)

// AllBackendIDs lists every known identity, demo last.
func AllBackendIDs() []BackendID {
	return []BackendID{BackendFinnhub, BackendAlphaVantage, BackendDemo}
}

// Valid reports whether id names a known backend.
func (id BackendID) Valid() bool {
	switch id {
	case BackendFinnhub, BackendAlphaVantage, BackendDemo:
		return true
	}
	return false
}

// Capability selects one capability flag when filtering candidates.
// CapNone means the request has no capability requirement.
type Capability int

const (
	CapNone Capability = iota
	CapRealtimeQuotes
	CapDailyBars
	CapIntradayBars
	CapCompanyNews
	CapEarningsCalendar
	CapOptions
	CapStreaming
)

// Capabilities is the static feature set of one backend. It is read once at
// registry construction and never mutated.
type Capabilities struct {
	RealtimeQuotes   bool
	DailyBars        bool
	IntradayBars     bool
	CompanyNews      bool
	EarningsCalendar bool
	Options          bool
	Streaming        bool
	// MaxSymbolsPerCall caps one batched quote request; 0 means unlimited.
	MaxSymbolsPerCall int
}

// Has reports whether the capability flag is set. CapNone is always satisfied.
func (c Capabilities) Has(cap Capability) bool {
	switch cap {
	case CapNone:
		return true
	case CapRealtimeQuotes:
		return c.RealtimeQuotes
	case CapDailyBars:
		return c.DailyBars
	case CapIntradayBars:
		return c.IntradayBars
	case CapCompanyNews:
		return c.CompanyNews
	case CapEarningsCalendar:
		return c.EarningsCalendar
	case CapOptions:
		return c.Options
	case CapStreaming:
		return c.Streaming
	}
	return false
}

// HealthStatus tags a Health value.
type HealthStatus string

const (
	HealthHealthy       HealthStatus = "healthy"
	HealthDegraded      HealthStatus = "degraded"
	HealthRateLimited   HealthStatus = "rate_limited"
	HealthNoCredentials HealthStatus = "no_credentials"
	HealthError         HealthStatus = "error"
)

// Health is an on-demand probe result. It is never cached and routing never
// consults it; routing reacts to the error taxonomy at call time instead.
type Health struct {
	Status  HealthStatus  `json:"status"`
	Latency time.Duration `json:"latency,omitempty"`
	Message string        `json:"message,omitempty"`
}

// RateLimitBudget is the static quota of one backend, looked up by identity.
type RateLimitBudget struct {
	PerSecond int
	PerMinute int
	// PerDay of 0 means no daily quota.
	PerDay int
}

// Burst is the derived burst ceiling for the budget.
func (b RateLimitBudget) Burst() int {
	if b.PerSecond > 0 {
		return b.PerSecond
	}
	return 1
}

// BudgetFor returns the static rate-limit budget for a backend.
// AlphaVantage's free tier is the tight one: 5/min and 500/day.
func BudgetFor(id BackendID) RateLimitBudget {
	switch id {
	case BackendFinnhub:
		return RateLimitBudget{PerSecond: 10, PerMinute: 60}
	case BackendAlphaVantage:
		return RateLimitBudget{PerSecond: 1, PerMinute: 5, PerDay: 500}
	case BackendDemo:
		return RateLimitBudget{PerSecond: 100, PerMinute: 6000}
	}
	return RateLimitBudget{PerSecond: 1, PerMinute: 30}
}

// Adapter translates generic fetch calls into concrete upstream requests.
// Every fetch method must fail with a *Error; any other error type is a
// contract violation and is treated as non-retryable.
type Adapter interface {
	ID() BackendID
	// Live is false only for the synthetic demo backend.
	Live() bool
	Capabilities() Capabilities
	HasCredentials() bool
	// HealthCheck reports ordinary failures as a Health value; only
	// transport-level failures may surface as an error.
	HealthCheck(ctx context.Context) (Health, error)

	FetchQuotes(ctx context.Context, symbols []string) ([]Quote, error)
	FetchDailyBars(ctx context.Context, symbol string, from, to time.Time) ([]Bar, error)
	FetchIntradayPrices(ctx context.Context, symbol string) ([]IntradayPoint, error)
	FetchMarketOverview(ctx context.Context) (MarketOverview, error)
	FetchCandles(ctx context.Context, symbol string, r Range, interval Interval) ([]Candle, error)
	FetchCompanyNews(ctx context.Context, symbol string, r Range) ([]NewsItem, error)
	FetchCalendar(ctx context.Context, r Range) ([]CalendarEvent, error)
	FetchSectorsSnapshot(ctx context.Context) ([]SectorSnapshot, error)
}
