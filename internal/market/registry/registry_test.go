package registry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"marketdata/internal/market"
)

// stubAdapter carries just enough identity for registry tests.
type stubAdapter struct {
	id    market.BackendID
	creds bool
}

func (s stubAdapter) ID() market.BackendID              { return s.id }
func (s stubAdapter) Live() bool                        { return s.id != market.BackendDemo }
func (s stubAdapter) Capabilities() market.Capabilities { return market.Capabilities{} }
func (s stubAdapter) HasCredentials() bool              { return s.creds }

func (s stubAdapter) HealthCheck(context.Context) (market.Health, error) {
	return market.Health{Status: market.HealthHealthy}, nil
}

func (s stubAdapter) FetchQuotes(context.Context, []string) ([]market.Quote, error) {
	return nil, nil
}

func (s stubAdapter) FetchDailyBars(context.Context, string, time.Time, time.Time) ([]market.Bar, error) {
	return nil, nil
}

func (s stubAdapter) FetchIntradayPrices(context.Context, string) ([]market.IntradayPoint, error) {
	return nil, nil
}

func (s stubAdapter) FetchMarketOverview(context.Context) (market.MarketOverview, error) {
	return market.MarketOverview{}, nil
}

func (s stubAdapter) FetchCandles(context.Context, string, market.Range, market.Interval) ([]market.Candle, error) {
	return nil, nil
}

func (s stubAdapter) FetchCompanyNews(context.Context, string, market.Range) ([]market.NewsItem, error) {
	return nil, nil
}

func (s stubAdapter) FetchCalendar(context.Context, market.Range) ([]market.CalendarEvent, error) {
	return nil, nil
}

func (s stubAdapter) FetchSectorsSnapshot(context.Context) ([]market.SectorSnapshot, error) {
	return nil, nil
}

func TestNew_PairsEveryAdapterWithOneLimiter(t *testing.T) {
	r := New(
		stubAdapter{id: market.BackendFinnhub, creds: true},
		stubAdapter{id: market.BackendDemo},
	)

	for _, id := range []market.BackendID{market.BackendFinnhub, market.BackendDemo} {
		a, ok := r.Lookup(id)
		require.Truef(t, ok, "adapter for %s", id)
		require.Equal(t, id, a.ID())

		lim, ok := r.Limiter(id)
		require.Truef(t, ok, "limiter for %s", id)
		require.NotNil(t, lim)
	}
	require.Equal(t, []market.BackendID{market.BackendFinnhub, market.BackendDemo}, r.IDs())
	require.Len(t, r.All(), 2)
}

func TestLookup_UnconfiguredIdentityIsAbsent(t *testing.T) {
	r := New(stubAdapter{id: market.BackendDemo})

	_, ok := r.Lookup(market.BackendAlphaVantage)
	require.False(t, ok)
	_, ok = r.Limiter(market.BackendAlphaVantage)
	require.False(t, ok)
}

func TestNew_DuplicateIdentityKeepsFirst(t *testing.T) {
	first := stubAdapter{id: market.BackendDemo, creds: true}
	r := New(first, stubAdapter{id: market.BackendDemo})

	require.Len(t, r.IDs(), 1)
	a, ok := r.Lookup(market.BackendDemo)
	require.True(t, ok)
	require.True(t, a.HasCredentials())
}

func TestHasCredentials_DemoAlwaysTrue(t *testing.T) {
	r := New(
		stubAdapter{id: market.BackendDemo, creds: false},
		stubAdapter{id: market.BackendFinnhub, creds: false},
	)

	require.True(t, r.HasCredentials(market.BackendDemo))
	require.False(t, r.HasCredentials(market.BackendFinnhub))
	require.False(t, r.HasCredentials(market.BackendAlphaVantage), "unregistered backend has no credentials")
}
