package alphavantage

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"marketdata/internal/httpx"
	"marketdata/internal/market"
)

func newTestAdapter(t *testing.T, handler http.HandlerFunc) *Adapter {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(Config{APIKey: "test-key"}, httpx.New(5*time.Second), WithBaseURL(srv.URL+"/query"))
}

func TestFetchQuotes_ParsesGlobalQuote(t *testing.T) {
	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "GLOBAL_QUOTE", r.URL.Query().Get("function"))
		require.Equal(t, "AAPL", r.URL.Query().Get("symbol"))
		require.Equal(t, "test-key", r.URL.Query().Get("apikey"))
		w.Write([]byte(`{"Global Quote":{
			"01. symbol":"AAPL","02. open":"188.00","03. high":"190.20","04. low":"187.80",
			"05. price":"189.50","06. volume":"51234567","07. latest trading day":"2025-06-04",
			"08. previous close":"188.25","09. change":"1.2500","10. change percent":"0.6640%"}}`))
	})

	quotes, err := a.FetchQuotes(t.Context(), []string{"AAPL"})
	require.NoError(t, err)
	require.Len(t, quotes, 1)

	q := quotes[0]
	require.Equal(t, "AAPL", q.Symbol)
	require.Equal(t, 189.5, q.Price)
	require.Equal(t, 188.25, q.PrevClose)
	require.Equal(t, 1.25, q.Change)
	require.InDelta(t, 0.664, q.ChangePercent, 1e-9)
	require.Equal(t, market.BackendAlphaVantage, q.Source)
}

func TestQuery_NoteBodyIsRateLimited(t *testing.T) {
	a := newTestAdapter(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"Note":"Thank you for using Alpha Vantage! Our standard API rate limit is 25 requests per day."}`))
	})

	_, err := a.FetchQuotes(t.Context(), []string{"AAPL"})

	kind, ok := market.KindOf(err)
	require.True(t, ok)
	require.Equal(t, market.KindRateLimited, kind)
	require.True(t, market.Retryable(err))
}

func TestQuery_ErrorMessageIsSymbolNotFound(t *testing.T) {
	a := newTestAdapter(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"Error Message":"Invalid API call. Please retry or visit the documentation."}`))
	})

	_, err := a.FetchQuotes(t.Context(), []string{"NOPE"})

	kind, ok := market.KindOf(err)
	require.True(t, ok)
	require.Equal(t, market.KindSymbolNotFound, kind)
	require.False(t, market.Retryable(err))
}

func TestFetchDailyBars_FiltersAndSortsSeries(t *testing.T) {
	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "TIME_SERIES_DAILY", r.URL.Query().Get("function"))
		w.Write([]byte(`{"Time Series (Daily)":{
			"2025-06-04":{"1. open":"101.0","2. high":"103.0","3. low":"100.0","4. close":"102.0","5. volume":"2000"},
			"2025-06-03":{"1. open":"100.0","2. high":"102.0","3. low":"99.0","4. close":"101.0","5. volume":"1000"},
			"2025-05-01":{"1. open":"90.0","2. high":"91.0","3. low":"89.0","4. close":"90.5","5. volume":"500"}}}`))
	})

	from := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC)
	bars, err := a.FetchDailyBars(t.Context(), "AAPL", from, to)
	require.NoError(t, err)

	require.Len(t, bars, 2, "bars outside the window are dropped")
	require.True(t, bars[0].Date.Before(bars[1].Date), "bars arrive oldest first")
	require.Equal(t, 101.0, bars[0].Close)
	require.Equal(t, int64(2000), bars[1].Volume)
}

func TestFetchIntradayPrices_EasternTimestamps(t *testing.T) {
	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "TIME_SERIES_INTRADAY", r.URL.Query().Get("function"))
		require.Equal(t, "5min", r.URL.Query().Get("interval"))
		w.Write([]byte(`{"Time Series (5min)":{
			"2025-06-04 15:55:00":{"1. open":"189.1","2. high":"189.4","3. low":"189.0","4. close":"189.3","5. volume":"1000"},
			"2025-06-04 16:00:00":{"1. open":"189.3","2. high":"189.6","3. low":"189.2","4. close":"189.5","5. volume":"1200"}}}`))
	})

	points, err := a.FetchIntradayPrices(t.Context(), "AAPL")
	require.NoError(t, err)
	require.Len(t, points, 2)
	require.Equal(t, 5*time.Minute, points[1].Time.Sub(points[0].Time))
	require.Equal(t, 189.5, points[1].Price)
}

func TestFetchSectorsSnapshot_ParsesPerformanceMap(t *testing.T) {
	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "SECTOR", r.URL.Query().Get("function"))
		w.Write([]byte(`{"Rank A: Real-Time Performance":{
			"Information Technology":"1.25%","Energy":"-0.40%","Utilities":"0.10%"}}`))
	})

	snaps, err := a.FetchSectorsSnapshot(t.Context())
	require.NoError(t, err)
	require.Len(t, snaps, 3)

	byName := make(map[string]float64)
	for _, s := range snaps {
		byName[s.Sector] = s.ChangePercent
	}
	require.InDelta(t, 1.25, byName["Information Technology"], 1e-9)
	require.InDelta(t, -0.40, byName["Energy"], 1e-9)
}

func TestUnsupportedOperations(t *testing.T) {
	a := New(Config{APIKey: "test-key"}, httpx.New(time.Second))
	r := market.Range{From: time.Now().AddDate(0, 0, -7), To: time.Now()}

	_, err := a.FetchCompanyNews(t.Context(), "AAPL", r)
	kind, ok := market.KindOf(err)
	require.True(t, ok)
	require.Equal(t, market.KindProviderUnavailable, kind)

	_, err = a.FetchCalendar(t.Context(), r)
	kind, ok = market.KindOf(err)
	require.True(t, ok)
	require.Equal(t, market.KindProviderUnavailable, kind)
}

func TestFetchQuotes_MissingKey(t *testing.T) {
	a := New(Config{}, httpx.New(time.Second))

	_, err := a.FetchQuotes(t.Context(), []string{"AAPL"})

	kind, ok := market.KindOf(err)
	require.True(t, ok)
	require.Equal(t, market.KindNoCredentials, kind)
}
