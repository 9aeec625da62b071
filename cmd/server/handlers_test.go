package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"marketdata/internal/market"
	"marketdata/internal/market/cache"
	"marketdata/internal/market/demo"
	"marketdata/internal/market/registry"
	"marketdata/internal/market/retry"
	"marketdata/internal/market/router"
	"marketdata/internal/settings"
)

func newTestServer(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store, err := settings.Open(filepath.Join(t.TempDir(), "settings.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	rt := router.New(registry.New(demo.New()), cache.New(), retry.Default(), store, zap.NewNop())

	engine := gin.New()
	NewHandler(rt, zap.NewNop()).Register(engine)
	return engine
}

func doRequest(t *testing.T, engine *gin.Engine, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func TestGetQuotes_ReturnsQuotesForSymbols(t *testing.T) {
	engine := newTestServer(t)

	w := doRequest(t, engine, http.MethodGet, "/api/v1/quotes?symbols=AAPL,MSFT", "")

	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Quotes []market.Quote `json:"quotes"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Quotes, 2)
	require.Equal(t, "AAPL", resp.Quotes[0].Symbol)
	require.Positive(t, resp.Quotes[0].Price)
}

func TestGetQuotes_MissingSymbolsIsBadRequest(t *testing.T) {
	engine := newTestServer(t)

	w := doRequest(t, engine, http.MethodGet, "/api/v1/quotes", "")

	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetDailyBars_RejectsInvertedRange(t *testing.T) {
	engine := newTestServer(t)

	w := doRequest(t, engine, http.MethodGet, "/api/v1/bars/AAPL?from=2025-06-10&to=2025-06-01", "")

	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetCandles_UnknownIntervalIsBadRequest(t *testing.T) {
	engine := newTestServer(t)

	w := doRequest(t, engine, http.MethodGet, "/api/v1/candles/AAPL?interval=2h", "")

	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDataSource_RoundTrip(t *testing.T) {
	engine := newTestServer(t)

	w := doRequest(t, engine, http.MethodPut, "/api/v1/datasource", `{"mode":"demo"}`)
	require.Equal(t, http.StatusOK, w.Code)

	w = doRequest(t, engine, http.MethodGet, "/api/v1/datasource", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Primary string `json:"primary"`
		Mode    string `json:"mode"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, "demo", resp.Mode)
	require.Equal(t, "demo", resp.Primary)
}

func TestDataSource_RejectsUnknownBackend(t *testing.T) {
	engine := newTestServer(t)

	w := doRequest(t, engine, http.MethodPut, "/api/v1/datasource", `{"primary":"bloomberg"}`)

	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetHealth_ReportsEveryBackend(t *testing.T) {
	engine := newTestServer(t)

	w := doRequest(t, engine, http.MethodGet, "/api/v1/health", "")

	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Backends map[market.BackendID]market.Health `json:"backends"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Contains(t, resp.Backends, market.BackendDemo)
	require.Equal(t, market.HealthHealthy, resp.Backends[market.BackendDemo].Status)
}

func TestGetOverview_IncludesIndices(t *testing.T) {
	engine := newTestServer(t)

	w := doRequest(t, engine, http.MethodGet, "/api/v1/overview", "")

	require.Equal(t, http.StatusOK, w.Code)
	var resp market.MarketOverview
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Indices)
	require.WithinDuration(t, time.Now(), resp.UpdatedAt, time.Minute)
}
