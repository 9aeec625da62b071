// Package alphavantage is the live backend adapter for alphavantage.co.
// The free tier is tightly metered (5 requests per minute, 500 per day) and
// signals throttling inside a 200 response body, not via HTTP status.
package alphavantage

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"marketdata/internal/httpx"
	"marketdata/internal/market"
)

const (
	defaultBaseURL = "https://www.alphavantage.co/query"
	dateLayout     = "2006-01-02"
	stampLayout    = "2006-01-02 15:04:05"
)

var indices = []string{"SPY", "QQQ", "DIA"}

// Config holds the adapter configuration.
type Config struct {
	APIKey string
}

// Option configures the adapter.
type Option func(*Adapter)

// WithBaseURL overrides the API endpoint.
func WithBaseURL(baseURL string) Option {
	return func(a *Adapter) {
		a.baseURL = baseURL
	}
}

// Adapter exposes Alpha Vantage as a market data backend.
type Adapter struct {
	cfg     Config
	http    *httpx.Client
	baseURL string
	loc     *time.Location

	now func() time.Time // test seam
}

func New(cfg Config, client *httpx.Client, options ...Option) *Adapter {
	a := &Adapter{
		cfg:     cfg,
		http:    client,
		baseURL: defaultBaseURL,
		loc:     time.UTC,
		now:     time.Now,
	}
	// Alpha Vantage timestamps intraday series in US Eastern time.
	if ny, err := time.LoadLocation("America/New_York"); err == nil {
		a.loc = ny
	}
	for _, option := range options {
		option(a)
	}
	return a
}

func (a *Adapter) ID() market.BackendID { return market.BackendAlphaVantage }
func (a *Adapter) Live() bool           { return true }
func (a *Adapter) HasCredentials() bool { return a.cfg.APIKey != "" }

func (a *Adapter) Capabilities() market.Capabilities {
	return market.Capabilities{
		RealtimeQuotes:    true,
		DailyBars:         true,
		IntradayBars:      true,
		MaxSymbolsPerCall: 1,
	}
}

func (a *Adapter) requireKey() error {
	if a.cfg.APIKey == "" {
		return market.NewError(market.KindNoCredentials, "alphavantage API key is not configured")
	}
	return nil
}

func (a *Adapter) HealthCheck(ctx context.Context) (market.Health, error) {
	if err := a.requireKey(); err != nil {
		return market.Health{Status: market.HealthNoCredentials, Message: "API key missing"}, nil
	}
	start := a.now()
	_, err := a.globalQuote(ctx, "SPY")
	latency := a.now().Sub(start)
	if err != nil {
		if kind, ok := market.KindOf(err); ok {
			switch kind {
			case market.KindRateLimited:
				return market.Health{Status: market.HealthRateLimited, Latency: latency, Message: err.Error()}, nil
			case market.KindNetwork:
				return market.Health{}, err
			}
		}
		return market.Health{Status: market.HealthError, Latency: latency, Message: err.Error()}, nil
	}
	status := market.HealthHealthy
	if latency > 2*time.Second {
		status = market.HealthDegraded
	}
	return market.Health{Status: status, Latency: latency}, nil
}

func (a *Adapter) FetchQuotes(ctx context.Context, symbols []string) ([]market.Quote, error) {
	if err := a.requireKey(); err != nil {
		return nil, err
	}
	out := make([]market.Quote, 0, len(symbols))
	for _, sym := range symbols {
		q, err := a.globalQuote(ctx, sym)
		if err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, nil
}

func (a *Adapter) FetchDailyBars(ctx context.Context, symbol string, from, to time.Time) ([]market.Bar, error) {
	if err := a.requireKey(); err != nil {
		return nil, err
	}
	series, err := a.series(ctx, symbol, url.Values{
		"function":   {"TIME_SERIES_DAILY"},
		"symbol":     {symbol},
		"outputsize": {"full"},
	}, "Time Series (Daily)", dateLayout, time.UTC)
	if err != nil {
		return nil, err
	}
	out := make([]market.Bar, 0, len(series))
	for _, p := range series {
		if p.time.Before(from) || p.time.After(to) {
			continue
		}
		out = append(out, market.Bar{
			Date:   p.time,
			Open:   p.open,
			High:   p.high,
			Low:    p.low,
			Close:  p.close,
			Volume: p.volume,
		})
	}
	return out, nil
}

func (a *Adapter) FetchIntradayPrices(ctx context.Context, symbol string) ([]market.IntradayPoint, error) {
	if err := a.requireKey(); err != nil {
		return nil, err
	}
	series, err := a.series(ctx, symbol, url.Values{
		"function": {"TIME_SERIES_INTRADAY"},
		"symbol":   {symbol},
		"interval": {"5min"},
	}, "Time Series (5min)", stampLayout, a.loc)
	if err != nil {
		return nil, err
	}
	out := make([]market.IntradayPoint, 0, len(series))
	for _, p := range series {
		out = append(out, market.IntradayPoint{Time: p.time, Price: p.close})
	}
	return out, nil
}

func (a *Adapter) FetchMarketOverview(ctx context.Context) (market.MarketOverview, error) {
	quotes, err := a.FetchQuotes(ctx, indices)
	if err != nil {
		return market.MarketOverview{}, err
	}
	return market.MarketOverview{Indices: quotes, UpdatedAt: a.now()}, nil
}

func (a *Adapter) FetchCandles(ctx context.Context, symbol string, r market.Range, interval market.Interval) ([]market.Candle, error) {
	if err := a.requireKey(); err != nil {
		return nil, err
	}
	var (
		query  url.Values
		key    string
		layout string
		loc    = time.UTC
	)
	if interval.Intraday() {
		step := intervalParam(interval)
		query = url.Values{
			"function":   {"TIME_SERIES_INTRADAY"},
			"symbol":     {symbol},
			"interval":   {step},
			"outputsize": {"full"},
		}
		key = fmt.Sprintf("Time Series (%s)", step)
		layout = stampLayout
		loc = a.loc
	} else {
		query = url.Values{
			"function":   {"TIME_SERIES_DAILY"},
			"symbol":     {symbol},
			"outputsize": {"full"},
		}
		key = "Time Series (Daily)"
		layout = dateLayout
	}
	series, err := a.series(ctx, symbol, query, key, layout, loc)
	if err != nil {
		return nil, err
	}
	out := make([]market.Candle, 0, len(series))
	for _, p := range series {
		if p.time.Before(r.From) || !p.time.Before(r.To) {
			continue
		}
		out = append(out, market.Candle{
			Time:   p.time,
			Open:   p.open,
			High:   p.high,
			Low:    p.low,
			Close:  p.close,
			Volume: p.volume,
		})
	}
	return out, nil
}

func (a *Adapter) FetchCompanyNews(context.Context, string, market.Range) ([]market.NewsItem, error) {
	return nil, market.NewError(market.KindProviderUnavailable, "alphavantage does not serve company news")
}

func (a *Adapter) FetchCalendar(context.Context, market.Range) ([]market.CalendarEvent, error) {
	return nil, market.NewError(market.KindProviderUnavailable, "alphavantage does not serve the earnings calendar")
}

func (a *Adapter) FetchSectorsSnapshot(ctx context.Context) ([]market.SectorSnapshot, error) {
	if err := a.requireKey(); err != nil {
		return nil, err
	}
	payload, err := a.query(ctx, url.Values{"function": {"SECTOR"}})
	if err != nil {
		return nil, err
	}
	var ranked map[string]string
	if err := decodeSection(payload, "Rank A: Real-Time Performance", &ranked); err != nil {
		return nil, err
	}
	out := make([]market.SectorSnapshot, 0, len(ranked))
	for sector, pct := range ranked {
		change, err := parsePercent(pct)
		if err != nil {
			return nil, market.WrapError(market.KindDecoding, "sector performance "+sector, err)
		}
		out = append(out, market.SectorSnapshot{Sector: sector, ChangePercent: change})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Sector < out[j].Sector })
	return out, nil
}

type globalQuote struct {
	Symbol        string `json:"01. symbol"`
	Open          string `json:"02. open"`
	High          string `json:"03. high"`
	Low           string `json:"04. low"`
	Price         string `json:"05. price"`
	PrevClose     string `json:"08. previous close"`
	Change        string `json:"09. change"`
	ChangePercent string `json:"10. change percent"`
}

func (a *Adapter) globalQuote(ctx context.Context, symbol string) (market.Quote, error) {
	payload, err := a.query(ctx, url.Values{"function": {"GLOBAL_QUOTE"}, "symbol": {symbol}})
	if err != nil {
		return market.Quote{}, err
	}
	var gq globalQuote
	if err := decodeSection(payload, "Global Quote", &gq); err != nil {
		return market.Quote{}, err
	}
	// An empty object means the symbol is unknown.
	if gq.Symbol == "" {
		return market.Quote{}, market.NewError(market.KindSymbolNotFound, "no quote for "+symbol)
	}
	q := market.Quote{
		Symbol:     gq.Symbol,
		Currency:   "USD",
		Source:     market.BackendAlphaVantage,
		ReceivedAt: a.now(),
	}
	fields := []struct {
		dst  *float64
		raw  string
		name string
	}{
		{&q.Price, gq.Price, "price"},
		{&q.Open, gq.Open, "open"},
		{&q.High, gq.High, "high"},
		{&q.Low, gq.Low, "low"},
		{&q.PrevClose, gq.PrevClose, "previous close"},
		{&q.Change, gq.Change, "change"},
	}
	for _, f := range fields {
		v, err := strconv.ParseFloat(f.raw, 64)
		if err != nil {
			return market.Quote{}, market.WrapError(market.KindDecoding, "quote "+f.name, err)
		}
		*f.dst = v
	}
	if q.ChangePercent, err = parsePercent(gq.ChangePercent); err != nil {
		return market.Quote{}, market.WrapError(market.KindDecoding, "quote change percent", err)
	}
	return q, nil
}

type seriesPoint struct {
	time                   time.Time
	open, high, low, close float64
	volume                 int64
}

type seriesEntry struct {
	Open   string `json:"1. open"`
	High   string `json:"2. high"`
	Low    string `json:"3. low"`
	Close  string `json:"4. close"`
	Volume string `json:"5. volume"`
}

// series fetches and flattens one time-series payload, oldest first.
func (a *Adapter) series(ctx context.Context, symbol string, query url.Values, section, layout string, loc *time.Location) ([]seriesPoint, error) {
	payload, err := a.query(ctx, query)
	if err != nil {
		return nil, err
	}
	var entries map[string]seriesEntry
	if err := decodeSection(payload, section, &entries); err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, market.NewError(market.KindSymbolNotFound, "no series for "+symbol)
	}
	out := make([]seriesPoint, 0, len(entries))
	for stamp, e := range entries {
		t, err := time.ParseInLocation(layout, stamp, loc)
		if err != nil {
			return nil, market.WrapError(market.KindDecoding, "series timestamp "+stamp, err)
		}
		p := seriesPoint{time: t.UTC()}
		for _, f := range []struct {
			dst *float64
			raw string
		}{
			{&p.open, e.Open},
			{&p.high, e.High},
			{&p.low, e.Low},
			{&p.close, e.Close},
		} {
			v, err := strconv.ParseFloat(f.raw, 64)
			if err != nil {
				return nil, market.WrapError(market.KindDecoding, "series value at "+stamp, err)
			}
			*f.dst = v
		}
		if e.Volume != "" {
			if p.volume, err = strconv.ParseInt(e.Volume, 10, 64); err != nil {
				return nil, market.WrapError(market.KindDecoding, "series volume at "+stamp, err)
			}
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].time.Before(out[j].time) })
	return out, nil
}

// query performs one API request and surfaces the in-band failure modes:
// throttling and unknown symbols both arrive inside a 200 body.
func (a *Adapter) query(ctx context.Context, query url.Values) (map[string]json.RawMessage, error) {
	query.Set("apikey", a.cfg.APIKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"?"+query.Encode(), nil)
	if err != nil {
		return nil, market.WrapError(market.KindNetwork, "build request", err)
	}
	resp, err := a.http.Do(ctx, req)
	if err != nil {
		return nil, market.WrapError(market.KindNetwork, "GET "+query.Get("function"), err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, market.NewError(market.KindRateLimited, "alphavantage throttled the request")
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, market.NewError(market.KindAuthFailed, "alphavantage rejected the API key")
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, market.NewError(market.KindInvalidResponse,
			fmt.Sprintf("%s -> %d", query.Get("function"), resp.StatusCode))
	}

	var payload map[string]json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, market.WrapError(market.KindDecoding, query.Get("function"), err)
	}
	for _, key := range []string{"Note", "Information"} {
		if raw, ok := payload[key]; ok {
			var msg string
			_ = json.Unmarshal(raw, &msg)
			return nil, market.NewError(market.KindRateLimited, firstLine(msg))
		}
	}
	if raw, ok := payload["Error Message"]; ok {
		var msg string
		_ = json.Unmarshal(raw, &msg)
		return nil, market.NewError(market.KindSymbolNotFound, firstLine(msg))
	}
	return payload, nil
}

func decodeSection(payload map[string]json.RawMessage, key string, out any) error {
	raw, ok := payload[key]
	if !ok {
		return market.NewError(market.KindInvalidResponse, "response is missing "+strconv.Quote(key))
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return market.WrapError(market.KindDecoding, key, err)
	}
	return nil
}

func intervalParam(interval market.Interval) string {
	switch interval {
	case market.Interval1Min:
		return "1min"
	case market.Interval15Min:
		return "15min"
	case market.Interval1Hour:
		return "60min"
	default:
		return "5min"
	}
}

func parsePercent(s string) (float64, error) {
	return strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(s), "%"), 64)
}

func firstLine(s string) string {
	if s == "" {
		return "alphavantage throttled the request"
	}
	if i := strings.IndexByte(s, '.'); i > 0 {
		return s[:i+1]
	}
	return s
}
