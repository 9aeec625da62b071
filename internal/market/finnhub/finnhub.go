// Package finnhub is the live backend adapter for finnhub.io.
package finnhub

import (
	"context"
	"time"

	"marketdata/internal/market"
)

const dateLayout = "2006-01-02"

var indices = []string{"SPY", "QQQ", "DIA"}

// Sector ETF proxies; Finnhub has no sector aggregate endpoint.
var sectors = []struct{ name, symbol string }{
	{"Technology", "XLK"},
	{"Financials", "XLF"},
	{"Health Care", "XLV"},
	{"Energy", "XLE"},
	{"Industrials", "XLI"},
	{"Consumer Discretionary", "XLY"},
	{"Consumer Staples", "XLP"},
	{"Materials", "XLB"},
	{"Utilities", "XLU"},
	{"Real Estate", "XLRE"},
	{"Communication Services", "XLC"},
}

// Config holds the adapter configuration.
type Config struct {
	APIKey string
}

// Adapter exposes Finnhub as a market data backend.
type Adapter struct {
	cfg    Config
	client *Client

	now func() time.Time // test seam
}

// New creates a Finnhub adapter around the given client.
func New(cfg Config, client *Client) *Adapter {
	return &Adapter{cfg: cfg, client: client, now: time.Now}
}

func (a *Adapter) ID() market.BackendID { return market.BackendFinnhub }
func (a *Adapter) Live() bool           { return true }
func (a *Adapter) HasCredentials() bool { return a.cfg.APIKey != "" }

func (a *Adapter) Capabilities() market.Capabilities {
	return market.Capabilities{
		RealtimeQuotes:   true,
		DailyBars:        true,
		IntradayBars:     true,
		CompanyNews:      true,
		EarningsCalendar: true,
	}
}

// requireKey is checked before any network call so a misconfigured backend
// fails without burning rate limit budget.
func (a *Adapter) requireKey() error {
	if a.cfg.APIKey == "" {
		return market.NewError(market.KindNoCredentials, "finnhub API key is not configured")
	}
	return nil
}

func (a *Adapter) HealthCheck(ctx context.Context) (market.Health, error) {
	if err := a.requireKey(); err != nil {
		return market.Health{Status: market.HealthNoCredentials, Message: "API key missing"}, nil
	}
	start := a.now()
	_, err := a.client.quote(ctx, "SPY")
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
		q, err := a.client.quote(ctx, sym)
		if err != nil {
			return nil, err
		}
		// Finnhub answers unknown symbols with an all-zero quote.
		if q.Current == 0 && q.PrevClose == 0 && q.Timestamp == 0 {
			return nil, market.NewError(market.KindSymbolNotFound, "no quote for "+sym)
		}
		out = append(out, market.Quote{
			Symbol:        sym,
			Price:         q.Current,
			Change:        q.Change,
			ChangePercent: q.ChangePercent,
			Open:          q.Open,
			High:          q.High,
			Low:           q.Low,
			PrevClose:     q.PrevClose,
			Currency:      "USD",
			Source:        market.BackendFinnhub,
			ReceivedAt:    a.now(),
		})
	}
	return out, nil
}

func (a *Adapter) FetchDailyBars(ctx context.Context, symbol string, from, to time.Time) ([]market.Bar, error) {
	if err := a.requireKey(); err != nil {
		return nil, err
	}
	resp, err := a.client.candles(ctx, symbol, "D", from.Unix(), to.Unix())
	if err != nil {
		return nil, err
	}
	candles, err := decodeCandles(symbol, resp)
	if err != nil {
		return nil, err
	}
	out := make([]market.Bar, 0, len(candles))
	for _, c := range candles {
		out = append(out, market.Bar{
			Date:   c.Time,
			Open:   c.Open,
			High:   c.High,
			Low:    c.Low,
			Close:  c.Close,
			Volume: c.Volume,
		})
	}
	return out, nil
}

func (a *Adapter) FetchIntradayPrices(ctx context.Context, symbol string) ([]market.IntradayPoint, error) {
	if err := a.requireKey(); err != nil {
		return nil, err
	}
	now := a.now()
	resp, err := a.client.candles(ctx, symbol, "5", now.Add(-24*time.Hour).Unix(), now.Unix())
	if err != nil {
		return nil, err
	}
	candles, err := decodeCandles(symbol, resp)
	if err != nil {
		return nil, err
	}
	out := make([]market.IntradayPoint, 0, len(candles))
	for _, c := range candles {
		out = append(out, market.IntradayPoint{Time: c.Time, Price: c.Close})
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
	resp, err := a.client.candles(ctx, symbol, resolutionFor(interval), r.From.Unix(), r.To.Unix())
	if err != nil {
		return nil, err
	}
	return decodeCandles(symbol, resp)
}

func (a *Adapter) FetchCompanyNews(ctx context.Context, symbol string, r market.Range) ([]market.NewsItem, error) {
	if err := a.requireKey(); err != nil {
		return nil, err
	}
	entries, err := a.client.companyNews(ctx, symbol, r.From.Format(dateLayout), r.To.Format(dateLayout))
	if err != nil {
		return nil, err
	}
	out := make([]market.NewsItem, 0, len(entries))
	for _, e := range entries {
		out = append(out, market.NewsItem{
			Symbol:      symbol,
			Headline:    e.Headline,
			Summary:     e.Summary,
			Source:      e.Source,
			URL:         e.URL,
			PublishedAt: time.Unix(e.Datetime, 0).UTC(),
		})
	}
	return out, nil
}

func (a *Adapter) FetchCalendar(ctx context.Context, r market.Range) ([]market.CalendarEvent, error) {
	if err := a.requireKey(); err != nil {
		return nil, err
	}
	resp, err := a.client.earningsCalendar(ctx, r.From.Format(dateLayout), r.To.Format(dateLayout))
	if err != nil {
		return nil, err
	}
	out := make([]market.CalendarEvent, 0, len(resp.EarningsCalendar))
	for _, e := range resp.EarningsCalendar {
		date, err := time.Parse(dateLayout, e.Date)
		if err != nil {
			return nil, market.WrapError(market.KindDecoding, "earnings date "+e.Date, err)
		}
		out = append(out, market.CalendarEvent{
			Symbol:      e.Symbol,
			Kind:        "earnings",
			Date:        date,
			EPSEstimate: e.EPSEstimate,
			EPSActual:   e.EPSActual,
		})
	}
	return out, nil
}

func (a *Adapter) FetchSectorsSnapshot(ctx context.Context) ([]market.SectorSnapshot, error) {
	if err := a.requireKey(); err != nil {
		return nil, err
	}
	out := make([]market.SectorSnapshot, 0, len(sectors))
	for _, s := range sectors {
		quotes, err := a.FetchQuotes(ctx, []string{s.symbol})
		if err != nil {
			return nil, err
		}
		out = append(out, market.SectorSnapshot{
			Sector:        s.name,
			Symbol:        s.symbol,
			Price:         quotes[0].Price,
			ChangePercent: quotes[0].ChangePercent,
		})
	}
	return out, nil
}

// decodeCandles validates the candle payload and converts it. Finnhub
// reports an empty range through the status field, not an empty array.
func decodeCandles(symbol string, resp candleResponse) ([]market.Candle, error) {
	switch resp.Status {
	case "ok":
	case "no_data":
		return nil, market.NewError(market.KindSymbolNotFound, "no candles for "+symbol)
	default:
		return nil, market.NewError(market.KindInvalidResponse, "candle status "+resp.Status)
	}
	n := len(resp.Times)
	if len(resp.Open) != n || len(resp.High) != n || len(resp.Low) != n || len(resp.Close) != n {
		return nil, market.NewError(market.KindDecoding, "candle arrays have mismatched lengths")
	}
	out := make([]market.Candle, 0, n)
	for i := 0; i < n; i++ {
		c := market.Candle{
			Time:  time.Unix(resp.Times[i], 0).UTC(),
			Open:  resp.Open[i],
			High:  resp.High[i],
			Low:   resp.Low[i],
			Close: resp.Close[i],
		}
		if i < len(resp.Volume) {
			c.Volume = resp.Volume[i]
		}
		out = append(out, c)
	}
	return out, nil
}

func resolutionFor(interval market.Interval) string {
	switch interval {
	case market.Interval1Min:
		return "1"
	case market.Interval5Min:
		return "5"
	case market.Interval15Min:
		return "15"
	case market.Interval1Hour:
		return "60"
	default:
		return "D"
	}
}
