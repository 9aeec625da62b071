// Package demo is the synthetic offline backend. It needs no credentials,
// never fails, and produces deterministic data so the application stays
// usable (and testable) without any upstream API.
package demo

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"math/rand"
	"time"

	"github.com/scmhub/calendar"

	"marketdata/internal/market"
)

const sourceName = "demo"

// Sector ETF proxies mirrored from the live backends so sector snapshots
// look the same regardless of source.
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

var indices = []string{"SPY", "QQQ", "DIA"}

// Adapter generates deterministic market data on NYSE business days.
type Adapter struct {
	cal *calendar.Calendar
	loc *time.Location

	now func() time.Time // test seam
}

func New() *Adapter {
	a := &Adapter{now: time.Now}
	if cal := calendar.GetCalendar("xnys"); cal != nil {
		a.cal = cal
		a.loc = cal.Loc
	}
	if a.loc == nil {
		if ny, err := time.LoadLocation("America/New_York"); err == nil {
			a.loc = ny
		} else {
			a.loc = time.UTC
		}
	}
	return a
}

func (a *Adapter) ID() market.BackendID { return market.BackendDemo }
func (a *Adapter) Live() bool           { return false }
func (a *Adapter) HasCredentials() bool { return true }

func (a *Adapter) Capabilities() market.Capabilities {
	return market.Capabilities{
		RealtimeQuotes:   true,
		DailyBars:        true,
		IntradayBars:     true,
		CompanyNews:      true,
		EarningsCalendar: true,
	}
}

func (a *Adapter) HealthCheck(context.Context) (market.Health, error) {
	return market.Health{Status: market.HealthHealthy, Latency: time.Millisecond}, nil
}

func (a *Adapter) FetchQuotes(_ context.Context, symbols []string) ([]market.Quote, error) {
	now := a.now()
	out := make([]market.Quote, 0, len(symbols))
	for _, sym := range symbols {
		out = append(out, a.quoteFor(sym, now))
	}
	return out, nil
}

func (a *Adapter) FetchDailyBars(_ context.Context, symbol string, from, to time.Time) ([]market.Bar, error) {
	var out []market.Bar
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		if !a.businessDay(d) {
			continue
		}
		out = append(out, a.barFor(symbol, d))
	}
	return out, nil
}

func (a *Adapter) FetchIntradayPrices(_ context.Context, symbol string) ([]market.IntradayPoint, error) {
	now := a.now()
	rng := rand.New(rand.NewSource(int64(seed(symbol)) ^ dayEpoch(now)))
	price := a.closeFor(symbol, now)

	// One point every five minutes over the trailing session.
	const points = 78 // 6.5 hours
	out := make([]market.IntradayPoint, 0, points)
	start := now.Add(-time.Duration(points) * 5 * time.Minute)
	for i := 0; i < points; i++ {
		price *= 1 + (rng.Float64()-0.5)*0.002
		out = append(out, market.IntradayPoint{
			Time:  start.Add(time.Duration(i) * 5 * time.Minute),
			Price: round2(price),
		})
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

func (a *Adapter) FetchCandles(_ context.Context, symbol string, r market.Range, interval market.Interval) ([]market.Candle, error) {
	step := interval.Step()
	rng := rand.New(rand.NewSource(int64(seed(symbol)) ^ r.From.Unix()))
	price := a.closeFor(symbol, r.From)

	var out []market.Candle
	for t := r.From; t.Before(r.To); t = t.Add(step) {
		if !interval.Intraday() && !a.businessDay(t) {
			continue
		}
		open := price
		price *= 1 + (rng.Float64()-0.5)*0.01
		c := market.Candle{
			Time:   t,
			Open:   round2(open),
			Close:  round2(price),
			High:   round2(math.Max(open, price) * 1.002),
			Low:    round2(math.Min(open, price) * 0.998),
			Volume: 1_000_000 + rng.Int63n(9_000_000),
		}
		out = append(out, c)
	}
	return out, nil
}

func (a *Adapter) FetchCompanyNews(_ context.Context, symbol string, r market.Range) ([]market.NewsItem, error) {
	var out []market.NewsItem
	for d := r.From; !d.After(r.To); d = d.AddDate(0, 0, 1) {
		if !a.businessDay(d) {
			continue
		}
		rng := rand.New(rand.NewSource(int64(seed(symbol)) ^ dayEpoch(d)))
		out = append(out, market.NewsItem{
			Symbol:      symbol,
			Headline:    fmt.Sprintf("%s %s after session", symbol, direction(rng)),
			Summary:     fmt.Sprintf("Synthetic coverage of %s for offline use.", symbol),
			Source:      "Demo Wire",
			URL:         fmt.Sprintf("https://example.invalid/news/%s/%s", symbol, d.Format("2006-01-02")),
			PublishedAt: d,
		})
	}
	return out, nil
}

func (a *Adapter) FetchCalendar(_ context.Context, r market.Range) ([]market.CalendarEvent, error) {
	var out []market.CalendarEvent
	watch := []string{"AAPL", "MSFT", "NVDA", "AMZN", "GOOGL"}
	for d := r.From; !d.After(r.To); d = d.AddDate(0, 0, 1) {
		if !a.businessDay(d) {
			continue
		}
		// One earnings event per business day, rotating the watchlist.
		sym := watch[int(dayEpoch(d))%len(watch)]
		rng := rand.New(rand.NewSource(int64(seed(sym)) ^ dayEpoch(d)))
		out = append(out, market.CalendarEvent{
			Symbol:      sym,
			Kind:        "earnings",
			Date:        d,
			EPSEstimate: round2(1 + rng.Float64()*4),
		})
	}
	return out, nil
}

func (a *Adapter) FetchSectorsSnapshot(_ context.Context) ([]market.SectorSnapshot, error) {
	now := a.now()
	out := make([]market.SectorSnapshot, 0, len(sectors))
	for _, s := range sectors {
		q := a.quoteFor(s.symbol, now)
		out = append(out, market.SectorSnapshot{
			Sector:        s.name,
			Symbol:        s.symbol,
			Price:         q.Price,
			ChangePercent: q.ChangePercent,
		})
	}
	return out, nil
}

// quoteFor derives a stable quote for the symbol on the given day.
func (a *Adapter) quoteFor(sym string, now time.Time) market.Quote {
	price := a.closeFor(sym, now)
	prev := a.closeFor(sym, a.prevBusinessDay(now))
	change := price - prev
	pct := 0.0
	if prev != 0 {
		pct = change / prev * 100
	}
	return market.Quote{
		Symbol:        sym,
		Price:         round2(price),
		Change:        round2(change),
		ChangePercent: round2(pct),
		Open:          round2(prev * 1.001),
		High:          round2(math.Max(price, prev) * 1.004),
		Low:           round2(math.Min(price, prev) * 0.996),
		PrevClose:     round2(prev),
		Currency:      "USD",
		Source:        market.BackendDemo,
		ReceivedAt:    now,
	}
}

func (a *Adapter) barFor(symbol string, d time.Time) market.Bar {
	rng := rand.New(rand.NewSource(int64(seed(symbol)) ^ dayEpoch(d)))
	close := a.closeFor(symbol, d)
	open := close * (1 + (rng.Float64()-0.5)*0.01)
	return market.Bar{
		Date:   d,
		Open:   round2(open),
		Close:  round2(close),
		High:   round2(math.Max(open, close) * 1.005),
		Low:    round2(math.Min(open, close) * 0.995),
		Volume: 5_000_000 + rng.Int63n(45_000_000),
	}
}

// closeFor is the deterministic closing price of symbol on the day of t: a
// per-symbol base with a slow sinusoidal drift over the year.
func (a *Adapter) closeFor(symbol string, t time.Time) float64 {
	base := 20 + float64(seed(symbol)%98000)/100 // 20.00 .. 999.99
	drift := math.Sin(float64(t.YearDay())/58) * 0.05
	daily := float64((int64(seed(symbol))^dayEpoch(t))%13)/1300 - 0.005
	return base * (1 + drift + daily)
}

func (a *Adapter) businessDay(t time.Time) bool {
	t = t.In(a.loc)
	if a.cal != nil {
		return a.cal.IsBusinessDay(t)
	}
	wd := t.Weekday()
	return wd != time.Saturday && wd != time.Sunday
}

func (a *Adapter) prevBusinessDay(t time.Time) time.Time {
	d := t.AddDate(0, 0, -1)
	for i := 0; i < 10 && !a.businessDay(d); i++ {
		d = d.AddDate(0, 0, -1)
	}
	return d
}

func seed(symbol string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(symbol))
	return h.Sum32()
}

func dayEpoch(t time.Time) int64 {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Unix()
}

func direction(rng *rand.Rand) string {
	if rng.Float64() < 0.5 {
		return "edges lower"
	}
	return "pushes higher"
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
