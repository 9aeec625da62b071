package market

import "time"

// Quote is the normalized real-time quote shape returned by all backends.
type Quote struct {
	Symbol        string    `json:"symbol"`
	Price         float64   `json:"price"`
	Change        float64   `json:"change"`
	ChangePercent float64   `json:"change_percent"`
	Open          float64   `json:"open"`
	High          float64   `json:"high"`
	Low           float64   `json:"low"`
	PrevClose     float64   `json:"prev_close"`
	Currency      string    `json:"currency"`
	Source        BackendID `json:"source"`
	ReceivedAt    time.Time `json:"received_at"`
}

// Bar is one daily OHLCV bar.
type Bar struct {
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume int64     `json:"volume"`
}

// IntradayPoint is a single intraday price observation.
type IntradayPoint struct {
	Time  time.Time `json:"time"`
	Price float64   `json:"price"`
}

// Candle is an OHLCV candle at an arbitrary interval.
type Candle struct {
	Time   time.Time `json:"time"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume int64     `json:"volume"`
}

// Interval is the candle resolution requested by callers.
type Interval string

const (
	Interval1Min  Interval = "1m"
	Interval5Min  Interval = "5m"
	Interval15Min Interval = "15m"
	Interval1Hour Interval = "1h"
	Interval1Day  Interval = "1d"
)

// Intraday reports whether the interval is finer than one day.
func (iv Interval) Intraday() bool { return iv != Interval1Day }

// Step returns the wall-clock width of one candle.
func (iv Interval) Step() time.Duration {
	switch iv {
	case Interval1Min:
		return time.Minute
	case Interval5Min:
		return 5 * time.Minute
	case Interval15Min:
		return 15 * time.Minute
	case Interval1Hour:
		return time.Hour
	default:
		return 24 * time.Hour
	}
}

// Range is a half-open [From, To) time window.
type Range struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// MarketOverview is a coarse market summary built from index quotes.
type MarketOverview struct {
	Indices   []Quote   `json:"indices"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewsItem is one company news headline.
type NewsItem struct {
	Symbol      string    `json:"symbol"`
	Headline    string    `json:"headline"`
	Summary     string    `json:"summary"`
	Source      string    `json:"source"`
	URL         string    `json:"url"`
	PublishedAt time.Time `json:"published_at"`
}

// CalendarEvent is one scheduled market event, currently earnings only.
type CalendarEvent struct {
	Symbol      string    `json:"symbol"`
	Kind        string    `json:"kind"`
	Date        time.Time `json:"date"`
	EPSEstimate float64   `json:"eps_estimate,omitempty"`
	EPSActual   float64   `json:"eps_actual,omitempty"`
}

// SectorSnapshot is the day performance of one market sector.
type SectorSnapshot struct {
	Sector        string  `json:"sector"`
	Symbol        string  `json:"symbol"`
	Price         float64 `json:"price"`
	ChangePercent float64 `json:"change_percent"`
}
