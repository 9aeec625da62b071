// Command fetch is a one-shot CLI for inspecting what the data-access layer
// returns, without running the HTTP server.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"marketdata/internal/config"
	"marketdata/internal/httpx"
	"marketdata/internal/market"
	"marketdata/internal/market/alphavantage"
	"marketdata/internal/market/cache"
	"marketdata/internal/market/demo"
	"marketdata/internal/market/finnhub"
	"marketdata/internal/market/registry"
	"marketdata/internal/market/retry"
	"marketdata/internal/market/router"
)

// memSettings keeps the CLI's source selection out of the server's database.
type memSettings map[string]string

func (m memSettings) Get(key string) (string, bool, error) {
	v, ok := m[key]
	return v, ok, nil
}

func (m memSettings) Set(key, value string) error {
	m[key] = value
	return nil
}

func main() {
	var (
		configPath string
		kind       string
		symbolsCSV string
		fromStr    string
		toStr      string
		interval   string
		source     string
		timeout    int
	)
	flag.StringVar(&configPath, "config", getenv("CONFIG_FILE", ""), "path to config file (optional)")
	flag.StringVar(&kind, "kind", "quotes", "what to fetch: quotes|bars|intraday|overview|candles|news|calendar|sectors|health")
	flag.StringVar(&symbolsCSV, "symbols", getenv("SYMBOLS", "AAPL,MSFT"), "comma-separated ticker symbols")
	flag.StringVar(&fromStr, "from", "", "range start, YYYY-MM-DD (default: trailing week)")
	flag.StringVar(&toStr, "to", "", "range end, YYYY-MM-DD (default: today)")
	flag.StringVar(&interval, "interval", "1d", "candle interval: 1m|5m|15m|1h|1d")
	flag.StringVar(&source, "source", "", "pin the primary backend: finnhub|alphavantage|demo")
	flag.IntVar(&timeout, "timeout", 30, "request timeout seconds")
	flag.Parse()

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	httpClient := httpx.New(cfg.Server.HTTPTimeout)
	adapters := []market.Adapter{demo.New()}
	if cfg.Finnhub.Enabled && cfg.Finnhub.APIKey != "" {
		client := finnhub.NewClient(cfg.Finnhub.APIKey, finnhub.WithHTTPClient(httpClient.HTTP))
		adapters = append(adapters, finnhub.New(finnhub.Config{APIKey: cfg.Finnhub.APIKey}, client))
	}
	if cfg.AlphaVantage.Enabled && cfg.AlphaVantage.APIKey != "" {
		adapters = append(adapters,
			alphavantage.New(alphavantage.Config{APIKey: cfg.AlphaVantage.APIKey}, httpClient))
	}

	policy := retry.Policy{
		MaxRetries:     cfg.Retry.MaxRetries,
		BaseDelay:      cfg.Retry.BaseDelay,
		MaxDelay:       cfg.Retry.MaxDelay,
		JitterFraction: cfg.Retry.JitterFraction,
	}
	rt := router.New(registry.New(adapters...), cache.New(), policy, memSettings{}, zap.NewNop())

	if source != "" {
		if err := rt.SetPrimary(market.BackendID(source)); err != nil {
			log.Fatalf("source: %v", err)
		}
	} else if len(adapters) > 1 {
		// Prefer the first configured live backend.
		if err := rt.SetPrimary(adapters[1].ID()); err != nil {
			log.Fatalf("source: %v", err)
		}
	}

	rng, err := parseRange(fromStr, toStr)
	if err != nil {
		log.Fatalf("range: %v", err)
	}
	symbols := splitCSV(symbolsCSV)

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(timeout)*time.Second)
	defer cancel()

	var out any
	switch kind {
	case "quotes":
		out, err = rt.FetchQuotes(ctx, symbols)
	case "bars":
		requireSymbols(symbols)
		out, err = rt.FetchDailyBars(ctx, symbols[0], rng.From, rng.To)
	case "intraday":
		requireSymbols(symbols)
		out, err = rt.FetchIntradayPrices(ctx, symbols[0])
	case "overview":
		out, err = rt.FetchMarketOverview(ctx)
	case "candles":
		requireSymbols(symbols)
		out, err = rt.FetchCandles(ctx, symbols[0], rng, market.Interval(interval))
	case "news":
		requireSymbols(symbols)
		out, err = rt.FetchCompanyNews(ctx, symbols[0], rng)
	case "calendar":
		out, err = rt.FetchCalendar(ctx, rng)
	case "sectors":
		out, err = rt.FetchSectorsSnapshot(ctx)
	case "health":
		out = rt.HealthCheckAll(ctx)
	default:
		log.Fatalf("unknown kind %q", kind)
	}
	if err != nil {
		log.Fatalf("%s: %v", kind, err)
	}

	b, _ := json.MarshalIndent(out, "", "  ")
	fmt.Println(string(b))
}

func parseRange(fromStr, toStr string) (market.Range, error) {
	now := time.Now().UTC()
	r := market.Range{From: now.AddDate(0, 0, -7), To: now}
	if fromStr != "" {
		t, err := time.Parse("2006-01-02", fromStr)
		if err != nil {
			return market.Range{}, err
		}
		r.From = t
	}
	if toStr != "" {
		t, err := time.Parse("2006-01-02", toStr)
		if err != nil {
			return market.Range{}, err
		}
		r.To = t.AddDate(0, 0, 1)
	}
	return r, nil
}

func requireSymbols(symbols []string) {
	if len(symbols) == 0 {
		log.Fatal("no symbols provided")
	}
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
