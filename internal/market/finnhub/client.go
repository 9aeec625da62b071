package finnhub

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"marketdata/internal/market"
)

// HTTPClient describes an HTTP client.
//
//go:generate mockgen -package=finnhub_test -destination=mock_http_client_test.go -source=client.go HTTPClient
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

const defaultBaseURL = "https://finnhub.io/api/v1"

// Client is a thin client for the Finnhub REST API. It owns the mapping
// from HTTP-level failures onto the shared error taxonomy.
type Client struct {
	// baseURL is the base URL for the API.
	baseURL string
	// httpClient performs the requests.
	httpClient HTTPClient
	// token authenticates every request via the token query parameter.
	token string
}

// ClientOption is a configuration option for the Finnhub client.
type ClientOption func(*Client)

// WithBaseURL overrides the API base URL.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// WithHTTPClient sets the HTTP client for the API.
func WithHTTPClient(httpClient HTTPClient) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// NewClient creates a new Finnhub API client.
func NewClient(token string, options ...ClientOption) *Client {
	c := &Client{
		baseURL:    defaultBaseURL,
		httpClient: http.DefaultClient,
		token:      token,
	}
	for _, option := range options {
		option(c)
	}
	return c
}

type quoteResponse struct {
	Current       float64 `json:"c"`
	Change        float64 `json:"d"`
	ChangePercent float64 `json:"dp"`
	High          float64 `json:"h"`
	Low           float64 `json:"l"`
	Open          float64 `json:"o"`
	PrevClose     float64 `json:"pc"`
	Timestamp     int64   `json:"t"`
}

type candleResponse struct {
	Close  []float64 `json:"c"`
	High   []float64 `json:"h"`
	Low    []float64 `json:"l"`
	Open   []float64 `json:"o"`
	Times  []int64   `json:"t"`
	Volume []int64   `json:"v"`
	Status string    `json:"s"`
}

type newsEntry struct {
	Datetime int64  `json:"datetime"`
	Headline string `json:"headline"`
	Related  string `json:"related"`
	Source   string `json:"source"`
	Summary  string `json:"summary"`
	URL      string `json:"url"`
}

type earningsEntry struct {
	Date        string  `json:"date"`
	EPSActual   float64 `json:"epsActual"`
	EPSEstimate float64 `json:"epsEstimate"`
	Symbol      string  `json:"symbol"`
}

type earningsResponse struct {
	EarningsCalendar []earningsEntry `json:"earningsCalendar"`
}

// quote fetches the real-time quote for one symbol.
func (c *Client) quote(ctx context.Context, symbol string) (quoteResponse, error) {
	var out quoteResponse
	q := url.Values{"symbol": {symbol}}
	err := c.get(ctx, "/quote", q, &out)
	return out, err
}

// candles fetches OHLCV candles at the given resolution over [from, to]
// epoch seconds.
func (c *Client) candles(ctx context.Context, symbol, resolution string, from, to int64) (candleResponse, error) {
	var out candleResponse
	q := url.Values{
		"symbol":     {symbol},
		"resolution": {resolution},
		"from":       {fmt.Sprint(from)},
		"to":         {fmt.Sprint(to)},
	}
	err := c.get(ctx, "/stock/candle", q, &out)
	return out, err
}

// companyNews fetches company news between from and to (YYYY-MM-DD).
func (c *Client) companyNews(ctx context.Context, symbol, from, to string) ([]newsEntry, error) {
	var out []newsEntry
	q := url.Values{"symbol": {symbol}, "from": {from}, "to": {to}}
	err := c.get(ctx, "/company-news", q, &out)
	return out, err
}

// earningsCalendar fetches the earnings calendar between from and to
// (YYYY-MM-DD).
func (c *Client) earningsCalendar(ctx context.Context, from, to string) (earningsResponse, error) {
	var out earningsResponse
	q := url.Values{"from": {from}, "to": {to}}
	err := c.get(ctx, "/calendar/earnings", q, &out)
	return out, err
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	query.Set("token", c.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+query.Encode(), nil)
	if err != nil {
		return market.WrapError(market.KindNetwork, "build request", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return market.WrapError(market.KindNetwork, "GET "+path, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return market.NewError(market.KindRateLimited, "finnhub throttled the request")
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return market.NewError(market.KindAuthFailed, "finnhub rejected the API token")
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return market.NewError(market.KindInvalidResponse, fmt.Sprintf("GET %s -> %d", path, resp.StatusCode))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return market.WrapError(market.KindDecoding, "GET "+path, err)
	}
	return nil
}
