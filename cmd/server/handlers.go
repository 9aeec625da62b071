package main

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"marketdata/internal/market"
	"marketdata/internal/market/router"
)

const dateLayout = "2006-01-02"

// Handler exposes the data-access layer over HTTP.
type Handler struct {
	router *router.Router
	logger *zap.Logger
}

func NewHandler(r *router.Router, logger *zap.Logger) *Handler {
	return &Handler{router: r, logger: logger}
}

// Register mounts all routes on the engine.
func (h *Handler) Register(engine *gin.Engine) {
	v1 := engine.Group("/api/v1")
	{
		v1.GET("/quotes", h.GetQuotes)
		v1.GET("/bars/:symbol", h.GetDailyBars)
		v1.GET("/intraday/:symbol", h.GetIntraday)
		v1.GET("/overview", h.GetOverview)
		v1.GET("/candles/:symbol", h.GetCandles)
		v1.GET("/news/:symbol", h.GetNews)
		v1.GET("/calendar", h.GetCalendar)
		v1.GET("/sectors", h.GetSectors)
		v1.GET("/health", h.GetHealth)
		v1.GET("/datasource", h.GetDataSource)
		v1.PUT("/datasource", h.PutDataSource)
	}
}

// GetQuotes handles GET /api/v1/quotes?symbols=AAPL,MSFT
func (h *Handler) GetQuotes(c *gin.Context) {
	symbols := splitSymbols(c.Query("symbols"))
	if len(symbols) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "symbols query parameter is required"})
		return
	}
	quotes, err := h.router.FetchQuotes(c.Request.Context(), symbols)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"quotes": quotes})
}

// GetDailyBars handles GET /api/v1/bars/:symbol?from=2025-01-01&to=2025-02-01
func (h *Handler) GetDailyBars(c *gin.Context) {
	r, ok := h.parseRange(c, 30)
	if !ok {
		return
	}
	bars, err := h.router.FetchDailyBars(c.Request.Context(), c.Param("symbol"), r.From, r.To)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"symbol": c.Param("symbol"), "bars": bars})
}

// GetIntraday handles GET /api/v1/intraday/:symbol
func (h *Handler) GetIntraday(c *gin.Context) {
	points, err := h.router.FetchIntradayPrices(c.Request.Context(), c.Param("symbol"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"symbol": c.Param("symbol"), "points": points})
}

// GetOverview handles GET /api/v1/overview
func (h *Handler) GetOverview(c *gin.Context) {
	overview, err := h.router.FetchMarketOverview(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, overview)
}

// GetCandles handles GET /api/v1/candles/:symbol?from=...&to=...&interval=5m
func (h *Handler) GetCandles(c *gin.Context) {
	r, ok := h.parseRange(c, 7)
	if !ok {
		return
	}
	interval := market.Interval(c.DefaultQuery("interval", string(market.Interval1Day)))
	switch interval {
	case market.Interval1Min, market.Interval5Min, market.Interval15Min, market.Interval1Hour, market.Interval1Day:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown interval " + string(interval)})
		return
	}
	candles, err := h.router.FetchCandles(c.Request.Context(), c.Param("symbol"), r, interval)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"symbol": c.Param("symbol"), "interval": interval, "candles": candles})
}

// GetNews handles GET /api/v1/news/:symbol
func (h *Handler) GetNews(c *gin.Context) {
	r, ok := h.parseRange(c, 7)
	if !ok {
		return
	}
	news, err := h.router.FetchCompanyNews(c.Request.Context(), c.Param("symbol"), r)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"symbol": c.Param("symbol"), "news": news})
}

// GetCalendar handles GET /api/v1/calendar
func (h *Handler) GetCalendar(c *gin.Context) {
	r, ok := h.parseRange(c, 14)
	if !ok {
		return
	}
	events, err := h.router.FetchCalendar(c.Request.Context(), r)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}

// GetSectors handles GET /api/v1/sectors
func (h *Handler) GetSectors(c *gin.Context) {
	sectors, err := h.router.FetchSectorsSnapshot(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sectors": sectors})
}

// GetHealth handles GET /api/v1/health: it probes every backend on demand.
func (h *Handler) GetHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"backends": h.router.HealthCheckAll(c.Request.Context())})
}

type dataSourceResponse struct {
	Primary  market.BackendID `json:"primary"`
	Fallback market.BackendID `json:"fallback,omitempty"`
	Mode     string           `json:"mode"`
}

// GetDataSource handles GET /api/v1/datasource
func (h *Handler) GetDataSource(c *gin.Context) {
	resp := dataSourceResponse{Primary: h.router.Primary(), Mode: "live"}
	if fb, ok := h.router.Fallback(); ok {
		resp.Fallback = fb
	}
	if h.router.DemoMode() {
		resp.Mode = "demo"
	}
	c.JSON(http.StatusOK, resp)
}

type dataSourceRequest struct {
	Primary  *string `json:"primary"`
	Fallback *string `json:"fallback"`
	Mode     *string `json:"mode"`
}

// PutDataSource handles PUT /api/v1/datasource. Absent fields keep their
// current value; an empty fallback clears it.
func (h *Handler) PutDataSource(c *gin.Context) {
	var req dataSourceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if req.Primary != nil {
		if err := h.router.SetPrimary(market.BackendID(*req.Primary)); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	if req.Fallback != nil {
		if err := h.router.SetFallback(market.BackendID(*req.Fallback)); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	if req.Mode != nil {
		switch *req.Mode {
		case "demo", "live":
			if err := h.router.SetDemoMode(*req.Mode == "demo"); err != nil {
				h.respondError(c, err)
				return
			}
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": "mode must be demo or live"})
			return
		}
	}
	h.GetDataSource(c)
}

// parseRange reads the from/to query parameters, defaulting to the trailing
// defaultDays window.
func (h *Handler) parseRange(c *gin.Context, defaultDays int) (market.Range, bool) {
	now := time.Now().UTC()
	r := market.Range{From: now.AddDate(0, 0, -defaultDays), To: now}
	if v := c.Query("from"); v != "" {
		t, err := time.Parse(dateLayout, v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "from must be YYYY-MM-DD"})
			return market.Range{}, false
		}
		r.From = t
	}
	if v := c.Query("to"); v != "" {
		t, err := time.Parse(dateLayout, v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "to must be YYYY-MM-DD"})
			return market.Range{}, false
		}
		// Make the day inclusive.
		r.To = t.AddDate(0, 0, 1)
	}
	if !r.From.Before(r.To) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "from must precede to"})
		return market.Range{}, false
	}
	return r, true
}

func (h *Handler) respondError(c *gin.Context, err error) {
	status := http.StatusBadGateway
	body := gin.H{"error": err.Error()}
	if kind, ok := market.KindOf(err); ok {
		body["kind"] = kind
		switch kind {
		case market.KindRateLimited:
			status = http.StatusTooManyRequests
		case market.KindSymbolNotFound:
			status = http.StatusNotFound
		case market.KindNoCredentials, market.KindProviderUnavailable:
			status = http.StatusServiceUnavailable
		}
	}
	h.logger.Warn("request failed",
		zap.String("path", c.FullPath()),
		zap.Int("status", status),
		zap.Error(err))
	c.JSON(status, body)
}

func splitSymbols(raw string) []string {
	var out []string
	for _, s := range strings.Split(raw, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
