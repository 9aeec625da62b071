package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"marketdata/internal/config"
	"marketdata/internal/httpx"
	"marketdata/internal/logger"
	"marketdata/internal/market"
	"marketdata/internal/market/alphavantage"
	"marketdata/internal/market/cache"
	"marketdata/internal/market/demo"
	"marketdata/internal/market/finnhub"
	"marketdata/internal/market/registry"
	"marketdata/internal/market/retry"
	"marketdata/internal/market/router"
	"marketdata/internal/settings"
)

func main() {
	configPath := flag.String("config", "", "path to config file (optional)")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	zlog, err := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer zlog.Sync()

	store, err := settings.Open(cfg.Settings.Path)
	if err != nil {
		zlog.Fatal("Failed to open settings store", zap.Error(err))
	}
	defer store.Close()

	rt := buildRouter(cfg, store, zlog)

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(requestLogger(zlog))

	engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})
	NewHandler(rt, zlog).Register(engine)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      engine,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		zlog.Info("Starting server", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zlog.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zlog.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		zlog.Fatal("Server forced to shutdown", zap.Error(err))
	}

	zlog.Info("Server exited properly")
}

// buildRouter assembles the data-access stack: adapters, registry, cache,
// retry policy and the routing layer on top.
func buildRouter(cfg *config.Config, store *settings.Store, zlog *zap.Logger) *router.Router {
	httpClient := httpx.New(cfg.Server.HTTPTimeout)

	adapters := []market.Adapter{demo.New()}
	if cfg.Finnhub.Enabled {
		client := finnhub.NewClient(cfg.Finnhub.APIKey,
			finnhub.WithHTTPClient(httpClient.HTTP))
		adapters = append(adapters, finnhub.New(finnhub.Config{APIKey: cfg.Finnhub.APIKey}, client))
	}
	if cfg.AlphaVantage.Enabled {
		adapters = append(adapters,
			alphavantage.New(alphavantage.Config{APIKey: cfg.AlphaVantage.APIKey}, httpClient))
	}
	for _, a := range adapters {
		if a.Live() && !a.HasCredentials() {
			zlog.Warn("backend enabled without credentials", zap.String("backend", string(a.ID())))
		}
	}

	policy := retry.Policy{
		MaxRetries:     cfg.Retry.MaxRetries,
		BaseDelay:      cfg.Retry.BaseDelay,
		MaxDelay:       cfg.Retry.MaxDelay,
		JitterFraction: cfg.Retry.JitterFraction,
	}

	return router.New(registry.New(adapters...), cache.New(), policy, store, zlog)
}

func requestLogger(zlog *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		zlog.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
		)
	}
}
