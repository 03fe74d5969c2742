package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/boddenberg/pf-balances-bfa/internal/config"
	"github.com/boddenberg/pf-balances-bfa/internal/handler"
	"github.com/boddenberg/pf-balances-bfa/internal/infra/cache"
	"github.com/boddenberg/pf-balances-bfa/internal/infra/observability"
	"github.com/boddenberg/pf-balances-bfa/internal/infra/rates"
	"github.com/boddenberg/pf-balances-bfa/internal/infra/resilience"
	"github.com/boddenberg/pf-balances-bfa/internal/infra/sqlitecache"
	"github.com/boddenberg/pf-balances-bfa/internal/infra/supabase"
	"github.com/boddenberg/pf-balances-bfa/internal/port"
	"github.com/boddenberg/pf-balances-bfa/internal/service"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const serviceName = "pf-balances-bfa"

func main() {
	// --- Load .env file (for local development) ---
	_ = config.LoadDotEnv(".env")

	// --- Config ---
	cfg := config.Load()

	// --- Logger ---
	logger := observability.NewLogger(cfg.LogLevel, serviceName)
	defer logger.Sync()

	logger.Info("configuration loaded",
		zap.Int("port", cfg.Port),
		zap.String("log_level", cfg.LogLevel),
		zap.String("default_currency", cfg.DefaultCurrency),
		zap.Duration("http_timeout", cfg.HTTPTimeout),
		zap.Int("max_retries", cfg.MaxRetries),
		zap.Duration("initial_backoff", cfg.InitialBackoff),
		zap.String("rates_api_url", cfg.RatesAPIURL),
		zap.Duration("rate_freshness", cfg.RateFreshness),
		zap.Bool("auth_enabled", cfg.SupabaseJWTSecret != ""),
	)

	// --- Tracing ---
	shutdown, err := observability.InitTracer(cfg.OTLPEndpoint, serviceName)
	if err != nil {
		logger.Fatal("failed to init tracer", zap.Error(err))
	}
	defer shutdown(context.Background())

	// --- Metrics ---
	metrics := observability.NewMetrics()

	// --- Resilience ---
	resilienceCfg := resilience.Config{
		MaxRetries:     cfg.MaxRetries,
		InitialBackoff: cfg.InitialBackoff,
		MaxConcurrency: cfg.MaxConcurrency,
	}
	storeCB := resilience.NewCircuitBreaker("supabase", resilience.BreakerSettings{}, logger)
	ratesCB := resilience.NewCircuitBreaker("rates", resilience.BreakerSettings{MinRequests: 3, OpenTimeout: 30 * time.Second}, logger)

	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}

	// --- Rate cache ---
	var rateCache port.RateCache
	if cfg.RateCachePath != "" {
		sqliteStore, err := sqlitecache.Open(cfg.RateCachePath, logger)
		if err != nil {
			logger.Fatal("failed to open rate cache", zap.String("path", cfg.RateCachePath), zap.Error(err))
		}
		defer sqliteStore.Close()
		rateCache = sqliteStore
		logger.Info("rate cache: sqlite", zap.String("path", cfg.RateCachePath))
	} else {
		rateCache = cache.New(0)
		logger.Info("rate cache: in-memory")
	}

	// --- Rates ---
	limiter := rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)
	provider := rates.NewHTTPProvider(httpClient, cfg.RatesAPIURL, ratesCB, limiter)
	acquirer := rates.NewAcquirer(provider, rateCache, cfg.RateFreshness, metrics, logger)

	// --- Ledger store ---
	var store port.LedgerStore
	if cfg.SupabaseURL != "" {
		logger.Info("using Supabase as ledger store", zap.String("supabase_url", cfg.SupabaseURL))
		store = supabase.NewClient(
			httpClient,
			cfg.SupabaseURL,
			cfg.SupabaseAnonKey,
			cfg.SupabaseServiceKey,
			cfg.StorePageSize,
			storeCB,
			resilienceCfg,
			logger,
		)
	} else {
		logger.Warn("Supabase not configured, user routes unavailable")
	}

	// --- Services ---
	balanceSvc := service.NewBalanceService(
		store,
		acquirer,
		resilience.NewBulkhead(cfg.MaxConcurrency),
		cfg.DefaultCurrency,
		metrics,
		logger,
	)

	// --- Router ---
	router := handler.NewRouter(balanceSvc, metrics, handler.RouterConfig{JWTSecret: cfg.SupabaseJWTSecret}, logger)

	// --- Server ---
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// --- Graceful shutdown ---
	go func() {
		logger.Info("server starting", zap.Int("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("server shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("server forced shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
}
