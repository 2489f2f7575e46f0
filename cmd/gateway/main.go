// Package main is the entry point for the market data gateway. It loads
// configuration, assembles the admission-controlled fetch pipeline and the
// HTTP stack, and handles graceful shutdown on SIGINT/SIGTERM.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/finsight/marketgate/internal/api"
	"github.com/finsight/marketgate/internal/cache"
	"github.com/finsight/marketgate/internal/config"
	"github.com/finsight/marketgate/internal/gate"
	"github.com/finsight/marketgate/internal/health"
	"github.com/finsight/marketgate/internal/logging"
	"github.com/finsight/marketgate/internal/metrics"
	"github.com/finsight/marketgate/internal/provider"
	"github.com/finsight/marketgate/internal/stocks"
)

func main() {
	configPath := flag.String("config", "configs/gateway.yaml", "path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, closeLog, err := buildLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to set up logging: %v\n", err)
		os.Exit(1)
	}
	defer closeLog()

	logger.Info("configuration loaded",
		"port", cfg.Server.Port,
		"upstream", cfg.Upstream.BaseURL,
		"requests_per_period", cfg.Gate.RequestsPerPeriod,
		"period", cfg.Gate.Period,
		"cache_ttl", cfg.Gate.CacheTTL,
		"redis_enabled", cfg.Redis.Enabled,
		"metrics_enabled", cfg.Metrics.IsEnabled(),
	)

	if cfg.Metrics.IsEnabled() {
		metrics.Init()
	}

	// Second-level store: Redis when configured, in-process otherwise.
	var store cache.Store
	if cfg.Redis.Enabled {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		rs, err := cache.NewRedisStore(ctx, cfg.Redis.URL, cfg.Redis.Password, logger)
		cancel()
		if err != nil {
			logger.Warn("redis unavailable, falling back to in-memory store", "error", err)
			store = cache.NewMemoryStore()
		} else {
			defer rs.Close()
			store = rs
		}
	} else {
		store = cache.NewMemoryStore()
	}

	upstream := provider.NewYahooClient(cfg.Upstream.BaseURL, cfg.Upstream.Timeout, logger)

	gw, err := gate.New(gate.Config{
		RequestsPerPeriod:  cfg.Gate.RequestsPerPeriod,
		Period:             cfg.Gate.Period,
		MaxConcurrent:      cfg.Gate.MaxConcurrent,
		CacheTTL:           cfg.Gate.CacheTTL,
		FailureThreshold:   cfg.Gate.FailureThreshold,
		OpenTimeout:        cfg.Gate.OpenTimeout,
		PacingDelay:        cfg.Gate.PacingDelay,
		MaxRetries:         cfg.Gate.MaxRetries,
		RetryBackoffBase:   cfg.Gate.RetryBackoffBase,
		QueueCapacity:      cfg.Gate.QueueCapacity,
		DefaultWaitTimeout: cfg.Gate.WaitTimeout,
	}, logger)
	if err != nil {
		logger.Error("failed to build gateway", "error", err)
		os.Exit(1)
	}
	gw.Start()
	defer gw.Stop()

	svc := stocks.New(gw, upstream, store, cfg.Gate.WaitTimeout, cfg.Redis.HistoryTTL, logger)

	limiter := api.NewRateLimiter(cfg.RateLimit)

	// Assemble middleware stack: Recovery → RequestID → Logging → RateLimit → routes
	apiMux := http.NewServeMux()
	api.NewHandler(svc, logger).Register(apiMux)

	var handler http.Handler = apiMux
	handler = limiter.Middleware(handler)
	handler = api.Logging(logger)(handler)
	handler = api.RequestID(handler)
	handler = api.Recovery(logger)(handler)

	// Health and metrics bypass the middleware stack.
	opsMux := http.NewServeMux()
	opsMux.Handle("/health", health.Liveness())
	opsMux.Handle("/ready", health.NewReadiness(gw, store))
	if cfg.Metrics.IsEnabled() {
		opsMux.Handle(cfg.Metrics.Path, metrics.Handler())
		logger.Info("metrics endpoint registered", "path", cfg.Metrics.Path)
	}

	combined := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/health") ||
			strings.HasPrefix(r.URL.Path, "/ready") ||
			(cfg.Metrics.IsEnabled() && r.URL.Path == cfg.Metrics.Path) {
			opsMux.ServeHTTP(w, r)
			return
		}
		handler.ServeHTTP(w, r)
	})

	reloader := config.NewReloader(*configPath, cfg, logger)
	reloader.Start()
	defer reloader.Stop()
	reloader.OnReload(func(newCfg *config.Config) {
		limiter.UpdateConfig(newCfg.RateLimit)
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      combined,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Info("starting gateway", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	logger.Info("shutdown signal received", "signal", sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	logger.Info("draining in-flight requests", "timeout", cfg.Server.ShutdownTimeout)
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("forced shutdown", "error", err)
	}

	logger.Info("gateway stopped gracefully")
}

// buildLogger constructs the JSON logger, attaching a rotating file writer
// when logging.output is a path.
func buildLogger(cfg config.LoggingConfig) (*slog.Logger, func(), error) {
	var out io.Writer
	closeFn := func() {}

	switch cfg.Output {
	case "stdout":
		out = os.Stdout
	case "stderr":
		out = os.Stderr
	default:
		w, err := logging.NewRotatingWriter(cfg.Output, cfg.MaxSizeMB, cfg.MaxBackups)
		if err != nil {
			return nil, nil, err
		}
		out = w
		closeFn = func() { w.Close() }
	}

	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	return slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{Level: level})), closeFn, nil
}
