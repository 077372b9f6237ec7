package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"zip-routing-api-go/internal/api"
	"zip-routing-api-go/internal/api/handlers"
	"zip-routing-api-go/internal/config"
	"zip-routing-api-go/internal/marketcall"
	"zip-routing-api-go/internal/redisclient"
	"zip-routing-api-go/internal/reporting"
	"zip-routing-api-go/internal/routing"
	"zip-routing-api-go/internal/zipdata"
)

func main() {
	// Create root context
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Setup logger
	logger, err := setupLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to setup logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting ZIP Router",
		zap.String("version", cfg.AppVersion),
		zap.Int("tiers", len(cfg.Tiers)))

	// Build the tier registry — configuration errors here are fatal
	registry, err := routing.NewRegistry(tierConfigs(cfg))
	if err != nil {
		logger.Fatal("Invalid tier configuration", zap.Error(err))
	}

	// Create Redis client (optional — dataset cache only)
	var datasetCache *zipdata.Cache
	if cfg.RedisURL != "" {
		redisClient, err := redisclient.NewClient(cfg)
		if err != nil {
			logger.Fatal("Failed to create Redis client", zap.Error(err))
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Error("Error closing Redis connection", zap.Error(err))
			}
		}()

		if err := redisClient.Ping(ctx); err != nil {
			logger.Warn("Redis unreachable, dataset cache disabled", zap.Error(err))
		} else {
			logger.Info("Connected to Redis")
			datasetCache = zipdata.NewCache(redisClient.GetRedis(), 0)
		}
	}

	// Create routing components
	index := routing.NewZipIndex(registry)
	engine := routing.NewEngine(registry, index, cfg.HistorySize, logger)

	// Dataset loader: initial load is fail-soft — the service starts
	// with an empty index and reports degraded until a load succeeds.
	loader := zipdata.NewLoader(zipSources(cfg), index, datasetCache, cfg.ZipFetchTimeout, logger)
	if err := loader.Refresh(ctx); err != nil {
		logger.Error("Initial zip dataset load failed, starting with empty index", zap.Error(err))
	}
	go loader.Run(ctx, cfg.ZipRefreshInterval)

	// Outbound bid client
	bidder := marketcall.NewClient(
		cfg.MarketcallBaseURL,
		cfg.MarketcallAPIKey,
		cfg.CampaignID,
		&http.Client{Timeout: cfg.BidTimeout},
		logger,
	)

	// CSV call log (optional)
	var callLog handlers.CallLogger
	if cfg.CallLogPath != "" {
		csvLog, err := reporting.NewCSVLogger(cfg.CallLogPath)
		if err != nil {
			logger.Fatal("Failed to open call log", zap.Error(err))
		}
		defer func() {
			if err := csvLog.Close(); err != nil {
				logger.Error("Error closing call log", zap.Error(err))
			}
		}()
		callLog = csvLog
		logger.Info("Call log enabled", zap.String("path", cfg.CallLogPath))
	}

	// Create router
	router := api.NewRouter(engine, bidder, loader, callLog, cfg, logger)

	// Start HTTP server
	httpServer := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	// Start metrics server (if different port) — separate minimal mux for security
	var metricsServer *http.Server
	if cfg.MetricsPort != cfg.HTTPPort {
		metricsMux := http.NewServeMux()
		metricsMux.Handle("/metrics", promhttp.Handler())
		metricsMux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"status":"ok"}`))
		})
		metricsServer = &http.Server{
			Addr:    ":" + cfg.MetricsPort,
			Handler: metricsMux,
		}
	}

	// Setup graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	// Start servers in goroutines
	go func() {
		logger.Info("Starting HTTP server", zap.String("port", cfg.HTTPPort))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	if metricsServer != nil {
		go func() {
			logger.Info("Starting metrics server", zap.String("port", cfg.MetricsPort))
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("Metrics server failed", zap.Error(err))
			}
		}()
	}

	logger.Info("ZIP Router started successfully",
		zap.String("http_port", cfg.HTTPPort),
		zap.String("metrics_port", cfg.MetricsPort),
		zap.Int("zips_loaded", index.Stats().TotalZips))

	// Wait for shutdown signal
	<-quit
	logger.Info("Shutdown signal received, initiating graceful shutdown...")

	// Create shutdown context with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	// Cancel root context to stop background processes
	cancel()

	// Shutdown HTTP server
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
	} else {
		logger.Info("HTTP server shut down gracefully")
	}

	// Shutdown metrics server if running
	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("Metrics server shutdown error", zap.Error(err))
		}
	}

	logger.Info("ZIP Router shutdown complete")
}

func setupLogger(cfg *config.Config) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = zapcore.InfoLevel
	}

	config := zap.NewProductionConfig()
	config.Level = zap.NewAtomicLevelAt(level)

	if cfg.LogFormat == "console" {
		config.Encoding = "console"
		config.EncoderConfig = zap.NewDevelopmentEncoderConfig()
	}

	return config.Build()
}

func tierConfigs(cfg *config.Config) []routing.TierConfig {
	out := make([]routing.TierConfig, len(cfg.Tiers))
	for i, t := range cfg.Tiers {
		out[i] = routing.TierConfig{
			ID:      routing.TierID(t.ID),
			OfferID: t.OfferID,
			Hours: routing.BusinessHours{
				StartHour: t.StartHour,
				EndHour:   t.EndHour,
				Timezone:  t.Timezone,
			},
			MaxCallsPerHour: t.MaxCallsPerHour,
			Fallback:        routing.TierID(t.Fallback),
		}
	}
	return out
}

func zipSources(cfg *config.Config) []zipdata.Source {
	var out []zipdata.Source
	for _, t := range cfg.Tiers {
		if t.ZipURL == "" {
			continue
		}
		out = append(out, zipdata.Source{
			Tier: routing.TierID(t.ID),
			URL:  t.ZipURL,
		})
	}
	return out
}
