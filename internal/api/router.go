package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"zip-routing-api-go/internal/api/handlers"
	"zip-routing-api-go/internal/api/middleware"
	"zip-routing-api-go/internal/config"
	"zip-routing-api-go/internal/reporting"
	"zip-routing-api-go/internal/routing"
	"zip-routing-api-go/internal/zipdata"
)

// NewRouter creates a new Chi router with all routes and middleware configured
func NewRouter(
	engine *routing.Engine,
	bidder handlers.Bidder,
	loader *zipdata.Loader,
	callLog handlers.CallLogger,
	cfg *config.Config,
	logger *zap.Logger,
) chi.Router {
	r := chi.NewRouter()

	// Apply middleware stack
	r.Use(middleware.Recovery(logger))
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Metrics)
	r.Use(chimiddleware.Timeout(60 * time.Second))

	// Tier source URLs for the debug endpoint
	sources := make(map[routing.TierID]string, len(cfg.Tiers))
	for _, t := range cfg.Tiers {
		sources[routing.TierID(t.ID)] = t.ZipURL
	}

	// Initialize handlers
	callHandler := handlers.NewCallHandler(engine, bidder, callLog, logger)
	healthHandler := handlers.NewHealthHandler(engine, loader, cfg, logger)
	zipsHandler := handlers.NewZipsHandler(engine, loader, sources, logger)
	analyticsHandler := handlers.NewAnalyticsHandler(engine, logger)

	// Root status endpoint
	r.Get("/", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"Webhook is running","version":"` + cfg.AppVersion + `"}`))
	})

	// Call routing
	r.Post("/call-event", callHandler.Handle)

	// ZIP index inspection and reload
	r.Get("/check-zip/{zip}", zipsHandler.HandleCheckZip)
	r.Get("/debug-zips", zipsHandler.HandleDebugZips)
	r.Post("/reload-zips", zipsHandler.HandleReload)

	// Analytics and reporting
	r.Get("/analytics", analyticsHandler.HandleAnalytics)
	r.Get("/calls", analyticsHandler.HandleRecentCalls)
	r.Get("/dashboard", reporting.Dashboard(engine, logger))

	// Health and readiness endpoints
	r.Get("/health", healthHandler.HandleHealth)
	r.Get("/ready", healthHandler.HandleReady)

	// Metrics endpoint
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	return r
}
