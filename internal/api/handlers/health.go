package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"zip-routing-api-go/internal/config"
	"zip-routing-api-go/internal/models"
	"zip-routing-api-go/internal/routing"
	"zip-routing-api-go/internal/zipdata"
)

// HealthHandler handles health and readiness checks
type HealthHandler struct {
	engine *routing.Engine
	loader *zipdata.Loader
	config *config.Config
	logger *zap.Logger
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(engine *routing.Engine, loader *zipdata.Loader, cfg *config.Config, logger *zap.Logger) *HealthHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HealthHandler{
		engine: engine,
		loader: loader,
		config: cfg,
		logger: logger,
	}
}

// HandleHealth handles GET /health (liveness probe).
// Always 200 while the process is alive; dataset trouble surfaces as
// degraded=true rather than a failing probe, so an upstream outage
// does not cascade into restarts.
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	stats := h.engine.Index().Stats()

	status := "healthy"
	if h.loader.Degraded() {
		status = "degraded"
	}

	respondWithJSON(w, http.StatusOK, models.HealthResponse{
		Status:       status,
		Service:      h.config.AppName,
		Version:      h.config.AppVersion,
		TotalZips:    stats.TotalZips,
		Tiers:        stats.PerTier,
		LastLoadedAt: stats.LoadedAt,
		Degraded:     h.loader.Degraded(),
	})
}

// HandleReady handles GET /ready (readiness probe).
// Not ready until the index has at least one ZIP — routing every call
// to "unrouted" because the dataset never loaded is worse than waiting.
func (h *HealthHandler) HandleReady(w http.ResponseWriter, r *http.Request) {
	stats := h.engine.Index().Stats()
	if stats.TotalZips == 0 {
		h.logger.Warn("readiness check failed: zip index empty")
		respondWithError(w, http.StatusServiceUnavailable, "zip index not loaded")
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
