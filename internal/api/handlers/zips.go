package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"zip-routing-api-go/internal/models"
	"zip-routing-api-go/internal/routing"
	"zip-routing-api-go/internal/zipdata"
)

// ZipsHandler serves ZIP index inspection and reload endpoints
type ZipsHandler struct {
	engine  *routing.Engine
	loader  *zipdata.Loader
	sources map[routing.TierID]string
	logger  *zap.Logger
}

// NewZipsHandler creates a new zips handler. sources maps tiers to the
// sheet URLs shown in the debug output.
func NewZipsHandler(engine *routing.Engine, loader *zipdata.Loader, sources map[routing.TierID]string, logger *zap.Logger) *ZipsHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ZipsHandler{
		engine:  engine,
		loader:  loader,
		sources: sources,
		logger:  logger,
	}
}

// HandleCheckZip handles GET /check-zip/{zip}
func (h *ZipsHandler) HandleCheckZip(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "zip")

	zip, err := routing.NormalizeZip(raw)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid zip code format")
		return
	}

	tier, found := h.engine.Index().Lookup(zip)
	respondWithJSON(w, http.StatusOK, models.CheckZipResponse{
		OriginalZip:  raw,
		ProcessedZip: zip,
		Tier:         tier,
		Found:        found,
	})
}

// HandleDebugZips handles GET /debug-zips
func (h *ZipsHandler) HandleDebugZips(w http.ResponseWriter, r *http.Request) {
	stats := h.engine.Index().Stats()
	samples := h.engine.Index().Samples()

	tiers := make(map[routing.TierID]models.TierDebugInfo, len(stats.PerTier))
	for _, tier := range h.engine.Registry().Order() {
		tiers[tier] = models.TierDebugInfo{
			Count:      stats.PerTier[tier],
			SampleZips: samples[tier],
			SourceURL:  h.sources[tier],
		}
	}

	respondWithJSON(w, http.StatusOK, models.DebugZipsResponse{
		Tiers:     tiers,
		TotalZips: stats.TotalZips,
		Skipped:   stats.Skipped,
		LoadedAt:  stats.LoadedAt,
	})
}

// HandleReload handles POST /reload-zips — the explicit reload entry
// point. A failed reload keeps the previous snapshot and reports why.
func (h *ZipsHandler) HandleReload(w http.ResponseWriter, r *http.Request) {
	h.logger.Info("manual zip dataset reload requested")

	if err := h.loader.Refresh(r.Context()); err != nil {
		stats := h.engine.Index().Stats()
		respondWithJSON(w, http.StatusServiceUnavailable, models.ReloadResponse{
			Success:  false,
			Loaded:   stats.TotalZips,
			Skipped:  stats.Skipped,
			LoadedAt: stats.LoadedAt,
			Error:    err.Error(),
		})
		return
	}

	stats := h.engine.Index().Stats()
	respondWithJSON(w, http.StatusOK, models.ReloadResponse{
		Success:  true,
		Loaded:   stats.TotalZips,
		Skipped:  stats.Skipped,
		LoadedAt: stats.LoadedAt,
	})
}
