package handlers

import (
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"zip-routing-api-go/internal/models"
	"zip-routing-api-go/internal/routing"
)

// AnalyticsHandler serves aggregate analytics and recent call history
type AnalyticsHandler struct {
	engine *routing.Engine
	logger *zap.Logger
}

// NewAnalyticsHandler creates a new analytics handler
func NewAnalyticsHandler(engine *routing.Engine, logger *zap.Logger) *AnalyticsHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AnalyticsHandler{engine: engine, logger: logger}
}

// HandleAnalytics handles GET /analytics
func (h *AnalyticsHandler) HandleAnalytics(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, h.engine.Analytics())
}

// HandleRecentCalls handles GET /calls?limit=n (default 100, max 1000)
func (h *AnalyticsHandler) HandleRecentCalls(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			respondWithError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	if limit > 1000 {
		limit = 1000
	}

	calls := h.engine.Recent(limit)
	respondWithJSON(w, http.StatusOK, models.RecentCallsResponse{
		Count: len(calls),
		Calls: calls,
	})
}
