package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"go.uber.org/zap"

	"zip-routing-api-go/internal/api/middleware"
	"zip-routing-api-go/internal/marketcall"
	"zip-routing-api-go/internal/models"
	"zip-routing-api-go/internal/routing"
)

// Bidder places the outbound bid request for a routed call.
type Bidder interface {
	PlaceBid(ctx context.Context, offerID, callerID, zipCode string) (*marketcall.BidResult, error)
}

// CallLogger appends finalized call records to the persistent log.
type CallLogger interface {
	Append(rec routing.CallRecord) error
}

// CallHandler handles inbound call events
type CallHandler struct {
	engine  *routing.Engine
	bidder  Bidder
	callLog CallLogger // nil when CSV logging is disabled
	logger  *zap.Logger
}

// NewCallHandler creates the call event handler. callLog may be nil.
func NewCallHandler(engine *routing.Engine, bidder Bidder, callLog CallLogger, logger *zap.Logger) *CallHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CallHandler{
		engine:  engine,
		bidder:  bidder,
		callLog: callLog,
		logger:  logger,
	}
}

// Handle handles POST /call-event.
//
// Routing decisions are final before the bid is attempted: a failed bid
// is recorded as api_error, never re-routed. Every request that passes
// input validation produces exactly one CallRecord, including the
// unrouted and panic paths.
func (h *CallHandler) Handle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req models.CallEventRequest
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("failed to decode call event", zap.Error(err))
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.CallerID == "" {
		respondWithError(w, http.StatusBadRequest, "caller_id is required")
		return
	}
	rawZip := string(req.ZipCode)
	if rawZip == "" {
		respondWithError(w, http.StatusBadRequest, "zip_code is required")
		return
	}

	zip, err := routing.NormalizeZip(rawZip)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid zip_code format")
		return
	}

	now := time.Now()
	rec := routing.CallRecord{
		Timestamp: now,
		CallerID:  req.CallerID,
		ZipCode:   zip,
		Status:    routing.StatusException, // placeholder until finalized
	}
	recorded := false
	finalize := func() {
		if recorded {
			return
		}
		recorded = true
		h.engine.Record(rec)
		if h.callLog != nil {
			if err := h.callLog.Append(rec); err != nil {
				h.logger.Warn("failed to append call log", zap.Error(err))
			}
		}
	}

	// A panic below must still finalize the record before the recovery
	// middleware answers 500.
	defer func() {
		if p := recover(); p != nil {
			h.logger.Error("panic while handling call event",
				zap.Any("panic", p),
				zap.String("caller_id", req.CallerID),
				zap.String("zip", zip),
				zap.String("stack", string(debug.Stack())))
			middleware.PanicsRecoveredTotal.Inc()
			finalize()
			respondWithError(w, http.StatusInternalServerError, "internal server error")
		}
	}()

	decision, err := h.engine.RouteCall(zip, req.CallerID, now)
	if err != nil {
		// ZIP not owned by any tier — normal terminal outcome, no bid.
		rec.Status = routing.StatusNoTier
		finalize()

		stats := h.engine.Index().Stats()
		respondWithJSON(w, http.StatusOK, models.UnroutedResponse{
			Status:      "ZIP code not in any tier — no ping sent",
			ZipCode:     zip,
			OriginalZip: rawZip,
			TierCounts:  stats.PerTier,
		})
		return
	}

	rec.OriginalTier = decision.OriginalTier
	rec.ChosenTier = decision.ChosenTier
	rec.FallbackUsed = decision.FallbackUsed
	rec.BusinessHoursOK = decision.BusinessHoursOK
	rec.RateLimitOK = decision.RateLimitOK

	bidStart := time.Now()
	result, err := h.bidder.PlaceBid(ctx, decision.OfferID, req.CallerID, zip)
	rec.ResponseTimeMs = time.Since(bidStart).Milliseconds()

	if err != nil {
		rec.Status = routing.StatusAPIError
		finalize()
		middleware.BidRequestsTotal.WithLabelValues(decision.OfferID, "error").Inc()

		h.logger.Error("bid request failed",
			zap.Error(err),
			zap.String("offer_id", decision.OfferID),
			zap.String("caller_id", req.CallerID))

		if marketcall.IsTimeout(err) {
			respondWithError(w, http.StatusGatewayTimeout, "bid request timed out")
			return
		}
		respondWithError(w, http.StatusBadGateway, "failed to send bid request")
		return
	}

	rec.Status = routing.StatusSuccess
	rec.ExternalCallID = result.ID
	finalize()
	middleware.BidRequestsTotal.WithLabelValues(decision.OfferID, "success").Inc()

	respondWithJSON(w, http.StatusOK, models.CallEventResponse{
		Status: fmt.Sprintf("ZIP matched %s → Offer %s",
			strings.ToUpper(string(decision.ChosenTier)), decision.OfferID),
		ZipCode:        zip,
		Tier:           decision.ChosenTier,
		OfferID:        decision.OfferID,
		FallbackUsed:   decision.FallbackUsed,
		ExternalCallID: result.ID,
		BidResponse:    result.Raw,
	})
}
