package routing

import (
	"time"

	"go.uber.org/zap"

	"zip-routing-api-go/internal/api/middleware"
)

// Engine orchestrates one routing decision: ZIP index lookup, fallback
// resolution and outcome recording. It owns all mutable routing state
// (index snapshot, rate counters, call history) so tests get a fresh
// engine instead of process-wide globals.
type Engine struct {
	registry *Registry
	index    *ZipIndex
	limiter  *RateLimiter
	resolver *Resolver
	recorder *Recorder
	logger   *zap.Logger
}

// NewEngine wires the routing components together. historySize bounds
// the call history ring buffer; <= 0 uses DefaultHistorySize.
func NewEngine(registry *Registry, index *ZipIndex, historySize int, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	gate := NewHoursGate(registry, logger)
	limiter := NewRateLimiter(registry)
	return &Engine{
		registry: registry,
		index:    index,
		limiter:  limiter,
		resolver: NewResolver(registry, gate, limiter, logger),
		recorder: NewRecorder(historySize),
		logger:   logger,
	}
}

// RouteCall decides which tier handles the call. zip must already be
// normalized. Returns ErrNoTier when no tier owns the ZIP — a normal
// terminal outcome the caller records with StatusNoTier.
//
// The decision is final: the caller performs the outbound bid with the
// chosen tier's offer and reports the result via Record. External
// failures never re-route.
func (e *Engine) RouteCall(zip, callerID string, now time.Time) (Decision, error) {
	originalTier, ok := e.index.Lookup(zip)
	if !ok {
		e.logger.Info("zip not in any tier",
			zap.String("zip", zip),
			zap.String("caller_id", callerID))
		middleware.UnroutedTotal.Inc()
		return Decision{}, ErrNoTier
	}

	decision := e.resolver.Resolve(originalTier, now)

	if decision.FallbackUsed {
		middleware.FallbacksTotal.WithLabelValues(string(decision.OriginalTier)).Inc()
	}
	if !decision.RateLimitOK {
		middleware.RateLimitOverridesTotal.WithLabelValues(string(decision.ChosenTier)).Inc()
	}

	e.logger.Info("call routed",
		zap.String("zip", zip),
		zap.String("caller_id", callerID),
		zap.String("original_tier", string(decision.OriginalTier)),
		zap.String("chosen_tier", string(decision.ChosenTier)),
		zap.String("offer_id", decision.OfferID),
		zap.Bool("fallback_used", decision.FallbackUsed),
		zap.Bool("business_hours_ok", decision.BusinessHoursOK),
		zap.Bool("rate_limit_ok", decision.RateLimitOK))

	return decision, nil
}

// Record finalizes one call's audit entry and updates aggregates.
func (e *Engine) Record(rec CallRecord) {
	middleware.RoutesTotal.WithLabelValues(string(rec.ChosenTier), string(rec.Status)).Inc()
	e.recorder.Record(rec)
}

// Analytics returns a point-in-time copy of the aggregate counters.
func (e *Engine) Analytics() Analytics {
	return e.recorder.Snapshot()
}

// Recent returns up to n call records, newest first.
func (e *Engine) Recent(n int) []CallRecord {
	return e.recorder.Recent(n)
}

// Registry exposes the tier registry for reporting collaborators.
func (e *Engine) Registry() *Registry {
	return e.registry
}

// Index exposes the ZIP index for reporting collaborators.
func (e *Engine) Index() *ZipIndex {
	return e.index
}

// HourlyCount returns committed calls for the tier in the hour
// containing now.
func (e *Engine) HourlyCount(tier TierID, now time.Time) int {
	return e.limiter.Count(tier, now)
}
