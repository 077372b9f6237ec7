package routing

import (
	"time"

	"go.uber.org/zap"
)

// Decision is the outcome of resolving one routed call.
type Decision struct {
	OriginalTier    TierID `json:"original_tier"`
	ChosenTier      TierID `json:"chosen_tier"`
	OfferID         string `json:"offer_id"`
	FallbackUsed    bool   `json:"fallback_used"`
	BusinessHoursOK bool   `json:"business_hours_ok"`
	RateLimitOK     bool   `json:"rate_limit_ok"`
}

// Resolver walks a tier's fallback chain until it finds a tier that is
// both inside business hours and under its hourly cap.
type Resolver struct {
	registry *Registry
	gate     *HoursGate
	limiter  *RateLimiter
	logger   *zap.Logger
}

// NewResolver creates a fallback-chain resolver.
func NewResolver(registry *Registry, gate *HoursGate, limiter *RateLimiter, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{
		registry: registry,
		gate:     gate,
		limiter:  limiter,
		logger:   logger,
	}
}

// Resolve picks the tier actually used for a call that originally
// belongs to originalTier.
//
// Each candidate is probed (no counter mutation) against the hours gate
// and the rate limiter; the first candidate passing both is committed.
// If the chain is exhausted the call goes to originalTier anyway, with
// its counter committed and FallbackUsed false — traffic is never
// dropped once a tier owns the ZIP. Gate failures are advisory by
// explicit business policy.
func (rs *Resolver) Resolve(originalTier TierID, now time.Time) Decision {
	tier := originalTier

	// Registry validation guarantees acyclic chains; the counter is a
	// hard stop in case that ever regresses.
	for steps := 0; steps <= len(rs.registry.order); steps++ {
		cfg, ok := rs.registry.Get(tier)
		if !ok {
			break
		}

		hoursOK := rs.gate.IsOpen(tier, now)
		rateOK := rs.limiter.CheckOK(tier, now)

		if hoursOK && rateOK {
			committed := rs.limiter.RecordAndCheck(tier, now)
			return Decision{
				OriginalTier:    originalTier,
				ChosenTier:      tier,
				OfferID:         cfg.OfferID,
				FallbackUsed:    tier != originalTier,
				BusinessHoursOK: hoursOK,
				RateLimitOK:     committed,
			}
		}

		if cfg.Fallback == "" {
			break
		}

		rs.logger.Debug("tier unavailable, following fallback",
			zap.String("tier", string(tier)),
			zap.String("fallback", string(cfg.Fallback)),
			zap.Bool("business_hours_ok", hoursOK),
			zap.Bool("rate_limit_ok", rateOK))
		tier = cfg.Fallback
	}

	// Chain exhausted: route to the original tier regardless. The
	// decision carries the failing gate results so the override is
	// visible in the audit trail.
	hoursOK := rs.gate.IsOpen(originalTier, now)
	rateOK := rs.limiter.RecordAndCheck(originalTier, now)

	var offerID string
	if cfg, ok := rs.registry.Get(originalTier); ok {
		offerID = cfg.OfferID
	}

	rs.logger.Warn("fallback chain exhausted, routing to original tier anyway",
		zap.String("tier", string(originalTier)),
		zap.Bool("business_hours_ok", hoursOK),
		zap.Bool("rate_limit_ok", rateOK))

	return Decision{
		OriginalTier:    originalTier,
		ChosenTier:      originalTier,
		OfferID:         offerID,
		FallbackUsed:    false,
		BusinessHoursOK: hoursOK,
		RateLimitOK:     rateOK,
	}
}
