package routing

import (
	"time"

	"go.uber.org/zap"
)

// HoursGate answers whether a tier is inside its business-hours window
// at a given instant.
type HoursGate struct {
	registry *Registry
	logger   *zap.Logger
}

// NewHoursGate creates a business-hours gate over the tier registry.
func NewHoursGate(registry *Registry, logger *zap.Logger) *HoursGate {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HoursGate{registry: registry, logger: logger}
}

// IsOpen converts now to the tier's configured timezone and tests the
// half-open window [start, end) against the local hour.
//
// If the tier or its timezone cannot be resolved the gate fails OPEN:
// blocking all traffic on a lookup failure is worse than accepting a
// call outside the window. Business policy, not a bug.
func (g *HoursGate) IsOpen(tier TierID, now time.Time) bool {
	cfg, ok := g.registry.Get(tier)
	if !ok {
		g.logger.Warn("hours gate: unknown tier, failing open",
			zap.String("tier", string(tier)))
		return true
	}

	loc, ok := g.registry.location(tier)
	if !ok || loc == nil {
		g.logger.Warn("hours gate: timezone unresolved, failing open",
			zap.String("tier", string(tier)),
			zap.String("timezone", cfg.Hours.Timezone))
		return true
	}

	hour := now.In(loc).Hour()
	return hour >= cfg.Hours.StartHour && hour < cfg.Hours.EndHour
}
