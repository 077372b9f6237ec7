// Package routing implements the tier routing decision engine: the
// ZIP-to-tier index, business-hours gate, per-tier hourly rate limiter,
// fallback-chain resolver and the call outcome recorder.
package routing

import (
	"fmt"
	"time"
)

// TierID identifies a priced routing destination (e.g. "tier_1").
type TierID string

// BusinessHours is the local-time window during which a tier accepts
// calls. The interval is half-open: [StartHour, EndHour). EndHour 21
// means the last open hour is 20:00-20:59 local time.
type BusinessHours struct {
	StartHour int
	EndHour   int
	Timezone  string
}

// TierConfig is the static per-tier configuration. One per TierID,
// loaded at startup and read-only thereafter.
type TierConfig struct {
	ID              TierID
	OfferID         string
	Hours           BusinessHours
	MaxCallsPerHour int
	Fallback        TierID // empty = no fallback
}

type tierEntry struct {
	cfg TierConfig
	loc *time.Location
}

// Registry holds the validated tier set. Tier order is preserved from
// configuration — it determines ZIP ownership priority when a ZIP
// appears in more than one tier's source data.
type Registry struct {
	order []TierID
	tiers map[TierID]*tierEntry
}

// NewRegistry validates the tier set and resolves timezones up front.
// Configuration errors here are fatal: the engine must not start with
// an inverted hours window, an unknown fallback target or a fallback
// cycle.
func NewRegistry(cfgs []TierConfig) (*Registry, error) {
	if len(cfgs) == 0 {
		return nil, fmt.Errorf("no tiers configured")
	}

	r := &Registry{
		order: make([]TierID, 0, len(cfgs)),
		tiers: make(map[TierID]*tierEntry, len(cfgs)),
	}

	for _, cfg := range cfgs {
		if cfg.ID == "" {
			return nil, fmt.Errorf("tier with empty id")
		}
		if _, dup := r.tiers[cfg.ID]; dup {
			return nil, fmt.Errorf("duplicate tier %q", cfg.ID)
		}
		if cfg.OfferID == "" {
			return nil, fmt.Errorf("tier %q: offer_id is required", cfg.ID)
		}
		if cfg.Hours.StartHour < 0 || cfg.Hours.StartHour > 23 ||
			cfg.Hours.EndHour < 0 || cfg.Hours.EndHour > 23 {
			return nil, fmt.Errorf("tier %q: hours must be within 0-23", cfg.ID)
		}
		if cfg.Hours.StartHour >= cfg.Hours.EndHour {
			return nil, fmt.Errorf("tier %q: start_hour %d must be before end_hour %d (windows may not span midnight)",
				cfg.ID, cfg.Hours.StartHour, cfg.Hours.EndHour)
		}
		if cfg.MaxCallsPerHour <= 0 {
			return nil, fmt.Errorf("tier %q: max_calls_per_hour must be positive", cfg.ID)
		}

		loc, err := time.LoadLocation(cfg.Hours.Timezone)
		if err != nil {
			return nil, fmt.Errorf("tier %q: unknown timezone %q: %w", cfg.ID, cfg.Hours.Timezone, err)
		}

		r.order = append(r.order, cfg.ID)
		r.tiers[cfg.ID] = &tierEntry{cfg: cfg, loc: loc}
	}

	// Fallback targets must exist and chains must be acyclic.
	for _, id := range r.order {
		cfg := r.tiers[id].cfg
		if cfg.Fallback == "" {
			continue
		}
		if _, ok := r.tiers[cfg.Fallback]; !ok {
			return nil, fmt.Errorf("tier %q: fallback tier %q does not exist", id, cfg.Fallback)
		}

		seen := map[TierID]bool{id: true}
		for next := cfg.Fallback; next != ""; {
			if seen[next] {
				return nil, fmt.Errorf("tier %q: fallback chain contains a cycle at %q", id, next)
			}
			seen[next] = true
			e, ok := r.tiers[next]
			if !ok {
				// Dangling link, reported when that tier is checked.
				break
			}
			next = e.cfg.Fallback
		}
	}

	return r, nil
}

// Get returns the configuration for a tier.
func (r *Registry) Get(id TierID) (TierConfig, bool) {
	e, ok := r.tiers[id]
	if !ok {
		return TierConfig{}, false
	}
	return e.cfg, true
}

// Order returns tier IDs in configured priority order.
func (r *Registry) Order() []TierID {
	out := make([]TierID, len(r.order))
	copy(out, r.order)
	return out
}

func (r *Registry) location(id TierID) (*time.Location, bool) {
	e, ok := r.tiers[id]
	if !ok {
		return nil, false
	}
	return e.loc, true
}
