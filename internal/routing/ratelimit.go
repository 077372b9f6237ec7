package routing

import (
	"sync"
	"time"
)

// bucketKey identifies one tier's counter for one clock hour. The hour
// is UTC hours since the Unix epoch, so hour 23 today and hour 23
// tomorrow are distinct buckets (no day-rollover aliasing).
type bucketKey struct {
	tier TierID
	hour int64
}

// RateLimiter tracks per-tier accepted-call counts per clock hour and
// enforces each tier's hourly cap.
//
// Probe and commit are separate operations: the resolver probes
// candidate tiers with CheckOK (no mutation) and commits only the tier
// it finally selects with RecordAndCheck, so rejected candidates never
// inflate their counters.
type RateLimiter struct {
	registry *Registry

	mu     sync.Mutex
	counts map[bucketKey]int
}

// NewRateLimiter creates a rate limiter over the tier registry.
func NewRateLimiter(registry *Registry) *RateLimiter {
	return &RateLimiter{
		registry: registry,
		counts:   make(map[bucketKey]int),
	}
}

func hourBucket(now time.Time) int64 {
	return now.UTC().Unix() / 3600
}

// CheckOK reports whether one more call would stay within the tier's
// hourly cap. It never mutates state; any number of probes followed by
// a single commit leaves the count identical to a lone commit.
func (l *RateLimiter) CheckOK(tier TierID, now time.Time) bool {
	cfg, ok := l.registry.Get(tier)
	if !ok {
		return false
	}

	key := bucketKey{tier: tier, hour: hourBucket(now)}

	l.mu.Lock()
	defer l.mu.Unlock()
	return l.counts[key] < cfg.MaxCallsPerHour
}

// RecordAndCheck atomically increments the tier's current-hour counter
// and reports whether the post-increment count is within the cap.
// Counters are never decremented.
func (l *RateLimiter) RecordAndCheck(tier TierID, now time.Time) bool {
	cfg, ok := l.registry.Get(tier)
	if !ok {
		return false
	}

	key := bucketKey{tier: tier, hour: hourBucket(now)}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.counts[key]++
	within := l.counts[key] <= cfg.MaxCallsPerHour

	// Drop buckets older than the previous hour so the map stays
	// bounded to two hours of keys per tier.
	if len(l.counts) > 2*len(l.registry.order) {
		for k := range l.counts {
			if k.hour < key.hour-1 {
				delete(l.counts, k)
			}
		}
	}

	return within
}

// Count returns the committed call count for the tier in the hour
// containing now. Used by status reporting and tests.
func (l *RateLimiter) Count(tier TierID, now time.Time) int {
	key := bucketKey{tier: tier, hour: hourBucket(now)}

	l.mu.Lock()
	defer l.mu.Unlock()
	return l.counts[key]
}
