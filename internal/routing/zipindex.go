package routing

import (
	"strings"
	"sync/atomic"
	"time"
)

// ZipRecord is one row of the ZIP reference dataset: a ZIP code and the
// tier that owns it. Produced by the data acquisition collaborator.
type ZipRecord struct {
	Zip  string
	Tier TierID
}

// IndexStats describes the current index snapshot for health reporting.
type IndexStats struct {
	TotalZips int            `json:"total_zips"`
	PerTier   map[TierID]int `json:"per_tier"`
	Skipped   int            `json:"skipped_rows"`
	LoadedAt  time.Time      `json:"loaded_at"`
}

type zipSnapshot struct {
	byZip    map[string]TierID
	perTier  map[TierID]int
	samples  map[TierID][]string
	skipped  int
	loadedAt time.Time
}

// ZipIndex is an immutable ZIP-to-tier lookup table. Load builds a
// fresh snapshot and swaps it atomically; readers never block on a
// reload and never see a partially built index. A failed load leaves
// the previous snapshot authoritative.
type ZipIndex struct {
	registry *Registry
	snap     atomic.Pointer[zipSnapshot]
}

// NewZipIndex creates an empty index. Lookups miss until the first Load.
func NewZipIndex(registry *Registry) *ZipIndex {
	idx := &ZipIndex{registry: registry}
	idx.snap.Store(&zipSnapshot{
		byZip:   map[string]TierID{},
		perTier: map[TierID]int{},
		samples: map[TierID][]string{},
	})
	return idx
}

// NormalizeZip trims and zero-pads a raw ZIP code to 5 digits. Returns
// ErrInvalidZip when the result is not a 5-digit numeric string.
func NormalizeZip(raw string) (string, error) {
	z := strings.TrimSpace(raw)
	if z == "" || len(z) > 5 {
		return "", ErrInvalidZip
	}
	for _, c := range z {
		if c < '0' || c > '9' {
			return "", ErrInvalidZip
		}
	}
	for len(z) < 5 {
		z = "0" + z
	}
	return z, nil
}

// Load builds a new snapshot from the given records and atomically
// replaces the current one. Malformed rows and unknown tier labels are
// skipped, not fatal. When a ZIP appears more than once, the first
// record wins — the caller supplies records in tier priority order.
// Returns (loaded, skipped) row counts.
func (idx *ZipIndex) Load(records []ZipRecord) (int, int) {
	snap := &zipSnapshot{
		byZip:    make(map[string]TierID, len(records)),
		perTier:  make(map[TierID]int),
		samples:  make(map[TierID][]string),
		loadedAt: time.Now(),
	}

	for _, rec := range records {
		zip, err := NormalizeZip(rec.Zip)
		if err != nil {
			snap.skipped++
			continue
		}
		if _, ok := idx.registry.Get(rec.Tier); !ok {
			snap.skipped++
			continue
		}
		if _, dup := snap.byZip[zip]; dup {
			snap.skipped++
			continue
		}

		snap.byZip[zip] = rec.Tier
		snap.perTier[rec.Tier]++
		if len(snap.samples[rec.Tier]) < 20 {
			snap.samples[rec.Tier] = append(snap.samples[rec.Tier], zip)
		}
	}

	idx.snap.Store(snap)
	return len(snap.byZip), snap.skipped
}

// Lookup returns the tier that owns the (already normalized) ZIP code.
// A miss is a valid outcome, not an error.
func (idx *ZipIndex) Lookup(zip string) (TierID, bool) {
	tier, ok := idx.snap.Load().byZip[zip]
	return tier, ok
}

// Stats returns counts describing the current snapshot.
func (idx *ZipIndex) Stats() IndexStats {
	snap := idx.snap.Load()
	perTier := make(map[TierID]int, len(snap.perTier))
	for k, v := range snap.perTier {
		perTier[k] = v
	}
	return IndexStats{
		TotalZips: len(snap.byZip),
		PerTier:   perTier,
		Skipped:   snap.skipped,
		LoadedAt:  snap.loadedAt,
	}
}

// Samples returns up to 20 ZIPs per tier from the current snapshot,
// for the debug endpoint.
func (idx *ZipIndex) Samples() map[TierID][]string {
	snap := idx.snap.Load()
	out := make(map[TierID][]string, len(snap.samples))
	for k, v := range snap.samples {
		out[k] = append([]string(nil), v...)
	}
	return out
}
