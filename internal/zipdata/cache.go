package zipdata

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"zip-routing-api-go/internal/routing"
)

const cacheKey = "zip_router:dataset"

// Cache persists the last successfully fetched dataset in Redis so a
// restart does not depend on the upstream sheets being reachable.
// Purely best-effort: routing state itself stays process-local.
type Cache struct {
	redis *redis.Client
	ttl   time.Duration
}

// NewCache creates a dataset cache. ttl <= 0 means no expiry.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{redis: client, ttl: ttl}
}

type cachedRecord struct {
	Zip  string `json:"z"`
	Tier string `json:"t"`
}

// Store saves the records. Errors are returned for logging only; a
// failed store never fails a load.
func (c *Cache) Store(ctx context.Context, records []routing.ZipRecord) error {
	cached := make([]cachedRecord, len(records))
	for i, r := range records {
		cached[i] = cachedRecord{Zip: r.Zip, Tier: string(r.Tier)}
	}
	data, err := json.Marshal(cached)
	if err != nil {
		return fmt.Errorf("failed to marshal dataset: %w", err)
	}
	if err := c.redis.Set(ctx, cacheKey, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store dataset: %w", err)
	}
	return nil
}

// Load returns the cached records, or an error when absent/corrupt.
func (c *Cache) Load(ctx context.Context) ([]routing.ZipRecord, error) {
	data, err := c.redis.Get(ctx, cacheKey).Bytes()
	if err != nil {
		return nil, fmt.Errorf("no cached dataset: %w", err)
	}
	var cached []cachedRecord
	if err := json.Unmarshal(data, &cached); err != nil {
		return nil, fmt.Errorf("cached dataset corrupt: %w", err)
	}
	records := make([]routing.ZipRecord, len(cached))
	for i, r := range cached {
		records[i] = routing.ZipRecord{Zip: r.Zip, Tier: routing.TierID(r.Tier)}
	}
	return records, nil
}
