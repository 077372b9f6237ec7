package zipdata

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"zip-routing-api-go/internal/api/middleware"
	"zip-routing-api-go/internal/routing"
)

// Source is one tier's sheet location. Sources are tried in slice
// order, which is also the tier priority order for duplicate ZIPs.
type Source struct {
	Tier routing.TierID
	URL  string
}

// Loader fetches all tier sheets and rebuilds the ZIP index snapshot.
// Used once at startup and then by the periodic refresh goroutine and
// the explicit reload endpoint.
type Loader struct {
	sources []Source
	index   *routing.ZipIndex
	cache   *Cache // nil when Redis is not configured
	http    *http.Client
	logger  *zap.Logger

	mu       sync.Mutex
	lastErr  error
	degraded bool
}

// NewLoader creates a dataset loader. cache may be nil.
func NewLoader(sources []Source, index *routing.ZipIndex, cache *Cache, fetchTimeout time.Duration, logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{
		sources: sources,
		index:   index,
		cache:   cache,
		http:    &http.Client{Timeout: fetchTimeout},
		logger:  logger,
	}
}

// Refresh fetches every source and swaps in a fresh index snapshot.
//
// Per-source failures are logged and skipped, matching the upstream
// behavior of serving whatever sheets did load. Only when every source
// fails does Refresh fall back to the Redis-cached dataset; if that is
// also unavailable it returns an error and the previous snapshot stays
// authoritative.
func (l *Loader) Refresh(ctx context.Context) error {
	var records []routing.ZipRecord
	var fetched int

	for _, src := range l.sources {
		recs, err := l.fetchSource(ctx, src)
		if err != nil {
			l.logger.Warn("failed to load tier sheet",
				zap.String("tier", string(src.Tier)),
				zap.String("url", src.URL),
				zap.Error(err))
			continue
		}
		l.logger.Info("tier sheet loaded",
			zap.String("tier", string(src.Tier)),
			zap.Int("rows", len(recs)))
		records = append(records, recs...)
		fetched++
	}

	fromCache := false
	if fetched == 0 {
		cached, err := l.loadFromCache(ctx)
		if err != nil {
			middleware.ZipIndexLoadsTotal.WithLabelValues("failure").Inc()
			l.setDegraded(fmt.Errorf("all %d sources failed and no cached dataset: %w", len(l.sources), err))
			return l.LastError()
		}
		l.logger.Warn("all sources failed, using cached dataset",
			zap.Int("rows", len(cached)))
		records = cached
		fromCache = true
	}

	loaded, skipped := l.index.Load(records)
	l.logger.Info("zip index rebuilt",
		zap.Int("loaded", loaded),
		zap.Int("skipped", skipped),
		zap.Int("sources_fetched", fetched),
		zap.Bool("from_cache", fromCache))

	middleware.ZipIndexLoadsTotal.WithLabelValues("success").Inc()
	for tier, n := range l.index.Stats().PerTier {
		middleware.ZipIndexSize.WithLabelValues(string(tier)).Set(float64(n))
	}

	if !fromCache && l.cache != nil {
		if err := l.cache.Store(ctx, records); err != nil {
			l.logger.Warn("failed to cache dataset", zap.Error(err))
		}
	}

	// Partial loads keep serving but surface as degraded health.
	if fetched < len(l.sources) && !fromCache {
		l.setDegraded(fmt.Errorf("loaded %d of %d sources", fetched, len(l.sources)))
	} else if fromCache {
		l.setDegraded(fmt.Errorf("serving cached dataset, all sources unreachable"))
	} else {
		l.setDegraded(nil)
	}

	return nil
}

// Run refreshes the dataset on the given interval until ctx is done.
func (l *Loader) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	l.logger.Info("zip dataset refresh started", zap.Duration("interval", interval))

	for {
		select {
		case <-ctx.Done():
			l.logger.Info("zip dataset refresh stopped")
			return
		case <-ticker.C:
			if err := l.Refresh(ctx); err != nil {
				l.logger.Error("scheduled dataset refresh failed", zap.Error(err))
			}
		}
	}
}

// Degraded reports whether the last refresh was anything short of a
// full load. The health endpoint surfaces this.
func (l *Loader) Degraded() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.degraded
}

// LastError returns the most recent refresh problem, nil when healthy.
func (l *Loader) LastError() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastErr
}

func (l *Loader) setDegraded(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.degraded = err != nil
	l.lastErr = err
}

func (l *Loader) fetchSource(ctx context.Context, src Source) ([]routing.ZipRecord, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := l.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read body: %w", err)
	}

	return Parse(src.URL, body, src.Tier)
}

func (l *Loader) loadFromCache(ctx context.Context) ([]routing.ZipRecord, error) {
	if l.cache == nil {
		return nil, fmt.Errorf("no cache configured")
	}
	return l.cache.Load(ctx)
}
