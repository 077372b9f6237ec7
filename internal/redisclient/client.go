// Package redisclient wraps the Redis connection used by the ZIP
// dataset cache. Redis is optional for this service: routing state is
// process-local, and the only thing stored is the last good dataset so
// a restart survives unreachable upstream sheets.
package redisclient

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"zip-routing-api-go/internal/config"
)

// Client holds the pooled Redis connection for the dataset cache.
type Client struct {
	rdb *redis.Client
}

// NewClient connects using the configured REDIS_URL and pool settings.
func NewClient(cfg *config.Config) (*Client, error) {
	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	opt.ClientName = cfg.AppName
	opt.PoolSize = cfg.RedisPoolSize
	opt.MinIdleConns = cfg.RedisMinIdleConn
	opt.MaxRetries = cfg.RedisMaxRetries
	opt.DialTimeout = cfg.RedisDialTimeout

	return &Client{rdb: redis.NewClient(opt)}, nil
}

// Ping verifies the connection. A failed ping disables the dataset
// cache rather than failing startup.
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Close releases the connection pool.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// GetRedis exposes the underlying client for the dataset cache.
func (c *Client) GetRedis() *redis.Client {
	return c.rdb
}
