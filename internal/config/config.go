// Package config loads application configuration from environment
// variables, including the tier set consumed by the routing engine.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"
)

// defaultTierConfig mirrors the three production tiers. Overridden by
// the TIER_CONFIG env var (JSON array, order = ZIP ownership priority).
const defaultTierConfig = `[
  {"id":"tier_1","offer_id":"11558","start_hour":9,"end_hour":21,"timezone":"US/Eastern","max_calls_per_hour":100,"fallback":"tier_2",
   "zip_url":"https://raw.githubusercontent.com/HannielSolutions/zip-routing-api/main/Tier%201.xlsx"},
  {"id":"tier_2","offer_id":"22222","start_hour":9,"end_hour":21,"timezone":"US/Eastern","max_calls_per_hour":100,"fallback":"tier_3",
   "zip_url":"https://raw.githubusercontent.com/HannielSolutions/zip-routing-api/main/Tier%202.xlsx"},
  {"id":"tier_3","offer_id":"33333","start_hour":9,"end_hour":21,"timezone":"US/Eastern","max_calls_per_hour":100,
   "zip_url":"https://raw.githubusercontent.com/HannielSolutions/zip-routing-api/main/Tier%203.xlsx"}
]`

// TierSpec is one tier as configured. Array order in TIER_CONFIG is the
// priority order used when a ZIP appears in more than one tier's sheet.
type TierSpec struct {
	ID              string `json:"id"`
	OfferID         string `json:"offer_id"`
	StartHour       int    `json:"start_hour"`
	EndHour         int    `json:"end_hour"`
	Timezone        string `json:"timezone"`
	MaxCallsPerHour int    `json:"max_calls_per_hour"`
	Fallback        string `json:"fallback,omitempty"`
	ZipURL          string `json:"zip_url,omitempty"`
}

// Config holds all application configuration
type Config struct {
	// Server configuration
	HTTPPort    string
	MetricsPort string

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// Redis configuration (optional — caches the last good ZIP dataset)
	RedisURL         string
	RedisPoolSize    int
	RedisMinIdleConn int
	RedisMaxRetries  int
	RedisDialTimeout time.Duration

	// MarketCall bid API configuration
	MarketcallBaseURL string
	MarketcallAPIKey  string
	CampaignID        string
	BidTimeout        time.Duration

	// Tier set, in priority order
	Tiers []TierSpec

	// ZIP dataset refresh
	ZipRefreshInterval time.Duration
	ZipFetchTimeout    time.Duration

	// Outcome recording
	HistorySize int
	CallLogPath string

	// Logging configuration
	LogLevel  string
	LogFormat string

	// Application metadata
	AppName    string
	AppVersion string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		HTTPPort:           getEnv("HTTP_PORT", "8080"),
		MetricsPort:        getEnv("METRICS_PORT", "9090"),
		ReadTimeout:        getEnvDuration("HTTP_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:       getEnvDuration("HTTP_WRITE_TIMEOUT", 45*time.Second),
		IdleTimeout:        getEnvDuration("HTTP_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout:    getEnvDuration("SHUTDOWN_TIMEOUT", 15*time.Second),
		RedisURL:           getEnv("REDIS_URL", ""),
		RedisPoolSize:      getEnvInt("REDIS_POOL_SIZE", 10),
		RedisMinIdleConn:   getEnvInt("REDIS_MIN_IDLE_CONNS", 2),
		RedisMaxRetries:    getEnvInt("REDIS_MAX_RETRIES", 3),
		RedisDialTimeout:   getEnvDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
		MarketcallBaseURL:  getEnv("MARKETCALL_BASE_URL", "https://www.marketcall.com"),
		MarketcallAPIKey:   getEnv("MARKETCALL_API_KEY", ""),
		CampaignID:         getEnv("CAMPAIGN_ID", "323747"),
		BidTimeout:         getEnvDuration("BID_TIMEOUT", 30*time.Second),
		ZipRefreshInterval: getEnvDuration("ZIP_REFRESH_INTERVAL", 6*time.Hour),
		ZipFetchTimeout:    getEnvDuration("ZIP_FETCH_TIMEOUT", 30*time.Second),
		HistorySize:        getEnvInt("CALL_HISTORY_SIZE", 10000),
		CallLogPath:        getEnv("CALL_LOG_PATH", ""),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		LogFormat:          getEnv("LOG_FORMAT", "json"),
		AppName:            "zip-router",
		AppVersion:         getEnv("APP_VERSION", "dev"),
	}

	tierJSON := getEnv("TIER_CONFIG", defaultTierConfig)
	if err := json.Unmarshal([]byte(tierJSON), &cfg.Tiers); err != nil {
		return nil, fmt.Errorf("failed to parse TIER_CONFIG: %w", err)
	}

	// Validate required configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks if required configuration is present. Tier semantics
// (hours windows, fallback cycles, timezones) are validated by the
// routing registry at startup.
func (c *Config) Validate() error {
	if len(c.Tiers) == 0 {
		return fmt.Errorf("TIER_CONFIG must define at least one tier")
	}

	// The API key is required in production; local runs may exercise
	// the routing path without placing real bids.
	if c.MarketcallAPIKey == "" && os.Getenv("ENV") == "production" {
		return fmt.Errorf("MARKETCALL_API_KEY is required in production")
	}

	if c.HistorySize <= 0 {
		return fmt.Errorf("CALL_HISTORY_SIZE must be positive")
	}

	// Validate log level
	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s (must be debug/info/warn/error)", c.LogLevel)
	}

	return nil
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

// getEnvInt retrieves an integer environment variable or returns a default value
func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		i, err := strconv.Atoi(val)
		if err != nil {
			return defaultVal
		}
		return i
	}
	return defaultVal
}

// getEnvDuration retrieves a duration environment variable or returns a default value
func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		d, err := time.ParseDuration(val)
		if err != nil {
			return defaultVal
		}
		return d
	}
	return defaultVal
}
