// Package config handles application configuration from environment variables
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// Runtime settings
	Env       string // "development", "staging", "production"
	LogLevel  string
	LogFormat string // "text" or "json"

	// Cache
	CacheBackend  string // "memory", "file", "redis"
	CacheDir      string // file backend root
	RedisURL      string // required when CacheBackend is "redis"
	DefaultTTL    time.Duration
	MaxEntries    int // memory backend capacity before LRU eviction
	SweepInterval time.Duration

	// Rate limiting (fixed window, per upstream service)
	RateLimit  int
	RatePeriod time.Duration

	// Circuit breaker
	FailureThreshold int
	OpenTimeout      time.Duration

	// Producer calls
	ProducerTimeout time.Duration
	MaxAttempts     int
	RetryBaseDelay  time.Duration

	// Scoring weights (must sum to 1.0)
	WeightProfitability float64
	WeightCompetition   float64
	WeightMarketSize    float64
	WeightConfidence    float64
}

// Cache backend names accepted by CACHE_BACKEND.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendRedis  = "redis"
)

// Defaults
const (
	DefaultEnv                = "development"
	DefaultLogLevel           = "info"
	DefaultLogFormat          = "text"
	DefaultCacheBackend       = "memory"
	DefaultCacheDir           = "cache"
	DefaultTTLSeconds         = 3600
	DefaultMaxEntries         = 1000
	DefaultSweepSeconds       = 300
	DefaultRateLimit          = 60
	DefaultRatePeriodSec      = 60
	DefaultThreshold          = 5
	DefaultOpenTimeoutSec     = 30
	DefaultProducerTimeoutSec = 30
	DefaultMaxAttempts        = 3
	DefaultRetryBaseMs        = 250
)

// Load reads configuration from environment variables.
// It loads .env file if present (for local development).
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not present)
	_ = godotenv.Load()

	cfg := &Config{
		Env:           getEnv("ENV", DefaultEnv),
		LogLevel:      getEnv("LOG_LEVEL", DefaultLogLevel),
		LogFormat:     getEnv("LOG_FORMAT", DefaultLogFormat),
		CacheBackend:  getEnv("CACHE_BACKEND", DefaultCacheBackend),
		CacheDir:      getEnv("CACHE_DIR", DefaultCacheDir),
		RedisURL:      os.Getenv("REDIS_URL"), // Required only for the redis backend
		DefaultTTL:    getEnvSeconds("CACHE_TTL", DefaultTTLSeconds),
		MaxEntries:    getEnvInt("CACHE_MAX_ENTRIES", DefaultMaxEntries),
		SweepInterval: getEnvSeconds("CACHE_SWEEP_INTERVAL", DefaultSweepSeconds),

		RateLimit:  getEnvInt("RATE_LIMIT", DefaultRateLimit),
		RatePeriod: getEnvSeconds("RATE_PERIOD", DefaultRatePeriodSec),

		FailureThreshold: getEnvInt("FAILURE_THRESHOLD", DefaultThreshold),
		OpenTimeout:      getEnvSeconds("OPEN_TIMEOUT", DefaultOpenTimeoutSec),

		ProducerTimeout: getEnvSeconds("PRODUCER_TIMEOUT", DefaultProducerTimeoutSec),
		MaxAttempts:     getEnvInt("MAX_ATTEMPTS", DefaultMaxAttempts),
		RetryBaseDelay:  time.Duration(getEnvInt("RETRY_BASE_DELAY_MS", DefaultRetryBaseMs)) * time.Millisecond,

		WeightProfitability: getEnvFloat("WEIGHT_PROFITABILITY", 0.4),
		WeightCompetition:   getEnvFloat("WEIGHT_COMPETITION", 0.3),
		WeightMarketSize:    getEnvFloat("WEIGHT_MARKET_SIZE", 0.2),
		WeightConfidence:    getEnvFloat("WEIGHT_CONFIDENCE", 0.1),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that the configuration is usable
func (c *Config) Validate() error {
	switch c.CacheBackend {
	case BackendMemory, BackendFile:
	case BackendRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required when CACHE_BACKEND=redis")
		}
	default:
		return fmt.Errorf("unknown CACHE_BACKEND %q", c.CacheBackend)
	}

	if c.RateLimit <= 0 {
		return fmt.Errorf("RATE_LIMIT must be positive, got %d", c.RateLimit)
	}
	if c.RatePeriod <= 0 {
		return fmt.Errorf("RATE_PERIOD must be positive")
	}
	if c.FailureThreshold <= 0 {
		return fmt.Errorf("FAILURE_THRESHOLD must be positive, got %d", c.FailureThreshold)
	}
	if c.MaxAttempts <= 0 {
		return fmt.Errorf("MAX_ATTEMPTS must be positive, got %d", c.MaxAttempts)
	}

	sum := c.WeightProfitability + c.WeightCompetition + c.WeightMarketSize + c.WeightConfidence
	if sum < 0.999 || sum > 1.001 {
		return fmt.Errorf("scoring weights must sum to 1.0, got %.3f", sum)
	}

	return nil
}

// IsProduction returns true in production environments
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvSeconds(key string, fallbackSeconds int) time.Duration {
	return time.Duration(getEnvInt(key, fallbackSeconds)) * time.Second
}
