package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all fabric configuration.
type Config struct {
	Server    ServerConfig
	Registry  RegistryConfig
	Breaker   BreakerConfig
	Retry     RetryConfig
	Health    HealthConfig
	Client    ClientConfig
	Logging   LogConfig
	RateLimit RateLimitConfig
}

// ServerConfig holds the ops HTTP server configuration.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8000"`
	Host string `envconfig:"HOST" default:"0.0.0.0"`
}

// RegistryConfig holds service discovery configuration.
type RegistryConfig struct {
	Endpoints       []string      `envconfig:"REGISTRY_ENDPOINTS" default:"localhost:2379"`
	DialTimeout     time.Duration `envconfig:"REGISTRY_DIAL_TIMEOUT" default:"5s"`
	CacheTTL        time.Duration `envconfig:"REGISTRY_CACHE_TTL" default:"30s"`
	RefreshInterval time.Duration `envconfig:"REGISTRY_REFRESH_INTERVAL" default:"10s"`
	LookupTimeout   time.Duration `envconfig:"REGISTRY_LOOKUP_TIMEOUT" default:"3s"`
}

// BreakerConfig holds circuit breaker configuration.
type BreakerConfig struct {
	FailureThreshold uint32        `envconfig:"BREAKER_FAILURE_THRESHOLD" default:"5"`
	FailureRate      float64       `envconfig:"BREAKER_FAILURE_RATE" default:"0.6"`
	MinRequests      uint32        `envconfig:"BREAKER_MIN_REQUESTS" default:"10"`
	Interval         time.Duration `envconfig:"BREAKER_INTERVAL" default:"60s"`
	OpenTimeout      time.Duration `envconfig:"BREAKER_OPEN_TIMEOUT" default:"30s"`
	HalfOpenRequests uint32        `envconfig:"BREAKER_HALF_OPEN_REQUESTS" default:"1"`
}

// RetryConfig holds retry executor configuration.
type RetryConfig struct {
	MaxAttempts    int           `envconfig:"RETRY_MAX_ATTEMPTS" default:"4"`
	InitialDelay   time.Duration `envconfig:"RETRY_INITIAL_DELAY" default:"100ms"`
	MaxDelay       time.Duration `envconfig:"RETRY_MAX_DELAY" default:"2s"`
	Multiplier     float64       `envconfig:"RETRY_MULTIPLIER" default:"2.0"`
	JitterFraction float64       `envconfig:"RETRY_JITTER" default:"0.2"`
}

// HealthConfig holds health checker configuration.
type HealthConfig struct {
	CheckTimeout time.Duration `envconfig:"HEALTH_CHECK_TIMEOUT" default:"5s"`
}

// ClientConfig holds resilient client configuration.
type ClientConfig struct {
	CallTimeout    time.Duration `envconfig:"CLIENT_CALL_TIMEOUT" default:"10s"`
	AttemptTimeout time.Duration `envconfig:"CLIENT_ATTEMPT_TIMEOUT" default:"3s"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// RateLimitConfig holds outgoing call rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond float64 `envconfig:"RATE_LIMIT_RPS" default:"100"`
	Burst             int     `envconfig:"RATE_LIMIT_BURST" default:"200"`
	Enabled           bool    `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: "8000",
			Host: "0.0.0.0",
		},
		Registry: RegistryConfig{
			Endpoints:       []string{"localhost:2379"},
			DialTimeout:     5 * time.Second,
			CacheTTL:        30 * time.Second,
			RefreshInterval: 10 * time.Second,
			LookupTimeout:   3 * time.Second,
		},
		Breaker: BreakerConfig{
			FailureThreshold: 5,
			FailureRate:      0.6,
			MinRequests:      10,
			Interval:         60 * time.Second,
			OpenTimeout:      30 * time.Second,
			HalfOpenRequests: 1,
		},
		Retry: RetryConfig{
			MaxAttempts:    4,
			InitialDelay:   100 * time.Millisecond,
			MaxDelay:       2 * time.Second,
			Multiplier:     2.0,
			JitterFraction: 0.2,
		},
		Health: HealthConfig{
			CheckTimeout: 5 * time.Second,
		},
		Client: ClientConfig{
			CallTimeout:    10 * time.Second,
			AttemptTimeout: 3 * time.Second,
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 100,
			Burst:             200,
			Enabled:           true,
		},
	}
}
