package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
)

type Config struct {
	ServiceName    string
	HTTPListenAddr string `validate:"required"`
	// MetricsListenAddr optionally serves /metrics on a separate port,
	// keeping it off the data plane. Empty disables it.
	MetricsListenAddr string
	LogLevel          string

	// Tenant source: exactly one of the two must be set.
	ControlPlaneDatabaseURL string
	TenantFile              string
	TenantRefreshInterval   time.Duration `validate:"gt=0"`

	// Command policy file; empty uses the built-in allow-list.
	PolicyFile string

	CommandTimeout time.Duration `validate:"gt=0"`

	PoolMinIdle          int           `validate:"gte=0"`
	PoolMaxActive        int           `validate:"gte=1"`
	PoolAcquireTimeout   time.Duration `validate:"gt=0"`
	PoolDialTimeout      time.Duration `validate:"gt=0"`
	PoolDialRetries      int           `validate:"gte=0"`
	PoolDialBackoff      time.Duration `validate:"gte=0"`
	PoolIdleTimeout      time.Duration `validate:"gt=0"`
	PoolEvictionInterval time.Duration `validate:"gt=0"`
}

func Load() (*Config, error) {
	cfg := &Config{
		ServiceName:             getEnv("SERVICE_NAME", "redisgate"),
		HTTPListenAddr:          getEnv("HTTP_LISTEN_ADDR", ":8080"),
		MetricsListenAddr:       getEnv("METRICS_LISTEN_ADDR", ""),
		LogLevel:                getEnv("LOG_LEVEL", "info"),
		ControlPlaneDatabaseURL: getEnv("CONTROL_PLANE_DATABASE_URL", ""),
		TenantFile:              getEnv("TENANT_FILE", ""),
		PolicyFile:              getEnv("POLICY_FILE", ""),
	}

	var err error
	if cfg.TenantRefreshInterval, err = getDuration("TENANT_REFRESH_INTERVAL", 15*time.Second); err != nil {
		return nil, err
	}
	if cfg.CommandTimeout, err = getDuration("COMMAND_TIMEOUT", 3*time.Second); err != nil {
		return nil, err
	}
	if cfg.PoolMinIdle, err = getInt("POOL_MIN_IDLE", 0); err != nil {
		return nil, err
	}
	if cfg.PoolMaxActive, err = getInt("POOL_MAX_ACTIVE", 8); err != nil {
		return nil, err
	}
	if cfg.PoolAcquireTimeout, err = getDuration("POOL_ACQUIRE_TIMEOUT", 2*time.Second); err != nil {
		return nil, err
	}
	if cfg.PoolDialTimeout, err = getDuration("POOL_DIAL_TIMEOUT", 2*time.Second); err != nil {
		return nil, err
	}
	if cfg.PoolDialRetries, err = getInt("POOL_DIAL_RETRIES", 2); err != nil {
		return nil, err
	}
	if cfg.PoolDialBackoff, err = getDuration("POOL_DIAL_BACKOFF", 100*time.Millisecond); err != nil {
		return nil, err
	}
	if cfg.PoolIdleTimeout, err = getDuration("POOL_IDLE_TIMEOUT", 5*time.Minute); err != nil {
		return nil, err
	}
	if cfg.PoolEvictionInterval, err = getDuration("POOL_EVICTION_INTERVAL", time.Minute); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks structural constraints plus the one-of rule on the tenant
// source.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.ControlPlaneDatabaseURL == "" && c.TenantFile == "" {
		return errors.New("one of CONTROL_PLANE_DATABASE_URL or TENANT_FILE must be set")
	}
	if c.ControlPlaneDatabaseURL != "" && c.TenantFile != "" {
		return errors.New("CONTROL_PLANE_DATABASE_URL and TENANT_FILE are mutually exclusive")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func getInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}
