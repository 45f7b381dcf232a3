// Package config loads runtime settings from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const DefaultMaxItems = 50

type Config struct {
	// Feeds and output
	FeedsConfigPath string
	OutputPath      string
	MaxItems        int // 0 = take max_items from the feeds file, else DefaultMaxItems

	// Fetch settings
	FetchConcurrency int
	RequestTimeout   time.Duration
	UserAgent        string

	// App settings
	Debug bool

	// Monitoring
	EnableHTTPMonitoring bool
	MonitoringPort       string
}

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	return FromEnv()
}

// FromEnv builds a Config from the current environment only.
func FromEnv() (*Config, error) {
	cfg := &Config{
		// Default values
		FeedsConfigPath:  "configs/feeds.yaml",
		OutputPath:       "items.json",
		FetchConcurrency: 8,
		RequestTimeout:   20 * time.Second,
		MonitoringPort:   "8080",
	}

	cfg.FeedsConfigPath = getEnvOrDefault("FEEDS_CONFIG_PATH", cfg.FeedsConfigPath)
	cfg.OutputPath = getEnvOrDefault("OUTPUT_PATH", cfg.OutputPath)
	cfg.UserAgent = os.Getenv("USER_AGENT")
	cfg.MonitoringPort = getEnvOrDefault("MONITORING_PORT", cfg.MonitoringPort)

	if v := os.Getenv("MAX_ITEMS"); v != "" {
		val, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("MAX_ITEMS: %w", err)
		}
		cfg.MaxItems = val
	}
	if v := os.Getenv("FETCH_CONCURRENCY"); v != "" {
		if val, err := strconv.Atoi(v); err == nil && val > 0 {
			cfg.FetchConcurrency = val
		}
	}
	if v := os.Getenv("REQUEST_TIMEOUT_SECONDS"); v != "" {
		if val, err := strconv.Atoi(v); err == nil && val > 0 {
			cfg.RequestTimeout = time.Duration(val) * time.Second
		}
	}

	if debug := os.Getenv("DEBUG"); debug == "true" {
		cfg.Debug = true
	}
	if os.Getenv("ENABLE_HTTP_MONITORING") == "true" {
		cfg.EnableHTTPMonitoring = true
	}

	return cfg, cfg.Validate()
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func (c *Config) Validate() error {
	if c.FeedsConfigPath == "" {
		return fmt.Errorf("FEEDS_CONFIG_PATH is required")
	}
	if c.OutputPath == "" {
		return fmt.Errorf("OUTPUT_PATH is required")
	}
	if c.MaxItems < 0 {
		return fmt.Errorf("MAX_ITEMS must not be negative")
	}
	if c.FetchConcurrency <= 0 {
		return fmt.Errorf("FETCH_CONCURRENCY must be positive")
	}
	return nil
}

// ResolveMaxItems picks the cap: env first, then the feeds file, then the default.
func (c *Config) ResolveMaxItems(fromFile int) int {
	if c.MaxItems > 0 {
		return c.MaxItems
	}
	if fromFile > 0 {
		return fromFile
	}
	return DefaultMaxItems
}
