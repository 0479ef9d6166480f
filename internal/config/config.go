// Package config reads the gateway's configuration from environment
// variables. Required variables fail fast at boot; everything else carries a
// default.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config is the full gateway configuration.
type Config struct {
	Port        string
	DatabaseURL string

	SchemaURL             string
	SchemaRefreshInterval time.Duration

	AccountsFile  string
	SessionPath   string
	BlacklistPath string

	GCEndpoint string
	ProxyURL   string

	BotsPerWorker     int
	WorkerEnabled     bool
	MaxQueueSize      int
	QueueTimeout      time.Duration
	MaxInspectRetries int
	MaxRetries        int
	LoginInterval     time.Duration

	StatsUpdateInterval time.Duration

	AllowedOrigins string
	AuthToken      string
	RatePerMinute  int
	RateBurst      int

	LogLevel  string
	LogPretty bool
}

// Load builds the configuration from the environment. It returns an error
// for any missing required variable or unparseable value.
func Load() (*Config, error) {
	cfg := &Config{
		Port:           getEnvOrDefault("PORT", "8080"),
		ProxyURL:       os.Getenv("PROXY_URL"),
		AllowedOrigins: os.Getenv("ALLOWED_ORIGINS"),
		AuthToken:      os.Getenv("API_AUTH_TOKEN"),
		LogLevel:       getEnvOrDefault("LOG_LEVEL", "info"),
		LogPretty:      boolEnv("LOG_PRETTY"),
		WorkerEnabled:  boolEnv("WORKER_ENABLED"),

		AccountsFile:  getEnvOrDefault("ACCOUNTS_FILE", "accounts.txt"),
		SessionPath:   getEnvOrDefault("SESSION_PATH", "sessions"),
		BlacklistPath: getEnvOrDefault("BLACKLIST_PATH", "blacklist.txt"),
	}

	var err error
	if cfg.DatabaseURL, err = requireEnv("DATABASE_URL"); err != nil {
		return nil, err
	}
	if cfg.SchemaURL, err = requireEnv("SCHEMA_URL"); err != nil {
		return nil, err
	}
	if cfg.GCEndpoint, err = requireEnv("GC_ENDPOINT"); err != nil {
		return nil, err
	}

	if cfg.BotsPerWorker, err = intEnv("BOTS_PER_WORKER", 50); err != nil {
		return nil, err
	}
	if cfg.MaxQueueSize, err = intEnv("MAX_QUEUE_SIZE", 100); err != nil {
		return nil, err
	}
	if cfg.MaxInspectRetries, err = intEnv("MAX_INSPECT_RETRIES", 3); err != nil {
		return nil, err
	}
	if cfg.MaxRetries, err = intEnv("MAX_RETRIES", 3); err != nil {
		return nil, err
	}
	if cfg.RatePerMinute, err = intEnv("RATE_PER_MINUTE", 60); err != nil {
		return nil, err
	}
	if cfg.RateBurst, err = intEnv("RATE_BURST", 20); err != nil {
		return nil, err
	}

	if cfg.QueueTimeout, err = millisEnv("QUEUE_TIMEOUT", 5000); err != nil {
		return nil, err
	}
	if cfg.StatsUpdateInterval, err = millisEnv("STATS_UPDATE_INTERVAL", 3000); err != nil {
		return nil, err
	}
	if cfg.LoginInterval, err = millisEnv("LOGIN_INTERVAL", 500); err != nil {
		return nil, err
	}
	if cfg.SchemaRefreshInterval, err = durationEnv("SCHEMA_REFRESH_INTERVAL", 6*time.Hour); err != nil {
		return nil, err
	}

	return cfg, nil
}

func requireEnv(key string) (string, error) {
	val := os.Getenv(key)
	if val == "" {
		return "", fmt.Errorf("required environment variable %s is not set", key)
	}
	return val, nil
}

func getEnvOrDefault(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func boolEnv(key string) bool {
	switch os.Getenv(key) {
	case "true", "1", "yes":
		return true
	}
	return false
}

func intEnv(key string, fallback int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

// millisEnv reads an integer millisecond value, matching how the historical
// deployment expressed its timeouts.
func millisEnv(key string, fallbackMs int) (time.Duration, error) {
	n, err := intEnv(key, fallbackMs)
	if err != nil {
		return 0, err
	}
	return time.Duration(n) * time.Millisecond, nil
}

func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}
