package config

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"time"
)

// Topology modes accepted via SERVER_MODE or the --mode startup argument.
const (
	ModeFork    = "FORK"
	ModeCluster = "CLUSTER"
)

type Config struct {
	AppEnv      string
	Port        string
	Mode        string
	Workers     int
	RedisURL    string
	DatabaseURL string

	SessionSecret string
	SessionTTL    time.Duration

	LogLevel  string
	LogFormat string
}

func Load() (*Config, error) {
	cfg := &Config{
		AppEnv:        getEnv("APP_ENV", "development"),
		Port:          getEnv("PORT", "8080"),
		Mode:          getEnv("SERVER_MODE", ModeFork),
		RedisURL:      getEnv("REDIS_URL", ""),
		DatabaseURL:   getEnv("DATABASE_URL", ""),
		SessionSecret: getEnv("SESSION_SECRET", ""),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		LogFormat:     getEnv("LOG_FORMAT", "text"),
	}

	workers := getEnv("WORKERS", "")
	if workers == "" {
		cfg.Workers = runtime.NumCPU()
	} else {
		n, err := strconv.Atoi(workers)
		if err != nil || n < 1 {
			return nil, fmt.Errorf("WORKERS must be a positive integer, got %q", workers)
		}
		cfg.Workers = n
	}

	ttl := getEnv("SESSION_TTL", "10m")
	d, err := time.ParseDuration(ttl)
	if err != nil {
		return nil, fmt.Errorf("SESSION_TTL must be a duration: %w", err)
	}
	cfg.SessionTTL = d

	if cfg.Mode != ModeFork && cfg.Mode != ModeCluster {
		return nil, fmt.Errorf("SERVER_MODE must be %s or %s, got %q", ModeFork, ModeCluster, cfg.Mode)
	}
	if cfg.SessionSecret == "" {
		return nil, fmt.Errorf("SESSION_SECRET is required")
	}
	if cfg.RedisURL == "" && cfg.DatabaseURL == "" && cfg.AppEnv == "production" {
		return nil, fmt.Errorf("REDIS_URL or DATABASE_URL is required in production")
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
