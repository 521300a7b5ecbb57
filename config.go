package skyodyssey

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds daemon-mode runtime configuration loaded from the
// environment. Library callers never need it; the engine is configured
// through functional options.
type Config struct {
	Port         string
	ProviderURL  string
	CacheBackend string // "memory", "redis" or "postgres"
	RedisURL     string
	DatabaseURL  string

	SweepIntervalHours int
	Debug              bool
}

// LoadConfig reads environment variables and returns a validated Config.
// Fail-fast: a backend selected without its connection URL is an error.
func LoadConfig() (*Config, error) {
	providerURL := os.Getenv("PROVIDER_URL")
	if providerURL == "" {
		return nil, fmt.Errorf("PROVIDER_URL is required")
	}

	backend := os.Getenv("CACHE_BACKEND")
	if backend == "" {
		backend = "memory"
	}
	redisURL := os.Getenv("REDIS_URL")
	dbURL := os.Getenv("DATABASE_URL")
	switch backend {
	case "memory":
	case "redis":
		if redisURL == "" {
			return nil, fmt.Errorf("REDIS_URL is required when CACHE_BACKEND=redis")
		}
	case "postgres":
		if dbURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required when CACHE_BACKEND=postgres")
		}
	default:
		return nil, fmt.Errorf("unknown CACHE_BACKEND %q (want memory, redis or postgres)", backend)
	}

	interval := 1
	if s := os.Getenv("SWEEP_INTERVAL_HOURS"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil || v < 1 {
			return nil, fmt.Errorf("SWEEP_INTERVAL_HOURS must be a positive integer, got %q", s)
		}
		interval = v
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	return &Config{
		Port:               port,
		ProviderURL:        providerURL,
		CacheBackend:       backend,
		RedisURL:           redisURL,
		DatabaseURL:        dbURL,
		SweepIntervalHours: interval,
		Debug:              os.Getenv("DEBUG") == "true",
	}, nil
}
