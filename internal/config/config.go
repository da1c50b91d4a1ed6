package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

const (
	BackendMongo     = "mongo"
	BackendFirestore = "firestore"
	BackendMemory    = "memory"
)

// Config is the process configuration, read from the environment.
type Config struct {
	Port          string
	Backend       string
	MongoURL      string
	MongoDatabase string
	ProjectID     string
	RedisURL      string
	CacheTTL      time.Duration
	StrictStatus  bool
	Debug         bool
}

// Load reads the configuration from the process environment.
func Load() (Config, error) {
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config using getenv for lookups.
func FromEnv(getenv func(string) string) (Config, error) {
	cfg := Config{
		Port:          withDefault(getenv("PORT"), "3000"),
		Backend:       withDefault(getenv("STORE_BACKEND"), BackendMongo),
		MongoURL:      getenv("MONGO_URL"),
		MongoDatabase: withDefault(getenv("MONGO_DATABASE"), "todos"),
		ProjectID:     getenv("GOOGLE_CLOUD_PROJECT"),
		RedisURL:      getenv("REDIS_URL"),
		CacheTTL:      5 * time.Minute,
	}

	switch cfg.Backend {
	case BackendMongo:
		if cfg.MongoURL == "" {
			return Config{}, fmt.Errorf("MONGO_URL environment variable is required")
		}
	case BackendFirestore:
		if cfg.ProjectID == "" {
			return Config{}, fmt.Errorf("GOOGLE_CLOUD_PROJECT environment variable is required")
		}
	case BackendMemory:
	default:
		return Config{}, fmt.Errorf("invalid STORE_BACKEND %q", cfg.Backend)
	}

	if v := getenv("CACHE_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return Config{}, fmt.Errorf("invalid CACHE_TTL %q", v)
		}
		cfg.CacheTTL = d
	}

	var err error
	if cfg.StrictStatus, err = parseBool(getenv, "STRICT_STATUS"); err != nil {
		return Config{}, err
	}
	if cfg.Debug, err = parseBool(getenv, "DEBUG"); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func parseBool(getenv func(string) string, key string) (bool, error) {
	v := getenv(key)
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}

func withDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
