package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

const (
	StorePostgres = "postgres"
	StoreSQLite   = "sqlite"
	StoreMemory   = "memory"
)

type Config struct {
	// Server
	Port string
	Env  string

	// Storage
	StoreDriver string
	DatabaseURL string
	DBMaxConns  int
	SQLitePath  string

	// Redis (optional, enables live updates)
	RedisURL string

	// JWT
	JWTSecret string

	// Study tracking
	ReconcileIntervalMinutes int
	StartRateLimitPerMin     int

	// Frontend
	FrontendURL string
}

func Load() *Config {
	// Load .env file if it exists
	godotenv.Load()

	cfg := &Config{
		Port:                     getEnvOrDefault("PORT", "8080"),
		Env:                      getEnvOrDefault("ENV", "development"),
		StoreDriver:              getEnvOrDefault("STORE_DRIVER", StorePostgres),
		DatabaseURL:              getEnvOrDefault("DATABASE_URL", ""),
		DBMaxConns:               getEnvAsIntOrDefault("DB_MAX_CONNS", 20),
		SQLitePath:               getEnvOrDefault("SQLITE_PATH", "./data/skilltrack.db"),
		RedisURL:                 getEnvOrDefault("REDIS_URL", ""),
		JWTSecret:                mustGetEnv("JWT_SECRET"),
		ReconcileIntervalMinutes: getEnvAsIntOrDefault("RECONCILE_INTERVAL_MINUTES", 15),
		StartRateLimitPerMin:     getEnvAsIntOrDefault("START_RATE_LIMIT_PER_MIN", 30),
		FrontendURL:              getEnvOrDefault("FRONTEND_URL", "http://localhost:5173"),
	}

	return cfg
}

// Validate checks settings that depend on each other.
func (c *Config) Validate() error {
	switch c.StoreDriver {
	case StorePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when STORE_DRIVER=%s", StorePostgres)
		}
	case StoreSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("SQLITE_PATH is required when STORE_DRIVER=%s", StoreSQLite)
		}
	case StoreMemory:
		if c.Env == "production" {
			return fmt.Errorf("STORE_DRIVER=%s is not allowed in production", StoreMemory)
		}
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q (want postgres, sqlite or memory)", c.StoreDriver)
	}

	if c.StartRateLimitPerMin <= 0 {
		return fmt.Errorf("START_RATE_LIMIT_PER_MIN must be positive, got %d", c.StartRateLimitPerMin)
	}
	if c.ReconcileIntervalMinutes < 0 {
		return fmt.Errorf("RECONCILE_INTERVAL_MINUTES must not be negative, got %d", c.ReconcileIntervalMinutes)
	}
	return nil
}

func mustGetEnv(key string) string {
	val := os.Getenv(key)
	if val == "" {
		panic(fmt.Sprintf("required environment variable %s is not set", key))
	}
	return val
}

func getEnvOrDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func getEnvAsIntOrDefault(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return n
}
