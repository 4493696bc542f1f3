package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// DefaultSeasonStart is the start of the current NitroType league season.
// Overridable via SEASON_START so a new season does not need a redeploy.
const DefaultSeasonStart = "2026-08-03T00:00:00Z"

// Config holds application configuration
type Config struct {
	Port            int
	DevMode         bool
	LogLevel        string
	DatabasePath    string
	RedisAddr       string
	UpstreamBaseURL string
	Teams           []string
	SeasonStart     time.Time
	FetchInterval   time.Duration
	StatsCacheMB    int
	StatsCacheTTL   time.Duration
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	seasonStart, err := time.Parse(time.RFC3339, getEnv("SEASON_START", DefaultSeasonStart))
	if err != nil {
		return nil, fmt.Errorf("invalid SEASON_START: %w", err)
	}

	cfg := &Config{
		Port:            getEnvAsInt("PORT", 8080),
		DevMode:         getEnvAsBool("DEV_MODE", false),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		DatabasePath:    getEnv("DATABASE_PATH", "./data/tracker.db"),
		RedisAddr:       getEnv("REDIS_ADDR", ""),
		UpstreamBaseURL: getEnv("UPSTREAM_BASE_URL", "https://nitrotype.com"),
		Teams:           getEnvAsList("TEAMS", []string{"KECATS", "SSH"}),
		SeasonStart:     seasonStart,
		FetchInterval:   getEnvAsDuration("FETCH_INTERVAL", 5*time.Minute),
		StatsCacheMB:    getEnvAsInt("STATS_CACHE_MB", 16),
		StatsCacheTTL:   getEnvAsDuration("STATS_CACHE_TTL", time.Minute),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	if c.DatabasePath == "" {
		return fmt.Errorf("DATABASE_PATH is required")
	}

	if len(c.Teams) == 0 {
		return fmt.Errorf("TEAMS must list at least one team tag")
	}

	if c.FetchInterval < time.Minute {
		return fmt.Errorf("FETCH_INTERVAL must be at least one minute")
	}

	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// getEnvAsList parses a comma-separated value, trimming and uppercasing
// each element. Team tags are case-normalized to uppercase everywhere.
func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	var items []string
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			items = append(items, strings.ToUpper(trimmed))
		}
	}

	if len(items) == 0 {
		return defaultValue
	}
	return items
}
