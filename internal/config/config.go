// Package config loads service configuration from the environment.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
)

// Config holds all runtime settings for the billing service.
type Config struct {
	Environment string
	HTTPAddr    string
	DatabaseURL string

	// SeedDemoData loads the development fixture set on startup.
	SeedDemoData bool

	// OverdueSweepInterval controls how often the scheduler materializes
	// pending payments past their due date as overdue.
	OverdueSweepInterval time.Duration
	OverdueSweepBatch    int
}

// IsProduction reports whether the service runs with production settings.
func (c Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

// Load reads configuration from the environment, honoring a local .env file
// when present.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Environment:          getEnv("BILLING_ENV", "development"),
		HTTPAddr:             getEnv("BILLING_HTTP_ADDR", ":8080"),
		DatabaseURL:          getEnv("BILLING_DATABASE_URL", ""),
		SeedDemoData:         getEnvBool("BILLING_SEED_DEMO_DATA", false),
		OverdueSweepInterval: getEnvDuration("BILLING_OVERDUE_SWEEP_INTERVAL", time.Hour),
		OverdueSweepBatch:    getEnvInt("BILLING_OVERDUE_SWEEP_BATCH", 500),
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvInt(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

// Module provides the configuration to the fx graph.
var Module = fx.Module("config",
	fx.Provide(Load),
)
