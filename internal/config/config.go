package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Config holds the application configuration
type Config struct {
	DatabaseURL string `env:"BOOKR_DATABASE_URL"`
	UseMockDB   bool   `env:"BOOKR_USE_MOCK_DB"`
	Dev         bool   `env:"BOOKR_DEV"`

	// ClickHouse rating history, enabled when ClickHouseHost is set
	ClickHouseHost     string `env:"CLICKHOUSE_HOST"`
	ClickHousePort     int    `env:"CLICKHOUSE_PORT" envDefault:"9000"`
	ClickHouseDatabase string `env:"CLICKHOUSE_DATABASE" envDefault:"default"`
	ClickHouseUser     string `env:"CLICKHOUSE_USER" envDefault:"default"`
	ClickHousePassword string `env:"CLICKHOUSE_PASSWORD"`
	ClickHouseUseTLS   bool   `env:"CLICKHOUSE_USE_TLS"`
}

// HistoryEnabled reports whether a ClickHouse rating history is configured.
func (c *Config) HistoryEnabled() bool {
	return c.ClickHouseHost != ""
}

// LoadFromEnv loads configuration from environment variables
func LoadFromEnv() (*Config, error) {
	config := &Config{}
	if err := env.Parse(config); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if !config.UseMockDB && config.DatabaseURL == "" {
		return nil, fmt.Errorf("BOOKR_DATABASE_URL is required when BOOKR_USE_MOCK_DB is not set")
	}

	return config, nil
}
