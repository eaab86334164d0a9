package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds server configuration, loaded from environment variables.
type Config struct {
	Port         string `env:"PORT" envDefault:"3000"`
	SQLiteDB     string `env:"SQLITE_DB"`
	JWTSecret    string `env:"JWT_SECRET" envDefault:"devsecret"`
	DataDir      string `env:"DATA_DIR" envDefault:"data"`
	MaxRetries   int    `env:"MAX_RETRY_COUNT" envDefault:"5"`
	RetryDelayMS int    `env:"RETRY_DELAY_MS" envDefault:"1000"`
	// DemoFallback controls whether a store-unavailable error on the primary
	// path is retried against the flat-file store instead of surfacing.
	DemoFallback bool   `env:"DEMO_FALLBACK" envDefault:"true"`
	GinMode      string `env:"GIN_MODE" envDefault:"debug"`
}

// Load parses configuration from environment variables.
func Load() (*Config, error) {
	cfg := Config{}
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}

// RetryDelay returns the delay between primary-store connection attempts.
func (c *Config) RetryDelay() time.Duration {
	return time.Duration(c.RetryDelayMS) * time.Millisecond
}
