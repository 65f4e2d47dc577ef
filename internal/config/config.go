package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

type Config struct {
	Port string `env:"PORT" envDefault:"8080"`
	Env  string `env:"ENV" envDefault:"development"`

	StoreBackend string `env:"STORE_BACKEND" envDefault:"memory"`

	RedisURL  string `env:"REDIS_URL" envDefault:"localhost:6379"`
	RedisPass string `env:"REDIS_PASSWORD"`
	RedisDB   int    `env:"REDIS_DB" envDefault:"0"`

	DatabaseURL string `env:"DATABASE_URL"`

	JWTSecret string `env:"JWT_SECRET"`
	JWTIssuer string `env:"JWT_ISSUER" envDefault:"fairdice"`

	SeedTTL            time.Duration `env:"SEED_TTL" envDefault:"24h"`
	LedgerWriteRetries int           `env:"LEDGER_WRITE_RETRIES" envDefault:"3"`
	BetRateLimit       int           `env:"BET_RATE_LIMIT" envDefault:"30"` // bets per minute per address
	MaxBet             string        `env:"MAX_BET"`

	HistoryMaxPageSize  int `env:"HISTORY_MAX_PAGE_SIZE" envDefault:"100"`
	LeaderboardMaxLimit int `env:"LEADERBOARD_MAX_LIMIT" envDefault:"100"`
}

// Load reads the configuration from the environment.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.StoreBackend {
	case BackendMemory, BackendRedis:
	case BackendPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for the postgres backend")
		}
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend)
	}

	if c.IsProduction() && c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required in production")
	}
	if c.SeedTTL <= 0 {
		return fmt.Errorf("SEED_TTL must be positive")
	}
	if c.LedgerWriteRetries < 0 {
		return fmt.Errorf("LEDGER_WRITE_RETRIES must not be negative")
	}
	if c.HistoryMaxPageSize <= 0 || c.LeaderboardMaxLimit <= 0 {
		return fmt.Errorf("page size limits must be positive")
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}
