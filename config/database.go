package config

import "time"

// DBConfig contains PostgreSQL database configuration.
type DBConfig struct {
	Host     string `env:"HOST"     envDefault:"localhost"`
	Port     int    `env:"PORT"     envDefault:"5432"`
	User     string `env:"USER"     envDefault:"moderation"`
	Password string `env:"PASSWORD" envDefault:"moderation"`
	Name     string `env:"NAME"     envDefault:"ad_moderation"`
	SSLMode  string `env:"SSL_MODE" envDefault:"disable"` // Use 'disable' for local dev, 'require' for production
	// RunMigrationsOnStart controls whether the application automatically applies migrations during startup.
	RunMigrationsOnStart bool `env:"RUN_MIGRATIONS_ON_START" envDefault:"true"`
}

// RedisConfig contains Redis configuration for the prediction cache.
type RedisConfig struct {
	Addr     string `env:"ADDR"     envDefault:"localhost:6379"`
	Password string `env:"PASSWORD" envDefault:""`
	DB       int    `env:"DB"       envDefault:"0"`
}

// CacheConfig contains TTLs for the two prediction cache namespaces.
//
// The item TTL is long enough to absorb bursts of repeat requests for the
// same listing without serving a stale verdict for too long. The task TTL is
// shorter because pending statuses flip quickly while callers poll.
type CacheConfig struct {
	PredictionTTL time.Duration `env:"CACHE_PREDICTION_TTL" envDefault:"15m"`
	TaskTTL       time.Duration `env:"CACHE_TASK_TTL"       envDefault:"5m"`
}

// Sanitize applies guardrails to cache configuration values.
func (c *CacheConfig) Sanitize() {
	if c.PredictionTTL <= 0 {
		c.PredictionTTL = 15 * time.Minute
	}
	if c.TaskTTL <= 0 {
		c.TaskTTL = 5 * time.Minute
	}
}
