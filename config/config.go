// Package config defines environment-driven configuration for the moderation
// service, loaded with github.com/caarlos0/env.
package config

import (
	"os"
	"strings"
)

// AppConfig is the main application configuration struct that composes
// domain-specific configuration from separate files:
//   - database.go: PostgreSQL and Redis configuration
//   - kafka.go: queue transport configuration
//   - worker.go: moderation worker configuration
//   - ml.go: classifier configuration
type AppConfig struct {
	// IsDev controls development mode behavior.
	IsDev bool `env:"DEV" envDefault:"false"`

	// Database configuration
	Postgres DBConfig    `envPrefix:"DB_"`
	Redis    RedisConfig `envPrefix:"REDIS_"`
	Cache    CacheConfig

	// Queue transport configuration
	Kafka KafkaConfig `envPrefix:"KAFKA_"`

	// Moderation worker configuration
	Worker WorkerConfig `envPrefix:"WORKER_"`

	// Classifier configuration
	ML MLConfig `envPrefix:"ML_"`

	// Service mode configuration, comma separated (worker, dlq-monitor)
	Services string `env:"SERVICES" envDefault:"worker"`
}

// Sanitize applies guardrails to configuration values loaded from env.
// This should be called after loading configuration from environment variables.
func (c *AppConfig) Sanitize() {
	c.Cache.Sanitize()
	c.Kafka.Sanitize()
	c.Worker.Sanitize()
	c.detectDevMode()
}

// detectDevMode checks APP_ENV as a fallback for the DEV flag.
func (c *AppConfig) detectDevMode() {
	if !c.IsDev {
		appEnv := strings.ToLower(os.Getenv("APP_ENV"))
		c.IsDev = appEnv == "development" || appEnv == "dev"
	}
}

// GetEnabledServices returns the enabled services based on the Services field.
func (c *AppConfig) GetEnabledServices() (map[ServiceMode]bool, error) {
	return ParseServices(c.Services)
}

// IsWorkerEnabled returns true if the moderation worker service is enabled.
func (c *AppConfig) IsWorkerEnabled() bool {
	services, err := c.GetEnabledServices()
	if err != nil {
		return false
	}
	return services[ServiceModeWorker]
}

// IsDLQMonitorEnabled returns true if the DLQ monitor service is enabled.
func (c *AppConfig) IsDLQMonitorEnabled() bool {
	services, err := c.GetEnabledServices()
	if err != nil {
		return false
	}
	return services[ServiceModeDLQMonitor]
}
