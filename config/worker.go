package config

import "time"

// WorkerConfig contains moderation worker configuration.
type WorkerConfig struct {
	// MaxRetries is the retry budget for transient failures. A message whose
	// retry_count reaches this value is routed to the DLQ instead of being
	// rescheduled.
	MaxRetries int `env:"MAX_RETRIES" envDefault:"3"`

	// RetryDelay is the fixed backoff before a rescheduled attempt is
	// re-enqueued. Fixed rather than exponential: the retry ceiling is low.
	RetryDelay time.Duration `env:"RETRY_DELAY" envDefault:"5s"`
}

// Sanitize applies guardrails to worker configuration values.
func (c *WorkerConfig) Sanitize() {
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.RetryDelay < 0 {
		c.RetryDelay = 0
	}
}
