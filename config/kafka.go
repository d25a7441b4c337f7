package config

import (
	"strings"
	"time"
)

// KafkaConfig contains queue transport configuration.
type KafkaConfig struct {
	// Brokers is a comma separated list of bootstrap servers.
	Brokers string `env:"BROKERS" envDefault:"localhost:9092"`

	// TopicModeration is the work topic; retries are re-enqueued onto it.
	TopicModeration string `env:"TOPIC_MODERATION" envDefault:"moderation"`

	// TopicDLQ holds terminal failures for human inspection.
	TopicDLQ string `env:"TOPIC_DLQ" envDefault:"moderation_dlq"`

	// GroupID is the consumer group shared by all worker processes.
	GroupID string `env:"CONSUMER_GROUP_ID" envDefault:"moderation_workers"`

	// ProducerTimeout bounds a single blocking publish.
	ProducerTimeout time.Duration `env:"PRODUCER_TIMEOUT" envDefault:"10s"`

	// SessionTimeout is the consumer group session timeout. It must exceed
	// the worker retry delay so an in-loop backoff cannot get the consumer
	// evicted from the group.
	SessionTimeout time.Duration `env:"SESSION_TIMEOUT" envDefault:"30s"`
}

// BrokerList splits the Brokers field into individual addresses.
func (c *KafkaConfig) BrokerList() []string {
	parts := strings.Split(c.Brokers, ",")
	brokers := make([]string, 0, len(parts))
	for _, p := range parts {
		if b := strings.TrimSpace(p); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

// Sanitize applies guardrails to kafka configuration values.
func (c *KafkaConfig) Sanitize() {
	if c.ProducerTimeout <= 0 {
		c.ProducerTimeout = 10 * time.Second
	}
	if c.SessionTimeout <= 0 {
		c.SessionTimeout = 30 * time.Second
	}
	if c.TopicModeration == "" {
		c.TopicModeration = "moderation"
	}
	if c.TopicDLQ == "" {
		c.TopicDLQ = "moderation_dlq"
	}
}
