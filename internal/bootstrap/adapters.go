package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/adsafe/moderation-api/config"
	"github.com/adsafe/moderation-api/internal/adapters/dlqmonitor"
	"github.com/adsafe/moderation-api/internal/adapters/kafka"
	"github.com/adsafe/moderation-api/internal/adapters/worker"
	"github.com/adsafe/moderation-api/internal/core"
	"github.com/adsafe/moderation-api/internal/data"
)

// ModerationWorkerConfig contains configuration for the moderation worker.
type ModerationWorkerConfig struct {
	DB          *sql.DB
	RedisClient redis.UniversalClient
	Logger      *slog.Logger
	Kafka       config.KafkaConfig
	MaxRetries  int
	RetryDelay  time.Duration
	Classifier  core.Classifier
}

// RunModerationWorker starts the moderation consumer loop. It blocks until
// the context is cancelled or the loop fails.
func RunModerationWorker(ctx context.Context, cfg ModerationWorkerConfig) error {
	consumer := kafka.NewConsumer(kafka.ConsumerOptions{
		Brokers:        cfg.Kafka.BrokerList(),
		Topic:          cfg.Kafka.TopicModeration,
		GroupID:        cfg.Kafka.GroupID,
		SessionTimeout: cfg.Kafka.SessionTimeout,
	})
	defer closeQuietly(consumer, "moderation consumer", cfg.Logger)

	producer := kafka.NewProducer(kafka.ProducerOptions{
		Brokers: cfg.Kafka.BrokerList(),
		Timeout: cfg.Kafka.ProducerTimeout,
	})
	defer closeQuietly(producer, "worker producer", cfg.Logger)

	w, err := worker.New(worker.Options{
		Consumer:        consumer,
		Producer:        producer,
		Ads:             data.NewAdRepo(cfg.DB),
		Results:         data.NewModerationResultRepo(cfg.DB),
		Classifier:      cfg.Classifier,
		Logger:          cfg.Logger,
		MaxRetries:      cfg.MaxRetries,
		RetryDelay:      cfg.RetryDelay,
		ModerationTopic: cfg.Kafka.TopicModeration,
		DLQTopic:        cfg.Kafka.TopicDLQ,
	})
	if err != nil {
		return fmt.Errorf("create moderation worker: %w", err)
	}

	return w.Run(ctx)
}

// DLQMonitorConfig contains configuration for the DLQ monitor.
type DLQMonitorConfig struct {
	Logger *slog.Logger
	Kafka  config.KafkaConfig
}

// RunDLQMonitor starts the dead letter queue monitor.
func RunDLQMonitor(ctx context.Context, cfg DLQMonitorConfig) error {
	consumer := kafka.NewConsumer(kafka.ConsumerOptions{
		Brokers:        cfg.Kafka.BrokerList(),
		Topic:          cfg.Kafka.TopicDLQ,
		GroupID:        dlqmonitor.GroupID,
		SessionTimeout: cfg.Kafka.SessionTimeout,
	})
	defer closeQuietly(consumer, "dlq consumer", cfg.Logger)

	monitor, err := dlqmonitor.New(dlqmonitor.Options{
		Consumer: consumer,
		Logger:   cfg.Logger,
	})
	if err != nil {
		return fmt.Errorf("create dlq monitor: %w", err)
	}

	return monitor.Run(ctx)
}

func closeQuietly(c interface{ Close() error }, name string, logger *slog.Logger) {
	if err := c.Close(); err != nil {
		if logger == nil {
			logger = slog.Default()
		}
		logger.Warn("close "+name, "error", err)
	}
}
