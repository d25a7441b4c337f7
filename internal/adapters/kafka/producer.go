// Package kafka provides the queue transport adapters for the moderation
// pipeline, implementing the core producer/consumer ports on top of
// segmentio/kafka-go.
package kafka

import (
	"context"
	"fmt"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	apperrors "github.com/adsafe/moderation-api/internal/errors"
)

// Producer publishes messages with at-least-once semantics. Publish blocks
// until all in-sync replicas acknowledge the write, so a successful return
// means the message is durably queued.
type Producer struct {
	writer *kafkago.Writer
}

// ProducerOptions configures a Producer.
type ProducerOptions struct {
	Brokers []string
	// Timeout bounds a single blocking publish; defaults to 10s.
	Timeout time.Duration
}

// NewProducer creates a Producer for the given brokers. Messages are
// partitioned by key, so messages keyed by item id keep per-item ordering
// within a partition.
func NewProducer(opts ProducerOptions) *Producer {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Producer{
		writer: &kafkago.Writer{
			Addr:                   kafkago.TCP(opts.Brokers...),
			Balancer:               &kafkago.Hash{},
			RequiredAcks:           kafkago.RequireAll,
			WriteTimeout:           timeout,
			AllowAutoTopicCreation: true,
		},
	}
}

// Publish sends one message to the named topic and waits for the broker
// acknowledgement.
func (p *Producer) Publish(ctx context.Context, topic string, key, value []byte) error {
	err := p.writer.WriteMessages(ctx, kafkago.Message{
		Topic: topic,
		Key:   key,
		Value: value,
	})
	if err != nil {
		return apperrors.Wrapf(err, apperrors.ErrCodeTransport, "publish to topic %s", topic)
	}
	return nil
}

// Close flushes pending writes and releases the underlying connections.
func (p *Producer) Close() error {
	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("close kafka writer: %w", err)
	}
	return nil
}
