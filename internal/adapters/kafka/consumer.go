package kafka

import (
	"context"
	"fmt"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/adsafe/moderation-api/internal/core"
	apperrors "github.com/adsafe/moderation-api/internal/errors"
)

// Consumer reads messages from a topic as part of a consumer group.
// Offsets are committed explicitly after the processing callback returns;
// a crash before commit redelivers the message to the group.
type Consumer struct {
	reader *kafkago.Reader
}

// ConsumerOptions configures a Consumer.
type ConsumerOptions struct {
	Brokers []string
	Topic   string
	GroupID string
	// SessionTimeout must exceed any in-loop processing delay (the worker
	// retry backoff in particular) so the group does not evict the member.
	SessionTimeout time.Duration
}

// NewConsumer creates a Consumer joined to the given group.
func NewConsumer(opts ConsumerOptions) *Consumer {
	sessionTimeout := opts.SessionTimeout
	if sessionTimeout <= 0 {
		sessionTimeout = 30 * time.Second
	}
	return &Consumer{
		reader: kafkago.NewReader(kafkago.ReaderConfig{
			Brokers:        opts.Brokers,
			Topic:          opts.Topic,
			GroupID:        opts.GroupID,
			StartOffset:    kafkago.FirstOffset,
			SessionTimeout: sessionTimeout,
		}),
	}
}

// Fetch blocks until the next message is available or the context ends.
func (c *Consumer) Fetch(ctx context.Context) (core.Delivery, error) {
	msg, err := c.reader.FetchMessage(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return core.Delivery{}, ctx.Err()
		}
		return core.Delivery{}, apperrors.Wrap(err, apperrors.ErrCodeTransport, "fetch message")
	}
	return core.Delivery{
		Topic:     msg.Topic,
		Partition: msg.Partition,
		Offset:    msg.Offset,
		Key:       msg.Key,
		Value:     msg.Value,
		Time:      msg.Time,
	}, nil
}

// Commit acknowledges a delivery, advancing the group offset past it.
func (c *Consumer) Commit(ctx context.Context, d core.Delivery) error {
	err := c.reader.CommitMessages(ctx, kafkago.Message{
		Topic:     d.Topic,
		Partition: d.Partition,
		Offset:    d.Offset,
	})
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeTransport, "commit offset")
	}
	return nil
}

// Close leaves the consumer group and releases the underlying connections.
func (c *Consumer) Close() error {
	if err := c.reader.Close(); err != nil {
		return fmt.Errorf("close kafka reader: %w", err)
	}
	return nil
}
