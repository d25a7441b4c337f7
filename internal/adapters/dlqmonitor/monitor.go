// Package dlqmonitor tails the dead letter topic and surfaces every dead
// message through structured logs for operator follow-up.
package dlqmonitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/adsafe/moderation-api/internal/core"
	"github.com/adsafe/moderation-api/internal/domain/model"
)

// GroupID is the monitor's own consumer group, kept separate from the
// workers so its offsets never interfere with theirs.
const GroupID = "dlq_monitor"

// Options configures a Monitor.
type Options struct {
	Consumer core.QueueConsumer
	Logger   *slog.Logger
}

// Monitor is a read-only consumer of the DLQ topic.
type Monitor struct {
	consumer core.QueueConsumer
	logger   *slog.Logger
}

// New wires a Monitor.
func New(opts Options) (*Monitor, error) {
	if opts.Consumer == nil {
		return nil, errors.New("queue consumer is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Monitor{consumer: opts.Consumer, logger: logger}, nil
}

// Run consumes dead messages until the context is cancelled. Messages are
// only observed, never redriven; each one is committed after logging.
func (m *Monitor) Run(ctx context.Context) error {
	m.logger.InfoContext(ctx, "starting DLQ monitor", "group_id", GroupID)

	for {
		delivery, err := m.consumer.Fetch(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				m.logger.InfoContext(ctx, "DLQ monitor stopping")
				return nil
			}
			return fmt.Errorf("fetch dead message: %w", err)
		}

		m.observe(ctx, delivery)

		if commitErr := m.consumer.Commit(ctx, delivery); commitErr != nil {
			m.logger.ErrorContext(ctx, "commit dead message failed",
				"partition", delivery.Partition, "offset", delivery.Offset, "error", commitErr)
		}
	}
}

func (m *Monitor) observe(ctx context.Context, delivery core.Delivery) {
	dlq, err := model.DecodeDLQMessage(delivery.Value)
	if err != nil {
		// Still worth an operator's attention even when unparseable.
		m.logger.ErrorContext(ctx, "unparseable dead message",
			"partition", delivery.Partition,
			"offset", delivery.Offset,
			"error", err)
		return
	}

	m.logger.ErrorContext(ctx, "dead message",
		"item_id", dlq.OriginalMessage.ItemID,
		"error_type", dlq.ErrorType,
		"error_message", dlq.Error,
		"retry_count", dlq.RetryCount,
		"origin_topic", dlq.Topic,
		"origin_partition", dlq.Partition,
		"origin_offset", dlq.Offset,
		"failed_at", dlq.Timestamp)
}
