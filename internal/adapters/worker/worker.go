// Package worker provides the moderation consumer loop: it dequeues
// moderation requests, scores them with the classifier, and applies the
// retry/DLQ escalation policy.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/adsafe/moderation-api/internal/core"
	"github.com/adsafe/moderation-api/internal/data"
	"github.com/adsafe/moderation-api/internal/domain/model"
)

// Default retry policy. The delay is a fixed backoff rather than an
// exponential one; with a ceiling of three attempts there is nothing to
// gain from growing it.
const (
	DefaultMaxRetries = 3
	DefaultRetryDelay = 5 * time.Second
)

// Options configures a Worker.
type Options struct {
	Consumer   core.QueueConsumer
	Producer   core.QueueProducer
	Ads        core.AdRepository
	Results    core.ModerationResultRepository
	Classifier core.Classifier
	Logger     *slog.Logger

	// MaxRetries is the retry budget for transient failures; defaults to 3.
	MaxRetries int
	// RetryDelay is the fixed backoff before re-enqueueing; defaults to 5s.
	RetryDelay time.Duration

	// ModerationTopic is where retries are re-enqueued; defaults to the
	// moderation topic. DLQTopic receives terminal failures.
	ModerationTopic string
	DLQTopic        string

	// Now overrides the clock in tests.
	Now func() time.Time
}

// Worker is a single sequential consumer loop. Horizontal scaling happens
// by running more worker processes in the same consumer group; the broker
// partitions work across them, so no in-process coordination is needed.
type Worker struct {
	id         string
	consumer   core.QueueConsumer
	producer   core.QueueProducer
	ads        core.AdRepository
	results    core.ModerationResultRepository
	classifier core.Classifier
	logger     *slog.Logger

	maxRetries      int
	retryDelay      time.Duration
	moderationTopic string
	dlqTopic        string
	now             func() time.Time
}

// New wires a Worker from its collaborators.
func New(opts Options) (*Worker, error) {
	if opts.Consumer == nil {
		return nil, errors.New("queue consumer is required")
	}
	if opts.Producer == nil {
		return nil, errors.New("queue producer is required")
	}
	if opts.Ads == nil {
		return nil, errors.New("ad repository is required")
	}
	if opts.Results == nil {
		return nil, errors.New("moderation result repository is required")
	}
	if opts.Classifier == nil {
		return nil, errors.New("classifier is required")
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	maxRetries := opts.MaxRetries
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	retryDelay := opts.RetryDelay
	if retryDelay <= 0 {
		retryDelay = DefaultRetryDelay
	}
	moderationTopic := opts.ModerationTopic
	if moderationTopic == "" {
		moderationTopic = model.TopicModeration
	}
	dlqTopic := opts.DLQTopic
	if dlqTopic == "" {
		dlqTopic = model.TopicModerationDLQ
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	id := uuid.NewString()
	return &Worker{
		id:              id,
		consumer:        opts.Consumer,
		producer:        opts.Producer,
		ads:             opts.Ads,
		results:         opts.Results,
		classifier:      opts.Classifier,
		logger:          logger.With("worker_id", id),
		maxRetries:      maxRetries,
		retryDelay:      retryDelay,
		moderationTopic: moderationTopic,
		dlqTopic:        dlqTopic,
		now:             now,
	}, nil
}

// Run consumes messages until the context is cancelled. An in-flight
// message is always carried through its current step: store updates and
// pending retry/DLQ sends run on a non-cancellable context, so shutdown
// never aborts a half-applied transition.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.InfoContext(ctx, "starting moderation worker",
		"topic", w.moderationTopic,
		"max_retries", w.maxRetries,
		"retry_delay", w.retryDelay)

	for {
		delivery, err := w.consumer.Fetch(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				w.logger.InfoContext(ctx, "worker stopping")
				return nil
			}
			return fmt.Errorf("fetch delivery: %w", err)
		}

		procCtx := context.WithoutCancel(ctx)
		w.processDelivery(procCtx, ctx, delivery)

		// Ack only after the message's fate is settled: completed, failed,
		// rescheduled, or dead-lettered.
		if commitErr := w.consumer.Commit(procCtx, delivery); commitErr != nil {
			w.logger.ErrorContext(procCtx, "commit delivery failed",
				"topic", delivery.Topic, "partition", delivery.Partition,
				"offset", delivery.Offset, "error", commitErr)
		}
	}
}

// processDelivery drives one message through the state machine:
// received -> completed | failed-permanent | failed-exhausted | rescheduled.
// stopCtx is only consulted to cut the retry delay short on shutdown.
func (w *Worker) processDelivery(ctx, stopCtx context.Context, delivery core.Delivery) {
	msg, err := model.DecodeQueueMessage(delivery.Value)
	if err != nil {
		// Not even parseable; retrying cannot fix the payload.
		w.sendToDLQ(ctx, delivery, model.QueueMessage{}, err.Error(), model.DLQErrorPermanent)
		return
	}

	w.logger.InfoContext(ctx, "message received",
		"item_id", msg.ItemID, "retry_count", msg.RetryCount)

	if !msg.HasItemID() {
		errMsg := "message is missing item_id"
		w.markTaskFailed(ctx, msg, errMsg)
		w.sendToDLQ(ctx, delivery, msg, errMsg, model.DLQErrorPermanent)
		return
	}

	ad, err := w.ads.GetByID(ctx, msg.ItemID, true)
	if errors.Is(err, data.ErrAdNotFound) {
		// The ad will never appear on retry.
		errMsg := fmt.Sprintf("ad %d not found", msg.ItemID)
		w.markTaskFailed(ctx, msg, errMsg)
		w.sendToDLQ(ctx, delivery, msg, errMsg, model.DLQErrorPermanent)
		return
	}
	if err != nil {
		w.handleTransient(ctx, stopCtx, delivery, msg, fmt.Errorf("load ad %d: %w", msg.ItemID, err))
		return
	}

	sellerVerified := ad.SellerIsVerified != nil && *ad.SellerIsVerified
	prediction, err := w.classifier.Predict(ctx, core.PredictInput{
		SellerVerified: sellerVerified,
		ImagesQty:      ad.ImagesQty,
		Description:    ad.Description,
		Category:       ad.Category,
	})
	if err != nil {
		w.handleTransient(ctx, stopCtx, delivery, msg, err)
		return
	}

	taskID, ok := w.resolveTaskID(ctx, msg)
	if !ok {
		w.logger.WarnContext(ctx, "no pending task for item, skipping update",
			"item_id", msg.ItemID)
		return
	}

	updated, err := w.results.UpdateCompleted(ctx, taskID, prediction)
	if err != nil {
		w.handleTransient(ctx, stopCtx, delivery, msg, fmt.Errorf("update task %d: %w", taskID, err))
		return
	}
	if !updated {
		// Already resolved by a prior delivery; duplicate deliveries are
		// expected under at-least-once.
		w.logger.InfoContext(ctx, "task already resolved, update skipped",
			"task_id", taskID, "item_id", msg.ItemID)
		return
	}

	w.logger.InfoContext(ctx, "moderation completed",
		"task_id", taskID,
		"item_id", msg.ItemID,
		"is_violation", prediction.IsViolation,
		"probability", prediction.Probability)
}

// handleTransient applies the retry policy to a failure from the
// prediction/update path.
func (w *Worker) handleTransient(ctx, stopCtx context.Context, delivery core.Delivery, msg model.QueueMessage, cause error) {
	w.logger.WarnContext(ctx, "transient failure",
		"item_id", msg.ItemID, "retry_count", msg.RetryCount, "error", cause)

	if msg.RetryCount < w.maxRetries {
		w.scheduleRetry(ctx, stopCtx, delivery, msg, cause)
		return
	}

	errMsg := fmt.Sprintf("max retries reached after %d attempts: %v", msg.RetryCount, cause)
	w.markTaskFailed(ctx, msg, errMsg)
	w.sendToDLQ(ctx, delivery, msg, errMsg, model.DLQErrorMaxRetries)
}

// scheduleRetry waits out the fixed backoff and re-enqueues a replacement
// message with an incremented retry_count onto the origin topic. The delay
// is cut short on shutdown so the pending send still completes before exit.
// If re-enqueueing itself fails the retry machinery is broken and the
// original message goes straight to the DLQ instead of looping.
func (w *Worker) scheduleRetry(ctx, stopCtx context.Context, delivery core.Delivery, msg model.QueueMessage, cause error) {
	retry := msg.NextRetry(cause.Error())

	w.logger.InfoContext(ctx, "scheduling retry",
		"item_id", msg.ItemID,
		"attempt", retry.RetryCount,
		"max_retries", w.maxRetries,
		"delay", w.retryDelay)

	select {
	case <-time.After(w.retryDelay):
	case <-stopCtx.Done():
	}

	payload, err := json.Marshal(retry)
	if err != nil {
		w.sendToDLQ(ctx, delivery, msg, fmt.Sprintf("encode retry message: %v", err), model.DLQErrorPermanent)
		return
	}

	if publishErr := w.producer.Publish(ctx, w.moderationTopic, delivery.Key, payload); publishErr != nil {
		w.sendToDLQ(ctx, delivery, msg,
			fmt.Sprintf("retry re-enqueue failed: %v", publishErr), model.DLQErrorPermanent)
		return
	}

	w.logger.InfoContext(ctx, "message rescheduled",
		"item_id", msg.ItemID, "retry_count", retry.RetryCount)
}

// markTaskFailed records the terminal failure on the task row when one is
// resolvable from the message.
func (w *Worker) markTaskFailed(ctx context.Context, msg model.QueueMessage, errMsg string) {
	taskID, ok := w.resolveTaskID(ctx, msg)
	if !ok {
		w.logger.WarnContext(ctx, "no pending task to mark failed", "item_id", msg.ItemID)
		return
	}

	updated, err := w.results.UpdateFailed(ctx, taskID, errMsg)
	if err != nil {
		w.logger.ErrorContext(ctx, "mark task failed",
			"task_id", taskID, "item_id", msg.ItemID, "error", err)
		return
	}
	if !updated {
		w.logger.InfoContext(ctx, "task already resolved, failure not recorded",
			"task_id", taskID, "item_id", msg.ItemID)
		return
	}
	w.logger.InfoContext(ctx, "task marked failed",
		"task_id", taskID, "item_id", msg.ItemID, "error_message", errMsg)
}

// resolveTaskID prefers the task id carried in the message and falls back
// to the newest pending task for the item; minimal-flow messages omit
// task_id.
func (w *Worker) resolveTaskID(ctx context.Context, msg model.QueueMessage) (int64, bool) {
	if msg.TaskID != nil {
		return *msg.TaskID, true
	}
	if !msg.HasItemID() {
		return 0, false
	}

	ids, err := w.results.GetTaskIDsByItemID(ctx, msg.ItemID)
	if err != nil {
		w.logger.ErrorContext(ctx, "list tasks for item", "item_id", msg.ItemID, "error", err)
		return 0, false
	}
	for i := len(ids) - 1; i >= 0; i-- {
		task, getErr := w.results.GetByID(ctx, ids[i])
		if getErr != nil {
			continue
		}
		if task.Status == model.ModerationStatusPending {
			return task.ID, true
		}
	}
	return 0, false
}

// sendToDLQ writes the message's terminal record. A failure here is logged
// and nothing more; the DLQ write is the last line of defense.
func (w *Worker) sendToDLQ(ctx context.Context, delivery core.Delivery, msg model.QueueMessage, errMsg, errType string) {
	dlq := model.DLQMessage{
		OriginalMessage: msg,
		Error:           errMsg,
		ErrorType:       errType,
		Timestamp:       w.now().UTC(),
		RetryCount:      msg.RetryCount,
		Topic:           delivery.Topic,
		Partition:       delivery.Partition,
		Offset:          delivery.Offset,
	}

	payload, err := json.Marshal(dlq)
	if err != nil {
		w.logger.ErrorContext(ctx, "encode DLQ message", "item_id", msg.ItemID, "error", err)
		return
	}

	if publishErr := w.producer.Publish(ctx, w.dlqTopic, delivery.Key, payload); publishErr != nil {
		w.logger.ErrorContext(ctx, "DLQ publish failed",
			"item_id", msg.ItemID, "error_type", errType, "error", publishErr)
		return
	}

	w.logger.WarnContext(ctx, "message routed to DLQ",
		"item_id", msg.ItemID,
		"error_type", errType,
		"retry_count", msg.RetryCount,
		"error_message", errMsg)
}
