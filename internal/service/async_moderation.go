package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/adsafe/moderation-api/internal/core"
	"github.com/adsafe/moderation-api/internal/data"
	"github.com/adsafe/moderation-api/internal/domain/model"
	apperrors "github.com/adsafe/moderation-api/internal/errors"
)

// AsyncModerationService is the producer side of the moderation pipeline:
// it creates tasks, enqueues work, and serves polling lookups.
type AsyncModerationService struct {
	ads      core.AdRepository
	results  core.ModerationResultRepository
	producer core.QueueProducer
	cache    *PredictionCache
	topic    string
	logger   *slog.Logger
	now      func() time.Time
}

// AsyncModerationServiceOptions bundles dependencies for NewAsyncModerationService.
type AsyncModerationServiceOptions struct {
	Ads      core.AdRepository
	Results  core.ModerationResultRepository
	Producer core.QueueProducer
	Cache    *PredictionCache
	// Topic defaults to model.TopicModeration.
	Topic  string
	Logger *slog.Logger
	// Now overrides the clock in tests.
	Now func() time.Time
}

// NewAsyncModerationService creates an AsyncModerationService.
func NewAsyncModerationService(opts AsyncModerationServiceOptions) (*AsyncModerationService, error) {
	if opts.Ads == nil {
		return nil, errors.New("ad repository is required")
	}
	if opts.Results == nil {
		return nil, errors.New("moderation result repository is required")
	}
	if opts.Producer == nil {
		return nil, errors.New("queue producer is required")
	}
	if opts.Cache == nil {
		return nil, errors.New("prediction cache is required")
	}
	topic := opts.Topic
	if topic == "" {
		topic = model.TopicModeration
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &AsyncModerationService{
		ads:      opts.Ads,
		results:  opts.Results,
		producer: opts.Producer,
		cache:    opts.Cache,
		topic:    topic,
		logger:   logger,
		now:      now,
	}, nil
}

// SubmitModerationRequest verifies the ad exists, creates a pending task,
// and enqueues a moderation message keyed by item id. When the enqueue
// fails the freshly created task is marked failed with the transport error
// before the failure is propagated, so no task is left silently pending.
// Returns the task id for polling.
func (s *AsyncModerationService) SubmitModerationRequest(ctx context.Context, itemID int64) (int64, error) {
	if _, err := s.ads.GetByID(ctx, itemID, false); err != nil {
		if errors.Is(err, data.ErrAdNotFound) {
			return 0, apperrors.NotFoundf("ad %d not found", itemID)
		}
		return 0, err
	}

	task, err := s.results.Create(ctx, itemID, model.ModerationStatusPending)
	if err != nil {
		return 0, fmt.Errorf("create moderation task: %w", err)
	}

	msg := model.NewQueueMessage(itemID, task.ID, s.now())
	payload, err := json.Marshal(msg)
	if err != nil {
		return 0, fmt.Errorf("encode queue message: %w", err)
	}

	if publishErr := s.producer.Publish(ctx, s.topic, itemPartitionKey(itemID), payload); publishErr != nil {
		// The task row stays behind in failed state as an audit record of
		// the attempt.
		if _, failErr := s.results.UpdateFailed(ctx, task.ID, fmt.Sprintf("enqueue failed: %v", publishErr)); failErr != nil {
			s.logger.ErrorContext(ctx, "mark task failed after enqueue error",
				"task_id", task.ID, "error", failErr, "enqueue_error", publishErr)
		}
		return 0, publishErr
	}

	s.logger.InfoContext(ctx, "moderation request submitted",
		"task_id", task.ID, "item_id", itemID)
	return task.ID, nil
}

// GetModerationResult returns the polling view of a task, read-through the
// task cache. The worker never refreshes this cache on completion; it is
// populated lazily here, bounding staleness by the task TTL.
func (s *AsyncModerationService) GetModerationResult(ctx context.Context, taskID int64) (model.ModerationResultResponse, error) {
	if cached := s.cache.GetModerationResult(ctx, taskID); cached != nil {
		return *cached, nil
	}

	task, err := s.results.GetByID(ctx, taskID)
	if errors.Is(err, data.ErrTaskNotFound) {
		return model.ModerationResultResponse{}, apperrors.NotFoundf("moderation task %d not found", taskID)
	}
	if err != nil {
		return model.ModerationResultResponse{}, err
	}

	resp := model.ResultResponseFromTask(task)
	s.cache.SetModerationResult(ctx, resp)
	return resp, nil
}

// itemPartitionKey keys queue messages by item id so retries of one item
// land on the same partition as earlier attempts.
func itemPartitionKey(itemID int64) []byte {
	return []byte(strconv.FormatInt(itemID, 10))
}
