// Package service contains the business logic of the moderation system:
// the synchronous prediction path, the asynchronous submission/polling
// path, and the prediction cache in front of both.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/adsafe/moderation-api/internal/core"
	"github.com/adsafe/moderation-api/internal/domain/model"
)

// Cache key namespaces. Predictions are keyed by item, async results by task.
const (
	itemKeyPrefix = "prediction:item"
	taskKeyPrefix = "prediction:task"
)

// Default TTLs. The item TTL absorbs bursts of repeat requests for one
// listing; the task TTL is shorter because polled statuses flip quickly.
const (
	DefaultPredictionTTL = 15 * time.Minute
	DefaultTaskTTL       = 5 * time.Minute
)

// PredictionCache is a read-through cache for classifier verdicts and async
// moderation results. It is strictly an optimization: every failure of the
// underlying store degrades to a miss or a no-op, never to an error, so an
// unreachable cache can never block a decision.
type PredictionCache struct {
	cache         core.CacheRepository
	logger        *slog.Logger
	predictionTTL time.Duration
	taskTTL       time.Duration
}

// PredictionCacheOptions bundles dependencies for NewPredictionCache.
type PredictionCacheOptions struct {
	Cache  core.CacheRepository
	Logger *slog.Logger
	// PredictionTTL overrides DefaultPredictionTTL when positive.
	PredictionTTL time.Duration
	// TaskTTL overrides DefaultTaskTTL when positive.
	TaskTTL time.Duration
}

// NewPredictionCache creates a PredictionCache.
func NewPredictionCache(opts PredictionCacheOptions) *PredictionCache {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	predictionTTL := opts.PredictionTTL
	if predictionTTL <= 0 {
		predictionTTL = DefaultPredictionTTL
	}
	taskTTL := opts.TaskTTL
	if taskTTL <= 0 {
		taskTTL = DefaultTaskTTL
	}
	return &PredictionCache{
		cache:         opts.Cache,
		logger:        logger,
		predictionTTL: predictionTTL,
		taskTTL:       taskTTL,
	}
}

func itemKey(itemID int64) string {
	return fmt.Sprintf("%s:%d", itemKeyPrefix, itemID)
}

func taskKey(taskID int64) string {
	return fmt.Sprintf("%s:%d", taskKeyPrefix, taskID)
}

// GetPrediction returns the cached verdict for an item, or nil on miss.
func (c *PredictionCache) GetPrediction(ctx context.Context, itemID int64) *model.Prediction {
	raw, err := c.cache.Get(ctx, itemKey(itemID))
	if err != nil {
		c.logger.WarnContext(ctx, "prediction cache read failed", "item_id", itemID, "error", err)
		return nil
	}
	if raw == nil {
		return nil
	}
	var p model.Prediction
	if unmarshalErr := json.Unmarshal(raw, &p); unmarshalErr != nil {
		c.logger.WarnContext(ctx, "prediction cache entry malformed", "item_id", itemID, "error", unmarshalErr)
		return nil
	}
	return &p
}

// SetPrediction stores an item verdict with the prediction TTL.
func (c *PredictionCache) SetPrediction(ctx context.Context, itemID int64, p model.Prediction) {
	raw, err := json.Marshal(p)
	if err != nil {
		c.logger.WarnContext(ctx, "prediction cache encode failed", "item_id", itemID, "error", err)
		return
	}
	if setErr := c.cache.Set(ctx, itemKey(itemID), raw, c.predictionTTL); setErr != nil {
		c.logger.WarnContext(ctx, "prediction cache write failed", "item_id", itemID, "error", setErr)
	}
}

// DeletePrediction invalidates the item namespace entry. Used on ad closure,
// where waiting out the TTL would serve stale data past deletion.
func (c *PredictionCache) DeletePrediction(ctx context.Context, itemID int64) {
	if _, err := c.cache.Delete(ctx, itemKey(itemID)); err != nil {
		c.logger.WarnContext(ctx, "prediction cache delete failed", "item_id", itemID, "error", err)
	}
}

// GetModerationResult returns the cached polling view of a task, or nil on miss.
func (c *PredictionCache) GetModerationResult(ctx context.Context, taskID int64) *model.ModerationResultResponse {
	raw, err := c.cache.Get(ctx, taskKey(taskID))
	if err != nil {
		c.logger.WarnContext(ctx, "task cache read failed", "task_id", taskID, "error", err)
		return nil
	}
	if raw == nil {
		return nil
	}
	var resp model.ModerationResultResponse
	if unmarshalErr := json.Unmarshal(raw, &resp); unmarshalErr != nil {
		c.logger.WarnContext(ctx, "task cache entry malformed", "task_id", taskID, "error", unmarshalErr)
		return nil
	}
	return &resp
}

// SetModerationResult stores the polling view of a task with the task TTL.
func (c *PredictionCache) SetModerationResult(ctx context.Context, resp model.ModerationResultResponse) {
	raw, err := json.Marshal(resp)
	if err != nil {
		c.logger.WarnContext(ctx, "task cache encode failed", "task_id", resp.TaskID, "error", err)
		return
	}
	if setErr := c.cache.Set(ctx, taskKey(resp.TaskID), raw, c.taskTTL); setErr != nil {
		c.logger.WarnContext(ctx, "task cache write failed", "task_id", resp.TaskID, "error", setErr)
	}
}

// DeleteModerationResult invalidates the task namespace entry.
func (c *PredictionCache) DeleteModerationResult(ctx context.Context, taskID int64) {
	if _, err := c.cache.Delete(ctx, taskKey(taskID)); err != nil {
		c.logger.WarnContext(ctx, "task cache delete failed", "task_id", taskID, "error", err)
	}
}
