// Package core defines the ports between the moderation services and their
// collaborators (storage, cache, queue transport, classifier).
package core

import (
	"context"
	"time"

	"github.com/adsafe/moderation-api/internal/domain/model"
)

// This file contains the interface definitions (ports in hexagonal
// architecture). Service implementations depend on these interfaces, not on
// concrete adapters, so every collaborator can be substituted in tests.

// CreateAdParams groups parameters for AdRepository.Create.
type CreateAdParams struct {
	SellerID    int64
	Name        string
	Description string
	Category    int
	ImagesQty   int
}

// AdRepository defines the interface for ad data operations.
type AdRepository interface {
	// GetByID returns the ad, optionally with its seller joined in
	// (populating SellerIsVerified). Returns data.ErrAdNotFound when absent.
	GetByID(ctx context.Context, id int64, includeSeller bool) (*model.Ad, error)
	Create(ctx context.Context, params CreateAdParams) (*model.Ad, error)
	GetBySeller(ctx context.Context, sellerID int64, limit, offset int) ([]*model.Ad, error)
	// Delete removes the ad row. Returns false when no row existed.
	Delete(ctx context.Context, id int64) (bool, error)
}

// SellerRepository defines the interface for seller data operations.
type SellerRepository interface {
	GetByID(ctx context.Context, id int64) (*model.Seller, error)
	Create(ctx context.Context, name string, isVerified bool) (*model.Seller, error)
}

// ModerationResultRepository is the source of truth for task status.
// All mutation methods are idempotent with respect to redelivery: the
// terminal updates are conditional on the row still being pending, so a
// second application is a no-op.
type ModerationResultRepository interface {
	// Create inserts a new task row; the store allocates the task id.
	Create(ctx context.Context, itemID int64, status model.ModerationStatus) (*model.ModerationTask, error)
	// GetByID returns the task or data.ErrTaskNotFound.
	GetByID(ctx context.Context, taskID int64) (*model.ModerationTask, error)
	// UpdateCompleted records a verdict, only if the row is still pending.
	// Returns whether a row was updated.
	UpdateCompleted(ctx context.Context, taskID int64, prediction model.Prediction) (bool, error)
	// UpdateFailed records a failure, only if the row is still pending.
	UpdateFailed(ctx context.Context, taskID int64, errorMessage string) (bool, error)
	// GetTaskIDsByItemID lists task ids belonging to an ad, oldest first.
	GetTaskIDsByItemID(ctx context.Context, itemID int64) ([]int64, error)
	// DeleteByItemID removes all tasks for an ad and returns the count.
	DeleteByItemID(ctx context.Context, itemID int64) (int64, error)
}

// CacheRepository defines the interface for raw caching operations.
type CacheRepository interface {
	// Set stores a value with the given key and TTL.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Get retrieves a value by key. Returns nil if the key doesn't exist
	// or has expired.
	Get(ctx context.Context, key string) ([]byte, error)

	// Delete removes a key. Returns true if the key was deleted, false if
	// it didn't exist.
	Delete(ctx context.Context, key string) (bool, error)

	// Health checks the health of the cache connection.
	Health(ctx context.Context) error
}

// Classifier scores an ad for policy violations. It fails with a
// model_unavailable error when no model is loaded.
type Classifier interface {
	Predict(ctx context.Context, input PredictInput) (model.Prediction, error)
}

// PredictInput groups the classifier features.
type PredictInput struct {
	SellerVerified bool
	ImagesQty      int
	Description    string
	Category       int
}

// QueueProducer publishes messages to a named topic with at-least-once
// semantics. Publish blocks until the broker acknowledges receipt, so a
// successful return means "durably queued".
type QueueProducer interface {
	Publish(ctx context.Context, topic string, key, value []byte) error
}

// Delivery is one consumed message together with its broker coordinates.
type Delivery struct {
	Topic     string
	Partition int
	Offset    int64
	Key       []byte
	Value     []byte
	Time      time.Time
}

// QueueConsumer produces an unbounded, group-offset-restartable sequence of
// deliveries. A delivery must be committed only after its processing
// callback returns; redelivery after a crash before commit is the accepted
// at-least-once failure mode.
type QueueConsumer interface {
	Fetch(ctx context.Context) (Delivery, error)
	Commit(ctx context.Context, d Delivery) error
}
