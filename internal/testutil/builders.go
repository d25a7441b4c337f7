package testutil

import (
	"time"

	"github.com/adsafe/moderation-api/internal/domain/model"
)

// AdRequestBuilder provides a fluent interface for building AdRequest
// payloads for testing.
type AdRequestBuilder struct {
	req *model.AdRequest
}

// NewAdRequest creates a new AdRequestBuilder with sensible defaults.
func NewAdRequest() *AdRequestBuilder {
	return &AdRequestBuilder{
		req: &model.AdRequest{
			SellerID:         1,
			IsVerifiedSeller: true,
			ItemID:           1,
			Name:             "Mountain bike",
			Description:      "Lightly used mountain bike, 21 gears, disc brakes.",
			Category:         10,
			ImagesQty:        4,
		},
	}
}

// WithSeller sets the seller id and verification flag.
func (b *AdRequestBuilder) WithSeller(sellerID int64, verified bool) *AdRequestBuilder {
	b.req.SellerID = sellerID
	b.req.IsVerifiedSeller = verified
	return b
}

// WithItemID sets the item id.
func (b *AdRequestBuilder) WithItemID(itemID int64) *AdRequestBuilder {
	b.req.ItemID = itemID
	return b
}

// WithName sets the ad name.
func (b *AdRequestBuilder) WithName(name string) *AdRequestBuilder {
	b.req.Name = name
	return b
}

// WithDescription sets the ad description.
func (b *AdRequestBuilder) WithDescription(description string) *AdRequestBuilder {
	b.req.Description = description
	return b
}

// WithCategory sets the ad category.
func (b *AdRequestBuilder) WithCategory(category int) *AdRequestBuilder {
	b.req.Category = category
	return b
}

// WithImagesQty sets the image count.
func (b *AdRequestBuilder) WithImagesQty(qty int) *AdRequestBuilder {
	b.req.ImagesQty = qty
	return b
}

// Build returns the built AdRequest.
func (b *AdRequestBuilder) Build() model.AdRequest {
	return *b.req
}

// AdBuilder provides a fluent interface for building Ad rows for testing.
type AdBuilder struct {
	ad *model.Ad
}

// NewAd creates a new AdBuilder with sensible defaults.
func NewAd() *AdBuilder {
	verified := true
	return &AdBuilder{
		ad: &model.Ad{
			ID:               1,
			SellerID:         1,
			Name:             "Mountain bike",
			Description:      "Lightly used mountain bike, 21 gears, disc brakes.",
			Category:         10,
			ImagesQty:        4,
			CreatedAt:        TestTime(),
			SellerIsVerified: &verified,
		},
	}
}

// WithID sets the ad id.
func (b *AdBuilder) WithID(id int64) *AdBuilder {
	b.ad.ID = id
	return b
}

// WithSellerID sets the seller id.
func (b *AdBuilder) WithSellerID(sellerID int64) *AdBuilder {
	b.ad.SellerID = sellerID
	return b
}

// WithDescription sets the description.
func (b *AdBuilder) WithDescription(description string) *AdBuilder {
	b.ad.Description = description
	return b
}

// WithCategory sets the category.
func (b *AdBuilder) WithCategory(category int) *AdBuilder {
	b.ad.Category = category
	return b
}

// WithImagesQty sets the image count.
func (b *AdBuilder) WithImagesQty(qty int) *AdBuilder {
	b.ad.ImagesQty = qty
	return b
}

// WithSellerVerified sets the joined seller verification flag.
func (b *AdBuilder) WithSellerVerified(verified bool) *AdBuilder {
	b.ad.SellerIsVerified = &verified
	return b
}

// WithoutSeller clears the joined seller fields.
func (b *AdBuilder) WithoutSeller() *AdBuilder {
	b.ad.SellerIsVerified = nil
	return b
}

// Build returns the built Ad.
func (b *AdBuilder) Build() *model.Ad {
	ad := *b.ad
	return &ad
}

// TaskBuilder provides a fluent interface for building ModerationTask rows
// for testing.
type TaskBuilder struct {
	task *model.ModerationTask
}

// NewTask creates a new TaskBuilder with a pending task.
func NewTask() *TaskBuilder {
	return &TaskBuilder{
		task: &model.ModerationTask{
			ID:        1,
			ItemID:    1,
			Status:    model.ModerationStatusPending,
			CreatedAt: TestTime(),
		},
	}
}

// WithID sets the task id.
func (b *TaskBuilder) WithID(id int64) *TaskBuilder {
	b.task.ID = id
	return b
}

// WithItemID sets the item id.
func (b *TaskBuilder) WithItemID(itemID int64) *TaskBuilder {
	b.task.ItemID = itemID
	return b
}

// Completed marks the task completed with the given verdict.
func (b *TaskBuilder) Completed(isViolation bool, probability float64, at time.Time) *TaskBuilder {
	b.task.Status = model.ModerationStatusCompleted
	b.task.IsViolation = &isViolation
	b.task.Probability = &probability
	b.task.ProcessedAt = &at
	return b
}

// Failed marks the task failed with the given message.
func (b *TaskBuilder) Failed(errMsg string, at time.Time) *TaskBuilder {
	b.task.Status = model.ModerationStatusFailed
	b.task.ErrorMessage = &errMsg
	b.task.ProcessedAt = &at
	return b
}

// Build returns the built ModerationTask.
func (b *TaskBuilder) Build() *model.ModerationTask {
	task := *b.task
	return &task
}
