package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/adsafe/moderation-api/internal/core"
	"github.com/adsafe/moderation-api/internal/data"
	"github.com/adsafe/moderation-api/internal/domain/model"
)

// fakeCache is an in-memory core.CacheRepository with switchable failures.
type fakeCache struct {
	mu      sync.Mutex
	entries map[string][]byte
	ttls    map[string]time.Duration
	failAll bool
}

func newFakeCache() *fakeCache {
	return &fakeCache{
		entries: make(map[string][]byte),
		ttls:    make(map[string]time.Duration),
	}
}

var errCacheDown = errors.New("cache unavailable")

func (c *fakeCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failAll {
		return errCacheDown
	}
	c.entries[key] = value
	c.ttls[key] = ttl
	return nil
}

func (c *fakeCache) Get(_ context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failAll {
		return nil, errCacheDown
	}
	return c.entries[key], nil
}

func (c *fakeCache) Delete(_ context.Context, key string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failAll {
		return false, errCacheDown
	}
	_, ok := c.entries[key]
	delete(c.entries, key)
	delete(c.ttls, key)
	return ok, nil
}

func (c *fakeCache) Health(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failAll {
		return errCacheDown
	}
	return nil
}

func (c *fakeCache) setDown(down bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failAll = down
}

func (c *fakeCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// fakeAdRepo is an in-memory core.AdRepository.
type fakeAdRepo struct {
	mu     sync.Mutex
	ads    map[int64]*model.Ad
	getErr error
	nextID int64
}

func newFakeAdRepo(ads ...*model.Ad) *fakeAdRepo {
	r := &fakeAdRepo{ads: make(map[int64]*model.Ad), nextID: 1}
	for _, ad := range ads {
		r.ads[ad.ID] = ad
		if ad.ID >= r.nextID {
			r.nextID = ad.ID + 1
		}
	}
	return r
}

func (r *fakeAdRepo) GetByID(_ context.Context, id int64, includeSeller bool) (*model.Ad, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.getErr != nil {
		return nil, r.getErr
	}
	ad, ok := r.ads[id]
	if !ok {
		return nil, data.ErrAdNotFound
	}
	copied := *ad
	if !includeSeller {
		copied.SellerIsVerified = nil
	}
	return &copied, nil
}

func (r *fakeAdRepo) Create(_ context.Context, params core.CreateAdParams) (*model.Ad, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ad := &model.Ad{
		ID:          r.nextID,
		SellerID:    params.SellerID,
		Name:        params.Name,
		Description: params.Description,
		Category:    params.Category,
		ImagesQty:   params.ImagesQty,
		CreatedAt:   time.Now(),
	}
	r.nextID++
	r.ads[ad.ID] = ad
	return ad, nil
}

func (r *fakeAdRepo) GetBySeller(_ context.Context, sellerID int64, _, _ int) ([]*model.Ad, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Ad
	for _, ad := range r.ads {
		if ad.SellerID == sellerID {
			copied := *ad
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (r *fakeAdRepo) Delete(_ context.Context, id int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.ads[id]
	delete(r.ads, id)
	return ok, nil
}

// fakeResultRepo is an in-memory core.ModerationResultRepository honoring
// the pending-only guard on terminal updates.
type fakeResultRepo struct {
	mu        sync.Mutex
	tasks     map[int64]*model.ModerationTask
	nextID    int64
	createErr error
	getErr    error
	updateErr error
}

func newFakeResultRepo() *fakeResultRepo {
	return &fakeResultRepo{tasks: make(map[int64]*model.ModerationTask), nextID: 1}
}

func (r *fakeResultRepo) Create(_ context.Context, itemID int64, status model.ModerationStatus) (*model.ModerationTask, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return nil, r.createErr
	}
	task := &model.ModerationTask{
		ID:        r.nextID,
		ItemID:    itemID,
		Status:    status,
		CreatedAt: time.Now(),
	}
	r.nextID++
	r.tasks[task.ID] = task
	copied := *task
	return &copied, nil
}

func (r *fakeResultRepo) GetByID(_ context.Context, taskID int64) (*model.ModerationTask, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.getErr != nil {
		return nil, r.getErr
	}
	task, ok := r.tasks[taskID]
	if !ok {
		return nil, data.ErrTaskNotFound
	}
	copied := *task
	return &copied, nil
}

func (r *fakeResultRepo) UpdateCompleted(_ context.Context, taskID int64, prediction model.Prediction) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.updateErr != nil {
		return false, r.updateErr
	}
	task, ok := r.tasks[taskID]
	if !ok || task.Status != model.ModerationStatusPending {
		return false, nil
	}
	now := time.Now()
	task.Status = model.ModerationStatusCompleted
	task.IsViolation = &prediction.IsViolation
	task.Probability = &prediction.Probability
	task.ProcessedAt = &now
	return true, nil
}

func (r *fakeResultRepo) UpdateFailed(_ context.Context, taskID int64, errorMessage string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.updateErr != nil {
		return false, r.updateErr
	}
	task, ok := r.tasks[taskID]
	if !ok || task.Status != model.ModerationStatusPending {
		return false, nil
	}
	now := time.Now()
	task.Status = model.ModerationStatusFailed
	task.ErrorMessage = &errorMessage
	task.ProcessedAt = &now
	return true, nil
}

func (r *fakeResultRepo) GetTaskIDsByItemID(_ context.Context, itemID int64) ([]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ids []int64
	for id := int64(1); id < r.nextID; id++ {
		if task, ok := r.tasks[id]; ok && task.ItemID == itemID {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (r *fakeResultRepo) DeleteByItemID(_ context.Context, itemID int64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var deleted int64
	for id, task := range r.tasks {
		if task.ItemID == itemID {
			delete(r.tasks, id)
			deleted++
		}
	}
	return deleted, nil
}

// fakeClassifier is a scripted core.Classifier.
type fakeClassifier struct {
	prediction model.Prediction
	err        error
	calls      int
	lastInput  core.PredictInput
}

func (c *fakeClassifier) Predict(_ context.Context, input core.PredictInput) (model.Prediction, error) {
	c.calls++
	c.lastInput = input
	if c.err != nil {
		return model.Prediction{}, c.err
	}
	return c.prediction, nil
}

// publishedMessage records one fakeProducer publish.
type publishedMessage struct {
	topic string
	key   []byte
	value []byte
}

// fakeProducer records published messages and optionally fails.
type fakeProducer struct {
	mu        sync.Mutex
	published []publishedMessage
	err       error
}

func (p *fakeProducer) Publish(_ context.Context, topic string, key, value []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.published = append(p.published, publishedMessage{topic: topic, key: key, value: value})
	return nil
}

func (p *fakeProducer) messages() []publishedMessage {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]publishedMessage, len(p.published))
	copy(out, p.published)
	return out
}
