package worker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adsafe/moderation-api/internal/core"
	"github.com/adsafe/moderation-api/internal/data"
	"github.com/adsafe/moderation-api/internal/domain/model"
	"github.com/adsafe/moderation-api/internal/testutil"
)

// fakeConsumer serves a scripted sequence of deliveries, then reports
// cancellation so Run exits cleanly.
type fakeConsumer struct {
	mu         sync.Mutex
	deliveries []core.Delivery
	commits    []core.Delivery
}

func (c *fakeConsumer) Fetch(_ context.Context) (core.Delivery, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.deliveries) == 0 {
		return core.Delivery{}, context.Canceled
	}
	d := c.deliveries[0]
	c.deliveries = c.deliveries[1:]
	return d, nil
}

func (c *fakeConsumer) Commit(_ context.Context, d core.Delivery) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.commits = append(c.commits, d)
	return nil
}

// publishedMessage records one fakeProducer publish.
type publishedMessage struct {
	topic string
	key   []byte
	value []byte
}

// fakeProducer records publishes and can fail selectively per topic.
type fakeProducer struct {
	mu         sync.Mutex
	published  []publishedMessage
	failTopics map[string]error
}

func (p *fakeProducer) Publish(_ context.Context, topic string, key, value []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.failTopics[topic]; err != nil {
		return err
	}
	p.published = append(p.published, publishedMessage{topic: topic, key: key, value: value})
	return nil
}

func (p *fakeProducer) toTopic(topic string) []publishedMessage {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []publishedMessage
	for _, m := range p.published {
		if m.topic == topic {
			out = append(out, m)
		}
	}
	return out
}

// fakeAdRepo serves scripted ads.
type fakeAdRepo struct {
	ads    map[int64]*model.Ad
	getErr error
}

func (r *fakeAdRepo) GetByID(_ context.Context, id int64, _ bool) (*model.Ad, error) {
	if r.getErr != nil {
		return nil, r.getErr
	}
	ad, ok := r.ads[id]
	if !ok {
		return nil, data.ErrAdNotFound
	}
	copied := *ad
	return &copied, nil
}

func (r *fakeAdRepo) Create(_ context.Context, _ core.CreateAdParams) (*model.Ad, error) {
	return nil, errors.New("not implemented")
}

func (r *fakeAdRepo) GetBySeller(_ context.Context, _ int64, _, _ int) ([]*model.Ad, error) {
	return nil, errors.New("not implemented")
}

func (r *fakeAdRepo) Delete(_ context.Context, _ int64) (bool, error) {
	return false, errors.New("not implemented")
}

// fakeResultRepo is an in-memory result store honoring the pending-only
// guard on terminal updates.
type fakeResultRepo struct {
	mu        sync.Mutex
	tasks     map[int64]*model.ModerationTask
	updateErr error
}

func newFakeResultRepo(tasks ...*model.ModerationTask) *fakeResultRepo {
	r := &fakeResultRepo{tasks: make(map[int64]*model.ModerationTask)}
	for _, task := range tasks {
		r.tasks[task.ID] = task
	}
	return r
}

func (r *fakeResultRepo) Create(_ context.Context, _ int64, _ model.ModerationStatus) (*model.ModerationTask, error) {
	return nil, errors.New("not implemented")
}

func (r *fakeResultRepo) GetByID(_ context.Context, taskID int64) (*model.ModerationTask, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
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
	for id := int64(1); id <= int64(len(r.tasks))+100; id++ {
		if task, ok := r.tasks[id]; ok && task.ItemID == itemID {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (r *fakeResultRepo) DeleteByItemID(_ context.Context, _ int64) (int64, error) {
	return 0, errors.New("not implemented")
}

func (r *fakeResultRepo) status(t *testing.T, taskID int64) model.ModerationTask {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	task, ok := r.tasks[taskID]
	require.True(t, ok, "task %d not found", taskID)
	return *task
}

// fakeClassifier is a scripted core.Classifier.
type fakeClassifier struct {
	prediction model.Prediction
	err        error
	calls      int
}

func (c *fakeClassifier) Predict(_ context.Context, _ core.PredictInput) (model.Prediction, error) {
	c.calls++
	if c.err != nil {
		return model.Prediction{}, c.err
	}
	return c.prediction, nil
}

type workerFixture struct {
	worker     *Worker
	consumer   *fakeConsumer
	producer   *fakeProducer
	ads        *fakeAdRepo
	results    *fakeResultRepo
	classifier *fakeClassifier
}

func newWorkerFixture(t *testing.T) *workerFixture {
	t.Helper()
	f := &workerFixture{
		consumer:   &fakeConsumer{},
		producer:   &fakeProducer{failTopics: map[string]error{}},
		ads:        &fakeAdRepo{ads: map[int64]*model.Ad{}},
		results:    newFakeResultRepo(),
		classifier: &fakeClassifier{prediction: model.Prediction{IsViolation: false, Probability: 0.1}},
	}
	w, err := New(Options{
		Consumer:   f.consumer,
		Producer:   f.producer,
		Ads:        f.ads,
		Results:    f.results,
		Classifier: f.classifier,
		RetryDelay: time.Millisecond,
		Now:        testutil.FixedTimeFunc(testutil.TestTime()),
	})
	require.NoError(t, err)
	f.worker = w
	return f
}

func (f *workerFixture) addAd(ad *model.Ad) {
	f.ads.ads[ad.ID] = ad
}

func (f *workerFixture) addPendingTask(task *model.ModerationTask) {
	f.results.tasks[task.ID] = task
}

func (f *workerFixture) enqueue(t *testing.T, msg model.QueueMessage, offset int64) {
	t.Helper()
	raw, err := json.Marshal(msg)
	require.NoError(t, err)
	f.consumer.deliveries = append(f.consumer.deliveries, core.Delivery{
		Topic:     model.TopicModeration,
		Partition: 0,
		Offset:    offset,
		Key:       []byte("42"),
		Value:     raw,
	})
}

func (f *workerFixture) run(t *testing.T) {
	t.Helper()
	require.NoError(t, f.worker.Run(context.Background()))
}

func (f *workerFixture) decodeDLQ(t *testing.T) []model.DLQMessage {
	t.Helper()
	var out []model.DLQMessage
	for _, m := range f.producer.toTopic(model.TopicModerationDLQ) {
		dlq, err := model.DecodeDLQMessage(m.value)
		require.NoError(t, err)
		out = append(out, dlq)
	}
	return out
}

func TestNew_RequiredDeps(t *testing.T) {
	_, err := New(Options{})
	require.Error(t, err)
}

func TestWorker_CompletesTask(t *testing.T) {
	f := newWorkerFixture(t)
	f.addAd(testutil.NewAd().WithID(42).Build())
	f.addPendingTask(testutil.NewTask().WithID(7).WithItemID(42).Build())
	f.classifier.prediction = model.Prediction{IsViolation: true, Probability: 0.88}

	f.enqueue(t, model.NewQueueMessage(42, 7, testutil.TestTime()), 10)
	f.run(t)

	task := f.results.status(t, 7)
	assert.Equal(t, model.ModerationStatusCompleted, task.Status)
	require.NotNil(t, task.IsViolation)
	assert.True(t, *task.IsViolation)
	require.NotNil(t, task.Probability)
	assert.InDelta(t, 0.88, *task.Probability, 1e-9)

	// Nothing republished, delivery committed.
	assert.Empty(t, f.producer.published)
	require.Len(t, f.consumer.commits, 1)
	assert.Equal(t, int64(10), f.consumer.commits[0].Offset)
}

func TestWorker_ResolvesTaskByItemWhenMessageOmitsTaskID(t *testing.T) {
	f := newWorkerFixture(t)
	f.addAd(testutil.NewAd().WithID(42).Build())
	// An older resolved task and a newer pending one for the same item.
	f.addPendingTask(testutil.NewTask().WithID(3).WithItemID(42).
		Completed(false, 0.1, testutil.TestTime()).Build())
	f.addPendingTask(testutil.NewTask().WithID(5).WithItemID(42).Build())

	f.enqueue(t, model.QueueMessage{ItemID: 42, Timestamp: testutil.TestTime()}, 1)
	f.run(t)

	assert.Equal(t, model.ModerationStatusCompleted, f.results.status(t, 5).Status)
}

func TestWorker_MissingItemID(t *testing.T) {
	t.Run("with task id marks task failed", func(t *testing.T) {
		f := newWorkerFixture(t)
		f.addPendingTask(testutil.NewTask().WithID(7).WithItemID(42).Build())

		taskID := int64(7)
		f.enqueue(t, model.QueueMessage{TaskID: &taskID, Timestamp: testutil.TestTime()}, 1)
		f.run(t)

		task := f.results.status(t, 7)
		assert.Equal(t, model.ModerationStatusFailed, task.Status)
		require.NotNil(t, task.ErrorMessage)
		assert.Contains(t, *task.ErrorMessage, "item_id")

		dlq := f.decodeDLQ(t)
		require.Len(t, dlq, 1)
		assert.Equal(t, model.DLQErrorPermanent, dlq[0].ErrorType)
	})

	t.Run("without task id still dead-letters", func(t *testing.T) {
		f := newWorkerFixture(t)

		f.enqueue(t, model.QueueMessage{Timestamp: testutil.TestTime()}, 1)
		f.run(t)

		dlq := f.decodeDLQ(t)
		require.Len(t, dlq, 1)
		assert.Equal(t, model.DLQErrorPermanent, dlq[0].ErrorType)
		// The delivery was still committed; the message will not loop.
		assert.Len(t, f.consumer.commits, 1)
	})
}

func TestWorker_AdNotFound(t *testing.T) {
	f := newWorkerFixture(t)
	f.addPendingTask(testutil.NewTask().WithID(7).WithItemID(42).Build())

	f.enqueue(t, model.NewQueueMessage(42, 7, testutil.TestTime()), 1)
	f.run(t)

	task := f.results.status(t, 7)
	assert.Equal(t, model.ModerationStatusFailed, task.Status)
	require.NotNil(t, task.ErrorMessage)
	assert.Contains(t, *task.ErrorMessage, "not found")

	// Permanent errors bypass the retry budget entirely.
	assert.Empty(t, f.producer.toTopic(model.TopicModeration))
	dlq := f.decodeDLQ(t)
	require.Len(t, dlq, 1)
	assert.Equal(t, model.DLQErrorPermanent, dlq[0].ErrorType)
	assert.Equal(t, int64(42), dlq[0].OriginalMessage.ItemID)
	assert.Zero(t, f.classifier.calls)
}

func TestWorker_TransientErrorReschedules(t *testing.T) {
	f := newWorkerFixture(t)
	f.addAd(testutil.NewAd().WithID(42).Build())
	f.addPendingTask(testutil.NewTask().WithID(7).WithItemID(42).Build())
	f.classifier.err = errors.New("scoring backend timeout")

	f.enqueue(t, model.NewQueueMessage(42, 7, testutil.TestTime()), 1)
	f.run(t)

	// Task untouched: a retry is coming.
	assert.Equal(t, model.ModerationStatusPending, f.results.status(t, 7).Status)
	assert.Empty(t, f.decodeDLQ(t))

	retries := f.producer.toTopic(model.TopicModeration)
	require.Len(t, retries, 1)
	// Retries keep the partition key so per-item ordering holds.
	assert.Equal(t, []byte("42"), retries[0].key)

	msg, err := model.DecodeQueueMessage(retries[0].value)
	require.NoError(t, err)
	assert.Equal(t, 1, msg.RetryCount)
	assert.Contains(t, msg.LastError, "scoring backend timeout")
	require.NotNil(t, msg.TaskID)
	assert.Equal(t, int64(7), *msg.TaskID)
}

func TestWorker_RetryBudgetExhausted(t *testing.T) {
	f := newWorkerFixture(t)
	f.addAd(testutil.NewAd().WithID(42).Build())
	f.addPendingTask(testutil.NewTask().WithID(7).WithItemID(42).Build())
	f.classifier.err = errors.New("scoring backend down")

	msg := model.NewQueueMessage(42, 7, testutil.TestTime())
	msg.RetryCount = DefaultMaxRetries
	f.enqueue(t, msg, 1)
	f.run(t)

	task := f.results.status(t, 7)
	assert.Equal(t, model.ModerationStatusFailed, task.Status)
	require.NotNil(t, task.ErrorMessage)
	assert.Contains(t, *task.ErrorMessage, "max retries")

	assert.Empty(t, f.producer.toTopic(model.TopicModeration))
	dlq := f.decodeDLQ(t)
	require.Len(t, dlq, 1)
	assert.Equal(t, model.DLQErrorMaxRetries, dlq[0].ErrorType)
	assert.Equal(t, DefaultMaxRetries, dlq[0].RetryCount)
}

func TestWorker_ReEnqueueFailureDeadLetters(t *testing.T) {
	f := newWorkerFixture(t)
	f.addAd(testutil.NewAd().WithID(42).Build())
	f.addPendingTask(testutil.NewTask().WithID(7).WithItemID(42).Build())
	f.classifier.err = errors.New("scoring backend timeout")
	f.producer.failTopics[model.TopicModeration] = errors.New("broker rejected write")

	f.enqueue(t, model.NewQueueMessage(42, 7, testutil.TestTime()), 1)
	f.run(t)

	// The broken retry machinery routes the original message to the DLQ
	// instead of looping.
	dlq := f.decodeDLQ(t)
	require.Len(t, dlq, 1)
	assert.Equal(t, model.DLQErrorPermanent, dlq[0].ErrorType)
	assert.Contains(t, dlq[0].Error, "re-enqueue failed")
	// The DLQ record carries the original attempt, not the incremented one.
	assert.Equal(t, 0, dlq[0].OriginalMessage.RetryCount)
}

func TestWorker_DuplicateDeliveryIsNoOp(t *testing.T) {
	f := newWorkerFixture(t)
	f.addAd(testutil.NewAd().WithID(42).Build())
	f.addPendingTask(testutil.NewTask().WithID(7).WithItemID(42).Build())

	f.enqueue(t, model.NewQueueMessage(42, 7, testutil.TestTime()), 1)
	f.enqueue(t, model.NewQueueMessage(42, 7, testutil.TestTime()), 2)
	f.run(t)

	// First delivery resolves the task; the second finds it no longer
	// pending and leaves the verdict untouched.
	task := f.results.status(t, 7)
	assert.Equal(t, model.ModerationStatusCompleted, task.Status)
	assert.Empty(t, f.decodeDLQ(t))
	assert.Len(t, f.consumer.commits, 2)
}

func TestWorker_MalformedPayload(t *testing.T) {
	f := newWorkerFixture(t)
	f.consumer.deliveries = append(f.consumer.deliveries, core.Delivery{
		Topic:  model.TopicModeration,
		Offset: 1,
		Value:  []byte("{broken json"),
	})
	f.run(t)

	dlq := f.decodeDLQ(t)
	require.Len(t, dlq, 1)
	assert.Equal(t, model.DLQErrorPermanent, dlq[0].ErrorType)
	assert.Len(t, f.consumer.commits, 1)
}

func TestWorker_DLQCoordinatesFromDelivery(t *testing.T) {
	f := newWorkerFixture(t)
	raw, err := json.Marshal(model.QueueMessage{Timestamp: testutil.TestTime()})
	require.NoError(t, err)
	f.consumer.deliveries = append(f.consumer.deliveries, core.Delivery{
		Topic:     model.TopicModeration,
		Partition: 3,
		Offset:    1337,
		Value:     raw,
	})
	f.run(t)

	dlq := f.decodeDLQ(t)
	require.Len(t, dlq, 1)
	assert.Equal(t, model.TopicModeration, dlq[0].Topic)
	assert.Equal(t, 3, dlq[0].Partition)
	assert.Equal(t, int64(1337), dlq[0].Offset)
	assert.True(t, dlq[0].Timestamp.Equal(testutil.TestTime()))
}

func TestWorker_DLQPublishFailureOnlyLogs(t *testing.T) {
	f := newWorkerFixture(t)
	f.addPendingTask(testutil.NewTask().WithID(7).WithItemID(42).Build())
	f.producer.failTopics[model.TopicModerationDLQ] = errors.New("dlq topic gone")

	f.enqueue(t, model.NewQueueMessage(42, 7, testutil.TestTime()), 1)
	// The ad does not exist, so this is a permanent failure whose DLQ write
	// fails. Run must still terminate cleanly and commit the delivery.
	f.run(t)

	assert.Equal(t, model.ModerationStatusFailed, f.results.status(t, 7).Status)
	assert.Len(t, f.consumer.commits, 1)
}

func TestWorker_TransientStoreErrorRetries(t *testing.T) {
	f := newWorkerFixture(t)
	f.addAd(testutil.NewAd().WithID(42).Build())
	f.addPendingTask(testutil.NewTask().WithID(7).WithItemID(42).Build())
	f.results.updateErr = errors.New("connection reset")

	f.enqueue(t, model.NewQueueMessage(42, 7, testutil.TestTime()), 1)
	f.run(t)

	retries := f.producer.toTopic(model.TopicModeration)
	require.Len(t, retries, 1)
	msg, err := model.DecodeQueueMessage(retries[0].value)
	require.NoError(t, err)
	assert.Equal(t, 1, msg.RetryCount)
	assert.Contains(t, msg.LastError, "connection reset")
}
