package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// Queue topics used by the moderation pipeline. Retries are re-enqueued onto
// TopicModeration itself; there is no separate retry topic.
const (
	TopicModeration    = "moderation"
	TopicModerationDLQ = "moderation_dlq"
)

// DLQ error classification.
const (
	// DLQErrorPermanent marks failures that retrying cannot fix.
	DLQErrorPermanent = "permanent"
	// DLQErrorMaxRetries marks failures that exhausted the retry budget.
	DLQErrorMaxRetries = "max_retries_exceeded"
)

// QueueMessage is the payload published to the moderation topic. It is
// transient: it lives only between enqueue and consume.
//
// TaskID is optional on the wire: messages from the minimal submission flow
// may omit it, and the worker falls back to resolving the task by item id.
// RetryCount defaults to zero when absent (earliest producers never set it).
type QueueMessage struct {
	ItemID     int64     `json:"item_id"`
	TaskID     *int64    `json:"task_id,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
	RetryCount int       `json:"retry_count"`
	LastError  string    `json:"last_error,omitempty"`
}

// NewQueueMessage builds a first-attempt message for a freshly created task.
func NewQueueMessage(itemID, taskID int64, now time.Time) QueueMessage {
	return QueueMessage{
		ItemID:     itemID,
		TaskID:     &taskID,
		Timestamp:  now.UTC(),
		RetryCount: 0,
	}
}

// NextRetry derives the replacement message for one more delivery attempt.
func (m QueueMessage) NextRetry(lastError string) QueueMessage {
	next := m
	next.RetryCount = m.RetryCount + 1
	next.LastError = lastError
	return next
}

// HasItemID reports whether the message carries a usable item reference.
// A message without one is a permanent data error.
func (m QueueMessage) HasItemID() bool {
	return m.ItemID > 0
}

// DecodeQueueMessage parses a raw queue payload. Absent optional fields get
// their documented defaults; a malformed payload is an error, a payload
// without item_id is not (the worker classifies that itself).
func DecodeQueueMessage(raw []byte) (QueueMessage, error) {
	var msg QueueMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return QueueMessage{}, fmt.Errorf("decode queue message: %w", err)
	}
	if msg.RetryCount < 0 {
		msg.RetryCount = 0
	}
	return msg, nil
}

// DLQMessage wraps a message that reached its terminal failure, together
// with the broker coordinates of the original delivery for forensic replay.
type DLQMessage struct {
	OriginalMessage QueueMessage `json:"original_message"`
	Error           string       `json:"error"`
	ErrorType       string       `json:"error_type"`
	Timestamp       time.Time    `json:"timestamp"`
	RetryCount      int          `json:"retry_count"`
	Topic           string       `json:"topic"`
	Partition       int          `json:"partition"`
	Offset          int64        `json:"offset"`
}

// DecodeDLQMessage parses a raw dead letter payload.
func DecodeDLQMessage(raw []byte) (DLQMessage, error) {
	var msg DLQMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return DLQMessage{}, fmt.Errorf("decode DLQ message: %w", err)
	}
	return msg, nil
}
