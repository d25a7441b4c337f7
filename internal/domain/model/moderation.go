package model

import "time"

// ModerationStatus is the lifecycle state of a moderation task.
type ModerationStatus string

const (
	// ModerationStatusPending means the task is queued and awaiting a worker.
	ModerationStatusPending ModerationStatus = "pending"
	// ModerationStatusCompleted means the classifier produced a verdict.
	ModerationStatusCompleted ModerationStatus = "completed"
	// ModerationStatusFailed means processing ended with an error.
	ModerationStatusFailed ModerationStatus = "failed"
)

// Valid reports whether s is a known status value.
func (s ModerationStatus) Valid() bool {
	switch s {
	case ModerationStatusPending, ModerationStatusCompleted, ModerationStatusFailed:
		return true
	default:
		return false
	}
}

// Terminal reports whether s can no longer change.
func (s ModerationStatus) Terminal() bool {
	return s == ModerationStatusCompleted || s == ModerationStatusFailed
}

// ModerationTask is a moderation_results row: one submitted moderation
// request and its eventual outcome. The store is the source of truth for
// task status; cache entries derived from it are disposable.
//
// Field invariant: IsViolation/Probability are set iff status is completed,
// ErrorMessage is set iff status is failed, and ProcessedAt is set iff the
// status is terminal.
type ModerationTask struct {
	ID           int64            `json:"id"`
	ItemID       int64            `json:"item_id"`
	Status       ModerationStatus `json:"status"`
	IsViolation  *bool            `json:"is_violation,omitempty"`
	Probability  *float64         `json:"probability,omitempty"`
	ErrorMessage *string          `json:"error_message,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
	ProcessedAt  *time.Time       `json:"processed_at,omitempty"`
}

// CheckInvariant verifies the status/field coupling described above.
func (t *ModerationTask) CheckInvariant() bool {
	switch t.Status {
	case ModerationStatusPending:
		return t.IsViolation == nil && t.Probability == nil && t.ErrorMessage == nil && t.ProcessedAt == nil
	case ModerationStatusCompleted:
		return t.IsViolation != nil && t.Probability != nil && t.ErrorMessage == nil && t.ProcessedAt != nil
	case ModerationStatusFailed:
		return t.IsViolation == nil && t.Probability == nil && t.ErrorMessage != nil && t.ProcessedAt != nil
	default:
		return false
	}
}

// ModerationResultResponse is the polling view of a task returned to callers
// and stored in the task cache namespace.
type ModerationResultResponse struct {
	TaskID       int64            `json:"task_id"`
	Status       ModerationStatus `json:"status"`
	IsViolation  *bool            `json:"is_violation,omitempty"`
	Probability  *float64         `json:"probability,omitempty"`
	ErrorMessage *string          `json:"error_message,omitempty"`
}

// ResultResponseFromTask projects a stored task into its polling view.
func ResultResponseFromTask(t *ModerationTask) ModerationResultResponse {
	return ModerationResultResponse{
		TaskID:       t.ID,
		Status:       t.Status,
		IsViolation:  t.IsViolation,
		Probability:  t.Probability,
		ErrorMessage: t.ErrorMessage,
	}
}
