// Package errors provides structured application errors for the moderation
// system, with codes that map to the failure taxonomy of the pipeline.
package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents a category of application error.
type ErrorCode string

const (
	// ErrCodeNotFound indicates a resource (ad or task) was not found.
	ErrCodeNotFound ErrorCode = "not_found"
	// ErrCodeValidation indicates invalid input data.
	ErrCodeValidation ErrorCode = "validation"
	// ErrCodeModelUnavailable indicates the classifier is not loaded.
	// Transient for the async worker path, 503-equivalent for the sync path.
	ErrCodeModelUnavailable ErrorCode = "model_unavailable"
	// ErrCodePrediction indicates an unexpected failure during scoring.
	ErrCodePrediction ErrorCode = "prediction"
	// ErrCodeTransport indicates a queue enqueue/consume failure.
	ErrCodeTransport ErrorCode = "transport"
	// ErrCodePermanentData indicates a failure retrying cannot fix, such as
	// a message without an item reference or an ad that no longer exists.
	ErrCodePermanentData ErrorCode = "permanent_data"
	// ErrCodeConflict indicates a conflict with existing data.
	ErrCodeConflict ErrorCode = "conflict"
	// ErrCodeInternal indicates an internal error.
	ErrCodeInternal ErrorCode = "internal"
)

// AppError is a structured application error with a code, message, and
// optional cause. It supports errors.Is and errors.As via Unwrap.
type AppError struct {
	// Code categorizes the error type
	Code ErrorCode
	// Message is a human-readable error message
	Message string
	// Cause is the underlying error that caused this error (optional)
	Cause error
	// Field is the specific field that caused the error (optional, for validation errors)
	Field string
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying cause.
func (e *AppError) Unwrap() error {
	return e.Cause
}

// NotFound creates a new NotFound error.
func NotFound(message string) *AppError {
	return &AppError{Code: ErrCodeNotFound, Message: message}
}

// NotFoundf creates a new NotFound error with formatted message.
func NotFoundf(format string, args ...any) *AppError {
	return &AppError{Code: ErrCodeNotFound, Message: fmt.Sprintf(format, args...)}
}

// Validation creates a new Validation error.
func Validation(message string) *AppError {
	return &AppError{Code: ErrCodeValidation, Message: message}
}

// ValidationField creates a new Validation error for a specific field.
func ValidationField(field, message string) *AppError {
	return &AppError{Code: ErrCodeValidation, Message: message, Field: field}
}

// ModelUnavailable creates a new ModelUnavailable error.
func ModelUnavailable(message string) *AppError {
	return &AppError{Code: ErrCodeModelUnavailable, Message: message}
}

// Prediction creates a new Prediction error.
func Prediction(message string) *AppError {
	return &AppError{Code: ErrCodePrediction, Message: message}
}

// Transport creates a new Transport error.
func Transport(message string) *AppError {
	return &AppError{Code: ErrCodeTransport, Message: message}
}

// Transportf creates a new Transport error with formatted message.
func Transportf(format string, args ...any) *AppError {
	return &AppError{Code: ErrCodeTransport, Message: fmt.Sprintf(format, args...)}
}

// PermanentData creates a new PermanentData error.
func PermanentData(message string) *AppError {
	return &AppError{Code: ErrCodePermanentData, Message: message}
}

// PermanentDataf creates a new PermanentData error with formatted message.
func PermanentDataf(format string, args ...any) *AppError {
	return &AppError{Code: ErrCodePermanentData, Message: fmt.Sprintf(format, args...)}
}

// Conflict creates a new Conflict error.
func Conflict(message string) *AppError {
	return &AppError{Code: ErrCodeConflict, Message: message}
}

// Internal creates a new Internal error.
func Internal(message string) *AppError {
	return &AppError{Code: ErrCodeInternal, Message: message}
}

// Wrap wraps an existing error with an AppError, preserving the cause.
func Wrap(err error, code ErrorCode, message string) *AppError {
	if err == nil {
		return nil
	}
	return &AppError{Code: code, Message: message, Cause: err}
}

// Wrapf wraps an existing error with an AppError and formatted message.
func Wrapf(err error, code ErrorCode, format string, args ...any) *AppError {
	if err == nil {
		return nil
	}
	return &AppError{Code: code, Message: fmt.Sprintf(format, args...), Cause: err}
}

// isCode checks if an error has a specific error code.
func isCode(err error, code ErrorCode) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == code
}

// IsNotFound checks if an error is a NotFound error.
func IsNotFound(err error) bool {
	return isCode(err, ErrCodeNotFound)
}

// IsValidation checks if an error is a Validation error.
func IsValidation(err error) bool {
	return isCode(err, ErrCodeValidation)
}

// IsModelUnavailable checks if an error is a ModelUnavailable error.
func IsModelUnavailable(err error) bool {
	return isCode(err, ErrCodeModelUnavailable)
}

// IsPrediction checks if an error is a Prediction error.
func IsPrediction(err error) bool {
	return isCode(err, ErrCodePrediction)
}

// IsTransport checks if an error is a Transport error.
func IsTransport(err error) bool {
	return isCode(err, ErrCodeTransport)
}

// IsPermanentData checks if an error is a PermanentData error.
func IsPermanentData(err error) bool {
	return isCode(err, ErrCodePermanentData)
}

// IsConflict checks if an error is a Conflict error.
func IsConflict(err error) bool {
	return isCode(err, ErrCodeConflict)
}

// IsPermanent reports whether err must bypass the retry budget entirely.
// Only permanent data errors and not-found conditions qualify; everything
// else arising from the prediction/update path is considered retryable.
func IsPermanent(err error) bool {
	return IsPermanentData(err) || IsNotFound(err)
}

// GetCode returns the ErrorCode from an error, or empty string if not an AppError.
func GetCode(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// GetField returns the Field from an error, or empty string if not set.
func GetField(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Field
	}
	return ""
}
