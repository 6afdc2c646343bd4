// Package errors provides standardized error handling for the query engine.
package errors

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	// Per-task fetch errors. Non-fatal to a fan-out batch.
	ErrCodeFetchTimeout        ErrorCode = "FETCH_TIMEOUT"
	ErrCodeFetchNotFound       ErrorCode = "FETCH_NOT_FOUND"
	ErrCodeFetchTransportError ErrorCode = "FETCH_TRANSPORT_ERROR"

	// Escalated when every task in a fan-out failed.
	ErrCodeAllTasksFailed ErrorCode = "ALL_TASKS_FAILED"

	// Cache problems are treated as misses, never propagated to callers.
	ErrCodeCacheCorruption ErrorCode = "CACHE_CORRUPTION"

	// Generator backend errors.
	ErrCodeGeneratorUnavailable ErrorCode = "GENERATOR_UNAVAILABLE"
	ErrCodeGeneratorTimeout     ErrorCode = "GENERATOR_TIMEOUT"
	ErrCodeDailyLimitExceeded   ErrorCode = "DAILY_LIMIT_EXCEEDED"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Cause     error                  `json:"-"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// Unwrap exposes the underlying cause so errors.Is/errors.As see through
// the wrapper, e.g. a context.DeadlineExceeded inside a transport error.
func (e *StandardError) Unwrap() error {
	return e.Cause
}

// AsStandard returns err as a *StandardError, wrapping it as a transport
// error when it is something else.
func AsStandard(err error) *StandardError {
	var stdErr *StandardError
	if errors.As(err, &stdErr) {
		return stdErr
	}
	return NewFetchTransportError("store", err)
}

// ==========================
// 2. Error Constructors
// ==========================

// NewFetchTimeoutError creates a retryable per-task timeout error.
func NewFetchTimeoutError(taskID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeFetchTimeout,
		Message:   "Fetch task timed out",
		Details:   fmt.Sprintf("taskId: %s", taskID),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewFetchNotFoundError creates a non-retryable per-task not-found error.
func NewFetchNotFoundError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeFetchNotFound,
		Message:   "No market data for the requested lookup",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewFetchTransportError creates a retryable per-task transport error.
func NewFetchTransportError(source string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeFetchTransportError,
		Message:   fmt.Sprintf("Data source '%s' error", source),
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		Cause:     err,
	}
}

// NewAllTasksFailedError escalates a fully-failed fan-out batch.
func NewAllTasksFailedError(taskCount int) *StandardError {
	return &StandardError{
		Code:      ErrCodeAllTasksFailed,
		Message:   "Every fetch task in the batch failed",
		Details:   fmt.Sprintf("taskCount: %d", taskCount),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewCacheCorruptionError records an undecodable cache entry. Callers must
// treat it as a miss.
func NewCacheCorruptionError(fingerprint string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeCacheCorruption,
		Message:   "Cache entry could not be decoded",
		Details:   fmt.Sprintf("fingerprint: %s, error: %s", fingerprint, err.Error()),
		Retryable: false,
		Timestamp: time.Now().UTC(),
		Cause:     err,
	}
}

// NewGeneratorUnavailableError creates a retryable generator backend error.
func NewGeneratorUnavailableError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeGeneratorUnavailable,
		Message:   "All generator models failed to respond",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		Cause:     err,
	}
}

// NewGeneratorTimeoutError creates a retryable generator timeout error.
func NewGeneratorTimeoutError(model string) *StandardError {
	return &StandardError{
		Code:      ErrCodeGeneratorTimeout,
		Message:   "Generator call exceeded timeout threshold",
		Details:   fmt.Sprintf("model: %s", model),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewDailyLimitExceededError creates a non-retryable budget error.
func NewDailyLimitExceededError(used, limit int64) *StandardError {
	return &StandardError{
		Code:      ErrCodeDailyLimitExceeded,
		Message:   "Daily generator request budget exhausted",
		Details:   fmt.Sprintf("used: %d, limit: %d", used, limit),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// ==========================
// 3. Utility Functions
// ==========================

// GetRetryCount returns the recommended retry count per error code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeFetchTransportError,
		ErrCodeGeneratorUnavailable:
		return 3 // Retryable technical errors

	case ErrCodeFetchTimeout,
		ErrCodeGeneratorTimeout:
		return 2 // Partial retry for timeouts

	default:
		return 0 // Not-found, budget and batch errors: no retry
	}
}

// IsRetryableErrorCode checks if an error code is retryable.
func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "FETCH") || strings.Contains(codeStr, "TASKS"):
		return "FETCH"
	case strings.Contains(codeStr, "CACHE"):
		return "CACHE"
	case strings.Contains(codeStr, "GENERATOR") || strings.Contains(codeStr, "LIMIT"):
		return "GENERATOR"
	default:
		return "OTHER"
	}
}
