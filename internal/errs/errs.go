package errs

import (
	"fmt"
	"time"
)

// ValidationError reports malformed input or an illegal state transition.
// It is never retried and always propagates to the caller.
type ValidationError struct {
	Message string
	Field   string
	Value   string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed: %s (field %q)", e.Message, e.Field)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

// NewValidation creates a ValidationError without field context.
func NewValidation(format string, args ...any) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// NewFieldValidation creates a ValidationError attributed to a field.
func NewFieldValidation(field, format string, args ...any) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...), Field: field}
}

// TaskError is the base lifecycle failure carrying the task id.
type TaskError struct {
	Message string
	TaskID  string
	Err     error
}

func (e *TaskError) Error() string {
	if e.TaskID != "" {
		return fmt.Sprintf("task %s: %s", e.TaskID, e.Message)
	}
	return e.Message
}

func (e *TaskError) Unwrap() error { return e.Err }

// TaskNotFoundError reports a lookup for a task id the tracker has never seen.
type TaskNotFoundError struct {
	TaskID string
}

func (e *TaskNotFoundError) Error() string {
	return fmt.Sprintf("task %s not found", e.TaskID)
}

// TaskUpdateError reports a failed update against the owning system.
type TaskUpdateError struct {
	TaskID string
	System string
	Err    error
}

func (e *TaskUpdateError) Error() string {
	return fmt.Sprintf("failed to update task %s in %s: %v", e.TaskID, e.System, e.Err)
}

func (e *TaskUpdateError) Unwrap() error { return e.Err }

// SyncError reports a cross-system mismatch or propagation failure. It always
// carries the task id and both system names.
type SyncError struct {
	TaskID          string
	PrimarySystem   string
	SecondarySystem string
	Err             error
}

func (e *SyncError) Error() string {
	return fmt.Sprintf("failed to sync task %s (%s -> %s): %v",
		e.TaskID, e.PrimarySystem, e.SecondarySystem, e.Err)
}

func (e *SyncError) Unwrap() error { return e.Err }

// RetryableError marks a transient failure (rate limiting, transient 5xx).
// RetryAfter is a hint from the remote system; zero means use backoff.
type RetryableError struct {
	Message    string
	RetryAfter time.Duration
	Attempt    int
	MaxAttempt int
	Err        error
}

func (e *RetryableError) Error() string {
	if e.MaxAttempt > 0 {
		return fmt.Sprintf("%s (attempt %d/%d)", e.Message, e.Attempt, e.MaxAttempt)
	}
	return e.Message
}

func (e *RetryableError) Unwrap() error { return e.Err }

// TransactionError reports a partial multi-step failure. RolledBack lists the
// operations that were compensated, in the order compensation ran.
// CompensationFailures collects rollback errors that were logged but not
// propagated.
type TransactionError struct {
	FailedStep           string
	Err                  error
	RolledBack           []string
	CompensationFailures []error
}

func (e *TransactionError) Error() string {
	return fmt.Sprintf("transaction failed at step %q: %v (rolled back %d steps)",
		e.FailedStep, e.Err, len(e.RolledBack))
}

func (e *TransactionError) Unwrap() error { return e.Err }

// PerformanceError reports an operation that exceeded its configured
// duration threshold, including a deadline expiring mid-write.
type PerformanceError struct {
	Operation string
	Threshold time.Duration
	Actual    time.Duration
	Err       error
}

func (e *PerformanceError) Error() string {
	return fmt.Sprintf("%s exceeded %s threshold (took %s)",
		e.Operation, e.Threshold, e.Actual.Round(time.Millisecond))
}

func (e *PerformanceError) Unwrap() error { return e.Err }

// APIError is a system-specific backend failure carrying an HTTP-like status
// and the vendor error code.
type APIError struct {
	System     string
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s API error (%s, status %d): %s", e.System, e.Code, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s API error (status %d): %s", e.System, e.StatusCode, e.Message)
}

// Retryable reports whether the status code marks a transient failure.
func (e *APIError) Retryable() bool {
	return e.StatusCode == 429 || (e.StatusCode >= 500 && e.StatusCode < 600)
}
