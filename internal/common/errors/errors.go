package errors

import (
	stderrors "errors"
	"fmt"
	"time"
)

// ErrorCode identifies the class of an application error.
type ErrorCode string

const (
	// Input and lookup errors
	ErrCodeValidation ErrorCode = "VALIDATION_ERROR"
	ErrCodeNotFound   ErrorCode = "NOT_FOUND"
	ErrCodeForbidden  ErrorCode = "FORBIDDEN"

	// Uniqueness violations
	ErrCodeConflict  ErrorCode = "CONFLICT"
	ErrCodeDuplicate ErrorCode = "DUPLICATE"

	// Giveaway lifecycle sequencing
	ErrCodeClosed         ErrorCode = "CLOSED"
	ErrCodeNotDue         ErrorCode = "NOT_DUE"
	ErrCodeAlreadyDrawn   ErrorCode = "ALREADY_DRAWN"
	ErrCodeNotDrawn       ErrorCode = "NOT_DRAWN"
	ErrCodeNoParticipants ErrorCode = "NO_PARTICIPANTS"

	// Infrastructure
	ErrCodeDatabase ErrorCode = "DATABASE_ERROR"
	ErrCodeCache    ErrorCode = "CACHE_ERROR"
	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)

// Sentinels for errors.Is matching. AppError.Is compares codes, so any
// AppError carrying the same code matches its sentinel.
var (
	ErrValidation     = &AppError{Code: ErrCodeValidation}
	ErrNotFound       = &AppError{Code: ErrCodeNotFound}
	ErrForbidden      = &AppError{Code: ErrCodeForbidden}
	ErrConflict       = &AppError{Code: ErrCodeConflict}
	ErrDuplicate      = &AppError{Code: ErrCodeDuplicate}
	ErrClosed         = &AppError{Code: ErrCodeClosed}
	ErrNotDue         = &AppError{Code: ErrCodeNotDue}
	ErrAlreadyDrawn   = &AppError{Code: ErrCodeAlreadyDrawn}
	ErrNotDrawn       = &AppError{Code: ErrCodeNotDrawn}
	ErrNoParticipants = &AppError{Code: ErrCodeNoParticipants}
	ErrDatabase       = &AppError{Code: ErrCodeDatabase}
	ErrCache          = &AppError{Code: ErrCodeCache}
)

// AppError is a typed application error.
type AppError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Cause     error                  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an AppError with the same code.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// IsInternal reports whether the error originates from infrastructure.
func (e *AppError) IsInternal() bool {
	return e.Code == ErrCodeInternal ||
		e.Code == ErrCodeDatabase ||
		e.Code == ErrCodeCache
}

// WithDetail attaches a detail value to the error.
func (e *AppError) WithDetail(key string, value interface{}) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// New creates an application error.
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:      code,
		Message:   message,
		Timestamp: time.Now(),
	}
}

// Wrap wraps an existing error.
func Wrap(err error, code ErrorCode, message string) *AppError {
	appErr := New(code, message)
	appErr.Cause = err
	return appErr
}

// NewValidationError reports a rejected input field.
func NewValidationError(field, reason string) *AppError {
	return New(ErrCodeValidation, fmt.Sprintf("Validation failed for field '%s': %s", field, reason)).
		WithDetail("field", field).
		WithDetail("reason", reason)
}

// NewNotFoundError reports a missing entity.
func NewNotFoundError(resource string, id interface{}) *AppError {
	return New(ErrCodeNotFound, fmt.Sprintf("%s not found", resource)).
		WithDetail("resource", resource).
		WithDetail("id", id)
}

// NewForbiddenError reports an operation the requester may not perform.
func NewForbiddenError(reason string) *AppError {
	return New(ErrCodeForbidden, fmt.Sprintf("Forbidden: %s", reason)).
		WithDetail("reason", reason)
}

// NewConflictError reports a uniqueness violation on a registry entity.
func NewConflictError(resource, reason string) *AppError {
	return New(ErrCodeConflict, fmt.Sprintf("Conflict with %s: %s", resource, reason)).
		WithDetail("resource", resource).
		WithDetail("reason", reason)
}

// NewDuplicateError reports a second participation entry for the same pair.
func NewDuplicateError(giveawayID string, identityID int64) *AppError {
	return New(ErrCodeDuplicate, "Identity already joined this giveaway").
		WithDetail("giveaway_id", giveawayID).
		WithDetail("identity_id", identityID)
}

// NewLifecycleError reports an operation out of giveaway lifecycle order.
func NewLifecycleError(code ErrorCode, giveawayID, message string) *AppError {
	return New(code, message).WithDetail("giveaway_id", giveawayID)
}

// NewDatabaseError wraps a storage failure.
func NewDatabaseError(operation string, err error) *AppError {
	return Wrap(err, ErrCodeDatabase, fmt.Sprintf("Database operation failed: %s", operation)).
		WithDetail("operation", operation)
}

// NewCacheError wraps a cache failure.
func NewCacheError(operation string, err error) *AppError {
	return Wrap(err, ErrCodeCache, fmt.Sprintf("Cache operation failed: %s", operation)).
		WithDetail("operation", operation)
}

// AsAppError extracts the outermost AppError from an error chain.
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// IsDomain reports whether err is a domain rule violation. Domain errors are
// never worth retrying with the same input.
func IsDomain(err error) bool {
	appErr, ok := AsAppError(err)
	if !ok {
		return false
	}
	return !appErr.IsInternal()
}

// IsRetryable reports whether err came from the storage layer rather than a
// domain rule. Unknown errors are treated as retryable infrastructure failures.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	return !IsDomain(err)
}
