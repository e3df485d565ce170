package errx

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors for the failure taxonomy. Every error surfaced by the
// assistant core wraps exactly one of these so callers can branch with
// errors.Is regardless of where the failure originated.
var (
	// ErrInvalidInput marks bad caller input (e.g. empty query text).
	ErrInvalidInput = errors.New("invalid input")
	// ErrUpstreamUnavailable marks a failed or timed-out call to the LLM
	// provider, Redis, or the knowledge store.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	// ErrDuplicate marks an attempt to create a record that already exists.
	ErrDuplicate = errors.New("duplicate record")
	// ErrNotFound marks a lookup for an unknown identifier.
	ErrNotFound = errors.New("record not found")
	// ErrInvalidState marks an operation not permitted in the record's
	// current lifecycle state.
	ErrInvalidState = errors.New("invalid state transition")
)

const (
	// SystemErrorMessage is a user-facing fallback when internal errors occur.
	SystemErrorMessage = "internal server error"
	// RedisErrorMessage describes Redis related failures.
	RedisErrorMessage = "redis operation failed"
	// RedisNotFoundMessage describes a missing Redis key.
	RedisNotFoundMessage = "record not found"
)

// AppError wraps an underlying error with a taxonomy kind, an HTTP status
// and a safe message.
type AppError struct {
	Err     error
	Kind    error
	Status  int
	Message string
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

// Unwrap exposes the underlying error for errors.Is / errors.As support.
func (e *AppError) Unwrap() error {
	return e.Err
}

// Is matches the taxonomy kind, the underlying error, or the AppError itself.
func (e *AppError) Is(target error) bool {
	if e.Kind != nil && errors.Is(e.Kind, target) {
		return true
	}
	return errors.Is(e.Err, target)
}

// As allows casting to AppError or the wrapped error in a chain.
func (e *AppError) As(target any) bool {
	if t, ok := target.(**AppError); ok {
		*t = e
		return true
	}
	if e.Err == nil {
		return false
	}
	return errors.As(e.Err, target)
}

// New creates a new AppError with the provided information.
func New(err error, kind error, status int, message string) *AppError {
	return &AppError{
		Err:     err,
		Kind:    kind,
		Status:  status,
		Message: message,
	}
}

// InvalidInput reports bad caller input. Never retried.
func InvalidInput(message string) *AppError {
	return New(nil, ErrInvalidInput, http.StatusBadRequest, message)
}

// Upstream wraps a failed external call (LLM provider, store) as unavailable.
func Upstream(err error, message string) *AppError {
	return New(err, ErrUpstreamUnavailable, http.StatusBadGateway, message)
}

// Duplicate reports a create that collides with an existing open record.
func Duplicate(message string) *AppError {
	return New(nil, ErrDuplicate, http.StatusConflict, message)
}

// NotFound reports a lookup for an unknown identifier.
func NotFound(message string) *AppError {
	return New(nil, ErrNotFound, http.StatusNotFound, message)
}

// InvalidState reports an operation rejected by the record's lifecycle.
func InvalidState(message string) *AppError {
	return New(nil, ErrInvalidState, http.StatusConflict, message)
}

// HTTPStatus extracts the status carried by an AppError chain, defaulting to 500.
func HTTPStatus(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.Status != 0 {
		return appErr.Status
	}
	return http.StatusInternalServerError
}
