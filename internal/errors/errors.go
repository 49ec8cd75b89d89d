package errors

import (
	"net/http"
)

// APIError is the error type surfaced to the HTTP layer
type APIError struct {
	Status   int    `json:"status"`
	Message  string `json:"error"`
	Internal error  `json:"-"`
}

// Error returns the error message
func (e *APIError) Error() string {
	if e.Internal != nil {
		return e.Message + ": " + e.Internal.Error()
	}
	return e.Message
}

// Unwrap returns the wrapped error
func (e *APIError) Unwrap() error {
	return e.Internal
}

// New creates a new API error
func New(status int, message string, err error) *APIError {
	return &APIError{
		Status:   status,
		Message:  message,
		Internal: err,
	}
}

func BadRequest(message string, err error) *APIError {
	return New(http.StatusBadRequest, message, err)
}

func Unauthorized(message string, err error) *APIError {
	return New(http.StatusUnauthorized, message, err)
}

func Forbidden(message string, err error) *APIError {
	return New(http.StatusForbidden, message, err)
}

func NotFound(message string, err error) *APIError {
	return New(http.StatusNotFound, message, err)
}

func Conflict(message string, err error) *APIError {
	return New(http.StatusConflict, message, err)
}

func UnprocessableEntity(message string, err error) *APIError {
	return New(http.StatusUnprocessableEntity, message, err)
}

// NewValidationError wraps a binding/validation failure
func NewValidationError(err error) *APIError {
	return New(http.StatusUnprocessableEntity, "Validation failed", err)
}

// Internal wraps an unexpected error without leaking its detail to the client
func Internal(err error) *APIError {
	return New(http.StatusInternalServerError, "Internal server error", err)
}
