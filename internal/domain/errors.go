package domain

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// APIError is the JSON body of every failed HTTP request.
type APIError struct {
	Code      string    `json:"code"`
	Message   string    `json:"message"`
	Details   string    `json:"details,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Error codes carried in APIError.Code
const (
	ErrInvalidInput   = "INVALID_INPUT"
	ErrValidation     = "VALIDATION_ERROR"
	ErrGraphMissing   = "GRAPH_NOT_FOUND"
	ErrNoChain        = "NO_CHAIN_BUILT"
	ErrCacheError     = "CACHE_ERROR"
	ErrRateLimit      = "RATE_LIMIT_EXCEEDED"
	ErrInternalServer = "INTERNAL_SERVER_ERROR"
)

var statusByCode = map[string]int{
	ErrInvalidInput:   http.StatusBadRequest,
	ErrValidation:     http.StatusBadRequest,
	ErrGraphMissing:   http.StatusNotFound,
	ErrNoChain:        http.StatusNotFound,
	ErrCacheError:     http.StatusServiceUnavailable,
	ErrRateLimit:      http.StatusTooManyRequests,
	ErrInternalServer: http.StatusInternalServerError,
}

// HTTPStatus returns the status code the error is served with. Unknown codes are 500.
func (e *APIError) HTTPStatus() int {
	if status, ok := statusByCode[e.Code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// Retryable reports whether the same request may succeed later without changes.
func (e *APIError) Retryable() bool {
	return e.Code == ErrCacheError || e.Code == ErrRateLimit
}

// ValidationError rejects a single request field.
type ValidationError struct {
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Value   interface{} `json:"value"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

// NewAPIError creates an APIError stamped with the current time.
func NewAPIError(code, message, details, requestID string) *APIError {
	return &APIError{
		Code:      code,
		Message:   message,
		Details:   details,
		Timestamp: time.Now().UTC(),
		RequestID: requestID,
	}
}

// APIErrorFrom classifies err by the sentinels and error types of this package. Anything
// unrecognised becomes ErrInternalServer with no details, so internal messages do not leak.
func APIErrorFrom(err error, requestID string) *APIError {
	var validationErr *ValidationError
	switch {
	case errors.As(err, &validationErr):
		return NewAPIError(ErrValidation, validationErr.Error(), validationErr.Field, requestID)
	case errors.Is(err, ErrGraphNotFound):
		return NewAPIError(ErrGraphMissing, "Compatibility graph not found", err.Error(), requestID)
	case errors.Is(err, ErrStoreUnavailable):
		return NewAPIError(ErrCacheError, "Graph store unavailable", err.Error(), requestID)
	case errors.Is(err, ErrNoChainBuilt):
		return NewAPIError(ErrNoChain, "No chain has been built for this graph", "", requestID)
	default:
		return NewAPIError(ErrInternalServer, "Internal server error", "", requestID)
	}
}

// NewValidationError creates a ValidationError for field.
func NewValidationError(field, message string, value interface{}) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
		Value:   value,
	}
}
