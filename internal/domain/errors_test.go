package domain

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"
)

func TestAPIError(t *testing.T) {
	tests := []struct {
		name      string
		code      string
		message   string
		details   string
		requestID string
	}{
		{
			name:      "Basic error",
			code:      ErrInvalidInput,
			message:   "Invalid chain request",
			details:   "depth must not be negative",
			requestID: "req-123",
		},
		{
			name:      "Graph not found",
			code:      ErrGraphMissing,
			message:   "Unknown graph",
			details:   "no graph uploaded with id 4f2a",
			requestID: "req-456",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewAPIError(tt.code, tt.message, tt.details, tt.requestID)

			if err.Code != tt.code {
				t.Errorf("Expected code %s, got %s", tt.code, err.Code)
			}

			if err.Message != tt.message {
				t.Errorf("Expected message %s, got %s", tt.message, err.Message)
			}

			if err.Details != tt.details {
				t.Errorf("Expected details %s, got %s", tt.details, err.Details)
			}

			if err.RequestID != tt.requestID {
				t.Errorf("Expected requestID %s, got %s", tt.requestID, err.RequestID)
			}

			// Check that timestamp is recent (within last minute)
			if time.Since(err.Timestamp) > time.Minute {
				t.Errorf("Timestamp should be recent, got %v", err.Timestamp)
			}

			expectedError := tt.code + ": " + tt.message
			if err.Error() != expectedError {
				t.Errorf("Expected error string %s, got %s", expectedError, err.Error())
			}
		})
	}
}

func TestValidationError(t *testing.T) {
	tests := []struct {
		name    string
		field   string
		message string
		value   interface{}
	}{
		{
			name:    "String validation error",
			field:   "crossed_tests",
			message: "expected \"recipient-donor\"",
			value:   "2003",
		},
		{
			name:    "Numeric validation error",
			field:   "depth",
			message: "must not be negative",
			value:   -1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewValidationError(tt.field, tt.message, tt.value)

			if err.Field != tt.field {
				t.Errorf("Expected field %s, got %s", tt.field, err.Field)
			}

			if err.Message != tt.message {
				t.Errorf("Expected message %s, got %s", tt.message, err.Message)
			}

			if err.Value != tt.value {
				t.Errorf("Expected value %v, got %v", tt.value, err.Value)
			}

			expectedError := "validation error for field '" + tt.field + "': " + tt.message
			if err.Error() != expectedError {
				t.Errorf("Expected error string %s, got %s", expectedError, err.Error())
			}
		})
	}
}

func TestErrorConstants(t *testing.T) {
	constants := map[string]string{
		"ErrInvalidInput":   ErrInvalidInput,
		"ErrValidation":     ErrValidation,
		"ErrGraphMissing":   ErrGraphMissing,
		"ErrNoChain":        ErrNoChain,
		"ErrCacheError":     ErrCacheError,
		"ErrRateLimit":      ErrRateLimit,
		"ErrInternalServer": ErrInternalServer,
	}

	expectedValues := map[string]string{
		"ErrInvalidInput":   "INVALID_INPUT",
		"ErrValidation":     "VALIDATION_ERROR",
		"ErrGraphMissing":   "GRAPH_NOT_FOUND",
		"ErrNoChain":        "NO_CHAIN_BUILT",
		"ErrCacheError":     "CACHE_ERROR",
		"ErrRateLimit":      "RATE_LIMIT_EXCEEDED",
		"ErrInternalServer": "INTERNAL_SERVER_ERROR",
	}

	for name, actual := range constants {
		expected := expectedValues[name]
		if actual != expected {
			t.Errorf("Expected %s to be %s, got %s", name, expected, actual)
		}
	}
}

func TestAPIErrorFrom(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		code      string
		status    int
		retryable bool
		details   string
	}{
		{
			name:    "validation",
			err:     NewValidationError("depth", "must not be negative", -1),
			code:    ErrValidation,
			status:  http.StatusBadRequest,
			details: "depth",
		},
		{
			name:    "wrapped graph not found",
			err:     fmt.Errorf("lookup 4f2a: %w", ErrGraphNotFound),
			code:    ErrGraphMissing,
			status:  http.StatusNotFound,
			details: "lookup 4f2a: compatibility graph not found",
		},
		{
			name:      "store unavailable",
			err:       fmt.Errorf("%w: %v", ErrStoreUnavailable, errors.New("connection refused")),
			code:      ErrCacheError,
			status:    http.StatusServiceUnavailable,
			retryable: true,
			details:   "shared graph store unavailable: connection refused",
		},
		{
			name:   "no chain built",
			err:    ErrNoChainBuilt,
			code:   ErrNoChain,
			status: http.StatusNotFound,
		},
		{
			name:   "unclassified",
			err:    errors.New("secret internal detail"),
			code:   ErrInternalServer,
			status: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			apiErr := APIErrorFrom(tt.err, "req-1")

			if apiErr.Code != tt.code {
				t.Errorf("Expected code %s, got %s", tt.code, apiErr.Code)
			}
			if apiErr.HTTPStatus() != tt.status {
				t.Errorf("Expected status %d, got %d", tt.status, apiErr.HTTPStatus())
			}
			if apiErr.Retryable() != tt.retryable {
				t.Errorf("Expected retryable %v, got %v", tt.retryable, apiErr.Retryable())
			}
			if apiErr.Details != tt.details {
				t.Errorf("Expected details %q, got %q", tt.details, apiErr.Details)
			}
			if apiErr.RequestID != "req-1" {
				t.Errorf("Expected requestID req-1, got %s", apiErr.RequestID)
			}
		})
	}
}

func TestAPIError_HTTPStatus(t *testing.T) {
	statuses := map[string]int{
		ErrInvalidInput:   http.StatusBadRequest,
		ErrValidation:     http.StatusBadRequest,
		ErrGraphMissing:   http.StatusNotFound,
		ErrNoChain:        http.StatusNotFound,
		ErrCacheError:     http.StatusServiceUnavailable,
		ErrRateLimit:      http.StatusTooManyRequests,
		ErrInternalServer: http.StatusInternalServerError,
		"SOMETHING_ELSE":  http.StatusInternalServerError,
	}

	for code, expected := range statuses {
		if got := NewAPIError(code, "", "", "").HTTPStatus(); got != expected {
			t.Errorf("Expected %s to be served with %d, got %d", code, expected, got)
		}
	}
	if !NewAPIError(ErrRateLimit, "", "", "").Retryable() {
		t.Error("Expected rate limit errors to be retryable")
	}
}
