package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/radio-control/radiowake/internal/adapter"
	"github.com/radio-control/radiowake/internal/radio"
	"github.com/radio-control/radiowake/internal/wake"
)

// APIError represents an API-layer error with HTTP status code.
type APIError struct {
	Code       string
	Message    string
	Details    any
	StatusCode int
}

// API-layer error codes.
var (
	ErrBadRequest  = errors.New("BAD_REQUEST")
	ErrRateLimited = errors.New("RATE_LIMITED")
	ErrNoHistory   = errors.New("HISTORY_DISABLED")
)

// NewAPIError creates a new API error.
func NewAPIError(code string, message string, statusCode int, details any) *APIError {
	return &APIError{
		Code:       code,
		Message:    message,
		Details:    details,
		StatusCode: statusCode,
	}
}

// Error implements the error interface for APIError.
func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// ToAPIError converts an error to an HTTP status code and JSON body.
func ToAPIError(err error) (int, []byte) {
	if err == nil {
		return http.StatusOK, nil
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode, marshalErrorResponse(apiErr.Code, apiErr.Message, apiErr.Details)
	}

	switch {
	case errors.Is(err, radio.ErrRadioNotFound):
		return http.StatusNotFound, marshalErrorResponse("NOT_FOUND", "Radio not found", nil)
	case errors.Is(err, radio.ErrNoActiveRadio):
		return http.StatusNotFound, marshalErrorResponse("NOT_FOUND", "No active radio", nil)
	case errors.Is(err, wake.ErrInvalidTimeout):
		return http.StatusBadRequest, marshalErrorResponse("INVALID_RANGE", "Timeout must be non-negative", nil)
	case errors.Is(err, wake.ErrRadioDisabled):
		return http.StatusConflict, marshalErrorResponse("RADIO_DISABLED", "Radio is disabled", nil)
	case errors.Is(err, wake.ErrCancelled):
		return http.StatusRequestTimeout, marshalErrorResponse("CANCELLED", "Wake cancelled before confirmation", nil)
	case errors.Is(err, ErrBadRequest):
		return http.StatusBadRequest, marshalErrorResponse("BAD_REQUEST", "Malformed or missing required parameter", nil)
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests, marshalErrorResponse("RATE_LIMITED", "Too many wake requests, retry later", nil)
	case errors.Is(err, ErrNoHistory):
		return http.StatusServiceUnavailable, marshalErrorResponse("UNAVAILABLE", "Wake history is disabled", nil)
	}

	var vendorErr *adapter.VendorError
	if errors.As(err, &vendorErr) {
		code, statusCode := mapAdapterError(vendorErr.Code)
		return statusCode, marshalErrorResponse(code, getErrorMessage(vendorErr.Code, vendorErr.Original), vendorErr.Details)
	}

	for _, target := range []error{adapter.ErrInvalidRange, adapter.ErrBusy, adapter.ErrUnavailable, adapter.ErrInternal} {
		if errors.Is(err, target) {
			code, statusCode := mapAdapterError(target)
			return statusCode, marshalErrorResponse(code, getErrorMessage(target, err), nil)
		}
	}

	return http.StatusInternalServerError, marshalErrorResponse("INTERNAL", "Internal server error", map[string]any{
		"original": err.Error(),
	})
}

// mapAdapterError maps adapter error codes to API codes and HTTP status codes.
func mapAdapterError(adapterErr error) (string, int) {
	switch {
	case errors.Is(adapterErr, adapter.ErrInvalidRange):
		return "INVALID_RANGE", http.StatusBadRequest
	case errors.Is(adapterErr, adapter.ErrBusy):
		return "BUSY", http.StatusServiceUnavailable
	case errors.Is(adapterErr, adapter.ErrUnavailable):
		return "UNAVAILABLE", http.StatusServiceUnavailable
	default:
		return "INTERNAL", http.StatusInternalServerError
	}
}

func getErrorMessage(code error, original error) string {
	switch {
	case errors.Is(code, adapter.ErrInvalidRange):
		return "Parameter value is outside the allowed range"
	case errors.Is(code, adapter.ErrBusy):
		return "Radio is busy, please retry with backoff"
	case errors.Is(code, adapter.ErrUnavailable):
		return "Radio is temporarily unavailable"
	case errors.Is(code, adapter.ErrInternal):
		return "Internal server error"
	default:
		if original != nil {
			return original.Error()
		}
		return "Unknown error"
	}
}

func marshalErrorResponse(code, message string, details any) []byte {
	body, err := json.Marshal(ErrorResponse(code, message, details))
	if err != nil {
		body, _ = json.Marshal(ErrorResponse("INTERNAL", "Failed to marshal error response", nil))
	}
	return body
}
