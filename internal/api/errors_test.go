package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/radio-control/radiowake/internal/adapter"
	"github.com/radio-control/radiowake/internal/radio"
	"github.com/radio-control/radiowake/internal/wake"
)

func TestToAPIError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"not found", fmt.Errorf("lookup: %w", radio.ErrRadioNotFound), http.StatusNotFound, "NOT_FOUND"},
		{"no active", radio.ErrNoActiveRadio, http.StatusNotFound, "NOT_FOUND"},
		{"invalid timeout", wake.ErrInvalidTimeout, http.StatusBadRequest, "INVALID_RANGE"},
		{"disabled", wake.ErrRadioDisabled, http.StatusConflict, "RADIO_DISABLED"},
		{"cancelled", wake.ErrCancelled, http.StatusRequestTimeout, "CANCELLED"},
		{"bad request", ErrBadRequest, http.StatusBadRequest, "BAD_REQUEST"},
		{"rate limited", ErrRateLimited, http.StatusTooManyRequests, "RATE_LIMITED"},
		{"no history", ErrNoHistory, http.StatusServiceUnavailable, "UNAVAILABLE"},
		{"vendor busy", adapter.NormalizeVendorErrorWithVendor(errors.New("RADIO_BUSY"), nil, "silvus"), http.StatusServiceUnavailable, "BUSY"},
		{"wrapped unavailable", fmt.Errorf("issue reconnect: %w", adapter.ErrUnavailable), http.StatusServiceUnavailable, "UNAVAILABLE"},
		{"api error", NewAPIError("INVALID_RANGE", "too long", http.StatusBadRequest, nil), http.StatusBadRequest, "INVALID_RANGE"},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, "INTERNAL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := ToAPIError(tt.err)
			if status != tt.status {
				t.Errorf("Expected status %d, got %d", tt.status, status)
			}
			var resp Response
			if err := json.Unmarshal(body, &resp); err != nil {
				t.Fatalf("Failed to decode body: %v", err)
			}
			if resp.Result != "error" || resp.Code != tt.code {
				t.Errorf("Expected error/%s, got %s/%s", tt.code, resp.Result, resp.Code)
			}
			if resp.CorrelationID == "" {
				t.Error("Expected correlation ID")
			}
		})
	}
}

func TestToAPIErrorNil(t *testing.T) {
	status, body := ToAPIError(nil)
	if status != http.StatusOK || body != nil {
		t.Errorf("Expected 200 with no body, got %d %s", status, body)
	}
}

func TestWriteSuccess(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteSuccess(rec, map[string]string{"k": "v"})

	if rec.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		t.Errorf("Expected application/json, got %s", ct)
	}
	var resp Response
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Result != "ok" {
		t.Errorf("Expected ok, got %s", resp.Result)
	}
}
