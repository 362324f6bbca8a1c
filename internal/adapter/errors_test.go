package adapter

import (
	"errors"
	"fmt"
	"testing"
)

func TestNormalizeVendorError(t *testing.T) {
	tests := []struct {
		name          string
		vendorErr     error
		vendorPayload any
		expectedCode  error
		expectedMsg   string
	}{
		{
			name:         "nil error returns nil",
			vendorErr:    nil,
			expectedCode: nil,
		},
		{
			name:          "unknown error maps to INTERNAL",
			vendorErr:     errors.New("UNKNOWN_ERROR"),
			vendorPayload: map[string]any{"details": "test"},
			expectedCode:  ErrInternal,
			expectedMsg:   "INTERNAL (vendor: UNKNOWN_ERROR)",
		},
		{
			name:         "generic range error maps to INVALID_RANGE",
			vendorErr:    errors.New("OUT_OF_RANGE"),
			expectedCode: ErrInvalidRange,
			expectedMsg:  "INVALID_RANGE (vendor: OUT_OF_RANGE)",
		},
		{
			name:         "generic busy error maps to BUSY",
			vendorErr:    errors.New("reconnect already IN_PROGRESS"),
			expectedCode: ErrBusy,
			expectedMsg:  "BUSY (vendor: reconnect already IN_PROGRESS)",
		},
		{
			name:         "generic disabled maps to UNAVAILABLE",
			vendorErr:    errors.New("radio disabled"),
			expectedCode: ErrUnavailable,
			expectedMsg:  "UNAVAILABLE (vendor: radio disabled)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := NormalizeVendorError(tt.vendorErr, tt.vendorPayload)

			if tt.expectedCode == nil {
				if result != nil {
					t.Errorf("Expected nil, got %v", result)
				}
				return
			}

			vendorErr, ok := result.(*VendorError)
			if !ok {
				t.Fatalf("Expected VendorError, got %T", result)
			}
			if vendorErr.Code != tt.expectedCode {
				t.Errorf("Expected code %v, got %v", tt.expectedCode, vendorErr.Code)
			}
			if vendorErr.Error() != tt.expectedMsg {
				t.Errorf("Expected message %q, got %q", tt.expectedMsg, vendorErr.Error())
			}
			if fmt.Sprint(vendorErr.Details) != fmt.Sprint(tt.vendorPayload) {
				t.Errorf("Expected payload %v, got %v", tt.vendorPayload, vendorErr.Details)
			}
		})
	}
}

func TestNormalizeVendorErrorWithVendor(t *testing.T) {
	tests := []struct {
		name         string
		vendorErr    error
		vendorID     string
		expectedCode error
	}{
		{"silvus unknown network", errors.New("UNKNOWN_NETWORK: mesh-7"), "silvus", ErrInvalidRange},
		{"silvus reconnect in progress", errors.New("RECONNECT_IN_PROGRESS"), "silvus", ErrBusy},
		{"silvus radio disabled", errors.New("RADIO_DISABLED"), "silvus", ErrUnavailable},
		{"silvus soft boot", errors.New("SOFT_BOOT_IN_PROGRESS"), "silvus", ErrUnavailable},
		{"silvus unknown token", errors.New("SILVUS_UNKNOWN_ERROR"), "silvus", ErrInternal},
		{"unknown vendor falls back to generic", errors.New("OUT_OF_RANGE"), "acme", ErrInvalidRange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := NormalizeVendorErrorWithVendor(tt.vendorErr, nil, tt.vendorID)
			if !errors.Is(result, tt.expectedCode) {
				t.Errorf("Expected %v, got %v", tt.expectedCode, result)
			}
		})
	}
}

func TestNormalizeIsIdempotent(t *testing.T) {
	first := NormalizeVendorErrorWithVendor(errors.New("RF_BUSY"), nil, "silvus")
	wrapped := fmt.Errorf("reconnect: %w", first)

	second := NormalizeVendorError(wrapped, nil)
	if second != wrapped {
		t.Errorf("Expected already normalized error to pass through, got %v", second)
	}
	if !errors.Is(second, ErrBusy) {
		t.Errorf("Expected BUSY to survive, got %v", second)
	}
}

func TestVendorErrorUnwrap(t *testing.T) {
	vendorErr := &VendorError{Code: ErrInvalidRange, Original: errors.New("ORIGINAL_ERROR")}

	if vendorErr.Unwrap() != ErrInvalidRange {
		t.Errorf("Expected unwrapped error %v, got %v", ErrInvalidRange, vendorErr.Unwrap())
	}
}

func TestVendorErrorMappings(t *testing.T) {
	for _, vendor := range []string{"silvus", "generic"} {
		m, exists := VendorErrorMappings[vendor]
		if !exists {
			t.Errorf("Expected vendor mapping for %s to exist", vendor)
			continue
		}
		if len(m.Range) == 0 || len(m.Busy) == 0 || len(m.Unavailable) == 0 {
			t.Errorf("Expected every category populated for %s", vendor)
		}
	}
}

func TestIsRetryable(t *testing.T) {
	if !IsRetryable(NormalizeVendorError(errors.New("BUSY"), nil)) {
		t.Error("Expected BUSY to be retryable")
	}
	if !IsRetryable(NormalizeVendorError(errors.New("OFFLINE"), nil)) {
		t.Error("Expected OFFLINE to be retryable")
	}
	if IsRetryable(NormalizeVendorError(errors.New("BAD_VALUE"), nil)) {
		t.Error("Expected BAD_VALUE not to be retryable")
	}
}
