package adapter

import (
	"errors"
	"fmt"
	"strings"
)

// Normalized adapter errors.
var (
	ErrInvalidRange = errors.New("INVALID_RANGE")
	ErrBusy         = errors.New("BUSY")
	ErrUnavailable  = errors.New("UNAVAILABLE")
	ErrInternal     = errors.New("INTERNAL")
)

// VendorMap defines the error token mapping for a specific vendor.
type VendorMap struct {
	Range       []string // Tokens that map to INVALID_RANGE
	Busy        []string // Tokens that map to BUSY
	Unavailable []string // Tokens that map to UNAVAILABLE
}

// VendorErrorMappings contains the deterministic error mapping tables for all vendors.
//
// Unknown tokens map to INTERNAL. Unknown vendors fall back to "generic".
// Categories are checked in order Range, Busy, Unavailable.
var VendorErrorMappings = map[string]VendorMap{
	"silvus": {
		Range: []string{
			"PARAMETER_OUT_OF_RANGE",
			"VALUE_OUT_OF_BOUNDS",
			"INVALID_PARAMETER",
			"UNKNOWN_NETWORK",
		},
		Busy: []string{
			"RF_BUSY",
			"RADIO_BUSY",
			"OPERATION_IN_PROGRESS",
			"RECONNECT_IN_PROGRESS",
			"COMMAND_QUEUE_FULL",
			"RATE_LIMITED",
		},
		Unavailable: []string{
			"NODE_UNAVAILABLE",
			"RADIO_OFFLINE",
			"RADIO_DISABLED",
			"REBOOTING",
			"SOFT_BOOT_IN_PROGRESS",
			"SYSTEM_INITIALIZING",
			"NOT_READY",
			"OFFLINE",
		},
	},
	"generic": {
		Range: []string{
			"OUT_OF_RANGE",
			"INVALID_PARAMETER",
			"INVALID_RANGE",
			"BAD_VALUE",
		},
		Busy: []string{
			"BUSY",
			"RETRY",
			"RATE_LIMIT",
			"TOO_MANY_REQUESTS",
			"IN_PROGRESS",
		},
		Unavailable: []string{
			"UNAVAILABLE",
			"DISABLED",
			"REBOOT",
			"OFFLINE",
			"NOT_READY",
		},
	},
}

// VendorError wraps a vendor error with its normalized code.
type VendorError struct {
	Code     error // Normalized code
	Original error // Vendor error
	Details  any   // Vendor payload (opaque)
}

func (e *VendorError) Error() string {
	return fmt.Sprintf("%v (vendor: %v)", e.Code, e.Original)
}

func (e *VendorError) Unwrap() error {
	return e.Code
}

// NormalizeVendorError maps a vendor error using the generic table.
func NormalizeVendorError(vendorErr error, vendorPayload any) error {
	return NormalizeVendorErrorWithVendor(vendorErr, vendorPayload, "generic")
}

// NormalizeVendorErrorWithVendor maps a vendor error using the vendorID table.
// Errors that are already normalized pass through unchanged.
func NormalizeVendorErrorWithVendor(vendorErr error, vendorPayload any, vendorID string) error {
	if vendorErr == nil {
		return nil
	}

	var ve *VendorError
	if errors.As(vendorErr, &ve) {
		return vendorErr
	}

	return &VendorError{
		Code:     mapVendorErrorToCode(vendorErr.Error(), vendorID),
		Original: vendorErr,
		Details:  vendorPayload,
	}
}

// mapVendorErrorToCode maps a vendor error message to a normalized code.
func mapVendorErrorToCode(msg string, vendorID string) error {
	vendorMap, exists := VendorErrorMappings[vendorID]
	if !exists {
		vendorMap = VendorErrorMappings["generic"]
	}

	upperMsg := strings.ToUpper(msg)

	for _, token := range vendorMap.Range {
		if strings.Contains(upperMsg, strings.ToUpper(token)) {
			return ErrInvalidRange
		}
	}

	for _, token := range vendorMap.Busy {
		if strings.Contains(upperMsg, strings.ToUpper(token)) {
			return ErrBusy
		}
	}

	for _, token := range vendorMap.Unavailable {
		if strings.Contains(upperMsg, strings.ToUpper(token)) {
			return ErrUnavailable
		}
	}

	return ErrInternal
}

// IsRetryable reports whether err is a transient adapter condition.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrBusy) || errors.Is(err, ErrUnavailable)
}
