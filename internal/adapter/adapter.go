package adapter

import (
	"context"
	"sync"
)

// LinkState is the link state reported by an adapter.
type LinkState string

const (
	LinkConnected    LinkState = "connected"
	LinkConnecting   LinkState = "connecting"
	LinkDisconnected LinkState = "disconnected"
	LinkUnknown      LinkState = "unknown"
)

// ParseLinkState maps a vendor string to a LinkState.
func ParseLinkState(s string) LinkState {
	switch LinkState(s) {
	case LinkConnected, LinkConnecting, LinkDisconnected:
		return LinkState(s)
	}
	return LinkUnknown
}

// RadioAdapter defines the southbound adapter contract for one radio.
type RadioAdapter interface {
	// LinkState returns the current link state.
	LinkState(ctx context.Context) (LinkState, error)

	// Enabled reports whether the radio is powered on.
	Enabled(ctx context.Context) (bool, error)

	// Reconnect asks the radio to (re)establish its link.
	// It returns once the command is accepted, not when the link is up;
	// confirmation arrives as an event.
	Reconnect(ctx context.Context) error
}

// Status values tracked by AdapterBase.
const (
	StatusOnline  = "online"
	StatusOffline = "offline"
	StatusWaking  = "waking"
	StatusUnknown = "unknown"
)

// AdapterBase provides common identity and status for adapter implementations.
type AdapterBase struct {
	// RadioID identifies the radio this adapter controls
	RadioID string

	// Model identifies the radio model
	Model string

	mu     sync.RWMutex
	status string
}

// GetRadioID returns the radio identifier.
func (a *AdapterBase) GetRadioID() string {
	return a.RadioID
}

// GetModel returns the radio model.
func (a *AdapterBase) GetModel() string {
	return a.Model
}

// GetStatus returns the radio status, StatusUnknown until one is set.
func (a *AdapterBase) GetStatus() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.status == "" {
		return StatusUnknown
	}
	return a.status
}

// SetStatus updates the radio status.
func (a *AdapterBase) SetStatus(status string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.status = status
}
