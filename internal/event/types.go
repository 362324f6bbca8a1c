package event

import "time"

// Kind identifies an event variant.
// Convention: "category.action".
type Kind string

const (
	KindRadioState          Kind = "radio.state"
	KindLinkState           Kind = "link.state"
	KindConnectivity        Kind = "connectivity.changed"
	KindHandshakeState      Kind = "handshake.state"
	KindHandshakeConnection Kind = "handshake.connection"
	KindReconnecting        Kind = "link.reconnecting"
)

// Event is the interface that all notifications implement.
type Event interface {
	// Kind returns the variant tag.
	Kind() Kind

	// RadioID returns the radio that reported the event, or "" when unknown.
	RadioID() string

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// baseEvent carries the fields shared by every variant.
type baseEvent struct {
	kind      Kind
	radioID   string
	timestamp time.Time
}

func (e baseEvent) Kind() Kind           { return e.kind }
func (e baseEvent) RadioID() string      { return e.radioID }
func (e baseEvent) Timestamp() time.Time { return e.timestamp }

func newBaseEvent(kind Kind, radioID string) baseEvent {
	return baseEvent{
		kind:      kind,
		radioID:   radioID,
		timestamp: time.Now(),
	}
}

// RadioState is the power state of a radio.
type RadioState string

const (
	RadioStateDisabled  RadioState = "disabled"
	RadioStateDisabling RadioState = "disabling"
	RadioStateEnabled   RadioState = "enabled"
	RadioStateEnabling  RadioState = "enabling"
	RadioStateUnknown   RadioState = "unknown"
)

// LinkState is the state of the radio link.
type LinkState string

const (
	LinkStateConnected    LinkState = "connected"
	LinkStateConnecting   LinkState = "connecting"
	LinkStateDisconnected LinkState = "disconnected"
	LinkStateSuspended    LinkState = "suspended"
	LinkStateUnknown      LinkState = "unknown"
)

// HandshakeState is a step of the authentication handshake.
type HandshakeState string

const (
	HandshakeStateScanning       HandshakeState = "scanning"
	HandshakeStateAssociating    HandshakeState = "associating"
	HandshakeStateAuthenticating HandshakeState = "authenticating"
	HandshakeStateFourWay        HandshakeState = "four_way_handshake"
	HandshakeStateGroup          HandshakeState = "group_handshake"
	HandshakeStateCompleted      HandshakeState = "completed"
	HandshakeStateDisconnected   HandshakeState = "disconnected"
	HandshakeStateFailed         HandshakeState = "failed"
)

// InProgress reports whether s is an intermediate handshake step.
func (s HandshakeState) InProgress() bool {
	switch s {
	case HandshakeStateScanning, HandshakeStateAssociating, HandshakeStateAuthenticating,
		HandshakeStateFourWay, HandshakeStateGroup:
		return true
	}
	return false
}

// -----------------------------------------------------------------------------
// Radio events
// -----------------------------------------------------------------------------

// RadioStateChanged is emitted when the radio power state changes.
type RadioStateChanged struct {
	baseEvent
	State    RadioState
	Previous RadioState
}

// NewRadioStateChanged creates a RadioStateChanged event.
func NewRadioStateChanged(radioID string, state, previous RadioState) RadioStateChanged {
	return RadioStateChanged{
		baseEvent: newBaseEvent(KindRadioState, radioID),
		State:     state,
		Previous:  previous,
	}
}

// -----------------------------------------------------------------------------
// Link events
// -----------------------------------------------------------------------------

// LinkStateChanged is emitted when the radio link changes state.
type LinkStateChanged struct {
	baseEvent
	State  LinkState
	Detail string // vendor detail, e.g. "OBTAINING_IPADDR"
}

// NewLinkStateChanged creates a LinkStateChanged event.
func NewLinkStateChanged(radioID string, state LinkState, detail string) LinkStateChanged {
	return LinkStateChanged{
		baseEvent: newBaseEvent(KindLinkState, radioID),
		State:     state,
		Detail:    detail,
	}
}

// ConnectivityChanged is emitted when connectivity of an interface changes.
type ConnectivityChanged struct {
	baseEvent
	Interface string
	Type      string // e.g. "wifi", "mesh", "ethernet"
	Connected bool
}

// NewConnectivityChanged creates a ConnectivityChanged event.
func NewConnectivityChanged(radioID, iface, ifaceType string, connected bool) ConnectivityChanged {
	return ConnectivityChanged{
		baseEvent: newBaseEvent(KindConnectivity, radioID),
		Interface: iface,
		Type:      ifaceType,
		Connected: connected,
	}
}

// Reconnecting signals that a reconnection is in progress.
type Reconnecting struct {
	baseEvent
	Attempt int
}

// NewReconnecting creates a Reconnecting event.
func NewReconnecting(radioID string, attempt int) Reconnecting {
	return Reconnecting{
		baseEvent: newBaseEvent(KindReconnecting, radioID),
		Attempt:   attempt,
	}
}

// -----------------------------------------------------------------------------
// Handshake events
// -----------------------------------------------------------------------------

// HandshakeStateChanged is emitted on every authentication handshake step.
type HandshakeStateChanged struct {
	baseEvent
	State     HandshakeState
	ErrorCode int // -1 when the vendor reported no error
}

// NewHandshakeStateChanged creates a HandshakeStateChanged event.
func NewHandshakeStateChanged(radioID string, state HandshakeState, errorCode int) HandshakeStateChanged {
	return HandshakeStateChanged{
		baseEvent: newBaseEvent(KindHandshakeState, radioID),
		State:     state,
		ErrorCode: errorCode,
	}
}

// HandshakeConnectionChanged is emitted when the handshake supervisor
// connects or disconnects.
type HandshakeConnectionChanged struct {
	baseEvent
	Connected bool
}

// NewHandshakeConnectionChanged creates a HandshakeConnectionChanged event.
func NewHandshakeConnectionChanged(radioID string, connected bool) HandshakeConnectionChanged {
	return HandshakeConnectionChanged{
		baseEvent: newBaseEvent(KindHandshakeConnection, radioID),
		Connected: connected,
	}
}

// Observer receives delivered events. It may be called on any goroutine,
// including before the Subscribe call that registered it returns.
type Observer func(Event)

// Handle identifies a live subscription.
type Handle string
