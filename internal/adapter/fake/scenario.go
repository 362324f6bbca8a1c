package fake

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/radio-control/radiowake/internal/adapter"
	"github.com/radio-control/radiowake/internal/event"
)

// Fault modes a scenario can inject.
const (
	FaultNone        = ""
	FaultBusy        = "busy"
	FaultUnavailable = "unavailable"
	FaultDisabled    = "disabled"
	// FaultSilent accepts the reconnect but never reports anything.
	FaultSilent = "silent"
)

// Step is one scripted notification played after a reconnect.
type Step struct {
	After     time.Duration `yaml:"after"`
	Event     string        `yaml:"event"`
	State     string        `yaml:"state,omitempty"`
	Detail    string        `yaml:"detail,omitempty"`
	Interface string        `yaml:"interface,omitempty"`
	Type      string        `yaml:"type,omitempty"`
	Connected bool          `yaml:"connected,omitempty"`
	ErrorCode int           `yaml:"error_code,omitempty"`
	Attempt   int           `yaml:"attempt,omitempty"`
}

// Scenario scripts the behaviour of a fake radio.
type Scenario struct {
	Name        string `yaml:"name"`
	Model       string `yaml:"model"`
	InitialLink string `yaml:"initial_link"`
	Disabled    bool   `yaml:"disabled"`
	Fault       string `yaml:"fault"`
	Steps       []Step `yaml:"steps"`
}

// DefaultScenario reconnects through a full handshake in about 200ms.
func DefaultScenario() Scenario {
	return Scenario{
		Name:        "default",
		Model:       "Fake-Radio",
		InitialLink: string(adapter.LinkDisconnected),
		Steps: []Step{
			{After: 10 * time.Millisecond, Event: "reconnecting", Attempt: 1},
			{After: 30 * time.Millisecond, Event: "link", State: string(event.LinkStateConnecting), Detail: "SCANNING"},
			{After: 40 * time.Millisecond, Event: "handshake", State: string(event.HandshakeStateAssociating), ErrorCode: -1},
			{After: 40 * time.Millisecond, Event: "handshake", State: string(event.HandshakeStateAuthenticating), ErrorCode: -1},
			{After: 40 * time.Millisecond, Event: "handshake", State: string(event.HandshakeStateCompleted), ErrorCode: -1},
			{After: 40 * time.Millisecond, Event: "link", State: string(event.LinkStateConnected), Detail: "CONNECTED"},
		},
	}
}

// LoadScenario reads a scenario from a YAML file.
func LoadScenario(path string) (Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Scenario{}, fmt.Errorf("read scenario: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario decodes and validates a YAML scenario.
func ParseScenario(data []byte) (Scenario, error) {
	var sc Scenario
	if err := yaml.UnmarshalStrict(data, &sc); err != nil {
		return Scenario{}, fmt.Errorf("parse scenario: %w", err)
	}
	if err := sc.Validate(); err != nil {
		return Scenario{}, err
	}
	return sc, nil
}

// Validate checks fault names and that every step builds an event.
func (sc Scenario) Validate() error {
	switch sc.Fault {
	case FaultNone, FaultBusy, FaultUnavailable, FaultDisabled, FaultSilent:
	default:
		return fmt.Errorf("scenario %q: unknown fault %q", sc.Name, sc.Fault)
	}

	if sc.InitialLink != "" && adapter.ParseLinkState(sc.InitialLink) == adapter.LinkUnknown {
		return fmt.Errorf("scenario %q: invalid initial_link %q", sc.Name, sc.InitialLink)
	}

	for i, step := range sc.Steps {
		if step.After < 0 {
			return fmt.Errorf("scenario %q step %d: negative delay", sc.Name, i)
		}
		if _, err := step.Build("validate"); err != nil {
			return fmt.Errorf("scenario %q step %d: %w", sc.Name, i, err)
		}
	}
	return nil
}

// Total returns the time the scripted steps take to play.
func (sc Scenario) Total() time.Duration {
	var total time.Duration
	for _, s := range sc.Steps {
		total += s.After
	}
	return total
}

// Build turns the step into an event reported by radioID.
func (s Step) Build(radioID string) (event.Event, error) {
	switch s.Event {
	case "reconnecting":
		return event.NewReconnecting(radioID, s.Attempt), nil
	case "link":
		switch st := event.LinkState(s.State); st {
		case event.LinkStateConnected, event.LinkStateConnecting, event.LinkStateDisconnected,
			event.LinkStateSuspended, event.LinkStateUnknown:
			return event.NewLinkStateChanged(radioID, st, s.Detail), nil
		}
		return nil, fmt.Errorf("invalid link state %q", s.State)
	case "radio":
		switch st := event.RadioState(s.State); st {
		case event.RadioStateDisabled, event.RadioStateDisabling, event.RadioStateEnabled,
			event.RadioStateEnabling, event.RadioStateUnknown:
			return event.NewRadioStateChanged(radioID, st, ""), nil
		}
		return nil, fmt.Errorf("invalid radio state %q", s.State)
	case "handshake":
		st := event.HandshakeState(s.State)
		if !st.InProgress() {
			switch st {
			case event.HandshakeStateCompleted, event.HandshakeStateDisconnected, event.HandshakeStateFailed:
			default:
				return nil, fmt.Errorf("invalid handshake state %q", s.State)
			}
		}
		return event.NewHandshakeStateChanged(radioID, st, s.ErrorCode), nil
	case "handshake_connection":
		return event.NewHandshakeConnectionChanged(radioID, s.Connected), nil
	case "connectivity":
		if s.Interface == "" {
			return nil, fmt.Errorf("connectivity step needs an interface")
		}
		return event.NewConnectivityChanged(radioID, s.Interface, s.Type, s.Connected), nil
	}
	return nil, fmt.Errorf("unknown event %q", s.Event)
}
