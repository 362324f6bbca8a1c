package wake

import (
	"time"

	"github.com/radio-control/radiowake/internal/event"
	"github.com/radio-control/radiowake/internal/gate"
	"github.com/radio-control/radiowake/internal/logging"
)

// Option configures a Coordinator.
type Option func(*Coordinator)

// GateFactory hands out a fresh gate per attempt.
type GateFactory func() *gate.Gate

// WithPredicate sets the condition a notification must meet to confirm a
// wake. The default is event.LinkConnected.
func WithPredicate(p event.Predicate) Option {
	return func(c *Coordinator) {
		if p != nil {
			c.predicate = p
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(c *Coordinator) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithRecorder sets the attempt recorder.
func WithRecorder(r Recorder) Option {
	return func(c *Coordinator) { c.recorder = r }
}

// WithRadioID tags attempts and log lines with a radio ID.
func WithRadioID(id string) Option {
	return func(c *Coordinator) { c.radioID = id }
}

// WithGateFactory replaces the gate factory. Mostly useful in tests.
func WithGateFactory(f GateFactory) Option {
	return func(c *Coordinator) {
		if f != nil {
			c.newGate = f
		}
	}
}

// WithEnabledQuery makes Wake fail with ErrRadioDisabled, without issuing
// anything, when the radio is switched off.
func WithEnabledQuery(q EnabledQuery) Option {
	return func(c *Coordinator) { c.enabled = q }
}

// WithProgressExtension lets progress events extend the wait. When a window
// expires and an event matching progress (but not the wake predicate) was seen
// during it, one more step of waiting is granted. Extra time never exceeds limit.
func WithProgressExtension(progress event.Predicate, step, limit time.Duration) Option {
	return func(c *Coordinator) {
		c.progress = progress
		c.extensionStep = step
		c.extensionMax = limit
	}
}

// WithConnectingAsSatisfied treats a connection already in progress as
// satisfied, for state queries that implement ConnectingQuery.
func WithConnectingAsSatisfied(enabled bool) Option {
	return func(c *Coordinator) { c.connectingOK = enabled }
}
