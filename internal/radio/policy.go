package radio

import (
	"time"

	"github.com/radio-control/radiowake/internal/event"
)

// Policy is the wake behaviour applied to every radio. It can be swapped at
// runtime with Manager.SetPolicy; attempts already running keep the policy
// they started with.
type Policy struct {
	// Predicate decides which event confirms the wake.
	Predicate event.Predicate
	// Progress, when non-nil, lets matching events extend the wait by
	// ExtensionStep, up to ExtensionMax in total.
	Progress      event.Predicate
	ExtensionStep time.Duration
	ExtensionMax  time.Duration
	// ConnectingAsSatisfied treats a link already connecting as up.
	ConnectingAsSatisfied bool
	// CheckEnabled refuses to wake radios that report themselves disabled.
	CheckEnabled bool
	// Concurrency bounds WakeAll.
	Concurrency int
}

// DefaultPolicy waits for the link to connect and checks the enabled flag.
func DefaultPolicy() Policy {
	return Policy{
		Predicate:    event.LinkConnected(),
		CheckEnabled: true,
		Concurrency:  4,
	}
}
