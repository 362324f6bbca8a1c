package wake

import (
	"context"

	"github.com/radio-control/radiowake/internal/event"
)

// Handle identifies a live subscription on a NotificationSource.
type Handle = event.Handle

// Observer receives notifications from a NotificationSource.
type Observer = event.Observer

// StateQuery reports whether the desired connectivity already holds.
type StateQuery interface {
	IsSatisfied(ctx context.Context) (bool, error)
}

// StateQueryFunc adapts a function to StateQuery.
type StateQueryFunc func(ctx context.Context) (bool, error)

func (f StateQueryFunc) IsSatisfied(ctx context.Context) (bool, error) { return f(ctx) }

// ConnectingQuery is an optional extension of StateQuery for radios that can
// report a connection already under way. It is only consulted when the
// Coordinator is built WithConnectingAsSatisfied.
type ConnectingQuery interface {
	IsConnecting(ctx context.Context) (bool, error)
}

// ActionSink issues the reconnect command. It must not block waiting for the
// connection to come up.
type ActionSink interface {
	IssueReconnect(ctx context.Context) error
}

// ActionSinkFunc adapts a function to ActionSink.
type ActionSinkFunc func(ctx context.Context) error

func (f ActionSinkFunc) IssueReconnect(ctx context.Context) error { return f(ctx) }

// NotificationSource delivers state-change events to subscribed observers.
//
// Observers may be invoked on any goroutine and possibly before Subscribe
// returns. After Unsubscribe returns the observer must not be invoked again.
// Unsubscribe reports whether the handle was live.
type NotificationSource interface {
	Subscribe(obs Observer) (Handle, error)
	Unsubscribe(h Handle) bool
}

// EnabledQuery reports whether the radio is switched on at all.
type EnabledQuery interface {
	IsEnabled(ctx context.Context) (bool, error)
}

// EnabledQueryFunc adapts a function to EnabledQuery.
type EnabledQueryFunc func(ctx context.Context) (bool, error)

func (f EnabledQueryFunc) IsEnabled(ctx context.Context) (bool, error) { return f(ctx) }

// Recorder receives a record of every completed attempt.
type Recorder interface {
	RecordWake(ctx context.Context, a Attempt)
}

// RecorderFunc adapts a function to Recorder.
type RecorderFunc func(ctx context.Context, a Attempt)

func (f RecorderFunc) RecordWake(ctx context.Context, a Attempt) { f(ctx, a) }

// MultiRecorder fans an attempt out to every non-nil recorder in order.
func MultiRecorder(recorders ...Recorder) Recorder {
	return RecorderFunc(func(ctx context.Context, a Attempt) {
		for _, r := range recorders {
			if r != nil {
				r.RecordWake(ctx, a)
			}
		}
	})
}
