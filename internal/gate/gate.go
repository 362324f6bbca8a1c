package gate

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"
)

// ErrWaitCancelled is returned by AwaitTrigger when the waiter's context ends
// before the gate is triggered.
var ErrWaitCancelled = errors.New("wait cancelled")

// State is the lifecycle state of a Gate.
type State int32

const (
	// Armed means the gate has not been triggered yet.
	Armed State = iota
	// Triggered is terminal.
	Triggered
)

func (s State) String() string {
	switch s {
	case Armed:
		return "armed"
	case Triggered:
		return "triggered"
	default:
		return "unknown"
	}
}

// Gate is an armed-then-triggered latch. It is safe for concurrent use by any
// number of triggering and waiting goroutines. A Gate must be created with New.
type Gate struct {
	fired atomic.Bool
	done  chan struct{}
}

// New returns an armed gate.
func New() *Gate {
	return &Gate{done: make(chan struct{})}
}

// Trigger moves the gate to Triggered and releases every waiter. Calls after
// the first are no-ops. It reports whether this call performed the transition.
func (g *Gate) Trigger() bool {
	if !g.fired.CompareAndSwap(false, true) {
		return false
	}
	close(g.done)
	return true
}

// Triggered reports whether the gate has been triggered.
func (g *Gate) Triggered() bool {
	select {
	case <-g.done:
		return true
	default:
		return false
	}
}

// State returns the current state.
func (g *Gate) State() State {
	if g.Triggered() {
		return Triggered
	}
	return Armed
}

// Done returns a channel that is closed once the gate is triggered.
func (g *Gate) Done() <-chan struct{} {
	return g.done
}

// AwaitTrigger blocks until the gate is triggered, the timeout elapses or ctx
// ends. It returns true when the gate was triggered and false on timeout.
// A gate that is already triggered returns true immediately, and a timeout
// of zero or less reports the current state without blocking.
//
// If ctx ends first the error wraps both ErrWaitCancelled and ctx.Err().
// A trigger that is already visible when the timeout or cancellation is
// observed takes precedence.
func (g *Gate) AwaitTrigger(ctx context.Context, timeout time.Duration) (bool, error) {
	if g.Triggered() {
		return true, nil
	}
	if timeout <= 0 {
		return false, nil
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-g.done:
		return true, nil
	case <-timer.C:
		return g.Triggered(), nil
	case <-ctx.Done():
		if g.Triggered() {
			return true, nil
		}
		return false, fmt.Errorf("%w: %w", ErrWaitCancelled, ctx.Err())
	}
}
