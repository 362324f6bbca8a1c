// Package fake provides a simulated radio adapter.
//
// A Radio accepts reconnect commands and plays a scripted Scenario of
// notifications into a Publisher (normally the telemetry hub), updating its
// own link state as the script runs.
package fake

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/radio-control/radiowake/internal/adapter"
	"github.com/radio-control/radiowake/internal/event"
)

// Publisher accepts events produced by the simulated radio.
type Publisher interface {
	Publish(ev event.Event) int64
}

// Radio implements adapter.RadioAdapter for simulation and tests.
type Radio struct {
	adapter.AdapterBase

	pub      Publisher
	scenario Scenario

	mu         sync.Mutex
	link       adapter.LinkState
	enabled    bool
	fault      string
	reconnects int
	trace      func(Step, event.Event)

	stop chan struct{}
	wg   sync.WaitGroup
}

// New creates a fake radio that publishes into pub.
func New(radioID string, pub Publisher, sc Scenario) *Radio {
	model := sc.Model
	if model == "" {
		model = "Fake-Radio"
	}
	link := adapter.ParseLinkState(sc.InitialLink)
	if sc.InitialLink == "" {
		link = adapter.LinkDisconnected
	}

	return &Radio{
		AdapterBase: adapter.AdapterBase{RadioID: radioID, Model: model},
		pub:         pub,
		scenario:    sc,
		link:        link,
		enabled:     !sc.Disabled && sc.Fault != FaultDisabled,
		fault:       sc.Fault,
		stop:        make(chan struct{}),
	}
}

// OnStep registers a callback invoked after each scripted event is published.
func (r *Radio) OnStep(fn func(Step, event.Event)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.trace = fn
}

// LinkState returns the simulated link state.
func (r *Radio) LinkState(ctx context.Context) (adapter.LinkState, error) {
	if err := ctx.Err(); err != nil {
		return adapter.LinkUnknown, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fault == FaultUnavailable {
		return adapter.LinkUnknown, adapter.NormalizeVendorErrorWithVendor(errors.New("NODE_UNAVAILABLE"), nil, "silvus")
	}
	return r.link, nil
}

// Enabled reports whether the simulated radio is powered on.
func (r *Radio) Enabled(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.enabled, nil
}

// Reconnect accepts the command and starts playing the scenario.
func (r *Radio) Reconnect(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	r.reconnects++
	switch {
	case !r.enabled:
		r.mu.Unlock()
		return adapter.NormalizeVendorErrorWithVendor(errors.New("RADIO_DISABLED"), nil, "silvus")
	case r.fault == FaultBusy:
		r.mu.Unlock()
		return adapter.NormalizeVendorErrorWithVendor(errors.New("RADIO_BUSY"), nil, "silvus")
	case r.fault == FaultUnavailable:
		r.mu.Unlock()
		return adapter.NormalizeVendorErrorWithVendor(errors.New("NODE_UNAVAILABLE"), nil, "silvus")
	case r.fault == FaultSilent:
		r.mu.Unlock()
		return nil
	}
	steps := append([]Step(nil), r.scenario.Steps...)
	r.wg.Add(1)
	r.mu.Unlock()

	go r.play(steps)
	return nil
}

func (r *Radio) play(steps []Step) {
	defer r.wg.Done()

	for _, step := range steps {
		timer := time.NewTimer(step.After)
		select {
		case <-r.stop:
			timer.Stop()
			return
		case <-timer.C:
		}

		ev, err := step.Build(r.RadioID)
		if err != nil {
			continue
		}
		r.apply(ev)
		r.pub.Publish(ev)

		r.mu.Lock()
		trace := r.trace
		r.mu.Unlock()
		if trace != nil {
			trace(step, ev)
		}
	}
}

// apply mirrors a scripted event into the radio's own state.
func (r *Radio) apply(ev event.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch e := ev.(type) {
	case event.LinkStateChanged:
		switch e.State {
		case event.LinkStateConnected:
			r.link = adapter.LinkConnected
		case event.LinkStateConnecting:
			r.link = adapter.LinkConnecting
		case event.LinkStateDisconnected, event.LinkStateSuspended:
			r.link = adapter.LinkDisconnected
		}
	case event.ConnectivityChanged:
		if e.Connected {
			r.link = adapter.LinkConnected
		} else {
			r.link = adapter.LinkDisconnected
		}
	case event.RadioStateChanged:
		switch e.State {
		case event.RadioStateEnabled:
			r.enabled = true
		case event.RadioStateDisabled:
			r.enabled = false
		}
	}
}

// Disconnect drops the link and reports it.
func (r *Radio) Disconnect() {
	ev := event.NewLinkStateChanged(r.RadioID, event.LinkStateDisconnected, "DISCONNECTED")
	r.apply(ev)
	r.pub.Publish(ev)
}

// SetEnabled powers the radio on or off and reports the change.
func (r *Radio) SetEnabled(on bool) {
	r.mu.Lock()
	prev := event.RadioStateDisabled
	if r.enabled {
		prev = event.RadioStateEnabled
	}
	r.mu.Unlock()

	state := event.RadioStateDisabled
	if on {
		state = event.RadioStateEnabled
	}
	ev := event.NewRadioStateChanged(r.RadioID, state, prev)
	r.apply(ev)
	r.pub.Publish(ev)
}

// SetFault changes the injected fault at runtime.
func (r *Radio) SetFault(fault string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fault = fault
	if fault == FaultDisabled {
		r.enabled = false
	}
}

// Reconnects returns how many reconnect commands were received.
func (r *Radio) Reconnects() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.reconnects
}

// Close stops any running playback and waits for it to exit.
func (r *Radio) Close() {
	r.mu.Lock()
	select {
	case <-r.stop:
	default:
		close(r.stop)
	}
	r.mu.Unlock()
	r.wg.Wait()
}

var _ adapter.RadioAdapter = (*Radio)(nil)
