// Package telemetry implements the in-process notification hub.
//
// The hub fans radio events out to subscribed observers, assigns monotonic
// per-radio event IDs, and buffers the last N events per radio so stream
// clients can resume after a reconnect. It also retains the latest event of
// each kind per radio. Stream consumers can ask for those to be replayed on
// subscribe so a late client learns the current link state; observers
// registered through Subscribe only ever see live events.
//
// The hub satisfies wake.NotificationSource; Radio returns a source scoped to
// a single radio.
package telemetry
