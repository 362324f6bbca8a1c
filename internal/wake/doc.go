// Package wake coordinates one "wake and wait" attempt: it asks a radio to
// reconnect, then blocks until a notification confirms the link is back or a
// deadline passes.
//
// A [Coordinator] is built over three collaborators:
//
//	StateQuery          is the radio already connected?
//	ActionSink          issue the reconnect command
//	NotificationSource  subscribe to state-change events
//
// Each call to [Coordinator.Wake] creates its own single-shot gate and its
// own subscription, so concurrent calls never share state. The observer is
// registered before the reconnect is issued and is always released before
// Wake returns.
package wake
