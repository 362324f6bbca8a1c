// Package wsnotify carries radio notifications over WebSocket.
//
// Handler streams a telemetry hub to remote clients as JSON envelopes, with
// optional per-radio filtering and resume from a last event ID. Client dials
// such a stream and republishes every event into a local hub, reconnecting
// with exponential backoff when the stream drops. Together they let a
// coordinator in one process wait on notifications produced in another.
package wsnotify
