// Package adapter defines the southbound radio contract used by the waker.
//
// An adapter answers two questions (is the link up, is the radio on) and
// accepts one command (reconnect). Vendor failures are normalized to
// ErrInvalidRange, ErrBusy, ErrUnavailable or ErrInternal through
// table-driven token matching, with the vendor error kept for diagnostics.
//
// Implementations:
//   - fake: simulated radio driven by a YAML scenario
//   - jsonrpc: remote radio over HTTP JSON-RPC 2.0
package adapter
