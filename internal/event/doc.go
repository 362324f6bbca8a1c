// Package event defines the notifications a radio reports while its link
// changes state, and the predicates used to decide whether one of them
// confirms a wake attempt.
//
// # Event Kinds
//
//   - [RadioStateChanged]: radio power state (enabled, disabling, ...)
//   - [LinkStateChanged]: link state of the radio (connected, connecting, ...)
//   - [ConnectivityChanged]: connectivity of a named interface
//   - [HandshakeStateChanged]: authentication handshake progress
//   - [HandshakeConnectionChanged]: handshake supervisor connection
//   - [Reconnecting]: explicit "reconnection in progress" signal
//
// Events travel between processes as an [Envelope] (see [Encode] and [Decode]).
//
// # Predicates
//
// A [Predicate] is a pure function over a single event. [LinkConnected] is the
// default wake condition; [ParsePredicate] builds predicates from config
// strings such as "link", "handshake" or "interface:wlan0".
package event
