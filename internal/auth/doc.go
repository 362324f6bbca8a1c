// Package auth verifies bearer tokens and enforces roles on the HTTP API.
//
// Tokens are JWTs signed HS256 (shared secret) or RS256 (PEM public key).
// Two roles exist: viewer may read inventory, history and the event stream;
// controller may also issue wakes.
package auth
