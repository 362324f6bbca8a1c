// Package audit writes the append-only wake audit trail.
//
// Every completed wake attempt becomes one JSON line carrying the actor,
// radioId, parameters, outcome and a normalized code. Files rotate through
// lumberjack.
package audit
