// Package radio keeps the radio inventory and runs wake attempts against it.
//
// The Manager owns one adapter per radio, tracks each radio's status from the
// telemetry hub, and builds a wake.Coordinator per attempt that listens on the
// hub's radio-scoped source.
package radio
