// Package api implements the radiowake HTTP API.
//
// It exposes the radio inventory, wake commands, wake history and the
// WebSocket event stream behind optional bearer-token auth. Every JSON
// response uses the same envelope: result, data or code/message/details,
// and a correlation ID.
package api
