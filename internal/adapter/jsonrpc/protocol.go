// Package jsonrpc connects to a remote radio over HTTP JSON-RPC 2.0.
//
// Client implements adapter.RadioAdapter against an endpoint that serves the
// methods link_state, radio_enabled and reconnect. Handler serves the same
// methods for any local adapter, which is how a radiowake instance exposes
// its simulated radios to other instances.
package jsonrpc

import "fmt"

// Method names.
const (
	MethodLinkState    = "link_state"
	MethodRadioEnabled = "radio_enabled"
	MethodReconnect    = "reconnect"
)

// Standard JSON-RPC error codes.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeServerError    = -32000
)

// Request represents a JSON-RPC 2.0 request
type Request struct {
	JSONRPC string   `json:"jsonrpc"`
	Method  string   `json:"method"`
	Params  []string `json:"params,omitempty"`
	ID      any      `json:"id"`
}

// Response represents a JSON-RPC 2.0 response
type Response struct {
	JSONRPC string    `json:"jsonrpc"`
	Result  []string  `json:"result,omitempty"`
	Error   *RPCError `json:"error,omitempty"`
	ID      any       `json:"id"`
}

// RPCError represents a JSON-RPC 2.0 error object
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}
