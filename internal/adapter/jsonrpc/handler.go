package jsonrpc

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/radio-control/radiowake/internal/adapter"
	"github.com/radio-control/radiowake/internal/logging"
)

// Handler serves a local adapter over JSON-RPC.
type Handler struct {
	radio  adapter.RadioAdapter
	logger *logging.Logger
}

// NewHandler creates a handler for radio. A nil logger discards output.
func NewHandler(radio adapter.RadioAdapter, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Handler{radio: radio, logger: logger.WithComponent("jsonrpc")}
}

// ServeHTTP handles POST requests carrying one JSON-RPC request.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	start := time.Now()
	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeResponse(w, &Response{JSONRPC: "2.0", Error: &RPCError{Code: CodeParseError, Message: "Parse error"}})
		return
	}
	if req.JSONRPC != "2.0" || req.Method == "" {
		h.writeResponse(w, &Response{JSONRPC: "2.0", Error: &RPCError{Code: CodeInvalidRequest, Message: "Invalid Request"}, ID: req.ID})
		return
	}

	resp := h.processRequest(r, &req)
	h.writeResponse(w, resp)
	h.logger.Debug("JSON-RPC request processed", "method", req.Method, "duration_ms", time.Since(start).Milliseconds())
}

func (h *Handler) processRequest(r *http.Request, req *Request) *Response {
	ctx := r.Context()
	resp := &Response{JSONRPC: "2.0", ID: req.ID}

	switch req.Method {
	case MethodLinkState:
		state, err := h.radio.LinkState(ctx)
		if err != nil {
			resp.Error = serverError(err)
			return resp
		}
		resp.Result = []string{string(state)}
	case MethodRadioEnabled:
		on, err := h.radio.Enabled(ctx)
		if err != nil {
			resp.Error = serverError(err)
			return resp
		}
		resp.Result = []string{strconv.FormatBool(on)}
	case MethodReconnect:
		if err := h.radio.Reconnect(ctx); err != nil {
			resp.Error = serverError(err)
			return resp
		}
		resp.Result = []string{""}
	default:
		resp.Error = &RPCError{Code: CodeMethodNotFound, Message: "Method not found"}
	}
	return resp
}

// serverError carries the normalized code as the message so the client's
// token mapping recovers it.
func serverError(err error) *RPCError {
	return &RPCError{Code: CodeServerError, Message: err.Error()}
}

func (h *Handler) writeResponse(w http.ResponseWriter, resp *Response) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.logger.Warn("failed to write JSON-RPC response", "error", err)
	}
}
