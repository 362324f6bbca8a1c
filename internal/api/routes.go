package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/radio-control/radiowake/internal/audit"
	"github.com/radio-control/radiowake/internal/auth"
	"github.com/radio-control/radiowake/internal/history"
	"github.com/radio-control/radiowake/internal/wake"
)

const apiV1 = "/api/v1"

// WakeResponse is the body returned for a wake attempt.
type WakeResponse struct {
	AttemptID    string `json:"attemptId"`
	RadioID      string `json:"radioId"`
	Result       string `json:"result"`
	DurationMs   int64  `json:"durationMs"`
	ActionIssued bool   `json:"actionIssued"`
	Shortcut     bool   `json:"shortcut"`
	Extensions   int    `json:"extensions"`
}

// WakeAllItem is one radio's entry in a fleet wake response.
type WakeAllItem struct {
	WakeResponse
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

type wakeRequest struct {
	TimeoutMs *int64 `json:"timeoutMs"`
}

// RegisterRoutes registers all v1 endpoints.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	viewer := func(h http.HandlerFunc) http.HandlerFunc {
		return s.auth.RequireAuth(s.auth.RequireRole(auth.RoleViewer)(h))
	}
	controller := func(h http.HandlerFunc) http.HandlerFunc {
		return s.auth.RequireAuth(s.auth.RequireRole(auth.RoleController)(h))
	}

	// Health endpoint (no auth required)
	mux.HandleFunc("GET "+apiV1+"/health", s.handleHealth)

	mux.HandleFunc("GET "+apiV1+"/radios", viewer(s.handleRadios))
	mux.HandleFunc("POST "+apiV1+"/radios/select", controller(s.handleSelectRadio))
	mux.HandleFunc("GET "+apiV1+"/radios/{id}", viewer(s.handleRadioByID))
	mux.HandleFunc("POST "+apiV1+"/radios/{id}/wake", controller(s.handleWake))
	mux.HandleFunc("GET "+apiV1+"/radios/{id}/wakes", viewer(s.handleHistory))
	mux.HandleFunc("POST "+apiV1+"/wake", controller(s.handleWakeAll))
	mux.HandleFunc("GET "+apiV1+"/wakes", viewer(s.handleHistory))

	if s.events != nil {
		mux.HandleFunc("GET "+apiV1+"/events", viewer(s.events.ServeHTTP))
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	WriteSuccess(w, map[string]any{
		"status":  "ok",
		"uptimeS": int64(time.Since(s.startTime).Seconds()),
		"radios":  len(s.radios.List().Items),
	})
}

func (s *Server) handleRadios(w http.ResponseWriter, r *http.Request) {
	WriteSuccess(w, s.radios.List())
}

func (s *Server) handleRadioByID(w http.ResponseWriter, r *http.Request) {
	rd, err := s.radios.Get(r.PathValue("id"))
	if err != nil {
		writeAPIError(w, err)
		return
	}
	WriteSuccess(w, rd)
}

func (s *Server) handleSelectRadio(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RadioID string `json:"radioId"`
	}
	if err := decodeStrict(r.Body, &req); err != nil || req.RadioID == "" {
		writeAPIError(w, ErrBadRequest)
		return
	}
	if err := s.radios.SetActive(req.RadioID); err != nil {
		writeAPIError(w, err)
		return
	}
	WriteSuccess(w, map[string]string{"activeRadioId": req.RadioID})
}

func (s *Server) handleWake(w http.ResponseWriter, r *http.Request) {
	timeout, err := s.parseTimeout(r)
	if err != nil {
		writeAPIError(w, err)
		return
	}
	if !s.allowWake() {
		w.Header().Set("Retry-After", "1")
		writeAPIError(w, ErrRateLimited)
		return
	}

	at, err := s.radios.Wake(actorContext(r), r.PathValue("id"), timeout)
	if err != nil {
		writeAPIError(w, err)
		return
	}
	WriteSuccess(w, toWakeResponse(at))
}

func (s *Server) handleWakeAll(w http.ResponseWriter, r *http.Request) {
	timeout, err := s.parseTimeout(r)
	if err != nil {
		writeAPIError(w, err)
		return
	}
	if !s.allowWake() {
		w.Header().Set("Retry-After", "1")
		writeAPIError(w, ErrRateLimited)
		return
	}

	outcomes := s.radios.WakeAll(actorContext(r), timeout)
	items := make([]WakeAllItem, 0, len(outcomes))
	for _, o := range outcomes {
		item := WakeAllItem{WakeResponse: toWakeResponse(o.Attempt)}
		item.RadioID = o.RadioID
		if o.Err != nil {
			var body Response
			_, raw := ToAPIError(o.Err)
			_ = json.Unmarshal(raw, &body)
			item.Result = "error"
			item.Code = body.Code
			item.Message = body.Message
		}
		items = append(items, item)
	}
	WriteSuccess(w, map[string]any{"items": items})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeAPIError(w, ErrNoHistory)
		return
	}

	q := history.Query{RadioID: r.PathValue("id")}
	if q.RadioID != "" {
		if _, err := s.radios.Get(q.RadioID); err != nil {
			writeAPIError(w, err)
			return
		}
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > history.MaxLimit {
			WriteError(w, http.StatusBadRequest, "INVALID_RANGE",
				fmt.Sprintf("limit must be between 1 and %d", history.MaxLimit), nil)
			return
		}
		q.Limit = n
	}

	records, err := s.history.List(r.Context(), q)
	if err != nil {
		s.logger.Error("history query failed", "error", err)
		writeAPIError(w, err)
		return
	}
	WriteSuccess(w, map[string]any{"items": records})
}

// parseTimeout reads timeoutMs from the JSON body or query string. Negative
// values come back as a negative duration so the coordinator can reject them.
func (s *Server) parseTimeout(r *http.Request) (time.Duration, error) {
	limits := s.wakeLimits()

	var ms *int64
	if raw := r.URL.Query().Get("timeoutMs"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return 0, ErrBadRequest
		}
		ms = &n
	}

	var req wakeRequest
	if err := decodeStrict(r.Body, &req); err != nil && !errors.Is(err, io.EOF) {
		return 0, ErrBadRequest
	}
	if req.TimeoutMs != nil {
		ms = req.TimeoutMs
	}

	if ms == nil {
		return limits.Default, nil
	}
	if *ms < 0 {
		return -time.Millisecond, nil
	}
	// Bounds are checked in milliseconds so the conversion cannot overflow.
	maxMs := int64(math.MaxInt64 / time.Millisecond)
	if limits.Max > 0 {
		maxMs = limits.Max.Milliseconds()
	}
	if *ms > maxMs {
		return 0, NewAPIError("INVALID_RANGE",
			fmt.Sprintf("timeoutMs must not exceed %d", maxMs),
			http.StatusBadRequest, nil)
	}
	return time.Duration(*ms) * time.Millisecond, nil
}

// decodeStrict decodes exactly one JSON object with no unknown fields. An
// empty body yields io.EOF.
func decodeStrict(body io.Reader, v any) error {
	if body == nil {
		return io.EOF
	}
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return errors.New("trailing data after JSON object")
	}
	return nil
}

func actorContext(r *http.Request) context.Context {
	ctx := r.Context()
	if claims := auth.ClaimsFromContext(ctx); claims != nil {
		ctx = audit.WithActor(ctx, claims.Subject)
	}
	return ctx
}

func toWakeResponse(at wake.Attempt) WakeResponse {
	return WakeResponse{
		AttemptID:    at.ID,
		RadioID:      at.RadioID,
		Result:       at.Result.String(),
		DurationMs:   at.Duration.Milliseconds(),
		ActionIssued: at.ActionIssued,
		Shortcut:     at.Shortcut,
		Extensions:   at.Extensions,
	}
}
