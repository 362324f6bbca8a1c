package api

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/radio-control/radiowake/internal/auth"
	"github.com/radio-control/radiowake/internal/logging"
)

// WakeLimits bounds the timeout a client may ask for.
type WakeLimits struct {
	Default time.Duration
	Max     time.Duration
}

// Timeouts configures the HTTP server.
type Timeouts struct {
	Read  time.Duration
	Write time.Duration
	Idle  time.Duration
}

// Option configures a Server.
type Option func(*Server)

// WithHistory enables the wake history routes.
func WithHistory(h HistoryPort) Option {
	return func(s *Server) { s.history = h }
}

// WithEvents mounts the WebSocket event stream handler.
func WithEvents(h http.Handler) Option {
	return func(s *Server) { s.events = h }
}

// WithAuth protects routes with bearer-token auth.
func WithAuth(m *auth.Middleware) Option {
	return func(s *Server) {
		if m != nil {
			s.auth = m
		}
	}
}

// WithRateLimit bounds wake requests to perSecond with the given burst.
// A non-positive rate disables limiting.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(s *Server) { s.SetRateLimit(perSecond, burst) }
}

// WithWakeLimits sets the default and maximum wake timeouts.
func WithWakeLimits(l WakeLimits) Option {
	return func(s *Server) { s.limits = l }
}

// WithLogger sets the request logger.
func WithLogger(l *logging.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithTimeouts sets the HTTP server timeouts.
func WithTimeouts(t Timeouts) Option {
	return func(s *Server) { s.timeouts = t }
}

// Server represents the HTTP API server.
type Server struct {
	radios  RadioPort
	history HistoryPort
	events  http.Handler
	auth    *auth.Middleware
	logger  *logging.Logger

	mu      sync.RWMutex
	limits  WakeLimits
	limiter *rate.Limiter

	timeouts   Timeouts
	startTime  time.Time
	httpServer *http.Server
	handler    http.Handler
}

// NewServer creates a new API server.
func NewServer(radios RadioPort, opts ...Option) *Server {
	s := &Server{
		radios:    radios,
		auth:      auth.NewMiddleware(nil),
		logger:    logging.NopLogger(),
		limits:    WakeLimits{Default: 10 * time.Second, Max: 2 * time.Minute},
		startTime: time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.WithComponent("api")

	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	s.handler = s.logRequests(mux)
	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// SetWakeLimits replaces the wake timeout limits.
func (s *Server) SetWakeLimits(l WakeLimits) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.limits = l
}

// SetRateLimit replaces the wake rate limiter.
func (s *Server) SetRateLimit(perSecond float64, burst int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if perSecond <= 0 {
		s.limiter = nil
		return
	}
	s.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
}

func (s *Server) wakeLimits() WakeLimits {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.limits
}

func (s *Server) allowWake() bool {
	s.mu.RLock()
	l := s.limiter
	s.mu.RUnlock()
	return l == nil || l.Allow()
}

// Start listens on addr and serves until Stop. It returns nil after a clean
// shutdown.
func (s *Server) Start(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	return s.Serve(ln)
}

// Serve serves on an existing listener.
func (s *Server) Serve(ln net.Listener) error {
	srv := &http.Server{
		Handler:      s.handler,
		ReadTimeout:  s.timeouts.Read,
		WriteTimeout: s.timeouts.Write,
		IdleTimeout:  s.timeouts.Idle,
	}
	s.mu.Lock()
	s.httpServer = srv
	s.mu.Unlock()

	s.logger.Info("HTTP API listening", "addr", ln.Addr().String())
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("HTTP server failed: %w", err)
	}
	return nil
}

// Stop gracefully stops the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.RLock()
	srv := s.httpServer
	s.mu.RUnlock()
	if srv == nil {
		return nil
	}

	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown HTTP server: %w", err)
	}
	return nil
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// Hijack passes through for the WebSocket upgrade.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds())
	})
}
