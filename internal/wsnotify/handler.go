package wsnotify

import (
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/radio-control/radiowake/internal/event"
	"github.com/radio-control/radiowake/internal/logging"
	"github.com/radio-control/radiowake/internal/telemetry"
)

// Config tunes the stream handler.
type Config struct {
	PingInterval time.Duration
	PongTimeout  time.Duration
	WriteTimeout time.Duration
	SendBuffer   int
}

// DefaultConfig returns the baseline stream settings.
func DefaultConfig() Config {
	return Config{
		PingInterval: 30 * time.Second,
		PongTimeout:  60 * time.Second,
		WriteTimeout: 10 * time.Second,
		SendBuffer:   64,
	}
}

// Handler upgrades HTTP requests to an event stream.
type Handler struct {
	hub      *telemetry.Hub
	cfg      Config
	logger   *logging.Logger
	upgrader websocket.Upgrader
	clients  atomic.Int64
}

// NewHandler creates a stream handler for hub.
func NewHandler(hub *telemetry.Hub, cfg Config, logger *logging.Logger) *Handler {
	def := DefaultConfig()
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = def.PingInterval
	}
	if cfg.PongTimeout <= 0 {
		cfg.PongTimeout = def.PongTimeout
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = def.WriteTimeout
	}
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = def.SendBuffer
	}
	if logger == nil {
		logger = logging.NopLogger()
	}

	return &Handler{
		hub:    hub,
		cfg:    cfg,
		logger: logger.WithComponent("wsnotify"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// ClientCount returns the number of connected stream clients.
func (h *Handler) ClientCount() int {
	return int(h.clients.Load())
}

// streamClient is one connected stream.
type streamClient struct {
	conn     *websocket.Conn
	send     chan event.Envelope
	done     chan struct{}
	doneOnce sync.Once
	dropped  atomic.Int64
}

func (c *streamClient) close() {
	c.doneOnce.Do(func() { close(c.done) })
}

// ServeHTTP accepts query parameters radio (filter) and lastEventId (resume,
// only with radio). The Last-Event-ID header is honoured as well.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	radioID := r.URL.Query().Get("radio")
	lastID := parseLastEventID(r)

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	c := &streamClient{
		conn: conn,
		send: make(chan event.Envelope, h.cfg.SendBuffer),
		done: make(chan struct{}),
	}

	// Resume from the buffer when the client knows where it left off;
	// otherwise start from the retained current state.
	resume := radioID != "" && lastID > 0
	handle, err := h.hub.SubscribeRecords(radioID, !resume, func(rec telemetry.Record) {
		h.enqueue(c, rec)
	})
	if err != nil {
		h.logger.Warn("stream subscribe failed", "error", err)
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "hub unavailable"))
		conn.Close()
		return
	}

	if resume {
		for _, rec := range h.hub.EventsAfter(radioID, lastID) {
			h.enqueue(c, rec)
		}
	}

	h.clients.Add(1)
	h.logger.Info("stream client connected", "radio", radioID, "last_event_id", lastID, "clients", h.ClientCount())

	go h.writePump(c)
	h.readPump(c)

	h.hub.Unsubscribe(handle)
	h.clients.Add(-1)
	h.logger.Info("stream client disconnected", "dropped", c.dropped.Load(), "clients", h.ClientCount())
}

// enqueue never blocks the publisher; a full buffer drops the event.
func (h *Handler) enqueue(c *streamClient, rec telemetry.Record) {
	env, err := event.Encode(rec.ID, rec.Event)
	if err != nil {
		h.logger.Warn("failed to encode event", "error", err)
		return
	}
	select {
	case <-c.done:
	case c.send <- env:
	default:
		c.dropped.Add(1)
	}
}

// writePump sends queued envelopes and periodic pings.
func (h *Handler) writePump(c *streamClient) {
	ticker := time.NewTicker(h.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(h.cfg.WriteTimeout))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case <-h.hub.Done():
			c.conn.SetWriteDeadline(time.Now().Add(h.cfg.WriteTimeout))
			c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"))
			return

		case env := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(h.cfg.WriteTimeout))
			if err := c.conn.WriteJSON(env); err != nil {
				h.logger.Debug("write error", "error", err)
				c.close()
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(h.cfg.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.close()
				return
			}
		}
	}
}

// readPump only detects disconnects; clients send nothing.
func (h *Handler) readPump(c *streamClient) {
	defer c.close()

	c.conn.SetReadLimit(4096)
	c.conn.SetReadDeadline(time.Now().Add(h.cfg.PongTimeout))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(h.cfg.PongTimeout))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("read error", "error", err)
			}
			return
		}
	}
}

func parseLastEventID(r *http.Request) int64 {
	raw := r.URL.Query().Get("lastEventId")
	if raw == "" {
		raw = r.Header.Get("Last-Event-ID")
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 0 {
		return 0
	}
	return id
}
