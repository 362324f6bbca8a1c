package wsnotify

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/gorilla/websocket"

	"github.com/radio-control/radiowake/internal/event"
	"github.com/radio-control/radiowake/internal/logging"
)

// errStreamClosed is returned by a session that ended without cancellation.
var errStreamClosed = errors.New("event stream closed")

// Publisher receives events decoded from the stream.
type Publisher interface {
	Publish(ev event.Event) int64
}

// Client mirrors a remote event stream into a local Publisher.
type Client struct {
	url     string
	radioID string
	pub     Publisher
	logger  *logging.Logger
	dialer  *websocket.Dialer

	initialInterval time.Duration
	maxInterval     time.Duration

	mu     sync.Mutex
	lastID map[string]int64
	// connected is closed on the first successful dial.
	connected chan struct{}
	connOnce  sync.Once
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithRadio restricts the stream to one radio and enables resume.
func WithRadio(radioID string) ClientOption {
	return func(c *Client) { c.radioID = radioID }
}

// WithBackoff sets the reconnect backoff bounds.
func WithBackoff(initial, max time.Duration) ClientOption {
	return func(c *Client) {
		c.initialInterval = initial
		c.maxInterval = max
	}
}

// NewClient creates a client for the stream at rawURL (ws:// or wss://).
func NewClient(rawURL string, pub Publisher, logger *logging.Logger, opts ...ClientOption) *Client {
	if logger == nil {
		logger = logging.NopLogger()
	}
	c := &Client{
		url:             rawURL,
		pub:             pub,
		logger:          logger.WithComponent("wsnotify-client"),
		dialer:          &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		initialInterval: 500 * time.Millisecond,
		maxInterval:     30 * time.Second,
		lastID:          make(map[string]int64),
		connected:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Connected is closed once the first connection is established.
func (c *Client) Connected() <-chan struct{} {
	return c.connected
}

// Run streams events until ctx ends, reconnecting with exponential backoff
// whenever the connection drops. It returns nil on cancellation.
func (c *Client) Run(ctx context.Context) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.initialInterval
	b.MaxInterval = c.maxInterval
	b.MaxElapsedTime = 0 // retry until cancelled

	op := func() error {
		err := c.session(ctx, b.Reset)
		if ctx.Err() != nil {
			return nil
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		c.logger.Warn("event stream lost, reconnecting", "error", err, "retry_in_ms", wait.Milliseconds())
	}

	err := backoff.RetryNotify(op, backoff.WithContext(b, ctx), notify)
	if ctx.Err() != nil {
		return nil
	}
	return err
}

// session runs one connection until it fails or ctx ends.
func (c *Client) session(ctx context.Context, onConnect func()) error {
	target, err := c.dialURL()
	if err != nil {
		return err
	}

	conn, _, err := c.dialer.DialContext(ctx, target, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", c.url, err)
	}
	defer conn.Close()

	onConnect()
	c.connOnce.Do(func() { close(c.connected) })
	c.logger.Info("event stream connected", "url", c.url, "radio", c.radioID)

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			conn.Close()
		case <-stop:
		}
	}()

	for {
		var env event.Envelope
		if err := conn.ReadJSON(&env); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return errStreamClosed
			}
			return fmt.Errorf("read: %w", err)
		}

		ev, err := event.Decode(env)
		if err != nil {
			c.logger.Warn("dropping undecodable event", "type", string(env.Type), "error", err)
			continue
		}
		if !c.advance(env.Radio, env.ID) {
			continue
		}
		c.pub.Publish(ev)
	}
}

// advance records id for radio and reports whether it is new.
func (c *Client) advance(radio string, id int64) bool {
	if id <= 0 {
		return true
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if id <= c.lastID[radio] {
		return false
	}
	c.lastID[radio] = id
	return true
}

func (c *Client) dialURL() (string, error) {
	u, err := url.Parse(c.url)
	if err != nil {
		return "", backoff.Permanent(fmt.Errorf("parse stream url: %w", err))
	}
	if c.radioID == "" {
		return u.String(), nil
	}

	q := u.Query()
	q.Set("radio", c.radioID)
	c.mu.Lock()
	last := c.lastID[c.radioID]
	c.mu.Unlock()
	if last > 0 {
		q.Set("lastEventId", strconv.FormatInt(last, 10))
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}
