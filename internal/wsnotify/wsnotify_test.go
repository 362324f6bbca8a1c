package wsnotify

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radio-control/radiowake/internal/event"
	"github.com/radio-control/radiowake/internal/telemetry"
)

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

type collector struct {
	mu     sync.Mutex
	events []event.Event
}

func (c *collector) Publish(ev event.Event) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
	return int64(len(c.events))
}

func (c *collector) snapshot() []event.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]event.Event(nil), c.events...)
}

func startClient(t *testing.T, c *Client) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Error("client did not stop")
		}
	})

	select {
	case <-c.Connected():
	case <-time.After(2 * time.Second):
		t.Fatal("client never connected")
	}
}

func TestStreamDeliversEvents(t *testing.T) {
	hub := telemetry.NewHub(telemetry.DefaultConfig(), nil)
	defer hub.Stop()
	h := NewHandler(hub, DefaultConfig(), nil)
	srv := httptest.NewServer(h)
	defer srv.Close()

	local := &collector{}
	startClient(t, NewClient(wsURL(srv), local, nil))
	require.Eventually(t, func() bool { return h.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	hub.Publish(event.NewLinkStateChanged("radio-01", event.LinkStateConnected, "CONNECTED"))
	hub.Publish(event.NewConnectivityChanged("radio-02", "wlan0", "wifi", true))

	require.Eventually(t, func() bool { return len(local.snapshot()) == 2 }, 2*time.Second, 5*time.Millisecond)

	events := local.snapshot()
	link, ok := events[0].(event.LinkStateChanged)
	require.True(t, ok)
	assert.Equal(t, event.LinkStateConnected, link.State)
	assert.Equal(t, "radio-01", link.RadioID())
	assert.True(t, event.InterfaceConnected("wlan0")(events[1]))
}

func TestStreamRadioFilterAndStickyState(t *testing.T) {
	hub := telemetry.NewHub(telemetry.DefaultConfig(), nil)
	defer hub.Stop()
	hub.Publish(event.NewLinkStateChanged("radio-01", event.LinkStateDisconnected, ""))

	srv := httptest.NewServer(NewHandler(hub, DefaultConfig(), nil))
	defer srv.Close()

	local := &collector{}
	startClient(t, NewClient(wsURL(srv), local, nil, WithRadio("radio-01")))

	// Retained state arrives first.
	require.Eventually(t, func() bool { return len(local.snapshot()) == 1 }, 2*time.Second, 5*time.Millisecond)

	hub.Publish(event.NewReconnecting("radio-02", 1))
	hub.Publish(event.NewReconnecting("radio-01", 1))

	require.Eventually(t, func() bool { return len(local.snapshot()) == 2 }, 2*time.Second, 5*time.Millisecond)
	for _, ev := range local.snapshot() {
		assert.Equal(t, "radio-01", ev.RadioID())
	}
}

func TestStreamResumesFromLastEventID(t *testing.T) {
	hub := telemetry.NewHub(telemetry.DefaultConfig(), nil)
	defer hub.Stop()
	for i := 1; i <= 5; i++ {
		hub.Publish(event.NewReconnecting("radio-01", i))
	}

	srv := httptest.NewServer(NewHandler(hub, DefaultConfig(), nil))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv)+"?radio=radio-01&lastEventId=3", nil)
	require.NoError(t, err)
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ids []int64
	for len(ids) < 2 {
		var env event.Envelope
		require.NoError(t, conn.ReadJSON(&env))
		ids = append(ids, env.ID)
	}
	assert.Equal(t, []int64{4, 5}, ids)
}

func TestClientReconnectsAfterDrop(t *testing.T) {
	hub := telemetry.NewHub(telemetry.DefaultConfig(), nil)
	defer hub.Stop()
	h := NewHandler(hub, DefaultConfig(), nil)

	var dials atomic.Int32
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if dials.Add(1) == 1 {
			conn, err := upgrader.Upgrade(w, r, nil)
			if err == nil {
				conn.Close()
			}
			return
		}
		h.ServeHTTP(w, r)
	}))
	defer srv.Close()

	local := &collector{}
	startClient(t, NewClient(wsURL(srv), local, nil, WithBackoff(10*time.Millisecond, 50*time.Millisecond)))

	require.Eventually(t, func() bool { return h.ClientCount() == 1 }, 3*time.Second, 5*time.Millisecond)
	assert.GreaterOrEqual(t, dials.Load(), int32(2))

	hub.Publish(event.NewLinkStateChanged("radio-01", event.LinkStateConnected, ""))
	require.Eventually(t, func() bool { return len(local.snapshot()) == 1 }, 2*time.Second, 5*time.Millisecond)
}

func TestClientDropsDuplicateIDs(t *testing.T) {
	c := NewClient("ws://unused", &collector{}, nil)

	assert.True(t, c.advance("radio-01", 1))
	assert.True(t, c.advance("radio-01", 2))
	assert.False(t, c.advance("radio-01", 2))
	assert.True(t, c.advance("radio-02", 1))
	assert.True(t, c.advance("radio-01", 0), "unnumbered events always pass")
}

func TestClientRejectsBadURL(t *testing.T) {
	c := NewClient("://bad", &collector{}, nil)
	err := c.Run(context.Background())
	assert.Error(t, err)
}

func TestHandlerClosesOnHubStop(t *testing.T) {
	hub := telemetry.NewHub(telemetry.DefaultConfig(), nil)
	h := NewHandler(hub, DefaultConfig(), nil)
	srv := httptest.NewServer(h)
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv), nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return h.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	hub.Stop()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err = conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "got %v", err)
	require.Eventually(t, func() bool { return h.ClientCount() == 0 }, time.Second, 5*time.Millisecond)
}
