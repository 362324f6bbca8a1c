package telemetry

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/radio-control/radiowake/internal/event"
)

// collector records delivered events in a thread-safe way.
type collector struct {
	mu     sync.Mutex
	events []event.Event
}

func (c *collector) observe(ev event.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
}

func (c *collector) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.events)
}

func (c *collector) snapshot() []event.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]event.Event(nil), c.events...)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met within 1s")
}

func TestNewHub(t *testing.T) {
	hub := NewHub(Config{}, nil)
	defer hub.Stop()

	if hub.subs == nil || hub.radioIDs == nil || hub.buffers == nil || hub.sticky == nil {
		t.Fatal("Hub maps not initialized")
	}
	if hub.config.EventBufferSize != DefaultConfig().EventBufferSize {
		t.Errorf("Expected default buffer size %d, got %d", DefaultConfig().EventBufferSize, hub.config.EventBufferSize)
	}
}

func TestHubPublishDeliversSynchronously(t *testing.T) {
	hub := NewHub(DefaultConfig(), nil)
	defer hub.Stop()

	c := &collector{}
	if _, err := hub.Subscribe(c.observe); err != nil {
		t.Fatalf("Subscribe() failed: %v", err)
	}

	hub.Publish(event.NewLinkStateChanged("radio-01", event.LinkStateConnected, ""))

	if c.count() != 1 {
		t.Fatalf("Expected 1 delivered event, got %d", c.count())
	}
}

func TestHubRadioScopedSource(t *testing.T) {
	hub := NewHub(Config{EventBufferSize: 10}, nil)
	defer hub.Stop()

	c := &collector{}
	src := hub.Radio("radio-01")
	if _, err := src.Subscribe(c.observe); err != nil {
		t.Fatalf("Subscribe() failed: %v", err)
	}

	hub.Publish(event.NewLinkStateChanged("radio-02", event.LinkStateConnected, ""))
	hub.Publish(event.NewLinkStateChanged("radio-01", event.LinkStateConnected, ""))

	events := c.snapshot()
	if len(events) != 1 {
		t.Fatalf("Expected 1 event for radio-01, got %d", len(events))
	}
	if events[0].RadioID() != "radio-01" {
		t.Errorf("Expected radio-01, got %s", events[0].RadioID())
	}
	if src.RadioID() != "radio-01" {
		t.Errorf("Expected source radio radio-01, got %s", src.RadioID())
	}
}

func TestHubUnsubscribe(t *testing.T) {
	hub := NewHub(Config{EventBufferSize: 10}, nil)
	defer hub.Stop()

	c := &collector{}
	h, err := hub.Subscribe(c.observe)
	if err != nil {
		t.Fatalf("Subscribe() failed: %v", err)
	}

	if !hub.Unsubscribe(h) {
		t.Fatal("Expected first Unsubscribe to report a live handle")
	}
	if hub.Unsubscribe(h) {
		t.Error("Expected second Unsubscribe to report false")
	}

	hub.Publish(event.NewLinkStateChanged("radio-01", event.LinkStateConnected, ""))
	if c.count() != 0 {
		t.Errorf("Expected no delivery after unsubscribe, got %d", c.count())
	}
	if hub.SubscriberCount() != 0 {
		t.Errorf("Expected 0 subscribers, got %d", hub.SubscriberCount())
	}
}

// Once Unsubscribe returns, no delivery may be in flight.
func TestHubUnsubscribeWaitsForInflightDelivery(t *testing.T) {
	hub := NewHub(Config{EventBufferSize: 10}, nil)
	defer hub.Stop()

	entered := make(chan struct{})
	release := make(chan struct{})
	var running atomic.Bool

	h, err := hub.Subscribe(func(ev event.Event) {
		running.Store(true)
		close(entered)
		<-release
		running.Store(false)
	})
	if err != nil {
		t.Fatalf("Subscribe() failed: %v", err)
	}

	go hub.Publish(event.NewReconnecting("radio-01", 1))
	<-entered

	unsubscribed := make(chan struct{})
	go func() {
		hub.Unsubscribe(h)
		close(unsubscribed)
	}()

	select {
	case <-unsubscribed:
		t.Fatal("Unsubscribe returned while a delivery was running")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	<-unsubscribed
	if running.Load() {
		t.Error("Observer still running after Unsubscribe returned")
	}
}

func TestHubStickyReplay(t *testing.T) {
	hub := NewHub(DefaultConfig(), nil)
	defer hub.Stop()

	hub.Publish(event.NewLinkStateChanged("radio-01", event.LinkStateConnecting, ""))
	hub.Publish(event.NewLinkStateChanged("radio-01", event.LinkStateConnected, ""))
	hub.Publish(event.NewRadioStateChanged("radio-01", event.RadioStateEnabled, event.RadioStateEnabling))
	hub.Publish(event.NewLinkStateChanged("radio-02", event.LinkStateDisconnected, ""))

	c := &collector{}
	if _, err := hub.SubscribeRecords("radio-01", true, func(rec Record) { c.observe(rec.Event) }); err != nil {
		t.Fatalf("SubscribeRecords() failed: %v", err)
	}

	waitFor(t, func() bool { return c.count() == 2 })

	var sawConnected bool
	for _, ev := range c.snapshot() {
		if ev.RadioID() != "radio-01" {
			t.Errorf("Replayed event for wrong radio %s", ev.RadioID())
		}
		if link, ok := ev.(event.LinkStateChanged); ok {
			if link.State != event.LinkStateConnected {
				t.Errorf("Expected latest link state connected, got %s", link.State)
			}
			sawConnected = true
		}
	}
	if !sawConnected {
		t.Error("Expected retained link state to be replayed")
	}
}

// Observers only learn about events published after they subscribed, even
// when the hub retains earlier ones.
func TestHubObserversSeeLiveEventsOnly(t *testing.T) {
	hub := NewHub(DefaultConfig(), nil)
	defer hub.Stop()

	hub.Publish(event.NewConnectivityChanged("radio-01", "wlan0", "wifi", true))
	hub.Publish(event.NewLinkStateChanged("radio-01", event.LinkStateConnected, ""))

	scoped := &collector{}
	if _, err := hub.Radio("radio-01").Subscribe(scoped.observe); err != nil {
		t.Fatalf("Subscribe() failed: %v", err)
	}
	all := &collector{}
	if _, err := hub.Subscribe(all.observe); err != nil {
		t.Fatalf("Subscribe() failed: %v", err)
	}
	time.Sleep(20 * time.Millisecond)

	if scoped.count() != 0 || all.count() != 0 {
		t.Fatalf("Expected no retained events for observers, got %d and %d", scoped.count(), all.count())
	}
	if _, ok := hub.Latest("radio-01", event.KindConnectivity); !ok {
		t.Error("Expected connectivity to stay retained for Latest")
	}

	hub.Publish(event.NewLinkStateChanged("radio-01", event.LinkStateDisconnected, ""))
	if scoped.count() != 1 || all.count() != 1 {
		t.Errorf("Expected 1 live event each, got %d and %d", scoped.count(), all.count())
	}
}

func TestHubStickyReplayDisabled(t *testing.T) {
	hub := NewHub(Config{EventBufferSize: 10, RetainLatest: false}, nil)
	defer hub.Stop()

	hub.Publish(event.NewLinkStateChanged("radio-01", event.LinkStateConnected, ""))

	c := &collector{}
	if _, err := hub.Subscribe(c.observe); err != nil {
		t.Fatalf("Subscribe() failed: %v", err)
	}
	time.Sleep(20 * time.Millisecond)

	if c.count() != 0 {
		t.Errorf("Expected no replay, got %d events", c.count())
	}
	if _, ok := hub.Latest("radio-01", event.KindLinkState); ok {
		t.Error("Expected nothing retained")
	}
}

func TestHubLatest(t *testing.T) {
	hub := NewHub(DefaultConfig(), nil)
	defer hub.Stop()

	hub.Publish(event.NewLinkStateChanged("radio-01", event.LinkStateConnecting, ""))
	id := hub.Publish(event.NewLinkStateChanged("radio-01", event.LinkStateConnected, ""))

	rec, ok := hub.Latest("radio-01", event.KindLinkState)
	if !ok {
		t.Fatal("Expected a retained link state")
	}
	if rec.ID != id {
		t.Errorf("Expected retained ID %d, got %d", id, rec.ID)
	}
}

func TestEventIDGeneration(t *testing.T) {
	hub := NewHub(DefaultConfig(), nil)
	defer hub.Stop()

	for i := int64(1); i <= 3; i++ {
		if id := hub.Publish(event.NewReconnecting("radio-01", int(i))); id != i {
			t.Errorf("Expected radio-01 ID %d, got %d", i, id)
		}
	}
	if id := hub.Publish(event.NewReconnecting("radio-02", 1)); id != 1 {
		t.Errorf("Expected radio-02 to start at 1, got %d", id)
	}
}

// Concurrent publishers must leave the highest ID retained and the buffer in
// ID order.
func TestHubConcurrentPublishLatest(t *testing.T) {
	hub := NewHub(Config{EventBufferSize: 1000, RetainLatest: true}, nil)
	defer hub.Stop()

	const goroutines = 16
	const perGoroutine = 50

	var maxID atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perGoroutine; j++ {
				id := hub.Publish(event.NewReconnecting("radio-01", j+1))
				for {
					cur := maxID.Load()
					if id <= cur || maxID.CompareAndSwap(cur, id) {
						break
					}
				}
			}
		}()
	}
	wg.Wait()

	rec, ok := hub.Latest("radio-01", event.KindReconnecting)
	if !ok {
		t.Fatal("Expected a retained reconnecting event")
	}
	if rec.ID != maxID.Load() || rec.ID != goroutines*perGoroutine {
		t.Errorf("Expected retained ID %d, got %d", maxID.Load(), rec.ID)
	}

	records := hub.EventsAfter("radio-01", 0)
	if len(records) != goroutines*perGoroutine {
		t.Fatalf("Expected %d buffered records, got %d", goroutines*perGoroutine, len(records))
	}
	for i := 1; i < len(records); i++ {
		if records[i].ID <= records[i-1].ID {
			t.Fatalf("Buffer out of order at %d: %d after %d", i, records[i].ID, records[i-1].ID)
		}
	}
}

func TestEventIDGenerationRace(t *testing.T) {
	hub := NewHub(DefaultConfig(), nil)
	defer hub.Stop()

	const goroutines = 20
	const perGoroutine = 50

	var mu sync.Mutex
	seen := make(map[int64]bool)
	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perGoroutine; j++ {
				id := hub.getNextEventID("radio-01")
				mu.Lock()
				if seen[id] {
					t.Errorf("Duplicate event ID %d", id)
				}
				seen[id] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if len(seen) != goroutines*perGoroutine {
		t.Errorf("Expected %d unique IDs, got %d", goroutines*perGoroutine, len(seen))
	}
}

func TestHubEventsAfter(t *testing.T) {
	hub := NewHub(Config{EventBufferSize: 5}, nil)
	defer hub.Stop()

	for i := 0; i < 7; i++ {
		hub.Publish(event.NewReconnecting("radio-01", i))
	}

	records := hub.EventsAfter("radio-01", 4)
	if len(records) != 3 {
		t.Fatalf("Expected 3 records after ID 4, got %d", len(records))
	}
	if records[0].ID != 5 {
		t.Errorf("Expected first ID 5, got %d", records[0].ID)
	}

	if all := hub.EventsAfter("radio-01", 0); len(all) != 5 {
		t.Errorf("Expected buffer bounded to 5, got %d", len(all))
	}
	if none := hub.EventsAfter("radio-99", 0); none != nil {
		t.Errorf("Expected nil for unknown radio, got %v", none)
	}
	if radios := hub.Radios(); len(radios) != 1 || radios[0] != "radio-01" {
		t.Errorf("Expected [radio-01], got %v", radios)
	}
}

func TestEventBuffer(t *testing.T) {
	buffer := NewEventBuffer(5)

	if buffer.Capacity() != 5 {
		t.Errorf("Expected capacity 5, got %d", buffer.Capacity())
	}
	for i := int64(1); i <= 7; i++ {
		buffer.Add(Record{ID: i, Event: event.NewReconnecting("radio-01", int(i))})
	}
	if buffer.Size() != 5 {
		t.Errorf("Expected size 5, got %d", buffer.Size())
	}
	if got := buffer.After(2); len(got) != 5 {
		t.Errorf("Expected 5 records after ID 2, got %d", len(got))
	}
	if got := buffer.After(6); len(got) != 1 || got[0].ID != 7 {
		t.Errorf("Expected only ID 7, got %v", got)
	}
}

func TestHubObserverPanicIsContained(t *testing.T) {
	hub := NewHub(DefaultConfig(), nil)
	defer hub.Stop()

	c := &collector{}
	hub.Subscribe(func(event.Event) { panic("boom") })
	hub.Subscribe(c.observe)

	hub.Publish(event.NewReconnecting("radio-01", 1))

	if c.count() != 1 {
		t.Errorf("Expected healthy observer to receive the event, got %d", c.count())
	}
}

func TestHubStop(t *testing.T) {
	hub := NewHub(DefaultConfig(), nil)

	c := &collector{}
	hub.Subscribe(c.observe)
	hub.Stop()
	hub.Stop() // idempotent

	if hub.SubscriberCount() != 0 {
		t.Errorf("Expected 0 subscribers after stop, got %d", hub.SubscriberCount())
	}
	if id := hub.Publish(event.NewReconnecting("radio-01", 1)); id != 0 {
		t.Errorf("Expected Publish after Stop to return 0, got %d", id)
	}
	if c.count() != 0 {
		t.Errorf("Expected no delivery after stop, got %d", c.count())
	}
	if _, err := hub.Subscribe(c.observe); err != ErrHubStopped {
		t.Errorf("Expected ErrHubStopped, got %v", err)
	}
	select {
	case <-hub.Done():
	default:
		t.Error("Expected Done to be closed")
	}
}

func TestConcurrentPublishSubscribe(t *testing.T) {
	hub := NewHub(DefaultConfig(), nil)
	defer hub.Stop()

	var delivered atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			h, err := hub.Subscribe(func(event.Event) { delivered.Add(1) })
			if err != nil {
				t.Errorf("Subscribe() failed: %v", err)
				return
			}
			time.Sleep(time.Millisecond)
			hub.Unsubscribe(h)
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				hub.Publish(event.NewReconnecting("radio-01", j))
			}
		}()
	}
	wg.Wait()

	if hub.SubscriberCount() != 0 {
		t.Errorf("Expected 0 subscribers, got %d", hub.SubscriberCount())
	}
}

func TestHubSubscribeRecords(t *testing.T) {
	hub := NewHub(DefaultConfig(), nil)
	defer hub.Stop()

	hub.Publish(event.NewLinkStateChanged("radio-01", event.LinkStateConnected, ""))

	var mu sync.Mutex
	var ids []int64
	h, err := hub.SubscribeRecords("radio-01", false, func(rec Record) {
		mu.Lock()
		ids = append(ids, rec.ID)
		mu.Unlock()
	})
	if err != nil {
		t.Fatalf("SubscribeRecords() failed: %v", err)
	}
	defer hub.Unsubscribe(h)

	hub.Publish(event.NewReconnecting("radio-02", 1))
	hub.Publish(event.NewReconnecting("radio-01", 1))

	time.Sleep(20 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	if len(ids) != 1 || ids[0] != 2 {
		t.Errorf("Expected only record 2 without sticky replay, got %v", ids)
	}

	if _, err := hub.SubscribeRecords("", false, nil); err == nil {
		t.Error("Expected error for nil observer")
	}
}
