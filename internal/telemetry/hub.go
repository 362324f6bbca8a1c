package telemetry

import (
	"errors"
	"runtime/debug"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/radio-control/radiowake/internal/event"
	"github.com/radio-control/radiowake/internal/logging"
)

// ErrHubStopped is returned by Subscribe after Stop.
var ErrHubStopped = errors.New("telemetry hub stopped")

// Handle identifies a subscription.
type Handle = event.Handle

// Config holds hub tuning.
type Config struct {
	// EventBufferSize is the number of events kept per radio for replay.
	EventBufferSize int
	// RetainLatest keeps the latest event per kind for Latest and for
	// SubscribeRecords callers that ask for sticky replay.
	RetainLatest bool
}

// DefaultConfig returns the baseline hub configuration.
func DefaultConfig() Config {
	return Config{EventBufferSize: 50, RetainLatest: true}
}

// Record is a published event with its per-radio ID.
type Record struct {
	ID    int64
	Event event.Event
}

type stickyKey struct {
	radio string
	kind  event.Kind
}

// subscriber wraps an observer. mu serializes deliveries so that once
// Unsubscribe has flipped active, no call is in flight or will start.
type subscriber struct {
	handle Handle
	radio  string // "" means all radios
	fn     func(Record)

	mu     sync.Mutex
	active bool
	seen   map[stickyKey]int64 // highest ID delivered per radio and kind
}

// Hub distributes events to observers with per-radio buffering.
//
// LOCK ORDERING:
// 1. h.mu - protects subs, radioIDs, buffers, sticky, stopped
// 2. subscriber.mu - serializes delivery to one observer
// 3. EventBuffer.mu - protects individual buffer state
//
// Deliveries never hold h.mu, so observers may publish.
type Hub struct {
	mu       sync.RWMutex
	subs     map[Handle]*subscriber
	radioIDs map[string]int64 // Last event ID per radio
	buffers  map[string]*EventBuffer
	sticky   map[stickyKey]Record

	config  Config
	logger  *logging.Logger
	stopped bool

	done chan struct{}
	wg   sync.WaitGroup
}

// NewHub creates a new hub. A nil logger discards output.
func NewHub(cfg Config, logger *logging.Logger) *Hub {
	if cfg.EventBufferSize <= 0 {
		cfg.EventBufferSize = DefaultConfig().EventBufferSize
	}
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Hub{
		subs:     make(map[Handle]*subscriber),
		radioIDs: make(map[string]int64),
		buffers:  make(map[string]*EventBuffer),
		sticky:   make(map[stickyKey]Record),
		config:   cfg,
		logger:   logger.WithComponent("telemetry"),
		done:     make(chan struct{}),
	}
}

// Subscribe registers obs for events from every radio. Only events published
// after Subscribe is called are delivered.
func (h *Hub) Subscribe(obs event.Observer) (Handle, error) {
	return h.subscribe("", obs)
}

// SubscribeRecords registers fn for records from radioID ("" for all radios).
// Unlike Subscribe it sees event IDs, and retained events are only replayed
// when sticky is set.
func (h *Hub) SubscribeRecords(radioID string, sticky bool, fn func(Record)) (Handle, error) {
	if fn == nil {
		return "", errors.New("nil observer")
	}
	return h.add(radioID, sticky, fn)
}

// Radio returns a NotificationSource that only delivers events from radioID.
func (h *Hub) Radio(radioID string) *RadioSource {
	return &RadioSource{hub: h, radioID: radioID}
}

func (h *Hub) subscribe(radioID string, obs event.Observer) (Handle, error) {
	if obs == nil {
		return "", errors.New("nil observer")
	}
	return h.add(radioID, false, func(rec Record) { obs(rec.Event) })
}

func (h *Hub) add(radioID string, sticky bool, fn func(Record)) (Handle, error) {
	sub := &subscriber{
		handle: Handle(uuid.NewString()),
		radio:  radioID,
		fn:     fn,
		active: true,
		seen:   make(map[stickyKey]int64),
	}

	h.mu.Lock()
	if h.stopped {
		h.mu.Unlock()
		return "", ErrHubStopped
	}
	h.subs[sub.handle] = sub
	var replay []Record
	if sticky && h.config.RetainLatest {
		for k, rec := range h.sticky {
			if radioID == "" || k.radio == radioID {
				replay = append(replay, rec)
			}
		}
	}
	if len(replay) > 0 {
		h.wg.Add(1)
	}
	h.mu.Unlock()

	if len(replay) > 0 {
		sort.Slice(replay, func(i, j int) bool {
			return replay[i].Event.Timestamp().Before(replay[j].Event.Timestamp())
		})
		go func() {
			defer h.wg.Done()
			for _, rec := range replay {
				h.deliver(sub, rec, true)
			}
		}()
	}

	return sub.handle, nil
}

// Unsubscribe removes a subscription. Once it returns the observer is not
// invoked again. It reports whether the handle was live. Observers must not
// unsubscribe themselves from inside a delivery.
func (h *Hub) Unsubscribe(handle Handle) bool {
	h.mu.Lock()
	sub, ok := h.subs[handle]
	delete(h.subs, handle)
	h.mu.Unlock()

	if !ok {
		return false
	}

	sub.mu.Lock()
	sub.active = false
	sub.mu.Unlock()
	return true
}

// Publish assigns ev its per-radio ID, buffers it and delivers it to matching
// observers on the calling goroutine. It returns the assigned ID, or 0 if the
// hub is stopped.
func (h *Hub) Publish(ev event.Event) int64 {
	h.mu.Lock()
	if h.stopped {
		h.mu.Unlock()
		return 0
	}
	// IDs are assigned under h.mu so buffer and retained state follow ID order.
	id := h.nextEventIDLocked(ev.RadioID())
	rec := Record{ID: id, Event: ev}
	h.bufferEvent(rec)
	if h.config.RetainLatest {
		h.sticky[stickyKey{radio: ev.RadioID(), kind: ev.Kind()}] = rec
	}
	targets := make([]*subscriber, 0, len(h.subs))
	for _, sub := range h.subs {
		if sub.radio == "" || sub.radio == ev.RadioID() {
			targets = append(targets, sub)
		}
	}
	h.mu.Unlock()

	for _, sub := range targets {
		h.deliver(sub, rec, false)
	}
	return id
}

// deliver invokes the observer unless it has been removed. A replayed record
// is skipped when a newer event of the same kind was already delivered.
func (h *Hub) deliver(sub *subscriber, rec Record, replay bool) {
	sub.mu.Lock()
	defer sub.mu.Unlock()

	if !sub.active {
		return
	}
	key := stickyKey{radio: rec.Event.RadioID(), kind: rec.Event.Kind()}
	if replay && rec.ID <= sub.seen[key] {
		return
	}
	if rec.ID > sub.seen[key] {
		sub.seen[key] = rec.ID
	}

	h.safeCall(sub.fn, rec)
}

// safeCall invokes an observer and recovers from any panic so that one
// misbehaving observer cannot block delivery to the others.
func (h *Hub) safeCall(fn func(Record), rec Record) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("observer panicked",
				"kind", string(rec.Event.Kind()),
				"radio_id", rec.Event.RadioID(),
				"panic", r,
				"stack", string(debug.Stack()))
		}
	}()
	fn(rec)
}

// getNextEventID returns the next monotonic event ID for a radio.
func (h *Hub) getNextEventID(radioID string) int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.nextEventIDLocked(radioID)
}

// nextEventIDLocked advances the radio's counter. Caller holds h.mu.
func (h *Hub) nextEventIDLocked(radioID string) int64 {
	if radioID == "" {
		radioID = "global"
	}
	h.radioIDs[radioID]++
	return h.radioIDs[radioID]
}

// bufferEvent adds a record to the per-radio buffer. Caller holds h.mu.
//
// EventBuffer references are never removed from h.buffers, so a buffer
// obtained under h.mu stays valid after it is released.
func (h *Hub) bufferEvent(rec Record) {
	radio := rec.Event.RadioID()
	if radio == "" {
		return
	}

	buffer, exists := h.buffers[radio]
	if !exists {
		buffer = NewEventBuffer(h.config.EventBufferSize)
		h.buffers[radio] = buffer
	}
	buffer.Add(rec)
}

// EventsAfter returns buffered records for radioID with an ID above lastID.
func (h *Hub) EventsAfter(radioID string, lastID int64) []Record {
	h.mu.RLock()
	buffer, ok := h.buffers[radioID]
	h.mu.RUnlock()

	if !ok {
		return nil
	}
	return buffer.After(lastID)
}

// Latest returns the retained event of the given kind for radioID.
func (h *Hub) Latest(radioID string, kind event.Kind) (Record, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	rec, ok := h.sticky[stickyKey{radio: radioID, kind: kind}]
	return rec, ok
}

// Radios returns the IDs of radios that have published at least one event.
func (h *Hub) Radios() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	ids := make([]string, 0, len(h.buffers))
	for id := range h.buffers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// SubscriberCount returns the number of live subscriptions.
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Done is closed when the hub stops.
func (h *Hub) Done() <-chan struct{} {
	return h.done
}

// Stop drops every subscription and waits briefly for replay goroutines.
// Publish and Subscribe are no-ops afterwards.
func (h *Hub) Stop() {
	h.mu.Lock()
	if h.stopped {
		h.mu.Unlock()
		return
	}
	h.stopped = true
	close(h.done)
	subs := h.subs
	h.subs = make(map[Handle]*subscriber)
	h.mu.Unlock()

	for _, sub := range subs {
		sub.mu.Lock()
		sub.active = false
		sub.mu.Unlock()
	}

	waited := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(waited)
	}()

	select {
	case <-waited:
	case <-time.After(5 * time.Second):
		h.logger.Warn("replay goroutines still running after stop")
	}
}

// RadioSource is a NotificationSource scoped to one radio.
type RadioSource struct {
	hub     *Hub
	radioID string
}

// Subscribe registers obs for this radio's events published from now on.
// Retained events are never replayed to observers, so a wake can only be
// confirmed by something the radio reports after the attempt subscribed.
func (s *RadioSource) Subscribe(obs event.Observer) (Handle, error) {
	return s.hub.subscribe(s.radioID, obs)
}

// Unsubscribe removes a subscription made through this source.
func (s *RadioSource) Unsubscribe(h Handle) bool {
	return s.hub.Unsubscribe(h)
}

// RadioID returns the radio this source is scoped to.
func (s *RadioSource) RadioID() string {
	return s.radioID
}

// Publish publishes ev through the underlying hub.
func (s *RadioSource) Publish(ev event.Event) int64 {
	return s.hub.Publish(ev)
}
