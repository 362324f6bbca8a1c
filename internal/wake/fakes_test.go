package wake

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/radio-control/radiowake/internal/event"
)

// fakeSource is an in-memory NotificationSource that counts calls.
type fakeSource struct {
	mu           sync.Mutex
	observers    map[Handle]Observer
	next         int
	subscribed   int
	unsubscribed int

	SubscribeErr error
	// OnSubscribe runs inside Subscribe, after registration and before it
	// returns, on the subscribing goroutine.
	OnSubscribe func(obs Observer)
}

func newFakeSource() *fakeSource {
	return &fakeSource{observers: make(map[Handle]Observer)}
}

func (s *fakeSource) Subscribe(obs Observer) (Handle, error) {
	s.mu.Lock()
	if s.SubscribeErr != nil {
		s.mu.Unlock()
		return "", s.SubscribeErr
	}
	s.next++
	h := Handle(fmt.Sprintf("h-%d", s.next))
	s.observers[h] = obs
	s.subscribed++
	hook := s.OnSubscribe
	s.mu.Unlock()

	if hook != nil {
		hook(obs)
	}
	return h, nil
}

func (s *fakeSource) Unsubscribe(h Handle) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.observers[h]; !ok {
		return false
	}
	delete(s.observers, h)
	s.unsubscribed++
	return true
}

// Emit delivers ev to every live observer on the calling goroutine.
func (s *fakeSource) Emit(ev event.Event) {
	s.mu.Lock()
	obs := make([]Observer, 0, len(s.observers))
	for _, o := range s.observers {
		obs = append(obs, o)
	}
	s.mu.Unlock()

	for _, o := range obs {
		o(ev)
	}
}

func (s *fakeSource) counts() (subscribed, unsubscribed, live int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.subscribed, s.unsubscribed, len(s.observers)
}

// fakeRadio implements StateQuery, ConnectingQuery, ActionSink and EnabledQuery.
type fakeRadio struct {
	connected  atomic.Bool
	connecting atomic.Bool
	disabled   atomic.Bool
	reconnects atomic.Int32
	queries    atomic.Int32

	QueryErr     error
	ReconnectErr error
	// OnReconnect runs synchronously inside IssueReconnect.
	OnReconnect func()
}

func (r *fakeRadio) IsSatisfied(ctx context.Context) (bool, error) {
	r.queries.Add(1)
	if r.QueryErr != nil {
		return false, r.QueryErr
	}
	return r.connected.Load(), nil
}

func (r *fakeRadio) IsConnecting(ctx context.Context) (bool, error) {
	return r.connecting.Load(), nil
}

func (r *fakeRadio) IsEnabled(ctx context.Context) (bool, error) {
	return !r.disabled.Load(), nil
}

func (r *fakeRadio) IssueReconnect(ctx context.Context) error {
	r.reconnects.Add(1)
	if r.ReconnectErr != nil {
		return r.ReconnectErr
	}
	if r.OnReconnect != nil {
		r.OnReconnect()
	}
	return nil
}

// plainQuery hides the ConnectingQuery method of a fakeRadio.
type plainQuery struct{ r *fakeRadio }

func (q plainQuery) IsSatisfied(ctx context.Context) (bool, error) { return q.r.IsSatisfied(ctx) }

type captureRecorder struct {
	mu       sync.Mutex
	attempts []Attempt
}

func (c *captureRecorder) RecordWake(_ context.Context, a Attempt) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.attempts = append(c.attempts, a)
}

func (c *captureRecorder) all() []Attempt {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Attempt(nil), c.attempts...)
}

func connected(radioID string) event.Event {
	return event.NewLinkStateChanged(radioID, event.LinkStateConnected, "")
}
