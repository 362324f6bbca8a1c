package radio

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sourcegraph/conc/pool"

	"github.com/radio-control/radiowake/internal/adapter"
	"github.com/radio-control/radiowake/internal/event"
	"github.com/radio-control/radiowake/internal/logging"
	"github.com/radio-control/radiowake/internal/telemetry"
	"github.com/radio-control/radiowake/internal/wake"
)

var (
	// ErrRadioNotFound is returned for an unknown radio ID.
	ErrRadioNotFound = errors.New("radio not found")
	// ErrDuplicateRadio is returned when registering an ID twice.
	ErrDuplicateRadio = errors.New("radio already registered")
	// ErrNoActiveRadio is returned when no radio is selected.
	ErrNoActiveRadio = errors.New("no active radio")
)

// Radio is the inventory view of one radio.
type Radio struct {
	ID       string       `json:"id"`
	Model    string       `json:"model"`
	Status   string       `json:"status"`
	LastSeen time.Time    `json:"lastSeen,omitempty"`
	LastWake *WakeSummary `json:"lastWake,omitempty"`
}

// WakeSummary describes the most recent wake attempt on a radio.
type WakeSummary struct {
	AttemptID    string    `json:"attemptId"`
	Result       string    `json:"result"`
	At           time.Time `json:"at"`
	DurationMs   int64     `json:"durationMs"`
	ActionIssued bool      `json:"actionIssued"`
	Error        string    `json:"error,omitempty"`
}

// RadioList is the response shape for the radio inventory.
type RadioList struct {
	ActiveRadioID string  `json:"activeRadioId"`
	Items         []Radio `json:"items"`
}

// Outcome is one radio's result from WakeAll.
type Outcome struct {
	RadioID string
	Attempt wake.Attempt
	Err     error
}

type entry struct {
	radio   Radio
	adapter adapter.RadioAdapter
	waking  int
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the manager logger.
func WithLogger(l *logging.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithRecorder receives every completed attempt.
func WithRecorder(r wake.Recorder) Option {
	return func(m *Manager) { m.recorder = r }
}

// WithPolicy sets the initial wake policy.
func WithPolicy(p Policy) Option {
	return func(m *Manager) { m.policy = p }
}

// Manager manages radio inventory, status and wake attempts.
type Manager struct {
	hub      *telemetry.Hub
	logger   *logging.Logger
	recorder wake.Recorder

	mu            sync.RWMutex
	radios        map[string]*entry
	activeRadioID string
	policy        Policy

	handle telemetry.Handle
}

// NewManager creates a manager that listens for confirmations on hub.
func NewManager(hub *telemetry.Hub, opts ...Option) (*Manager, error) {
	if hub == nil {
		return nil, errors.New("telemetry hub is required")
	}
	m := &Manager{
		hub:    hub,
		logger: logging.NopLogger(),
		radios: make(map[string]*entry),
		policy: DefaultPolicy(),
	}
	for _, opt := range opts {
		opt(m)
	}
	if err := validatePolicy(m.policy); err != nil {
		return nil, err
	}
	m.logger = m.logger.WithComponent("radio")

	handle, err := hub.Subscribe(m.observe)
	if err != nil {
		return nil, fmt.Errorf("subscribe to hub: %w", err)
	}
	m.handle = handle
	return m, nil
}

func validatePolicy(p Policy) error {
	if p.Predicate == nil {
		return fmt.Errorf("%w: policy predicate is required", event.ErrInvalidPredicate)
	}
	if p.Concurrency < 1 {
		return fmt.Errorf("policy concurrency must be at least 1, got %d", p.Concurrency)
	}
	if p.Progress != nil && (p.ExtensionStep <= 0 || p.ExtensionMax < 0) {
		return fmt.Errorf("%w: progress extension step must be positive and limit non-negative", wake.ErrInvalidTimeout)
	}
	return nil
}

// SetPolicy replaces the wake policy for future attempts.
func (m *Manager) SetPolicy(p Policy) error {
	if err := validatePolicy(p); err != nil {
		return err
	}
	m.mu.Lock()
	m.policy = p
	m.mu.Unlock()
	m.logger.Info("wake policy updated",
		"progress_extension", p.Progress != nil,
		"connecting_as_satisfied", p.ConnectingAsSatisfied,
		"concurrency", p.Concurrency)
	return nil
}

// Policy returns the current wake policy.
func (m *Manager) Policy() Policy {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.policy
}

// Register adds a radio. The first radio registered becomes active.
func (m *Manager) Register(radioID, model string, a adapter.RadioAdapter) error {
	if radioID == "" {
		return errors.New("radio id is required")
	}
	if a == nil {
		return fmt.Errorf("radio %s: adapter is required", radioID)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.radios[radioID]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateRadio, radioID)
	}
	m.radios[radioID] = &entry{
		radio:   Radio{ID: radioID, Model: model, Status: adapter.StatusUnknown},
		adapter: a,
	}
	if m.activeRadioID == "" {
		m.activeRadioID = radioID
	}
	m.logger.Info("radio registered", "radio_id", radioID, "model", model)
	return nil
}

// Remove drops a radio from the inventory.
func (m *Manager) Remove(radioID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.radios[radioID]; !exists {
		return fmt.Errorf("%w: %s", ErrRadioNotFound, radioID)
	}
	delete(m.radios, radioID)
	if m.activeRadioID == radioID {
		m.activeRadioID = ""
	}
	return nil
}

// SetActive selects the radio used when none is named.
func (m *Manager) SetActive(radioID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.radios[radioID]; !exists {
		return fmt.Errorf("%w: %s", ErrRadioNotFound, radioID)
	}
	m.activeRadioID = radioID
	return nil
}

// GetActive returns the active radio ID.
func (m *Manager) GetActive() (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.activeRadioID == "" {
		return "", ErrNoActiveRadio
	}
	return m.activeRadioID, nil
}

// List returns the inventory sorted by ID.
func (m *Manager) List() *RadioList {
	m.mu.RLock()
	defer m.mu.RUnlock()

	items := make([]Radio, 0, len(m.radios))
	for _, e := range m.radios {
		items = append(items, e.radio.clone())
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })

	return &RadioList{ActiveRadioID: m.activeRadioID, Items: items}
}

// Get returns a single radio.
func (m *Manager) Get(radioID string) (Radio, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, exists := m.radios[radioID]
	if !exists {
		return Radio{}, fmt.Errorf("%w: %s", ErrRadioNotFound, radioID)
	}
	return e.radio.clone(), nil
}

func (r Radio) clone() Radio {
	if r.LastWake != nil {
		w := *r.LastWake
		r.LastWake = &w
	}
	return r
}

// Refresh polls the adapter for link state and updates the radio status.
func (m *Manager) Refresh(ctx context.Context, radioID string) (Radio, error) {
	a, err := m.adapterFor(radioID)
	if err != nil {
		return Radio{}, err
	}

	status := adapter.StatusOffline
	ls, err := a.LinkState(ctx)
	switch {
	case err != nil:
		status = adapter.StatusUnknown
	case ls == adapter.LinkConnected:
		status = adapter.StatusOnline
	}

	m.mu.Lock()
	if e, ok := m.radios[radioID]; ok && e.waking == 0 {
		m.setStatusLocked(e, status)
	}
	m.mu.Unlock()

	if err != nil {
		return Radio{}, fmt.Errorf("refresh radio %s: %w", radioID, err)
	}
	return m.Get(radioID)
}

// RefreshAll refreshes every radio, logging failures.
func (m *Manager) RefreshAll(ctx context.Context) {
	for _, r := range m.List().Items {
		if _, err := m.Refresh(ctx, r.ID); err != nil {
			m.logger.WithRadio(r.ID).Warn("radio refresh failed", "error", err)
		}
	}
}

func (m *Manager) adapterFor(radioID string) (adapter.RadioAdapter, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, exists := m.radios[radioID]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrRadioNotFound, radioID)
	}
	return e.adapter, nil
}

// Wake runs one wake attempt against radioID and returns its record.
func (m *Manager) Wake(ctx context.Context, radioID string, timeout time.Duration) (wake.Attempt, error) {
	m.mu.Lock()
	e, exists := m.radios[radioID]
	if !exists {
		m.mu.Unlock()
		return wake.Attempt{RadioID: radioID}, fmt.Errorf("%w: %s", ErrRadioNotFound, radioID)
	}
	a := e.adapter
	policy := m.policy
	previous := e.radio.Status
	e.waking++
	m.setStatusLocked(e, adapter.StatusWaking)
	m.mu.Unlock()

	var attempt wake.Attempt
	capture := wake.RecorderFunc(func(_ context.Context, at wake.Attempt) { attempt = at })

	coord, err := m.coordinator(radioID, a, policy, wake.MultiRecorder(capture, m.recorder))
	if err != nil {
		m.finishWake(radioID, previous, wake.Attempt{RadioID: radioID}, err)
		return wake.Attempt{RadioID: radioID}, err
	}

	_, err = coord.Wake(ctx, timeout)
	m.finishWake(radioID, previous, attempt, err)
	return attempt, err
}

func (m *Manager) coordinator(radioID string, a adapter.RadioAdapter, p Policy, rec wake.Recorder) (*wake.Coordinator, error) {
	opts := []wake.Option{
		wake.WithRadioID(radioID),
		wake.WithLogger(m.logger),
		wake.WithPredicate(p.Predicate),
		wake.WithRecorder(rec),
		wake.WithConnectingAsSatisfied(p.ConnectingAsSatisfied),
	}
	if p.CheckEnabled {
		opts = append(opts, wake.WithEnabledQuery(wake.EnabledQueryFunc(a.Enabled)))
	}
	if p.Progress != nil {
		opts = append(opts, wake.WithProgressExtension(p.Progress, p.ExtensionStep, p.ExtensionMax))
	}

	q := linkQuery{a: a}
	return wake.New(q, wake.ActionSinkFunc(a.Reconnect), m.hub.Radio(radioID), opts...)
}

func (m *Manager) finishWake(radioID, previous string, at wake.Attempt, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.radios[radioID]
	if !ok {
		return
	}
	e.waking--

	status := previous
	switch {
	case err == nil && at.Result == wake.Woken:
		status = adapter.StatusOnline
	case err == nil && at.Result == wake.TimedOut:
		status = adapter.StatusOffline
	case errors.Is(err, wake.ErrRadioDisabled), errors.Is(err, adapter.ErrUnavailable):
		status = adapter.StatusOffline
	}
	if e.waking == 0 {
		m.setStatusLocked(e, status)
	}

	if at.ID != "" {
		summary := &WakeSummary{
			AttemptID:    at.ID,
			Result:       at.Result.String(),
			At:           at.Started,
			DurationMs:   at.Duration.Milliseconds(),
			ActionIssued: at.ActionIssued,
		}
		if err != nil {
			summary.Error = err.Error()
			if at.Result == 0 {
				summary.Result = "error"
			}
		}
		e.radio.LastWake = summary
	}
}

// setStatusLocked updates status and mirrors it to adapters that track one.
func (m *Manager) setStatusLocked(e *entry, status string) {
	e.radio.Status = status
	e.radio.LastSeen = time.Now()
	if s, ok := e.adapter.(interface{ SetStatus(string) }); ok {
		s.SetStatus(status)
	}
}

// WakeAll wakes every registered radio concurrently, bounded by the policy
// concurrency, and returns one outcome per radio ordered by ID.
func (m *Manager) WakeAll(ctx context.Context, timeout time.Duration) []Outcome {
	ids := make([]string, 0)
	for _, r := range m.List().Items {
		ids = append(ids, r.ID)
	}

	p := pool.NewWithResults[Outcome]().WithMaxGoroutines(m.Policy().Concurrency)
	for _, id := range ids {
		p.Go(func() Outcome {
			at, err := m.Wake(ctx, id, timeout)
			return Outcome{RadioID: id, Attempt: at, Err: err}
		})
	}
	return p.Wait()
}

// observe keeps status current from link events published by the radios.
// It runs on hub delivery goroutines and must not block.
func (m *Manager) observe(ev event.Event) {
	var status string
	switch e := ev.(type) {
	case event.LinkStateChanged:
		switch e.State {
		case event.LinkStateConnected:
			status = adapter.StatusOnline
		case event.LinkStateDisconnected, event.LinkStateSuspended:
			status = adapter.StatusOffline
		default:
			return
		}
	case event.RadioStateChanged:
		if e.State != event.RadioStateDisabled {
			return
		}
		status = adapter.StatusOffline
	default:
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if en, ok := m.radios[ev.RadioID()]; ok && en.waking == 0 {
		m.setStatusLocked(en, status)
	}
}

// Close stops status tracking.
func (m *Manager) Close() {
	m.hub.Unsubscribe(m.handle)
}

// linkQuery answers the coordinator's state questions from the adapter.
type linkQuery struct {
	a adapter.RadioAdapter
}

func (q linkQuery) IsSatisfied(ctx context.Context) (bool, error) {
	ls, err := q.a.LinkState(ctx)
	if err != nil {
		return false, err
	}
	return ls == adapter.LinkConnected, nil
}

func (q linkQuery) IsConnecting(ctx context.Context) (bool, error) {
	ls, err := q.a.LinkState(ctx)
	if err != nil {
		return false, err
	}
	return ls == adapter.LinkConnecting, nil
}

var (
	_ wake.StateQuery      = linkQuery{}
	_ wake.ConnectingQuery = linkQuery{}
)
