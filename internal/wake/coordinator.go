package wake

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/radio-control/radiowake/internal/event"
	"github.com/radio-control/radiowake/internal/gate"
	"github.com/radio-control/radiowake/internal/logging"
)

// Coordinator runs wake attempts against one radio. It holds no per-attempt
// state and is safe for concurrent use.
type Coordinator struct {
	query  StateQuery
	sink   ActionSink
	source NotificationSource

	enabled      EnabledQuery
	recorder     Recorder
	predicate    event.Predicate
	newGate      GateFactory
	logger       *logging.Logger
	radioID      string
	connectingOK bool

	progress      event.Predicate
	extensionStep time.Duration
	extensionMax  time.Duration
}

// New creates a Coordinator over the three required collaborators.
func New(query StateQuery, sink ActionSink, source NotificationSource, opts ...Option) (*Coordinator, error) {
	switch {
	case query == nil:
		return nil, fmt.Errorf("%w: state query", ErrNilCollaborator)
	case sink == nil:
		return nil, fmt.Errorf("%w: action sink", ErrNilCollaborator)
	case source == nil:
		return nil, fmt.Errorf("%w: notification source", ErrNilCollaborator)
	}

	c := &Coordinator{
		query:     query,
		sink:      sink,
		source:    source,
		predicate: event.LinkConnected(),
		newGate:   gate.New,
		logger:    logging.NopLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.progress != nil && (c.extensionStep <= 0 || c.extensionMax < 0) {
		return nil, fmt.Errorf("%w: progress extension step must be positive and limit non-negative", ErrInvalidTimeout)
	}

	if c.radioID != "" {
		c.logger = c.logger.WithRadio(c.radioID)
	}
	c.logger = c.logger.WithComponent("wake")
	return c, nil
}

// Wake ensures the radio is connected, issuing a reconnect and waiting up to
// timeout for confirmation when it is not. The attempt subscribes to
// notifications before it calls IssueReconnect, so a confirmation sent while
// the reconnect is in flight is not missed.
//
// The result is Woken, TimedOut (with a nil error) or Cancelled (with an error
// wrapping ErrCancelled and the context error). A timeout of zero checks once
// without waiting; a negative timeout returns ErrInvalidTimeout. Collaborator
// failures are returned wrapped, after the subscription has been released.
func (c *Coordinator) Wake(ctx context.Context, timeout time.Duration) (Result, error) {
	return c.WakeUntil(ctx, timeout, c.predicate)
}

// WakeUntil is Wake with a per-call satisfaction predicate.
func (c *Coordinator) WakeUntil(ctx context.Context, timeout time.Duration, pred event.Predicate) (Result, error) {
	if pred == nil {
		pred = c.predicate
	}

	attempt := Attempt{
		ID:      uuid.NewString(),
		RadioID: c.radioID,
		Started: time.Now(),
		Timeout: timeout,
	}
	log := c.logger.WithAttempt(attempt.ID)

	res, err := c.run(ctx, timeout, pred, &attempt, log)

	attempt.Result = res
	attempt.Err = err
	attempt.Duration = time.Since(attempt.Started)

	switch {
	case err != nil && !errors.Is(err, ErrCancelled):
		log.Warn("wake failed", "error", err, "action_issued", attempt.ActionIssued)
	default:
		log.Info("wake finished",
			"result", res.String(),
			"duration_ms", attempt.Duration.Milliseconds(),
			"action_issued", attempt.ActionIssued,
			"extensions", attempt.Extensions)
	}

	if c.recorder != nil {
		c.recorder.RecordWake(context.WithoutCancel(ctx), attempt)
	}
	return res, err
}

func (c *Coordinator) run(ctx context.Context, timeout time.Duration, pred event.Predicate, attempt *Attempt, log *logging.Logger) (Result, error) {
	if timeout < 0 {
		return 0, fmt.Errorf("%w: %s", ErrInvalidTimeout, timeout)
	}
	if err := ctx.Err(); err != nil {
		return Cancelled, fmt.Errorf("%w: %w", ErrCancelled, err)
	}

	if c.enabled != nil {
		on, err := c.enabled.IsEnabled(ctx)
		if err != nil {
			return 0, fmt.Errorf("enabled query: %w", err)
		}
		if !on {
			return 0, ErrRadioDisabled
		}
	}

	ok, err := c.satisfied(ctx)
	if err != nil {
		return 0, err
	}
	if ok {
		attempt.Shortcut = true
		log.Debug("already connected, nothing to do")
		return Woken, nil
	}

	g := c.newGate()
	if g == nil || g.State() != gate.Armed {
		return 0, ErrInvalidGate
	}

	// Observation starts before the reconnect is issued so a confirmation
	// racing with the command is never missed.
	var progressed atomic.Bool
	h, err := c.source.Subscribe(func(ev event.Event) {
		if pred(ev) {
			g.Trigger()
			return
		}
		if c.progress != nil && c.progress(ev) {
			progressed.Store(true)
		}
	})
	if err != nil {
		return 0, fmt.Errorf("subscribe: %w", err)
	}
	defer func() {
		if !c.source.Unsubscribe(h) {
			log.Warn("subscription already released", "handle", string(h))
		}
	}()

	if err := c.sink.IssueReconnect(ctx); err != nil {
		return 0, fmt.Errorf("issue reconnect: %w", err)
	}
	attempt.ActionIssued = true
	log.Debug("reconnect issued, waiting", "timeout_ms", timeout.Milliseconds())

	return c.wait(ctx, g, timeout, &progressed, attempt, log)
}

func (c *Coordinator) satisfied(ctx context.Context) (bool, error) {
	ok, err := c.query.IsSatisfied(ctx)
	if err != nil {
		return false, fmt.Errorf("state query: %w", err)
	}
	if ok || !c.connectingOK {
		return ok, nil
	}

	cq, isConnecting := c.query.(ConnectingQuery)
	if !isConnecting {
		return false, nil
	}
	ok, err = cq.IsConnecting(ctx)
	if err != nil {
		return false, fmt.Errorf("state query: %w", err)
	}
	return ok, nil
}

// wait is the single suspension point of an attempt. Progress extensions
// re-enter the same gate; they never start a second wait phase.
func (c *Coordinator) wait(ctx context.Context, g *gate.Gate, timeout time.Duration, progressed *atomic.Bool, attempt *Attempt, log *logging.Logger) (Result, error) {
	window := timeout
	budget := c.extensionMax

	for {
		fired, err := g.AwaitTrigger(ctx, window)
		if fired {
			return Woken, nil
		}
		if err != nil {
			return Cancelled, fmt.Errorf("%w: %w", ErrCancelled, ctx.Err())
		}

		if c.progress == nil || budget <= 0 || !progressed.Swap(false) {
			return TimedOut, nil
		}
		window = min(c.extensionStep, budget)
		budget -= window
		attempt.Extensions++
		log.Debug("progress observed, extending wait", "extension_ms", window.Milliseconds())
	}
}
