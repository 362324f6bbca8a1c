package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sourcegraph/conc"

	"github.com/radio-control/radiowake/internal/adapter"
	"github.com/radio-control/radiowake/internal/adapter/fake"
	"github.com/radio-control/radiowake/internal/adapter/jsonrpc"
	"github.com/radio-control/radiowake/internal/audit"
	"github.com/radio-control/radiowake/internal/config"
	"github.com/radio-control/radiowake/internal/event"
	"github.com/radio-control/radiowake/internal/history"
	"github.com/radio-control/radiowake/internal/logging"
	"github.com/radio-control/radiowake/internal/radio"
	"github.com/radio-control/radiowake/internal/telemetry"
	"github.com/radio-control/radiowake/internal/wake"
	"github.com/radio-control/radiowake/internal/wsnotify"
)

// app holds the components shared by serve, wake and simulate.
type app struct {
	cfg     *config.Config
	logger  *logging.Logger
	hub     *telemetry.Hub
	manager *radio.Manager
	audit   *audit.Logger
	history *history.Store
	fakes   map[string]*fake.Radio
	streams []*wsnotify.Client

	streamWG     conc.WaitGroup
	cancelStream context.CancelFunc
}

// newApp builds the hub, recorders and manager and registers every
// configured radio.
func newApp(cfg *config.Config, logger *logging.Logger) (a *app, err error) {
	a = &app{
		cfg:    cfg,
		logger: logger,
		hub:    telemetry.NewHub(cfg.Telemetry.Hub(), logger),
		fakes:  make(map[string]*fake.Radio),
	}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	var recorders []wake.Recorder
	if cfg.Audit.Enabled {
		a.audit, err = audit.NewLogger(audit.Options{
			File:       cfg.Audit.File,
			MaxSizeMB:  cfg.Audit.MaxSizeMB,
			MaxBackups: cfg.Audit.MaxBackups,
			MaxAgeDays: cfg.Audit.MaxAgeDays,
		}, logger)
		if err != nil {
			return a, fmt.Errorf("failed to open audit log: %w", err)
		}
		recorders = append(recorders, a.audit)
	}
	if cfg.History.Enabled {
		a.history, err = history.Open(cfg.History.Path, logger)
		if err != nil {
			return a, fmt.Errorf("failed to open wake history: %w", err)
		}
		recorders = append(recorders, a.history)
	}

	policy, err := policyFromConfig(cfg.Wake)
	if err != nil {
		return a, err
	}
	opts := []radio.Option{radio.WithLogger(logger), radio.WithPolicy(policy)}
	if len(recorders) > 0 {
		opts = append(opts, radio.WithRecorder(wake.MultiRecorder(recorders...)))
	}
	a.manager, err = radio.NewManager(a.hub, opts...)
	if err != nil {
		return a, fmt.Errorf("failed to create radio manager: %w", err)
	}

	for _, rc := range cfg.Radios {
		ra, err := a.buildAdapter(rc)
		if err != nil {
			return a, fmt.Errorf("radio %s: %w", rc.ID, err)
		}
		if err := a.manager.Register(rc.ID, ra.GetModel(), ra); err != nil {
			return a, err
		}
	}
	return a, nil
}

type modelAdapter interface {
	adapter.RadioAdapter
	GetModel() string
}

func (a *app) buildAdapter(rc config.RadioConfig) (modelAdapter, error) {
	switch rc.Type {
	case config.RadioTypeJSONRPC:
		var opts []jsonrpc.Option
		if rc.Vendor != "" {
			opts = append(opts, jsonrpc.WithVendor(rc.Vendor))
		}
		if rc.Stream != "" {
			a.streams = append(a.streams, wsnotify.NewClient(rc.Stream, a.hub, a.logger, wsnotify.WithRadio(rc.ID)))
		}
		return jsonrpc.NewClient(rc.ID, rc.Model, rc.Endpoint, opts...), nil
	case config.RadioTypeFake, "":
		sc := fake.DefaultScenario()
		if rc.Scenario != "" {
			var err error
			if sc, err = fake.LoadScenario(rc.Scenario); err != nil {
				return nil, err
			}
		}
		if rc.Model != "" {
			sc.Model = rc.Model
		}
		r := fake.New(rc.ID, a.hub, sc)
		a.fakes[rc.ID] = r
		return r, nil
	}
	return nil, fmt.Errorf("unsupported radio type %q", rc.Type)
}

// startStreams connects the remote event streams in the background and waits
// up to wait for all of them to come up. A stream that is still down keeps
// retrying; wakes against its radio will time out until it connects.
func (a *app) startStreams(ctx context.Context, wait time.Duration) {
	if len(a.streams) == 0 {
		return
	}
	ctx, a.cancelStream = context.WithCancel(ctx)
	for _, c := range a.streams {
		a.streamWG.Go(func() {
			if err := c.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				a.logger.Warn("event stream stopped", "error", err)
			}
		})
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()
	for _, c := range a.streams {
		select {
		case <-c.Connected():
		case <-timer.C:
			a.logger.Warn("event streams not connected yet", "wait", wait)
			return
		case <-ctx.Done():
			return
		}
	}
}

// Close releases everything newApp created, in reverse order.
func (a *app) Close() {
	if a.cancelStream != nil {
		a.cancelStream()
		a.streamWG.Wait()
	}
	for _, r := range a.fakes {
		r.Close()
	}
	if a.manager != nil {
		a.manager.Close()
	}
	a.hub.Stop()
	if a.history != nil {
		if err := a.history.Close(); err != nil {
			a.logger.Warn("error closing wake history", "error", err)
		}
	}
	if a.audit != nil {
		if err := a.audit.Close(); err != nil {
			a.logger.Warn("error closing audit log", "error", err)
		}
	}
}

// policyFromConfig turns the wake section into a manager policy.
func policyFromConfig(w config.WakeConfig) (radio.Policy, error) {
	pred, err := event.ParsePredicate(w.Predicate)
	if err != nil {
		return radio.Policy{}, fmt.Errorf("wake.predicate: %w", err)
	}
	p := radio.Policy{
		Predicate:             pred,
		ConnectingAsSatisfied: w.ConnectingCountsAsUp,
		CheckEnabled:          w.CheckEnabled,
		Concurrency:           w.Concurrency,
	}
	if w.Progress.Enabled {
		if p.Progress, err = event.ParsePredicate(w.Progress.Predicate); err != nil {
			return radio.Policy{}, fmt.Errorf("wake.progress.predicate: %w", err)
		}
		p.ExtensionStep = w.Progress.Step
		p.ExtensionMax = w.Progress.Max
	}
	return p, nil
}
