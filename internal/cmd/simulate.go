package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/radio-control/radiowake/internal/adapter/fake"
	"github.com/radio-control/radiowake/internal/audit"
	"github.com/radio-control/radiowake/internal/event"
	"github.com/radio-control/radiowake/internal/radio"
	"github.com/radio-control/radiowake/internal/telemetry"
)

const simulatedRadioID = "sim-01"

var (
	simScenario string
	simTimeout  time.Duration
	simFault    string
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Wake a scripted fake radio and print what it reports",
	Long: `Play a fake radio scenario against the configured wake policy and print
every event the radio reports, followed by the wake result.

Without --scenario the built-in scenario is used: reconnecting, three
handshake steps, then the link comes up.

Examples:
  # Does the default scenario wake within 2 seconds?
  radiowake simulate --timeout 2s

  # A radio that accepts the reconnect and never answers
  radiowake simulate --fault silent --timeout 500ms`,
	RunE: runSimulate,
}

func init() {
	rootCmd.AddCommand(simulateCmd)

	simulateCmd.Flags().StringVarP(&simScenario, "scenario", "s", "", "YAML scenario file")
	simulateCmd.Flags().DurationVarP(&simTimeout, "timeout", "t", 0, "how long to wait (default: wake.default_timeout)")
	simulateCmd.Flags().StringVar(&simFault, "fault", "", "override the scenario fault (busy, unavailable, disabled, silent)")
}

func runSimulate(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer logger.Close()

	sc := fake.DefaultScenario()
	if simScenario != "" {
		if sc, err = fake.LoadScenario(simScenario); err != nil {
			return err
		}
	}
	if simFault != "" {
		sc.Fault = simFault
		if err := sc.Validate(); err != nil {
			return err
		}
	}
	timeout := cfg.Wake.DefaultTimeout
	if cmd.Flags().Changed("timeout") {
		timeout = simTimeout
	}

	policy, err := policyFromConfig(cfg.Wake)
	if err != nil {
		return err
	}

	hub := telemetry.NewHub(cfg.Telemetry.Hub(), logger)
	defer hub.Stop()
	manager, err := radio.NewManager(hub, radio.WithLogger(logger), radio.WithPolicy(policy))
	if err != nil {
		return err
	}
	defer manager.Close()

	r := fake.New(simulatedRadioID, hub, sc)
	defer r.Close()
	if err := manager.Register(simulatedRadioID, r.GetModel(), r); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	start := time.Now()
	r.OnStep(func(step fake.Step, ev event.Event) {
		fmt.Fprintf(out, "%8s  %-22s %s\n", time.Since(start).Round(time.Millisecond), ev.Kind(), describeStep(step))
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx = audit.WithActor(ctx, "simulate")

	fmt.Fprintf(out, "scenario %q, timeout %s\n", sc.Name, timeout)
	at, err := manager.Wake(ctx, simulatedRadioID, timeout)
	// Stop playback and let the last trace line finish before the result.
	r.Close()
	if err != nil && at.Result == 0 {
		return err
	}
	if perr := printAttempt(cmd, at); perr != nil {
		return perr
	}
	return attemptExit(at, err)
}

func describeStep(s fake.Step) string {
	switch s.Event {
	case "reconnecting":
		return fmt.Sprintf("attempt=%d", s.Attempt)
	case "handshake":
		if s.ErrorCode > 0 {
			return fmt.Sprintf("state=%s error=%d", s.State, s.ErrorCode)
		}
		return "state=" + s.State
	case "handshake_connection":
		return fmt.Sprintf("connected=%t", s.Connected)
	case "connectivity":
		return fmt.Sprintf("interface=%s connected=%t", s.Interface, s.Connected)
	}
	if s.Detail != "" {
		return fmt.Sprintf("state=%s detail=%s", s.State, s.Detail)
	}
	return "state=" + s.State
}
