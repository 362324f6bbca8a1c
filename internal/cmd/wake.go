package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/radio-control/radiowake/internal/audit"
	"github.com/radio-control/radiowake/internal/wake"
)

// Exit codes of the wake and simulate commands.
const (
	ExitWoken     = 0
	ExitFailure   = 1
	ExitTimedOut  = 2
	ExitCancelled = 3
)

var (
	wakeRadio   string
	wakeTimeout time.Duration
	wakeJSON    bool
)

var wakeCmd = &cobra.Command{
	Use:   "wake",
	Short: "Wake one configured radio and wait for its link",
	Long: `Ask a configured radio to reconnect and wait for the link to come up.

Exit status is 0 when the radio woke, 2 when the wait timed out, 3 when it
was interrupted and 1 on any other error.

Examples:
  # Wake the active (first configured) radio with the configured default timeout
  radiowake wake

  # Wake a specific radio, waiting at most 30 seconds
  radiowake wake --radio radio-02 --timeout 30s`,
	RunE: runWake,
}

func init() {
	rootCmd.AddCommand(wakeCmd)

	wakeCmd.Flags().StringVarP(&wakeRadio, "radio", "r", "", "radio ID (default: the first configured radio)")
	wakeCmd.Flags().DurationVarP(&wakeTimeout, "timeout", "t", 0, "how long to wait (default: wake.default_timeout)")
	wakeCmd.Flags().BoolVar(&wakeJSON, "json", false, "print the attempt as JSON")
}

func runWake(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer logger.Close()

	a, err := newApp(cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	radioID := wakeRadio
	if radioID == "" {
		if radioID, err = a.manager.GetActive(); err != nil {
			return err
		}
	}
	timeout := cfg.Wake.DefaultTimeout
	if cmd.Flags().Changed("timeout") {
		timeout = wakeTimeout
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx = audit.WithActor(ctx, "cli")

	a.startStreams(ctx, streamConnectWait)

	at, err := a.manager.Wake(ctx, radioID, timeout)
	if err != nil && at.Result != wake.Cancelled {
		return err
	}
	if perr := printAttempt(cmd, at); perr != nil {
		return perr
	}
	return attemptExit(at, err)
}

// attemptExit converts a finished attempt into the command's exit status.
func attemptExit(at wake.Attempt, err error) error {
	switch at.Result {
	case wake.Woken:
		return nil
	case wake.TimedOut:
		return &ExitError{Code: ExitTimedOut, Err: fmt.Errorf("radio %s did not wake within %s", at.RadioID, at.Timeout)}
	case wake.Cancelled:
		if err == nil {
			err = wake.ErrCancelled
		}
		return &ExitError{Code: ExitCancelled, Err: err}
	}
	if err != nil {
		return err
	}
	return &ExitError{Code: ExitFailure, Err: fmt.Errorf("radio %s: no result", at.RadioID)}
}

type attemptView struct {
	AttemptID    string `json:"attemptId"`
	RadioID      string `json:"radioId"`
	Result       string `json:"result"`
	DurationMs   int64  `json:"durationMs"`
	ActionIssued bool   `json:"actionIssued"`
	Shortcut     bool   `json:"shortcut"`
	Extensions   int    `json:"extensions"`
}

func printAttempt(cmd *cobra.Command, at wake.Attempt) error {
	out := cmd.OutOrStdout()
	if wakeJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(attemptView{
			AttemptID:    at.ID,
			RadioID:      at.RadioID,
			Result:       at.Result.String(),
			DurationMs:   at.Duration.Milliseconds(),
			ActionIssued: at.ActionIssued,
			Shortcut:     at.Shortcut,
			Extensions:   at.Extensions,
		})
	}

	fmt.Fprintf(out, "%s: %s after %s", at.RadioID, at.Result, at.Duration.Round(time.Millisecond))
	switch {
	case at.Shortcut:
		fmt.Fprint(out, " (already up, no reconnect sent)")
	case at.Extensions > 0:
		fmt.Fprintf(out, " (%d extensions)", at.Extensions)
	}
	fmt.Fprintln(out)
	return nil
}
