package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/radio-control/radiowake/internal/history"
)

var (
	historyRadio string
	historyLimit int
	historySince time.Duration
	historyJSON  bool
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recorded wake attempts",
	Long: `List wake attempts from the history database, newest first.

Examples:
  # Last 20 attempts for radio-01
  radiowake history --radio radio-01 --limit 20

  # Everything from the last hour as JSON
  radiowake history --since 1h --json`,
	RunE: runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().StringVarP(&historyRadio, "radio", "r", "", "only this radio")
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", history.DefaultLimit, "maximum number of attempts")
	historyCmd.Flags().DurationVar(&historySince, "since", 0, "only attempts newer than this (e.g. 1h, 30m)")
	historyCmd.Flags().BoolVar(&historyJSON, "json", false, "print JSON instead of a table")
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer logger.Close()

	if !cfg.History.Enabled {
		return errors.New("wake history is disabled (history.enabled)")
	}
	if historyLimit < 1 || historyLimit > history.MaxLimit {
		return fmt.Errorf("--limit must be between 1 and %d", history.MaxLimit)
	}

	store, err := history.Open(cfg.History.Path, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	q := history.Query{RadioID: historyRadio, Limit: historyLimit}
	if historySince > 0 {
		q.Since = time.Now().Add(-historySince)
	}
	records, err := store.List(cmd.Context(), q)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if historyJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(records)
	}
	if len(records) == 0 {
		fmt.Fprintln(out, "No wake attempts recorded.")
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "STARTED\tRADIO\tRESULT\tCODE\tDURATION\tACTOR\tERROR")
	for _, r := range records {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			r.Started.Local().Format(time.DateTime),
			r.RadioID,
			r.Result,
			r.Code,
			(time.Duration(r.DurationMs) * time.Millisecond).String(),
			r.Actor,
			r.Error,
		)
	}
	return tw.Flush()
}
