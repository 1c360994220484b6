package cmd

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/kjourdan1/azaudit/internal/audit"
	"github.com/kjourdan1/azaudit/internal/output"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show CLI audit history",
	Long: `Displays audit events written by azaudit in JSONL format.

By default, reads ~/.azaudit/audit.log and prints the latest events.
Use --tenant to filter on a specific tenant. Scan events carry the run id
of the report they produced.`,
	Args: cobra.NoArgs,
	RunE: runHistory,
}

var historyLimit int

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "max number of events to display")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	initOutput(cmd)
	errOut := cmd.ErrOrStderr()

	events, err := audit.ReadUserAudit()
	if err != nil {
		return output.WrapError(err, "reading audit history")
	}

	tenant := viper.GetString("tenant")
	filtered := make([]audit.Event, 0, len(events))
	for _, event := range events {
		if tenant != "" && event.Tenant != tenant {
			continue
		}
		filtered = append(filtered, event)
	}

	start := 0
	if historyLimit > 0 && len(filtered) > historyLimit {
		start = len(filtered) - historyLimit
	}
	filtered = filtered[start:]

	if jsonOutput {
		output.JSON(filtered)
		return nil
	}
	if len(events) == 0 {
		fmt.Fprintln(errOut, "No audit events found.")
		return nil
	}
	if len(filtered) == 0 {
		fmt.Fprintln(errOut, "No matching audit events.")
		return nil
	}

	bold := color.New(color.Bold)
	bold.Fprintln(errOut, "📜 azaudit history")
	for _, event := range filtered {
		status := color.New(color.FgGreen)
		if event.Result != "success" {
			status = color.New(color.FgRed)
		}
		status.Fprintf(errOut, "  %s", event.Result)
		fmt.Fprintf(errOut, "  %s  op=%s", event.Timestamp, event.Operation)
		if event.Tenant != "" {
			fmt.Fprintf(errOut, "  tenant=%s", event.Tenant)
		}
		if event.Operation == "scan" && event.CorrelationID != "" {
			fmt.Fprintf(errOut, "  run=%s", event.CorrelationID)
		}
		fmt.Fprintf(errOut, "  exit=%d  duration=%dms\n", event.ExitCode, event.DurationMs)
	}

	return nil
}
