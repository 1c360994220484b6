package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kjourdan1/azaudit/internal/doctor"
	"github.com/kjourdan1/azaudit/internal/exitcode"
	"github.com/kjourdan1/azaudit/internal/output"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check prerequisites and environment readiness",
	Long: `Verify that the Azure CLI is installed, that a session is active with
at least one enabled subscription, that the Compute and Network providers
are registered, and that azaudit.yaml is valid.

Each check reports ✅ (pass), ❌ (fail), or ⚠️ (warning) with an
actionable fix suggestion.

Exit code 0 if all critical checks pass, 1 otherwise.`,
	Args: cobra.NoArgs,
	RunE: runDoctor,
}

// doctorExecutor is swapped in tests.
var doctorExecutor = doctor.NewRealExecutor

func init() {
	rootCmd.AddCommand(doctorCmd)
}

func runDoctor(cmd *cobra.Command, _ []string) error {
	initOutput(cmd)

	var summary doctor.Summary
	_ = output.WithProgress(cmd.ErrOrStderr(), "Running prerequisite checks", func(*output.Progress) error {
		summary = doctor.RunAll(cmd.Context(), doctorExecutor(), localConfigPath())
		return nil
	})

	doctor.PrintResults(cmd.OutOrStdout(), summary)

	if summary.HasFailure {
		return output.Reported(exitcode.Wrap(exitcode.Generic, fmt.Errorf("%d prerequisite check(s) failed", summary.TotalFail)))
	}
	return nil
}
