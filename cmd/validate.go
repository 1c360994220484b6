package cmd

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/kjourdan1/azaudit/internal/config"
	"github.com/kjourdan1/azaudit/internal/exitcode"
	"github.com/kjourdan1/azaudit/internal/output"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate azaudit.yaml",
	Long: `Runs the validation suite on the audit configuration:

  1. JSON Schema validation of the raw YAML (unknown keys, types, enums)
  2. Semantic checks (tenant format, tag keys, denylist URNs, scan tuning)
  3. Conversion of the enabled policies into rules

Used in CI as the first gate before scan.`,
	Args: cobra.NoArgs,
	RunE: runValidate,
}

var validateStrict bool

func init() {
	validateCmd.Flags().BoolVar(&validateStrict, "strict", false, "fail on warnings")

	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	initOutput(cmd)
	configPath := localConfigPath()

	raw, err := os.ReadFile(configPath)
	if err != nil {
		return exitcode.Wrap(exitcode.Validation, output.WrapErrorWithFix(err, fmt.Sprintf("reading config %q", configPath), "Run: azaudit init"))
	}

	schemaResult, err := config.ValidateYAML(raw)
	if err != nil {
		return exitcode.Wrap(exitcode.Validation, fmt.Errorf("schema validation error: %w", err))
	}

	checks := make([]config.Check, 0, 16)
	if schemaResult.Valid {
		checks = append(checks, config.Check{Name: "schema", Status: config.StatusPass, Message: "azaudit.yaml matches schema"})
	} else {
		for _, e := range schemaResult.Errors {
			checks = append(checks, config.Check{Name: "schema", Status: config.StatusError, Message: fmt.Sprintf("%s: %s", e.Field, e.Description)})
		}
	}

	cfg, err := config.Parse(raw)
	if err != nil {
		return exitcode.Wrap(exitcode.Validation, fmt.Errorf("loading config %q: %w", configPath, err))
	}
	semantic, err := config.ValidateSemantics(cfg)
	if err != nil {
		return exitcode.Wrap(exitcode.Validation, fmt.Errorf("semantic validation failed: %w", err))
	}
	checks = append(checks, semantic...)

	errorsCount := 0
	warningsCount := 0
	for _, c := range checks {
		switch c.Status {
		case config.StatusError:
			errorsCount++
		case config.StatusWarning:
			warningsCount++
		}
	}

	errOut := cmd.ErrOrStderr()
	if jsonOutput {
		output.JSON(map[string]interface{}{
			"config":   configPath,
			"checks":   checks,
			"errors":   errorsCount,
			"warnings": warningsCount,
		})
	} else {
		fmt.Fprintf(errOut, "🔎 Validating: %s\n\n", configPath)
		printChecks(cmd, checks)
		fmt.Fprintln(errOut)
	}

	if errorsCount > 0 {
		return output.Reported(exitcode.Wrap(exitcode.Validation, output.NewErrorWithFix(fmt.Sprintf("%d validation error(s) found", errorsCount), "Fix the checks marked above, then rerun: azaudit validate")))
	}
	if warningsCount > 0 && validateStrict {
		return output.Reported(exitcode.Wrap(exitcode.Validation, output.NewError(fmt.Sprintf("%d warning(s) found (strict mode)", warningsCount))))
	}

	if !jsonOutput {
		color.New(color.FgGreen, color.Bold).Fprintf(errOut, "✅ Validation passed (%d checks, %d warnings)\n", len(checks), warningsCount)
	}
	return nil
}

func printChecks(cmd *cobra.Command, checks []config.Check) {
	for _, c := range checks {
		icon := "✅"
		switch c.Status {
		case config.StatusWarning:
			icon = "⚠️"
		case config.StatusError:
			icon = "❌"
		}
		if output.NoColor() {
			icon = "[" + c.Status + "]"
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "  %s %s: %s\n", icon, c.Name, c.Message)
	}
}
