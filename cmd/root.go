// Package cmd implements the Cobra-based CLI for azaudit.
package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/kjourdan1/azaudit/internal/config"
	"github.com/kjourdan1/azaudit/internal/output"
)

var (
	cfgFile    string
	verbosity  int
	jsonOutput bool // --json flag for machine-readable output
	ciMode     bool
	tenantFlag string
)

// rootCmd is the top-level command for azaudit.
var rootCmd = &cobra.Command{
	Use:   "azaudit",
	Short: "Azure compliance auditor for tags, OS end of support and NSG coverage",
	Long: `azaudit scans every subscription visible to the current identity and
checks each resource against three policy families:

  1. required tags        (tag keys that must be present)
  2. OS end of support    (VM images on a publisher:offer:sku denylist)
  3. NSG coverage         (NIC or subnet associated with a security group)

Results are tallied per subscription and per rule. A subscription that
cannot be read is reported as failed without stopping the others.
Missing tags can optionally be added back (remediation), with a dry-run mode.

Configuration lives in azaudit.yaml (see 'azaudit init').

Workflow: init → validate → doctor → scan`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: azaudit.yaml)")
	rootCmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v", "increase verbosity (-v, -vv)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output results as JSON (machine-readable)")
	rootCmd.PersistentFlags().BoolVar(&ciMode, "ci", false, "strict non-interactive mode (no prompts, no browser login)")
	rootCmd.PersistentFlags().StringVar(&tenantFlag, "tenant", "", "Azure AD tenant ID or domain (overrides metadata.tenant)")

	_ = viper.BindPFlag("ci", rootCmd.PersistentFlags().Lookup("ci"))
	_ = viper.BindPFlag("tenant", rootCmd.PersistentFlags().Lookup("tenant"))
}

func effectiveCIMode() bool {
	if ciMode || viper.GetBool("ci") {
		return true
	}
	return strings.EqualFold(strings.TrimSpace(os.Getenv("CI")), "true")
}

// initConfig wires AZAUDIT_* environment variables into viper. The audit
// config itself is read by config.Load, not by viper.
func initConfig() {
	viper.SetEnvPrefix("AZAUDIT")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if verbosity > 0 {
		fmt.Fprintln(os.Stderr, "Using config file:", localConfigPath())
	}
}

// initOutput configures the output package for a command run, sending JSON
// envelopes to the command's stdout and log lines to its stderr.
func initOutput(cmd *cobra.Command) {
	output.Init(verbosity > 0, jsonOutput)
	output.SetOutput(cmd.ErrOrStderr())
	output.Stdout = cmd.OutOrStdout()
}

func localConfigPath() string {
	if strings.TrimSpace(cfgFile) != "" {
		return cfgFile
	}
	if env := strings.TrimSpace(os.Getenv("AZAUDIT_CONFIG")); env != "" {
		return env
	}
	return filepath.Join(".", config.DefaultFileName)
}

// effectiveTenant prefers --tenant / AZAUDIT_TENANT over the config file.
func effectiveTenant(cfg *config.AuditConfig) string {
	if t := strings.TrimSpace(viper.GetString("tenant")); t != "" {
		return t
	}
	if cfg != nil {
		return strings.TrimSpace(cfg.Metadata.Tenant)
	}
	return ""
}
