package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/kjourdan1/azaudit/internal/azauth"
	"github.com/kjourdan1/azaudit/internal/config"
	"github.com/kjourdan1/azaudit/internal/exitcode"
	"github.com/kjourdan1/azaudit/internal/output"
	"github.com/kjourdan1/azaudit/internal/wizard"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a starter azaudit.yaml",
	Long: `Writes a starter azaudit.yaml with the common required tags
(Environment, Owner, CostCenter), a denylist of retired Ubuntu, CentOS and
Windows Server images, and NSG coverage enabled.

With --interactive a wizard asks for each setting instead.
The tenant is taken from --tenant, then AZAUDIT_TENANT, then the active
az session.

This command never overwrites an existing file unless --force is given.`,
	Args: cobra.NoArgs,
	RunE: runInit,
}

var (
	initName        string
	initForce       bool
	initInteractive bool
)

// initPrompter is swapped in tests; nil means survey.
var initPrompter wizard.Prompter

func init() {
	initCmd.Flags().StringVar(&initName, "name", "compliance", "audit name (metadata.name)")
	initCmd.Flags().BoolVar(&initForce, "force", false, "overwrite an existing config file")
	initCmd.Flags().BoolVarP(&initInteractive, "interactive", "i", false, "answer the setup wizard instead of using defaults")

	_ = bindPFlagAndEnv(initCmd, "init_name", "name", "AZAUDIT_NAME")

	rootCmd.AddCommand(initCmd)
}

func bindPFlagAndEnv(c *cobra.Command, key, flag, env string) error {
	if err := viper.BindPFlag(key, c.Flags().Lookup(flag)); err != nil {
		return err
	}
	return viper.BindEnv(key, env)
}

func runInit(cmd *cobra.Command, _ []string) error {
	initOutput(cmd)
	path := localConfigPath()

	if !initForce {
		if _, err := os.Stat(path); err == nil {
			return exitcode.Wrap(exitcode.Validation, output.NewErrorWithFix(
				fmt.Sprintf("%s already exists", path), "Re-run with --force to overwrite it"))
		}
	}

	tenant := strings.TrimSpace(viper.GetString("tenant"))
	if tenant == "" && effectiveCIMode() {
		return exitcode.Wrap(exitcode.Validation, fmt.Errorf("--ci mode requires --tenant (or AZAUDIT_TENANT)"))
	}
	if tenant == "" {
		if detected, err := azauth.DetectTenantID(); err == nil {
			tenant = detected
			output.Debug("tenant detected from az session", "tenant", tenant)
		} else {
			output.Warn("tenant not set; metadata.tenant left empty", "reason", err)
		}
	}

	var cfg *config.AuditConfig
	if initInteractive && !effectiveCIMode() {
		answers, err := wizard.NewInitWizard(initPrompter).Run(tenant)
		if err != nil {
			return err
		}
		cfg = answers.ToAuditConfig()
	} else {
		name := strings.TrimSpace(viper.GetString("init_name"))
		if name == "" {
			name = "compliance"
		}
		cfg = config.Default(name, tenant)
	}

	if err := config.Save(cfg, path, initForce); err != nil {
		return exitcode.Wrap(exitcode.Generic, err)
	}

	if jsonOutput {
		output.JSON(map[string]interface{}{"config": path, "tenant": cfg.Metadata.Tenant})
		return nil
	}
	color.New(color.FgGreen, color.Bold).Fprintf(cmd.ErrOrStderr(), "✅ Wrote %s\n", path)
	fmt.Fprintln(cmd.ErrOrStderr(), "   Next: azaudit validate && azaudit scan")
	return nil
}
