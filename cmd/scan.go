package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/kjourdan1/azaudit/internal/audit"
	"github.com/kjourdan1/azaudit/internal/azauth"
	"github.com/kjourdan1/azaudit/internal/azure"
	"github.com/kjourdan1/azaudit/internal/config"
	"github.com/kjourdan1/azaudit/internal/exitcode"
	"github.com/kjourdan1/azaudit/internal/export"
	"github.com/kjourdan1/azaudit/internal/output"
	"github.com/kjourdan1/azaudit/internal/remediate"
	"github.com/kjourdan1/azaudit/internal/scan"
	"github.com/kjourdan1/azaudit/internal/wizard"
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Audit subscriptions against the configured policies",
	Long: `Enumerates the subscriptions in scope, lists every resource in each of
them and evaluates the enabled policies:

  required-tags       tag keys every resource must carry
  os-end-of-support   VM images on the denylist
  nsg-coverage        VMs whose NIC or subnet has no NSG

Subscriptions are scanned concurrently (scan.concurrency). A subscription
that cannot be listed is reported as failed; the others still complete.
Only a failure to enumerate subscriptions aborts the run (exit code 3).

With --remediate, missing tags are added with empty values. Writes are
confirmed interactively unless --yes or --ci is given. --dry-run runs the
remediation pass and reports what would change without writing.

Findings do not change the exit code unless --fail-on-findings is set
(exit code 5).`,
	Args: cobra.NoArgs,
	RunE: runScan,
}

var (
	scanRemediate      bool
	scanDryRun         bool
	scanExport         bool
	scanOutputDir      string
	scanFormat         string
	scanYes            bool
	scanFailOnFindings bool
	scanBackend        string
	scanConcurrency    int
	scanCallTimeout    string
	scanSubscriptions  []string
)

const (
	formatTable    = "table"
	formatMarkdown = "markdown"
	formatJSON     = "json"
)

// lastRunID is the run id of the most recent scan, recorded in the audit trail.
var lastRunID string

// RunID returns the id of the scan executed by this process, or "".
func RunID() string {
	return lastRunID
}

// auditBackend is the inventory plus the tag writer used for remediation.
type auditBackend interface {
	scan.Inventory
	remediate.TagWriter
}

// newBackend builds the inventory for the configured backend. Tests replace it.
var newBackend = func(ctx context.Context, cfg *config.AuditConfig, tenant string) (auditBackend, error) {
	opts := azure.Options{
		TenantID:        tenantFilter(tenant),
		ManagementGroup: cfg.Spec.Scope.ManagementGroup,
		Retry:           azure.DefaultRetryConfig(),
	}
	if cfg.Spec.Scan.Backend == config.BackendCLI {
		return azure.NewCLIInventory(azure.NewAzCLI(), opts), nil
	}

	if tenant == "" {
		detected, err := azauth.DetectTenantID()
		if err != nil {
			return nil, exitcode.Wrap(exitcode.Auth, err)
		}
		tenant = detected
	}
	cred, err := azauth.Login(ctx, azauth.Options{
		TenantID:    tenant,
		Interactive: !effectiveCIMode(),
		Verbose:     verbosity > 0,
	})
	if err != nil {
		return nil, exitcode.Wrap(exitcode.Auth, err)
	}
	return azure.NewSDKInventory(cred.TokenCredential, opts, nil), nil
}

// confirmRemediation asks before tags are written. Tests replace it.
var confirmRemediation = func(label string) (bool, error) {
	return wizard.NewSurveyPrompter().Confirm(label, false)
}

func init() {
	f := scanCmd.Flags()
	f.BoolVar(&scanRemediate, "remediate", false, "add missing tags to non-compliant resources")
	f.BoolVar(&scanDryRun, "dry-run", false, "preview tag remediation without writing (implies --remediate)")
	f.BoolVar(&scanExport, "export", false, "write report files (see export.formats)")
	f.StringVarP(&scanOutputDir, "output", "o", "", "export directory (implies --export)")
	f.StringVar(&scanFormat, "format", formatTable, "console report format (table|markdown|json)")
	f.BoolVarP(&scanYes, "yes", "y", false, "do not ask before writing tags")
	f.BoolVar(&scanFailOnFindings, "fail-on-findings", false, "exit with code 5 when non-compliant resources are found")
	f.StringVar(&scanBackend, "backend", "", "inventory backend (sdk|cli)")
	f.IntVar(&scanConcurrency, "concurrency", 0, "subscriptions scanned in parallel")
	f.StringVar(&scanCallTimeout, "call-timeout", "", "timeout per Azure call (e.g. 30s)")
	f.StringSliceVar(&scanSubscriptions, "subscription", nil, "restrict the scan to these subscription ids (repeatable)")

	for _, key := range []string{"remediate", "dry-run", "export", "backend", "concurrency", "call-timeout"} {
		_ = viper.BindPFlag("scan."+key, f.Lookup(key))
		_ = viper.BindEnv("scan."+key, "AZAUDIT_"+envKey(key))
	}

	rootCmd.AddCommand(scanCmd)
}

func envKey(flag string) string {
	return strings.ToUpper(strings.ReplaceAll(flag, "-", "_"))
}

// applyScanOverrides lays flags and AZAUDIT_* variables over the file.
func applyScanOverrides(cfg *config.AuditConfig) {
	if viper.IsSet("scan.remediate") {
		cfg.Spec.Remediation.Enabled = viper.GetBool("scan.remediate")
	}
	if viper.IsSet("scan.dry-run") && viper.GetBool("scan.dry-run") {
		cfg.Spec.Remediation.Enabled = true
		cfg.Spec.Remediation.DryRun = true
	}
	if viper.IsSet("scan.export") {
		cfg.Spec.Export.Enabled = viper.GetBool("scan.export")
	}
	if scanOutputDir != "" {
		cfg.Spec.Export.Enabled = true
		cfg.Spec.Export.Directory = scanOutputDir
	}
	if viper.IsSet("scan.backend") && viper.GetString("scan.backend") != "" {
		cfg.Spec.Scan.Backend = viper.GetString("scan.backend")
	}
	if viper.IsSet("scan.concurrency") && viper.GetInt("scan.concurrency") > 0 {
		cfg.Spec.Scan.Concurrency = viper.GetInt("scan.concurrency")
	}
	if viper.IsSet("scan.call-timeout") && viper.GetString("scan.call-timeout") != "" {
		cfg.Spec.Scan.CallTimeout = viper.GetString("scan.call-timeout")
	}
	if len(scanSubscriptions) > 0 {
		cfg.Spec.Scope.Subscriptions = scanSubscriptions
	}
}

func runScan(cmd *cobra.Command, _ []string) error {
	initOutput(cmd)
	start := time.Now()
	lastRunID = ""

	format := scanFormat
	if jsonOutput {
		format = formatJSON
	}
	switch format {
	case formatTable, formatMarkdown, formatJSON:
	default:
		return exitcode.Wrap(exitcode.Validation, fmt.Errorf("invalid value for --format: %q (allowed: table, markdown, json)", scanFormat))
	}

	configPath := localConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return exitcode.Wrap(exitcode.Validation, output.WrapErrorWithFix(err, "loading config", "Run: azaudit init"))
	}
	applyScanOverrides(cfg)
	tenant := effectiveTenant(cfg)
	cfg.Metadata.Tenant = tenant

	checks, err := config.ValidateSemantics(cfg)
	if err != nil {
		return exitcode.Wrap(exitcode.Validation, err)
	}
	if config.HasErrors(checks) {
		printChecks(cmd, checks)
		return exitcode.Wrap(exitcode.Validation, output.NewErrorWithFix("invalid configuration", "Run: azaudit validate"))
	}
	rules, err := cfg.Rules()
	if err != nil {
		return exitcode.Wrap(exitcode.Validation, err)
	}
	callTimeout, err := cfg.Spec.Scan.Timeout()
	if err != nil {
		return exitcode.Wrap(exitcode.Validation, err)
	}

	rem := cfg.Spec.Remediation
	if rem.Enabled && !rem.DryRun && !scanYes && !effectiveCIMode() {
		ok, err := confirmRemediation("Add missing tags to non-compliant resources? Existing tags are kept.")
		if err != nil {
			return err
		}
		if !ok {
			output.Warn("remediation declined; running in dry-run mode")
			rem.DryRun = true
		}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	backend, err := newBackend(ctx, cfg, tenant)
	if err != nil {
		return err
	}

	opts := scan.Options{
		Rules:         rules,
		Subscriptions: cfg.Spec.Scope.Subscriptions,
		Concurrency:   cfg.Spec.Scan.Concurrency,
		CallTimeout:   callTimeout,
		TenantID:      tenant,
		Logger:        output.Logger(),
	}
	if rem.Enabled {
		opts.Remediator = remediate.New(backend,
			remediate.WithDryRun(rem.DryRun),
			remediate.WithTimeout(callTimeout),
		)
	}

	output.Step(fmt.Sprintf("Scanning with %d rule(s), backend %s", len(rules), cfg.Spec.Scan.Backend))
	var progress *output.Progress
	if format != formatJSON && !effectiveCIMode() {
		progress = output.NewProgress(cmd.ErrOrStderr(), "Scanning subscriptions")
		opts.Progress = progress
		progress.Start()
	}
	report, err := scan.New(backend, opts).Run(ctx)
	progress.Stop()
	if err != nil {
		return fmt.Errorf("scan aborted: %w", err)
	}
	lastRunID = report.RunID

	// Export first: stdout must hold a single document even when an export fails.
	if cfg.Spec.Export.Enabled {
		paths, err := export.Write(report, cfg.Spec.Export.Directory, cfg.Spec.Export.Formats)
		if err != nil {
			return exitcode.Wrap(exitcode.Generic, fmt.Errorf("exporting report: %w", err))
		}
		for _, p := range paths {
			output.Info("report written", "path", p)
		}
	}

	if err := renderReport(cmd.OutOrStdout(), report, format); err != nil {
		return err
	}

	if format != formatJSON {
		printScanSummary(cmd.ErrOrStderr(), report, time.Since(start))
	}

	if scanFailOnFindings && report.HasFindings() {
		return output.Reported(exitcode.Wrap(exitcode.Findings, fmt.Errorf("%d non-compliant result(s) found", len(report.NonCompliant))))
	}
	return nil
}

func renderReport(w io.Writer, report *audit.Report, format string) error {
	switch format {
	case formatJSON:
		payload, err := audit.RenderJSON(report)
		if err != nil {
			return fmt.Errorf("rendering JSON report: %w", err)
		}
		fmt.Fprintln(w, string(payload))
	case formatMarkdown:
		fmt.Fprintln(w, audit.RenderMarkdown(report))
	default:
		fmt.Fprintln(w, audit.RenderTable(report))
	}
	return nil
}

func printScanSummary(w io.Writer, report *audit.Report, elapsed time.Duration) {
	s := report.Summary
	bold := color.New(color.Bold)
	bold.Fprintf(w, "\n📊 %d subscription(s), %d resource(s) in %s\n", s.Accounts, s.Resources, elapsed.Round(time.Millisecond))

	if s.FailedAccounts > 0 {
		color.New(color.FgRed).Fprintf(w, "   %d subscription(s) could not be scanned\n", s.FailedAccounts)
	}
	if report.HasFindings() {
		color.New(color.FgYellow).Fprintf(w, "   %d non-compliant, %d could not be evaluated\n", len(report.NonCompliant), len(report.Unevaluated))
	} else {
		color.New(color.FgGreen).Fprintln(w, "   no violations found")
	}
	if report.RemediationEnabled {
		mode := ""
		if report.DryRun {
			mode = " (dry run)"
		}
		fmt.Fprintf(w, "   remediation%s: %d fixed, %d failed, %d unchanged\n", mode, s.Remediated, s.RemediationFailed, s.RemediationNoop)
	}
	fmt.Fprintf(w, "   run %s\n", report.RunID)
}

// tenantFilter returns the tenant when it is a GUID. A domain name cannot
// be compared with the tenant id of a subscription, so it filters nothing.
func tenantFilter(tenant string) string {
	if _, err := uuid.Parse(tenant); err != nil {
		return ""
	}
	return tenant
}
