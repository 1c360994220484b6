package audit

import (
	"fmt"
	"strings"
)

// RenderMarkdown renders a human-readable compliance report in Markdown format.
func RenderMarkdown(report *Report) string {
	if report == nil {
		return "# Azure Compliance Report\n\nNo data available."
	}

	b := &strings.Builder{}
	fmt.Fprintf(b, "# Azure Compliance Report\n\n")
	if report.TenantID != "" {
		fmt.Fprintf(b, "- Tenant: `%s`\n", report.TenantID)
	}
	fmt.Fprintf(b, "- Run: `%s`\n", report.RunID)
	fmt.Fprintf(b, "- Scanned At: `%s`\n", report.StartedAt.UTC().Format("2006-01-02 15:04:05Z"))
	fmt.Fprintf(b, "- Subscriptions: %d (failed: %d)\n", report.Summary.Accounts, report.Summary.FailedAccounts)
	fmt.Fprintf(b, "- Resources: %d\n\n", report.Summary.Resources)

	fmt.Fprintf(b, "## Summary\n\n")
	fmt.Fprintf(b, "| Rule | Kind | Compliant | Non-compliant | Not applicable | Errors |\n")
	fmt.Fprintf(b, "|---|---|---|---|---|---|\n")
	for _, r := range report.Summary.Rules {
		fmt.Fprintf(b, "| %s | %s | %d | %d | %d | %d |\n", r.Rule, r.Kind, r.Compliant, r.NonCompliant, r.NotApplicable, r.Errors)
	}
	fmt.Fprintln(b)

	failed := make([]AccountReport, 0)
	for _, a := range report.Accounts {
		if a.Failed() || len(a.Warnings) > 0 {
			failed = append(failed, a)
		}
	}
	if len(failed) > 0 {
		fmt.Fprintf(b, "## Scan Problems\n\n")
		for _, a := range failed {
			if a.Failed() {
				fmt.Fprintf(b, "- **%s** (`%s`): %s\n", a.DisplayName, a.ID, a.Error)
			}
			for _, w := range a.Warnings {
				fmt.Fprintf(b, "- %s (`%s`): %s\n", a.DisplayName, a.ID, w)
			}
		}
		fmt.Fprintln(b)
	}

	if len(report.NonCompliant) > 0 {
		fmt.Fprintf(b, "## Non-compliant Resources\n\n")
		for _, r := range report.NonCompliant {
			fmt.Fprintf(b, "- `%s` [%s] %s\n", r.ResourceID, r.Rule, r.Detail)
		}
		fmt.Fprintln(b)
	}

	if len(report.Unevaluated) > 0 {
		fmt.Fprintf(b, "## Could Not Be Evaluated\n\n")
		for _, r := range report.Unevaluated {
			fmt.Fprintf(b, "- `%s` [%s] %s\n", r.ResourceID, r.Rule, r.Detail)
		}
		fmt.Fprintln(b)
	}

	if report.RemediationEnabled {
		title := "Remediation"
		if report.DryRun {
			title = "Remediation (dry run)"
		}
		fmt.Fprintf(b, "## %s\n\n", title)
		fmt.Fprintf(b, "- Remediated: %d, failed: %d, already compliant: %d\n\n",
			report.Summary.Remediated, report.Summary.RemediationFailed, report.Summary.RemediationNoop)
		for _, rec := range report.Remediations {
			if rec.Skipped {
				continue
			}
			status := "ok"
			if rec.Failed() {
				status = "failed: " + rec.Error
			}
			fmt.Fprintf(b, "- `%s` +%s — %s\n", rec.ResourceID, strings.Join(rec.TagsAdded, ","), status)
		}
	}

	return b.String()
}
