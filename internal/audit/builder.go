package audit

import (
	"github.com/kjourdan1/azaudit/internal/inventory"
	"github.com/kjourdan1/azaudit/internal/policy"
)

// BuildReport reduces fully drained per-account results into a report.
// Account order follows the input; a failed account contributes zero
// results and is counted in FailedAccounts.
func BuildReport(meta RunMeta, rules []policy.Rule, accounts []AccountResult) *Report {
	global := NewTally()
	report := &Report{
		SchemaVersion:      inventory.SchemaVersion,
		RunID:              meta.RunID,
		TenantID:           meta.TenantID,
		StartedAt:          meta.StartedAt,
		FinishedAt:         meta.FinishedAt,
		RemediationEnabled: meta.RemediationEnabled,
		DryRun:             meta.DryRun,
		Accounts:           make([]AccountReport, 0, len(accounts)),
		NonCompliant:       make([]policy.Result, 0),
	}

	for _, acc := range accounts {
		local := NewTally()
		ar := AccountReport{
			ID:          acc.Account.ID,
			DisplayName: acc.Account.Label(),
			Warnings:    acc.Warnings,
		}
		report.Summary.Accounts++
		if acc.Err != nil {
			ar.Error = acc.Err.Error()
			ar.Rules = local.Summaries(rules)
			report.Summary.FailedAccounts++
			report.Accounts = append(report.Accounts, ar)
			continue
		}

		local.Add(acc.Results...)
		ar.Resources = acc.Resources
		ar.Rules = local.Summaries(rules)
		ar.Remediations = acc.Remediations
		report.Summary.Resources += acc.Resources

		for _, rec := range acc.Remediations {
			switch {
			case rec.Skipped:
				report.Summary.RemediationNoop++
			case rec.Succeeded:
				report.Summary.Remediated++
			default:
				report.Summary.RemediationFailed++
			}
		}
		report.Remediations = append(report.Remediations, acc.Remediations...)
		global.Merge(local)
		report.Accounts = append(report.Accounts, ar)
	}

	report.Summary.Rules = global.Summaries(rules)
	report.Summary.Totals = global.Totals()
	report.NonCompliant = append(report.NonCompliant, global.NonCompliant()...)
	report.Unevaluated = global.Unevaluated()
	return report
}
