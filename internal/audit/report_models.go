package audit

import (
	"time"

	"github.com/kjourdan1/azaudit/internal/inventory"
	"github.com/kjourdan1/azaudit/internal/policy"
	"github.com/kjourdan1/azaudit/internal/remediate"
)

// AccountResult is everything one account contributed to a run. Err is set
// when the account's resources could not be enumerated; it then carries no
// results.
type AccountResult struct {
	Account      inventory.Account
	Resources    int
	Results      []policy.Result
	Remediations []remediate.Record
	Warnings     []string
	Err          error
}

// RunMeta describes the run a report belongs to.
type RunMeta struct {
	RunID              string
	TenantID           string
	StartedAt          time.Time
	FinishedAt         time.Time
	RemediationEnabled bool
	DryRun             bool
}

// RuleSummary is the tally of one rule.
type RuleSummary struct {
	Rule string      `json:"rule"`
	Kind policy.Kind `json:"kind"`
	Counts
}

// Summary is the run-level counters handed to renderers and exporters.
type Summary struct {
	Accounts          int           `json:"accounts"`
	FailedAccounts    int           `json:"failedAccounts"`
	Resources         int           `json:"resources"`
	Rules             []RuleSummary `json:"rules"`
	Totals            Counts        `json:"totals"`
	Remediated        int           `json:"remediated"`
	RemediationFailed int           `json:"remediationFailed"`
	RemediationNoop   int           `json:"remediationNoop"`
}

// AccountReport is the per-account section of a report.
type AccountReport struct {
	ID           string             `json:"id"`
	DisplayName  string             `json:"displayName"`
	Resources    int                `json:"resources"`
	Error        string             `json:"error,omitempty"`
	Warnings     []string           `json:"warnings,omitempty"`
	Rules        []RuleSummary      `json:"rules"`
	Remediations []remediate.Record `json:"remediations,omitempty"`
}

// Failed reports whether the account could not be scanned.
func (a AccountReport) Failed() bool {
	return a.Error != ""
}

// Report is the outcome of a full scan. NonCompliant holds definitive
// violations; Unevaluated holds results that could not be decided.
type Report struct {
	SchemaVersion      string             `json:"schemaVersion"`
	RunID              string             `json:"runId"`
	TenantID           string             `json:"tenantId,omitempty"`
	StartedAt          time.Time          `json:"startedAt"`
	FinishedAt         time.Time          `json:"finishedAt"`
	RemediationEnabled bool               `json:"remediationEnabled"`
	DryRun             bool               `json:"dryRun,omitempty"`
	Summary            Summary            `json:"summary"`
	Accounts           []AccountReport    `json:"accounts"`
	NonCompliant       []policy.Result    `json:"nonCompliant"`
	Unevaluated        []policy.Result    `json:"unevaluated,omitempty"`
	Remediations       []remediate.Record `json:"remediations,omitempty"`
}

// HasFindings reports whether at least one definitive violation was found.
func (r *Report) HasFindings() bool {
	return r != nil && len(r.NonCompliant) > 0
}
