package audit

import (
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kjourdan1/azaudit/internal/inventory"
	"github.com/kjourdan1/azaudit/internal/policy"
	"github.com/kjourdan1/azaudit/internal/remediate"
)

func testRules() []policy.Rule {
	return []policy.Rule{
		policy.NewTagPresenceRule("tags", []string{"Owner"}),
		policy.NewOSSupportRule("os", []string{"Canonical:UbuntuServer:18.04-LTS"}),
		policy.NewNetworkProtectionRule("nsg"),
	}
}

func sampleResults() []policy.Result {
	return []policy.Result{
		{ResourceID: "r1", Rule: "tags", Kind: policy.KindTagPresence, Outcome: policy.Compliant},
		{ResourceID: "r2", Rule: "tags", Kind: policy.KindTagPresence, Outcome: policy.NonCompliant, Missing: []string{"Owner"}},
		{ResourceID: "r3", Rule: "tags", Kind: policy.KindTagPresence, Outcome: policy.NonCompliant, Missing: []string{"Owner"}},
		{ResourceID: "r1", Rule: "os", Kind: policy.KindOSSupport, Outcome: policy.NotApplicable},
		{ResourceID: "r2", Rule: "os", Kind: policy.KindOSSupport, Outcome: policy.NonCompliant},
		{ResourceID: "r1", Rule: "nsg", Kind: policy.KindNetworkProtection, Outcome: policy.Error},
		{ResourceID: "r2", Rule: "nsg", Kind: policy.KindNetworkProtection, Outcome: policy.Compliant},
	}
}

func TestTally_Add(t *testing.T) {
	tally := NewTally()
	tally.Add(sampleResults()...)

	assert.Equal(t, Counts{Compliant: 1, NonCompliant: 2}, tally.Rule("tags"))
	assert.Equal(t, Counts{NotApplicable: 1, NonCompliant: 1}, tally.Rule("os"))
	assert.Equal(t, Counts{Errors: 1, Compliant: 1}, tally.Rule("nsg"))
	assert.Equal(t, 7, tally.Totals().Total())
	assert.Len(t, tally.NonCompliant(), 3)
	assert.Len(t, tally.Unevaluated(), 1)
}

func TestTally_CommutativeAggregation(t *testing.T) {
	results := sampleResults()
	baseline := NewTally()
	baseline.Add(results...)

	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 50; i++ {
		shuffled := append([]policy.Result(nil), results...)
		rng.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })

		// split across two workers and merge in the opposite order
		cut := rng.Intn(len(shuffled) + 1)
		left, right := NewTally(), NewTally()
		left.Add(shuffled[:cut]...)
		right.Add(shuffled[cut:]...)
		merged := NewTally()
		merged.Merge(right)
		merged.Merge(left)

		assert.Equal(t, baseline.Summaries(testRules()), merged.Summaries(testRules()))
		assert.Equal(t, baseline.Totals(), merged.Totals())
		assert.Len(t, merged.NonCompliant(), len(baseline.NonCompliant()))
	}
}

func TestTally_SummariesKeepRuleOrder(t *testing.T) {
	tally := NewTally()
	tally.Add(policy.Result{Rule: "zz-extra", Kind: policy.KindTagPresence, Outcome: policy.Compliant})

	sums := tally.Summaries(testRules())
	require.Len(t, sums, 4)
	assert.Equal(t, "tags", sums[0].Rule)
	assert.Equal(t, 0, sums[0].Total())
	assert.Equal(t, "zz-extra", sums[3].Rule)
	assert.Equal(t, 1, sums[3].Compliant)
}

func TestTally_MergeNil(t *testing.T) {
	tally := NewTally()
	tally.Merge(nil)
	assert.Zero(t, tally.Totals().Total())
}

func TestBuildReport(t *testing.T) {
	start := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	accounts := []AccountResult{
		{
			Account:   inventory.Account{ID: "sub-a", DisplayName: "A"},
			Resources: 2,
			Results:   sampleResults()[:3],
			Remediations: []remediate.Record{
				{ResourceID: "r2", Succeeded: true, TagsAdded: []string{"Owner"}},
				{ResourceID: "r3", Error: "updating tags: 403", ErrorKind: remediate.KindAuth},
			},
		},
		{
			Account: inventory.Account{ID: "sub-b", DisplayName: "B"},
			Err:     errors.New("listing resources: boom"),
		},
		{
			Account:   inventory.Account{ID: "sub-c", DisplayName: "C"},
			Resources: 1,
			Results:   sampleResults()[3:],
			Warnings:  []string{"nsg enumeration failed"},
			Remediations: []remediate.Record{
				{ResourceID: "r9", Succeeded: true, Skipped: true},
			},
		},
	}

	report := BuildReport(RunMeta{RunID: "run-1", TenantID: "t1", StartedAt: start, RemediationEnabled: true}, testRules(), accounts)

	assert.Equal(t, "run-1", report.RunID)
	assert.Equal(t, 3, report.Summary.Accounts)
	assert.Equal(t, 1, report.Summary.FailedAccounts)
	assert.Equal(t, 3, report.Summary.Resources)
	assert.Equal(t, 1, report.Summary.Remediated)
	assert.Equal(t, 1, report.Summary.RemediationFailed)
	assert.Equal(t, 1, report.Summary.RemediationNoop)
	assert.Len(t, report.Remediations, 3)

	require.Len(t, report.Accounts, 3)
	assert.Equal(t, "sub-a", report.Accounts[0].ID)
	assert.True(t, report.Accounts[1].Failed())
	assert.Zero(t, report.Accounts[1].Resources)
	assert.Equal(t, []string{"nsg enumeration failed"}, report.Accounts[2].Warnings)

	// global totals equal the sum of per-account totals
	var sum Counts
	for _, a := range report.Accounts {
		for _, r := range a.Rules {
			sum.merge(r.Counts)
		}
	}
	assert.Equal(t, report.Summary.Totals, sum)
	assert.Equal(t, 7, report.Summary.Totals.Total())

	assert.Len(t, report.NonCompliant, 3)
	assert.Len(t, report.Unevaluated, 1)
	assert.True(t, report.HasFindings())
}

func TestBuildReport_DisplayNameFallsBackToID(t *testing.T) {
	accounts := []AccountResult{{Account: inventory.Account{ID: "sub-x"}}}
	report := BuildReport(RunMeta{RunID: "r"}, testRules(), accounts)

	require.Len(t, report.Accounts, 1)
	assert.Equal(t, "sub-x", report.Accounts[0].DisplayName)
	assert.Equal(t, inventory.SchemaVersion, report.SchemaVersion)
}

func TestBuildReport_Empty(t *testing.T) {
	report := BuildReport(RunMeta{RunID: "r"}, testRules(), nil)
	assert.NotNil(t, report.NonCompliant)
	assert.False(t, report.HasFindings())
	assert.Len(t, report.Summary.Rules, 3)
}
