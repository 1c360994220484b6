package audit

import (
	"sort"

	"github.com/kjourdan1/azaudit/internal/policy"
)

// Counts classifies results of one rule. NotApplicable and Errors are never
// folded into the compliant or non-compliant buckets.
type Counts struct {
	Compliant     int `json:"compliant"`
	NonCompliant  int `json:"nonCompliant"`
	NotApplicable int `json:"notApplicable"`
	Errors        int `json:"errors"`
}

// Total is the number of results counted.
func (c Counts) Total() int {
	return c.Compliant + c.NonCompliant + c.NotApplicable + c.Errors
}

func (c *Counts) add(o policy.Outcome) {
	switch o {
	case policy.Compliant:
		c.Compliant++
	case policy.NonCompliant:
		c.NonCompliant++
	case policy.NotApplicable:
		c.NotApplicable++
	default:
		c.Errors++
	}
}

func (c *Counts) merge(o Counts) {
	c.Compliant += o.Compliant
	c.NonCompliant += o.NonCompliant
	c.NotApplicable += o.NotApplicable
	c.Errors += o.Errors
}

// Tally accumulates results per rule. Adding and merging are commutative, so
// tallies may be built per worker and merged in any order.
type Tally struct {
	rules        map[string]Counts
	kinds        map[string]policy.Kind
	nonCompliant []policy.Result
	unevaluated  []policy.Result
}

// NewTally returns an empty tally.
func NewTally() *Tally {
	return &Tally{
		rules: map[string]Counts{},
		kinds: map[string]policy.Kind{},
	}
}

// Add folds results into the tally.
func (t *Tally) Add(results ...policy.Result) {
	for _, r := range results {
		c := t.rules[r.Rule]
		c.add(r.Outcome)
		t.rules[r.Rule] = c
		t.kinds[r.Rule] = r.Kind
		switch r.Outcome {
		case policy.NonCompliant:
			t.nonCompliant = append(t.nonCompliant, r)
		case policy.Compliant, policy.NotApplicable:
		default:
			t.unevaluated = append(t.unevaluated, r)
		}
	}
}

// Merge adds another tally into t. o is not modified.
func (t *Tally) Merge(o *Tally) {
	if o == nil {
		return
	}
	for name, c := range o.rules {
		cur := t.rules[name]
		cur.merge(c)
		t.rules[name] = cur
		t.kinds[name] = o.kinds[name]
	}
	t.nonCompliant = append(t.nonCompliant, o.nonCompliant...)
	t.unevaluated = append(t.unevaluated, o.unevaluated...)
}

// Rule returns the counts of one rule.
func (t *Tally) Rule(name string) Counts {
	return t.rules[name]
}

// Totals sums the counts of every rule.
func (t *Tally) Totals() Counts {
	var out Counts
	for _, c := range t.rules {
		out.merge(c)
	}
	return out
}

// NonCompliant returns the definitive violations in insertion order.
func (t *Tally) NonCompliant() []policy.Result {
	return append([]policy.Result(nil), t.nonCompliant...)
}

// Unevaluated returns the results that ended in an error outcome.
func (t *Tally) Unevaluated() []policy.Result {
	return append([]policy.Result(nil), t.unevaluated...)
}

// Summaries lists per-rule counts following the configured rule order. Rules
// that produced no result are included with zero counts; rule names seen in
// the tally but not configured are appended.
func (t *Tally) Summaries(rules []policy.Rule) []RuleSummary {
	out := make([]RuleSummary, 0, len(rules))
	seen := map[string]bool{}
	for _, r := range rules {
		seen[r.Name] = true
		out = append(out, RuleSummary{Rule: r.Name, Kind: r.Kind, Counts: t.rules[r.Name]})
	}
	extra := make([]string, 0)
	for name := range t.rules {
		if !seen[name] {
			extra = append(extra, name)
		}
	}
	sort.Strings(extra)
	for _, name := range extra {
		out = append(out, RuleSummary{Rule: name, Kind: t.kinds[name], Counts: t.rules[name]})
	}
	return out
}
