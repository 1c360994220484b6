// Package scan drives a compliance run across every visible subscription.
//
// A run enumerates accounts, then for each account fetches resources and NSG
// associations, evaluates the configured rules, optionally remediates tag
// violations and finally folds everything into an audit.Report. Only account
// enumeration failures are fatal; resource and NSG enumeration failures are
// isolated to the account they happened in.
package scan

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/kjourdan1/azaudit/internal/audit"
	"github.com/kjourdan1/azaudit/internal/inventory"
	"github.com/kjourdan1/azaudit/internal/policy"
	"github.com/kjourdan1/azaudit/internal/remediate"
)

// AccountLister enumerates the accounts of a tenant.
type AccountLister interface {
	ListAccounts(ctx context.Context) ([]inventory.Account, error)
}

// ResourceLister enumerates the resources of one account.
type ResourceLister interface {
	ListResources(ctx context.Context, account inventory.Account) ([]inventory.Resource, error)
}

// NSGLister enumerates the network security groups of one account.
type NSGLister interface {
	ListNetworkSecurityGroups(ctx context.Context, account inventory.Account) ([]inventory.NetworkSecurityGroup, error)
}

// Inventory is the full read side consumed by a run.
type Inventory interface {
	AccountLister
	ResourceLister
	NSGLister
}

// Remediator fixes tag violations on a single resource.
type Remediator interface {
	Remediate(ctx context.Context, res *inventory.Resource, missing []string) remediate.Record
	DryRun() bool
}

// Progress receives per-account completion updates while a run is scanning.
// Implementations must be safe for concurrent use.
type Progress interface {
	SetTotal(n int)
	Advance(label string)
}

// State is the lifecycle position of a run.
type State string

const (
	StateInit                State = "Init"
	StateEnumeratingAccounts State = "EnumeratingAccounts"
	StateScanningAccounts    State = "ScanningAccounts"
	StateReporting           State = "Reporting"
	StateDone                State = "Done"
	StateFailed              State = "Failed"
)

// DefaultConcurrency is the number of accounts scanned at once.
const DefaultConcurrency = 4

// ErrAccountNotVisible marks an allow-listed subscription that the
// credential cannot see.
var ErrAccountNotVisible = errors.New("subscription not visible to the current credential")

// FatalError aborts a run. It wraps the account enumeration failure.
type FatalError struct {
	Err error
}

func (e *FatalError) Error() string {
	return "enumerating subscriptions: " + e.Err.Error()
}

func (e *FatalError) Unwrap() error {
	return e.Err
}

// Options configures an Orchestrator.
type Options struct {
	Rules []policy.Rule
	// Subscriptions restricts the run to these account ids when non-empty.
	Subscriptions []string
	Concurrency   int
	// CallTimeout bounds each inventory call; zero means no timeout.
	CallTimeout time.Duration
	// Remediator is nil when remediation is disabled.
	Remediator Remediator
	// Progress is optional.
	Progress Progress
	TenantID string
	Logger   *log.Logger
}

// Orchestrator runs scans. A single Orchestrator runs one scan at a time.
type Orchestrator struct {
	inv  Inventory
	opts Options
	log  *log.Logger

	mu    sync.Mutex
	state State

	now   func() time.Time
	newID func() string
}

// New returns an Orchestrator reading from inv.
func New(inv Inventory, opts Options) *Orchestrator {
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Orchestrator{
		inv:   inv,
		opts:  opts,
		log:   logger,
		state: StateInit,
		now:   func() time.Time { return time.Now().UTC() },
		newID: uuid.NewString,
	}
}

// State returns the current lifecycle state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

func (o *Orchestrator) transition(s State) {
	o.mu.Lock()
	prev := o.state
	o.state = s
	o.mu.Unlock()
	o.log.Debug("scan state", "from", prev, "to", s)
}

// Run executes a full scan. The only error it returns is a *FatalError;
// every other failure is recorded in the report.
func (o *Orchestrator) Run(ctx context.Context) (*audit.Report, error) {
	meta := audit.RunMeta{
		RunID:              o.newID(),
		TenantID:           o.opts.TenantID,
		StartedAt:          o.now(),
		RemediationEnabled: o.opts.Remediator != nil,
	}
	if o.opts.Remediator != nil {
		meta.DryRun = o.opts.Remediator.DryRun()
	}
	o.transition(StateInit)

	o.transition(StateEnumeratingAccounts)
	accounts, err := withTimeout(ctx, o.opts.CallTimeout, o.inv.ListAccounts)
	if err != nil {
		o.transition(StateFailed)
		return nil, &FatalError{Err: err}
	}
	accounts, missing := filterAccounts(accounts, o.opts.Subscriptions)
	o.log.Info("subscriptions enumerated", "count", len(accounts), "run", meta.RunID)
	if o.opts.Progress != nil {
		o.opts.Progress.SetTotal(len(accounts))
	}

	o.transition(StateScanningAccounts)
	results := make([]audit.AccountResult, len(accounts), len(accounts)+len(missing))
	var g errgroup.Group
	g.SetLimit(o.opts.Concurrency)
	for i, acc := range accounts {
		g.Go(func() error {
			results[i] = o.scanAccount(ctx, acc)
			if o.opts.Progress != nil {
				o.opts.Progress.Advance(acc.Label())
			}
			return nil
		})
	}
	_ = g.Wait()

	for _, id := range missing {
		o.log.Warn("subscription skipped", "subscription", id, "error", ErrAccountNotVisible)
		results = append(results, audit.AccountResult{
			Account: inventory.Account{ID: id},
			Err:     ErrAccountNotVisible,
		})
	}

	o.transition(StateReporting)
	meta.FinishedAt = o.now()
	report := audit.BuildReport(meta, o.opts.Rules, results)
	o.transition(StateDone)
	return report, nil
}

func (o *Orchestrator) scanAccount(ctx context.Context, acc inventory.Account) audit.AccountResult {
	out := audit.AccountResult{Account: acc}
	logger := o.log.With("subscription", acc.ID)

	resources, err := withTimeout(ctx, o.opts.CallTimeout, func(ctx context.Context) ([]inventory.Resource, error) {
		return o.inv.ListResources(ctx, acc)
	})
	if err != nil {
		out.Err = fmt.Errorf("listing resources: %w", err)
		logger.Warn("subscription failed", "error", out.Err)
		return out
	}
	out.Resources = len(resources)

	var facts *inventory.NetworkFacts
	var factsErr error
	if needsNetworkFacts(o.opts.Rules) {
		groups, err := withTimeout(ctx, o.opts.CallTimeout, func(ctx context.Context) ([]inventory.NetworkSecurityGroup, error) {
			return o.inv.ListNetworkSecurityGroups(ctx, acc)
		})
		if err != nil {
			factsErr = err
			out.Warnings = append(out.Warnings, "network security groups: "+err.Error())
			logger.Warn("network protection skipped", "error", err)
		} else {
			facts = inventory.BuildNetworkFacts(groups)
		}
	}

	for i := range resources {
		res := &resources[i]
		if res.AccountID == "" {
			res.AccountID = acc.ID
		}
		results := policy.EvaluateAll(o.opts.Rules, *res, facts)
		var missing []string
		for j := range results {
			r := &results[j]
			if factsErr != nil && r.Kind == policy.KindNetworkProtection && r.Detail == policy.ErrFactsUnavailable.Error() {
				r.Detail = fmt.Sprintf("%s: %v", policy.ErrFactsUnavailable, factsErr)
			}
			switch {
			case r.Outcome == policy.Error:
				logger.Warn("resource not evaluated", "resource", res.ID, "rule", r.Rule, "reason", r.Detail)
			case r.Kind == policy.KindTagPresence && r.Outcome == policy.NonCompliant:
				missing = append(missing, r.Missing...)
			}
		}
		out.Results = append(out.Results, results...)

		if o.opts.Remediator != nil && len(missing) > 0 {
			rec := o.opts.Remediator.Remediate(ctx, res, missing)
			if rec.Failed() {
				logger.Warn("remediation failed", "resource", res.ID, "kind", rec.ErrorKind, "error", rec.Error)
			} else if !rec.Skipped {
				logger.Debug("remediated", "resource", res.ID, "added", rec.TagsAdded, "dryRun", rec.DryRun)
			}
			out.Remediations = append(out.Remediations, rec)
		}
	}

	logger.Debug("subscription scanned", "resources", out.Resources, "results", len(out.Results))
	return out
}

func needsNetworkFacts(rules []policy.Rule) bool {
	for _, r := range rules {
		if r.Kind == policy.KindNetworkProtection {
			return true
		}
	}
	return false
}

// filterAccounts keeps the allow-listed accounts in enumeration order and
// returns the allow-listed ids that were not enumerated.
func filterAccounts(accounts []inventory.Account, allow []string) ([]inventory.Account, []string) {
	if len(allow) == 0 {
		return accounts, nil
	}
	wanted := make(map[string]bool, len(allow))
	for _, id := range allow {
		wanted[strings.ToLower(id)] = true
	}
	kept := make([]inventory.Account, 0, len(allow))
	found := map[string]bool{}
	for _, a := range accounts {
		if key := strings.ToLower(a.ID); wanted[key] {
			kept = append(kept, a)
			found[key] = true
		}
	}
	var missing []string
	for _, id := range allow {
		if key := strings.ToLower(id); !found[key] {
			missing = append(missing, id)
			found[key] = true
		}
	}
	return kept, missing
}

func withTimeout[T any](ctx context.Context, d time.Duration, fn func(context.Context) (T, error)) (T, error) {
	if d <= 0 {
		return fn(ctx)
	}
	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()
	return fn(ctx)
}
