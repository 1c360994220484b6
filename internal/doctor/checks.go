// Package doctor implements prerequisite checks for azaudit.
//
// It verifies that the Azure CLI is installed, that a session is active
// with at least one enabled subscription, that the compute and network
// providers are registered, and that the audit config parses cleanly.
package doctor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strconv"
	"strings"

	"github.com/kjourdan1/azaudit/internal/config"
)

// Status represents the outcome of a single check.
type Status string

const (
	StatusPass Status = "pass"
	StatusFail Status = "fail"
	StatusWarn Status = "warn"
	StatusSkip Status = "skip"
)

// CheckResult is the outcome of running a single prerequisite check.
type CheckResult struct {
	Name     string `json:"name"`
	Category string `json:"category"`
	Status   Status `json:"status"`
	Message  string `json:"message"`
	Fix      string `json:"fix,omitempty"`
}

// Check defines a single prerequisite check.
type Check struct {
	Name     string
	Category string // "tool", "auth", "azure", "config"
	Critical bool   // if true, failure => non-zero exit
	Run      func(ctx context.Context, exec CmdExecutor) CheckResult
}

// CmdExecutor abstracts command execution for testability.
type CmdExecutor interface {
	// Run executes a command and returns combined stdout+stderr output.
	Run(ctx context.Context, name string, args ...string) (string, error)
}

type realExecutor struct{}

func (r *realExecutor) Run(ctx context.Context, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	out, err := cmd.CombinedOutput()
	return strings.TrimSpace(string(out)), err
}

// NewRealExecutor returns a CmdExecutor backed by os/exec.
func NewRealExecutor() CmdExecutor {
	return &realExecutor{}
}

// Summary holds the aggregated results of all checks.
type Summary struct {
	Results    []CheckResult `json:"results"`
	TotalPass  int           `json:"totalPass"`
	TotalFail  int           `json:"totalFail"`
	TotalWarn  int           `json:"totalWarn"`
	TotalSkip  int           `json:"totalSkip"`
	HasFailure bool          `json:"hasFailure"`
}

// RunAll executes all checks and returns a summary. configPath is the
// azaudit.yaml to inspect; an empty path skips the config check.
func RunAll(ctx context.Context, executor CmdExecutor, configPath string) Summary {
	checks := AllChecks(configPath)
	results := make([]CheckResult, 0, len(checks))
	for _, c := range checks {
		r := c.Run(ctx, executor)
		r.Category = c.Category
		results = append(results, r)
	}
	return buildSummary(results, checks)
}

func buildSummary(results []CheckResult, checks []Check) Summary {
	s := Summary{Results: results}
	for i, r := range results {
		switch r.Status {
		case StatusPass:
			s.TotalPass++
		case StatusFail:
			s.TotalFail++
			if checks[i].Critical {
				s.HasFailure = true
			}
		case StatusWarn:
			s.TotalWarn++
		case StatusSkip:
			s.TotalSkip++
		}
	}
	return s
}

// AllChecks returns the ordered list of prerequisite checks.
func AllChecks(configPath string) []Check {
	return []Check{
		checkAzCLI(),
		checkAzSession(),
		checkSubscriptions(),
		checkResourceProvider("Microsoft.Compute"),
		checkResourceProvider("Microsoft.Network"),
		checkConfig(configPath),
	}
}

func checkAzCLI() Check {
	return Check{
		Name:     "az-cli",
		Category: "tool",
		Critical: true,
		Run: func(ctx context.Context, ex CmdExecutor) CheckResult {
			return checkToolVersion(ctx, ex, "az", []string{"version", "--output", "tsv"}, `(\d+\.\d+\.\d+)`, "2.50.0",
				"Install Azure CLI >= 2.50.0: https://learn.microsoft.com/cli/azure/install-azure-cli")
		},
	}
}

func checkAzSession() Check {
	return Check{
		Name:     "az-session",
		Category: "auth",
		Critical: true,
		Run: func(ctx context.Context, ex CmdExecutor) CheckResult {
			out, err := ex.Run(ctx, "az", "account", "show", "--output", "json")
			if err != nil {
				return CheckResult{
					Name:    "az-session",
					Status:  StatusFail,
					Message: "No active Azure session",
					Fix:     "Run: az login --tenant <your-tenant-id>",
				}
			}

			tenantID := extractJSONField(out, "tenantId")
			subID := extractJSONField(out, "id")
			userName := extractJSONField(out, "name")

			return CheckResult{
				Name:    "az-session",
				Status:  StatusPass,
				Message: fmt.Sprintf("Logged in: tenant %s, subscription %s (%s)", tenantID, subID, userName),
			}
		},
	}
}

func checkSubscriptions() Check {
	return Check{
		Name:     "az-subscriptions",
		Category: "azure",
		Critical: true,
		Run: func(ctx context.Context, ex CmdExecutor) CheckResult {
			out, err := ex.Run(ctx, "az", "account", "list", "--all", "--query", "length([?state=='Enabled'])", "-o", "tsv")
			if err != nil {
				return CheckResult{
					Name:    "az-subscriptions",
					Status:  StatusFail,
					Message: "Cannot list subscriptions",
					Fix:     "Ensure your identity has Reader on the subscriptions to audit",
				}
			}
			n, err := strconv.Atoi(strings.TrimSpace(out))
			if err != nil {
				return CheckResult{
					Name:    "az-subscriptions",
					Status:  StatusWarn,
					Message: "Could not count visible subscriptions",
				}
			}
			if n == 0 {
				return CheckResult{
					Name:    "az-subscriptions",
					Status:  StatusFail,
					Message: "No enabled subscription is visible to the current identity",
					Fix:     "Grant Reader on at least one subscription, or log in to another tenant",
				}
			}
			return CheckResult{
				Name:    "az-subscriptions",
				Status:  StatusPass,
				Message: fmt.Sprintf("%d enabled subscription(s) visible", n),
			}
		},
	}
}

// checkResourceProvider warns rather than fails: an unregistered provider
// only means the subscription holds no resources of that namespace.
func checkResourceProvider(provider string) Check {
	name := "provider-" + strings.ToLower(strings.TrimPrefix(provider, "Microsoft."))
	return Check{
		Name:     name,
		Category: "azure",
		Critical: false,
		Run: func(ctx context.Context, ex CmdExecutor) CheckResult {
			out, err := ex.Run(ctx, "az", "provider", "show", "-n", provider, "--query", "registrationState", "-o", "tsv")
			if err != nil {
				return CheckResult{
					Name:    name,
					Status:  StatusWarn,
					Message: fmt.Sprintf("Cannot query provider %s", provider),
				}
			}
			state := strings.TrimSpace(out)
			if strings.EqualFold(state, "Registered") {
				return CheckResult{
					Name:    name,
					Status:  StatusPass,
					Message: fmt.Sprintf("%s is registered", provider),
				}
			}
			return CheckResult{
				Name:    name,
				Status:  StatusWarn,
				Message: fmt.Sprintf("%s is %s; no %s resources will be found", provider, state, provider),
				Fix:     fmt.Sprintf("Run: az provider register -n %s", provider),
			}
		},
	}
}

func checkConfig(path string) Check {
	return Check{
		Name:     "config",
		Category: "config",
		Critical: true,
		Run: func(_ context.Context, _ CmdExecutor) CheckResult {
			if path == "" {
				return CheckResult{Name: "config", Status: StatusSkip, Message: "No config file given"}
			}
			if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
				return CheckResult{
					Name:    "config",
					Status:  StatusWarn,
					Message: fmt.Sprintf("%s not found", path),
					Fix:     "Run: azaudit init",
				}
			}
			cfg, err := config.Load(path)
			if err != nil {
				return CheckResult{Name: "config", Status: StatusFail, Message: err.Error(), Fix: "Run: azaudit validate"}
			}
			checks, err := config.ValidateSemantics(cfg)
			if err != nil {
				return CheckResult{Name: "config", Status: StatusFail, Message: err.Error()}
			}
			var errs, warns int
			for _, c := range checks {
				switch c.Status {
				case config.StatusError:
					errs++
				case config.StatusWarning:
					warns++
				}
			}
			switch {
			case errs > 0:
				return CheckResult{
					Name:    "config",
					Status:  StatusFail,
					Message: fmt.Sprintf("%s has %d error(s)", path, errs),
					Fix:     "Run: azaudit validate",
				}
			case warns > 0:
				return CheckResult{
					Name:    "config",
					Status:  StatusWarn,
					Message: fmt.Sprintf("%s is valid with %d warning(s)", path, warns),
				}
			}
			return CheckResult{Name: "config", Status: StatusPass, Message: fmt.Sprintf("%s is valid", path)}
		},
	}
}

// checkToolVersion runs a command, extracts version via regex, and compares to min version.
func checkToolVersion(ctx context.Context, ex CmdExecutor, tool string, args []string, pattern, minVersion, fix string) CheckResult {
	out, err := ex.Run(ctx, tool, args...)
	if err != nil {
		return CheckResult{
			Name:    tool,
			Status:  StatusFail,
			Message: fmt.Sprintf("%s not found or not in PATH", tool),
			Fix:     fix,
		}
	}

	re := regexp.MustCompile(pattern)
	matches := re.FindStringSubmatch(out)
	if len(matches) < 2 {
		return CheckResult{
			Name:    tool,
			Status:  StatusWarn,
			Message: fmt.Sprintf("%s found but could not parse version from output", tool),
		}
	}

	version := matches[1]
	if !semverGTE(version, minVersion) {
		return CheckResult{
			Name:    tool,
			Status:  StatusFail,
			Message: fmt.Sprintf("%s %s found, but >= %s required", tool, version, minVersion),
			Fix:     fix,
		}
	}

	return CheckResult{
		Name:    tool,
		Status:  StatusPass,
		Message: fmt.Sprintf("%s %s", tool, version),
	}
}

// semverGTE returns true if version >= min (simple major.minor.patch comparison).
func semverGTE(version, min string) bool {
	v := parseSemver(version)
	m := parseSemver(min)
	if v[0] != m[0] {
		return v[0] > m[0]
	}
	if v[1] != m[1] {
		return v[1] > m[1]
	}
	return v[2] >= m[2]
}

func parseSemver(s string) [3]int {
	parts := strings.SplitN(s, ".", 3)
	var result [3]int
	for i := 0; i < 3 && i < len(parts); i++ {
		numStr := strings.SplitN(parts[i], "-", 2)[0]
		numStr = strings.SplitN(numStr, "+", 2)[0]
		n, _ := strconv.Atoi(numStr)
		result[i] = n
	}
	return result
}

// extractJSONField does a simple regex extraction for "field": "value" from JSON.
func extractJSONField(jsonStr, field string) string {
	re := regexp.MustCompile(fmt.Sprintf(`"%s"\s*:\s*"([^"]*)"`, regexp.QuoteMeta(field)))
	m := re.FindStringSubmatch(jsonStr)
	if len(m) >= 2 {
		return m[1]
	}
	return "unknown"
}
