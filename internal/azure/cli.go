package azure

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/kjourdan1/azaudit/internal/remediate"
)

// CLI abstracts az command execution to make the CLI backend testable.
type CLI interface {
	RunJSON(ctx context.Context, args ...string) (any, error)
}

// CommandRunner executes external commands.
type CommandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

// AzCLI is the default implementation using Azure CLI.
type AzCLI struct {
	runner CommandRunner
}

// NewAzCLI returns a default Azure CLI wrapper.
func NewAzCLI() *AzCLI {
	return &AzCLI{runner: defaultRunner}
}

// NewAzCLIWithRunner returns an Azure CLI wrapper with injected runner.
func NewAzCLIWithRunner(runner CommandRunner) *AzCLI {
	if runner == nil {
		runner = defaultRunner
	}
	return &AzCLI{runner: runner}
}

func defaultRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

// RunJSON executes az and decodes JSON output. Failures are classified from
// the az error text so callers can tell auth, throttling and missing
// resources apart.
func (a *AzCLI) RunJSON(ctx context.Context, args ...string) (any, error) {
	fullArgs := append(append([]string(nil), args...), "--output", "json", "--only-show-errors")
	out, err := a.runner(ctx, "az", fullArgs...)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("az %s: %w", strings.Join(args, " "), ctxErr)
		}
		return nil, cliError(args, err)
	}
	if len(strings.TrimSpace(string(out))) == 0 {
		return nil, nil
	}
	var data any
	if err := json.Unmarshal(out, &data); err != nil {
		return nil, fmt.Errorf("invalid az json output: %w", err)
	}
	return data, nil
}

func cliError(args []string, err error) error {
	msg := err.Error()
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && len(exitErr.Stderr) > 0 {
		msg = strings.TrimSpace(string(exitErr.Stderr))
	}
	cmd := strings.Join(args, " ")
	if kind := classifyMessage(msg); kind != nil {
		return fmt.Errorf("az %s: %s: %w", cmd, msg, kind)
	}
	return fmt.Errorf("az %s: %s", cmd, msg)
}

// classifyMessage maps az CLI error text to the remediation error sentinels.
func classifyMessage(msg string) error {
	lower := strings.ToLower(msg)
	switch {
	case containsAny(lower, "authorizationfailed", "(403)", "forbidden", "az login", "aadsts", "unauthorized"):
		return remediate.ErrAuth
	case containsAny(lower, "toomanyrequests", "(429)", "throttl"):
		return remediate.ErrThrottled
	case containsAny(lower, "resourcenotfound", "subscriptionnotfound", "(404)", "could not be found", "was not found"):
		return remediate.ErrNotFound
	}
	return nil
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
