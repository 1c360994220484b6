// Package azauth resolves the Azure credential azaudit scans with.
//
// Authentication strategy (in order):
//  1. Environment variables (AZURE_CLIENT_ID + AZURE_CLIENT_SECRET + AZURE_TENANT_ID)
//  2. Azure CLI session (az login)
//  3. Interactive browser login, unless running in CI
//
// The credential is resolved once per invocation and shared by every
// subscription scan.
package azauth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/fatih/color"

	"github.com/kjourdan1/azaudit/internal/remediate"
)

// Credential holds a resolved Azure credential and the tenant it targets.
type Credential struct {
	TokenCredential azcore.TokenCredential
	TenantID        string
	Method          string // "environment", "cli", "browser"
}

// Options configures the authentication flow.
type Options struct {
	TenantID    string
	Interactive bool // allow a browser popup if other methods fail
	Verbose     bool
	Out         io.Writer // progress messages; defaults to stderr
}

// testCredential verifies the credential can obtain an ARM token.
var testCredential = func(ctx context.Context, cred azcore.TokenCredential) error {
	_, err := cred.GetToken(ctx, policy.TokenRequestOptions{
		Scopes: []string{"https://management.azure.com/.default"},
	})
	return err
}

// Login attempts each strategy in turn and returns the first credential
// that can obtain a token.
func Login(ctx context.Context, opts Options) (*Credential, error) {
	if opts.TenantID == "" {
		return nil, fmt.Errorf("tenant ID is required for Azure authentication")
	}
	out := opts.Out
	if out == nil {
		out = os.Stderr
	}

	cyan := color.New(color.FgCyan)
	green := color.New(color.FgGreen, color.Bold)

	if opts.Verbose {
		cyan.Fprintf(out, "Authenticating to Azure tenant %s\n", opts.TenantID)
	}

	if os.Getenv("AZURE_CLIENT_ID") != "" && os.Getenv("AZURE_TENANT_ID") != "" {
		cred, err := azidentity.NewEnvironmentCredential(&azidentity.EnvironmentCredentialOptions{})
		if err == nil {
			err = testCredential(ctx, cred)
			if err == nil {
				green.Fprintln(out, "Authenticated via environment variables")
				return &Credential{TokenCredential: cred, TenantID: opts.TenantID, Method: "environment"}, nil
			}
		}
		if opts.Verbose {
			fmt.Fprintf(out, "  environment credential failed: %v\n", err)
		}
	}

	cliCred, err := azidentity.NewAzureCLICredential(&azidentity.AzureCLICredentialOptions{
		TenantID: opts.TenantID,
	})
	if err == nil {
		if err := testCredential(ctx, cliCred); err == nil {
			if opts.Verbose {
				green.Fprintln(out, "Authenticated via Azure CLI")
			}
			return &Credential{TokenCredential: cliCred, TenantID: opts.TenantID, Method: "cli"}, nil
		} else if opts.Verbose {
			fmt.Fprintf(out, "  Azure CLI credential failed: %v\n", err)
		}
	}

	if opts.Interactive {
		fmt.Fprintf(out, "Opening browser for Azure login (tenant %s)\n", opts.TenantID)
		browserCred, err := azidentity.NewInteractiveBrowserCredential(&azidentity.InteractiveBrowserCredentialOptions{
			TenantID: opts.TenantID,
		})
		if err == nil {
			if err := testCredential(ctx, browserCred); err == nil {
				green.Fprintln(out, "Authenticated via browser login")
				return &Credential{TokenCredential: browserCred, TenantID: opts.TenantID, Method: "browser"}, nil
			} else {
				fmt.Fprintf(out, "  browser login failed: %v\n", err)
			}
		} else {
			fmt.Fprintf(out, "  could not start browser login: %v\n", err)
		}
	}

	return nil, &AuthError{TenantID: opts.TenantID}
}

// AuthError is returned when no credential could be resolved. It carries
// setup instructions and unwraps to remediate.ErrAuth.
type AuthError struct {
	TenantID string
}

func (e *AuthError) Error() string {
	var sb strings.Builder
	sb.WriteString("Azure authentication failed. No valid credential found.\n\n")
	sb.WriteString("To connect azaudit to your tenant, use one of:\n\n")

	sb.WriteString("Azure CLI (local use):\n")
	sb.WriteString(fmt.Sprintf("  az login --tenant %s\n\n", e.TenantID))

	sb.WriteString("Service principal (CI):\n")
	sb.WriteString(fmt.Sprintf("  export AZURE_TENANT_ID=%s\n", e.TenantID))
	sb.WriteString("  export AZURE_CLIENT_ID=<app-id>\n")
	sb.WriteString("  export AZURE_CLIENT_SECRET=<secret>\n\n")

	sb.WriteString("Required permissions:\n")
	sb.WriteString("  - Reader on every audited subscription\n")
	sb.WriteString("  - Tag Contributor where remediation is enabled\n")
	return sb.String()
}

func (e *AuthError) Unwrap() error {
	return remediate.ErrAuth
}

// SubscriptionSummary holds basic info about an Azure subscription from the CLI.
type SubscriptionSummary struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	TenantID  string `json:"tenantId"`
	IsDefault bool   `json:"isDefault"`
}

// commandRunner abstracts exec.Command for testing.
var commandRunner = func(name string, args ...string) ([]byte, error) {
	return exec.CommandContext(context.Background(), name, args...).Output()
}

// SetCommandRunner replaces the command runner (for testing).
func SetCommandRunner(fn func(string, ...string) ([]byte, error)) {
	commandRunner = fn
}

// GetCommandRunner returns the current command runner (for test save/restore).
func GetCommandRunner() func(string, ...string) ([]byte, error) {
	return commandRunner
}

// DetectTenantID reads the tenant ID from the active Azure CLI session.
func DetectTenantID() (string, error) {
	out, err := commandRunner("az", "account", "show", "--query", "tenantId", "-o", "tsv")
	if err != nil {
		return "", fmt.Errorf("could not detect tenant ID from Azure CLI; run 'az login' first or pass --tenant explicitly")
	}
	tid := strings.TrimSpace(string(out))
	if tid == "" {
		return "", fmt.Errorf("Azure CLI returned empty tenant ID; run 'az login' first")
	}
	return tid, nil
}

// DetectSubscriptions returns all subscriptions visible to the current Azure CLI session.
func DetectSubscriptions() ([]SubscriptionSummary, error) {
	out, err := commandRunner("az", "account", "list", "--query", "[].{id:id, name:name, tenantId:tenantId, isDefault:isDefault}", "-o", "json")
	if err != nil {
		return nil, fmt.Errorf("could not list subscriptions from Azure CLI; run 'az login' first")
	}
	var subs []SubscriptionSummary
	if err := json.Unmarshal(out, &subs); err != nil {
		return nil, fmt.Errorf("parsing Azure CLI subscription list: %w", err)
	}
	return subs, nil
}
