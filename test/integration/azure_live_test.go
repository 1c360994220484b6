//go:build integration

package integration

import (
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
)

func requireLiveAzure(t *testing.T) {
	t.Helper()
	if os.Getenv("AZURE_TENANT_ID") == "" || os.Getenv("AZURE_SUBSCRIPTION_ID") == "" {
		t.Skip("live Azure integration test skipped: missing AZURE_TENANT_ID or AZURE_SUBSCRIPTION_ID")
	}
}

func TestLiveDoctor_AzureSession(t *testing.T) {
	requireLiveAzure(t)

	cmd := exec.Command("az", "account", "show", "--output", "json")
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("az account show failed: %v, output: %s", err, string(out))
	}

	var payload map[string]any
	if err := json.Unmarshal(out, &payload); err != nil {
		t.Fatalf("invalid account json: %v", err)
	}
	if payload["tenantId"] == nil || payload["id"] == nil {
		t.Fatalf("missing tenantId/id in az account show output: %s", string(out))
	}
}

func TestLiveScan_SingleSubscription(t *testing.T) {
	requireLiveAzure(t)

	binPath := buildCLIForIntegration(t)
	configPath := filepath.Join(t.TempDir(), "azaudit.yaml")
	env := append(os.Environ(), "CI=true", "HOME="+t.TempDir())

	_, stderr, code := runCLI(t, binPath, env, "init", "--ci", "--tenant", os.Getenv("AZURE_TENANT_ID"), "--config", configPath)
	if code != 0 {
		t.Fatalf("init failed (%d): %s", code, stderr)
	}

	stdout, stderr, code := runCLI(t, binPath, env, "scan", "--ci", "--json", "--config", configPath,
		"--subscription", os.Getenv("AZURE_SUBSCRIPTION_ID"))
	if code != 0 {
		t.Fatalf("scan failed (%d): %s", code, stderr)
	}

	var report map[string]any
	if err := json.Unmarshal([]byte(stdout), &report); err != nil {
		t.Fatalf("invalid report json: %v\n%s", err, stdout)
	}
	summary, _ := report["summary"].(map[string]any)
	if summary["failedAccounts"] != float64(0) {
		t.Fatalf("subscription could not be scanned: %s", stdout)
	}
}
