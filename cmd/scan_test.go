package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kjourdan1/azaudit/internal/config"
	"github.com/kjourdan1/azaudit/internal/exitcode"
	"github.com/kjourdan1/azaudit/internal/inventory"
	"github.com/kjourdan1/azaudit/internal/output"
)

const (
	subA = "aaaaaaaa-0000-0000-0000-000000000001"
	subB = "aaaaaaaa-0000-0000-0000-000000000002"
)

// fakeBackend serves a fixed inventory and records tag writes.
type fakeBackend struct {
	accounts    []inventory.Account
	accountsErr error
	resources   map[string][]inventory.Resource
	groups      map[string][]inventory.NetworkSecurityGroup

	mu     sync.Mutex
	writes map[string]map[string]string
}

func (f *fakeBackend) ListAccounts(context.Context) ([]inventory.Account, error) {
	return f.accounts, f.accountsErr
}

func (f *fakeBackend) ListResources(_ context.Context, acc inventory.Account) ([]inventory.Resource, error) {
	src := f.resources[acc.ID]
	out := make([]inventory.Resource, len(src))
	for i, r := range src {
		tags := make(map[string]string, len(r.Tags))
		for k, v := range r.Tags {
			tags[k] = v
		}
		r.Tags = tags
		out[i] = r
	}
	return out, nil
}

func (f *fakeBackend) ListNetworkSecurityGroups(_ context.Context, acc inventory.Account) ([]inventory.NetworkSecurityGroup, error) {
	return f.groups[acc.ID], nil
}

func (f *fakeBackend) UpdateTags(_ context.Context, resourceID string, tags map[string]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writes == nil {
		f.writes = map[string]map[string]string{}
	}
	f.writes[resourceID] = tags
	return nil
}

func (f *fakeBackend) written() map[string]map[string]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]map[string]string, len(f.writes))
	for k, v := range f.writes {
		out[k] = v
	}
	return out
}

func vmID(sub, name string) string {
	return "/subscriptions/" + sub + "/resourceGroups/rg/providers/Microsoft.Compute/virtualMachines/" + name
}

// newFakeBackend returns two subscriptions: subA has a compliant VM and a VM
// missing CostCenter on a retired image without an NSG; subB is empty.
func newFakeBackend() *fakeBackend {
	nic := "/subscriptions/" + subA + "/resourceGroups/rg/providers/Microsoft.Network/networkInterfaces/"
	return &fakeBackend{
		accounts: []inventory.Account{
			{ID: subA, DisplayName: "prod"},
			{ID: subB, DisplayName: "dev"},
		},
		resources: map[string][]inventory.Resource{
			subA: {
				{
					ID: vmID(subA, "good"), Name: "good", Type: inventory.TypeVirtualMachine, AccountID: subA,
					Tags:    map[string]string{"Owner": "ops", "CostCenter": "42"},
					Image:   &inventory.ImageReference{Publisher: "Canonical", Offer: "0001-com-ubuntu-server-jammy", SKU: "22_04-lts"},
					Network: &inventory.NetworkProfile{NICID: nic + "good-nic"},
				},
				{
					ID: vmID(subA, "legacy"), Name: "legacy", Type: inventory.TypeVirtualMachine, AccountID: subA,
					Tags:    map[string]string{"Owner": "ops"},
					Image:   &inventory.ImageReference{Publisher: "Canonical", Offer: "UbuntuServer", SKU: "16.04-LTS"},
					Network: &inventory.NetworkProfile{NICID: nic + "legacy-nic"},
				},
			},
		},
		groups: map[string][]inventory.NetworkSecurityGroup{
			subA: {{ID: "nsg-1", Name: "nsg-1", NICIDs: []string{nic + "good-nic"}}},
		},
	}
}

func useBackend(t *testing.T, b *fakeBackend) {
	t.Helper()
	original := newBackend
	newBackend = func(context.Context, *config.AuditConfig, string) (auditBackend, error) {
		return b, nil
	}
	t.Cleanup(func() { newBackend = original })
}

func useConfirm(t *testing.T, answer bool) *int {
	t.Helper()
	calls := 0
	original := confirmRemediation
	confirmRemediation = func(string) (bool, error) {
		calls++
		return answer, nil
	}
	t.Cleanup(func() { confirmRemediation = original })
	return &calls
}

func scanConfig(t *testing.T) (string, string) {
	t.Helper()
	t.Setenv("CI", "")
	dir := t.TempDir()
	return writeFile(t, dir, "azaudit.yaml", validConfigYAML), dir
}

func TestScanCmd_TableReport(t *testing.T) {
	b := newFakeBackend()
	useBackend(t, b)
	path, _ := scanConfig(t)

	stdout, stderr, err := executeCommand("scan", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, stdout, "Compliance by rule")
	assert.Contains(t, stdout, "required-tags")
	assert.Contains(t, stdout, "os-end-of-support")
	assert.Contains(t, stdout, "nsg-coverage")
	assert.Contains(t, stderr, "2 subscription(s), 2 resource(s)")
	assert.Contains(t, stderr, "non-compliant")
	assert.Empty(t, b.written())
	assert.NotEmpty(t, RunID())
}

func TestScanCmd_FailOnFindings(t *testing.T) {
	useBackend(t, newFakeBackend())
	path, _ := scanConfig(t)

	_, _, err := executeCommand("scan", "--config", path, "--fail-on-findings")
	require.Error(t, err)
	assert.Equal(t, exitcode.Findings, exitcode.Of(err))
}

func TestScanCmd_NoFindingsExitsZero(t *testing.T) {
	b := newFakeBackend()
	b.resources[subA] = b.resources[subA][:1]
	useBackend(t, b)
	path, _ := scanConfig(t)

	_, stderr, err := executeCommand("scan", "--config", path, "--fail-on-findings")
	require.NoError(t, err)
	assert.Contains(t, stderr, "no violations found")
}

func TestScanCmd_JSON(t *testing.T) {
	useBackend(t, newFakeBackend())
	path, _ := scanConfig(t)

	stdout, _, err := executeCommand("scan", "--config", path, "--json")
	require.NoError(t, err)

	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(stdout), &payload))
	assert.Equal(t, RunID(), payload["runId"])
	assert.Equal(t, "00000000-0000-0000-0000-000000000001", payload["tenantId"])
}

// printedError returns what main writes to stdout when reporting err.
func printedError(t *testing.T, err error) string {
	t.Helper()
	var buf bytes.Buffer
	original := output.Stdout
	output.Stdout = &buf
	t.Cleanup(func() {
		output.Stdout = original
		output.Init(false, false)
	})
	output.PrintError(err)
	return buf.String()
}

func TestScanCmd_JSONFailOnFindingsWritesOneDocument(t *testing.T) {
	useBackend(t, newFakeBackend())
	path, _ := scanConfig(t)

	stdout, _, err := executeCommand("scan", "--config", path, "--json", "--fail-on-findings")
	require.Error(t, err)
	assert.Equal(t, exitcode.Findings, exitcode.Of(err))
	assert.Empty(t, printedError(t, err))

	dec := json.NewDecoder(strings.NewReader(stdout))
	var payload map[string]interface{}
	require.NoError(t, dec.Decode(&payload))
	assert.Equal(t, RunID(), payload["runId"])
	assert.Equal(t, "v1", payload["schemaVersion"])
	assert.False(t, dec.More(), "stdout holds a single JSON document")
}

func TestScanCmd_JSONConfigErrorIsEnveloped(t *testing.T) {
	stdout, _, err := executeCommand("scan", "--config", filepath.Join(t.TempDir(), "missing.yaml"), "--json")
	require.Error(t, err)
	assert.Empty(t, stdout)

	var env output.JSONResult
	require.NoError(t, json.Unmarshal([]byte(printedError(t, err)), &env))
	assert.Equal(t, "error", env.Status)
	assert.Contains(t, env.Error, "loading config")
}

func TestScanCmd_JSONExportFailureWritesNoReport(t *testing.T) {
	useBackend(t, newFakeBackend())
	path, dir := scanConfig(t)
	blocker := writeFile(t, dir, "reports", "not a directory")

	stdout, _, err := executeCommand("scan", "--config", path, "--json", "--output", blocker)
	require.Error(t, err)
	assert.Empty(t, stdout)
	assert.NotEmpty(t, printedError(t, err))
}

func TestScanCmd_MarkdownFormat(t *testing.T) {
	useBackend(t, newFakeBackend())
	path, _ := scanConfig(t)

	stdout, _, err := executeCommand("scan", "--config", path, "--format", "markdown")
	require.NoError(t, err)
	assert.Contains(t, stdout, "- Run: `"+RunID()+"`")
}

func TestScanCmd_InvalidFormat(t *testing.T) {
	path, _ := scanConfig(t)
	_, _, err := executeCommand("scan", "--config", path, "--format", "xml")
	require.Error(t, err)
	assert.Equal(t, exitcode.Validation, exitcode.Of(err))
}

func TestScanCmd_MissingConfig(t *testing.T) {
	_, _, err := executeCommand("scan", "--config", filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Equal(t, exitcode.Validation, exitcode.Of(err))
}

func TestScanCmd_InvalidDenylist(t *testing.T) {
	b := newFakeBackend()
	useBackend(t, b)
	dir := t.TempDir()
	path := writeFile(t, dir, "azaudit.yaml", strings.Replace(validConfigYAML, "Canonical:UbuntuServer:16.04-LTS", "UbuntuServer", 1))

	_, stderr, err := executeCommand("scan", "--config", path)
	require.Error(t, err)
	assert.Equal(t, exitcode.Validation, exitcode.Of(err))
	assert.Contains(t, stderr, "os-denylist")
}

func TestScanCmd_EnumerationFailureAborts(t *testing.T) {
	b := newFakeBackend()
	b.accountsErr = errors.New("AuthorizationFailed")
	useBackend(t, b)
	path, _ := scanConfig(t)

	_, _, err := executeCommand("scan", "--config", path)
	require.Error(t, err)
	assert.Equal(t, exitcode.Azure, exitcode.Of(err))
	assert.Contains(t, err.Error(), "AuthorizationFailed")
}

func TestScanCmd_RemediateWritesMissingTags(t *testing.T) {
	b := newFakeBackend()
	useBackend(t, b)
	calls := useConfirm(t, false)
	path, _ := scanConfig(t)

	_, stderr, err := executeCommand("scan", "--config", path, "--remediate", "--yes")
	require.NoError(t, err)
	assert.Zero(t, *calls)

	writes := b.written()
	require.Len(t, writes, 1)
	assert.Equal(t, map[string]string{"Owner": "ops", "CostCenter": ""}, writes[vmID(subA, "legacy")])
	assert.Contains(t, stderr, "remediation: 1 fixed")
}

func TestScanCmd_RemediateDeclinedFallsBackToDryRun(t *testing.T) {
	b := newFakeBackend()
	useBackend(t, b)
	calls := useConfirm(t, false)
	path, _ := scanConfig(t)

	_, stderr, err := executeCommand("scan", "--config", path, "--remediate")
	require.NoError(t, err)
	assert.Equal(t, 1, *calls)
	assert.Empty(t, b.written())
	assert.Contains(t, stderr, "remediation (dry run)")
}

func TestScanCmd_RemediateConfirmed(t *testing.T) {
	b := newFakeBackend()
	useBackend(t, b)
	useConfirm(t, true)
	path, _ := scanConfig(t)

	_, _, err := executeCommand("scan", "--config", path, "--remediate")
	require.NoError(t, err)
	assert.Len(t, b.written(), 1)
}

func TestScanCmd_DryRunWritesNothing(t *testing.T) {
	b := newFakeBackend()
	useBackend(t, b)
	calls := useConfirm(t, true)
	path, _ := scanConfig(t)

	_, stderr, err := executeCommand("scan", "--config", path, "--remediate", "--dry-run")
	require.NoError(t, err)
	assert.Zero(t, *calls)
	assert.Empty(t, b.written())
	assert.Contains(t, stderr, "remediation (dry run): 1 fixed")
}

func TestScanCmd_DryRunImpliesRemediate(t *testing.T) {
	b := newFakeBackend()
	useBackend(t, b)
	calls := useConfirm(t, true)
	path, _ := scanConfig(t)

	stdout, _, err := executeCommand("scan", "--config", path, "--dry-run", "--json")
	require.NoError(t, err)
	assert.Zero(t, *calls)
	assert.Empty(t, b.written())

	var payload struct {
		RemediationEnabled bool `json:"remediationEnabled"`
		DryRun             bool `json:"dryRun"`
		Remediations       []struct {
			DryRun    bool     `json:"dryRun"`
			TagsAdded []string `json:"tagsAdded"`
		} `json:"remediations"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &payload))
	assert.True(t, payload.RemediationEnabled)
	assert.True(t, payload.DryRun)
	require.Len(t, payload.Remediations, 1)
	assert.True(t, payload.Remediations[0].DryRun)
	assert.Equal(t, []string{"CostCenter"}, payload.Remediations[0].TagsAdded)
}

func TestScanCmd_SubscriptionFilter(t *testing.T) {
	useBackend(t, newFakeBackend())
	path, _ := scanConfig(t)

	_, stderr, err := executeCommand("scan", "--config", path, "--subscription", subB)
	require.NoError(t, err)
	assert.Contains(t, stderr, "1 subscription(s), 0 resource(s)")
	assert.Contains(t, stderr, "no violations found")
}

func TestScanCmd_ExportWritesFiles(t *testing.T) {
	useBackend(t, newFakeBackend())
	path, dir := scanConfig(t)
	outDir := filepath.Join(dir, "reports")

	_, _, err := executeCommand("scan", "--config", path, "--output", outDir)
	require.NoError(t, err)

	entries, err := os.ReadDir(outDir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	require.Len(t, names, 2)
	assert.True(t, strings.HasSuffix(names[0], "-findings.csv"), names[0])
	assert.True(t, strings.HasSuffix(names[1], ".json"), names[1])
	assert.Contains(t, names[0], RunID()[:8])
}

func TestScanCmd_BackendEnvOverride(t *testing.T) {
	var seen string
	original := newBackend
	newBackend = func(_ context.Context, cfg *config.AuditConfig, _ string) (auditBackend, error) {
		seen = cfg.Spec.Scan.Backend
		return newFakeBackend(), nil
	}
	t.Cleanup(func() { newBackend = original })
	path, _ := scanConfig(t)

	_, _, err := executeCommand("scan", "--config", path, "--backend", "cli")
	require.NoError(t, err)
	assert.Equal(t, config.BackendCLI, seen)
}
