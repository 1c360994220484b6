package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func hasCheck(checks []Check, name, status string) bool {
	for _, c := range checks {
		if c.Name == name && c.Status == status {
			return true
		}
	}
	return false
}

func validConfig(t *testing.T) *AuditConfig {
	t.Helper()
	cfg, err := Load(fixture("full.yaml"))
	require.NoError(t, err)
	return cfg
}

func TestValidateSemantics_Valid(t *testing.T) {
	checks, err := ValidateSemantics(validConfig(t))
	require.NoError(t, err)
	assert.False(t, HasErrors(checks), "unexpected errors: %v", checks)
	assert.True(t, hasCheck(checks, "tenant", StatusPass))
	assert.True(t, hasCheck(checks, "semantic-summary", StatusPass))
}

func TestValidateSemantics_Nil(t *testing.T) {
	_, err := ValidateSemantics(nil)
	assert.Error(t, err)
}

func TestValidateSemantics_Failures(t *testing.T) {
	off := false
	on := true
	tests := []struct {
		name   string
		mutate func(*AuditConfig)
		check  string
		status string
	}{
		{"tenant not a guid", func(c *AuditConfig) { c.Metadata.Tenant = "contoso" }, "tenant", StatusError},
		{"tenant domain", func(c *AuditConfig) { c.Metadata.Tenant = "contoso.onmicrosoft.com" }, "tenant", StatusPass},
		{"tenant missing", func(c *AuditConfig) { c.Metadata.Tenant = "" }, "tenant", StatusWarning},
		{"subscription not a guid", func(c *AuditConfig) { c.Spec.Scope.Subscriptions = []string{"prod"} }, "scope-subscriptions", StatusError},
		{"subscription twice", func(c *AuditConfig) {
			c.Spec.Scope.Subscriptions = []string{"aaaaaaaa-0000-0000-0000-000000000001", "AAAAAAAA-0000-0000-0000-000000000001"}
		}, "scope-subscriptions", StatusWarning},
		{"all policies off", func(c *AuditConfig) {
			c.Spec.Policies.Tags.Enabled = &off
			c.Spec.Policies.OSSupport.Enabled = &off
			c.Spec.Policies.NetworkProtection.Enabled = &off
		}, "policies", StatusError},
		{"tags on without keys", func(c *AuditConfig) {
			c.Spec.Policies.Tags.Enabled = &on
			c.Spec.Policies.Tags.Required = nil
		}, "tags-required", StatusError},
		{"tag key whitespace", func(c *AuditConfig) { c.Spec.Policies.Tags.Required = []string{" Owner"} }, "tags-required", StatusError},
		{"tag key twice", func(c *AuditConfig) { c.Spec.Policies.Tags.Required = []string{"Owner", "Owner"} }, "tags-required", StatusWarning},
		{"empty denylist", func(c *AuditConfig) { c.Spec.Policies.OSSupport.Denylist = nil }, "os-denylist", StatusWarning},
		{"bad urn", func(c *AuditConfig) { c.Spec.Policies.OSSupport.Denylist = []string{"Canonical::18.04-LTS"} }, "os-denylist", StatusError},
		{"remediation without tags", func(c *AuditConfig) { c.Spec.Policies.Tags.Enabled = &off }, "remediation", StatusWarning},
		{"dry run alone", func(c *AuditConfig) { c.Spec.Remediation.Enabled = false }, "remediation", StatusWarning},
		{"bad timeout", func(c *AuditConfig) { c.Spec.Scan.CallTimeout = "later" }, "scan-call-timeout", StatusError},
		{"bad concurrency", func(c *AuditConfig) { c.Spec.Scan.Concurrency = 500 }, "scan-concurrency", StatusError},
		{"bad backend", func(c *AuditConfig) { c.Spec.Scan.Backend = "rest" }, "scan-backend", StatusError},
		{"bad export format", func(c *AuditConfig) { c.Spec.Export.Formats = []string{"xlsx"} }, "export-formats", StatusError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig(t)
			tt.mutate(cfg)
			checks, err := ValidateSemantics(cfg)
			require.NoError(t, err)
			assert.True(t, hasCheck(checks, tt.check, tt.status), "want %s=%s in %v", tt.check, tt.status, checks)
		})
	}
}

func TestValidateSemantics_VersionedURNAccepted(t *testing.T) {
	cfg := validConfig(t)
	cfg.Spec.Policies.OSSupport.Denylist = []string{"Canonical:UbuntuServer:18.04-LTS:latest"}
	checks, err := ValidateSemantics(cfg)
	require.NoError(t, err)
	assert.False(t, HasErrors(checks), "%v", checks)
}
