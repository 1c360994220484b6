// Package config provides the configuration schema, loader, validator, and
// default values for azaudit.yaml, which declares what a compliance run
// checks and where.
package config

import (
	"fmt"
	"strings"
	"time"
)

// AuditConfig is the root struct matching azaudit.yaml.
type AuditConfig struct {
	APIVersion string   `yaml:"apiVersion" json:"apiVersion"` // "azaudit/v1"
	Kind       string   `yaml:"kind" json:"kind"`             // "ComplianceAudit"
	Metadata   Metadata `yaml:"metadata" json:"metadata"`
	Spec       Spec     `yaml:"spec" json:"spec"`
}

// Metadata identifies the audit and the tenant it runs against.
type Metadata struct {
	Name   string `yaml:"name" json:"name"`
	Tenant string `yaml:"tenant" json:"tenant"`
}

// Spec contains the audit settings.
type Spec struct {
	Scope       Scope        `yaml:"scope" json:"scope"`
	Policies    Policies     `yaml:"policies" json:"policies"`
	Remediation Remediation  `yaml:"remediation" json:"remediation"`
	Export      Export       `yaml:"export" json:"export"`
	Scan        ScanSettings `yaml:"scan" json:"scan"`
}

// Scope narrows which subscriptions are audited. Both fields are optional;
// when both are set the allow-list is applied within the management group.
type Scope struct {
	ManagementGroup string   `yaml:"managementGroup,omitempty" json:"managementGroup,omitempty"`
	Subscriptions   []string `yaml:"subscriptions,omitempty" json:"subscriptions,omitempty"`
}

// Policies holds the three rule families.
type Policies struct {
	Tags              TagPolicy     `yaml:"tags" json:"tags"`
	OSSupport         OSPolicy      `yaml:"osSupport" json:"osSupport"`
	NetworkProtection NetworkPolicy `yaml:"networkProtection" json:"networkProtection"`
}

// TagPolicy requires tag keys on resources. An empty ResourceTypes list
// applies the rule to every resource.
type TagPolicy struct {
	Enabled       *bool    `yaml:"enabled,omitempty" json:"enabled,omitempty"`
	Required      []string `yaml:"required,omitempty" json:"required,omitempty"`
	ResourceTypes []string `yaml:"resourceTypes,omitempty" json:"resourceTypes,omitempty"`
}

// OSPolicy flags images listed as publisher:offer:sku in Denylist.
type OSPolicy struct {
	Enabled       *bool    `yaml:"enabled,omitempty" json:"enabled,omitempty"`
	Denylist      []string `yaml:"denylist,omitempty" json:"denylist,omitempty"`
	ResourceTypes []string `yaml:"resourceTypes,omitempty" json:"resourceTypes,omitempty"`
}

// NetworkPolicy requires an NSG on the NIC or subnet.
type NetworkPolicy struct {
	Enabled       *bool    `yaml:"enabled,omitempty" json:"enabled,omitempty"`
	ResourceTypes []string `yaml:"resourceTypes,omitempty" json:"resourceTypes,omitempty"`
}

// Remediation controls tag write-back.
type Remediation struct {
	Enabled bool `yaml:"enabled" json:"enabled"`
	DryRun  bool `yaml:"dryRun,omitempty" json:"dryRun,omitempty"`
}

// Export writes report files after a run.
type Export struct {
	Enabled   bool     `yaml:"enabled" json:"enabled"`
	Directory string   `yaml:"directory,omitempty" json:"directory,omitempty"`
	Formats   []string `yaml:"formats,omitempty" json:"formats,omitempty"` // "csv" | "json" | "markdown"
}

// ScanSettings tunes the run.
type ScanSettings struct {
	Concurrency int    `yaml:"concurrency,omitempty" json:"concurrency,omitempty"`
	CallTimeout string `yaml:"callTimeout,omitempty" json:"callTimeout,omitempty"` // Go duration, e.g. "30s"
	Backend     string `yaml:"backend,omitempty" json:"backend,omitempty"`         // "sdk" | "cli"
}

// Timeout parses CallTimeout. An empty value yields the default.
func (s ScanSettings) Timeout() (time.Duration, error) {
	raw := strings.TrimSpace(s.CallTimeout)
	if raw == "" {
		return DefaultCallTimeout, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid scan.callTimeout %q: %w", s.CallTimeout, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid scan.callTimeout %q: must be positive", s.CallTimeout)
	}
	return d, nil
}

// IsEnabled treats a nil switch as on.
func IsEnabled(b *bool) bool {
	return b == nil || *b
}
