package config

import (
	"time"

	"github.com/kjourdan1/azaudit/internal/inventory"
)

const (
	DefaultAPIVersion   = "azaudit/v1"
	DefaultKind         = "ComplianceAudit"
	DefaultConcurrency  = 4
	DefaultCallTimeout  = 30 * time.Second
	DefaultBackend      = BackendSDK
	DefaultExportDir    = "reports"
	DefaultFileName     = "azaudit.yaml"
	BackendSDK          = "sdk"
	BackendCLI          = "cli"
	ExportFormatCSV     = "csv"
	ExportFormatJSON    = "json"
	ExportFormatMD      = "markdown"
	defaultTimeoutValue = "30s"
)

// DefaultExportFormats are written when export.formats is empty.
var DefaultExportFormats = []string{ExportFormatCSV, ExportFormatJSON}

// ApplyDefaults fills in default values for optional fields that were not
// specified in the YAML. It is called after parsing and before validation.
func ApplyDefaults(cfg *AuditConfig) {
	if cfg.APIVersion == "" {
		cfg.APIVersion = DefaultAPIVersion
	}
	if cfg.Kind == "" {
		cfg.Kind = DefaultKind
	}

	p := &cfg.Spec.Policies
	if p.Tags.Enabled == nil {
		p.Tags.Enabled = boolPtr(len(p.Tags.Required) > 0)
	}
	if p.OSSupport.Enabled == nil {
		p.OSSupport.Enabled = boolPtr(len(p.OSSupport.Denylist) > 0)
	}
	if len(p.OSSupport.ResourceTypes) == 0 {
		p.OSSupport.ResourceTypes = []string{inventory.TypeVirtualMachine}
	}
	if p.NetworkProtection.Enabled == nil {
		p.NetworkProtection.Enabled = boolPtr(true)
	}
	if len(p.NetworkProtection.ResourceTypes) == 0 {
		p.NetworkProtection.ResourceTypes = []string{inventory.TypeVirtualMachine}
	}

	if cfg.Spec.Export.Directory == "" {
		cfg.Spec.Export.Directory = DefaultExportDir
	}
	if len(cfg.Spec.Export.Formats) == 0 {
		cfg.Spec.Export.Formats = append([]string(nil), DefaultExportFormats...)
	}

	if cfg.Spec.Scan.Concurrency == 0 {
		cfg.Spec.Scan.Concurrency = DefaultConcurrency
	}
	if cfg.Spec.Scan.CallTimeout == "" {
		cfg.Spec.Scan.CallTimeout = defaultTimeoutValue
	}
	if cfg.Spec.Scan.Backend == "" {
		cfg.Spec.Scan.Backend = DefaultBackend
	}
}

// Default returns a starter configuration with the common required tags,
// a denylist of retired Ubuntu and Windows Server images, and NSG coverage on.
func Default(name, tenant string) *AuditConfig {
	cfg := &AuditConfig{
		Metadata: Metadata{Name: name, Tenant: tenant},
		Spec: Spec{
			Policies: Policies{
				Tags: TagPolicy{Required: []string{"Environment", "Owner", "CostCenter"}},
				OSSupport: OSPolicy{Denylist: []string{
					"Canonical:UbuntuServer:16.04-LTS",
					"Canonical:UbuntuServer:18.04-LTS",
					"MicrosoftWindowsServer:WindowsServer:2012-R2-Datacenter",
					"OpenLogic:CentOS:7.9",
				}},
			},
		},
	}
	ApplyDefaults(cfg)
	return cfg
}

func boolPtr(b bool) *bool {
	return &b
}
