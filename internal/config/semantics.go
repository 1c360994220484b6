package config

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/kjourdan1/azaudit/internal/policy"
)

// Check statuses.
const (
	StatusPass    = "pass"
	StatusWarning = "warning"
	StatusError   = "error"
)

// Check is a validation result entry for semantic/cross-field checks.
type Check struct {
	Name    string `json:"name"`
	Status  string `json:"status"` // pass | warning | error
	Message string `json:"message"`
}

var uuidRE = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)

// ValidateSemantics runs checks that the JSON schema cannot express.
func ValidateSemantics(cfg *AuditConfig) ([]Check, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	checks := make([]Check, 0, 12)
	add := func(name, status, message string) {
		checks = append(checks, Check{Name: name, Status: status, Message: message})
	}

	tenant := strings.TrimSpace(cfg.Metadata.Tenant)
	switch {
	case isPlaceholder(tenant):
		add("tenant", StatusWarning, "metadata.tenant is not set; the tenant of the current az session is used")
	case uuidRE.MatchString(tenant) || strings.Contains(tenant, "."):
		add("tenant", StatusPass, "tenant format is valid")
	default:
		add("tenant", StatusError, fmt.Sprintf("tenant %q must be a GUID or a domain name", tenant))
	}

	seenSubs := map[string]bool{}
	for _, sub := range cfg.Spec.Scope.Subscriptions {
		s := strings.TrimSpace(sub)
		if !uuidRE.MatchString(s) {
			add("scope-subscriptions", StatusError, fmt.Sprintf("subscription %q must be a GUID", sub))
			continue
		}
		if seenSubs[strings.ToLower(s)] {
			add("scope-subscriptions", StatusWarning, fmt.Sprintf("subscription %s is listed twice", s))
		}
		seenSubs[strings.ToLower(s)] = true
	}

	p := cfg.Spec.Policies
	tagsOn := IsEnabled(p.Tags.Enabled)
	osOn := IsEnabled(p.OSSupport.Enabled)
	netOn := IsEnabled(p.NetworkProtection.Enabled)
	if !tagsOn && !osOn && !netOn {
		add("policies", StatusError, "every policy is disabled; nothing would be audited")
	}

	if tagsOn {
		if len(p.Tags.Required) == 0 {
			add("tags-required", StatusError, "policies.tags is enabled but policies.tags.required is empty")
		}
		seen := map[string]bool{}
		for _, k := range p.Tags.Required {
			switch {
			case strings.TrimSpace(k) == "":
				add("tags-required", StatusError, "required tag names cannot be empty")
			case k != strings.TrimSpace(k):
				add("tags-required", StatusError, fmt.Sprintf("required tag %q has surrounding whitespace; tag keys match exactly", k))
			case seen[k]:
				add("tags-required", StatusWarning, fmt.Sprintf("required tag %q is listed twice", k))
			}
			seen[k] = true
		}
	}

	if osOn {
		if len(p.OSSupport.Denylist) == 0 {
			add("os-denylist", StatusWarning, "policies.osSupport is enabled with an empty denylist; no image will be flagged")
		}
		for _, entry := range p.OSSupport.Denylist {
			if !validURN(entry) {
				add("os-denylist", StatusError, fmt.Sprintf("denylist entry %q must be publisher:offer:sku", entry))
			}
		}
	}

	if cfg.Spec.Remediation.Enabled && !tagsOn {
		add("remediation", StatusWarning, "remediation only fixes missing tags, but policies.tags is disabled")
	}
	if cfg.Spec.Remediation.DryRun && !cfg.Spec.Remediation.Enabled {
		add("remediation", StatusWarning, "remediation.dryRun has no effect while remediation.enabled is false")
	}

	if _, err := cfg.Spec.Scan.Timeout(); err != nil {
		add("scan-call-timeout", StatusError, err.Error())
	}
	if c := cfg.Spec.Scan.Concurrency; c < 1 || c > 64 {
		add("scan-concurrency", StatusError, fmt.Sprintf("scan.concurrency %d must be between 1 and 64", c))
	}
	switch cfg.Spec.Scan.Backend {
	case BackendSDK, BackendCLI:
	default:
		add("scan-backend", StatusError, fmt.Sprintf("scan.backend %q must be %q or %q", cfg.Spec.Scan.Backend, BackendSDK, BackendCLI))
	}

	for _, f := range cfg.Spec.Export.Formats {
		switch f {
		case ExportFormatCSV, ExportFormatJSON, ExportFormatMD:
		default:
			add("export-formats", StatusError, fmt.Sprintf("unknown export format %q", f))
		}
	}

	if _, err := cfg.Rules(); err != nil {
		add("rules", StatusError, err.Error())
	}

	if !HasErrors(checks) {
		add("semantic-summary", StatusPass, "semantic checks passed")
	}
	return checks, nil
}

// HasErrors reports whether any check failed.
func HasErrors(checks []Check) bool {
	for _, c := range checks {
		if c.Status == StatusError {
			return true
		}
	}
	return false
}

func validURN(entry string) bool {
	parts := strings.Split(policy.NormalizeURN(entry), ":")
	if len(parts) != 3 {
		return false
	}
	for _, part := range parts {
		if part == "" {
			return false
		}
	}
	return true
}

func isPlaceholder(value string) bool {
	v := strings.TrimSpace(value)
	return v == "" || strings.HasPrefix(v, "<")
}
