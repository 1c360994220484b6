package wizard

import (
	"errors"
	"fmt"
	"strings"

	"github.com/AlecAivazis/survey/v2"

	"github.com/kjourdan1/azaudit/internal/config"
)

// InitConfig captures all inputs collected by the init wizard.
type InitConfig struct {
	Name          string
	TenantID      string
	Policies      []string
	RequiredTags  []string
	Denylist      []string // nil keeps the built-in denylist
	Subscriptions []string
	Backend       string
	Remediate     bool
	DryRun        bool
	Export        bool
}

func (c InitConfig) has(rule string) bool {
	for _, p := range c.Policies {
		if p == rule {
			return true
		}
	}
	return false
}

// ToAuditConfig converts wizard input to an AuditConfig, starting from
// config.Default so unanswered fields keep their starter values.
func (c InitConfig) ToAuditConfig() *config.AuditConfig {
	name := strings.TrimSpace(c.Name)
	if name == "" {
		name = "compliance"
	}
	cfg := config.Default(name, strings.TrimSpace(c.TenantID))

	p := &cfg.Spec.Policies
	p.Tags.Enabled = boolPtr(c.has(config.RuleRequiredTags))
	if len(c.RequiredTags) > 0 {
		p.Tags.Required = c.RequiredTags
	}
	p.OSSupport.Enabled = boolPtr(c.has(config.RuleOSEndOfSupport))
	if c.Denylist != nil {
		p.OSSupport.Denylist = c.Denylist
	}
	p.NetworkProtection.Enabled = boolPtr(c.has(config.RuleNetworkProtection))

	cfg.Spec.Scope.Subscriptions = c.Subscriptions
	if c.Backend != "" {
		cfg.Spec.Scan.Backend = c.Backend
	}
	cfg.Spec.Remediation = config.Remediation{Enabled: c.Remediate, DryRun: c.Remediate && c.DryRun}
	cfg.Spec.Export.Enabled = c.Export
	return cfg
}

// InitWizard drives the interactive init flow.
type InitWizard struct {
	prompter Prompter
}

// NewInitWizard returns an init wizard; if p is nil, survey is used.
func NewInitWizard(p Prompter) *InitWizard {
	if p == nil {
		p = NewSurveyPrompter()
	}
	return &InitWizard{prompter: p}
}

// Run collects wizard input in order. tenant, when non-empty, is offered
// as the default tenant answer.
func (w *InitWizard) Run(tenant string) (*InitConfig, error) {
	cfg := &InitConfig{}
	var err error

	cfg.Name, err = w.prompter.Input("Audit name", "compliance", survey.ComposeValidators(ValidateNonEmpty))
	if err != nil {
		return nil, handlePromptErr(err)
	}

	cfg.TenantID, err = w.prompter.Input("Tenant ID or domain (blank for the current az session)", tenant, ValidateOptionalTenant)
	if err != nil {
		return nil, handlePromptErr(err)
	}

	rules := []string{config.RuleRequiredTags, config.RuleOSEndOfSupport, config.RuleNetworkProtection}
	cfg.Policies, err = w.prompter.MultiSelect("Policies to enforce", rules, rules)
	if err != nil {
		return nil, handlePromptErr(err)
	}
	if len(cfg.Policies) == 0 {
		return nil, fmt.Errorf("at least one policy must be selected")
	}

	if cfg.has(config.RuleRequiredTags) {
		tags, err := w.prompter.Input("Required tag keys (comma separated)", "Environment,Owner,CostCenter", survey.ComposeValidators(ValidateNonEmpty))
		if err != nil {
			return nil, handlePromptErr(err)
		}
		cfg.RequiredTags = SplitList(tags)
	}

	if cfg.has(config.RuleOSEndOfSupport) {
		builtin, err := w.prompter.Confirm("Use the built-in end-of-support image list?", true)
		if err != nil {
			return nil, handlePromptErr(err)
		}
		if !builtin {
			urns, err := w.prompter.Input("Denied images (publisher:offer:sku, comma separated)", "", survey.ComposeValidators(ValidateNonEmpty, ValidateURNList))
			if err != nil {
				return nil, handlePromptErr(err)
			}
			cfg.Denylist = SplitList(urns)
		}
	}

	subs, err := w.prompter.Input("Subscriptions to audit (comma separated, blank for all)", "", nil)
	if err != nil {
		return nil, handlePromptErr(err)
	}
	cfg.Subscriptions = SplitList(subs)

	cfg.Backend, err = w.prompter.Select("Inventory backend", []string{config.BackendSDK, config.BackendCLI}, config.BackendSDK)
	if err != nil {
		return nil, handlePromptErr(err)
	}

	if cfg.has(config.RuleRequiredTags) {
		cfg.Remediate, err = w.prompter.Confirm("Add missing tags automatically?", false)
		if err != nil {
			return nil, handlePromptErr(err)
		}
		if cfg.Remediate {
			cfg.DryRun, err = w.prompter.Confirm("Start in dry-run mode?", true)
			if err != nil {
				return nil, handlePromptErr(err)
			}
		}
	}

	cfg.Export, err = w.prompter.Confirm("Export report files after each scan?", true)
	if err != nil {
		return nil, handlePromptErr(err)
	}

	return cfg, nil
}

func handlePromptErr(err error) error {
	if errors.Is(err, ErrCancelled) {
		return fmt.Errorf("wizard cancelled: %w", ErrCancelled)
	}
	return err
}

func boolPtr(b bool) *bool {
	return &b
}
