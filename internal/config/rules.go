package config

import (
	"fmt"

	"github.com/kjourdan1/azaudit/internal/policy"
)

// Rule names as they appear in reports.
const (
	RuleRequiredTags      = "required-tags"
	RuleOSEndOfSupport    = "os-end-of-support"
	RuleNetworkProtection = "nsg-coverage"
)

// Rules converts the enabled policies into evaluator rules, in the fixed
// order tags, OS support, network protection.
func (c *AuditConfig) Rules() ([]policy.Rule, error) {
	p := c.Spec.Policies
	var rules []policy.Rule
	if IsEnabled(p.Tags.Enabled) {
		rules = append(rules, policy.NewTagPresenceRule(RuleRequiredTags, p.Tags.Required, p.Tags.ResourceTypes...))
	}
	if IsEnabled(p.OSSupport.Enabled) {
		rules = append(rules, policy.NewOSSupportRule(RuleOSEndOfSupport, p.OSSupport.Denylist, p.OSSupport.ResourceTypes...))
	}
	if IsEnabled(p.NetworkProtection.Enabled) {
		rules = append(rules, policy.NewNetworkProtectionRule(RuleNetworkProtection, p.NetworkProtection.ResourceTypes...))
	}
	if len(rules) == 0 {
		return nil, fmt.Errorf("no policy enabled")
	}
	if err := policy.ValidateRules(rules); err != nil {
		return nil, fmt.Errorf("invalid policy: %w", err)
	}
	return rules, nil
}
