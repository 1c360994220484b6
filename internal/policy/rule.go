// Package policy evaluates resources against declarative compliance rules.
//
// Three rule kinds are supported:
//   - TagPresence: every required tag name must be present on the resource
//   - OSSupport: the resource's image URN (publisher:offer:sku) must not be
//     on the end-of-support denylist
//   - NetworkProtection: the resource's NIC or its subnet must be associated
//     with a network security group
//
// Evaluation is pure: no I/O, no shared state, safe to call concurrently.
// All comparisons on tag names, URNs and ids are exact and case-sensitive.
package policy

import (
	"fmt"
	"sort"
	"strings"
)

// Kind identifies the rule type.
type Kind string

const (
	KindTagPresence       Kind = "TagPresence"
	KindOSSupport         Kind = "OSSupport"
	KindNetworkProtection Kind = "NetworkProtection"
)

// Rule is a named, immutable compliance requirement.
type Rule struct {
	Name string `json:"name"`
	Kind Kind   `json:"kind"`

	// RequiredTags is used by TagPresence.
	RequiredTags []string `json:"requiredTags,omitempty"`
	// Denylist holds publisher:offer:sku URNs, used by OSSupport.
	Denylist []string `json:"denylist,omitempty"`
	// ResourceTypes restricts the rule to ARM resource types. Empty means
	// every resource is in scope.
	ResourceTypes []string `json:"resourceTypes,omitempty"`

	denyset map[string]struct{}
}

// NewTagPresenceRule builds a TagPresence rule. Duplicate and blank tag
// names are dropped.
func NewTagPresenceRule(name string, required []string, resourceTypes ...string) Rule {
	return Rule{
		Name:          name,
		Kind:          KindTagPresence,
		RequiredTags:  dedupe(required),
		ResourceTypes: resourceTypes,
	}
}

// NewOSSupportRule builds an OSSupport rule. Denylist entries are normalized
// with NormalizeURN so a full URN including the version may be supplied.
func NewOSSupportRule(name string, denylist []string, resourceTypes ...string) Rule {
	normalized := make([]string, 0, len(denylist))
	for _, entry := range denylist {
		normalized = append(normalized, NormalizeURN(entry))
	}
	r := Rule{
		Name:          name,
		Kind:          KindOSSupport,
		Denylist:      dedupe(normalized),
		ResourceTypes: resourceTypes,
	}
	r.denyset = toSet(r.Denylist)
	return r
}

// NewNetworkProtectionRule builds a NetworkProtection rule.
func NewNetworkProtectionRule(name string, resourceTypes ...string) Rule {
	return Rule{
		Name:          name,
		Kind:          KindNetworkProtection,
		ResourceTypes: resourceTypes,
	}
}

// Denied reports whether a normalized URN is an exact denylist member.
func (r Rule) Denied(urn string) bool {
	if r.denyset != nil {
		_, ok := r.denyset[urn]
		return ok
	}
	for _, d := range r.Denylist {
		if d == urn {
			return true
		}
	}
	return false
}

// NormalizeURN reduces an image URN to publisher:offer:sku. A fourth
// component (the version) is dropped; surrounding whitespace is trimmed from
// each component.
func NormalizeURN(urn string) string {
	parts := strings.Split(strings.TrimSpace(urn), ":")
	if len(parts) > 3 {
		parts = parts[:3]
	}
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return strings.Join(parts, ":")
}

// Validate checks that a rule is well formed.
func (r Rule) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return fmt.Errorf("rule name is required")
	}
	switch r.Kind {
	case KindTagPresence:
		if len(r.RequiredTags) == 0 {
			return fmt.Errorf("rule %s: at least one required tag is needed", r.Name)
		}
	case KindOSSupport:
		for _, entry := range r.Denylist {
			parts := strings.Split(entry, ":")
			if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
				return fmt.Errorf("rule %s: invalid denylist entry %q (want publisher:offer:sku)", r.Name, entry)
			}
		}
	case KindNetworkProtection:
	default:
		return fmt.Errorf("rule %s: unknown kind %q", r.Name, r.Kind)
	}
	return nil
}

// ValidateRules validates every rule and rejects duplicate names.
func ValidateRules(rules []Rule) error {
	seen := map[string]bool{}
	for _, r := range rules {
		if err := r.Validate(); err != nil {
			return err
		}
		if seen[r.Name] {
			return fmt.Errorf("duplicate rule name %q", r.Name)
		}
		seen[r.Name] = true
	}
	return nil
}

// Applies reports whether the resource type is in the rule's scope. ARM type
// names are case-insensitive.
func (r Rule) Applies(resourceType string) bool {
	if len(r.ResourceTypes) == 0 {
		return true
	}
	for _, t := range r.ResourceTypes {
		if strings.EqualFold(strings.TrimSpace(t), resourceType) {
			return true
		}
	}
	return false
}

func dedupe(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

func toSet(values []string) map[string]struct{} {
	out := make(map[string]struct{}, len(values))
	for _, v := range values {
		out[v] = struct{}{}
	}
	return out
}
