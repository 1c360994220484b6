package policy

import (
	"errors"
	"fmt"
	"strings"

	"github.com/kjourdan1/azaudit/internal/inventory"
)

// Outcome is the verdict of one rule on one resource.
type Outcome string

const (
	Compliant     Outcome = "Compliant"
	NonCompliant  Outcome = "NonCompliant"
	NotApplicable Outcome = "NotApplicable"
	Error         Outcome = "Error"
)

var (
	// ErrNoNetworkInterface is reported when a resource has no resolvable NIC.
	ErrNoNetworkInterface = errors.New("resource has no resolvable network interface")
	// ErrFactsUnavailable is reported when NSG facts could not be built for
	// the account.
	ErrFactsUnavailable = errors.New("network security group facts unavailable")
	// ErrNoImageReference marks a resource without OS image information.
	ErrNoImageReference = errors.New("resource has no OS image reference")
)

// Result is the immutable outcome of evaluating one resource against one rule.
type Result struct {
	ResourceID   string   `json:"resourceId"`
	ResourceName string   `json:"resourceName,omitempty"`
	ResourceType string   `json:"resourceType,omitempty"`
	AccountID    string   `json:"accountId,omitempty"`
	Rule         string   `json:"rule"`
	Kind         Kind     `json:"kind"`
	Outcome      Outcome  `json:"outcome"`
	Missing      []string `json:"missing,omitempty"`
	Detail       string   `json:"detail,omitempty"`
}

// MissingDetail joins the missing items for display.
func (r Result) MissingDetail() string {
	return strings.Join(r.Missing, ", ")
}

// Evaluate applies one rule to one resource. facts is only consulted by
// NetworkProtection and may be nil for other kinds.
func Evaluate(rule Rule, res inventory.Resource, facts *inventory.NetworkFacts) Result {
	out := Result{
		ResourceID:   res.ID,
		ResourceName: res.Name,
		ResourceType: res.Type,
		AccountID:    res.AccountID,
		Rule:         rule.Name,
		Kind:         rule.Kind,
	}
	switch rule.Kind {
	case KindTagPresence:
		out.Missing = MissingTags(rule.RequiredTags, res)
		if len(out.Missing) > 0 {
			out.Outcome = NonCompliant
			out.Detail = "missing tags: " + out.MissingDetail()
		} else {
			out.Outcome = Compliant
		}
	case KindOSSupport:
		if res.Image == nil {
			out.Outcome = NotApplicable
			out.Detail = ErrNoImageReference.Error()
			return out
		}
		urn := ImageURN(*res.Image)
		if rule.Denied(urn) {
			out.Outcome = NonCompliant
			out.Missing = []string{urn}
			out.Detail = "image " + urn + " is out of support"
		} else {
			out.Outcome = Compliant
		}
	case KindNetworkProtection:
		evaluateNetwork(&out, res, facts)
	default:
		out.Outcome = Error
		out.Detail = fmt.Sprintf("unknown rule kind %q", rule.Kind)
	}
	return out
}

func evaluateNetwork(out *Result, res inventory.Resource, facts *inventory.NetworkFacts) {
	if res.Network == nil || strings.TrimSpace(res.Network.NICID) == "" {
		out.Outcome = Error
		out.Detail = ErrNoNetworkInterface.Error()
		return
	}
	if facts == nil {
		out.Outcome = Error
		out.Detail = ErrFactsUnavailable.Error()
		return
	}
	if facts.NICProtected(res.Network.NICID) || facts.SubnetProtected(res.Network.SubnetID) {
		out.Outcome = Compliant
		return
	}
	out.Outcome = NonCompliant
	out.Missing = []string{"nsg"}
	out.Detail = "neither NIC nor subnet is associated with a network security group"
}

// EvaluateAll applies every in-scope rule to the resource, in rule order.
func EvaluateAll(rules []Rule, res inventory.Resource, facts *inventory.NetworkFacts) []Result {
	out := make([]Result, 0, len(rules))
	for _, rule := range rules {
		if !rule.Applies(res.Type) {
			continue
		}
		out = append(out, Evaluate(rule, res, facts))
	}
	return out
}

// MissingTags returns required − keys(tags), in required order.
func MissingTags(required []string, res inventory.Resource) []string {
	var missing []string
	for _, name := range required {
		if !res.HasTag(name) {
			missing = append(missing, name)
		}
	}
	return missing
}

// ImageURN normalizes an image reference to publisher:offer:sku; the version
// is ignored and missing components become empty strings.
func ImageURN(img inventory.ImageReference) string {
	return img.Publisher + ":" + img.Offer + ":" + img.SKU
}
