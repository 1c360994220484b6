// Package inventory holds the typed resource model consumed by the policy
// evaluators: accounts (subscriptions), resources and the NSG association
// facts computed once per account.
package inventory

import "strings"

// SchemaVersion identifies the shape of the Resource record. It is stamped on
// every report; bump it when a field consumed by a policy rule changes meaning.
const SchemaVersion = "v1"

// TypeVirtualMachine is the ARM type of a virtual machine.
const TypeVirtualMachine = "Microsoft.Compute/virtualMachines"

// Account is a billing/management scope (an Azure subscription).
type Account struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	State       string `json:"state,omitempty"`
}

// Label returns the display name when set, the id otherwise.
func (a Account) Label() string {
	if strings.TrimSpace(a.DisplayName) != "" {
		return a.DisplayName
	}
	return a.ID
}

// ImageReference is the marketplace image a VM was created from.
type ImageReference struct {
	Publisher string `json:"publisher"`
	Offer     string `json:"offer"`
	SKU       string `json:"sku"`
	Version   string `json:"version,omitempty"`
}

// NetworkProfile is the primary NIC of a resource and the subnet it sits in.
type NetworkProfile struct {
	NICID    string `json:"nicId"`
	SubnetID string `json:"subnetId,omitempty"`
}

// Resource is an audited cloud object. Image and Network are nil when the
// resource carries no OS image or network interface information.
type Resource struct {
	ID            string            `json:"id"`
	Name          string            `json:"name"`
	Type          string            `json:"type"`
	Location      string            `json:"location,omitempty"`
	ResourceGroup string            `json:"resourceGroup,omitempty"`
	AccountID     string            `json:"accountId"`
	Tags          map[string]string `json:"tags,omitempty"`
	Image         *ImageReference   `json:"image,omitempty"`
	Network       *NetworkProfile   `json:"network,omitempty"`
}

// HasTag reports whether the tag key is present (exact, case-sensitive).
func (r Resource) HasTag(key string) bool {
	if r.Tags == nil {
		return false
	}
	_, ok := r.Tags[key]
	return ok
}

// FromPointerMap converts the map[string]*string shape returned by ARM into a
// plain tag map. Nil values become empty strings.
func FromPointerMap(in map[string]*string) map[string]string {
	if len(in) == 0 {
		return map[string]string{}
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		if v == nil {
			out[k] = ""
			continue
		}
		out[k] = *v
	}
	return out
}

// ResourceGroupFromID extracts the resource group segment of an ARM id.
func ResourceGroupFromID(id string) string {
	parts := strings.Split(strings.Trim(id, "/"), "/")
	for i := 0; i+1 < len(parts); i++ {
		if strings.EqualFold(parts[i], "resourceGroups") {
			return parts[i+1]
		}
	}
	return ""
}

// NameFromID returns the last segment of an ARM id.
func NameFromID(id string) string {
	trimmed := strings.TrimRight(id, "/")
	if idx := strings.LastIndex(trimmed, "/"); idx >= 0 {
		return trimmed[idx+1:]
	}
	return trimmed
}
