package azure

import (
	"sort"
	"strings"

	"github.com/kjourdan1/azaudit/internal/inventory"
)

// Subscriptions in these states cannot be read and are left out of a run.
var inactiveStates = map[string]bool{
	"disabled": true,
	"deleted":  true,
}

func appendAccount(accounts []inventory.Account, tenantID string, acc inventory.Account, accountTenant string) []inventory.Account {
	if acc.ID == "" {
		return accounts
	}
	if tenantID != "" && accountTenant != "" && !strings.EqualFold(tenantID, accountTenant) {
		return accounts
	}
	if inactiveStates[strings.ToLower(acc.State)] {
		return accounts
	}
	return append(accounts, acc)
}

func sortAccounts(accounts []inventory.Account) {
	sort.SliceStable(accounts, func(i, j int) bool { return accounts[i].ID < accounts[j].ID })
}

func isVM(resourceType string) bool {
	return strings.EqualFold(resourceType, inventory.TypeVirtualMachine)
}

// imageReference returns nil for VMs built from custom or gallery images,
// which carry no marketplace publisher/offer/sku.
func imageReference(publisher, offer, sku, version string) *inventory.ImageReference {
	if publisher == "" && offer == "" && sku == "" {
		return nil
	}
	return &inventory.ImageReference{Publisher: publisher, Offer: offer, SKU: sku, Version: version}
}

type nicRef struct {
	id      string
	primary bool
}

// primaryNIC picks the NIC flagged primary, or the first one.
func primaryNIC(nics []nicRef) string {
	if len(nics) == 0 {
		return ""
	}
	for _, n := range nics {
		if n.primary && n.id != "" {
			return canonicalID(n.id)
		}
	}
	return canonicalID(nics[0].id)
}

// canonicalID lowercases an ARM id. ARM ids are case-insensitive but the
// various list APIs disagree on casing, and the NSG evaluator matches exactly.
func canonicalID(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}
