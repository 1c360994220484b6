package azure

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/kjourdan1/azaudit/internal/inventory"
)

// Options scopes an inventory backend.
type Options struct {
	// TenantID drops accounts that belong to another tenant when set.
	TenantID string
	// ManagementGroup limits enumeration to the subscriptions under it.
	ManagementGroup string
	Retry           RetryConfig
}

// CLIInventory reads inventory and writes tags through the az CLI.
type CLIInventory struct {
	cli  CLI
	opts Options
}

// NewCLIInventory creates an az CLI backed inventory.
func NewCLIInventory(cli CLI, opts Options) *CLIInventory {
	if cli == nil {
		cli = NewAzCLI()
	}
	return &CLIInventory{cli: cli, opts: opts}
}

func (s *CLIInventory) run(ctx context.Context, args ...string) (any, error) {
	return Retry(ctx, s.opts.Retry, func() (any, error) {
		return s.cli.RunJSON(ctx, args...)
	})
}

// ListAccounts returns the enabled subscriptions in scope, sorted by id.
func (s *CLIInventory) ListAccounts(ctx context.Context) ([]inventory.Account, error) {
	var accounts []inventory.Account
	if mg := strings.TrimSpace(s.opts.ManagementGroup); mg != "" {
		raw, err := s.run(ctx, "account", "management-group", "subscription", "show-sub-under-mg", "--name", mg)
		if err != nil {
			return nil, err
		}
		for _, item := range asSlice(raw) {
			m := asMap(item)
			accounts = appendAccount(accounts, s.opts.TenantID, inventory.Account{
				ID:          asString(m["name"]),
				DisplayName: asStringPath(m, "properties", "displayName"),
				State:       asStringPath(m, "properties", "state"),
			}, asStringPath(m, "properties", "tenant"))
		}
	} else {
		raw, err := s.run(ctx, "account", "list", "--all")
		if err != nil {
			return nil, err
		}
		for _, item := range asSlice(raw) {
			m := asMap(item)
			accounts = appendAccount(accounts, s.opts.TenantID, inventory.Account{
				ID:          asString(m["id"]),
				DisplayName: asString(m["name"]),
				State:       asString(m["state"]),
			}, asString(m["tenantId"]))
		}
	}
	sortAccounts(accounts)
	return accounts, nil
}

// ListResources returns every resource of the account. Virtual machines are
// enriched with their image reference and primary NIC/subnet.
func (s *CLIInventory) ListResources(ctx context.Context, account inventory.Account) ([]inventory.Resource, error) {
	raw, err := s.run(ctx, "resource", "list", "--subscription", account.ID)
	if err != nil {
		return nil, err
	}
	items := asSlice(raw)
	out := make([]inventory.Resource, 0, len(items))
	hasVM := false
	for _, item := range items {
		m := asMap(item)
		id := asString(m["id"])
		if id == "" {
			continue
		}
		res := inventory.Resource{
			ID:            id,
			Name:          asString(m["name"]),
			Type:          asString(m["type"]),
			Location:      asString(m["location"]),
			ResourceGroup: asString(m["resourceGroup"]),
			AccountID:     account.ID,
			Tags:          asStringMap(m["tags"]),
		}
		if res.Name == "" {
			res.Name = inventory.NameFromID(id)
		}
		if res.ResourceGroup == "" {
			res.ResourceGroup = inventory.ResourceGroupFromID(id)
		}
		if isVM(res.Type) {
			hasVM = true
		}
		out = append(out, res)
	}
	if !hasVM {
		return out, nil
	}

	vms, err := s.virtualMachines(ctx, account.ID)
	if err != nil {
		return nil, fmt.Errorf("virtual machines: %w", err)
	}
	subnets, err := s.nicSubnets(ctx, account.ID)
	if err != nil {
		return nil, fmt.Errorf("network interfaces: %w", err)
	}
	for i := range out {
		if !isVM(out[i].Type) {
			continue
		}
		detail, ok := vms[strings.ToLower(out[i].ID)]
		if !ok {
			continue
		}
		out[i].Image = detail.image
		if detail.nic != "" {
			out[i].Network = &inventory.NetworkProfile{NICID: detail.nic, SubnetID: subnets[detail.nic]}
		}
	}
	return out, nil
}

type vmDetail struct {
	image *inventory.ImageReference
	nic   string
}

func (s *CLIInventory) virtualMachines(ctx context.Context, subscriptionID string) (map[string]vmDetail, error) {
	raw, err := s.run(ctx, "vm", "list", "--subscription", subscriptionID)
	if err != nil {
		return nil, err
	}
	out := map[string]vmDetail{}
	for _, item := range asSlice(raw) {
		m := asMap(item)
		id := asString(m["id"])
		if id == "" {
			continue
		}
		ref := asMap(asMap(m["storageProfile"])["imageReference"])
		image := imageReference(asString(ref["publisher"]), asString(ref["offer"]), asString(ref["sku"]), asString(ref["version"]))

		var nics []nicRef
		for _, n := range asSlice(asMap(m["networkProfile"])["networkInterfaces"]) {
			nm := asMap(n)
			nics = append(nics, nicRef{id: asString(nm["id"]), primary: asBool(nm["primary"])})
		}
		out[strings.ToLower(id)] = vmDetail{image: image, nic: primaryNIC(nics)}
	}
	return out, nil
}

// nicSubnets maps a lowercased NIC id to the lowercased subnet of its
// primary IP configuration.
func (s *CLIInventory) nicSubnets(ctx context.Context, subscriptionID string) (map[string]string, error) {
	raw, err := s.run(ctx, "network", "nic", "list", "--subscription", subscriptionID)
	if err != nil {
		return nil, err
	}
	out := map[string]string{}
	for _, item := range asSlice(raw) {
		m := asMap(item)
		id := asString(m["id"])
		if id == "" {
			continue
		}
		var subnet string
		for _, cfg := range asSlice(m["ipConfigurations"]) {
			cm := asMap(cfg)
			sid := asStringPath(cm, "subnet", "id")
			if sid == "" {
				continue
			}
			if subnet == "" || asBool(cm["primary"]) {
				subnet = sid
			}
		}
		out[canonicalID(id)] = canonicalID(subnet)
	}
	return out, nil
}

// ListNetworkSecurityGroups returns the NSGs of the account with their NIC
// and subnet associations.
func (s *CLIInventory) ListNetworkSecurityGroups(ctx context.Context, account inventory.Account) ([]inventory.NetworkSecurityGroup, error) {
	raw, err := s.run(ctx, "network", "nsg", "list", "--subscription", account.ID)
	if err != nil {
		return nil, err
	}
	items := asSlice(raw)
	out := make([]inventory.NetworkSecurityGroup, 0, len(items))
	for _, item := range items {
		m := asMap(item)
		g := inventory.NetworkSecurityGroup{
			ID:   asString(m["id"]),
			Name: asString(m["name"]),
		}
		for _, n := range asSlice(m["networkInterfaces"]) {
			if id := asString(asMap(n)["id"]); id != "" {
				g.NICIDs = append(g.NICIDs, canonicalID(id))
			}
		}
		for _, sn := range asSlice(m["subnets"]) {
			if id := asString(asMap(sn)["id"]); id != "" {
				g.SubnetIDs = append(g.SubnetIDs, canonicalID(id))
			}
		}
		out = append(out, g)
	}
	return out, nil
}

// UpdateTags replaces the tag set of resourceID. It is never retried.
func (s *CLIInventory) UpdateTags(ctx context.Context, resourceID string, tags map[string]string) error {
	args := []string{"tag", "create", "--resource-id", resourceID, "--tags"}
	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		args = append(args, k+"="+tags[k])
	}
	_, err := s.cli.RunJSON(ctx, args...)
	return err
}

func asSlice(v any) []any {
	if v == nil {
		return nil
	}
	if arr, ok := v.([]any); ok {
		return arr
	}
	return nil
}

func asMap(v any) map[string]any {
	if m, ok := v.(map[string]any); ok {
		return m
	}
	return map[string]any{}
}

func asString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

func asBool(v any) bool {
	if b, ok := v.(bool); ok {
		return b
	}
	return false
}

func asStringPath(m map[string]any, path ...string) string {
	var curr any = m
	for _, key := range path {
		mm, ok := curr.(map[string]any)
		if !ok {
			return ""
		}
		curr = mm[key]
	}
	return asString(curr)
}

// asStringMap converts a JSON tag object. Null values become "".
func asStringMap(v any) map[string]string {
	m, ok := v.(map[string]any)
	if !ok {
		return map[string]string{}
	}
	out := make(map[string]string, len(m))
	for k, val := range m {
		out[k] = asString(val)
	}
	return out
}
