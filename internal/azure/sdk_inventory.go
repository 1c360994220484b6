package azure

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/arm"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/compute/armcompute/v5"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/managementgroups/armmanagementgroups"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/network/armnetwork/v6"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/resources/armresources"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/resources/armsubscriptions"

	"github.com/kjourdan1/azaudit/internal/inventory"
	"github.com/kjourdan1/azaudit/internal/remediate"
)

// SDKInventory reads inventory and writes tags through the ARM SDK.
type SDKInventory struct {
	cred       azcore.TokenCredential
	opts       Options
	clientOpts *arm.ClientOptions
}

// NewSDKInventory creates an ARM SDK backed inventory. clientOpts may be nil.
func NewSDKInventory(cred azcore.TokenCredential, opts Options, clientOpts *arm.ClientOptions) *SDKInventory {
	return &SDKInventory{cred: cred, opts: opts, clientOpts: clientOpts}
}

// ListAccounts returns the enabled subscriptions in scope, sorted by id.
func (s *SDKInventory) ListAccounts(ctx context.Context) ([]inventory.Account, error) {
	return Retry(ctx, s.opts.Retry, func() ([]inventory.Account, error) {
		var (
			accounts []inventory.Account
			err      error
		)
		if mg := strings.TrimSpace(s.opts.ManagementGroup); mg != "" {
			accounts, err = s.accountsUnderGroup(ctx, mg)
		} else {
			accounts, err = s.allAccounts(ctx)
		}
		if err != nil {
			return nil, mapResponseError(err)
		}
		sortAccounts(accounts)
		return accounts, nil
	})
}

func (s *SDKInventory) allAccounts(ctx context.Context) ([]inventory.Account, error) {
	client, err := armsubscriptions.NewClient(s.cred, s.clientOpts)
	if err != nil {
		return nil, err
	}
	var out []inventory.Account
	pager := client.NewListPager(nil)
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, sub := range page.Value {
			if sub == nil {
				continue
			}
			acc := inventory.Account{ID: deref(sub.SubscriptionID), DisplayName: deref(sub.DisplayName)}
			if sub.State != nil {
				acc.State = string(*sub.State)
			}
			out = appendAccount(out, s.opts.TenantID, acc, deref(sub.TenantID))
		}
	}
	return out, nil
}

func (s *SDKInventory) accountsUnderGroup(ctx context.Context, group string) ([]inventory.Account, error) {
	client, err := armmanagementgroups.NewManagementGroupSubscriptionsClient(s.cred, s.clientOpts)
	if err != nil {
		return nil, err
	}
	var out []inventory.Account
	pager := client.NewGetSubscriptionsUnderManagementGroupPager(group, nil)
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, sub := range page.Value {
			if sub == nil {
				continue
			}
			acc := inventory.Account{ID: deref(sub.Name)}
			var tenant string
			if p := sub.Properties; p != nil {
				acc.DisplayName = deref(p.DisplayName)
				acc.State = deref(p.State)
				tenant = deref(p.Tenant)
			}
			out = appendAccount(out, s.opts.TenantID, acc, tenant)
		}
	}
	return out, nil
}

// ListResources returns every resource of the account. Virtual machines are
// enriched with their image reference and primary NIC/subnet.
func (s *SDKInventory) ListResources(ctx context.Context, account inventory.Account) ([]inventory.Resource, error) {
	return Retry(ctx, s.opts.Retry, func() ([]inventory.Resource, error) {
		out, err := s.listResources(ctx, account)
		if err != nil {
			return nil, mapResponseError(err)
		}
		return out, nil
	})
}

func (s *SDKInventory) listResources(ctx context.Context, account inventory.Account) ([]inventory.Resource, error) {
	client, err := armresources.NewClient(account.ID, s.cred, s.clientOpts)
	if err != nil {
		return nil, err
	}
	var out []inventory.Resource
	hasVM := false
	pager := client.NewListPager(nil)
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, r := range page.Value {
			if r == nil || r.ID == nil {
				continue
			}
			res := inventory.Resource{
				ID:            *r.ID,
				Name:          deref(r.Name),
				Type:          deref(r.Type),
				Location:      deref(r.Location),
				ResourceGroup: inventory.ResourceGroupFromID(*r.ID),
				AccountID:     account.ID,
				Tags:          inventory.FromPointerMap(r.Tags),
			}
			if res.Name == "" {
				res.Name = inventory.NameFromID(res.ID)
			}
			if isVM(res.Type) {
				hasVM = true
			}
			out = append(out, res)
		}
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

func (s *SDKInventory) virtualMachines(ctx context.Context, subscriptionID string) (map[string]vmDetail, error) {
	client, err := armcompute.NewVirtualMachinesClient(subscriptionID, s.cred, s.clientOpts)
	if err != nil {
		return nil, err
	}
	out := map[string]vmDetail{}
	pager := client.NewListAllPager(nil)
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, vm := range page.Value {
			if vm == nil || vm.ID == nil {
				continue
			}
			var detail vmDetail
			if p := vm.Properties; p != nil {
				if p.StorageProfile != nil && p.StorageProfile.ImageReference != nil {
					ref := p.StorageProfile.ImageReference
					detail.image = imageReference(deref(ref.Publisher), deref(ref.Offer), deref(ref.SKU), deref(ref.Version))
				}
				if p.NetworkProfile != nil {
					var nics []nicRef
					for _, n := range p.NetworkProfile.NetworkInterfaces {
						if n == nil {
							continue
						}
						ref := nicRef{id: deref(n.ID)}
						if n.Properties != nil && n.Properties.Primary != nil {
							ref.primary = *n.Properties.Primary
						}
						nics = append(nics, ref)
					}
					detail.nic = primaryNIC(nics)
				}
			}
			out[strings.ToLower(*vm.ID)] = detail
		}
	}
	return out, nil
}

func (s *SDKInventory) nicSubnets(ctx context.Context, subscriptionID string) (map[string]string, error) {
	client, err := armnetwork.NewInterfacesClient(subscriptionID, s.cred, s.clientOpts)
	if err != nil {
		return nil, err
	}
	out := map[string]string{}
	pager := client.NewListAllPager(nil)
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, nic := range page.Value {
			if nic == nil || nic.ID == nil {
				continue
			}
			var subnet string
			if nic.Properties != nil {
				for _, cfg := range nic.Properties.IPConfigurations {
					if cfg == nil || cfg.Properties == nil || cfg.Properties.Subnet == nil {
						continue
					}
					sid := deref(cfg.Properties.Subnet.ID)
					if sid == "" {
						continue
					}
					if subnet == "" || (cfg.Properties.Primary != nil && *cfg.Properties.Primary) {
						subnet = sid
					}
				}
			}
			out[canonicalID(*nic.ID)] = canonicalID(subnet)
		}
	}
	return out, nil
}

// ListNetworkSecurityGroups returns the NSGs of the account with their NIC
// and subnet associations.
func (s *SDKInventory) ListNetworkSecurityGroups(ctx context.Context, account inventory.Account) ([]inventory.NetworkSecurityGroup, error) {
	return Retry(ctx, s.opts.Retry, func() ([]inventory.NetworkSecurityGroup, error) {
		client, err := armnetwork.NewSecurityGroupsClient(account.ID, s.cred, s.clientOpts)
		if err != nil {
			return nil, err
		}
		var out []inventory.NetworkSecurityGroup
		pager := client.NewListAllPager(nil)
		for pager.More() {
			page, err := pager.NextPage(ctx)
			if err != nil {
				return nil, mapResponseError(err)
			}
			for _, nsg := range page.Value {
				if nsg == nil {
					continue
				}
				g := inventory.NetworkSecurityGroup{ID: deref(nsg.ID), Name: deref(nsg.Name)}
				if p := nsg.Properties; p != nil {
					for _, nic := range p.NetworkInterfaces {
						if nic != nil && nic.ID != nil {
							g.NICIDs = append(g.NICIDs, canonicalID(*nic.ID))
						}
					}
					for _, sn := range p.Subnets {
						if sn != nil && sn.ID != nil {
							g.SubnetIDs = append(g.SubnetIDs, canonicalID(*sn.ID))
						}
					}
				}
				out = append(out, g)
			}
		}
		return out, nil
	})
}

// UpdateTags replaces the tag set of resourceID. It is never retried.
func (s *SDKInventory) UpdateTags(ctx context.Context, resourceID string, tags map[string]string) error {
	rid, err := arm.ParseResourceID(resourceID)
	if err != nil {
		return fmt.Errorf("parsing resource id: %w", err)
	}
	client, err := armresources.NewTagsClient(rid.SubscriptionID, s.cred, s.clientOpts)
	if err != nil {
		return err
	}
	body := armresources.TagsResource{
		Properties: &armresources.Tags{Tags: toPointerMap(tags)},
	}
	if _, err := client.CreateOrUpdateAtScope(ctx, resourceID, body, nil); err != nil {
		return mapResponseError(err)
	}
	return nil
}

// mapResponseError wraps ARM failures with the matching remediation
// sentinel, keeping the original error in the chain.
func mapResponseError(err error) error {
	var respErr *azcore.ResponseError
	if !errors.As(err, &respErr) {
		return err
	}
	switch respErr.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: %w", remediate.ErrAuth, err)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: %w", remediate.ErrThrottled, err)
	case http.StatusNotFound:
		return fmt.Errorf("%w: %w", remediate.ErrNotFound, err)
	}
	return err
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func toPointerMap(tags map[string]string) map[string]*string {
	out := make(map[string]*string, len(tags))
	for k, v := range tags {
		v := v
		out[k] = &v
	}
	return out
}
