package inventory

// NetworkSecurityGroup is the association view of an NSG: the NICs and
// subnets it is attached to. Rule content is not modelled.
type NetworkSecurityGroup struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	NICIDs    []string `json:"nicIds,omitempty"`
	SubnetIDs []string `json:"subnetIds,omitempty"`
}

// NetworkFacts is the set of NIC and subnet ids covered by at least one NSG
// in an account. It is read-only once built.
type NetworkFacts struct {
	ProtectedNICs    map[string]struct{}
	ProtectedSubnets map[string]struct{}
}

// BuildNetworkFacts folds NSG associations into lookup sets. Empty ids are
// ignored.
func BuildNetworkFacts(groups []NetworkSecurityGroup) *NetworkFacts {
	facts := &NetworkFacts{
		ProtectedNICs:    map[string]struct{}{},
		ProtectedSubnets: map[string]struct{}{},
	}
	for _, g := range groups {
		for _, id := range g.NICIDs {
			if id != "" {
				facts.ProtectedNICs[id] = struct{}{}
			}
		}
		for _, id := range g.SubnetIDs {
			if id != "" {
				facts.ProtectedSubnets[id] = struct{}{}
			}
		}
	}
	return facts
}

// NICProtected reports whether the NIC id is directly associated with an NSG.
func (f *NetworkFacts) NICProtected(id string) bool {
	if f == nil || id == "" {
		return false
	}
	_, ok := f.ProtectedNICs[id]
	return ok
}

// SubnetProtected reports whether the subnet id is associated with an NSG.
func (f *NetworkFacts) SubnetProtected(id string) bool {
	if f == nil || id == "" {
		return false
	}
	_, ok := f.ProtectedSubnets[id]
	return ok
}
