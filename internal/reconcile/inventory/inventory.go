// Package inventory resolves the supporting objects resource reconcilers refer to:
// protection domains, storage pools, snapshot policies, fault sets and SDCs.
package inventory

import (
	"context"

	"github.com/dokzlo13/pflexctl/internal/errs"
	"github.com/dokzlo13/pflexctl/internal/gateway"
	"github.com/dokzlo13/pflexctl/internal/locate"
)

// ProtectionDomains is the backend subset for protection domain lookups.
type ProtectionDomains interface {
	ProtectionDomain(ctx context.Context, id string) (*gateway.ProtectionDomain, error)
	ProtectionDomainsByName(ctx context.Context, name string) ([]gateway.ProtectionDomain, error)
}

// StoragePools is the backend subset for storage pool lookups.
type StoragePools interface {
	StoragePool(ctx context.Context, id string) (*gateway.StoragePool, error)
	StoragePoolsByName(ctx context.Context, name string) ([]gateway.StoragePool, error)
}

// SnapshotPolicies is the backend subset for snapshot policy lookups.
type SnapshotPolicies interface {
	SnapshotPolicy(ctx context.Context, id string) (*gateway.SnapshotPolicy, error)
	SnapshotPoliciesByName(ctx context.Context, name string) ([]gateway.SnapshotPolicy, error)
}

// FaultSets is the backend subset for fault set lookups.
type FaultSets interface {
	FaultSet(ctx context.Context, id string) (*gateway.FaultSet, error)
	FaultSetsByName(ctx context.Context, name string) ([]gateway.FaultSet, error)
}

// Sdcs is the backend subset for SDC lookups.
type Sdcs interface {
	Sdc(ctx context.Context, id string) (*gateway.Sdc, error)
	Sdcs(ctx context.Context) ([]gateway.Sdc, error)
}

// ProtectionDomainLookup describes protection domain resolution.
func ProtectionDomainLookup(b ProtectionDomains) locate.Lookup[gateway.ProtectionDomain] {
	return locate.Lookup[gateway.ProtectionDomain]{
		Kind:   "protection domain",
		ByID:   b.ProtectionDomain,
		ByName: b.ProtectionDomainsByName,
	}
}

// StoragePoolLookup describes storage pool resolution, scoped by protection domain.
func StoragePoolLookup(b StoragePools) locate.Lookup[gateway.StoragePool] {
	return locate.Lookup[gateway.StoragePool]{
		Kind:       "storage pool",
		ByID:       b.StoragePool,
		ByName:     b.StoragePoolsByName,
		ScopeOf:    func(sp gateway.StoragePool) string { return sp.ProtectionDomainID },
		ScopeParam: "protection_domain_name or protection_domain_id",
	}
}

// SnapshotPolicyLookup describes snapshot policy resolution.
func SnapshotPolicyLookup(b SnapshotPolicies) locate.Lookup[gateway.SnapshotPolicy] {
	return locate.Lookup[gateway.SnapshotPolicy]{
		Kind:   "snapshot policy",
		ByID:   b.SnapshotPolicy,
		ByName: b.SnapshotPoliciesByName,
	}
}

// FaultSetLookup describes fault set resolution, scoped by protection domain.
func FaultSetLookup(b FaultSets) locate.Lookup[gateway.FaultSet] {
	return locate.Lookup[gateway.FaultSet]{
		Kind:       "fault set",
		ByID:       b.FaultSet,
		ByName:     b.FaultSetsByName,
		ScopeOf:    func(fs gateway.FaultSet) string { return fs.ProtectionDomainID },
		ScopeParam: "protection_domain_name or protection_domain_id",
	}
}

// ProtectionDomain resolves an optional protection domain reference. It returns nil
// when no identifier was given.
func ProtectionDomain(ctx context.Context, b ProtectionDomains, ref locate.Ref) (*gateway.ProtectionDomain, error) {
	if !ref.Given() {
		return nil, ref.Validate(false)
	}
	return locate.Require(ctx, ProtectionDomainLookup(b), ref, nil)
}

// Scope turns a resolved protection domain into a lookup scope.
func Scope(pd *gateway.ProtectionDomain) *locate.Scope {
	if pd == nil {
		return nil
	}
	return &locate.Scope{ID: pd.ID}
}

// SdcRef identifies an SDC by exactly one of id, ip or name.
type SdcRef struct {
	ID   *string
	IP   *string
	Name *string
}

// Validate enforces that exactly one identifier is set.
func (r SdcRef) Validate() error {
	n := 0
	for _, v := range []*string{r.ID, r.IP, r.Name} {
		if v != nil && *v != "" {
			n++
		}
	}
	switch {
	case n == 0:
		return errs.Newf(errs.ErrAmbiguousIdentifier, "one of sdc_id, sdc_ip or sdc_name is required")
	case n > 1:
		return errs.Newf(errs.ErrAmbiguousIdentifier, "parameters sdc_id, sdc_ip and sdc_name are mutually exclusive")
	}
	return nil
}

// Sdc resolves an SDC reference. A missing SDC is an error.
func Sdc(ctx context.Context, b Sdcs, ref SdcRef) (*gateway.Sdc, error) {
	if err := ref.Validate(); err != nil {
		return nil, err
	}
	if ref.ID != nil && *ref.ID != "" {
		return locate.Require(ctx, locate.Lookup[gateway.Sdc]{
			Kind:   "SDC",
			ByID:   b.Sdc,
			ByName: func(context.Context, string) ([]gateway.Sdc, error) { return nil, nil },
		}, locate.Ref{ID: *ref.ID, NameParam: "sdc_name", IDParam: "sdc_id"}, nil)
	}

	all, err := b.Sdcs(ctx)
	if err != nil {
		return nil, err
	}
	var matches []gateway.Sdc
	for _, sdc := range all {
		if (ref.IP != nil && sdc.SdcIP == *ref.IP) || (ref.Name != nil && sdc.Name == *ref.Name) {
			matches = append(matches, sdc)
		}
	}
	switch len(matches) {
	case 0:
		if ref.IP != nil {
			return nil, errs.Newf(errs.ErrNotFound, "SDC with ip %q not found", *ref.IP)
		}
		return nil, errs.Newf(errs.ErrNotFound, "SDC with name %q not found", *ref.Name)
	case 1:
		return &matches[0], nil
	}
	return nil, errs.WithHint(
		errs.Newf(errs.ErrAmbiguousResource, "%d SDCs match", len(matches)),
		"specify sdc_id")
}
