// Package sds reconciles PowerFlex storage data servers.
package sds

import (
	"context"

	"github.com/dokzlo13/pflexctl/internal/errs"
	"github.com/dokzlo13/pflexctl/internal/gateway"
	"github.com/dokzlo13/pflexctl/internal/locate"
	"github.com/dokzlo13/pflexctl/internal/reconcile"
	"github.com/dokzlo13/pflexctl/internal/reconcile/inventory"
)

// Resource reconciles a single SDS.
type Resource struct {
	backend Backend
	params  Params

	id      string
	current *gateway.Sds
	details *Details
}

// NewResource creates a new SDS resource.
func NewResource(backend Backend, params Params) *Resource {
	return &Resource{backend: backend, params: params}
}

func (r *Resource) ref() locate.Ref {
	return locate.NewRef(r.params.SdsName, r.params.SdsID, "sds_name", "sds_id")
}

func (r *Resource) pdRef() locate.Ref {
	return locate.NewRef(r.params.ProtectionDomainName, r.params.ProtectionDomainID, "protection_domain_name", "protection_domain_id")
}

func (r *Resource) faultSetRef() locate.Ref {
	return locate.NewRef(r.params.FaultSetName, r.params.FaultSetID, "fault_set_name", "fault_set_id")
}

// Key implements reconcile.Resource.
func (r *Resource) Key() reconcile.ResourceKey {
	id := r.id
	if id == "" {
		id = r.ref().Name + r.ref().ID
	}
	return reconcile.ResourceKey{Kind: reconcile.KindSDS, ID: id}
}

// Details implements reconcile.Resource.
func (r *Resource) Details() any {
	if r.details == nil {
		return nil
	}
	return r.details
}

func (r *Resource) validate() error {
	p := r.params
	if err := reconcile.ValidateParams(p); err != nil {
		return err
	}
	for _, ref := range []locate.Ref{r.ref(), r.pdRef(), r.faultSetRef()} {
		if err := ref.Validate(ref.NameParam == "sds_name"); err != nil {
			return err
		}
	}
	if len(p.SdsIPList) > 0 && p.SdsIPState == nil {
		return errs.Newf(errs.ErrInvalidParameter, "sds_ip_state is required with sds_ip_list")
	}
	if p.SdsIPState != nil && len(p.SdsIPList) == 0 {
		return errs.Newf(errs.ErrInvalidParameter, "sds_ip_state requires sds_ip_list")
	}
	return nil
}

func lookup(b Backend) locate.Lookup[gateway.Sds] {
	return locate.Lookup[gateway.Sds]{
		Kind:   "SDS",
		ByID:   b.Sds,
		ByName: b.SdsByName,
	}
}

// Load implements reconcile.Resource.
func (r *Resource) Load(ctx context.Context) error {
	if err := r.validate(); err != nil {
		return err
	}
	ref := r.ref()
	if r.id != "" {
		ref = locate.Ref{ID: r.id, NameParam: ref.NameParam, IDParam: ref.IDParam}
	}
	sds, err := locate.Locate(ctx, lookup(r.backend), ref, nil)
	if err != nil {
		return err
	}
	r.current = sds
	r.details = nil
	if sds == nil {
		return nil
	}
	r.id = sds.ID

	details := &Details{Sds: sds, RmcacheSizeInMB: sds.RmcacheSizeInMB()}
	pd, err := reconcile.Related(ctx, r.backend.ProtectionDomain, "protection domain", sds.ProtectionDomainID)
	if err != nil {
		return err
	}
	if pd != nil {
		details.ProtectionDomainName = pd.Name
	}
	fs, err := reconcile.Related(ctx, r.backend.FaultSet, "fault set", sds.FaultSetID)
	if err != nil {
		return err
	}
	if fs != nil {
		details.FaultSetName = fs.Name
	}
	r.details = details
	return nil
}

// Plan implements reconcile.Resource.
func (r *Resource) Plan(ctx context.Context) (*reconcile.Plan, error) {
	p := r.params
	plan := &reconcile.Plan{}

	if p.State.Absent() {
		if r.current != nil {
			plan.Add("removeSds", func(ctx context.Context) error {
				return r.backend.RemoveSds(ctx, r.id)
			}, reconcile.Change{Attribute: "state", From: reconcile.StatePresent, To: reconcile.StateAbsent})
		}
		return plan, nil
	}

	pd, err := inventory.ProtectionDomain(ctx, r.backend, r.pdRef())
	if err != nil {
		return nil, err
	}
	var fs *gateway.FaultSet
	if ref := r.faultSetRef(); ref.Given() {
		if fs, err = locate.Require(ctx, inventory.FaultSetLookup(r.backend), ref, inventory.Scope(pd)); err != nil {
			return nil, err
		}
	}

	base := r.current
	if base == nil {
		if base, err = r.planCreate(plan, pd, fs); err != nil {
			return nil, err
		}
	} else if err := checkImmutable(base, pd, fs); err != nil {
		return nil, err
	}

	if err := r.planModify(plan, base); err != nil {
		return nil, err
	}
	return plan, nil
}

func (r *Resource) planCreate(plan *reconcile.Plan, pd *gateway.ProtectionDomain, fs *gateway.FaultSet) (*gateway.Sds, error) {
	p := r.params
	name := r.ref().Name
	if name == "" {
		return nil, errs.Newf(errs.ErrNotFound, "SDS with %s not found", r.ref())
	}
	if p.SdsNewName != nil {
		return nil, errs.Newf(errs.ErrInvalidParameter, "sds_new_name is not allowed when creating an SDS")
	}
	if pd == nil {
		return nil, errs.WithHint(
			errs.Newf(errs.ErrInvalidParameter, "a protection domain is required to create SDS %q", name),
			"specify protection_domain_name or protection_domain_id")
	}
	if len(p.SdsIPList) == 0 || *p.SdsIPState != IPPresent {
		return nil, errs.Newf(errs.ErrInvalidParameter,
			"sds_ip_list with sds_ip_state %s is required to create SDS %q", IPPresent, name)
	}
	dataIP := false
	for _, ip := range p.SdsIPList {
		if ip.Role == "all" || ip.Role == "sdsOnly" {
			dataIP = true
		}
	}
	if !dataIP {
		return nil, errs.Newf(errs.ErrInvalidParameter,
			"SDS %q needs at least one IP with role all or sdsOnly", name)
	}
	if p.RmcacheSize != nil && (p.RmcacheEnabled == nil || !*p.RmcacheEnabled) {
		return nil, errs.Newf(errs.ErrPreconditionFailed, "rmcache_size requires rmcache_enabled")
	}

	body := gateway.SdsCreate{
		Name:               name,
		ProtectionDomainID: pd.ID,
		RfcacheEnabled:     p.RfcacheEnabled,
		RmcacheEnabled:     p.RmcacheEnabled,
	}
	created := &gateway.Sds{Name: name, ProtectionDomainID: pd.ID}
	for _, ip := range p.SdsIPList {
		addr := gateway.SdsIP{IP: ip.IP, Role: ip.Role}
		body.IPList = append(body.IPList, gateway.SdsIPArg{SdsIP: addr})
		created.IPList = append(created.IPList, addr)
	}
	if fs != nil {
		body.FaultSetID = fs.ID
		created.FaultSetID = fs.ID
	}
	if p.RfcacheEnabled != nil {
		created.RfcacheEnabled = *p.RfcacheEnabled
	}
	if p.RmcacheEnabled != nil {
		created.RmcacheEnabled = *p.RmcacheEnabled
	}
	if p.RmcacheSize != nil {
		kb := *p.RmcacheSize * 1024
		body.RmcacheSizeInKb = &kb
		created.RmcacheSizeInKb = kb
	}

	plan.Add("addSds", func(ctx context.Context) error {
		id, err := r.backend.CreateSds(ctx, body)
		if err != nil {
			return err
		}
		r.id = id
		return nil
	}, reconcile.Change{Attribute: "state", From: reconcile.StateAbsent, To: reconcile.StatePresent})
	return created, nil
}

func checkImmutable(cur *gateway.Sds, pd *gateway.ProtectionDomain, fs *gateway.FaultSet) error {
	if pd != nil && pd.ID != cur.ProtectionDomainID {
		return errs.Newf(errs.ErrInvalidParameter,
			"SDS %q belongs to protection domain %s and cannot be moved to %s", cur.Name, cur.ProtectionDomainID, pd.ID)
	}
	if fs != nil && fs.ID != cur.FaultSetID {
		return errs.Newf(errs.ErrInvalidParameter,
			"fault set of SDS %q cannot be changed from %q to %s", cur.Name, cur.FaultSetID, fs.ID)
	}
	return nil
}

// planModify appends the modify chain: rename, rfcache, rmcache, rmcache size,
// performance profile, then IP additions, role changes and removals.
func (r *Resource) planModify(plan *reconcile.Plan, base *gateway.Sds) error {
	p := r.params
	b := r.backend

	name, rename, err := reconcile.Rename(p.SdsNewName, base.Name)
	if err != nil {
		return err
	}
	if rename {
		plan.Add("setSdsName", func(ctx context.Context) error {
			return b.RenameSds(ctx, r.id, name)
		}, reconcile.Change{Attribute: "name", From: base.Name, To: name})
	}

	if v := p.RfcacheEnabled; v != nil && *v != base.RfcacheEnabled {
		want := *v
		op := "disableSdsRfcache"
		if want {
			op = "enableSdsRfcache"
		}
		plan.Add(op, func(ctx context.Context) error {
			return b.SetSdsRfcache(ctx, r.id, want)
		}, reconcile.Change{Attribute: "rfcacheEnabled", From: base.RfcacheEnabled, To: want})
	}

	rmcache := base.RmcacheEnabled
	if v := p.RmcacheEnabled; v != nil && *v != base.RmcacheEnabled {
		want := *v
		rmcache = want
		plan.Add("setSdsRmcacheEnabled", func(ctx context.Context) error {
			return b.SetSdsRmcache(ctx, r.id, want)
		}, reconcile.Change{Attribute: "rmcacheEnabled", From: base.RmcacheEnabled, To: want})
	}

	// rmcache_size is refused while the cache stays off, even when the size
	// already matches, the same as persistent checksum sub-settings on pools.
	if size := p.RmcacheSize; size != nil && !rmcache {
		return errs.WithHint(
			errs.Newf(errs.ErrPreconditionFailed, "RAM read cache is disabled on SDS %q", base.Name),
			"set rmcache_enabled to true")
	}
	if size := p.RmcacheSize; size != nil && *size != base.RmcacheSizeInMB() {
		want := *size
		plan.Add("setSdsRmcacheSize", func(ctx context.Context) error {
			return b.SetSdsRmcacheSize(ctx, r.id, want)
		}, reconcile.Change{Attribute: "rmcacheSizeInMb", From: base.RmcacheSizeInMB(), To: want})
	}

	if v := p.PerformanceProfile; v != nil && *v != base.PerfProfile {
		want := *v
		plan.Add("setSdsPerformanceParameters", func(ctx context.Context) error {
			return b.SetSdsPerformanceProfile(ctx, r.id, want)
		}, reconcile.Change{Attribute: "perfProfile", From: base.PerfProfile, To: want})
	}

	r.planIPs(plan, base)
	return nil
}

func (r *Resource) planIPs(plan *reconcile.Plan, base *gateway.Sds) {
	p := r.params
	b := r.backend
	if len(p.SdsIPList) == 0 {
		return
	}
	roles := make(map[string]string, len(base.IPList))
	for _, ip := range base.IPList {
		roles[ip.IP] = ip.Role
	}

	var adds, changes, removes []reconcile.Step
	var diff []reconcile.Change
	for _, want := range p.SdsIPList {
		ip, role := want.IP, want.Role
		cur, present := roles[ip]
		switch {
		case *p.SdsIPState == IPAbsent:
			if present {
				removes = append(removes, reconcile.Step{Name: "removeSdsIp", Run: func(ctx context.Context) error {
					return b.RemoveSdsIP(ctx, r.id, ip)
				}})
				diff = append(diff, reconcile.Change{Attribute: "ipList." + ip, From: cur, To: nil})
			}
		case !present:
			adds = append(adds, reconcile.Step{Name: "addSdsIp", Run: func(ctx context.Context) error {
				return b.AddSdsIP(ctx, r.id, gateway.SdsIP{IP: ip, Role: role})
			}})
			diff = append(diff, reconcile.Change{Attribute: "ipList." + ip, From: nil, To: role})
		case cur != role:
			changes = append(changes, reconcile.Step{Name: "setSdsIpRole", Run: func(ctx context.Context) error {
				return b.SetSdsIPRole(ctx, r.id, ip, role)
			}})
			diff = append(diff, reconcile.Change{Attribute: "ipList." + ip, From: cur, To: role})
		}
	}
	for _, group := range [][]reconcile.Step{adds, changes, removes} {
		plan.Steps = append(plan.Steps, group...)
	}
	plan.Changes = append(plan.Changes, diff...)
}
