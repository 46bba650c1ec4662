// Package storagepool reconciles PowerFlex storage pools.
package storagepool

import (
	"context"
	"strconv"

	"github.com/dokzlo13/pflexctl/internal/errs"
	"github.com/dokzlo13/pflexctl/internal/gateway"
	"github.com/dokzlo13/pflexctl/internal/locate"
	"github.com/dokzlo13/pflexctl/internal/reconcile"
	"github.com/dokzlo13/pflexctl/internal/reconcile/inventory"
)

// Resource reconciles a single storage pool.
type Resource struct {
	backend Backend
	params  Params

	id      string
	pd      *gateway.ProtectionDomain
	current *gateway.StoragePool
	details *Details
}

// NewResource creates a new storage pool resource.
func NewResource(backend Backend, params Params) *Resource {
	return &Resource{backend: backend, params: params}
}

func (r *Resource) ref() locate.Ref {
	return locate.NewRef(r.params.StoragePoolName, r.params.StoragePoolID, "storage_pool_name", "storage_pool_id")
}

func (r *Resource) pdRef() locate.Ref {
	return locate.NewRef(r.params.ProtectionDomainName, r.params.ProtectionDomainID, "protection_domain_name", "protection_domain_id")
}

// Key implements reconcile.Resource.
func (r *Resource) Key() reconcile.ResourceKey {
	id := r.id
	if id == "" {
		id = r.ref().Name + r.ref().ID
	}
	return reconcile.ResourceKey{Kind: reconcile.KindStoragePool, ID: id}
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
	if err := r.ref().Validate(true); err != nil {
		return err
	}
	if err := r.pdRef().Validate(false); err != nil {
		return err
	}
	if t := p.CapAlertThresholds; t != nil && t.High != nil && t.Critical != nil && *t.High >= *t.Critical {
		return errs.Newf(errs.ErrInvalidParameter,
			"high_threshold (%d) must be lower than critical_threshold (%d)", *t.High, *t.Critical)
	}
	if pc := p.PersistentChecksum; pc != nil && pc.Enable != nil && !*pc.Enable &&
		(pc.ValidateOnRead != nil || pc.BuilderLimit != nil) {
		return errs.Newf(errs.ErrInvalidParameter,
			"validate_on_read and builder_limit cannot be set while disabling persistent checksum")
	}
	return nil
}

// Load implements reconcile.Resource.
func (r *Resource) Load(ctx context.Context) error {
	if err := r.validate(); err != nil {
		return err
	}
	pd, err := inventory.ProtectionDomain(ctx, r.backend, r.pdRef())
	if err != nil {
		return err
	}
	r.pd = pd

	ref := r.ref()
	if r.id != "" {
		ref = locate.Ref{ID: r.id, NameParam: ref.NameParam, IDParam: ref.IDParam}
	}
	pool, err := locate.Locate(ctx, inventory.StoragePoolLookup(r.backend), ref, inventory.Scope(pd))
	if err != nil {
		return err
	}
	r.current = pool
	r.details = nil
	if pool == nil {
		return nil
	}
	r.id = pool.ID

	details := &Details{StoragePool: pool}
	if pd != nil && pd.ID == pool.ProtectionDomainID {
		details.ProtectionDomainName = pd.Name
	} else {
		owner, err := reconcile.Related(ctx, r.backend.ProtectionDomain, "protection domain", pool.ProtectionDomainID)
		if err != nil {
			return err
		}
		if owner != nil {
			details.ProtectionDomainName = owner.Name
		}
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
			plan.Add("removeStoragePool", func(ctx context.Context) error {
				return r.backend.RemoveStoragePool(ctx, r.id)
			}, reconcile.Change{Attribute: "state", From: reconcile.StatePresent, To: reconcile.StateAbsent})
		}
		return plan, nil
	}

	base := r.current
	if base == nil {
		var err error
		if base, err = r.planCreate(plan); err != nil {
			return nil, err
		}
	}
	if err := r.planModify(plan, base); err != nil {
		return nil, err
	}
	return plan, nil
}

func (r *Resource) planCreate(plan *reconcile.Plan) (*gateway.StoragePool, error) {
	p := r.params
	name := r.ref().Name
	if name == "" {
		return nil, errs.Newf(errs.ErrNotFound, "storage pool with %s not found", r.ref())
	}
	if p.StoragePoolNewName != nil {
		return nil, errs.Newf(errs.ErrInvalidParameter, "storage_pool_new_name is not allowed when creating a storage pool")
	}
	if r.pd == nil {
		return nil, errs.WithHint(
			errs.Newf(errs.ErrInvalidParameter, "a protection domain is required to create storage pool %q", name),
			"specify protection_domain_name or protection_domain_id")
	}
	if p.MediaType == nil {
		return nil, errs.Newf(errs.ErrInvalidParameter, "media_type is required to create storage pool %q", name)
	}

	body := gateway.StoragePoolCreate{
		Name:               name,
		ProtectionDomainID: r.pd.ID,
		MediaType:          mediaTypes[*p.MediaType],
	}
	plan.Add("createStoragePool", func(ctx context.Context) error {
		id, err := r.backend.CreateStoragePool(ctx, body)
		if err != nil {
			return err
		}
		r.id = id
		return nil
	}, reconcile.Change{Attribute: "state", From: reconcile.StateAbsent, To: reconcile.StatePresent})

	return &gateway.StoragePool{
		Name:               body.Name,
		ProtectionDomainID: body.ProtectionDomainID,
		MediaType:          body.MediaType,
	}, nil
}

// toggle adds a step when a requested flag differs from the current one.
func (r *Resource) toggle(plan *reconcile.Plan, name, attr string, want *bool, cur bool,
	set func(ctx context.Context, id string, enabled bool) error,
) {
	if want == nil || *want == cur {
		return
	}
	v := *want
	plan.Add(name, func(ctx context.Context) error {
		return set(ctx, r.id, v)
	}, reconcile.Change{Attribute: attr, From: cur, To: v})
}

func (r *Resource) setInt(plan *reconcile.Plan, name, attr string, want *int, cur int,
	set func(ctx context.Context, id string, v int) error,
) {
	if want == nil || *want == cur {
		return
	}
	v := *want
	plan.Add(name, func(ctx context.Context) error {
		return set(ctx, r.id, v)
	}, reconcile.Change{Attribute: attr, From: cur, To: v})
}

func onOff(enabled bool, on, off string) string {
	if enabled {
		return on
	}
	return off
}

// planModify appends the modify chain in its fixed order.
func (r *Resource) planModify(plan *reconcile.Plan, base *gateway.StoragePool) error {
	p := r.params
	b := r.backend

	name, rename, err := reconcile.Rename(p.StoragePoolNewName, base.Name)
	if err != nil {
		return err
	}
	if rename {
		plan.Add("setStoragePoolName", func(ctx context.Context) error {
			return b.RenameStoragePool(ctx, r.id, name)
		}, reconcile.Change{Attribute: "name", From: base.Name, To: name})
	}

	if p.MediaType != nil {
		if want := mediaTypes[*p.MediaType]; want != base.MediaType {
			plan.Add("setMediaType", func(ctx context.Context) error {
				return b.SetStoragePoolMediaType(ctx, r.id, want)
			}, reconcile.Change{Attribute: "mediaType", From: base.MediaType, To: want})
		}
	}

	if p.UseRfcache != nil {
		r.toggle(plan, onOff(*p.UseRfcache, "enableRfcache", "disableRfcache"), "useRfcache",
			p.UseRfcache, base.UseRfcache, b.SetStoragePoolRfcache)
	}
	r.toggle(plan, "setUseRmcache", "useRmcache", p.UseRmcache, base.UseRmcache, b.SetStoragePoolRmcache)

	if mode := p.RmcacheWriteHandlingMode; mode != nil && *mode != base.RmcacheWriteHandlingMode {
		want := *mode
		plan.Add("setRmcacheWriteHandlingMode", func(ctx context.Context) error {
			return b.SetStoragePoolRmcacheWriteMode(ctx, r.id, want)
		}, reconcile.Change{Attribute: "rmcacheWriteHandlingMode", From: base.RmcacheWriteHandlingMode, To: want})
	}

	r.toggle(plan, "setZeroPaddingPolicy", "zeroPaddingEnabled", p.EnableZeroPadding, base.ZeroPaddingEnabled, b.SetStoragePoolZeroPadding)

	curRatio := 0
	if base.ReplicationCapMaxRatio != nil {
		curRatio = *base.ReplicationCapMaxRatio
	}
	r.setInt(plan, "setReplicationJournalCapacity", "replicationCapacityMaxRatio", p.RepCapMaxRatio, curRatio, b.SetStoragePoolRepCapMaxRatio)

	if p.EnableRebalance != nil {
		r.toggle(plan, onOff(*p.EnableRebalance, "enableRebalance", "disableRebalance"), "rebalanceEnabled",
			p.EnableRebalance, base.RebalanceEnabled, b.SetStoragePoolRebalance)
	}
	if p.EnableRebuild != nil {
		r.toggle(plan, onOff(*p.EnableRebuild, "enableRebuild", "disableRebuild"), "rebuildEnabled",
			p.EnableRebuild, base.RebuildEnabled, b.SetStoragePoolRebuild)
	}
	if p.EnableFragmentation != nil {
		r.toggle(plan, onOff(*p.EnableFragmentation, "enableFragmentation", "disableFragmentation"), "fragmentationEnabled",
			p.EnableFragmentation, base.FragmentationEnabled, b.SetStoragePoolFragmentation)
	}

	r.setInt(plan, "setSparePercentage", "sparePercentage", p.SparePercentage, base.SparePercentage, b.SetStoragePoolSparePercentage)
	r.setInt(plan, "setRebuildRebalanceParallelism", "numOfParallelRebuildRebalanceJobsPerDevice",
		p.ParallelRebuildRebalanceLimit, base.ParallelRebuildRebalance, b.SetStoragePoolParallelism)

	if err := r.planChecksum(plan, base); err != nil {
		return err
	}
	for _, pol := range ioPolicies(p, base) {
		if err := r.planIOPriority(plan, pol); err != nil {
			return err
		}
	}
	return r.planThresholds(plan, base)
}

// planChecksum diffs persistent checksum as one group. Enabling carries the
// sub-settings in the same call.
func (r *Resource) planChecksum(plan *reconcile.Plan, base *gateway.StoragePool) error {
	pc := r.params.PersistentChecksum
	if pc == nil {
		return nil
	}
	b := r.backend
	enabled := base.PersistentChecksumEnabled

	switch {
	case pc.Enable != nil && *pc.Enable && !enabled:
		validate, limit := pc.ValidateOnRead, pc.BuilderLimit
		plan.Add("enablePersistentChecksum", func(ctx context.Context) error {
			return b.EnablePersistentChecksum(ctx, r.id, validate, limit)
		}, reconcile.Change{Attribute: "persistentChecksumEnabled", From: false, To: true})
		return nil

	case pc.Enable != nil && !*pc.Enable:
		if enabled {
			plan.Add("disablePersistentChecksum", func(ctx context.Context) error {
				return b.DisablePersistentChecksum(ctx, r.id)
			}, reconcile.Change{Attribute: "persistentChecksumEnabled", From: true, To: false})
		}
		return nil
	}

	if pc.ValidateOnRead == nil && pc.BuilderLimit == nil {
		return nil
	}
	if !enabled {
		return errs.WithHint(
			errs.Newf(errs.ErrPreconditionFailed, "persistent checksum is disabled on storage pool %q", base.Name),
			"set persistent_checksum.enable to true")
	}

	var validate *bool
	var limit *int
	var changes []reconcile.Change
	if v := pc.ValidateOnRead; v != nil && *v != base.PersistentChecksumValidateOnRead {
		validate = v
		changes = append(changes, reconcile.Change{
			Attribute: "persistentChecksumValidateOnRead", From: base.PersistentChecksumValidateOnRead, To: *v})
	}
	if l := pc.BuilderLimit; l != nil && *l != base.PersistentChecksumBuilderLimitKb {
		limit = l
		changes = append(changes, reconcile.Change{
			Attribute: "persistentChecksumBuilderLimitKb", From: base.PersistentChecksumBuilderLimitKb, To: *l})
	}
	if len(changes) == 0 {
		return nil
	}
	plan.Add("modifyPersistentChecksum", func(ctx context.Context) error {
		return b.ModifyPersistentChecksum(ctx, r.id, validate, limit)
	}, changes...)
	return nil
}

type ioPolicy struct {
	attr   string
	action string
	want   *IOPriority

	policy string
	ios    int
	bw     int
}

func ioPolicies(p Params, base *gateway.StoragePool) []ioPolicy {
	return []ioPolicy{
		{
			attr:   "protectedMaintenanceModeIoPriority",
			action: "setProtectedMaintenanceModeIoPriorityPolicy",
			want:   p.ProtectedMaintenanceModeIOPriority,
			policy: base.ProtectedMaintenanceModeIoPriorityPolicy,
			ios:    base.ProtectedMaintenanceModeIoPriorityConcurrentIos,
			bw:     base.ProtectedMaintenanceModeIoPriorityBwLimitPerDevice,
		},
		{
			attr:   "vtreeMigrationIoPriority",
			action: "setVTreeMigrationIoPriorityPolicy",
			want:   p.VTreeMigrationIOPriority,
			policy: base.VTreeMigrationIoPriorityPolicy,
			ios:    base.VTreeMigrationIoPriorityConcurrentIos,
			bw:     base.VTreeMigrationIoPriorityBwLimitPerDevice,
		},
		{
			attr:   "rebalanceIoPriority",
			action: "setRebalanceIoPriorityPolicy",
			want:   p.RebalanceIOPriority,
			policy: base.RebalanceIoPriorityPolicy,
			ios:    base.RebalanceIoPriorityConcurrentIos,
			bw:     base.RebalanceIoPriorityBwLimitPerDevice,
		},
	}
}

// planIOPriority diffs one IO priority policy. Concurrency limits need a limiting
// policy; bandwidth limits need favorAppIos.
func (r *Resource) planIOPriority(plan *reconcile.Plan, pol ioPolicy) error {
	want := pol.want
	if want == nil {
		return nil
	}
	policy, ios, bw := pol.policy, pol.ios, pol.bw
	if want.Policy != nil {
		policy = *want.Policy
	}
	if want.ConcurrentIosPerDevice != nil {
		if policy == "" || policy == "unlimited" {
			return errs.Newf(errs.ErrPreconditionFailed,
				"%s: concurrent_ios_per_device requires policy limitNumOfConcurrentIos or favorAppIos", pol.attr)
		}
		ios = *want.ConcurrentIosPerDevice
	}
	if want.BwLimitPerDevice != nil {
		if policy != "favorAppIos" {
			return errs.Newf(errs.ErrPreconditionFailed,
				"%s: bw_limit_per_device requires policy favorAppIos", pol.attr)
		}
		bw = *want.BwLimitPerDevice
	}
	if policy == pol.policy && ios == pol.ios && bw == pol.bw {
		return nil
	}

	body := gateway.IOPriorityPolicy{Policy: policy}
	if policy != "unlimited" && ios > 0 {
		body.ConcurrentIosPerDevice = strconv.Itoa(ios)
	}
	if policy == "favorAppIos" && bw > 0 {
		body.BwLimitPerDeviceInKbps = strconv.Itoa(bw)
	}
	action := pol.action
	plan.Add(action, func(ctx context.Context) error {
		return r.backend.SetIOPriorityPolicy(ctx, r.id, action, body)
	}, reconcile.Change{
		Attribute: pol.attr,
		From:      map[string]any{"policy": pol.policy, "concurrent_ios_per_device": pol.ios, "bw_limit_per_device": pol.bw},
		To:        map[string]any{"policy": policy, "concurrent_ios_per_device": ios, "bw_limit_per_device": bw},
	})
	return nil
}

func (r *Resource) planThresholds(plan *reconcile.Plan, base *gateway.StoragePool) error {
	t := r.params.CapAlertThresholds
	if t == nil {
		return nil
	}
	high, critical := base.CapacityAlertHighThreshold, base.CapacityAlertCriticalThreshold
	if t.High != nil {
		high = *t.High
	}
	if t.Critical != nil {
		critical = *t.Critical
	}
	if high == base.CapacityAlertHighThreshold && critical == base.CapacityAlertCriticalThreshold {
		return nil
	}
	if critical != 0 && high >= critical {
		return errs.Newf(errs.ErrInvalidParameter,
			"high_threshold (%d) must be lower than critical_threshold (%d)", high, critical)
	}
	plan.Add("setCapacityAlertThresholds", func(ctx context.Context) error {
		return r.backend.SetCapacityAlertThresholds(ctx, r.id, high, critical)
	}, reconcile.Change{
		Attribute: "capacityAlertThresholds",
		From:      map[string]int{"high": base.CapacityAlertHighThreshold, "critical": base.CapacityAlertCriticalThreshold},
		To:        map[string]int{"high": high, "critical": critical},
	})
	return nil
}
