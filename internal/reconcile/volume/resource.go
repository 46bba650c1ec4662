// Package volume reconciles PowerFlex volumes: existence, name, size, compression,
// RAM cache, snapshot policy membership and SDC mappings.
package volume

import (
	"context"
	"strconv"

	"github.com/dokzlo13/pflexctl/internal/errs"
	"github.com/dokzlo13/pflexctl/internal/gateway"
	"github.com/dokzlo13/pflexctl/internal/locate"
	"github.com/dokzlo13/pflexctl/internal/reconcile"
	"github.com/dokzlo13/pflexctl/internal/reconcile/inventory"
)

// Options tune planning.
type Options struct {
	StrictSizeGranularity bool
}

// Resource reconciles a single volume.
type Resource struct {
	backend Backend
	params  Params
	opts    Options

	// Populated by Load. id survives creation so the re-fetch finds the new volume.
	id      string
	current *gateway.Volume
	details *Details
}

// NewResource creates a new volume resource.
func NewResource(backend Backend, params Params, opts Options) *Resource {
	return &Resource{backend: backend, params: params, opts: opts}
}

func (r *Resource) ref() locate.Ref {
	return locate.NewRef(r.params.VolName, r.params.VolID, "vol_name", "vol_id")
}

// Key implements reconcile.Resource.
func (r *Resource) Key() reconcile.ResourceKey {
	id := r.id
	if id == "" {
		id = r.ref().Name + r.ref().ID
	}
	return reconcile.ResourceKey{Kind: reconcile.KindVolume, ID: id}
}

// Details implements reconcile.Resource.
func (r *Resource) Details() any {
	if r.details == nil {
		return nil
	}
	return r.details
}

func lookup(b Backend) locate.Lookup[gateway.Volume] {
	return locate.Lookup[gateway.Volume]{
		Kind:   "volume",
		ByID:   b.Volume,
		ByName: b.VolumesByName,
	}
}

// validate checks everything that needs no backend call.
func (r *Resource) validate() error {
	p := r.params
	if err := reconcile.ValidateParams(p); err != nil {
		return err
	}
	if err := r.ref().Validate(true); err != nil {
		return err
	}
	for _, ref := range []locate.Ref{
		locate.NewRef(p.StoragePoolName, p.StoragePoolID, "storage_pool_name", "storage_pool_id"),
		locate.NewRef(p.ProtectionDomainName, p.ProtectionDomainID, "protection_domain_name", "protection_domain_id"),
	} {
		if err := ref.Validate(false); err != nil {
			return err
		}
	}
	if p.SnapshotPolicyName != nil && p.SnapshotPolicyID != nil {
		return errs.Newf(errs.ErrAmbiguousIdentifier, "parameters snapshot_policy_name and snapshot_policy_id are mutually exclusive")
	}
	if p.SdcState != nil && len(p.Sdc) == 0 {
		return errs.Newf(errs.ErrInvalidParameter, "sdc_state requires sdc")
	}
	for _, sdc := range p.Sdc {
		if err := sdc.ref().Validate(); err != nil {
			return err
		}
	}
	return nil
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

	vol, err := locate.Locate(ctx, lookup(r.backend), ref, nil)
	if err != nil {
		return err
	}
	r.current = vol
	r.details = nil
	if vol == nil {
		return nil
	}
	r.id = vol.ID

	details := &Details{Volume: vol, SizeInGB: vol.SizeInGB()}
	pool, err := reconcile.Related(ctx, r.backend.StoragePool, "storage pool", vol.StoragePoolID)
	if err != nil {
		return err
	}
	if pool != nil {
		details.StoragePoolName = pool.Name
		details.ProtectionDomainID = pool.ProtectionDomainID
	}
	policy, err := reconcile.Related(ctx, r.backend.SnapshotPolicy, "snapshot policy", vol.SnapshotPolicyID)
	if err != nil {
		return err
	}
	if policy != nil {
		details.SnapshotPolicyName = policy.Name
	}
	r.details = details
	return nil
}

// Plan implements reconcile.Resource.
func (r *Resource) Plan(ctx context.Context) (*reconcile.Plan, error) {
	p := r.params
	b := r.backend
	plan := &reconcile.Plan{}

	if p.State.Absent() {
		if r.current == nil {
			return plan, nil
		}
		mode := "ONLY_ME"
		if p.DeleteSnapshots {
			mode = "INCLUDING_DESCENDANTS"
		}
		plan.Add("removeVolume", func(ctx context.Context) error {
			return b.RemoveVolume(ctx, r.id, mode)
		}, reconcile.Change{Attribute: "state", From: reconcile.StatePresent, To: reconcile.StateAbsent})
		return plan, nil
	}

	pd, err := inventory.ProtectionDomain(ctx, b,
		locate.NewRef(p.ProtectionDomainName, p.ProtectionDomainID, "protection_domain_name", "protection_domain_id"))
	if err != nil {
		return nil, err
	}
	var pool *gateway.StoragePool
	if poolRef := locate.NewRef(p.StoragePoolName, p.StoragePoolID, "storage_pool_name", "storage_pool_id"); poolRef.Given() {
		pool, err = locate.Require(ctx, inventory.StoragePoolLookup(b), poolRef, inventory.Scope(pd))
		if err != nil {
			return nil, err
		}
	}

	base := r.current
	if base == nil {
		base, err = r.planCreate(plan, pool)
		if err != nil {
			return nil, err
		}
	} else if err := r.checkImmutable(base, pool); err != nil {
		return nil, err
	}

	if err := r.planModify(ctx, plan, base); err != nil {
		return nil, err
	}
	return plan, nil
}

// planCreate adds the create step and returns the volume as it will exist right after it.
func (r *Resource) planCreate(plan *reconcile.Plan, pool *gateway.StoragePool) (*gateway.Volume, error) {
	p := r.params
	name := r.ref().Name
	if name == "" {
		return nil, errs.Newf(errs.ErrNotFound, "volume with %s not found", r.ref())
	}
	if p.VolNewName != nil {
		return nil, errs.Newf(errs.ErrInvalidParameter, "vol_new_name is not allowed when creating a volume")
	}
	if p.Size == nil {
		return nil, errs.Newf(errs.ErrInvalidParameter, "size is required to create volume %q", name)
	}
	if pool == nil {
		return nil, errs.WithHint(
			errs.Newf(errs.ErrInvalidParameter, "a storage pool is required to create volume %q", name),
			"specify storage_pool_name or storage_pool_id")
	}
	gb, err := sizeInGB(*p.Size, p.CapUnit, r.opts.StrictSizeGranularity)
	if err != nil {
		return nil, err
	}

	body := gateway.VolumeCreate{
		Name:           name,
		VolumeSizeInKb: strconv.FormatInt(gb*1024*1024, 10),
		StoragePoolID:  pool.ID,
		VolumeType:     volumeTypes["THIN_PROVISIONED"],
	}
	if p.VolType != nil {
		body.VolumeType = volumeTypes[*p.VolType]
	}
	if p.CompressionType != nil {
		body.CompressionMethod = compressionMethods[*p.CompressionType]
	}
	if p.UseRmcache != nil {
		body.UseRmcache = strconv.FormatBool(*p.UseRmcache)
	}

	plan.Add("createVolume", func(ctx context.Context) error {
		id, err := r.backend.CreateVolume(ctx, body)
		if err != nil {
			return err
		}
		r.id = id
		return nil
	}, reconcile.Change{Attribute: "state", From: reconcile.StateAbsent, To: reconcile.StatePresent})

	created := &gateway.Volume{
		Name:              body.Name,
		SizeInKb:          gb * 1024 * 1024,
		VolumeType:        body.VolumeType,
		StoragePoolID:     pool.ID,
		CompressionMethod: body.CompressionMethod,
	}
	if p.UseRmcache != nil {
		created.UseRmcache = *p.UseRmcache
	}
	return created, nil
}

func (r *Resource) checkImmutable(cur *gateway.Volume, pool *gateway.StoragePool) error {
	p := r.params
	if p.VolType != nil && volumeTypes[*p.VolType] != cur.VolumeType {
		return errs.Newf(errs.ErrInvalidParameter,
			"vol_type of volume %q cannot be changed from %s", cur.Name, cur.VolumeType)
	}
	if pool != nil && pool.ID != cur.StoragePoolID {
		return errs.Newf(errs.ErrInvalidParameter,
			"volume %q belongs to storage pool %s and cannot be moved to %s", cur.Name, cur.StoragePoolID, pool.ID)
	}
	return nil
}

// planModify appends the modify chain in its fixed order: rename, resize, compression,
// RAM cache, snapshot policy, SDC mappings.
func (r *Resource) planModify(ctx context.Context, plan *reconcile.Plan, base *gateway.Volume) error {
	p := r.params
	b := r.backend

	name, rename, err := reconcile.Rename(p.VolNewName, base.Name)
	if err != nil {
		return err
	}
	if rename {
		plan.Add("setVolumeName", func(ctx context.Context) error {
			return b.RenameVolume(ctx, r.id, name)
		}, reconcile.Change{Attribute: "name", From: base.Name, To: name})
	}

	if p.Size != nil {
		gb, err := sizeInGB(*p.Size, p.CapUnit, r.opts.StrictSizeGranularity)
		if err != nil {
			return err
		}
		cur := base.SizeInGB()
		if gb < cur {
			return errs.Newf(errs.ErrInvalidSize,
				"volume %q is %d GB; shrinking to %d GB is not supported", base.Name, cur, gb)
		}
		if gb > cur {
			plan.Add("setVolumeSize", func(ctx context.Context) error {
				return b.ResizeVolume(ctx, r.id, gb)
			}, reconcile.Change{Attribute: "sizeInGB", From: cur, To: gb})
		}
	}

	if p.CompressionType != nil {
		want := compressionMethods[*p.CompressionType]
		if want != base.CompressionMethod {
			plan.Add("modifyCompressionMethod", func(ctx context.Context) error {
				return b.SetVolumeCompression(ctx, r.id, want)
			}, reconcile.Change{Attribute: "compressionMethod", From: base.CompressionMethod, To: want})
		}
	}

	if p.UseRmcache != nil && *p.UseRmcache != base.UseRmcache {
		want := *p.UseRmcache
		plan.Add("setVolumeUseRmcache", func(ctx context.Context) error {
			return b.SetVolumeRmcache(ctx, r.id, want)
		}, reconcile.Change{Attribute: "useRmcache", From: base.UseRmcache, To: want})
	}

	if err := r.planSnapshotPolicy(ctx, plan, base); err != nil {
		return err
	}
	return r.planMappings(ctx, plan, base)
}

func (r *Resource) planSnapshotPolicy(ctx context.Context, plan *reconcile.Plan, base *gateway.Volume) error {
	p := r.params
	b := r.backend
	if p.SnapshotPolicyName == nil && p.SnapshotPolicyID == nil {
		return nil
	}

	removal := removalActions["detach"]
	if p.AutoSnapRemoveType != nil {
		removal = removalActions[*p.AutoSnapRemoveType]
	}
	detach := func(policyID string) {
		plan.Add("removeSourceVolumeFromSnapshotPolicy", func(ctx context.Context) error {
			return b.RemoveSourceVolume(ctx, policyID, r.id, removal, false)
		})
	}

	ref := locate.NewRef(p.SnapshotPolicyName, p.SnapshotPolicyID, "snapshot_policy_name", "snapshot_policy_id")
	if !ref.Given() {
		// Explicit "" clears the attachment.
		if base.SnapshotPolicyID == "" {
			return errs.Newf(errs.ErrPreconditionFailed,
				"volume %q has no snapshot policy to detach", base.Name)
		}
		detach(base.SnapshotPolicyID)
		plan.Changes = append(plan.Changes, reconcile.Change{Attribute: "snapshotPolicyId", From: base.SnapshotPolicyID, To: ""})
		return nil
	}

	policy, err := locate.Require(ctx, inventory.SnapshotPolicyLookup(b), ref, nil)
	if err != nil {
		return err
	}
	if policy.ID == base.SnapshotPolicyID {
		return nil
	}
	if base.SnapshotPolicyID != "" {
		detach(base.SnapshotPolicyID)
	}
	plan.Add("addSourceVolumeToSnapshotPolicy", func(ctx context.Context) error {
		return b.AddSourceVolume(ctx, policy.ID, r.id)
	}, reconcile.Change{Attribute: "snapshotPolicyId", From: base.SnapshotPolicyID, To: policy.ID})
	return nil
}

func (r *Resource) planMappings(ctx context.Context, plan *reconcile.Plan, base *gateway.Volume) error {
	p := r.params
	b := r.backend
	if len(p.Sdc) == 0 {
		return nil
	}

	mapped := make(map[string]gateway.MappedSdc, len(base.MappedSdcInfo))
	for _, m := range base.MappedSdcInfo {
		mapped[m.SdcID] = m
	}
	unmap := p.SdcState != nil && *p.SdcState == "unmapped"

	var maps, modes, limits, unmaps []reconcile.Step
	var changes []reconcile.Change
	step := func(dst *[]reconcile.Step, name string, run func(ctx context.Context) error, change reconcile.Change) {
		*dst = append(*dst, reconcile.Step{Name: name, Run: run})
		changes = append(changes, change)
	}

	for _, want := range p.Sdc {
		sdc, err := inventory.Sdc(ctx, b, want.ref())
		if err != nil {
			return err
		}
		sdcID := sdc.ID
		cur, isMapped := mapped[sdcID]

		if unmap {
			if isMapped {
				step(&unmaps, "removeMappedSdc", func(ctx context.Context) error {
					return b.UnmapVolume(ctx, r.id, sdcID)
				}, reconcile.Change{Attribute: "mappedSdc." + sdcID, From: "mapped", To: "unmapped"})
			}
			continue
		}

		var mode string
		if want.AccessMode != nil {
			mode = accessModes[*want.AccessMode]
		}
		if !isMapped {
			allow := p.AllowMultipleMappings
			step(&maps, "addMappedSdc", func(ctx context.Context) error {
				return b.MapVolume(ctx, r.id, sdcID, mode, allow)
			}, reconcile.Change{Attribute: "mappedSdc." + sdcID, From: "unmapped", To: "mapped"})
		} else if mode != "" && mode != cur.AccessMode {
			step(&modes, "setVolumeMappingAccessMode", func(ctx context.Context) error {
				return b.SetMappingAccessMode(ctx, r.id, sdcID, mode)
			}, reconcile.Change{Attribute: "mappedSdc." + sdcID + ".accessMode", From: cur.AccessMode, To: mode})
		}

		bw, iops := cur.LimitBwInMbps, cur.LimitIops
		if want.BandwidthLimit != nil {
			bw = *want.BandwidthLimit
		}
		if want.IopsLimit != nil {
			iops = *want.IopsLimit
		}
		if bw != cur.LimitBwInMbps || iops != cur.LimitIops {
			step(&limits, "setMappedSdcLimits", func(ctx context.Context) error {
				return b.SetMappingLimits(ctx, r.id, sdcID, bw*1024, iops)
			}, reconcile.Change{
				Attribute: "mappedSdc." + sdcID + ".limits",
				From:      map[string]int{"bandwidth_limit": cur.LimitBwInMbps, "iops_limit": cur.LimitIops},
				To:        map[string]int{"bandwidth_limit": bw, "iops_limit": iops},
			})
		}
	}

	for _, group := range [][]reconcile.Step{maps, modes, limits, unmaps} {
		plan.Steps = append(plan.Steps, group...)
	}
	plan.Changes = append(plan.Changes, changes...)
	return nil
}
