// Package snapshotpolicy reconciles PowerFlex snapshot policies and their source volumes.
package snapshotpolicy

import (
	"context"
	"slices"
	"strconv"

	"github.com/dokzlo13/pflexctl/internal/errs"
	"github.com/dokzlo13/pflexctl/internal/gateway"
	"github.com/dokzlo13/pflexctl/internal/locate"
	"github.com/dokzlo13/pflexctl/internal/reconcile"
	"github.com/dokzlo13/pflexctl/internal/reconcile/inventory"
)

// Resource reconciles a single snapshot policy.
type Resource struct {
	backend Backend
	params  Params

	id      string
	current *gateway.SnapshotPolicy
	sources map[string]bool
	details *Details
}

// NewResource creates a new snapshot policy resource.
func NewResource(backend Backend, params Params) *Resource {
	return &Resource{backend: backend, params: params}
}

func (r *Resource) ref() locate.Ref {
	return locate.NewRef(r.params.SnapshotPolicyName, r.params.SnapshotPolicyID, "snapshot_policy_name", "snapshot_policy_id")
}

func volumeRef(v SourceVolume) locate.Ref {
	return locate.NewRef(v.Name, v.ID, "source_volume.name", "source_volume.id")
}

// Key implements reconcile.Resource.
func (r *Resource) Key() reconcile.ResourceKey {
	id := r.id
	if id == "" {
		id = r.ref().Name + r.ref().ID
	}
	return reconcile.ResourceKey{Kind: reconcile.KindSnapshotPolicy, ID: id}
}

// Details implements reconcile.Resource.
func (r *Resource) Details() any {
	if r.details == nil {
		return nil
	}
	return r.details
}

func (r *Resource) validate() error {
	if err := reconcile.ValidateParams(r.params); err != nil {
		return err
	}
	if err := r.ref().Validate(true); err != nil {
		return err
	}
	for _, v := range r.params.SourceVolumes {
		if err := volumeRef(v).Validate(true); err != nil {
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
	policy, err := locate.Locate(ctx, inventory.SnapshotPolicyLookup(r.backend), ref, nil)
	if err != nil {
		return err
	}
	r.current = policy
	r.details = nil
	r.sources = nil
	if policy == nil {
		return nil
	}
	r.id = policy.ID

	vols, err := r.backend.SnapshotPolicySourceVolumes(ctx, policy.ID)
	if err != nil {
		return err
	}
	details := &Details{SnapshotPolicy: policy, SourceVolumes: make([]VolumeRef, 0, len(vols))}
	r.sources = make(map[string]bool, len(vols))
	for _, v := range vols {
		r.sources[v.ID] = true
		details.SourceVolumes = append(details.SourceVolumes, VolumeRef{ID: v.ID, Name: v.Name})
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
			plan.Add("removeSnapshotPolicy", func(ctx context.Context) error {
				return r.backend.RemoveSnapshotPolicy(ctx, r.id)
			}, reconcile.Change{Attribute: "state", From: reconcile.StatePresent, To: reconcile.StateAbsent})
		}
		return plan, nil
	}

	base := r.current
	sources := r.sources
	if base == nil {
		var err error
		if base, err = r.planCreate(plan); err != nil {
			return nil, err
		}
		sources = map[string]bool{}
	} else if err := r.checkImmutable(base); err != nil {
		return nil, err
	}

	if err := r.planModify(ctx, plan, base, sources); err != nil {
		return nil, err
	}
	return plan, nil
}

func (r *Resource) planCreate(plan *reconcile.Plan) (*gateway.SnapshotPolicy, error) {
	p := r.params
	name := r.ref().Name
	if name == "" {
		return nil, errs.Newf(errs.ErrNotFound, "snapshot policy with %s not found", r.ref())
	}
	if p.NewName != nil {
		return nil, errs.Newf(errs.ErrInvalidParameter, "new_name is not allowed when creating a snapshot policy")
	}
	if p.Cadence == nil || len(p.Retention) == 0 {
		return nil, errs.Newf(errs.ErrInvalidParameter,
			"auto_snapshot_creation_cadence and num_of_retained_snapshots_per_level are required to create snapshot policy %q", name)
	}

	body := gateway.SnapshotPolicyCreate{
		Name:                           name,
		AutoSnapshotCreationCadenceMin: strconv.Itoa(p.Cadence.Minutes()),
	}
	for _, n := range p.Retention {
		body.NumOfRetainedSnapshotsPerLevel = append(body.NumOfRetainedSnapshotsPerLevel, strconv.Itoa(n))
	}
	created := &gateway.SnapshotPolicy{
		Name:                           name,
		AutoSnapshotCreationCadenceMin: p.Cadence.Minutes(),
		NumOfRetainedSnapshotsPerLevel: slices.Clone(p.Retention),
		SnapshotPolicyState:            "Active",
	}
	if p.AccessMode != nil {
		body.SnapshotAccessMode = accessModes[*p.AccessMode]
		created.SnapshotAccessMode = body.SnapshotAccessMode
	}
	if p.SecureSnapshots != nil {
		body.SecureSnapshots = strconv.FormatBool(*p.SecureSnapshots)
		created.SecureSnapshots = *p.SecureSnapshots
	}

	plan.Add("createSnapshotPolicy", func(ctx context.Context) error {
		id, err := r.backend.CreateSnapshotPolicy(ctx, body)
		if err != nil {
			return err
		}
		r.id = id
		return nil
	}, reconcile.Change{Attribute: "state", From: reconcile.StateAbsent, To: reconcile.StatePresent})
	return created, nil
}

func (r *Resource) checkImmutable(cur *gateway.SnapshotPolicy) error {
	p := r.params
	if p.AccessMode != nil && accessModes[*p.AccessMode] != cur.SnapshotAccessMode {
		return errs.Newf(errs.ErrInvalidParameter,
			"access_mode of snapshot policy %q cannot be changed from %s", cur.Name, cur.SnapshotAccessMode)
	}
	if p.SecureSnapshots != nil && *p.SecureSnapshots != cur.SecureSnapshots {
		return errs.Newf(errs.ErrInvalidParameter,
			"secure_snapshots of snapshot policy %q cannot be changed", cur.Name)
	}
	return nil
}

// planModify appends rename, cadence/retention, source volume additions and
// removals, then pause or resume.
func (r *Resource) planModify(ctx context.Context, plan *reconcile.Plan, base *gateway.SnapshotPolicy, sources map[string]bool) error {
	p := r.params
	b := r.backend

	name, rename, err := reconcile.Rename(p.NewName, base.Name)
	if err != nil {
		return err
	}
	if rename {
		plan.Add("renameSnapshotPolicy", func(ctx context.Context) error {
			return b.RenameSnapshotPolicy(ctx, r.id, name)
		}, reconcile.Change{Attribute: "name", From: base.Name, To: name})
	}

	cadence, retention := base.AutoSnapshotCreationCadenceMin, base.NumOfRetainedSnapshotsPerLevel
	if p.Cadence != nil {
		cadence = p.Cadence.Minutes()
	}
	if len(p.Retention) > 0 {
		retention = p.Retention
	}
	var changes []reconcile.Change
	if cadence != base.AutoSnapshotCreationCadenceMin {
		changes = append(changes, reconcile.Change{Attribute: "autoSnapshotCreationCadenceInMin", From: base.AutoSnapshotCreationCadenceMin, To: cadence})
	}
	if !slices.Equal(retention, base.NumOfRetainedSnapshotsPerLevel) {
		changes = append(changes, reconcile.Change{Attribute: "numOfRetainedSnapshotsPerLevel", From: base.NumOfRetainedSnapshotsPerLevel, To: retention})
	}
	if len(changes) > 0 {
		retention := slices.Clone(retention)
		plan.Add("modifySnapshotPolicy", func(ctx context.Context) error {
			return b.ModifySnapshotPolicy(ctx, r.id, cadence, retention)
		}, changes...)
	}

	if err := r.planSources(ctx, plan, sources); err != nil {
		return err
	}

	if p.Pause != nil && *p.Pause != base.Paused() {
		if *p.Pause {
			plan.Add("pauseSnapshotPolicy", func(ctx context.Context) error {
				return b.PauseSnapshotPolicy(ctx, r.id)
			}, reconcile.Change{Attribute: "snapshotPolicyState", From: base.SnapshotPolicyState, To: "Paused"})
		} else {
			plan.Add("resumeSnapshotPolicy", func(ctx context.Context) error {
				return b.ResumeSnapshotPolicy(ctx, r.id)
			}, reconcile.Change{Attribute: "snapshotPolicyState", From: base.SnapshotPolicyState, To: "Active"})
		}
	}
	return nil
}

func (r *Resource) planSources(ctx context.Context, plan *reconcile.Plan, sources map[string]bool) error {
	b := r.backend
	lookup := locate.Lookup[gateway.Volume]{Kind: "volume", ByID: b.Volume, ByName: b.VolumesByName}

	var adds, removes []reconcile.Step
	var changes []reconcile.Change
	for _, want := range r.params.SourceVolumes {
		vol, err := locate.Require(ctx, lookup, volumeRef(want), nil)
		if err != nil {
			return err
		}
		volID := vol.ID
		attached := sources[volID]

		if want.State.Absent() {
			if !attached {
				continue
			}
			removal := "Detach"
			if want.AutoSnapRemovalAction != nil {
				removal = *want.AutoSnapRemovalAction
			}
			detachLocked := want.DetachLockedAutoSnapshots
			removes = append(removes, reconcile.Step{Name: "removeSourceVolumeFromSnapshotPolicy", Run: func(ctx context.Context) error {
				return b.RemoveSourceVolume(ctx, r.id, volID, removal, detachLocked)
			}})
			changes = append(changes, reconcile.Change{Attribute: "sourceVolume." + vol.Name, From: "attached", To: "detached"})
			continue
		}
		if attached {
			continue
		}
		adds = append(adds, reconcile.Step{Name: "addSourceVolumeToSnapshotPolicy", Run: func(ctx context.Context) error {
			return b.AddSourceVolume(ctx, r.id, volID)
		}})
		changes = append(changes, reconcile.Change{Attribute: "sourceVolume." + vol.Name, From: "detached", To: "attached"})
	}
	plan.Steps = append(plan.Steps, adds...)
	plan.Steps = append(plan.Steps, removes...)
	plan.Changes = append(plan.Changes, changes...)
	return nil
}
