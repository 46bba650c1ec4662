// Package rcg reconciles PowerFlex replication consistency groups.
package rcg

import (
	"context"
	"strconv"

	"github.com/dokzlo13/pflexctl/internal/errs"
	"github.com/dokzlo13/pflexctl/internal/gateway"
	"github.com/dokzlo13/pflexctl/internal/locate"
	"github.com/dokzlo13/pflexctl/internal/reconcile"
	"github.com/dokzlo13/pflexctl/internal/reconcile/inventory"
)

// Resource reconciles a single replication consistency group.
type Resource struct {
	backend Backend
	remote  RemoteConnector
	params  Params

	id      string
	current *gateway.ReplicationConsistencyGroup
	details *Details
}

// NewResource creates a new RCG resource. remote may be nil when no peer is needed.
func NewResource(backend Backend, remote RemoteConnector, params Params) *Resource {
	return &Resource{backend: backend, remote: remote, params: params}
}

func (r *Resource) ref() locate.Ref {
	return locate.NewRef(r.params.RcgName, r.params.RcgID, "rcg_name", "rcg_id")
}

func (r *Resource) pdRef() locate.Ref {
	return locate.NewRef(r.params.ProtectionDomainName, r.params.ProtectionDomainID, "protection_domain_name", "protection_domain_id")
}

func remotePDRef(peer *RemotePeer) locate.Ref {
	return locate.NewRef(peer.ProtectionDomainName, peer.ProtectionDomainID,
		"remote_peer.protection_domain_name", "remote_peer.protection_domain_id")
}

// Key implements reconcile.Resource.
func (r *Resource) Key() reconcile.ResourceKey {
	id := r.id
	if id == "" {
		id = r.ref().Name + r.ref().ID
	}
	return reconcile.ResourceKey{Kind: reconcile.KindRCG, ID: id}
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
	if p.PauseMode != nil && (p.RcgState == nil || *p.RcgState != "pause") {
		return errs.WithHint(
			errs.Newf(errs.ErrInvalidParameter, "pause_mode is only valid with rcg_state pause"),
			"set rcg_state to pause or remove pause_mode")
	}
	if peer := p.RemotePeer; peer != nil {
		named := peer.Gateway != nil && *peer.Gateway != ""
		inline := peer.Hostname != nil && *peer.Hostname != ""
		if named == inline {
			return errs.Newf(errs.ErrAmbiguousIdentifier, "remote_peer needs exactly one of gateway or hostname")
		}
		if err := remotePDRef(peer).Validate(false); err != nil {
			return err
		}
	}
	return nil
}

func lookup(b Backend) locate.Lookup[gateway.ReplicationConsistencyGroup] {
	return locate.Lookup[gateway.ReplicationConsistencyGroup]{
		Kind:   "replication consistency group",
		ByID:   b.RCG,
		ByName: b.RCGsByName,
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
	group, err := locate.Locate(ctx, lookup(r.backend), ref, nil)
	if err != nil {
		return err
	}
	r.current = group
	r.details = nil
	if group == nil {
		return nil
	}
	r.id = group.ID

	details := &Details{ReplicationConsistencyGroup: group}
	pd, err := reconcile.Related(ctx, r.backend.ProtectionDomain, "protection domain", group.ProtectionDomainID)
	if err != nil {
		return err
	}
	if pd != nil {
		details.ProtectionDomainName = pd.Name
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
			force := p.Force
			plan.Add("removeReplicationConsistencyGroup", func(ctx context.Context) error {
				return r.backend.RemoveRCG(ctx, r.id, force)
			}, reconcile.Change{Attribute: "state", From: reconcile.StatePresent, To: reconcile.StateAbsent})
		}
		return plan, nil
	}

	pd, err := inventory.ProtectionDomain(ctx, r.backend, r.pdRef())
	if err != nil {
		return nil, err
	}

	base := r.current
	if base == nil {
		if base, err = r.planCreate(ctx, plan, pd); err != nil {
			return nil, err
		}
	} else if err := r.checkImmutable(ctx, base, pd); err != nil {
		return nil, err
	}

	if err := r.planModify(plan, base); err != nil {
		return nil, err
	}
	return plan, nil
}

// peer connects to the remote system and resolves its protection domain.
func (r *Resource) peer(ctx context.Context) (*gateway.System, *gateway.ProtectionDomain, error) {
	peer := r.params.RemotePeer
	if r.remote == nil {
		return nil, nil, errs.Newf(errs.ErrConnection, "no remote gateway connector configured")
	}
	remote, err := r.remote(ctx, *peer)
	if err != nil {
		return nil, nil, err
	}
	sys, err := remote.System(ctx)
	if err != nil {
		return nil, nil, err
	}
	pd, err := locate.Require(ctx, inventory.ProtectionDomainLookup(remote), remotePDRef(peer), nil)
	if err != nil {
		return nil, nil, err
	}
	return sys, pd, nil
}

func (r *Resource) planCreate(ctx context.Context, plan *reconcile.Plan, pd *gateway.ProtectionDomain) (*gateway.ReplicationConsistencyGroup, error) {
	p := r.params
	name := r.ref().Name
	if name == "" {
		return nil, errs.Newf(errs.ErrNotFound, "replication consistency group with %s not found", r.ref())
	}
	if p.NewRcgName != nil {
		return nil, errs.Newf(errs.ErrInvalidParameter, "new_rcg_name is not allowed when creating a replication consistency group")
	}
	if p.Rpo == nil {
		return nil, errs.Newf(errs.ErrInvalidParameter, "rpo is required to create replication consistency group %q", name)
	}
	if pd == nil {
		return nil, errs.WithHint(
			errs.Newf(errs.ErrInvalidParameter, "a protection domain is required to create replication consistency group %q", name),
			"specify protection_domain_name or protection_domain_id")
	}
	if p.RemotePeer == nil || !remotePDRef(p.RemotePeer).Given() {
		return nil, errs.WithHint(
			errs.Newf(errs.ErrInvalidParameter, "a remote peer is required to create replication consistency group %q", name),
			"specify remote_peer with its protection_domain_name or protection_domain_id")
	}
	sys, remotePD, err := r.peer(ctx)
	if err != nil {
		return nil, err
	}

	body := gateway.RCGCreate{
		Name:                     name,
		RpoInSeconds:             strconv.Itoa(*p.Rpo),
		ProtectionDomainID:       pd.ID,
		RemoteProtectionDomainID: remotePD.ID,
		DestinationSystemID:      sys.ID,
	}
	plan.Add("createReplicationConsistencyGroup", func(ctx context.Context) error {
		id, err := r.backend.CreateRCG(ctx, body)
		if err != nil {
			return err
		}
		r.id = id
		return nil
	}, reconcile.Change{Attribute: "state", From: reconcile.StateAbsent, To: reconcile.StatePresent})

	// The state a new group starts in.
	return &gateway.ReplicationConsistencyGroup{
		Name:                     name,
		ProtectionDomainID:       pd.ID,
		RemoteProtectionDomainID: remotePD.ID,
		DestinationSystemID:      sys.ID,
		RpoInSeconds:             *p.Rpo,
		TargetVolumeAccessMode:   "NoAccess",
		LocalActivityState:       "Active",
		CurrConsistMode:          "Consistent",
		PauseMode:                pauseNone,
		FreezeState:              "Unfrozen",
		FailoverType:             failoverNone,
	}, nil
}

func (r *Resource) checkImmutable(ctx context.Context, cur *gateway.ReplicationConsistencyGroup, pd *gateway.ProtectionDomain) error {
	if pd != nil && pd.ID != cur.ProtectionDomainID {
		return errs.Newf(errs.ErrInvalidParameter,
			"replication consistency group %q belongs to protection domain %s, not %s", cur.Name, cur.ProtectionDomainID, pd.ID)
	}
	peer := r.params.RemotePeer
	if peer == nil || !remotePDRef(peer).Given() {
		return nil
	}
	_, remotePD, err := r.peer(ctx)
	if err != nil {
		return err
	}
	if remotePD.ID != cur.RemoteProtectionDomainID {
		return errs.Newf(errs.ErrInvalidParameter,
			"replication consistency group %q replicates to protection domain %s, not %s",
			cur.Name, cur.RemoteProtectionDomainID, remotePD.ID)
	}
	return nil
}

func consistent(mode string) bool {
	return mode == "Consistent" || mode == "ConsistentPending"
}

// planModify appends rename, RPO, target access mode, activity mode, consistency,
// the requested state action and the snapshot.
func (r *Resource) planModify(plan *reconcile.Plan, base *gateway.ReplicationConsistencyGroup) error {
	p := r.params
	b := r.backend

	name, rename, err := reconcile.Rename(p.NewRcgName, base.Name)
	if err != nil {
		return err
	}
	if rename {
		plan.Add("renameReplicationConsistencyGroup", func(ctx context.Context) error {
			return b.RenameRCG(ctx, r.id, name)
		}, reconcile.Change{Attribute: "name", From: base.Name, To: name})
	}

	if p.Rpo != nil && *p.Rpo != base.RpoInSeconds {
		rpo := *p.Rpo
		plan.Add("ModifyReplicationConsistencyGroupRpo", func(ctx context.Context) error {
			return b.SetRCGRpo(ctx, r.id, rpo)
		}, reconcile.Change{Attribute: "rpoInSeconds", From: base.RpoInSeconds, To: rpo})
	}

	if m := p.TargetVolumeAccessMode; m != nil && *m != base.TargetVolumeAccessMode {
		mode := *m
		plan.Add("modifyReplicationConsistencyGroupTargetVolumeAccessMode", func(ctx context.Context) error {
			return b.SetRCGTargetAccessMode(ctx, r.id, mode)
		}, reconcile.Change{Attribute: "targetVolumeAccessMode", From: base.TargetVolumeAccessMode, To: mode})
	}

	if m := p.ActivityMode; m != nil && *m != base.LocalActivityState {
		action := "terminateReplicationConsistencyGroup"
		if *m == "Active" {
			action = "activateReplicationConsistencyGroup"
		}
		r.action(plan, action, reconcile.Change{Attribute: "localActivityState", From: base.LocalActivityState, To: *m})
	}

	if c := p.IsConsistent; c != nil && *c != consistent(base.CurrConsistMode) {
		action, to := "setReplicationConsistencyGroupInconsistent", "Inconsistent"
		if *c {
			action, to = "setReplicationConsistencyGroupConsistent", "Consistent"
		}
		r.action(plan, action, reconcile.Change{Attribute: "currConsistMode", From: base.CurrConsistMode, To: to})
	}

	if p.RcgState != nil {
		r.planState(plan, base, *p.RcgState)
	}

	if p.CreateSnapshot {
		plan.Add("createReplicationConsistencyGroupSnapshots", func(ctx context.Context) error {
			return b.SnapshotRCG(ctx, r.id)
		}, reconcile.Change{Attribute: "snapshot", To: "created"})
	}
	return nil
}

func (r *Resource) action(plan *reconcile.Plan, action string, change reconcile.Change) {
	plan.Add(action, func(ctx context.Context) error {
		return r.backend.RCGAction(ctx, r.id, action)
	}, change)
}

// planState invokes the requested replication action when the group is in a state
// that accepts it. Otherwise it is already where it was asked to be.
func (r *Resource) planState(plan *reconcile.Plan, base *gateway.ReplicationConsistencyGroup, state string) {
	failedOver := base.FailoverType != failoverNone && base.FailoverType != ""
	paused := base.PauseMode != pauseNone && base.PauseMode != ""

	switch state {
	case "failover", "switchover":
		if !failedOver {
			r.action(plan, state+"ReplicationConsistencyGroup",
				reconcile.Change{Attribute: "failoverType", From: base.FailoverType, To: state})
		}
	case "reverse", "restore":
		if failedOver {
			r.action(plan, state+"ReplicationConsistencyGroup",
				reconcile.Change{Attribute: "failoverType", From: base.FailoverType, To: state})
		}
	case "sync":
		if !failedOver {
			r.action(plan, "syncNowReplicationConsistencyGroup", reconcile.Change{Attribute: "sync", To: "requested"})
		}
	case "pause":
		if !paused {
			mode := "StopDataTransfer"
			if r.params.PauseMode != nil {
				mode = *r.params.PauseMode
			}
			plan.Add("pauseReplicationConsistencyGroup", func(ctx context.Context) error {
				return r.backend.PauseRCG(ctx, r.id, mode)
			}, reconcile.Change{Attribute: "pauseMode", From: base.PauseMode, To: mode})
		}
	case "resume":
		if paused {
			r.action(plan, "resumeReplicationConsistencyGroup",
				reconcile.Change{Attribute: "pauseMode", From: base.PauseMode, To: pauseNone})
		}
	case "freeze":
		if base.FreezeState != frozen {
			r.action(plan, "freezeApplyReplicationConsistencyGroup",
				reconcile.Change{Attribute: "freezeState", From: base.FreezeState, To: frozen})
		}
	case "unfreeze":
		if base.FreezeState == frozen {
			r.action(plan, "unfreezeApplyReplicationConsistencyGroup",
				reconcile.Change{Attribute: "freezeState", From: base.FreezeState, To: "Unfrozen"})
		}
	}
}
