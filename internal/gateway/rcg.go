package gateway

import (
	"context"
	"strconv"

	"github.com/dell/goscaleio"
	siotypes "github.com/dell/goscaleio/types/v1"
)

// RCG fetches one replication consistency group.
func (c *Client) RCG(ctx context.Context, id string) (*ReplicationConsistencyGroup, error) {
	return call(ctx, c, "get replication consistency group "+id, func(s session) (*ReplicationConsistencyGroup, error) {
		found, err := s.sio.GetReplicationConsistencyGroupByID(id)
		if err != nil {
			return nil, err
		}
		var out ReplicationConsistencyGroup
		if err := convert(found, &out); err != nil {
			return nil, err
		}
		return &out, nil
	})
}

// RCGsByName lists replication consistency groups with the given name.
func (c *Client) RCGsByName(ctx context.Context, name string) ([]ReplicationConsistencyGroup, error) {
	return call(ctx, c, "list replication consistency groups", func(s session) ([]ReplicationConsistencyGroup, error) {
		all, err := s.sio.GetReplicationConsistencyGroups()
		if err != nil {
			return nil, err
		}
		return named(all, name, func(g ReplicationConsistencyGroup) string { return g.Name })
	})
}

// CreateRCG creates a replication consistency group and returns its id.
func (c *Client) CreateRCG(ctx context.Context, body RCGCreate) (string, error) {
	return call(ctx, c, "create replication consistency group "+body.Name, func(s session) (string, error) {
		var payload siotypes.ReplicationConsistencyGroupCreatePayload
		if err := convert(body, &payload); err != nil {
			return "", err
		}
		resp, err := s.sio.CreateReplicationConsistencyGroup(&payload)
		if err != nil {
			return "", err
		}
		return resp.ID, nil
	})
}

// group is the SDK handle for one RCG id.
func (s session) group(id string) *goscaleio.ReplicationConsistencyGroup {
	g := goscaleio.NewReplicationConsistencyGroup(s.sio)
	g.ReplicationConsistencyGroup = &siotypes.ReplicationConsistencyGroup{ID: id}
	return g
}

// RCGAction invokes a body-less action, e.g. failoverReplicationConsistencyGroup.
// Actions the SDK wraps go through it; the rest are posted to the instance.
func (c *Client) RCGAction(ctx context.Context, id, action string) error {
	var run func(g *goscaleio.ReplicationConsistencyGroup) error
	switch action {
	case "failoverReplicationConsistencyGroup":
		run = func(g *goscaleio.ReplicationConsistencyGroup) error { return g.ExecuteFailoverOnReplicationGroup() }
	case "switchoverReplicationConsistencyGroup":
		run = func(g *goscaleio.ReplicationConsistencyGroup) error { return g.ExecuteSwitchoverOnReplicationGroup(false) }
	case "restoreReplicationConsistencyGroup":
		run = func(g *goscaleio.ReplicationConsistencyGroup) error { return g.ExecuteRestoreOnReplicationGroup() }
	case "reverseReplicationConsistencyGroup":
		run = func(g *goscaleio.ReplicationConsistencyGroup) error { return g.ExecuteReverseOnReplicationGroup() }
	case "resumeReplicationConsistencyGroup":
		run = func(g *goscaleio.ReplicationConsistencyGroup) error { return g.ExecuteResumeOnReplicationGroup() }
	case "syncNowReplicationConsistencyGroup":
		run = func(g *goscaleio.ReplicationConsistencyGroup) error {
			_, err := g.ExecuteSyncOnReplicationGroup()
			return err
		}
	default:
		return c.Action(ctx, TypeRCG, id, action, nil)
	}
	return c.do(ctx, action+" "+id, func(s session) error {
		return run(s.group(id))
	})
}

// RenameRCG sets a new group name.
func (c *Client) RenameRCG(ctx context.Context, id, name string) error {
	return c.Action(ctx, TypeRCG, id, "renameReplicationConsistencyGroup", map[string]string{"newName": name})
}

// SetRCGRpo sets the recovery point objective in seconds.
func (c *Client) SetRCGRpo(ctx context.Context, id string, rpo int) error {
	return c.Action(ctx, TypeRCG, id, "ModifyReplicationConsistencyGroupRpo", map[string]string{"rpoInSeconds": strconv.Itoa(rpo)})
}

// SetRCGTargetAccessMode sets ReadOnly or NoAccess on the target volumes.
func (c *Client) SetRCGTargetAccessMode(ctx context.Context, id, mode string) error {
	return c.Action(ctx, TypeRCG, id, "modifyReplicationConsistencyGroupTargetVolumeAccessMode", map[string]string{
		"targetVolumeAccessMode": mode,
	})
}

// PauseRCG pauses replication with the given pause mode.
func (c *Client) PauseRCG(ctx context.Context, id, mode string) error {
	return c.Action(ctx, TypeRCG, id, "pauseReplicationConsistencyGroup", map[string]string{"pauseMode": mode})
}

// SnapshotRCG creates a consistent snapshot of the group's volumes.
func (c *Client) SnapshotRCG(ctx context.Context, id string) error {
	return c.Action(ctx, TypeRCG, id, "createReplicationConsistencyGroupSnapshots", map[string]string{"force": "false"})
}

// RemoveRCG deletes a group. The SDK's delete cannot force, so forced removal
// is posted to the instance.
func (c *Client) RemoveRCG(ctx context.Context, id string, force bool) error {
	if force {
		return c.Action(ctx, TypeRCG, id, "removeReplicationConsistencyGroup", map[string]string{"forceIgnoreConsistency": "true"})
	}
	return c.do(ctx, "remove replication consistency group "+id, func(s session) error {
		return s.group(id).Delete()
	})
}
