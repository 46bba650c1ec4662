package gateway

import (
	"context"
	"strconv"

	siotypes "github.com/dell/goscaleio/types/v1"
)

// SnapshotPolicy fetches one snapshot policy.
func (c *Client) SnapshotPolicy(ctx context.Context, id string) (*SnapshotPolicy, error) {
	return call(ctx, c, "get snapshot policy "+id, func(s session) (*SnapshotPolicy, error) {
		found, err := s.sio.GetSnapshotPolicy("", id)
		if err != nil {
			return nil, err
		}
		return one[SnapshotPolicy]("snapshot policy", id, found)
	})
}

// SnapshotPoliciesByName lists snapshot policies with the given name.
func (c *Client) SnapshotPoliciesByName(ctx context.Context, name string) ([]SnapshotPolicy, error) {
	return call(ctx, c, "list snapshot policies", func(s session) ([]SnapshotPolicy, error) {
		all, err := s.sio.GetSnapshotPolicy("", "")
		if err != nil {
			return nil, err
		}
		return named(all, name, func(p SnapshotPolicy) string { return p.Name })
	})
}

// SnapshotPolicySourceVolumes lists the volumes protected by a policy.
func (c *Client) SnapshotPolicySourceVolumes(ctx context.Context, id string) ([]Volume, error) {
	var vols []Volume
	if err := c.related(ctx, TypeSnapshotPolicy, id, "SourceVolume", &vols); err != nil {
		return nil, err
	}
	return vols, nil
}

// CreateSnapshotPolicy creates a policy and returns its id.
func (c *Client) CreateSnapshotPolicy(ctx context.Context, body SnapshotPolicyCreate) (string, error) {
	return call(ctx, c, "create snapshot policy "+body.Name, func(s session) (string, error) {
		var param siotypes.SnapshotPolicyCreateParam
		if err := convert(body, &param); err != nil {
			return "", err
		}
		return s.system.CreateSnapshotPolicy(&param)
	})
}

// RenameSnapshotPolicy sets a new policy name.
func (c *Client) RenameSnapshotPolicy(ctx context.Context, id, name string) error {
	return c.Action(ctx, TypeSnapshotPolicy, id, "renameSnapshotPolicy", map[string]string{"newName": name})
}

// ModifySnapshotPolicy changes cadence and retention together.
func (c *Client) ModifySnapshotPolicy(ctx context.Context, id string, cadenceMin int, retention []int) error {
	levels := make([]string, len(retention))
	for i, n := range retention {
		levels[i] = strconv.Itoa(n)
	}
	return c.do(ctx, "modify snapshot policy "+id, func(s session) error {
		var param siotypes.SnapshotPolicyModifyParam
		if err := convert(map[string]any{
			"autoSnapshotCreationCadenceInMin": strconv.Itoa(cadenceMin),
			"numOfRetainedSnapshotsPerLevel":   levels,
		}, &param); err != nil {
			return err
		}
		return s.system.ModifySnapshotPolicy(&param, id)
	})
}

// AddSourceVolume attaches a volume to a policy.
func (c *Client) AddSourceVolume(ctx context.Context, policyID, volumeID string) error {
	return c.do(ctx, "attach volume "+volumeID+" to snapshot policy "+policyID, func(s session) error {
		var param siotypes.AssignVolumeToSnapshotPolicyParam
		if err := convert(map[string]string{"sourceVolumeId": volumeID}, &param); err != nil {
			return err
		}
		return s.system.AssignVolumeToSnapshotPolicy(&param, policyID)
	})
}

// RemoveSourceVolume detaches a volume from a policy. removal is Remove or Detach and
// decides what happens to the volume's existing auto snapshots.
func (c *Client) RemoveSourceVolume(ctx context.Context, policyID, volumeID, removal string, detachLocked bool) error {
	return c.Action(ctx, TypeSnapshotPolicy, policyID, "removeSourceVolumeFromSnapshotPolicy", map[string]string{
		"sourceVolumeId":            volumeID,
		"autoSnapshotRemovalAction": removal,
		"detachLockedAutoSnapshots": strconv.FormatBool(detachLocked),
	})
}

// PauseSnapshotPolicy suspends automatic snapshots.
func (c *Client) PauseSnapshotPolicy(ctx context.Context, id string) error {
	return c.do(ctx, "pause snapshot policy "+id, func(s session) error {
		return s.system.PauseSnapshotPolicy(id)
	})
}

// ResumeSnapshotPolicy resumes automatic snapshots.
func (c *Client) ResumeSnapshotPolicy(ctx context.Context, id string) error {
	return c.do(ctx, "resume snapshot policy "+id, func(s session) error {
		return s.system.ResumeSnapshotPolicy(id)
	})
}

// RemoveSnapshotPolicy deletes a policy.
func (c *Client) RemoveSnapshotPolicy(ctx context.Context, id string) error {
	return c.do(ctx, "remove snapshot policy "+id, func(s session) error {
		return s.system.RemoveSnapshotPolicy(id)
	})
}
