package snapshotpolicy

import (
	"context"

	"github.com/dokzlo13/pflexctl/internal/gateway"
	"github.com/dokzlo13/pflexctl/internal/reconcile"
	"github.com/dokzlo13/pflexctl/internal/reconcile/inventory"
)

// Params are the snapshot_policy module parameters.
type Params struct {
	SnapshotPolicyName *string `yaml:"snapshot_policy_name"`
	SnapshotPolicyID   *string `yaml:"snapshot_policy_id"`
	NewName            *string `yaml:"new_name"`

	AccessMode      *string `yaml:"access_mode" validate:"omitempty,oneof=READ_WRITE READ_ONLY"`
	SecureSnapshots *bool   `yaml:"secure_snapshots"`

	Cadence   *Cadence `yaml:"auto_snapshot_creation_cadence"`
	Retention []int    `yaml:"num_of_retained_snapshots_per_level" validate:"omitempty,min=1,max=6,dive,gte=1"`

	SourceVolumes []SourceVolume `yaml:"source_volume" validate:"dive"`
	Pause         *bool          `yaml:"pause"`

	State reconcile.State `yaml:"state" validate:"omitempty,oneof=present absent"`
}

// Cadence is the interval between automatic snapshots.
type Cadence struct {
	Time int    `yaml:"time" validate:"gte=1"`
	Unit string `yaml:"unit" validate:"omitempty,oneof=Minute Hour Day Week"`
}

// Minutes converts the cadence to minutes. The unit defaults to Minute.
func (c Cadence) Minutes() int {
	return c.Time * unitMinutes[c.Unit]
}

var unitMinutes = map[string]int{
	"":       1,
	"Minute": 1,
	"Hour":   60,
	"Day":    1440,
	"Week":   10080,
}

// SourceVolume is one requested policy member.
type SourceVolume struct {
	ID                        *string         `yaml:"id"`
	Name                      *string         `yaml:"name"`
	AutoSnapRemovalAction     *string         `yaml:"auto_snap_removal_action" validate:"omitempty,oneof=Remove Detach"`
	DetachLockedAutoSnapshots bool            `yaml:"detach_locked_auto_snapshots"`
	State                     reconcile.State `yaml:"state" validate:"omitempty,oneof=present absent"`
}

// Backend is the gateway surface the snapshot policy reconciler uses.
type Backend interface {
	inventory.SnapshotPolicies

	SnapshotPolicySourceVolumes(ctx context.Context, id string) ([]gateway.Volume, error)
	Volume(ctx context.Context, id string) (*gateway.Volume, error)
	VolumesByName(ctx context.Context, name string) ([]gateway.Volume, error)

	CreateSnapshotPolicy(ctx context.Context, body gateway.SnapshotPolicyCreate) (string, error)
	RenameSnapshotPolicy(ctx context.Context, id, name string) error
	ModifySnapshotPolicy(ctx context.Context, id string, cadenceMin int, retention []int) error
	AddSourceVolume(ctx context.Context, policyID, volumeID string) error
	RemoveSourceVolume(ctx context.Context, policyID, volumeID, removal string, detachLocked bool) error
	PauseSnapshotPolicy(ctx context.Context, id string) error
	ResumeSnapshotPolicy(ctx context.Context, id string) error
	RemoveSnapshotPolicy(ctx context.Context, id string) error
}

// VolumeRef names a source volume in results.
type VolumeRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Details is the snapshot policy as reported in results.
type Details struct {
	*gateway.SnapshotPolicy
	SourceVolumes []VolumeRef `json:"sourceVolumes"`
}

var accessModes = map[string]string{
	"READ_WRITE": "ReadWrite",
	"READ_ONLY":  "ReadOnly",
}
