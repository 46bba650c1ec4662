package volume

import (
	"context"

	"github.com/dokzlo13/pflexctl/internal/gateway"
	"github.com/dokzlo13/pflexctl/internal/reconcile"
	"github.com/dokzlo13/pflexctl/internal/reconcile/inventory"
)

// Params are the volume module parameters.
type Params struct {
	VolName              *string `yaml:"vol_name"`
	VolID                *string `yaml:"vol_id"`
	StoragePoolName      *string `yaml:"storage_pool_name"`
	StoragePoolID        *string `yaml:"storage_pool_id"`
	ProtectionDomainName *string `yaml:"protection_domain_name"`
	ProtectionDomainID   *string `yaml:"protection_domain_id"`

	VolType         *string `yaml:"vol_type" validate:"omitempty,oneof=THICK_PROVISIONED THIN_PROVISIONED"`
	CompressionType *string `yaml:"compression_type" validate:"omitempty,oneof=NORMAL NONE"`
	UseRmcache      *bool   `yaml:"use_rmcache"`

	SnapshotPolicyName *string `yaml:"snapshot_policy_name"`
	SnapshotPolicyID   *string `yaml:"snapshot_policy_id"`
	AutoSnapRemoveType *string `yaml:"auto_snap_remove_type" validate:"omitempty,oneof=remove detach"`

	Size    *int64 `yaml:"size"`
	CapUnit string `yaml:"cap_unit" validate:"omitempty,oneof=GB TB"`

	VolNewName            *string    `yaml:"vol_new_name"`
	AllowMultipleMappings bool       `yaml:"allow_multiple_mappings"`
	Sdc                   []SdcParam `yaml:"sdc" validate:"dive"`
	SdcState              *string    `yaml:"sdc_state" validate:"omitempty,oneof=mapped unmapped"`
	DeleteSnapshots       bool       `yaml:"delete_snapshots"`

	State reconcile.State `yaml:"state" validate:"omitempty,oneof=present absent"`
}

// SdcParam is one requested SDC mapping.
type SdcParam struct {
	SdcID          *string `yaml:"sdc_id"`
	SdcIP          *string `yaml:"sdc_ip"`
	SdcName        *string `yaml:"sdc_name"`
	AccessMode     *string `yaml:"access_mode" validate:"omitempty,oneof=READ_WRITE READ_ONLY NO_ACCESS"`
	BandwidthLimit *int    `yaml:"bandwidth_limit" validate:"omitempty,gte=0"` // MB/s, 0 = unlimited
	IopsLimit      *int    `yaml:"iops_limit" validate:"omitempty,gte=0"`      // 0 = unlimited
}

func (p SdcParam) ref() inventory.SdcRef {
	return inventory.SdcRef{ID: p.SdcID, IP: p.SdcIP, Name: p.SdcName}
}

// Backend is the gateway surface the volume reconciler uses.
type Backend interface {
	inventory.ProtectionDomains
	inventory.StoragePools
	inventory.SnapshotPolicies
	inventory.Sdcs

	Volume(ctx context.Context, id string) (*gateway.Volume, error)
	VolumesByName(ctx context.Context, name string) ([]gateway.Volume, error)

	CreateVolume(ctx context.Context, body gateway.VolumeCreate) (string, error)
	RenameVolume(ctx context.Context, id, name string) error
	ResizeVolume(ctx context.Context, id string, sizeGB int64) error
	SetVolumeCompression(ctx context.Context, id, method string) error
	SetVolumeRmcache(ctx context.Context, id string, enabled bool) error
	MapVolume(ctx context.Context, id, sdcID, accessMode string, allowMultiple bool) error
	SetMappingAccessMode(ctx context.Context, id, sdcID, accessMode string) error
	SetMappingLimits(ctx context.Context, id, sdcID string, bandwidthKbps, iops int) error
	UnmapVolume(ctx context.Context, id, sdcID string) error
	RemoveVolume(ctx context.Context, id, mode string) error

	AddSourceVolume(ctx context.Context, policyID, volumeID string) error
	RemoveSourceVolume(ctx context.Context, policyID, volumeID, removal string, detachLocked bool) error
}

// Details is the volume as reported in results.
type Details struct {
	*gateway.Volume
	SizeInGB           int64  `json:"sizeInGB"`
	StoragePoolName    string `json:"storagePoolName,omitempty"`
	ProtectionDomainID string `json:"protectionDomainId,omitempty"`
	SnapshotPolicyName string `json:"snapshotPolicyName,omitempty"`
}

var volumeTypes = map[string]string{
	"THICK_PROVISIONED": "ThickProvisioned",
	"THIN_PROVISIONED":  "ThinProvisioned",
}

var compressionMethods = map[string]string{
	"NORMAL": "Normal",
	"NONE":   "None",
}

var accessModes = map[string]string{
	"READ_WRITE": "ReadWrite",
	"READ_ONLY":  "ReadOnly",
	"NO_ACCESS":  "NoAccess",
}

var removalActions = map[string]string{
	"remove": "Remove",
	"detach": "Detach",
}
