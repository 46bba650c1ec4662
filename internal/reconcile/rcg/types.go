package rcg

import (
	"context"

	"github.com/dokzlo13/pflexctl/internal/config"
	"github.com/dokzlo13/pflexctl/internal/gateway"
	"github.com/dokzlo13/pflexctl/internal/reconcile"
	"github.com/dokzlo13/pflexctl/internal/reconcile/inventory"
)

// Params are the replication_consistency_group module parameters.
type Params struct {
	RcgName              *string     `yaml:"rcg_name"`
	RcgID                *string     `yaml:"rcg_id"`
	NewRcgName           *string     `yaml:"new_rcg_name"`
	ProtectionDomainName *string     `yaml:"protection_domain_name"`
	ProtectionDomainID   *string     `yaml:"protection_domain_id"`
	RemotePeer           *RemotePeer `yaml:"remote_peer"`

	Rpo                    *int    `yaml:"rpo" validate:"omitempty,gte=15,lte=3600"` // seconds
	TargetVolumeAccessMode *string `yaml:"target_volume_access_mode" validate:"omitempty,oneof=ReadOnly NoAccess"`
	ActivityMode           *string `yaml:"activity_mode" validate:"omitempty,oneof=Active Inactive"`
	IsConsistent           *bool   `yaml:"is_consistent"`

	RcgState  *string `yaml:"rcg_state" validate:"omitempty,oneof=failover reverse restore switchover sync pause resume freeze unfreeze"`
	PauseMode *string `yaml:"pause_mode" validate:"omitempty,oneof=StopDataTransfer OnlyTrackChanges"`

	Force          bool `yaml:"force"`
	CreateSnapshot bool `yaml:"create_snapshot"`

	State reconcile.State `yaml:"state" validate:"omitempty,oneof=present absent"`
}

// RemotePeer identifies the replication peer system: either a gateway named in
// the configuration or inline connection settings.
type RemotePeer struct {
	Gateway           *string `yaml:"gateway"`
	config.Connection `yaml:",inline"`

	ProtectionDomainName *string `yaml:"protection_domain_name"`
	ProtectionDomainID   *string `yaml:"protection_domain_id"`
}

// RemoteBackend is the gateway surface used on the peer system.
type RemoteBackend interface {
	inventory.ProtectionDomains
	System(ctx context.Context) (*gateway.System, error)
}

// RemoteConnector opens a connection to the peer system.
type RemoteConnector func(ctx context.Context, peer RemotePeer) (RemoteBackend, error)

// Backend is the gateway surface the RCG reconciler uses.
type Backend interface {
	inventory.ProtectionDomains

	RCG(ctx context.Context, id string) (*gateway.ReplicationConsistencyGroup, error)
	RCGsByName(ctx context.Context, name string) ([]gateway.ReplicationConsistencyGroup, error)

	CreateRCG(ctx context.Context, body gateway.RCGCreate) (string, error)
	RCGAction(ctx context.Context, id, action string) error
	RenameRCG(ctx context.Context, id, name string) error
	SetRCGRpo(ctx context.Context, id string, rpo int) error
	SetRCGTargetAccessMode(ctx context.Context, id, mode string) error
	PauseRCG(ctx context.Context, id, mode string) error
	SnapshotRCG(ctx context.Context, id string) error
	RemoveRCG(ctx context.Context, id string, force bool) error
}

// Details is the RCG as reported in results.
type Details struct {
	*gateway.ReplicationConsistencyGroup
	ProtectionDomainName string `json:"protectionDomainName,omitempty"`
}

// Backend field values.
const (
	failoverNone = "None"
	pauseNone    = "None"
	frozen       = "Frozen"
)
