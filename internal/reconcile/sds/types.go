package sds

import (
	"context"

	"github.com/dokzlo13/pflexctl/internal/gateway"
	"github.com/dokzlo13/pflexctl/internal/reconcile"
	"github.com/dokzlo13/pflexctl/internal/reconcile/inventory"
)

// IP states.
const (
	IPPresent = "present-in-sds"
	IPAbsent  = "absent-in-sds"
)

// Params are the sds module parameters.
type Params struct {
	SdsName              *string `yaml:"sds_name"`
	SdsID                *string `yaml:"sds_id"`
	SdsNewName           *string `yaml:"sds_new_name"`
	ProtectionDomainName *string `yaml:"protection_domain_name"`
	ProtectionDomainID   *string `yaml:"protection_domain_id"`
	FaultSetName         *string `yaml:"fault_set_name"`
	FaultSetID           *string `yaml:"fault_set_id"`

	SdsIPList  []IP    `yaml:"sds_ip_list" validate:"dive"`
	SdsIPState *string `yaml:"sds_ip_state" validate:"omitempty,oneof=present-in-sds absent-in-sds"`

	RfcacheEnabled     *bool   `yaml:"rfcache_enabled"`
	RmcacheEnabled     *bool   `yaml:"rmcache_enabled"`
	RmcacheSize        *int    `yaml:"rmcache_size" validate:"omitempty,gte=128,lte=65536"` // MB
	PerformanceProfile *string `yaml:"performance_profile" validate:"omitempty,oneof=Compact HighPerformance"`

	State reconcile.State `yaml:"state" validate:"omitempty,oneof=present absent"`
}

// IP is one requested SDS address.
type IP struct {
	IP   string `yaml:"ip" validate:"required,ip"`
	Role string `yaml:"role" validate:"required,oneof=all sdsOnly sdcOnly"`
}

// Backend is the gateway surface the SDS reconciler uses.
type Backend interface {
	inventory.ProtectionDomains
	inventory.FaultSets

	Sds(ctx context.Context, id string) (*gateway.Sds, error)
	SdsByName(ctx context.Context, name string) ([]gateway.Sds, error)

	CreateSds(ctx context.Context, body gateway.SdsCreate) (string, error)
	RenameSds(ctx context.Context, id, name string) error
	SetSdsRfcache(ctx context.Context, id string, enabled bool) error
	SetSdsRmcache(ctx context.Context, id string, enabled bool) error
	SetSdsRmcacheSize(ctx context.Context, id string, sizeMB int) error
	SetSdsPerformanceProfile(ctx context.Context, id, profile string) error
	AddSdsIP(ctx context.Context, id string, ip gateway.SdsIP) error
	SetSdsIPRole(ctx context.Context, id, ip, role string) error
	RemoveSdsIP(ctx context.Context, id, ip string) error
	RemoveSds(ctx context.Context, id string) error
}

// Details is the SDS as reported in results.
type Details struct {
	*gateway.Sds
	RmcacheSizeInMB      int    `json:"rmcacheSizeInMb"`
	ProtectionDomainName string `json:"protectionDomainName,omitempty"`
	FaultSetName         string `json:"faultSetName,omitempty"`
}
