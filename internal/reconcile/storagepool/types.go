package storagepool

import (
	"context"

	"github.com/dokzlo13/pflexctl/internal/gateway"
	"github.com/dokzlo13/pflexctl/internal/reconcile"
	"github.com/dokzlo13/pflexctl/internal/reconcile/inventory"
)

// Params are the storagepool module parameters.
type Params struct {
	StoragePoolName      *string `yaml:"storage_pool_name"`
	StoragePoolID        *string `yaml:"storage_pool_id"`
	ProtectionDomainName *string `yaml:"protection_domain_name"`
	ProtectionDomainID   *string `yaml:"protection_domain_id"`
	StoragePoolNewName   *string `yaml:"storage_pool_new_name"`
	MediaType            *string `yaml:"media_type" validate:"omitempty,oneof=HDD SSD TRANSITIONAL"`

	UseRfcache                    *bool   `yaml:"use_rfcache"`
	UseRmcache                    *bool   `yaml:"use_rmcache"`
	RmcacheWriteHandlingMode      *string `yaml:"rmcache_write_handling_mode" validate:"omitempty,oneof=Cached Passthrough"`
	EnableZeroPadding             *bool   `yaml:"enable_zero_padding"`
	RepCapMaxRatio                *int    `yaml:"rep_cap_max_ratio" validate:"omitempty,gte=0,lte=100"`
	EnableRebalance               *bool   `yaml:"enable_rebalance"`
	EnableRebuild                 *bool   `yaml:"enable_rebuild"`
	EnableFragmentation           *bool   `yaml:"enable_fragmentation"`
	SparePercentage               *int    `yaml:"spare_percentage" validate:"omitempty,gte=0,lte=99"`
	ParallelRebuildRebalanceLimit *int    `yaml:"parallel_rebuild_rebalance_limit" validate:"omitempty,gte=1,lte=10"`

	PersistentChecksum *PersistentChecksum `yaml:"persistent_checksum"`

	ProtectedMaintenanceModeIOPriority *IOPriority `yaml:"protected_maintenance_mode_io_priority_policy"`
	VTreeMigrationIOPriority           *IOPriority `yaml:"vtree_migration_io_priority_policy"`
	RebalanceIOPriority                *IOPriority `yaml:"rebalance_io_priority_policy"`

	CapAlertThresholds *Thresholds `yaml:"cap_alert_thresholds"`

	State reconcile.State `yaml:"state" validate:"omitempty,oneof=present absent"`
}

// PersistentChecksum groups the persistent checksum settings.
type PersistentChecksum struct {
	Enable         *bool `yaml:"enable"`
	ValidateOnRead *bool `yaml:"validate_on_read"`
	BuilderLimit   *int  `yaml:"builder_limit" validate:"omitempty,gte=1024,lte=10240"` // KB/s
}

// IOPriority is one IO priority policy.
type IOPriority struct {
	Policy                 *string `yaml:"policy" validate:"omitempty,oneof=unlimited limitNumOfConcurrentIos favorAppIos"`
	ConcurrentIosPerDevice *int    `yaml:"concurrent_ios_per_device" validate:"omitempty,gte=1,lte=20"`
	BwLimitPerDevice       *int    `yaml:"bw_limit_per_device" validate:"omitempty,gte=1024"` // KB/s
}

// Thresholds are the capacity alert thresholds in percent.
type Thresholds struct {
	High     *int `yaml:"high_threshold" validate:"omitempty,gte=0,lte=100"`
	Critical *int `yaml:"critical_threshold" validate:"omitempty,gte=0,lte=100"`
}

// Backend is the gateway surface the storage pool reconciler uses.
type Backend interface {
	inventory.ProtectionDomains
	inventory.StoragePools

	CreateStoragePool(ctx context.Context, body gateway.StoragePoolCreate) (string, error)
	RenameStoragePool(ctx context.Context, id, name string) error
	SetStoragePoolMediaType(ctx context.Context, id, mediaType string) error
	SetStoragePoolRfcache(ctx context.Context, id string, enabled bool) error
	SetStoragePoolRmcache(ctx context.Context, id string, enabled bool) error
	SetStoragePoolRmcacheWriteMode(ctx context.Context, id, mode string) error
	SetStoragePoolZeroPadding(ctx context.Context, id string, enabled bool) error
	SetStoragePoolRepCapMaxRatio(ctx context.Context, id string, ratio int) error
	SetStoragePoolRebalance(ctx context.Context, id string, enabled bool) error
	SetStoragePoolRebuild(ctx context.Context, id string, enabled bool) error
	SetStoragePoolFragmentation(ctx context.Context, id string, enabled bool) error
	SetStoragePoolSparePercentage(ctx context.Context, id string, percent int) error
	SetStoragePoolParallelism(ctx context.Context, id string, limit int) error
	EnablePersistentChecksum(ctx context.Context, id string, validateOnRead *bool, builderLimitKb *int) error
	ModifyPersistentChecksum(ctx context.Context, id string, validateOnRead *bool, builderLimitKb *int) error
	DisablePersistentChecksum(ctx context.Context, id string) error
	SetIOPriorityPolicy(ctx context.Context, id, action string, policy gateway.IOPriorityPolicy) error
	SetCapacityAlertThresholds(ctx context.Context, id string, high, critical int) error
	RemoveStoragePool(ctx context.Context, id string) error
}

// Details is the storage pool as reported in results.
type Details struct {
	*gateway.StoragePool
	ProtectionDomainName string `json:"protectionDomainName,omitempty"`
}

var mediaTypes = map[string]string{
	"HDD":          "HDD",
	"SSD":          "SSD",
	"TRANSITIONAL": "Transitional",
}
