package gateway

// Instance type names as used in /api/types/<T>.
const (
	TypeSystem           = "System"
	TypeProtectionDomain = "ProtectionDomain"
	TypeStoragePool      = "StoragePool"
	TypeVolume           = "Volume"
	TypeSdc              = "Sdc"
	TypeSds              = "Sds"
	TypeSnapshotPolicy   = "SnapshotPolicy"
	TypeDevice           = "Device"
	TypeRCG              = "ReplicationConsistencyGroup"
	TypeReplicationPair  = "ReplicationPair"
	TypeFaultSet         = "FaultSet"
	TypeHost             = "Host"
	TypeSdt              = "Sdt"
)

// Manager API collections under /Api/V1.
const (
	CollectionDeployment         = "Deployment"
	CollectionManagedDevice      = "ManagedDevice"
	CollectionServiceTemplate    = "ServiceTemplate"
	CollectionFirmwareRepository = "FirmwareRepository"
)

// System is the cluster record.
type System struct {
	ID                string `json:"id"`
	Name              string `json:"name,omitempty"`
	SystemVersionName string `json:"systemVersionName,omitempty"`
	MdmClusterState   string `json:"mdmClusterState,omitempty"`
}

// ProtectionDomain groups SDSs and storage pools.
type ProtectionDomain struct {
	ID                    string `json:"id"`
	Name                  string `json:"name"`
	SystemID              string `json:"systemId,omitempty"`
	ProtectionDomainState string `json:"protectionDomainState,omitempty"`
}

// StoragePool is a pool of capacity inside a protection domain.
type StoragePool struct {
	ID                 string `json:"id"`
	Name               string `json:"name"`
	ProtectionDomainID string `json:"protectionDomainId"`
	MediaType          string `json:"mediaType"`

	UseRfcache               bool   `json:"useRfcache"`
	UseRmcache               bool   `json:"useRmcache"`
	RmcacheWriteHandlingMode string `json:"rmcacheWriteHandlingMode,omitempty"`
	ZeroPaddingEnabled       bool   `json:"zeroPaddingEnabled"`
	ReplicationCapMaxRatio   *int   `json:"replicationCapacityMaxRatio,omitempty"`
	RebalanceEnabled         bool   `json:"rebalanceEnabled"`
	RebuildEnabled           bool   `json:"rebuildEnabled"`
	FragmentationEnabled     bool   `json:"fragmentationEnabled"`
	SparePercentage          int    `json:"sparePercentage"`
	ParallelRebuildRebalance int    `json:"numOfParallelRebuildRebalanceJobsPerDevice"`

	PersistentChecksumEnabled        bool `json:"persistentChecksumEnabled"`
	PersistentChecksumValidateOnRead bool `json:"persistentChecksumValidateOnRead"`
	PersistentChecksumBuilderLimitKb int  `json:"persistentChecksumBuilderLimitKb"`

	ProtectedMaintenanceModeIoPriorityPolicy           string `json:"protectedMaintenanceModeIoPriorityPolicy,omitempty"`
	ProtectedMaintenanceModeIoPriorityConcurrentIos    int    `json:"protectedMaintenanceModeIoPriorityNumOfConcurrentIosPerDevice"`
	ProtectedMaintenanceModeIoPriorityBwLimitPerDevice int    `json:"protectedMaintenanceModeIoPriorityBwLimitPerDeviceInKbps"`
	VTreeMigrationIoPriorityPolicy                     string `json:"vtreeMigrationIoPriorityPolicy,omitempty"`
	VTreeMigrationIoPriorityConcurrentIos              int    `json:"vtreeMigrationIoPriorityNumOfConcurrentIosPerDevice"`
	VTreeMigrationIoPriorityBwLimitPerDevice           int    `json:"vtreeMigrationIoPriorityBwLimitPerDeviceInKbps"`
	RebalanceIoPriorityPolicy                          string `json:"rebalanceIoPriorityPolicy,omitempty"`
	RebalanceIoPriorityConcurrentIos                   int    `json:"rebalanceIoPriorityNumOfConcurrentIosPerDevice"`
	RebalanceIoPriorityBwLimitPerDevice                int    `json:"rebalanceIoPriorityBwLimitPerDeviceInKbps"`

	CapacityAlertHighThreshold     int `json:"capacityAlertHighThreshold"`
	CapacityAlertCriticalThreshold int `json:"capacityAlertCriticalThreshold"`
}

// MappedSdc is one SDC a volume is exported to.
type MappedSdc struct {
	SdcID         string `json:"sdcId"`
	SdcIP         string `json:"sdcIp,omitempty"`
	SdcName       string `json:"sdcName,omitempty"`
	AccessMode    string `json:"accessMode,omitempty"`
	LimitIops     int    `json:"limitIops"`
	LimitBwInMbps int    `json:"limitBwInMbps"`
}

// Volume is a block volume.
type Volume struct {
	ID                string      `json:"id"`
	Name              string      `json:"name"`
	SizeInKb          int64       `json:"sizeInKb"`
	VolumeType        string      `json:"volumeType"`
	StoragePoolID     string      `json:"storagePoolId"`
	VTreeID           string      `json:"vtreeId,omitempty"`
	AncestorVolumeID  string      `json:"ancestorVolumeId,omitempty"`
	CompressionMethod string      `json:"compressionMethod,omitempty"`
	UseRmcache        bool        `json:"useRmcache"`
	SnapshotPolicyID  string      `json:"snplIdOfSourceVolume,omitempty"`
	AccessModeLimit   string      `json:"accessModeLimit,omitempty"`
	MappedSdcInfo     []MappedSdc `json:"mappedSdcInfo"`
	CreationTime      int64       `json:"creationTime,omitempty"`
	ReplicationState  string      `json:"volumeReplicationState,omitempty"`
}

// SizeInGB returns the volume size in whole gigabytes.
func (v *Volume) SizeInGB() int64 {
	return v.SizeInKb / (1024 * 1024)
}

// Sdc is a data client.
type Sdc struct {
	ID       string `json:"id"`
	Name     string `json:"name,omitempty"`
	SdcIP    string `json:"sdcIp"`
	SdcGUID  string `json:"sdcGuid,omitempty"`
	OSType   string `json:"osType,omitempty"`
	SdcState string `json:"mdmConnectionState,omitempty"`
}

// SdsIP is one address of an SDS.
type SdsIP struct {
	IP   string `json:"ip"`
	Role string `json:"role"`
}

// Sds is a data server.
type Sds struct {
	ID                 string  `json:"id"`
	Name               string  `json:"name"`
	ProtectionDomainID string  `json:"protectionDomainId"`
	FaultSetID         string  `json:"faultSetId,omitempty"`
	IPList             []SdsIP `json:"ipList"`
	Port               int     `json:"port,omitempty"`
	SdsState           string  `json:"sdsState,omitempty"`
	RfcacheEnabled     bool    `json:"rfcacheEnabled"`
	RmcacheEnabled     bool    `json:"rmcacheEnabled"`
	RmcacheSizeInKb    int     `json:"rmcacheSizeInKb"`
	PerfProfile        string  `json:"perfProfile,omitempty"`
}

// RmcacheSizeInMB returns the RAM read cache size in megabytes.
func (s *Sds) RmcacheSizeInMB() int {
	return s.RmcacheSizeInKb / 1024
}

// SnapshotPolicy drives automatic snapshots of its source volumes.
type SnapshotPolicy struct {
	ID                             string `json:"id"`
	Name                           string `json:"name"`
	AutoSnapshotCreationCadenceMin int    `json:"autoSnapshotCreationCadenceInMin"`
	NumOfRetainedSnapshotsPerLevel []int  `json:"numOfRetainedSnapshotsPerLevel"`
	SnapshotAccessMode             string `json:"snapshotAccessMode,omitempty"`
	SecureSnapshots                bool   `json:"secureSnapshots"`
	SnapshotPolicyState            string `json:"snapshotPolicyState"`
	NumOfSourceVolumes             int    `json:"numOfSourceVolumes"`
}

// Paused reports whether automatic snapshots are suspended.
func (p *SnapshotPolicy) Paused() bool {
	return p.SnapshotPolicyState == "Paused"
}

// ReplicationConsistencyGroup replicates volumes to a peer system.
type ReplicationConsistencyGroup struct {
	ID                       string `json:"id"`
	Name                     string `json:"name"`
	ProtectionDomainID       string `json:"protectionDomainId"`
	RemoteProtectionDomainID string `json:"remoteProtectionDomainId"`
	DestinationSystemID      string `json:"destinationSystemId,omitempty"`
	RemoteID                 string `json:"remoteId,omitempty"`
	RpoInSeconds             int    `json:"rpoInSeconds"`
	TargetVolumeAccessMode   string `json:"targetVolumeAccessMode"`
	LocalActivityState       string `json:"localActivityState"`
	CurrConsistMode          string `json:"currConsistMode"`
	PauseMode                string `json:"pauseMode"`
	FreezeState              string `json:"freezeState"`
	FailoverType             string `json:"failoverType"`
	AbstractState            string `json:"abstractState,omitempty"`
}

// ReplicationPair links a local and a remote volume inside an RCG.
type ReplicationPair struct {
	ID                            string `json:"id"`
	Name                          string `json:"name,omitempty"`
	LocalVolumeID                 string `json:"localVolumeId"`
	RemoteVolumeID                string `json:"remoteVolumeId"`
	ReplicationConsistencyGroupID string `json:"replicationConsistencyGroupId"`
}

// RCGCreate is the body for a new replication consistency group.
type RCGCreate struct {
	Name                     string `json:"name"`
	RpoInSeconds             string `json:"rpoInSeconds"`
	ProtectionDomainID       string `json:"protectionDomainId"`
	RemoteProtectionDomainID string `json:"remoteProtectionDomainId"`
	DestinationSystemID      string `json:"destinationSystemId"`
}

// VolumeCreate is the body for a new volume.
type VolumeCreate struct {
	Name              string `json:"name"`
	VolumeSizeInKb    string `json:"volumeSizeInKb"`
	StoragePoolID     string `json:"storagePoolId"`
	VolumeType        string `json:"volumeType,omitempty"`
	CompressionMethod string `json:"compressionMethod,omitempty"`
	UseRmcache        string `json:"useRmcache,omitempty"`
}

// StoragePoolCreate is the body for a new storage pool.
type StoragePoolCreate struct {
	Name               string `json:"name"`
	ProtectionDomainID string `json:"protectionDomainId"`
	MediaType          string `json:"mediaType"`
}

// SdsCreate is the body for a new SDS.
type SdsCreate struct {
	Name               string     `json:"name"`
	ProtectionDomainID string     `json:"protectionDomainId"`
	IPList             []SdsIPArg `json:"sdsIpList"`
	FaultSetID         string     `json:"faultSetId,omitempty"`
	RfcacheEnabled     *bool      `json:"rfcacheEnabled,omitempty"`
	RmcacheEnabled     *bool      `json:"rmcacheEnabled,omitempty"`
	RmcacheSizeInKb    *int       `json:"rmcacheSizeInKb,omitempty"`
}

// SdsIPArg wraps an address the way the create call expects it.
type SdsIPArg struct {
	SdsIP SdsIP `json:"SdsIp"`
}

// SnapshotPolicyCreate is the body for a new snapshot policy.
type SnapshotPolicyCreate struct {
	Name                           string   `json:"name"`
	AutoSnapshotCreationCadenceMin string   `json:"autoSnapshotCreationCadenceInMin"`
	NumOfRetainedSnapshotsPerLevel []string `json:"numOfRetainedSnapshotsPerLevel"`
	SnapshotAccessMode             string   `json:"snapshotAccessMode,omitempty"`
	SecureSnapshots                string   `json:"secureSnapshots,omitempty"`
}

// IOPriorityPolicy is one storage pool IO priority setting.
type IOPriorityPolicy struct {
	Policy                 string `json:"policy"`
	ConcurrentIosPerDevice string `json:"numOfConcurrentIosPerDevice,omitempty"`
	BwLimitPerDeviceInKbps string `json:"bwLimitPerDeviceInKbps,omitempty"`
}
