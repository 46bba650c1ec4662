// Package gatewaytest provides an in-memory gateway for reconciler tests.
//
// Fake keeps just enough state for mutating calls to be observed by the next read,
// and records every mutating call by its gateway action name.
package gatewaytest

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/dokzlo13/pflexctl/internal/errs"
	"github.com/dokzlo13/pflexctl/internal/gateway"
)

// Fake is an in-memory gateway.
type Fake struct {
	SystemInfo   gateway.System
	Domains      []*gateway.ProtectionDomain
	Pools        []*gateway.StoragePool
	Vols         []*gateway.Volume
	Clients      []*gateway.Sdc
	Servers      []*gateway.Sds
	Policies     []*gateway.SnapshotPolicy
	FaultSetList []*gateway.FaultSet
	Groups       []*gateway.ReplicationConsistencyGroup

	// APIVersion is reported by Version.
	APIVersion string
	// Raw holds records of types without typed state, keyed by type.
	Raw map[string][]map[string]any
	// Managed holds manager API collections.
	Managed        map[string][]map[string]any
	ManagerQueries []url.Values
	Closed         bool

	// Calls lists mutating calls in order.
	Calls []string
	// Reads counts read calls.
	Reads int
	// FailOn makes the named call return the error.
	FailOn map[string]error
	// FailReads makes single reads of a kind ("storage pool", "fault set") return the error.
	FailReads map[string]error

	nextID int
}

// New returns an empty fake with a system record.
func New() *Fake {
	return &Fake{SystemInfo: gateway.System{ID: "sys-local", Name: "local"}}
}

// Reset forgets recorded calls.
func (f *Fake) Reset() {
	f.Calls = nil
	f.Reads = 0
}

func (f *Fake) call(name string) error {
	f.Calls = append(f.Calls, name)
	return f.FailOn[name]
}

func (f *Fake) newID(prefix string) string {
	f.nextID++
	return fmt.Sprintf("%s-new-%d", prefix, f.nextID)
}

func notFound(kind, id string) error {
	return errs.Newf(errs.ErrNotFound, "Could not find the %s %s", kind, id)
}

func find[T any](f *Fake, items []*T, id string, idOf func(*T) string, kind string) (*T, error) {
	f.Reads++
	if err := f.FailReads[kind]; err != nil {
		return nil, err
	}
	for _, item := range items {
		if idOf(item) == id {
			cp := *item
			return &cp, nil
		}
	}
	return nil, notFound(kind, id)
}

func named[T any](f *Fake, items []*T, name string, nameOf func(*T) string) []T {
	f.Reads++
	var out []T
	for _, item := range items {
		if nameOf(item) == name {
			out = append(out, *item)
		}
	}
	return out
}

// System implements the system read.
func (f *Fake) System(context.Context) (*gateway.System, error) {
	f.Reads++
	s := f.SystemInfo
	return &s, nil
}

// ProtectionDomain implements the protection domain read.
func (f *Fake) ProtectionDomain(_ context.Context, id string) (*gateway.ProtectionDomain, error) {
	return find(f, f.Domains, id, func(pd *gateway.ProtectionDomain) string { return pd.ID }, "protection domain")
}

// ProtectionDomainsByName implements the protection domain list.
func (f *Fake) ProtectionDomainsByName(_ context.Context, name string) ([]gateway.ProtectionDomain, error) {
	return named(f, f.Domains, name, func(pd *gateway.ProtectionDomain) string { return pd.Name }), nil
}

// FaultSet implements the fault set read.
func (f *Fake) FaultSet(_ context.Context, id string) (*gateway.FaultSet, error) {
	return find(f, f.FaultSetList, id, func(fs *gateway.FaultSet) string { return fs.ID }, "fault set")
}

// FaultSetsByName implements the fault set list.
func (f *Fake) FaultSetsByName(_ context.Context, name string) ([]gateway.FaultSet, error) {
	return named(f, f.FaultSetList, name, func(fs *gateway.FaultSet) string { return fs.Name }), nil
}

// Sdc implements the SDC read.
func (f *Fake) Sdc(_ context.Context, id string) (*gateway.Sdc, error) {
	return find(f, f.Clients, id, func(s *gateway.Sdc) string { return s.ID }, "sdc")
}

// Sdcs implements the SDC list.
func (f *Fake) Sdcs(context.Context) ([]gateway.Sdc, error) {
	f.Reads++
	out := make([]gateway.Sdc, 0, len(f.Clients))
	for _, s := range f.Clients {
		out = append(out, *s)
	}
	return out, nil
}

// --- storage pools

func (f *Fake) pool(id string) (*gateway.StoragePool, error) {
	for _, sp := range f.Pools {
		if sp.ID == id {
			return sp, nil
		}
	}
	return nil, notFound("storage pool", id)
}

// StoragePool implements the storage pool read.
func (f *Fake) StoragePool(_ context.Context, id string) (*gateway.StoragePool, error) {
	return find(f, f.Pools, id, func(sp *gateway.StoragePool) string { return sp.ID }, "storage pool")
}

// StoragePoolsByName implements the storage pool list.
func (f *Fake) StoragePoolsByName(_ context.Context, name string) ([]gateway.StoragePool, error) {
	return named(f, f.Pools, name, func(sp *gateway.StoragePool) string { return sp.Name }), nil
}

// CreateStoragePool adds a pool.
func (f *Fake) CreateStoragePool(_ context.Context, body gateway.StoragePoolCreate) (string, error) {
	if err := f.call("createStoragePool"); err != nil {
		return "", err
	}
	sp := &gateway.StoragePool{
		ID:                 f.newID("sp"),
		Name:               body.Name,
		ProtectionDomainID: body.ProtectionDomainID,
		MediaType:          body.MediaType,
	}
	f.Pools = append(f.Pools, sp)
	return sp.ID, nil
}

func (f *Fake) updatePool(name, id string, apply func(sp *gateway.StoragePool)) error {
	if err := f.call(name); err != nil {
		return err
	}
	sp, err := f.pool(id)
	if err != nil {
		return err
	}
	apply(sp)
	return nil
}

// RenameStoragePool renames a pool.
func (f *Fake) RenameStoragePool(_ context.Context, id, name string) error {
	return f.updatePool("setStoragePoolName", id, func(sp *gateway.StoragePool) { sp.Name = name })
}

// SetStoragePoolMediaType sets the media type.
func (f *Fake) SetStoragePoolMediaType(_ context.Context, id, mediaType string) error {
	return f.updatePool("setMediaType", id, func(sp *gateway.StoragePool) { sp.MediaType = mediaType })
}

// SetStoragePoolRfcache toggles rfcache.
func (f *Fake) SetStoragePoolRfcache(_ context.Context, id string, enabled bool) error {
	return f.updatePool(toggle(enabled, "enableRfcache", "disableRfcache"), id, func(sp *gateway.StoragePool) { sp.UseRfcache = enabled })
}

// SetStoragePoolRmcache toggles rmcache.
func (f *Fake) SetStoragePoolRmcache(_ context.Context, id string, enabled bool) error {
	return f.updatePool("setUseRmcache", id, func(sp *gateway.StoragePool) { sp.UseRmcache = enabled })
}

// SetStoragePoolRmcacheWriteMode sets the rmcache write mode.
func (f *Fake) SetStoragePoolRmcacheWriteMode(_ context.Context, id, mode string) error {
	return f.updatePool("setRmcacheWriteHandlingMode", id, func(sp *gateway.StoragePool) { sp.RmcacheWriteHandlingMode = mode })
}

// SetStoragePoolZeroPadding toggles zero padding.
func (f *Fake) SetStoragePoolZeroPadding(_ context.Context, id string, enabled bool) error {
	return f.updatePool("setZeroPaddingPolicy", id, func(sp *gateway.StoragePool) { sp.ZeroPaddingEnabled = enabled })
}

// SetStoragePoolRepCapMaxRatio sets the replication journal ratio.
func (f *Fake) SetStoragePoolRepCapMaxRatio(_ context.Context, id string, ratio int) error {
	return f.updatePool("setReplicationJournalCapacity", id, func(sp *gateway.StoragePool) { sp.ReplicationCapMaxRatio = &ratio })
}

// SetStoragePoolRebalance toggles rebalance.
func (f *Fake) SetStoragePoolRebalance(_ context.Context, id string, enabled bool) error {
	return f.updatePool(toggle(enabled, "enableRebalance", "disableRebalance"), id, func(sp *gateway.StoragePool) { sp.RebalanceEnabled = enabled })
}

// SetStoragePoolRebuild toggles rebuild.
func (f *Fake) SetStoragePoolRebuild(_ context.Context, id string, enabled bool) error {
	return f.updatePool(toggle(enabled, "enableRebuild", "disableRebuild"), id, func(sp *gateway.StoragePool) { sp.RebuildEnabled = enabled })
}

// SetStoragePoolFragmentation toggles fragmentation.
func (f *Fake) SetStoragePoolFragmentation(_ context.Context, id string, enabled bool) error {
	return f.updatePool(toggle(enabled, "enableFragmentation", "disableFragmentation"), id, func(sp *gateway.StoragePool) { sp.FragmentationEnabled = enabled })
}

// SetStoragePoolSparePercentage sets the spare percentage.
func (f *Fake) SetStoragePoolSparePercentage(_ context.Context, id string, percent int) error {
	return f.updatePool("setSparePercentage", id, func(sp *gateway.StoragePool) { sp.SparePercentage = percent })
}

// SetStoragePoolParallelism sets the rebuild/rebalance parallelism.
func (f *Fake) SetStoragePoolParallelism(_ context.Context, id string, limit int) error {
	return f.updatePool("setRebuildRebalanceParallelism", id, func(sp *gateway.StoragePool) { sp.ParallelRebuildRebalance = limit })
}

func applyChecksum(sp *gateway.StoragePool, validateOnRead *bool, builderLimitKb *int) {
	if validateOnRead != nil {
		sp.PersistentChecksumValidateOnRead = *validateOnRead
	}
	if builderLimitKb != nil {
		sp.PersistentChecksumBuilderLimitKb = *builderLimitKb
	}
}

// EnablePersistentChecksum enables persistent checksum.
func (f *Fake) EnablePersistentChecksum(_ context.Context, id string, validateOnRead *bool, builderLimitKb *int) error {
	return f.updatePool("enablePersistentChecksum", id, func(sp *gateway.StoragePool) {
		sp.PersistentChecksumEnabled = true
		applyChecksum(sp, validateOnRead, builderLimitKb)
	})
}

// ModifyPersistentChecksum modifies persistent checksum options.
func (f *Fake) ModifyPersistentChecksum(_ context.Context, id string, validateOnRead *bool, builderLimitKb *int) error {
	return f.updatePool("modifyPersistentChecksum", id, func(sp *gateway.StoragePool) {
		applyChecksum(sp, validateOnRead, builderLimitKb)
	})
}

// DisablePersistentChecksum disables persistent checksum.
func (f *Fake) DisablePersistentChecksum(_ context.Context, id string) error {
	return f.updatePool("disablePersistentChecksum", id, func(sp *gateway.StoragePool) { sp.PersistentChecksumEnabled = false })
}

// SetIOPriorityPolicy sets an IO priority policy.
func (f *Fake) SetIOPriorityPolicy(_ context.Context, id, action string, policy gateway.IOPriorityPolicy) error {
	return f.updatePool(action, id, func(sp *gateway.StoragePool) {
		ios, _ := strconv.Atoi(policy.ConcurrentIosPerDevice)
		bw, _ := strconv.Atoi(policy.BwLimitPerDeviceInKbps)
		switch action {
		case "setProtectedMaintenanceModeIoPriorityPolicy":
			sp.ProtectedMaintenanceModeIoPriorityPolicy = policy.Policy
			if ios != 0 {
				sp.ProtectedMaintenanceModeIoPriorityConcurrentIos = ios
			}
			if bw != 0 {
				sp.ProtectedMaintenanceModeIoPriorityBwLimitPerDevice = bw
			}
		case "setVTreeMigrationIoPriorityPolicy":
			sp.VTreeMigrationIoPriorityPolicy = policy.Policy
			if ios != 0 {
				sp.VTreeMigrationIoPriorityConcurrentIos = ios
			}
			if bw != 0 {
				sp.VTreeMigrationIoPriorityBwLimitPerDevice = bw
			}
		case "setRebalanceIoPriorityPolicy":
			sp.RebalanceIoPriorityPolicy = policy.Policy
			if ios != 0 {
				sp.RebalanceIoPriorityConcurrentIos = ios
			}
			if bw != 0 {
				sp.RebalanceIoPriorityBwLimitPerDevice = bw
			}
		}
	})
}

// SetCapacityAlertThresholds sets capacity alert thresholds.
func (f *Fake) SetCapacityAlertThresholds(_ context.Context, id string, high, critical int) error {
	return f.updatePool("setCapacityAlertThresholds", id, func(sp *gateway.StoragePool) {
		sp.CapacityAlertHighThreshold = high
		sp.CapacityAlertCriticalThreshold = critical
	})
}

// RemoveStoragePool deletes a pool.
func (f *Fake) RemoveStoragePool(_ context.Context, id string) error {
	if err := f.call("removeStoragePool"); err != nil {
		return err
	}
	f.Pools = remove(f.Pools, func(sp *gateway.StoragePool) bool { return sp.ID == id })
	return nil
}

// --- volumes

func (f *Fake) volume(id string) (*gateway.Volume, error) {
	for _, v := range f.Vols {
		if v.ID == id {
			return v, nil
		}
	}
	return nil, notFound("volume", id)
}

// Volume implements the volume read.
func (f *Fake) Volume(_ context.Context, id string) (*gateway.Volume, error) {
	v, err := find(f, f.Vols, id, func(v *gateway.Volume) string { return v.ID }, "volume")
	if err != nil {
		return nil, err
	}
	v.MappedSdcInfo = append([]gateway.MappedSdc(nil), v.MappedSdcInfo...)
	return v, nil
}

// VolumesByName implements the volume list.
func (f *Fake) VolumesByName(_ context.Context, name string) ([]gateway.Volume, error) {
	return named(f, f.Vols, name, func(v *gateway.Volume) string { return v.Name }), nil
}

// CreateVolume adds a volume.
func (f *Fake) CreateVolume(_ context.Context, body gateway.VolumeCreate) (string, error) {
	if err := f.call("createVolume"); err != nil {
		return "", err
	}
	size, _ := strconv.ParseInt(body.VolumeSizeInKb, 10, 64)
	v := &gateway.Volume{
		ID:                f.newID("vol"),
		Name:              body.Name,
		SizeInKb:          size,
		VolumeType:        body.VolumeType,
		StoragePoolID:     body.StoragePoolID,
		CompressionMethod: body.CompressionMethod,
		UseRmcache:        body.UseRmcache == "true",
	}
	f.Vols = append(f.Vols, v)
	return v.ID, nil
}

func (f *Fake) updateVolume(name, id string, apply func(v *gateway.Volume)) error {
	if err := f.call(name); err != nil {
		return err
	}
	v, err := f.volume(id)
	if err != nil {
		return err
	}
	apply(v)
	return nil
}

// RenameVolume renames a volume.
func (f *Fake) RenameVolume(_ context.Context, id, name string) error {
	return f.updateVolume("setVolumeName", id, func(v *gateway.Volume) { v.Name = name })
}

// ResizeVolume grows a volume.
func (f *Fake) ResizeVolume(_ context.Context, id string, sizeGB int64) error {
	return f.updateVolume("setVolumeSize", id, func(v *gateway.Volume) { v.SizeInKb = sizeGB * 1024 * 1024 })
}

// SetVolumeCompression sets the compression method.
func (f *Fake) SetVolumeCompression(_ context.Context, id, method string) error {
	return f.updateVolume("modifyCompressionMethod", id, func(v *gateway.Volume) { v.CompressionMethod = method })
}

// SetVolumeRmcache toggles rmcache.
func (f *Fake) SetVolumeRmcache(_ context.Context, id string, enabled bool) error {
	return f.updateVolume("setVolumeUseRmcache", id, func(v *gateway.Volume) { v.UseRmcache = enabled })
}

// MapVolume maps a volume to an SDC.
func (f *Fake) MapVolume(_ context.Context, id, sdcID, accessMode string, _ bool) error {
	if accessMode == "" {
		accessMode = "ReadWrite"
	}
	return f.updateVolume("addMappedSdc", id, func(v *gateway.Volume) {
		v.MappedSdcInfo = append(v.MappedSdcInfo, gateway.MappedSdc{SdcID: sdcID, AccessMode: accessMode})
	})
}

func (f *Fake) updateMapping(name, id, sdcID string, apply func(m *gateway.MappedSdc)) error {
	return f.updateVolume(name, id, func(v *gateway.Volume) {
		for i := range v.MappedSdcInfo {
			if v.MappedSdcInfo[i].SdcID == sdcID {
				apply(&v.MappedSdcInfo[i])
			}
		}
	})
}

// SetMappingAccessMode sets a mapping's access mode.
func (f *Fake) SetMappingAccessMode(_ context.Context, id, sdcID, accessMode string) error {
	return f.updateMapping("setVolumeMappingAccessMode", id, sdcID, func(m *gateway.MappedSdc) { m.AccessMode = accessMode })
}

// SetMappingLimits sets a mapping's limits.
func (f *Fake) SetMappingLimits(_ context.Context, id, sdcID string, bandwidthKbps, iops int) error {
	return f.updateMapping("setMappedSdcLimits", id, sdcID, func(m *gateway.MappedSdc) {
		m.LimitBwInMbps = bandwidthKbps / 1024
		m.LimitIops = iops
	})
}

// UnmapVolume removes a mapping.
func (f *Fake) UnmapVolume(_ context.Context, id, sdcID string) error {
	return f.updateVolume("removeMappedSdc", id, func(v *gateway.Volume) {
		kept := v.MappedSdcInfo[:0]
		for _, m := range v.MappedSdcInfo {
			if m.SdcID != sdcID {
				kept = append(kept, m)
			}
		}
		v.MappedSdcInfo = kept
	})
}

// RemoveVolume deletes a volume.
func (f *Fake) RemoveVolume(_ context.Context, id, mode string) error {
	if err := f.call("removeVolume"); err != nil {
		return err
	}
	f.Vols = remove(f.Vols, func(v *gateway.Volume) bool { return v.ID == id })
	return nil
}

// --- snapshot policies

func (f *Fake) policy(id string) (*gateway.SnapshotPolicy, error) {
	for _, p := range f.Policies {
		if p.ID == id {
			return p, nil
		}
	}
	return nil, notFound("snapshot policy", id)
}

// SnapshotPolicy implements the snapshot policy read.
func (f *Fake) SnapshotPolicy(_ context.Context, id string) (*gateway.SnapshotPolicy, error) {
	return find(f, f.Policies, id, func(p *gateway.SnapshotPolicy) string { return p.ID }, "snapshot policy")
}

// SnapshotPoliciesByName implements the snapshot policy list.
func (f *Fake) SnapshotPoliciesByName(_ context.Context, name string) ([]gateway.SnapshotPolicy, error) {
	return named(f, f.Policies, name, func(p *gateway.SnapshotPolicy) string { return p.Name }), nil
}

// SnapshotPolicySourceVolumes lists volumes attached to a policy.
func (f *Fake) SnapshotPolicySourceVolumes(_ context.Context, id string) ([]gateway.Volume, error) {
	f.Reads++
	var out []gateway.Volume
	for _, v := range f.Vols {
		if v.SnapshotPolicyID == id {
			out = append(out, *v)
		}
	}
	return out, nil
}

// CreateSnapshotPolicy adds a policy.
func (f *Fake) CreateSnapshotPolicy(_ context.Context, body gateway.SnapshotPolicyCreate) (string, error) {
	if err := f.call("createSnapshotPolicy"); err != nil {
		return "", err
	}
	cadence, _ := strconv.Atoi(body.AutoSnapshotCreationCadenceMin)
	p := &gateway.SnapshotPolicy{
		ID:                             f.newID("snpl"),
		Name:                           body.Name,
		AutoSnapshotCreationCadenceMin: cadence,
		NumOfRetainedSnapshotsPerLevel: atoiAll(body.NumOfRetainedSnapshotsPerLevel),
		SnapshotAccessMode:             body.SnapshotAccessMode,
		SecureSnapshots:                body.SecureSnapshots == "true",
		SnapshotPolicyState:            "Active",
	}
	f.Policies = append(f.Policies, p)
	return p.ID, nil
}

func (f *Fake) updatePolicy(name, id string, apply func(p *gateway.SnapshotPolicy)) error {
	if err := f.call(name); err != nil {
		return err
	}
	p, err := f.policy(id)
	if err != nil {
		return err
	}
	apply(p)
	return nil
}

// RenameSnapshotPolicy renames a policy.
func (f *Fake) RenameSnapshotPolicy(_ context.Context, id, name string) error {
	return f.updatePolicy("renameSnapshotPolicy", id, func(p *gateway.SnapshotPolicy) { p.Name = name })
}

// ModifySnapshotPolicy changes cadence and retention.
func (f *Fake) ModifySnapshotPolicy(_ context.Context, id string, cadenceMin int, retention []int) error {
	return f.updatePolicy("modifySnapshotPolicy", id, func(p *gateway.SnapshotPolicy) {
		p.AutoSnapshotCreationCadenceMin = cadenceMin
		p.NumOfRetainedSnapshotsPerLevel = append([]int(nil), retention...)
	})
}

// AddSourceVolume attaches a volume to a policy.
func (f *Fake) AddSourceVolume(_ context.Context, policyID, volumeID string) error {
	return f.updatePolicy("addSourceVolumeToSnapshotPolicy", policyID, func(p *gateway.SnapshotPolicy) {
		if v, err := f.volume(volumeID); err == nil {
			v.SnapshotPolicyID = p.ID
			p.NumOfSourceVolumes++
		}
	})
}

// RemoveSourceVolume detaches a volume from a policy.
func (f *Fake) RemoveSourceVolume(_ context.Context, policyID, volumeID, _ string, _ bool) error {
	return f.updatePolicy("removeSourceVolumeFromSnapshotPolicy", policyID, func(p *gateway.SnapshotPolicy) {
		if v, err := f.volume(volumeID); err == nil && v.SnapshotPolicyID == p.ID {
			v.SnapshotPolicyID = ""
			p.NumOfSourceVolumes--
		}
	})
}

// PauseSnapshotPolicy pauses a policy.
func (f *Fake) PauseSnapshotPolicy(_ context.Context, id string) error {
	return f.updatePolicy("pauseSnapshotPolicy", id, func(p *gateway.SnapshotPolicy) { p.SnapshotPolicyState = "Paused" })
}

// ResumeSnapshotPolicy resumes a policy.
func (f *Fake) ResumeSnapshotPolicy(_ context.Context, id string) error {
	return f.updatePolicy("resumeSnapshotPolicy", id, func(p *gateway.SnapshotPolicy) { p.SnapshotPolicyState = "Active" })
}

// RemoveSnapshotPolicy deletes a policy.
func (f *Fake) RemoveSnapshotPolicy(_ context.Context, id string) error {
	if err := f.call("removeSnapshotPolicy"); err != nil {
		return err
	}
	f.Policies = remove(f.Policies, func(p *gateway.SnapshotPolicy) bool { return p.ID == id })
	return nil
}

// --- SDS

func (f *Fake) sds(id string) (*gateway.Sds, error) {
	for _, s := range f.Servers {
		if s.ID == id {
			return s, nil
		}
	}
	return nil, notFound("sds", id)
}

// Sds implements the SDS read.
func (f *Fake) Sds(_ context.Context, id string) (*gateway.Sds, error) {
	s, err := find(f, f.Servers, id, func(s *gateway.Sds) string { return s.ID }, "sds")
	if err != nil {
		return nil, err
	}
	s.IPList = append([]gateway.SdsIP(nil), s.IPList...)
	return s, nil
}

// SdsByName implements the SDS list.
func (f *Fake) SdsByName(_ context.Context, name string) ([]gateway.Sds, error) {
	return named(f, f.Servers, name, func(s *gateway.Sds) string { return s.Name }), nil
}

// CreateSds adds an SDS.
func (f *Fake) CreateSds(_ context.Context, body gateway.SdsCreate) (string, error) {
	if err := f.call("addSds"); err != nil {
		return "", err
	}
	s := &gateway.Sds{
		ID:                 f.newID("sds"),
		Name:               body.Name,
		ProtectionDomainID: body.ProtectionDomainID,
		FaultSetID:         body.FaultSetID,
	}
	for _, ip := range body.IPList {
		s.IPList = append(s.IPList, ip.SdsIP)
	}
	if body.RfcacheEnabled != nil {
		s.RfcacheEnabled = *body.RfcacheEnabled
	}
	if body.RmcacheEnabled != nil {
		s.RmcacheEnabled = *body.RmcacheEnabled
	}
	if body.RmcacheSizeInKb != nil {
		s.RmcacheSizeInKb = *body.RmcacheSizeInKb
	}
	f.Servers = append(f.Servers, s)
	return s.ID, nil
}

func (f *Fake) updateSds(name, id string, apply func(s *gateway.Sds)) error {
	if err := f.call(name); err != nil {
		return err
	}
	s, err := f.sds(id)
	if err != nil {
		return err
	}
	apply(s)
	return nil
}

// RenameSds renames an SDS.
func (f *Fake) RenameSds(_ context.Context, id, name string) error {
	return f.updateSds("setSdsName", id, func(s *gateway.Sds) { s.Name = name })
}

// SetSdsRfcache toggles rfcache.
func (f *Fake) SetSdsRfcache(_ context.Context, id string, enabled bool) error {
	return f.updateSds(toggle(enabled, "enableSdsRfcache", "disableSdsRfcache"), id, func(s *gateway.Sds) { s.RfcacheEnabled = enabled })
}

// SetSdsRmcache toggles rmcache.
func (f *Fake) SetSdsRmcache(_ context.Context, id string, enabled bool) error {
	return f.updateSds("setSdsRmcacheEnabled", id, func(s *gateway.Sds) { s.RmcacheEnabled = enabled })
}

// SetSdsRmcacheSize sets the rmcache size.
func (f *Fake) SetSdsRmcacheSize(_ context.Context, id string, sizeMB int) error {
	return f.updateSds("setSdsRmcacheSize", id, func(s *gateway.Sds) { s.RmcacheSizeInKb = sizeMB * 1024 })
}

// SetSdsPerformanceProfile sets the performance profile.
func (f *Fake) SetSdsPerformanceProfile(_ context.Context, id, profile string) error {
	return f.updateSds("setSdsPerformanceParameters", id, func(s *gateway.Sds) { s.PerfProfile = profile })
}

// AddSdsIP adds an address.
func (f *Fake) AddSdsIP(_ context.Context, id string, ip gateway.SdsIP) error {
	return f.updateSds("addSdsIp", id, func(s *gateway.Sds) { s.IPList = append(s.IPList, ip) })
}

// SetSdsIPRole changes an address role.
func (f *Fake) SetSdsIPRole(_ context.Context, id, ip, role string) error {
	return f.updateSds("setSdsIpRole", id, func(s *gateway.Sds) {
		for i := range s.IPList {
			if s.IPList[i].IP == ip {
				s.IPList[i].Role = role
			}
		}
	})
}

// RemoveSdsIP removes an address.
func (f *Fake) RemoveSdsIP(_ context.Context, id, ip string) error {
	return f.updateSds("removeSdsIp", id, func(s *gateway.Sds) {
		kept := s.IPList[:0]
		for _, a := range s.IPList {
			if a.IP != ip {
				kept = append(kept, a)
			}
		}
		s.IPList = kept
	})
}

// RemoveSds removes an SDS.
func (f *Fake) RemoveSds(_ context.Context, id string) error {
	if err := f.call("removeSds"); err != nil {
		return err
	}
	f.Servers = remove(f.Servers, func(s *gateway.Sds) bool { return s.ID == id })
	return nil
}

// --- replication consistency groups

func (f *Fake) rcg(id string) (*gateway.ReplicationConsistencyGroup, error) {
	for _, g := range f.Groups {
		if g.ID == id {
			return g, nil
		}
	}
	return nil, notFound("replication consistency group", id)
}

// RCG implements the replication consistency group read.
func (f *Fake) RCG(_ context.Context, id string) (*gateway.ReplicationConsistencyGroup, error) {
	return find(f, f.Groups, id, func(g *gateway.ReplicationConsistencyGroup) string { return g.ID }, "replication consistency group")
}

// RCGsByName implements the replication consistency group list.
func (f *Fake) RCGsByName(_ context.Context, name string) ([]gateway.ReplicationConsistencyGroup, error) {
	return named(f, f.Groups, name, func(g *gateway.ReplicationConsistencyGroup) string { return g.Name }), nil
}

// CreateRCG adds a group.
func (f *Fake) CreateRCG(_ context.Context, body gateway.RCGCreate) (string, error) {
	if err := f.call("createReplicationConsistencyGroup"); err != nil {
		return "", err
	}
	rpo, _ := strconv.Atoi(body.RpoInSeconds)
	g := &gateway.ReplicationConsistencyGroup{
		ID:                       f.newID("rcg"),
		Name:                     body.Name,
		ProtectionDomainID:       body.ProtectionDomainID,
		RemoteProtectionDomainID: body.RemoteProtectionDomainID,
		DestinationSystemID:      body.DestinationSystemID,
		RpoInSeconds:             rpo,
		TargetVolumeAccessMode:   "NoAccess",
		LocalActivityState:       "Active",
		CurrConsistMode:          "Consistent",
		PauseMode:                "None",
		FreezeState:              "Unfrozen",
		FailoverType:             "None",
	}
	f.Groups = append(f.Groups, g)
	return g.ID, nil
}

func (f *Fake) updateRCG(name, id string, apply func(g *gateway.ReplicationConsistencyGroup)) error {
	if err := f.call(name); err != nil {
		return err
	}
	g, err := f.rcg(id)
	if err != nil {
		return err
	}
	apply(g)
	return nil
}

// RCGAction applies a body-less action.
func (f *Fake) RCGAction(_ context.Context, id, action string) error {
	return f.updateRCG(action, id, func(g *gateway.ReplicationConsistencyGroup) {
		switch action {
		case "activateReplicationConsistencyGroup":
			g.LocalActivityState = "Active"
		case "terminateReplicationConsistencyGroup":
			g.LocalActivityState = "Inactive"
		case "setReplicationConsistencyGroupConsistent":
			g.CurrConsistMode = "Consistent"
		case "setReplicationConsistencyGroupInconsistent":
			g.CurrConsistMode = "Inconsistent"
		case "failoverReplicationConsistencyGroup":
			g.FailoverType = "Failover"
		case "switchoverReplicationConsistencyGroup":
			g.FailoverType = "Switchover"
		case "reverseReplicationConsistencyGroup", "restoreReplicationConsistencyGroup":
			g.FailoverType = "None"
		case "resumeReplicationConsistencyGroup":
			g.PauseMode = "None"
		case "freezeApplyReplicationConsistencyGroup":
			g.FreezeState = "Frozen"
		case "unfreezeApplyReplicationConsistencyGroup":
			g.FreezeState = "Unfrozen"
		}
	})
}

// RenameRCG renames a group.
func (f *Fake) RenameRCG(_ context.Context, id, name string) error {
	return f.updateRCG("renameReplicationConsistencyGroup", id, func(g *gateway.ReplicationConsistencyGroup) { g.Name = name })
}

// SetRCGRpo sets the RPO.
func (f *Fake) SetRCGRpo(_ context.Context, id string, rpo int) error {
	return f.updateRCG("ModifyReplicationConsistencyGroupRpo", id, func(g *gateway.ReplicationConsistencyGroup) { g.RpoInSeconds = rpo })
}

// SetRCGTargetAccessMode sets the target volume access mode.
func (f *Fake) SetRCGTargetAccessMode(_ context.Context, id, mode string) error {
	return f.updateRCG("modifyReplicationConsistencyGroupTargetVolumeAccessMode", id, func(g *gateway.ReplicationConsistencyGroup) {
		g.TargetVolumeAccessMode = mode
	})
}

// PauseRCG pauses replication.
func (f *Fake) PauseRCG(_ context.Context, id, mode string) error {
	return f.updateRCG("pauseReplicationConsistencyGroup", id, func(g *gateway.ReplicationConsistencyGroup) { g.PauseMode = mode })
}

// SnapshotRCG records a snapshot.
func (f *Fake) SnapshotRCG(_ context.Context, id string) error {
	return f.updateRCG("createReplicationConsistencyGroupSnapshots", id, func(*gateway.ReplicationConsistencyGroup) {})
}

// RemoveRCG deletes a group.
func (f *Fake) RemoveRCG(_ context.Context, id string, _ bool) error {
	if err := f.call("removeReplicationConsistencyGroup"); err != nil {
		return err
	}
	f.Groups = remove(f.Groups, func(g *gateway.ReplicationConsistencyGroup) bool { return g.ID == id })
	return nil
}

func remove[T any](items []*T, match func(*T) bool) []*T {
	kept := items[:0]
	for _, item := range items {
		if !match(item) {
			kept = append(kept, item)
		}
	}
	return kept
}

func toggle(enabled bool, on, off string) string {
	if enabled {
		return on
	}
	return off
}

func atoiAll(values []string) []int {
	out := make([]int, len(values))
	for i, v := range values {
		n, err := strconv.Atoi(v)
		if err != nil {
			panic(fmt.Sprintf("gatewaytest: bad integer %q", v))
		}
		out[i] = n
	}
	return out
}
