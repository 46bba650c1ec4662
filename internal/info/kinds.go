package info

import (
	"context"

	"github.com/hashicorp/go-version"

	"github.com/dokzlo13/pflexctl/internal/filter"
	"github.com/dokzlo13/pflexctl/internal/gateway"
	"github.com/dokzlo13/pflexctl/internal/query"
)

// Kind is one gatherable resource kind.
type Kind interface {
	// Subset is the gather_subset name, e.g. "vol".
	Subset() string
	// ResultKey is the key the records are reported under, e.g. "Volumes".
	ResultKey() string
	// Capabilities lists the accepted filter keys and operators.
	Capabilities() filter.Capabilities
	// MinVersion is the lowest gateway version serving the kind, nil for any.
	MinVersion() *version.Version
	// Fetch lists the records. q is empty when native parameters are suppressed.
	Fetch(ctx context.Context, b Backend, plan *filter.Plan, q query.Params) ([]map[string]any, error)
}

var (
	v40 = version.Must(version.NewVersion("4.0"))
	v45 = version.Must(version.NewVersion("4.5"))
)

// collection is a kind served by an instance collection and filtered client-side.
type collection struct {
	subset string
	key    string
	typ    string
	keys   []string
	min    *version.Version
	// keep pre-filters records of a shared collection.
	keep func(map[string]any) bool
}

func (c collection) Subset() string               { return c.subset }
func (c collection) ResultKey() string            { return c.key }
func (c collection) MinVersion() *version.Version { return c.min }

func (c collection) Capabilities() filter.Capabilities {
	return filter.Capabilities{
		Keys:      append([]string{"id", "name"}, c.keys...),
		Operators: []filter.Operator{filter.Equal},
	}
}

func (c collection) Fetch(ctx context.Context, b Backend, plan *filter.Plan, _ query.Params) ([]map[string]any, error) {
	records, err := b.ListRaw(ctx, c.typ)
	if err != nil {
		return nil, err
	}
	if c.keep != nil {
		kept := records[:0]
		for _, r := range records {
			if c.keep(r) {
				kept = append(kept, r)
			}
		}
		records = kept
	}
	return plan.Apply(records), nil
}

// manager is a kind served by the manager API, which filters, sorts and pages natively.
type manager struct {
	subset     string
	key        string
	collection string
	keys       []string
}

func (m manager) Subset() string               { return m.subset }
func (m manager) ResultKey() string            { return m.key }
func (m manager) MinVersion() *version.Version { return v40 }

func (m manager) Capabilities() filter.Capabilities {
	return filter.Capabilities{
		Keys:      append([]string{"id", "name"}, m.keys...),
		Operators: []filter.Operator{filter.Equal, filter.Contains},
		Native:    true,
	}
}

func (m manager) Fetch(ctx context.Context, b Backend, _ *filter.Plan, q query.Params) ([]map[string]any, error) {
	return b.Manager(ctx, m.collection, q.Values())
}

func isNVMeHost(r map[string]any) bool {
	return r["hostType"] == "NVMeHost"
}

// Kinds is the registry of gatherable kinds, in result order.
var Kinds = []Kind{
	collection{subset: "vol", key: "Volumes", typ: gateway.TypeVolume,
		keys: []string{"storagePoolId", "volumeType", "vtreeId", "ancestorVolumeId"}},
	collection{subset: "storage_pool", key: "Storage_Pools", typ: gateway.TypeStoragePool,
		keys: []string{"protectionDomainId", "mediaType"}},
	collection{subset: "protection_domain", key: "Protection_Domains", typ: gateway.TypeProtectionDomain,
		keys: []string{"systemId", "protectionDomainState"}},
	collection{subset: "sdc", key: "SDCs", typ: gateway.TypeSdc,
		keys: []string{"sdcIp", "sdcGuid"}},
	collection{subset: "sds", key: "SDSs", typ: gateway.TypeSds,
		keys: []string{"protectionDomainId", "faultSetId", "sdsState"}},
	collection{subset: "snapshot_policy", key: "Snapshot_Policies", typ: gateway.TypeSnapshotPolicy,
		keys: []string{"snapshotPolicyState"}},
	collection{subset: "device", key: "Devices", typ: gateway.TypeDevice,
		keys: []string{"sdsId", "storagePoolId", "deviceState"}},
	collection{subset: "rcg", key: "Replication_Consistency_Groups", typ: gateway.TypeRCG,
		keys: []string{"protectionDomainId", "remoteProtectionDomainId"}},
	collection{subset: "replication_pair", key: "Replication_Pairs", typ: gateway.TypeReplicationPair,
		keys: []string{"replicationConsistencyGroupId", "localVolumeId", "remoteVolumeId"}},
	collection{subset: "fault_set", key: "Fault_Sets", typ: gateway.TypeFaultSet,
		keys: []string{"protectionDomainId"}},
	collection{subset: "nvme_host", key: "NVMe_Hosts", typ: gateway.TypeHost,
		keys: []string{"systemId"}, min: v45, keep: isNVMeHost},
	collection{subset: "sdt", key: "SDTs", typ: gateway.TypeSdt,
		keys: []string{"protectionDomainId", "sdtState"}, min: v45},
	manager{subset: "managed_device", key: "ManagedDevices", collection: gateway.CollectionManagedDevice,
		keys: []string{"serviceTag", "ipAddress", "deviceType", "state"}},
	manager{subset: "deployment", key: "Deployments", collection: gateway.CollectionDeployment,
		keys: []string{"status", "deploymentName"}},
	manager{subset: "service_template", key: "ServiceTemplates", collection: gateway.CollectionServiceTemplate,
		keys: []string{"category", "draft"}},
	manager{subset: "firmware_repository", key: "FirmwareRepository", collection: gateway.CollectionFirmwareRepository,
		keys: []string{"state", "sourceLocation"}},
}

// Lookup returns the kind for a gather_subset name.
func Lookup(subset string) (Kind, bool) {
	for _, k := range Kinds {
		if k.Subset() == subset {
			return k, true
		}
	}
	return nil, false
}
