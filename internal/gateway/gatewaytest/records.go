package gatewaytest

import (
	"context"
	"encoding/json"
	"net/url"

	"github.com/hashicorp/go-version"

	"github.com/dokzlo13/pflexctl/internal/gateway"
)

// Version implements the version read. An empty APIVersion reports 4.5.
func (f *Fake) Version(context.Context) (*version.Version, error) {
	f.Reads++
	v := f.APIVersion
	if v == "" {
		v = "4.5"
	}
	return version.NewVersion(v)
}

// SystemRecord implements the raw system read.
func (f *Fake) SystemRecord(context.Context) (map[string]any, error) {
	f.Reads++
	return asRecord(f.SystemInfo), nil
}

// ListRaw serves typed state as generic records, and Raw for the types the fake
// does not model.
func (f *Fake) ListRaw(_ context.Context, typ string) ([]map[string]any, error) {
	f.Reads++
	switch typ {
	case gateway.TypeSystem:
		return []map[string]any{asRecord(f.SystemInfo)}, nil
	case gateway.TypeProtectionDomain:
		return asRecords(f.Domains), nil
	case gateway.TypeStoragePool:
		return asRecords(f.Pools), nil
	case gateway.TypeVolume:
		return asRecords(f.Vols), nil
	case gateway.TypeSdc:
		return asRecords(f.Clients), nil
	case gateway.TypeSds:
		return asRecords(f.Servers), nil
	case gateway.TypeSnapshotPolicy:
		return asRecords(f.Policies), nil
	case gateway.TypeFaultSet:
		return asRecords(f.FaultSetList), nil
	case gateway.TypeRCG:
		return asRecords(f.Groups), nil
	}
	return append([]map[string]any(nil), f.Raw[typ]...), nil
}

// Manager serves Managed and records the query it was given.
func (f *Fake) Manager(_ context.Context, collection string, q url.Values) ([]map[string]any, error) {
	f.Reads++
	f.ManagerQueries = append(f.ManagerQueries, q)
	return f.Managed[collection], nil
}

// Close implements the client close.
func (f *Fake) Close() {
	f.Closed = true
}

func asRecords[T any](items []*T) []map[string]any {
	out := make([]map[string]any, 0, len(items))
	for _, item := range items {
		out = append(out, asRecord(item))
	}
	return out
}

func asRecord(v any) map[string]any {
	raw, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		panic(err)
	}
	return out
}
