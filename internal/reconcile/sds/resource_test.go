package sds

import (
	"context"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dokzlo13/pflexctl/internal/errs"
	"github.com/dokzlo13/pflexctl/internal/gateway"
	"github.com/dokzlo13/pflexctl/internal/gateway/gatewaytest"
	"github.com/dokzlo13/pflexctl/internal/reconcile"
)

func newFake() *gatewaytest.Fake {
	f := gatewaytest.New()
	f.Domains = []*gateway.ProtectionDomain{
		{ID: "pd-1", Name: "domain1"},
		{ID: "pd-2", Name: "domain2"},
	}
	f.FaultSetList = []*gateway.FaultSet{
		{ID: "fs-1", Name: "rack1", ProtectionDomainID: "pd-1"},
		{ID: "fs-2", Name: "rack1", ProtectionDomainID: "pd-2"},
	}
	f.Servers = []*gateway.Sds{{
		ID:                 "sds-1",
		Name:               "node1",
		ProtectionDomainID: "pd-1",
		FaultSetID:         "fs-1",
		IPList: []gateway.SdsIP{
			{IP: "10.1.0.1", Role: "all"},
			{IP: "10.2.0.1", Role: "sdcOnly"},
		},
		PerfProfile: "Compact",
	}}
	return f
}

func run(t *testing.T, f *gatewaytest.Fake, p Params) (*reconcile.Result, error) {
	t.Helper()
	return reconcile.NewEngine(nil).Reconcile(context.Background(), NewResource(f, p), reconcile.Options{})
}

func TestCreate(t *testing.T) {
	f := newFake()
	p := Params{
		SdsName:              reconcile.Ptr("node2"),
		ProtectionDomainName: reconcile.Ptr("domain1"),
		FaultSetName:         reconcile.Ptr("rack1"),
		SdsIPList:            []IP{{IP: "10.1.0.2", Role: "all"}},
		SdsIPState:           reconcile.Ptr(IPPresent),
		RmcacheEnabled:       reconcile.Ptr(true),
		RmcacheSize:          reconcile.Ptr(256),
		PerformanceProfile:   reconcile.Ptr("HighPerformance"),
	}
	res, err := run(t, f, p)
	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.Equal(t, []string{"addSds", "setSdsPerformanceParameters"}, f.Calls)

	details := res.Details.(*Details)
	assert.Equal(t, "fs-1", details.FaultSetID)
	assert.Equal(t, "rack1", details.FaultSetName)
	assert.Equal(t, "domain1", details.ProtectionDomainName)
	assert.Equal(t, 256, details.RmcacheSizeInMB)

	f.Reset()
	res, err = run(t, f, p)
	require.NoError(t, err)
	assert.False(t, res.Changed)
	assert.Empty(t, f.Calls)
}

func TestCreateRequirements(t *testing.T) {
	tests := []struct {
		name string
		p    Params
		kind error
	}{
		{
			name: "no domain",
			p:    Params{SdsName: reconcile.Ptr("n"), SdsIPList: []IP{{IP: "10.0.0.9", Role: "all"}}, SdsIPState: reconcile.Ptr(IPPresent)},
			kind: errs.ErrInvalidParameter,
		},
		{
			name: "no ips",
			p:    Params{SdsName: reconcile.Ptr("n"), ProtectionDomainID: reconcile.Ptr("pd-1")},
			kind: errs.ErrInvalidParameter,
		},
		{
			name: "only sdc role",
			p: Params{SdsName: reconcile.Ptr("n"), ProtectionDomainID: reconcile.Ptr("pd-1"),
				SdsIPList: []IP{{IP: "10.0.0.9", Role: "sdcOnly"}}, SdsIPState: reconcile.Ptr(IPPresent)},
			kind: errs.ErrInvalidParameter,
		},
		{
			name: "rmcache size without rmcache",
			p: Params{SdsName: reconcile.Ptr("n"), ProtectionDomainID: reconcile.Ptr("pd-1"),
				SdsIPList: []IP{{IP: "10.0.0.9", Role: "all"}}, SdsIPState: reconcile.Ptr(IPPresent), RmcacheSize: reconcile.Ptr(128)},
			kind: errs.ErrPreconditionFailed,
		},
		{
			name: "bad ip",
			p: Params{SdsName: reconcile.Ptr("n"), ProtectionDomainID: reconcile.Ptr("pd-1"),
				SdsIPList: []IP{{IP: "not-an-ip", Role: "all"}}, SdsIPState: reconcile.Ptr(IPPresent)},
			kind: errs.ErrInvalidParameter,
		},
		{
			name: "rmcache size out of range",
			p:    Params{SdsName: reconcile.Ptr("node1"), RmcacheSize: reconcile.Ptr(64)},
			kind: errs.ErrInvalidParameter,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFake()
			_, err := run(t, f, tt.p)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.kind), "got %v", err)
			assert.Empty(t, f.Calls)
		})
	}
}

func TestImmutableDomainAndFaultSet(t *testing.T) {
	f := newFake()
	_, err := run(t, f, Params{SdsName: reconcile.Ptr("node1"), ProtectionDomainID: reconcile.Ptr("pd-2")})
	assert.True(t, errors.Is(err, errs.ErrInvalidParameter))

	_, err = run(t, f, Params{SdsName: reconcile.Ptr("node1"), ProtectionDomainID: reconcile.Ptr("pd-2"), FaultSetName: reconcile.Ptr("rack1")})
	assert.True(t, errors.Is(err, errs.ErrInvalidParameter))

	res, err := run(t, f, Params{SdsName: reconcile.Ptr("node1"), ProtectionDomainID: reconcile.Ptr("pd-1"), FaultSetName: reconcile.Ptr("rack1")})
	require.NoError(t, err)
	assert.False(t, res.Changed)
	assert.Empty(t, f.Calls)
}

func TestRmcacheSizeNeedsRmcache(t *testing.T) {
	f := newFake()
	_, err := run(t, f, Params{SdsID: reconcile.Ptr("sds-1"), RmcacheSize: reconcile.Ptr(512)})
	assert.True(t, errors.Is(err, errs.ErrPreconditionFailed))
	assert.Empty(t, f.Calls)

	_, err = run(t, f, Params{SdsID: reconcile.Ptr("sds-1"), RmcacheEnabled: reconcile.Ptr(true), RmcacheSize: reconcile.Ptr(512)})
	require.NoError(t, err)
	assert.Equal(t, []string{"setSdsRmcacheEnabled", "setSdsRmcacheSize"}, f.Calls)
}

func TestUnchangedRmcacheSizeStillNeedsRmcache(t *testing.T) {
	f := newFake()
	f.Servers[0].RmcacheSizeInKb = 512 * 1024
	_, err := run(t, f, Params{SdsID: reconcile.Ptr("sds-1"), RmcacheSize: reconcile.Ptr(512)})
	assert.True(t, errors.Is(err, errs.ErrPreconditionFailed))
	assert.Empty(t, f.Calls)

	f.Servers[0].RmcacheEnabled = true
	res, err := run(t, f, Params{SdsID: reconcile.Ptr("sds-1"), RmcacheSize: reconcile.Ptr(512)})
	require.NoError(t, err)
	assert.False(t, res.Changed)
	assert.Empty(t, f.Calls)
}

func TestModifyOrder(t *testing.T) {
	f := newFake()
	f.Servers[0].RmcacheEnabled = true
	p := Params{
		SdsName:            reconcile.Ptr("node1"),
		SdsNewName:         reconcile.Ptr("node1a"),
		RfcacheEnabled:     reconcile.Ptr(true),
		RmcacheSize:        reconcile.Ptr(1024),
		PerformanceProfile: reconcile.Ptr("HighPerformance"),
		SdsIPList: []IP{
			{IP: "10.2.0.1", Role: "all"},
			{IP: "10.3.0.1", Role: "sdsOnly"},
		},
		SdsIPState: reconcile.Ptr(IPPresent),
	}
	res, err := run(t, f, p)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"setSdsName",
		"enableSdsRfcache",
		"setSdsRmcacheSize",
		"setSdsPerformanceParameters",
		"addSdsIp",
		"setSdsIpRole",
	}, f.Calls)

	details := res.Details.(*Details)
	assert.Equal(t, "node1a", details.Name)
	assert.ElementsMatch(t, []gateway.SdsIP{
		{IP: "10.1.0.1", Role: "all"},
		{IP: "10.2.0.1", Role: "all"},
		{IP: "10.3.0.1", Role: "sdsOnly"},
	}, details.IPList)
}

func TestRemoveIPs(t *testing.T) {
	f := newFake()
	res, err := run(t, f, Params{
		SdsID:      reconcile.Ptr("sds-1"),
		SdsIPList:  []IP{{IP: "10.2.0.1", Role: "sdcOnly"}, {IP: "10.9.0.1", Role: "all"}},
		SdsIPState: reconcile.Ptr(IPAbsent),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"removeSdsIp"}, f.Calls)
	assert.Len(t, res.Details.(*Details).IPList, 1)
}

func TestDelete(t *testing.T) {
	f := newFake()
	res, err := run(t, f, Params{SdsName: reconcile.Ptr("node1"), State: reconcile.StateAbsent})
	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.Equal(t, []string{"removeSds"}, f.Calls)
	assert.Empty(t, f.Servers)
}

func TestPaddedNameConverges(t *testing.T) {
	f := newFake()
	p := Params{
		SdsName:              reconcile.Ptr(" node2 "),
		ProtectionDomainName: reconcile.Ptr("domain1"),
		SdsIPList:            []IP{{IP: "10.1.0.2", Role: "all"}},
		SdsIPState:           reconcile.Ptr(IPPresent),
	}
	res, err := run(t, f, p)
	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.Equal(t, "node2", res.Details.(*Details).Name)

	f.Reset()
	res, err = run(t, f, p)
	require.NoError(t, err)
	assert.False(t, res.Changed)
	assert.Len(t, f.Servers, 2)
}

func TestBlankNameIsRejected(t *testing.T) {
	f := newFake()
	_, err := run(t, f, Params{SdsName: reconcile.Ptr("  "), ProtectionDomainName: reconcile.Ptr("domain1")})
	assert.True(t, errors.Is(err, errs.ErrInvalidName))
	assert.Empty(t, f.Calls)
}

func TestFaultSetReadFailurePropagates(t *testing.T) {
	f := newFake()
	f.FailReads = map[string]error{"fault set": errors.New("connection reset")}

	_, err := run(t, f, Params{SdsName: reconcile.Ptr("node1")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
}
