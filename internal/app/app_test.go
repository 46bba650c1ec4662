package app

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/dokzlo13/pflexctl/internal/config"
	"github.com/dokzlo13/pflexctl/internal/errs"
	"github.com/dokzlo13/pflexctl/internal/gateway"
	"github.com/dokzlo13/pflexctl/internal/gateway/gatewaytest"
	"github.com/dokzlo13/pflexctl/internal/ledger"
)

type dialed struct {
	fakes   map[string]*gatewaytest.Fake
	configs []config.GatewayConfig
}

func (d *dialed) dial(_ context.Context, cfg config.GatewayConfig) (Backend, error) {
	d.configs = append(d.configs, cfg)
	f, ok := d.fakes[cfg.Hostname]
	if !ok {
		return nil, errs.Newf(errs.ErrConnection, "no gateway at %s", cfg.Hostname)
	}
	return f, nil
}

func (d *dialed) hosts() []string {
	out := make([]string, 0, len(d.configs))
	for _, c := range d.configs {
		out = append(out, c.Hostname)
	}
	return out
}

func newPrimary() *gatewaytest.Fake {
	f := gatewaytest.New()
	f.Domains = []*gateway.ProtectionDomain{{ID: "pd-1", Name: "domain1"}}
	f.Pools = []*gateway.StoragePool{{ID: "sp-1", Name: "pool1", ProtectionDomainID: "pd-1"}}
	f.Vols = []*gateway.Volume{{ID: "vol-1", Name: "data", StoragePoolID: "sp-1", SizeInKb: 8 * 1024 * 1024}}
	return f
}

func newApp(t *testing.T, withLedger bool) (*App, *dialed) {
	t.Helper()
	cfg := config.Default()
	cfg.Gateway.Hostname = "primary"
	cfg.Gateway.Username = "admin"
	cfg.Gateway.Password = "secret"
	cfg.RemoteGateways = map[string]config.GatewayConfig{
		"site-b": {Hostname: "site-b-host", Username: "admin", Password: "secret", Port: 443},
	}
	if withLedger {
		cfg.Ledger.Path = filepath.Join(t.TempDir(), "ledger.db")
	}

	d := &dialed{fakes: map[string]*gatewaytest.Fake{"primary": newPrimary()}}
	a, err := New(context.Background(), cfg, WithDialer(d.dial))
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	return a, d
}

func task(t *testing.T, module, params string) *Task {
	t.Helper()
	tk := &Task{Name: t.Name(), Module: module}
	require.NoError(t, yaml.Unmarshal([]byte(params), &tk.Params))
	return tk
}

func TestUnknownModule(t *testing.T) {
	a, d := newApp(t, false)
	_, err := a.Run(context.Background(), task(t, "volumes", "vol_name: x"))
	assert.True(t, errors.Is(err, errs.ErrInvalidParameter))
	assert.Empty(t, d.configs)
}

func TestInfoAliases(t *testing.T) {
	for _, name := range []string{"info", "gatherfacts", "info_v2"} {
		t.Run(name, func(t *testing.T) {
			a, _ := newApp(t, false)
			out, err := a.Run(context.Background(), task(t, name, "gather_subset: [vol]"))
			require.NoError(t, err)
			assert.Equal(t, false, out["changed"])
			assert.Len(t, out["Volumes"], 1)
			assert.Contains(t, out, "Array_Details")
		})
	}
}

func TestUnknownParameterIsRejected(t *testing.T) {
	a, d := newApp(t, false)
	_, err := a.Run(context.Background(), task(t, "volume", "vol_name: data\ncolour: red"))
	assert.True(t, errors.Is(err, errs.ErrInvalidParameter))
	assert.Empty(t, d.configs)
}

func TestConnectionOverrides(t *testing.T) {
	a, d := newApp(t, false)
	d.fakes["other"] = newPrimary()

	_, err := a.Run(context.Background(), task(t, "info", "hostname: other\nport: 8443\nvalidate_certs: false"))
	require.NoError(t, err)

	require.Len(t, d.configs, 1)
	got := d.configs[0]
	assert.Equal(t, "other", got.Hostname)
	assert.Equal(t, 8443, got.Port)
	assert.False(t, got.ValidateCerts)
	assert.Equal(t, "admin", got.Username, "unset fields keep the configured value")
}

func TestConnectionsAreClosed(t *testing.T) {
	a, d := newApp(t, false)
	_, err := a.Run(context.Background(), task(t, "volume", "vol_name: data"))
	require.NoError(t, err)
	assert.True(t, d.fakes["primary"].Closed)
}

func TestReconcileOutput(t *testing.T) {
	a, d := newApp(t, false)
	tk := task(t, "volume", "vol_name: data\nvol_new_name: data2")
	tk.Diff = true

	out, err := a.Run(context.Background(), tk)
	require.NoError(t, err)
	assert.Equal(t, true, out["changed"])
	assert.Contains(t, out, "volume_details")
	assert.Contains(t, out, "diff")
	assert.Equal(t, []string{"setVolumeName"}, out["operations"])
	assert.Equal(t, "data2", d.fakes["primary"].Vols[0].Name)
}

func TestCheckModeIsRecordedAsPlanned(t *testing.T) {
	a, d := newApp(t, true)
	tk := task(t, "volume", "vol_name: logs\nsize: 8\nstorage_pool_id: sp-1")
	tk.CheckMode = true

	out, err := a.Run(context.Background(), tk)
	require.NoError(t, err)
	assert.Equal(t, true, out["changed"])
	assert.Empty(t, d.fakes["primary"].Calls)

	entries, err := a.Ledger().Recent(context.Background(), 10)
	require.NoError(t, err)
	require.NotEmpty(t, entries)
	for _, e := range entries {
		assert.Equal(t, ledger.EventOperationPlanned, e.EventType)
		assert.Equal(t, "volume", e.Source)
	}
}

func TestRemotePeer(t *testing.T) {
	remote := gatewaytest.New()
	remote.SystemInfo = gateway.System{ID: "sys-remote"}
	remote.Domains = []*gateway.ProtectionDomain{{ID: "rpd-1", Name: "remote-domain"}}

	params := func(peer string) string {
		return "rcg_name: dr\nrpo: 60\nprotection_domain_id: pd-1\nremote_peer:\n" + peer + "  protection_domain_id: rpd-1\n"
	}

	t.Run("named gateway", func(t *testing.T) {
		a, d := newApp(t, false)
		d.fakes["site-b-host"] = remote
		out, err := a.Run(context.Background(), task(t, "replication_consistency_group", params("  gateway: site-b\n")))
		require.NoError(t, err)
		assert.Equal(t, true, out["changed"])
		assert.Equal(t, []string{"primary", "site-b-host"}, d.hosts())
		assert.Contains(t, d.fakes["primary"].Calls, "createReplicationConsistencyGroup")
	})

	t.Run("inline connection", func(t *testing.T) {
		a, d := newApp(t, false)
		d.fakes["peer-host"] = remote
		_, err := a.Run(context.Background(), task(t, "replication_consistency_group",
			params("  hostname: peer-host\n  username: u\n  password: p\n")))
		require.NoError(t, err)
		require.Len(t, d.configs, 2)
		assert.Equal(t, "peer-host", d.configs[1].Hostname)
		assert.Equal(t, 443, d.configs[1].Port)
		assert.True(t, d.configs[1].ValidateCerts)
	})

	t.Run("unknown gateway", func(t *testing.T) {
		a, _ := newApp(t, false)
		_, err := a.Run(context.Background(), task(t, "replication_consistency_group", params("  gateway: site-z\n")))
		assert.True(t, errors.Is(err, errs.ErrInvalidParameter))
		assert.Contains(t, errs.Message(err), "site-b")
	})
}
