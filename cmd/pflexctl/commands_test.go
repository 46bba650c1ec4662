package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/dokzlo13/pflexctl/internal/errs"
)

func TestModuleCommandsAreRegistered(t *testing.T) {
	root := newRootCommand()
	for _, name := range []string{"info", "gatherfacts", "info_v2", "volume", "storagepool", "sds",
		"snapshot_policy", "replication_consistency_group", "apply", "run", "ledger"} {
		cmd, _, err := root.Find([]string{name})
		require.NoError(t, err, name)
		assert.Equal(t, name, cmd.Name())
	}
}

func TestSetupFallsBackToDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	c := &cli{configPath: defaultConfigPath, logLevel: "debug"}
	require.NoError(t, c.setup(newRootCommand()))
	assert.Equal(t, "debug", c.cfg.Log.Level)
	assert.Equal(t, 443, c.cfg.Gateway.Port)
}

func TestExplicitConfigMustExist(t *testing.T) {
	root := newRootCommand()
	root.SetArgs([]string{"--config", filepath.Join(t.TempDir(), "missing.yaml"), "ledger"})
	root.SetOut(&bytes.Buffer{})

	err := root.Execute()
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrInvalidParameter))
	assert.Equal(t, 2, errs.ExitCode(err))
}

func TestLedgerNeedsPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pflexctl.yaml")
	require.NoError(t, os.WriteFile(path, []byte("gateway:\n  hostname: gw\n  username: u\n  password: p\n"), 0o600))

	root := newRootCommand()
	root.SetArgs([]string{"-c", path, "ledger"})
	err := root.Execute()
	assert.True(t, errors.Is(err, errs.ErrInvalidParameter))
	assert.Contains(t, errs.Message(err), "ledger.path")
}

func TestReadParams(t *testing.T) {
	var node yaml.Node
	require.NoError(t, readParams("-", strings.NewReader("vol_name: data\nsize: 16\n"), &node))

	var p struct {
		VolName string `yaml:"vol_name"`
		Size    int    `yaml:"size"`
	}
	require.NoError(t, node.Decode(&p))
	assert.Equal(t, "data", p.VolName)
	assert.Equal(t, 16, p.Size)

	err := readParams("-", strings.NewReader("vol_name: [unclosed"), &node)
	assert.True(t, errors.Is(err, errs.ErrInvalidParameter))
}

func TestLedgerFiltersByType(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pflexctl.yaml")
	cfg := "ledger:\n  path: " + filepath.Join(dir, "ledger.db") + "\n"
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o600))

	var out bytes.Buffer
	root := newRootCommand()
	root.SetOut(&out)
	root.SetArgs([]string{"-c", path, "ledger", "--type", "failed"})
	require.NoError(t, root.Execute())
	assert.Equal(t, "null\n", out.String())

	root = newRootCommand()
	root.SetArgs([]string{"-c", path, "ledger", "--type", "applied"})
	err := root.Execute()
	assert.True(t, errors.Is(err, errs.ErrInvalidParameter))
}
