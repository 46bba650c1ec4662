package lua

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dokzlo13/pflexctl/internal/app"
	"github.com/dokzlo13/pflexctl/internal/errs"
)

type volumeParams struct {
	VolName      string   `yaml:"vol_name"`
	Size         int      `yaml:"size"`
	GatherSubset []string `yaml:"gather_subset"`
}

type recordingRunner struct {
	tasks  []*app.Task
	params []volumeParams
}

func (r *recordingRunner) Run(_ context.Context, t *app.Task) (app.Output, error) {
	var p volumeParams
	if err := t.Params.Decode(&p); err != nil {
		return nil, err
	}
	r.tasks = append(r.tasks, t)
	r.params = append(r.params, p)

	if p.VolName == "missing" {
		return nil, errs.Newf(errs.ErrNotFound, "volume %q not found", p.VolName)
	}
	return app.Output{
		"changed":        !t.CheckMode,
		"volume_details": map[string]any{"name": p.VolName, "sizeInKb": 16777216},
		"operations":     []string{"createVolume"},
	}, nil
}

func newRuntime(t *testing.T) (*Runtime, *recordingRunner) {
	t.Helper()
	runner := &recordingRunner{}
	rt := NewRuntime(runner, []string{"volume", "info"})
	t.Cleanup(rt.Close)
	return rt, runner
}

func TestModuleCall(t *testing.T) {
	rt, runner := newRuntime(t)
	err := rt.DoString(context.Background(), `
		local pflex = require("pflex")
		local res = pflex.volume({vol_name = "data", size = 16}, {check_mode = true, name = "make data"})
		assert(res.changed == false, "check mode reports no change")
		assert(res.volume_details.name == "data")
		assert(res.operations[1] == "createVolume")
	`)
	require.NoError(t, err)

	require.Len(t, runner.tasks, 1)
	task := runner.tasks[0]
	assert.Equal(t, "volume", task.Module)
	assert.Equal(t, "make data", task.Name)
	assert.True(t, task.CheckMode)
	assert.Equal(t, volumeParams{VolName: "data", Size: 16}, runner.params[0])
}

func TestRunByName(t *testing.T) {
	rt, runner := newRuntime(t)
	err := rt.DoString(context.Background(), `
		local pflex = require("pflex")
		pflex.run("info", {gather_subset = {"vol", "sds"}})
	`)
	require.NoError(t, err)
	require.Len(t, runner.tasks, 1)
	assert.Equal(t, "info", runner.tasks[0].Module)
	assert.Equal(t, []string{"vol", "sds"}, runner.params[0].GatherSubset)
}

func TestFailureRaises(t *testing.T) {
	rt, _ := newRuntime(t)
	err := rt.DoString(context.Background(), `
		local pflex = require("pflex")
		local ok, msg = pcall(pflex.volume, {vol_name = "missing"})
		assert(not ok)
		assert(string.find(msg, "not found"), msg)
		pflex.volume({vol_name = "missing"})
	`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestLogModule(t *testing.T) {
	rt, _ := newRuntime(t)
	err := rt.DoString(context.Background(), `
		local log = require("log")
		log.info("hello", {count = 2, tags = {"a", "b"}})
		log.debug("plain")
	`)
	require.NoError(t, err)
}
