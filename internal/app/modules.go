package app

import (
	"bytes"
	"context"
	"io"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"

	"github.com/dokzlo13/pflexctl/internal/config"
	"github.com/dokzlo13/pflexctl/internal/errs"
	"github.com/dokzlo13/pflexctl/internal/info"
	"github.com/dokzlo13/pflexctl/internal/reconcile"
	"github.com/dokzlo13/pflexctl/internal/reconcile/rcg"
	"github.com/dokzlo13/pflexctl/internal/reconcile/sds"
	"github.com/dokzlo13/pflexctl/internal/reconcile/snapshotpolicy"
	"github.com/dokzlo13/pflexctl/internal/reconcile/storagepool"
	"github.com/dokzlo13/pflexctl/internal/reconcile/volume"
)

// Task is one module call.
type Task struct {
	Name      string    `yaml:"name"`
	Module    string    `yaml:"module"`
	Params    yaml.Node `yaml:"params"`
	CheckMode bool      `yaml:"check_mode"`
	Diff      bool      `yaml:"diff"`
}

// Output is a module result as reported to the caller.
type Output map[string]any

// Failure is the result reported for a failed module call.
func Failure(err error) Output {
	return Output{"changed": false, "failed": true, "msg": errs.Message(err)}
}

type runFunc func(ctx context.Context, inv *Invocation, task *Task) (Output, error)

type module struct {
	name string
	run  runFunc
}

var modules = map[string]module{}

func register(run runFunc, names ...string) {
	for _, name := range names {
		modules[name] = module{name: names[0], run: run}
	}
}

func init() {
	register(runInfo, "info", "gatherfacts", "info_v2")
	register(reconciler("volume_details", func(inv *Invocation, b Backend, p volume.Params) reconcile.Resource {
		return volume.NewResource(b, p, volume.Options{StrictSizeGranularity: inv.app.cfg.Engine.StrictSizeGranularity})
	}), "volume", "volume_v2")
	register(reconciler("storage_pool_details", func(_ *Invocation, b Backend, p storagepool.Params) reconcile.Resource {
		return storagepool.NewResource(b, p)
	}), "storagepool")
	register(reconciler("sds_details", func(_ *Invocation, b Backend, p sds.Params) reconcile.Resource {
		return sds.NewResource(b, p)
	}), "sds")
	register(reconciler("snapshot_policy_details", func(_ *Invocation, b Backend, p snapshotpolicy.Params) reconcile.Resource {
		return snapshotpolicy.NewResource(b, p)
	}), "snapshot_policy")
	register(reconciler("replication_consistency_group_details", func(inv *Invocation, b Backend, p rcg.Params) reconcile.Resource {
		return rcg.NewResource(b, inv.Remote, p)
	}), "replication_consistency_group")
}

// Modules lists the module names, aliases included.
func Modules() []string {
	names := make([]string, 0, len(modules))
	for name := range modules {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Run executes one task in its own invocation.
func (a *App) Run(ctx context.Context, task *Task) (Output, error) {
	mod, ok := modules[task.Module]
	if !ok {
		return nil, errs.WithHint(
			errs.Newf(errs.ErrInvalidParameter, "unknown module %q", task.Module),
			"modules: "+strings.Join(Modules(), ", "))
	}

	inv := a.newInvocation(mod.name)
	defer inv.Close()
	ctx = inv.Logger.WithContext(ctx)

	inv.Logger.Info().Str("task", task.Name).Bool("check_mode", task.CheckMode).Msg("Running module")

	out, err := mod.run(ctx, inv, task)
	if err != nil {
		inv.Logger.Error().Err(err).Msg("Module failed")
		return nil, err
	}
	inv.Logger.Info().Interface("changed", out["changed"]).Msg("Module finished")
	return out, nil
}

// withConnection lets every module take the connection overrides next to its own parameters.
type withConnection[P any] struct {
	config.Connection `yaml:",inline"`
	Params            P `yaml:",inline"`
}

func runInfo(ctx context.Context, inv *Invocation, task *Task) (Output, error) {
	var p withConnection[info.Params]
	if err := decodeParams(&task.Params, &p); err != nil {
		return nil, err
	}
	b, err := inv.Connect(ctx, p.Connection)
	if err != nil {
		return nil, err
	}
	res, err := info.Run(ctx, b, p.Params)
	if err != nil {
		return nil, err
	}
	return res.Map(), nil
}

func reconciler[P any](resultKey string, build func(inv *Invocation, b Backend, p P) reconcile.Resource) runFunc {
	return func(ctx context.Context, inv *Invocation, task *Task) (Output, error) {
		var p withConnection[P]
		if err := decodeParams(&task.Params, &p); err != nil {
			return nil, err
		}
		b, err := inv.Connect(ctx, p.Connection)
		if err != nil {
			return nil, err
		}

		res, err := inv.Engine().Reconcile(ctx, build(inv, b, p.Params), reconcile.Options{
			DryRun: task.CheckMode,
			Diff:   task.Diff,
		})
		if err != nil {
			return nil, err
		}

		out := Output{"changed": res.Changed, resultKey: res.Details}
		if len(res.Operations) > 0 {
			out["operations"] = res.Operations
		}
		if res.Diff != nil {
			out["diff"] = res.Diff
		}
		return out, nil
	}
}

// decodeParams decodes strictly: unknown parameters are rejected.
func decodeParams(node *yaml.Node, out any) error {
	if node == nil || node.Kind == 0 {
		return nil
	}
	raw, err := yaml.Marshal(node)
	if err != nil {
		return errs.Mark(errors.Wrap(err, "encode parameters"), errs.ErrInvalidParameter)
	}
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return errs.Mark(errors.Wrap(err, "decode parameters"), errs.ErrInvalidParameter)
	}
	return nil
}
