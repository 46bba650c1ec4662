package modules

import (
	"context"

	lua "github.com/yuin/gopher-lua"

	"github.com/dokzlo13/pflexctl/internal/app"
	"github.com/dokzlo13/pflexctl/internal/errs"
)

// Runner executes one module task.
type Runner interface {
	Run(ctx context.Context, task *app.Task) (app.Output, error)
}

// PflexModule exposes the PowerFlex modules to Lua:
//
//	local pflex = require("pflex")
//	local res = pflex.volume({vol_name = "data", size = 16}, {check_mode = true})
//	local same = pflex.run("volume", {vol_name = "data"})
//
// Each call returns the result table, or raises an error with the failure message.
type PflexModule struct {
	runner Runner
	names  []string
}

// NewPflexModule creates the module with one function per module name.
func NewPflexModule(runner Runner, names []string) *PflexModule {
	return &PflexModule{runner: runner, names: names}
}

// Loader is the module loader for Lua
func (m *PflexModule) Loader(L *lua.LState) int {
	mod := L.NewTable()

	for _, name := range m.names {
		name := name
		L.SetField(mod, name, L.NewFunction(func(L *lua.LState) int {
			return m.invoke(L, name, 1)
		}))
	}
	L.SetField(mod, "run", L.NewFunction(func(L *lua.LState) int {
		return m.invoke(L, L.CheckString(1), 2)
	}))

	L.Push(mod)
	return 1
}

// invoke reads (params, opts) starting at argument first.
func (m *PflexModule) invoke(L *lua.LState, module string, first int) int {
	params := L.OptTable(first, L.NewTable())
	opts := L.OptTable(first+1, L.NewTable())

	task := &app.Task{
		Name:      module,
		Module:    module,
		CheckMode: lua.LVAsBool(opts.RawGetString("check_mode")),
		Diff:      lua.LVAsBool(opts.RawGetString("diff")),
	}
	if name, ok := opts.RawGetString("name").(lua.LString); ok {
		task.Name = string(name)
	}
	if err := task.Params.Encode(LuaTableToMap(params)); err != nil {
		L.RaiseError("%s: invalid parameters: %s", module, err.Error())
		return 0
	}

	ctx := L.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	out, err := m.runner.Run(ctx, task)
	if err != nil {
		L.RaiseError("%s", errs.Message(err))
		return 0
	}

	L.Push(GoToLuaValue(L, map[string]any(out)))
	return 1
}
