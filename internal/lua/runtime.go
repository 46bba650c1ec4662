// Package lua runs PowerFlex automation scripts.
//
// Scripts get require("pflex") for the modules and require("log") for logging.
// A Runtime wraps one Lua state and is not safe for concurrent use.
package lua

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog/log"
	lua "github.com/yuin/gopher-lua"

	"github.com/dokzlo13/pflexctl/internal/lua/modules"
)

// Runtime manages the Lua VM
type Runtime struct {
	L *lua.LState
}

// NewRuntime creates a runtime whose pflex module calls runner. names are the
// module names exposed as functions.
func NewRuntime(runner modules.Runner, names []string) *Runtime {
	r := &Runtime{L: lua.NewState()}
	r.registerModules(runner, names)
	return r
}

// registerModules registers all Lua modules
func (r *Runtime) registerModules(runner modules.Runner, names []string) {
	r.L.PreloadModule("log", modules.NewLogModule().Loader)
	r.L.PreloadModule("pflex", modules.NewPflexModule(runner, names).Loader)
}

// Close closes the Lua state.
func (r *Runtime) Close() {
	r.L.Close()
}

// DoFile runs a script. ctx bounds every module call made by the script.
func (r *Runtime) DoFile(ctx context.Context, path string) error {
	log.Info().Str("path", path).Msg("Running Lua script")

	r.L.SetContext(ctx)
	if err := r.L.DoFile(path); err != nil {
		return errors.Wrapf(err, "lua script %s", path)
	}

	log.Info().Msg("Lua script finished")
	return nil
}

// DoString runs a chunk of Lua source.
func (r *Runtime) DoString(ctx context.Context, src string) error {
	r.L.SetContext(ctx)
	if err := r.L.DoString(src); err != nil {
		return errors.Wrap(err, "lua chunk")
	}
	return nil
}
