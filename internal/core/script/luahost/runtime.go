// Package luahost runs script contexts on a Lua 5.2 interpreter. Each
// context owns an isolated interpreter state; installed API functions are
// registered as globals before the chunk runs, and hooks are plain global
// Lua functions looked up by event name.
package luahost

import (
	"fmt"

	"github.com/Shopify/go-lua"

	"github.com/simforge/simforge/internal/core/observability/log"
	"github.com/simforge/simforge/internal/core/script"
	"github.com/simforge/simforge/internal/core/world"
)

type Runtime struct {
	lg log.Log
}

func New(lg log.Log) *Runtime {
	return &Runtime{lg: lg}
}

func (r *Runtime) Name() string { return "lua" }

// NewInstance builds an interpreter, registers the bound API surface and
// runs the chunk's top level. Hook functions the chunk defines become
// callable afterwards; any load or top-level error aborts the attach.
func (r *Runtime) NewInstance(unit script.CompileUnit, bind script.Binding) (script.Instance, error) {
	state := lua.NewState()
	lua.OpenLibraries(state)

	inst := &instance{name: unit.Name, state: state, lg: r.lg}
	for _, fn := range bind.Functions {
		inst.register(fn)
	}

	if err := lua.LoadBuffer(state, string(unit.Source), unit.Name, ""); err != nil {
		return nil, fmt.Errorf("load lua: %w", err)
	}
	if err := state.ProtectedCall(0, 0, 0); err != nil {
		return nil, fmt.Errorf("run lua: %w", err)
	}
	return inst, nil
}

type instance struct {
	name  string
	state *lua.State
	lg    log.Log

	// acc is the scoped world access of the invocation currently running.
	// It is set for the duration of Invoke and nil outside it, so an API
	// function can never write the world between ticks.
	acc *world.Access
}

// register exposes one API function as a Lua global. Arguments are bridged
// to Go values, errors raise Lua errors that surface through the hook's
// protected call.
func (i *instance) register(fn script.Function) {
	name := fn.Name
	call := fn.Call
	i.state.Register(name, func(state *lua.State) int {
		args := collectArgs(state)
		result, err := call(i.acc, args)
		if err != nil {
			lua.Errorf(state, "%s: %s", name, err.Error())
			return 0
		}
		if result == nil {
			return 0
		}
		pushValue(state, result)
		return 1
	})
}

func (i *instance) HasHook(name string) bool {
	i.state.Global(name)
	defined := i.state.TypeOf(-1) == lua.TypeFunction
	i.state.Pop(1)
	return defined
}

func (i *instance) Invoke(acc *world.Access, hook string, args any) error {
	i.state.Global(hook)
	if i.state.TypeOf(-1) != lua.TypeFunction {
		i.state.Pop(1)
		return fmt.Errorf("hook %q is not a function", hook)
	}

	argCount := 0
	if args != nil {
		pushValue(i.state, args)
		argCount = 1
	}

	i.acc = acc
	defer func() { i.acc = nil }()
	if err := i.state.ProtectedCall(argCount, 0, 0); err != nil {
		return fmt.Errorf("run lua: %w", err)
	}
	return nil
}

func (i *instance) Close() error {
	// The interpreter is pure Go; dropping the reference releases it.
	i.state = nil
	return nil
}
