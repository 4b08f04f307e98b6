package script

import "github.com/simforge/simforge/internal/core/world"

// CompileUnit is one script source ready to compile, identified by the
// script's registered name for error and log attribution.
type CompileUnit struct {
	Name   string
	Source []byte
}

// Binding carries the full installed API surface into a fresh instance.
// The host assembles it from every installed provider; runtimes expose each
// function to the script under its registered name.
type Binding struct {
	Functions []Function
}

// Runtime abstracts the embedded interpreter. Implementations own grammar,
// compilation and value representation; the host only sequences lifecycles
// and hook invocations.
type Runtime interface {
	Name() string
	// NewInstance compiles the unit and binds one isolated execution
	// environment with the binding's functions installed. Failures are
	// attach failures: nothing of the instance survives.
	NewInstance(unit CompileUnit, bind Binding) (Instance, error)
}

// Instance is one live script execution environment. Instances are used by
// a single goroutine; the host serializes all invocations.
type Instance interface {
	// HasHook reports whether the script defines the named hook.
	HasHook(name string) bool
	// Invoke runs the named hook with args bridged to interpreter-native
	// values. API functions called by the hook run against acc; the host
	// revokes acc when the surrounding phase ends.
	Invoke(acc *world.Access, hook string, args any) error
	Close() error
}
