package script

import "github.com/simforge/simforge/internal/core/world"

// Function is one host callable exposed to scripts. Call receives the
// scoped world access for the current invocation plus arguments decoded
// from the script's native values; it returns a bridgeable value or an
// error the runtime surfaces to the script.
type Function struct {
	Name string
	Doc  string
	Call func(acc *world.Access, args []any) (any, error)
}

// Provider bundles host functions under one name. Providers install at host
// construction time, before any context attaches, and are immutable after.
type Provider interface {
	Name() string
	Functions() []Function
}

// DocFragment is one piece of recorded API documentation, kept for
// introspection tooling.
type DocFragment struct {
	Provider string
	Function string
	Text     string
}

type staticProvider struct {
	name string
	fns  []Function
}

// NewProvider builds a fixed-function provider.
func NewProvider(name string, fns ...Function) Provider {
	return &staticProvider{name: name, fns: fns}
}

func (p *staticProvider) Name() string          { return p.name }
func (p *staticProvider) Functions() []Function { return p.fns }
