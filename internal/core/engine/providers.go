package engine

import (
	"errors"
	"fmt"

	"github.com/simforge/simforge/internal/core/observability/log"
	"github.com/simforge/simforge/internal/core/script"
	"github.com/simforge/simforge/internal/core/spawn"
	"github.com/simforge/simforge/internal/core/world"
)

// CoreProvider exposes logging and basic entity queries to scripts.
func CoreProvider(lg log.Log) script.Provider {
	return script.NewProvider("core",
		script.Function{
			Name: "log_info",
			Doc:  "log_info(message): write a message to the host log.",
			Call: func(_ *world.Access, args []any) (any, error) {
				if len(args) == 0 {
					return nil, errors.New("log_info: message required")
				}
				lg.Info("script log", log.Any("message", args[0]))
				return nil, nil
			},
		},
		script.Function{
			Name: "entity_alive",
			Doc:  "entity_alive(id): report whether the entity exists.",
			Call: func(acc *world.Access, args []any) (any, error) {
				if acc == nil {
					return nil, errNoAccess
				}
				id, err := entityArg(args, 0)
				if err != nil {
					return nil, fmt.Errorf("entity_alive: %w", err)
				}
				return acc.Alive(id), nil
			},
		},
		script.Function{
			Name: "despawn",
			Doc:  "despawn(id): remove the entity and all its components.",
			Call: func(acc *world.Access, args []any) (any, error) {
				if acc == nil {
					return nil, errNoAccess
				}
				id, err := entityArg(args, 0)
				if err != nil {
					return nil, fmt.Errorf("despawn: %w", err)
				}
				return nil, acc.Despawn(id)
			},
		},
	)
}

// SpawnProvider exposes prototype instantiation to scripts.
func SpawnProvider(commands *spawn.Commands) script.Provider {
	return script.NewProvider("spawn",
		script.Function{
			Name: "spawn_prototype",
			Doc:  "spawn_prototype(name): instantiate a ready prototype, returns the new entity id.",
			Call: func(acc *world.Access, args []any) (any, error) {
				if acc == nil {
					return nil, errNoAccess
				}
				name, err := stringArg(args, 0)
				if err != nil {
					return nil, fmt.Errorf("spawn_prototype: %w", err)
				}
				id, err := commands.Spawn(acc, name)
				if err != nil {
					return nil, err
				}
				return id, nil
			},
		},
		script.Function{
			Name: "prototype_ready",
			Doc:  "prototype_ready(name): report whether the named prototype is spawnable.",
			Call: func(_ *world.Access, args []any) (any, error) {
				name, err := stringArg(args, 0)
				if err != nil {
					return nil, fmt.Errorf("prototype_ready: %w", err)
				}
				return commands.Ready(name), nil
			},
		},
	)
}

// errNoAccess fires when an API function runs outside a hook invocation,
// e.g. from a chunk's top level where no world access is scoped.
var errNoAccess = errors.New("world access is only available inside hook invocations")

func entityArg(args []any, i int) (world.EntityID, error) {
	if i >= len(args) {
		return 0, fmt.Errorf("argument %d: entity id required", i+1)
	}
	switch v := args[i].(type) {
	case world.EntityID:
		return v, nil
	case int:
		return world.EntityID(v), nil
	case int64:
		return world.EntityID(v), nil
	case float64:
		return world.EntityID(v), nil
	default:
		return 0, fmt.Errorf("argument %d: entity id required, got %T", i+1, args[i])
	}
}

func stringArg(args []any, i int) (string, error) {
	if i >= len(args) {
		return "", fmt.Errorf("argument %d: string required", i+1)
	}
	s, ok := args[i].(string)
	if !ok {
		return "", fmt.Errorf("argument %d: string required, got %T", i+1, args[i])
	}
	return s, nil
}
