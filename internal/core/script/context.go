package script

import (
	"github.com/google/uuid"

	"github.com/simforge/simforge/internal/core/world"
)

// ContextState is the lifecycle position of one script association.
//
//	Unloaded -> Loading -> Attached <-> Running
//	                 \          \
//	                  (attach    -> Detached (discarded; re-enters
//	                   failure       Loading when still live)
//	                   -> Unloaded)
type ContextState uint8

const (
	StateUnloaded ContextState = iota
	StateLoading
	StateAttached
	StateRunning
	StateDetached
)

func (s ContextState) String() string {
	switch s {
	case StateUnloaded:
		return "unloaded"
	case StateLoading:
		return "loading"
	case StateAttached:
		return "attached"
	case StateRunning:
		return "running"
	case StateDetached:
		return "detached"
	default:
		return "unknown"
	}
}

// ContextInfo is a read-only snapshot of one association, taken under the
// host lock.
type ContextInfo struct {
	// ID identifies the live execution context. It changes every time the
	// association re-attaches; zero while no context is bound.
	ID     uuid.UUID
	Script string
	Ref    string
	Owner  world.EntityID
	Owned  bool
	State  ContextState
	// Err is the last attach failure, nil once an attach succeeds.
	Err error
}
