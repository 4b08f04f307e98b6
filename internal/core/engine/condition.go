package engine

import "github.com/simforge/simforge/internal/core/prototype"

// Condition gates a system for one tick. A system's conditions evaluate in
// registration order and short-circuit: a later condition is only consulted
// when every earlier one passed. Order therefore matters for stateful
// conditions like Once.
type Condition func() bool

// WhenReady passes while the named prototype is spawnable.
func WhenReady(store *prototype.Store, name string) Condition {
	return func() bool { return store.Ready(name) }
}

// Once consumes itself on first evaluation. Place it after any gating
// conditions so it burns only when the system actually runs:
//
//	eng.AddSystem("spawn player", spawnPlayer,
//		engine.WhenReady(store, "Player"),
//		engine.Once(),
//	)
func Once() Condition {
	done := false
	return func() bool {
		if done {
			return false
		}
		done = true
		return true
	}
}
