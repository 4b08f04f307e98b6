package world

import "sync/atomic"

// Access is a scoped world-access token. The update loop issues one per
// phase or per host-function call and revokes it when the call returns, so
// no callee can retain a live path into the world past its invocation.
// Every method fails with ErrAccessRevoked once Release has been called.
type Access struct {
	world    World
	released atomic.Bool
}

func NewAccess(w World) *Access {
	return &Access{world: w}
}

// Release revokes the token. Idempotent.
func (a *Access) Release() {
	a.released.Store(true)
}

func (a *Access) Released() bool {
	return a.released.Load()
}

func (a *Access) Spawn() (EntityID, error) {
	if a.released.Load() {
		return 0, ErrAccessRevoked
	}
	return a.world.Spawn(), nil
}

func (a *Access) Despawn(id EntityID) error {
	if a.released.Load() {
		return ErrAccessRevoked
	}
	return a.world.Despawn(id)
}

func (a *Access) Alive(id EntityID) bool {
	if a.released.Load() {
		return false
	}
	return a.world.Alive(id)
}

func (a *Access) Insert(id EntityID, c Component) error {
	if a.released.Load() {
		return ErrAccessRevoked
	}
	return a.world.Insert(id, c)
}

func (a *Access) Component(id EntityID, kind ComponentKind) (Component, error) {
	if a.released.Load() {
		return nil, ErrAccessRevoked
	}
	return a.world.Component(id, kind)
}

func (a *Access) Remove(id EntityID, kind ComponentKind) error {
	if a.released.Load() {
		return ErrAccessRevoked
	}
	return a.world.Remove(id, kind)
}

func (a *Access) EntitiesWith(kind ComponentKind) []EntityID {
	if a.released.Load() {
		return nil
	}
	return a.world.EntitiesWith(kind)
}

func (a *Access) SetResource(name string, value any) error {
	if a.released.Load() {
		return ErrAccessRevoked
	}
	a.world.SetResource(name, value)
	return nil
}

func (a *Access) Resource(name string) (any, error) {
	if a.released.Load() {
		return nil, ErrAccessRevoked
	}
	v, ok := a.world.Resource(name)
	if !ok {
		return nil, ErrResourceNotFound
	}
	return v, nil
}
