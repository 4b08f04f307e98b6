package world

// EntityID identifies one live entity. IDs are allocated by the world and
// never reused within a process.
type EntityID uint64

// World is the entity-component storage contract this core mutates through.
// The storage engine itself is a collaborator: any implementation may back
// it, as long as the operations below behave as documented. All mutation
// performed by this core goes through a scoped Access token rather than a
// raw World, so implementations do not need to defend against calls that
// outlive an update phase.
type World interface {
	// Spawn allocates a new empty entity and returns its id.
	Spawn() EntityID
	// Despawn removes an entity and all of its components.
	// Returns ErrEntityNotFound if the entity does not exist.
	Despawn(id EntityID) error
	// Alive reports whether the entity currently exists.
	Alive(id EntityID) bool

	// Insert attaches or replaces the component of c's kind on the entity.
	Insert(id EntityID, c Component) error
	// Component returns the component of the given kind attached to the
	// entity. Returns ErrComponentNotFound if the entity has no such
	// component, ErrEntityNotFound if the entity does not exist.
	Component(id EntityID, kind ComponentKind) (Component, error)
	// Remove detaches the component of the given kind from the entity.
	Remove(id EntityID, kind ComponentKind) error
	// EntitiesWith returns the ids of all entities carrying a component of
	// the given kind, in unspecified order.
	EntitiesWith(kind ComponentKind) []EntityID

	// SetResource stores a world-global named value.
	SetResource(name string, value any)
	// Resource returns a world-global named value.
	Resource(name string) (any, bool)
}
