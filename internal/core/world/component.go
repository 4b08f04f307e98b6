package world

// ComponentKind names a component type. An entity holds at most one
// component per kind.
type ComponentKind string

// Component is one unit of entity state. Implementations are plain data
// structs; Kind ties the value to its per-kind store.
type Component interface {
	Kind() ComponentKind
}
