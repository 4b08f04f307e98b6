// Package schematic maps stable type identifiers to appliers: capabilities
// that turn one structured data fragment into a mutation of a single entity.
// Appliers are registered once at startup; descriptor assembly and script
// driven spawning both resolve fragments through the same registry.
package schematic

import (
	"fmt"

	"github.com/simforge/simforge/internal/core/world"
)

// TypeID names a registered schematic kind. Unique across one registry.
type TypeID string

// Applier knows how to apply one fragment kind to one entity. An applier
// mutates exactly the target entity (one component or one resource it is
// responsible for); fan-out belongs to the command layer, never here.
//
// Implementations classify their failures by wrapping ErrMalformedFragment
// for shape mismatches and ErrWorldMutation for rejected world writes, so
// callers can tell user data errors from world state errors.
type Applier interface {
	ApplyTo(acc *world.Access, target world.EntityID, frag Fragment) error
}

// Func adapts a closure to the Applier interface.
type Func func(acc *world.Access, target world.EntityID, frag Fragment) error

func (f Func) ApplyTo(acc *world.Access, target world.EntityID, frag Fragment) error {
	return f(acc, target, frag)
}

// ComponentType builds an applier for a component-backed schematic kind.
// The decode function supplied at registration is the kind's own typed
// parser; no reflection is involved anywhere on this path.
func ComponentType[T world.Component](decode func(Fragment) (T, error)) Applier {
	return Func(func(acc *world.Access, target world.EntityID, frag Fragment) error {
		c, err := decode(frag)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrMalformedFragment, err)
		}
		if err = acc.Insert(target, c); err != nil {
			return fmt.Errorf("%w: insert %q: %v", ErrWorldMutation, c.Kind(), err)
		}
		return nil
	})
}

// ResourceType builds an applier that publishes a world resource under a
// fixed name instead of attaching a component.
func ResourceType(name string, decode func(Fragment) (any, error)) Applier {
	return Func(func(acc *world.Access, _ world.EntityID, frag Fragment) error {
		v, err := decode(frag)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrMalformedFragment, err)
		}
		if err = acc.SetResource(name, v); err != nil {
			return fmt.Errorf("%w: set resource %q: %v", ErrWorldMutation, name, err)
		}
		return nil
	})
}
