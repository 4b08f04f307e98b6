package schematic

import (
	"fmt"
	"sort"
	"sync"

	"github.com/simforge/simforge/internal/core/world"
)

// Registry binds schematic type ids to their appliers. Registration happens
// at startup and is error-on-duplicate; lookups afterwards are read-only.
type Registry struct {
	mu       sync.RWMutex
	appliers map[TypeID]Applier
}

func NewRegistry() *Registry {
	return &Registry{
		appliers: make(map[TypeID]Applier),
	}
}

func (r *Registry) Register(id TypeID, a Applier) error {
	if id == "" {
		return fmt.Errorf("register schematic: empty type id")
	}
	if a == nil {
		return fmt.Errorf("register schematic %q: nil applier", id)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.appliers[id]; exists {
		return fmt.Errorf("register schematic %q: %w", id, ErrDuplicateSchematic)
	}
	r.appliers[id] = a
	return nil
}

// Apply resolves the fragment's applier and runs it against the target
// entity. The returned error wraps ErrUnknownSchematic, ErrMalformedFragment
// or ErrWorldMutation depending on where the application broke.
func (r *Registry) Apply(acc *world.Access, target world.EntityID, frag Fragment) error {
	r.mu.RLock()
	a, ok := r.appliers[frag.Type]
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("apply fragment %q: %w", frag.Type, ErrUnknownSchematic)
	}
	if err := a.ApplyTo(acc, target, frag); err != nil {
		return fmt.Errorf("apply fragment %q: %w", frag.Type, err)
	}
	return nil
}

func (r *Registry) Has(id TypeID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.appliers[id]
	return ok
}

// Types returns all registered ids in lexical order.
func (r *Registry) Types() []TypeID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]TypeID, 0, len(r.appliers))
	for id := range r.appliers {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
