package world

import (
	"fmt"
	"sync"
	"sync/atomic"
)

var _ World = (*Memory)(nil)

// Memory is the in-memory reference World. It is safe for concurrent use,
// though the update loop that drives this core serializes writers anyway.
type Memory struct {
	nextID atomic.Uint64

	mu       sync.RWMutex
	entities map[EntityID]struct{}
	kinds    map[ComponentKind]*kindStore

	resMu     sync.RWMutex
	resources map[string]any
}

type kindStore struct {
	mu   sync.RWMutex
	data map[EntityID]Component
}

func newKindStore() *kindStore {
	return &kindStore{data: make(map[EntityID]Component)}
}

func NewMemory() *Memory {
	return &Memory{
		entities:  make(map[EntityID]struct{}),
		kinds:     make(map[ComponentKind]*kindStore),
		resources: make(map[string]any),
	}
}

func (m *Memory) Spawn() EntityID {
	id := EntityID(m.nextID.Add(1))
	m.mu.Lock()
	m.entities[id] = struct{}{}
	m.mu.Unlock()
	return id
}

func (m *Memory) Despawn(id EntityID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entities[id]; !ok {
		return fmt.Errorf("despawn %d: %w", id, ErrEntityNotFound)
	}
	delete(m.entities, id)
	for _, ks := range m.kinds {
		ks.mu.Lock()
		delete(ks.data, id)
		ks.mu.Unlock()
	}
	return nil
}

func (m *Memory) Alive(id EntityID) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.entities[id]
	return ok
}

func (m *Memory) Insert(id EntityID, c Component) error {
	if !m.Alive(id) {
		return fmt.Errorf("insert %q on %d: %w", c.Kind(), id, ErrEntityNotFound)
	}
	ks := m.store(c.Kind())
	ks.mu.Lock()
	ks.data[id] = c
	ks.mu.Unlock()
	return nil
}

func (m *Memory) Component(id EntityID, kind ComponentKind) (Component, error) {
	if !m.Alive(id) {
		return nil, fmt.Errorf("component %q of %d: %w", kind, id, ErrEntityNotFound)
	}
	m.mu.RLock()
	ks, ok := m.kinds[kind]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("component %q of %d: %w", kind, id, ErrComponentNotFound)
	}
	ks.mu.RLock()
	c, ok := ks.data[id]
	ks.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("component %q of %d: %w", kind, id, ErrComponentNotFound)
	}
	return c, nil
}

func (m *Memory) Remove(id EntityID, kind ComponentKind) error {
	if !m.Alive(id) {
		return fmt.Errorf("remove %q from %d: %w", kind, id, ErrEntityNotFound)
	}
	m.mu.RLock()
	ks, ok := m.kinds[kind]
	m.mu.RUnlock()
	if !ok {
		return fmt.Errorf("remove %q from %d: %w", kind, id, ErrComponentNotFound)
	}
	ks.mu.Lock()
	defer ks.mu.Unlock()
	if _, ok = ks.data[id]; !ok {
		return fmt.Errorf("remove %q from %d: %w", kind, id, ErrComponentNotFound)
	}
	delete(ks.data, id)
	return nil
}

func (m *Memory) EntitiesWith(kind ComponentKind) []EntityID {
	m.mu.RLock()
	ks, ok := m.kinds[kind]
	m.mu.RUnlock()
	if !ok {
		return nil
	}
	ks.mu.RLock()
	defer ks.mu.RUnlock()
	ids := make([]EntityID, 0, len(ks.data))
	for id := range ks.data {
		ids = append(ids, id)
	}
	return ids
}

// Count reports the number of live entities.
func (m *Memory) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entities)
}

func (m *Memory) SetResource(name string, value any) {
	m.resMu.Lock()
	m.resources[name] = value
	m.resMu.Unlock()
}

func (m *Memory) Resource(name string) (any, bool) {
	m.resMu.RLock()
	defer m.resMu.RUnlock()
	v, ok := m.resources[name]
	return v, ok
}

func (m *Memory) store(kind ComponentKind) *kindStore {
	m.mu.Lock()
	defer m.mu.Unlock()
	ks, ok := m.kinds[kind]
	if !ok {
		ks = newKindStore()
		m.kinds[kind] = ks
	}
	return ks
}
