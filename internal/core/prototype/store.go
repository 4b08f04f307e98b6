package prototype

import (
	"fmt"
	"sort"
	"sync"

	"github.com/simforge/simforge/internal/core/assets"
	"github.com/simforge/simforge/internal/core/observability/log"
	"github.com/simforge/simforge/internal/core/observability/metrics"
)

// Store owns named prototype descriptors. Loading is asynchronous: a
// RequestLoad schedules the fetch and returns immediately; Sync, called once
// per tick by the update loop, folds resolved fetches into published
// descriptors. Readers always observe a whole descriptor — publication is a
// single pointer swap under the store lock, never an in-place edit.
type Store struct {
	loader *assets.Loader
	lg     log.Log
	m      *metrics.Metrics

	mu      sync.RWMutex
	records map[string]*record
}

type record struct {
	name   string
	handle *assets.Handle
	state  assets.State
	desc   *Descriptor
	sum    uint64
	err    error
	// pending marks an outstanding fetch whose resolution Sync has not
	// folded yet.
	pending bool
}

// Handle is an opaque reference to one named prototype slot. Copyable;
// all reads go through the store.
type Handle struct {
	store *Store
	name  string
}

func NewStore(loader *assets.Loader, lg log.Log, m *metrics.Metrics) *Store {
	return &Store{
		loader:  loader,
		lg:      lg,
		m:       m,
		records: make(map[string]*record),
	}
}

// RequestLoad schedules the named prototype's source fetch and returns its
// handle. Non-blocking. Requesting an already known name returns the
// existing handle untouched.
func (s *Store) RequestLoad(name, sourceRef string) Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[name]; !ok {
		s.records[name] = &record{
			name:    name,
			handle:  s.loader.Load(sourceRef),
			state:   assets.StateLoading,
			pending: true,
		}
		s.lg.Debug("prototype load requested",
			log.String("prototype", name),
			log.String("ref", sourceRef),
		)
	}
	return Handle{store: s, name: name}
}

// Reload re-fetches the named prototype's source. The currently published
// descriptor keeps serving until the new one is parsed and swapped in; a
// fetch or parse failure transitions the slot to Failed.
func (s *Store) Reload(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[name]
	if !ok {
		return fmt.Errorf("reload %q: %w", name, ErrUnknownPrototype)
	}
	rec.pending = true
	s.loader.Reload(rec.handle)
	return nil
}

// Sync folds resolved fetches into the store. Called once per tick during
// the polling phase; everything it publishes becomes visible atomically to
// subsequent phases.
func (s *Store) Sync() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range s.records {
		if !rec.pending {
			continue
		}
		switch rec.handle.State() {
		case assets.StateLoading:
			// Fetch still in flight.
		case assets.StateFailed:
			rec.pending = false
			s.fail(rec, rec.handle.Err())
		case assets.StateReady:
			rec.pending = false
			data, _ := rec.handle.Data()
			sum := rec.handle.Sum()
			if rec.state == assets.StateReady && sum == rec.sum {
				s.lg.Debug("prototype unchanged", log.String("prototype", rec.name))
				continue
			}
			s.publish(rec, data, sum)
		}
	}
}

func (s *Store) publish(rec *record, data []byte, sum uint64) {
	desc, err := Parse(data)
	if err != nil {
		s.fail(rec, err)
		return
	}
	if desc.Name != rec.name {
		s.fail(rec, fmt.Errorf("%w: descriptor declares name %q, registered as %q",
			ErrDescriptorParse, desc.Name, rec.name))
		return
	}
	reloaded := rec.state == assets.StateReady
	rec.state = assets.StateReady
	rec.desc = desc
	rec.sum = sum
	rec.err = nil
	if reloaded {
		s.m.PrototypeLoad(metrics.OutcomeReloaded)
		s.lg.Info("prototype reloaded",
			log.String("prototype", rec.name),
			log.Int("fragments", len(desc.Fragments)),
		)
		return
	}
	s.m.PrototypeLoad(metrics.OutcomeReady)
	s.lg.Info("prototype ready",
		log.String("prototype", rec.name),
		log.Int("fragments", len(desc.Fragments)),
	)
}

func (s *Store) fail(rec *record, err error) {
	rec.state = assets.StateFailed
	rec.desc = nil
	rec.sum = 0
	rec.err = err
	s.m.PrototypeLoad(metrics.OutcomeFailed)
	s.lg.Warn("prototype load failed",
		log.String("prototype", rec.name),
		log.Error(err),
	)
}

// Ready is the readiness predicate consumed by scheduler run-conditions.
func (s *Store) Ready(name string) bool {
	st, _ := s.State(name)
	return st == assets.StateReady
}

// State returns the load state of the named slot. ok is false for names
// never requested.
func (s *Store) State(name string) (assets.State, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[name]
	if !ok {
		return assets.StateFailed, false
	}
	return rec.state, true
}

// Descriptor returns the published descriptor for the named prototype.
func (s *Store) Descriptor(name string) (*Descriptor, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[name]
	if !ok || rec.state != assets.StateReady {
		return nil, false
	}
	return rec.desc, true
}

// Err returns the recorded failure for the named slot, nil unless Failed.
func (s *Store) Err(name string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[name]
	if !ok {
		return fmt.Errorf("%q: %w", name, ErrUnknownPrototype)
	}
	if rec.state != assets.StateFailed {
		return nil
	}
	return rec.err
}

// Names returns all requested prototype names in lexical order.
func (s *Store) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.records))
	for name := range s.records {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (h Handle) Name() string {
	return h.name
}

// State polls the slot's load state. Pure query.
func (h Handle) State() assets.State {
	if h.store == nil {
		return assets.StateFailed
	}
	st, _ := h.store.State(h.name)
	return st
}

// Get returns the published descriptor, present only when State is Ready.
func (h Handle) Get() (*Descriptor, bool) {
	if h.store == nil {
		return nil, false
	}
	return h.store.Descriptor(h.name)
}

// Err returns the recorded failure reason, nil unless the slot is Failed.
func (h Handle) Err() error {
	if h.store == nil {
		return fmt.Errorf("zero prototype handle")
	}
	return h.store.Err(h.name)
}
