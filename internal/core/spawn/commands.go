// Package spawn assembles live entities out of prototype descriptors. It is
// the one place fragment application fans out over a whole descriptor, and
// the only sanctioned entity factory for both engine systems and scripts.
package spawn

import (
	"fmt"

	"github.com/simforge/simforge/internal/core/assets"
	"github.com/simforge/simforge/internal/core/observability/log"
	"github.com/simforge/simforge/internal/core/observability/metrics"
	"github.com/simforge/simforge/internal/core/prototype"
	"github.com/simforge/simforge/internal/core/schematic"
	"github.com/simforge/simforge/internal/core/world"
)

type Commands struct {
	store *prototype.Store
	reg   *schematic.Registry
	lg    log.Log
	m     *metrics.Metrics
}

func NewCommands(store *prototype.Store, reg *schematic.Registry, lg log.Log, m *metrics.Metrics) *Commands {
	return &Commands{
		store: store,
		reg:   reg,
		lg:    lg,
		m:     m,
	}
}

// Spawn assembles one entity from the named prototype. The prototype must
// be Ready, else ErrPrototypeNotReady; gate callers on the store's
// readiness predicate. Assembly is atomic: fragments apply in declaration
// order, and any failure despawns the partial entity before the error is
// returned — a failed Spawn leaves no trace in the world.
func (c *Commands) Spawn(acc *world.Access, name string) (world.EntityID, error) {
	desc, ok := c.store.Descriptor(name)
	if !ok {
		c.m.Spawn(metrics.OutcomeNotReady)
		return 0, c.notReady(name)
	}

	id, err := acc.Spawn()
	if err != nil {
		c.m.Spawn(metrics.OutcomeError)
		return 0, fmt.Errorf("spawn %q: %w", name, err)
	}

	for i, frag := range desc.Fragments {
		if err = c.reg.Apply(acc, id, frag); err != nil {
			c.rollback(acc, name, id)
			c.m.Spawn(metrics.OutcomeError)
			return 0, fmt.Errorf("spawn %q: fragment %d: %w", name, i, err)
		}
	}

	c.m.Spawn(metrics.OutcomeOK)
	c.lg.Debug("prototype spawned",
		log.String("prototype", name),
		log.Uint64("entity", uint64(id)),
		log.Int("fragments", len(desc.Fragments)),
	)
	return id, nil
}

// Ready reports whether Spawn would currently accept the named prototype.
func (c *Commands) Ready(name string) bool {
	return c.store.Ready(name)
}

func (c *Commands) rollback(acc *world.Access, name string, id world.EntityID) {
	if err := acc.Despawn(id); err != nil {
		// The entity is unreachable either way; record the anomaly.
		c.lg.Error("rollback despawn failed",
			log.String("prototype", name),
			log.Uint64("entity", uint64(id)),
			log.Error(err),
		)
	}
}

func (c *Commands) notReady(name string) error {
	st, known := c.store.State(name)
	if !known {
		return fmt.Errorf("spawn %q: %w: load never requested", name, ErrPrototypeNotReady)
	}
	if st == assets.StateFailed {
		return fmt.Errorf("spawn %q: %w: load failed: %v", name, ErrPrototypeNotReady, c.store.Err(name))
	}
	return fmt.Errorf("spawn %q: %w: still loading", name, ErrPrototypeNotReady)
}
