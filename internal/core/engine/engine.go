// Package engine assembles the simulation core and drives its single-writer
// update loop. Each tick runs three phases in a fixed order: readiness
// polling (descriptor and script loads fold in), commands (deferred spawns
// and gated systems), and event dispatch (update broadcast plus everything
// queued during the tick).
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/simforge/simforge/internal/core/assets"
	"github.com/simforge/simforge/internal/core/events/dispatch"
	"github.com/simforge/simforge/internal/core/observability/log"
	"github.com/simforge/simforge/internal/core/observability/metrics"
	"github.com/simforge/simforge/internal/core/prototype"
	"github.com/simforge/simforge/internal/core/schematic"
	"github.com/simforge/simforge/internal/core/script"
	"github.com/simforge/simforge/internal/core/spawn"
	"github.com/simforge/simforge/internal/core/world"
)

// ScriptsTypeID is the schematic type that declares script associations on
// a prototype-spawned entity.
const ScriptsTypeID schematic.TypeID = "scripts"

// System is a named update function gated by zero or more conditions.
type System struct {
	name  string
	fn    func(acc *world.Access) error
	conds []Condition
}

func (s *System) runnable() bool {
	for _, cond := range s.conds {
		if !cond() {
			return false
		}
	}
	return true
}

// SpawnResult records the outcome of one deferred spawn request.
type SpawnResult struct {
	Name   string
	Entity world.EntityID
	Err    error
}

type Engine struct {
	cfg Config
	lg  log.Log
	m   *metrics.Metrics

	world      world.World
	loader     *assets.Loader
	schematics *schematic.Registry
	store      *prototype.Store
	commands   *spawn.Commands
	host       *script.Host

	mu      sync.Mutex
	systems []*System
	pending []string
	results []SpawnResult
}

// New wires a complete core around the given asset source and script
// runtime. The scripts schematic and the built-in API providers (core and
// spawn) are installed before New returns, so additional providers must be
// installed before the first script attaches.
func New(cfg Config, source assets.Source, rt script.Runtime, lg log.Log, m *metrics.Metrics) *Engine {
	if lg == nil {
		lg = log.Provide()
	}
	cfg = cfg.withDefaults()

	loader := assets.NewLoader(source, cfg.assetConfig(), lg)
	schematics := schematic.NewRegistry()
	store := prototype.NewStore(loader, lg, m)
	commands := spawn.NewCommands(store, schematics, lg, m)
	host := script.NewHost(rt, loader, cfg.hostConfig(), lg, m)

	e := &Engine{
		cfg:        cfg,
		lg:         lg,
		m:          m,
		world:      world.NewMemory(),
		loader:     loader,
		schematics: schematics,
		store:      store,
		commands:   commands,
		host:       host,
	}

	if err := schematics.Register(ScriptsTypeID, schematic.ComponentType(script.DecodeCollection)); err != nil {
		lg.Error("register scripts schematic", log.Error(err))
	}
	for _, p := range []script.Provider{CoreProvider(lg), SpawnProvider(commands)} {
		if err := host.Install(p); err != nil {
			lg.Error("install built-in provider", log.Error(err))
		}
	}
	return e
}

func (e *Engine) World() world.World              { return e.world }
func (e *Engine) Schematics() *schematic.Registry { return e.schematics }
func (e *Engine) Store() *prototype.Store         { return e.store }
func (e *Engine) Commands() *spawn.Commands       { return e.commands }
func (e *Engine) Host() *script.Host              { return e.host }
func (e *Engine) Metrics() *metrics.Metrics       { return e.m }

// InstallProvider adds script API functions; only valid before the first
// script association exists.
func (e *Engine) InstallProvider(p script.Provider) error {
	return e.host.Install(p)
}

// LoadPrototype requests an asynchronous descriptor load.
func (e *Engine) LoadPrototype(name, sourceRef string) prototype.Handle {
	return e.store.RequestLoad(name, sourceRef)
}

// Reload re-fetches a prototype's descriptor. The published descriptor
// keeps serving until the new one parses.
func (e *Engine) Reload(name string) error {
	return e.store.Reload(name)
}

// InvalidateScript discards a script context and rebuilds it from a fresh
// fetch of its asset.
func (e *Engine) InvalidateScript(name string) error {
	return e.host.Invalidate(name)
}

// AddSystem registers an update function to run each tick, gated by conds.
func (e *Engine) AddSystem(name string, fn func(acc *world.Access) error, conds ...Condition) {
	e.mu.Lock()
	e.systems = append(e.systems, &System{name: name, fn: fn, conds: conds})
	e.mu.Unlock()
}

// EnqueueSpawn defers a spawn to the next tick's command phase. The outcome
// is retrievable through TakeSpawnResults.
func (e *Engine) EnqueueSpawn(name string) {
	e.mu.Lock()
	e.pending = append(e.pending, name)
	e.mu.Unlock()
}

// TakeSpawnResults drains the recorded outcomes of deferred spawns.
func (e *Engine) TakeSpawnResults() []SpawnResult {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := e.results
	e.results = nil
	return out
}

// Tick runs one update pass. Callers must not run ticks concurrently; the
// loop owns all world writes while a tick is in flight.
func (e *Engine) Tick() {
	start := time.Now()

	// Polling phase.
	e.store.Sync()
	acc := world.NewAccess(e.world)
	e.host.Sync(acc)
	acc.Release()

	// Command phase.
	acc = world.NewAccess(e.world)
	e.drainSpawns(acc)
	e.runSystems(acc)
	acc.Release()

	// Dispatch phase.
	if e.cfg.UpdateHook != "" {
		e.host.Send(dispatch.Event{Hook: e.cfg.UpdateHook, To: dispatch.EveryContext()}, e.cfg.UpdatePriority)
	}
	acc = world.NewAccess(e.world)
	e.host.DispatchPass(acc)
	acc.Release()

	e.m.Tick(time.Since(start))
}

func (e *Engine) drainSpawns(acc *world.Access) {
	e.mu.Lock()
	pending := e.pending
	e.pending = nil
	e.mu.Unlock()
	if len(pending) == 0 {
		return
	}

	results := make([]SpawnResult, 0, len(pending))
	for _, name := range pending {
		id, err := e.commands.Spawn(acc, name)
		results = append(results, SpawnResult{Name: name, Entity: id, Err: err})
	}

	e.mu.Lock()
	e.results = append(e.results, results...)
	e.mu.Unlock()
}

func (e *Engine) runSystems(acc *world.Access) {
	e.mu.Lock()
	systems := make([]*System, len(e.systems))
	copy(systems, e.systems)
	e.mu.Unlock()

	for _, s := range systems {
		if !s.runnable() {
			continue
		}
		if err := s.fn(acc); err != nil {
			e.lg.Error("system failed",
				log.String("system", s.name),
				log.Error(err),
			)
		}
	}
}

// Run ticks at the configured rate until ctx is done.
func (e *Engine) Run(ctx context.Context) error {
	interval := e.cfg.tickInterval()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	e.lg.Info("engine running",
		log.Int("tick_rate", e.cfg.TickRate),
		log.Duration("interval", interval),
	)
	for {
		select {
		case <-ctx.Done():
			e.lg.Info("engine stopped")
			return nil
		case <-ticker.C:
			e.Tick()
		}
	}
}

// Close tears down script contexts and the asset loader.
func (e *Engine) Close() error {
	err := e.host.Close()
	if lerr := e.loader.Close(); lerr != nil && err == nil {
		err = fmt.Errorf("close loader: %w", lerr)
	}
	return err
}
