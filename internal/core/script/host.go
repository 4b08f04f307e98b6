// Package script owns the embedding side of the scripting surface: script
// asset handles, compiled execution contexts, the association between a
// context and the entity that declared it, and the per-tick dispatch pass
// that feeds prioritized events into script hooks.
package script

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/simforge/simforge/internal/core/assets"
	"github.com/simforge/simforge/internal/core/events/dispatch"
	"github.com/simforge/simforge/internal/core/observability/log"
	"github.com/simforge/simforge/internal/core/observability/metrics"
	"github.com/simforge/simforge/internal/core/world"
)

// Config bounds the host's dispatch behavior.
type Config struct {
	// MaxDispatchRounds caps how many times one dispatch pass re-drains the
	// queue when running hooks keep sending events. Past the cap remaining
	// events are dropped so nothing carries over into the next tick.
	// 0 selects the default, negative disables the cap.
	MaxDispatchRounds int
}

const DefaultMaxDispatchRounds = 64

func NewDefaultConfig() Config {
	return Config{MaxDispatchRounds: DefaultMaxDispatchRounds}
}

func (c Config) withDefaults() Config {
	if c.MaxDispatchRounds == 0 {
		c.MaxDispatchRounds = DefaultMaxDispatchRounds
	}
	return c
}

// Host drives script associations through their lifecycle and delivers
// events into attached contexts. All world-facing work happens inside Sync
// and DispatchPass, which the update loop calls once per tick with a scoped
// access token.
type Host struct {
	runtime Runtime
	loader  *assets.Loader
	queue   *dispatch.Queue
	cfg     Config
	lg      log.Log
	m       *metrics.Metrics

	mu        sync.RWMutex
	started   bool
	functions map[string]Function
	docs      []DocFragment
	assocs    map[string]*association
	hookErrs  []*RuntimeError
}

type association struct {
	name    string
	ref     string
	owner   world.EntityID
	owned   bool
	handle  *assets.Handle
	state   ContextState
	ctxID   uuid.UUID
	inst    Instance
	lastErr error
}

func NewHost(rt Runtime, loader *assets.Loader, cfg Config, lg log.Log, m *metrics.Metrics) *Host {
	return &Host{
		runtime:   rt,
		loader:    loader,
		queue:     dispatch.NewQueue(),
		cfg:       cfg.withDefaults(),
		lg:        lg,
		m:         m,
		functions: make(map[string]Function),
		assocs:    make(map[string]*association),
	}
}

// Install registers a provider's functions into every future context.
// Must complete before the first association exists; fails atomically, so a
// duplicate name leaves none of the provider's functions installed.
func (h *Host) Install(p Provider) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.started {
		return fmt.Errorf("install provider %q: %w", p.Name(), ErrHostStarted)
	}

	incoming := p.Functions()
	seen := make(map[string]struct{}, len(incoming))
	for _, fn := range incoming {
		if fn.Name == "" || fn.Call == nil {
			return fmt.Errorf("install provider %q: function with empty name or nil callable", p.Name())
		}
		if _, dup := seen[fn.Name]; dup {
			return fmt.Errorf("install provider %q: function %q: %w", p.Name(), fn.Name, ErrDuplicateFunction)
		}
		if _, dup := h.functions[fn.Name]; dup {
			return fmt.Errorf("install provider %q: function %q: %w", p.Name(), fn.Name, ErrDuplicateFunction)
		}
		seen[fn.Name] = struct{}{}
	}

	for _, fn := range incoming {
		h.functions[fn.Name] = fn
		if fn.Doc != "" {
			h.docs = append(h.docs, DocFragment{
				Provider: p.Name(),
				Function: fn.Name,
				Text:     fn.Doc,
			})
		}
	}
	h.lg.Debug("api provider installed",
		log.String("provider", p.Name()),
		log.Int("functions", len(incoming)),
	)
	return nil
}

// Docs returns every recorded documentation fragment, ordered by provider
// then function.
func (h *Host) Docs() []DocFragment {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]DocFragment, len(h.docs))
	copy(out, h.docs)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Provider != out[j].Provider {
			return out[i].Provider < out[j].Provider
		}
		return out[i].Function < out[j].Function
	})
	return out
}

// Attach creates an unowned association and requests its asset.
func (h *Host) Attach(name, ref string) error {
	return h.attach(name, ref, 0, false)
}

// AttachTo creates an association owned by an entity. The context is
// discarded when the owner despawns.
func (h *Host) AttachTo(owner world.EntityID, name, ref string) error {
	return h.attach(name, ref, owner, true)
}

func (h *Host) attach(name, ref string, owner world.EntityID, owned bool) error {
	if name == "" || ref == "" {
		return fmt.Errorf("attach script: name and ref are required")
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, exists := h.assocs[name]; exists {
		return fmt.Errorf("attach script %q: %w", name, ErrDuplicateScript)
	}
	h.started = true
	h.assocs[name] = &association{
		name:   name,
		ref:    ref,
		owner:  owner,
		owned:  owned,
		handle: h.loader.Load(ref),
		state:  StateLoading,
	}
	h.lg.Debug("script load requested",
		log.String("script", name),
		log.String("ref", ref),
		log.Bool("owned", owned),
	)
	return nil
}

// Detach discards an association and its context, if any.
func (h *Host) Detach(name string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	a, ok := h.assocs[name]
	if !ok {
		return fmt.Errorf("detach script %q: %w", name, ErrUnknownScript)
	}
	h.discard(a)
	delete(h.assocs, name)
	return nil
}

// Retry re-requests the asset of an association whose attach failed.
func (h *Host) Retry(name string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	a, ok := h.assocs[name]
	if !ok {
		return fmt.Errorf("retry script %q: %w", name, ErrUnknownScript)
	}
	if a.state != StateUnloaded {
		return fmt.Errorf("retry script %q: state is %s, not %s", name, a.state, StateUnloaded)
	}
	a.state = StateLoading
	h.loader.Reload(a.handle)
	return nil
}

// Invalidate discards the association's live context and re-enters Loading
// from a fresh fetch of its asset. This is the hot-reload entry point.
func (h *Host) Invalidate(name string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	a, ok := h.assocs[name]
	if !ok {
		return fmt.Errorf("invalidate script %q: %w", name, ErrUnknownScript)
	}
	h.discard(a)
	a.state = StateLoading
	a.lastErr = nil
	h.loader.Reload(a.handle)
	h.lg.Info("script invalidated", log.String("script", name))
	return nil
}

// discard tears down the live context. Caller holds h.mu.
func (h *Host) discard(a *association) {
	if a.inst == nil {
		a.state = StateDetached
		return
	}
	a.state = StateDetached
	if err := a.inst.Close(); err != nil {
		h.lg.Debug("script context close failed",
			log.String("script", a.name),
			log.Error(err),
		)
	}
	a.inst = nil
	a.ctxID = uuid.UUID{}
	h.m.ContextCount(-1)
}

// Sync advances association lifecycles: discovers script-bearing entities,
// reaps contexts whose owners despawned, and attaches contexts whose assets
// resolved. Called once per tick during the polling phase.
func (h *Host) Sync(acc *world.Access) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.discover(acc)
	h.reap(acc)

	for _, name := range h.sortedNames() {
		a := h.assocs[name]
		if a.state != StateLoading {
			continue
		}
		switch a.handle.State() {
		case assets.StateLoading:
			// Fetch still in flight.
		case assets.StateFailed:
			h.attachFailed(a, a.handle.Err())
		case assets.StateReady:
			data, _ := a.handle.Data()
			h.bind(a, data)
		}
	}
}

// discover creates owned associations for every entity carrying a script
// collection. Caller holds h.mu.
func (h *Host) discover(acc *world.Access) {
	ids := acc.EntitiesWith(CollectionKind)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		c, err := acc.Component(id, CollectionKind)
		if err != nil {
			continue
		}
		col, ok := c.(Collection)
		if !ok {
			h.lg.Warn("scripts component has unexpected type",
				log.Uint64("entity", uint64(id)),
				log.Any("type", fmt.Sprintf("%T", c)),
			)
			continue
		}
		for _, entry := range col.Entries {
			if _, exists := h.assocs[entry.Name]; exists {
				continue
			}
			h.started = true
			h.assocs[entry.Name] = &association{
				name:   entry.Name,
				ref:    entry.Ref,
				owner:  id,
				owned:  true,
				handle: h.loader.Load(entry.Ref),
				state:  StateLoading,
			}
			h.lg.Debug("script discovered",
				log.String("script", entry.Name),
				log.String("ref", entry.Ref),
				log.Uint64("entity", uint64(id)),
			)
		}
	}
}

// reap discards contexts whose owning entity is gone. Caller holds h.mu.
func (h *Host) reap(acc *world.Access) {
	for name, a := range h.assocs {
		if !a.owned || acc.Alive(a.owner) {
			continue
		}
		h.discard(a)
		delete(h.assocs, name)
		h.lg.Info("script context discarded, owner despawned",
			log.String("script", name),
			log.Uint64("entity", uint64(a.owner)),
		)
	}
}

// bind compiles the asset bytes into a fresh context. Caller holds h.mu.
func (h *Host) bind(a *association, data []byte) {
	inst, err := h.runtime.NewInstance(CompileUnit{Name: a.name, Source: data}, h.binding())
	if err != nil {
		h.attachFailed(a, err)
		return
	}
	a.inst = inst
	a.ctxID = uuid.New()
	a.state = StateAttached
	a.lastErr = nil
	h.m.ScriptAttach(metrics.OutcomeOK)
	h.m.ContextCount(1)
	h.lg.Info("script attached",
		log.String("script", a.name),
		log.String("context", a.ctxID.String()),
		log.String("runtime", h.runtime.Name()),
	)
}

// attachFailed records a compile/bind failure; the association returns to
// Unloaded and is not retried automatically. Caller holds h.mu.
func (h *Host) attachFailed(a *association, reason error) {
	a.state = StateUnloaded
	a.lastErr = &AttachError{Script: a.name, Reason: reason}
	h.m.ScriptAttach(metrics.OutcomeFailed)
	h.lg.Warn("script attach failed",
		log.String("script", a.name),
		log.String("ref", a.ref),
		log.Error(reason),
	)
}

// binding snapshots the installed API surface. Caller holds h.mu.
func (h *Host) binding() Binding {
	fns := make([]Function, 0, len(h.functions))
	for _, fn := range h.functions {
		fns = append(fns, fn)
	}
	sort.Slice(fns, func(i, j int) bool { return fns[i].Name < fns[j].Name })
	return Binding{Functions: fns}
}

// Send enqueues an event for the next dispatch pass.
func (h *Host) Send(ev dispatch.Event, priority int) {
	h.queue.Send(ev, priority)
	h.m.EventSent()
}

// DispatchPass drains the event queue in strict priority order (FIFO within
// equal priority) and invokes the matching hook on each resolved recipient.
// Higher-priority events finish delivery to all their recipients before any
// lower-priority event starts. The queue is empty when the pass returns;
// events sent by running hooks are delivered in a later round of the same
// pass, never carried into the next tick.
func (h *Host) DispatchPass(acc *world.Access) {
	h.mu.Lock()
	h.hookErrs = nil
	h.mu.Unlock()

	rounds := 0
	for {
		batch := h.queue.Drain()
		if len(batch) == 0 {
			return
		}
		rounds++
		if h.cfg.MaxDispatchRounds > 0 && rounds > h.cfg.MaxDispatchRounds {
			// Hooks kept feeding the queue. Stop running them and flush so
			// the next tick starts clean.
			for range batch {
				h.m.EventDelivered(metrics.OutcomeDropped)
			}
			h.lg.Error("dispatch round limit hit, dropping events",
				log.Int("limit", h.cfg.MaxDispatchRounds),
				log.Int("dropped", len(batch)),
			)
			continue
		}
		for _, ev := range batch {
			h.deliver(acc, ev)
		}
	}
}

func (h *Host) deliver(acc *world.Access, ev dispatch.Event) {
	targets := h.resolve(ev)
	if len(targets) == 0 {
		// Absence of a recipient is normal, not an error.
		h.m.EventDelivered(metrics.OutcomeDropped)
		h.lg.Debug("event dropped, no recipient",
			log.String("hook", ev.Hook),
			log.String("to", ev.To.String()),
		)
		return
	}
	for _, a := range targets {
		h.run(acc, a, ev)
	}
}

// resolve selects the attached contexts an event addresses. Delivery order
// for broadcasts is lexical by script name so passes are deterministic.
func (h *Host) resolve(ev dispatch.Event) []*association {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if ctxID, ok := ev.To.Context(); ok {
		for _, a := range h.assocs {
			if a.ctxID == ctxID && a.state == StateAttached && a.inst.HasHook(ev.Hook) {
				return []*association{a}
			}
		}
		return nil
	}

	if owner, ok := ev.To.Entity(); ok {
		for _, name := range h.sortedNames() {
			a := h.assocs[name]
			if a.owned && a.owner == owner && a.state == StateAttached {
				if a.inst.HasHook(ev.Hook) {
					return []*association{a}
				}
				return nil
			}
		}
		return nil
	}

	var out []*association
	for _, name := range h.sortedNames() {
		a := h.assocs[name]
		if a.state == StateAttached && a.inst.HasHook(ev.Hook) {
			out = append(out, a)
		}
	}
	return out
}

// run invokes one hook on one context: Attached -> Running -> Attached.
// A failing hook is isolated to its invocation; the context stays usable.
func (h *Host) run(acc *world.Access, a *association, ev dispatch.Event) {
	h.setState(a, StateRunning)
	start := time.Now()
	err := a.inst.Invoke(acc, ev.Hook, ev.Args)
	elapsed := time.Since(start)
	h.setState(a, StateAttached)

	if err != nil {
		rerr := &RuntimeError{Script: a.name, Hook: ev.Hook, Reason: err}
		h.mu.Lock()
		h.hookErrs = append(h.hookErrs, rerr)
		h.mu.Unlock()
		h.m.HookInvocation(metrics.OutcomeError, elapsed)
		h.m.EventDelivered(metrics.OutcomeError)
		h.lg.Warn("script hook failed",
			log.String("script", a.name),
			log.String("hook", ev.Hook),
			log.Error(err),
		)
		return
	}
	h.m.HookInvocation(metrics.OutcomeOK, elapsed)
	h.m.EventDelivered(metrics.OutcomeOK)
}

func (h *Host) setState(a *association, s ContextState) {
	h.mu.Lock()
	a.state = s
	h.mu.Unlock()
}

// HookErrors returns the runtime errors recorded during the most recent
// dispatch pass.
func (h *Host) HookErrors() []*RuntimeError {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]*RuntimeError, len(h.hookErrs))
	copy(out, h.hookErrs)
	return out
}

// Context returns a snapshot of one association.
func (h *Host) Context(name string) (ContextInfo, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	a, ok := h.assocs[name]
	if !ok {
		return ContextInfo{}, fmt.Errorf("script %q: %w", name, ErrUnknownScript)
	}
	return h.snapshot(a), nil
}

// Contexts returns snapshots of every association, ordered by script name.
func (h *Host) Contexts() []ContextInfo {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]ContextInfo, 0, len(h.assocs))
	for _, name := range h.sortedNames() {
		out = append(out, h.snapshot(h.assocs[name]))
	}
	return out
}

func (h *Host) snapshot(a *association) ContextInfo {
	return ContextInfo{
		ID:     a.ctxID,
		Script: a.name,
		Ref:    a.ref,
		Owner:  a.owner,
		Owned:  a.owned,
		State:  a.state,
		Err:    a.lastErr,
	}
}

// Close discards every association and context.
func (h *Host) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	for name, a := range h.assocs {
		h.discard(a)
		delete(h.assocs, name)
	}
	return nil
}

// sortedNames lists association names in lexical order. Caller holds h.mu.
func (h *Host) sortedNames() []string {
	names := make([]string, 0, len(h.assocs))
	for name := range h.assocs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
