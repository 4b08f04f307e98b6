package script

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simforge/simforge/internal/core/assets"
	"github.com/simforge/simforge/internal/core/events/dispatch"
	"github.com/simforge/simforge/internal/core/observability/log"
	"github.com/simforge/simforge/internal/core/world"
)

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

// stubRuntime compiles a source as a whitespace-separated list of hook
// names. A source containing the token "!bad" fails to compile, which lets
// asset bytes drive both HasHook and attach failures.
type stubRuntime struct {
	mu        sync.Mutex
	instances map[string]*stubInstance
	trace     []string
}

func newStubRuntime() *stubRuntime {
	return &stubRuntime{instances: make(map[string]*stubInstance)}
}

func (r *stubRuntime) Name() string { return "stub" }

func (r *stubRuntime) NewInstance(unit CompileUnit, bind Binding) (Instance, error) {
	src := string(unit.Source)
	if strings.Contains(src, "!bad") {
		return nil, fmt.Errorf("compile %s: bad token", unit.Name)
	}
	inst := &stubInstance{
		rt:    r,
		name:  unit.Name,
		bind:  bind,
		hooks: make(map[string]struct{}),
		fail:  make(map[string]error),
	}
	for _, h := range strings.Fields(src) {
		inst.hooks[h] = struct{}{}
	}
	r.mu.Lock()
	r.instances[unit.Name] = inst
	r.mu.Unlock()
	return inst, nil
}

func (r *stubRuntime) instance(name string) *stubInstance {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.instances[name]
}

func (r *stubRuntime) takeTrace() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.trace
	r.trace = nil
	return out
}

type stubInstance struct {
	rt   *stubRuntime
	name string
	bind Binding

	mu       sync.Mutex
	hooks    map[string]struct{}
	fail     map[string]error
	onInvoke func(hook string, args any)
	closed   bool
}

func (i *stubInstance) HasHook(name string) bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	_, ok := i.hooks[name]
	return ok
}

func (i *stubInstance) Invoke(_ *world.Access, hook string, args any) error {
	i.mu.Lock()
	cb := i.onInvoke
	err := i.fail[hook]
	i.mu.Unlock()

	i.rt.mu.Lock()
	i.rt.trace = append(i.rt.trace, i.name+":"+hook)
	i.rt.mu.Unlock()

	if cb != nil {
		cb(hook, args)
	}
	return err
}

func (i *stubInstance) Close() error {
	i.mu.Lock()
	i.closed = true
	i.mu.Unlock()
	return nil
}

func (i *stubInstance) failOn(hook string, err error) {
	i.mu.Lock()
	i.fail[hook] = err
	i.mu.Unlock()
}

func (i *stubInstance) isClosed() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.closed
}

type hostFixture struct {
	t      *testing.T
	w      *world.Memory
	src    *assets.MapSource
	loader *assets.Loader
	rt     *stubRuntime
	host   *Host
}

func newHostFixture(t *testing.T) *hostFixture {
	t.Helper()
	lg := log.NewNop()
	src := assets.NewMapSource()
	loader := assets.NewLoader(src, assets.Config{}, lg)
	t.Cleanup(func() { _ = loader.Close() })
	rt := newStubRuntime()
	h := NewHost(rt, loader, Config{}, lg, nil)
	t.Cleanup(func() { _ = h.Close() })
	return &hostFixture{t: t, w: world.NewMemory(), src: src, loader: loader, rt: rt, host: h}
}

func (f *hostFixture) sync() {
	acc := world.NewAccess(f.w)
	defer acc.Release()
	f.host.Sync(acc)
}

func (f *hostFixture) syncUntil(cond func() bool) {
	f.t.Helper()
	require.Eventually(f.t, func() bool {
		f.sync()
		return cond()
	}, waitFor, tick)
}

func (f *hostFixture) awaitState(name string, want ContextState) ContextInfo {
	f.t.Helper()
	var info ContextInfo
	f.syncUntil(func() bool {
		var err error
		info, err = f.host.Context(name)
		return err == nil && info.State == want
	})
	return info
}

// attachReady puts the source, attaches and waits for StateAttached.
func (f *hostFixture) attachReady(name, ref, source string) ContextInfo {
	f.t.Helper()
	f.src.Put(ref, []byte(source))
	require.NoError(f.t, f.host.Attach(name, ref))
	return f.awaitState(name, StateAttached)
}

func (f *hostFixture) attachOwnedReady(owner world.EntityID, name, ref, source string) ContextInfo {
	f.t.Helper()
	f.src.Put(ref, []byte(source))
	require.NoError(f.t, f.host.AttachTo(owner, name, ref))
	return f.awaitState(name, StateAttached)
}

func (f *hostFixture) dispatch() {
	acc := world.NewAccess(f.w)
	defer acc.Release()
	f.host.DispatchPass(acc)
}

func TestHost_Install(t *testing.T) {
	t.Run("Registers Functions Into New Contexts", func(t *testing.T) {
		f := newHostFixture(t)
		p := NewProvider("math",
			Function{Name: "add", Call: func(*world.Access, []any) (any, error) { return nil, nil }},
			Function{Name: "sub", Call: func(*world.Access, []any) (any, error) { return nil, nil }},
		)
		require.NoError(t, f.host.Install(p))

		f.attachReady("calc", "calc.script", "on_update")
		inst := f.rt.instance("calc")
		require.NotNil(t, inst)
		require.Len(t, inst.bind.Functions, 2)
		assert.Equal(t, "add", inst.bind.Functions[0].Name)
		assert.Equal(t, "sub", inst.bind.Functions[1].Name)
	})

	t.Run("Duplicate Within Provider", func(t *testing.T) {
		f := newHostFixture(t)
		p := NewProvider("bad",
			Function{Name: "f", Call: func(*world.Access, []any) (any, error) { return nil, nil }},
			Function{Name: "f", Call: func(*world.Access, []any) (any, error) { return nil, nil }},
		)
		err := f.host.Install(p)
		require.ErrorIs(t, err, ErrDuplicateFunction)
	})

	t.Run("Duplicate Across Providers Installs Nothing", func(t *testing.T) {
		f := newHostFixture(t)
		require.NoError(t, f.host.Install(NewProvider("first",
			Function{Name: "shared", Call: func(*world.Access, []any) (any, error) { return nil, nil }},
		)))
		err := f.host.Install(NewProvider("second",
			Function{Name: "extra", Call: func(*world.Access, []any) (any, error) { return nil, nil }},
			Function{Name: "shared", Call: func(*world.Access, []any) (any, error) { return nil, nil }},
		))
		require.ErrorIs(t, err, ErrDuplicateFunction)

		// The rejected provider must not leak its other functions.
		f.attachReady("s", "s.script", "on_update")
		inst := f.rt.instance("s")
		require.Len(t, inst.bind.Functions, 1)
		assert.Equal(t, "shared", inst.bind.Functions[0].Name)
	})

	t.Run("After First Association", func(t *testing.T) {
		f := newHostFixture(t)
		f.src.Put("s.script", []byte("on_update"))
		require.NoError(t, f.host.Attach("s", "s.script"))
		err := f.host.Install(NewProvider("late",
			Function{Name: "fn", Call: func(*world.Access, []any) (any, error) { return nil, nil }},
		))
		require.ErrorIs(t, err, ErrHostStarted)
	})

	t.Run("Docs Ordered By Provider Then Function", func(t *testing.T) {
		f := newHostFixture(t)
		require.NoError(t, f.host.Install(NewProvider("zeta",
			Function{Name: "z", Doc: "z doc", Call: func(*world.Access, []any) (any, error) { return nil, nil }},
		)))
		require.NoError(t, f.host.Install(NewProvider("alpha",
			Function{Name: "b", Doc: "b doc", Call: func(*world.Access, []any) (any, error) { return nil, nil }},
			Function{Name: "a", Doc: "a doc", Call: func(*world.Access, []any) (any, error) { return nil, nil }},
		)))

		docs := f.host.Docs()
		require.Len(t, docs, 3)
		assert.Equal(t, DocFragment{Provider: "alpha", Function: "a", Text: "a doc"}, docs[0])
		assert.Equal(t, DocFragment{Provider: "alpha", Function: "b", Text: "b doc"}, docs[1])
		assert.Equal(t, DocFragment{Provider: "zeta", Function: "z", Text: "z doc"}, docs[2])
	})
}

func TestHost_AttachLifecycle(t *testing.T) {
	t.Run("Attaches When Asset Ready", func(t *testing.T) {
		f := newHostFixture(t)
		info := f.attachReady("brain", "brain.script", "on_update on_hit")
		assert.NotEqual(t, uuid.UUID{}, info.ID)
		assert.Equal(t, "brain", info.Script)
		assert.False(t, info.Owned)
		assert.NoError(t, info.Err)
	})

	t.Run("Compile Failure Leaves Unloaded", func(t *testing.T) {
		f := newHostFixture(t)
		f.src.Put("bad.script", []byte("on_update !bad"))
		require.NoError(t, f.host.Attach("bad", "bad.script"))

		info := f.awaitState("bad", StateUnloaded)
		require.Error(t, info.Err)
		assert.ErrorIs(t, info.Err, ErrScriptAttach)
		var aerr *AttachError
		require.ErrorAs(t, info.Err, &aerr)
		assert.Equal(t, "bad", aerr.Script)
	})

	t.Run("Missing Asset Leaves Unloaded", func(t *testing.T) {
		f := newHostFixture(t)
		require.NoError(t, f.host.Attach("ghost", "nowhere.script"))
		info := f.awaitState("ghost", StateUnloaded)
		assert.ErrorIs(t, info.Err, ErrScriptAttach)
		assert.ErrorIs(t, info.Err, assets.ErrAssetNotFound)
	})

	t.Run("Retry After Fixing Source", func(t *testing.T) {
		f := newHostFixture(t)
		f.src.Put("flaky.script", []byte("!bad"))
		require.NoError(t, f.host.Attach("flaky", "flaky.script"))
		f.awaitState("flaky", StateUnloaded)

		f.src.Put("flaky.script", []byte("on_update"))
		require.NoError(t, f.host.Retry("flaky"))
		info := f.awaitState("flaky", StateAttached)
		assert.NoError(t, info.Err)
	})

	t.Run("Retry Requires Unloaded", func(t *testing.T) {
		f := newHostFixture(t)
		f.attachReady("ok", "ok.script", "on_update")
		require.Error(t, f.host.Retry("ok"))
	})

	t.Run("Duplicate Name", func(t *testing.T) {
		f := newHostFixture(t)
		f.src.Put("s.script", []byte("on_update"))
		require.NoError(t, f.host.Attach("s", "s.script"))
		require.ErrorIs(t, f.host.Attach("s", "s.script"), ErrDuplicateScript)
	})

	t.Run("Detach Closes Context", func(t *testing.T) {
		f := newHostFixture(t)
		f.attachReady("s", "s.script", "on_update")
		inst := f.rt.instance("s")

		require.NoError(t, f.host.Detach("s"))
		_, err := f.host.Context("s")
		require.ErrorIs(t, err, ErrUnknownScript)
		assert.True(t, inst.isClosed())
	})

	t.Run("Detach Unknown", func(t *testing.T) {
		f := newHostFixture(t)
		require.ErrorIs(t, f.host.Detach("nope"), ErrUnknownScript)
	})
}

func TestHost_Discovery(t *testing.T) {
	t.Run("Attaches From Scripts Component", func(t *testing.T) {
		f := newHostFixture(t)
		f.src.Put("brain.script", []byte("on_update"))

		id := f.w.Spawn()
		require.NoError(t, f.w.Insert(id, Collection{Entries: []Entry{{Name: "brain", Ref: "brain.script"}}}))

		info := f.awaitState("brain", StateAttached)
		assert.True(t, info.Owned)
		assert.Equal(t, id, info.Owner)
	})

	t.Run("Reaps When Owner Despawns", func(t *testing.T) {
		f := newHostFixture(t)
		id := f.w.Spawn()
		f.attachOwnedReady(id, "brain", "brain.script", "on_update")
		inst := f.rt.instance("brain")

		require.NoError(t, f.w.Despawn(id))
		f.sync()

		_, err := f.host.Context("brain")
		require.ErrorIs(t, err, ErrUnknownScript)
		assert.True(t, inst.isClosed())
	})

	t.Run("First Declaration Wins On Name Clash", func(t *testing.T) {
		f := newHostFixture(t)
		f.src.Put("a.script", []byte("on_update"))
		f.src.Put("b.script", []byte("on_update"))

		first := f.w.Spawn()
		second := f.w.Spawn()
		require.NoError(t, f.w.Insert(first, Collection{Entries: []Entry{{Name: "clash", Ref: "a.script"}}}))
		require.NoError(t, f.w.Insert(second, Collection{Entries: []Entry{{Name: "clash", Ref: "b.script"}}}))

		info := f.awaitState("clash", StateAttached)
		assert.Equal(t, first, info.Owner)
		assert.Equal(t, "a.script", info.Ref)
	})
}

func TestHost_Dispatch(t *testing.T) {
	t.Run("Descending Priority Regardless Of Send Order", func(t *testing.T) {
		f := newHostFixture(t)
		f.attachReady("s", "s.script", "low high")

		f.host.Send(dispatch.Event{Hook: "low", To: dispatch.EveryContext()}, 1)
		f.host.Send(dispatch.Event{Hook: "high", To: dispatch.EveryContext()}, 5)
		f.dispatch()

		assert.Equal(t, []string{"s:high", "s:low"}, f.rt.takeTrace())
	})

	t.Run("FIFO Within Equal Priority", func(t *testing.T) {
		f := newHostFixture(t)
		f.attachReady("s", "s.script", "a b c")

		f.host.Send(dispatch.Event{Hook: "a", To: dispatch.EveryContext()}, 3)
		f.host.Send(dispatch.Event{Hook: "b", To: dispatch.EveryContext()}, 3)
		f.host.Send(dispatch.Event{Hook: "c", To: dispatch.EveryContext()}, 3)
		f.dispatch()

		assert.Equal(t, []string{"s:a", "s:b", "s:c"}, f.rt.takeTrace())
	})

	t.Run("Broadcast Reaches Every Context With Hook", func(t *testing.T) {
		f := newHostFixture(t)
		f.attachReady("alpha", "alpha.script", "on_update")
		f.attachReady("beta", "beta.script", "on_update")
		f.attachReady("mute", "mute.script", "other_hook")

		f.host.Send(dispatch.Event{Hook: "on_update", To: dispatch.EveryContext()}, 0)
		f.dispatch()

		assert.Equal(t, []string{"alpha:on_update", "beta:on_update"}, f.rt.takeTrace())
	})

	t.Run("Entity Target Reaches Only Its Context", func(t *testing.T) {
		f := newHostFixture(t)
		e1 := f.w.Spawn()
		e2 := f.w.Spawn()
		f.attachOwnedReady(e1, "guard_a", "a.script", "on_hit")
		f.attachOwnedReady(e2, "guard_b", "b.script", "on_hit")

		f.host.Send(dispatch.Event{Hook: "on_hit", Args: map[string]any{"amount": int64(3)}, To: dispatch.ToEntity(e1)}, 0)
		f.dispatch()

		assert.Equal(t, []string{"guard_a:on_hit"}, f.rt.takeTrace())
	})

	t.Run("Absent Recipient Drops Silently", func(t *testing.T) {
		f := newHostFixture(t)
		f.attachReady("s", "s.script", "on_hit")

		f.host.Send(dispatch.Event{Hook: "on_hit", To: dispatch.ToEntity(world.EntityID(9999))}, 0)
		f.dispatch()

		assert.Empty(t, f.rt.takeTrace())
		assert.Empty(t, f.host.HookErrors())
		assert.Zero(t, f.host.queue.Len())
	})

	t.Run("Context Target", func(t *testing.T) {
		f := newHostFixture(t)
		a := f.attachReady("a", "a.script", "ping")
		f.attachReady("b", "b.script", "ping")

		f.host.Send(dispatch.Event{Hook: "ping", To: dispatch.ToContext(a.ID)}, 0)
		f.dispatch()

		assert.Equal(t, []string{"a:ping"}, f.rt.takeTrace())
	})

	t.Run("Args Reach The Hook", func(t *testing.T) {
		f := newHostFixture(t)
		f.attachReady("s", "s.script", "on_hit")

		var got any
		f.rt.instance("s").onInvoke = func(_ string, args any) { got = args }
		f.host.Send(dispatch.Event{Hook: "on_hit", Args: map[string]any{"amount": int64(7)}, To: dispatch.EveryContext()}, 0)
		f.dispatch()

		assert.Equal(t, map[string]any{"amount": int64(7)}, got)
	})

	t.Run("Queue Empty After Pass", func(t *testing.T) {
		f := newHostFixture(t)
		f.attachReady("s", "s.script", "a b")

		f.host.Send(dispatch.Event{Hook: "a", To: dispatch.EveryContext()}, 2)
		f.host.Send(dispatch.Event{Hook: "b", To: dispatch.EveryContext()}, 1)
		f.host.Send(dispatch.Event{Hook: "missing", To: dispatch.EveryContext()}, 0)
		f.dispatch()

		assert.Zero(t, f.host.queue.Len())
	})

	t.Run("Hook Sent Events Deliver In Same Pass", func(t *testing.T) {
		f := newHostFixture(t)
		f.attachReady("s", "s.script", "first second")

		f.rt.instance("s").onInvoke = func(hook string, _ any) {
			if hook == "first" {
				f.host.Send(dispatch.Event{Hook: "second", To: dispatch.EveryContext()}, 0)
			}
		}
		f.host.Send(dispatch.Event{Hook: "first", To: dispatch.EveryContext()}, 0)
		f.dispatch()

		assert.Equal(t, []string{"s:first", "s:second"}, f.rt.takeTrace())
		assert.Zero(t, f.host.queue.Len())
	})

	t.Run("Runtime Error Isolated To Invocation", func(t *testing.T) {
		f := newHostFixture(t)
		f.attachReady("broken", "broken.script", "on_update")
		f.attachReady("solid", "solid.script", "on_update")

		f.rt.instance("broken").failOn("on_update", errors.New("nil index"))
		f.host.Send(dispatch.Event{Hook: "on_update", To: dispatch.EveryContext()}, 0)
		f.dispatch()

		// The failing hook did not stop the pass.
		assert.Equal(t, []string{"broken:on_update", "solid:on_update"}, f.rt.takeTrace())

		errs := f.host.HookErrors()
		require.Len(t, errs, 1)
		assert.Equal(t, "broken", errs[0].Script)
		assert.Equal(t, "on_update", errs[0].Hook)
		assert.ErrorIs(t, errs[0], ErrScriptRuntime)

		// The context survives and keeps receiving events.
		info, err := f.host.Context("broken")
		require.NoError(t, err)
		assert.Equal(t, StateAttached, info.State)

		f.host.Send(dispatch.Event{Hook: "on_update", To: dispatch.ToContext(info.ID)}, 0)
		f.dispatch()
		assert.Equal(t, []string{"broken:on_update"}, f.rt.takeTrace())
	})

	t.Run("Round Limit Stops Feedback Loops", func(t *testing.T) {
		f := newHostFixture(t)
		f.host.cfg.MaxDispatchRounds = 2
		f.attachReady("echo", "echo.script", "ping")

		f.rt.instance("echo").onInvoke = func(string, any) {
			f.host.Send(dispatch.Event{Hook: "ping", To: dispatch.EveryContext()}, 0)
		}
		f.host.Send(dispatch.Event{Hook: "ping", To: dispatch.EveryContext()}, 0)
		f.dispatch()

		assert.Len(t, f.rt.takeTrace(), 2)
		assert.Zero(t, f.host.queue.Len())
	})
}

func TestHost_Invalidate(t *testing.T) {
	t.Run("Rebuilds Context From New Source", func(t *testing.T) {
		f := newHostFixture(t)
		before := f.attachReady("s", "s.script", "old_hook")

		f.src.Put("s.script", []byte("new_hook"))
		require.NoError(t, f.host.Invalidate("s"))
		after := f.awaitState("s", StateAttached)

		assert.NotEqual(t, before.ID, after.ID)

		f.host.Send(dispatch.Event{Hook: "old_hook", To: dispatch.EveryContext()}, 0)
		f.host.Send(dispatch.Event{Hook: "new_hook", To: dispatch.EveryContext()}, 0)
		f.dispatch()
		assert.Equal(t, []string{"s:new_hook"}, f.rt.takeTrace())
	})

	t.Run("Unknown Script", func(t *testing.T) {
		f := newHostFixture(t)
		require.ErrorIs(t, f.host.Invalidate("nope"), ErrUnknownScript)
	})
}

func TestHost_Contexts(t *testing.T) {
	f := newHostFixture(t)
	owner := f.w.Spawn()
	f.attachReady("zeta", "z.script", "on_update")
	f.attachOwnedReady(owner, "alpha", "a.script", "on_update")

	infos := f.host.Contexts()
	require.Len(t, infos, 2)
	assert.Equal(t, "alpha", infos[0].Script)
	assert.True(t, infos[0].Owned)
	assert.Equal(t, owner, infos[0].Owner)
	assert.Equal(t, "zeta", infos[1].Script)
	assert.False(t, infos[1].Owned)
}
