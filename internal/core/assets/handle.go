package assets

import (
	"sync"

	"github.com/google/uuid"
)

// State is the load state of one handle. A handle starts Loading and
// transitions to Ready or Failed exactly once per load generation; a reload
// starts a new generation on the same handle.
type State uint8

const (
	StateLoading State = iota
	StateReady
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Handle tracks one asset through its load lifecycle. All accessors are
// cheap snapshot reads; the loader mutates the handle when a fetch resolves.
type Handle struct {
	ref string

	mu     sync.RWMutex
	gen    uuid.UUID
	state  State
	data   []byte
	sum    uint64
	reason error
}

func newHandle(ref string) *Handle {
	return &Handle{ref: ref}
}

func (h *Handle) Ref() string {
	return h.ref
}

func (h *Handle) State() State {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.state
}

// Data returns the loaded bytes. ok is false unless the handle is Ready.
func (h *Handle) Data() ([]byte, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.state != StateReady {
		return nil, false
	}
	return h.data, true
}

// Sum is the xxhash of the loaded bytes, 0 unless Ready.
func (h *Handle) Sum() uint64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.state != StateReady {
		return 0
	}
	return h.sum
}

// Err returns the recorded failure reason, nil unless Failed.
func (h *Handle) Err() error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.state != StateFailed {
		return nil
	}
	return h.reason
}

func (h *Handle) begin() uuid.UUID {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.gen = uuid.New()
	h.state = StateLoading
	return h.gen
}

func (h *Handle) resolve(gen uuid.UUID, data []byte, sum uint64, err error) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.gen != gen {
		// A newer load generation superseded this fetch.
		return false
	}
	if err != nil {
		h.state = StateFailed
		h.data = nil
		h.sum = 0
		h.reason = err
		return true
	}
	h.state = StateReady
	h.data = data
	h.sum = sum
	h.reason = nil
	return true
}
