package assets

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/sync/errgroup"

	"github.com/simforge/simforge/internal/core/observability/log"
)

// Config bounds the loader's fetch pool and accepted asset sizes.
type Config struct {
	// Workers caps concurrent fetches. <= 0 selects the default.
	Workers int
	// MaxAssetBytes fails any fetch whose payload exceeds it.
	// 0 selects the default, negative disables the limit.
	MaxAssetBytes int64
}

const (
	DefaultWorkers       = 4
	DefaultMaxAssetBytes = 1 << 20
)

func NewDefaultConfig() Config {
	return Config{
		Workers:       DefaultWorkers,
		MaxAssetBytes: DefaultMaxAssetBytes,
	}
}

func (c Config) withDefaults() Config {
	if c.Workers <= 0 {
		c.Workers = DefaultWorkers
	}
	if c.MaxAssetBytes == 0 {
		c.MaxAssetBytes = DefaultMaxAssetBytes
	}
	return c
}

// Loader runs asset fetches on a bounded worker pool and resolves handle
// states as fetches complete. Callers observe progress only by polling
// handle states; scheduling applies backpressure once Workers fetches are
// in flight.
type Loader struct {
	source Source
	cfg    Config
	lg     log.Log

	ctx    context.Context
	cancel context.CancelFunc
	grp    *errgroup.Group
	closed atomic.Bool
}

func NewLoader(source Source, cfg Config, lg log.Log) *Loader {
	ctx, cancel := context.WithCancel(context.Background())
	grp := &errgroup.Group{}
	cfg = cfg.withDefaults()
	grp.SetLimit(cfg.Workers)
	return &Loader{
		source: source,
		cfg:    cfg,
		lg:     lg,
		ctx:    ctx,
		cancel: cancel,
		grp:    grp,
	}
}

// Load creates a handle for ref and schedules its fetch.
func (l *Loader) Load(ref string) *Handle {
	h := newHandle(ref)
	l.schedule(h)
	return h
}

// Reload starts a new load generation on an existing handle. The handle
// returns to Loading until the fetch resolves; a fetch from a superseded
// generation can no longer touch it.
func (l *Loader) Reload(h *Handle) {
	l.schedule(h)
}

func (l *Loader) schedule(h *Handle) {
	gen := h.begin()
	if l.closed.Load() {
		h.resolve(gen, nil, 0, ErrLoaderClosed)
		return
	}
	l.grp.Go(func() error {
		data, err := l.source.Fetch(l.ctx, h.Ref())
		if err == nil && l.cfg.MaxAssetBytes > 0 && int64(len(data)) > l.cfg.MaxAssetBytes {
			err = fmt.Errorf("asset %q is %d bytes (limit %d): %w",
				h.Ref(), len(data), l.cfg.MaxAssetBytes, ErrAssetTooLarge)
		}
		var sum uint64
		if err == nil {
			sum = xxhash.Sum64(data)
		}
		if h.resolve(gen, data, sum, err) && err != nil {
			l.lg.Warn("asset load failed",
				log.String("ref", h.Ref()),
				log.Error(err),
			)
		}
		return nil
	})
}

// Close stops accepting work, cancels in-flight fetches and waits for the
// pool to drain.
func (l *Loader) Close() error {
	if !l.closed.CompareAndSwap(false, true) {
		return nil
	}
	l.cancel()
	return l.grp.Wait()
}
