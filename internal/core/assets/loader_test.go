package assets

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simforge/simforge/internal/core/observability/log"
)

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

func newTestLoader(t *testing.T, src Source, cfg Config) *Loader {
	t.Helper()
	l := NewLoader(src, cfg, log.NewNop())
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func TestLoader_LoadSuccess(t *testing.T) {
	src := NewMapSource()
	src.Put("player.yaml", []byte("name: Player"))
	l := newTestLoader(t, src, NewDefaultConfig())

	h := l.Load("player.yaml")
	require.Eventually(t, func() bool { return h.State() == StateReady }, waitFor, tick)

	data, ok := h.Data()
	require.True(t, ok)
	assert.Equal(t, "name: Player", string(data))
	assert.NotZero(t, h.Sum())
	assert.NoError(t, h.Err())
	assert.Equal(t, "player.yaml", h.Ref())
}

func TestLoader_LoadMissing(t *testing.T) {
	l := newTestLoader(t, NewMapSource(), NewDefaultConfig())

	h := l.Load("nope.yaml")
	require.Eventually(t, func() bool { return h.State() == StateFailed }, waitFor, tick)

	assert.ErrorIs(t, h.Err(), ErrAssetNotFound)
	_, ok := h.Data()
	assert.False(t, ok, "failed handle must not expose data")
	assert.Zero(t, h.Sum())
}

func TestLoader_SizeLimit(t *testing.T) {
	src := NewMapSource()
	src.Put("big", make([]byte, 128))
	l := newTestLoader(t, src, Config{MaxAssetBytes: 16})

	h := l.Load("big")
	require.Eventually(t, func() bool { return h.State() == StateFailed }, waitFor, tick)
	assert.ErrorIs(t, h.Err(), ErrAssetTooLarge)
}

func TestLoader_SizeLimitDisabled(t *testing.T) {
	src := NewMapSource()
	src.Put("big", make([]byte, 128))
	l := newTestLoader(t, src, Config{MaxAssetBytes: -1})

	h := l.Load("big")
	require.Eventually(t, func() bool { return h.State() == StateReady }, waitFor, tick)
}

func TestLoader_Reload(t *testing.T) {
	src := NewMapSource()
	src.Put("s.lua", []byte("-- v1"))
	l := newTestLoader(t, src, NewDefaultConfig())

	h := l.Load("s.lua")
	require.Eventually(t, func() bool { return h.State() == StateReady }, waitFor, tick)
	oldSum := h.Sum()

	src.Put("s.lua", []byte("-- v2"))
	l.Reload(h)
	require.Eventually(t, func() bool {
		return h.State() == StateReady && h.Sum() != oldSum
	}, waitFor, tick)

	data, ok := h.Data()
	require.True(t, ok)
	assert.Equal(t, "-- v2", string(data))
}

func TestLoader_ReloadFailureClobbers(t *testing.T) {
	src := NewMapSource()
	src.Put("s.lua", []byte("-- v1"))
	l := newTestLoader(t, src, Config{MaxAssetBytes: 16})

	h := l.Load("s.lua")
	require.Eventually(t, func() bool { return h.State() == StateReady }, waitFor, tick)

	src.Put("s.lua", make([]byte, 64))
	l.Reload(h)
	require.Eventually(t, func() bool { return h.State() == StateFailed }, waitFor, tick)
	assert.ErrorIs(t, h.Err(), ErrAssetTooLarge)
}

func TestLoader_Closed(t *testing.T) {
	l := NewLoader(NewMapSource(), NewDefaultConfig(), log.NewNop())
	require.NoError(t, l.Close())
	require.NoError(t, l.Close(), "close is idempotent")

	h := l.Load("anything")
	assert.Equal(t, StateFailed, h.State())
	assert.ErrorIs(t, h.Err(), ErrLoaderClosed)
}

func TestLoader_CloseCancelsFetch(t *testing.T) {
	blocked := make(chan struct{})
	src := sourceFunc(func(ctx context.Context, _ string) ([]byte, error) {
		close(blocked)
		<-ctx.Done()
		return nil, ctx.Err()
	})
	l := NewLoader(src, NewDefaultConfig(), log.NewNop())

	h := l.Load("slow")
	<-blocked
	require.NoError(t, l.Close())
	require.Eventually(t, func() bool { return h.State() == StateFailed }, waitFor, tick)
	assert.ErrorIs(t, h.Err(), context.Canceled)
}

type sourceFunc func(ctx context.Context, ref string) ([]byte, error)

func (f sourceFunc) Fetch(ctx context.Context, ref string) ([]byte, error) {
	return f(ctx, ref)
}

func TestFileSource(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.yaml"), []byte("name: A"), 0o644))

	src := NewFileSource(dir)
	data, err := src.Fetch(context.Background(), "a.yaml")
	require.NoError(t, err)
	assert.Equal(t, "name: A", string(data))

	_, err = src.Fetch(context.Background(), "missing.yaml")
	assert.Error(t, err)
}
