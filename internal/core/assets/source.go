package assets

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Source resolves an opaque asset reference into raw bytes. Implementations
// own all file or network I/O; the loader only schedules and records.
type Source interface {
	Fetch(ctx context.Context, ref string) ([]byte, error)
}

// FileSource resolves refs as paths relative to a root directory.
type FileSource struct {
	root string
}

func NewFileSource(root string) *FileSource {
	return &FileSource{root: root}
}

func (s *FileSource) Fetch(_ context.Context, ref string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(s.root, ref))
	if err != nil {
		return nil, fmt.Errorf("read asset %q: %w", ref, err)
	}
	return data, nil
}

// MapSource serves assets from memory. Put may be called at any time, which
// makes it the natural source for tests and for hot-reload scenarios.
type MapSource struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func NewMapSource() *MapSource {
	return &MapSource{data: make(map[string][]byte)}
}

func (s *MapSource) Put(ref string, data []byte) {
	s.mu.Lock()
	s.data[ref] = data
	s.mu.Unlock()
}

func (s *MapSource) Fetch(_ context.Context, ref string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.data[ref]
	if !ok {
		return nil, fmt.Errorf("asset %q: %w", ref, ErrAssetNotFound)
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}
