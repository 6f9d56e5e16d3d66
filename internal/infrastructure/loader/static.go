package loader

import (
	"context"
	"errors"
	"path/filepath"
	"sync"

	"github.com/zjrosen/hotswap/internal/domain/live"
)

// Factory builds a fresh implementation on every call.
type Factory func() (live.Implementation, error)

type staticModule struct {
	source  []byte
	factory Factory
}

// StaticLoader serves Go-native modules registered under a path. It is used
// to embed implementations that are not manifest files, and by tests.
type StaticLoader struct {
	mu      sync.RWMutex
	modules map[string]staticModule
}

// Ensure StaticLoader implements Loader.
var _ Loader = (*StaticLoader)(nil)

// NewStaticLoader creates an empty static loader.
func NewStaticLoader() *StaticLoader {
	return &StaticLoader{modules: make(map[string]staticModule)}
}

// Set installs (or replaces) the module at path.
func (l *StaticLoader) Set(path string, source []byte, factory Factory) {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	l.mu.Lock()
	l.modules[abs] = staticModule{source: append([]byte(nil), source...), factory: factory}
	l.mu.Unlock()
}

// Remove forgets the module at path.
func (l *StaticLoader) Remove(path string) {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	l.mu.Lock()
	delete(l.modules, abs)
	l.mu.Unlock()
}

// Load runs the module's factory.
func (l *StaticLoader) Load(ctx context.Context, path string) (*Unit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, loadErr(path, err)
	}
	l.mu.RLock()
	mod, ok := l.modules[abs]
	l.mu.RUnlock()
	if !ok {
		return nil, loadErr(abs, errors.New("no module registered at path"))
	}
	impl, err := mod.factory()
	if err != nil {
		return nil, loadErr(abs, err)
	}
	if impl == nil {
		return nil, loadErr(abs, errors.New("factory returned no implementation"))
	}
	return &Unit{Path: abs, Source: append([]byte(nil), mod.source...), Impl: impl}, nil
}
