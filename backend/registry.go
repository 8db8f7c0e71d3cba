package backend

import (
	"errors"
	"fmt"
	"slices"
	"sync"
)

// Backend names.
const (
	// NameCPU is the name of the worker-pool backend (always available).
	NameCPU = "cpu"
	// NameWGPU is the name of the gogpu/wgpu HAL backend.
	NameWGPU = "wgpu"
)

// ErrNotAvailable is returned when no registered backend could be opened.
var ErrNotAvailable = errors.New("backend: no backend available")

// Options configures a backend created through the registry.
type Options struct {
	// Scene is the frame and tile geometry.
	Scene Scene

	// Depth is the number of slots (lookahead). Values below 1 are treated as 1.
	Depth int

	// Shader selects what the backend renders. Its meaning is backend
	// specific: a built-in shader name for cpu, a built-in name or a .wgsl
	// path for wgpu. Empty selects the backend's default.
	Shader string
}

// Factory opens a backend.
type Factory func(opts Options) (Backend, error)

var (
	registryMu sync.RWMutex
	factories  = make(map[string]Factory)
	// Priority order for Default (first that opens wins).
	priority = []string{NameWGPU, NameCPU}
)

// Register registers a backend factory with the given name.
// This is typically called from init() functions in backend packages.
// If a backend with the same name is already registered, it will be replaced.
func Register(name string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	factories[name] = factory
}

// Unregister removes a backend from the registry.
// This is useful for testing.
func Unregister(name string) {
	registryMu.Lock()
	defer registryMu.Unlock()
	delete(factories, name)
}

// Available returns the sorted names of registered backends.
func Available() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// IsRegistered checks if a backend with the given name is registered.
func IsRegistered(name string) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := factories[name]
	return ok
}

// Open creates the named backend.
func Open(name string, opts Options) (Backend, error) {
	registryMu.RLock()
	factory, ok := factories[name]
	registryMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %q is not registered (have %v)", ErrNotAvailable, name, Available())
	}
	return factory(opts)
}

// Default opens the best available backend: wgpu when a device can be
// opened, otherwise cpu, otherwise any other registered backend.
func Default(opts Options) (Backend, error) {
	registryMu.RLock()
	order := slices.Clone(priority)
	for name := range factories {
		if !slices.Contains(order, name) {
			order = append(order, name)
		}
	}
	registryMu.RUnlock()

	var errs []error
	for _, name := range order {
		if !IsRegistered(name) {
			continue
		}
		b, err := Open(name, opts)
		if err == nil {
			return b, nil
		}
		errs = append(errs, fmt.Errorf("%s: %w", name, err))
	}
	if len(errs) == 0 {
		return nil, ErrNotAvailable
	}
	return nil, fmt.Errorf("%w: %w", ErrNotAvailable, errors.Join(errs...))
}
