package backend

import (
	"sort"

	"github.com/gogpu/gpucontext"
)

// BackendFactory creates a new backend instance.
type BackendFactory func() Backend

// Priority order for backend selection (first available wins).
// Native > Reference (reference is the software fallback).
var backendPriority = []string{BackendNative, BackendReference}

var backends = gpucontext.NewRegistry[Backend](
	gpucontext.WithPriority(backendPriority...),
)

// Register registers a backend factory with the given name.
// This is typically called from init() functions in backend packages.
// If a backend with the same name is already registered, it will be replaced.
func Register(name string, factory BackendFactory) {
	backends.Register(name, factory)
}

// Unregister removes a backend from the registry.
// This is useful for testing.
func Unregister(name string) {
	backends.Unregister(name)
}

// Available returns the registered backend names in priority order.
// Backends outside the priority list follow in name order.
func Available() []string {
	names := backends.Available()
	rank := func(name string) int {
		for i, p := range backendPriority {
			if p == name {
				return i
			}
		}
		return len(backendPriority)
	}
	sort.Slice(names, func(i, j int) bool {
		ri, rj := rank(names[i]), rank(names[j])
		if ri != rj {
			return ri < rj
		}
		return names[i] < names[j]
	})
	return names
}

// IsRegistered checks if a backend with the given name is registered.
func IsRegistered(name string) bool {
	return backends.Has(name)
}

// Get returns a backend instance by name.
// Returns nil if the backend is not registered.
func Get(name string) Backend {
	return backends.Get(name)
}

// Default returns the best available backend based on priority.
// Priority order: native > reference
// Returns nil if no backends are registered.
func Default() Backend {
	return backends.Best()
}

// MustDefault returns the default backend or panics.
func MustDefault() Backend {
	b := Default()
	if b == nil {
		panic("backend: no backend available")
	}
	return b
}

// InitDefault initializes the default backend based on availability.
func InitDefault() (Backend, error) {
	b := Default()
	if b == nil {
		return nil, ErrBackendNotAvailable
	}

	if err := b.Init(); err != nil {
		return nil, err
	}

	return b, nil
}
