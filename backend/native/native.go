//go:build !nogpu

package native

import (
	"fmt"

	"github.com/gogpu/framepipe/backend"
	"github.com/gogpu/framepipe/gpu"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	// Register every HAL backend available on this platform.
	_ "github.com/gogpu/wgpu/hal/allbackends"
)

func init() {
	backend.Register(backend.BackendNative, func() backend.Backend {
		return NewBackend()
	})
}

// Backend exposes the adapters of gogpu/wgpu HAL backends.
type Backend struct {
	apis      []hal.Backend
	instances []hal.Instance
	adapters  []gpu.Adapter
}

// NewBackend creates a backend over the given HAL APIs. With no arguments it
// uses every registered HAL backend except the no-op one.
func NewBackend(apis ...hal.Backend) *Backend {
	return &Backend{apis: apis}
}

// Name returns the backend identifier.
func (b *Backend) Name() string {
	return backend.BackendNative
}

// Init creates an instance per HAL backend and enumerates adapters.
func (b *Backend) Init() error {
	if b.instances != nil {
		return nil
	}
	apis := b.apis
	if len(apis) == 0 {
		for _, v := range hal.AvailableBackends() {
			if v == gputypes.BackendEmpty {
				continue
			}
			if api, ok := hal.GetBackend(v); ok {
				apis = append(apis, api)
			}
		}
	}

	for _, api := range apis {
		inst, err := api.CreateInstance(&hal.InstanceDescriptor{Backends: gputypes.BackendsPrimary})
		if err != nil {
			slogger().Debug("native: instance creation failed", "backend", api.Variant(), "error", err)
			continue
		}
		b.instances = append(b.instances, inst)
		for _, exposed := range inst.EnumerateAdapters(nil) {
			b.adapters = append(b.adapters, NewAdapter(inst, exposed))
		}
	}
	if len(b.instances) == 0 {
		return fmt.Errorf("native: %w", backend.ErrBackendNotAvailable)
	}
	return nil
}

// Close destroys the HAL instances.
func (b *Backend) Close() {
	for _, inst := range b.instances {
		inst.Destroy()
	}
	b.instances = nil
	b.adapters = nil
}

// Adapters returns the enumerated adapters.
func (b *Backend) Adapters() ([]gpu.Adapter, error) {
	if b.instances == nil {
		return nil, backend.ErrNotInitialized
	}
	if len(b.adapters) == 0 {
		return nil, ErrNoGPU
	}
	return b.adapters, nil
}
