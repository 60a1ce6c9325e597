//go:build !nogpu

package native

import (
	"fmt"

	"github.com/gogpu/framepipe/backend"
	"github.com/gogpu/framepipe/gpu"
	"github.com/gogpu/wgpu/hal"
)

// Adapter wraps a HAL adapter.
type Adapter struct {
	instance hal.Instance
	exposed  hal.ExposedAdapter
}

// NewAdapter wraps an adapter enumerated from instance. The instance is
// used later to create presentation surfaces.
func NewAdapter(instance hal.Instance, exposed hal.ExposedAdapter) *Adapter {
	return &Adapter{instance: instance, exposed: exposed}
}

// Info returns the adapter description. The feature level is derived from
// the adapter's 2D texture limit.
func (a *Adapter) Info() gpu.AdapterInfo {
	return gpu.AdapterInfo{
		Name:         a.exposed.Info.Name,
		DeviceType:   a.exposed.Info.DeviceType,
		Backend:      backend.BackendNative,
		FeatureLevel: featureLevel(a.exposed.Capabilities.Limits.MaxTextureDimension2D),
	}
}

func featureLevel(maxTexture2D uint32) gpu.FeatureLevel {
	switch {
	case maxTexture2D >= 16384:
		return gpu.FeatureLevel11_0
	case maxTexture2D >= 8192:
		return gpu.FeatureLevel10_0
	default:
		return gpu.FeatureLevel9_3
	}
}

// Open creates the logical device and its queue.
func (a *Adapter) Open() (gpu.Device, gpu.Queue, error) {
	od, err := a.exposed.Adapter.Open(0, a.exposed.Capabilities.Limits)
	if err != nil {
		return nil, nil, fmt.Errorf("native: open %q: %w: %w", a.exposed.Info.Name, gpu.ErrDeviceCreation, err)
	}
	d := newDevice(a.instance, od.Device, od.Queue)
	slogger().Info("native: device opened",
		"adapter", a.exposed.Info.Name,
		"backend", a.exposed.Info.Backend,
		"level", a.Info().FeatureLevel)
	return d, d.queue, nil
}
