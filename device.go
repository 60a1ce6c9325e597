package framepipe

import (
	"errors"
	"fmt"

	"github.com/gogpu/framepipe/backend"
	"github.com/gogpu/framepipe/gpu"
	"github.com/gogpu/framepipe/internal/swapchain"
	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"

	// Register the device backends.
	_ "github.com/gogpu/framepipe/backend/native"
	_ "github.com/gogpu/framepipe/backend/reference"
)

// DeviceContext owns the logical device and its single direct queue.
type DeviceContext struct {
	backend  backend.Backend
	adapter  gpu.Adapter
	info     gpu.AdapterInfo
	dev      gpu.Device
	queue    gpu.Queue
	fallback bool
}

// OpenDevice selects an adapter reaching minLevel and creates the device.
// With preferHardware, hardware adapters are tried first and the software
// adapter is the fallback; otherwise the software adapter is used. Failures
// wrap gpu.ErrDeviceCreation; when no adapter qualifies the error also
// wraps gpu.ErrNoAdapter. There is no retry.
func OpenDevice(preferHardware bool, minLevel gpu.FeatureLevel) (*DeviceContext, error) {
	sel, err := backend.SelectAdapter(preferHardware, minLevel)
	if err != nil {
		return nil, fmt.Errorf("framepipe: open device: %w: %w", gpu.ErrDeviceCreation, err)
	}
	dc, err := openAdapter(sel.Adapter, minLevel)
	if err != nil {
		sel.Backend.Close()
		return nil, err
	}
	dc.backend = sel.Backend
	dc.fallback = sel.Fallback
	if sel.Fallback {
		Logger().Warn("framepipe: no hardware adapter, using software fallback",
			"adapter", dc.info.Name, "min_level", minLevel.String())
	}
	return dc, nil
}

// openAdapter creates the device on a. The adapter must reach minLevel.
func openAdapter(a gpu.Adapter, minLevel gpu.FeatureLevel) (*DeviceContext, error) {
	info := a.Info()
	if info.FeatureLevel < minLevel {
		return nil, fmt.Errorf("framepipe: adapter %q at feature level %s, need %s: %w: %w",
			info.Name, info.FeatureLevel, minLevel, gpu.ErrDeviceCreation, gpu.ErrNoAdapter)
	}
	dev, queue, err := a.Open()
	if err != nil {
		if !errors.Is(err, gpu.ErrDeviceCreation) {
			err = fmt.Errorf("%w: %w", gpu.ErrDeviceCreation, err)
		}
		return nil, fmt.Errorf("framepipe: open %q: %w", info.Name, err)
	}
	trackDevice(dev)
	Logger().Info("framepipe: adapter selected",
		"name", info.Name,
		"backend", info.Backend,
		"type", adapterType(info.DeviceType).String(),
		"feature_level", info.FeatureLevel.String())
	return &DeviceContext{adapter: a, info: info, dev: dev, queue: queue}, nil
}

// GPU returns the device and its queue.
func (c *DeviceContext) GPU() (gpu.Device, gpu.Queue) { return c.dev, c.queue }

// Info returns the selected adapter's description.
func (c *DeviceContext) Info() gpu.AdapterInfo { return c.info }

// Fallback reports whether the software adapter was used although hardware
// was preferred.
func (c *DeviceContext) Fallback() bool { return c.fallback }

// Device returns the gpu.Device.
func (c *DeviceContext) Device() gpucontext.Device { return c.dev }

// Queue returns the gpu.Queue.
func (c *DeviceContext) Queue() gpucontext.Queue { return c.queue }

// Adapter returns the gpu.Adapter.
func (c *DeviceContext) Adapter() gpucontext.Adapter { return c.adapter }

// SurfaceFormat returns the back buffer format.
func (c *DeviceContext) SurfaceFormat() gputypes.TextureFormat { return swapchain.Format }

// AdapterInfo returns the adapter name and type.
func (c *DeviceContext) AdapterInfo() gpucontext.AdapterInfo {
	return gpucontext.AdapterInfo{Name: c.info.Name, Type: adapterType(c.info.DeviceType)}
}

func adapterType(t gputypes.DeviceType) gpucontext.AdapterType {
	switch t {
	case gputypes.DeviceTypeDiscreteGPU:
		return gpucontext.AdapterTypeDiscrete
	case gputypes.DeviceTypeIntegratedGPU:
		return gpucontext.AdapterTypeIntegrated
	case gputypes.DeviceTypeCPU:
		return gpucontext.AdapterTypeSoftware
	default:
		return gpucontext.AdapterTypeUnknown
	}
}

// Close destroys the device and closes its backend. Every object created
// from the device must be released and the queue drained first.
func (c *DeviceContext) Close() {
	if c.dev == nil {
		return
	}
	untrackDevice(c.dev)
	c.dev.Destroy()
	c.dev = nil
	c.queue = nil
	if c.backend != nil {
		c.backend.Close()
		c.backend = nil
	}
}

var _ gpucontext.DeviceProvider = (*DeviceContext)(nil)
