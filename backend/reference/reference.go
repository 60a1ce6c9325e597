package reference

import (
	"fmt"
	"runtime"

	"github.com/gogpu/framepipe/backend"
	"github.com/gogpu/framepipe/gpu"
	"github.com/gogpu/gputypes"
)

// AdapterName is the name reported by the reference adapter.
const AdapterName = "framepipe reference rasterizer"

// Fault selects failures the reference device injects on purpose.
type Fault uint8

// Injectable faults.
const (
	// FaultOpen makes Adapter.Open fail.
	FaultOpen Fault = 1 << iota

	// FaultFence makes Device.CreateFence fail.
	FaultFence
)

type config struct {
	debug   bool
	faults  Fault
	level   gpu.FeatureLevel
	workers int
}

// Option configures a reference adapter.
type Option func(*config)

// WithDebugLayer enables validation of command execution: barriers whose
// Before state does not match the tracked state, resets of allocators still
// in flight and presents of back buffers outside the present state become
// errors instead of being silently accepted.
func WithDebugLayer() Option {
	return func(c *config) {
		c.debug = true
	}
}

// WithFaults injects the given failures.
func WithFaults(f Fault) Option {
	return func(c *config) {
		c.faults |= f
	}
}

// WithFeatureLevel overrides the reported feature level.
func WithFeatureLevel(l gpu.FeatureLevel) Option {
	return func(c *config) {
		c.level = l
	}
}

// WithWorkers sets how many goroutines rasterize a draw. Values below 2
// rasterize on the queue timeline itself. The default is GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(c *config) {
		c.workers = n
	}
}

func init() {
	backend.Register(backend.BackendReference, func() backend.Backend {
		return &Backend{}
	})
}

// Backend exposes a single reference adapter.
type Backend struct {
	initialized bool
}

// Name returns the backend identifier.
func (b *Backend) Name() string {
	return backend.BackendReference
}

// Init prepares the backend. The reference backend is always available.
func (b *Backend) Init() error {
	b.initialized = true
	return nil
}

// Close releases the backend.
func (b *Backend) Close() {
	b.initialized = false
}

// Adapters returns the reference adapter with default options.
func (b *Backend) Adapters() ([]gpu.Adapter, error) {
	if !b.initialized {
		return nil, backend.ErrNotInitialized
	}
	return []gpu.Adapter{NewAdapter()}, nil
}

// Adapter is the CPU reference adapter.
type Adapter struct {
	cfg config
}

// NewAdapter creates a reference adapter.
func NewAdapter(opts ...Option) *Adapter {
	cfg := config{level: gpu.FeatureLevel11_0, workers: runtime.GOMAXPROCS(0)}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Adapter{cfg: cfg}
}

// Info returns the adapter description.
func (a *Adapter) Info() gpu.AdapterInfo {
	return gpu.AdapterInfo{
		Name:         AdapterName,
		DeviceType:   gputypes.DeviceTypeCPU,
		Backend:      backend.BackendReference,
		FeatureLevel: a.cfg.level,
	}
}

// Open creates a device and starts its queue timeline.
func (a *Adapter) Open() (gpu.Device, gpu.Queue, error) {
	if a.cfg.faults&FaultOpen != 0 {
		return nil, nil, fmt.Errorf("reference: open: %w", gpu.ErrDeviceCreation)
	}
	d := newDevice(a.cfg)
	slogger().Debug("reference: device opened", "debug", a.cfg.debug, "workers", a.cfg.workers)
	return d, d.queue, nil
}
