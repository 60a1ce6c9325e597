//go:build !nogpu

package native

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/gogpu/framepipe/gpu"
	"github.com/gogpu/wgpu/hal"
)

// Descriptor strides. HAL has no descriptor heaps; framepipe heaps are
// tables of views kept on the CPU and turned into bind groups at draw time.
const (
	rtvStride     = 16
	srvStride     = 32
	samplerStride = 16
)

const (
	cpuHeapBase  = 0x0000_4000_0000_0000
	gpuHeapBase  = 0x0000_8000_0000_0000
	heapSpan     = 1 << 32
	resourceBase = 0x0010_0000
	resourceGap  = 64 << 10
)

// Device wraps a HAL device and queue.
type Device struct {
	instance hal.Instance
	raw      hal.Device
	queue    *Queue

	mu        sync.Mutex
	nextAddr  uint64
	buffers   []*buffer
	heaps     map[uint64]*heap
	nextHeap  uint64
	destroyed bool
}

func newDevice(instance hal.Instance, raw hal.Device, q hal.Queue) *Device {
	d := &Device{
		instance: instance,
		raw:      raw,
		nextAddr: resourceBase,
		heaps:    make(map[uint64]*heap),
	}
	d.queue = &Queue{dev: d, raw: q}
	return d
}

// SetLogger sets the logger for the native backend.
// Called by framepipe.SetLogger to propagate logging configuration.
func (d *Device) SetLogger(l *slog.Logger) {
	setLogger(l)
}

// Raw returns the HAL device.
func (d *Device) Raw() hal.Device {
	return d.raw
}

// DescriptorStride returns the byte distance between descriptors of kind.
func (d *Device) DescriptorStride(kind gpu.HeapKind) uint32 {
	switch kind {
	case gpu.HeapRTV:
		return rtvStride
	case gpu.HeapCBVSRVUAV:
		return srvStride
	case gpu.HeapSampler:
		return samplerStride
	default:
		return 0
	}
}

// CreateDescriptorHeap creates a descriptor table.
func (d *Device) CreateDescriptorHeap(desc gpu.HeapDescriptor) (gpu.DescriptorHeap, error) {
	stride := d.DescriptorStride(desc.Kind)
	switch {
	case stride == 0:
		return nil, fmt.Errorf("native: descriptor heap kind %v: %w", desc.Kind, gpu.ErrInvalidState)
	case desc.Capacity == 0:
		return nil, fmt.Errorf("native: descriptor heap with zero capacity: %w", gpu.ErrOutOfRange)
	case desc.Kind == gpu.HeapRTV && desc.ShaderVisible:
		return nil, fmt.Errorf("native: RTV heap cannot be shader visible: %w", gpu.ErrInvalidState)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	id := d.nextHeap
	d.nextHeap++
	h := &heap{
		dev:    d,
		id:     id,
		desc:   desc,
		stride: stride,
		cpu:    cpuHeapBase + id*heapSpan,
		slots:  make([]gpu.Resource, desc.Capacity),
	}
	if desc.ShaderVisible {
		h.gpu = gpuHeapBase + id*heapSpan
	}
	d.heaps[id] = h
	return h, nil
}

func (d *Device) resolve(ptr, base uint64, shaderVisible bool) (*heap, uint32, error) {
	if ptr < base {
		return nil, 0, fmt.Errorf("native: descriptor handle %#x: %w", ptr, gpu.ErrOutOfRange)
	}
	off := ptr - base
	d.mu.Lock()
	h := d.heaps[off/heapSpan]
	d.mu.Unlock()
	if h == nil || (shaderVisible && !h.desc.ShaderVisible) {
		return nil, 0, fmt.Errorf("native: handle outside any heap: %w", gpu.ErrOutOfRange)
	}
	rel := off % heapSpan
	i := rel / uint64(h.stride)
	if rel%uint64(h.stride) != 0 || i >= uint64(h.desc.Capacity) {
		return nil, 0, fmt.Errorf("native: descriptor offset %d: %w", rel, gpu.ErrOutOfRange)
	}
	return h, uint32(i), nil
}

func (d *Device) resolveCPU(hd gpu.CPUHandle) (*heap, uint32, error) {
	if hd.Ptr >= gpuHeapBase {
		return nil, 0, fmt.Errorf("native: GPU handle used as CPU handle: %w", gpu.ErrOutOfRange)
	}
	return d.resolve(hd.Ptr, cpuHeapBase, false)
}

func (d *Device) resolveGPU(hd gpu.GPUHandle) (*heap, uint32, error) {
	return d.resolve(hd.Ptr, gpuHeapBase, true)
}

func (d *Device) resolveAddress(addr uint64) (*buffer, uint64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, b := range d.buffers {
		if addr >= b.addr && addr < b.addr+b.desc.Width {
			return b, addr - b.addr, nil
		}
	}
	return nil, 0, fmt.Errorf("native: address %#x is not mapped: %w", addr, gpu.ErrOutOfRange)
}

// CreateResource creates a HAL buffer or texture.
func (d *Device) CreateResource(desc *gpu.ResourceDescriptor) (gpu.Resource, error) {
	if desc == nil {
		return nil, fmt.Errorf("native: nil resource descriptor: %w", gpu.ErrInvalidState)
	}
	switch desc.Dimension {
	case gpu.DimensionBuffer:
		b, err := newBuffer(d, desc)
		if err != nil {
			return nil, err
		}
		d.mu.Lock()
		b.addr = d.nextAddr
		d.nextAddr += (desc.Width + resourceGap - 1) &^ (resourceGap - 1)
		d.buffers = append(d.buffers, b)
		d.mu.Unlock()
		return b, nil
	case gpu.DimensionTexture2D:
		return newTexture(d, desc)
	default:
		return nil, fmt.Errorf("native: %q: unknown dimension: %w", desc.Label, gpu.ErrInvalidState)
	}
}

func (d *Device) forgetBuffer(b *buffer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i, o := range d.buffers {
		if o == b {
			d.buffers = append(d.buffers[:i], d.buffers[i+1:]...)
			return
		}
	}
}

// CreateRenderTargetView records res as the render target at dst.
func (d *Device) CreateRenderTargetView(res gpu.Resource, dst gpu.CPUHandle) error {
	t, ok := res.(textureResource)
	if !ok || !t.descriptor().AllowRenderTarget {
		return fmt.Errorf("native: render target view of a resource without render target usage: %w", gpu.ErrInvalidState)
	}
	return d.writeDescriptor(dst, gpu.HeapRTV, res)
}

// CreateShaderResourceView records res as a sampled texture at dst.
func (d *Device) CreateShaderResourceView(res gpu.Resource, dst gpu.CPUHandle) error {
	if _, ok := res.(*texture); !ok {
		return fmt.Errorf("native: shader resource view of a non-texture: %w", gpu.ErrInvalidState)
	}
	return d.writeDescriptor(dst, gpu.HeapCBVSRVUAV, res)
}

func (d *Device) writeDescriptor(dst gpu.CPUHandle, kind gpu.HeapKind, res gpu.Resource) error {
	h, i, err := d.resolveCPU(dst)
	if err != nil {
		return err
	}
	if h.desc.Kind != kind {
		return fmt.Errorf("native: %v view written into %v heap: %w", kind, h.desc.Kind, gpu.ErrInvalidState)
	}
	h.store(i, res)
	return nil
}

// CreateCommandAllocator creates a HAL command encoder. Bundle allocators
// carry no encoder: bundles record into render bundle encoders.
func (d *Device) CreateCommandAllocator(t gpu.ListType) (gpu.CommandAllocator, error) {
	a := &allocator{dev: d, typ: t}
	if t == gpu.ListDirect {
		enc, err := d.raw.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: "framepipe allocator"})
		if err != nil {
			return nil, fmt.Errorf("native: create command encoder: %w", err)
		}
		a.encoder = enc
	}
	return a, nil
}

// CreateCommandList creates a list recording into alloc.
func (d *Device) CreateCommandList(t gpu.ListType, alloc gpu.CommandAllocator, pso gpu.PipelineState) (gpu.CommandList, error) {
	a, ok := alloc.(*allocator)
	if !ok || a.dev != d || a.typ != t {
		return nil, fmt.Errorf("native: %v list on incompatible allocator: %w", t, gpu.ErrInvalidState)
	}
	l := &commandList{dev: d, typ: t, closed: true}
	if err := l.Reset(a, pso); err != nil {
		return nil, err
	}
	return l, nil
}

// CreateFence creates a fence over the queue's submission indices.
func (d *Device) CreateFence(initial uint64) (gpu.Fence, error) {
	return &fence{queue: d.queue, completed: initial}, nil
}

// CreateSwapChain creates a surface-backed swap chain, or an offscreen one
// when the window has no native handle.
func (d *Device) CreateSwapChain(queue gpu.Queue, win gpu.Window, desc *gpu.SwapChainDescriptor) (gpu.SwapChain, error) {
	if q, ok := queue.(*Queue); !ok || q != d.queue {
		return nil, fmt.Errorf("native: swap chain on foreign queue: %w", gpu.ErrInvalidState)
	}
	if desc == nil {
		return nil, fmt.Errorf("native: nil swap chain descriptor: %w", gpu.ErrInvalidState)
	}
	if desc.Fullscreen {
		return nil, fmt.Errorf("native: %w", gpu.ErrFullscreenUnsupported)
	}
	return newSwapChain(d, win, desc)
}

// Destroy waits for the GPU and destroys the device.
func (d *Device) Destroy() {
	d.mu.Lock()
	if d.destroyed {
		d.mu.Unlock()
		return
	}
	d.destroyed = true
	d.mu.Unlock()

	if err := d.raw.WaitIdle(); err != nil {
		slogger().Warn("native: wait idle failed", "error", err)
	}
	d.raw.Destroy()
}
