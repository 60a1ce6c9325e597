package reference

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/gogpu/framepipe/gpu"
	"github.com/gogpu/framepipe/internal/parallel"
)

// Descriptor strides. Callers must query them through DescriptorStride.
const (
	rtvStride     = 32
	srvStride     = 64
	samplerStride = 48
)

// Address space layout of the reference device.
const (
	cpuHeapBase  = 0x0000_1000_0000_0000
	gpuHeapBase  = 0x0000_2000_0000_0000
	heapSpan     = 1 << 32
	resourceBase = 0x0001_0000
	resourceGap  = 64 << 10
)

// Device is a reference device. All GPU work runs on the timeline goroutine
// owned by its Queue.
type Device struct {
	cfg   config
	queue *Queue
	pool  *parallel.WorkerPool

	mu        sync.Mutex
	nextAddr  uint64
	buffers   []*resource
	heaps     map[uint64]*heap
	nextHeap  uint64
	fences    map[*fence]struct{}
	destroyed bool
}

func newDevice(cfg config) *Device {
	d := &Device{
		cfg:      cfg,
		nextAddr: resourceBase,
		heaps:    make(map[uint64]*heap),
		fences:   make(map[*fence]struct{}),
	}
	if cfg.workers > 1 {
		d.pool = parallel.NewWorkerPool(cfg.workers)
	}
	d.queue = newQueue(d)
	return d
}

// SetLogger sets the logger for the reference backend.
// Called by framepipe.SetLogger to propagate logging configuration.
func (d *Device) SetLogger(l *slog.Logger) {
	setLogger(l)
}

// Debug reports whether the debug layer is enabled.
func (d *Device) Debug() bool {
	return d.cfg.debug
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

// CreateDescriptorHeap creates a descriptor heap.
func (d *Device) CreateDescriptorHeap(desc gpu.HeapDescriptor) (gpu.DescriptorHeap, error) {
	stride := d.DescriptorStride(desc.Kind)
	if stride == 0 {
		return nil, fmt.Errorf("reference: descriptor heap kind %v: %w", desc.Kind, gpu.ErrInvalidState)
	}
	if desc.Capacity == 0 {
		return nil, fmt.Errorf("reference: descriptor heap with zero capacity: %w", gpu.ErrOutOfRange)
	}
	if desc.Kind == gpu.HeapRTV && desc.ShaderVisible {
		return nil, fmt.Errorf("reference: RTV heap cannot be shader visible: %w", gpu.ErrInvalidState)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.destroyed {
		return nil, gpu.ErrDestroyed
	}

	id := d.nextHeap
	d.nextHeap++
	h := &heap{
		dev:    d,
		id:     id,
		desc:   desc,
		stride: stride,
		cpu:    cpuHeapBase + id*heapSpan,
		slots:  make([]descriptor, desc.Capacity),
	}
	if desc.ShaderVisible {
		h.gpu = gpuHeapBase + id*heapSpan
	}
	d.heaps[id] = h
	return h, nil
}

// CreateResource creates a buffer or texture backed by host memory.
func (d *Device) CreateResource(desc *gpu.ResourceDescriptor) (gpu.Resource, error) {
	if desc == nil {
		return nil, fmt.Errorf("reference: nil resource descriptor: %w", gpu.ErrInvalidState)
	}
	if err := validateResource(desc); err != nil {
		return nil, err
	}

	size := desc.Width
	if desc.Dimension == gpu.DimensionTexture2D {
		size = gpu.SlicePitch(gpu.RowPitch(uint32(desc.Width), gpu.BytesPerPixel(desc.Format)), desc.Height)
	}

	r := &resource{
		dev:   d,
		desc:  *desc,
		data:  make([]byte, size),
		state: desc.InitialState,
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.destroyed {
		return nil, gpu.ErrDestroyed
	}
	if desc.Dimension == gpu.DimensionBuffer {
		r.addr = d.nextAddr
		d.nextAddr += (size + resourceGap - 1) &^ (resourceGap - 1)
		d.buffers = append(d.buffers, r)
	}
	return r, nil
}

func validateResource(desc *gpu.ResourceDescriptor) error {
	switch desc.Dimension {
	case gpu.DimensionBuffer:
		if desc.Width == 0 {
			return fmt.Errorf("reference: %q: zero-sized buffer: %w", desc.Label, gpu.ErrOutOfRange)
		}
		if desc.AllowRenderTarget {
			return fmt.Errorf("reference: %q: buffers cannot be render targets: %w", desc.Label, gpu.ErrInvalidState)
		}
	case gpu.DimensionTexture2D:
		if desc.Width == 0 || desc.Height == 0 {
			return fmt.Errorf("reference: %q: zero-sized texture: %w", desc.Label, gpu.ErrOutOfRange)
		}
		if gpu.BytesPerPixel(desc.Format) == 0 {
			return fmt.Errorf("reference: %q: unsupported format %v: %w", desc.Label, desc.Format, gpu.ErrInvalidState)
		}
		if desc.Heap != gpu.HeapDefault {
			return fmt.Errorf("reference: %q: textures must live in the default heap: %w", desc.Label, gpu.ErrInvalidState)
		}
	default:
		return fmt.Errorf("reference: %q: unknown dimension: %w", desc.Label, gpu.ErrInvalidState)
	}

	switch desc.Heap {
	case gpu.HeapUpload:
		if desc.InitialState != gpu.StateGenericRead {
			return fmt.Errorf("reference: %q: upload heap resources must start in GenericRead: %w", desc.Label, gpu.ErrInvalidState)
		}
	case gpu.HeapReadback:
		if desc.InitialState != gpu.StateCopyDest {
			return fmt.Errorf("reference: %q: readback heap resources must start in CopyDest: %w", desc.Label, gpu.ErrInvalidState)
		}
	}
	if !desc.InitialState.Valid() {
		return fmt.Errorf("reference: %q: invalid initial state %v: %w", desc.Label, desc.InitialState, gpu.ErrInvalidState)
	}
	return nil
}

// CreateRenderTargetView writes a render-target view of res at dst.
func (d *Device) CreateRenderTargetView(res gpu.Resource, dst gpu.CPUHandle) error {
	r, ok := res.(*resource)
	if !ok || r.dev != d {
		return fmt.Errorf("reference: render target view of foreign resource: %w", gpu.ErrInvalidState)
	}
	if r.desc.Dimension != gpu.DimensionTexture2D || !r.desc.AllowRenderTarget {
		return fmt.Errorf("reference: %q does not allow render target views: %w", r.desc.Label, gpu.ErrInvalidState)
	}
	if gpu.BytesPerPixel(r.desc.Format) != 4 {
		return fmt.Errorf("reference: render target format %v: %w", r.desc.Format, gpu.ErrInvalidState)
	}
	return d.writeDescriptor(dst, gpu.HeapRTV, descriptor{res: r, view: viewRTV})
}

// CreateShaderResourceView writes a shader-resource view of res at dst.
func (d *Device) CreateShaderResourceView(res gpu.Resource, dst gpu.CPUHandle) error {
	r, ok := res.(*resource)
	if !ok || r.dev != d {
		return fmt.Errorf("reference: shader resource view of foreign resource: %w", gpu.ErrInvalidState)
	}
	if r.desc.Dimension != gpu.DimensionTexture2D || gpu.BytesPerPixel(r.desc.Format) != 4 {
		return fmt.Errorf("reference: %q is not a sampleable texture: %w", r.desc.Label, gpu.ErrInvalidState)
	}
	return d.writeDescriptor(dst, gpu.HeapCBVSRVUAV, descriptor{res: r, view: viewSRV})
}

func (d *Device) writeDescriptor(dst gpu.CPUHandle, kind gpu.HeapKind, desc descriptor) error {
	h, i, err := d.resolveCPU(dst)
	if err != nil {
		return err
	}
	if h.desc.Kind != kind {
		return fmt.Errorf("reference: %v view written into %v heap: %w", kind, h.desc.Kind, gpu.ErrInvalidState)
	}
	h.store(i, desc)
	return nil
}

// resolveCPU maps a CPU handle to its heap and slot.
func (d *Device) resolveCPU(hd gpu.CPUHandle) (*heap, uint32, error) {
	if hd.Ptr < cpuHeapBase || hd.Ptr >= gpuHeapBase {
		return nil, 0, fmt.Errorf("reference: CPU handle %#x: %w", hd.Ptr, gpu.ErrOutOfRange)
	}
	return d.resolve(hd.Ptr-cpuHeapBase, false)
}

// resolveGPU maps a shader-visible GPU handle to its heap and slot.
func (d *Device) resolveGPU(hd gpu.GPUHandle) (*heap, uint32, error) {
	if hd.Ptr < gpuHeapBase {
		return nil, 0, fmt.Errorf("reference: GPU handle %#x: %w", hd.Ptr, gpu.ErrOutOfRange)
	}
	return d.resolve(hd.Ptr-gpuHeapBase, true)
}

func (d *Device) resolve(off uint64, shaderVisible bool) (*heap, uint32, error) {
	d.mu.Lock()
	h := d.heaps[off/heapSpan]
	d.mu.Unlock()
	if h == nil || (shaderVisible && !h.desc.ShaderVisible) {
		return nil, 0, fmt.Errorf("reference: handle outside any heap: %w", gpu.ErrOutOfRange)
	}
	rel := off % heapSpan
	if rel%uint64(h.stride) != 0 {
		return nil, 0, fmt.Errorf("reference: handle not on a descriptor boundary: %w", gpu.ErrOutOfRange)
	}
	i := rel / uint64(h.stride)
	if i >= uint64(h.desc.Capacity) {
		return nil, 0, fmt.Errorf("reference: descriptor %d of %d: %w", i, h.desc.Capacity, gpu.ErrOutOfRange)
	}
	return h, uint32(i), nil
}

// resolveAddress maps a GPU virtual address to a buffer and an offset.
func (d *Device) resolveAddress(addr uint64) (*resource, uint64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, r := range d.buffers {
		if addr >= r.addr && addr < r.addr+uint64(len(r.data)) {
			return r, addr - r.addr, nil
		}
	}
	return nil, 0, fmt.Errorf("reference: address %#x is not mapped: %w", addr, gpu.ErrOutOfRange)
}

// CreateRootSignature validates the binding layout.
func (d *Device) CreateRootSignature(desc *gpu.RootSignatureDescriptor) (gpu.RootSignature, error) {
	if desc == nil {
		return nil, fmt.Errorf("reference: nil root signature: %w", gpu.ErrRootSignature)
	}
	for i, p := range desc.Parameters {
		if len(p.Ranges) == 0 {
			return nil, fmt.Errorf("reference: root parameter %d has no ranges: %w", i, gpu.ErrRootSignature)
		}
		samplers := p.Ranges[0].Kind == gpu.HeapSampler
		for _, r := range p.Ranges {
			if r.Kind == gpu.HeapRTV {
				return nil, fmt.Errorf("reference: root parameter %d references render target views: %w", i, gpu.ErrRootSignature)
			}
			if r.Count == 0 {
				return nil, fmt.Errorf("reference: root parameter %d has an empty range: %w", i, gpu.ErrRootSignature)
			}
			if (r.Kind == gpu.HeapSampler) != samplers {
				return nil, fmt.Errorf("reference: root parameter %d mixes samplers with views: %w", i, gpu.ErrRootSignature)
			}
		}
	}
	for i, s := range desc.StaticSamplers {
		for _, o := range desc.StaticSamplers[:i] {
			if o.Register == s.Register {
				return nil, fmt.Errorf("reference: static sampler register s%d bound twice: %w", s.Register, gpu.ErrRootSignature)
			}
		}
	}

	rs := &rootSignature{desc: *desc}
	rs.desc.Parameters = append([]gpu.RootParameter(nil), desc.Parameters...)
	rs.desc.StaticSamplers = append([]gpu.StaticSampler(nil), desc.StaticSamplers...)
	return rs, nil
}

// CreatePipelineState builds a pipeline from compiled stages.
func (d *Device) CreatePipelineState(desc *gpu.PipelineStateDescriptor) (gpu.PipelineState, error) {
	if desc == nil {
		return nil, fmt.Errorf("reference: nil pipeline state: %w", gpu.ErrInvalidState)
	}
	return newPipelineState(desc)
}

// CreateCommandAllocator creates command storage for lists of type t.
func (d *Device) CreateCommandAllocator(t gpu.ListType) (gpu.CommandAllocator, error) {
	if t != gpu.ListDirect && t != gpu.ListBundle {
		return nil, fmt.Errorf("reference: list type %v: %w", t, gpu.ErrInvalidState)
	}
	return &allocator{dev: d, typ: t}, nil
}

// CreateCommandList creates a list in the recording state.
func (d *Device) CreateCommandList(t gpu.ListType, alloc gpu.CommandAllocator, pso gpu.PipelineState) (gpu.CommandList, error) {
	a, ok := alloc.(*allocator)
	if !ok || a.dev != d {
		return nil, fmt.Errorf("reference: command list with foreign allocator: %w", gpu.ErrInvalidState)
	}
	if a.typ != t {
		return nil, fmt.Errorf("reference: %v list on %v allocator: %w", t, a.typ, gpu.ErrInvalidState)
	}
	l := &commandList{dev: d, typ: t, closed: true}
	if err := l.Reset(a, pso); err != nil {
		return nil, err
	}
	return l, nil
}

// CreateFence creates a fence starting at initial.
func (d *Device) CreateFence(initial uint64) (gpu.Fence, error) {
	if d.cfg.faults&FaultFence != 0 {
		return nil, fmt.Errorf("reference: create fence: %w", gpu.ErrSyncObject)
	}
	f := &fence{dev: d}
	f.value.Store(initial)

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.destroyed {
		return nil, fmt.Errorf("reference: create fence: %w: %w", gpu.ErrSyncObject, gpu.ErrDestroyed)
	}
	d.fences[f] = struct{}{}
	return f, nil
}

// CreateSwapChain creates a windowed swap chain. Reference swap chains
// present to memory; the window may be headless.
func (d *Device) CreateSwapChain(queue gpu.Queue, win gpu.Window, desc *gpu.SwapChainDescriptor) (gpu.SwapChain, error) {
	if q, ok := queue.(*Queue); !ok || q != d.queue {
		return nil, fmt.Errorf("reference: swap chain on foreign queue: %w", gpu.ErrInvalidState)
	}
	if desc == nil {
		return nil, fmt.Errorf("reference: nil swap chain descriptor: %w", gpu.ErrInvalidState)
	}
	if desc.Fullscreen {
		return nil, fmt.Errorf("reference: %w", gpu.ErrFullscreenUnsupported)
	}
	return newSwapChain(d, desc)
}

// Destroy stops the queue timeline. Pending work is discarded.
func (d *Device) Destroy() {
	d.mu.Lock()
	if d.destroyed {
		d.mu.Unlock()
		return
	}
	d.destroyed = true
	d.mu.Unlock()

	d.queue.stop()
	if d.pool != nil {
		d.pool.Close()
	}
	slogger().Debug("reference: device destroyed")
}

func (d *Device) forgetBuffer(r *resource) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i, b := range d.buffers {
		if b == r {
			d.buffers = append(d.buffers[:i], d.buffers[i+1:]...)
			return
		}
	}
}

func (d *Device) forgetHeap(h *heap) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.heaps, h.id)
}

func (d *Device) forgetFence(f *fence) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.fences, f)
}

// abandonFences wakes every waiter after device loss.
func (d *Device) abandonFences() {
	d.mu.Lock()
	fs := make([]*fence, 0, len(d.fences))
	for f := range d.fences {
		fs = append(fs, f)
	}
	d.mu.Unlock()
	for _, f := range fs {
		f.abandon()
	}
}
