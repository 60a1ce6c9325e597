package gpu

import "github.com/gogpu/gputypes"

// Adapter is a physical or software GPU exposed by a backend.
type Adapter interface {
	// Info returns adapter metadata and its feature level.
	Info() AdapterInfo

	// Open creates the logical device and its single direct queue.
	// Returns an error wrapping ErrDeviceCreation on failure.
	Open() (Device, Queue, error)
}

// Window is the native presentation target supplied by the host.
type Window interface {
	// NativeHandle returns the platform window handle (HWND, X11 Window, NSView*).
	// Zero means headless.
	NativeHandle() uintptr

	// DisplayHandle returns the platform display connection, if any.
	DisplayHandle() uintptr
}

// Device creates and owns every other GPU object.
type Device interface {
	// DescriptorStride returns the byte distance between consecutive
	// descriptors of the given kind. The value is implementation-defined
	// and must be queried, never assumed.
	DescriptorStride(kind HeapKind) uint32

	// CreateDescriptorHeap creates a fixed-capacity descriptor table.
	CreateDescriptorHeap(desc HeapDescriptor) (DescriptorHeap, error)

	// CreateResource creates a buffer or texture.
	CreateResource(desc *ResourceDescriptor) (Resource, error)

	// CreateRenderTargetView writes a render-target view of res at dst.
	CreateRenderTargetView(res Resource, dst CPUHandle) error

	// CreateShaderResourceView writes a shader-resource view of res at dst.
	CreateShaderResourceView(res Resource, dst CPUHandle) error

	// CreateRootSignature validates and builds a root signature.
	// Returns an error wrapping ErrRootSignature if the layout is invalid.
	CreateRootSignature(desc *RootSignatureDescriptor) (RootSignature, error)

	// CreatePipelineState builds a graphics pipeline from compiled stages.
	CreatePipelineState(desc *PipelineStateDescriptor) (PipelineState, error)

	// CreateCommandAllocator creates backing storage for recorded commands.
	CreateCommandAllocator(t ListType) (CommandAllocator, error)

	// CreateCommandList creates a list in the recording state, bound to alloc.
	CreateCommandList(t ListType, alloc CommandAllocator, pso PipelineState) (CommandList, error)

	// CreateFence creates a fence whose completed value starts at initial.
	// Returns an error wrapping ErrSyncObject on failure.
	CreateFence(initial uint64) (Fence, error)

	// CreateSwapChain creates a windowed chain of presentable back buffers.
	// The queue is used to order presentation after rendering.
	CreateSwapChain(queue Queue, win Window, desc *SwapChainDescriptor) (SwapChain, error)

	// Destroy releases the device. Every object created from it must
	// already be destroyed and the queue drained.
	Destroy()
}

// Queue is the single ordered submission channel of a device.
// Work executes asynchronously, in submission order.
type Queue interface {
	// Execute submits closed command lists for execution.
	Execute(lists ...CommandList) error

	// Signal sets fence to value on the GPU timeline once all previously
	// submitted work has completed.
	Signal(fence Fence, value uint64) error
}

// Fence is a monotonically increasing counter shared by the CPU and GPU.
type Fence interface {
	// CompletedValue returns the last value the GPU timeline reached.
	CompletedValue() uint64

	// Done returns a channel closed once the completed value is at least
	// value. There is no timeout. The error wraps ErrSyncObject when the
	// wait cannot be registered or ErrDeviceLost when the device is gone.
	Done(value uint64) (<-chan struct{}, error)

	// Destroy releases the fence.
	Destroy()
}

// Resource is GPU-visible memory with a tracked state.
type Resource interface {
	// Desc returns the descriptor the resource was created with.
	Desc() ResourceDescriptor

	// GPUAddress returns the virtual address used by vertex buffer views.
	GPUAddress() uint64

	// Map returns CPU access to upload or readback memory.
	Map() ([]byte, error)

	// Unmap ends CPU access started by Map.
	Unmap()

	// Destroy releases the memory. The GPU must no longer reference it.
	Destroy()
}

// DescriptorHeap is a contiguous fixed-stride table of view descriptors.
type DescriptorHeap interface {
	Kind() HeapKind
	Capacity() uint32
	ShaderVisible() bool

	// CPUStart returns the handle of slot 0 for descriptor writes.
	CPUStart() CPUHandle

	// GPUStart returns the handle of slot 0 for shader tables.
	// Zero for heaps that are not shader visible.
	GPUStart() GPUHandle

	Destroy()
}

// RootSignature describes the resources bound to a pipeline.
type RootSignature interface {
	Destroy()
}

// PipelineState is a compiled graphics pipeline.
type PipelineState interface {
	Destroy()
}

// CommandAllocator is the backing storage for recorded commands.
type CommandAllocator interface {
	// Type returns the list type the allocator serves.
	Type() ListType

	// Reset reclaims the storage. Legal only after the GPU has retired
	// every list recorded from this allocator.
	Reset() error

	Destroy()
}

// CommandList records GPU commands. Recording methods do not return
// errors: the first failure is kept and reported by Close.
type CommandList interface {
	// Type returns the list type.
	Type() ListType

	// Reset reopens a closed list for recording into alloc with pso bound.
	Reset(alloc CommandAllocator, pso PipelineState) error

	// Close ends recording. The list may then be executed or replayed.
	Close() error

	SetPipelineState(pso PipelineState)
	SetRootSignature(rs RootSignature)
	SetDescriptorHeaps(heaps ...DescriptorHeap)
	SetRootDescriptorTable(index uint32, base GPUHandle)
	SetViewport(vp Viewport)
	SetScissorRect(r Rect)

	// Barrier records state transitions.
	Barrier(barriers ...Barrier)

	// SetRenderTarget binds the render-target view at rtv.
	SetRenderTarget(rtv CPUHandle)

	// ClearRenderTarget fills the view at rtv with color.
	ClearRenderTarget(rtv CPUHandle, color gputypes.Color)

	SetPrimitiveTopology(t Topology)
	SetVertexBuffers(start uint32, views ...VertexBufferView)
	Draw(vertexCount, instanceCount, startVertex, startInstance uint32)

	// ExecuteBundle replays a closed bundle list.
	ExecuteBundle(bundle CommandList)

	// CopyBuffer copies size bytes between buffers.
	CopyBuffer(dst Resource, dstOffset uint64, src Resource, srcOffset, size uint64)

	// CopyBufferToTexture copies a footprint in src into texture dst.
	CopyBufferToTexture(dst Resource, src Resource, footprint TextureFootprint)

	// CopyTextureToBuffer copies texture src into dst at footprint.
	CopyTextureToBuffer(dst Resource, footprint TextureFootprint, src Resource)

	Destroy()
}

// SwapChain is a cyclic set of presentable back buffers.
type SwapChain interface {
	// FrameCount returns the number of back buffers.
	FrameCount() uint32

	// CurrentBackBufferIndex returns the buffer to render into. It changes
	// only as a side effect of Present.
	CurrentBackBufferIndex() uint32

	// BackBuffer returns back buffer i.
	BackBuffer(i uint32) (Resource, error)

	// Present queues the current back buffer for display and returns
	// without waiting for it to be shown.
	Present(syncInterval uint32) error

	Destroy()
}
