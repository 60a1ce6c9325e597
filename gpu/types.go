package gpu

import (
	"fmt"

	"github.com/gogpu/gputypes"
)

// FeatureLevel is the capability tier an adapter supports.
// Higher values are strictly more capable.
type FeatureLevel uint32

// Feature levels.
const (
	// FeatureLevel9_3 covers legacy and minimal software rasterizers.
	FeatureLevel9_3 FeatureLevel = 0x9300

	// FeatureLevel10_0 covers adapters without full compute support.
	FeatureLevel10_0 FeatureLevel = 0xa000

	// FeatureLevel11_0 is the minimum level framepipe pipelines require.
	FeatureLevel11_0 FeatureLevel = 0xb000

	// FeatureLevel12_0 covers current desktop hardware.
	FeatureLevel12_0 FeatureLevel = 0xc000
)

// String returns the level in major_minor form.
func (l FeatureLevel) String() string {
	return fmt.Sprintf("%d_%d", l>>12, (l>>8)&0xf)
}

// AdapterInfo describes a physical or software adapter.
type AdapterInfo struct {
	// Name is the human-readable adapter name.
	Name string

	// DeviceType distinguishes discrete, integrated and CPU adapters.
	DeviceType gputypes.DeviceType

	// Backend is the name of the framepipe backend exposing the adapter.
	Backend string

	// FeatureLevel is the highest level the adapter supports.
	FeatureLevel FeatureLevel
}

// Software reports whether the adapter renders on the CPU.
func (i AdapterInfo) Software() bool {
	return i.DeviceType == gputypes.DeviceTypeCPU
}

// ListType selects what a command allocator and command list are used for.
type ListType uint8

// Command list types.
const (
	// ListDirect lists are executed on the direct queue.
	ListDirect ListType = iota

	// ListBundle lists are replayed inside direct lists via ExecuteBundle.
	ListBundle
)

// String returns the list type name.
func (t ListType) String() string {
	switch t {
	case ListDirect:
		return "Direct"
	case ListBundle:
		return "Bundle"
	default:
		return "Unknown"
	}
}

// HeapKind is the purpose of a descriptor heap.
type HeapKind uint8

// Descriptor heap kinds.
const (
	// HeapRTV holds render-target views. Never shader visible.
	HeapRTV HeapKind = iota

	// HeapCBVSRVUAV holds constant-buffer, shader-resource and unordered-access views.
	HeapCBVSRVUAV

	// HeapSampler holds sampler descriptors.
	HeapSampler
)

// String returns the heap kind name.
func (k HeapKind) String() string {
	switch k {
	case HeapRTV:
		return "RTV"
	case HeapCBVSRVUAV:
		return "CBV_SRV_UAV"
	case HeapSampler:
		return "Sampler"
	default:
		return "Unknown"
	}
}

// HeapDescriptor describes a descriptor heap.
type HeapDescriptor struct {
	Kind          HeapKind
	Capacity      uint32
	ShaderVisible bool
}

// CPUHandle addresses a descriptor from the CPU side.
type CPUHandle struct {
	Ptr uint64
}

// Offset returns the handle index*stride bytes past h.
func (h CPUHandle) Offset(index, stride uint32) CPUHandle {
	return CPUHandle{Ptr: h.Ptr + uint64(index)*uint64(stride)}
}

// GPUHandle addresses a descriptor from shader-visible tables.
type GPUHandle struct {
	Ptr uint64
}

// Offset returns the handle index*stride bytes past h.
func (h GPUHandle) Offset(index, stride uint32) GPUHandle {
	return GPUHandle{Ptr: h.Ptr + uint64(index)*uint64(stride)}
}

// HeapType selects the memory pool a resource lives in.
type HeapType uint8

// Memory heap types.
const (
	// HeapDefault is device-local memory, not CPU accessible.
	HeapDefault HeapType = iota

	// HeapUpload is CPU-writable memory the GPU reads from.
	HeapUpload

	// HeapReadback is GPU-writable memory the CPU reads from.
	HeapReadback
)

// String returns the heap type name.
func (t HeapType) String() string {
	switch t {
	case HeapDefault:
		return "Default"
	case HeapUpload:
		return "Upload"
	case HeapReadback:
		return "Readback"
	default:
		return "Unknown"
	}
}

// Dimension is the shape of a resource.
type Dimension uint8

// Resource dimensions.
const (
	// DimensionBuffer is a linear byte range.
	DimensionBuffer Dimension = iota

	// DimensionTexture2D is a single-mip 2D image.
	DimensionTexture2D
)

// ResourceDescriptor describes a buffer or texture.
type ResourceDescriptor struct {
	// Label is an optional debug label.
	Label string

	// Dimension selects buffer or texture.
	Dimension Dimension

	// Width is the size in bytes for buffers and in texels for textures.
	Width uint64

	// Height is the texture height in texels. Ignored for buffers.
	Height uint32

	// Format is the texel format. Ignored for buffers.
	Format gputypes.TextureFormat

	// Heap selects the memory pool.
	Heap HeapType

	// InitialState is the state the resource is created in.
	InitialState ResourceState

	// AllowRenderTarget permits render-target views of a texture.
	AllowRenderTarget bool
}

// BufferDesc returns a descriptor for a buffer of size bytes.
func BufferDesc(label string, size uint64, heap HeapType, state ResourceState) *ResourceDescriptor {
	return &ResourceDescriptor{
		Label:        label,
		Dimension:    DimensionBuffer,
		Width:        size,
		Heap:         heap,
		InitialState: state,
	}
}

// Texture2DDesc returns a descriptor for a device-local 2D texture.
func Texture2DDesc(label string, width, height uint32, format gputypes.TextureFormat, state ResourceState) *ResourceDescriptor {
	return &ResourceDescriptor{
		Label:        label,
		Dimension:    DimensionTexture2D,
		Width:        uint64(width),
		Height:       height,
		Format:       format,
		Heap:         HeapDefault,
		InitialState: state,
	}
}

// Barrier is a resource state transition recorded into a command list.
type Barrier struct {
	Resource Resource
	Before   ResourceState
	After    ResourceState
}

// Transition returns the barrier moving res from before to after.
func Transition(res Resource, before, after ResourceState) Barrier {
	return Barrier{Resource: res, Before: before, After: after}
}

// Viewport maps normalized device coordinates to the render target.
type Viewport struct {
	X, Y          float32
	Width, Height float32
	MinDepth      float32
	MaxDepth      float32
}

// Rect is a scissor rectangle in pixels. Right and Bottom are exclusive.
type Rect struct {
	Left, Top, Right, Bottom int32
}

// VertexBufferView binds a range of a buffer as vertex input.
type VertexBufferView struct {
	Location uint64
	Size     uint32
	Stride   uint32
}

// Topology is the primitive topology used by draws.
type Topology uint8

// Primitive topologies.
const (
	// TopologyTriangleList draws independent triangles.
	TopologyTriangleList Topology = iota
)

// Semantic identifies the meaning of a vertex attribute.
type Semantic uint8

// Vertex semantics.
const (
	// SemanticPosition is a float3 position in normalized device coordinates.
	SemanticPosition Semantic = iota

	// SemanticColor is a float4 RGBA color.
	SemanticColor

	// SemanticTexCoord is a float2 texture coordinate.
	SemanticTexCoord
)

// InputElement describes one attribute of the vertex input layout.
type InputElement struct {
	Semantic Semantic
	Format   gputypes.VertexFormat
	Offset   uint32
}

// DescriptorRange is a run of descriptors in a root descriptor table.
type DescriptorRange struct {
	Kind         HeapKind
	Count        uint32
	BaseRegister uint32
}

// RootParameter is a descriptor table bound at a root parameter index.
type RootParameter struct {
	Ranges     []DescriptorRange
	Visibility gputypes.ShaderStages
}

// StaticSampler is a sampler baked into the root signature.
type StaticSampler struct {
	Register uint32
	Filter   gputypes.FilterMode
	Address  gputypes.AddressMode
}

// RootSignatureDescriptor describes the bindings a pipeline expects.
type RootSignatureDescriptor struct {
	Parameters       []RootParameter
	StaticSamplers   []StaticSampler
	AllowInputLayout bool
}

// ShaderBytecode is a compiled shader stage.
type ShaderBytecode struct {
	// EntryPoint is the function name within the module.
	EntryPoint string

	// Source is the shader text the bytecode was produced from.
	Source string

	// Code is the compiled module.
	Code []byte
}

// PipelineStateDescriptor describes a graphics pipeline.
type PipelineStateDescriptor struct {
	Label         string
	RootSignature RootSignature
	VS            ShaderBytecode
	PS            ShaderBytecode
	InputLayout   []InputElement
	Topology      Topology
	RTVFormat     gputypes.TextureFormat
}

// VertexStride returns the byte stride implied by the input layout.
func (d *PipelineStateDescriptor) VertexStride() uint32 {
	var stride uint32
	for _, e := range d.InputLayout {
		end := e.Offset + uint32(e.Format.Size())
		if end > stride {
			stride = end
		}
	}
	return stride
}

// TextureFootprint is the placement of texture data inside a buffer.
type TextureFootprint struct {
	Offset   uint64
	Format   gputypes.TextureFormat
	Width    uint32
	Height   uint32
	RowPitch uint32
}

// SwapChainDescriptor describes a presentable chain of back buffers.
type SwapChainDescriptor struct {
	Width      uint32
	Height     uint32
	Format     gputypes.TextureFormat
	FrameCount uint32

	// Fullscreen requests exclusive fullscreen. No backend supports it;
	// creation fails with ErrFullscreenUnsupported.
	Fullscreen bool
}
