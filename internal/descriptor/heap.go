// Package descriptor manages fixed-capacity descriptor heaps.
//
// A Heap is a table of view descriptors with a stride queried once from the
// device. Slot i always describes the resource assigned to slot i; heaps are
// never resized.
package descriptor

import (
	"fmt"

	"github.com/gogpu/framepipe/gpu"
)

// Heap is a fixed-capacity descriptor table.
type Heap struct {
	raw    gpu.DescriptorHeap
	stride uint32
	cpu    gpu.CPUHandle
	gpu    gpu.GPUHandle
}

// Manager creates heaps on one device and caches descriptor strides.
type Manager struct {
	dev     gpu.Device
	strides map[gpu.HeapKind]uint32
}

// NewManager returns a heap manager for dev.
func NewManager(dev gpu.Device) *Manager {
	return &Manager{dev: dev, strides: make(map[gpu.HeapKind]uint32)}
}

// Stride returns the descriptor stride of kind, querying the device once.
func (m *Manager) Stride(kind gpu.HeapKind) uint32 {
	s, ok := m.strides[kind]
	if !ok {
		s = m.dev.DescriptorStride(kind)
		m.strides[kind] = s
	}
	return s
}

// CreateHeap creates a heap of count descriptors. RTV heaps cannot be
// shader visible.
func (m *Manager) CreateHeap(kind gpu.HeapKind, count uint32, shaderVisible bool) (*Heap, error) {
	if count == 0 {
		return nil, fmt.Errorf("descriptor: %v heap with zero capacity: %w", kind, gpu.ErrOutOfRange)
	}
	if kind == gpu.HeapRTV && shaderVisible {
		return nil, fmt.Errorf("descriptor: RTV heaps are never shader visible: %w", gpu.ErrInvalidState)
	}
	raw, err := m.dev.CreateDescriptorHeap(gpu.HeapDescriptor{
		Kind:          kind,
		Capacity:      count,
		ShaderVisible: shaderVisible,
	})
	if err != nil {
		return nil, fmt.Errorf("descriptor: create %v heap: %w", kind, err)
	}
	return &Heap{
		raw:    raw,
		stride: m.Stride(kind),
		cpu:    raw.CPUStart(),
		gpu:    raw.GPUStart(),
	}, nil
}

// Raw returns the device heap, for binding to command lists.
func (h *Heap) Raw() gpu.DescriptorHeap { return h.raw }

// Kind returns the heap kind.
func (h *Heap) Kind() gpu.HeapKind { return h.raw.Kind() }

// Capacity returns the number of slots.
func (h *Heap) Capacity() uint32 { return h.raw.Capacity() }

// ShaderVisible reports whether shaders can reference the heap.
func (h *Heap) ShaderVisible() bool { return h.raw.ShaderVisible() }

// Stride returns the byte distance between slots.
func (h *Heap) Stride() uint32 { return h.stride }

// CPUHandleAt returns the CPU handle of slot i.
func (h *Heap) CPUHandleAt(i uint32) (gpu.CPUHandle, error) {
	if i >= h.Capacity() {
		return gpu.CPUHandle{}, fmt.Errorf("descriptor: slot %d of %d: %w", i, h.Capacity(), gpu.ErrOutOfRange)
	}
	return h.cpu.Offset(i, h.stride), nil
}

// GPUHandleAt returns the shader-visible handle of slot i.
func (h *Heap) GPUHandleAt(i uint32) (gpu.GPUHandle, error) {
	if !h.ShaderVisible() {
		return gpu.GPUHandle{}, fmt.Errorf("descriptor: %v heap: %w", h.Kind(), gpu.ErrNotShaderVisible)
	}
	if i >= h.Capacity() {
		return gpu.GPUHandle{}, fmt.Errorf("descriptor: slot %d of %d: %w", i, h.Capacity(), gpu.ErrOutOfRange)
	}
	return h.gpu.Offset(i, h.stride), nil
}

// Destroy releases the heap.
func (h *Heap) Destroy() {
	if h.raw != nil {
		h.raw.Destroy()
		h.raw = nil
	}
}
