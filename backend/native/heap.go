//go:build !nogpu

package native

import (
	"sync"

	"github.com/gogpu/framepipe/gpu"
)

type heap struct {
	dev    *Device
	id     uint64
	desc   gpu.HeapDescriptor
	stride uint32
	cpu    uint64
	gpu    uint64

	mu    sync.Mutex
	slots []gpu.Resource
}

func (h *heap) Kind() gpu.HeapKind  { return h.desc.Kind }
func (h *heap) Capacity() uint32    { return h.desc.Capacity }
func (h *heap) ShaderVisible() bool { return h.desc.ShaderVisible }

func (h *heap) CPUStart() gpu.CPUHandle { return gpu.CPUHandle{Ptr: h.cpu} }
func (h *heap) GPUStart() gpu.GPUHandle { return gpu.GPUHandle{Ptr: h.gpu} }

func (h *heap) Destroy() {
	h.dev.mu.Lock()
	delete(h.dev.heaps, h.id)
	h.dev.mu.Unlock()
}

func (h *heap) store(i uint32, r gpu.Resource) {
	h.mu.Lock()
	h.slots[i] = r
	h.mu.Unlock()
}

func (h *heap) load(i uint32) gpu.Resource {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.slots[i]
}
