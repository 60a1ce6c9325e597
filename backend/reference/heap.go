package reference

import (
	"sync"

	"github.com/gogpu/framepipe/gpu"
)

type viewKind uint8

const (
	viewNone viewKind = iota
	viewRTV
	viewSRV
)

type descriptor struct {
	res  *resource
	view viewKind
}

type heap struct {
	dev    *Device
	id     uint64
	desc   gpu.HeapDescriptor
	stride uint32
	cpu    uint64
	gpu    uint64

	mu    sync.Mutex
	slots []descriptor
}

func (h *heap) Kind() gpu.HeapKind  { return h.desc.Kind }
func (h *heap) Capacity() uint32    { return h.desc.Capacity }
func (h *heap) ShaderVisible() bool { return h.desc.ShaderVisible }

func (h *heap) CPUStart() gpu.CPUHandle { return gpu.CPUHandle{Ptr: h.cpu} }
func (h *heap) GPUStart() gpu.GPUHandle { return gpu.GPUHandle{Ptr: h.gpu} }

func (h *heap) Destroy() {
	h.dev.forgetHeap(h)
}

func (h *heap) store(i uint32, d descriptor) {
	h.mu.Lock()
	h.slots[i] = d
	h.mu.Unlock()
}

func (h *heap) load(i uint32) descriptor {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.slots[i]
}
