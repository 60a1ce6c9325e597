package reference

import (
	"fmt"
	"sync"

	"github.com/gogpu/framepipe/gpu"
)

// resource is a buffer or texture in host memory. The state field is owned
// by the queue timeline once the resource has been referenced by a list.
type resource struct {
	dev  *Device
	desc gpu.ResourceDescriptor
	addr uint64
	data []byte

	state gpu.ResourceState

	mu        sync.Mutex
	mapped    bool
	destroyed bool
}

func (r *resource) Desc() gpu.ResourceDescriptor { return r.desc }

func (r *resource) GPUAddress() uint64 { return r.addr }

// Map returns the backing memory of an upload or readback resource.
func (r *resource) Map() ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.destroyed {
		return nil, fmt.Errorf("reference: map %q: %w", r.desc.Label, gpu.ErrDestroyed)
	}
	if r.desc.Heap == gpu.HeapDefault {
		return nil, fmt.Errorf("reference: map %q: %w", r.desc.Label, gpu.ErrNotMappable)
	}
	r.mapped = true
	return r.data, nil
}

func (r *resource) Unmap() {
	r.mu.Lock()
	r.mapped = false
	r.mu.Unlock()
}

func (r *resource) Destroy() {
	r.mu.Lock()
	if r.destroyed {
		r.mu.Unlock()
		return
	}
	r.destroyed = true
	r.mu.Unlock()
	if r.desc.Dimension == gpu.DimensionBuffer {
		r.dev.forgetBuffer(r)
	}
}

func (r *resource) isTexture() bool {
	return r.desc.Dimension == gpu.DimensionTexture2D
}

// texel returns the byte offset of texel (x, y) in a texture.
func (r *resource) texel(x, y uint32) int {
	bpp := gpu.BytesPerPixel(r.desc.Format)
	return int(y)*int(uint32(r.desc.Width)*bpp) + int(x*bpp)
}

type rootSignature struct {
	desc gpu.RootSignatureDescriptor
}

func (*rootSignature) Destroy() {}

// srvTable returns the index of the first root parameter holding shader
// resource views.
func (rs *rootSignature) srvTable() (uint32, bool) {
	for i, p := range rs.desc.Parameters {
		for _, r := range p.Ranges {
			if r.Kind == gpu.HeapCBVSRVUAV {
				return uint32(i), true
			}
		}
	}
	return 0, false
}

// sampler returns the static sampler bound at register s0.
func (rs *rootSignature) sampler() (gpu.StaticSampler, bool) {
	for _, s := range rs.desc.StaticSamplers {
		if s.Register == 0 {
			return s, true
		}
	}
	return gpu.StaticSampler{}, false
}
