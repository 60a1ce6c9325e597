//go:build !nogpu

package native

import (
	"fmt"
	"sync"

	"github.com/gogpu/framepipe/gpu"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// textureResource is a resource usable as a render target or copy
// endpoint: plain textures and swap chain back buffers.
type textureResource interface {
	gpu.Resource
	descriptor() gpu.ResourceDescriptor
	halTexture() (hal.Texture, error)
	view() (hal.TextureView, error)
}

// texture wraps a HAL texture with a lazily created default view.
//
// Thread Safety:
// texture is safe for concurrent read access. The default view is
// created using sync.Once.
type texture struct {
	mu  sync.RWMutex
	dev *Device
	raw hal.Texture

	desc gpu.ResourceDescriptor

	defaultViewOnce sync.Once
	defaultView     hal.TextureView
	defaultViewErr  error

	destroyed bool
}

func textureUsage(desc *gpu.ResourceDescriptor) gputypes.TextureUsage {
	u := gputypes.TextureUsageCopySrc | gputypes.TextureUsageCopyDst | gputypes.TextureUsageTextureBinding
	if desc.AllowRenderTarget {
		u |= gputypes.TextureUsageRenderAttachment
	}
	return u
}

func newTexture(d *Device, desc *gpu.ResourceDescriptor) (*texture, error) {
	if desc.Width == 0 || desc.Height == 0 {
		return nil, fmt.Errorf("native: %q: zero-sized texture: %w", desc.Label, gpu.ErrOutOfRange)
	}
	if desc.Heap != gpu.HeapDefault {
		return nil, fmt.Errorf("native: %q: textures must live in the default heap: %w", desc.Label, gpu.ErrInvalidState)
	}
	raw, err := d.raw.CreateTexture(&hal.TextureDescriptor{
		Label:         desc.Label,
		Size:          hal.Extent3D{Width: uint32(desc.Width), Height: desc.Height, DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        desc.Format,
		Usage:         textureUsage(desc),
	})
	if err != nil {
		return nil, fmt.Errorf("native: create texture %q: %w", desc.Label, err)
	}
	return &texture{dev: d, raw: raw, desc: *desc}, nil
}

func (t *texture) Desc() gpu.ResourceDescriptor       { return t.desc }
func (t *texture) descriptor() gpu.ResourceDescriptor { return t.desc }
func (t *texture) GPUAddress() uint64                 { return 0 }

func (t *texture) Map() ([]byte, error) {
	return nil, fmt.Errorf("native: map texture %q: %w", t.desc.Label, gpu.ErrNotMappable)
}

func (t *texture) Unmap() {}

func (t *texture) halTexture() (hal.Texture, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.destroyed {
		return nil, ErrTextureDestroyed
	}
	return t.raw, nil
}

// view returns the default view, creating it on first use.
func (t *texture) view() (hal.TextureView, error) {
	t.mu.RLock()
	if t.destroyed {
		t.mu.RUnlock()
		return nil, ErrTextureDestroyed
	}
	t.mu.RUnlock()

	t.defaultViewOnce.Do(func() {
		t.defaultView, t.defaultViewErr = createView(t.dev.raw, t.raw, t.desc.Label)
	})
	return t.defaultView, t.defaultViewErr
}

func createView(device hal.Device, tex hal.Texture, label string) (hal.TextureView, error) {
	if device == nil {
		return nil, ErrNilHALDevice
	}
	v, err := device.CreateTextureView(tex, &hal.TextureViewDescriptor{
		Label:     label + " (default view)",
		Format:    gputypes.TextureFormatUndefined,
		Dimension: gputypes.TextureViewDimension2D,
		Aspect:    gputypes.TextureAspectAll,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDefaultViewCreationFailed, err)
	}
	return v, nil
}

// Destroy releases the texture and its default view. Idempotent.
func (t *texture) Destroy() {
	t.mu.Lock()
	if t.destroyed {
		t.mu.Unlock()
		return
	}
	t.destroyed = true
	raw := t.raw
	t.raw = nil
	t.mu.Unlock()

	if t.defaultView != nil {
		t.dev.raw.DestroyTextureView(t.defaultView)
	}
	t.dev.raw.DestroyTexture(raw)
}
