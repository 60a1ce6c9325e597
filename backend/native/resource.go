//go:build !nogpu

package native

import (
	"fmt"
	"sync"
	"unsafe"

	"github.com/gogpu/framepipe/gpu"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// bufferUsage returns the HAL usage for a buffer in the given memory heap.
func bufferUsage(h gpu.HeapType) gputypes.BufferUsage {
	switch h {
	case gpu.HeapUpload:
		return gputypes.BufferUsageMapWrite | gputypes.BufferUsageCopySrc | gputypes.BufferUsageVertex
	case gpu.HeapReadback:
		return gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst
	default:
		return gputypes.BufferUsageCopyDst | gputypes.BufferUsageCopySrc |
			gputypes.BufferUsageVertex | gputypes.BufferUsageUniform
	}
}

// buffer wraps a HAL buffer.
type buffer struct {
	dev  *Device
	raw  hal.Buffer
	desc gpu.ResourceDescriptor
	addr uint64

	mu        sync.Mutex
	destroyed bool
}

func newBuffer(d *Device, desc *gpu.ResourceDescriptor) (*buffer, error) {
	if desc.Width == 0 {
		return nil, fmt.Errorf("native: %q: zero-sized buffer: %w", desc.Label, gpu.ErrOutOfRange)
	}
	raw, err := d.raw.CreateBuffer(&hal.BufferDescriptor{
		Label: desc.Label,
		Size:  desc.Width,
		Usage: bufferUsage(desc.Heap),
	})
	if err != nil {
		return nil, fmt.Errorf("native: create buffer %q: %w", desc.Label, err)
	}
	return &buffer{dev: d, raw: raw, desc: *desc}, nil
}

func (b *buffer) Desc() gpu.ResourceDescriptor { return b.desc }

func (b *buffer) GPUAddress() uint64 { return b.addr }

// Map maps the whole buffer. Only upload and readback buffers are mappable.
func (b *buffer) Map() ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.destroyed {
		return nil, fmt.Errorf("native: map %q: %w", b.desc.Label, gpu.ErrDestroyed)
	}
	if b.desc.Heap == gpu.HeapDefault {
		return nil, fmt.Errorf("native: map %q: %w", b.desc.Label, gpu.ErrNotMappable)
	}
	m, err := b.dev.raw.MapBuffer(b.raw, 0, b.desc.Width)
	if err != nil {
		return nil, fmt.Errorf("native: map %q: %w", b.desc.Label, err)
	}
	return unsafe.Slice((*byte)(m.Ptr), b.desc.Width), nil
}

func (b *buffer) Unmap() {
	if err := b.dev.raw.UnmapBuffer(b.raw); err != nil {
		slogger().Warn("native: unmap failed", "buffer", b.desc.Label, "error", err)
	}
}

func (b *buffer) Destroy() {
	b.mu.Lock()
	if b.destroyed {
		b.mu.Unlock()
		return
	}
	b.destroyed = true
	b.mu.Unlock()
	b.dev.forgetBuffer(b)
	b.dev.raw.DestroyBuffer(b.raw)
}
