//go:build !nogpu

package native

import (
	"fmt"
	"sync"

	"github.com/gogpu/framepipe/gpu"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// Back buffer count limits.
const (
	minBackBuffers = 2
	maxBackBuffers = 16
)

// swapChain presents through a HAL surface. HAL surfaces hand out one
// texture at a time, so the back buffers are proxies that acquire the
// surface texture when the current one is first used. A window without a
// native handle gets a chain of offscreen textures instead.
type swapChain struct {
	dev     *Device
	desc    gpu.SwapChainDescriptor
	surface hal.Surface

	mu        sync.Mutex
	current   uint32
	buffers   []*backBuffer
	acquired  hal.SurfaceTexture
	view      hal.TextureView
	retired   []retiredView
	presented uint64
}

// retiredView is a presented back buffer view still referenced by the
// submission at index.
type retiredView struct {
	view  hal.TextureView
	index uint64
}

func newSwapChain(d *Device, win gpu.Window, desc *gpu.SwapChainDescriptor) (*swapChain, error) {
	if desc.FrameCount < minBackBuffers || desc.FrameCount > maxBackBuffers {
		return nil, fmt.Errorf("native: %d back buffers, want %d..%d: %w",
			desc.FrameCount, minBackBuffers, maxBackBuffers, gpu.ErrOutOfRange)
	}
	if gpu.BytesPerPixel(desc.Format) != 4 || desc.Width == 0 || desc.Height == 0 {
		return nil, fmt.Errorf("native: swap chain %dx%d %v: %w", desc.Width, desc.Height, desc.Format, gpu.ErrInvalidState)
	}

	sc := &swapChain{dev: d, desc: *desc}
	if win != nil && win.NativeHandle() != 0 {
		s, err := d.instance.CreateSurface(win.DisplayHandle(), win.NativeHandle())
		if err != nil {
			return nil, fmt.Errorf("native: create surface: %w", err)
		}
		err = s.Configure(d.raw, &hal.SurfaceConfiguration{
			Width:       desc.Width,
			Height:      desc.Height,
			Format:      desc.Format,
			Usage:       gputypes.TextureUsageRenderAttachment | gputypes.TextureUsageCopySrc,
			PresentMode: gputypes.PresentModeFifo,
			AlphaMode:   gputypes.CompositeAlphaModeOpaque,
		})
		if err != nil {
			s.Destroy()
			return nil, fmt.Errorf("native: configure surface: %w", err)
		}
		sc.surface = s
	}

	for i := uint32(0); i < desc.FrameCount; i++ {
		bb := &backBuffer{sc: sc, index: i, desc: gpu.ResourceDescriptor{
			Label:             fmt.Sprintf("back buffer %d", i),
			Dimension:         gpu.DimensionTexture2D,
			Width:             uint64(desc.Width),
			Height:            desc.Height,
			Format:            desc.Format,
			Heap:              gpu.HeapDefault,
			InitialState:      gpu.StatePresent,
			AllowRenderTarget: true,
		}}
		if sc.surface == nil {
			t, err := newTexture(d, &bb.desc)
			if err != nil {
				sc.Destroy()
				return nil, err
			}
			bb.offscreen = t
		}
		sc.buffers = append(sc.buffers, bb)
	}
	slogger().Debug("native: swap chain created",
		"buffers", desc.FrameCount, "width", desc.Width, "height", desc.Height, "surface", sc.surface != nil)
	return sc, nil
}

func (sc *swapChain) FrameCount() uint32 { return uint32(len(sc.buffers)) }

func (sc *swapChain) CurrentBackBufferIndex() uint32 {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.current
}

func (sc *swapChain) BackBuffer(i uint32) (gpu.Resource, error) {
	if i >= uint32(len(sc.buffers)) {
		return nil, fmt.Errorf("native: back buffer %d of %d: %w", i, len(sc.buffers), gpu.ErrOutOfRange)
	}
	return sc.buffers[i], nil
}

// acquire returns the surface texture for back buffer i, acquiring it on
// first use in the current frame.
func (sc *swapChain) acquire(i uint32) (hal.Texture, hal.TextureView, error) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	if i != sc.current {
		return nil, nil, fmt.Errorf("native: back buffer %d used while %d is current: %w", i, sc.current, gpu.ErrInvalidState)
	}
	if sc.acquired != nil {
		return sc.acquired, sc.view, nil
	}
	at, err := sc.surface.AcquireTexture(nil)
	if err != nil {
		return nil, nil, fmt.Errorf("native: acquire surface texture: %w", err)
	}
	if at == nil || at.Texture == nil {
		return nil, nil, ErrNoSurfaceTexture
	}
	if at.Suboptimal {
		slogger().Debug("native: surface is suboptimal")
	}
	v, err := createView(sc.dev.raw, at.Texture, fmt.Sprintf("back buffer %d", i))
	if err != nil {
		sc.surface.DiscardTexture(at.Texture)
		return nil, nil, err
	}
	sc.acquired, sc.view = at.Texture, v
	return sc.acquired, sc.view, nil
}

// Present presents the acquired surface texture and advances the current
// back buffer index. The view of the presented texture is released once
// the submissions recorded against it have completed.
func (sc *swapChain) Present(syncInterval uint32) error {
	if err := sc.dev.queue.lostErr(); err != nil {
		return fmt.Errorf("native: present: %w", err)
	}
	if sc.surface != nil {
		if _, _, err := sc.acquire(sc.CurrentBackBufferIndex()); err != nil {
			return err
		}
		index := sc.dev.queue.lastSubmitted()
		sc.mu.Lock()
		tex := sc.acquired
		sc.retired = append(sc.retired, retiredView{view: sc.view, index: index})
		sc.acquired, sc.view = nil, nil
		sc.mu.Unlock()

		err := sc.dev.queue.raw.Present(sc.surface, tex, nil)
		sc.releaseRetired(sc.dev.queue.completed())
		if err != nil {
			return fmt.Errorf("native: present: %w", err)
		}
	}

	sc.mu.Lock()
	sc.current = (sc.current + 1) % uint32(len(sc.buffers))
	sc.presented++
	sc.mu.Unlock()
	return nil
}

// releaseRetired destroys the retired views whose submissions are done.
func (sc *swapChain) releaseRetired(done uint64) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	kept := sc.retired[:0]
	for _, r := range sc.retired {
		if r.index <= done {
			sc.dev.raw.DestroyTextureView(r.view)
		} else {
			kept = append(kept, r)
		}
	}
	clear(sc.retired[len(kept):])
	sc.retired = kept
}

// Destroy releases the chain. The queue must be idle.
func (sc *swapChain) Destroy() {
	for _, bb := range sc.buffers {
		if bb.offscreen != nil {
			bb.offscreen.Destroy()
		}
	}
	sc.buffers = nil
	if sc.surface == nil {
		return
	}
	sc.releaseRetired(^uint64(0))
	sc.mu.Lock()
	if sc.acquired != nil {
		sc.dev.raw.DestroyTextureView(sc.view)
		sc.surface.DiscardTexture(sc.acquired)
		sc.acquired, sc.view = nil, nil
	}
	sc.mu.Unlock()
	sc.surface.Unconfigure(sc.dev.raw)
	sc.surface.Destroy()
	sc.surface = nil
}

// backBuffer is a swap chain image.
type backBuffer struct {
	sc        *swapChain
	index     uint32
	desc      gpu.ResourceDescriptor
	offscreen *texture
}

func (b *backBuffer) Desc() gpu.ResourceDescriptor       { return b.desc }
func (b *backBuffer) descriptor() gpu.ResourceDescriptor { return b.desc }
func (b *backBuffer) GPUAddress() uint64                 { return 0 }

func (b *backBuffer) Map() ([]byte, error) {
	return nil, fmt.Errorf("native: map %s: %w", b.desc.Label, gpu.ErrNotMappable)
}

func (b *backBuffer) Unmap() {}

func (b *backBuffer) halTexture() (hal.Texture, error) {
	if b.offscreen != nil {
		return b.offscreen.halTexture()
	}
	t, _, err := b.sc.acquire(b.index)
	return t, err
}

func (b *backBuffer) view() (hal.TextureView, error) {
	if b.offscreen != nil {
		return b.offscreen.view()
	}
	_, v, err := b.sc.acquire(b.index)
	return v, err
}

// Destroy is a no-op: back buffers are owned by the swap chain.
func (b *backBuffer) Destroy() {}
