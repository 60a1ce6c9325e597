// Package swapchain owns the presentable back buffers of a window and one
// render-target view per buffer.
package swapchain

import (
	"fmt"

	"github.com/gogpu/framepipe/gpu"
	"github.com/gogpu/framepipe/internal/descriptor"
	"github.com/gogpu/gputypes"
)

// Format is the back buffer format.
const Format = gputypes.TextureFormatRGBA8Unorm

// Chain is a swap chain with an RTV heap whose slot i views back buffer i.
type Chain struct {
	raw     gpu.SwapChain
	rtvs    *descriptor.Heap
	targets []gpu.Resource
	width   uint32
	height  uint32
}

// Create creates a windowed chain of frameCount back buffers and their
// render-target views.
func Create(dev gpu.Device, queue gpu.Queue, win gpu.Window, width, height, frameCount uint32, heaps *descriptor.Manager) (*Chain, error) {
	raw, err := dev.CreateSwapChain(queue, win, &gpu.SwapChainDescriptor{
		Width:      width,
		Height:     height,
		Format:     Format,
		FrameCount: frameCount,
	})
	if err != nil {
		return nil, fmt.Errorf("swapchain: create: %w", err)
	}
	c := &Chain{raw: raw, width: width, height: height}

	c.rtvs, err = heaps.CreateHeap(gpu.HeapRTV, frameCount, false)
	if err != nil {
		c.Destroy()
		return nil, fmt.Errorf("swapchain: rtv heap: %w", err)
	}
	for i := uint32(0); i < frameCount; i++ {
		bb, err := raw.BackBuffer(i)
		if err != nil {
			c.Destroy()
			return nil, fmt.Errorf("swapchain: back buffer %d: %w", i, err)
		}
		h, err := c.rtvs.CPUHandleAt(i)
		if err != nil {
			c.Destroy()
			return nil, err
		}
		if err := dev.CreateRenderTargetView(bb, h); err != nil {
			c.Destroy()
			return nil, fmt.Errorf("swapchain: rtv %d: %w", i, err)
		}
		c.targets = append(c.targets, bb)
	}
	return c, nil
}

// FrameCount returns the number of back buffers.
func (c *Chain) FrameCount() uint32 { return uint32(len(c.targets)) }

// Size returns the back buffer dimensions.
func (c *Chain) Size() (width, height uint32) { return c.width, c.height }

// CurrentIndex returns the back buffer to render into. It changes only
// after Present and must be re-queried every frame.
func (c *Chain) CurrentIndex() uint32 { return c.raw.CurrentBackBufferIndex() }

// RenderTarget returns back buffer i.
func (c *Chain) RenderTarget(i uint32) (gpu.Resource, error) {
	if i >= uint32(len(c.targets)) {
		return nil, fmt.Errorf("swapchain: back buffer %d of %d: %w", i, len(c.targets), gpu.ErrOutOfRange)
	}
	return c.targets[i], nil
}

// RTV returns the render-target view handle of back buffer i.
func (c *Chain) RTV(i uint32) (gpu.CPUHandle, error) {
	return c.rtvs.CPUHandleAt(i)
}

// Present queues the current back buffer for display and returns without
// waiting for it to be shown. Failures wrap gpu.ErrDeviceLost.
func (c *Chain) Present() error {
	if err := c.raw.Present(1); err != nil {
		return fmt.Errorf("swapchain: present: %w: %w", gpu.ErrDeviceLost, err)
	}
	return nil
}

// Destroy releases the views and the chain.
func (c *Chain) Destroy() {
	if c.rtvs != nil {
		c.rtvs.Destroy()
		c.rtvs = nil
	}
	c.targets = nil
	if c.raw != nil {
		c.raw.Destroy()
		c.raw = nil
	}
}
