package reference

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/gogpu/framepipe/gpu"
)

// Swap chain limits.
const (
	minFrameCount = 2
	maxFrameCount = 16
)

// swapChain presents into memory. Back buffers stay readable after present,
// which is what headless runs and tests inspect.
type swapChain struct {
	dev     *Device
	desc    gpu.SwapChainDescriptor
	buffers []*resource

	mu      sync.Mutex
	current uint32

	presented atomic.Uint64
}

func newSwapChain(d *Device, desc *gpu.SwapChainDescriptor) (*swapChain, error) {
	if desc.FrameCount < minFrameCount || desc.FrameCount > maxFrameCount {
		return nil, fmt.Errorf("reference: swap chain with %d buffers: %w", desc.FrameCount, gpu.ErrOutOfRange)
	}
	if desc.Width == 0 || desc.Height == 0 {
		return nil, fmt.Errorf("reference: swap chain %dx%d: %w", desc.Width, desc.Height, gpu.ErrOutOfRange)
	}

	sc := &swapChain{dev: d, desc: *desc}
	for i := uint32(0); i < desc.FrameCount; i++ {
		td := gpu.Texture2DDesc(fmt.Sprintf("back buffer %d", i), desc.Width, desc.Height, desc.Format, gpu.StatePresent)
		td.AllowRenderTarget = true
		res, err := d.CreateResource(td)
		if err != nil {
			return nil, fmt.Errorf("reference: create back buffer %d: %w", i, err)
		}
		sc.buffers = append(sc.buffers, res.(*resource))
	}
	return sc, nil
}

func (sc *swapChain) FrameCount() uint32 { return sc.desc.FrameCount }

func (sc *swapChain) CurrentBackBufferIndex() uint32 {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.current
}

func (sc *swapChain) BackBuffer(i uint32) (gpu.Resource, error) {
	if i >= uint32(len(sc.buffers)) {
		return nil, fmt.Errorf("reference: back buffer %d of %d: %w", i, len(sc.buffers), gpu.ErrOutOfRange)
	}
	return sc.buffers[i], nil
}

// Present queues the current back buffer behind previously submitted work
// and advances the current index. It never waits for the timeline.
func (sc *swapChain) Present(syncInterval uint32) error {
	q := sc.dev.queue
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.lost != nil {
		return fmt.Errorf("reference: present: %w", q.lost)
	}
	if q.closed {
		return fmt.Errorf("reference: present: %w", gpu.ErrDestroyed)
	}

	sc.mu.Lock()
	idx := sc.current
	sc.current = (sc.current + 1) % sc.desc.FrameCount
	sc.mu.Unlock()

	q.push(item{kind: itemPresent, seq: q.submitted, chain: sc, index: idx})
	return nil
}

// Presented returns the number of presents the timeline has completed.
func (sc *swapChain) Presented() uint64 {
	return sc.presented.Load()
}

// present runs on the timeline.
func (sc *swapChain) present(i uint32) error {
	b := sc.buffers[i]
	if sc.dev.cfg.debug && b.state != gpu.StatePresent {
		return fmt.Errorf("reference: present of %q in state %v: %w", b.desc.Label, b.state, gpu.ErrInvalidState)
	}
	sc.presented.Add(1)
	return nil
}

func (sc *swapChain) Destroy() {
	for _, b := range sc.buffers {
		b.Destroy()
	}
}
