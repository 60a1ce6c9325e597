package frame

import (
	"fmt"

	"github.com/gogpu/framepipe/gpu"
	"github.com/gogpu/gputypes"
)

// Targets resolves back buffer indices to render targets.
// *swapchain.Chain implements it.
type Targets interface {
	RenderTarget(i uint32) (gpu.Resource, error)
	RTV(i uint32) (gpu.CPUHandle, error)
}

// RecorderConfig describes the frame a Recorder builds.
type RecorderConfig struct {
	Draw       *Draw
	Viewport   gpu.Viewport
	Scissor    gpu.Rect
	ClearColor gputypes.Color

	// Bundle, if set, replaces the inline draw.
	Bundle *Bundle
}

// Recorder builds the command list of one frame. It owns an allocator per
// frame slot and a single direct list that is reset into the slot's
// allocator every frame.
type Recorder struct {
	sync   *Synchronizer
	target Targets
	cfg    RecorderConfig
	allocs []gpu.CommandAllocator
	list   gpu.CommandList
}

// NewRecorder creates the per-slot allocators and the shared list. The
// list is created closed.
func NewRecorder(dev gpu.Device, sync *Synchronizer, targets Targets, cfg RecorderConfig) (*Recorder, error) {
	if cfg.Draw == nil {
		return nil, fmt.Errorf("frame: recorder without draw: %w", gpu.ErrInvalidState)
	}
	if err := cfg.Draw.validate(); err != nil {
		return nil, err
	}
	r := &Recorder{sync: sync, target: targets, cfg: cfg}
	for i := uint32(0); i < sync.FrameCount(); i++ {
		a, err := dev.CreateCommandAllocator(gpu.ListDirect)
		if err != nil {
			r.Destroy()
			return nil, fmt.Errorf("frame: allocator %d: %w", i, err)
		}
		r.allocs = append(r.allocs, a)
	}
	list, err := dev.CreateCommandList(gpu.ListDirect, r.allocs[0], cfg.Draw.Pipeline)
	if err != nil {
		r.Destroy()
		return nil, fmt.Errorf("frame: command list: %w", err)
	}
	r.list = list
	if err := list.Close(); err != nil {
		r.Destroy()
		return nil, fmt.Errorf("frame: close initial list: %w", err)
	}
	return r, nil
}

// Record builds the frame for slot into back buffer backBufferIndex and
// returns the closed list. A slot whose previous work has not retired is
// refused with gpu.ErrInvalidState before any device call.
func (r *Recorder) Record(slot, backBufferIndex uint32) (gpu.CommandList, error) {
	if slot >= uint32(len(r.allocs)) {
		return nil, fmt.Errorf("frame: slot %d of %d: %w", slot, len(r.allocs), gpu.ErrOutOfRange)
	}
	if !r.sync.Retired(slot) {
		target, _ := r.sync.Target(slot)
		return nil, fmt.Errorf("frame: slot %d still in flight (target %d, completed %d): %w",
			slot, target, r.sync.Completed(), gpu.ErrInvalidState)
	}
	rt, err := r.target.RenderTarget(backBufferIndex)
	if err != nil {
		return nil, err
	}
	rtv, err := r.target.RTV(backBufferIndex)
	if err != nil {
		return nil, err
	}

	alloc := r.allocs[slot]
	if err := alloc.Reset(); err != nil {
		return nil, fmt.Errorf("frame: reset allocator %d: %w", slot, err)
	}
	if err := r.list.Reset(alloc, r.cfg.Draw.Pipeline); err != nil {
		return nil, fmt.Errorf("frame: reset list: %w", err)
	}

	l := r.list
	r.cfg.Draw.bind(l)
	l.SetViewport(r.cfg.Viewport)
	l.SetScissorRect(r.cfg.Scissor)

	l.Barrier(gpu.Transition(rt, gpu.StatePresent, gpu.StateRenderTarget))
	l.SetRenderTarget(rtv)
	l.ClearRenderTarget(rtv, r.cfg.ClearColor)
	if r.cfg.Bundle != nil {
		l.ExecuteBundle(r.cfg.Bundle.List())
	} else {
		r.cfg.Draw.issue(l)
	}
	l.Barrier(gpu.Transition(rt, gpu.StateRenderTarget, gpu.StatePresent))

	if err := l.Close(); err != nil {
		return nil, fmt.Errorf("frame: record slot %d: %w", slot, err)
	}
	return l, nil
}

// Destroy releases the list and allocators. The synchronizer must be
// drained first.
func (r *Recorder) Destroy() {
	if r.list != nil {
		r.list.Destroy()
		r.list = nil
	}
	for _, a := range r.allocs {
		a.Destroy()
	}
	r.allocs = nil
}
