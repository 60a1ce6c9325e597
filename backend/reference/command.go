package reference

import (
	"fmt"
	"sync/atomic"

	"github.com/gogpu/framepipe/gpu"
	"github.com/gogpu/framepipe/internal/color"
	"github.com/gogpu/gputypes"
)

// op is one recorded command, executed on the queue timeline.
type op func(*execState) error

type allocator struct {
	dev       *Device
	typ       gpu.ListType
	lastSeq   atomic.Uint64
	destroyed bool
}

func (a *allocator) Type() gpu.ListType { return a.typ }

// Reset reclaims the allocator. With the debug layer, resetting while a
// list recorded from it has not retired fails with ErrAllocatorInUse.
func (a *allocator) Reset() error {
	if a.destroyed {
		return fmt.Errorf("reference: reset allocator: %w", gpu.ErrDestroyed)
	}
	if a.dev.cfg.debug {
		if last, done := a.lastSeq.Load(), a.dev.queue.retiredSeq(); last > done {
			return fmt.Errorf("reference: allocator submitted at %d, retired %d: %w", last, done, gpu.ErrAllocatorInUse)
		}
	}
	return nil
}

func (a *allocator) Destroy() {
	a.destroyed = true
}

type commandList struct {
	dev     *Device
	typ     gpu.ListType
	alloc   *allocator
	ops     []op
	bundles []*commandList
	closed  bool
	err     error
}

func (l *commandList) Type() gpu.ListType { return l.typ }

// Reset reopens the list. The previous recording stays valid for any
// submission still referencing it.
func (l *commandList) Reset(alloc gpu.CommandAllocator, pso gpu.PipelineState) error {
	if !l.closed {
		return fmt.Errorf("reference: reset of a recording list: %w", gpu.ErrInvalidState)
	}
	a, ok := alloc.(*allocator)
	if !ok || a.dev != l.dev {
		return fmt.Errorf("reference: reset with foreign allocator: %w", gpu.ErrInvalidState)
	}
	if a.typ != l.typ {
		return fmt.Errorf("reference: reset %v list with %v allocator: %w", l.typ, a.typ, gpu.ErrInvalidState)
	}
	l.alloc = a
	l.ops = nil
	l.bundles = nil
	l.closed = false
	l.err = nil
	if pso != nil {
		l.SetPipelineState(pso)
	}
	return l.err
}

// Close ends recording and reports the first recording error.
func (l *commandList) Close() error {
	if l.closed {
		return fmt.Errorf("reference: close of a closed list: %w", gpu.ErrInvalidState)
	}
	l.closed = true
	return l.err
}

func (l *commandList) Destroy() {
	l.ops = nil
	l.bundles = nil
}

func (l *commandList) markSubmitted(seq uint64) {
	l.alloc.lastSeq.Store(seq)
	for _, b := range l.bundles {
		b.alloc.lastSeq.Store(seq)
	}
}

func (l *commandList) fail(err error) {
	if l.err == nil {
		l.err = err
	}
}

func (l *commandList) record(name string, o op) {
	if l.closed {
		l.fail(fmt.Errorf("reference: %s on a closed list: %w", name, gpu.ErrInvalidState))
		return
	}
	l.ops = append(l.ops, o)
}

// direct records o and fails bundles, which may not carry the command.
func (l *commandList) direct(name string, o op) {
	if l.typ == gpu.ListBundle {
		l.fail(fmt.Errorf("reference: %s is not allowed in bundles: %w", name, gpu.ErrInvalidState))
		return
	}
	l.record(name, o)
}

func (l *commandList) SetPipelineState(pso gpu.PipelineState) {
	p, ok := pso.(*pipelineState)
	if !ok {
		l.fail(fmt.Errorf("reference: foreign pipeline state: %w", gpu.ErrInvalidState))
		return
	}
	l.record("SetPipelineState", func(s *execState) error {
		s.pso = p
		return nil
	})
}

func (l *commandList) SetRootSignature(rs gpu.RootSignature) {
	r, ok := rs.(*rootSignature)
	if !ok {
		l.fail(fmt.Errorf("reference: foreign root signature: %w", gpu.ErrInvalidState))
		return
	}
	l.record("SetRootSignature", func(s *execState) error {
		s.root = r
		s.tables = map[uint32]gpu.GPUHandle{}
		return nil
	})
}

func (l *commandList) SetDescriptorHeaps(heaps ...gpu.DescriptorHeap) {
	var bound [2]*heap
	for _, dh := range heaps {
		h, ok := dh.(*heap)
		if !ok || h.dev != l.dev {
			l.fail(fmt.Errorf("reference: foreign descriptor heap: %w", gpu.ErrInvalidState))
			return
		}
		if !h.desc.ShaderVisible {
			l.fail(fmt.Errorf("reference: bind %v heap: %w", h.desc.Kind, gpu.ErrNotShaderVisible))
			return
		}
		slot := 0
		if h.desc.Kind == gpu.HeapSampler {
			slot = 1
		}
		if bound[slot] != nil {
			l.fail(fmt.Errorf("reference: two %v heaps bound: %w", h.desc.Kind, gpu.ErrInvalidState))
			return
		}
		bound[slot] = h
	}
	l.record("SetDescriptorHeaps", func(s *execState) error {
		s.heaps = bound
		return nil
	})
}

func (l *commandList) SetRootDescriptorTable(index uint32, base gpu.GPUHandle) {
	l.record("SetRootDescriptorTable", func(s *execState) error {
		if s.root == nil {
			return fmt.Errorf("reference: descriptor table without root signature: %w", gpu.ErrInvalidState)
		}
		if int(index) >= len(s.root.desc.Parameters) {
			return fmt.Errorf("reference: root parameter %d: %w", index, gpu.ErrOutOfRange)
		}
		s.tables[index] = base
		return nil
	})
}

func (l *commandList) SetViewport(vp gpu.Viewport) {
	l.direct("SetViewport", func(s *execState) error {
		s.viewport = &vp
		return nil
	})
}

func (l *commandList) SetScissorRect(r gpu.Rect) {
	l.direct("SetScissorRect", func(s *execState) error {
		s.scissor = &r
		return nil
	})
}

func (l *commandList) Barrier(barriers ...gpu.Barrier) {
	type transition struct {
		res           *resource
		before, after gpu.ResourceState
	}
	ts := make([]transition, 0, len(barriers))
	for _, b := range barriers {
		r, ok := b.Resource.(*resource)
		if !ok || r.dev != l.dev {
			l.fail(fmt.Errorf("reference: barrier on foreign resource: %w", gpu.ErrInvalidState))
			return
		}
		if !b.After.Valid() || !b.Before.Valid() {
			l.fail(fmt.Errorf("reference: barrier %v -> %v on %q: %w", b.Before, b.After, r.desc.Label, gpu.ErrInvalidState))
			return
		}
		if r.desc.Heap != gpu.HeapDefault {
			l.fail(fmt.Errorf("reference: barrier on %v heap resource %q: %w", r.desc.Heap, r.desc.Label, gpu.ErrInvalidState))
			return
		}
		ts = append(ts, transition{r, b.Before, b.After})
	}
	debug := l.dev.cfg.debug
	l.direct("Barrier", func(s *execState) error {
		for _, t := range ts {
			if debug && t.res.state != t.before {
				return fmt.Errorf("reference: barrier on %q expects %v, resource is %v: %w",
					t.res.desc.Label, t.before, t.res.state, gpu.ErrInvalidState)
			}
			t.res.state = t.after
		}
		return nil
	})
}

// rtv resolves a render-target view at record time.
func (l *commandList) rtv(h gpu.CPUHandle) *resource {
	hp, i, err := l.dev.resolveCPU(h)
	if err != nil {
		l.fail(err)
		return nil
	}
	d := hp.load(i)
	if hp.desc.Kind != gpu.HeapRTV || d.view != viewRTV {
		l.fail(fmt.Errorf("reference: handle %#x is not a render target view: %w", h.Ptr, gpu.ErrInvalidState))
		return nil
	}
	return d.res
}

func (l *commandList) SetRenderTarget(h gpu.CPUHandle) {
	r := l.rtv(h)
	if r == nil {
		return
	}
	l.direct("SetRenderTarget", func(s *execState) error {
		s.target = r
		return nil
	})
}

func (l *commandList) ClearRenderTarget(h gpu.CPUHandle, c gputypes.Color) {
	r := l.rtv(h)
	if r == nil {
		return
	}
	debug := l.dev.cfg.debug
	l.direct("ClearRenderTarget", func(s *execState) error {
		if debug && r.state != gpu.StateRenderTarget {
			return fmt.Errorf("reference: clear %q in state %v: %w", r.desc.Label, r.state, gpu.ErrInvalidState)
		}
		px := color.Encode(r.desc.Format, [4]float64{c.R, c.G, c.B, c.A})
		for i := 0; i < len(r.data); i += 4 {
			copy(r.data[i:i+4], px[:])
		}
		return nil
	})
}

func (l *commandList) SetPrimitiveTopology(t gpu.Topology) {
	l.record("SetPrimitiveTopology", func(s *execState) error {
		s.topology = t
		return nil
	})
}

func (l *commandList) SetVertexBuffers(start uint32, views ...gpu.VertexBufferView) {
	vs := append([]gpu.VertexBufferView(nil), views...)
	l.record("SetVertexBuffers", func(s *execState) error {
		for i, v := range vs {
			s.vertexBuffers[start+uint32(i)] = v
		}
		return nil
	})
}

func (l *commandList) Draw(vertexCount, instanceCount, startVertex, startInstance uint32) {
	debug := l.dev.cfg.debug
	l.record("Draw", func(s *execState) error {
		return s.draw(vertexCount, instanceCount, startVertex, debug)
	})
}

func (l *commandList) ExecuteBundle(bundle gpu.CommandList) {
	b, ok := bundle.(*commandList)
	if !ok || b.dev != l.dev || b.typ != gpu.ListBundle {
		l.fail(fmt.Errorf("reference: ExecuteBundle needs a bundle list: %w", gpu.ErrInvalidState))
		return
	}
	if !b.closed || b.err != nil {
		l.fail(fmt.Errorf("reference: ExecuteBundle of an unusable bundle: %w", gpu.ErrInvalidState))
		return
	}
	ops := b.ops
	l.bundles = append(l.bundles, b)
	l.direct("ExecuteBundle", func(s *execState) error {
		for _, o := range ops {
			if err := o(s); err != nil {
				return err
			}
		}
		return nil
	})
}

func (l *commandList) buffer(res gpu.Resource, what string) *resource {
	r, ok := res.(*resource)
	if !ok || r.dev != l.dev || r.isTexture() {
		l.fail(fmt.Errorf("reference: %s must be a buffer of this device: %w", what, gpu.ErrInvalidState))
		return nil
	}
	return r
}

func (l *commandList) texture(res gpu.Resource, what string) *resource {
	r, ok := res.(*resource)
	if !ok || r.dev != l.dev || !r.isTexture() {
		l.fail(fmt.Errorf("reference: %s must be a texture of this device: %w", what, gpu.ErrInvalidState))
		return nil
	}
	return r
}

func (l *commandList) CopyBuffer(dst gpu.Resource, dstOffset uint64, src gpu.Resource, srcOffset, size uint64) {
	d, s := l.buffer(dst, "copy destination"), l.buffer(src, "copy source")
	if d == nil || s == nil {
		return
	}
	if dstOffset+size > uint64(len(d.data)) || srcOffset+size > uint64(len(s.data)) {
		l.fail(fmt.Errorf("reference: copy of %d bytes: %w", size, gpu.ErrOutOfRange))
		return
	}
	debug := l.dev.cfg.debug
	l.direct("CopyBuffer", func(*execState) error {
		if debug {
			if err := checkCopyStates(d, s); err != nil {
				return err
			}
		}
		copy(d.data[dstOffset:dstOffset+size], s.data[srcOffset:srcOffset+size])
		return nil
	})
}

func (l *commandList) CopyBufferToTexture(dst gpu.Resource, src gpu.Resource, fp gpu.TextureFootprint) {
	t, b := l.texture(dst, "copy destination"), l.buffer(src, "copy source")
	if t == nil || b == nil {
		return
	}
	if err := checkFootprint(t, b, fp); err != nil {
		l.fail(err)
		return
	}
	debug := l.dev.cfg.debug
	l.direct("CopyBufferToTexture", func(*execState) error {
		if debug {
			if err := checkCopyStates(t, b); err != nil {
				return err
			}
		}
		row := int(fp.Width * gpu.BytesPerPixel(t.desc.Format))
		for y := uint32(0); y < fp.Height; y++ {
			from := int(fp.Offset) + int(y*fp.RowPitch)
			copy(t.data[t.texel(0, y):], b.data[from:from+row])
		}
		return nil
	})
}

func (l *commandList) CopyTextureToBuffer(dst gpu.Resource, fp gpu.TextureFootprint, src gpu.Resource) {
	b, t := l.buffer(dst, "copy destination"), l.texture(src, "copy source")
	if t == nil || b == nil {
		return
	}
	if err := checkFootprint(t, b, fp); err != nil {
		l.fail(err)
		return
	}
	debug := l.dev.cfg.debug
	l.direct("CopyTextureToBuffer", func(*execState) error {
		if debug {
			if err := checkCopyStates(b, t); err != nil {
				return err
			}
		}
		row := int(fp.Width * gpu.BytesPerPixel(t.desc.Format))
		for y := uint32(0); y < fp.Height; y++ {
			to := int(fp.Offset) + int(y*fp.RowPitch)
			off := t.texel(0, y)
			copy(b.data[to:to+row], t.data[off:off+row])
		}
		return nil
	})
}

func checkFootprint(t, b *resource, fp gpu.TextureFootprint) error {
	if fp.Width == 0 || fp.Height == 0 || uint64(fp.Width) > t.desc.Width || fp.Height > t.desc.Height {
		return fmt.Errorf("reference: footprint %dx%d on %q: %w", fp.Width, fp.Height, t.desc.Label, gpu.ErrOutOfRange)
	}
	if fp.Format != t.desc.Format {
		return fmt.Errorf("reference: footprint format %v on %v texture: %w", fp.Format, t.desc.Format, gpu.ErrInvalidState)
	}
	if fp.RowPitch%gpu.TexturePitchAlignment != 0 || fp.RowPitch < fp.Width*gpu.BytesPerPixel(fp.Format) {
		return fmt.Errorf("reference: row pitch %d: %w", fp.RowPitch, gpu.ErrInvalidState)
	}
	end := fp.Offset + uint64(fp.RowPitch)*uint64(fp.Height-1) + uint64(fp.Width*gpu.BytesPerPixel(fp.Format))
	if end > uint64(len(b.data)) {
		return fmt.Errorf("reference: footprint ends at %d past %d bytes: %w", end, len(b.data), gpu.ErrOutOfRange)
	}
	return nil
}

func checkCopyStates(dst, src *resource) error {
	if dst.state != gpu.StateCopyDest {
		return fmt.Errorf("reference: copy into %q in state %v: %w", dst.desc.Label, dst.state, gpu.ErrInvalidState)
	}
	if src.state&gpu.StateCopySource == 0 {
		return fmt.Errorf("reference: copy from %q in state %v: %w", src.desc.Label, src.state, gpu.ErrInvalidState)
	}
	return nil
}
