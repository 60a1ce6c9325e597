//go:build !nogpu

package native

import (
	"fmt"

	"github.com/gogpu/framepipe/gpu"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// allocator owns a HAL command encoder and the command buffers recorded
// from it. Bind groups created while recording are released with it.
type allocator struct {
	dev       *Device
	typ       gpu.ListType
	encoder   hal.CommandEncoder
	buffers   []hal.CommandBuffer
	groups    []hal.BindGroup
	lastIndex uint64
	destroyed bool
}

func (a *allocator) Type() gpu.ListType { return a.typ }

// Reset recycles the recorded command buffers. It fails with
// ErrAllocatorInUse while the last submission using them is pending.
func (a *allocator) Reset() error {
	if a.destroyed {
		return fmt.Errorf("native: reset allocator: %w", gpu.ErrDestroyed)
	}
	if done := a.dev.queue.completed(); a.lastIndex > done {
		return fmt.Errorf("native: submission %d pending, completed %d: %w", a.lastIndex, done, gpu.ErrAllocatorInUse)
	}
	if a.encoder != nil && len(a.buffers) > 0 {
		a.encoder.ResetAll(a.buffers)
	}
	a.buffers = a.buffers[:0]
	a.releaseGroups()
	return nil
}

func (a *allocator) releaseGroups() {
	for _, g := range a.groups {
		a.dev.raw.DestroyBindGroup(g)
	}
	a.groups = a.groups[:0]
}

func (a *allocator) Destroy() {
	if a.destroyed {
		return
	}
	a.destroyed = true
	for _, b := range a.buffers {
		a.dev.raw.FreeCommandBuffer(b)
	}
	a.buffers = nil
	a.releaseGroups()
	if a.encoder != nil {
		a.encoder.Destroy()
		a.encoder = nil
	}
}

// drawEncoder is the recording surface shared by render passes and
// render bundles.
type drawEncoder interface {
	SetPipeline(pipeline hal.RenderPipeline)
	SetBindGroup(index uint32, group hal.BindGroup, offsets []uint32)
	SetVertexBuffer(slot uint32, buffer hal.Buffer, offset uint64)
	Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32)
}

// commandList records into a HAL command encoder. Render passes are opened
// lazily by the first draw and closed by any command that cannot run
// inside a pass.
type commandList struct {
	dev    *Device
	typ    gpu.ListType
	alloc  *allocator
	closed bool
	err    error

	cmd    hal.CommandBuffer
	bundle hal.RenderBundle
	benc   hal.RenderBundleEncoder
	pass   hal.RenderPassEncoder
	groups []hal.BindGroup

	pso      *pipelineState
	root     *rootSignature
	tables   map[uint32]gpu.GPUHandle
	vbs      map[uint32]gpu.VertexBufferView
	viewport *gpu.Viewport
	scissor  *gpu.Rect

	target     textureResource
	clear      *gputypes.Color
	clearOwner textureResource
}

func (l *commandList) Type() gpu.ListType { return l.typ }

func (l *commandList) fail(err error) {
	if l.err == nil {
		l.err = err
	}
}

// recording reports whether commands may be recorded and keeps the first
// error otherwise.
func (l *commandList) recording(op string) bool {
	if l.closed {
		l.fail(fmt.Errorf("native: %s on closed list: %w", op, gpu.ErrInvalidState))
		return false
	}
	return l.err == nil
}

// direct is recording restricted to direct lists.
func (l *commandList) direct(op string) bool {
	if !l.recording(op) {
		return false
	}
	if l.typ != gpu.ListDirect {
		l.fail(fmt.Errorf("native: %s not allowed in bundles: %w", op, gpu.ErrInvalidState))
		return false
	}
	return true
}

// Reset reopens the list against alloc.
func (l *commandList) Reset(alloc gpu.CommandAllocator, pso gpu.PipelineState) error {
	a, ok := alloc.(*allocator)
	if !ok || a.dev != l.dev || a.typ != l.typ {
		return fmt.Errorf("native: reset on incompatible allocator: %w", gpu.ErrInvalidState)
	}
	if !l.closed {
		return fmt.Errorf("native: reset of a recording list: %w", gpu.ErrInvalidState)
	}
	p, err := l.pipeline(pso)
	if err != nil {
		return err
	}

	l.releaseBundle()
	l.alloc = a
	l.err = nil
	l.cmd = nil
	l.pass = nil
	l.pso = p
	l.root = nil
	l.tables = map[uint32]gpu.GPUHandle{}
	l.vbs = map[uint32]gpu.VertexBufferView{}
	l.viewport = nil
	l.scissor = nil
	l.target = nil
	l.clear = nil
	l.clearOwner = nil

	switch l.typ {
	case gpu.ListDirect:
		if err := a.encoder.BeginEncoding("framepipe frame"); err != nil {
			return fmt.Errorf("native: begin encoding: %w", err)
		}
	case gpu.ListBundle:
		if p == nil {
			return fmt.Errorf("native: bundle lists need an initial pipeline state: %w", gpu.ErrInvalidState)
		}
		enc, err := l.dev.raw.CreateRenderBundleEncoder(&hal.RenderBundleEncoderDescriptor{
			Label:        "framepipe bundle",
			ColorFormats: []gputypes.TextureFormat{p.format},
			SampleCount:  1,
		})
		if err != nil {
			return fmt.Errorf("native: create bundle encoder: %w", err)
		}
		l.benc = enc
	}
	l.closed = false
	return nil
}

func (l *commandList) pipeline(pso gpu.PipelineState) (*pipelineState, error) {
	if pso == nil {
		return nil, nil
	}
	p, ok := pso.(*pipelineState)
	if !ok || p.dev != l.dev {
		return nil, fmt.Errorf("native: foreign pipeline state: %w", gpu.ErrInvalidState)
	}
	return p, nil
}

func (l *commandList) releaseBundle() {
	if l.bundle != nil {
		l.dev.raw.DestroyRenderBundle(l.bundle)
		l.bundle = nil
	}
	for _, g := range l.groups {
		l.dev.raw.DestroyBindGroup(g)
	}
	l.groups = l.groups[:0]
}

// Close ends any open pass and finishes encoding.
func (l *commandList) Close() error {
	if l.closed {
		return fmt.Errorf("native: close of a closed list: %w", gpu.ErrInvalidState)
	}
	l.closed = true

	if l.typ == gpu.ListBundle {
		b := l.benc.Finish()
		l.benc = nil
		if l.err != nil {
			l.dev.raw.DestroyRenderBundle(b)
			return l.err
		}
		l.bundle = b
		return nil
	}

	if l.err == nil && l.clear != nil {
		// A clear with no draw after it still needs a pass to run.
		l.target = l.clearOwner
		l.beginPass()
	}
	l.endPass()
	if l.err != nil {
		l.alloc.encoder.DiscardEncoding()
		return l.err
	}
	cmd, err := l.alloc.encoder.EndEncoding()
	if err != nil {
		l.err = fmt.Errorf("native: end encoding: %w", err)
		return l.err
	}
	l.cmd = cmd
	l.alloc.buffers = append(l.alloc.buffers, cmd)
	return nil
}

func (l *commandList) submitted(idx uint64) {
	l.alloc.lastIndex = idx
}

func (l *commandList) SetPipelineState(pso gpu.PipelineState) {
	if !l.recording("SetPipelineState") {
		return
	}
	p, err := l.pipeline(pso)
	if err != nil {
		l.fail(err)
		return
	}
	l.pso = p
}

func (l *commandList) SetRootSignature(rs gpu.RootSignature) {
	if !l.recording("SetRootSignature") {
		return
	}
	r, ok := rs.(*rootSignature)
	if !ok || r.dev != l.dev {
		l.fail(fmt.Errorf("native: foreign root signature: %w", gpu.ErrInvalidState))
		return
	}
	l.root = r
}

// SetDescriptorHeaps is a no-op beyond validation: tables are resolved
// through the device when bind groups are built.
func (l *commandList) SetDescriptorHeaps(heaps ...gpu.DescriptorHeap) {
	if !l.recording("SetDescriptorHeaps") {
		return
	}
	for _, h := range heaps {
		if nh, ok := h.(*heap); !ok || !nh.desc.ShaderVisible {
			l.fail(fmt.Errorf("native: SetDescriptorHeaps: %w", gpu.ErrNotShaderVisible))
			return
		}
	}
}

func (l *commandList) SetRootDescriptorTable(index uint32, base gpu.GPUHandle) {
	if !l.recording("SetRootDescriptorTable") {
		return
	}
	l.tables[index] = base
}

func (l *commandList) SetViewport(vp gpu.Viewport) {
	if l.recording("SetViewport") {
		l.viewport = &vp
	}
}

func (l *commandList) SetScissorRect(r gpu.Rect) {
	if l.recording("SetScissorRect") {
		l.scissor = &r
	}
}

func (l *commandList) SetPrimitiveTopology(t gpu.Topology) {
	if l.recording("SetPrimitiveTopology") && t != gpu.TopologyTriangleList {
		l.fail(fmt.Errorf("native: topology %d: %w", t, gpu.ErrInvalidState))
	}
}

func (l *commandList) SetVertexBuffers(start uint32, views ...gpu.VertexBufferView) {
	if !l.recording("SetVertexBuffers") {
		return
	}
	for i, v := range views {
		l.vbs[start+uint32(i)] = v
	}
}

// Barrier ends the open pass and records HAL usage transitions.
func (l *commandList) Barrier(barriers ...gpu.Barrier) {
	if !l.direct("Barrier") {
		return
	}
	l.endPass()
	var tb []hal.TextureBarrier
	var bb []hal.BufferBarrier
	for _, b := range barriers {
		switch r := b.Resource.(type) {
		case textureResource:
			raw, err := r.halTexture()
			if err != nil {
				l.fail(err)
				return
			}
			tb = append(tb, hal.TextureBarrier{
				Texture: raw,
				Range: hal.TextureRange{
					Aspect:          gputypes.TextureAspectAll,
					MipLevelCount:   1,
					ArrayLayerCount: 1,
				},
				Usage: hal.TextureUsageTransition{
					OldUsage: b.Before.TextureUsage(),
					NewUsage: b.After.TextureUsage(),
				},
			})
		case *buffer:
			if r.desc.Heap != gpu.HeapDefault {
				l.fail(fmt.Errorf("native: barrier on %v heap buffer %q: %w", r.desc.Heap, r.desc.Label, gpu.ErrInvalidState))
				return
			}
			bb = append(bb, hal.BufferBarrier{
				Buffer: r.raw,
				Usage: hal.BufferUsageTransition{
					OldUsage: b.Before.BufferUsage(),
					NewUsage: b.After.BufferUsage(),
				},
			})
		default:
			l.fail(fmt.Errorf("native: barrier on foreign resource: %w", gpu.ErrInvalidState))
			return
		}
	}
	if len(bb) > 0 {
		l.alloc.encoder.TransitionBuffers(bb)
	}
	if len(tb) > 0 {
		l.alloc.encoder.TransitionTextures(tb)
	}
}

func (l *commandList) rtv(h gpu.CPUHandle) textureResource {
	hp, i, err := l.dev.resolveCPU(h)
	if err != nil {
		l.fail(err)
		return nil
	}
	if hp.desc.Kind != gpu.HeapRTV {
		l.fail(fmt.Errorf("native: %v handle used as render target: %w", hp.desc.Kind, gpu.ErrInvalidState))
		return nil
	}
	t, ok := hp.load(i).(textureResource)
	if !ok {
		l.fail(fmt.Errorf("native: empty render target slot %d: %w", i, gpu.ErrInvalidState))
		return nil
	}
	return t
}

func (l *commandList) SetRenderTarget(h gpu.CPUHandle) {
	if !l.direct("SetRenderTarget") {
		return
	}
	t := l.rtv(h)
	if t == nil {
		return
	}
	if t != l.target {
		l.endPass()
	}
	l.target = t
}

// ClearRenderTarget becomes the load operation of the next pass on the
// target.
func (l *commandList) ClearRenderTarget(h gpu.CPUHandle, c gputypes.Color) {
	if !l.direct("ClearRenderTarget") {
		return
	}
	t := l.rtv(h)
	if t == nil {
		return
	}
	l.endPass()
	if l.clear != nil && l.clearOwner != t {
		prev := l.target
		l.target = l.clearOwner
		l.beginPass()
		l.endPass()
		l.target = prev
	}
	l.clear = &c
	l.clearOwner = t
}

func (l *commandList) beginPass() {
	if l.pass != nil || l.err != nil {
		return
	}
	if l.target == nil {
		l.fail(fmt.Errorf("native: draw without render target: %w", gpu.ErrInvalidState))
		return
	}
	view, err := l.target.view()
	if err != nil {
		l.fail(err)
		return
	}
	att := hal.RenderPassColorAttachment{
		View:    view,
		LoadOp:  gputypes.LoadOpLoad,
		StoreOp: gputypes.StoreOpStore,
	}
	if l.clear != nil && l.clearOwner == l.target {
		att.LoadOp = gputypes.LoadOpClear
		att.ClearValue = *l.clear
		l.clear = nil
		l.clearOwner = nil
	}
	l.pass = l.alloc.encoder.BeginRenderPass(&hal.RenderPassDescriptor{
		Label:            "framepipe pass",
		ColorAttachments: []hal.RenderPassColorAttachment{att},
	})
}

func (l *commandList) endPass() {
	if l.pass != nil {
		l.pass.End()
		l.pass = nil
	}
}

// bindTables creates a bind group per descriptor table of the root signature.
func (l *commandList) bindTables(enc drawEncoder) {
	for i := range l.root.layouts {
		base, ok := l.tables[uint32(i)]
		if !ok {
			l.fail(fmt.Errorf("native: root parameter %d has no descriptor table: %w", i, gpu.ErrInvalidState))
			return
		}
		hp, first, err := l.dev.resolveGPU(base)
		if err != nil {
			l.fail(err)
			return
		}
		n := l.root.textureCount(i)
		if first+n > hp.desc.Capacity {
			l.fail(fmt.Errorf("native: table %d overruns heap: %w", i, gpu.ErrOutOfRange))
			return
		}
		var entries []gputypes.BindGroupEntry
		for k := uint32(0); k < n; k++ {
			t, ok := hp.load(first + k).(*texture)
			if !ok {
				l.fail(fmt.Errorf("native: empty shader resource slot %d: %w", first+k, gpu.ErrInvalidState))
				return
			}
			v, err := t.view()
			if err != nil {
				l.fail(err)
				return
			}
			entries = append(entries, gputypes.BindGroupEntry{
				Binding:  k,
				Resource: gputypes.TextureViewBinding{TextureView: v.NativeHandle()},
			})
		}
		if i == l.root.srvParam {
			for _, s := range l.root.desc.StaticSamplers {
				entries = append(entries, gputypes.BindGroupEntry{
					Binding:  n + s.Register,
					Resource: gputypes.SamplerBinding{Sampler: l.root.samplers[s.Register].NativeHandle()},
				})
			}
		}
		g, err := l.dev.raw.CreateBindGroup(&hal.BindGroupDescriptor{
			Label:   fmt.Sprintf("table %d", i),
			Layout:  l.root.layouts[i],
			Entries: entries,
		})
		if err != nil {
			l.fail(fmt.Errorf("native: bind group %d: %w", i, err))
			return
		}
		if l.typ == gpu.ListBundle {
			l.groups = append(l.groups, g)
		} else {
			l.alloc.groups = append(l.alloc.groups, g)
		}
		enc.SetBindGroup(uint32(i), g, nil)
	}
}

// Draw applies the pending state and records the draw.
func (l *commandList) Draw(vertexCount, instanceCount, startVertex, startInstance uint32) {
	if !l.recording("Draw") {
		return
	}
	if l.pso == nil || l.root == nil {
		l.fail(fmt.Errorf("native: draw without pipeline state or root signature: %w", gpu.ErrInvalidState))
		return
	}
	if l.pso.root != l.root {
		l.fail(fmt.Errorf("native: pipeline built for a different root signature: %w", gpu.ErrInvalidState))
		return
	}

	var enc drawEncoder
	if l.typ == gpu.ListBundle {
		enc = l.benc
	} else {
		l.beginPass()
		if l.err != nil {
			return
		}
		enc = l.pass
		if vp := l.viewport; vp != nil {
			l.pass.SetViewport(vp.X, vp.Y, vp.Width, vp.Height, vp.MinDepth, vp.MaxDepth)
		}
		if r := l.scissor; r != nil {
			l.pass.SetScissorRect(uint32(max(r.Left, 0)), uint32(max(r.Top, 0)),
				uint32(max(r.Right-r.Left, 0)), uint32(max(r.Bottom-r.Top, 0)))
		}
	}

	enc.SetPipeline(l.pso.raw)
	l.bindTables(enc)
	for slot, v := range l.vbs {
		b, off, err := l.dev.resolveAddress(v.Location)
		if err != nil {
			l.fail(err)
			return
		}
		enc.SetVertexBuffer(slot, b.raw, off)
	}
	if l.err != nil {
		return
	}
	enc.Draw(vertexCount, instanceCount, startVertex, startInstance)
}

// ExecuteBundle replays a closed bundle inside the current pass.
func (l *commandList) ExecuteBundle(bundle gpu.CommandList) {
	if !l.direct("ExecuteBundle") {
		return
	}
	b, ok := bundle.(*commandList)
	if !ok || b.typ != gpu.ListBundle || !b.closed || b.bundle == nil {
		l.fail(fmt.Errorf("native: ExecuteBundle needs a closed bundle list: %w", gpu.ErrInvalidState))
		return
	}
	l.beginPass()
	if l.err == nil {
		l.pass.ExecuteBundle(b.bundle)
	}
}

func (l *commandList) copyBuffer(r gpu.Resource, what string) *buffer {
	b, ok := r.(*buffer)
	if !ok {
		l.fail(fmt.Errorf("native: %s is not a buffer: %w", what, gpu.ErrInvalidState))
		return nil
	}
	return b
}

func (l *commandList) copyTexture(r gpu.Resource, what string) hal.Texture {
	t, ok := r.(textureResource)
	if !ok {
		l.fail(fmt.Errorf("native: %s is not a texture: %w", what, gpu.ErrInvalidState))
		return nil
	}
	raw, err := t.halTexture()
	if err != nil {
		l.fail(err)
		return nil
	}
	return raw
}

func (l *commandList) CopyBuffer(dst gpu.Resource, dstOffset uint64, src gpu.Resource, srcOffset, size uint64) {
	if !l.direct("CopyBuffer") {
		return
	}
	d, s := l.copyBuffer(dst, "copy destination"), l.copyBuffer(src, "copy source")
	if d == nil || s == nil {
		return
	}
	if srcOffset+size > s.desc.Width || dstOffset+size > d.desc.Width {
		l.fail(fmt.Errorf("native: copy of %d bytes out of range: %w", size, gpu.ErrOutOfRange))
		return
	}
	l.endPass()
	l.alloc.encoder.CopyBufferToBuffer(s.raw, d.raw, []hal.BufferCopy{{
		SrcOffset: srcOffset,
		DstOffset: dstOffset,
		Size:      size,
	}})
}

func footprintCopy(tex hal.Texture, fp gpu.TextureFootprint) []hal.BufferTextureCopy {
	return []hal.BufferTextureCopy{{
		BufferLayout: hal.ImageDataLayout{
			Offset:       fp.Offset,
			BytesPerRow:  fp.RowPitch,
			RowsPerImage: fp.Height,
		},
		TextureBase: hal.ImageCopyTexture{
			Texture: tex,
			Aspect:  gputypes.TextureAspectAll,
		},
		Size: hal.Extent3D{Width: fp.Width, Height: fp.Height, DepthOrArrayLayers: 1},
	}}
}

func (l *commandList) checkFootprint(b *buffer, fp gpu.TextureFootprint) bool {
	if fp.RowPitch%gpu.TexturePitchAlignment != 0 {
		l.fail(fmt.Errorf("native: row pitch %d not %d-aligned: %w", fp.RowPitch, gpu.TexturePitchAlignment, gpu.ErrInvalidState))
		return false
	}
	if fp.Offset+gpu.SlicePitch(fp.RowPitch, fp.Height) > b.desc.Width {
		l.fail(fmt.Errorf("native: footprint exceeds buffer %q: %w", b.desc.Label, gpu.ErrOutOfRange))
		return false
	}
	return true
}

func (l *commandList) CopyBufferToTexture(dst gpu.Resource, src gpu.Resource, fp gpu.TextureFootprint) {
	if !l.direct("CopyBufferToTexture") {
		return
	}
	s := l.copyBuffer(src, "copy source")
	t := l.copyTexture(dst, "copy destination")
	if s == nil || t == nil || !l.checkFootprint(s, fp) {
		return
	}
	l.endPass()
	l.alloc.encoder.CopyBufferToTexture(s.raw, t, footprintCopy(t, fp))
}

func (l *commandList) CopyTextureToBuffer(dst gpu.Resource, fp gpu.TextureFootprint, src gpu.Resource) {
	if !l.direct("CopyTextureToBuffer") {
		return
	}
	d := l.copyBuffer(dst, "copy destination")
	t := l.copyTexture(src, "copy source")
	if d == nil || t == nil || !l.checkFootprint(d, fp) {
		return
	}
	l.endPass()
	l.alloc.encoder.CopyTextureToBuffer(t, d.raw, footprintCopy(t, fp))
}

func (l *commandList) Destroy() {
	if !l.closed {
		l.endPass()
		if l.typ == gpu.ListDirect {
			l.alloc.encoder.DiscardEncoding()
		} else if l.benc != nil {
			l.dev.raw.DestroyRenderBundle(l.benc.Finish())
			l.benc = nil
		}
		l.closed = true
	}
	l.releaseBundle()
}
