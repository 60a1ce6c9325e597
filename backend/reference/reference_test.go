package reference

import (
	"encoding/binary"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/gogpu/framepipe/backend"
	"github.com/gogpu/framepipe/gpu"
	"github.com/gogpu/gputypes"
)

func newTestDevice(t *testing.T, opts ...Option) (*Device, *Queue) {
	t.Helper()
	d, q, err := NewAdapter(opts...).Open()
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(d.Destroy)
	return d.(*Device), q.(*Queue)
}

// waitFor fails the test if ch is not closed promptly.
func waitFor(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for the timeline")
	}
}

func isClosed(ch <-chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}

func signalAndWait(t *testing.T, q *Queue, f gpu.Fence, v uint64) {
	t.Helper()
	if err := q.Signal(f, v); err != nil {
		t.Fatalf("Signal(%d) error = %v", v, err)
	}
	ch, err := f.Done(v)
	if err != nil {
		t.Fatalf("Done(%d) error = %v", v, err)
	}
	waitFor(t, ch)
}

func TestBackendRegistered(t *testing.T) {
	if !backend.IsRegistered(backend.BackendReference) {
		t.Fatal("reference backend should be auto-registered")
	}
	b := backend.Get(backend.BackendReference)
	if _, err := b.Adapters(); !errors.Is(err, backend.ErrNotInitialized) {
		t.Errorf("Adapters() before Init error = %v, want %v", err, backend.ErrNotInitialized)
	}
	if err := b.Init(); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	defer b.Close()

	adapters, err := b.Adapters()
	if err != nil || len(adapters) != 1 {
		t.Fatalf("Adapters() = %v, %v; want one adapter", adapters, err)
	}
	info := adapters[0].Info()
	if !info.Software() {
		t.Error("reference adapter should report a CPU device type")
	}
	if info.FeatureLevel != gpu.FeatureLevel11_0 {
		t.Errorf("FeatureLevel = %v, want %v", info.FeatureLevel, gpu.FeatureLevel11_0)
	}
}

func TestOpenFault(t *testing.T) {
	_, _, err := NewAdapter(WithFaults(FaultOpen)).Open()
	if !errors.Is(err, gpu.ErrDeviceCreation) {
		t.Errorf("Open() error = %v, want %v", err, gpu.ErrDeviceCreation)
	}
}

func TestFenceFault(t *testing.T) {
	d, _ := newTestDevice(t, WithFaults(FaultFence))
	if _, err := d.CreateFence(0); !errors.Is(err, gpu.ErrSyncObject) {
		t.Errorf("CreateFence() error = %v, want %v", err, gpu.ErrSyncObject)
	}
}

func TestFenceCompletesInOrder(t *testing.T) {
	d, q := newTestDevice(t)
	f, err := d.CreateFence(0)
	if err != nil {
		t.Fatal(err)
	}

	q.Pause()
	for v := uint64(1); v <= 3; v++ {
		if err := q.Signal(f, v); err != nil {
			t.Fatal(err)
		}
	}
	ch2, _ := f.Done(2)
	if isClosed(ch2) {
		t.Fatal("Done(2) closed while the timeline is paused")
	}
	if got := f.CompletedValue(); got != 0 {
		t.Errorf("CompletedValue() = %d while paused, want 0", got)
	}

	q.Resume()
	waitFor(t, ch2)
	ch3, _ := f.Done(3)
	waitFor(t, ch3)
	if got := f.CompletedValue(); got != 3 {
		t.Errorf("CompletedValue() = %d, want 3", got)
	}

	// Already reached values return a closed channel.
	ch1, _ := f.Done(1)
	if !isClosed(ch1) {
		t.Error("Done(1) should be closed immediately")
	}
}

func TestQueueStep(t *testing.T) {
	d, q := newTestDevice(t)
	f, _ := d.CreateFence(0)

	q.Pause()
	for v := uint64(1); v <= 3; v++ {
		if err := q.Signal(f, v); err != nil {
			t.Fatal(err)
		}
	}
	q.Step(2)
	ch2, _ := f.Done(2)
	waitFor(t, ch2)
	if got := q.Pending(); got != 1 {
		t.Errorf("Pending() = %d after Step(2), want 1", got)
	}
	if got := f.CompletedValue(); got != 2 {
		t.Errorf("CompletedValue() = %d, want 2", got)
	}

	q.Resume()
	ch3, _ := f.Done(3)
	waitFor(t, ch3)
}

func TestFenceDestroyed(t *testing.T) {
	d, _ := newTestDevice(t)
	f, _ := d.CreateFence(0)
	f.Destroy()
	if _, err := f.Done(1); !errors.Is(err, gpu.ErrSyncObject) {
		t.Errorf("Done() after Destroy error = %v, want %v", err, gpu.ErrSyncObject)
	}
}

func TestDescriptorHeaps(t *testing.T) {
	d, _ := newTestDevice(t)

	if _, err := d.CreateDescriptorHeap(gpu.HeapDescriptor{Kind: gpu.HeapRTV, Capacity: 2, ShaderVisible: true}); !errors.Is(err, gpu.ErrInvalidState) {
		t.Errorf("shader-visible RTV heap error = %v, want %v", err, gpu.ErrInvalidState)
	}

	h, err := d.CreateDescriptorHeap(gpu.HeapDescriptor{Kind: gpu.HeapRTV, Capacity: 2})
	if err != nil {
		t.Fatal(err)
	}
	if h.GPUStart().Ptr != 0 {
		t.Error("non shader-visible heap should have no GPU start")
	}

	tex := newTarget(t, d, 4, 4)
	stride := d.DescriptorStride(gpu.HeapRTV)
	if err := d.CreateRenderTargetView(tex, h.CPUStart().Offset(1, stride)); err != nil {
		t.Errorf("CreateRenderTargetView(slot 1) error = %v", err)
	}
	if err := d.CreateRenderTargetView(tex, h.CPUStart().Offset(2, stride)); !errors.Is(err, gpu.ErrOutOfRange) {
		t.Errorf("CreateRenderTargetView(slot 2) error = %v, want %v", err, gpu.ErrOutOfRange)
	}
	if err := d.CreateRenderTargetView(tex, gpu.CPUHandle{Ptr: h.CPUStart().Ptr + 1}); !errors.Is(err, gpu.ErrOutOfRange) {
		t.Errorf("misaligned handle error = %v, want %v", err, gpu.ErrOutOfRange)
	}
}

func TestDescriptorStrides(t *testing.T) {
	d, _ := newTestDevice(t)
	for _, k := range []gpu.HeapKind{gpu.HeapRTV, gpu.HeapCBVSRVUAV, gpu.HeapSampler} {
		if d.DescriptorStride(k) == 0 {
			t.Errorf("DescriptorStride(%v) = 0", k)
		}
	}
}

func TestResourceValidation(t *testing.T) {
	d, _ := newTestDevice(t)

	tests := []struct {
		name string
		desc *gpu.ResourceDescriptor
	}{
		{"empty buffer", gpu.BufferDesc("b", 0, gpu.HeapDefault, gpu.StateCommon)},
		{"upload not generic read", gpu.BufferDesc("b", 16, gpu.HeapUpload, gpu.StateCopyDest)},
		{"readback not copy dest", gpu.BufferDesc("b", 16, gpu.HeapReadback, gpu.StateGenericRead)},
		{"unknown format", gpu.Texture2DDesc("t", 4, 4, gputypes.TextureFormatUndefined, gpu.StateCommon)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := d.CreateResource(tt.desc); err == nil {
				t.Error("CreateResource() should fail")
			}
		})
	}

	tex, _ := d.CreateResource(gpu.Texture2DDesc("t", 4, 4, gputypes.TextureFormatRGBA8Unorm, gpu.StateCommon))
	if _, err := tex.Map(); !errors.Is(err, gpu.ErrNotMappable) {
		t.Errorf("Map() on default heap error = %v, want %v", err, gpu.ErrNotMappable)
	}
}

func TestRootSignatureValidation(t *testing.T) {
	d, _ := newTestDevice(t)

	tests := []struct {
		name string
		desc *gpu.RootSignatureDescriptor
		ok   bool
	}{
		{"empty", &gpu.RootSignatureDescriptor{AllowInputLayout: true}, true},
		{"srv table", &gpu.RootSignatureDescriptor{
			Parameters:     []gpu.RootParameter{{Ranges: []gpu.DescriptorRange{{Kind: gpu.HeapCBVSRVUAV, Count: 1}}}},
			StaticSamplers: []gpu.StaticSampler{{Register: 0}},
		}, true},
		{"rtv range", &gpu.RootSignatureDescriptor{
			Parameters: []gpu.RootParameter{{Ranges: []gpu.DescriptorRange{{Kind: gpu.HeapRTV, Count: 1}}}},
		}, false},
		{"mixed table", &gpu.RootSignatureDescriptor{
			Parameters: []gpu.RootParameter{{Ranges: []gpu.DescriptorRange{
				{Kind: gpu.HeapCBVSRVUAV, Count: 1},
				{Kind: gpu.HeapSampler, Count: 1},
			}}},
		}, false},
		{"duplicate sampler", &gpu.RootSignatureDescriptor{
			StaticSamplers: []gpu.StaticSampler{{Register: 0}, {Register: 0}},
		}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := d.CreateRootSignature(tt.desc)
			if tt.ok && err != nil {
				t.Errorf("CreateRootSignature() error = %v", err)
			}
			if !tt.ok && !errors.Is(err, gpu.ErrRootSignature) {
				t.Errorf("CreateRootSignature() error = %v, want %v", err, gpu.ErrRootSignature)
			}
		})
	}
}

func TestCommandListStateMachine(t *testing.T) {
	d, q := newTestDevice(t)
	alloc, _ := d.CreateCommandAllocator(gpu.ListDirect)
	list, err := d.CreateCommandList(gpu.ListDirect, alloc, nil)
	if err != nil {
		t.Fatal(err)
	}

	if err := q.Execute(list); !errors.Is(err, gpu.ErrInvalidState) {
		t.Errorf("Execute(open list) error = %v, want %v", err, gpu.ErrInvalidState)
	}
	if err := list.Reset(alloc, nil); !errors.Is(err, gpu.ErrInvalidState) {
		t.Errorf("Reset(open list) error = %v, want %v", err, gpu.ErrInvalidState)
	}
	if err := list.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := list.Close(); !errors.Is(err, gpu.ErrInvalidState) {
		t.Errorf("second Close() error = %v, want %v", err, gpu.ErrInvalidState)
	}

	list.SetPrimitiveTopology(gpu.TopologyTriangleList)
	if err := list.Reset(alloc, nil); err != nil {
		t.Fatalf("Reset() error = %v", err)
	}
	if err := q.Execute(list); !errors.Is(err, gpu.ErrInvalidState) {
		t.Errorf("Execute(reopened list) error = %v, want %v", err, gpu.ErrInvalidState)
	}
}

func TestBundleRestrictions(t *testing.T) {
	d, _ := newTestDevice(t)
	alloc, _ := d.CreateCommandAllocator(gpu.ListBundle)
	bundle, err := d.CreateCommandList(gpu.ListBundle, alloc, nil)
	if err != nil {
		t.Fatal(err)
	}
	bundle.SetViewport(gpu.Viewport{Width: 1, Height: 1})
	if err := bundle.Close(); !errors.Is(err, gpu.ErrInvalidState) {
		t.Errorf("Close() of bundle with viewport error = %v, want %v", err, gpu.ErrInvalidState)
	}

	direct, _ := d.CreateCommandAllocator(gpu.ListDirect)
	if _, err := d.CreateCommandList(gpu.ListBundle, direct, nil); !errors.Is(err, gpu.ErrInvalidState) {
		t.Errorf("bundle list on direct allocator error = %v, want %v", err, gpu.ErrInvalidState)
	}
}

func TestAllocatorResetInFlight(t *testing.T) {
	d, q := newTestDevice(t, WithDebugLayer())
	f, _ := d.CreateFence(0)
	alloc, _ := d.CreateCommandAllocator(gpu.ListDirect)
	list, _ := d.CreateCommandList(gpu.ListDirect, alloc, nil)
	if err := list.Close(); err != nil {
		t.Fatal(err)
	}

	q.Pause()
	if err := q.Execute(list); err != nil {
		t.Fatal(err)
	}
	if err := alloc.Reset(); !errors.Is(err, gpu.ErrAllocatorInUse) {
		t.Errorf("Reset() in flight error = %v, want %v", err, gpu.ErrAllocatorInUse)
	}
	q.Resume()

	signalAndWait(t, q, f, 1)
	if err := alloc.Reset(); err != nil {
		t.Errorf("Reset() after retirement error = %v", err)
	}
}

func TestBarrierMismatchLosesDevice(t *testing.T) {
	d, q := newTestDevice(t, WithDebugLayer())
	f, _ := d.CreateFence(0)
	tex := newTarget(t, d, 4, 4)

	alloc, _ := d.CreateCommandAllocator(gpu.ListDirect)
	list, _ := d.CreateCommandList(gpu.ListDirect, alloc, nil)
	list.Barrier(gpu.Transition(tex, gpu.StateRenderTarget, gpu.StatePresent))
	if err := list.Close(); err != nil {
		t.Fatal(err)
	}
	if err := q.Execute(list); err != nil {
		t.Fatal(err)
	}
	if err := q.Signal(f, 1); err != nil {
		t.Fatal(err)
	}

	ch, err := f.Done(1)
	if err != nil {
		t.Fatal(err)
	}
	waitFor(t, ch)
	if f.CompletedValue() != 0 {
		t.Error("fence should not reach 1 after device loss")
	}
	if err := q.Signal(f, 2); !errors.Is(err, gpu.ErrDeviceLost) {
		t.Errorf("Signal() after loss error = %v, want %v", err, gpu.ErrDeviceLost)
	}
}

func TestLoseReleasesWaiters(t *testing.T) {
	d, q := newTestDevice(t)
	f, _ := d.CreateFence(0)

	q.Pause()
	if err := q.Signal(f, 1); err != nil {
		t.Fatal(err)
	}
	ch, _ := f.Done(1)
	q.Lose("test")
	waitFor(t, ch)

	if err := q.Execute(); !errors.Is(err, gpu.ErrDeviceLost) {
		t.Errorf("Execute() after loss error = %v, want %v", err, gpu.ErrDeviceLost)
	}
}

func TestSwapChain(t *testing.T) {
	d, q := newTestDevice(t)

	if _, err := d.CreateSwapChain(q, nil, &gpu.SwapChainDescriptor{
		Width: 8, Height: 8, Format: gputypes.TextureFormatRGBA8Unorm, FrameCount: 2, Fullscreen: true,
	}); !errors.Is(err, gpu.ErrFullscreenUnsupported) {
		t.Errorf("fullscreen error = %v, want %v", err, gpu.ErrFullscreenUnsupported)
	}
	if _, err := d.CreateSwapChain(q, nil, &gpu.SwapChainDescriptor{
		Width: 8, Height: 8, Format: gputypes.TextureFormatRGBA8Unorm, FrameCount: 1,
	}); !errors.Is(err, gpu.ErrOutOfRange) {
		t.Errorf("single buffer error = %v, want %v", err, gpu.ErrOutOfRange)
	}

	sc, err := d.CreateSwapChain(q, nil, &gpu.SwapChainDescriptor{
		Width: 8, Height: 8, Format: gputypes.TextureFormatRGBA8Unorm, FrameCount: 3,
	})
	if err != nil {
		t.Fatal(err)
	}
	defer sc.Destroy()

	f, _ := d.CreateFence(0)
	for i := uint32(0); i < 4; i++ {
		if got := sc.CurrentBackBufferIndex(); got != i%3 {
			t.Errorf("CurrentBackBufferIndex() = %d, want %d", got, i%3)
		}
		if err := sc.Present(1); err != nil {
			t.Fatal(err)
		}
	}
	signalAndWait(t, q, f, 1)
	if got := sc.(*swapChain).Presented(); got != 4 {
		t.Errorf("Presented() = %d, want 4", got)
	}
	if _, err := sc.BackBuffer(3); !errors.Is(err, gpu.ErrOutOfRange) {
		t.Errorf("BackBuffer(3) error = %v, want %v", err, gpu.ErrOutOfRange)
	}
}

func TestCopyBufferRoundTrip(t *testing.T) {
	d, q := newTestDevice(t, WithDebugLayer())
	f, _ := d.CreateFence(0)

	src, _ := d.CreateResource(gpu.BufferDesc("src", 64, gpu.HeapUpload, gpu.StateGenericRead))
	dst, _ := d.CreateResource(gpu.BufferDesc("dst", 64, gpu.HeapDefault, gpu.StateCopyDest))
	rb, _ := d.CreateResource(gpu.BufferDesc("rb", 64, gpu.HeapReadback, gpu.StateCopyDest))

	mem, err := src.Map()
	if err != nil {
		t.Fatal(err)
	}
	for i := range mem {
		mem[i] = byte(i * 3)
	}
	src.Unmap()

	alloc, _ := d.CreateCommandAllocator(gpu.ListDirect)
	list, _ := d.CreateCommandList(gpu.ListDirect, alloc, nil)
	list.CopyBuffer(dst, 0, src, 0, 64)
	list.Barrier(gpu.Transition(dst, gpu.StateCopyDest, gpu.StateCopySource))
	list.CopyBuffer(rb, 0, dst, 0, 64)
	if err := list.Close(); err != nil {
		t.Fatal(err)
	}
	if err := q.Execute(list); err != nil {
		t.Fatal(err)
	}
	signalAndWait(t, q, f, 1)

	out, _ := rb.Map()
	defer rb.Unmap()
	for i, b := range out {
		if b != byte(i*3) {
			t.Fatalf("byte %d = %d, want %d", i, b, byte(i*3))
		}
	}
}

func TestCopyOutOfRange(t *testing.T) {
	d, _ := newTestDevice(t)
	src, _ := d.CreateResource(gpu.BufferDesc("src", 16, gpu.HeapUpload, gpu.StateGenericRead))
	dst, _ := d.CreateResource(gpu.BufferDesc("dst", 8, gpu.HeapDefault, gpu.StateCopyDest))

	alloc, _ := d.CreateCommandAllocator(gpu.ListDirect)
	list, _ := d.CreateCommandList(gpu.ListDirect, alloc, nil)
	list.CopyBuffer(dst, 0, src, 0, 16)
	if err := list.Close(); !errors.Is(err, gpu.ErrOutOfRange) {
		t.Errorf("Close() error = %v, want %v", err, gpu.ErrOutOfRange)
	}
}

func newTarget(t *testing.T, d *Device, w, h uint32) gpu.Resource {
	t.Helper()
	desc := gpu.Texture2DDesc("target", w, h, gputypes.TextureFormatRGBA8Unorm, gpu.StatePresent)
	desc.AllowRenderTarget = true
	res, err := d.CreateResource(desc)
	if err != nil {
		t.Fatal(err)
	}
	return res
}

func putFloats(b []byte, fs ...float32) []byte {
	for _, f := range fs {
		b = binary.LittleEndian.AppendUint32(b, math.Float32bits(f))
	}
	return b
}

// drawTriangle clears a size x size target to blue, draws verts into it and
// returns the target read back with pitch-aligned rows.
func drawTriangle(t *testing.T, d *Device, q *Queue, size uint32, verts []byte) []byte {
	t.Helper()
	f, _ := d.CreateFence(0)

	target := newTarget(t, d, size, size)
	rtvs, _ := d.CreateDescriptorHeap(gpu.HeapDescriptor{Kind: gpu.HeapRTV, Capacity: 1})
	if err := d.CreateRenderTargetView(target, rtvs.CPUStart()); err != nil {
		t.Fatal(err)
	}

	vb, _ := d.CreateResource(gpu.BufferDesc("vertices", uint64(len(verts)), gpu.HeapUpload, gpu.StateGenericRead))
	mem, _ := vb.Map()
	copy(mem, verts)
	vb.Unmap()

	rs, err := d.CreateRootSignature(&gpu.RootSignatureDescriptor{AllowInputLayout: true})
	if err != nil {
		t.Fatal(err)
	}
	pso, err := d.CreatePipelineState(&gpu.PipelineStateDescriptor{
		RootSignature: rs,
		VS:            gpu.ShaderBytecode{EntryPoint: "vs_main", Code: []byte{1}},
		PS:            gpu.ShaderBytecode{EntryPoint: "fs_main", Code: []byte{1}},
		InputLayout: []gpu.InputElement{
			{Semantic: gpu.SemanticPosition, Format: gputypes.VertexFormatFloat32x3, Offset: 0},
			{Semantic: gpu.SemanticColor, Format: gputypes.VertexFormatFloat32x4, Offset: 12},
		},
		Topology:  gpu.TopologyTriangleList,
		RTVFormat: gputypes.TextureFormatRGBA8Unorm,
	})
	if err != nil {
		t.Fatal(err)
	}

	pitch := gpu.AlignPitch(size * 4)
	rb, _ := d.CreateResource(gpu.BufferDesc("readback", uint64(pitch*size), gpu.HeapReadback, gpu.StateCopyDest))
	fp := gpu.TextureFootprint{Format: gputypes.TextureFormatRGBA8Unorm, Width: size, Height: size, RowPitch: pitch}

	alloc, _ := d.CreateCommandAllocator(gpu.ListDirect)
	list, _ := d.CreateCommandList(gpu.ListDirect, alloc, pso)
	list.SetRootSignature(rs)
	list.SetViewport(gpu.Viewport{Width: float32(size), Height: float32(size), MaxDepth: 1})
	list.SetScissorRect(gpu.Rect{Right: int32(size), Bottom: int32(size)})
	list.Barrier(gpu.Transition(target, gpu.StatePresent, gpu.StateRenderTarget))
	list.SetRenderTarget(rtvs.CPUStart())
	list.ClearRenderTarget(rtvs.CPUStart(), gputypes.Color{R: 0, G: 0, B: 1, A: 1})
	list.SetPrimitiveTopology(gpu.TopologyTriangleList)
	list.SetVertexBuffers(0, gpu.VertexBufferView{Location: vb.GPUAddress(), Size: uint32(len(verts)), Stride: 28})
	list.Draw(3, 1, 0, 0)
	list.Barrier(gpu.Transition(target, gpu.StateRenderTarget, gpu.StateCopySource))
	list.CopyTextureToBuffer(rb, fp, target)
	if err := list.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := q.Execute(list); err != nil {
		t.Fatal(err)
	}
	signalAndWait(t, q, f, 1)

	out, _ := rb.Map()
	return append([]byte(nil), out...)
}

func TestDrawTriangle(t *testing.T) {
	const size = 16
	d, q := newTestDevice(t, WithDebugLayer())

	// One triangle covering the left half of the target, in red.
	var verts []byte
	verts = putFloats(verts, -1, 1, 0, 1, 0, 0, 1)
	verts = putFloats(verts, 0, 1, 0, 1, 0, 0, 1)
	verts = putFloats(verts, -1, -3, 0, 1, 0, 0, 1)
	out := drawTriangle(t, d, q, size, verts)

	pixel := func(x, y int) [4]byte {
		o := y*256 + x*4
		return [4]byte{out[o], out[o+1], out[o+2], out[o+3]}
	}
	if got := pixel(2, 8); got != [4]byte{255, 0, 0, 255} {
		t.Errorf("pixel(2, 8) = %v, want red", got)
	}
	if got := pixel(12, 8); got != [4]byte{0, 0, 255, 255} {
		t.Errorf("pixel(12, 8) = %v, want clear color", got)
	}
}

func TestBandedRasterMatchesSerial(t *testing.T) {
	const size = 96
	var verts []byte
	verts = putFloats(verts, 0, 0.9, 0, 1, 0, 0, 1)
	verts = putFloats(verts, 0.9, -0.9, 0, 0, 1, 0, 1)
	verts = putFloats(verts, -0.9, -0.9, 0, 0, 0, 1, 1)

	serialDev, serialQueue := newTestDevice(t, WithWorkers(1))
	if serialDev.pool != nil {
		t.Fatal("single worker device started a pool")
	}
	banded, bandedQueue := newTestDevice(t, WithWorkers(4))
	if banded.pool == nil || banded.pool.Workers() != 4 {
		t.Fatal("banded device has no 4-worker pool")
	}

	want := drawTriangle(t, serialDev, serialQueue, size, verts)
	got := drawTriangle(t, banded, bandedQueue, size, verts)
	if len(got) != len(want) {
		t.Fatalf("readback sizes %d and %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("byte %d (row %d) = %d, serial %d", i, i/int(gpu.AlignPitch(size*4)), got[i], want[i])
		}
	}
}

func TestClearSRGBTarget(t *testing.T) {
	const size = 4
	d, q := newTestDevice(t, WithDebugLayer())
	f, _ := d.CreateFence(0)

	desc := gpu.Texture2DDesc("srgb target", size, size, gputypes.TextureFormatRGBA8UnormSrgb, gpu.StatePresent)
	desc.AllowRenderTarget = true
	target, err := d.CreateResource(desc)
	if err != nil {
		t.Fatal(err)
	}
	rtvs, _ := d.CreateDescriptorHeap(gpu.HeapDescriptor{Kind: gpu.HeapRTV, Capacity: 1})
	if err := d.CreateRenderTargetView(target, rtvs.CPUStart()); err != nil {
		t.Fatal(err)
	}
	rb, _ := d.CreateResource(gpu.BufferDesc("readback", 256*size, gpu.HeapReadback, gpu.StateCopyDest))

	alloc, _ := d.CreateCommandAllocator(gpu.ListDirect)
	list, _ := d.CreateCommandList(gpu.ListDirect, alloc, nil)
	list.Barrier(gpu.Transition(target, gpu.StatePresent, gpu.StateRenderTarget))
	list.ClearRenderTarget(rtvs.CPUStart(), gputypes.Color{R: 0.5, G: 0.5, B: 0.5, A: 1})
	list.Barrier(gpu.Transition(target, gpu.StateRenderTarget, gpu.StateCopySource))
	list.CopyTextureToBuffer(rb, gpu.TextureFootprint{
		Format: gputypes.TextureFormatRGBA8UnormSrgb, Width: size, Height: size, RowPitch: 256,
	}, target)
	if err := list.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := q.Execute(list); err != nil {
		t.Fatal(err)
	}
	signalAndWait(t, q, f, 1)

	out, _ := rb.Map()
	if got := [4]byte(out[:4]); got != [4]byte{188, 188, 188, 255} {
		t.Errorf("linear 0.5 stored as %v, want sRGB 188", got)
	}
}
