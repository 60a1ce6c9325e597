//go:build !nogpu

package native

import (
	"errors"
	"testing"
	"time"

	"github.com/gogpu/framepipe/backend"
	"github.com/gogpu/framepipe/gpu"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal/noop"
)

type testWindow uintptr

func (w testWindow) NativeHandle() uintptr  { return uintptr(w) }
func (w testWindow) DisplayHandle() uintptr { return 0 }

func newTestDevice(t *testing.T) (*Device, *Queue) {
	t.Helper()
	b := NewBackend(noop.API{})
	if err := b.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	t.Cleanup(b.Close)
	adapters, err := b.Adapters()
	if err != nil {
		t.Fatalf("Adapters: %v", err)
	}
	d, q, err := adapters[0].Open()
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(d.Destroy)
	return d.(*Device), q.(*Queue)
}

func TestBackendLifecycle(t *testing.T) {
	b := NewBackend(noop.API{})
	if b.Name() != backend.BackendNative {
		t.Errorf("Name() = %q", b.Name())
	}
	if _, err := b.Adapters(); !errors.Is(err, backend.ErrNotInitialized) {
		t.Errorf("Adapters before Init: %v", err)
	}
	if err := b.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	defer b.Close()

	adapters, err := b.Adapters()
	if err != nil || len(adapters) != 1 {
		t.Fatalf("Adapters() = %d, %v", len(adapters), err)
	}
	info := adapters[0].Info()
	if info.Name != "Noop Adapter" || info.Backend != backend.BackendNative {
		t.Errorf("Info() = %+v", info)
	}
	if info.Software() {
		t.Error("noop adapter reported as software")
	}
	if info.FeatureLevel != gpu.FeatureLevel10_0 {
		t.Errorf("FeatureLevel = %v, want 10_0", info.FeatureLevel)
	}
}

func TestFeatureLevel(t *testing.T) {
	tests := []struct {
		max  uint32
		want gpu.FeatureLevel
	}{
		{2048, gpu.FeatureLevel9_3},
		{8192, gpu.FeatureLevel10_0},
		{16384, gpu.FeatureLevel11_0},
		{32768, gpu.FeatureLevel11_0},
	}
	for _, tt := range tests {
		if got := featureLevel(tt.max); got != tt.want {
			t.Errorf("featureLevel(%d) = %v, want %v", tt.max, got, tt.want)
		}
	}
}

func TestBufferMap(t *testing.T) {
	d, _ := newTestDevice(t)

	up, err := d.CreateResource(gpu.BufferDesc("upload", 64, gpu.HeapUpload, gpu.StateGenericRead))
	if err != nil {
		t.Fatalf("CreateResource: %v", err)
	}
	defer up.Destroy()
	mem, err := up.Map()
	if err != nil {
		t.Fatalf("Map: %v", err)
	}
	if len(mem) != 64 {
		t.Fatalf("len(Map()) = %d", len(mem))
	}
	copy(mem, "framepipe")
	up.Unmap()

	mem, err = up.Map()
	if err != nil {
		t.Fatalf("second Map: %v", err)
	}
	if string(mem[:9]) != "framepipe" {
		t.Errorf("mapped data = %q", mem[:9])
	}
	up.Unmap()

	local, err := d.CreateResource(gpu.BufferDesc("local", 64, gpu.HeapDefault, gpu.StateCopyDest))
	if err != nil {
		t.Fatalf("CreateResource: %v", err)
	}
	defer local.Destroy()
	if _, err := local.Map(); !errors.Is(err, gpu.ErrNotMappable) {
		t.Errorf("Map default heap: %v", err)
	}
	if local.GPUAddress() == up.GPUAddress() {
		t.Error("buffers share a GPU address")
	}
	if b, off, err := d.resolveAddress(local.GPUAddress() + 8); err != nil || b != local || off != 8 {
		t.Errorf("resolveAddress = %v, %d, %v", b, off, err)
	}
}

func TestDescriptorHeaps(t *testing.T) {
	d, _ := newTestDevice(t)

	if _, err := d.CreateDescriptorHeap(gpu.HeapDescriptor{Kind: gpu.HeapRTV, Capacity: 2, ShaderVisible: true}); err == nil {
		t.Error("shader-visible RTV heap created")
	}
	rtv, err := d.CreateDescriptorHeap(gpu.HeapDescriptor{Kind: gpu.HeapRTV, Capacity: 2})
	if err != nil {
		t.Fatalf("CreateDescriptorHeap: %v", err)
	}
	if rtv.GPUStart().Ptr != 0 {
		t.Error("RTV heap has a GPU start")
	}
	srv, err := d.CreateDescriptorHeap(gpu.HeapDescriptor{Kind: gpu.HeapCBVSRVUAV, Capacity: 4, ShaderVisible: true})
	if err != nil {
		t.Fatalf("CreateDescriptorHeap: %v", err)
	}
	stride := d.DescriptorStride(gpu.HeapCBVSRVUAV)
	if _, i, err := d.resolveGPU(srv.GPUStart().Offset(3, stride)); err != nil || i != 3 {
		t.Errorf("resolveGPU(3) = %d, %v", i, err)
	}
	if _, _, err := d.resolveGPU(srv.GPUStart().Offset(4, stride)); !errors.Is(err, gpu.ErrOutOfRange) {
		t.Errorf("resolveGPU(4): %v", err)
	}
	if _, _, err := d.resolveCPU(rtv.CPUStart().Offset(1, stride)); !errors.Is(err, gpu.ErrOutOfRange) {
		t.Errorf("misaligned handle: %v", err)
	}
}

func TestCommandListStateMachine(t *testing.T) {
	d, q := newTestDevice(t)

	alloc, err := d.CreateCommandAllocator(gpu.ListDirect)
	if err != nil {
		t.Fatalf("CreateCommandAllocator: %v", err)
	}
	defer alloc.Destroy()
	list, err := d.CreateCommandList(gpu.ListDirect, alloc, nil)
	if err != nil {
		t.Fatalf("CreateCommandList: %v", err)
	}
	defer list.Destroy()

	if err := q.Execute(list); !errors.Is(err, gpu.ErrInvalidState) {
		t.Errorf("Execute open list: %v", err)
	}
	if err := list.Reset(alloc, nil); !errors.Is(err, gpu.ErrInvalidState) {
		t.Errorf("Reset open list: %v", err)
	}
	if err := list.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := list.Close(); !errors.Is(err, gpu.ErrInvalidState) {
		t.Errorf("second Close: %v", err)
	}
	if err := q.Execute(list); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if err := alloc.Reset(); err != nil {
		t.Fatalf("allocator Reset after completion: %v", err)
	}
	if err := list.Reset(alloc, nil); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	list.Draw(3, 1, 0, 0)
	if err := list.Close(); !errors.Is(err, gpu.ErrInvalidState) {
		t.Errorf("Close after draw without pipeline: %v", err)
	}
}

func TestBundleUnsupportedByHAL(t *testing.T) {
	d, _ := newTestDevice(t)
	rs, pso := newTestPipeline(t, d)
	defer rs.Destroy()
	defer pso.Destroy()

	alloc, err := d.CreateCommandAllocator(gpu.ListBundle)
	if err != nil {
		t.Fatalf("CreateCommandAllocator: %v", err)
	}
	defer alloc.Destroy()
	if _, err := d.CreateCommandList(gpu.ListBundle, alloc, nil); !errors.Is(err, gpu.ErrInvalidState) {
		t.Errorf("bundle without pipeline: %v", err)
	}
	// The no-op HAL device has no render bundle encoder.
	if _, err := d.CreateCommandList(gpu.ListBundle, alloc, pso); err == nil {
		t.Error("bundle list created on a HAL device without bundles")
	}
}

func TestFence(t *testing.T) {
	d, q := newTestDevice(t)

	f, err := d.CreateFence(0)
	if err != nil {
		t.Fatalf("CreateFence: %v", err)
	}
	pending, err := f.Done(5)
	if err != nil {
		t.Fatalf("Done(5): %v", err)
	}

	alloc, _ := d.CreateCommandAllocator(gpu.ListDirect)
	defer alloc.Destroy()
	list, _ := d.CreateCommandList(gpu.ListDirect, alloc, nil)
	defer list.Destroy()
	if err := list.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := q.Execute(list); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if err := q.Signal(f, 1); err != nil {
		t.Fatalf("Signal: %v", err)
	}
	if got := f.CompletedValue(); got != 1 {
		t.Errorf("CompletedValue() = %d, want 1", got)
	}
	done, err := f.Done(1)
	if err != nil {
		t.Fatalf("Done(1): %v", err)
	}
	select {
	case <-done:
	default:
		t.Error("Done(1) not closed after completion")
	}

	select {
	case <-pending:
		t.Fatal("Done(5) closed early")
	default:
	}
	f.Destroy()
	select {
	case <-pending:
	case <-time.After(time.Second):
		t.Fatal("Destroy did not release the waiter")
	}
	if _, err := f.Done(1); !errors.Is(err, gpu.ErrSyncObject) {
		t.Errorf("Done on destroyed fence: %v", err)
	}
}

func newTestPipeline(t *testing.T, d *Device) (gpu.RootSignature, gpu.PipelineState) {
	t.Helper()
	rs, err := d.CreateRootSignature(&gpu.RootSignatureDescriptor{
		Parameters: []gpu.RootParameter{{
			Ranges:     []gpu.DescriptorRange{{Kind: gpu.HeapCBVSRVUAV, Count: 1}},
			Visibility: gputypes.ShaderStageFragment,
		}},
		StaticSamplers: []gpu.StaticSampler{{
			Filter:  gputypes.FilterModeNearest,
			Address: gputypes.AddressModeRepeat,
		}},
		AllowInputLayout: true,
	})
	if err != nil {
		t.Fatalf("CreateRootSignature: %v", err)
	}
	code := []byte{0x03, 0x02, 0x23, 0x07}
	pso, err := d.CreatePipelineState(&gpu.PipelineStateDescriptor{
		Label:         "test",
		RootSignature: rs,
		VS:            gpu.ShaderBytecode{EntryPoint: "vs_main", Source: "wgsl", Code: code},
		PS:            gpu.ShaderBytecode{EntryPoint: "fs_main", Source: "wgsl", Code: code},
		InputLayout: []gpu.InputElement{
			{Semantic: gpu.SemanticPosition, Format: gputypes.VertexFormatFloat32x3},
			{Semantic: gpu.SemanticTexCoord, Format: gputypes.VertexFormatFloat32x2, Offset: 12},
		},
		RTVFormat: gputypes.TextureFormatRGBA8Unorm,
	})
	if err != nil {
		t.Fatalf("CreatePipelineState: %v", err)
	}
	return rs, pso
}

func TestRootSignatureValidation(t *testing.T) {
	d, _ := newTestDevice(t)
	tests := []struct {
		name string
		desc *gpu.RootSignatureDescriptor
	}{
		{"nil", nil},
		{"rtv table", &gpu.RootSignatureDescriptor{Parameters: []gpu.RootParameter{{
			Ranges: []gpu.DescriptorRange{{Kind: gpu.HeapRTV, Count: 1}},
		}}}},
		{"empty range", &gpu.RootSignatureDescriptor{Parameters: []gpu.RootParameter{{
			Ranges: []gpu.DescriptorRange{{Kind: gpu.HeapCBVSRVUAV}},
		}}}},
		{"duplicate sampler", &gpu.RootSignatureDescriptor{StaticSamplers: []gpu.StaticSampler{{Register: 1}, {Register: 1}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := d.CreateRootSignature(tt.desc); !errors.Is(err, gpu.ErrRootSignature) {
				t.Errorf("CreateRootSignature: %v, want ErrRootSignature", err)
			}
		})
	}
}

func TestPipelineRejectsMalformedBytecode(t *testing.T) {
	d, _ := newTestDevice(t)
	rs, pso := newTestPipeline(t, d)
	defer rs.Destroy()
	pso.Destroy()

	_, err := d.CreatePipelineState(&gpu.PipelineStateDescriptor{
		RootSignature: rs,
		VS:            gpu.ShaderBytecode{EntryPoint: "vs_main", Code: []byte{1, 2, 3}},
		PS:            gpu.ShaderBytecode{EntryPoint: "fs_main", Code: []byte{1, 2, 3}},
		RTVFormat:     gputypes.TextureFormatRGBA8Unorm,
	})
	if !errors.Is(err, gpu.ErrShaderCompile) {
		t.Errorf("CreatePipelineState: %v, want ErrShaderCompile", err)
	}
}

func TestRecordFrame(t *testing.T) {
	d, q := newTestDevice(t)
	rs, pso := newTestPipeline(t, d)
	defer rs.Destroy()
	defer pso.Destroy()

	target, err := d.CreateResource(&gpu.ResourceDescriptor{
		Label: "target", Dimension: gpu.DimensionTexture2D, Width: 8, Height: 8,
		Format: gputypes.TextureFormatRGBA8Unorm, InitialState: gpu.StateRenderTarget, AllowRenderTarget: true,
	})
	if err != nil {
		t.Fatalf("target: %v", err)
	}
	defer target.Destroy()
	tex, err := d.CreateResource(gpu.Texture2DDesc("tex", 4, 4, gputypes.TextureFormatRGBA8Unorm, gpu.StateCopyDest))
	if err != nil {
		t.Fatalf("texture: %v", err)
	}
	defer tex.Destroy()

	rtvHeap, _ := d.CreateDescriptorHeap(gpu.HeapDescriptor{Kind: gpu.HeapRTV, Capacity: 1})
	defer rtvHeap.Destroy()
	srvHeap, _ := d.CreateDescriptorHeap(gpu.HeapDescriptor{Kind: gpu.HeapCBVSRVUAV, Capacity: 1, ShaderVisible: true})
	defer srvHeap.Destroy()
	if err := d.CreateRenderTargetView(target, rtvHeap.CPUStart()); err != nil {
		t.Fatalf("CreateRenderTargetView: %v", err)
	}
	if err := d.CreateShaderResourceView(tex, srvHeap.CPUStart()); err != nil {
		t.Fatalf("CreateShaderResourceView: %v", err)
	}
	if err := d.CreateRenderTargetView(tex, rtvHeap.CPUStart()); !errors.Is(err, gpu.ErrInvalidState) {
		t.Errorf("RTV of a sampled texture: %v", err)
	}

	vb, _ := d.CreateResource(gpu.BufferDesc("vb", 3*20, gpu.HeapUpload, gpu.StateGenericRead))
	defer vb.Destroy()
	staging, _ := d.CreateResource(gpu.BufferDesc("staging", 4*256, gpu.HeapUpload, gpu.StateGenericRead))
	defer staging.Destroy()

	alloc, _ := d.CreateCommandAllocator(gpu.ListDirect)
	defer alloc.Destroy()
	list, err := d.CreateCommandList(gpu.ListDirect, alloc, pso)
	if err != nil {
		t.Fatalf("CreateCommandList: %v", err)
	}
	defer list.Destroy()

	fp, _ := gpu.Footprint(&gpu.ResourceDescriptor{Width: 4, Height: 4, Format: gputypes.TextureFormatRGBA8Unorm})
	list.CopyBufferToTexture(tex, staging, fp)
	list.Barrier(gpu.Transition(tex, gpu.StateCopyDest, gpu.StatePixelShaderResource))
	list.SetRootSignature(rs)
	list.SetDescriptorHeaps(srvHeap)
	list.SetRootDescriptorTable(0, srvHeap.GPUStart())
	list.SetViewport(gpu.Viewport{Width: 8, Height: 8, MaxDepth: 1})
	list.SetScissorRect(gpu.Rect{Right: 8, Bottom: 8})
	list.SetRenderTarget(rtvHeap.CPUStart())
	list.ClearRenderTarget(rtvHeap.CPUStart(), gputypes.Color{B: 1, A: 1})
	list.SetPrimitiveTopology(gpu.TopologyTriangleList)
	list.SetVertexBuffers(0, gpu.VertexBufferView{Location: vb.GPUAddress(), Size: 60, Stride: 20})
	list.Draw(3, 1, 0, 0)
	if err := list.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := q.Execute(list); err != nil {
		t.Fatalf("Execute: %v", err)
	}
}

func TestCopyFootprintValidation(t *testing.T) {
	d, _ := newTestDevice(t)
	tex, _ := d.CreateResource(gpu.Texture2DDesc("tex", 4, 4, gputypes.TextureFormatRGBA8Unorm, gpu.StateCopyDest))
	defer tex.Destroy()
	small, _ := d.CreateResource(gpu.BufferDesc("small", 256, gpu.HeapUpload, gpu.StateGenericRead))
	defer small.Destroy()

	tests := []struct {
		name string
		fp   gpu.TextureFootprint
		want error
	}{
		{"unaligned pitch", gpu.TextureFootprint{Width: 4, Height: 4, RowPitch: 16}, gpu.ErrInvalidState},
		{"too large", gpu.TextureFootprint{Width: 4, Height: 4, RowPitch: 256}, gpu.ErrOutOfRange},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			alloc, _ := d.CreateCommandAllocator(gpu.ListDirect)
			defer alloc.Destroy()
			list, _ := d.CreateCommandList(gpu.ListDirect, alloc, nil)
			defer list.Destroy()
			list.CopyBufferToTexture(tex, small, tt.fp)
			if err := list.Close(); !errors.Is(err, tt.want) {
				t.Errorf("Close: %v, want %v", err, tt.want)
			}
		})
	}
}

func TestSwapChain(t *testing.T) {
	d, q := newTestDevice(t)
	desc := func(n uint32) *gpu.SwapChainDescriptor {
		return &gpu.SwapChainDescriptor{Width: 16, Height: 16, Format: gputypes.TextureFormatBGRA8Unorm, FrameCount: n}
	}

	full := desc(2)
	full.Fullscreen = true
	if _, err := d.CreateSwapChain(q, testWindow(1), full); !errors.Is(err, gpu.ErrFullscreenUnsupported) {
		t.Errorf("fullscreen: %v", err)
	}
	if _, err := d.CreateSwapChain(q, testWindow(1), desc(1)); !errors.Is(err, gpu.ErrOutOfRange) {
		t.Errorf("single buffer: %v", err)
	}

	for _, win := range []testWindow{0, 1} {
		sc, err := d.CreateSwapChain(q, win, desc(3))
		if err != nil {
			t.Fatalf("CreateSwapChain(window %d): %v", win, err)
		}
		if sc.FrameCount() != 3 {
			t.Errorf("FrameCount() = %d", sc.FrameCount())
		}
		bb, err := sc.BackBuffer(0)
		if err != nil {
			t.Fatalf("BackBuffer(0): %v", err)
		}
		if bb.Desc().InitialState != gpu.StatePresent || !bb.Desc().AllowRenderTarget {
			t.Errorf("back buffer desc = %+v", bb.Desc())
		}
		if _, err := bb.(textureResource).view(); err != nil {
			t.Errorf("view of current back buffer: %v", err)
		}
		for i := 0; i < 4; i++ {
			if err := sc.Present(1); err != nil {
				t.Fatalf("Present: %v", err)
			}
		}
		if got := sc.CurrentBackBufferIndex(); got != 1 {
			t.Errorf("CurrentBackBufferIndex() = %d, want 1", got)
		}
		if _, err := sc.BackBuffer(3); !errors.Is(err, gpu.ErrOutOfRange) {
			t.Errorf("BackBuffer(3): %v", err)
		}
		if win != 0 {
			if _, err := bb.(textureResource).halTexture(); !errors.Is(err, gpu.ErrInvalidState) {
				t.Errorf("stale back buffer: %v", err)
			}
		}
		sc.Destroy()
	}
}

func TestPresentedViewOutlivesPendingWork(t *testing.T) {
	d, q := newTestDevice(t)
	sc, err := d.CreateSwapChain(q, testWindow(1), &gpu.SwapChainDescriptor{
		Width: 16, Height: 16, Format: gputypes.TextureFormatBGRA8Unorm, FrameCount: 2,
	})
	if err != nil {
		t.Fatalf("CreateSwapChain: %v", err)
	}
	chain := sc.(*swapChain)

	// A submission the HAL queue has not completed yet.
	q.mu.Lock()
	q.submitted = q.raw.PollCompleted() + 5
	pending := q.submitted
	q.mu.Unlock()

	for i := 0; i < 2; i++ {
		bb, _ := sc.BackBuffer(sc.CurrentBackBufferIndex())
		if _, err := bb.(textureResource).view(); err != nil {
			t.Fatalf("view: %v", err)
		}
		if err := sc.Present(1); err != nil {
			t.Fatalf("Present: %v", err)
		}
	}
	if n := len(chain.retired); n != 2 {
		t.Fatalf("%d views retired while work is pending, want 2", n)
	}
	for _, r := range chain.retired {
		if r.index != pending {
			t.Errorf("retired view tied to submission %d, want %d", r.index, pending)
		}
	}

	chain.releaseRetired(pending - 1)
	if n := len(chain.retired); n != 2 {
		t.Errorf("%d views retired before completion, want 2", n)
	}
	chain.releaseRetired(pending)
	if n := len(chain.retired); n != 0 {
		t.Errorf("%d views retired after completion, want 0", n)
	}

	if err := sc.Present(1); err != nil {
		t.Fatalf("Present: %v", err)
	}
	sc.Destroy()
	if n := len(chain.retired); n != 0 {
		t.Errorf("%d views left after Destroy", n)
	}
}
