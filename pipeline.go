package framepipe

import (
	"errors"
	"fmt"

	"github.com/gogpu/framepipe/gpu"
	"github.com/gogpu/framepipe/internal/descriptor"
	"github.com/gogpu/framepipe/internal/frame"
	"github.com/gogpu/framepipe/internal/shader"
	"github.com/gogpu/framepipe/internal/swapchain"
	"github.com/gogpu/framepipe/internal/upload"
	"github.com/gogpu/gputypes"
)

// TextureSize is the edge length of the checkerboard texture.
const TextureSize = 256

// programs is shared by every pipeline in the process.
var programs = shader.NewCache(8)

// Pipeline renders the triangle into a window. It implements Sample.
//
// Pipeline is not safe for concurrent use.
type Pipeline struct {
	win  Window
	opts options

	dc     *DeviceContext
	heaps  *descriptor.Manager
	chain  *swapchain.Chain
	sync   *frame.Synchronizer
	root   gpu.RootSignature
	pso    gpu.PipelineState
	vb     gpu.Resource
	tex    gpu.Resource
	srv    *descriptor.Heap
	bundle *frame.Bundle
	rec    *frame.Recorder

	ready     bool
	presented bool
	destroyed bool
	initErr   error
	err       error
}

// New returns a pipeline for win. No GPU work happens before OnInit.
func New(win Window, opts ...Option) *Pipeline {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Pipeline{win: win, opts: o}
}

// OnInit opens the device and creates every object the frame loop needs.
// Any failure is fatal and final: later calls return the same error, and
// the partially built pipeline must still be released with OnDestroy.
func (p *Pipeline) OnInit() error {
	switch {
	case p.destroyed:
		return ErrDestroyed
	case p.initErr != nil:
		return p.initErr
	case p.ready:
		return nil
	}
	width, height := PixelSize(p.win)
	if err := p.init(width, height); err != nil {
		p.initErr = err
		return err
	}

	p.ready = true
	Logger().Info("framepipe: pipeline initialized",
		"width", width,
		"height", height,
		"frames", p.opts.frameCount,
		"policy", p.opts.policy.String(),
		"texture", p.opts.texture,
		"bundle", p.opts.bundle)
	return nil
}

func (p *Pipeline) init(width, height uint32) error {
	if width == 0 || height == 0 {
		return fmt.Errorf("framepipe: window size %dx%d: %w", width, height, ErrInvalidConfig)
	}

	var err error
	if p.opts.adapter != nil {
		p.dc, err = openAdapter(p.opts.adapter, p.opts.minLevel)
	} else {
		p.dc, err = OpenDevice(!p.opts.software, p.opts.minLevel)
	}
	if err != nil {
		return err
	}
	dev, queue := p.dc.GPU()

	p.heaps = descriptor.NewManager(dev)
	p.chain, err = swapchain.Create(dev, queue, p.win, width, height, p.opts.frameCount, p.heaps)
	if err != nil {
		return fmt.Errorf("framepipe: swap chain: %w", err)
	}
	p.sync, err = frame.NewSynchronizer(dev, queue, p.opts.frameCount, p.opts.policy, p.chain.CurrentIndex)
	if err != nil {
		return fmt.Errorf("framepipe: synchronizer: %w", err)
	}
	return p.loadAssets(width, height)
}

// loadAssets builds the root signature, pipeline state, geometry and the
// optional texture, then the frame recorder.
func (p *Pipeline) loadAssets(width, height uint32) error {
	dev, queue := p.dc.GPU()
	up := upload.New(dev, queue)

	src, label, layout := shader.ColorWGSL, "color", colorLayout
	rootDesc := &gpu.RootSignatureDescriptor{AllowInputLayout: true}
	if p.opts.texture {
		src, label, layout = shader.TextureWGSL, "texture", textureLayout
		rootDesc.Parameters = []gpu.RootParameter{{
			Ranges:     []gpu.DescriptorRange{{Kind: gpu.HeapCBVSRVUAV, Count: 1}},
			Visibility: gputypes.ShaderStageFragment,
		}}
		rootDesc.StaticSamplers = []gpu.StaticSampler{{
			Filter:  gputypes.FilterModeNearest,
			Address: gputypes.AddressModeClampToEdge,
		}}
	}

	prog, err := programs.Compile(label, src, shader.Options{Debug: p.opts.debugShaders})
	if err != nil {
		return fmt.Errorf("framepipe: %w", err)
	}
	p.root, err = dev.CreateRootSignature(rootDesc)
	if err != nil {
		return fmt.Errorf("framepipe: root signature: %w", err)
	}
	p.pso, err = dev.CreatePipelineState(&gpu.PipelineStateDescriptor{
		Label:         label,
		RootSignature: p.root,
		VS:            prog.VS(),
		PS:            prog.PS(),
		InputLayout:   layout,
		Topology:      gpu.TopologyTriangleList,
		RTVFormat:     swapchain.Format,
	})
	if err != nil {
		return fmt.Errorf("framepipe: pipeline state: %w", err)
	}

	aspect := float32(width) / float32(height)
	vertices, stride := colorTriangle(aspect), uint32(colorVertexStride)
	if p.opts.texture {
		vertices, stride = textureTriangle(aspect), textureVertexStride
	}
	p.vb, err = dev.CreateResource(gpu.BufferDesc("vertices", uint64(len(vertices)), gpu.HeapDefault, gpu.StateCopyDest))
	if err != nil {
		return fmt.Errorf("framepipe: vertex buffer: %w", err)
	}
	if err := up.UploadStatic(vertices, p.vb, gpu.StateVertexAndConstantBuffer); err != nil {
		return fmt.Errorf("framepipe: vertex buffer: %w", err)
	}

	draw := &frame.Draw{
		Root:     p.root,
		Pipeline: p.pso,
		Vertices: gpu.VertexBufferView{
			Location: p.vb.GPUAddress(),
			Size:     uint32(len(vertices)),
			Stride:   stride,
		},
		VertexCount: 3,
	}
	if p.opts.texture {
		if err := p.loadTexture(up); err != nil {
			return err
		}
		table, err := p.srv.GPUHandleAt(0)
		if err != nil {
			return err
		}
		draw.Heaps = []gpu.DescriptorHeap{p.srv.Raw()}
		draw.Tables = []gpu.GPUHandle{table}
	}

	if p.opts.bundle {
		p.bundle, err = frame.NewBundle(dev, draw)
		if err != nil {
			return fmt.Errorf("framepipe: %w", err)
		}
	}
	p.rec, err = frame.NewRecorder(dev, p.sync, p.chain, frame.RecorderConfig{
		Draw:       draw,
		Viewport:   gpu.Viewport{Width: float32(width), Height: float32(height), MaxDepth: 1},
		Scissor:    gpu.Rect{Right: int32(width), Bottom: int32(height)},
		ClearColor: p.opts.clearColor,
		Bundle:     p.bundle,
	})
	if err != nil {
		return fmt.Errorf("framepipe: %w", err)
	}
	return nil
}

// loadTexture uploads the checkerboard and writes its view into a
// shader-visible heap.
func (p *Pipeline) loadTexture(up *upload.Uploader) error {
	dev, _ := p.dc.GPU()
	var err error
	p.tex, err = dev.CreateResource(gpu.Texture2DDesc("checkerboard", TextureSize, TextureSize, swapchain.Format, gpu.StateCopyDest))
	if err != nil {
		return fmt.Errorf("framepipe: texture: %w", err)
	}
	pixels := upload.Checkerboard(TextureSize, TextureSize, gpu.BytesPerPixel(swapchain.Format))
	if err := up.UploadStatic(pixels, p.tex, gpu.StatePixelShaderResource); err != nil {
		return fmt.Errorf("framepipe: texture: %w", err)
	}
	p.srv, err = p.heaps.CreateHeap(gpu.HeapCBVSRVUAV, 1, true)
	if err != nil {
		return fmt.Errorf("framepipe: srv heap: %w", err)
	}
	h, err := p.srv.CPUHandleAt(0)
	if err != nil {
		return err
	}
	if err := dev.CreateShaderResourceView(p.tex, h); err != nil {
		return fmt.Errorf("framepipe: texture view: %w", err)
	}
	return nil
}

// OnUpdate advances per-frame state. The scene is static.
func (p *Pipeline) OnUpdate() {}

// OnRender records, submits and presents one frame, then advances to the
// next frame slot. Any failure wraps gpu.ErrDeviceLost and puts the
// pipeline in a failed state: every later call returns the same error.
func (p *Pipeline) OnRender() error {
	switch {
	case p.err != nil:
		return p.err
	case p.destroyed:
		return ErrDestroyed
	case !p.ready:
		return ErrNotInitialized
	}
	if err := p.render(); err != nil {
		return p.fail(err)
	}
	return nil
}

func (p *Pipeline) render() error {
	list, err := p.rec.Record(p.sync.Current(), p.chain.CurrentIndex())
	if err != nil {
		return err
	}
	if err := p.sync.Submit(list); err != nil {
		return err
	}
	if err := p.chain.Present(); err != nil {
		return err
	}
	p.presented = true
	_, err = p.sync.Advance()
	return err
}

func (p *Pipeline) fail(err error) error {
	if errors.Is(err, gpu.ErrDeviceLost) {
		p.err = fmt.Errorf("framepipe: render: %w", err)
	} else {
		p.err = fmt.Errorf("framepipe: render: %w: %w", gpu.ErrDeviceLost, err)
	}
	Logger().Warn("framepipe: pipeline failed", "error", p.err)
	return p.err
}

// Err returns the error that put the pipeline in the failed state.
func (p *Pipeline) Err() error { return p.err }

// Stats returns the frame pacing counters.
func (p *Pipeline) Stats() frame.Stats {
	if p.sync == nil {
		return frame.Stats{}
	}
	return p.sync.Stats()
}

// Info returns the adapter the pipeline renders on.
func (p *Pipeline) Info() gpu.AdapterInfo {
	if p.dc == nil {
		return gpu.AdapterInfo{}
	}
	return p.dc.Info()
}

// Device returns the device context, or nil before OnInit.
func (p *Pipeline) Device() *DeviceContext { return p.dc }

// Drain blocks until the GPU finished all submitted frames.
func (p *Pipeline) Drain() error {
	if p.sync == nil {
		return nil
	}
	_, err := p.sync.Drain()
	return err
}

// OnDestroy waits for the GPU to finish and releases every object. It is
// safe to call after a failed OnInit or OnRender and more than once.
//
// The drain runs even after a render failure, because a failed present
// can leave frames queued on a live device. On a lost device it returns
// at once. The returned error is the drain failure of a healthy pipeline;
// objects are released regardless.
func (p *Pipeline) OnDestroy() error {
	if p.destroyed {
		return nil
	}
	p.destroyed = true
	p.ready = false

	var drainErr error
	if err := p.Drain(); err != nil && p.err == nil {
		drainErr = fmt.Errorf("framepipe: drain: %w", err)
	}

	if p.rec != nil {
		p.rec.Destroy()
	}
	if p.bundle != nil {
		p.bundle.Destroy()
	}
	if p.srv != nil {
		p.srv.Destroy()
	}
	if p.tex != nil {
		p.tex.Destroy()
	}
	if p.vb != nil {
		p.vb.Destroy()
	}
	if p.pso != nil {
		p.pso.Destroy()
	}
	if p.root != nil {
		p.root.Destroy()
	}
	if p.sync != nil {
		p.sync.Destroy()
	}
	if p.chain != nil {
		p.chain.Destroy()
	}
	if p.dc != nil {
		p.dc.Close()
	}
	Logger().Info("framepipe: pipeline destroyed", "frames", p.Stats().Frames)
	return drainErr
}

var _ Sample = (*Pipeline)(nil)
