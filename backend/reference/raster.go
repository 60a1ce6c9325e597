package reference

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/gogpu/framepipe/gpu"
	"github.com/gogpu/framepipe/internal/color"
	"github.com/gogpu/gputypes"
)

// execState is the pipeline state of one command list during execution.
type execState struct {
	dev           *Device
	pso           *pipelineState
	root          *rootSignature
	heaps         [2]*heap
	tables        map[uint32]gpu.GPUHandle
	viewport      *gpu.Viewport
	scissor       *gpu.Rect
	target        *resource
	topology      gpu.Topology
	vertexBuffers map[uint32]gpu.VertexBufferView
}

func newExecState(d *Device) *execState {
	return &execState{
		dev:           d,
		tables:        map[uint32]gpu.GPUHandle{},
		vertexBuffers: map[uint32]gpu.VertexBufferView{},
	}
}

type vertex struct {
	x, y float64
	attr [4]float64
}

func (s *execState) draw(count, instances, start uint32, debug bool) error {
	switch {
	case s.pso == nil:
		return fmt.Errorf("reference: draw without pipeline state: %w", gpu.ErrInvalidState)
	case s.root == nil:
		return fmt.Errorf("reference: draw without root signature: %w", gpu.ErrInvalidState)
	case s.root != s.pso.root:
		return fmt.Errorf("reference: draw with a root signature the pipeline was not built for: %w", gpu.ErrInvalidState)
	case s.target == nil:
		return fmt.Errorf("reference: draw without render target: %w", gpu.ErrInvalidState)
	}
	if debug && s.target.state != gpu.StateRenderTarget {
		return fmt.Errorf("reference: draw into %q in state %v: %w", s.target.desc.Label, s.target.state, gpu.ErrInvalidState)
	}
	if s.viewport == nil || instances == 0 {
		return nil
	}

	var tex *resource
	var smp gpu.StaticSampler
	if s.pso.uv >= 0 {
		var err error
		if tex, err = s.shaderResource(debug); err != nil {
			return err
		}
		smp, _ = s.root.sampler()
	}

	verts := make([]vertex, count)
	for i := range verts {
		v, err := s.fetch(start + uint32(i))
		if err != nil {
			return err
		}
		verts[i] = v
	}

	for tri := 0; tri+2 < len(verts); tri += 3 {
		s.rasterize(verts[tri:tri+3], tex, smp)
	}
	return nil
}

// fetch reads vertex i from slot 0 and applies the viewport transform.
func (s *execState) fetch(i uint32) (vertex, error) {
	view, ok := s.vertexBuffers[0]
	if !ok {
		return vertex{}, fmt.Errorf("reference: draw without vertex buffer: %w", gpu.ErrInvalidState)
	}
	stride := view.Stride
	if stride == 0 {
		stride = s.pso.stride
	}
	if uint64(i+1)*uint64(stride) > uint64(view.Size) {
		return vertex{}, fmt.Errorf("reference: vertex %d past a %d-byte view: %w", i, view.Size, gpu.ErrOutOfRange)
	}
	buf, off, err := s.dev.resolveAddress(view.Location)
	if err != nil {
		return vertex{}, err
	}
	base := off + uint64(i)*uint64(stride)
	if base+uint64(s.pso.stride) > uint64(len(buf.data)) {
		return vertex{}, fmt.Errorf("reference: vertex %d past buffer %q: %w", i, buf.desc.Label, gpu.ErrOutOfRange)
	}
	data := buf.data[base:]

	f := func(at int) float64 {
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(data[at:])))
	}

	vp := s.viewport
	var v vertex
	nx, ny := f(s.pso.pos), f(s.pso.pos+4)
	v.x = float64(vp.X) + (nx+1)*0.5*float64(vp.Width)
	v.y = float64(vp.Y) + (1-ny)*0.5*float64(vp.Height)
	switch {
	case s.pso.color >= 0:
		for c := 0; c < 4; c++ {
			v.attr[c] = f(s.pso.color + 4*c)
		}
	case s.pso.uv >= 0:
		v.attr[0], v.attr[1] = f(s.pso.uv), f(s.pso.uv+4)
	default:
		v.attr = [4]float64{1, 1, 1, 1}
	}
	return v, nil
}

// shaderResource resolves the texture in the bound SRV table.
func (s *execState) shaderResource(debug bool) (*resource, error) {
	param, _ := s.root.srvTable()
	base, ok := s.tables[param]
	if !ok {
		return nil, fmt.Errorf("reference: root table %d not set: %w", param, gpu.ErrInvalidState)
	}
	h, i, err := s.dev.resolveGPU(base)
	if err != nil {
		return nil, err
	}
	if s.heaps[0] != h {
		return nil, fmt.Errorf("reference: descriptor table outside the bound heap: %w", gpu.ErrInvalidState)
	}
	d := h.load(i)
	if d.view != viewSRV || d.res == nil {
		return nil, fmt.Errorf("reference: descriptor %d holds no shader resource view: %w", i, gpu.ErrInvalidState)
	}
	if debug && d.res.state&gpu.StatePixelShaderResource == 0 {
		return nil, fmt.Errorf("reference: sample %q in state %v: %w", d.res.desc.Label, d.res.state, gpu.ErrInvalidState)
	}
	return d.res, nil
}

func edge(ax, ay, bx, by, px, py float64) float64 {
	return (bx-ax)*(py-ay) - (by-ay)*(px-ax)
}

func (s *execState) rasterize(v []vertex, tex *resource, smp gpu.StaticSampler) {
	t := s.target
	w, h := int(t.desc.Width), int(t.desc.Height)
	minX, minY, maxX, maxY := 0, 0, w, h
	if s.scissor != nil {
		minX = max(minX, int(s.scissor.Left))
		minY = max(minY, int(s.scissor.Top))
		maxX = min(maxX, int(s.scissor.Right))
		maxY = min(maxY, int(s.scissor.Bottom))
	}
	minX = max(minX, int(math.Floor(min(v[0].x, v[1].x, v[2].x))))
	minY = max(minY, int(math.Floor(min(v[0].y, v[1].y, v[2].y))))
	maxX = min(maxX, int(math.Ceil(max(v[0].x, v[1].x, v[2].x))))
	maxY = min(maxY, int(math.Ceil(max(v[0].y, v[1].y, v[2].y))))

	area := edge(v[0].x, v[0].y, v[1].x, v[1].y, v[2].x, v[2].y)
	if area == 0 {
		return
	}

	pool := s.dev.pool
	if pool == nil || maxY-minY <= bandRows {
		s.fillRows(v, area, tex, smp, minX, maxX, minY, maxY)
		return
	}
	bands := make([]func(), 0, (maxY-minY+bandRows-1)/bandRows)
	for y0 := minY; y0 < maxY; y0 += bandRows {
		y1 := min(y0+bandRows, maxY)
		bands = append(bands, func() {
			s.fillRows(v, area, tex, smp, minX, maxX, y0, y1)
		})
	}
	pool.ExecuteAll(bands)
}

// bandRows is the height of the row bands a draw is split into when the
// device has a worker pool. Bands write disjoint rows of the target.
const bandRows = 16

// fillRows shades the covered pixels of rows [y0, y1).
func (s *execState) fillRows(v []vertex, area float64, tex *resource, smp gpu.StaticSampler, minX, maxX, y0, y1 int) {
	t := s.target
	for y := y0; y < y1; y++ {
		py := float64(y) + 0.5
		for x := minX; x < maxX; x++ {
			px := float64(x) + 0.5
			w0 := edge(v[1].x, v[1].y, v[2].x, v[2].y, px, py) / area
			w1 := edge(v[2].x, v[2].y, v[0].x, v[0].y, px, py) / area
			w2 := edge(v[0].x, v[0].y, v[1].x, v[1].y, px, py) / area
			if w0 < 0 || w1 < 0 || w2 < 0 {
				continue
			}
			var c [4]float64
			for k := range c {
				c[k] = w0*v[0].attr[k] + w1*v[1].attr[k] + w2*v[2].attr[k]
			}
			if tex != nil {
				c = sample(tex, smp, c[0], c[1])
			}
			px4 := color.Encode(t.desc.Format, c)
			copy(t.data[t.texel(uint32(x), uint32(y)):], px4[:])
		}
	}
}

// sample point-samples tex at (u, v).
func sample(tex *resource, smp gpu.StaticSampler, u, v float64) [4]float64 {
	u, v = address(smp.Address, u), address(smp.Address, v)
	w, h := int(tex.desc.Width), int(tex.desc.Height)
	x := min(int(u*float64(w)), w-1)
	y := min(int(v*float64(h)), h-1)
	return color.Decode(tex.desc.Format, tex.data[tex.texel(uint32(x), uint32(y)):])
}

func address(mode gputypes.AddressMode, c float64) float64 {
	switch mode {
	case gputypes.AddressModeRepeat:
		return c - math.Floor(c)
	default:
		return math.Min(math.Max(c, 0), 1)
	}
}
