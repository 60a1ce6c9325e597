//go:build !nogpu

package native

import (
	"encoding/binary"
	"fmt"

	"github.com/gogpu/framepipe/gpu"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// rootSignature maps descriptor tables onto bind groups: root parameter i
// is bind group i. Textures of a table occupy bindings 0..n-1 and static
// sampler s<r> follows at binding n+r of the first texture table.
type rootSignature struct {
	dev      *Device
	desc     gpu.RootSignatureDescriptor
	layouts  []hal.BindGroupLayout
	samplers map[uint32]hal.Sampler
	layout   hal.PipelineLayout
	srvParam int
}

// CreateRootSignature creates bind group and pipeline layouts.
func (d *Device) CreateRootSignature(desc *gpu.RootSignatureDescriptor) (gpu.RootSignature, error) {
	if desc == nil {
		return nil, fmt.Errorf("native: nil root signature: %w", gpu.ErrRootSignature)
	}
	rs := &rootSignature{dev: d, desc: *desc, samplers: map[uint32]hal.Sampler{}, srvParam: -1}

	for i, p := range desc.Parameters {
		var entries []gputypes.BindGroupLayoutEntry
		var n uint32
		for _, r := range p.Ranges {
			if r.Kind != gpu.HeapCBVSRVUAV || r.Count == 0 {
				rs.Destroy()
				return nil, fmt.Errorf("native: root parameter %d: only texture tables are supported: %w", i, gpu.ErrRootSignature)
			}
			for k := uint32(0); k < r.Count; k++ {
				entries = append(entries, gputypes.BindGroupLayoutEntry{
					Binding:    n,
					Visibility: p.Visibility,
					Texture: &gputypes.TextureBindingLayout{
						SampleType:    gputypes.TextureSampleTypeFloat,
						ViewDimension: gputypes.TextureViewDimension2D,
					},
				})
				n++
			}
		}
		if rs.srvParam < 0 {
			rs.srvParam = i
			for _, s := range desc.StaticSamplers {
				entries = append(entries, gputypes.BindGroupLayoutEntry{
					Binding:    n + s.Register,
					Visibility: gputypes.ShaderStageFragment,
					Sampler:    &gputypes.SamplerBindingLayout{Type: gputypes.SamplerBindingTypeFiltering},
				})
			}
		}
		layout, err := d.raw.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
			Label:   fmt.Sprintf("root parameter %d", i),
			Entries: entries,
		})
		if err != nil {
			rs.Destroy()
			return nil, fmt.Errorf("native: root parameter %d: %w: %w", i, gpu.ErrRootSignature, err)
		}
		rs.layouts = append(rs.layouts, layout)
	}

	for _, s := range desc.StaticSamplers {
		if _, dup := rs.samplers[s.Register]; dup {
			rs.Destroy()
			return nil, fmt.Errorf("native: static sampler register s%d bound twice: %w", s.Register, gpu.ErrRootSignature)
		}
		smp, err := d.raw.CreateSampler(&hal.SamplerDescriptor{
			Label:        fmt.Sprintf("static sampler s%d", s.Register),
			AddressModeU: s.Address,
			AddressModeV: s.Address,
			AddressModeW: s.Address,
			MagFilter:    s.Filter,
			MinFilter:    s.Filter,
			MipmapFilter: s.Filter,
			LodMaxClamp:  32,
		})
		if err != nil {
			rs.Destroy()
			return nil, fmt.Errorf("native: static sampler s%d: %w: %w", s.Register, gpu.ErrRootSignature, err)
		}
		rs.samplers[s.Register] = smp
	}

	layout, err := d.raw.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            "root signature",
		BindGroupLayouts: rs.layouts,
	})
	if err != nil {
		rs.Destroy()
		return nil, fmt.Errorf("native: pipeline layout: %w: %w", gpu.ErrRootSignature, err)
	}
	rs.layout = layout
	return rs, nil
}

// textureCount returns the number of textures bound by parameter i.
func (rs *rootSignature) textureCount(i int) uint32 {
	var n uint32
	for _, r := range rs.desc.Parameters[i].Ranges {
		n += r.Count
	}
	return n
}

func (rs *rootSignature) Destroy() {
	if rs.layout != nil {
		rs.dev.raw.DestroyPipelineLayout(rs.layout)
		rs.layout = nil
	}
	for _, s := range rs.samplers {
		rs.dev.raw.DestroySampler(s)
	}
	rs.samplers = nil
	for _, l := range rs.layouts {
		rs.dev.raw.DestroyBindGroupLayout(l)
	}
	rs.layouts = nil
}

type pipelineState struct {
	dev     *Device
	root    *rootSignature
	format  gputypes.TextureFormat
	modules []hal.ShaderModule
	raw     hal.RenderPipeline
}

// spirvWords reinterprets little-endian SPIR-V bytes as words.
func spirvWords(code []byte) []uint32 {
	words := make([]uint32, len(code)/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(code[i*4:])
	}
	return words
}

func (d *Device) shaderModule(label string, sb gpu.ShaderBytecode) (hal.ShaderModule, error) {
	if len(sb.Code) == 0 || len(sb.Code)%4 != 0 {
		return nil, fmt.Errorf("native: %s: malformed bytecode: %w", label, gpu.ErrShaderCompile)
	}
	m, err := d.raw.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  label,
		Source: hal.ShaderSource{WGSL: sb.Source, SPIRV: spirvWords(sb.Code)},
	})
	if err != nil {
		return nil, fmt.Errorf("native: %s: %w: %w", label, gpu.ErrShaderCompile, err)
	}
	return m, nil
}

// CreatePipelineState builds a HAL render pipeline.
func (d *Device) CreatePipelineState(desc *gpu.PipelineStateDescriptor) (gpu.PipelineState, error) {
	if desc == nil {
		return nil, fmt.Errorf("native: nil pipeline state: %w", gpu.ErrInvalidState)
	}
	rs, ok := desc.RootSignature.(*rootSignature)
	if !ok || rs.dev != d {
		return nil, fmt.Errorf("native: pipeline %q without root signature: %w", desc.Label, gpu.ErrInvalidState)
	}

	p := &pipelineState{dev: d, root: rs, format: desc.RTVFormat}
	vs, err := d.shaderModule(desc.Label+" vs", desc.VS)
	if err != nil {
		return nil, err
	}
	p.modules = append(p.modules, vs)
	ps := vs
	if desc.PS.Source != desc.VS.Source || string(desc.PS.Code) != string(desc.VS.Code) {
		if ps, err = d.shaderModule(desc.Label+" ps", desc.PS); err != nil {
			p.Destroy()
			return nil, err
		}
		p.modules = append(p.modules, ps)
	}

	attrs := make([]gputypes.VertexAttribute, len(desc.InputLayout))
	for i, e := range desc.InputLayout {
		attrs[i] = gputypes.VertexAttribute{
			Format:         e.Format,
			Offset:         uint64(e.Offset),
			ShaderLocation: uint32(i),
		}
	}
	var buffers []gputypes.VertexBufferLayout
	if len(attrs) > 0 {
		buffers = []gputypes.VertexBufferLayout{{
			ArrayStride: uint64(desc.VertexStride()),
			StepMode:    gputypes.VertexStepModeVertex,
			Attributes:  attrs,
		}}
	}

	raw, err := d.raw.CreateRenderPipeline(&hal.RenderPipelineDescriptor{
		Label:  desc.Label,
		Layout: rs.layout,
		Vertex: hal.VertexState{
			Module:     vs,
			EntryPoint: desc.VS.EntryPoint,
			Buffers:    buffers,
		},
		Primitive: gputypes.PrimitiveState{
			Topology:  gputypes.PrimitiveTopologyTriangleList,
			FrontFace: gputypes.FrontFaceCCW,
			CullMode:  gputypes.CullModeNone,
		},
		Multisample: gputypes.MultisampleState{Count: 1, Mask: ^uint64(0)},
		Fragment: &hal.FragmentState{
			Module:     ps,
			EntryPoint: desc.PS.EntryPoint,
			Targets: []gputypes.ColorTargetState{{
				Format:    desc.RTVFormat,
				WriteMask: gputypes.ColorWriteMaskAll,
			}},
		},
	})
	if err != nil {
		p.Destroy()
		return nil, fmt.Errorf("native: create pipeline %q: %w", desc.Label, err)
	}
	p.raw = raw
	return p, nil
}

func (p *pipelineState) Destroy() {
	if p.raw != nil {
		p.dev.raw.DestroyRenderPipeline(p.raw)
		p.raw = nil
	}
	for _, m := range p.modules {
		p.dev.raw.DestroyShaderModule(m)
	}
	p.modules = nil
}
