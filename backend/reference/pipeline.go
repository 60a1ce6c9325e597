package reference

import (
	"fmt"

	"github.com/gogpu/framepipe/gpu"
	"github.com/gogpu/gputypes"
)

// pipelineState is the fixed-function equivalent of a compiled pipeline.
// The reference device does not run shader code: it implements the
// pass-through vertex stage and selects the pixel stage from the input
// layout, interpolated color for COLOR inputs and a sampled texture for
// TEXCOORD inputs.
type pipelineState struct {
	desc   gpu.PipelineStateDescriptor
	root   *rootSignature
	stride uint32
	pos    int
	color  int
	uv     int
}

func newPipelineState(desc *gpu.PipelineStateDescriptor) (*pipelineState, error) {
	rs, ok := desc.RootSignature.(*rootSignature)
	if !ok {
		return nil, fmt.Errorf("reference: pipeline %q without root signature: %w", desc.Label, gpu.ErrInvalidState)
	}
	if len(desc.VS.Code) == 0 || len(desc.PS.Code) == 0 {
		return nil, fmt.Errorf("reference: pipeline %q is missing a shader stage: %w", desc.Label, gpu.ErrShaderCompile)
	}
	if desc.Topology != gpu.TopologyTriangleList {
		return nil, fmt.Errorf("reference: pipeline %q topology %d: %w", desc.Label, desc.Topology, gpu.ErrInvalidState)
	}
	if gpu.BytesPerPixel(desc.RTVFormat) != 4 {
		return nil, fmt.Errorf("reference: pipeline %q render target format %v: %w", desc.Label, desc.RTVFormat, gpu.ErrInvalidState)
	}
	if len(desc.InputLayout) > 0 && !rs.desc.AllowInputLayout {
		return nil, fmt.Errorf("reference: pipeline %q uses an input layout the root signature forbids: %w", desc.Label, gpu.ErrRootSignature)
	}

	p := &pipelineState{
		desc:   *desc,
		root:   rs,
		stride: desc.VertexStride(),
		pos:    -1,
		color:  -1,
		uv:     -1,
	}
	p.desc.InputLayout = append([]gpu.InputElement(nil), desc.InputLayout...)
	for _, e := range desc.InputLayout {
		switch {
		case e.Semantic == gpu.SemanticPosition && e.Format == gputypes.VertexFormatFloat32x3:
			p.pos = int(e.Offset)
		case e.Semantic == gpu.SemanticColor && e.Format == gputypes.VertexFormatFloat32x4:
			p.color = int(e.Offset)
		case e.Semantic == gpu.SemanticTexCoord && e.Format == gputypes.VertexFormatFloat32x2:
			p.uv = int(e.Offset)
		default:
			return nil, fmt.Errorf("reference: pipeline %q: unsupported input %d/%v: %w", desc.Label, e.Semantic, e.Format, gpu.ErrInvalidState)
		}
	}
	if p.pos < 0 {
		return nil, fmt.Errorf("reference: pipeline %q has no float3 position input: %w", desc.Label, gpu.ErrInvalidState)
	}
	if p.uv >= 0 {
		if _, ok := rs.srvTable(); !ok {
			return nil, fmt.Errorf("reference: pipeline %q samples a texture the root signature does not bind: %w", desc.Label, gpu.ErrRootSignature)
		}
		if _, ok := rs.sampler(); !ok {
			return nil, fmt.Errorf("reference: pipeline %q samples without a static sampler: %w", desc.Label, gpu.ErrRootSignature)
		}
	}
	return p, nil
}

func (*pipelineState) Destroy() {}
