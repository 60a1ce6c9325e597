package framepipe

import (
	"encoding/binary"
	"math"

	"github.com/gogpu/framepipe/gpu"
	"github.com/gogpu/gputypes"
)

// Vertex strides.
const (
	colorVertexStride   = 28
	textureVertexStride = 20
)

var colorLayout = []gpu.InputElement{
	{Semantic: gpu.SemanticPosition, Format: gputypes.VertexFormatFloat32x3},
	{Semantic: gpu.SemanticColor, Format: gputypes.VertexFormatFloat32x4, Offset: 12},
}

var textureLayout = []gpu.InputElement{
	{Semantic: gpu.SemanticPosition, Format: gputypes.VertexFormatFloat32x3},
	{Semantic: gpu.SemanticTexCoord, Format: gputypes.VertexFormatFloat32x2, Offset: 12},
}

// colorTriangle returns the position+color triangle, scaled vertically by
// the aspect ratio so it keeps its shape on wide windows.
func colorTriangle(aspect float32) []byte {
	return appendFloats(nil,
		0, 0.25*aspect, 0, 1, 0, 0, 1,
		0.25, -0.25*aspect, 0, 0, 1, 0, 1,
		-0.25, -0.25*aspect, 0, 0, 0, 1, 1,
	)
}

// textureTriangle returns the position+texcoord triangle.
func textureTriangle(aspect float32) []byte {
	return appendFloats(nil,
		0, 0.25*aspect, 0, 0.5, 0,
		0.25, -0.25*aspect, 0, 1, 1,
		-0.25, -0.25*aspect, 0, 0, 1,
	)
}

func appendFloats(b []byte, fs ...float32) []byte {
	for _, f := range fs {
		b = binary.LittleEndian.AppendUint32(b, math.Float32bits(f))
	}
	return b
}
