package frame

import (
	"fmt"

	"github.com/gogpu/framepipe/gpu"
)

// Draw is the static geometry a frame renders.
type Draw struct {
	Root     gpu.RootSignature
	Pipeline gpu.PipelineState

	// Heaps are the shader-visible descriptor heaps, bound before any
	// table referencing them.
	Heaps []gpu.DescriptorHeap

	// Tables holds the descriptor table base of root parameter i.
	Tables []gpu.GPUHandle

	Vertices    gpu.VertexBufferView
	VertexCount uint32
}

func (d *Draw) validate() error {
	switch {
	case d.Root == nil || d.Pipeline == nil:
		return fmt.Errorf("frame: draw without root signature or pipeline: %w", gpu.ErrInvalidState)
	case d.VertexCount == 0:
		return fmt.Errorf("frame: draw of zero vertices: %w", gpu.ErrInvalidState)
	case len(d.Tables) > 0 && len(d.Heaps) == 0:
		return fmt.Errorf("frame: descriptor tables without heaps: %w", gpu.ErrInvalidState)
	}
	return nil
}

// bind sets the root signature, heaps and descriptor tables.
func (d *Draw) bind(l gpu.CommandList) {
	l.SetRootSignature(d.Root)
	if len(d.Heaps) > 0 {
		l.SetDescriptorHeaps(d.Heaps...)
	}
	for i, t := range d.Tables {
		l.SetRootDescriptorTable(uint32(i), t)
	}
}

// issue records the input assembly state and the draw.
func (d *Draw) issue(l gpu.CommandList) {
	l.SetPrimitiveTopology(gpu.TopologyTriangleList)
	l.SetVertexBuffers(0, d.Vertices)
	l.Draw(d.VertexCount, 1, 0, 0)
}
