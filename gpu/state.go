package gpu

import (
	"strings"

	"github.com/gogpu/gputypes"
)

// ResourceState is the usage category a resource is currently in.
// Crossing categories requires a Barrier recorded into a command list.
type ResourceState uint32

// Resource states. StateCommon and StatePresent share the same value:
// a presentable back buffer is in the common state.
const (
	// StateCommon is the state resources are created in unless told otherwise.
	StateCommon ResourceState = 0

	// StatePresent is the state a back buffer must be in when presented.
	StatePresent ResourceState = 0

	// StateVertexAndConstantBuffer is read by the input assembler or as constants.
	StateVertexAndConstantBuffer ResourceState = 1 << 0

	// StateRenderTarget is written by the output merger.
	StateRenderTarget ResourceState = 1 << 2

	// StatePixelShaderResource is sampled from pixel shaders.
	StatePixelShaderResource ResourceState = 1 << 7

	// StateCopyDest is written by copy commands.
	StateCopyDest ResourceState = 1 << 10

	// StateCopySource is read by copy commands.
	StateCopySource ResourceState = 1 << 11

	// StateGenericRead is the required state of upload heap resources.
	StateGenericRead = StateVertexAndConstantBuffer | StatePixelShaderResource | StateCopySource
)

var stateNames = []struct {
	bit  ResourceState
	name string
}{
	{StateVertexAndConstantBuffer, "VertexAndConstantBuffer"},
	{StateRenderTarget, "RenderTarget"},
	{StatePixelShaderResource, "PixelShaderResource"},
	{StateCopyDest, "CopyDest"},
	{StateCopySource, "CopySource"},
}

// String returns the state flags joined by '|'.
func (s ResourceState) String() string {
	if s == StateCommon {
		return "Common"
	}
	if s == StateGenericRead {
		return "GenericRead"
	}
	var parts []string
	for _, n := range stateNames {
		if s&n.bit != 0 {
			parts = append(parts, n.name)
		}
	}
	if len(parts) == 0 {
		return "Unknown"
	}
	return strings.Join(parts, "|")
}

// Writable reports whether the state permits GPU writes.
// Write states are exclusive and may not be combined with any other bit.
func (s ResourceState) Writable() bool {
	return s == StateRenderTarget || s == StateCopyDest
}

// Valid reports whether s is a legal combination of flags.
func (s ResourceState) Valid() bool {
	if s&StateRenderTarget != 0 && s != StateRenderTarget {
		return false
	}
	if s&StateCopyDest != 0 && s != StateCopyDest {
		return false
	}
	return true
}

// TextureUsage maps the state onto the WebGPU usage the HAL tracks for textures.
func (s ResourceState) TextureUsage() gputypes.TextureUsage {
	switch {
	case s == StateCommon:
		return gputypes.TextureUsageNone
	case s&StateRenderTarget != 0:
		return gputypes.TextureUsageRenderAttachment
	case s&StateCopyDest != 0:
		return gputypes.TextureUsageCopyDst
	case s&StatePixelShaderResource != 0:
		return gputypes.TextureUsageTextureBinding
	case s&StateCopySource != 0:
		return gputypes.TextureUsageCopySrc
	default:
		return gputypes.TextureUsageNone
	}
}

// BufferUsage maps the state onto the WebGPU usage the HAL tracks for buffers.
func (s ResourceState) BufferUsage() gputypes.BufferUsage {
	var u gputypes.BufferUsage
	if s&StateVertexAndConstantBuffer != 0 {
		u |= gputypes.BufferUsageVertex | gputypes.BufferUsageUniform
	}
	if s&StateCopyDest != 0 {
		u |= gputypes.BufferUsageCopyDst
	}
	if s&StateCopySource != 0 {
		u |= gputypes.BufferUsageCopySrc
	}
	return u
}
