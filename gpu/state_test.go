package gpu

import (
	"testing"

	"github.com/gogpu/gputypes"
)

func TestResourceStateString(t *testing.T) {
	tests := []struct {
		state ResourceState
		want  string
	}{
		{StateCommon, "Common"},
		{StatePresent, "Common"},
		{StateRenderTarget, "RenderTarget"},
		{StateCopyDest, "CopyDest"},
		{StateGenericRead, "GenericRead"},
		{StatePixelShaderResource | StateCopySource, "PixelShaderResource|CopySource"},
		{ResourceState(1 << 20), "Unknown"},
	}

	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("ResourceState(%d).String() = %q, want %q", uint32(tt.state), got, tt.want)
		}
	}
}

func TestResourceStateValid(t *testing.T) {
	tests := []struct {
		name  string
		state ResourceState
		want  bool
	}{
		{"common", StateCommon, true},
		{"render target", StateRenderTarget, true},
		{"generic read", StateGenericRead, true},
		{"render target with read", StateRenderTarget | StateCopySource, false},
		{"copy dest with read", StateCopyDest | StatePixelShaderResource, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.state.Valid(); got != tt.want {
				t.Errorf("Valid() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestResourceStateWritable(t *testing.T) {
	if !StateRenderTarget.Writable() {
		t.Error("StateRenderTarget should be writable")
	}
	if !StateCopyDest.Writable() {
		t.Error("StateCopyDest should be writable")
	}
	if StateGenericRead.Writable() {
		t.Error("StateGenericRead should not be writable")
	}
}

func TestResourceStateTextureUsage(t *testing.T) {
	tests := []struct {
		state ResourceState
		want  gputypes.TextureUsage
	}{
		{StatePresent, gputypes.TextureUsageNone},
		{StateRenderTarget, gputypes.TextureUsageRenderAttachment},
		{StateCopyDest, gputypes.TextureUsageCopyDst},
		{StateCopySource, gputypes.TextureUsageCopySrc},
		{StatePixelShaderResource, gputypes.TextureUsageTextureBinding},
	}

	for _, tt := range tests {
		if got := tt.state.TextureUsage(); got != tt.want {
			t.Errorf("%v.TextureUsage() = %v, want %v", tt.state, got, tt.want)
		}
	}
}

func TestResourceStateBufferUsage(t *testing.T) {
	u := StateGenericRead.BufferUsage()
	if u&gputypes.BufferUsageVertex == 0 {
		t.Error("GenericRead should include vertex usage")
	}
	if u&gputypes.BufferUsageCopySrc == 0 {
		t.Error("GenericRead should include copy source usage")
	}
	if u&gputypes.BufferUsageCopyDst != 0 {
		t.Error("GenericRead should not include copy destination usage")
	}
}
