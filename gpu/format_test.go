package gpu

import (
	"testing"

	"github.com/gogpu/gputypes"
)

func TestAlignPitch(t *testing.T) {
	tests := []struct {
		in, want uint32
	}{
		{0, 0},
		{1, 256},
		{256, 256},
		{257, 512},
		{1024, 1024},
	}

	for _, tt := range tests {
		if got := AlignPitch(tt.in); got != tt.want {
			t.Errorf("AlignPitch(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestPitches(t *testing.T) {
	row := RowPitch(256, 4)
	if row != 1024 {
		t.Errorf("RowPitch(256, 4) = %d, want 1024", row)
	}
	if got := SlicePitch(row, 256); got != 262144 {
		t.Errorf("SlicePitch(1024, 256) = %d, want 262144", got)
	}
}

func TestFootprintPadsRows(t *testing.T) {
	desc := Texture2DDesc("odd", 3, 2, gputypes.TextureFormatRGBA8Unorm, StateCopyDest)
	fp, size := Footprint(desc)

	if fp.RowPitch != 256 {
		t.Errorf("RowPitch = %d, want 256", fp.RowPitch)
	}
	if fp.Width != 3 || fp.Height != 2 {
		t.Errorf("footprint = %dx%d, want 3x2", fp.Width, fp.Height)
	}
	if size != 512 {
		t.Errorf("size = %d, want 512", size)
	}
}

func TestBytesPerPixel(t *testing.T) {
	if got := BytesPerPixel(gputypes.TextureFormatBGRA8Unorm); got != 4 {
		t.Errorf("BytesPerPixel(BGRA8) = %d, want 4", got)
	}
	if got := BytesPerPixel(gputypes.TextureFormatUndefined); got != 0 {
		t.Errorf("BytesPerPixel(Undefined) = %d, want 0", got)
	}
}

func TestFeatureLevelString(t *testing.T) {
	tests := []struct {
		level FeatureLevel
		want  string
	}{
		{FeatureLevel9_3, "9_3"},
		{FeatureLevel11_0, "11_0"},
		{FeatureLevel12_0, "12_0"},
	}

	for _, tt := range tests {
		if got := tt.level.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}

func TestHandleOffset(t *testing.T) {
	h := CPUHandle{Ptr: 0x1000}
	if got := h.Offset(3, 32); got.Ptr != 0x1060 {
		t.Errorf("Offset(3, 32) = %#x, want 0x1060", got.Ptr)
	}
	g := GPUHandle{Ptr: 8}
	if got := g.Offset(0, 64); got != g {
		t.Errorf("Offset(0, 64) = %v, want %v", got, g)
	}
}

func TestVertexStride(t *testing.T) {
	desc := &PipelineStateDescriptor{
		InputLayout: []InputElement{
			{Semantic: SemanticPosition, Format: gputypes.VertexFormatFloat32x3, Offset: 0},
			{Semantic: SemanticColor, Format: gputypes.VertexFormatFloat32x4, Offset: 12},
		},
	}
	if got := desc.VertexStride(); got != 28 {
		t.Errorf("VertexStride() = %d, want 28", got)
	}
}
