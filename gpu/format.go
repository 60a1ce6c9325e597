package gpu

import "github.com/gogpu/gputypes"

// TexturePitchAlignment is the required alignment, in bytes, of texture rows
// inside buffers used for copies.
const TexturePitchAlignment = 256

// BytesPerPixel returns the texel size of the formats framepipe handles.
// It returns 0 for unsupported formats.
func BytesPerPixel(f gputypes.TextureFormat) uint32 {
	switch f {
	case gputypes.TextureFormatRGBA8Unorm,
		gputypes.TextureFormatRGBA8UnormSrgb,
		gputypes.TextureFormatBGRA8Unorm,
		gputypes.TextureFormatBGRA8UnormSrgb:
		return 4
	case gputypes.TextureFormatR8Unorm:
		return 1
	default:
		return 0
	}
}

// AlignPitch rounds n up to TexturePitchAlignment.
func AlignPitch(n uint32) uint32 {
	return (n + TexturePitchAlignment - 1) &^ (TexturePitchAlignment - 1)
}

// RowPitch returns the tight row size of a texture row in bytes.
func RowPitch(width, pixelSize uint32) uint32 {
	return width * pixelSize
}

// SlicePitch returns the tight size of a full 2D image in bytes.
func SlicePitch(rowPitch, height uint32) uint64 {
	return uint64(rowPitch) * uint64(height)
}

// Footprint returns the buffer placement of a texture copy with rows padded
// to TexturePitchAlignment, and the total buffer size it needs.
func Footprint(desc *ResourceDescriptor) (TextureFootprint, uint64) {
	w := uint32(desc.Width)
	pitch := AlignPitch(RowPitch(w, BytesPerPixel(desc.Format)))
	fp := TextureFootprint{
		Format:   desc.Format,
		Width:    w,
		Height:   desc.Height,
		RowPitch: pitch,
	}
	return fp, SlicePitch(pitch, desc.Height)
}
