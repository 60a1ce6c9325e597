// Package color converts between shader colors and the bytes of 8-bit
// texel formats.
//
// Shader colors are linear floats in [0, 1]. sRGB formats apply the sRGB
// transfer function to the RGB channels on write and its inverse on read.
// Alpha is always stored linearly.
package color

import "github.com/gogpu/gputypes"

// IsSRGB reports whether f stores gamma-encoded RGB.
func IsSRGB(f gputypes.TextureFormat) bool {
	return f == gputypes.TextureFormatRGBA8UnormSrgb || f == gputypes.TextureFormatBGRA8UnormSrgb
}

// IsBGRA reports whether f stores the blue channel first.
func IsBGRA(f gputypes.TextureFormat) bool {
	return f == gputypes.TextureFormatBGRA8Unorm || f == gputypes.TextureFormatBGRA8UnormSrgb
}

// Encode returns the texel bytes of the linear color c in format f.
// Components are clamped to [0, 1].
func Encode(f gputypes.TextureFormat, c [4]float64) [4]byte {
	var r, g, b byte
	if IsSRGB(f) {
		r, g, b = LinearToSRGB(float32(c[0])), LinearToSRGB(float32(c[1])), LinearToSRGB(float32(c[2]))
	} else {
		r, g, b = Unorm(c[0]), Unorm(c[1]), Unorm(c[2])
	}
	a := Unorm(c[3])
	if IsBGRA(f) {
		return [4]byte{b, g, r, a}
	}
	return [4]byte{r, g, b, a}
}

// Decode returns the linear color stored in the first four bytes of p.
func Decode(f gputypes.TextureFormat, p []byte) [4]float64 {
	r, g, b, a := p[0], p[1], p[2], p[3]
	if IsBGRA(f) {
		r, b = b, r
	}
	if IsSRGB(f) {
		return [4]float64{
			float64(SRGBToLinear(r)),
			float64(SRGBToLinear(g)),
			float64(SRGBToLinear(b)),
			float64(a) / 255,
		}
	}
	return [4]float64{float64(r) / 255, float64(g) / 255, float64(b) / 255, float64(a) / 255}
}

// Unorm maps c in [0, 1] to a byte, rounding to nearest.
func Unorm(c float64) byte {
	if c <= 0 {
		return 0
	}
	if c >= 1 {
		return 255
	}
	return byte(c*255 + 0.5)
}
