package color

import "math"

// sRGBToLinearLUT maps every sRGB byte to its linear value.
var sRGBToLinearLUT [256]float32

// linearToSRGBLUT maps linear values quantized to 12 bits to sRGB bytes.
var linearToSRGBLUT [4096]uint8

func init() {
	for i := range sRGBToLinearLUT {
		sRGBToLinearLUT[i] = float32(decodeSRGB(float64(i) / 255))
	}
	for i := range linearToSRGBLUT {
		s := encodeSRGB(float64(i) / 4095)
		linearToSRGBLUT[i] = uint8(min(max(int(s*255+0.5), 0), 255)) //nolint:gosec // clamped to [0,255]
	}
}

func decodeSRGB(s float64) float64 {
	if s <= 0.04045 {
		return s / 12.92
	}
	return math.Pow((s+0.055)/1.055, 2.4)
}

func encodeSRGB(l float64) float64 {
	if l <= 0.0031308 {
		return l * 12.92
	}
	return 1.055*math.Pow(l, 1.0/2.4) - 0.055
}

// SRGBToLinear converts an sRGB byte to a linear value in [0, 1].
func SRGBToLinear(s uint8) float32 {
	return sRGBToLinearLUT[s]
}

// LinearToSRGB converts a linear value to an sRGB byte. The input is
// clamped to [0, 1].
func LinearToSRGB(l float32) uint8 {
	l = min(max(l, 0), 1)
	return linearToSRGBLUT[int(l*4095+0.5)]
}
