package upload

import (
	"image/color"

	"github.com/gogpu/framepipe/gpu"
)

// PixelGenerator returns the color of texel (x, y). Generators must be
// deterministic for a given size.
type PixelGenerator func(x, y uint32) color.RGBA

// Checkerboard returns a tight width×height image of pixelSize-byte texels
// split into an 8×8 grid of cells. A cell is rowPitch>>3 bytes wide and
// width>>3 rows tall. Cells whose column and row parities match are black,
// the others white. The fourth byte of each texel, if any, is 0xff.
func Checkerboard(width, height, pixelSize uint32) []byte {
	rowPitch := gpu.RowPitch(width, pixelSize)
	cellPitch := max(rowPitch>>3, 1)
	cellHeight := max(width>>3, 1)
	size := gpu.SlicePitch(rowPitch, height)

	data := make([]byte, size)
	for n := uint64(0); n < size; n += uint64(pixelSize) {
		x := uint32(n % uint64(rowPitch))
		y := uint32(n / uint64(rowPitch))
		i := x / cellPitch
		j := y / cellHeight

		var c byte = 0xff
		if i%2 == j%2 {
			c = 0x00
		}
		for k := uint32(0); k < pixelSize; k++ {
			if k == 3 {
				data[n+uint64(k)] = 0xff
			} else {
				data[n+uint64(k)] = c
			}
		}
	}
	return data
}

// Generate returns a tight RGBA8 image filled by gen.
func Generate(width, height uint32, gen PixelGenerator) []byte {
	data := make([]byte, 0, gpu.SlicePitch(gpu.RowPitch(width, 4), height))
	for y := uint32(0); y < height; y++ {
		for x := uint32(0); x < width; x++ {
			c := gen(x, y)
			data = append(data, c.R, c.G, c.B, c.A)
		}
	}
	return data
}

// CheckerboardGenerator returns a generator equivalent to Checkerboard for
// 4-byte texels of a texture width texels wide.
func CheckerboardGenerator(width uint32) PixelGenerator {
	cell := max(width>>3, 1)
	return func(x, y uint32) color.RGBA {
		if (x/cell)%2 == (y/cell)%2 {
			return color.RGBA{A: 0xff}
		}
		return color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
	}
}
