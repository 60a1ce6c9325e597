package framepipe

import (
	"github.com/gogpu/framepipe/gpu"
	"github.com/gogpu/gpucontext"
)

// Window is the presentation target supplied by the host. It reports its
// size like any gpucontext window and exposes the native handles the swap
// chain is created on.
type Window interface {
	gpucontext.WindowProvider
	gpu.Window
}

// PixelSize returns the window client area in physical pixels.
func PixelSize(w gpucontext.WindowProvider) (width, height uint32) {
	lw, lh := w.Size()
	scale := w.ScaleFactor()
	return uint32(float64(lw) * scale), uint32(float64(lh) * scale)
}

// HeadlessWindow is a Window without a native surface. Back buffers are
// rendered offscreen and presentation only rotates the chain.
type HeadlessWindow struct {
	gpucontext.NullWindowProvider
}

// NewHeadlessWindow returns a headless window of width x height pixels.
func NewHeadlessWindow(width, height int) *HeadlessWindow {
	return &HeadlessWindow{gpucontext.NullWindowProvider{W: width, H: height}}
}

// NativeHandle returns 0.
func (*HeadlessWindow) NativeHandle() uintptr { return 0 }

// DisplayHandle returns 0.
func (*HeadlessWindow) DisplayHandle() uintptr { return 0 }

var _ Window = (*HeadlessWindow)(nil)
