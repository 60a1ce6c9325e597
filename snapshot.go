package framepipe

import (
	"fmt"
	"image"

	"github.com/gogpu/framepipe/gpu"
	"github.com/gogpu/framepipe/internal/upload"
	xdraw "golang.org/x/image/draw"
)

// Snapshot drains the GPU and copies the most recently presented back
// buffer into an image. When width and height are positive and differ from
// the back buffer size the image is scaled to width x height. It returns
// ErrNoFrame until the first frame has been presented.
func (p *Pipeline) Snapshot(width, height int) (*image.RGBA, error) {
	switch {
	case p.err != nil:
		return nil, p.err
	case !p.ready:
		return nil, ErrNotInitialized
	case !p.presented:
		return nil, ErrNoFrame
	}
	if err := p.Drain(); err != nil {
		return nil, p.fail(err)
	}

	n := p.chain.FrameCount()
	last := (p.chain.CurrentIndex() + n - 1) % n
	rt, err := p.chain.RenderTarget(last)
	if err != nil {
		return nil, err
	}
	dev, queue := p.dc.GPU()
	pixels, err := upload.New(dev, queue).ReadBack(rt, gpu.StatePresent)
	if err != nil {
		return nil, fmt.Errorf("framepipe: snapshot: %w", err)
	}

	w, h := p.chain.Size()
	img := &image.RGBA{
		Pix:    pixels,
		Stride: int(w) * 4,
		Rect:   image.Rect(0, 0, int(w), int(h)),
	}
	if width <= 0 || height <= 0 || (width == int(w) && height == int(h)) {
		return img, nil
	}
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, img.Bounds(), xdraw.Src, nil)
	return dst, nil
}
