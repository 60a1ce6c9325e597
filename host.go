package framepipe

import (
	"context"
	"errors"
)

// Sample is a program driven by Run, mirroring the host callbacks of a
// windowed graphics sample.
type Sample interface {
	// OnInit creates GPU objects. Called once before the first frame.
	OnInit() error

	// OnUpdate advances per-frame state.
	OnUpdate()

	// OnRender draws and presents one frame.
	OnRender() error

	// OnDestroy releases everything. Called exactly once, also after a
	// failed OnInit or OnRender.
	OnDestroy() error
}

// RunOptions control the host loop.
type RunOptions struct {
	// Frames stops the loop after this many rendered frames. Zero runs
	// until ctx is done.
	Frames uint64

	// OnFrame, if set, is called after every rendered frame with the
	// number of frames rendered so far.
	OnFrame func(n uint64)
}

// Run initializes s, then calls OnUpdate and OnRender until ctx is done,
// opts.Frames frames were rendered or a callback fails, and finally calls
// OnDestroy. Cancellation is checked between frames only. The returned
// error joins the loop failure with the OnDestroy failure; a canceled
// context is not an error.
func Run(ctx context.Context, s Sample, opts RunOptions) error {
	err := loop(ctx, s, opts)
	return errors.Join(err, s.OnDestroy())
}

func loop(ctx context.Context, s Sample, opts RunOptions) error {
	if err := s.OnInit(); err != nil {
		return err
	}
	for n := uint64(0); opts.Frames == 0 || n < opts.Frames; {
		if ctx.Err() != nil {
			return nil
		}
		s.OnUpdate()
		if err := s.OnRender(); err != nil {
			return err
		}
		n++
		if opts.OnFrame != nil {
			opts.OnFrame(n)
		}
	}
	return nil
}
