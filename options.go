package framepipe

import (
	"github.com/gogpu/framepipe/gpu"
	"github.com/gogpu/framepipe/internal/frame"
	"github.com/gogpu/gputypes"
)

// Policy selects how the CPU is paced against the GPU.
type Policy = frame.Policy

// Pacing policies.
const (
	PolicyOverlapped = frame.PolicyOverlapped
	PolicyBlocking   = frame.PolicyBlocking
)

// Default configuration values.
const (
	DefaultFrameCount = 2
	DefaultWidth      = 1280
	DefaultHeight     = 720
)

// DefaultClearColor is the color back buffers are cleared to.
var DefaultClearColor = gputypes.Color{R: 0.16, G: 0.16, B: 0.16, A: 1}

// Option configures a Pipeline during creation.
//
// Example:
//
//	p := framepipe.New(win,
//	    framepipe.WithFrameCount(3),
//	    framepipe.WithTexture(true),
//	)
type Option func(*options)

// options holds the Pipeline configuration.
type options struct {
	frameCount   uint32
	policy       Policy
	software     bool
	debugShaders bool
	texture      bool
	bundle       bool
	clearColor   gputypes.Color
	minLevel     gpu.FeatureLevel

	// adapter bypasses adapter selection.
	adapter gpu.Adapter
}

// defaultOptions returns the default pipeline options.
func defaultOptions() options {
	return options{
		frameCount: DefaultFrameCount,
		policy:     PolicyOverlapped,
		clearColor: DefaultClearColor,
		minLevel:   gpu.FeatureLevel11_0,
	}
}

// WithFrameCount sets the number of back buffers and frame slots.
// Values below 2 are raised to 2.
func WithFrameCount(n uint32) Option {
	return func(o *options) {
		o.frameCount = max(n, 2)
	}
}

// WithPolicy sets the pacing policy.
func WithPolicy(p Policy) Option {
	return func(o *options) {
		o.policy = p
	}
}

// WithSoftwareAdapter requests the software adapter instead of hardware.
func WithSoftwareAdapter(software bool) Option {
	return func(o *options) {
		o.software = software
	}
}

// WithDebugShaders embeds debug names and line information in compiled
// shaders.
func WithDebugShaders(debug bool) Option {
	return func(o *options) {
		o.debugShaders = debug
	}
}

// WithTexture draws the triangle sampling a checkerboard texture instead of
// interpolating vertex colors.
func WithTexture(texture bool) Option {
	return func(o *options) {
		o.texture = texture
	}
}

// WithBundle records the draw once into a bundle and replays it every frame.
func WithBundle(bundle bool) Option {
	return func(o *options) {
		o.bundle = bundle
	}
}

// WithClearColor sets the color back buffers are cleared to.
func WithClearColor(c gputypes.Color) Option {
	return func(o *options) {
		o.clearColor = c
	}
}

// WithMinFeatureLevel sets the lowest acceptable adapter feature level.
func WithMinFeatureLevel(l gpu.FeatureLevel) Option {
	return func(o *options) {
		o.minLevel = l
	}
}

// WithAdapter uses a as the adapter and skips adapter selection.
func WithAdapter(a gpu.Adapter) Option {
	return func(o *options) {
		o.adapter = a
	}
}
