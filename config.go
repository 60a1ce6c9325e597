package framepipe

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/gogpu/framepipe/gpu"
	"github.com/gogpu/gputypes"
)

// Config is the file form of the pipeline options, read from TOML:
//
//	width = 1280
//	height = 720
//	frame_count = 3
//	policy = "overlapped"
//	software = true
//	texture = true
//	clear_color = [0.16, 0.16, 0.16, 1.0]
type Config struct {
	Width           int        `toml:"width"`
	Height          int        `toml:"height"`
	FrameCount      uint32     `toml:"frame_count"`
	Policy          string     `toml:"policy"`
	Software        bool       `toml:"software"`
	DebugShaders    bool       `toml:"debug_shaders"`
	Texture         bool       `toml:"texture"`
	Bundle          bool       `toml:"bundle"`
	ClearColor      [4]float64 `toml:"clear_color"`
	MinFeatureLevel string     `toml:"min_feature_level"`
	Frames          uint64     `toml:"frames"`
}

// DefaultConfig returns the configuration matching the default options.
func DefaultConfig() Config {
	c := DefaultClearColor
	return Config{
		Width:           DefaultWidth,
		Height:          DefaultHeight,
		FrameCount:      DefaultFrameCount,
		Policy:          PolicyOverlapped.String(),
		ClearColor:      [4]float64{c.R, c.G, c.B, c.A},
		MinFeatureLevel: gpu.FeatureLevel11_0.String(),
	}
}

// LoadConfig reads path over DefaultConfig. Unknown keys are errors.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("framepipe: config %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return Config{}, fmt.Errorf("framepipe: config %s: unknown keys %s: %w",
			path, strings.Join(keys, ", "), ErrInvalidConfig)
	}
	return cfg, cfg.Validate()
}

// Validate checks value ranges.
func (c Config) Validate() error {
	if c.Width <= 0 || c.Height <= 0 {
		return fmt.Errorf("framepipe: size %dx%d: %w", c.Width, c.Height, ErrInvalidConfig)
	}
	if c.FrameCount < 2 || c.FrameCount > 16 {
		return fmt.Errorf("framepipe: frame_count %d outside [2, 16]: %w", c.FrameCount, ErrInvalidConfig)
	}
	if _, err := ParsePolicy(c.Policy); err != nil {
		return err
	}
	if _, err := ParseFeatureLevel(c.MinFeatureLevel); err != nil {
		return err
	}
	return nil
}

// Options converts the configuration to pipeline options.
func (c Config) Options() ([]Option, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	policy, _ := ParsePolicy(c.Policy)
	level, _ := ParseFeatureLevel(c.MinFeatureLevel)
	return []Option{
		WithFrameCount(c.FrameCount),
		WithPolicy(policy),
		WithSoftwareAdapter(c.Software),
		WithDebugShaders(c.DebugShaders),
		WithTexture(c.Texture),
		WithBundle(c.Bundle),
		WithClearColor(gputypes.Color{R: c.ClearColor[0], G: c.ClearColor[1], B: c.ClearColor[2], A: c.ClearColor[3]}),
		WithMinFeatureLevel(level),
	}, nil
}

// ParsePolicy parses "overlapped" or "blocking".
func ParsePolicy(s string) (Policy, error) {
	for _, p := range []Policy{PolicyOverlapped, PolicyBlocking} {
		if strings.EqualFold(s, p.String()) {
			return p, nil
		}
	}
	return 0, fmt.Errorf("framepipe: policy %q: %w", s, ErrInvalidConfig)
}

// ParseFeatureLevel parses a level in major_minor form such as "11_0".
func ParseFeatureLevel(s string) (gpu.FeatureLevel, error) {
	for _, l := range []gpu.FeatureLevel{
		gpu.FeatureLevel9_3,
		gpu.FeatureLevel10_0,
		gpu.FeatureLevel11_0,
		gpu.FeatureLevel12_0,
	} {
		if s == l.String() {
			return l, nil
		}
	}
	return 0, fmt.Errorf("framepipe: feature level %q: %w", s, ErrInvalidConfig)
}
