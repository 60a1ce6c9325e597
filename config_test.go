package framepipe

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/gogpu/framepipe/gpu"
	"github.com/gogpu/gputypes"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "framepipe.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
width = 640
height = 480
frame_count = 3
policy = "blocking"
software = true
texture = true
clear_color = [0.0, 0.2, 0.4, 1.0]
frames = 120
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	want := DefaultConfig()
	want.Width, want.Height = 640, 480
	want.FrameCount = 3
	want.Policy = "blocking"
	want.Software = true
	want.Texture = true
	want.ClearColor = [4]float64{0, 0.2, 0.4, 1}
	want.Frames = 120
	if cfg != want {
		t.Errorf("LoadConfig() = %+v\nwant %+v", cfg, want)
	}

	opts, err := cfg.Options()
	if err != nil {
		t.Fatalf("Options: %v", err)
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.frameCount != 3 || o.policy != PolicyBlocking || !o.software || !o.texture || o.bundle {
		t.Errorf("options = %+v", o)
	}
	if o.clearColor != (gputypes.Color{R: 0, G: 0.2, B: 0.4, A: 1}) {
		t.Errorf("clear color = %+v", o.clearColor)
	}
	if o.minLevel != gpu.FeatureLevel11_0 {
		t.Errorf("min level = %v", o.minLevel)
	}
}

func TestLoadConfigErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"unknown key", "colour = 1\n"},
		{"bad policy", `policy = "eager"` + "\n"},
		{"one frame", "frame_count = 1\n"},
		{"bad level", `min_feature_level = "13_0"` + "\n"},
		{"zero width", "width = 0\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := LoadConfig(writeConfig(t, tt.body)); !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("LoadConfig error = %v, want ErrInvalidConfig", err)
			}
		})
	}
	if _, err := LoadConfig(writeConfig(t, "width = ")); err == nil {
		t.Error("LoadConfig accepted malformed TOML")
	}
}

func TestDefaultConfigValid(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("DefaultConfig().Validate() = %v", err)
	}
}

func TestParseFeatureLevel(t *testing.T) {
	for _, l := range []gpu.FeatureLevel{gpu.FeatureLevel9_3, gpu.FeatureLevel10_0, gpu.FeatureLevel11_0, gpu.FeatureLevel12_0} {
		got, err := ParseFeatureLevel(l.String())
		if err != nil || got != l {
			t.Errorf("ParseFeatureLevel(%q) = %v, %v", l.String(), got, err)
		}
	}
}
