package main

import (
	"context"
	"image"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gogpu/framepipe"
	"github.com/gogpu/framepipe/backend"
	"github.com/gogpu/framepipe/internal/frame"
	"golang.org/x/image/bmp"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

func TestReport(t *testing.T) {
	st := frame.Stats{Frames: 12000, Waits: 3, WaitTime: 1500 * time.Microsecond}
	got := report(message.NewPrinter(language.English), "ref", st, 4*time.Second)
	for _, want := range []string{"ref:", "12,000 frames", "3,000.0 fps", "3 waits"} {
		if !strings.Contains(got, want) {
			t.Errorf("report %q lacks %q", got, want)
		}
	}
}

func TestAnnotate(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 64, 20))
	annotate(img, "ok")
	lit := 0
	for i := 0; i < len(img.Pix); i += 4 {
		if img.Pix[i] == 255 {
			lit++
		}
	}
	if lit == 0 {
		t.Error("annotate drew nothing")
	}
}

func TestRunWritesSnapshot(t *testing.T) {
	// Render on the reference device only.
	backend.Unregister(backend.BackendNative)

	cfg := framepipe.DefaultConfig()
	cfg.Width, cfg.Height = 48, 32
	cfg.Software = true
	cfg.Frames = 3
	path := filepath.Join(t.TempDir(), "frame.bmp")

	if err := run(context.Background(), cfg, path, false); err != nil {
		t.Fatalf("run: %v", err)
	}
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	img, err := bmp.Decode(f)
	if err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 48 || b.Dy() != 32 {
		t.Errorf("snapshot bounds %v", b)
	}
}
