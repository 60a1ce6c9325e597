// Command framepipe renders the triangle for a number of frames and reports
// frame pacing statistics. With -snapshot it writes the last presented frame
// as a BMP image.
package main

import (
	"context"
	"flag"
	"fmt"
	"image"
	"image/color"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/gogpu/framepipe"
	"github.com/gogpu/framepipe/internal/frame"
	"golang.org/x/image/bmp"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

func main() {
	var (
		configPath = flag.String("config", "", "TOML configuration file")
		width      = flag.Int("width", framepipe.DefaultWidth, "back buffer width")
		height     = flag.Int("height", framepipe.DefaultHeight, "back buffer height")
		buffers    = flag.Uint("buffers", framepipe.DefaultFrameCount, "back buffers and frame slots")
		frames     = flag.Uint64("frames", 300, "frames to render, 0 until interrupted")
		policy     = flag.String("policy", "overlapped", "frame pacing: overlapped or blocking")
		software   = flag.Bool("software", false, "use the software adapter")
		texture    = flag.Bool("texture", false, "draw the textured triangle")
		bundle     = flag.Bool("bundle", false, "replay the draw from a bundle")
		debug      = flag.Bool("debug-shaders", false, "compile shaders with debug info")
		snapshot   = flag.String("snapshot", "", "write the last frame to this BMP file")
		label      = flag.Bool("label", true, "print adapter and frame count on the snapshot")
		verbose    = flag.Bool("v", false, "debug logging")
	)
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	framepipe.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	cfg := framepipe.DefaultConfig()
	cfg.Frames = 300
	if *configPath != "" {
		var err error
		if cfg, err = framepipe.LoadConfig(*configPath); err != nil {
			log.Fatal(err)
		}
	}
	// Flags given on the command line override the file.
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "width":
			cfg.Width = *width
		case "height":
			cfg.Height = *height
		case "buffers":
			cfg.FrameCount = uint32(*buffers)
		case "frames":
			cfg.Frames = *frames
		case "policy":
			cfg.Policy = *policy
		case "software":
			cfg.Software = *software
		case "texture":
			cfg.Texture = *texture
		case "bundle":
			cfg.Bundle = *bundle
		case "debug-shaders":
			cfg.DebugShaders = *debug
		}
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := run(ctx, cfg, *snapshot, *label); err != nil {
		log.Fatal(err)
	}
}

// snapshotSample captures the last frame before the pipeline is destroyed.
type snapshotSample struct {
	*framepipe.Pipeline
	path  string
	label bool
	err   error
}

func (s *snapshotSample) OnDestroy() error {
	if s.path != "" && s.Err() == nil && s.Stats().Frames > 0 {
		s.err = s.save()
	}
	return s.Pipeline.OnDestroy()
}

func (s *snapshotSample) save() error {
	img, err := s.Snapshot(0, 0)
	if err != nil {
		return err
	}
	if s.label {
		info := s.Info()
		annotate(img, fmt.Sprintf("%s (%s) frame %d", info.Name, info.FeatureLevel, s.Stats().Frames))
	}
	f, err := os.Create(s.path)
	if err != nil {
		return err
	}
	if err := bmp.Encode(f, img); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func run(ctx context.Context, cfg framepipe.Config, snapshot string, label bool) error {
	opts, err := cfg.Options()
	if err != nil {
		return err
	}
	p := framepipe.New(framepipe.NewHeadlessWindow(cfg.Width, cfg.Height), opts...)
	s := &snapshotSample{Pipeline: p, path: snapshot, label: label}

	start := time.Now()
	if err := framepipe.Run(ctx, s, framepipe.RunOptions{Frames: cfg.Frames}); err != nil {
		return err
	}
	if s.err != nil {
		return fmt.Errorf("snapshot: %w", s.err)
	}
	fmt.Println(report(message.NewPrinter(language.English), p.Info().Name, p.Stats(), time.Since(start)))
	if snapshot != "" {
		log.Printf("Snapshot saved to %s (%dx%d)\n", snapshot, cfg.Width, cfg.Height)
	}
	return nil
}

// report formats the frame statistics.
func report(pr *message.Printer, adapter string, st frame.Stats, elapsed time.Duration) string {
	fps := 0.0
	if elapsed > 0 {
		fps = float64(st.Frames) / elapsed.Seconds()
	}
	return pr.Sprintf("%s: %d frames in %v (%.1f fps), %d waits for the GPU totaling %v",
		adapter, st.Frames, elapsed.Round(time.Millisecond), fps, st.Waits, st.WaitTime.Round(time.Microsecond))
}

// annotate draws text in the top-left corner of img.
func annotate(img *image.RGBA, text string) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(color.RGBA{R: 255, G: 255, B: 255, A: 255}),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(4, 4+basicfont.Face7x13.Ascent),
	}
	d.DrawString(text)
}
