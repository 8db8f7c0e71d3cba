// Command tilerender renders a shader animation to image files, tile by tile.
//
// Usage:
//
//	tilerender [flags]
//
// Settings come from DefaultConfig, then from the TOML file given with
// -config, then from flags set on the command line.
//
// Example:
//
//	tilerender -width 3840 -height 2160 -tile-width 512 -tile-height 512 \
//	    -frames 120 -shader plasma -output frames -manifest frames/manifest.db
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/gogpu/tilerender"
	"github.com/gogpu/tilerender/backend"
	_ "github.com/gogpu/tilerender/backend/cpu"
	_ "github.com/gogpu/tilerender/backend/wgpu"
	"github.com/gogpu/tilerender/progress"
)

// flags holds the command line. Only flags that were set override the
// configuration file.
type flags struct {
	width, height         int
	tileWidth, tileHeight int
	firstFrame, frames    int
	rate                  float64
	lookahead             int
	backend, shader       string
	name, output          string
	manifest              string
	async                 int
	config                string
	verbose               bool
	quiet                 bool
}

func parseFlags(args []string) (*flags, *flag.FlagSet, error) {
	def := tilerender.DefaultConfig()
	f := &flags{}
	fs := flag.NewFlagSet("tilerender", flag.ContinueOnError)
	fs.IntVar(&f.width, "width", def.Width, "frame width in pixels")
	fs.IntVar(&f.height, "height", def.Height, "frame height in pixels")
	fs.IntVar(&f.tileWidth, "tile-width", def.TileWidth, "tile width in pixels (0 = frame width)")
	fs.IntVar(&f.tileHeight, "tile-height", def.TileHeight, "tile height in pixels (0 = frame height)")
	fs.IntVar(&f.firstFrame, "first-frame", def.FirstFrame, "index of the first frame")
	fs.IntVar(&f.frames, "frames", def.Frames, "number of frames to render")
	fs.Float64Var(&f.rate, "rate", def.Rate, "animation time step per frame, in seconds")
	fs.IntVar(&f.lookahead, "lookahead", def.Lookahead, "tiles kept in flight on the backend")
	fs.StringVar(&f.backend, "backend", def.Backend, fmt.Sprintf("render backend %v (empty = best available)", backend.Available()))
	fs.StringVar(&f.shader, "shader", def.Shader, "built-in shader name or WGSL file")
	fs.StringVar(&f.name, "name", def.Name, "output file pattern (%i = shader, %f = frame)")
	fs.StringVar(&f.output, "output", def.Output, "output directory")
	fs.StringVar(&f.manifest, "manifest", def.Manifest, "SQLite manifest of written frames")
	fs.IntVar(&f.async, "async", def.Async, "frames encoded in the background (0 = synchronous)")
	fs.StringVar(&f.config, "config", "", "TOML configuration file")
	fs.BoolVar(&f.verbose, "v", false, "debug logging")
	fs.BoolVar(&f.quiet, "q", false, "no progress line")
	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}
	return f, fs, nil
}

// resolve builds the configuration: defaults, then the file, then flags.
func (f *flags) resolve(fs *flag.FlagSet) (tilerender.Config, error) {
	cfg := tilerender.DefaultConfig()
	if f.config != "" {
		var err error
		if cfg, err = tilerender.LoadConfig(f.config); err != nil {
			return cfg, err
		}
	}

	fs.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "width":
			cfg.Width = f.width
		case "height":
			cfg.Height = f.height
		case "tile-width":
			cfg.TileWidth = f.tileWidth
		case "tile-height":
			cfg.TileHeight = f.tileHeight
		case "first-frame":
			cfg.FirstFrame = f.firstFrame
		case "frames":
			cfg.Frames = f.frames
		case "rate":
			cfg.Rate = f.rate
		case "lookahead":
			cfg.Lookahead = f.lookahead
		case "backend":
			cfg.Backend = f.backend
		case "shader":
			cfg.Shader = f.shader
		case "name":
			cfg.Name = f.name
		case "output":
			cfg.Output = f.output
		case "manifest":
			cfg.Manifest = f.manifest
		case "async":
			cfg.Async = f.async
		}
	})
	return cfg, cfg.Validate()
}

func main() {
	f, fs, err := parseFlags(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		os.Exit(2)
	}

	level := slog.LevelInfo
	if f.verbose {
		level = slog.LevelDebug
	}
	tilerender.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	if err := run(f, fs); err != nil {
		tilerender.Logger().Error("tilerender failed", "err", err)
		os.Exit(1)
	}
}

func run(f *flags, fs *flag.FlagSet) error {
	cfg, err := f.resolve(fs)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	b, err := tilerender.OpenBackend(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := b.Close(); cerr != nil {
			tilerender.Logger().Warn("backend close failed", "err", cerr)
		}
	}()

	s, err := tilerender.OpenSink(cfg)
	if err != nil {
		return err
	}

	var opts []tilerender.Option
	var counter *progress.Counter
	if !f.quiet {
		counter = progress.New(os.Stdout, progress.WithFrameBytes(cfg.ImageSize().ByteSize()))
		opts = append(opts, tilerender.WithObserver(counter))
	}

	stats, err := tilerender.Render(ctx, cfg, b, s, opts...)
	if cerr := s.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("close output: %w", cerr)
	}
	if counter != nil {
		counter.Finish()
	}
	if err != nil {
		return err
	}

	tilerender.Logger().Info("render complete",
		"frames", stats.FramesWritten,
		"tiles", stats.Retrieved,
		"duration", stats.Duration,
		"output", cfg.Output)
	return nil
}
