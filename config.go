package tilerender

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/gogpu/tilerender/backend"
	"github.com/gogpu/tilerender/job"
	"github.com/gogpu/tilerender/schedule"
	"github.com/gogpu/tilerender/sink"
	"github.com/gogpu/tilerender/tile"
)

// Default configuration values.
const (
	DefaultWidth     = 1920
	DefaultHeight    = 1080
	DefaultRate      = 0.01666
	DefaultLookahead = 3
)

// Config describes a render. The zero value is not usable; start from
// DefaultConfig.
type Config struct {
	// Width and Height are the frame size in pixels.
	Width  int `toml:"width"`
	Height int `toml:"height"`

	// TileWidth and TileHeight are the tile size. Zero renders the whole
	// frame as one tile along that axis.
	TileWidth  int `toml:"tile_width"`
	TileHeight int `toml:"tile_height"`

	// FirstFrame is the index of the first frame; Frames is how many to render.
	FirstFrame int `toml:"first_frame"`
	Frames     int `toml:"frames"`

	// Rate is the animation time step per frame, in seconds.
	Rate float64 `toml:"rate"`

	// Lookahead is the number of tiles kept in flight on the backend.
	Lookahead int `toml:"lookahead"`

	// Backend names a registered backend. Empty selects the best available.
	Backend string `toml:"backend"`

	// Shader is a built-in shader name or, for the wgpu backend, a WGSL file.
	Shader string `toml:"shader"`

	// Output is the directory frames are written to.
	Output string `toml:"output"`

	// Name is the output file name pattern. %i expands to the shader name,
	// %f to the frame index.
	Name string `toml:"name"`

	// Manifest is an optional SQLite database recording every written frame.
	Manifest string `toml:"manifest"`

	// Async is the number of frames encoded in the background. Zero writes
	// frames synchronously.
	Async int `toml:"async"`
}

// DefaultConfig returns a single full HD frame rendered as one tile.
func DefaultConfig() Config {
	return Config{
		Width:     DefaultWidth,
		Height:    DefaultHeight,
		Frames:    1,
		Rate:      DefaultRate,
		Lookahead: DefaultLookahead,
		Output:    ".",
		Name:      sink.DefaultPattern,
	}
}

// ImageSize returns the frame size.
func (c Config) ImageSize() tile.Size {
	return tile.Size{Width: c.Width, Height: c.Height}
}

// TileSize returns the tile size with zero dimensions replaced by the frame
// dimensions.
func (c Config) TileSize() tile.Size {
	return tile.DefaultSize(c.ImageSize(), tile.Size{Width: c.TileWidth, Height: c.TileHeight})
}

// FrameRange returns the frames to render.
func (c Config) FrameRange() job.Range {
	return job.Range{First: c.FirstFrame, Count: c.Frames}
}

// Scene returns the backend scene for c.
func (c Config) Scene() backend.Scene {
	return backend.Scene{Resolution: c.ImageSize(), Tile: c.TileSize()}
}

// Layout plans the tiling of every frame.
func (c Config) Layout() (*tile.Layout, error) {
	l, err := tile.NewLayout(c.ImageSize(), c.TileSize())
	if err != nil {
		return nil, schedule.NewError(InvalidTileGeometry, err)
	}
	return l, nil
}

// Validate reports every problem with c. Geometry problems have kind
// InvalidTileGeometry, everything else InvalidConfig.
func (c Config) Validate() error {
	if !c.ImageSize().Valid() {
		return schedule.NewError(InvalidTileGeometry,
			fmt.Errorf("%w: image size %dx%d", tile.ErrInvalidGeometry, c.Width, c.Height))
	}
	if c.TileWidth < 0 || c.TileHeight < 0 {
		return schedule.NewError(InvalidTileGeometry,
			fmt.Errorf("%w: tile size %dx%d", tile.ErrInvalidGeometry, c.TileWidth, c.TileHeight))
	}

	var errs []error
	if c.Frames < 0 {
		errs = append(errs, fmt.Errorf("frames must be >= 0, got %d", c.Frames))
	}
	if c.FirstFrame < 0 {
		errs = append(errs, fmt.Errorf("first frame must be >= 0, got %d", c.FirstFrame))
	}
	if math.IsNaN(c.Rate) || math.IsInf(c.Rate, 0) {
		errs = append(errs, fmt.Errorf("rate must be finite, got %v", c.Rate))
	}
	if c.Lookahead < 1 {
		errs = append(errs, fmt.Errorf("lookahead must be >= 1, got %d", c.Lookahead))
	}
	if c.Async < 0 {
		errs = append(errs, fmt.Errorf("async must be >= 0, got %d", c.Async))
	}
	if _, err := sink.EncoderFor(c.Name); c.Name != "" && err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return schedule.NewError(InvalidConfig, errors.Join(errs...))
	}
	return nil
}

// LoadConfig reads a TOML file over DefaultConfig. Unknown keys are an error.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return cfg, schedule.NewError(InvalidConfig, fmt.Errorf("load %s: %w", path, err))
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return cfg, schedule.NewError(InvalidConfig,
			fmt.Errorf("load %s: unknown keys: %s", path, strings.Join(keys, ", ")))
	}
	return cfg, nil
}
