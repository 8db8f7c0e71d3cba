package main

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/gogpu/tilerender"
)

func TestResolve_FlagsOverrideFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.toml")
	body := "width = 640\nheight = 480\nframes = 10\nshader = \"plasma\"\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}

	f, fs, err := parseFlags([]string{"-config", path, "-frames", "3", "-tile-width", "64"})
	if err != nil {
		t.Fatal(err)
	}
	cfg, err := f.resolve(fs)
	if err != nil {
		t.Fatalf("resolve() error = %v", err)
	}
	if cfg.Width != 640 || cfg.Height != 480 || cfg.Shader != "plasma" {
		t.Errorf("file values lost: %+v", cfg)
	}
	if cfg.Frames != 3 || cfg.TileWidth != 64 {
		t.Errorf("flags did not override: frames %d, tile width %d", cfg.Frames, cfg.TileWidth)
	}
	// Unset flags keep the file's and the defaults' values.
	if cfg.Lookahead != tilerender.DefaultLookahead || cfg.Rate != tilerender.DefaultRate {
		t.Errorf("defaults lost: %+v", cfg)
	}
}

func TestResolve_Invalid(t *testing.T) {
	f, fs, err := parseFlags([]string{"-lookahead", "0"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.resolve(fs); !errors.Is(err, tilerender.ErrInvalidConfig) {
		t.Errorf("resolve() error = %v, want ErrInvalidConfig", err)
	}
}

func TestRun_WritesFiles(t *testing.T) {
	dir := t.TempDir()
	f, fs, err := parseFlags([]string{
		"-width", "40", "-height", "30", "-tile-width", "16", "-tile-height", "16",
		"-frames", "2", "-backend", "cpu", "-shader", "checker", "-name", "%i_%f.bmp",
		"-output", dir, "-q",
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := run(f, fs); err != nil {
		t.Fatalf("run() error = %v", err)
	}
	for _, name := range []string{"checker_00000.bmp", "checker_00001.bmp"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("missing %s: %v", name, err)
		}
	}
}
