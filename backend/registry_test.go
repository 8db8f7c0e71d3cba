package backend

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/gogpu/tilerender/tile"
)

type nullBackend struct{ opts Options }

func (n *nullBackend) Submit(context.Context, Request) (Ticket, error) { return 1, nil }
func (n *nullBackend) Retrieve(context.Context) (Result, error)        { return Result{}, nil }
func (n *nullBackend) Depth() int                                      { return n.opts.Depth }
func (n *nullBackend) TileSize() tile.Size                             { return n.opts.Scene.Tile }
func (n *nullBackend) Close() error                                    { return nil }

func TestRegistry(t *testing.T) {
	const name = "test-null"
	Register(name, func(opts Options) (Backend, error) { return &nullBackend{opts: opts}, nil })
	defer Unregister(name)

	if !IsRegistered(name) {
		t.Fatalf("IsRegistered(%q) = false", name)
	}
	if !slices.Contains(Available(), name) {
		t.Errorf("Available() = %v, missing %q", Available(), name)
	}

	b, err := Open(name, Options{Depth: 4})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if b.Depth() != 4 {
		t.Errorf("Depth() = %d, want 4", b.Depth())
	}

	if _, err := Open("does-not-exist", Options{}); !errors.Is(err, ErrNotAvailable) {
		t.Errorf("Open(unknown) error = %v, want ErrNotAvailable", err)
	}
}

func TestDefault_FallsBackPastFailures(t *testing.T) {
	failing := errors.New("no device")
	Register(NameWGPU, func(Options) (Backend, error) { return nil, failing })
	Register(NameCPU, func(opts Options) (Backend, error) { return &nullBackend{opts: opts}, nil })
	defer Unregister(NameWGPU)
	defer Unregister(NameCPU)

	b, err := Default(Options{Depth: 2})
	if err != nil {
		t.Fatalf("Default() error = %v", err)
	}
	if _, ok := b.(*nullBackend); !ok {
		t.Errorf("Default() = %T, want *nullBackend", b)
	}

	Unregister(NameCPU)
	_, err = Default(Options{})
	if !errors.Is(err, ErrNotAvailable) || !errors.Is(err, failing) {
		t.Errorf("Default() error = %v, want ErrNotAvailable wrapping the open failure", err)
	}
}
