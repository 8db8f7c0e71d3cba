package sink

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
)

// testFrame returns a w x h frame whose pixel i has bytes (i, i+1, i+2) mod 256.
func testFrame(index, w, h int) Frame {
	pix := make([]byte, w*h*3)
	for i := range pix {
		pix[i] = byte(i + index)
	}
	return Frame{Index: index, Width: w, Height: h, Pix: pix}
}

// =============================================================================
// Frame
// =============================================================================

func TestFrame_Validate(t *testing.T) {
	tests := []struct {
		name string
		f    Frame
		ok   bool
	}{
		{"valid", testFrame(0, 4, 3), true},
		{"short", Frame{Width: 4, Height: 3, Pix: make([]byte, 35)}, false},
		{"zero size", Frame{}, false},
		{"negative", Frame{Width: -1, Height: 3}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.f.Validate()
			if (err == nil) != tt.ok {
				t.Errorf("Validate() = %v, want ok=%v", err, tt.ok)
			}
			if err != nil && !errors.Is(err, ErrBadFrame) {
				t.Errorf("Validate() = %v, want ErrBadFrame", err)
			}
		})
	}
}

func TestFrame_Image(t *testing.T) {
	f := testFrame(0, 2, 2)
	img := f.Image()
	if img.Bounds() != image.Rect(0, 0, 2, 2) {
		t.Fatalf("Bounds() = %v", img.Bounds())
	}
	c := img.NRGBAAt(1, 1)
	if c.R != f.Pix[9] || c.G != f.Pix[10] || c.B != f.Pix[11] || c.A != 0xFF {
		t.Errorf("pixel (1,1) = %v, want %v opaque", c, f.Pix[9:12])
	}
}

func TestMemory_CopiesFrames(t *testing.T) {
	m := NewMemory()
	f := testFrame(3, 2, 2)
	if err := m.WriteFrame(context.Background(), f); err != nil {
		t.Fatal(err)
	}
	f.Pix[0] = 0xAA
	got := m.Frames()
	if len(got) != 1 || got[0].Index != 3 || got[0].Pix[0] == 0xAA {
		t.Errorf("Memory kept a reference to the caller's pixels")
	}
	_ = m.Close()
	if err := m.WriteFrame(context.Background(), f); !errors.Is(err, ErrClosed) {
		t.Errorf("WriteFrame() after Close = %v, want ErrClosed", err)
	}
}

func TestMulti(t *testing.T) {
	a, b := NewMemory(), NewMemory()
	boom := errors.New("boom")
	fail := Func(func(context.Context, Frame) error { return boom })

	if err := (Multi{a, b}).WriteFrame(context.Background(), testFrame(0, 1, 1)); err != nil {
		t.Fatal(err)
	}
	if len(a.Frames()) != 1 || len(b.Frames()) != 1 {
		t.Error("Multi did not reach every sink")
	}

	c := NewMemory()
	if err := (Multi{fail, c}).WriteFrame(context.Background(), testFrame(0, 1, 1)); !errors.Is(err, boom) {
		t.Errorf("WriteFrame() = %v, want boom", err)
	}
	if len(c.Frames()) != 0 {
		t.Error("Multi continued after a failing sink")
	}
}

// =============================================================================
// File
// =============================================================================

func TestExpandPattern(t *testing.T) {
	tests := []struct {
		pattern, input string
		index          int
		want           string
	}{
		{"%i_%f.png", "plasma", 7, "plasma_00007.png"},
		{"frame.png", "plasma", 12, "frame_00012.png"},
		{"out/%f-%i.bmp", "x", 0, "out/00000-x.bmp"},
		{"", "gradient", 1, "gradient_00001.png"},
		{"noext", "a", 3, "noext_00003"},
		{"%i.tiff", "doctor", 123456, "doctor_123456.tiff"},
	}
	for _, tt := range tests {
		if got := ExpandPattern(tt.pattern, tt.input, tt.index); got != tt.want {
			t.Errorf("ExpandPattern(%q, %q, %d) = %q, want %q", tt.pattern, tt.input, tt.index, got, tt.want)
		}
	}
}

func TestFile_Formats(t *testing.T) {
	decoders := map[string]func(r *bytes.Reader) (image.Image, error){
		"png":  func(r *bytes.Reader) (image.Image, error) { return png.Decode(r) },
		"bmp":  func(r *bytes.Reader) (image.Image, error) { return bmp.Decode(r) },
		"tiff": func(r *bytes.Reader) (image.Image, error) { return tiff.Decode(r) },
	}
	for ext, decode := range decoders {
		t.Run(ext, func(t *testing.T) {
			dir := filepath.Join(t.TempDir(), "frames")
			s, err := NewFile(dir, "%i_%f."+ext, "test")
			if err != nil {
				t.Fatalf("NewFile() error = %v", err)
			}
			f := testFrame(4, 5, 3)
			if err := s.WriteFrame(context.Background(), f); err != nil {
				t.Fatalf("WriteFrame() error = %v", err)
			}
			path := s.Path(4)
			if filepath.Base(path) != "test_00004."+ext {
				t.Errorf("Path(4) = %q", path)
			}

			data, err := os.ReadFile(path)
			if err != nil {
				t.Fatal(err)
			}
			img, err := decode(bytes.NewReader(data))
			if err != nil {
				t.Fatalf("decode error = %v", err)
			}
			if img.Bounds().Dx() != 5 || img.Bounds().Dy() != 3 {
				t.Fatalf("decoded bounds = %v", img.Bounds())
			}
			r, g, b, _ := img.At(2, 1).RGBA()
			off := (1*5 + 2) * 3
			if byte(r>>8) != f.Pix[off] || byte(g>>8) != f.Pix[off+1] || byte(b>>8) != f.Pix[off+2] {
				t.Errorf("decoded pixel (2,1) = %d,%d,%d, want %v", r>>8, g>>8, b>>8, f.Pix[off:off+3])
			}
		})
	}
}

func TestNewFile_UnknownFormat(t *testing.T) {
	if _, err := NewFile(t.TempDir(), "%f.jpg", ""); !errors.Is(err, ErrUnknownFormat) {
		t.Errorf("NewFile(.jpg) error = %v, want ErrUnknownFormat", err)
	}
}

func TestFile_WriteErrors(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFile(dir, "", "x")
	if err != nil {
		t.Fatal(err)
	}
	if err := s.WriteFrame(context.Background(), Frame{Width: 2, Height: 2}); !errors.Is(err, ErrBadFrame) {
		t.Errorf("WriteFrame(bad) error = %v, want ErrBadFrame", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := s.WriteFrame(ctx, testFrame(0, 1, 1)); !errors.Is(err, context.Canceled) {
		t.Errorf("WriteFrame(cancelled) error = %v, want Canceled", err)
	}
	_ = s.Close()
	if err := s.WriteFrame(context.Background(), testFrame(0, 1, 1)); !errors.Is(err, ErrClosed) {
		t.Errorf("WriteFrame() after Close error = %v, want ErrClosed", err)
	}
}

// =============================================================================
// Async
// =============================================================================

// gatedSink blocks every write until release is closed.
type gatedSink struct {
	*Memory
	release chan struct{}
	active  atomic.Int32
	peak    atomic.Int32
}

func (g *gatedSink) WriteFrame(ctx context.Context, f Frame) error {
	n := g.active.Add(1)
	for {
		p := g.peak.Load()
		if n <= p || g.peak.CompareAndSwap(p, n) {
			break
		}
	}
	<-g.release
	g.active.Add(-1)
	return g.Memory.WriteFrame(ctx, f)
}

func TestAsync_WritesAllFrames(t *testing.T) {
	gated := &gatedSink{Memory: NewMemory(), release: make(chan struct{})}
	a := NewAsync(gated, 2)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := range 6 {
			f := testFrame(i, 2, 2)
			if err := a.WriteFrame(context.Background(), f); err != nil {
				t.Errorf("WriteFrame(%d) error = %v", i, err)
			}
			// The sink must hold its own copy.
			clear(f.Pix)
		}
	}()

	time.Sleep(20 * time.Millisecond)
	close(gated.release)
	wg.Wait()
	if err := a.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	frames := gated.Frames()
	if len(frames) != 6 {
		t.Fatalf("wrote %d frames, want 6", len(frames))
	}
	for _, f := range frames {
		if !bytes.Equal(f.Pix, testFrame(f.Index, 2, 2).Pix) {
			t.Errorf("frame %d pixels were modified after WriteFrame returned", f.Index)
		}
	}
	if p := gated.peak.Load(); p > 2 {
		t.Errorf("peak concurrent writes = %d, want <= 2", p)
	}
}

func TestAsync_SurfacesFirstError(t *testing.T) {
	boom := errors.New("disk full")
	a := NewAsync(Func(func(_ context.Context, f Frame) error {
		if f.Index == 1 {
			return boom
		}
		return nil
	}), 1)

	ctx := context.Background()
	var err error
	for i := range 10 {
		if err = a.WriteFrame(ctx, testFrame(i, 1, 1)); err != nil {
			break
		}
		time.Sleep(2 * time.Millisecond)
	}
	if err == nil {
		err = a.Close()
	} else {
		_ = a.Close()
	}
	if !errors.Is(err, boom) {
		t.Errorf("error = %v, want %v", err, boom)
	}
	if err := a.WriteFrame(ctx, testFrame(0, 1, 1)); !errors.Is(err, ErrClosed) {
		t.Errorf("WriteFrame() after Close = %v, want ErrClosed", err)
	}
}

func TestAsync_FlushReportsFailedFrame(t *testing.T) {
	boom := errors.New("disk full")
	var calls atomic.Int32
	a := NewAsync(Func(func(_ context.Context, f Frame) error {
		calls.Add(1)
		if f.Index == 3 {
			return boom
		}
		return nil
	}), 2)
	defer a.Close()

	ctx := context.Background()
	for i := range 4 {
		if err := a.WriteFrame(ctx, testFrame(i, 1, 1)); err != nil {
			t.Fatalf("WriteFrame(%d) error = %v", i, err)
		}
	}

	err := a.Flush(ctx)
	var fe *FrameError
	if !errors.As(err, &fe) || fe.Index != 3 || !errors.Is(err, boom) {
		t.Fatalf("Flush() error = %v, want *FrameError for frame 3 wrapping %v", err, boom)
	}

	// The failure is sticky and later frames are dropped.
	if err := a.WriteFrame(ctx, testFrame(4, 1, 1)); !errors.As(err, &fe) || fe.Index != 3 {
		t.Errorf("WriteFrame() after failure error = %v, want frame 3", err)
	}
	if err := a.Flush(ctx); !errors.Is(err, boom) {
		t.Errorf("second Flush() error = %v, want %v", err, boom)
	}
	if n := calls.Load(); n != 4 {
		t.Errorf("wrapped sink saw %d writes, want 4", n)
	}
}

func TestAsync_FlushThenContinue(t *testing.T) {
	mem := NewMemory()
	a := NewAsync(mem, 3)
	ctx := context.Background()

	for round := range 2 {
		for i := range 3 {
			if err := a.WriteFrame(ctx, testFrame(round*3+i, 2, 1)); err != nil {
				t.Fatalf("WriteFrame() error = %v", err)
			}
		}
		if err := a.Flush(ctx); err != nil {
			t.Fatalf("Flush() round %d error = %v", round, err)
		}
		if got, want := len(mem.Frames()), (round+1)*3; got != want {
			t.Errorf("after Flush round %d: %d frames written, want %d", round, got, want)
		}
	}
	if err := a.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := a.Flush(ctx); !errors.Is(err, ErrClosed) {
		t.Errorf("Flush() after Close error = %v, want ErrClosed", err)
	}
}

func TestAsync_DeliversEachFrameOnce(t *testing.T) {
	mem := NewMemory()
	a := NewAsync(mem, 3)
	ctx := context.Background()
	for i := range 12 {
		if err := a.WriteFrame(ctx, testFrame(i, 1, 1)); err != nil {
			t.Fatal(err)
		}
	}
	if err := a.Close(); err != nil {
		t.Fatal(err)
	}

	seen := make(map[int]int)
	for _, f := range mem.Frames() {
		seen[f.Index]++
	}
	for i := range 12 {
		if seen[i] != 1 {
			t.Errorf("frame %d delivered %d times, want 1", i, seen[i])
		}
	}
}

func TestMulti_Flush(t *testing.T) {
	boom := errors.New("boom")
	mem := NewMemory()
	failing := NewAsync(Func(func(context.Context, Frame) error { return boom }), 1)
	m := Multi{mem, failing}

	ctx := context.Background()
	if err := m.WriteFrame(ctx, testFrame(7, 1, 1)); err != nil {
		t.Fatalf("WriteFrame() error = %v", err)
	}
	var fe *FrameError
	if err := Flush(ctx, m); !errors.As(err, &fe) || fe.Index != 7 {
		t.Errorf("Flush(Multi) error = %v, want frame 7", err)
	}
	if err := Flush(ctx, mem); err != nil {
		t.Errorf("Flush(Memory) error = %v, want nil", err)
	}
	_ = m.Close()
}

// =============================================================================
// Manifest
// =============================================================================

func TestManifest_RecordsFrames(t *testing.T) {
	dir := t.TempDir()
	files, err := NewFile(dir, "%i_%f.png", "m")
	if err != nil {
		t.Fatal(err)
	}
	m, err := OpenManifest(filepath.Join(dir, "manifest.db"), files)
	if err != nil {
		t.Fatalf("OpenManifest() error = %v", err)
	}
	stamp := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return stamp }

	ctx := context.Background()
	for _, i := range []int{2, 0, 1} {
		if err := m.WriteFrame(ctx, testFrame(i, 3, 2)); err != nil {
			t.Fatalf("WriteFrame(%d) error = %v", i, err)
		}
	}
	// Rewriting a frame replaces its record.
	if err := m.WriteFrame(ctx, testFrame(1, 3, 2)); err != nil {
		t.Fatal(err)
	}

	recs, err := m.Frames(ctx)
	if err != nil {
		t.Fatalf("Frames() error = %v", err)
	}
	if len(recs) != 3 {
		t.Fatalf("Frames() = %d records, want 3", len(recs))
	}
	for i, r := range recs {
		sum := sha256.Sum256(testFrame(i, 3, 2).Pix)
		if r.Index != i || r.Width != 3 || r.Height != 2 {
			t.Errorf("record %d = %+v", i, r)
		}
		if r.SHA256 != hex.EncodeToString(sum[:]) {
			t.Errorf("record %d digest mismatch", i)
		}
		if r.Path != files.Path(i) {
			t.Errorf("record %d path = %q, want %q", i, r.Path, files.Path(i))
		}
		if !r.Written.Equal(stamp) {
			t.Errorf("record %d time = %v", i, r.Written)
		}
	}
	if err := m.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := m.WriteFrame(ctx, testFrame(5, 3, 2)); !errors.Is(err, ErrClosed) {
		t.Errorf("WriteFrame() after Close = %v, want ErrClosed", err)
	}
}

func TestManifest_SkipsFailedWrites(t *testing.T) {
	boom := errors.New("boom")
	m, err := OpenManifest(filepath.Join(t.TempDir(), "m.db"), Func(func(context.Context, Frame) error { return boom }))
	if err != nil {
		t.Fatal(err)
	}
	defer m.Close()

	if err := m.WriteFrame(context.Background(), testFrame(0, 1, 1)); !errors.Is(err, boom) {
		t.Errorf("WriteFrame() error = %v, want boom", err)
	}
	recs, err := m.Frames(context.Background())
	if err != nil || len(recs) != 0 {
		t.Errorf("Frames() = %v, %v; want no records", recs, err)
	}
}

func TestManifest_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "m.db")
	m, err := OpenManifest(path, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := m.WriteFrame(context.Background(), testFrame(9, 2, 2)); err != nil {
		t.Fatal(err)
	}
	if err := m.Close(); err != nil {
		t.Fatal(err)
	}

	m, err = OpenManifest(path, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer m.Close()
	recs, err := m.Frames(context.Background())
	if err != nil || len(recs) != 1 || recs[0].Index != 9 || recs[0].Path != "" {
		t.Errorf("Frames() after reopen = %+v, %v", recs, err)
	}
}
