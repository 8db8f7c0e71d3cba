package job

import (
	"testing"

	"github.com/gogpu/tilerender/tile"
)

func newLayout(t *testing.T, image, tileSize tile.Size) *tile.Layout {
	t.Helper()
	l, err := tile.NewLayout(image, tileSize)
	if err != nil {
		t.Fatalf("NewLayout() error = %v", err)
	}
	return l
}

func TestBuild_FrameMajorTileMinor(t *testing.T) {
	layout := newLayout(t, tile.Size{Width: 100, Height: 200}, tile.Size{Width: 33, Height: 33})
	frames := Range{First: 5, Count: 3}
	rate := 0.5

	jobs := Build(frames, layout, rate)
	if len(jobs) != frames.Count*layout.Len() {
		t.Fatalf("len(Build()) = %d, want %d", len(jobs), frames.Count*layout.Len())
	}

	for i, j := range jobs {
		wantFrame := frames.First + i/layout.Len()
		wantIndex := i % layout.Len()
		if j.Frame != wantFrame {
			t.Errorf("jobs[%d].Frame = %d, want %d", i, j.Frame, wantFrame)
		}
		if j.Index != wantIndex {
			t.Errorf("jobs[%d].Index = %d, want %d", i, j.Index, wantIndex)
		}
		if j.Origin != layout.Origin(wantIndex) {
			t.Errorf("jobs[%d].Origin = %v, want %v", i, j.Origin, layout.Origin(wantIndex))
		}
		if want := rate * float64(wantFrame); j.Time != want {
			t.Errorf("jobs[%d].Time = %v, want %v", i, j.Time, want)
		}
	}
}

func TestBuild_Empty(t *testing.T) {
	layout := newLayout(t, tile.Size{Width: 10, Height: 10}, tile.Size{Width: 5, Height: 5})
	if jobs := Build(Range{First: 0, Count: 0}, layout, 1); len(jobs) != 0 {
		t.Errorf("len(Build()) = %d, want 0", len(jobs))
	}
	if jobs := Build(Range{First: 0, Count: 2}, nil, 1); jobs != nil {
		t.Errorf("Build(nil layout) = %v, want nil", jobs)
	}
}

func TestSeq_MatchesBuild(t *testing.T) {
	layout := newLayout(t, tile.Size{Width: 64, Height: 48}, tile.Size{Width: 32, Height: 32})
	frames := Range{First: 0, Count: 4}

	built := Build(frames, layout, 0.01666)
	i := 0
	for j := range Seq(frames, layout, 0.01666) {
		if j != built[i] {
			t.Errorf("Seq job %d = %v, want %v", i, j, built[i])
		}
		i++
	}
	if i != len(built) {
		t.Errorf("Seq yielded %d jobs, want %d", i, len(built))
	}
}

func TestRange(t *testing.T) {
	r := Range{First: 3, Count: 4}
	if r.Last() != 6 {
		t.Errorf("Last() = %d, want 6", r.Last())
	}
	for frame, want := range map[int]bool{2: false, 3: true, 6: true, 7: false} {
		if got := r.Contains(frame); got != want {
			t.Errorf("Contains(%d) = %v, want %v", frame, got, want)
		}
	}
}

func TestQueue(t *testing.T) {
	layout := newLayout(t, tile.Size{Width: 30, Height: 10}, tile.Size{Width: 10, Height: 10})
	frames := Range{First: 0, Count: 3}
	q := NewQueue(Seq(frames, layout, 1), frames.Count*layout.Len())
	defer q.Close()

	if q.Len() != 9 {
		t.Fatalf("Len() = %d, want 9", q.Len())
	}
	var got []Job
	for !q.Empty() {
		j, ok := q.Next()
		if !ok {
			t.Fatal("Next() returned false on a non-empty queue")
		}
		got = append(got, j)
		if q.Len() != 9-len(got) {
			t.Errorf("Len() = %d after %d takes", q.Len(), len(got))
		}
	}
	if len(got) != 9 {
		t.Fatalf("took %d jobs, want 9", len(got))
	}
	if _, ok := q.Next(); ok {
		t.Error("Next() on empty queue returned true")
	}
}

func TestQueue_FromSliceAndClose(t *testing.T) {
	q := FromSlice([]Job{{Frame: 0}, {Frame: 1}})
	if j, _ := q.Next(); j.Frame != 0 {
		t.Errorf("first job frame = %d, want 0", j.Frame)
	}
	q.Close()
	if !q.Empty() {
		t.Error("queue should be empty after Close")
	}
	q.Close()
}
