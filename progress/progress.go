// Package progress reports render progress on a terminal line.
//
// Counter is a schedule.Observer. After every written frame it rewrites a
// single carriage-return line:
//
//	Frame 3/120, Last frame time: 16.67 ms
//
// and Finish prints a summary with the total pixel volume produced.
package progress

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/gogpu/tilerender/backend"
	"github.com/gogpu/tilerender/job"
	"github.com/gogpu/tilerender/schedule"
)

// Counter prints one progress line per written frame.
type Counter struct {
	w          io.Writer
	frameBytes int
	printer    *message.Printer
	label      lipgloss.Style
	value      lipgloss.Style
	styled     bool

	mu      sync.Mutex
	written int
	total   int
	elapsed time.Duration
	last    time.Duration
}

// Option configures a Counter.
type Option func(*Counter)

// WithStyle forces styled output on or off. By default output is styled only
// when the writer is a terminal.
func WithStyle(on bool) Option {
	return func(c *Counter) { c.styled = on }
}

// WithLanguage selects the locale used for number grouping.
func WithLanguage(tag language.Tag) Option {
	return func(c *Counter) { c.printer = message.NewPrinter(tag) }
}

// WithFrameBytes sets the size of one output frame, used by the summary.
func WithFrameBytes(n int) Option {
	return func(c *Counter) { c.frameBytes = n }
}

// New returns a Counter writing to w. A nil w writes to os.Stderr.
func New(w io.Writer, opts ...Option) *Counter {
	if w == nil {
		w = os.Stderr
	}
	c := &Counter{
		w:       w,
		printer: message.NewPrinter(language.English),
		label:   lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
		value:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("6")),
		styled:  isTerminal(w),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// OnSubmit implements schedule.Observer.
func (c *Counter) OnSubmit(job.Job, backend.Ticket) {}

// OnRetrieve implements schedule.Observer.
func (c *Counter) OnRetrieve(job.Job, backend.Ticket) {}

// OnFrame implements schedule.Observer.
func (c *Counter) OnFrame(e schedule.FrameEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.written = e.Written
	c.total = e.Total
	c.last = e.Elapsed
	c.elapsed += e.Elapsed

	ms := float64(e.Elapsed) / float64(time.Millisecond)
	line := c.style(c.label, "Frame ") +
		c.style(c.value, c.printer.Sprintf("%d/%d", e.Written, e.Total)) +
		c.style(c.label, ", Last frame time: ") +
		c.style(c.value, c.printer.Sprintf("%.2f ms", ms))
	fmt.Fprint(c.w, "\r"+line)
}

// Finish ends the progress line and prints a summary.
func (c *Counter) Finish() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.written == 0 {
		fmt.Fprintln(c.w, "No frames written")
		return
	}
	summary := c.printer.Sprintf("%d frames in %s", c.written, c.elapsed.Round(time.Millisecond).String())
	if c.frameBytes > 0 {
		summary += ", " + humanize.Bytes(uint64(c.written)*uint64(c.frameBytes))
	}
	fmt.Fprintln(c.w)
	fmt.Fprintln(c.w, c.style(c.label, "Done: ")+c.style(c.value, summary))
}

// Written returns the number of frames reported so far and the total.
func (c *Counter) Written() (written, total int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.written, c.total
}

func (c *Counter) style(s lipgloss.Style, text string) string {
	if !c.styled {
		return text
	}
	return s.Render(text)
}
