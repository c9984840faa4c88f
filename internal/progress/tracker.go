package progress

import (
	"fmt"
	"io"
	"os"
	"sync/atomic"
	"time"

	"github.com/schollz/progressbar/v3"
)

// Tracker tracks loaded rows across a run.
type Tracker struct {
	bar       *progressbar.ProgressBar
	out       io.Writer
	total     int64
	current   atomic.Int64
	startTime time.Time
}

// New creates a tracker that renders to stdout.
func New() *Tracker {
	return NewWithWriter(os.Stdout)
}

// NewWithWriter creates a tracker that renders to w.
func NewWithWriter(w io.Writer) *Tracker {
	return &Tracker{
		out:       w,
		startTime: time.Now(),
	}
}

// SetTotal sets the total number of rows to load
func (t *Tracker) SetTotal(total int64) {
	t.total = total
	t.bar = progressbar.NewOptions64(
		total,
		progressbar.OptionSetWriter(t.out),
		progressbar.OptionSetDescription("Loading"),
		progressbar.OptionShowBytes(false),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("rows"),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetRenderBlankState(true),
	)
}

// Describe changes the label shown next to the bar.
func (t *Tracker) Describe(desc string) {
	if t.bar != nil {
		t.bar.Describe(desc)
	}
}

// Add increments the progress counter
func (t *Tracker) Add(n int64) {
	t.current.Add(n)
	if t.bar != nil {
		t.bar.Add64(n)
	}
}

// Current returns the current count
func (t *Tracker) Current() int64 {
	return t.current.Load()
}

// Finish marks the progress as complete
func (t *Tracker) Finish() {
	if t.bar != nil {
		t.bar.Finish()
	}

	elapsed := time.Since(t.startTime)
	rowsPerSec := 0.0
	if elapsed > 0 {
		rowsPerSec = float64(t.current.Load()) / elapsed.Seconds()
	}

	fmt.Fprintln(t.out)
	fmt.Fprintf(t.out, "Loaded %d of %d rows in %s (%.0f rows/sec)\n",
		t.current.Load(), t.total, elapsed.Round(time.Millisecond), rowsPerSec)
}
