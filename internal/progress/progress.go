// Package progress draws a single-line scan progress bar on a terminal.
package progress

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/mattn/go-isatty"
)

// refresh is the minimum interval between redraws.
const refresh = 100 * time.Millisecond

// Bar renders progress to a writer. A nil *Bar is valid and draws nothing.
type Bar struct {
	w     io.Writer
	label string
	model progress.Model

	mu    sync.Mutex
	last  time.Time
	drawn bool
}

// New returns a bar on f, or nil when f is not a terminal.
func New(f *os.File, label string) *Bar {
	if !IsTerminal(f) {
		return nil
	}
	return NewWriter(f, label, true)
}

// NewWriter returns a bar on w, or nil when enabled is false.
func NewWriter(w io.Writer, label string, enabled bool) *Bar {
	if !enabled {
		return nil
	}
	return &Bar{
		w:     w,
		label: label,
		model: progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
	}
}

// IsTerminal reports whether f is an interactive terminal.
func IsTerminal(f *os.File) bool {
	if f == nil {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Update redraws the bar for done of total. Calls closer together than the
// refresh interval are dropped, except the final one.
func (b *Bar) Update(done, total uint64) {
	if b == nil || total == 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	if done < total && now.Sub(b.last) < refresh {
		return
	}
	b.last = now
	b.draw(done, total)
}

func (b *Bar) draw(done, total uint64) {
	pct := float64(done) / float64(total)
	fmt.Fprintf(b.w, "\r%s %s %d/%d", b.label, b.model.ViewAs(pct), done, total)
	b.drawn = true
}

// Finish ends the bar line so following output starts on a fresh line.
func (b *Bar) Finish() {
	if b == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.drawn {
		fmt.Fprintln(b.w)
		b.drawn = false
	}
}
