// Package ui renders pipeline progress and summaries on the terminal.
package ui

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/desertthunder/isrcx/internal/tasks"
	"github.com/mattn/go-isatty"
)

// plainEvery is how many processed lookups pass between plain progress lines.
const plainEvery = 50

// IsTerminal reports whether w is an interactive terminal.
func IsTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// Console draws progress updates. On a terminal it redraws a single bar line in
// place; otherwise it prints a plain line every [plainEvery] lookups.
type Console struct {
	w   io.Writer
	tty bool
	bar progress.Model

	total     int
	found     int
	notFound  int
	failed    int
	cached    int
	retries   int
	submitted int
	drawn     bool
}

// NewConsole creates a console writing to w.
func NewConsole(w io.Writer, tty bool) *Console {
	return &Console{
		w:   w,
		tty: tty,
		bar: progress.New(progress.WithDefaultGradient(), progress.WithWidth(30)),
	}
}

// Consume applies updates until the channel is closed, then finishes the line.
func (c *Console) Consume(updates <-chan tasks.ProgressUpdate) {
	for u := range updates {
		c.Apply(u)
	}
	c.Done()
}

// Apply folds an update into the counters and draws when due.
func (c *Console) Apply(u tasks.ProgressUpdate) {
	switch u.Phase {
	case tasks.Planned:
		c.total = u.Delta
	case tasks.Found:
		c.found += u.Delta
	case tasks.NotFound:
		c.notFound += u.Delta
	case tasks.Failed:
		c.failed += u.Delta
	case tasks.Cached:
		c.cached += u.Delta
	case tasks.Retry:
		c.retries += u.Delta
	case tasks.SubmitChunk:
		c.submitted += u.Delta
		c.println(fmt.Sprintf("%s (%d/%d)", u.Message, c.submitted, c.found))
		return
	case tasks.CreatePlaylist:
		c.println(Success(u.Message))
		return
	default:
		return
	}

	if c.tty {
		fmt.Fprint(c.w, "\r"+c.Line())
		c.drawn = true
		return
	}
	if u.Phase == tasks.Found || u.Phase == tasks.NotFound {
		if p := c.Processed(); p > 0 && p%plainEvery == 0 {
			fmt.Fprintln(c.w, c.Line())
		}
	}
}

// Processed returns how many lookups have completed.
func (c *Console) Processed() int {
	return c.found + c.notFound
}

// Line renders the current counters.
func (c *Console) Line() string {
	var b strings.Builder
	if c.tty && c.total > 0 {
		b.WriteString(c.bar.ViewAs(float64(c.Processed()) / float64(c.total)))
		b.WriteString(" ")
	}
	if c.total > 0 {
		fmt.Fprintf(&b, "%d/%d searched", c.Processed(), c.total)
	} else {
		fmt.Fprintf(&b, "%d searched", c.Processed())
	}
	fmt.Fprintf(&b, ", %d found, %d not found", c.found, c.notFound)
	if c.failed > 0 {
		fmt.Fprintf(&b, " (%d failed)", c.failed)
	}
	if c.cached > 0 {
		fmt.Fprintf(&b, ", %d cached", c.cached)
	}
	if c.retries > 0 {
		fmt.Fprintf(&b, ", %d retries", c.retries)
	}
	return b.String()
}

// Done terminates the progress line.
func (c *Console) Done() {
	if c.tty {
		if c.drawn {
			fmt.Fprintln(c.w)
			c.drawn = false
		}
		return
	}
	if c.Processed()%plainEvery != 0 {
		fmt.Fprintln(c.w, c.Line())
	}
}

// println prints msg on its own line, ending any in-place bar first.
func (c *Console) println(msg string) {
	if c.drawn {
		fmt.Fprintln(c.w)
		c.drawn = false
	}
	fmt.Fprintln(c.w, msg)
}
