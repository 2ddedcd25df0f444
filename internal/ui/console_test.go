package ui

import (
	"bytes"
	"strings"
	"testing"

	"github.com/desertthunder/isrcx/internal/tasks"
)

func TestConsole(t *testing.T) {
	t.Run("Counters", func(t *testing.T) {
		var buf bytes.Buffer
		c := NewConsole(&buf, false)
		c.Apply(tasks.ProgressUpdate{Phase: tasks.Planned, Delta: 3})
		c.Apply(tasks.ProgressUpdate{Phase: tasks.Found, Delta: 1})
		c.Apply(tasks.ProgressUpdate{Phase: tasks.Failed, Delta: 1})
		c.Apply(tasks.ProgressUpdate{Phase: tasks.NotFound, Delta: 1})
		c.Apply(tasks.ProgressUpdate{Phase: tasks.Retry, Delta: 2})

		line := c.Line()
		for _, want := range []string{"2/3 searched", "1 found", "1 not found", "(1 failed)", "2 retries"} {
			if !strings.Contains(line, want) {
				t.Errorf("expected %q in %q", want, line)
			}
		}
		if buf.Len() != 0 {
			t.Errorf("expected no plain output before %d lookups, got %q", plainEvery, buf.String())
		}
	})

	t.Run("Plain Output Is Periodic", func(t *testing.T) {
		var buf bytes.Buffer
		ch := make(chan tasks.ProgressUpdate, plainEvery+10)
		for i := 0; i < plainEvery+1; i++ {
			ch <- tasks.ProgressUpdate{Phase: tasks.Found, Delta: 1}
		}
		close(ch)

		NewConsole(&buf, false).Consume(ch)

		lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
		if len(lines) != 2 {
			t.Fatalf("expected a periodic and a final line, got %q", buf.String())
		}
		if !strings.HasPrefix(lines[1], "51 searched") {
			t.Errorf("unexpected final line %q", lines[1])
		}
	})

	t.Run("Terminal Redraws In Place", func(t *testing.T) {
		var buf bytes.Buffer
		c := NewConsole(&buf, true)
		c.Apply(tasks.ProgressUpdate{Phase: tasks.Planned, Delta: 2})
		c.Apply(tasks.ProgressUpdate{Phase: tasks.Found, Delta: 1})
		c.Apply(tasks.ProgressUpdate{Phase: tasks.Found, Delta: 1})
		c.Done()

		out := buf.String()
		if strings.Count(out, "\r") != 3 {
			t.Errorf("expected 3 redraws, got %q", out)
		}
		if !strings.HasSuffix(out, "\n") {
			t.Error("expected progress line to be terminated")
		}
		if !strings.Contains(out, "2/2 searched") {
			t.Errorf("expected final counts, got %q", out)
		}
	})

	t.Run("Events On Their Own Line", func(t *testing.T) {
		var buf bytes.Buffer
		c := NewConsole(&buf, true)
		c.Apply(tasks.ProgressUpdate{Phase: tasks.Found, Delta: 1})
		c.Apply(tasks.ProgressUpdate{Phase: tasks.SubmitChunk, Delta: 1, Message: "Added 1 tracks to playlist"})

		if !strings.Contains(buf.String(), "\nAdded 1 tracks to playlist (1/1)\n") {
			t.Errorf("expected chunk message after the bar, got %q", buf.String())
		}
	})

	t.Run("IsTerminal", func(t *testing.T) {
		if IsTerminal(&bytes.Buffer{}) {
			t.Error("a buffer is not a terminal")
		}
	})
}
