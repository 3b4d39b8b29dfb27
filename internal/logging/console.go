// Package logging provides structured logging and the serialized console
// surface shared by analysis workers.
//
// Two sinks exist side by side. Logger is a structured slog logger for
// operational events. Console is the human-readable progress and diagnostic
// stream: every write happens under one mutex so a task's captured output and
// its failure diagnostic always appear as a contiguous block.
package logging

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/mattn/go-isatty"
)

// ConsolePrefix labels every console line written by the scheduler.
const ConsolePrefix = "srcanalyze: "

// Console is a lock-guarded pair of writers.
type Console struct {
	mu     sync.Mutex
	out    io.Writer
	errOut io.Writer
	color  bool
}

// NewConsole creates a console writing progress to out and diagnostics to errOut.
// ANSI colour is enabled only when out is a terminal and NO_COLOR is unset.
func NewConsole(out, errOut io.Writer) *Console {
	if out == nil {
		out = io.Discard
	}
	if errOut == nil {
		errOut = out
	}
	return &Console{
		out:    out,
		errOut: errOut,
		color:  isTerminal(out) && os.Getenv("NO_COLOR") == "",
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Line writes one prefixed progress line.
func (c *Console) Line(format string, args ...interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.out, ConsolePrefix+format+"\n", args...)
}

// Block writes a task's header line, its captured output and its diagnostic,
// each only if present, without letting another task's writes interleave.
// The header names the task so the block reads on its own.
func (c *Console) Block(header string, output []byte, diagnostic string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if header != "" {
		_, _ = io.WriteString(c.out, ConsolePrefix+header+"\n")
	}
	if len(output) > 0 {
		_, _ = c.out.Write(output)
		if output[len(output)-1] != '\n' {
			_, _ = io.WriteString(c.out, "\n")
		}
	}
	if diagnostic != "" {
		_, _ = io.WriteString(c.errOut, c.paint(ConsolePrefix+diagnostic))
		if diagnostic[len(diagnostic)-1] != '\n' {
			_, _ = io.WriteString(c.errOut, "\n")
		}
	}
}

// paint wraps failure text in red when colour is enabled.
func (c *Console) paint(s string) string {
	if !c.color {
		return s
	}
	return "\033[31m" + s + "\033[0m"
}
