// ABOUTME: Serialized line writer for the master's stdout protocol.
// ABOUTME: Agent readers and the dispatcher share one Writer so lines never interleave.

// Package transcript writes the line-oriented output that graders diff
// against expected results.
package transcript

import (
	"fmt"
	"io"
	"strings"
	"sync"
)

// Writer emits whole lines to an underlying stream under a mutex.
type Writer struct {
	mu  sync.Mutex
	out io.Writer
}

// New wraps out in a Writer.
func New(out io.Writer) *Writer {
	return &Writer{out: out}
}

// Line writes s followed by a newline. A trailing newline already present
// in s is not doubled.
func (w *Writer) Line(s string) {
	s = strings.TrimSuffix(s, "\n")

	w.mu.Lock()
	defer w.mu.Unlock()
	// Write errors on stdout are not recoverable from here.
	_, _ = io.WriteString(w.out, s+"\n")
}

// Linef formats according to format and writes the result as one line.
func (w *Writer) Linef(format string, args ...any) {
	w.Line(fmt.Sprintf(format, args...))
}
