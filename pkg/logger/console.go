package logger

import (
	"fmt"
	"io"
	"strings"
	"sync"
)

// Console is the operator-visible build log. Every line is written through
// immediately; nothing is buffered.
type Console struct {
	mu sync.Mutex
	w  io.Writer
}

// NewConsole creates a console writing to w.
func NewConsole(w io.Writer) *Console {
	return &Console{w: w}
}

// Log writes a message prefixed with the runner tag. Non-empty secondary
// messages are written on their own line, indented.
func (c *Console) Log(message string, secondary ...string) {
	if c == nil || c.w == nil {
		return
	}

	var b strings.Builder
	b.WriteString("[codebuild-runner] ")
	b.WriteString(message)
	for _, s := range secondary {
		if s == "" {
			continue
		}
		b.WriteString("\n\t> ")
		b.WriteString(s)
	}
	b.WriteByte('\n')

	c.mu.Lock()
	defer c.mu.Unlock()
	io.WriteString(c.w, b.String())
}

// Logf formats and writes a message.
func (c *Console) Logf(format string, args ...any) {
	c.Log(fmt.Sprintf(format, args...))
}

// Lines writes raw build log lines without the runner tag.
func (c *Console) Lines(lines []string) {
	if c == nil || c.w == nil || len(lines) == 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, line := range lines {
		io.WriteString(c.w, strings.TrimRight(line, "\n")+"\n")
	}
}
