package logs

import (
	"sync"

	"github.com/narvanalabs/codebuild-runner/internal/models"
)

const (
	// DefaultMaxLines is the default number of lines kept per build.
	DefaultMaxLines = 5000
)

// Container keeps the most recent log lines of one build. When full, the
// oldest tenth is dropped.
type Container struct {
	mu       sync.RWMutex
	lines    []*models.LogLine
	maxLines int
}

// NewContainer creates a container holding up to maxLines lines.
func NewContainer(maxLines int) *Container {
	if maxLines <= 0 {
		maxLines = DefaultMaxLines
	}
	return &Container{
		lines:    make([]*models.LogLine, 0, min(maxLines, 256)),
		maxLines: maxLines,
	}
}

// Add appends a line.
func (c *Container) Add(line *models.LogLine) {
	if line == nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.lines) >= c.maxLines {
		drop := max(c.maxLines/10, 1)
		c.lines = append(c.lines[:0], c.lines[drop:]...)
	}
	c.lines = append(c.lines, line)
}

// Last returns up to n of the most recent lines, oldest first.
func (c *Container) Last(n int) []*models.LogLine {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if n <= 0 || len(c.lines) == 0 {
		return nil
	}
	n = min(n, len(c.lines))

	out := make([]*models.LogLine, n)
	copy(out, c.lines[len(c.lines)-n:])
	return out
}

// Len returns the number of lines held.
func (c *Container) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.lines)
}
