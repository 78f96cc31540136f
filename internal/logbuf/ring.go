// Package logbuf provides a bounded in-memory trace of recent events.
// The update pipeline records one line per state transition here so
// callers can observe (or ignore) the finite trace after a run.
package logbuf

import (
	"strings"
	"sync"
	"time"
)

// Ring is a thread-safe ring buffer storing the last N lines.
type Ring struct {
	mu    sync.Mutex
	lines []string
	size  int
	pos   int
	full  bool
}

// New creates a ring buffer that stores the last n lines.
func New(n int) *Ring {
	return &Ring{
		lines: make([]string, n),
		size:  n,
	}
}

// Append records a line, evicting the oldest when full.
func (r *Ring) Append(line string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines[r.pos] = line
	r.pos = (r.pos + 1) % r.size
	if r.pos == 0 {
		r.full = true
	}
}

// Appendf records a timestamped line built from parts joined by spaces.
func (r *Ring) Appendf(parts ...string) {
	r.Append(time.Now().UTC().Format(time.RFC3339) + " " + strings.Join(parts, " "))
}

// Lines returns all stored lines in order, oldest first.
func (r *Ring) Lines() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.full {
		result := make([]string, r.pos)
		copy(result, r.lines[:r.pos])
		return result
	}

	result := make([]string, r.size)
	copy(result, r.lines[r.pos:])
	copy(result[r.size-r.pos:], r.lines[:r.pos])
	return result
}

// Last returns the last n lines. If fewer lines exist, returns all of them.
func (r *Ring) Last(n int) []string {
	all := r.Lines()
	if n >= len(all) {
		return all
	}
	return all[len(all)-n:]
}
