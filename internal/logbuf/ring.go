// Package logbuf keeps the tail of a line-oriented stream.
package logbuf

import (
	"bytes"
	"strings"
	"sync"
)

// Ring is a thread-safe ring buffer that stores the last N lines written to it.
// It implements io.Writer so it can be used as a subprocess's stderr or as the
// destination of an io.Copy over a log file.
type Ring struct {
	mu    sync.Mutex
	lines []string
	size  int
	pos   int
	full  bool
	// partial holds an incomplete line (no trailing newline yet)
	partial bytes.Buffer
}

// New creates a ring buffer that stores the last n lines. n < 1 is treated as 1.
func New(n int) *Ring {
	if n < 1 {
		n = 1
	}
	return &Ring{
		lines: make([]string, n),
		size:  n,
	}
}

// Write implements io.Writer. Splits input on newlines and stores each line.
func (r *Ring) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.partial.Write(p)

	for {
		line, err := r.partial.ReadString('\n')
		if err != nil {
			r.partial.Reset()
			r.partial.WriteString(line)
			break
		}
		r.add(strings.TrimRight(line, "\r\n"))
	}

	return len(p), nil
}

func (r *Ring) add(line string) {
	r.lines[r.pos] = line
	r.pos = (r.pos + 1) % r.size
	if r.pos == 0 {
		r.full = true
	}
}

// Lines returns all stored lines in order, oldest first. A trailing line
// without a newline is included as the last element but stays pending, so a
// later Write can still complete it.
func (r *Ring) Lines() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var result []string
	if r.full {
		result = make([]string, 0, r.size+1)
		result = append(result, r.lines[r.pos:]...)
		result = append(result, r.lines[:r.pos]...)
	} else {
		result = make([]string, r.pos, r.pos+1)
		copy(result, r.lines[:r.pos])
	}

	if r.partial.Len() > 0 {
		result = append(result, r.partial.String())
		if len(result) > r.size {
			result = result[1:]
		}
	}
	return result
}

// Last returns the last n lines. If fewer lines exist, returns all of them.
// n <= 0 returns nil.
func (r *Ring) Last(n int) []string {
	if n <= 0 {
		return nil
	}
	all := r.Lines()
	if n >= len(all) {
		return all
	}
	return all[len(all)-n:]
}
