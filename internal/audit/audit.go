// Package audit provides an append-only history of probe invocations.
//
// Each probe served by the API or run from the CLI is recorded as one line of
// newline-delimited JSON. The history is for operators; probes never read it.
package audit

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/benaskins/gpuprobe/internal/logbuf"
)

// Source describes who asked for the probe.
type Source string

const (
	SourceAPI Source = "api"
	SourceCLI Source = "cli"
)

// Entry is a single probe record.
type Entry struct {
	Timestamp  time.Time `json:"ts"`
	Source     Source    `json:"source"`
	HasMPS     bool      `json:"has_mps"`
	GPUs       int       `json:"gpus"`
	DurationMS int64     `json:"duration_ms"`
	Status     int       `json:"status,omitempty"` // HTTP status for API probes
	Error      string    `json:"error,omitempty"`
}

// Logger writes probe entries to an append-only file.
type Logger struct {
	mu   sync.Mutex
	file *os.File
	path string
}

// NewLogger creates or opens a probe history file for appending.
func NewLogger(path string) (*Logger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("creating audit dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return nil, fmt.Errorf("opening audit log: %w", err)
	}
	return &Logger{file: f, path: path}, nil
}

// Path returns the file the logger appends to.
func (l *Logger) Path() string {
	return l.path
}

// Log writes a probe entry.
func (l *Logger) Log(entry Entry) error {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshaling audit entry: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, err := l.file.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("writing audit entry: %w", err)
	}
	return nil
}

// Close closes the audit log file.
func (l *Logger) Close() error {
	return l.file.Close()
}

// Tail returns the last n entries of the history at path, oldest first.
// A missing file yields no entries. Lines that do not decode are skipped.
func Tail(path string, n int) ([]Entry, error) {
	if n <= 0 {
		return nil, nil
	}

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening audit log: %w", err)
	}
	defer f.Close()

	ring := logbuf.New(n)
	if _, err := io.Copy(ring, f); err != nil {
		return nil, fmt.Errorf("reading audit log: %w", err)
	}

	var entries []Entry
	for _, line := range ring.Lines() {
		var e Entry
		if err := json.Unmarshal([]byte(line), &e); err != nil {
			continue
		}
		entries = append(entries, e)
	}
	return entries, nil
}
