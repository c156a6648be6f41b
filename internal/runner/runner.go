// Package runner executes short-lived probe subprocesses.
//
// Every command runs under a deadline, in its own process group where the
// platform supports it, and its failures are classified into ErrUnavailable
// (the binary could not be started) or ErrFailed (it started but did not
// finish cleanly).
package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os/exec"
	"strings"
	"time"

	"github.com/benaskins/gpuprobe/internal/logbuf"
)

// DefaultTimeout bounds a single subprocess when the caller sets no timeout.
const DefaultTimeout = 5 * time.Second

// stderrLines is how much stderr is kept for diagnostics.
const stderrLines = 8

var (
	// ErrUnavailable is returned when the binary is missing or cannot be executed.
	ErrUnavailable = errors.New("subprocess unavailable")

	// ErrFailed is returned on non-zero exit, timeout or cancellation.
	ErrFailed = errors.New("subprocess failed")
)

// Runner runs a command and returns its stdout.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// Result describes a finished (or failed) subprocess. It is attached to
// errors returned by Exec so callers can log exit codes and stderr.
type Result struct {
	Command  string
	ExitCode int
	Stderr   []string
	Duration time.Duration
}

// Error wraps a classified failure with the subprocess result.
type Error struct {
	Kind   error
	Result Result
	Err    error
	Detail string // last stderr line, if any
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%v: %s", e.Kind, e.Result.Command)
	if e.Result.ExitCode > 0 {
		msg += fmt.Sprintf(" (exit %d)", e.Result.ExitCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

// Is matches the taxonomy sentinel so errors.Is(err, ErrFailed) works.
func (e *Error) Is(target error) bool {
	return target == e.Kind
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Exec runs commands with os/exec.
type Exec struct {
	// Timeout bounds each Run call. Zero means DefaultTimeout.
	Timeout time.Duration
}

// New creates an Exec runner with the given per-command timeout.
func New(timeout time.Duration) *Exec {
	return &Exec{Timeout: timeout}
}

// Run executes name with args and returns stdout. A cancelled or expired
// context kills the whole process group.
func (r *Exec) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	timeout := r.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var stdout bytes.Buffer
	stderr := logbuf.New(stderrLines)

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = stderr
	cmd.WaitDelay = time.Second
	setProcessGroup(cmd)

	start := time.Now()
	err := cmd.Run()
	res := Result{
		Command:  strings.Join(append([]string{name}, args...), " "),
		Duration: time.Since(start),
		Stderr:   stderr.Lines(),
	}
	if err == nil {
		return stdout.Bytes(), nil
	}

	var detail string
	if last := stderr.Last(1); len(last) == 1 {
		detail = strings.TrimSpace(last[0])
	}
	return stdout.Bytes(), classify(ctx, res, err, detail)
}

func classify(ctx context.Context, res Result, err error, detail string) error {
	if errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrPermission) {
		return &Error{Kind: ErrUnavailable, Result: res, Err: err}
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		res.ExitCode = exitErr.ExitCode()
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		err = fmt.Errorf("%w after %s", ctxErr, res.Duration.Round(time.Millisecond))
	}
	return &Error{Kind: ErrFailed, Result: res, Err: err, Detail: detail}
}

// ResultOf extracts the subprocess result from an error returned by Run.
func ResultOf(err error) (Result, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Result, true
	}
	return Result{}, false
}
