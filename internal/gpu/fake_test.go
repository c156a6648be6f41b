package gpu

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/benaskins/gpuprobe/internal/runner"
)

const (
	frameworkCmd = "python3 -c " + frameworkScript
	displaysCmd  = "system_profiler SPDisplaysDataType"
	inventoryCmd = "system_profiler SPDisplaysDataType -json"
)

type reply struct {
	out string
	err error
}

// scriptedRunner answers commands from a fixed table. Unknown commands
// behave like a missing binary.
type scriptedRunner struct {
	mu      sync.Mutex
	replies map[string]reply
	calls   []string
}

func newScriptedRunner(replies map[string]reply) *scriptedRunner {
	return &scriptedRunner{replies: replies}
}

func (r *scriptedRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := strings.Join(append([]string{name}, args...), " ")

	r.mu.Lock()
	r.calls = append(r.calls, cmd)
	rep, ok := r.replies[cmd]
	r.mu.Unlock()

	if !ok {
		return nil, &runner.Error{Kind: runner.ErrUnavailable, Result: runner.Result{Command: cmd}}
	}
	return []byte(rep.out), rep.err
}

func (r *scriptedRunner) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

func exitErr(cmd string, code int) error {
	return &runner.Error{
		Kind:   runner.ErrFailed,
		Result: runner.Result{Command: cmd, ExitCode: code},
		Err:    fmt.Errorf("exit status %d", code),
	}
}

func ok(out string) reply { return reply{out: out} }

func failed(cmd string) reply { return reply{err: exitErr(cmd, 1)} }
