// Package executortest provides a scriptable executor.Runner for tests.
package executortest

import (
	"context"
	"io"
	"strings"
	"sync"

	"kubetestenv/internal/executor"
)

// Call is one recorded invocation. Stdin is drained into StdinData.
type Call struct {
	executor.Command
	StdinData string
}

// Line joins binary and args for substring assertions.
func (c Call) Line() string {
	return strings.TrimSpace(c.Binary + " " + strings.Join(c.Args, " "))
}

// HandlerFunc answers a command.
type HandlerFunc func(c Call) (executor.Result, error)

// Runner records every command and answers it with Handler.
// A nil Handler answers every command with an empty successful result.
type Runner struct {
	Handler HandlerFunc

	mu    sync.Mutex
	calls []Call
}

// Execute implements executor.Runner.
func (r *Runner) Execute(ctx context.Context, cmd executor.Command) (executor.Result, error) {
	call := Call{Command: cmd}
	if cmd.Stdin != nil {
		data, err := io.ReadAll(cmd.Stdin)
		if err != nil {
			return executor.Result{}, err
		}
		call.StdinData = string(data)
	}

	r.mu.Lock()
	r.calls = append(r.calls, call)
	handler := r.Handler
	r.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return executor.Result{}, err
	}
	if handler == nil {
		return executor.Result{}, nil
	}
	return handler(call)
}

// Calls returns a copy of the recorded calls.
func (r *Runner) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Call, len(r.calls))
	copy(out, r.calls)
	return out
}

// CallsContaining returns the calls whose command line contains every fragment.
func (r *Runner) CallsContaining(fragments ...string) []Call {
	var out []Call
	for _, c := range r.Calls() {
		line := c.Line()
		match := true
		for _, f := range fragments {
			if !strings.Contains(line, f) {
				match = false
				break
			}
		}
		if match {
			out = append(out, c)
		}
	}
	return out
}

// Reset forgets recorded calls.
func (r *Runner) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = nil
}

// OK is a successful result with the given stdout.
func OK(stdout string) (executor.Result, error) {
	return executor.Result{Stdout: stdout}, nil
}

// Fail is a non-zero exit with the given stderr.
func Fail(c Call, stderr string) (executor.Result, error) {
	res := executor.Result{Stderr: stderr, ExitCode: 1}
	return res, &executor.ExternalCommandError{
		Binary:   c.Binary,
		Args:     c.Args,
		ExitCode: 1,
		Stderr:   stderr,
	}
}
