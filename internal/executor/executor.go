// Package executor runs external binaries with a deadline and captured output.
package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"
	"time"

	"kubetestenv/internal/metrics"
	"kubetestenv/pkg/logging"
)

const subsystem = "Executor"

// DefaultTimeout applies when a Command does not set one.
const DefaultTimeout = 60 * time.Second

// waitDelay bounds how long Wait blocks on output pipes after the child was killed.
const waitDelay = 5 * time.Second

// Command describes a single invocation of an external binary.
type Command struct {
	// Binary is a name looked up on PATH or an absolute path.
	Binary string
	Args   []string
	// Timeout is the hard deadline for the child. Zero means DefaultTimeout.
	Timeout time.Duration
	// Env is added on top of the host environment.
	Env map[string]string
	// IsolateEnv drops the host environment and passes only Env.
	IsolateEnv bool
	// Stdin, when set, is streamed to the child's standard input.
	Stdin io.Reader
}

// Result holds the captured output of a finished command.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Duration time.Duration
}

// Runner executes commands. Consumers accept a Runner so tests can swap in fakes.
type Runner interface {
	Execute(ctx context.Context, cmd Command) (Result, error)
}

// Executor is the os/exec backed Runner.
type Executor struct{}

// New returns an Executor.
func New() *Executor {
	return &Executor{}
}

// LookPathFn resolves binaries; tests replace it.
var LookPathFn = exec.LookPath

// Execute runs cmd and waits for it. A non-zero exit yields *ExternalCommandError,
// an exceeded deadline yields *TimeoutError. In both cases the child has been reaped.
func (e *Executor) Execute(ctx context.Context, c Command) (Result, error) {
	if c.Binary == "" {
		return Result{}, errors.New("no binary given")
	}
	path, err := LookPathFn(c.Binary)
	if err != nil {
		return Result{}, fmt.Errorf("executable %q not found: %w", c.Binary, err)
	}

	timeout := c.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, path, c.Args...)
	cmd.Env = buildEnv(c.Env, c.IsolateEnv)
	cmd.WaitDelay = waitDelay
	// Own process group so a deadline also kills anything the binary spawned.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
	if c.Stdin != nil {
		cmd.Stdin = c.Stdin
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	name := filepath.Base(c.Binary)
	logging.Debug(subsystem, "running %s %v (timeout %s)", name, c.Args, timeout)

	start := time.Now()
	runErr := cmd.Run()
	res := Result{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}
	if cmd.ProcessState != nil {
		res.ExitCode = cmd.ProcessState.ExitCode()
	}

	if runErr == nil {
		metrics.ObserveCommand(name, metrics.OutcomeSuccess, res.Duration)
		return res, nil
	}

	// The parent context ending is the caller's cancellation, not our deadline.
	if ctx.Err() != nil {
		metrics.ObserveCommand(name, metrics.OutcomeFailure, res.Duration)
		return res, fmt.Errorf("%s %v: %w", name, c.Args, ctx.Err())
	}
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		metrics.ObserveCommand(name, metrics.OutcomeTimeout, res.Duration)
		logging.Warn(subsystem, "%s %v timed out after %s", name, c.Args, timeout)
		return res, &TimeoutError{
			Binary:  name,
			Args:    c.Args,
			Timeout: timeout,
			Stdout:  res.Stdout,
			Stderr:  res.Stderr,
		}
	}

	metrics.ObserveCommand(name, metrics.OutcomeFailure, res.Duration)
	var exitErr *exec.ExitError
	if errors.As(runErr, &exitErr) {
		logging.Debug(subsystem, "%s %v exited with code %d", name, c.Args, res.ExitCode)
		return res, &ExternalCommandError{
			Binary:   name,
			Args:     c.Args,
			ExitCode: res.ExitCode,
			Stdout:   res.Stdout,
			Stderr:   res.Stderr,
		}
	}
	return res, fmt.Errorf("failed to run %s: %w", name, runErr)
}

func buildEnv(extra map[string]string, isolate bool) []string {
	// A nil Env would make os/exec inherit the host environment.
	env := []string{}
	if !isolate {
		env = os.Environ()
	}
	for k, v := range extra {
		env = append(env, fmt.Sprintf("%s=%s", k, v))
	}
	return env
}
