package executor

import (
	"fmt"
	"strings"
	"time"
)

// ExternalCommandError is returned when a wrapped binary exits non-zero.
type ExternalCommandError struct {
	Binary   string
	Args     []string
	ExitCode int
	Stdout   string
	Stderr   string
}

func (e *ExternalCommandError) Error() string {
	msg := strings.TrimSpace(e.Stderr)
	if msg == "" {
		msg = strings.TrimSpace(e.Stdout)
	}
	if msg == "" {
		msg = "no output"
	}
	return fmt.Sprintf("%s %s exited with code %d: %s", e.Binary, strings.Join(e.Args, " "), e.ExitCode, msg)
}

// TimeoutError is returned when a command does not finish within its deadline.
// Whatever the child wrote before it was killed is kept for diagnostics.
type TimeoutError struct {
	Binary  string
	Args    []string
	Timeout time.Duration
	Stdout  string
	Stderr  string
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s %s timed out after %s", e.Binary, strings.Join(e.Args, " "), e.Timeout)
}
