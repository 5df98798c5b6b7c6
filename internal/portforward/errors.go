package portforward

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrAlreadyStarted is returned by Start when the forward is not idle.
var ErrAlreadyStarted = errors.New("port-forward already started")

// StartError is returned when kubectl did not report a listening forward in time.
// Log holds everything kubectl printed.
type StartError struct {
	Target    string
	LocalPort int
	Timeout   time.Duration
	Exited    bool
	Log       string
}

func (e *StartError) Error() string {
	reason := fmt.Sprintf("not forwarding after %s", e.Timeout)
	if e.Exited {
		reason = "kubectl exited before forwarding"
	}
	msg := fmt.Sprintf("port-forward %s on local port %d: %s", e.Target, e.LocalPort, reason)
	if log := strings.TrimSpace(e.Log); log != "" {
		msg += "\n" + log
	}
	return msg
}

// StopError is returned when the local port still accepts connections after Stop.
// AnsweredBy is the address of the last successful dial and Log the output
// kubectl produced before it was stopped.
type StopError struct {
	LocalPort  int
	Timeout    time.Duration
	AnsweredBy string
	Log        string
}

func (e *StopError) Error() string {
	msg := fmt.Sprintf("local port %d still bound %s after stopping port-forward", e.LocalPort, e.Timeout)
	if e.AnsweredBy != "" {
		msg += fmt.Sprintf(" (last answered at %s)", e.AnsweredBy)
	}
	if log := strings.TrimSpace(e.Log); log != "" {
		msg += "\n" + log
	}
	return msg
}
