package cluster

import (
	"fmt"
	"strings"
	"time"
)

// NotReadyError is returned by Create when the cluster did not pass the
// readiness probes in time. LastOutput is what the final probe printed.
type NotReadyError struct {
	Cluster    string
	Timeout    time.Duration
	LastOutput string
}

func (e *NotReadyError) Error() string {
	msg := fmt.Sprintf("cluster %q is not ready after %s", e.Cluster, e.Timeout)
	if out := strings.TrimSpace(e.LastOutput); out != "" {
		msg += ": " + out
	}
	return msg
}

// InvalidInputError is returned for arguments the manager cannot act on.
type InvalidInputError struct {
	Op  string
	Msg string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("%s: invalid input: %s", e.Op, e.Msg)
}
