// Package portforward supervises a background "kubectl port-forward" process.
//
// A Forward moves through idle, starting, active and stopping. Start detects
// readiness by scanning kubectl's output for the "Forwarding from" line; Stop
// terminates kubectl and then probes the local port until nothing answers.
package portforward

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"k8s.io/apimachinery/pkg/util/wait"

	"kubetestenv/internal/metrics"
	"kubetestenv/pkg/logging"
)

const subsystem = "PortForward"

// ReadyMarker is the line kubectl prints once the listener is up.
const ReadyMarker = "Forwarding from"

const (
	// DefaultTimeout bounds both startup detection and the release probe.
	DefaultTimeout = 90 * time.Second
	// DefaultNamespace is used when Config.Namespace is empty.
	DefaultNamespace = "default"

	defaultPollInterval = time.Second
	defaultStopGrace    = 5 * time.Second
)

// State is the lifecycle position of a Forward.
type State int

const (
	StateIdle State = iota
	StateStarting
	StateActive
	StateStopping
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStarting:
		return "starting"
	case StateActive:
		return "active"
	case StateStopping:
		return "stopping"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Config describes the forward to supervise.
type Config struct {
	// Target is a kubectl resource reference such as "pod/nginx" or "svc/web".
	Target     string
	Namespace  string
	LocalPort  int
	RemotePort int
	Timeout    time.Duration

	Kubeconfig string
	Context    string
	// Binary is the kubectl executable, "kubectl" when empty.
	Binary string
	// OnStop, when set, is called each time Stop returns the forward to StateIdle.
	OnStop func(*Forward)
}

// Forward is one supervised kubectl port-forward. It is not safe to share
// a local port between two forwards.
type Forward struct {
	cfg Config

	pollInterval time.Duration
	stopGrace    time.Duration

	mu      sync.Mutex
	state   State
	cmd     *exec.Cmd
	logFile string
	lastLog string
	exited  chan struct{}
}

// New validates cfg and returns an idle Forward.
func New(cfg Config) (*Forward, error) {
	if cfg.Target == "" {
		return nil, errors.New("port-forward target is required")
	}
	if cfg.LocalPort <= 0 || cfg.LocalPort > 65535 {
		return nil, fmt.Errorf("invalid local port %d", cfg.LocalPort)
	}
	if cfg.RemotePort <= 0 || cfg.RemotePort > 65535 {
		return nil, fmt.Errorf("invalid remote port %d", cfg.RemotePort)
	}
	if cfg.Kubeconfig == "" {
		return nil, errors.New("port-forward needs a kubeconfig, did you create the cluster?")
	}
	if cfg.Namespace == "" {
		cfg.Namespace = DefaultNamespace
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Binary == "" {
		cfg.Binary = "kubectl"
	}
	return &Forward{
		cfg:          cfg,
		pollInterval: defaultPollInterval,
		stopGrace:    defaultStopGrace,
	}, nil
}

// Config returns the forward's configuration with defaults applied.
func (f *Forward) Config() Config { return f.cfg }

// LocalAddress is the address the forward listens on.
func (f *Forward) LocalAddress() string {
	return net.JoinHostPort("127.0.0.1", strconv.Itoa(f.cfg.LocalPort))
}

// State reports the current lifecycle state.
func (f *Forward) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Args is the kubectl command line used by Start.
func (f *Forward) Args() []string {
	args := []string{"--kubeconfig", f.cfg.Kubeconfig}
	if f.cfg.Context != "" {
		args = append(args, "--context", f.cfg.Context)
	}
	return append(args,
		"port-forward", f.cfg.Target,
		"--namespace", f.cfg.Namespace,
		fmt.Sprintf("%d:%d", f.cfg.LocalPort, f.cfg.RemotePort),
		fmt.Sprintf("--pod-running-timeout=%ds", int(f.cfg.Timeout.Seconds())),
	)
}

// Log returns what kubectl printed so far. After Stop it returns the output
// captured before the scratch file was removed.
func (f *Forward) Log() string {
	f.mu.Lock()
	path, last := f.logFile, f.lastLog
	f.mu.Unlock()
	if path == "" {
		return last
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return last
	}
	return string(data)
}

// Start launches kubectl and blocks until it reports forwarding, the child
// exits, Timeout elapses or ctx ends. On failure the child is stopped and the
// forward is left in StateFailed; Stop returns it to StateIdle.
func (f *Forward) Start(ctx context.Context) error {
	f.mu.Lock()
	if f.state != StateIdle {
		f.mu.Unlock()
		return ErrAlreadyStarted
	}
	f.state = StateStarting
	f.mu.Unlock()

	logFile, err := os.CreateTemp("", fmt.Sprintf("kubetestenv-pf-%d-*.log", f.cfg.LocalPort))
	if err != nil {
		f.setState(StateFailed)
		return fmt.Errorf("failed to create port-forward log file: %w", err)
	}

	cmd := exec.Command(f.cfg.Binary, f.Args()...)
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	logging.Info(subsystem, "Starting port-forward %s %d:%d in namespace %s", f.cfg.Target, f.cfg.LocalPort, f.cfg.RemotePort, f.cfg.Namespace)
	if err := cmd.Start(); err != nil {
		logFile.Close()
		os.Remove(logFile.Name())
		f.setState(StateFailed)
		return fmt.Errorf("failed to start %s port-forward: %w", f.cfg.Binary, err)
	}
	// The child holds its own descriptor.
	logFile.Close()

	exited := make(chan struct{})
	go func() {
		_ = cmd.Wait()
		close(exited)
	}()

	f.mu.Lock()
	f.cmd = cmd
	f.logFile = logFile.Name()
	f.exited = exited
	f.mu.Unlock()

	childExited := false
	err = wait.PollUntilContextTimeout(ctx, f.pollInterval, f.cfg.Timeout, true, func(context.Context) (bool, error) {
		// Read before checking for exit so a marker written just before exiting is not missed.
		found := strings.Contains(f.Log(), ReadyMarker)
		if !found {
			select {
			case <-exited:
				childExited = true
				metrics.ObservePoll(metrics.LoopForwardStart, false)
				return false, errors.New("kubectl exited")
			default:
			}
		}
		metrics.ObservePoll(metrics.LoopForwardStart, found)
		return found, nil
	})
	if err == nil {
		f.setState(StateActive)
		metrics.ForwardStarted()
		logging.Info(subsystem, "Port-forward %s active on %s", f.cfg.Target, f.LocalAddress())
		return nil
	}

	captured := f.Log()
	f.terminate()
	f.dropLogFile(captured)
	f.setState(StateFailed)

	if ctx.Err() != nil {
		return fmt.Errorf("port-forward %s start interrupted: %w", f.cfg.Target, ctx.Err())
	}
	startErr := &StartError{
		Target:    f.cfg.Target,
		LocalPort: f.cfg.LocalPort,
		Timeout:   f.cfg.Timeout,
		Exited:    childExited,
		Log:       captured,
	}
	logging.Error(subsystem, startErr, "Port-forward %s failed to start", f.cfg.Target)
	return startErr
}

// Stop terminates kubectl and waits until the local port no longer accepts
// connections. Stop on an idle forward is a no-op.
func (f *Forward) Stop(ctx context.Context) error {
	f.mu.Lock()
	switch f.state {
	case StateIdle:
		f.mu.Unlock()
		return nil
	case StateFailed:
		// Start already cleaned up after itself.
		f.state = StateIdle
		f.mu.Unlock()
		f.stopped()
		return nil
	case StateStarting, StateStopping:
		s := f.state
		f.mu.Unlock()
		return fmt.Errorf("port-forward is %s", s)
	}
	f.state = StateStopping
	f.mu.Unlock()

	logging.Info(subsystem, "Stopping port-forward %s on %s", f.cfg.Target, f.LocalAddress())
	captured := f.Log()
	f.terminate()
	f.dropLogFile(captured)
	metrics.ForwardStopped()

	addr := f.LocalAddress()
	var answeredBy string
	err := wait.PollUntilContextTimeout(ctx, f.pollInterval, f.cfg.Timeout, true, func(context.Context) (bool, error) {
		conn, err := net.DialTimeout("tcp", addr, f.pollInterval)
		if err != nil {
			metrics.ObservePoll(metrics.LoopForwardStop, true)
			return true, nil
		}
		answeredBy = conn.RemoteAddr().String()
		conn.Close()
		metrics.ObservePoll(metrics.LoopForwardStop, false)
		return false, nil
	})
	if err != nil {
		f.setState(StateFailed)
		if ctx.Err() != nil {
			return fmt.Errorf("port-forward %s stop interrupted: %w", f.cfg.Target, ctx.Err())
		}
		stopErr := &StopError{
			LocalPort:  f.cfg.LocalPort,
			Timeout:    f.cfg.Timeout,
			AnsweredBy: answeredBy,
			Log:        captured,
		}
		logging.Error(subsystem, stopErr, "Port-forward %s did not release its port", f.cfg.Target)
		return stopErr
	}

	f.setState(StateIdle)
	logging.Debug(subsystem, "Local port %d released", f.cfg.LocalPort)
	f.stopped()
	return nil
}

func (f *Forward) stopped() {
	if f.cfg.OnStop != nil {
		f.cfg.OnStop(f)
	}
}

// Do starts the forward, runs fn and always stops the forward again, also
// when fn fails or panics. A Stop failure is reported only if fn succeeded.
func (f *Forward) Do(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if err := f.Start(ctx); err != nil {
		return err
	}
	defer func() {
		// Stop must run on a context that outlives a cancelled caller.
		stopErr := f.Stop(context.WithoutCancel(ctx))
		if err == nil {
			err = stopErr
		}
	}()
	return fn(ctx)
}

// terminate sends SIGTERM, escalating to SIGKILL after the grace period,
// and waits for the child to be reaped.
func (f *Forward) terminate() {
	f.mu.Lock()
	cmd, exited := f.cmd, f.exited
	f.cmd, f.exited = nil, nil
	f.mu.Unlock()
	if cmd == nil || cmd.Process == nil {
		return
	}

	select {
	case <-exited:
		return
	default:
	}
	if err := cmd.Process.Signal(syscall.SIGTERM); err != nil {
		logging.Debug(subsystem, "SIGTERM to pid %d failed: %v", cmd.Process.Pid, err)
	}
	select {
	case <-exited:
	case <-time.After(f.stopGrace):
		logging.Warn(subsystem, "kubectl pid %d ignored SIGTERM, killing", cmd.Process.Pid)
		_ = cmd.Process.Kill()
		<-exited
	}
}

func (f *Forward) dropLogFile(captured string) {
	f.mu.Lock()
	path := f.logFile
	f.logFile = ""
	f.lastLog = captured
	f.mu.Unlock()
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		logging.Warn(subsystem, "Could not remove port-forward log %s: %v", path, err)
	}
}

func (f *Forward) setState(s State) {
	f.mu.Lock()
	f.state = s
	f.mu.Unlock()
}
