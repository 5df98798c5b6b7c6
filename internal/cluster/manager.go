// Package cluster drives the lifecycle of ephemeral test clusters: create,
// readiness polling, reset and delete, plus the kubectl backed operations
// tests need against them.
package cluster

import (
	"context"
	"errors"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"time"

	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/util/wait"
	"k8s.io/apimachinery/pkg/version"
	"k8s.io/client-go/tools/clientcmd"

	"kubetestenv/internal/config"
	"kubetestenv/internal/executor"
	"kubetestenv/internal/kubectl"
	"kubetestenv/internal/metrics"
	"kubetestenv/internal/portforward"
	"kubetestenv/pkg/logging"
)

const subsystem = "Cluster"

// NamePrefix is prepended to manager names so test clusters are recognisable.
const NamePrefix = "kubetestenv-"

const (
	defaultSettleDelay  = time.Second
	defaultPollInterval = time.Second
	// existingClusterProbe bounds the readiness check that lets Create skip
	// bootstrapping a cluster that is already up.
	existingClusterProbe = 2 * time.Second
	// providerGrace lets a provider report its own timeout before ours fires.
	providerGrace = 30 * time.Second
)

// For mocking in tests
var createTempKubeconfig = func(name string) (string, error) {
	f, err := os.CreateTemp("", name+"-kubeconfig-*")
	if err != nil {
		return "", err
	}
	path := f.Name()
	return path, f.Close()
}

// CreateOptions tune a single Create call.
type CreateOptions struct {
	// Options replace the manager's options when set.
	Options *config.ClusterOptions
	// ReadyTimeout bounds readiness polling after bootstrap.
	ReadyTimeout time.Duration
	// ProviderArgs are appended to the provider's create command.
	ProviderArgs []string
}

// LogOptions select the container and namespace for Logs.
type LogOptions struct {
	Container string
	Namespace string
}

// Manager owns one test cluster. Lifecycle calls are serialized; sharing a
// kubeconfig between managers is not supported.
type Manager struct {
	baseName      string
	provider      Provider
	binaryPath    string
	runner        executor.Runner
	kubectlBinary string
	settleDelay   time.Duration
	pollInterval  time.Duration

	// lifecycle serializes Create, Delete and Reset.
	lifecycle sync.Mutex

	mu           sync.Mutex
	opts         config.ClusterOptions
	allocated    bool
	providerFile *config.ProviderFile
	lastCreate   CreateOptions
	lastProbe    string
	forwards     []*portforward.Forward
}

// Option configures a Manager.
type Option func(*Manager)

// WithRunner replaces the executor used for provider and kubectl commands.
func WithRunner(r executor.Runner) Option {
	return func(m *Manager) { m.runner = r }
}

// WithKubectl sets the kubectl binary.
func WithKubectl(binary string) Option {
	return func(m *Manager) {
		if binary != "" {
			m.kubectlBinary = binary
		}
	}
}

// WithOptions sets the initial cluster options.
func WithOptions(o config.ClusterOptions) Option {
	return func(m *Manager) { m.opts = o }
}

// WithSettleDelay changes the pause after Delete.
func WithSettleDelay(d time.Duration) Option {
	return func(m *Manager) { m.settleDelay = d }
}

// WithPollInterval changes the readiness polling interval.
func WithPollInterval(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.pollInterval = d
		}
	}
}

// NewManager returns a manager for the cluster called NamePrefix+name on
// provider. The provider binary must be installed.
func NewManager(name string, provider Provider, opts ...Option) (*Manager, error) {
	if provider == nil {
		return nil, errors.New("no provider given")
	}
	m := &Manager{
		baseName:      name,
		provider:      provider,
		runner:        executor.New(),
		kubectlBinary: kubectl.DefaultBinary,
		settleDelay:   defaultSettleDelay,
		pollInterval:  defaultPollInterval,
	}
	for _, o := range opts {
		o(m)
	}
	m.opts = m.opts.WithDefaults()
	if err := m.opts.Validate(); err != nil {
		return nil, err
	}
	if m.opts.ProviderConfig != "" {
		pf, err := config.LoadProviderFile(m.opts.ProviderConfig)
		if err != nil {
			return nil, err
		}
		m.providerFile = pf
	}

	if bin := provider.Binary(); bin != "" {
		path, err := executor.LookPathFn(bin)
		if err != nil {
			return nil, fmt.Errorf("%s executable not found: %w", bin, err)
		}
		m.binaryPath = path
	}
	return m, nil
}

// Name is the cluster name: the one defined by the provider config, else
// the explicit ClusterName option, else NamePrefix plus the manager name.
func (m *Manager) Name() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.nameLocked()
}

func (m *Manager) nameLocked() string {
	if m.providerFile != nil && m.providerFile.Name != "" {
		return m.providerFile.Name
	}
	if m.opts.ClusterName != "" {
		return m.opts.ClusterName
	}
	return NamePrefix + m.baseName
}

// Provider returns the provider the manager was built with.
func (m *Manager) Provider() Provider { return m.provider }

// Options returns a copy of the current options.
func (m *Manager) Options() config.ClusterOptions {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.opts
}

// KubeconfigPath is the kubeconfig of the cluster, empty before Create.
func (m *Manager) KubeconfigPath() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.opts.KubeconfigPath
}

// Context is the kubeconfig context in use, empty for the current context.
func (m *Manager) Context() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.opts.KubeContext
}

// ProviderFile is the parsed provider config, nil when none is set.
func (m *Manager) ProviderFile() *config.ProviderFile {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.providerFile
}

// Kubectl returns a client bound to the cluster's kubeconfig and context.
func (m *Manager) Kubectl() (*kubectl.Client, error) {
	m.mu.Lock()
	path, kubeContext := m.opts.KubeconfigPath, m.opts.KubeContext
	m.mu.Unlock()
	return kubectl.New(path,
		kubectl.WithContext(kubeContext),
		kubectl.WithBinary(m.kubectlBinary),
		kubectl.WithRunner(m.runner),
	)
}

func (m *Manager) runProvider(ctx context.Context, args []string, env map[string]string) (executor.Result, error) {
	timeout := m.Options().ClusterTimeout + providerGrace
	return m.runner.Execute(ctx, executor.Command{
		Binary:  m.binaryPath,
		Args:    args,
		Timeout: timeout,
		Env:     env,
	})
}

// Create brings the cluster up and waits until it is ready. Creating a
// cluster that already answers the readiness probes does not bootstrap it again.
func (m *Manager) Create(ctx context.Context, co CreateOptions) error {
	m.lifecycle.Lock()
	defer m.lifecycle.Unlock()
	return m.create(ctx, co)
}

func (m *Manager) create(ctx context.Context, co CreateOptions) error {
	if co.ReadyTimeout <= 0 {
		co.ReadyTimeout = config.DefaultReadyTimeout
	}

	m.mu.Lock()
	if co.Options != nil {
		opts := co.Options.WithDefaults()
		if err := opts.Validate(); err != nil {
			m.mu.Unlock()
			return err
		}
		if opts.ProviderConfig != m.opts.ProviderConfig || m.providerFile == nil {
			m.providerFile = nil
			if opts.ProviderConfig != "" {
				pf, err := config.LoadProviderFile(opts.ProviderConfig)
				if err != nil {
					m.mu.Unlock()
					return err
				}
				m.providerFile = pf
			}
		}
		if opts.KubeconfigPath == "" && m.allocated {
			// Keep the kubeconfig allocated by an earlier Create.
			opts.KubeconfigPath = m.opts.KubeconfigPath
		} else if opts.KubeconfigPath != m.opts.KubeconfigPath {
			if m.allocated {
				removeKubeconfig(m.opts.KubeconfigPath)
			}
			m.allocated = false
		}
		m.opts = opts
	}
	m.lastCreate = co
	m.lastCreate.Options = nil
	needsKubeconfig := m.opts.KubeconfigPath == ""
	name := m.nameLocked()
	m.mu.Unlock()

	if needsKubeconfig {
		if ext, ok := m.provider.(*External); ok && ext.Kubeconfig != "" {
			m.setKubeconfig(ext.Kubeconfig, false)
		} else if !m.provider.OwnsKubeconfig() {
			return &InvalidInputError{Op: "create", Msg: "an external cluster needs a kubeconfig path"}
		} else {
			path, err := createTempKubeconfig(name)
			if err != nil {
				return fmt.Errorf("failed to allocate kubeconfig: %w", err)
			}
			m.setKubeconfig(path, true)
		}
	}

	if m.kubeconfigHasContent() {
		ready, err := m.Ready(ctx, existingClusterProbe)
		if err != nil {
			return err
		}
		if ready {
			logging.Info(subsystem, "Cluster %s is already running, skipping create", name)
			return nil
		}
	}

	logging.Info(subsystem, "Creating cluster %s with %s (Kubernetes %s)", name, m.provider.Name(), m.Options().APIVersion)
	if err := m.provider.Create(ctx, m, co.ProviderArgs); err != nil {
		return fmt.Errorf("failed to create cluster %s: %w", name, err)
	}
	if err := m.verifyKubeconfig(); err != nil {
		return fmt.Errorf("cluster %s: %w", name, err)
	}

	ready, err := m.Ready(ctx, co.ReadyTimeout)
	if err != nil {
		return err
	}
	if !ready {
		m.mu.Lock()
		last := m.lastProbe
		m.mu.Unlock()
		return &NotReadyError{Cluster: name, Timeout: co.ReadyTimeout, LastOutput: last}
	}
	logging.Info(subsystem, "Cluster %s is ready", name)
	return nil
}

func (m *Manager) setKubeconfig(path string, allocated bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.opts.KubeconfigPath = path
	m.allocated = allocated
}

func (m *Manager) kubeconfigHasContent() bool {
	info, err := os.Stat(m.KubeconfigPath())
	return err == nil && info.Size() > 0
}

// verifyKubeconfig checks that the provider left a usable kubeconfig behind.
func (m *Manager) verifyKubeconfig() error {
	opts := m.Options()
	cfg, err := clientcmd.LoadFromFile(opts.KubeconfigPath)
	if err != nil {
		return fmt.Errorf("invalid kubeconfig %s: %w", opts.KubeconfigPath, err)
	}
	if len(cfg.Clusters) == 0 {
		return fmt.Errorf("kubeconfig %s contains no clusters", opts.KubeconfigPath)
	}
	if opts.KubeContext != "" {
		if _, ok := cfg.Contexts[opts.KubeContext]; !ok {
			return fmt.Errorf("kubeconfig %s has no context %q", opts.KubeconfigPath, opts.KubeContext)
		}
	}
	return nil
}

// Ready polls the cluster once per interval until both the API server's
// readyz check passes and the default service account exists, or timeout
// elapses. Exhausting the attempts returns false without an error; only
// cancellation of ctx is reported as an error.
func (m *Manager) Ready(ctx context.Context, timeout time.Duration) (bool, error) {
	client, err := m.Kubectl()
	if err != nil {
		return false, err
	}

	err = wait.PollUntilContextTimeout(ctx, m.pollInterval, timeout, true, func(pollCtx context.Context) (bool, error) {
		readyz, err := client.Raw(pollCtx, "get", "--raw", "/readyz?verbose")
		if err != nil {
			m.recordProbe(probeOutput(err))
			metrics.ObservePoll(metrics.LoopReady, false)
			return false, nil
		}
		sa, err := client.Raw(pollCtx, "get", "serviceaccount", "default")
		if err != nil {
			m.recordProbe(probeOutput(err))
			metrics.ObservePoll(metrics.LoopReady, false)
			return false, nil
		}
		ok := strings.Contains(readyz, "readyz check passed") && !strings.Contains(sa, "not found")
		m.recordProbe(readyz + "\n" + sa)
		metrics.ObservePoll(metrics.LoopReady, ok)
		return ok, nil
	})
	if err == nil {
		return true, nil
	}
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	logging.Debug(subsystem, "Cluster %s not ready within %s", m.Name(), timeout)
	return false, nil
}

func probeOutput(err error) string {
	var cmdErr *executor.ExternalCommandError
	if errors.As(err, &cmdErr) {
		return strings.TrimSpace(cmdErr.Stderr + "\n" + cmdErr.Stdout)
	}
	return err.Error()
}

func (m *Manager) recordProbe(out string) {
	m.mu.Lock()
	m.lastProbe = out
	m.mu.Unlock()
}

// Delete tears the cluster down, stops port-forwards created through the
// manager and removes an owned kubeconfig. Local cleanup always happens; a
// provider error is returned afterwards.
func (m *Manager) Delete(ctx context.Context) error {
	m.lifecycle.Lock()
	defer m.lifecycle.Unlock()
	return m.delete(ctx)
}

func (m *Manager) delete(ctx context.Context) error {
	name := m.Name()
	logging.Info(subsystem, "Deleting cluster %s", name)

	m.stopForwards(ctx)

	hookErr := m.provider.Delete(ctx, m)
	if hookErr != nil {
		logging.Warn(subsystem, "Provider failed to delete cluster %s: %v", name, hookErr)
	}

	m.mu.Lock()
	path, allocated := m.opts.KubeconfigPath, m.allocated
	if allocated {
		m.opts.KubeconfigPath = ""
		m.allocated = false
	}
	m.mu.Unlock()

	if path != "" && m.provider.OwnsKubeconfig() {
		removeKubeconfig(path)
	}

	if m.settleDelay > 0 {
		select {
		case <-time.After(m.settleDelay):
		case <-ctx.Done():
		}
	}

	if hookErr != nil {
		return fmt.Errorf("failed to delete cluster %s: %w", name, hookErr)
	}
	return nil
}

func removeKubeconfig(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		logging.Warn(subsystem, "Could not remove kubeconfig %s: %v", path, err)
	}
}

func (m *Manager) stopForwards(ctx context.Context) {
	m.mu.Lock()
	forwards := m.forwards
	m.forwards = nil
	m.mu.Unlock()
	for _, f := range forwards {
		if err := f.Stop(ctx); err != nil {
			logging.Warn(subsystem, "Stopping port-forward %s failed: %v", f.Config().Target, err)
		}
	}
}

// Reset deletes the cluster and creates it again with the same options.
func (m *Manager) Reset(ctx context.Context) error {
	m.lifecycle.Lock()
	defer m.lifecycle.Unlock()

	m.mu.Lock()
	co := m.lastCreate
	m.mu.Unlock()

	if err := m.delete(ctx); err != nil {
		logging.Warn(subsystem, "Reset continues after delete error: %v", err)
	}
	return m.create(ctx, co)
}

// Apply runs "kubectl apply" for a manifest file or an in-memory document.
// Documents are serialized to YAML and streamed on stdin.
func (m *Manager) Apply(ctx context.Context, manifest Manifest) error {
	client, err := m.Kubectl()
	if err != nil {
		return err
	}
	switch v := manifest.(type) {
	case ManifestFile:
		if v == "" {
			return &InvalidInputError{Op: "apply", Msg: "empty manifest path"}
		}
		_, err = client.Raw(ctx, "apply", "-f", string(v))
		return err
	case ManifestDocument:
		if isNil(v.Object) {
			return &InvalidInputError{Op: "apply", Msg: "nil manifest document"}
		}
		data, err := v.YAML()
		if err != nil {
			return &InvalidInputError{Op: "apply", Msg: "cannot serialize document: " + err.Error()}
		}
		_, err = client.RawWithInput(ctx, data, "apply", "-f", "-")
		return err
	default:
		return &InvalidInputError{Op: "apply", Msg: fmt.Sprintf("manifest must be a file or a document, was %T", manifest)}
	}
}

func isNil(v interface{}) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Interface:
		return rv.IsNil()
	}
	return false
}

// Wait runs "kubectl wait" for a resource condition, e.g.
// Wait(ctx, "deployment/web", "condition=Available", time.Minute, "default").
func (m *Manager) Wait(ctx context.Context, name, condition string, timeout time.Duration, namespace string) error {
	client, err := m.Kubectl()
	if err != nil {
		return err
	}
	args := []string{"wait", name, "--for=" + condition, fmt.Sprintf("--timeout=%ds", waitSeconds(timeout))}
	if namespace != "" {
		args = append(args, "-n", namespace)
	}
	// kubectl enforces the wait timeout itself; ours only guards against a hang.
	_, err = client.Invoke(ctx, kubectl.Request{Args: args, Timeout: timeout + kubectl.DefaultTimeout})
	return err
}

// waitSeconds rounds up to whole seconds, never below one: kubectl reads
// --timeout=0s as "check once".
func waitSeconds(d time.Duration) int {
	secs := int((d + time.Second - 1) / time.Second)
	if secs < 1 {
		return 1
	}
	return secs
}

// Logs returns the logs of a pod.
func (m *Manager) Logs(ctx context.Context, pod string, opts LogOptions) (string, error) {
	client, err := m.Kubectl()
	if err != nil {
		return "", err
	}
	args := []string{"logs", pod}
	if opts.Container != "" {
		args = append(args, "-c", opts.Container)
	}
	if opts.Namespace != "" {
		args = append(args, "-n", opts.Namespace)
	}
	return client.Raw(ctx, args...)
}

// LoadImage makes a local container image available inside the cluster.
func (m *Manager) LoadImage(ctx context.Context, image string) error {
	if image == "" {
		return &InvalidInputError{Op: "load-image", Msg: "empty image name"}
	}
	logging.Info(subsystem, "Loading image %s into %s", image, m.Name())
	if err := m.provider.LoadImage(ctx, m, image); err != nil {
		return fmt.Errorf("failed to load image %s: %w", image, err)
	}
	return nil
}

// Version returns the server's Kubernetes major and minor version.
func (m *Manager) Version(ctx context.Context) (int, int, error) {
	client, err := m.Kubectl()
	if err != nil {
		return 0, 0, err
	}
	var out struct {
		ServerVersion *version.Info `json:"serverVersion"`
	}
	if err := client.JSON(ctx, &out, "version"); err != nil {
		return 0, 0, err
	}
	if out.ServerVersion == nil {
		return 0, 0, errors.New("kubectl version reported no server version")
	}
	return ParseVersion(*out.ServerVersion)
}

// ParseVersion extracts major and minor from version info, tolerating
// provider suffixes such as "25+".
func ParseVersion(info version.Info) (int, int, error) {
	major, err := versionNumber(info.Major)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid major version %q: %w", info.Major, err)
	}
	minor, err := versionNumber(info.Minor)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid minor version %q: %w", info.Minor, err)
	}
	return major, minor, nil
}

func versionNumber(s string) (int, error) {
	digits := strings.TrimRightFunc(s, func(r rune) bool { return r < '0' || r > '9' })
	if digits == "" {
		return 0, errors.New("no digits")
	}
	return strconv.Atoi(digits)
}

// Nodes lists the cluster's nodes.
func (m *Manager) Nodes(ctx context.Context) (*corev1.NodeList, error) {
	client, err := m.Kubectl()
	if err != nil {
		return nil, err
	}
	nodes := &corev1.NodeList{}
	if err := client.JSON(ctx, nodes, "get", "nodes"); err != nil {
		return nil, err
	}
	return nodes, nil
}

// PortForward returns an unstarted forward to target bound to this cluster.
// The manager stops it on Delete unless it was stopped before.
func (m *Manager) PortForward(target string, localPort, remotePort int, namespace string, timeout time.Duration) (*portforward.Forward, error) {
	opts := m.Options()
	f, err := portforward.New(portforward.Config{
		Target:     target,
		Namespace:  namespace,
		LocalPort:  localPort,
		RemotePort: remotePort,
		Timeout:    timeout,
		Kubeconfig: opts.KubeconfigPath,
		Context:    opts.KubeContext,
		Binary:     m.kubectlBinary,
		OnStop:     m.forgetForward,
	})
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	m.forwards = append(m.forwards, f)
	m.mu.Unlock()
	return f, nil
}

func (m *Manager) forgetForward(f *portforward.Forward) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, tracked := range m.forwards {
		if tracked == f {
			m.forwards = append(m.forwards[:i], m.forwards[i+1:]...)
			return
		}
	}
}
