// Package k8stest hands ephemeral clusters to Go tests.
//
// A test asks for a cluster manager; the cluster is deleted when the test
// ends unless it was requested with Keep, in which case the next test asking
// for the same provider and name gets the very same manager back. Kept
// clusters are deleted by Teardown, typically from TestMain:
//
//	func TestMain(m *testing.M) {
//		os.Exit(k8stest.Main(m))
//	}
//
//	func TestSomething(t *testing.T) {
//		c := k8stest.Cluster(t, k8stest.Options{Keep: true})
//		require.NoError(t, c.Create(ctx, cluster.CreateOptions{}))
//	}
//
// Managers are returned unstarted, as tests decide when to create.
package k8stest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"

	"kubetestenv/internal/cluster"
	"kubetestenv/internal/config"
	"kubetestenv/pkg/logging"
)

const subsystem = "k8stest"

// Options select the cluster a test gets.
type Options struct {
	// Provider is a provider name such as "k3d" or "kind". Empty uses the
	// configured default, else the first installed provider.
	Provider string
	// ClusterName is the manager name. Empty uses the configured default.
	ClusterName string
	// Keep leaves the cluster running after the test for reuse.
	Keep bool
	// Cluster holds per-cluster settings such as the Kubernetes version.
	Cluster config.ClusterOptions
}

// Fixture caches kept clusters between tests.
type Fixture struct {
	managerOpts []cluster.Option
	loadConfig  func() (config.ToolConfig, error)

	mu    sync.Mutex
	cache map[string]*cluster.Manager
}

// FixtureOption configures a Fixture.
type FixtureOption func(*Fixture)

// WithManagerOptions passes opts to every manager the fixture creates.
func WithManagerOptions(opts ...cluster.Option) FixtureOption {
	return func(f *Fixture) { f.managerOpts = append(f.managerOpts, opts...) }
}

// WithConfig replaces configuration loading, which reads the user and
// project configuration files by default.
func WithConfig(cfg config.ToolConfig) FixtureOption {
	return func(f *Fixture) {
		f.loadConfig = func() (config.ToolConfig, error) { return cfg, nil }
	}
}

// NewFixture returns an empty fixture.
func NewFixture(opts ...FixtureOption) *Fixture {
	f := &Fixture{
		loadConfig: config.LoadConfig,
		cache:      make(map[string]*cluster.Manager),
	}
	for _, o := range opts {
		o(f)
	}
	return f
}

// Cluster returns the manager for the cluster described by opts. A kept
// manager for the same provider and name is handed over and leaves the
// cache; it goes back only if this test keeps it too.
func (f *Fixture) Cluster(t testing.TB, opts Options) *cluster.Manager {
	t.Helper()
	m, key, err := f.acquire(opts)
	if err != nil {
		t.Fatalf("k8stest: %v", err)
		return nil
	}

	if opts.Keep {
		f.mu.Lock()
		f.cache[key] = m
		f.mu.Unlock()
		return m
	}

	t.Cleanup(func() {
		if err := m.Delete(context.Background()); err != nil {
			t.Errorf("k8stest: deleting cluster %s: %v", m.Name(), err)
		}
	})
	return m
}

func (f *Fixture) acquire(opts Options) (*cluster.Manager, string, error) {
	cfg, err := f.loadConfig()
	if err != nil {
		return nil, "", err
	}

	providerName := opts.Provider
	if providerName == "" {
		providerName = cfg.Defaults.Provider
	}
	name := opts.ClusterName
	if name == "" {
		name = cfg.Defaults.ClusterName
	}
	if name == "" {
		name = config.DefaultClusterName
	}

	provider, err := cluster.ProviderFor(providerName)
	if err != nil {
		return nil, "", err
	}

	key := cacheKey(provider, name)
	f.mu.Lock()
	if m, ok := f.cache[key]; ok {
		delete(f.cache, key)
		f.mu.Unlock()
		logging.Debug(subsystem, "Reusing kept cluster %s", m.Name())
		return m, key, nil
	}
	f.mu.Unlock()

	clusterOpts := config.ClusterOptions{
		APIVersion:     cfg.Defaults.APIVersion,
		ClusterTimeout: cfg.Defaults.ClusterTimeout,
	}.Merge(opts.Cluster)

	mopts := append([]cluster.Option{
		cluster.WithOptions(clusterOpts),
		cluster.WithKubectl(cfg.Defaults.Kubectl),
	}, f.managerOpts...)
	m, err := cluster.NewManager(name, provider, mopts...)
	if err != nil {
		return nil, "", fmt.Errorf("cluster %s: %w", name, err)
	}
	return m, key, nil
}

// Kept lists the names of clusters waiting for reuse.
func (f *Fixture) Kept() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	names := make([]string, 0, len(f.cache))
	for _, m := range f.cache {
		names = append(names, m.Name())
	}
	return names
}

// Teardown deletes every kept cluster.
func (f *Fixture) Teardown(ctx context.Context) error {
	f.mu.Lock()
	kept := f.cache
	f.cache = make(map[string]*cluster.Manager)
	f.mu.Unlock()

	var errs []error
	for _, m := range kept {
		logging.Info(subsystem, "Deleting kept cluster %s", m.Name())
		if err := m.Delete(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// cacheKey identifies a cluster by provider and manager name.
func cacheKey(p cluster.Provider, name string) string {
	return p.Name() + "-" + name
}

// UniqueName returns prefix followed by a short random suffix, for tests
// that must not share a cluster with concurrent runs.
func UniqueName(prefix string) string {
	return prefix + "-" + uuid.NewString()[:8]
}

var defaultFixture = NewFixture()

// Cluster returns a cluster from the package level fixture.
func Cluster(t testing.TB, opts Options) *cluster.Manager {
	t.Helper()
	return defaultFixture.Cluster(t, opts)
}

// Main runs the tests and deletes kept clusters afterwards. Use it from TestMain.
func Main(m *testing.M) int {
	code := m.Run()
	if err := defaultFixture.Teardown(context.Background()); err != nil {
		logging.Error(subsystem, err, "Deleting kept clusters failed")
		if code == 0 {
			code = 1
		}
	}
	return code
}
