package mcptools

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"kubetestenv/internal/cluster"
	"kubetestenv/internal/config"
	"kubetestenv/internal/portforward"
	"kubetestenv/pkg/logging"
)

// ManagerFactory builds a manager for a cluster the registry has not seen yet.
type ManagerFactory func(name, provider string, opts config.ClusterOptions) (*cluster.Manager, error)

// DefaultManagerFactory resolves the provider by name and uses the real executor.
func DefaultManagerFactory(kubectlBinary string) ManagerFactory {
	return func(name, provider string, opts config.ClusterOptions) (*cluster.Manager, error) {
		p, err := cluster.ProviderFor(provider)
		if err != nil {
			return nil, err
		}
		return cluster.NewManager(name, p, cluster.WithOptions(opts), cluster.WithKubectl(kubectlBinary))
	}
}

// Registry tracks the managers and port-forwards of one server session.
type Registry struct {
	newManager ManagerFactory
	defaults   config.DefaultsConfig

	mu       sync.Mutex
	managers map[string]*cluster.Manager
	forwards map[int]*portforward.Forward
}

// NewRegistry returns an empty registry.
func NewRegistry(defaults config.DefaultsConfig, factory ManagerFactory) *Registry {
	return &Registry{
		newManager: factory,
		defaults:   defaults,
		managers:   make(map[string]*cluster.Manager),
		forwards:   make(map[int]*portforward.Forward),
	}
}

// Manager returns the manager registered under name.
func (r *Registry) Manager(name string) (*cluster.Manager, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.managers[name]
	if !ok {
		return nil, fmt.Errorf("unknown cluster %q, create it first", name)
	}
	return m, nil
}

// Ensure returns the manager for name, building it on first use.
func (r *Registry) Ensure(name, provider string, opts config.ClusterOptions) (*cluster.Manager, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m, ok := r.managers[name]; ok {
		return m, nil
	}
	if provider == "" {
		provider = r.defaults.Provider
	}
	m, err := r.newManager(name, provider, opts)
	if err != nil {
		return nil, err
	}
	r.managers[name] = m
	return m, nil
}

// Forget drops a manager after its cluster was deleted.
func (r *Registry) Forget(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.managers, name)
}

// Names lists registered clusters in order.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.managers))
	for n := range r.managers {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// AddForward records an active forward by local port.
func (r *Registry) AddForward(f *portforward.Forward) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	port := f.Config().LocalPort
	if existing, ok := r.forwards[port]; ok && existing.State() == portforward.StateActive {
		return fmt.Errorf("local port %d is already forwarded to %s", port, existing.Config().Target)
	}
	r.forwards[port] = f
	return nil
}

// TakeForward removes and returns the forward on port.
func (r *Registry) TakeForward(port int) (*portforward.Forward, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.forwards[port]
	delete(r.forwards, port)
	return f, ok
}

// Shutdown stops every forward. Clusters are left running.
func (r *Registry) Shutdown(ctx context.Context) {
	r.mu.Lock()
	forwards := r.forwards
	r.forwards = make(map[int]*portforward.Forward)
	r.mu.Unlock()
	for port, f := range forwards {
		if err := f.Stop(ctx); err != nil {
			logging.Warn(subsystem, "Stopping port-forward on %d failed: %v", port, err)
		}
	}
}
