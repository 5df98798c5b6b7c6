package cluster

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"kubetestenv/internal/executor"
)

// Provider names accepted by ProviderFor.
const (
	ProviderK3d            = "k3d"
	ProviderKind           = "kind"
	ProviderMinikube       = "minikube"
	ProviderMinikubeDocker = "minikube-docker"
	ProviderMinikubeKVM2   = "minikube-kvm2"
	ProviderExternal       = "external"
)

// Provider creates and destroys clusters with one provider CLI. The manager
// drives the lifecycle; a provider only issues its binary's commands.
type Provider interface {
	// Name is the provider's registry name.
	Name() string
	// Binary is the executable looked up on PATH, empty when none is needed.
	Binary() string
	// Create bootstraps the cluster and leaves a kubeconfig at m.KubeconfigPath().
	Create(ctx context.Context, m *Manager, args []string) error
	Delete(ctx context.Context, m *Manager) error
	LoadImage(ctx context.Context, m *Manager, image string) error
	// OwnsKubeconfig reports whether Delete may remove the kubeconfig file.
	OwnsKubeconfig() bool
}

var providers = map[string]func() Provider{
	ProviderK3d:            func() Provider { return &K3d{} },
	ProviderKind:           func() Provider { return &Kind{} },
	ProviderMinikube:       func() Provider { return &Minikube{Driver: DriverDocker} },
	ProviderMinikubeDocker: func() Provider { return &Minikube{Driver: DriverDocker} },
	ProviderMinikubeKVM2:   func() Provider { return &Minikube{Driver: DriverKVM2} },
	ProviderExternal:       func() Provider { return &External{} },
}

// defaultScanOrder is the order DefaultProvider probes PATH in.
var defaultScanOrder = []string{ProviderK3d, ProviderKind, ProviderMinikube}

// ProviderNames lists every name ProviderFor accepts.
func ProviderNames() []string {
	names := make([]string, 0, len(providers))
	for n := range providers {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// ProviderFor returns the provider registered under name (case-insensitive).
// An empty name selects DefaultProvider.
func ProviderFor(name string) (Provider, error) {
	if name == "" {
		return DefaultProvider()
	}
	newProvider, ok := providers[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("provider %s not available, options are %s", name, strings.Join(ProviderNames(), ", "))
	}
	return newProvider(), nil
}

// DefaultProvider returns the first of k3d, kind and minikube whose binary is on PATH.
func DefaultProvider() (Provider, error) {
	for _, name := range defaultScanOrder {
		p := providers[name]()
		if _, err := executor.LookPathFn(p.Binary()); err == nil {
			return p, nil
		}
	}
	return nil, fmt.Errorf("none of the supported providers (%s) is installed", strings.Join(defaultScanOrder, ", "))
}

// Available reports whether the provider's binary can be found.
func Available(p Provider) bool {
	if p.Binary() == "" {
		return true
	}
	_, err := executor.LookPathFn(p.Binary())
	return err == nil
}
