package cluster

import (
	"context"
	"fmt"
)

// Minikube drivers.
const (
	DriverDocker = "docker"
	DriverKVM2   = "kvm2"
)

// Minikube runs clusters with minikube using one profile per cluster.
type Minikube struct {
	Driver string
}

func (p Minikube) Name() string {
	return "minikube-" + p.Driver
}

func (Minikube) Binary() string       { return "minikube" }
func (Minikube) OwnsKubeconfig() bool { return true }

func (p Minikube) Create(ctx context.Context, m *Manager, args []string) error {
	opts := m.Options()
	if pf := m.ProviderFile(); pf != nil {
		for _, s := range pf.MinikubeConfigs {
			if _, err := m.runProvider(ctx, []string{"config", "set", s.Name, s.Value, "-p", m.Name()}, nil); err != nil {
				return fmt.Errorf("failed to apply minikube config %s: %w", s.Name, err)
			}
		}
	}
	startArgs := []string{
		"start",
		"-p", m.Name(),
		"--driver", p.Driver,
		"--embed-certs",
		"--kubernetes-version", "v" + opts.APIVersion,
	}
	startArgs = append(startArgs, args...)
	_, err := m.runProvider(ctx, startArgs, map[string]string{"KUBECONFIG": opts.KubeconfigPath})
	return err
}

func (Minikube) Delete(ctx context.Context, m *Manager) error {
	_, err := m.runProvider(ctx, []string{"delete", "-p", m.Name()}, nil)
	return err
}

func (Minikube) LoadImage(ctx context.Context, m *Manager, image string) error {
	_, err := m.runProvider(ctx, []string{"image", "load", image, "-p", m.Name()}, nil)
	return err
}
