package cluster

import (
	"context"
	"fmt"
)

// Kind runs clusters with kind, which writes the kubeconfig itself.
type Kind struct{}

func (Kind) Name() string         { return ProviderKind }
func (Kind) Binary() string       { return "kind" }
func (Kind) OwnsKubeconfig() bool { return true }

// Image is the kind node image for a Kubernetes version.
func (Kind) Image(apiVersion string) string {
	return fmt.Sprintf("kindest/node:v%s", apiVersion)
}

func (k Kind) Create(ctx context.Context, m *Manager, args []string) error {
	opts := m.Options()
	createArgs := []string{
		"create", "cluster",
		"--name", m.Name(),
		"--kubeconfig", opts.KubeconfigPath,
		"--image", k.Image(opts.APIVersion),
	}
	if opts.ProviderConfig != "" {
		createArgs = append(createArgs, "--config", opts.ProviderConfig)
	}
	createArgs = append(createArgs, args...)
	_, err := m.runProvider(ctx, createArgs, nil)
	return err
}

func (Kind) Delete(ctx context.Context, m *Manager) error {
	_, err := m.runProvider(ctx, []string{"delete", "cluster", "--name", m.Name()}, nil)
	return err
}

func (Kind) LoadImage(ctx context.Context, m *Manager, image string) error {
	_, err := m.runProvider(ctx, []string{"load", "docker-image", image, "--name", m.Name()}, nil)
	return err
}
