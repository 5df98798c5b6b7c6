package cluster

import (
	"context"
	"fmt"
	"os"
)

// K3d runs clusters with k3d. k3d does not write kubeconfigs to arbitrary
// paths, so Create fetches it with "k3d kubeconfig get".
type K3d struct{}

func (K3d) Name() string         { return ProviderK3d }
func (K3d) Binary() string       { return "k3d" }
func (K3d) OwnsKubeconfig() bool { return true }

// Image is the k3s node image for a Kubernetes version.
func (K3d) Image(apiVersion string) string {
	return fmt.Sprintf("rancher/k3s:v%s-k3s1", apiVersion)
}

func (k K3d) Create(ctx context.Context, m *Manager, args []string) error {
	opts := m.Options()
	createArgs := []string{
		"cluster", "create", m.Name(),
		"--kubeconfig-update-default=0",
		"--image", k.Image(opts.APIVersion),
		"--wait",
		fmt.Sprintf("--timeout=%ds", opts.TimeoutSeconds()),
	}
	if opts.ProviderConfig != "" {
		createArgs = append(createArgs, "--config", opts.ProviderConfig)
	}
	createArgs = append(createArgs, args...)
	if _, err := m.runProvider(ctx, createArgs, nil); err != nil {
		return err
	}

	res, err := m.runProvider(ctx, []string{"kubeconfig", "get", m.Name()}, nil)
	if err != nil {
		return err
	}
	if err := os.WriteFile(opts.KubeconfigPath, []byte(res.Stdout), 0600); err != nil {
		return fmt.Errorf("failed to write kubeconfig for %s: %w", m.Name(), err)
	}
	return nil
}

func (K3d) Delete(ctx context.Context, m *Manager) error {
	_, err := m.runProvider(ctx, []string{"cluster", "delete", m.Name()}, nil)
	return err
}

func (K3d) LoadImage(ctx context.Context, m *Manager, image string) error {
	_, err := m.runProvider(ctx, []string{"image", "import", image, "--cluster", m.Name()}, nil)
	return err
}
