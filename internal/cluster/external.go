package cluster

import (
	"context"
	"fmt"
	"os"
)

// External adopts a cluster that already exists. It never creates, deletes
// or loads anything and never removes the caller's kubeconfig.
type External struct {
	// Kubeconfig is used when the options do not name one.
	Kubeconfig string
}

func (External) Name() string         { return ProviderExternal }
func (External) Binary() string       { return "" }
func (External) OwnsKubeconfig() bool { return false }

func (e External) Create(ctx context.Context, m *Manager, args []string) error {
	path := m.KubeconfigPath()
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("external cluster kubeconfig: %w", err)
	}
	return nil
}

func (External) Delete(ctx context.Context, m *Manager) error { return nil }

func (External) LoadImage(ctx context.Context, m *Manager, image string) error { return nil }
