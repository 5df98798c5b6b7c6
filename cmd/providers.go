package cmd

import (
	"github.com/spf13/cobra"

	"kubetestenv/internal/cluster"
)

func newProvidersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "providers",
		Short: "List the supported cluster providers",
		Long: `Lists every provider name --provider accepts, the binary it runs and
whether that binary is installed. The default provider is the first of
k3d, kind and minikube found on PATH.`,
		Args: cobra.NoArgs,
	}
	printer := addOutputFlag(cmd)

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		p, err := printer()
		if err != nil {
			return err
		}

		defaultName := ""
		if def, err := cluster.DefaultProvider(); err == nil {
			defaultName = def.Name()
		}

		var rows [][]string
		for _, name := range cluster.ProviderNames() {
			provider, err := cluster.ProviderFor(name)
			if err != nil {
				return err
			}
			installed := "missing"
			if cluster.Available(provider) {
				installed = "installed"
			}
			isDefault := ""
			if provider.Name() == defaultName && name != cluster.ProviderMinikube {
				isDefault = "*"
			}
			rows = append(rows, []string{name, provider.Binary(), installed, isDefault})
		}
		return p.Records([]string{"Provider", "Binary", "Status", "Default"}, rows)
	}
	return cmd
}
