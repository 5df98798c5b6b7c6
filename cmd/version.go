package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newVersionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print the Kubernetes version of a cluster",
		Long: `Prints the major and minor Kubernetes version reported by the API server
of the cluster selected with --name. Use cli-version for the version of
kubetestenv itself.`,
		Args: cobra.NoArgs,
	}
	printer := addOutputFlag(cmd)

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		p, err := printer()
		if err != nil {
			return err
		}
		m, err := currentManager()
		if err != nil {
			return err
		}
		major, minor, err := m.Version(commandContext(cmd))
		if err != nil {
			return err
		}
		return p.KeyValues(map[string]interface{}{
			"cluster": m.Name(),
			"major":   major,
			"minor":   minor,
		})
	}
	return cmd
}

func newCLIVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cli-version",
		Short: "Print the version number of kubetestenv",
		Long:  `All software has versions. This is kubetestenv's.`,
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "kubetestenv version %s\n", rootCmd.Version)
		},
	}
}
