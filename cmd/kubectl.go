package cmd

import (
	"errors"

	"github.com/spf13/cobra"
)

func newKubectlCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "kubectl -- ARGS...",
		Short: "Run kubectl against a cluster",
		Long: `Runs kubectl with the kubeconfig and context of the cluster selected with
--name. Everything after "--" is passed to kubectl.`,
		Example: `  kubetestenv kubectl --name e2e -- get pods -A`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return errors.New("no kubectl arguments given")
			}
			m, err := currentManager()
			if err != nil {
				return err
			}
			client, err := m.Kubectl()
			if err != nil {
				return err
			}
			out, err := client.Raw(commandContext(cmd), args...)
			if err != nil {
				return err
			}
			printText(cmd.OutOrStdout(), out)
			return nil
		},
	}
}
