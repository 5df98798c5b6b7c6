package cmd

import (
	"github.com/spf13/cobra"

	"kubetestenv/internal/cluster"
)

func newLogsCmd() *cobra.Command {
	var opts cluster.LogOptions

	cmd := &cobra.Command{
		Use:   "logs POD",
		Short: "Print the logs of a pod",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := currentManager()
			if err != nil {
				return err
			}
			out, err := m.Logs(commandContext(cmd), args[0], opts)
			if err != nil {
				return err
			}
			printText(cmd.OutOrStdout(), out)
			return nil
		},
	}

	cmd.Flags().StringVarP(&opts.Container, "container", "c", "", "Container name")
	cmd.Flags().StringVar(&opts.Namespace, "namespace", "", "Namespace of the pod")
	return cmd
}
