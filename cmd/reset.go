package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func newResetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Delete and recreate a cluster",
		Long: `Deletes the cluster selected with --name and creates it again with the
same options, leaving a clean cluster behind. The command returns once the
new cluster is ready.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := currentManager()
			if err != nil {
				return err
			}
			err = runWithProgress(cmd, fmt.Sprintf("Resetting cluster %s", m.Name()), func(ctx context.Context) error {
				return m.Reset(ctx)
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cluster %s was reset and is ready\n", m.Name())
			return nil
		},
	}
}
