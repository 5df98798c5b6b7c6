package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"kubetestenv/pkg/logging"
)

func newDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete [NAME...]",
		Short: "Delete one or more clusters",
		Long: `Deletes the named clusters, or the one selected with --name when no names
are given, and removes their kubeconfigs. Several clusters are deleted in
parallel. Deleting a cluster that does not exist is not an error unless the
provider reports one.`,
		Example: `  kubetestenv delete --name e2e
  kubetestenv delete e2e-a e2e-b e2e-c`,
		RunE: func(cmd *cobra.Command, args []string) error {
			names := args
			if len(names) == 0 {
				names = []string{selectedName()}
			}

			if len(names) == 1 {
				return deleteCluster(cmd, names[0], true)
			}

			var g errgroup.Group
			for _, name := range names {
				g.Go(func() error {
					return deleteCluster(cmd, name, false)
				})
			}
			return g.Wait()
		},
	}
}

func deleteCluster(cmd *cobra.Command, name string, progress bool) error {
	m, err := openManager(name)
	if err != nil {
		return fmt.Errorf("cluster %s: %w", name, err)
	}
	op := func(ctx context.Context) error { return m.Delete(ctx) }
	if progress {
		err = runWithProgress(cmd, fmt.Sprintf("Deleting cluster %s", m.Name()), op)
	} else {
		err = op(commandContext(cmd))
	}
	if err != nil {
		logging.Error(subsystem, err, "Deleting cluster %s failed", m.Name())
		return err
	}
	printText(cmd.OutOrStdout(), fmt.Sprintf("Cluster %s deleted", m.Name()))
	return nil
}
