package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"kubetestenv/internal/cluster"
)

func newCreateCmd() *cobra.Command {
	var (
		readyTimeout   time.Duration
		clusterTimeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "create [-- PROVIDER_ARGS...]",
		Short: "Create a cluster and wait until it is ready",
		Long: `Creates the cluster selected with --name and waits until its API server
reports ready and the default service account exists.

A cluster that is already running is reused. Arguments after "--" are passed
to the provider's create command unchanged.`,
		Example: `  kubetestenv create --name e2e --provider kind --api-version 1.27.3
  kubetestenv create --name e2e -- --agents 2`,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := currentManager()
			if err != nil {
				return err
			}

			co := cluster.CreateOptions{
				ReadyTimeout: readyTimeout,
				ProviderArgs: args,
			}
			if co.ReadyTimeout == 0 {
				co.ReadyTimeout = toolConfig.Defaults.ReadyTimeout
			}
			if clusterTimeout > 0 {
				opts := m.Options()
				opts.ClusterTimeout = clusterTimeout
				co.Options = &opts
			}

			err = runWithProgress(cmd, fmt.Sprintf("Creating cluster %s", m.Name()), func(ctx context.Context) error {
				return m.Create(ctx, co)
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cluster %s is ready\nexport KUBECONFIG=%s\n", m.Name(), m.KubeconfigPath())
			return nil
		},
	}

	cmd.Flags().DurationVar(&readyTimeout, "ready-timeout", 0, "How long to wait for readiness after the provider finished (default from config, 20s)")
	cmd.Flags().DurationVar(&clusterTimeout, "timeout", 0, "Timeout handed to the provider (default from config, 4m)")
	return cmd
}
