package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"kubetestenv/internal/config"
)

// errNotReady makes "ready" exit non-zero without printing usage.
var errNotReady = errors.New("cluster is not ready")

func newReadyCmd() *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "ready",
		Short: "Check whether a cluster is ready",
		Long: `Polls the cluster once per second until the API server's /readyz check
passes and the default service account exists, or the timeout is reached.
Exits with a non-zero status when the cluster is not ready.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := currentManager()
			if err != nil {
				return err
			}
			ready, err := m.Ready(commandContext(cmd), timeout)
			if err != nil {
				return err
			}
			if !ready {
				fmt.Fprintf(cmd.OutOrStdout(), "Cluster %s is not ready\n", m.Name())
				return errNotReady
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cluster %s is ready\n", m.Name())
			return nil
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", config.DefaultReadyTimeout, "How long to poll")
	return cmd
}
