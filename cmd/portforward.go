package cmd

import (
	"context"
	"fmt"
	"strconv"
	"time"

	cliutil "github.com/k3d-io/k3d/v5/cmd/util"
	"github.com/spf13/cobra"

	"kubetestenv/internal/portforward"
	"kubetestenv/pkg/logging"
)

// For mocking in tests
var getFreePort = cliutil.GetFreePort

func newPortForwardCmd() *cobra.Command {
	var (
		localPort int
		namespace string
		timeout   time.Duration
		duration  time.Duration
	)

	cmd := &cobra.Command{
		Use:   "port-forward TARGET REMOTE_PORT",
		Short: "Forward a local port to a pod or service",
		Long: `Starts "kubectl port-forward" to TARGET (for example svc/web or pod/web-0)
in the cluster selected with --name and keeps it running until interrupted
or until --duration has passed. On exit the forward is stopped and the
local port is verified to be free again.

A --local-port of 0 picks a free port.`,
		Example: `  kubetestenv port-forward --name e2e svc/web 80 --local-port 8080`,
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			remotePort, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid remote port %q: %w", args[1], err)
			}
			if localPort == 0 {
				if localPort, err = getFreePort(); err != nil {
					return fmt.Errorf("failed to find a free local port: %w", err)
				}
			}

			m, err := currentManager()
			if err != nil {
				return err
			}
			f, err := m.PortForward(args[0], localPort, remotePort, namespace, timeout)
			if err != nil {
				return err
			}

			ctx := commandContext(cmd)
			if duration > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, duration)
				defer cancel()
			}

			return f.Do(ctx, func(ctx context.Context) error {
				fmt.Fprintf(cmd.OutOrStdout(), "Forwarding %s to %s:%d\n", f.LocalAddress(), args[0], remotePort)
				<-ctx.Done()
				logging.Info(subsystem, "Stopping port-forward on %s", f.LocalAddress())
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&localPort, "local-port", 0, "Local port; 0 picks a free one")
	cmd.Flags().StringVar(&namespace, "namespace", portforward.DefaultNamespace, "Namespace of the target")
	cmd.Flags().DurationVar(&timeout, "timeout", portforward.DefaultTimeout, "How long to wait for the forward to start and to stop")
	cmd.Flags().DurationVar(&duration, "duration", 0, "Stop after this long; 0 runs until interrupted")
	return cmd
}
