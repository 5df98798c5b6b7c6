package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newLoadImageCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "load-image IMAGE...",
		Short: "Load local container images into a cluster",
		Long: `Makes images from the local container runtime available inside the
cluster selected with --name, so pods can use them without a registry.`,
		Example: `  kubetestenv load-image --name e2e example.com/app:dev`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := currentManager()
			if err != nil {
				return err
			}
			title := fmt.Sprintf("Loading %s into %s", strings.Join(args, ", "), m.Name())
			return runWithProgress(cmd, title, func(ctx context.Context) error {
				for _, image := range args {
					if err := m.LoadImage(ctx, image); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
}
