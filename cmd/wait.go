package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newWaitCmd() *cobra.Command {
	var (
		condition string
		timeout   time.Duration
		namespace string
	)

	cmd := &cobra.Command{
		Use:   "wait RESOURCE --for CONDITION",
		Short: "Wait for a resource condition",
		Long:  `Runs "kubectl wait" for a resource in the cluster selected with --name.`,
		Example: `  kubetestenv wait --name e2e deployment/web --for condition=Available --timeout 2m
  kubetestenv wait --name e2e pod/web-0 --for delete`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if condition == "" {
				return errors.New("--for is required")
			}
			m, err := currentManager()
			if err != nil {
				return err
			}
			if err := m.Wait(commandContext(cmd), args[0], condition, timeout, namespace); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s met %s\n", args[0], condition)
			return nil
		},
	}

	cmd.Flags().StringVar(&condition, "for", "", "Condition to wait for, e.g. condition=Ready or delete")
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "How long kubectl waits")
	cmd.Flags().StringVar(&namespace, "namespace", "", "Namespace of the resource")
	return cmd
}
