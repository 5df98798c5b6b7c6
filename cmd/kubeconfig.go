package cmd

import (
	"fmt"

	"github.com/atotto/clipboard"
	"github.com/spf13/cobra"
	"k8s.io/client-go/tools/clientcmd"
)

// For mocking in tests
var clipboardWriteAll = clipboard.WriteAll

func newKubeconfigCmd() *cobra.Command {
	var (
		copyExport bool
		details    bool
	)

	cmd := &cobra.Command{
		Use:   "kubeconfig",
		Short: "Print the kubeconfig path of a cluster",
		Long: `Prints the kubeconfig path of the cluster selected with --name. With
--copy an "export KUBECONFIG=..." line is copied to the clipboard, with
--details the context and API server found in the file are shown as well.`,
		Args: cobra.NoArgs,
	}
	printer := addOutputFlag(cmd)

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		m, err := currentManager()
		if err != nil {
			return err
		}
		path := m.KubeconfigPath()

		if copyExport {
			if err := clipboardWriteAll("export KUBECONFIG=" + path); err != nil {
				return fmt.Errorf("failed to copy to clipboard: %w", err)
			}
		}

		if !details {
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		}

		p, err := printer()
		if err != nil {
			return err
		}
		cfg, err := clientcmd.LoadFromFile(path)
		if err != nil {
			return fmt.Errorf("failed to read kubeconfig %s: %w", path, err)
		}
		contextName := m.Context()
		if contextName == "" {
			contextName = cfg.CurrentContext
		}
		server := ""
		if kctx, ok := cfg.Contexts[contextName]; ok {
			if c, ok := cfg.Clusters[kctx.Cluster]; ok {
				server = c.Server
			}
		}
		return p.KeyValues(map[string]interface{}{
			"cluster":    m.Name(),
			"kubeconfig": path,
			"context":    contextName,
			"server":     server,
		})
	}

	cmd.Flags().BoolVar(&copyExport, "copy", false, "Copy an export KUBECONFIG line to the clipboard")
	cmd.Flags().BoolVar(&details, "details", false, "Show the context and API server")
	return cmd
}
