package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"k8s.io/client-go/tools/clientcmd"

	"kubetestenv/internal/cli"
	"kubetestenv/internal/cluster"
	"kubetestenv/internal/config"
	"kubetestenv/internal/mcptools"
	"kubetestenv/internal/tui"
	"kubetestenv/pkg/logging"
)

const subsystem = "CLI"

// stateDirName holds the kubeconfigs of clusters created by the CLI.
const stateDirName = "clusters"

// For mocking in tests
var (
	newManagerFactory = mcptools.DefaultManagerFactory
	stateDir          = defaultStateDir
	stdoutIsTerminal  = func() bool {
		fd := os.Stdout.Fd()
		return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
	}
)

func providerList() string {
	return strings.Join(cluster.ProviderNames(), ", ")
}

func defaultStateDir() (string, error) {
	dir, err := config.GetUserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, stateDirName), nil
}

// selectedName is --name, else the configured default.
func selectedName() string {
	if clusterName != "" {
		return clusterName
	}
	if toolConfig.Defaults.ClusterName != "" {
		return toolConfig.Defaults.ClusterName
	}
	return config.DefaultClusterName
}

// selectedProvider is --provider, else the configured default. Empty means
// the first installed provider.
func selectedProvider() string {
	if providerName != "" {
		return providerName
	}
	return toolConfig.Defaults.Provider
}

// clusterOptions builds the options for the cluster called name from flags
// and configuration. Provider managed clusters keep their kubeconfig in the
// state directory so separate invocations share it.
func clusterOptions(name string) (config.ClusterOptions, error) {
	opts := config.ClusterOptions{
		APIVersion:     toolConfig.Defaults.APIVersion,
		ClusterTimeout: toolConfig.Defaults.ClusterTimeout,
		ProviderConfig: providerConfig,
		KubeContext:    kubeContext,
		KubeconfigPath: kubeconfigPath,
	}
	if apiVersion != "" {
		opts.APIVersion = apiVersion
	}
	if opts.KubeconfigPath != "" {
		return opts, nil
	}

	if strings.EqualFold(selectedProvider(), cluster.ProviderExternal) {
		// An adopted cluster defaults to the user's kubeconfig, like kubectl.
		opts.KubeconfigPath = clientcmd.NewDefaultClientConfigLoadingRules().GetDefaultFilename()
		return opts, nil
	}

	dir, err := stateDir()
	if err != nil {
		return opts, fmt.Errorf("failed to locate state directory: %w", err)
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return opts, fmt.Errorf("failed to create state directory %s: %w", dir, err)
	}
	opts.KubeconfigPath = filepath.Join(dir, name+".kubeconfig")
	return opts, nil
}

// openManager returns the manager of the cluster called name.
func openManager(name string) (*cluster.Manager, error) {
	opts, err := clusterOptions(name)
	if err != nil {
		return nil, err
	}
	factory := newManagerFactory(toolConfig.Defaults.Kubectl)
	return factory(name, selectedProvider(), opts)
}

// currentManager returns the manager of the cluster selected with --name.
func currentManager() (*cluster.Manager, error) {
	return openManager(selectedName())
}

func commandContext(cmd *cobra.Command) context.Context {
	if cmd != nil && cmd.Context() != nil {
		return cmd.Context()
	}
	return context.Background()
}

// runWithProgress runs op under the spinner when stdout is a terminal and
// logs go to stderr. Otherwise it logs the title and runs op directly.
func runWithProgress(cmd *cobra.Command, title string, op tui.Operation) error {
	ctx := commandContext(cmd)
	if logCloser != nil || !stdoutIsTerminal() {
		logging.Info(subsystem, "%s", title)
		return op(ctx)
	}

	logs := logging.InitForTUI(logLevel())
	err := tui.Run(ctx, title, logs, cmd.OutOrStdout(), op)
	logging.CloseTUIChannel()
	logging.InitForCLI(logLevel(), cmd.ErrOrStderr())
	return err
}

// addOutputFlag registers -o/--output and returns the parsed format getter.
func addOutputFlag(cmd *cobra.Command) func() (*cli.Printer, error) {
	var output string
	cmd.Flags().StringVarP(&output, "output", "o", "table", "Output format: table, json or yaml")
	return func() (*cli.Printer, error) {
		format, err := cli.ParseFormat(output)
		if err != nil {
			return nil, err
		}
		return cli.NewPrinter(cmd.OutOrStdout(), format), nil
	}
}

// outMu serializes output of commands that work on several clusters at once.
var outMu sync.Mutex

// printText writes s followed by a newline unless s is empty or has one.
func printText(w io.Writer, s string) {
	outMu.Lock()
	defer outMu.Unlock()
	fmt.Fprint(w, s)
	if s != "" && !strings.HasSuffix(s, "\n") {
		fmt.Fprintln(w)
	}
}
