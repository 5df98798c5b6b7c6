package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"kubetestenv/internal/color"
	"kubetestenv/internal/config"
	"kubetestenv/pkg/logging"
)

// Persistent flags shared by every cluster command.
var (
	providerName   string
	clusterName    string
	kubeconfigPath string
	kubeContext    string
	apiVersion     string
	providerConfig string
	debug          bool
	logFile        string
)

// toolConfig is loaded before any subcommand runs.
var toolConfig = config.GetDefaultConfig()

// logCloser closes the rotated log file opened for --log-file.
var logCloser io.Closer

// For mocking in tests
var loadConfig = config.LoadConfig

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "kubetestenv",
	Short: "Create and drive ephemeral Kubernetes clusters for tests",
	Long: `kubetestenv creates, checks and deletes throwaway Kubernetes clusters
for automated tests. Clusters are provisioned with k3d, kind or minikube
(or an existing cluster is adopted) and are driven through kubectl.

Every command works on one cluster selected with --name. Its kubeconfig is
kept under ~/.config/kubetestenv/clusters unless --kubeconfig is given, so
later commands find the cluster created by an earlier one.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logCloser != nil {
			_ = logCloser.Close()
			logCloser = nil
		}
	},
}

// SetVersion sets the version for the root command.
// This function is typically called from the main package to inject the application version at build time.
func SetVersion(v string) {
	rootCmd.Version = v
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "kubetestenv version %s\n" .Version}}`)

	// Interrupts cancel the running operation, which then cleans up its processes.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

// setup loads the tool configuration and initialises logging.
func setup(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	toolConfig = cfg

	level := logging.ParseLevel(toolConfig.Logging.Level)
	if debug {
		level = logging.LevelDebug
	}
	file := toolConfig.Logging.File
	if logFile != "" {
		file = logFile
	}
	if file != "" {
		logCloser = logging.InitWithFile(level, file)
	} else {
		logging.InitForCLI(level, cmd.ErrOrStderr())
	}
	color.Setup(os.Stdout)
	return nil
}

// logLevel is the level chosen by setup, used again after the progress view.
func logLevel() logging.LogLevel {
	if debug {
		return logging.LevelDebug
	}
	return logging.ParseLevel(toolConfig.Logging.Level)
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&providerName, "provider", "p", "", fmt.Sprintf("Cluster provider (%s); defaults to the first one installed", providerList()))
	pf.StringVar(&clusterName, "name", "", "Cluster name, prefixed with kubetestenv- unless a provider config names it")
	pf.StringVar(&kubeconfigPath, "kubeconfig", "", "Kubeconfig path; required for the external provider")
	pf.StringVar(&kubeContext, "context", "", "Kubeconfig context to use")
	pf.StringVar(&apiVersion, "api-version", "", "Kubernetes version of new clusters, e.g. 1.25.3")
	pf.StringVar(&providerConfig, "provider-config", "", "Provider specific cluster configuration file")
	pf.BoolVar(&debug, "debug", false, "Enable debug logging")
	pf.StringVar(&logFile, "log-file", "", "Write logs to a rotated file instead of stderr")

	rootCmd.AddCommand(
		newCreateCmd(),
		newDeleteCmd(),
		newResetCmd(),
		newReadyCmd(),
		newApplyCmd(),
		newKubectlCmd(),
		newLogsCmd(),
		newWaitCmd(),
		newLoadImageCmd(),
		newVersionCmd(),
		newNodesCmd(),
		newPortForwardCmd(),
		newProvidersCmd(),
		newKubeconfigCmd(),
		newServeCmd(),
		newSelfUpdateCmd(),
		newCLIVersionCmd(),
	)
}
