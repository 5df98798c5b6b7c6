package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"kubetestenv/internal/mcptools"
	"kubetestenv/internal/metrics"
	"kubetestenv/pkg/logging"
)

// For mocking in tests
var serveStdio = func(s *mcpserver.MCPServer) error {
	return mcpserver.ServeStdio(s)
}

func newServeCmd() *cobra.Command {
	var metricsAddress string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve cluster operations as MCP tools over stdio",
		Long: `Starts an MCP server on standard input and output that exposes cluster
create, delete, reset and readiness checks, kubectl access and port-forwards
as tools, so an agent can drive test clusters.

Clusters created through the server keep running when it exits; port-forwards
are stopped. Logs go to stderr or --log-file since stdout carries the
protocol.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)
			if metricsAddress == "" {
				metricsAddress = toolConfig.Metrics.Address
			}

			registry := mcptools.NewRegistry(toolConfig.Defaults, newManagerFactory(toolConfig.Defaults.Kubectl))
			defer registry.Shutdown(context.WithoutCancel(ctx))

			if metricsAddress != "" {
				stop := serveMetrics(metricsAddress)
				defer stop()
			}

			srv := mcptools.NewServer(rootCmd.Version, mcptools.New(registry))
			logging.Info(subsystem, "Serving MCP tools on stdio")
			return runStdioServer(srv)
		},
	}

	cmd.Flags().StringVar(&metricsAddress, "metrics-address", "", "Expose Prometheus metrics on this address, e.g. :9090")
	return cmd
}

// runStdioServer runs the server with STDIO transport
func runStdioServer(s *mcpserver.MCPServer) error {
	serverDone := make(chan error, 1)
	go func() {
		defer close(serverDone)
		if err := serveStdio(s); err != nil {
			serverDone <- err
		}
	}()

	// Wait for server completion
	if err := <-serverDone; err != nil {
		return fmt.Errorf("server stopped with error: %w", err)
	}
	// Don't print to stdout in stdio mode as it interferes with MCP communication
	return nil
}

// serveMetrics exposes /metrics on addr until the returned stop is called.
func serveMetrics(addr string) (stop func()) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		logging.Info(subsystem, "Serving metrics on %s/metrics", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Error(subsystem, err, "Metrics server failed")
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}
