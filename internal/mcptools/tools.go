// Package mcptools exposes cluster manager operations as MCP tools.
package mcptools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	sigsyaml "sigs.k8s.io/yaml"

	"kubetestenv/internal/cluster"
	"kubetestenv/internal/config"
	"kubetestenv/internal/kubectl"
	"kubetestenv/pkg/logging"
)

const subsystem = "MCP"

// Tools provides MCP tools over a Registry of cluster managers.
type Tools struct {
	reg *Registry
}

// New creates the tool set.
func New(reg *Registry) *Tools {
	return &Tools{reg: reg}
}

// NewServer creates an MCP server with every tool registered.
func NewServer(version string, t *Tools) *server.MCPServer {
	s := server.NewMCPServer("kubetestenv", version,
		server.WithToolCapabilities(true),
	)
	s.AddTools(t.ServerTools()...)
	return s
}

// ServerTools pairs every tool with its handler.
func (t *Tools) ServerTools() []server.ServerTool {
	handlers := map[string]server.ToolHandlerFunc{
		"cluster_create":     t.HandleClusterCreate,
		"cluster_delete":     t.HandleClusterDelete,
		"cluster_reset":      t.HandleClusterReset,
		"cluster_ready":      t.HandleClusterReady,
		"cluster_list":       t.HandleClusterList,
		"cluster_apply":      t.HandleClusterApply,
		"cluster_kubectl":    t.HandleClusterKubectl,
		"cluster_logs":       t.HandleClusterLogs,
		"cluster_wait":       t.HandleClusterWait,
		"cluster_load_image": t.HandleClusterLoadImage,
		"cluster_version":    t.HandleClusterVersion,
		"cluster_nodes":      t.HandleClusterNodes,
		"portforward_start":  t.HandlePortForwardStart,
		"portforward_stop":   t.HandlePortForwardStop,
	}
	var out []server.ServerTool
	for _, tool := range t.GetTools() {
		out = append(out, server.ServerTool{Tool: tool, Handler: handlers[tool.Name]})
	}
	return out
}

// GetTools returns all tool definitions
func (t *Tools) GetTools() []mcp.Tool {
	tools := []mcp.Tool{}
	tools = append(tools, t.getLifecycleTools()...)
	tools = append(tools, t.getClusterAccessTools()...)
	tools = append(tools, t.getPortForwardTools()...)
	return tools
}

func clusterName() mcp.ToolOption {
	return mcp.WithString("name",
		mcp.Required(),
		mcp.Description("Cluster name as given to cluster_create"),
	)
}

// Lifecycle Tools
func (t *Tools) getLifecycleTools() []mcp.Tool {
	return []mcp.Tool{
		mcp.NewTool("cluster_create",
			mcp.WithDescription("Create a test cluster, or adopt it if it is already running, and wait until it is ready"),
			clusterName(),
			mcp.WithString("provider",
				mcp.Description("Cluster provider; defaults to the configured or first installed one"),
				mcp.Enum(cluster.ProviderNames()...),
			),
			mcp.WithString("api_version", mcp.Description("Kubernetes version, e.g. 1.25.3")),
			mcp.WithString("provider_config", mcp.Description("Path to a provider cluster config file")),
			mcp.WithString("kubeconfig", mcp.Description("Kubeconfig path; required for the external provider")),
			mcp.WithString("context", mcp.Description("Kubeconfig context to use")),
			mcp.WithNumber("ready_timeout", mcp.Description("Seconds to wait for readiness")),
		),
		mcp.NewTool("cluster_delete",
			mcp.WithDescription("Delete a test cluster and its kubeconfig"),
			clusterName(),
		),
		mcp.NewTool("cluster_reset",
			mcp.WithDescription("Delete and recreate a test cluster with the same options"),
			clusterName(),
		),
		mcp.NewTool("cluster_ready",
			mcp.WithDescription("Check whether a cluster passes its readiness probes"),
			clusterName(),
			mcp.WithNumber("timeout", mcp.Description("Seconds to keep polling (default 5)")),
		),
		mcp.NewTool("cluster_list",
			mcp.WithDescription("List clusters known to this session"),
		),
	}
}

// Cluster Access Tools
func (t *Tools) getClusterAccessTools() []mcp.Tool {
	return []mcp.Tool{
		mcp.NewTool("cluster_apply",
			mcp.WithDescription("Apply a manifest file or an inline YAML/JSON document"),
			clusterName(),
			mcp.WithString("file", mcp.Description("Manifest path or URL")),
			mcp.WithString("manifest", mcp.Description("Inline manifest document")),
		),
		mcp.NewTool("cluster_kubectl",
			mcp.WithDescription("Run kubectl against the cluster"),
			clusterName(),
			mcp.WithString("args",
				mcp.Required(),
				mcp.Description("kubectl arguments separated by spaces, e.g. 'get pods -A'"),
			),
			mcp.WithBoolean("json", mcp.Description("Request JSON output")),
		),
		mcp.NewTool("cluster_logs",
			mcp.WithDescription("Get the logs of a pod"),
			clusterName(),
			mcp.WithString("pod", mcp.Required(), mcp.Description("Pod name")),
			mcp.WithString("container", mcp.Description("Container name")),
			mcp.WithString("namespace", mcp.Description("Namespace")),
		),
		mcp.NewTool("cluster_wait",
			mcp.WithDescription("Wait for a resource condition"),
			clusterName(),
			mcp.WithString("resource", mcp.Required(), mcp.Description("Resource, e.g. deployment/web")),
			mcp.WithString("condition", mcp.Required(), mcp.Description("Condition, e.g. condition=Available")),
			mcp.WithNumber("timeout", mcp.Description("Seconds to wait (default 90)")),
			mcp.WithString("namespace", mcp.Description("Namespace")),
		),
		mcp.NewTool("cluster_load_image",
			mcp.WithDescription("Load a local container image into the cluster"),
			clusterName(),
			mcp.WithString("image", mcp.Required(), mcp.Description("Image reference")),
		),
		mcp.NewTool("cluster_version",
			mcp.WithDescription("Get the cluster's Kubernetes major and minor version"),
			clusterName(),
		),
		mcp.NewTool("cluster_nodes",
			mcp.WithDescription("List the cluster's nodes"),
			clusterName(),
		),
	}
}

// Port Forward Tools
func (t *Tools) getPortForwardTools() []mcp.Tool {
	return []mcp.Tool{
		mcp.NewTool("portforward_start",
			mcp.WithDescription("Forward a local port to a pod or service until portforward_stop"),
			clusterName(),
			mcp.WithString("target", mcp.Required(), mcp.Description("Target, e.g. pod/web or svc/web")),
			mcp.WithNumber("local_port", mcp.Required(), mcp.Description("Local port")),
			mcp.WithNumber("remote_port", mcp.Required(), mcp.Description("Remote port")),
			mcp.WithString("namespace", mcp.Description("Namespace (default: default)")),
			mcp.WithNumber("timeout", mcp.Description("Seconds to wait for the forward (default 90)")),
		),
		mcp.NewTool("portforward_stop",
			mcp.WithDescription("Stop a port-forward and wait until the local port is released"),
			mcp.WithNumber("local_port", mcp.Required(), mcp.Description("Local port of the forward")),
		),
	}
}

func seconds(req mcp.CallToolRequest, key string, def time.Duration) time.Duration {
	v := req.GetFloat(key, 0)
	if v <= 0 {
		return def
	}
	return time.Duration(v * float64(time.Second))
}

func (t *Tools) manager(req mcp.CallToolRequest) (*cluster.Manager, *mcp.CallToolResult) {
	name, err := req.RequireString("name")
	if err != nil {
		return nil, mcp.NewToolResultError("name is required")
	}
	m, err := t.reg.Manager(name)
	if err != nil {
		return nil, mcp.NewToolResultError(err.Error())
	}
	return m, nil
}

func jsonResult(v interface{}) *mcp.CallToolResult {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to format result: %v", err))
	}
	return mcp.NewToolResultText(string(data))
}

// HandleClusterCreate handles the cluster_create tool call
func (t *Tools) HandleClusterCreate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError("name is required"), nil
	}
	opts := config.ClusterOptions{
		APIVersion:     req.GetString("api_version", ""),
		ProviderConfig: req.GetString("provider_config", ""),
		KubeconfigPath: req.GetString("kubeconfig", ""),
		KubeContext:    req.GetString("context", ""),
	}
	m, err := t.reg.Ensure(name, req.GetString("provider", ""), opts)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to set up cluster: %v", err)), nil
	}

	logging.Info(subsystem, "cluster_create %s", name)
	err = m.Create(ctx, cluster.CreateOptions{
		Options:      &opts,
		ReadyTimeout: seconds(req, "ready_timeout", config.DefaultReadyTimeout),
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to create cluster: %v", err)), nil
	}
	return jsonResult(map[string]string{
		"name":       m.Name(),
		"provider":   m.Provider().Name(),
		"kubeconfig": m.KubeconfigPath(),
	}), nil
}

// HandleClusterDelete handles the cluster_delete tool call
func (t *Tools) HandleClusterDelete(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	m, errResult := t.manager(req)
	if errResult != nil {
		return errResult, nil
	}
	name := req.GetString("name", "")
	err := m.Delete(ctx)
	t.reg.Forget(name)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to delete cluster: %v", err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Successfully deleted cluster '%s'", m.Name())), nil
}

// HandleClusterReset handles the cluster_reset tool call
func (t *Tools) HandleClusterReset(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	m, errResult := t.manager(req)
	if errResult != nil {
		return errResult, nil
	}
	if err := m.Reset(ctx); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to reset cluster: %v", err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Successfully reset cluster '%s'", m.Name())), nil
}

// HandleClusterReady handles the cluster_ready tool call
func (t *Tools) HandleClusterReady(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	m, errResult := t.manager(req)
	if errResult != nil {
		return errResult, nil
	}
	ready, err := m.Ready(ctx, seconds(req, "timeout", 5*time.Second))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to check readiness: %v", err)), nil
	}
	return jsonResult(map[string]interface{}{"name": m.Name(), "ready": ready}), nil
}

// HandleClusterList handles the cluster_list tool call
func (t *Tools) HandleClusterList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	type clusterInfo struct {
		Name       string `json:"name"`
		Provider   string `json:"provider"`
		Kubeconfig string `json:"kubeconfig,omitempty"`
	}
	list := []clusterInfo{}
	for _, n := range t.reg.Names() {
		m, err := t.reg.Manager(n)
		if err != nil {
			continue
		}
		list = append(list, clusterInfo{Name: m.Name(), Provider: m.Provider().Name(), Kubeconfig: m.KubeconfigPath()})
	}
	return jsonResult(list), nil
}

// HandleClusterApply handles the cluster_apply tool call
func (t *Tools) HandleClusterApply(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	m, errResult := t.manager(req)
	if errResult != nil {
		return errResult, nil
	}
	file := req.GetString("file", "")
	inline := req.GetString("manifest", "")

	var manifest cluster.Manifest
	switch {
	case file != "" && inline != "":
		return mcp.NewToolResultError("give either file or manifest, not both"), nil
	case file != "":
		manifest = cluster.ManifestFile(file)
	case inline != "":
		var doc map[string]interface{}
		if err := sigsyaml.Unmarshal([]byte(inline), &doc); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Invalid manifest: %v", err)), nil
		}
		manifest = cluster.Document(doc)
	default:
		return mcp.NewToolResultError("file or manifest is required"), nil
	}

	if err := m.Apply(ctx, manifest); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to apply: %v", err)), nil
	}
	return mcp.NewToolResultText("Applied"), nil
}

// HandleClusterKubectl handles the cluster_kubectl tool call
func (t *Tools) HandleClusterKubectl(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	m, errResult := t.manager(req)
	if errResult != nil {
		return errResult, nil
	}
	args, err := req.RequireString("args")
	if err != nil {
		return mcp.NewToolResultError("args is required"), nil
	}
	client, err := m.Kubectl()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	resp, err := client.Invoke(ctx, kubectl.Request{Args: strings.Fields(args), JSON: req.GetBool("json", false)})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("kubectl failed: %v", err)), nil
	}
	if resp.Data != nil {
		return jsonResult(resp.Data), nil
	}
	return mcp.NewToolResultText(resp.Text), nil
}

// HandleClusterLogs handles the cluster_logs tool call
func (t *Tools) HandleClusterLogs(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	m, errResult := t.manager(req)
	if errResult != nil {
		return errResult, nil
	}
	pod, err := req.RequireString("pod")
	if err != nil {
		return mcp.NewToolResultError("pod is required"), nil
	}
	logs, err := m.Logs(ctx, pod, cluster.LogOptions{
		Container: req.GetString("container", ""),
		Namespace: req.GetString("namespace", ""),
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to get logs: %v", err)), nil
	}
	return mcp.NewToolResultText(logs), nil
}

// HandleClusterWait handles the cluster_wait tool call
func (t *Tools) HandleClusterWait(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	m, errResult := t.manager(req)
	if errResult != nil {
		return errResult, nil
	}
	resource, err := req.RequireString("resource")
	if err != nil {
		return mcp.NewToolResultError("resource is required"), nil
	}
	condition, err := req.RequireString("condition")
	if err != nil {
		return mcp.NewToolResultError("condition is required"), nil
	}
	timeout := seconds(req, "timeout", 90*time.Second)
	if err := m.Wait(ctx, resource, condition, timeout, req.GetString("namespace", "")); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Wait failed: %v", err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("%s met %s", resource, condition)), nil
}

// HandleClusterLoadImage handles the cluster_load_image tool call
func (t *Tools) HandleClusterLoadImage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	m, errResult := t.manager(req)
	if errResult != nil {
		return errResult, nil
	}
	image, err := req.RequireString("image")
	if err != nil {
		return mcp.NewToolResultError("image is required"), nil
	}
	if err := m.LoadImage(ctx, image); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Loaded image '%s' into '%s'", image, m.Name())), nil
}

// HandleClusterVersion handles the cluster_version tool call
func (t *Tools) HandleClusterVersion(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	m, errResult := t.manager(req)
	if errResult != nil {
		return errResult, nil
	}
	major, minor, err := m.Version(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to get version: %v", err)), nil
	}
	return jsonResult(map[string]int{"major": major, "minor": minor}), nil
}

// HandleClusterNodes handles the cluster_nodes tool call
func (t *Tools) HandleClusterNodes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	m, errResult := t.manager(req)
	if errResult != nil {
		return errResult, nil
	}
	nodes, err := m.Nodes(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to list nodes: %v", err)), nil
	}
	names := make([]string, 0, len(nodes.Items))
	for _, n := range nodes.Items {
		names = append(names, n.Name)
	}
	return jsonResult(names), nil
}

// HandlePortForwardStart handles the portforward_start tool call
func (t *Tools) HandlePortForwardStart(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	m, errResult := t.manager(req)
	if errResult != nil {
		return errResult, nil
	}
	target, err := req.RequireString("target")
	if err != nil {
		return mcp.NewToolResultError("target is required"), nil
	}
	local, err := req.RequireFloat("local_port")
	if err != nil {
		return mcp.NewToolResultError("local_port is required"), nil
	}
	remote, err := req.RequireFloat("remote_port")
	if err != nil {
		return mcp.NewToolResultError("remote_port is required"), nil
	}

	f, err := m.PortForward(target, int(local), int(remote), req.GetString("namespace", ""), seconds(req, "timeout", 0))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := t.reg.AddForward(f); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	// The forward outlives this request.
	if err := f.Start(context.WithoutCancel(ctx)); err != nil {
		t.reg.TakeForward(int(local))
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Forwarding %s -> %s:%d", f.LocalAddress(), target, int(remote))), nil
}

// HandlePortForwardStop handles the portforward_stop tool call
func (t *Tools) HandlePortForwardStop(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	local, err := req.RequireFloat("local_port")
	if err != nil {
		return mcp.NewToolResultError("local_port is required"), nil
	}
	f, ok := t.reg.TakeForward(int(local))
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("no port-forward on local port %d", int(local))), nil
	}
	if err := f.Stop(ctx); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Stopped port-forward on %d", int(local))), nil
}
