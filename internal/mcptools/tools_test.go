package mcptools

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kubetestenv/internal/cluster"
	"kubetestenv/internal/config"
	"kubetestenv/internal/executor"
	"kubetestenv/internal/executor/executortest"
)

const testKubeconfig = `apiVersion: v1
kind: Config
clusters:
- name: test
  cluster:
    server: https://127.0.0.1:6443
contexts:
- name: test
  context:
    cluster: test
    user: test
current-context: test
users:
- name: test
  user:
    token: abc
`

func kubectlFake(c executortest.Call) (executor.Result, error) {
	line := c.Line()
	switch {
	case strings.Contains(line, "/readyz"):
		return executortest.OK("readyz check passed")
	case strings.Contains(line, "serviceaccount default"):
		return executortest.OK("default   0   1m")
	case strings.Contains(line, "version -o json"):
		return executortest.OK(`{"serverVersion":{"major":"1","minor":"25"}}`)
	case strings.Contains(line, "get nodes -o json"):
		return executortest.OK(`{"items":[{"metadata":{"name":"node-a"}}]}`)
	case strings.Contains(line, "get pods -o json"):
		return executortest.OK(`{"kind":"List","items":[]}`)
	}
	return executortest.OK("")
}

func newTestTools(t *testing.T) (*Tools, *executortest.Runner, string) {
	t.Helper()
	kubeconfig := filepath.Join(t.TempDir(), "kubeconfig")
	require.NoError(t, os.WriteFile(kubeconfig, []byte(testKubeconfig), 0600))

	r := &executortest.Runner{Handler: kubectlFake}
	factory := func(name, provider string, opts config.ClusterOptions) (*cluster.Manager, error) {
		return cluster.NewManager(name, &cluster.External{},
			cluster.WithOptions(opts),
			cluster.WithRunner(r),
			cluster.WithPollInterval(10*time.Millisecond),
			cluster.WithSettleDelay(0),
		)
	}
	return New(NewRegistry(config.GetDefaultConfig().Defaults, factory)), r, kubeconfig
}

func call(name string, args map[string]interface{}) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

func text(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, result)
	require.Len(t, result.Content, 1)
	content, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok)
	return content.Text
}

func TestGetTools(t *testing.T) {
	tools, _, _ := newTestTools(t)

	toolNames := make(map[string]bool)
	for _, tool := range tools.GetTools() {
		toolNames[tool.Name] = true
	}
	for _, name := range []string{
		"cluster_create", "cluster_delete", "cluster_reset", "cluster_ready", "cluster_list",
		"cluster_apply", "cluster_kubectl", "cluster_logs", "cluster_wait", "cluster_load_image",
		"cluster_version", "cluster_nodes", "portforward_start", "portforward_stop",
	} {
		assert.True(t, toolNames[name], name)
	}

	serverTools := tools.ServerTools()
	assert.Len(t, serverTools, len(toolNames))
	for _, st := range serverTools {
		assert.NotNil(t, st.Handler, st.Tool.Name)
	}

	assert.NotNil(t, NewServer("test", tools))
}

func TestClusterLifecycleTools(t *testing.T) {
	tools, _, kubeconfig := newTestTools(t)
	ctx := context.Background()

	result, err := tools.HandleClusterCreate(ctx, call("cluster_create", map[string]interface{}{
		"name":       "e2e",
		"provider":   "external",
		"kubeconfig": kubeconfig,
	}))
	require.NoError(t, err)
	assert.False(t, result.IsError, text(t, result))
	assert.Contains(t, text(t, result), kubeconfig)

	result, err = tools.HandleClusterList(ctx, call("cluster_list", nil))
	require.NoError(t, err)
	assert.Contains(t, text(t, result), "kubetestenv-e2e")

	result, err = tools.HandleClusterReady(ctx, call("cluster_ready", map[string]interface{}{"name": "e2e", "timeout": 1.0}))
	require.NoError(t, err)
	assert.Contains(t, text(t, result), `"ready": true`)

	result, err = tools.HandleClusterVersion(ctx, call("cluster_version", map[string]interface{}{"name": "e2e"}))
	require.NoError(t, err)
	assert.Contains(t, text(t, result), `"minor": 25`)

	result, err = tools.HandleClusterNodes(ctx, call("cluster_nodes", map[string]interface{}{"name": "e2e"}))
	require.NoError(t, err)
	assert.Contains(t, text(t, result), "node-a")

	result, err = tools.HandleClusterDelete(ctx, call("cluster_delete", map[string]interface{}{"name": "e2e"}))
	require.NoError(t, err)
	assert.False(t, result.IsError)
	assert.FileExists(t, kubeconfig, "external kubeconfig survives delete")

	result, err = tools.HandleClusterList(ctx, call("cluster_list", nil))
	require.NoError(t, err)
	assert.Equal(t, "[]", text(t, result))
}

func TestClusterApplyTool(t *testing.T) {
	tools, r, kubeconfig := newTestTools(t)
	ctx := context.Background()
	_, err := tools.HandleClusterCreate(ctx, call("cluster_create", map[string]interface{}{"name": "a", "kubeconfig": kubeconfig}))
	require.NoError(t, err)
	r.Reset()

	result, err := tools.HandleClusterApply(ctx, call("cluster_apply", map[string]interface{}{
		"name":     "a",
		"manifest": "apiVersion: v1\nkind: ConfigMap\nmetadata:\n  name: demo\ndata:\n  k: v\n",
	}))
	require.NoError(t, err)
	assert.False(t, result.IsError, text(t, result))
	calls := r.Calls()
	require.Len(t, calls, 1)
	assert.Contains(t, calls[0].StdinData, "name: demo")

	result, err = tools.HandleClusterApply(ctx, call("cluster_apply", map[string]interface{}{"name": "a"}))
	require.NoError(t, err)
	assert.True(t, result.IsError)

	result, err = tools.HandleClusterApply(ctx, call("cluster_apply", map[string]interface{}{
		"name": "a", "file": "/x.yaml", "manifest": "kind: X",
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestClusterKubectlTool(t *testing.T) {
	tools, r, kubeconfig := newTestTools(t)
	ctx := context.Background()
	_, err := tools.HandleClusterCreate(ctx, call("cluster_create", map[string]interface{}{"name": "a", "kubeconfig": kubeconfig}))
	require.NoError(t, err)
	r.Reset()

	result, err := tools.HandleClusterKubectl(ctx, call("cluster_kubectl", map[string]interface{}{
		"name": "a", "args": "get pods", "json": true,
	}))
	require.NoError(t, err)
	assert.Contains(t, text(t, result), `"kind": "List"`)
	calls := r.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, []string{"--kubeconfig", kubeconfig, "get", "pods", "-o", "json"}, calls[0].Args)
}

func TestToolErrors(t *testing.T) {
	tools, _, _ := newTestTools(t)
	ctx := context.Background()

	result, err := tools.HandleClusterVersion(ctx, call("cluster_version", map[string]interface{}{"name": "missing"}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, text(t, result), "unknown cluster")

	result, err = tools.HandleClusterCreate(ctx, call("cluster_create", map[string]interface{}{}))
	require.NoError(t, err)
	assert.True(t, result.IsError)

	result, err = tools.HandlePortForwardStop(ctx, call("portforward_stop", map[string]interface{}{"local_port": 18080.0}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, text(t, result), "18080")
}
