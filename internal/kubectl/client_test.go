package kubectl

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kubetestenv/internal/executor"
	"kubetestenv/internal/executor/executortest"
)

func newTestClient(t *testing.T, h executortest.HandlerFunc, opts ...Option) (*Client, *executortest.Runner) {
	t.Helper()
	r := &executortest.Runner{Handler: h}
	c, err := New("/tmp/kubeconfig", append([]Option{WithRunner(r)}, opts...)...)
	require.NoError(t, err)
	return c, r
}

func TestNewRequiresKubeconfig(t *testing.T) {
	_, err := New("")
	assert.ErrorIs(t, err, ErrNoKubeconfig)
}

func TestInvokePrependsConnectionFlags(t *testing.T) {
	c, r := newTestClient(t, func(executortest.Call) (executor.Result, error) {
		return executortest.OK("  pod/a created\n")
	}, WithContext("kind-test"))

	out, err := c.Raw(context.Background(), "get", "pods")
	require.NoError(t, err)
	assert.Equal(t, "pod/a created", out)

	calls := r.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "kubectl", calls[0].Binary)
	assert.Equal(t, []string{"--kubeconfig", "/tmp/kubeconfig", "--context", "kind-test", "get", "pods"}, calls[0].Args)
	assert.Equal(t, DefaultTimeout, calls[0].Timeout)
}

func TestInvokeJSONAppendsOutputFlag(t *testing.T) {
	c, r := newTestClient(t, func(executortest.Call) (executor.Result, error) {
		return executortest.OK(`{"kind":"ConfigMap","apiVersion":"v1","metadata":{"name":"demo"},"data":{"k":"v"}}`)
	})

	resp, err := c.Invoke(context.Background(), Request{Args: []string{"get", "configmap", "demo"}, JSON: true})
	require.NoError(t, err)

	calls := r.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, []string{"--kubeconfig", "/tmp/kubeconfig", "get", "configmap", "demo", "-o", "json"}, calls[0].Args)

	doc, ok := resp.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "ConfigMap", doc["kind"])
}

func TestJSONDecodesIntoStruct(t *testing.T) {
	c, _ := newTestClient(t, func(executortest.Call) (executor.Result, error) {
		return executortest.OK(`{"data":{"key":"value"}}`)
	})

	var cm struct {
		Data map[string]string `json:"data"`
	}
	require.NoError(t, c.JSON(context.Background(), &cm, "get", "configmap", "x"))
	assert.Equal(t, "value", cm.Data["key"])
}

func TestObject(t *testing.T) {
	c, _ := newTestClient(t, func(executortest.Call) (executor.Result, error) {
		return executortest.OK(`{"kind":"Namespace","apiVersion":"v1","metadata":{"name":"default"}}`)
	})

	obj, err := c.Object(context.Background(), "get", "namespace", "default")
	require.NoError(t, err)
	assert.Equal(t, "default", obj.GetName())
	assert.Equal(t, "Namespace", obj.GetKind())
}

func TestInvokeFormatUnsupported(t *testing.T) {
	tests := []struct {
		name   string
		stderr string
	}{
		{name: "shorthand", stderr: "error: unknown shorthand flag: 'o' in -o"},
		{name: "long flag", stderr: "Error: unknown flag: --output"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, r := newTestClient(t, func(call executortest.Call) (executor.Result, error) {
				if strings.Contains(call.Line(), "-o json") {
					return executortest.Fail(call, tt.stderr)
				}
				return executortest.OK("started server\n")
			})
			ctx := context.Background()

			_, err := c.Invoke(ctx, Request{Args: []string{"logs", "pod"}, JSON: true})
			require.Error(t, err)
			assert.True(t, IsFormatUnsupported(err))

			var cmdErr *executor.ExternalCommandError
			assert.True(t, errors.As(err, &cmdErr), "underlying command error stays reachable")

			// Retrying the same command in raw mode succeeds.
			resp, err := c.Invoke(ctx, Request{Args: []string{"logs", "pod"}})
			require.NoError(t, err)
			assert.Equal(t, "started server", resp.Text)
			assert.Len(t, r.Calls(), 2)
		})
	}
}

func TestInvokeUnparseable(t *testing.T) {
	c, _ := newTestClient(t, func(executortest.Call) (executor.Result, error) {
		return executortest.OK("this is not json")
	})

	_, err := c.Invoke(context.Background(), Request{Args: []string{"get", "pods"}, JSON: true})
	var de *DecodeError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, Unparseable, de.Reason)
	assert.Equal(t, "this is not json", de.Output)
	assert.False(t, IsFormatUnsupported(err))

	var cmdErr *executor.ExternalCommandError
	assert.False(t, errors.As(err, &cmdErr))
}

func TestInvokeCommandFailureIsNotDecodeError(t *testing.T) {
	c, _ := newTestClient(t, func(call executortest.Call) (executor.Result, error) {
		return executortest.Fail(call, `Error from server (NotFound): configmaps "x" not found`)
	})

	_, err := c.Invoke(context.Background(), Request{Args: []string{"get", "configmap", "x"}, JSON: true})
	var cmdErr *executor.ExternalCommandError
	require.ErrorAs(t, err, &cmdErr)
	assert.Contains(t, cmdErr.Stderr, "not found")

	var de *DecodeError
	assert.False(t, errors.As(err, &de))
}

func TestRawWithInputStreamsStdin(t *testing.T) {
	c, r := newTestClient(t, nil)

	_, err := c.RawWithInput(context.Background(), []byte("kind: ConfigMap\n"), "apply", "-f", "-")
	require.NoError(t, err)

	calls := r.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "kind: ConfigMap\n", calls[0].StdinData)
}

func TestRequestTimeoutOverridesDefault(t *testing.T) {
	c, r := newTestClient(t, nil, WithTimeout(5*DefaultTimeout), WithBinary("/opt/bin/kubectl"))

	_, err := c.Invoke(context.Background(), Request{Args: []string{"version"}, Timeout: 3 * DefaultTimeout})
	require.NoError(t, err)

	calls := r.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "/opt/bin/kubectl", calls[0].Binary)
	assert.Equal(t, 3*DefaultTimeout, calls[0].Timeout)
}
