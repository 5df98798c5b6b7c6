// Package kubectl wraps the kubectl binary with kubeconfig/context injection
// and optional JSON decoding.
package kubectl

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"

	"kubetestenv/internal/executor"
	"kubetestenv/pkg/logging"
)

const subsystem = "Kubectl"

// DefaultBinary is used when no binary is configured.
const DefaultBinary = "kubectl"

// DefaultTimeout bounds a single kubectl invocation.
const DefaultTimeout = 60 * time.Second

// ErrNoKubeconfig is returned when a client is built before a cluster exists.
var ErrNoKubeconfig = errors.New("no kubeconfig path set, did you create the cluster?")

// Request is a single kubectl invocation.
type Request struct {
	Args []string
	// JSON appends "-o json" and decodes stdout.
	JSON    bool
	Timeout time.Duration
	Stdin   io.Reader
}

// Response carries the outcome of Invoke. Text is the trimmed stdout; Data is
// the decoded document in JSON mode.
type Response struct {
	Text string
	Data interface{}
	Raw  []byte
}

// Client runs kubectl against one kubeconfig and optional context.
type Client struct {
	binary     string
	kubeconfig string
	context    string
	timeout    time.Duration
	runner     executor.Runner
}

// Option configures a Client.
type Option func(*Client)

// WithBinary overrides the kubectl binary.
func WithBinary(binary string) Option {
	return func(c *Client) {
		if binary != "" {
			c.binary = binary
		}
	}
}

// WithContext selects a kubeconfig context for every call.
func WithContext(name string) Option {
	return func(c *Client) { c.context = name }
}

// WithTimeout changes the default per-call timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithRunner replaces the executor.
func WithRunner(r executor.Runner) Option {
	return func(c *Client) { c.runner = r }
}

// New returns a client bound to kubeconfig.
func New(kubeconfig string, opts ...Option) (*Client, error) {
	if kubeconfig == "" {
		return nil, ErrNoKubeconfig
	}
	c := &Client{
		binary:     DefaultBinary,
		kubeconfig: kubeconfig,
		timeout:    DefaultTimeout,
		runner:     executor.New(),
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// Binary returns the kubectl binary in use.
func (c *Client) Binary() string { return c.binary }

// Kubeconfig returns the kubeconfig path.
func (c *Client) Kubeconfig() string { return c.kubeconfig }

// Context returns the context name, empty for the kubeconfig's current context.
func (c *Client) Context() string { return c.context }

// BaseArgs are the connection flags every invocation starts with.
func (c *Client) BaseArgs() []string {
	args := []string{"--kubeconfig", c.kubeconfig}
	if c.context != "" {
		args = append(args, "--context", c.context)
	}
	return args
}

// Invoke runs kubectl with req.
func (c *Client) Invoke(ctx context.Context, req Request) (Response, error) {
	args := append(c.BaseArgs(), req.Args...)
	if req.JSON {
		args = append(args, "-o", "json")
	}
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = c.timeout
	}

	res, err := c.runner.Execute(ctx, executor.Command{
		Binary:  c.binary,
		Args:    args,
		Timeout: timeout,
		Stdin:   req.Stdin,
	})
	if err != nil {
		var cmdErr *executor.ExternalCommandError
		if req.JSON && errors.As(err, &cmdErr) && isUnsupportedFlag(cmdErr.Stderr) {
			return Response{}, &DecodeError{
				Reason: FormatUnsupported,
				Args:   req.Args,
				Output: cmdErr.Stderr,
				Err:    err,
			}
		}
		return Response{}, err
	}

	out := Response{Text: strings.TrimSpace(res.Stdout), Raw: []byte(res.Stdout)}
	if !req.JSON {
		return out, nil
	}
	if err := json.Unmarshal(out.Raw, &out.Data); err != nil {
		logging.Debug(subsystem, "kubectl %v returned non-JSON output", req.Args)
		return Response{}, &DecodeError{
			Reason: Unparseable,
			Args:   req.Args,
			Output: res.Stdout,
			Err:    err,
		}
	}
	return out, nil
}

// Raw runs kubectl and returns its trimmed stdout.
func (c *Client) Raw(ctx context.Context, args ...string) (string, error) {
	resp, err := c.Invoke(ctx, Request{Args: args})
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}

// RawWithInput is Raw with stdin streamed to kubectl.
func (c *Client) RawWithInput(ctx context.Context, stdin []byte, args ...string) (string, error) {
	resp, err := c.Invoke(ctx, Request{Args: args, Stdin: bytes.NewReader(stdin)})
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}

// JSON runs kubectl in JSON mode and decodes the document into out.
func (c *Client) JSON(ctx context.Context, out interface{}, args ...string) error {
	resp, err := c.Invoke(ctx, Request{Args: args, JSON: true})
	if err != nil {
		return err
	}
	if err := json.Unmarshal(resp.Raw, out); err != nil {
		return &DecodeError{Reason: Unparseable, Args: args, Output: string(resp.Raw), Err: err}
	}
	return nil
}

// Object runs kubectl in JSON mode and returns the document as an unstructured object.
func (c *Client) Object(ctx context.Context, args ...string) (*unstructured.Unstructured, error) {
	obj := &unstructured.Unstructured{}
	resp, err := c.Invoke(ctx, Request{Args: args, JSON: true})
	if err != nil {
		return nil, err
	}
	if err := obj.UnmarshalJSON(resp.Raw); err != nil {
		return nil, &DecodeError{Reason: Unparseable, Args: args, Output: string(resp.Raw), Err: err}
	}
	return obj, nil
}

// String describes the client for logs.
func (c *Client) String() string {
	if c.context != "" {
		return fmt.Sprintf("%s (context %s)", c.kubeconfig, c.context)
	}
	return c.kubeconfig
}
