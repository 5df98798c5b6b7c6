package executor

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecute_CapturesOutput(t *testing.T) {
	res, err := New().Execute(context.Background(), Command{
		Binary: "sh",
		Args:   []string{"-c", "echo out; echo err >&2"},
	})
	require.NoError(t, err)
	assert.Equal(t, "out\n", res.Stdout)
	assert.Equal(t, "err\n", res.Stderr)
	assert.Equal(t, 0, res.ExitCode)
}

func TestExecute_NonZeroExit(t *testing.T) {
	res, err := New().Execute(context.Background(), Command{
		Binary: "sh",
		Args:   []string{"-c", "echo boom >&2; exit 3"},
	})
	require.Error(t, err)

	var cmdErr *ExternalCommandError
	require.True(t, errors.As(err, &cmdErr), "expected ExternalCommandError, got %T", err)
	assert.Equal(t, 3, cmdErr.ExitCode)
	assert.Equal(t, "boom\n", cmdErr.Stderr)
	assert.Contains(t, cmdErr.Error(), "boom")
	assert.Equal(t, 3, res.ExitCode)
}

func TestExecute_Timeout(t *testing.T) {
	start := time.Now()
	_, err := New().Execute(context.Background(), Command{
		Binary:  "sh",
		Args:    []string{"-c", "echo started; sleep 30"},
		Timeout: 300 * time.Millisecond,
	})
	require.Error(t, err)

	var timeoutErr *TimeoutError
	require.True(t, errors.As(err, &timeoutErr), "expected TimeoutError, got %T: %v", err, err)
	assert.Equal(t, 300*time.Millisecond, timeoutErr.Timeout)
	// The child must have been killed rather than waited out.
	assert.Less(t, time.Since(start), 10*time.Second)
}

func TestExecute_ParentCancellationIsNotATimeout(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()

	_, err := New().Execute(ctx, Command{
		Binary:  "sleep",
		Args:    []string{"30"},
		Timeout: time.Minute,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)

	var timeoutErr *TimeoutError
	assert.False(t, errors.As(err, &timeoutErr))
}

func TestExecute_ExtraEnv(t *testing.T) {
	t.Setenv("KTE_HOST_VAR", "host")

	res, err := New().Execute(context.Background(), Command{
		Binary: "sh",
		Args:   []string{"-c", "echo $KTE_HOST_VAR-$KTE_EXTRA"},
		Env:    map[string]string{"KTE_EXTRA": "extra"},
	})
	require.NoError(t, err)
	assert.Equal(t, "host-extra", strings.TrimSpace(res.Stdout))
}

func TestExecute_IsolatedEnv(t *testing.T) {
	t.Setenv("KTE_HOST_VAR", "host")

	res, err := New().Execute(context.Background(), Command{
		Binary:     "/bin/sh",
		Args:       []string{"-c", "echo \"[$KTE_HOST_VAR]\""},
		IsolateEnv: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "[]", strings.TrimSpace(res.Stdout))
}

func TestExecute_Stdin(t *testing.T) {
	res, err := New().Execute(context.Background(), Command{
		Binary: "cat",
		Stdin:  strings.NewReader("piped: 'quoted' $value"),
	})
	require.NoError(t, err)
	assert.Equal(t, "piped: 'quoted' $value", res.Stdout)
}

func TestExecute_MissingBinary(t *testing.T) {
	_, err := New().Execute(context.Background(), Command{Binary: "kubetestenv-does-not-exist"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "kubetestenv-does-not-exist")

	var cmdErr *ExternalCommandError
	assert.False(t, errors.As(err, &cmdErr))
}

func TestExecute_NoBinary(t *testing.T) {
	_, err := New().Execute(context.Background(), Command{})
	assert.Error(t, err)
}
