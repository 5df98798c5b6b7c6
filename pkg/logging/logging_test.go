package logging

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want LogLevel
	}{
		{"debug", LevelDebug},
		{" DEBUG ", LevelDebug},
		{"info", LevelInfo},
		{"warn", LevelWarn},
		{"warning", LevelWarn},
		{"error", LevelError},
		{"", LevelInfo},
		{"verbose", LevelInfo},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseLevel(tt.in), tt.in)
	}
}

func TestLevelString(t *testing.T) {
	assert.Equal(t, "DEBUG", LevelDebug.String())
	assert.Equal(t, "ERROR", LevelError.String())
	assert.Equal(t, "UNKNOWN", LogLevel(42).String())
}

func TestCLIModeFiltersAndTagsSubsystem(t *testing.T) {
	var buf bytes.Buffer
	InitForCLI(LevelInfo, &buf)

	Debug("Cluster", "hidden %d", 1)
	Info("Cluster", "creating %s", "e2e")
	Error("Executor", errors.New("exit status 1"), "k3d failed")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "creating e2e")
	assert.Contains(t, out, "subsystem=Cluster")
	assert.Contains(t, out, `error="exit status 1"`)
}

func TestTUIModeDeliversEntries(t *testing.T) {
	ch := InitForTUI(LevelWarn)
	t.Cleanup(func() { InitForCLI(LevelInfo, os.Stderr) })
	require.NotNil(t, ch)

	Info("PortForward", "dropped below level")
	Warn("PortForward", "port %d still open", 8080)

	select {
	case e := <-ch:
		assert.Equal(t, LevelWarn, e.Level)
		assert.Equal(t, "PortForward", e.Subsystem)
		assert.Equal(t, "port 8080 still open", e.Message)
	case <-time.After(time.Second):
		t.Fatal("no entry delivered")
	}

	CloseTUIChannel()
	_, ok := <-ch
	assert.False(t, ok, "channel closed")

	// Logging after close must not panic.
	Warn("PortForward", "after close")
}

func TestInitWithFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kubetestenv.log")
	closer := InitWithFile(LevelDebug, path)
	t.Cleanup(func() { InitForCLI(LevelInfo, os.Stderr) })

	Debug("Config", "loaded %s", "config.yaml")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "loaded config.yaml")
}
