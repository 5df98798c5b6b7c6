package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseProviderFile_KindName(t *testing.T) {
	pf, err := ParseProviderFile("kind.yaml", []byte(`
kind: Cluster
apiVersion: kind.x-k8s.io/v1alpha4
name: kind-from-file
nodes:
  - role: control-plane
`))
	require.NoError(t, err)
	assert.Equal(t, "kind-from-file", pf.Name)
	assert.Equal(t, "Cluster", pf.Kind)
	assert.Empty(t, pf.MinikubeConfigs)
}

func TestParseProviderFile_K3dV1alpha5(t *testing.T) {
	pf, err := ParseProviderFile("k3d.yaml", []byte(`
apiVersion: k3d.io/v1alpha5
kind: Simple
metadata:
  name: k3d-from-file
servers: 1
agents: 2
`))
	require.NoError(t, err)
	assert.Equal(t, "k3d-from-file", pf.Name)
}

func TestParseProviderFile_K3dLegacyName(t *testing.T) {
	pf, err := ParseProviderFile("k3d.yaml", []byte(`
apiVersion: k3d.io/v1alpha4
kind: Simple
name: legacy
`))
	require.NoError(t, err)
	assert.Equal(t, "legacy", pf.Name)
}

func TestParseProviderFile_Minikube(t *testing.T) {
	pf, err := ParseProviderFile("minikube.yaml", []byte(`
name: mk
configs:
  - name: memory
    value: 4096
  - name: cpus
    value: "2"
`))
	require.NoError(t, err)
	assert.Equal(t, "mk", pf.Name)
	assert.Equal(t, []MinikubeSetting{
		{Name: "memory", Value: "4096"},
		{Name: "cpus", Value: "2"},
	}, pf.MinikubeConfigs)
}

func TestParseProviderFile_NoName(t *testing.T) {
	pf, err := ParseProviderFile("kind.yaml", []byte("kind: Cluster\napiVersion: kind.x-k8s.io/v1alpha4\n"))
	require.NoError(t, err)
	assert.Empty(t, pf.Name)
}

func TestParseProviderFile_Invalid(t *testing.T) {
	tests := []struct {
		name      string
		data      string
		wantIndex int
	}{
		{name: "malformed yaml", data: "name: [", wantIndex: -1},
		{name: "configs not a list", data: "configs: memory", wantIndex: -1},
		{name: "entry without value", data: "configs:\n  - name: memory\n    value: 1\n  - name: cpus\n", wantIndex: 1},
		{name: "entry without name", data: "configs:\n  - value: 1\n", wantIndex: 0},
		{name: "entry not a mapping", data: "configs:\n  - memory\n", wantIndex: 0},
		{name: "non-string name", data: "name: [a]\n", wantIndex: -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseProviderFile("bad.yaml", []byte(tt.data))
			var cfgErr *ConfigurationError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, "bad.yaml", cfgErr.Path)
			assert.Equal(t, tt.wantIndex, cfgErr.Index)
		})
	}
}

func TestLoadProviderFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cluster.yaml")
	require.NoError(t, os.WriteFile(path, []byte("name: on-disk\n"), 0644))

	pf, err := LoadProviderFile(path)
	require.NoError(t, err)
	assert.Equal(t, "on-disk", pf.Name)
	assert.Equal(t, path, pf.Path)

	_, err = LoadProviderFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
