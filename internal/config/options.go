package config

import (
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
)

// ClusterOptions are the per-cluster settings a manager is created with.
// The zero value is usable after WithDefaults.
type ClusterOptions struct {
	// ClusterName overrides the manager's name. Not allowed with ProviderConfig,
	// which carries its own name.
	ClusterName string
	// APIVersion is the Kubernetes version without a leading "v", e.g. "1.25.3".
	APIVersion string
	// KubeconfigPath is allocated as a temp file on create when empty.
	KubeconfigPath string
	// ProviderConfig is a provider specific cluster configuration file.
	ProviderConfig string
	// ClusterTimeout bounds provider commands.
	ClusterTimeout time.Duration
	// KubeContext selects a context in the kubeconfig; empty uses the current one.
	KubeContext string
}

// DefaultClusterOptions returns options with the built-in defaults.
func DefaultClusterOptions() ClusterOptions {
	return ClusterOptions{
		APIVersion:     DefaultAPIVersion,
		ClusterTimeout: DefaultClusterTimeout,
	}
}

// WithDefaults fills unset fields with built-in defaults.
func (o ClusterOptions) WithDefaults() ClusterOptions {
	return DefaultClusterOptions().Merge(o)
}

// Merge returns o overlaid with every non-zero field of other.
func (o ClusterOptions) Merge(other ClusterOptions) ClusterOptions {
	merged := o
	if other.ClusterName != "" {
		merged.ClusterName = other.ClusterName
	}
	if other.APIVersion != "" {
		merged.APIVersion = other.APIVersion
	}
	if other.KubeconfigPath != "" {
		merged.KubeconfigPath = other.KubeconfigPath
	}
	if other.ProviderConfig != "" {
		merged.ProviderConfig = other.ProviderConfig
	}
	if other.ClusterTimeout != 0 {
		merged.ClusterTimeout = other.ClusterTimeout
	}
	if other.KubeContext != "" {
		merged.KubeContext = other.KubeContext
	}
	return merged
}

// Validate checks the options for contradictions.
func (o ClusterOptions) Validate() error {
	if o.ClusterName != "" && o.ProviderConfig != "" {
		return &ConfigurationError{
			Path:  o.ProviderConfig,
			Index: -1,
			Msg:   "cluster name " + o.ClusterName + " given together with a provider config, which defines the name",
		}
	}
	if o.APIVersion != "" && !validAPIVersion(o.APIVersion) {
		msg := "api version " + o.APIVersion + " is not of the form 1.25.3"
		if strings.HasPrefix(o.APIVersion, "v") {
			msg += " (drop the leading v)"
		}
		return &ConfigurationError{Index: -1, Msg: msg}
	}
	if o.ClusterTimeout < 0 {
		return &ConfigurationError{Index: -1, Msg: "cluster timeout must not be negative"}
	}
	return nil
}

// validAPIVersion accepts major.minor or major.minor.patch without a leading
// "v" or a pre-release suffix; providers add their own image suffixes.
func validAPIVersion(s string) bool {
	if strings.HasPrefix(s, "v") {
		return false
	}
	if dots := strings.Count(s, "."); dots < 1 || dots > 2 {
		return false
	}
	v, err := semver.NewVersion(s)
	return err == nil && v.Prerelease() == "" && v.Metadata() == ""
}

// TimeoutSeconds is ClusterTimeout in whole seconds as provider CLIs expect it.
func (o ClusterOptions) TimeoutSeconds() int {
	return int(o.ClusterTimeout / time.Second)
}
