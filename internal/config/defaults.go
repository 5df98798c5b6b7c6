package config

import "time"

const (
	DefaultAPIVersion     = "1.25.3"
	DefaultClusterTimeout = 240 * time.Second
	DefaultReadyTimeout   = 20 * time.Second
	DefaultClusterName    = "default"
	DefaultKubectl        = "kubectl"
	DefaultLogLevel       = "info"
)

// GetDefaultConfig returns the built-in configuration.
func GetDefaultConfig() ToolConfig {
	return ToolConfig{
		Defaults: DefaultsConfig{
			ClusterName:    DefaultClusterName,
			APIVersion:     DefaultAPIVersion,
			ClusterTimeout: DefaultClusterTimeout,
			ReadyTimeout:   DefaultReadyTimeout,
			Kubectl:        DefaultKubectl,
		},
		Logging: LoggingConfig{
			Level: DefaultLogLevel,
		},
	}
}
