package config

import (
	"time"
)

// ToolConfig is the top-level configuration structure for kubetestenv.
type ToolConfig struct {
	Defaults DefaultsConfig `yaml:"defaults"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// DefaultsConfig supplies values for CLI flags that were not given.
type DefaultsConfig struct {
	Provider       string        `yaml:"provider,omitempty"`       // empty selects the first installed provider
	ClusterName    string        `yaml:"clusterName,omitempty"`
	APIVersion     string        `yaml:"apiVersion,omitempty"`     // e.g. "1.25.3"
	ClusterTimeout time.Duration `yaml:"clusterTimeout,omitempty"` // provider create timeout
	ReadyTimeout   time.Duration `yaml:"readyTimeout,omitempty"`
	Kubectl        string        `yaml:"kubectl,omitempty"` // kubectl binary
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level string `yaml:"level,omitempty"` // debug, info, warn, error
	File  string `yaml:"file,omitempty"`  // rotated log file instead of stderr
}

// MetricsConfig controls the Prometheus endpoint of "serve".
type MetricsConfig struct {
	Address string `yaml:"address,omitempty"` // empty disables the endpoint
}
