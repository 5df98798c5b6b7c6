package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"kubetestenv/pkg/logging"
)

const subsystem = "Config"

// For mocking in tests
var osUserHomeDir = os.UserHomeDir
var osGetwd = os.Getwd
var osLookupEnv = os.LookupEnv

const (
	userConfigDir    = ".config/kubetestenv"
	projectConfigDir = ".kubetestenv"
	configFileName   = "config.yaml"
)

// Environment overrides, applied after all files.
const (
	EnvProvider    = "KUBETESTENV_PROVIDER"
	EnvClusterName = "KUBETESTENV_CLUSTER_NAME"
	EnvAPIVersion  = "KUBETESTENV_API_VERSION"
)

// LoadConfig loads the kubetestenv configuration by layering default, user,
// and project settings, then environment overrides.
func LoadConfig() (ToolConfig, error) {
	config := GetDefaultConfig()

	userConfigPath, err := getUserConfigPath()
	if err != nil {
		// User config is optional
		logging.Warn(subsystem, "Could not determine user config path: %v", err)
	} else {
		config, err = overlayFile(config, userConfigPath)
		if err != nil {
			return ToolConfig{}, fmt.Errorf("error loading user config from %s: %w", userConfigPath, err)
		}
	}

	projectConfigPath, err := getProjectConfigPath()
	if err != nil {
		logging.Warn(subsystem, "Could not determine project config path: %v", err)
	} else {
		config, err = overlayFile(config, projectConfigPath)
		if err != nil {
			return ToolConfig{}, fmt.Errorf("error loading project config from %s: %w", projectConfigPath, err)
		}
	}

	return applyEnv(config), nil
}

var getUserConfigPath = func() (string, error) {
	homeDir, err := osUserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, userConfigDir, configFileName), nil
}

var getProjectConfigPath = func() (string, error) {
	wd, err := osGetwd()
	if err != nil {
		return "", err
	}
	return filepath.Join(wd, projectConfigDir, configFileName), nil
}

func overlayFile(base ToolConfig, path string) (ToolConfig, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return base, nil
	}
	overlay, err := loadConfigFromFile(path)
	if err != nil {
		return ToolConfig{}, err
	}
	logging.Debug(subsystem, "Loaded configuration from %s", path)
	return mergeConfigs(base, overlay), nil
}

// loadConfigFromFile loads a ToolConfig from a YAML file.
func loadConfigFromFile(filePath string) (ToolConfig, error) {
	var config ToolConfig
	data, err := os.ReadFile(filePath)
	if err != nil {
		return ToolConfig{}, err
	}
	if err := yaml.Unmarshal(data, &config); err != nil {
		return ToolConfig{}, &ConfigurationError{Path: filePath, Index: -1, Msg: err.Error()}
	}
	return config, nil
}

// mergeConfigs merges 'overlay' config into 'base' config. Set fields of
// overlay win.
func mergeConfigs(base, overlay ToolConfig) ToolConfig {
	merged := base

	if overlay.Defaults.Provider != "" {
		merged.Defaults.Provider = overlay.Defaults.Provider
	}
	if overlay.Defaults.ClusterName != "" {
		merged.Defaults.ClusterName = overlay.Defaults.ClusterName
	}
	if overlay.Defaults.APIVersion != "" {
		merged.Defaults.APIVersion = overlay.Defaults.APIVersion
	}
	if overlay.Defaults.ClusterTimeout != 0 {
		merged.Defaults.ClusterTimeout = overlay.Defaults.ClusterTimeout
	}
	if overlay.Defaults.ReadyTimeout != 0 {
		merged.Defaults.ReadyTimeout = overlay.Defaults.ReadyTimeout
	}
	if overlay.Defaults.Kubectl != "" {
		merged.Defaults.Kubectl = overlay.Defaults.Kubectl
	}

	if overlay.Logging.Level != "" {
		merged.Logging.Level = overlay.Logging.Level
	}
	if overlay.Logging.File != "" {
		merged.Logging.File = overlay.Logging.File
	}

	if overlay.Metrics.Address != "" {
		merged.Metrics.Address = overlay.Metrics.Address
	}

	return merged
}

func applyEnv(config ToolConfig) ToolConfig {
	if v, ok := osLookupEnv(EnvProvider); ok && v != "" {
		config.Defaults.Provider = v
	}
	if v, ok := osLookupEnv(EnvClusterName); ok && v != "" {
		config.Defaults.ClusterName = v
	}
	if v, ok := osLookupEnv(EnvAPIVersion); ok && v != "" {
		config.Defaults.APIVersion = v
	}
	return config
}

// GetUserConfigDir returns the user configuration directory path
func GetUserConfigDir() (string, error) {
	homeDir, err := osUserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, userConfigDir), nil
}
