package config

import (
	"fmt"
	"os"
	"strings"

	k3dconfig "github.com/k3d-io/k3d/v5/pkg/config/v1alpha5"
	"gopkg.in/yaml.v3"
	sigsyaml "sigs.k8s.io/yaml"
)

// MinikubeSetting is one "minikube config set <name> <value>" entry.
type MinikubeSetting struct {
	Name  string
	Value string
}

// ProviderFile is what kubetestenv reads from a provider cluster config file.
// The file itself is passed on to the provider untouched.
type ProviderFile struct {
	Path       string
	APIVersion string
	Kind       string
	// Name is the cluster name the file defines, empty if it defines none.
	Name string
	// MinikubeConfigs are the entries of a minikube "configs" list.
	MinikubeConfigs []MinikubeSetting
}

// LoadProviderFile reads and parses the provider config file at path.
func LoadProviderFile(path string) (*ProviderFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read provider config: %w", err)
	}
	return ParseProviderFile(path, data)
}

// ParseProviderFile parses data read from path.
func ParseProviderFile(path string, data []byte) (*ProviderFile, error) {
	var doc map[string]interface{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, &ConfigurationError{Path: path, Index: -1, Msg: err.Error()}
	}
	pf := &ProviderFile{Path: path}
	if doc == nil {
		return pf, nil
	}
	pf.APIVersion, _ = doc["apiVersion"].(string)
	pf.Kind, _ = doc["kind"].(string)

	if strings.HasPrefix(pf.APIVersion, "k3d.io/v1alpha5") {
		var simple k3dconfig.SimpleConfig
		if err := sigsyaml.Unmarshal(data, &simple); err != nil {
			return nil, &ConfigurationError{Path: path, Index: -1, Msg: "invalid k3d config: " + err.Error()}
		}
		pf.Name = simple.ObjectMeta.Name
	} else if raw, ok := doc["name"]; ok {
		name, ok := raw.(string)
		if !ok {
			return nil, &ConfigurationError{Path: path, Index: -1, Msg: "name must be a string"}
		}
		pf.Name = name
	}

	settings, err := parseMinikubeConfigs(path, doc)
	if err != nil {
		return nil, err
	}
	pf.MinikubeConfigs = settings
	return pf, nil
}

func parseMinikubeConfigs(path string, doc map[string]interface{}) ([]MinikubeSetting, error) {
	raw, ok := doc["configs"]
	if !ok || raw == nil {
		return nil, nil
	}
	list, ok := raw.([]interface{})
	if !ok {
		return nil, &ConfigurationError{Path: path, Index: -1, Msg: "configs must be a list of {name, value} entries"}
	}
	settings := make([]MinikubeSetting, 0, len(list))
	for i, item := range list {
		entry, ok := item.(map[string]interface{})
		if !ok {
			return nil, &ConfigurationError{Path: path, Index: i, Msg: "entry must be a mapping with name and value"}
		}
		name, hasName := entry["name"]
		value, hasValue := entry["value"]
		if !hasName || name == nil {
			return nil, &ConfigurationError{Path: path, Index: i, Msg: "missing key name"}
		}
		if !hasValue || value == nil {
			return nil, &ConfigurationError{Path: path, Index: i, Msg: "missing key value"}
		}
		settings = append(settings, MinikubeSetting{
			Name:  fmt.Sprint(name),
			Value: fmt.Sprint(value),
		})
	}
	return settings, nil
}
