// Package config provides configuration management for kubetestenv.
//
// It covers three things:
//
//   - ClusterOptions, the per-cluster settings handed to a cluster manager.
//   - Provider configuration files, from which the cluster name is derived
//     and, for minikube, a list of "minikube config set" entries is read.
//   - The layered tool configuration that supplies CLI defaults.
//
// # Configuration Layers
//
// The tool configuration is loaded and merged in the following order:
//
//  1. Default Configuration (embedded in binary)
//  2. User Configuration (~/.config/kubetestenv/config.yaml)
//  3. Project Configuration (./.kubetestenv/config.yaml)
//  4. Environment variables KUBETESTENV_PROVIDER, KUBETESTENV_CLUSTER_NAME
//     and KUBETESTENV_API_VERSION
//
// # Configuration Structure
//
//	defaults:
//	  provider: kind
//	  clusterName: e2e
//	  apiVersion: 1.30.0
//	  clusterTimeout: 4m
//	  readyTimeout: 30s
//	  kubectl: /usr/local/bin/kubectl
//	logging:
//	  level: debug
//	  file: /tmp/kubetestenv.log
//	metrics:
//	  address: 127.0.0.1:9464
//
// # Provider Configuration Files
//
// kind and older k3d configs carry a top-level "name"; k3d v1alpha5 configs
// carry "metadata.name". Minikube files look like:
//
//	name: my-cluster
//	configs:
//	  - name: memory
//	    value: 4096
package config
