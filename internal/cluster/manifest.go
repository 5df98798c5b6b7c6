package cluster

import (
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	sigsyaml "sigs.k8s.io/yaml"
)

// Manifest is something Apply can hand to "kubectl apply". It is either a
// ManifestFile or a ManifestDocument.
type Manifest interface {
	isManifest()
}

// ManifestFile is a path to a YAML or JSON manifest on disk, or a URL kubectl can read.
type ManifestFile string

func (ManifestFile) isManifest() {}

// ManifestDocument is an in-memory object: a map, a typed Kubernetes object
// or an unstructured.Unstructured.
type ManifestDocument struct {
	Object interface{}
}

func (ManifestDocument) isManifest() {}

// Document wraps obj as a ManifestDocument.
func Document(obj interface{}) ManifestDocument {
	return ManifestDocument{Object: obj}
}

// YAML serializes the document. JSON tags of typed objects are honoured.
func (d ManifestDocument) YAML() ([]byte, error) {
	obj := d.Object
	if u, ok := obj.(unstructured.Unstructured); ok {
		obj = u.Object
	}
	if u, ok := obj.(*unstructured.Unstructured); ok && u != nil {
		obj = u.Object
	}
	return sigsyaml.Marshal(obj)
}
