package cmd

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"

	"kubetestenv/internal/cluster"
)

func newApplyCmd() *cobra.Command {
	var files []string

	cmd := &cobra.Command{
		Use:   "apply -f FILE",
		Short: "Apply manifests to a cluster",
		Long: `Runs "kubectl apply" against the cluster selected with --name. Files and
URLs are passed to kubectl as they are. With "-f -" the manifests are read
from standard input and applied one document at a time.`,
		Example: `  kubetestenv apply --name e2e -f deploy/
  cat configmap.yaml | kubetestenv apply --name e2e -f -`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(files) == 0 {
				return errors.New("at least one -f is required")
			}
			m, err := currentManager()
			if err != nil {
				return err
			}
			ctx := commandContext(cmd)

			for _, f := range files {
				if f != "-" {
					if err := m.Apply(ctx, cluster.ManifestFile(f)); err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Applied %s\n", f)
					continue
				}

				docs, err := readDocuments(cmd.InOrStdin())
				if err != nil {
					return err
				}
				for _, doc := range docs {
					if err := m.Apply(ctx, cluster.Document(doc)); err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Applied %s %s\n", doc.GetKind(), doc.GetName())
				}
			}
			return nil
		},
	}

	cmd.Flags().StringSliceVarP(&files, "filename", "f", nil, "Manifest file, directory or URL; - reads standard input")
	return cmd
}

// readDocuments splits a multi-document YAML stream. Empty documents are skipped.
func readDocuments(r io.Reader) ([]*unstructured.Unstructured, error) {
	var docs []*unstructured.Unstructured
	dec := yaml.NewDecoder(r)
	for {
		var obj map[string]interface{}
		err := dec.Decode(&obj)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse manifest %d: %w", len(docs)+1, err)
		}
		if len(obj) == 0 {
			continue
		}
		docs = append(docs, &unstructured.Unstructured{Object: obj})
	}
	if len(docs) == 0 {
		return nil, errors.New("no manifests on standard input")
	}
	return docs, nil
}
