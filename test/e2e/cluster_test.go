//go:build e2e

package e2e

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	cliutil "github.com/k3d-io/k3d/v5/cmd/util"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"kubetestenv/internal/cluster"
	"kubetestenv/internal/executor"
	"kubetestenv/internal/portforward"
	"kubetestenv/pkg/k8stest"
)

var helloManifest = cluster.ManifestFile(filepath.Join("testdata", "hello.yaml"))

func configMap(name string) *corev1.ConfigMap {
	return &corev1.ConfigMap{
		TypeMeta:   metav1.TypeMeta{APIVersion: "v1", Kind: "ConfigMap"},
		ObjectMeta: metav1.ObjectMeta{Name: name},
		Data:       map[string]string{"key": "value"},
	}
}

var _ = Describe("Cluster lifecycle", func() {
	for _, providerName := range providersUnderTest() {
		Context(fmt.Sprintf("with %s", providerName), Ordered, func() {
			var (
				ctx context.Context
				m   *cluster.Manager
			)

			BeforeAll(func() {
				ctx = context.Background()
				provider, err := cluster.ProviderFor(providerName)
				Expect(err).NotTo(HaveOccurred())

				m, err = cluster.NewManager(k8stest.UniqueName("e2e"), provider)
				Expect(err).NotTo(HaveOccurred())
				Expect(m.Create(ctx, cluster.CreateOptions{ReadyTimeout: time.Minute})).To(Succeed())
			})

			AfterAll(func() {
				if m != nil {
					Expect(m.Delete(context.Background())).To(Succeed())
					Expect(m.KubeconfigPath()).To(BeEmpty())
				}
			})

			It("has exactly one control-plane node named after the cluster", func() {
				nodes, err := m.Nodes(ctx)
				Expect(err).NotTo(HaveOccurred())
				Expect(nodes.Items).To(HaveLen(1))
				Expect(nodes.Items[0].Name).To(ContainSubstring(m.Name()))

				client, err := m.Kubectl()
				Expect(err).NotTo(HaveOccurred())
				out, err := client.Raw(ctx, "get", "nodes")
				Expect(err).NotTo(HaveOccurred())
				Expect(out).To(ContainSubstring("control-plane"))
			})

			It("runs the default Kubernetes version", func() {
				major, minor, err := m.Version(ctx)
				Expect(err).NotTo(HaveOccurred())
				Expect([]int{major, minor}).To(Equal([]int{1, 25}))
			})

			It("is already ready when created again", func() {
				Expect(m.Create(ctx, cluster.CreateOptions{})).To(Succeed())
			})

			It("applies an in-memory document", func() {
				Expect(m.Apply(ctx, cluster.Document(configMap("myconfigmap")))).To(Succeed())

				client, err := m.Kubectl()
				Expect(err).NotTo(HaveOccurred())
				var cm corev1.ConfigMap
				Expect(client.JSON(ctx, &cm, "get", "configmap", "myconfigmap")).To(Succeed())
				Expect(cm.Data).To(Equal(map[string]string{"key": "value"}))
				Expect(cm.UID).NotTo(BeEmpty())
			})

			It("drops all workloads on reset", func() {
				Expect(m.Reset(ctx)).To(Succeed())

				client, err := m.Kubectl()
				Expect(err).NotTo(HaveOccurred())
				_, err = client.Raw(ctx, "get", "configmap", "myconfigmap")
				var cmdErr *executor.ExternalCommandError
				Expect(errors.As(err, &cmdErr)).To(BeTrue())
				Expect(cmdErr.Stderr).To(ContainSubstring("not found"))
			})

			It("applies a manifest file and reads logs from another namespace", func() {
				Expect(m.Apply(ctx, helloManifest)).To(Succeed())
				Expect(m.Wait(ctx, "deployments/hello-nginxdemo", "condition=Available=True", 2*time.Minute, "")).To(Succeed())
				Expect(m.Wait(ctx, "deployments/hello-nginxdemo-command", "condition=Available=True", 2*time.Minute, "commands")).To(Succeed())

				client, err := m.Kubectl()
				Expect(err).NotTo(HaveOccurred())
				pod, err := client.Raw(ctx, "get", "pod", "-n", "commands", "-o", "jsonpath={.items[0].metadata.name}")
				Expect(err).NotTo(HaveOccurred())
				Expect(pod).NotTo(BeEmpty())

				Eventually(func() string {
					logs, _ := m.Logs(ctx, pod, cluster.LogOptions{Namespace: "commands"})
					return logs
				}).WithTimeout(30 * time.Second).WithPolling(time.Second).Should(ContainSubstring(`using the "epoll" event method`))
			})

			It("forwards a service port and releases it on stop", func() {
				port, err := cliutil.GetFreePort()
				Expect(err).NotTo(HaveOccurred())
				url := fmt.Sprintf("http://127.0.0.1:%d", port)
				httpClient := &http.Client{Timeout: 20 * time.Second}

				f, err := m.PortForward("svc/hello-nginx", port, 80, "", 0)
				Expect(err).NotTo(HaveOccurred())
				Expect(f.Do(ctx, func(ctx context.Context) error {
					resp, err := httpClient.Get(url)
					if err != nil {
						return err
					}
					defer resp.Body.Close()
					Expect(resp.StatusCode).To(Equal(http.StatusOK))
					return nil
				})).To(Succeed())
				Expect(f.State()).To(Equal(portforward.StateIdle))

				_, err = httpClient.Get(url)
				Expect(err).To(HaveOccurred())
				Expect(strings.ToLower(err.Error())).To(ContainSubstring("connection refused"))

				// The same port can be forwarded again once released.
				f, err = m.PortForward("svc/hello-nginx", port, 80, "", 0)
				Expect(err).NotTo(HaveOccurred())
				Expect(f.Start(ctx)).To(Succeed())
				resp, err := httpClient.Get(url)
				Expect(err).NotTo(HaveOccurred())
				resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusOK))
				Expect(f.Stop(ctx)).To(Succeed())
			})
		})
	}
})
