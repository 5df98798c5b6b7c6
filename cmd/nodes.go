package cmd

import (
	"sort"
	"strings"

	"github.com/spf13/cobra"
	corev1 "k8s.io/api/core/v1"
)

const nodeRoleLabelPrefix = "node-role.kubernetes.io/"

func newNodesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "nodes",
		Short: "List the nodes of a cluster",
		Args:  cobra.NoArgs,
	}
	printer := addOutputFlag(cmd)

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		p, err := printer()
		if err != nil {
			return err
		}
		m, err := currentManager()
		if err != nil {
			return err
		}
		nodes, err := m.Nodes(commandContext(cmd))
		if err != nil {
			return err
		}
		rows := make([][]string, 0, len(nodes.Items))
		for _, n := range nodes.Items {
			rows = append(rows, []string{n.Name, nodeStatus(n), strings.Join(nodeRoles(n), ","), n.Status.NodeInfo.KubeletVersion})
		}
		return p.Records([]string{"Name", "Status", "Roles", "Version"}, rows)
	}
	return cmd
}

func nodeStatus(n corev1.Node) string {
	for _, c := range n.Status.Conditions {
		if c.Type == corev1.NodeReady {
			if c.Status == corev1.ConditionTrue {
				return "Ready"
			}
			return "NotReady"
		}
	}
	return "Unknown"
}

func nodeRoles(n corev1.Node) []string {
	var roles []string
	for label := range n.Labels {
		if role, ok := strings.CutPrefix(label, nodeRoleLabelPrefix); ok && role != "" {
			roles = append(roles, role)
		}
	}
	sort.Strings(roles)
	return roles
}
