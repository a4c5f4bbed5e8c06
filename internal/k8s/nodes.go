package k8s

import (
	"context"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/go-logr/logr"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/kubectl/pkg/drain"
)

// LiveNode is a cluster node as reported by the API server.
type LiveNode struct {
	Name        string            `json:"name"`
	Address     string            `json:"address"`
	Ready       bool              `json:"ready"`
	Labels      map[string]string `json:"labels,omitempty"`
	Capacity    map[string]string `json:"capacity,omitempty"`
	Allocatable map[string]string `json:"allocatable,omitempty"`
}

// ListNodes returns every node registered with the API server, ordered by name.
func (c *Client) ListNodes(ctx context.Context) ([]LiveNode, error) {
	list, err := c.clientset.CoreV1().Nodes().List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to list nodes: %w", err)
	}

	nodes := make([]LiveNode, 0, len(list.Items))
	for i := range list.Items {
		nodes = append(nodes, toLiveNode(&list.Items[i]))
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].Name < nodes[j].Name })
	return nodes, nil
}

func toLiveNode(n *corev1.Node) LiveNode {
	live := LiveNode{
		Name:        n.Name,
		Labels:      n.Labels,
		Capacity:    resourceStrings(n.Status.Capacity),
		Allocatable: resourceStrings(n.Status.Allocatable),
	}
	for _, addr := range n.Status.Addresses {
		if addr.Type == corev1.NodeInternalIP {
			live.Address = addr.Address
			break
		}
	}
	for _, cond := range n.Status.Conditions {
		if cond.Type == corev1.NodeReady {
			live.Ready = cond.Status == corev1.ConditionTrue
			break
		}
	}
	return live
}

func resourceStrings(list corev1.ResourceList) map[string]string {
	if len(list) == 0 {
		return nil
	}
	out := make(map[string]string, len(list))
	for name, q := range list {
		out[string(name)] = q.String()
	}
	return out
}

// Healthy reports whether the API server answers a version request.
func (c *Client) Healthy(_ context.Context) bool {
	_, err := c.clientset.Discovery().ServerVersion()
	return err == nil
}

// Drain cordons the node and evicts its pods, skipping DaemonSet pods.
func (c *Client) Drain(ctx context.Context, name string, timeout time.Duration) error {
	log := logr.FromContextOrDiscard(ctx).WithValues("node", name)

	node, err := c.clientset.CoreV1().Nodes().Get(ctx, name, metav1.GetOptions{})
	if err != nil {
		return fmt.Errorf("failed to get node %s: %w", name, err)
	}

	helper := &drain.Helper{
		Ctx:                 ctx,
		Client:              c.clientset,
		Force:               true,
		GracePeriodSeconds:  -1,
		IgnoreAllDaemonSets: true,
		DeleteEmptyDirData:  true,
		Timeout:             timeout,
		Out:                 io.Discard,
		ErrOut:              io.Discard,
		OnPodDeletionOrEvictionFinished: func(pod *corev1.Pod, usingEviction bool, err error) {
			if err != nil {
				log.Error(err, "Failed to remove pod", "pod", pod.Namespace+"/"+pod.Name)
				return
			}
			log.V(1).Info("Removed pod", "pod", pod.Namespace+"/"+pod.Name, "eviction", usingEviction)
		},
	}

	if err := drain.RunCordonOrUncordon(helper, node, true); err != nil {
		return fmt.Errorf("failed to cordon node %s: %w", name, err)
	}
	if err := drain.RunNodeDrain(helper, name); err != nil {
		return fmt.Errorf("failed to drain node %s: %w", name, err)
	}
	return nil
}

// DeleteNode removes the node object. A missing node is not an error.
func (c *Client) DeleteNode(ctx context.Context, name string) error {
	err := c.clientset.CoreV1().Nodes().Delete(ctx, name, metav1.DeleteOptions{})
	if err != nil && !apierrors.IsNotFound(err) {
		return fmt.Errorf("failed to delete node %s: %w", name, err)
	}
	return nil
}

// CountRunningPods returns the number of pods in the Running phase.
// An empty namespace counts across all namespaces.
func (c *Client) CountRunningPods(ctx context.Context, namespace string) (int, error) {
	pods, err := c.clientset.CoreV1().Pods(namespace).List(ctx, metav1.ListOptions{})
	if err != nil {
		return 0, fmt.Errorf("failed to list pods: %w", err)
	}

	running := 0
	for i := range pods.Items {
		if pods.Items[i].Status.Phase == corev1.PodRunning {
			running++
		}
	}
	return running, nil
}
