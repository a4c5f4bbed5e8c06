package k8s

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/apimachinery/pkg/util/wait"
)

// pollInterval is the interval used by the Wait* helpers.
var pollInterval = 5 * time.Second

// restartedAtAnnotation is the annotation kubectl uses for rollout restarts.
const restartedAtAnnotation = "kubectl.kubernetes.io/restartedAt"

// CreateOrReplaceConfigMap deletes any existing ConfigMap of the same name
// and creates cm, so the data is exactly as specified (not merged).
func (c *Client) CreateOrReplaceConfigMap(ctx context.Context, cm *corev1.ConfigMap) error {
	if cm.Namespace == "" {
		return fmt.Errorf("configmap namespace is required")
	}
	if cm.Name == "" {
		return fmt.Errorf("configmap name is required")
	}

	configMaps := c.clientset.CoreV1().ConfigMaps(cm.Namespace)

	err := configMaps.Delete(ctx, cm.Name, metav1.DeleteOptions{})
	if err != nil && !apierrors.IsNotFound(err) {
		return fmt.Errorf("failed to delete existing configmap %s/%s: %w", cm.Namespace, cm.Name, err)
	}

	if _, err := configMaps.Create(ctx, cm, metav1.CreateOptions{}); err != nil {
		return fmt.Errorf("failed to create configmap %s/%s: %w", cm.Namespace, cm.Name, err)
	}
	return nil
}

// SetContainerEnv merges env into the named container of a deployment with a
// strategic merge patch.
func (c *Client) SetContainerEnv(ctx context.Context, namespace, deployment, container string, env []corev1.EnvVar) error {
	patch := map[string]any{
		"spec": map[string]any{
			"template": map[string]any{
				"spec": map[string]any{
					"containers": []map[string]any{
						{"name": container, "env": env},
					},
				},
			},
		},
	}
	data, err := json.Marshal(patch)
	if err != nil {
		return fmt.Errorf("failed to marshal env patch: %w", err)
	}

	_, err = c.clientset.AppsV1().Deployments(namespace).Patch(ctx, deployment, types.StrategicMergePatchType, data, metav1.PatchOptions{})
	if err != nil {
		return fmt.Errorf("failed to patch deployment %s/%s: %w", namespace, deployment, err)
	}
	return nil
}

// SetNodePort pins the node port of the service port with the given number.
func (c *Client) SetNodePort(ctx context.Context, namespace, service string, port, nodePort int32) error {
	services := c.clientset.CoreV1().Services(namespace)

	svc, err := services.Get(ctx, service, metav1.GetOptions{})
	if err != nil {
		return fmt.Errorf("failed to get service %s/%s: %w", namespace, service, err)
	}

	found := false
	for i := range svc.Spec.Ports {
		if svc.Spec.Ports[i].Port == port {
			svc.Spec.Ports[i].NodePort = nodePort
			found = true
		}
	}
	if !found {
		return fmt.Errorf("service %s/%s has no port %d", namespace, service, port)
	}
	svc.Spec.Type = corev1.ServiceTypeNodePort

	if _, err := services.Update(ctx, svc, metav1.UpdateOptions{}); err != nil {
		return fmt.Errorf("failed to update service %s/%s: %w", namespace, service, err)
	}
	return nil
}

// RolloutRestart triggers a rolling restart of a deployment the way
// `kubectl rollout restart` does.
func (c *Client) RolloutRestart(ctx context.Context, namespace, deployment string) error {
	patch := fmt.Sprintf(`{"spec":{"template":{"metadata":{"annotations":{%q:%q}}}}}`,
		restartedAtAnnotation, time.Now().Format(time.RFC3339))

	_, err := c.clientset.AppsV1().Deployments(namespace).Patch(ctx, deployment, types.StrategicMergePatchType, []byte(patch), metav1.PatchOptions{})
	if err != nil {
		return fmt.Errorf("failed to restart deployment %s/%s: %w", namespace, deployment, err)
	}
	return nil
}

// WaitForDeployment waits for a deployment to become ready.
func (c *Client) WaitForDeployment(ctx context.Context, namespace, name string, timeout time.Duration) error {
	err := wait.PollUntilContextTimeout(ctx, pollInterval, timeout, true, func(ctx context.Context) (bool, error) {
		deployment, err := c.clientset.AppsV1().Deployments(namespace).Get(ctx, name, metav1.GetOptions{})
		if err != nil {
			return false, nil
		}
		return isDeploymentReady(deployment), nil
	})
	if err != nil {
		return fmt.Errorf("deployment %s/%s not ready: %w", namespace, name, err)
	}
	return nil
}

// WaitForPodsReady waits for all pods matching a label selector to become ready.
func (c *Client) WaitForPodsReady(ctx context.Context, namespace, labelSelector string, timeout time.Duration) error {
	err := wait.PollUntilContextTimeout(ctx, pollInterval, timeout, true, func(ctx context.Context) (bool, error) {
		pods, err := c.clientset.CoreV1().Pods(namespace).List(ctx, metav1.ListOptions{LabelSelector: labelSelector})
		if err != nil || len(pods.Items) == 0 {
			return false, nil
		}
		for i := range pods.Items {
			if !isPodReady(&pods.Items[i]) {
				return false, nil
			}
		}
		return true, nil
	})
	if err != nil {
		return fmt.Errorf("pods %q in %s not ready: %w", labelSelector, namespace, err)
	}
	return nil
}

// isDeploymentReady checks if a deployment is ready.
func isDeploymentReady(deployment *appsv1.Deployment) bool {
	replicas := int32(1)
	if deployment.Spec.Replicas != nil {
		replicas = *deployment.Spec.Replicas
	}
	if deployment.Status.ObservedGeneration < deployment.Generation {
		return false
	}
	if deployment.Status.UpdatedReplicas != replicas ||
		deployment.Status.Replicas != replicas ||
		deployment.Status.AvailableReplicas != replicas {
		return false
	}

	for _, condition := range deployment.Status.Conditions {
		if condition.Type == appsv1.DeploymentAvailable &&
			condition.Status == corev1.ConditionTrue {
			return true
		}
	}
	return false
}

// isPodReady checks if a pod is ready.
func isPodReady(pod *corev1.Pod) bool {
	if pod.Status.Phase != corev1.PodRunning {
		return false
	}
	for _, condition := range pod.Status.Conditions {
		if condition.Type == corev1.PodReady &&
			condition.Status == corev1.ConditionTrue {
			return true
		}
	}
	return false
}
