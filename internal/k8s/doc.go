// Package k8s is the control-plane client used by the deploy pipeline and
// node lifecycle operations.
//
// It wraps a typed clientset, a dynamic client and a REST mapper: node
// listing and draining, server-side apply of manifests, ConfigMap and
// Deployment maintenance, and Helm chart releases.
package k8s
