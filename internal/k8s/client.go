package k8s

import (
	"fmt"

	"k8s.io/apimachinery/pkg/api/meta"
	"k8s.io/client-go/discovery"
	"k8s.io/client-go/discovery/cached/memory"
	"k8s.io/client-go/dynamic"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/restmapper"
	"k8s.io/client-go/tools/clientcmd"
)

// Client is the control-plane handle of one cluster.
type Client struct {
	clientset  kubernetes.Interface
	dynamic    dynamic.Interface
	mapper     meta.RESTMapper
	kubeconfig []byte
}

// NewFromKubeconfig creates a Client from kubeconfig bytes.
// No request is made; an unreachable API surfaces on first use.
func NewFromKubeconfig(kubeconfig []byte) (*Client, error) {
	restConfig, err := clientcmd.RESTConfigFromKubeConfig(kubeconfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create REST config from kubeconfig: %w", err)
	}

	c, err := newFromRESTConfig(restConfig)
	if err != nil {
		return nil, err
	}
	c.kubeconfig = kubeconfig
	return c, nil
}

func newFromRESTConfig(restConfig *rest.Config) (*Client, error) {
	clientset, err := kubernetes.NewForConfig(restConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create kubernetes clientset: %w", err)
	}

	dynamicClient, err := dynamic.NewForConfig(restConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create dynamic client: %w", err)
	}

	discoveryClient, err := discovery.NewDiscoveryClientForConfig(restConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create discovery client: %w", err)
	}
	mapper := restmapper.NewDeferredDiscoveryRESTMapper(memory.NewMemCacheClient(discoveryClient))

	return &Client{
		clientset: clientset,
		dynamic:   dynamicClient,
		mapper:    mapper,
	}, nil
}

// NewFromClients creates a Client from pre-configured clients.
// This is useful for testing with fake clients.
func NewFromClients(clientset kubernetes.Interface, dynamicClient dynamic.Interface, mapper meta.RESTMapper) *Client {
	return &Client{
		clientset: clientset,
		dynamic:   dynamicClient,
		mapper:    mapper,
	}
}

// Kubeconfig returns the kubeconfig the client was built from, if any.
func (c *Client) Kubeconfig() []byte {
	return c.kubeconfig
}

// Clientset exposes the typed client.
func (c *Client) Clientset() kubernetes.Interface {
	return c.clientset
}
