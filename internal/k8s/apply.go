package k8s

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"time"

	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/api/meta"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/apimachinery/pkg/util/wait"
	"k8s.io/apimachinery/pkg/util/yaml"
	"k8s.io/client-go/dynamic"
	"k8s.io/utils/ptr"
)

// ObjectRef identifies an applied or deleted object.
type ObjectRef struct {
	Kind      string
	Namespace string
	Name      string
}

func (r ObjectRef) String() string {
	if r.Namespace == "" {
		return r.Kind + "/" + r.Name
	}
	return r.Kind + " " + r.Namespace + "/" + r.Name
}

// ApplyManifest applies multi-document YAML using Server-Side Apply.
// Namespaced objects without a namespace go to defaultNamespace. Application
// stops at the first failing document; refs lists what was applied.
func (c *Client) ApplyManifest(ctx context.Context, manifest []byte, fieldManager, defaultNamespace string) ([]ObjectRef, error) {
	var applied []ObjectRef

	err := c.eachObject(manifest, func(obj *unstructured.Unstructured) error {
		ref, ri, err := c.resourceFor(obj, defaultNamespace)
		if err != nil {
			return err
		}

		data, err := obj.MarshalJSON()
		if err != nil {
			return fmt.Errorf("failed to marshal object to JSON: %w", err)
		}

		_, err = ri.Patch(ctx, obj.GetName(), types.ApplyPatchType, data, metav1.PatchOptions{
			FieldManager: fieldManager,
			Force:        ptr.To(true),
		})
		if err != nil {
			return fmt.Errorf("server-side apply of %s failed: %w", ref, err)
		}
		applied = append(applied, ref)
		return nil
	})
	return applied, err
}

// DeleteOptions narrows DeleteManifest.
type DeleteOptions struct {
	// Kinds limits deletion to objects of these kinds. Empty means all.
	Kinds []string
	// WaitTimeout, when positive, blocks until every deleted object is gone
	// from the API server.
	WaitTimeout time.Duration
}

// DeleteManifest deletes the objects of a manifest with background cascade,
// ignoring objects that do not exist.
func (c *Client) DeleteManifest(ctx context.Context, manifest []byte, defaultNamespace string, opts DeleteOptions) ([]ObjectRef, error) {
	var deleted []ObjectRef

	err := c.eachObject(manifest, func(obj *unstructured.Unstructured) error {
		if len(opts.Kinds) > 0 && !slices.Contains(opts.Kinds, obj.GetKind()) {
			return nil
		}
		ref, ri, err := c.resourceFor(obj, defaultNamespace)
		if err != nil {
			return err
		}

		err = ri.Delete(ctx, obj.GetName(), metav1.DeleteOptions{
			PropagationPolicy: ptr.To(metav1.DeletePropagationBackground),
		})
		if apierrors.IsNotFound(err) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to delete %s: %w", ref, err)
		}
		if opts.WaitTimeout > 0 {
			if err := waitGone(ctx, ri, obj.GetName(), opts.WaitTimeout); err != nil {
				return fmt.Errorf("%s still present after delete: %w", ref, err)
			}
		}
		deleted = append(deleted, ref)
		return nil
	})
	return deleted, err
}

// waitGone polls until name is no longer found. Objects with finalizers
// stay readable while they are being deleted.
func waitGone(ctx context.Context, ri dynamic.ResourceInterface, name string, timeout time.Duration) error {
	return wait.PollUntilContextTimeout(ctx, pollInterval, timeout, true, func(ctx context.Context) (bool, error) {
		_, err := ri.Get(ctx, name, metav1.GetOptions{})
		if apierrors.IsNotFound(err) {
			return true, nil
		}
		return false, nil
	})
}

// eachObject decodes a multi-document manifest, skipping empty documents.
func (c *Client) eachObject(manifest []byte, fn func(*unstructured.Unstructured) error) error {
	decoder := yaml.NewYAMLOrJSONDecoder(bytes.NewReader(manifest), 4096)

	for docIndex := 0; ; docIndex++ {
		var obj unstructured.Unstructured
		if err := decoder.Decode(&obj); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("failed to decode manifest document %d: %w", docIndex, err)
		}

		if len(obj.Object) == 0 {
			continue
		}
		if err := fn(&obj); err != nil {
			return err
		}
	}
}

func (c *Client) resourceFor(obj *unstructured.Unstructured, defaultNamespace string) (ObjectRef, dynamic.ResourceInterface, error) {
	gvk := obj.GroupVersionKind()
	if gvk.Kind == "" {
		return ObjectRef{}, nil, fmt.Errorf("object %q has no kind set", obj.GetName())
	}

	mapping, err := c.mapper.RESTMapping(gvk.GroupKind(), gvk.Version)
	if err != nil {
		return ObjectRef{}, nil, fmt.Errorf("failed to get REST mapping for %v: %w", gvk, err)
	}

	ref := ObjectRef{Kind: gvk.Kind, Name: obj.GetName()}
	if mapping.Scope.Name() != meta.RESTScopeNameNamespace {
		return ref, c.dynamic.Resource(mapping.Resource), nil
	}

	ref.Namespace = obj.GetNamespace()
	if ref.Namespace == "" {
		ref.Namespace = defaultNamespace
		if ref.Namespace == "" {
			ref.Namespace = metav1.NamespaceDefault
		}
		obj.SetNamespace(ref.Namespace)
	}
	return ref, c.dynamic.Resource(mapping.Resource).Namespace(ref.Namespace), nil
}
