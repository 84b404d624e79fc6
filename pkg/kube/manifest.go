package kube

import (
	"bytes"
	"context"
	"errors"
	"io"

	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"
	kyaml "k8s.io/apimachinery/pkg/util/yaml"

	"github.com/primus-bench/orchestrator/pkg/apperrors"
)

// supported kinds and their GroupVersionResource, per spec §6's closed list.
var supportedKindGVRs = map[string]schema.GroupVersionResource{
	"Job":        {Group: "batch", Version: "v1", Resource: "jobs"},
	"Deployment": {Group: "apps", Version: "v1", Resource: "deployments"},
	"Service":    {Group: "", Version: "v1", Resource: "services"},
	"ConfigMap":  {Group: "", Version: "v1", Resource: "configmaps"},
	"Secret":     {Group: "", Version: "v1", Resource: "secrets"},
}

// splitDocuments breaks a multi-document YAML text into individual documents.
func splitDocuments(text string) ([]*unstructured.Unstructured, error) {
	decoder := kyaml.NewYAMLOrJSONDecoder(bytes.NewReader([]byte(text)), 4096)
	var docs []*unstructured.Unstructured
	for {
		obj := &unstructured.Unstructured{}
		if err := decoder.Decode(&obj.Object); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, err
		}
		if len(obj.Object) == 0 {
			continue
		}
		docs = append(docs, obj)
	}
	return docs, nil
}

// ApplyManifest applies one or more manifest documents; kind must be in the supported
// closed set (spec §6), else UnsupportedKind. Missing namespace in metadata is filled
// in from the provided namespace.
func (c *Client) ApplyManifest(ctx context.Context, text, namespace string) ([]AppliedResource, error) {
	docs, err := splitDocuments(text)
	if err != nil {
		return nil, apperrors.New().
			WithKind(apperrors.KindConfigurationError).
			WithCode(apperrors.CodeInvalidArgument).
			WithMessage("parsing manifest text").
			WithError(err).Err()
	}

	var applied []AppliedResource
	for _, doc := range docs {
		kind := doc.GetKind()
		gvr, ok := supportedKindGVRs[kind]
		if !ok {
			return applied, apperrors.New().
				WithKind(apperrors.KindConfigurationError).
				WithCode(apperrors.CodeUnsupportedKind).
				WithMessagef("unsupported manifest kind %q", kind).Err()
		}

		ns := doc.GetNamespace()
		if ns == "" {
			ns = namespace
			doc.SetNamespace(ns)
		}

		created, err := c.Dynamic.Resource(gvr).Namespace(ns).Create(ctx, doc, metav1.CreateOptions{})
		if apierrors.IsAlreadyExists(err) {
			created, err = c.Dynamic.Resource(gvr).Namespace(ns).Update(ctx, doc, metav1.UpdateOptions{})
		}
		if err != nil {
			return applied, wrapKubeErr("applying manifest", err)
		}
		applied = append(applied, AppliedResource{Kind: kind, Name: created.GetName(), Namespace: ns})
	}
	return applied, nil
}

// DeleteManifest deletes the resources named in text, treating not-found as success.
func (c *Client) DeleteManifest(ctx context.Context, text, namespace string) ([]AppliedResource, error) {
	docs, err := splitDocuments(text)
	if err != nil {
		return nil, apperrors.New().
			WithKind(apperrors.KindConfigurationError).
			WithCode(apperrors.CodeInvalidArgument).
			WithMessage("parsing manifest text").
			WithError(err).Err()
	}

	var deleted []AppliedResource
	for _, doc := range docs {
		kind := doc.GetKind()
		gvr, ok := supportedKindGVRs[kind]
		if !ok {
			continue
		}
		ns := doc.GetNamespace()
		if ns == "" {
			ns = namespace
		}
		err := c.Dynamic.Resource(gvr).Namespace(ns).Delete(ctx, doc.GetName(), metav1.DeleteOptions{})
		if err != nil && !apierrors.IsNotFound(err) {
			return deleted, wrapKubeErr("deleting manifest resource", err)
		}
		deleted = append(deleted, AppliedResource{Kind: kind, Name: doc.GetName(), Namespace: ns})
	}
	return deleted, nil
}
