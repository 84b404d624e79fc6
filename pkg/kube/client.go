package kube

import (
	"fmt"

	"k8s.io/client-go/dynamic"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
	ctrl "sigs.k8s.io/controller-runtime"

	"github.com/primus-bench/orchestrator/pkg/apperrors"
)

// Client is the concrete Adapter backed by client-go typed/dynamic clients plus the
// helm/kubectl binaries, mirroring the teacher's K8SClientSet construction trimmed to a
// single cluster (the teacher's multi-cluster polling loop has no use here).
type Client struct {
	Clientset *kubernetes.Clientset
	Dynamic   *dynamic.DynamicClient
	Config    *rest.Config

	HelmBinary    string
	KubectlBinary string
	ChartPath     string
}

// Options configures a new Client.
type Options struct {
	Kubeconfig    string
	HelmBinary    string
	KubectlBinary string
	ChartPath     string
}

// NewClient resolves the cluster config (kubeconfig path if given, else in-cluster)
// and builds the typed and dynamic clients, matching core/pkg/clientsets/k8s.go's
// initCurrentClusterK8SClientSet/initK8SClientSetByConfig split.
func NewClient(opts Options) (*Client, error) {
	cfg, err := resolveConfig(opts.Kubeconfig)
	if err != nil {
		return nil, apperrors.New().
			WithKind(apperrors.KindConfigurationError).
			WithCode(apperrors.CodeInvalidArgument).
			WithMessage("resolving kubernetes client config").
			WithError(err).Err()
	}

	clientset, err := kubernetes.NewForConfig(cfg)
	if err != nil {
		return nil, apperrors.New().
			WithKind(apperrors.KindTransient).
			WithCode(apperrors.CodeKubeOperationError).
			WithMessage("building typed clientset").
			WithError(err).Err()
	}

	dyn, err := dynamic.NewForConfig(cfg)
	if err != nil {
		return nil, apperrors.New().
			WithKind(apperrors.KindTransient).
			WithCode(apperrors.CodeKubeOperationError).
			WithMessage("building dynamic client").
			WithError(err).Err()
	}

	helmBin := opts.HelmBinary
	if helmBin == "" {
		helmBin = "helm"
	}
	kubectlBin := opts.KubectlBinary
	if kubectlBin == "" {
		kubectlBin = "kubectl"
	}

	return &Client{
		Clientset:     clientset,
		Dynamic:       dyn,
		Config:        cfg,
		HelmBinary:    helmBin,
		KubectlBinary: kubectlBin,
		ChartPath:     opts.ChartPath,
	}, nil
}

// resolveConfig honors an explicit kubeconfig path when given, else falls back to
// controller-runtime's GetConfig, mirroring core/pkg/clientsets/k8s.go's
// ctrl.GetConfigOrDie() call but returning the error instead of panicking: it tries
// in-cluster config first, then the conventional KUBECONFIG/~/.kube/config lookup.
func resolveConfig(kubeconfig string) (*rest.Config, error) {
	if kubeconfig != "" {
		return clientcmd.BuildConfigFromFlags("", kubeconfig)
	}
	cfg, err := ctrl.GetConfig()
	if err != nil {
		return nil, fmt.Errorf("no in-cluster config and no kubeconfig path given: %w", err)
	}
	return cfg, nil
}
