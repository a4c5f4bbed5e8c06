package orchestration

import (
	"context"
	"fmt"
	"time"

	"github.com/go-logr/logr"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/imamik/edgefleet/internal/k8s"
	"github.com/imamik/edgefleet/internal/progress"
	"github.com/imamik/edgefleet/internal/util/retry"
)

// AppConfigMapName holds the detector script mounted by the app workload.
const AppConfigMapName = "myapp-config"

// ManifestReport summarizes manifest application.
type ManifestReport struct {
	ConfigResources int
	Applied         []string
	Failed          map[string]error
}

// ManifestApplier creates the app config and applies the workload manifests.
type ManifestApplier struct {
	bundle        Bundle
	namespace     string
	fieldManager  string
	recreatePause time.Duration
	recreateWait  time.Duration
	recreate      map[string][]string
	metrics       *Metrics
}

// NewManifestApplier creates an applier. The StatefulSet in myapp.yaml is
// always recreated so its pods pick up a new image.
func NewManifestApplier(bundle Bundle, opts Options, metrics *Metrics) *ManifestApplier {
	opts = opts.withDefaults()
	return &ManifestApplier{
		bundle:        bundle,
		namespace:     opts.Namespace,
		fieldManager:  opts.FieldManager,
		recreatePause: opts.RecreatePause,
		recreateWait:  opts.RecreateTimeout,
		recreate:      map[string][]string{FileMyApp: {"StatefulSet"}},
		metrics:       metrics,
	}
}

// Apply creates the config map, then applies ManifestOrder. A failing
// manifest is logged and the rest still run.
func (a *ManifestApplier) Apply(ctx context.Context, cp ControlPlane, rep *progress.Reporter) ManifestReport {
	log := logr.FromContextOrDiscard(ctx).WithName("manifests")
	report := ManifestReport{Failed: map[string]error{}}

	rep.Progress(93, "Creating application ConfigMap...", progress.StepApps)
	if err := a.applyConfigMap(ctx, cp); err != nil {
		log.Error(err, "failed to create config map", "configMap", AppConfigMapName)
	} else {
		report.ConfigResources++
		log.Info("config map created", "configMap", AppConfigMapName)
	}

	for i, name := range ManifestOrder {
		rep.Progress(94+(i*4)/len(ManifestOrder), fmt.Sprintf("Applying %s...", name), "")
		refs, err := a.applyFile(ctx, cp, name)
		a.metrics.observeManifest(err)
		if err != nil {
			report.Failed[name] = err
			log.Error(err, "failed to apply manifest", "manifest", name)
			continue
		}
		report.Applied = append(report.Applied, name)
		log.Info("manifest applied", "manifest", name, "objects", len(refs))
	}
	return report
}

func (a *ManifestApplier) applyConfigMap(ctx context.Context, cp ControlPlane) error {
	script, err := a.bundle.Read(FileDetect)
	if err != nil {
		return err
	}
	return cp.CreateOrReplaceConfigMap(ctx, &corev1.ConfigMap{
		ObjectMeta: metav1.ObjectMeta{Name: AppConfigMapName, Namespace: a.namespace},
		Data:       map[string]string{FileDetect: string(script)},
	})
}

func (a *ManifestApplier) applyFile(ctx context.Context, cp ControlPlane, name string) ([]k8s.ObjectRef, error) {
	manifest, err := a.bundle.Read(name)
	if err != nil {
		return nil, err
	}

	if kinds, ok := a.recreate[name]; ok {
		deleted, err := cp.DeleteManifest(ctx, manifest, a.namespace, k8s.DeleteOptions{
			Kinds:       kinds,
			WaitTimeout: a.recreateWait,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to delete %s before recreate: %w", name, err)
		}
		logr.FromContextOrDiscard(ctx).V(1).Info("deleted for recreate", "manifest", name, "objects", len(deleted))
		if err := retry.Sleep(ctx, a.recreatePause); err != nil {
			return nil, err
		}
	}

	return cp.ApplyManifest(ctx, manifest, a.fieldManager, a.namespace)
}
