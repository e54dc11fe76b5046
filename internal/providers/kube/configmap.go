// ABOUTME: Kubernetes ConfigMap inventory source for in-cluster deployments.
// ABOUTME: Reads a JSON or YAML topology snapshot stored under a ConfigMap key.

package kube

import (
	"context"
	"fmt"

	"github.com/jfeddern/PatchRelay/internal/providers/codec"
	"github.com/jfeddern/PatchRelay/internal/types"
	"github.com/sirupsen/logrus"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
)

// DefaultKeys are tried in order when no key is configured
var DefaultKeys = []string{"inventory.yaml", "inventory.yml", "inventory.json"}

// ConfigMapSource implements InventorySource for a snapshot kept in a ConfigMap
type ConfigMapSource struct {
	clientset kubernetes.Interface
	namespace string
	name      string
	key       string
	logger    *logrus.Logger
}

// NewConfigMapSource connects to the cluster and creates a ConfigMap source
func NewConfigMapSource(namespace, name, key string, logger *logrus.Logger) (*ConfigMapSource, error) {
	var config *rest.Config
	var err error

	// Try in-cluster config first (for pod deployment)
	config, err = rest.InClusterConfig()
	if err != nil {
		// Fallback to kubeconfig (for local development)
		logger.Info("In-cluster config not available, trying kubeconfig")
		config, err = clientcmd.BuildConfigFromFlags("", clientcmd.RecommendedHomeFile)
		if err != nil {
			return nil, fmt.Errorf("failed to build kubernetes config: %w", err)
		}
	}

	clientset, err := kubernetes.NewForConfig(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create kubernetes clientset: %w", err)
	}

	logger.Info("Successfully connected to Kubernetes cluster")
	return NewConfigMapSourceWithClient(clientset, namespace, name, key, logger), nil
}

// NewConfigMapSourceWithClient creates a source on an existing clientset
func NewConfigMapSourceWithClient(clientset kubernetes.Interface, namespace, name, key string, logger *logrus.Logger) *ConfigMapSource {
	if namespace == "" {
		namespace = "default"
	}
	return &ConfigMapSource{
		clientset: clientset,
		namespace: namespace,
		name:      name,
		key:       key,
		logger:    logger,
	}
}

// Name returns the provider name
func (c *ConfigMapSource) Name() string {
	return "kube-configmap"
}

// LoadSnapshot fetches the ConfigMap and decodes the inventory key
func (c *ConfigMapSource) LoadSnapshot(ctx context.Context) (types.Snapshot, error) {
	logger := c.logger.WithFields(logrus.Fields{
		"operation": "load_snapshot_configmap",
		"namespace": c.namespace,
		"configmap": c.name,
	})

	cm, err := c.clientset.CoreV1().ConfigMaps(c.namespace).Get(ctx, c.name, metav1.GetOptions{})
	if apierrors.IsNotFound(err) {
		return types.Snapshot{}, fmt.Errorf("configmap %s/%s not found", c.namespace, c.name)
	}
	if err != nil {
		return types.Snapshot{}, fmt.Errorf("failed to get configmap %s/%s: %w", c.namespace, c.name, err)
	}

	key, data, ok := c.lookup(cm.Data, cm.BinaryData)
	if !ok {
		return types.Snapshot{}, fmt.Errorf("configmap %s/%s has no inventory key", c.namespace, c.name)
	}

	snap, err := codec.Decode(key, data)
	if err != nil {
		return types.Snapshot{}, err
	}

	logger.WithFields(logrus.Fields{
		"key":    key,
		"assets": len(snap.Assets),
		"links":  len(snap.Links),
	}).Info("Read inventory from ConfigMap")

	return snap, nil
}

func (c *ConfigMapSource) lookup(data map[string]string, binary map[string][]byte) (string, []byte, bool) {
	keys := DefaultKeys
	if c.key != "" {
		keys = []string{c.key}
	}
	for _, k := range keys {
		if v, ok := data[k]; ok {
			return k, []byte(v), true
		}
		if v, ok := binary[k]; ok {
			return k, v, true
		}
	}
	return "", nil, false
}
