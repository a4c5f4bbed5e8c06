package orchestration

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrMissingFiles is returned when the files directory lacks a required file.
var ErrMissingFiles = errors.New("missing required deployment files")

// Deployment bundle file names.
const (
	FileOffloadingManager = "offloading_manager.py"
	FileQLearningModel    = "q_learning_model.pkl"
	FileMediaMTX          = "mediamtx-daemonset.yaml"
	FileMyApp             = "myapp.yaml"
	FileMediaMTXEndpoints = "configmap-mediamtx-endpoints.yaml"
	FileOffloadingPod     = "offloading-manager-pod.yaml"
	FileDetect            = "detect.py"
)

// MasterFiles are copied to the master's home directory after install.
var MasterFiles = []string{
	FileOffloadingManager,
	FileQLearningModel,
	FileMediaMTX,
	FileMyApp,
	FileMediaMTXEndpoints,
	FileOffloadingPod,
	FileDetect,
}

// ManifestOrder is the order workload manifests are applied in.
var ManifestOrder = []string{
	FileMediaMTX,
	FileMyApp,
	FileMediaMTXEndpoints,
	FileOffloadingPod,
}

// Bundle is the local directory holding the deployment files.
type Bundle struct {
	Dir           string
	InstallScript string
}

// Required lists every file a run needs, the install script last.
func (b Bundle) Required() []string {
	return append(append([]string{}, MasterFiles...), b.InstallScript)
}

// Path returns the local path of name.
func (b Bundle) Path(name string) string {
	return filepath.Join(b.Dir, name)
}

// Read returns the contents of name.
func (b Bundle) Read(name string) ([]byte, error) {
	data, err := os.ReadFile(b.Path(name))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", name, err)
	}
	return data, nil
}

// Validate checks that every required file exists and is a regular file.
// The error lists all missing files and wraps ErrMissingFiles.
func (b Bundle) Validate() error {
	info, err := os.Stat(b.Dir)
	if err != nil || !info.IsDir() {
		return fmt.Errorf("%w: files directory %s does not exist", ErrMissingFiles, b.Dir)
	}

	var missing []string
	for _, name := range b.Required() {
		info, err := os.Stat(b.Path(name))
		if err != nil || !info.Mode().IsRegular() {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s (add them to %s)", ErrMissingFiles, strings.Join(missing, ", "), b.Dir)
	}
	return nil
}
