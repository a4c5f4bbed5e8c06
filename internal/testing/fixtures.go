package testing

import (
	"os"
	"path/filepath"

	"github.com/imamik/edgefleet/internal/orchestration"
)

// TB is the part of testing.TB the fixtures need.
type TB interface {
	Helper()
	TempDir() string
	Fatalf(format string, args ...any)
}

// WriteBundle writes a complete deployment files directory and returns its
// path. Each file contains its own name. Names in skip are left out.
func WriteBundle(t TB, skip ...string) string {
	t.Helper()
	dir := t.TempDir()
	omit := make(map[string]bool, len(skip))
	for _, s := range skip {
		omit[s] = true
	}

	bundle := orchestration.Bundle{Dir: dir, InstallScript: "install-k3s.sh"}
	for _, name := range bundle.Required() {
		if omit[name] {
			continue
		}
		if err := os.WriteFile(filepath.Join(dir, name), []byte(name), 0o600); err != nil {
			t.Fatalf("failed to write %s: %v", name, err)
		}
	}
	return dir
}
