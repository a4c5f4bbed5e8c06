package handlers

import (
	"context"
	"errors"
	"fmt"
	"os"

	"sigs.k8s.io/yaml"

	"github.com/imamik/edgefleet/internal/registry"
)

// fleetFile is the layout of a node import file. Field names follow the
// registry record.
type fleetFile struct {
	Nodes []registry.Node `json:"nodes"`
}

// parseFleetFile decodes and validates an import file. Every node is checked
// before anything is written.
func parseFleetFile(data []byte) ([]registry.Node, error) {
	var f fleetFile
	if err := yaml.UnmarshalStrict(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse fleet file: %w", err)
	}
	if len(f.Nodes) == 0 {
		return nil, errors.New("fleet file lists no nodes")
	}

	seen := make(map[string]bool, len(f.Nodes))
	masters := 0
	for i, n := range f.Nodes {
		if n.Kind == "" {
			n.Kind = registry.KindEdge
		}
		kind, err := registry.ParseKind(string(n.Kind))
		if err != nil {
			return nil, fmt.Errorf("node %d: %w", i+1, err)
		}
		n.Kind = kind
		if err := n.Validate(); err != nil {
			return nil, fmt.Errorf("node %d: %w", i+1, err)
		}
		if seen[n.Name] {
			return nil, fmt.Errorf("%w: duplicate node name %q", registry.ErrInvalidNode, n.Name)
		}
		seen[n.Name] = true
		if n.IsMaster {
			masters++
		}
		f.Nodes[i] = n
	}
	if masters > 1 {
		return nil, fmt.Errorf("%w: %d nodes flagged as master", registry.ErrInvalidNode, masters)
	}
	return f.Nodes, nil
}

// NodeImport registers every node listed in a YAML fleet file.
func NodeImport(ctx context.Context, configPath, path string) (err error) {
	// #nosec G304
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read fleet file: %w", err)
	}
	nodes, err := parseFleetFile(data)
	if err != nil {
		return err
	}

	cfg, err := resolveConfig(configPath)
	if err != nil {
		return err
	}
	store, err := openRegistry(ctx, cfg.Registry.Path)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, store.Close())
	}()

	for _, n := range nodes {
		if err := store.Add(ctx, n); err != nil {
			return fmt.Errorf("failed to register node %s: %w", n.Name, err)
		}
		fmt.Printf("  %-16s %-15s %s\n", n.Name, n.Address, n.Role())
	}
	fmt.Printf("Imported %d nodes\n", len(nodes))
	return nil
}
