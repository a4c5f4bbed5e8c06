package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/imamik/edgefleet/internal/config"
	"github.com/imamik/edgefleet/internal/config/wizard"
	"github.com/imamik/edgefleet/internal/registry"
)

// Output formats for node list.
const (
	OutputTable = "table"
	OutputJSON  = "json"
)

// runNodeWizard prompts for a node interactively.
var runNodeWizard = wizard.RunNodeWizard

// NodeOptions are the flags of node add.
type NodeOptions struct {
	Name     string
	Address  string
	Username string
	Password string
	KeyPath  string
	Kind     string
	Master   bool

	// Interactive prompts for every field instead of reading the flags.
	Interactive bool
}

func (o NodeOptions) node() (registry.Node, error) {
	kind := registry.KindEdge
	if o.Kind != "" {
		k, err := registry.ParseKind(o.Kind)
		if err != nil {
			return registry.Node{}, err
		}
		kind = k
	}
	node := registry.Node{
		Name:     o.Name,
		Address:  o.Address,
		Username: o.Username,
		Secret:   o.Password,
		KeyPath:  o.KeyPath,
		Kind:     kind,
		IsMaster: o.Master,
	}
	return node, node.Validate()
}

// NodeAdd registers a node, replacing any entry with the same name.
func NodeAdd(ctx context.Context, configPath string, opts NodeOptions) (err error) {
	var node registry.Node
	if opts.Interactive {
		n, err := runNodeWizard(ctx)
		if err != nil {
			return err
		}
		node = *n
	} else {
		node, err = opts.node()
		if err != nil {
			return err
		}
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

	if err := store.Add(ctx, node); err != nil {
		return fmt.Errorf("failed to register node: %w", err)
	}

	fmt.Printf("Node %s registered (%s, %s)\n", node.Name, node.Address, node.Role())
	if node.IsMaster {
		fmt.Println("It is now the master; run 'edgefleet deploy' to converge the cluster.")
	}
	return nil
}

// NodeList prints the registered fleet merged with the live cluster state.
func NodeList(ctx context.Context, configPath, output string) error {
	if output != OutputTable && output != OutputJSON {
		return fmt.Errorf("unknown output format %q (expected %s or %s)", output, OutputTable, OutputJSON)
	}

	return withApp(ctx, configPath, func(ctx context.Context, _ *config.Config, a *app) error {
		fleet, err := a.nodes.Fleet(ctx)
		if err != nil {
			return fmt.Errorf("failed to list nodes: %w", err)
		}

		if output == OutputJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(fleet)
		}
		fmt.Print(renderFleet(fleet))
		return nil
	})
}

// NodeRemove dejoins a node and deletes it from the registry.
func NodeRemove(ctx context.Context, configPath, name string) error {
	return withApp(ctx, configPath, func(ctx context.Context, _ *config.Config, a *app) error {
		if err := a.nodes.RemoveNode(ctx, name); err != nil {
			if errors.Is(err, registry.ErrMasterProtected) {
				return fmt.Errorf("%s is the master node; promote another node before removing it: %w", name, err)
			}
			return fmt.Errorf("failed to remove node %s: %w", name, err)
		}
		fmt.Printf("Node %s removed\n", name)
		return nil
	})
}
