package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/edgefleet/cmd/edgefleet/handlers"
)

// Node returns the node command group.
func Node() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "node",
		Short: "Manage the node registry",
	}

	cmd.AddCommand(nodeAdd())
	cmd.AddCommand(nodeImport())
	cmd.AddCommand(nodeList())
	cmd.AddCommand(nodeRemove())

	return cmd
}

func nodeAdd() *cobra.Command {
	var (
		configPath string
		opts       handlers.NodeOptions
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Register a node",
		Long: `Register a node in the registry, replacing an entry with the same name.

The node joins the cluster on the next deploy. Flagging a node as master
demotes the previous master.

Examples:
  # Prompt for everything
  edgefleet node add --interactive

  # Register a Raspberry Pi worker
  edgefleet node add --name pi-1 --address 192.168.0.21 --username pi --password raspberry --kind iot

  # Register the master with a key
  edgefleet node add --name nuc2 --address 192.168.0.147 --username nuc2 --key ~/.ssh/id_ed25519 --master`,
		Args: cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			if opts.Interactive {
				return nil
			}
			for _, name := range []string{"name", "address", "username"} {
				if !cmd.Flags().Changed(name) {
					return &missingFlagError{flag: name}
				}
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.NodeAdd(cmd.Context(), configPath, opts)
		},
	}

	addConfigFlag(cmd, &configPath)
	f := cmd.Flags()
	f.StringVar(&opts.Name, "name", "", "Node name (must match the machine's hostname)")
	f.StringVar(&opts.Address, "address", "", "IPv4 address")
	f.StringVarP(&opts.Username, "username", "u", "", "SSH user")
	f.StringVarP(&opts.Password, "password", "p", "", "SSH password (also used for sudo)")
	f.StringVar(&opts.KeyPath, "key", "", "Path to an SSH private key")
	f.StringVar(&opts.Kind, "kind", "edge", "Node kind: edge, or constrained (alias iot)")
	f.BoolVar(&opts.Master, "master", false, "Make this node the master")
	f.BoolVarP(&opts.Interactive, "interactive", "i", false, "Prompt for the node instead of reading flags")

	return cmd
}

func nodeImport() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Register the nodes listed in a YAML file",
		Long: `Register every node listed in a YAML fleet file.

The file is validated as a whole before anything is written. Entries
replace registered nodes with the same name.

Example file:
  nodes:
    - name: nuc2
      address: 192.168.0.147
      username: nuc2
      key_path: /home/me/.ssh/id_ed25519
      is_master: true
    - name: pi-1
      address: 192.168.0.21
      username: pi
      secret: raspberry
      kind: iot`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return handlers.NodeImport(cmd.Context(), configPath, args[0])
		},
	}

	addConfigFlag(cmd, &configPath)

	return cmd
}

func nodeList() *cobra.Command {
	var configPath, output string

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List the fleet with live status",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.NodeList(cmd.Context(), configPath, output)
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().StringVarP(&output, "output", "o", handlers.OutputTable, "Output format: table or json")

	return cmd
}

func nodeRemove() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:     "remove <name>",
		Aliases: []string{"rm"},
		Short:   "Dejoin a node and remove it from the registry",
		Long: `Dejoin a node and remove it from the registry.

The k3s agent is uninstalled and the node is drained and deleted from the
cluster when reachable; these steps are best effort. The master cannot be
removed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return handlers.NodeRemove(cmd.Context(), configPath, args[0])
		},
	}

	addConfigFlag(cmd, &configPath)

	return cmd
}

type missingFlagError struct {
	flag string
}

func (e *missingFlagError) Error() string {
	return "required flag --" + e.flag + " not set (or use --interactive)"
}
