package commands

import (
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommands_ConfigFlag(t *testing.T) {
	tests := []struct {
		name string
		cmd  *cobra.Command
	}{
		{"deploy", Deploy()},
		{"serve", Serve()},
		{"node add", nodeAdd()},
		{"node import", nodeImport()},
		{"node list", nodeList()},
		{"node remove", nodeRemove()},
		{"registry backup", registryBackup()},
		{"registry list", registryList()},
		{"registry restore", registryRestore()},
		{"registry prune", registryPrune()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flag := tt.cmd.Flags().Lookup("config")
			require.NotNil(t, flag, "config flag should exist")
			assert.Equal(t, "c", flag.Shorthand)
			assert.Equal(t, "", flag.DefValue)
			assert.NotNil(t, tt.cmd.RunE)
		})
	}
}

func TestInit_Flags(t *testing.T) {
	cmd := Init()

	assert.Equal(t, "init", cmd.Use)
	output := cmd.Flags().Lookup("output")
	require.NotNil(t, output)
	assert.Equal(t, "o", output.Shorthand)
	assert.Equal(t, "edgefleet.yaml", output.DefValue)
	assert.NotNil(t, cmd.Flags().Lookup("defaults"))
}

func TestDeploy_Flags(t *testing.T) {
	cmd := Deploy()

	assert.Equal(t, "deploy", cmd.Use)
	plain := cmd.Flags().Lookup("plain")
	require.NotNil(t, plain)
	assert.Equal(t, "false", plain.DefValue)
}

func TestServe_Flags(t *testing.T) {
	cmd := Serve()

	listen := cmd.Flags().Lookup("listen")
	require.NotNil(t, listen)
	assert.Equal(t, "l", listen.Shorthand)
	assert.Contains(t, cmd.Long, "/api/progress")
}

func TestNode_Subcommands(t *testing.T) {
	cmd := Node()

	names := map[string]bool{}
	for _, sub := range cmd.Commands() {
		names[sub.Name()] = true
	}
	assert.Equal(t, map[string]bool{"add": true, "import": true, "list": true, "remove": true}, names)
}

func TestNodeAdd_Flags(t *testing.T) {
	cmd := nodeAdd()

	kind := cmd.Flags().Lookup("kind")
	require.NotNil(t, kind)
	assert.Equal(t, "edge", kind.DefValue)

	interactive := cmd.Flags().Lookup("interactive")
	require.NotNil(t, interactive)
	assert.Equal(t, "i", interactive.Shorthand)

	for _, name := range []string{"name", "address", "username", "password", "key", "master"} {
		assert.NotNil(t, cmd.Flags().Lookup(name), name)
	}
}

func TestNodeAdd_RequiresIdentityFlags(t *testing.T) {
	root := Root()
	root.SetArgs([]string{"node", "add", "--name", "pi-1", "--address", "10.0.0.3"})

	err := root.Execute()
	require.Error(t, err)
	assert.Equal(t, "required flag --username not set (or use --interactive)", err.Error())
}

func TestNodeList_OutputFlag(t *testing.T) {
	cmd := nodeList()

	output := cmd.Flags().Lookup("output")
	require.NotNil(t, output)
	assert.Equal(t, "table", output.DefValue)
	assert.Contains(t, cmd.Aliases, "ls")
}

func TestNodeRemove_Args(t *testing.T) {
	cmd := nodeRemove()

	assert.Error(t, cmd.Args(cmd, nil))
	assert.NoError(t, cmd.Args(cmd, []string{"pi-1"}))
	assert.Error(t, cmd.Args(cmd, []string{"pi-1", "pi-2"}))
}

func TestRegistry_Subcommands(t *testing.T) {
	cmd := Registry()

	names := map[string]bool{}
	for _, sub := range cmd.Commands() {
		names[sub.Name()] = true
	}
	assert.Equal(t, map[string]bool{"backup": true, "list": true, "restore": true, "prune": true}, names)
}

func TestRegistry_Flags(t *testing.T) {
	backup := registryBackup()
	require.NotNil(t, backup.Flags().Lookup("keep"))
	assert.Equal(t, "0", backup.Flags().Lookup("keep").DefValue)

	prune := registryPrune()
	assert.Equal(t, "7", prune.Flags().Lookup("keep").DefValue)

	restore := registryRestore()
	assert.NotNil(t, restore.Flags().Lookup("force"))
	assert.NoError(t, restore.Args(restore, nil))
	assert.Error(t, restore.Args(restore, []string{"a", "b"}))
}
