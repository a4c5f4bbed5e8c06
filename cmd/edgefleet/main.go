// Package main is the entry point for the edgefleet CLI.
//
// edgefleet bootstraps and maintains a k3s cluster across a fleet of edge
// and IoT machines reached over SSH. The fleet is kept in a local node
// registry; deploy converges the cluster to it.
//
// Commands: init, node, deploy, serve, registry, version, completion.
//
// For detailed usage information, run:
//
//	edgefleet --help
package main

import (
	"fmt"
	"os"

	"github.com/imamik/edgefleet/cmd/edgefleet/commands"
)

// Version information set by goreleaser at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	commands.SetVersionInfo(version, commit, date)
	if err := commands.Root().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
