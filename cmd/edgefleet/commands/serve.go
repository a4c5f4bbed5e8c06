package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/edgefleet/cmd/edgefleet/handlers"
)

// Serve returns the command that runs the HTTP API.
func Serve() *cobra.Command {
	var (
		configPath string
		listen     string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: `Run the HTTP API for deploys, node management and progress streaming.

Routes:
  POST   /api/deploy          start a deploy in the background
                              (?wait=true blocks and returns the result)
  GET    /api/deploy/status   state of the last deploy
  GET    /api/progress        server-sent progress events
  GET    /api/nodes           fleet with live status
  POST   /api/nodes           register a node
  DELETE /api/nodes/{name}    dejoin and remove a node
  GET    /api/health          liveness
  GET    /metrics             Prometheus metrics`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Serve(cmd.Context(), configPath, listen)
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().StringVarP(&listen, "listen", "l", "", "Listen address (default: server.listen from the config)")

	return cmd
}
