package handlers

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-logr/logr"

	"github.com/imamik/edgefleet/internal/config"
	"github.com/imamik/edgefleet/internal/server"
)

// notifyContext is replaced in tests to stop the server without signals.
var notifyContext = func(ctx context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
}

// Serve runs the HTTP API until interrupted. A non-empty listen overrides
// server.listen from the configuration.
func Serve(ctx context.Context, configPath, listen string) error {
	ctx, stop := notifyContext(ctx)
	defer stop()

	return withApp(ctx, configPath, func(ctx context.Context, cfg *config.Config, a *app) error {
		if listen != "" {
			cfg.Server.Listen = listen
		}

		srv := server.New(server.Config{
			Deployer: a.deployer,
			Nodes:    a.nodes,
			Registry: a.store,
			Progress: a.progress,
			Gatherer: a.gatherer,
			Logger:   logr.FromContextOrDiscard(ctx),
		})

		err := srv.Serve(ctx, cfg.Server.Listen, func(addr net.Addr) {
			fmt.Printf("edgefleet API listening on http://%s\n", addr)
		})
		// Runs started over HTTP still hold the registry.
		srv.Wait()
		return err
	})
}
