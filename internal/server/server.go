package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/imamik/edgefleet/internal/orchestration"
	"github.com/imamik/edgefleet/internal/progress"
	"github.com/imamik/edgefleet/internal/registry"
)

const (
	defaultShutdownTimeout = 10 * time.Second
	defaultStreamBuffer    = 64
	defaultKeepAlive       = 15 * time.Second
)

// Deployer runs the deploy pipeline.
type Deployer interface {
	Run(ctx context.Context) (*orchestration.Summary, error)
	Running() bool
}

// NodeManager serves the fleet view and node removal.
type NodeManager interface {
	Fleet(ctx context.Context) ([]orchestration.FleetNode, error)
	RemoveNode(ctx context.Context, name string) error
}

// Config wires a Server.
type Config struct {
	Deployer Deployer
	Nodes    NodeManager
	Registry registry.Store
	Progress *progress.Broadcaster

	// Gatherer backs /metrics. Nil disables the route.
	Gatherer prometheus.Gatherer

	// Logger is also handed to runs started over HTTP.
	Logger logr.Logger

	ShutdownTimeout time.Duration
	StreamBuffer    int
	KeepAlive       time.Duration
}

// Server is the HTTP surface.
type Server struct {
	cfg Config
	log logr.Logger
	mux *http.ServeMux

	mu       sync.Mutex
	starting bool
	last     *RunStatus
	runs     sync.WaitGroup
}

// New creates a server and registers its routes.
func New(cfg Config) *Server {
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = defaultShutdownTimeout
	}
	if cfg.StreamBuffer == 0 {
		cfg.StreamBuffer = defaultStreamBuffer
	}
	if cfg.KeepAlive == 0 {
		cfg.KeepAlive = defaultKeepAlive
	}

	s := &Server{
		cfg: cfg,
		log: cfg.Logger.WithName("server"),
		mux: http.NewServeMux(),
	}

	s.mux.HandleFunc("POST /api/deploy", s.handleDeploy)
	s.mux.HandleFunc("GET /api/deploy/status", s.handleDeployStatus)
	s.mux.HandleFunc("GET /api/progress", s.handleProgress)
	s.mux.HandleFunc("GET /api/nodes", s.handleListNodes)
	s.mux.HandleFunc("POST /api/nodes", s.handleAddNode)
	s.mux.HandleFunc("DELETE /api/nodes/{name}", s.handleRemoveNode)
	s.mux.HandleFunc("GET /api/health", s.handleHealth)
	if cfg.Gatherer != nil {
		s.mux.Handle("GET /metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	}
	return s
}

// Handler returns the route multiplexer.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Serve listens on addr until ctx is cancelled, then shuts down gracefully.
// ready, when non-nil, receives the bound address.
func (s *Server) Serve(ctx context.Context, addr string, ready func(net.Addr)) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	if ready != nil {
		ready(listener.Addr())
	}

	srv := &http.Server{
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(listener)
	}()
	s.log.Info("listening", "address", listener.Addr().String())

	select {
	case err := <-errCh:
		return fmt.Errorf("server stopped: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Wait blocks until runs started over HTTP have finished.
func (s *Server) Wait() {
	s.runs.Wait()
}
