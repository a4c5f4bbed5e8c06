package handlers

import (
	"context"
	"fmt"

	"github.com/go-logr/logr"
	"go.uber.org/zap/zapcore"
	ctrllog "sigs.k8s.io/controller-runtime/pkg/log"
	"sigs.k8s.io/controller-runtime/pkg/log/zap"

	"github.com/imamik/edgefleet/internal/config"
)

// NewLogger builds the zap-backed logger used by every command.
// An empty level means info.
func NewLogger(level string, development bool) (logr.Logger, error) {
	if level == "" {
		level = "info"
	}
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return logr.Discard(), fmt.Errorf("invalid log level %q: %w", level, err)
	}

	opts := zap.Options{
		Development: development,
		Level:       lvl,
	}
	return zap.New(zap.UseFlagOptions(&opts)), nil
}

// WithLogger installs a logger built from the command line flags. It also
// becomes the controller-runtime logger so client libraries log through it.
func WithLogger(ctx context.Context, level string, development bool) (context.Context, error) {
	log, err := NewLogger(level, development)
	if err != nil {
		return ctx, err
	}
	ctrllog.SetLogger(log)
	return logr.NewContext(ctx, log), nil
}

// contextWithLogger keeps a logger set from flags and otherwise falls back to
// the configuration file's logging section.
func contextWithLogger(ctx context.Context, cfg config.LoggingConfig) (context.Context, error) {
	if _, err := logr.FromContext(ctx); err == nil {
		return ctx, nil
	}
	return WithLogger(ctx, cfg.Level, cfg.Development)
}
