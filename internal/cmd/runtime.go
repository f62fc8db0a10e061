package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Iron-Ham/keeper/internal/config"
	"github.com/Iron-Ham/keeper/internal/directory"
	"github.com/Iron-Ham/keeper/internal/event"
	"github.com/Iron-Ham/keeper/internal/logging"
	"github.com/Iron-Ham/keeper/internal/metrics"
	"github.com/Iron-Ham/keeper/internal/rwlock"
)

// runtime holds what every command shares: the loaded config, the logger,
// the event bus and the metrics collector.
type runtime struct {
	cfg       *config.Config
	logger    *logging.Logger
	bus       *event.Bus
	collector *metrics.Collector
}

func newRuntime(cmd *cobra.Command) (*runtime, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if f := cmd.Flags().Lookup("metrics-addr"); f != nil && f.Changed {
		cfg.Metrics.Enabled = true
	}

	logger, err := logging.NewLoggerWithRotation(cfg.Logging.Dir, logging.ParseLevel(cfg.Logging.Level), logging.RotationConfig{
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		Compress:   cfg.Logging.Compress,
	})
	if err != nil {
		return nil, err
	}

	return &runtime{
		cfg:       cfg,
		logger:    logger,
		bus:       event.NewBus(logger),
		collector: metrics.New(),
	}, nil
}

func (r *runtime) Close() {
	r.bus.Clear()
	_ = r.logger.Close()
}

func (r *runtime) lockOptions() []rwlock.Option {
	return []rwlock.Option{rwlock.WithObserver(r.collector)}
}

func (r *runtime) openDirectory() (*directory.Directory, error) {
	return directory.Open(r.cfg.Directory.LogPath,
		directory.WithBus(r.bus),
		directory.WithLogger(r.logger),
		directory.WithLockOptions(r.lockOptions()...),
	)
}

// serveMetrics starts the metrics server on g when metrics are enabled.
func (r *runtime) serveMetrics(ctx context.Context, g *errgroup.Group, locks map[string]metrics.LockSource) {
	if !r.cfg.Metrics.Enabled {
		return
	}
	srv := metrics.NewServer(r.collector, locks, r.logger)
	g.Go(func() error {
		return srv.ListenAndServe(ctx, r.cfg.Metrics.Addr)
	})
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
}
