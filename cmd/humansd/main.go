// Command humansd serves the route-interest API and its maintenance commands.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"humans/internal/config"
	"humans/internal/core"
)

// app carries state shared by every subcommand once the root pre-run has loaded it.
type app struct {
	verbose bool
	envFile string

	cfg    config.Config
	logger *zap.Logger
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:          "humansd",
		Short:        "Route interest CRM service",
		SilenceUsage: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return a.init()
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "enable debug logging")
	root.PersistentFlags().StringVar(&a.envFile, "env-file", "", "load variables from this file instead of .env")
	root.AddCommand(a.serveCmd(), a.migrateCmd(), a.citiesCmd(), a.exportCmd())
	return root
}

func (a *app) init() error {
	var files []string
	if a.envFile != "" {
		files = append(files, a.envFile)
	}
	cfg, err := config.Load(files...)
	if err != nil {
		return err
	}
	level, err := cfg.Level()
	if err != nil {
		return err
	}
	if a.verbose {
		level = zapcore.DebugLevel
	}
	zcfg := zap.NewProductionConfig()
	zcfg.Level = zap.NewAtomicLevelAt(level)
	logger, err := zcfg.Build()
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	a.cfg = cfg
	a.logger = logger
	return nil
}

// openService opens the configured store and wraps it in a service. The
// returned close func releases the store.
func (a *app) openService(ctx context.Context, opts ...core.ServiceOption) (*core.Service, func(), error) {
	store, err := core.OpenPersistentStore(ctx, a.cfg.StorageConfig())
	if err != nil {
		return nil, nil, fmt.Errorf("open %s store: %w", a.cfg.Storage.Driver, err)
	}
	opts = append([]core.ServiceOption{core.WithLogger(core.NewZapLogger(a.logger))}, opts...)
	svc := core.NewService(store, opts...)
	closeFn := func() {
		if err := store.Close(); err != nil {
			a.logger.Warn("close store", zap.Error(err))
		}
	}
	return svc, closeFn, nil
}
