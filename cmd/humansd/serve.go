package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"humans/internal/adapters/export"
	"humans/internal/adapters/httpapi"
	"humans/internal/blob"
	"humans/internal/core"
)

func (a *app) serveCmd() *cobra.Command {
	var traceFile string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			listener, err := net.Listen("tcp", a.cfg.HTTPAddr)
			if err != nil {
				return fmt.Errorf("listen on %s: %w", a.cfg.HTTPAddr, err)
			}
			return a.serve(cmd.Context(), listener, traceFile)
		},
	}
	cmd.Flags().StringVar(&traceFile, "trace-file", "", "append operation spans as JSON lines to this file")
	return cmd
}

// serve runs the API on listener until ctx is canceled, then drains in-flight
// requests for at most the configured shutdown timeout.
func (a *app) serve(ctx context.Context, listener net.Listener, traceFile string) error {
	// serve owns listener; setup failures must release it too.
	defer func() { _ = listener.Close() }()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	recorder, err := core.NewPrometheusMetricsRecorder(registry)
	if err != nil {
		return err
	}
	opts := []core.ServiceOption{core.WithMetricsRecorder(recorder)}
	if traceFile != "" {
		f, err := os.OpenFile(traceFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("open trace file: %w", err)
		}
		defer f.Close()
		opts = append(opts, core.WithTracer(core.NewJSONTracer(f)))
	}

	svc, closeStore, err := a.openService(ctx, opts...)
	if err != nil {
		return err
	}
	defer closeStore()

	store, err := blob.Open(ctx, a.cfg.BlobConfig())
	if err != nil {
		return fmt.Errorf("open blob store: %w", err)
	}
	exporter := export.NewExporter(svc, store, export.WithLogger(a.logger.Named("export")))

	gin.SetMode(gin.ReleaseMode)
	router, err := httpapi.NewRouter(svc, httpapi.Options{
		Logger:   a.logger.Named("http"),
		Registry: registry,
		Exporter: exporter,
	})
	if err != nil {
		return err
	}
	server := &http.Server{
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.logger.Info("http server listening",
			zap.String("addr", listener.Addr().String()),
			zap.String("storage", a.cfg.Storage.Driver),
			zap.String("blob", a.cfg.Blob.Driver),
		)
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
		defer cancel()
		a.logger.Info("http server shutting down", zap.Duration("timeout", a.cfg.ShutdownTimeout))
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
