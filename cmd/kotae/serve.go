package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/hyperjump/kotae/internal/server"
	"github.com/hyperjump/kotae/internal/watcher"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	var watch bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, opts)
			if err != nil {
				return err
			}
			defer a.Close()
			logger := a.logger

			if watch || a.cfg.Sources.Watch {
				w := watcher.New(a.cfg.Sources.Directory, func(path string) {
					stats, ingested, err := a.service.IngestChanged(ctx, path)
					switch {
					case err != nil:
						logger.Warn("auto-ingest failed", zap.String("path", path), zap.Error(err))
					case ingested:
						logger.Info("auto-ingested document", zap.String("path", path), zap.Int("chunks", stats.IngestedChunks))
					}
				}, watcher.WithLogger(logger))
				if err := w.Start(ctx); err != nil {
					return err
				}
				defer w.Stop()
			}

			srv := server.NewServer(a.service, a.cfg.Server, logger,
				server.WithEnvironment(a.cfg.Environment),
				server.WithMetrics(a.metrics),
				server.WithMaxUploadBytes(a.cfg.Sources.MaxUploadBytes()))
			errc := make(chan error, 1)
			go func() { errc <- srv.Start() }()

			select {
			case err := <-errc:
				if !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			case <-ctx.Done():
			}
			logger.Info("Shutting down...")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Stop(shutdownCtx)
		},
	}
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "ingest new or changed files in the source directory")
	return cmd
}
