package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rpattn/streamgate/internal/api"
	"github.com/rpattn/streamgate/internal/auth"
	"github.com/rpattn/streamgate/internal/dedup"
	"github.com/rpattn/streamgate/internal/export"
	"github.com/rpattn/streamgate/internal/feed"
	"github.com/rpattn/streamgate/internal/metrics"
	"github.com/rpattn/streamgate/internal/poller"
	"github.com/rpattn/streamgate/internal/source"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const shutdownTimeout = 30 * time.Second

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the poller and the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.bootstrap()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			store, err := openStorage(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer store.close()

			set, err := dedup.Load(ctx, store.keys)
			if err != nil {
				return err
			}
			logger.Info("loaded processed keys", zap.Int("count", set.Len()))

			m := metrics.New()
			f := feed.New(feed.DefaultCapacity)
			client := source.NewClient(cfg.Source.BaseURL, cfg.Source.APIKey, cfg.Source.Timeout)

			p, err := poller.New(poller.Config{
				Rate:     time.Duration(cfg.Poller.RateMs) * time.Millisecond,
				Limit:    cfg.Poller.Limit,
				MaxPages: cfg.Poller.MaxPages,
				Tables:   cfg.Source.Tables,
				Active:   cfg.Source.Active,
			}, client, set, f, m, logger.Named("poller"))
			if err != nil {
				return err
			}

			srv, err := api.NewServer(api.Options{
				Gate:           auth.NewGate(cfg.Auth.MockKey, store.sessions, m, logger.Named("auth")),
				Poller:         p,
				Feed:           f,
				Exporter:       export.NewService(logger.Named("export")),
				RowFetcher:     client,
				Metrics:        m,
				Logger:         logger.Named("http"),
				AllowedOrigins: cfg.Server.AllowedOrigins,
			})
			if err != nil {
				return err
			}

			server := &http.Server{
				Addr:         cfg.Server.Addr,
				Handler:      srv.Handler(),
				ReadTimeout:  cfg.Server.ReadTimeout,
				WriteTimeout: cfg.Server.WriteTimeout,
				IdleTimeout:  60 * time.Second,
			}

			pollerDone := make(chan struct{})
			go func() {
				defer close(pollerDone)
				_ = p.Run(ctx)
			}()

			serveErr := make(chan error, 1)
			go func() {
				logger.Info("starting server", zap.String("addr", cfg.Server.Addr))
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					serveErr <- err
				}
			}()

			var runErr error
			select {
			case <-ctx.Done():
				logger.Info("shutting down server")
			case runErr = <-serveErr:
				logger.Error("server failed", zap.Error(runErr))
				stop()
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				logger.Error("server forced to shutdown", zap.Error(err))
			}
			<-pollerDone

			logger.Info("server exited")
			return runErr
		},
	}
}
