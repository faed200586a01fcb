package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/pixl-ae/leadflow/internal/cli"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long:  `Serves the conversation engine as a JSON API with server-sent events, document intake and Prometheus metrics.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("addr") {
			cfg.Server.Addr, _ = cmd.Flags().GetString("addr")
		}

		sigCtx := cli.NewSignalContext(context.Background())
		defer sigCtx.Cancel()

		app, err := cli.Build(sigCtx, cfg, logger)
		if err != nil {
			return err
		}
		defer app.Close()

		srv := &http.Server{
			Addr:              cfg.Server.Addr,
			Handler:           app.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
			// Event streams end with the process context.
			BaseContext: func(net.Listener) context.Context { return sigCtx },
		}

		g, gctx := errgroup.WithContext(sigCtx)
		g.Go(func() error {
			logger.Info("Starting leadflow server",
				"addr", srv.Addr,
				"sessions", cfg.Sessions.Backend,
				"sink", cfg.Sink.Kind,
				"agent", cfg.Agent.Enabled(),
			)
			if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(ctx); err != nil {
				logger.Warn("Graceful shutdown did not complete", "timeout", shutdownTimeout, "err", err)
				return srv.Close()
			}
			return nil
		})

		if err := g.Wait(); err != nil {
			return err
		}
		logger.Info("Server stopped", "signal", sigCtx.Signal())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", ":8080", "Address to listen on (overrides PORT)")
}
