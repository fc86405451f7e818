package main

import (
	"context"
	"os/signal"
	"syscall"

	"script-agent/internal/di"
	"script-agent/internal/infrastructure/transport/ws"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve operator sessions over WebSocket",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, opts)
		},
	}
	cmd.Flags().String("server.addr", ":8080", "listen address")
	cmd.Flags().Bool("browser.headless", true, "run the browser without a window")
	return cmd
}

func serve(ctx context.Context, opts *rootOptions) error {
	cfg := opts.cfg
	container, err := di.NewContainer(ctx, cfg, di.Overrides{})
	if err != nil {
		return err
	}
	defer container.Close()

	hubCfg := ws.DefaultConfig()
	hubCfg.AllowedOrigins = cfg.Server.AllowedOrigins
	hubCfg.MessagesPerSecond = cfg.Server.MessagesPerSecond
	hubCfg.Burst = cfg.Server.Burst
	hub := ws.NewHub(container.Sessions, container.Bus, container.Logger, hubCfg)

	srvCfg := ws.DefaultServerConfig()
	srvCfg.Addr = cfg.Server.Addr
	srvCfg.AccessLogJSON = cfg.Server.AccessLogJSON
	srvCfg.ShutdownTimeout = cfg.Server.ShutdownTimeout
	server := ws.NewServer(hub, container.Sessions, container.Extractor, container.Logger, srvCfg)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		container.Logger.Info("Shutting down")
		return nil
	})
	return g.Wait()
}
