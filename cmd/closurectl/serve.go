package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/danmuck/closurectl/internal/observability"
	"github.com/danmuck/closurectl/internal/optimizer"
	"github.com/danmuck/closurectl/internal/server"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newServeCmd(root *rootOptions) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Expose the optimizer over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := root.load()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("addr") {
				cfg.Server.Addr = addr
			}
			observability.InitLogger(cfg.Server.ID)
			gin.SetMode(gin.ReleaseMode)

			pipeline, err := optimizer.New(cfg.Optimizer)
			if err != nil {
				return err
			}
			if err := pipeline.Check(); err != nil {
				log.Warn().Err(err).Str("scratch", pipeline.Store().Dir()).Msg("compiler not ready; /ready will report unavailable")
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			srv := server.New(cfg.Server.ID, cfg.Server.Addr, cfg.Server.CorsOrigins, pipeline)
			if err := srv.Serve(ctx); err != nil {
				return err
			}
			log.Info().Str("id", srv.ID).Msg("server stopped")
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.addr)")
	return cmd
}
