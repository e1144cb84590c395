package cli

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/writegate/writegate/internal/gate"
	"github.com/writegate/writegate/internal/server"
)

func newServeCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the gate as an HTTP service",
		Long: `Serve exposes evaluation, the programmatic decision channel, and audit
queries over HTTP. Pending replace approvals are listed at
GET /api/v1/approvals and resolved with POST /api/v1/approvals/{id}.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			// The service's decision channel is the API itself.
			if cfg.Approvals.Channel == "" || cfg.Approvals.Channel == "auto" {
				cfg.Approvals.Channel = "api"
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}

			log := newLogger(cfg.Logging, cmd.ErrOrStderr())
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			rt, err := gate.BuildRuntime(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer rt.Close()

			app, err := server.NewApp(rt, cfg.Server, log)
			if err != nil {
				return err
			}
			return app.Serve(ctx, cfg.Server.Addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides config)")
	return cmd
}
