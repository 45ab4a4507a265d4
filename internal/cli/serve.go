package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mesh-intelligence/sheets/internal/api"
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	var listen string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		Long: "Serve the JSON API and the /api/events websocket feed until\n" +
			"interrupted. SIGINT or SIGTERM drains in-flight requests before exiting.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			apiCfg, err := serverConfig(cfg)
			if err != nil {
				return userError(err)
			}
			if cmd.Flags().Changed("listen") {
				apiCfg.Listen = listen
			}

			store, err := attachStore()
			if err != nil {
				return err
			}
			defer store.Detach()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			srv := api.New(store, apiCfg)
			if err := srv.ListenAndServe(ctx); err != nil {
				return sysError(fmt.Errorf("serve: %w", err))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&listen, "listen", api.DefaultListen, "address to listen on (overrides config listen)")
	return cmd
}
